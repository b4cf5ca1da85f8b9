package http

import (
	"net/http"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/gin-gonic/gin"
)

// Countries

func (h *Handler) listCountries(c *gin.Context) {
	countries, err := h.graph.Countries(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, countries)
}

// createCountry creates a country from its ISO 3166 code
// @Summary  Create country
// @Tags     countries
// @Param    country  body      countryPayload  true  "ISO code"
// @Success  201      {object}  refdata.Country
// @Failure  400      {object}  map[string]string
// @Failure  409      {object}  map[string]string
// @Router   /countries [post]
func (h *Handler) createCountry(c *gin.Context) {
	var payload countryPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	country, err := h.graph.CreateCountry(c.Request.Context(), payload.IsoCode)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, country)
}

func (h *Handler) getCountry(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	country, err := h.graph.Country(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, country)
}

func (h *Handler) updateCountry(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var country refdata.Country
	if err := c.ShouldBindJSON(&country); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	country.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateCountry(ctx, &country, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.Country(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteCountry(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteCountry(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Exchanges

func (h *Handler) listExchanges(c *gin.Context) {
	exchanges, err := h.graph.Exchanges(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchanges)
}

// createExchange creates an exchange in an existing country
// @Summary  Create exchange
// @Tags     exchanges
// @Param    exchange  body      refdata.Exchange  true  "Exchange data"
// @Success  201       {object}  refdata.Exchange
// @Failure  400       {object}  map[string]string
// @Failure  409       {object}  map[string]string
// @Router   /exchanges [post]
func (h *Handler) createExchange(c *gin.Context) {
	var exchange refdata.Exchange
	if err := c.ShouldBindJSON(&exchange); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateExchange(c.Request.Context(), &exchange)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) getExchange(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	exchange, err := h.graph.Exchange(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, exchange)
}

func (h *Handler) updateExchange(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var exchange refdata.Exchange
	if err := c.ShouldBindJSON(&exchange); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	exchange.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateExchange(ctx, &exchange, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.Exchange(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteExchange(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteExchange(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listExchangeSessions(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	sessions, err := h.graph.Sessions(c.Request.Context(), id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessions)
}

// listExchangeHolidays returns the exchange's own holidays, or, with
// ?year=, every holiday observed by the exchange that year.
func (h *Handler) listExchangeHolidays(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	if c.Query("year") == "" {
		holidays, err := h.graph.Holidays(ctx, id)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, holidays)
		return
	}
	year, err := parseIntQuery(c, "year")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	dates, err := h.graph.HolidaysForYear(ctx, id, year)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, dates)
}

// Holidays

func (h *Handler) createHoliday(c *gin.Context) {
	var holiday refdata.Holiday
	if err := c.ShouldBindJSON(&holiday); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateHoliday(c.Request.Context(), &holiday)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateHoliday(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var holiday refdata.Holiday
	if err := c.ShouldBindJSON(&holiday); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	holiday.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateHoliday(ctx, &holiday, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.Holiday(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteHoliday(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteHoliday(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Sessions

func (h *Handler) createSession(c *gin.Context) {
	var session refdata.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateSession(c.Request.Context(), &session)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateSession(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var session refdata.Session
	if err := c.ShouldBindJSON(&session); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	session.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateSession(ctx, &session, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.Session(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteSession(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteSession(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
