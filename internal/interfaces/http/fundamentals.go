package http

import (
	"errors"
	"net/http"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var errMissingValue = errors.New("value is required")

// listFundamentals returns every fundamental, or with ?country_id= the
// associations of that country under the active provider.
func (h *Handler) listFundamentals(c *gin.Context) {
	ctx := c.Request.Context()
	if c.Query("country_id") != "" {
		id, err := parseUUIDQuery(c, "country_id")
		if err != nil {
			writeError(c, http.StatusBadRequest, err)
			return
		}
		associations, err := h.graph.CountryFundamentals(ctx, id)
		if err != nil {
			writeDomainError(c, err)
			return
		}
		c.JSON(http.StatusOK, associations)
		return
	}
	fundamentals, err := h.graph.Fundamentals(ctx)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, fundamentals)
}

func (h *Handler) createFundamental(c *gin.Context) {
	var fundamental refdata.Fundamental
	if err := c.ShouldBindJSON(&fundamental); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateFundamental(c.Request.Context(), &fundamental)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *Handler) updateFundamental(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var fundamental refdata.Fundamental
	if err := c.ShouldBindJSON(&fundamental); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	fundamental.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateFundamental(ctx, &fundamental, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.Fundamental(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteFundamental(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteFundamental(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func parseCountryAssociation(c *gin.Context) (uuid.UUID, uuid.UUID, error) {
	fundamentalID, err := parseIDParam(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	countryID, err := parseIDParam(c, "countryId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return fundamentalID, countryID, nil
}

func parseInstrumentAssociation(c *gin.Context) (uuid.UUID, string, error) {
	fundamentalID, err := parseIDParam(c, "id")
	if err != nil {
		return uuid.Nil, "", err
	}
	ticker, err := parseTickerParam(c)
	if err != nil {
		return uuid.Nil, "", err
	}
	return fundamentalID, ticker, nil
}

func parseDateParam(c *gin.Context) (time.Time, error) {
	return parseTime(c.Param("date"))
}

func bindValue(c *gin.Context) (float64, error) {
	var payload valuePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		return 0, err
	}
	if payload.Value == nil {
		return 0, errMissingValue
	}
	return *payload.Value, nil
}

// Country associations

func (h *Handler) associateCountry(c *gin.Context) {
	fundamentalID, countryID, err := parseCountryAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	association, err := h.graph.AssociateCountryFundamental(c.Request.Context(), fundamentalID, countryID)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, association)
}

func (h *Handler) disassociateCountry(c *gin.Context) {
	fundamentalID, countryID, err := parseCountryAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DisassociateCountryFundamental(c.Request.Context(), fundamentalID, countryID); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setCountryValue(c *gin.Context) {
	fundamentalID, countryID, err := parseCountryAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	at, err := parseDateParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	value, err := bindValue(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.SetCountryFundamentalValue(c.Request.Context(), fundamentalID, countryID, at, value); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteCountryValue(c *gin.Context) {
	fundamentalID, countryID, err := parseCountryAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	at, err := parseDateParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteCountryFundamentalValue(c.Request.Context(), fundamentalID, countryID, at); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Instrument associations

func (h *Handler) associateInstrument(c *gin.Context) {
	fundamentalID, ticker, err := parseInstrumentAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	association, err := h.graph.AssociateInstrumentFundamental(c.Request.Context(), fundamentalID, ticker)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, association)
}

func (h *Handler) disassociateInstrument(c *gin.Context) {
	fundamentalID, ticker, err := parseInstrumentAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DisassociateInstrumentFundamental(c.Request.Context(), fundamentalID, ticker); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setInstrumentValue(c *gin.Context) {
	fundamentalID, ticker, err := parseInstrumentAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	at, err := parseDateParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	value, err := bindValue(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.SetInstrumentFundamentalValue(c.Request.Context(), fundamentalID, ticker, at, value); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deleteInstrumentValue(c *gin.Context) {
	fundamentalID, ticker, err := parseInstrumentAssociation(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	at, err := parseDateParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteInstrumentFundamentalValue(c.Request.Context(), fundamentalID, ticker, at); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
