package http

import (
	"net/http"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/gin-gonic/gin"
)

// listInstruments returns every instrument, or those listed on
// ?exchange_id= or belonging to ?group_id=.
func (h *Handler) listInstruments(c *gin.Context) {
	ctx := c.Request.Context()
	var (
		instruments []*refdata.Instrument
		err         error
	)
	switch {
	case c.Query("exchange_id") != "":
		id, perr := parseUUIDQuery(c, "exchange_id")
		if perr != nil {
			writeError(c, http.StatusBadRequest, perr)
			return
		}
		instruments, err = h.graph.InstrumentsByExchange(ctx, id)
	case c.Query("group_id") != "":
		id, perr := parseUUIDQuery(c, "group_id")
		if perr != nil {
			writeError(c, http.StatusBadRequest, perr)
			return
		}
		instruments, err = h.graph.InstrumentsByGroup(ctx, id)
	default:
		instruments, err = h.graph.Instruments(ctx)
	}
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, instruments)
}

// createInstrument creates an instrument on its primary exchange
// @Summary  Create instrument
// @Tags     instruments
// @Param    instrument  body      refdata.Instrument  true  "Instrument data"
// @Success  201         {object}  refdata.Instrument
// @Failure  400         {object}  map[string]string
// @Failure  409         {object}  map[string]string
// @Router   /instruments [post]
func (h *Handler) createInstrument(c *gin.Context) {
	var instrument refdata.Instrument
	if err := c.ShouldBindJSON(&instrument); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateInstrument(c.Request.Context(), &instrument)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// getInstrument resolves primary and alternate tickers.
func (h *Handler) getInstrument(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	instrument, err := h.graph.FindInstrument(c.Request.Context(), ticker)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, instrument)
}

func (h *Handler) updateInstrument(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var instrument refdata.Instrument
	if err := c.ShouldBindJSON(&instrument); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	current, err := h.graph.FindInstrument(ctx, ticker)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	instrument.Ticker = current.Ticker
	if err := h.graph.UpdateInstrument(ctx, &instrument, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.FindInstrument(ctx, current.Ticker)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteInstrument(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteInstrument(c.Request.Context(), ticker); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) listInstrumentFundamentals(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	associations, err := h.graph.InstrumentFundamentals(c.Request.Context(), ticker)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, associations)
}

// Groups

func (h *Handler) listGroups(c *gin.Context) {
	groups, err := h.graph.InstrumentGroups(c.Request.Context())
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, groups)
}

func (h *Handler) createGroup(c *gin.Context) {
	var group refdata.InstrumentGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	created, err := h.graph.CreateInstrumentGroup(c.Request.Context(), &group)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, created)
}

// getGroup returns the group with its path from the root and its direct
// children.
func (h *Handler) getGroup(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ctx := c.Request.Context()
	group, err := h.graph.InstrumentGroup(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	path, err := h.graph.GroupPath(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	children, err := h.graph.GroupChildren(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"group":    group,
		"path":     path,
		"children": children,
	})
}

func (h *Handler) updateGroup(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	var group refdata.InstrumentGroup
	if err := c.ShouldBindJSON(&group); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	group.ID = id
	ctx := c.Request.Context()
	if err := h.graph.UpdateInstrumentGroup(ctx, &group, localeOptions(c)...); err != nil {
		writeDomainError(c, err)
		return
	}
	updated, err := h.graph.InstrumentGroup(ctx, id)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, updated)
}

func (h *Handler) deleteGroup(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.DeleteInstrumentGroup(c.Request.Context(), id); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) addGroupInstrument(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.AddInstrumentToGroup(c.Request.Context(), id, ticker); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) removeGroupInstrument(c *gin.Context) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.RemoveInstrumentFromGroup(c.Request.Context(), id, ticker); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
