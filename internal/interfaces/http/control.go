package http

import (
	"net/http"
	"time"

	"marketgraph/internal/application/service/feed"
	"marketgraph/internal/domain/entity/marketdata"

	"github.com/gin-gonic/gin"
)

type feedResponse struct {
	Provider   string                `json:"provider"`
	Ticker     string                `json:"ticker"`
	Resolution marketdata.Resolution `json:"resolution"`
	Interval   int                   `json:"interval"`
	From       time.Time             `json:"from"`
	To         time.Time             `json:"to"`
	Count      int                   `json:"count"`
	Points     []feed.Point          `json:"points"`
}

// getFeed builds a resampled series, most recent bucket first
// @Summary  Get data feed
// @Tags     feeds
// @Param    ticker      query     string  true   "Ticker"
// @Param    resolution  query     string  true   "minute|hour|day|week|month|level1"
// @Param    interval    query     int     true   "Bucket size in resolution units"
// @Param    from        query     string  true   "RFC 3339 or date"
// @Param    to          query     string  true   "RFC 3339 or date"
// @Param    mode        query     string  false  "pinned|open"
// @Param    type        query     string  false  "actual|synthetic|both"
// @Param    tz          query     string  false  "IANA zone for Level1 buckets"
// @Success  200         {object}  feedResponse
// @Failure  400         {object}  map[string]string
// @Failure  501         {object}  map[string]string
// @Router   /feeds [get]
func (h *Handler) getFeed(c *gin.Context) {
	params, err := parseFeedParams(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	f, err := h.graph.GetDataFeed(c.Request.Context(), params)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	p := f.Params()
	c.JSON(http.StatusOK, feedResponse{
		Provider:   p.Provider,
		Ticker:     p.Ticker,
		Resolution: p.Resolution,
		Interval:   p.Interval,
		From:       p.From,
		To:         f.To(),
		Count:      f.Count(),
		Points:     f.Points(),
	})
}

func parseFeedParams(c *gin.Context) (feed.Params, error) {
	ticker := c.Query("ticker")
	if ticker == "" {
		return feed.Params{}, errMissingTicker
	}
	resolution, err := parseResolutionQuery(c)
	if err != nil {
		return feed.Params{}, err
	}
	interval, err := parseIntQuery(c, "interval")
	if err != nil {
		return feed.Params{}, err
	}
	from, to, err := parseTimeRange(c)
	if err != nil {
		return feed.Params{}, err
	}
	mode, err := marketdata.ParseToDateMode(c.Query("mode"))
	if err != nil {
		return feed.Params{}, err
	}
	dataType, err := marketdata.ParsePriceDataType(c.Query("type"))
	if err != nil {
		return feed.Params{}, err
	}
	params := feed.Params{
		Provider:   c.Query("provider"),
		Ticker:     ticker,
		Resolution: resolution,
		Interval:   interval,
		From:       from,
		To:         to,
		ToDateMode: mode,
		DataType:   dataType,
	}
	if tz := c.Query("tz"); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return feed.Params{}, err
		}
		params.Location = loc
	}
	return params, nil
}

func (h *Handler) refresh(c *gin.Context) {
	if err := h.graph.Refresh(c.Request.Context()); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) setProvider(c *gin.Context) {
	var payload providerPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.SetActiveProvider(c.Request.Context(), payload.Name); err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"provider": h.graph.ActiveProvider()})
}

func (h *Handler) pauseChannel(c *gin.Context) {
	ch, err := h.graph.Bus().Channel(c.Param("channel"))
	if err != nil {
		writeError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch.Name(), "depth": ch.Pause()})
}

// resumeChannel flushes queued notifications once the depth reaches zero.
func (h *Handler) resumeChannel(c *gin.Context) {
	ch, err := h.graph.Bus().Channel(c.Param("channel"))
	if err != nil {
		writeError(c, http.StatusNotFound, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"channel": ch.Name(), "depth": ch.Resume()})
}

// Price data

func (h *Handler) requestHistory(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolution, err := parseResolutionQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseTimeRange(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.RequestHistorical(c.Request.Context(), ticker, resolution, from, to); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (h *Handler) subscribe(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolution, err := parseResolutionQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.Subscribe(c.Request.Context(), ticker, resolution); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) unsubscribe(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolution, err := parseResolutionQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.graph.Unsubscribe(c.Request.Context(), ticker, resolution); err != nil {
		writeDomainError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) deletePrices(c *gin.Context) {
	ticker, err := parseTickerParam(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	resolution, err := parseResolutionQuery(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	from, to, err := parseTimeRange(c)
	if err != nil {
		writeError(c, http.StatusBadRequest, err)
		return
	}
	n, err := h.graph.DeletePriceData(c.Request.Context(), ticker, resolution, from, to)
	if err != nil {
		writeDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": n})
}
