// Package http exposes the reference-data graph over a JSON API.
//
// @title     Market Graph API
// @version   1.0
// @BasePath  /api/v1
package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/application/service/refgraph"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/metrics"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	apiBasePath   = "/api/v1"
	cachePattern  = "cache:*"
	purgeTimeout  = 5 * time.Second
	scanBatchSize = 100
)

type Handler struct {
	router   *gin.Engine
	graph    *refgraph.Manager
	metrics  *metrics.Metrics
	cache    *redis.Client
	cacheTTL time.Duration
	logger   *logrus.Entry

	// Held so the weak registrations on the bus stay alive.
	modelPurge *notify.FuncObserver[notify.ModelChange]
	pricePurge *notify.FuncObserver[notify.PriceChange]
}

func NewHandler(graph *refgraph.Manager, mtr *metrics.Metrics, cache *redis.Client, cacheTTL time.Duration, logger *logrus.Logger) *Handler {
	router := gin.New()
	router.Use(gin.Recovery())

	h := &Handler{
		router:   router,
		graph:    graph,
		metrics:  mtr,
		cache:    cache,
		cacheTTL: cacheTTL,
		logger:   logger.WithField("component", "http"),
	}
	router.Use(h.requestLogger())
	h.registerRoutes()

	if cache != nil {
		h.modelPurge = notify.NewFuncObserver(func([]notify.ModelChange) { h.purgeCache() })
		h.pricePurge = notify.NewFuncObserver(func([]notify.PriceChange) { h.purgeCache() })
		notify.Subscribe(graph.Bus().Model, h.modelPurge)
		notify.Subscribe(graph.Bus().Price, h.pricePurge)
	}
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.router.ServeHTTP(w, r)
}

func (h *Handler) registerRoutes() {
	if h.metrics != nil {
		h.router.GET("/metrics", gin.WrapH(h.metrics.Handler()))
	}

	api := h.router.Group(apiBasePath)
	if h.cache != nil {
		api.Use(h.cacheMiddleware())
	}

	countries := api.Group("/countries")
	{
		countries.GET("", h.listCountries)
		countries.POST("", h.createCountry)
		countries.GET("/:id", h.getCountry)
		countries.PUT("/:id", h.updateCountry)
		countries.DELETE("/:id", h.deleteCountry)
	}

	exchanges := api.Group("/exchanges")
	{
		exchanges.GET("", h.listExchanges)
		exchanges.POST("", h.createExchange)
		exchanges.GET("/:id", h.getExchange)
		exchanges.PUT("/:id", h.updateExchange)
		exchanges.DELETE("/:id", h.deleteExchange)
		exchanges.GET("/:id/sessions", h.listExchangeSessions)
		exchanges.GET("/:id/holidays", h.listExchangeHolidays)
	}

	holidays := api.Group("/holidays")
	{
		holidays.POST("", h.createHoliday)
		holidays.PUT("/:id", h.updateHoliday)
		holidays.DELETE("/:id", h.deleteHoliday)
	}

	sessions := api.Group("/sessions")
	{
		sessions.POST("", h.createSession)
		sessions.PUT("/:id", h.updateSession)
		sessions.DELETE("/:id", h.deleteSession)
	}

	instruments := api.Group("/instruments")
	{
		instruments.GET("", h.listInstruments)
		instruments.POST("", h.createInstrument)
		instruments.GET("/:ticker", h.getInstrument)
		instruments.PUT("/:ticker", h.updateInstrument)
		instruments.DELETE("/:ticker", h.deleteInstrument)
		instruments.GET("/:ticker/fundamentals", h.listInstrumentFundamentals)
		instruments.POST("/:ticker/history", h.requestHistory)
		instruments.POST("/:ticker/subscription", h.subscribe)
		instruments.DELETE("/:ticker/subscription", h.unsubscribe)
		instruments.DELETE("/:ticker/prices", h.deletePrices)
	}

	groups := api.Group("/groups")
	{
		groups.GET("", h.listGroups)
		groups.POST("", h.createGroup)
		groups.GET("/:id", h.getGroup)
		groups.PUT("/:id", h.updateGroup)
		groups.DELETE("/:id", h.deleteGroup)
		groups.POST("/:id/instruments/:ticker", h.addGroupInstrument)
		groups.DELETE("/:id/instruments/:ticker", h.removeGroupInstrument)
	}

	fundamentals := api.Group("/fundamentals")
	{
		fundamentals.GET("", h.listFundamentals)
		fundamentals.POST("", h.createFundamental)
		fundamentals.PUT("/:id", h.updateFundamental)
		fundamentals.DELETE("/:id", h.deleteFundamental)

		fundamentals.POST("/:id/countries/:countryId", h.associateCountry)
		fundamentals.DELETE("/:id/countries/:countryId", h.disassociateCountry)
		fundamentals.PUT("/:id/countries/:countryId/values/:date", h.setCountryValue)
		fundamentals.DELETE("/:id/countries/:countryId/values/:date", h.deleteCountryValue)

		fundamentals.POST("/:id/instruments/:ticker", h.associateInstrument)
		fundamentals.DELETE("/:id/instruments/:ticker", h.disassociateInstrument)
		fundamentals.PUT("/:id/instruments/:ticker/values/:date", h.setInstrumentValue)
		fundamentals.DELETE("/:id/instruments/:ticker/values/:date", h.deleteInstrumentValue)
	}

	api.GET("/feeds", h.getFeed)
	api.POST("/refresh", h.refresh)
	api.PUT("/provider", h.setProvider)
	api.POST("/channels/:channel/pause", h.pauseChannel)
	api.POST("/channels/:channel/resume", h.resumeChannel)
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, refdata.ErrNotFound),
		errors.Is(err, refdata.ErrNotAssociated):
		return http.StatusNotFound
	case errors.Is(err, refdata.ErrDuplicateName),
		errors.Is(err, refdata.ErrDuplicateTicker),
		errors.Is(err, refdata.ErrProtectedEntity):
		return http.StatusConflict
	case errors.Is(err, marketdata.ErrNotImplemented):
		return http.StatusNotImplemented
	case errors.Is(err, refdata.ErrInvalidDayOfMonth),
		errors.Is(err, refdata.ErrInvalidParent),
		errors.Is(err, refdata.ErrCategoryMismatch),
		errors.Is(err, refdata.ErrInvalidProvider),
		errors.Is(err, refdata.ErrInvalidTimeZone),
		errors.Is(err, refdata.ErrInvalidCountryCode),
		errors.Is(err, marketdata.ErrInvalidInterval),
		errors.Is(err, marketdata.ErrInvalidRange),
		errors.Is(err, marketdata.ErrOutOfRange),
		errors.Is(err, refgraph.ErrNilEntity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, status int, err error) {
	if err == nil {
		status = http.StatusInternalServerError
		err = errors.New("unknown error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func writeDomainError(c *gin.Context, err error) {
	writeError(c, statusFor(err), err)
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := h.logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.FullPath(),
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

// cacheMiddleware caches GET responses in Redis.
func (h *Handler) cacheMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if h.cache == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		key := h.cacheKey(c)
		ctx := c.Request.Context()

		if cached, err := h.cache.Get(ctx, key).Result(); err == nil {
			c.Data(http.StatusOK, "application/json", []byte(cached))
			c.Abort()
			return
		}

		recorder := &responseRecorder{
			ResponseWriter: c.Writer,
			status:         http.StatusOK,
			body:           &bytes.Buffer{},
		}
		c.Writer = recorder

		c.Next()

		if recorder.status >= 200 && recorder.status < 300 && recorder.body.Len() > 0 {
			_ = h.cache.Set(ctx, key, recorder.body.Bytes(), h.cacheTTL).Err()
		}
	}
}

type responseRecorder struct {
	gin.ResponseWriter
	body   *bytes.Buffer
	status int
}

func (r *responseRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseRecorder) Write(data []byte) (int, error) {
	if len(data) > 0 {
		r.body.Write(data)
	}
	return r.ResponseWriter.Write(data)
}

func (h *Handler) cacheKey(c *gin.Context) string {
	return fmt.Sprintf("cache:%s:%s?%s", c.Request.Method, c.Request.URL.Path, c.Request.URL.RawQuery)
}

// purgeCache drops every cached response once the graph or its price data
// changes.
func (h *Handler) purgeCache() {
	ctx, cancel := context.WithTimeout(context.Background(), purgeTimeout)
	defer cancel()

	var keys []string
	iter := h.cache.Scan(ctx, 0, cachePattern, scanBatchSize).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		h.logger.WithError(err).Warn("scan cached responses")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := h.cache.Del(ctx, keys...).Err(); err != nil {
		h.logger.WithError(err).Warn("purge cached responses")
		return
	}
	h.logger.WithField("keys", len(keys)).Debug("response cache purged")
}
