package http

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"marketgraph/internal/application/service/refgraph"
	"marketgraph/internal/domain/entity/marketdata"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const dateLayout = "2006-01-02"

var (
	errMissingRange  = errors.New("from/to query params required")
	errMissingTicker = errors.New("missing ticker")
)

func parseIDParam(c *gin.Context, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid %s: %q", name, c.Param(name))
	}
	return id, nil
}

func parseTickerParam(c *gin.Context) (string, error) {
	ticker := c.Param("ticker")
	if ticker == "" {
		return "", errMissingTicker
	}
	return ticker, nil
}

// parseTime accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(dateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: expected RFC 3339 or %s", value, dateLayout)
	}
	return t, nil
}

func parseTimeRange(c *gin.Context) (time.Time, time.Time, error) {
	fromStr := c.Query("from")
	toStr := c.Query("to")
	if fromStr == "" || toStr == "" {
		return time.Time{}, time.Time{}, errMissingRange
	}
	from, err := parseTime(fromStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to, err := parseTime(toStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return from, to, nil
}

func parseIntQuery(c *gin.Context, key string) (int, error) {
	value := c.Query(key)
	if value == "" {
		return 0, fmt.Errorf("%s query param required", key)
	}
	return strconv.Atoi(value)
}

func parseResolutionQuery(c *gin.Context) (marketdata.Resolution, error) {
	value := c.Query("resolution")
	if value == "" {
		return "", fmt.Errorf("resolution query param required")
	}
	return marketdata.ParseResolution(value)
}

// localeOptions reads the optional locale query param.
func localeOptions(c *gin.Context) []refgraph.UpdateOption {
	if locale := c.Query("locale"); locale != "" {
		return []refgraph.UpdateOption{refgraph.InLocale(locale)}
	}
	return nil
}

type valuePayload struct {
	Value *float64 `json:"value"`
}

type providerPayload struct {
	Name string `json:"name" binding:"required"`
}

type countryPayload struct {
	IsoCode string `json:"iso_code" binding:"required"`
}

func parseUUIDQuery(c *gin.Context, key string) (uuid.UUID, error) {
	value := c.Query(key)
	if value == "" {
		return uuid.Nil, fmt.Errorf("%s query param required", key)
	}
	return uuid.Parse(value)
}
