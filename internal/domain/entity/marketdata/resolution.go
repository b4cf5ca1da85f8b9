package marketdata

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidInterval = errors.New("interval must be positive")
	ErrInvalidRange    = errors.New("from must not be after to")
	ErrNotImplemented  = errors.New("resolution not implemented")
	ErrOutOfRange      = errors.New("index out of range")
)

// Resolution is the granularity of stored price data.
type Resolution string

const (
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDay    Resolution = "day"
	ResolutionWeek   Resolution = "week"
	ResolutionMonth  Resolution = "month"
	ResolutionLevel1 Resolution = "level1"
	ResolutionLevel2 Resolution = "level2"
)

// Resolutions lists every resolution with storage behind it.
var Resolutions = []Resolution{
	ResolutionMinute,
	ResolutionHour,
	ResolutionDay,
	ResolutionWeek,
	ResolutionMonth,
	ResolutionLevel1,
}

func (r Resolution) String() string {
	return string(r)
}

func (r Resolution) IsValid() bool {
	switch r {
	case ResolutionMinute, ResolutionHour, ResolutionDay, ResolutionWeek, ResolutionMonth,
		ResolutionLevel1, ResolutionLevel2:
		return true
	default:
		return false
	}
}

// IsBar reports whether the resolution stores OHLCV bars.
func (r Resolution) IsBar() bool {
	switch r {
	case ResolutionMinute, ResolutionHour, ResolutionDay, ResolutionWeek, ResolutionMonth:
		return true
	default:
		return false
	}
}

// TableSuffix names the per-provider price table for the resolution.
func (r Resolution) TableSuffix() (string, error) {
	switch r {
	case ResolutionMinute:
		return "Minute", nil
	case ResolutionHour:
		return "Hour", nil
	case ResolutionDay:
		return "Day", nil
	case ResolutionWeek:
		return "Week", nil
	case ResolutionMonth:
		return "Month", nil
	case ResolutionLevel1:
		return "Level1", nil
	case ResolutionLevel2:
		return "", fmt.Errorf("%w: %s", ErrNotImplemented, r)
	default:
		return "", fmt.Errorf("unknown resolution: %q", string(r))
	}
}

// Duration is the nominal bar length; zero for calendar and tick resolutions.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionMinute:
		return time.Minute
	case ResolutionHour:
		return time.Hour
	case ResolutionDay:
		return 24 * time.Hour
	default:
		return 0
	}
}

func ParseResolution(s string) (Resolution, error) {
	r := Resolution(strings.ToLower(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", fmt.Errorf("invalid resolution: %s", s)
	}
	return r, nil
}

// PriceDataType selects actual, synthetic or both kinds of rows.
type PriceDataType string

const (
	PriceDataActual    PriceDataType = "actual"
	PriceDataSynthetic PriceDataType = "synthetic"
	PriceDataBoth      PriceDataType = "both"
)

func (t PriceDataType) IsValid() bool {
	switch t {
	case PriceDataActual, PriceDataSynthetic, PriceDataBoth:
		return true
	default:
		return false
	}
}

// Includes reports whether a row with the given synthetic flag is selected.
func (t PriceDataType) Includes(synthetic bool) bool {
	switch t {
	case PriceDataActual:
		return !synthetic
	case PriceDataSynthetic:
		return synthetic
	default:
		return true
	}
}

func ParsePriceDataType(s string) (PriceDataType, error) {
	if s == "" {
		return PriceDataBoth, nil
	}
	t := PriceDataType(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid price data type: %s", s)
	}
	return t, nil
}

// ToDateMode controls whether a feed's upper bound follows new data.
type ToDateMode string

const (
	ToDatePinned ToDateMode = "pinned"
	ToDateOpen   ToDateMode = "open"
)

func (m ToDateMode) IsValid() bool {
	return m == ToDatePinned || m == ToDateOpen
}

func ParseToDateMode(s string) (ToDateMode, error) {
	if s == "" {
		return ToDatePinned, nil
	}
	m := ToDateMode(strings.ToLower(s))
	if !m.IsValid() {
		return "", fmt.Errorf("invalid to-date mode: %s", s)
	}
	return m, nil
}
