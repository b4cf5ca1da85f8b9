package feed

import (
	"fmt"
	"time"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
)

// Params identify a feed. Two requests with equal Params may share a feed.
type Params struct {
	Provider   string
	Ticker     string
	Resolution marketdata.Resolution
	Interval   int
	From       time.Time
	To         time.Time
	ToDateMode marketdata.ToDateMode
	DataType   marketdata.PriceDataType

	// Location converts Level1 timestamps; nil keeps them as stored.
	Location *time.Location
}

// Normalize fills defaults and validates the parameters.
func (p *Params) Normalize() error {
	p.Ticker = refdata.NormalizeTicker(p.Ticker)
	if p.Ticker == "" {
		return fmt.Errorf("feed ticker is required")
	}
	if p.Interval <= 0 {
		return fmt.Errorf("%w: %d", marketdata.ErrInvalidInterval, p.Interval)
	}
	if p.From.After(p.To) {
		return fmt.Errorf("%w: %s > %s", marketdata.ErrInvalidRange, p.From.Format(time.RFC3339), p.To.Format(time.RFC3339))
	}
	if _, err := p.Resolution.TableSuffix(); err != nil {
		return err
	}
	if p.ToDateMode == "" {
		p.ToDateMode = marketdata.ToDatePinned
	}
	if !p.ToDateMode.IsValid() {
		return fmt.Errorf("invalid to-date mode: %q", string(p.ToDateMode))
	}
	if p.DataType == "" {
		p.DataType = marketdata.PriceDataBoth
	}
	if !p.DataType.IsValid() {
		return fmt.Errorf("invalid price data type: %q", string(p.DataType))
	}
	return nil
}

func (p Params) Equal(o Params) bool {
	return p.Provider == o.Provider &&
		p.Ticker == o.Ticker &&
		p.Resolution == o.Resolution &&
		p.Interval == o.Interval &&
		p.From.Equal(o.From) &&
		p.To.Equal(o.To) &&
		p.ToDateMode == o.ToDateMode &&
		p.DataType == o.DataType &&
		locationName(p.Location) == locationName(o.Location)
}

func locationName(loc *time.Location) string {
	if loc == nil {
		return ""
	}
	return loc.String()
}
