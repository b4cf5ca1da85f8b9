package broker

import (
	"errors"
	"fmt"

	"marketgraph/internal/domain/entity/marketdata"
)

// PriceMessage is the JSON body published on the bars and ticks
// exchanges. Bar messages carry Bars at a bar resolution; tick messages
// carry Ticks at the level1 resolution.
type PriceMessage struct {
	Provider   string                  `json:"provider"`
	Ticker     string                  `json:"ticker"`
	Resolution marketdata.Resolution   `json:"resolution"`
	Bars       []marketdata.Bar        `json:"bars,omitempty"`
	Ticks      []marketdata.Level1Tick `json:"ticks,omitempty"`
}

func (m *PriceMessage) Validate() error {
	if m.Ticker == "" {
		return errors.New("ticker is required")
	}
	if !m.Resolution.IsValid() {
		return fmt.Errorf("invalid resolution %q", m.Resolution)
	}
	if len(m.Bars) > 0 && !m.Resolution.IsBar() {
		return fmt.Errorf("bars at non-bar resolution %s", m.Resolution)
	}
	if len(m.Ticks) > 0 && m.Resolution != marketdata.ResolutionLevel1 {
		return fmt.Errorf("ticks at resolution %s", m.Resolution)
	}
	if len(m.Bars) == 0 && len(m.Ticks) == 0 {
		return errors.New("message carries no rows")
	}
	return nil
}
