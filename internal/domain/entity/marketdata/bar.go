package marketdata

import "time"

// Bar is one OHLCV record at a bar resolution.
type Bar struct {
	DateTime  time.Time `json:"date_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Synthetic bool      `json:"synthetic,omitempty"`
}
