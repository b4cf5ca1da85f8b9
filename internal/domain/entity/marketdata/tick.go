package marketdata

import "time"

// Level1Tick is a top-of-book quote together with the last trade.
type Level1Tick struct {
	DateTime  time.Time `json:"date_time"`
	Bid       float64   `json:"bid"`
	BidSize   float64   `json:"bid_size"`
	Ask       float64   `json:"ask"`
	AskSize   float64   `json:"ask_size"`
	Last      float64   `json:"last"`
	LastSize  float64   `json:"last_size"`
	Synthetic bool      `json:"synthetic,omitempty"`
}
