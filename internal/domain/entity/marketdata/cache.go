package marketdata

import "time"

// DataCache holds raw rows for one (ticker, resolution, range) query as
// parallel arrays in ascending time order. Bar caches fill the OHLCV
// arrays, Level1 caches fill the quote arrays.
type DataCache struct {
	Ticker     string
	Resolution Resolution
	From       time.Time
	To         time.Time

	DateTime  []time.Time
	Open      []float64
	High      []float64
	Low       []float64
	Close     []float64
	Volume    []float64
	Bid       []float64
	BidSize   []float64
	Ask       []float64
	AskSize   []float64
	Last      []float64
	LastSize  []float64
	Synthetic []bool
}

func NewDataCache(ticker string, resolution Resolution, from, to time.Time) *DataCache {
	return &DataCache{Ticker: ticker, Resolution: resolution, From: from, To: to}
}

func (c *DataCache) Count() int {
	if c == nil {
		return 0
	}
	return len(c.DateTime)
}

func (c *DataCache) AppendBar(b Bar) {
	c.DateTime = append(c.DateTime, b.DateTime)
	c.Open = append(c.Open, b.Open)
	c.High = append(c.High, b.High)
	c.Low = append(c.Low, b.Low)
	c.Close = append(c.Close, b.Close)
	c.Volume = append(c.Volume, b.Volume)
	c.Synthetic = append(c.Synthetic, b.Synthetic)
}

func (c *DataCache) AppendTick(t Level1Tick) {
	c.DateTime = append(c.DateTime, t.DateTime)
	c.Bid = append(c.Bid, t.Bid)
	c.BidSize = append(c.BidSize, t.BidSize)
	c.Ask = append(c.Ask, t.Ask)
	c.AskSize = append(c.AskSize, t.AskSize)
	c.Last = append(c.Last, t.Last)
	c.LastSize = append(c.LastSize, t.LastSize)
	c.Synthetic = append(c.Synthetic, t.Synthetic)
}

// Bar returns row i of a bar cache.
func (c *DataCache) Bar(i int) Bar {
	return Bar{
		DateTime:  c.DateTime[i],
		Open:      c.Open[i],
		High:      c.High[i],
		Low:       c.Low[i],
		Close:     c.Close[i],
		Volume:    c.Volume[i],
		Synthetic: c.Synthetic[i],
	}
}

// Tick returns row i of a Level1 cache.
func (c *DataCache) Tick(i int) Level1Tick {
	return Level1Tick{
		DateTime:  c.DateTime[i],
		Bid:       c.Bid[i],
		BidSize:   c.BidSize[i],
		Ask:       c.Ask[i],
		AskSize:   c.AskSize[i],
		Last:      c.Last[i],
		LastSize:  c.LastSize[i],
		Synthetic: c.Synthetic[i],
	}
}
