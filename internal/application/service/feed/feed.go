package feed

import (
	"fmt"
	"sync"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/marketdata"
)

type State string

const (
	StateLoaded    State = "loaded"
	StateIterating State = "iterating"
	StateExhausted State = "exhausted"
)

// Feed is a resampled, iterable view over price data. Bucket storage is
// ordered most recent first. The cursor is the position of the current
// bucket counted from the oldest one; a loaded feed sits on the oldest
// bucket and the first Next enters it, so a for f.Next() loop visits
// every bucket. Accessor index i returns the bucket i steps before the
// cursor, so index 0 is always the current bucket.
type Feed struct {
	params Params

	series *series
	count  int
	cursor int
	state  State

	mu sync.RWMutex
	to time.Time
}

// New resamples cache according to params.
func New(params Params, cache *marketdata.DataCache) (*Feed, error) {
	if err := params.Normalize(); err != nil {
		return nil, err
	}
	if cache == nil {
		cache = marketdata.NewDataCache(params.Ticker, params.Resolution, params.From, params.To)
	}
	var s *series
	switch {
	case params.Resolution == marketdata.ResolutionLevel1:
		s = resampleTicks(cache, params.Interval, params.Location)
	case params.Resolution.IsBar():
		s = resampleBars(cache, params.Interval)
	default:
		return nil, fmt.Errorf("%w: %s", marketdata.ErrNotImplemented, params.Resolution)
	}
	s.reverse()
	return &Feed{
		params: params,
		series: s,
		count:  s.len(),
		state:  StateLoaded,
		to:     params.To,
	}, nil
}

func (f *Feed) Params() Params {
	return f.params
}

func (f *Feed) Count() int {
	return f.count
}

func (f *Feed) Cursor() int {
	return f.cursor
}

func (f *Feed) State() State {
	return f.state
}

// To is the current upper bound; open-ended feeds raise it as newer data
// is stored.
func (f *Feed) To() time.Time {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.to
}

// Next moves to the next bucket forward in time and reports whether it
// moved. The first call after New or Reset enters the oldest bucket.
func (f *Feed) Next() bool {
	switch {
	case f.state == StateLoaded && f.count > 0:
		f.state = StateIterating
		return true
	case f.state == StateIterating && f.cursor < f.count-1:
		f.cursor++
		return true
	}
	f.state = StateExhausted
	return false
}

func (f *Feed) HasNext() bool {
	switch f.state {
	case StateLoaded:
		return f.count > 0
	case StateIterating:
		return f.cursor < f.count-1
	}
	return false
}

// Reset moves the cursor back to the oldest bucket.
func (f *Feed) Reset() {
	f.cursor = 0
	f.state = StateLoaded
}

func (f *Feed) index(i int) (int, error) {
	if f.count == 0 || i < 0 || i > f.cursor {
		return 0, fmt.Errorf("%w: %d (cursor %d, count %d)", marketdata.ErrOutOfRange, i, f.cursor, f.count)
	}
	return f.count - 1 - f.cursor + i, nil
}

func (f *Feed) DateTime(i int) (time.Time, error) {
	idx, err := f.index(i)
	if err != nil {
		return time.Time{}, err
	}
	return f.series.dates[idx], nil
}

func (f *Feed) Open(i int) (float64, error)    { return f.value(f.series.open, i) }
func (f *Feed) High(i int) (float64, error)    { return f.value(f.series.high, i) }
func (f *Feed) Low(i int) (float64, error)     { return f.value(f.series.low, i) }
func (f *Feed) Close(i int) (float64, error)   { return f.value(f.series.close, i) }
func (f *Feed) Volume(i int) (float64, error)  { return f.value(f.series.volume, i) }
func (f *Feed) Bid(i int) (float64, error)     { return f.value(f.series.bid, i) }
func (f *Feed) BidSize(i int) (float64, error) { return f.value(f.series.bidSize, i) }
func (f *Feed) Ask(i int) (float64, error)     { return f.value(f.series.ask, i) }
func (f *Feed) AskSize(i int) (float64, error) { return f.value(f.series.askSize, i) }

// Last and LastSize alias Close and Volume for Level1 feeds.
func (f *Feed) Last(i int) (float64, error)     { return f.value(f.series.close, i) }
func (f *Feed) LastSize(i int) (float64, error) { return f.value(f.series.volume, i) }

func (f *Feed) Synthetic(i int) (bool, error) {
	idx, err := f.index(i)
	if err != nil {
		return false, err
	}
	return f.series.synthetic[idx], nil
}

func (f *Feed) value(values []float64, i int) (float64, error) {
	idx, err := f.index(i)
	if err != nil {
		return 0, err
	}
	return values[idx], nil
}

// Point is one bucket exported for serialization.
type Point struct {
	DateTime  time.Time `json:"date_time"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
	Bid       float64   `json:"bid,omitempty"`
	BidSize   float64   `json:"bid_size,omitempty"`
	Ask       float64   `json:"ask,omitempty"`
	AskSize   float64   `json:"ask_size,omitempty"`
	Synthetic bool      `json:"synthetic,omitempty"`
}

// Points returns every bucket, most recent first, regardless of cursor.
func (f *Feed) Points() []Point {
	s := f.series
	out := make([]Point, f.count)
	for i := range out {
		out[i] = Point{
			DateTime:  s.dates[i],
			Open:      s.open[i],
			High:      s.high[i],
			Low:       s.low[i],
			Close:     s.close[i],
			Volume:    s.volume[i],
			Bid:       s.bid[i],
			BidSize:   s.bidSize[i],
			Ask:       s.ask[i],
			AskSize:   s.askSize[i],
			Synthetic: s.synthetic[i],
		}
	}
	return out
}

// OnChanges extends the upper bound of an open-ended feed when new data
// for its ticker and resolution overlaps or follows its range.
func (f *Feed) OnChanges(changes []notify.PriceChange) {
	if f.params.ToDateMode != marketdata.ToDateOpen {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, change := range changes {
		if change.Ticker != f.params.Ticker || change.Resolution != f.params.Resolution {
			continue
		}
		if f.params.Provider != "" && change.Provider != f.params.Provider {
			continue
		}
		if change.To.Before(f.params.From) {
			continue
		}
		if change.To.After(f.to) {
			f.to = change.To
		}
	}
}
