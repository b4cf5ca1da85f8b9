package feed

import (
	"slices"
	"time"

	"marketgraph/internal/domain/entity/marketdata"
)

// series stores bucketed rows; after reverse() index 0 is the most recent.
type series struct {
	dates     []time.Time
	open      []float64
	high      []float64
	low       []float64
	close     []float64
	volume    []float64
	bid       []float64
	bidSize   []float64
	ask       []float64
	askSize   []float64
	synthetic []bool
}

func (s *series) len() int {
	return len(s.dates)
}

func (s *series) reverse() {
	slices.Reverse(s.dates)
	slices.Reverse(s.open)
	slices.Reverse(s.high)
	slices.Reverse(s.low)
	slices.Reverse(s.close)
	slices.Reverse(s.volume)
	slices.Reverse(s.bid)
	slices.Reverse(s.bidSize)
	slices.Reverse(s.ask)
	slices.Reverse(s.askSize)
	slices.Reverse(s.synthetic)
}

type bucket struct {
	date      time.Time
	open      float64
	high      float64
	low       float64
	close     float64
	volume    float64
	bid       float64
	bidSize   float64
	ask       float64
	askSize   float64
	synthetic bool
	rows      int
}

func (s *series) push(b bucket) {
	s.dates = append(s.dates, b.date)
	s.open = append(s.open, b.open)
	s.high = append(s.high, b.high)
	s.low = append(s.low, b.low)
	s.close = append(s.close, b.close)
	s.volume = append(s.volume, b.volume)
	s.bid = append(s.bid, b.bid)
	s.bidSize = append(s.bidSize, b.bidSize)
	s.ask = append(s.ask, b.ask)
	s.askSize = append(s.askSize, b.askSize)
	s.synthetic = append(s.synthetic, b.synthetic)
}

// minuteOffset is the number of minutes the first bar lies past the last
// interval boundary counted from midnight.
func minuteOffset(t time.Time, interval int) int {
	return (t.Hour()*60 + t.Minute()) % interval
}

// resampleBars groups consecutive raw bars into buckets of interval bars.
// For minute data the first bucket is shortened so later buckets start on
// interval boundaries, and its label is floored to that boundary.
func resampleBars(cache *marketdata.DataCache, interval int) *series {
	out := &series{}
	n := cache.Count()
	if n == 0 {
		return out
	}
	size := interval
	var firstLabel time.Time
	if cache.Resolution == marketdata.ResolutionMinute && interval > 1 {
		first := cache.DateTime[0]
		if off := minuteOffset(first, interval); off != 0 {
			size = interval - off
			firstLabel = first.Truncate(time.Minute).Add(-time.Duration(off) * time.Minute)
		}
	}

	var cur bucket
	for i := 0; i < n; i++ {
		if cur.rows == 0 {
			cur = bucket{
				date:      cache.DateTime[i],
				open:      cache.Open[i],
				high:      cache.High[i],
				low:       cache.Low[i],
				close:     cache.Close[i],
				volume:    cache.Volume[i],
				synthetic: cache.Synthetic[i],
			}
			if i == 0 && !firstLabel.IsZero() {
				cur.date = firstLabel
			}
		} else {
			cur.high = max(cur.high, cache.High[i])
			cur.low = min(cur.low, cache.Low[i])
			cur.close = cache.Close[i]
			cur.volume += cache.Volume[i]
			cur.synthetic = cur.synthetic || cache.Synthetic[i]
		}
		cur.rows++
		if cur.rows == size {
			out.push(cur)
			cur = bucket{}
			size = interval
		}
	}
	if cur.rows > 0 {
		out.push(cur)
	}
	return out
}

// resampleTicks groups Level1 ticks. OHLC come from the last price,
// volume from the last size, and the quote of the final tick in a bucket
// wins.
func resampleTicks(cache *marketdata.DataCache, interval int, loc *time.Location) *series {
	out := &series{}
	n := cache.Count()
	var cur bucket
	for i := 0; i < n; i++ {
		at := cache.DateTime[i]
		if loc != nil {
			at = at.In(loc)
		}
		last := cache.Last[i]
		if cur.rows == 0 {
			cur = bucket{
				date:      at,
				open:      last,
				high:      last,
				low:       last,
				close:     last,
				volume:    cache.LastSize[i],
				synthetic: cache.Synthetic[i],
			}
		} else {
			cur.high = max(cur.high, last)
			cur.low = min(cur.low, last)
			cur.close = last
			cur.volume += cache.LastSize[i]
			cur.synthetic = cur.synthetic || cache.Synthetic[i]
		}
		cur.bid = cache.Bid[i]
		cur.bidSize = cache.BidSize[i]
		cur.ask = cache.Ask[i]
		cur.askSize = cache.AskSize[i]
		cur.rows++
		if cur.rows == interval {
			out.push(cur)
			cur = bucket{}
		}
	}
	if cur.rows > 0 {
		out.push(cur)
	}
	return out
}
