package feed

import (
	"testing"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/marketdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func minuteBars(start time.Time, n int) *marketdata.DataCache {
	cache := marketdata.NewDataCache("ABC", marketdata.ResolutionMinute, start, start.Add(time.Duration(n)*time.Minute))
	for i := 0; i < n; i++ {
		base := float64(i + 1)
		cache.AppendBar(marketdata.Bar{
			DateTime: start.Add(time.Duration(i) * time.Minute),
			Open:     base,
			High:     base + 0.5,
			Low:      base - 0.5,
			Close:    base + 0.25,
			Volume:   10,
		})
	}
	return cache
}

func params(res marketdata.Resolution, interval int, from, to time.Time) Params {
	return Params{Ticker: "abc", Resolution: res, Interval: interval, From: from, To: to}
}

func TestResampleAlignedMinuteBars(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 5, start, start.Add(time.Hour)), minuteBars(start, 10))
	require.NoError(t, err)
	require.Equal(t, 2, f.Count())

	points := f.Points()
	// Most recent bucket first.
	assert.Equal(t, start.Add(5*time.Minute), points[0].DateTime)
	assert.Equal(t, 6.0, points[0].Open)
	assert.Equal(t, 10.5, points[0].High)
	assert.Equal(t, 5.5, points[0].Low)
	assert.Equal(t, 10.25, points[0].Close)
	assert.Equal(t, 50.0, points[0].Volume)

	assert.Equal(t, start, points[1].DateTime)
	assert.Equal(t, 1.0, points[1].Open)
	assert.Equal(t, 5.5, points[1].High)
	assert.Equal(t, 0.5, points[1].Low)
	assert.Equal(t, 5.25, points[1].Close)
}

func TestResampleMisalignedMinuteBars(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 3, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 5, start, start.Add(time.Hour)), minuteBars(start, 7))
	require.NoError(t, err)
	require.Equal(t, 2, f.Count())

	points := f.Points()
	oldest := points[1]
	assert.Equal(t, time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC), oldest.DateTime)
	assert.Equal(t, 1.0, oldest.Open)
	assert.Equal(t, 2.25, oldest.Close)
	assert.Equal(t, 20.0, oldest.Volume)

	newest := points[0]
	assert.Equal(t, time.Date(2024, 1, 2, 10, 5, 0, 0, time.UTC), newest.DateTime)
	assert.Equal(t, 3.0, newest.Open)
	assert.Equal(t, 7.25, newest.Close)
	assert.Equal(t, 50.0, newest.Volume)
}

func TestResamplePartialLastBucketAndSynthetic(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	cache := marketdata.NewDataCache("ABC", marketdata.ResolutionDay, start, start.AddDate(0, 0, 5))
	for i := 0; i < 5; i++ {
		cache.AppendBar(marketdata.Bar{
			DateTime:  start.AddDate(0, 0, i),
			Open:      1,
			High:      2,
			Low:       1,
			Close:     2,
			Volume:    1,
			Synthetic: i == 1,
		})
	}
	f, err := New(params(marketdata.ResolutionDay, 2, start, start.AddDate(0, 0, 5)), cache)
	require.NoError(t, err)
	require.Equal(t, 3, f.Count())

	points := f.Points()
	assert.Equal(t, 1.0, points[0].Volume)
	assert.False(t, points[1].Synthetic)
	assert.True(t, points[2].Synthetic)
}

func TestIntervalOnePassesThrough(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 3, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 1, start, start.Add(time.Hour)), minuteBars(start, 3))
	require.NoError(t, err)
	require.Equal(t, 3, f.Count())
	assert.Equal(t, start.Add(2*time.Minute), f.Points()[0].DateTime)
}

func TestCursorAndLookback(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 1, start, start.Add(time.Hour)), minuteBars(start, 3))
	require.NoError(t, err)
	assert.Equal(t, StateLoaded, f.State())

	at, err := f.DateTime(0)
	require.NoError(t, err)
	assert.Equal(t, start, at)
	_, err = f.Close(1)
	assert.ErrorIs(t, err, marketdata.ErrOutOfRange)

	require.True(t, f.HasNext())
	require.True(t, f.Next())
	assert.Equal(t, StateIterating, f.State())
	assert.Equal(t, 0, f.Cursor())
	current, err := f.Open(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, current)

	require.True(t, f.Next())
	current, err = f.Open(0)
	require.NoError(t, err)
	assert.Equal(t, 2.0, current)
	previous, err := f.Open(1)
	require.NoError(t, err)
	assert.Equal(t, 1.0, previous)

	require.True(t, f.Next())
	assert.False(t, f.HasNext())
	assert.False(t, f.Next())
	assert.Equal(t, StateExhausted, f.State())

	oldest, err := f.Open(2)
	require.NoError(t, err)
	assert.Equal(t, 1.0, oldest)
	_, err = f.Open(-1)
	assert.ErrorIs(t, err, marketdata.ErrOutOfRange)

	f.Reset()
	assert.Equal(t, 0, f.Cursor())
	assert.Equal(t, StateLoaded, f.State())
	assert.True(t, f.HasNext())
}

func TestNextVisitsEveryBucketOldestFirst(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 1, start, start.Add(time.Hour)), minuteBars(start, 5))
	require.NoError(t, err)
	require.Equal(t, 5, f.Count())

	var opens []float64
	for f.Next() {
		open, err := f.Open(0)
		require.NoError(t, err)
		opens = append(opens, open)
	}
	assert.Equal(t, []float64{1, 2, 3, 4, 5}, opens)
	assert.Equal(t, StateExhausted, f.State())

	f.Reset()
	for i := 0; i < 4; i++ {
		require.True(t, f.Next())
	}
	require.Equal(t, 3, f.Cursor())
	for i := 0; i <= 3; i++ {
		open, err := f.Open(i)
		require.NoError(t, err, "index %d", i)
		assert.Equal(t, float64(4-i), open)
	}
	_, err = f.Open(4)
	assert.ErrorIs(t, err, marketdata.ErrOutOfRange)
}

func TestSingleBucketFeedIterates(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionMinute, 1, start, start.Add(time.Hour)), minuteBars(start, 1))
	require.NoError(t, err)
	require.Equal(t, 1, f.Count())

	assert.True(t, f.HasNext())
	require.True(t, f.Next())
	open, err := f.Open(0)
	require.NoError(t, err)
	assert.Equal(t, 1.0, open)
	assert.False(t, f.HasNext())
	assert.False(t, f.Next())
}

func TestEmptyFeed(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionDay, 1, start, start), nil)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Count())
	assert.False(t, f.HasNext())
	_, err = f.Close(0)
	assert.ErrorIs(t, err, marketdata.ErrOutOfRange)
}

func TestInvalidParams(t *testing.T) {
	start := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	_, err := New(params(marketdata.ResolutionDay, 0, start, start), nil)
	assert.ErrorIs(t, err, marketdata.ErrInvalidInterval)

	_, err = New(params(marketdata.ResolutionDay, 1, start, start.Add(-time.Hour)), nil)
	assert.ErrorIs(t, err, marketdata.ErrInvalidRange)

	_, err = New(params(marketdata.ResolutionLevel2, 1, start, start), nil)
	assert.ErrorIs(t, err, marketdata.ErrNotImplemented)
}

func tickCache(start time.Time) *marketdata.DataCache {
	cache := marketdata.NewDataCache("ABC", marketdata.ResolutionLevel1, start, start.Add(time.Minute))
	for i, last := range []float64{10, 12, 9, 11} {
		cache.AppendTick(marketdata.Level1Tick{
			DateTime: start.Add(time.Duration(i) * time.Second),
			Bid:      last - 0.1,
			BidSize:  float64(100 + i),
			Ask:      last + 0.1,
			AskSize:  float64(200 + i),
			Last:     last,
			LastSize: 5,
		})
	}
	return cache
}

func TestLevel1Resample(t *testing.T) {
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	f, err := New(params(marketdata.ResolutionLevel1, 4, start, start.Add(time.Minute)), tickCache(start))
	require.NoError(t, err)
	require.Equal(t, 1, f.Count())

	p := f.Points()[0]
	assert.Equal(t, 10.0, p.Open)
	assert.Equal(t, 12.0, p.High)
	assert.Equal(t, 9.0, p.Low)
	assert.Equal(t, 11.0, p.Close)
	assert.Equal(t, 20.0, p.Volume)
	assert.InDelta(t, 10.9, p.Bid, 1e-9)
	assert.Equal(t, 203.0, p.AskSize)
}

func TestLevel1TimeZoneConversion(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	start := time.Date(2024, 1, 2, 14, 30, 0, 0, time.UTC)
	p := params(marketdata.ResolutionLevel1, 1, start, start.Add(time.Minute))
	p.Location = ny

	f, err := New(p, tickCache(start))
	require.NoError(t, err)
	require.Equal(t, 4, f.Count())

	at, err := f.DateTime(0)
	require.NoError(t, err)
	assert.Equal(t, 9, at.Hour())
	assert.Equal(t, ny, at.Location())
	last, err := f.Last(0)
	require.NoError(t, err)
	assert.Equal(t, 10.0, last)
}

func TestOpenEndedFeedExtendsTo(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	p := params(marketdata.ResolutionMinute, 1, start, end)
	p.ToDateMode = marketdata.ToDateOpen
	f, err := New(p, minuteBars(start, 3))
	require.NoError(t, err)

	later := end.Add(30 * time.Minute)
	f.OnChanges([]notify.PriceChange{
		{Ticker: "XYZ", Resolution: marketdata.ResolutionMinute, From: end, To: later.Add(time.Hour)},
		{Ticker: "ABC", Resolution: marketdata.ResolutionHour, From: end, To: later.Add(time.Hour)},
		{Ticker: "ABC", Resolution: marketdata.ResolutionMinute, From: end, To: later},
	})
	assert.Equal(t, later, f.To())

	pinned, err := New(params(marketdata.ResolutionMinute, 1, start, end), minuteBars(start, 3))
	require.NoError(t, err)
	pinned.OnChanges([]notify.PriceChange{{Ticker: "ABC", Resolution: marketdata.ResolutionMinute, From: end, To: later}})
	assert.Equal(t, end, pinned.To())
}

func TestParamsEqual(t *testing.T) {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	a := params(marketdata.ResolutionMinute, 5, start, start.Add(time.Hour))
	b := params(marketdata.ResolutionMinute, 5, start.In(time.FixedZone("X", 3600)), start.Add(time.Hour))
	require.NoError(t, a.Normalize())
	require.NoError(t, b.Normalize())
	assert.True(t, a.Equal(b))

	b.Interval = 10
	assert.False(t, a.Equal(b))
}
