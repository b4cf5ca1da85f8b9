package broker

import (
	"context"
	"sync"
	"testing"
	"time"

	"marketgraph/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flush struct {
	provider   string
	ticker     string
	resolution marketdata.Resolution
	bars       []marketdata.Bar
	ticks      []marketdata.Level1Tick
}

type recordingSink struct {
	mu      sync.Mutex
	flushes []flush
}

func (s *recordingSink) OnRealTimeUpdate(_ context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushes = append(s.flushes, flush{provider, ticker, resolution, bars, ticks})
	return nil
}

func (s *recordingSink) snapshot() []flush {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]flush(nil), s.flushes...)
}

func barsAt(n int) []marketdata.Bar {
	start := time.Date(2024, 1, 2, 10, 0, 0, 0, time.UTC)
	out := make([]marketdata.Bar, n)
	for i := range out {
		out[i] = marketdata.Bar{DateTime: start.Add(time.Duration(i) * time.Minute), Close: float64(i)}
	}
	return out
}

func newWriter(t *testing.T, cfg BatchConfig) (*BatchWriter, *recordingSink) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	sink := &recordingSink{}
	w := NewBatchWriter(cfg, sink, logger)
	w.Run(context.Background())
	return w, sink
}

func TestBatchWriterFlushesAtSize(t *testing.T) {
	w, sink := newWriter(t, BatchConfig{Size: 3})

	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionMinute, Bars: barsAt(2)}))
	assert.Empty(t, sink.snapshot())

	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionMinute, Bars: barsAt(1)}))
	flushes := sink.snapshot()
	require.Len(t, flushes, 1)
	assert.Equal(t, "SBER", flushes[0].ticker)
	assert.Equal(t, marketdata.ResolutionMinute, flushes[0].resolution)
	assert.Len(t, flushes[0].bars, 3)
	assert.Nil(t, flushes[0].ticks)
}

func TestBatchWriterKeepsSeriesApart(t *testing.T) {
	w, sink := newWriter(t, BatchConfig{Size: 2})

	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionMinute, Bars: barsAt(1)}))
	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "GAZP", Resolution: marketdata.ResolutionMinute, Bars: barsAt(1)}))
	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionHour, Bars: barsAt(1)}))
	assert.Empty(t, sink.snapshot())

	require.NoError(t, w.Stop(context.Background()))
	flushes := sink.snapshot()
	require.Len(t, flushes, 3)
	for _, f := range flushes {
		assert.Len(t, f.bars, 1)
	}
}

func TestBatchWriterFlushesOnTimeout(t *testing.T) {
	w, sink := newWriter(t, BatchConfig{Size: 100, Timeout: 20 * time.Millisecond})

	tick := marketdata.Level1Tick{DateTime: time.Now().UTC(), Bid: 1, Ask: 2}
	require.NoError(t, w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionLevel1, Ticks: []marketdata.Level1Tick{tick}}))

	require.Eventually(t, func() bool { return len(sink.snapshot()) == 1 }, time.Second, 5*time.Millisecond)
	f := sink.snapshot()[0]
	assert.Equal(t, marketdata.ResolutionLevel1, f.resolution)
	assert.Len(t, f.ticks, 1)
	assert.Nil(t, f.bars)
}

func TestBatchWriterRequiresRun(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewBatchWriter(BatchConfig{Size: 1}, &recordingSink{}, logger)

	err := w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionMinute, Bars: barsAt(1)})
	assert.ErrorContains(t, err, "not running")
	assert.Error(t, w.Add(nil))
}

func TestBatchWriterRejectsAfterCancel(t *testing.T) {
	logger, _ := test.NewNullLogger()
	w := NewBatchWriter(BatchConfig{Size: 10}, &recordingSink{}, logger)
	ctx, cancel := context.WithCancel(context.Background())
	w.Run(ctx)
	cancel()

	err := w.Add(&PriceMessage{Provider: "Invest", Ticker: "SBER", Resolution: marketdata.ResolutionMinute, Bars: barsAt(1)})
	assert.ErrorIs(t, err, context.Canceled)
}
