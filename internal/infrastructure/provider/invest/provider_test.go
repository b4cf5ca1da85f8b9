package invest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketgraph/internal/config"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"

	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/types/known/timestamppb"
)

type update struct {
	ticker     string
	resolution marketdata.Resolution
	bars       []marketdata.Bar
	ticks      []marketdata.Level1Tick
}

type recorder struct {
	mu         sync.Mutex
	updates    []update
	historical []marketdata.Bar
	completed  int
	failures   []error
}

func (r *recorder) OnHistoricalData(_ context.Context, _, _ string, _ marketdata.Resolution, bars []marketdata.Bar) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.historical = append(r.historical, bars...)
	return nil
}

func (r *recorder) OnDownloadComplete(context.Context, string, string, marketdata.Resolution, time.Time, time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed++
}

func (r *recorder) OnRealTimeUpdate(_ context.Context, _, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, update{ticker, resolution, bars, ticks})
	return nil
}

func (r *recorder) OnRequestError(_ context.Context, _, _ string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, err)
}

func newTestProvider(t *testing.T) (*Provider, *recorder) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	p := NewProvider(config.InvestConfig{}, "invest", logger)
	rec := &recorder{}
	p.SetCallbacks(rec)
	return p, rec
}

func quotation(units int64, nano int32) *pb.Quotation {
	return &pb.Quotation{Units: units, Nano: nano}
}

func TestCandleInterval(t *testing.T) {
	got, err := candleInterval(marketdata.ResolutionHour)
	require.NoError(t, err)
	assert.Equal(t, pb.CandleInterval_CANDLE_INTERVAL_HOUR, got)

	_, err = candleInterval(marketdata.ResolutionLevel1)
	assert.ErrorIs(t, err, marketdata.ErrNotImplemented)
}

func TestInstrumentIDPrefersUID(t *testing.T) {
	inst := &refdata.Instrument{Ticker: "SBER"}
	assert.Equal(t, "SBER", instrumentID(inst))

	inst.ExtendedProperties.Set(InstrumentUIDKey, refdata.StringValue("e6123145-9665-43e0-8413-cd61b8aa9b13"))
	assert.Equal(t, "e6123145-9665-43e0-8413-cd61b8aa9b13", instrumentID(inst))
}

func TestHistoricToBar(t *testing.T) {
	ts := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	bar, ok := historicToBar(&pb.HistoricCandle{
		Open:   quotation(100, 0),
		High:   quotation(102, 500000000),
		Low:    quotation(99, 0),
		Close:  quotation(101, 250000000),
		Volume: 1200,
		Time:   timestamppb.New(ts),
	})
	require.True(t, ok)
	assert.Equal(t, ts, bar.DateTime)
	assert.InDelta(t, 102.5, bar.High, 1e-9)
	assert.InDelta(t, 101.25, bar.Close, 1e-9)
	assert.Equal(t, 1200.0, bar.Volume)

	_, ok = historicToBar(&pb.HistoricCandle{})
	assert.False(t, ok)
}

func TestQuoteBookMergesBookAndTrades(t *testing.T) {
	book := make(quoteBook)
	t0 := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	tick, ok := book.applyOrderBook("uid-1", &pb.OrderBook{
		InstrumentUid: "uid-1",
		Bids:          []*pb.Order{{Price: quotation(10, 0), Quantity: 5}},
		Asks:          []*pb.Order{{Price: quotation(10, 100000000), Quantity: 7}},
		Time:          timestamppb.New(t0),
	})
	require.True(t, ok)
	assert.Equal(t, 10.0, tick.Bid)
	assert.InDelta(t, 10.1, tick.Ask, 1e-9)

	tick, ok = book.applyTrade("uid-1", &pb.Trade{
		InstrumentUid: "uid-1",
		Price:         quotation(10, 50000000),
		Quantity:      3,
		Time:          timestamppb.New(t0.Add(time.Second)),
	})
	require.True(t, ok)
	assert.Equal(t, t0.Add(time.Second), tick.DateTime)
	assert.Equal(t, 10.0, tick.Bid)
	assert.InDelta(t, 10.05, tick.Last, 1e-9)
	assert.Equal(t, 3.0, tick.LastSize)

	_, ok = book.applyTrade("uid-1", &pb.Trade{Price: quotation(1, 0)})
	assert.False(t, ok)
}

func TestPumpCandlesForwardsSubscribedOnly(t *testing.T) {
	p, rec := newTestProvider(t)
	p.bars["uid-1"] = "SBER"
	p.bars["BBG004730RP0"] = "GAZP"

	ts := timestamppb.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	ch := make(chan *pb.Candle, 4)
	ch <- &pb.Candle{InstrumentUid: "uid-1", Close: quotation(250, 0), Time: ts}
	ch <- &pb.Candle{InstrumentUid: "uid-2", Close: quotation(1, 0), Time: ts}
	ch <- &pb.Candle{InstrumentUid: "uid-1"}
	ch <- &pb.Candle{InstrumentUid: "uid-3", Figi: "BBG004730RP0", Close: quotation(160, 0), Time: ts}
	close(ch)

	p.pumpCandles(context.Background(), ch)

	require.Len(t, rec.updates, 2)
	assert.Equal(t, "GAZP", rec.updates[1].ticker)
	assert.Equal(t, "SBER", rec.updates[0].ticker)
	assert.Equal(t, marketdata.ResolutionMinute, rec.updates[0].resolution)
	assert.Equal(t, 250.0, rec.updates[0].bars[0].Close)
}

func TestPumpQuotesStopsAfterUnsubscribe(t *testing.T) {
	p, rec := newTestProvider(t)
	p.quotes["uid-1"] = "GAZP"
	inst := &refdata.Instrument{Ticker: "GAZP"}
	inst.ExtendedProperties.Set(InstrumentUIDKey, refdata.StringValue("uid-1"))

	ts := timestamppb.New(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))
	books := make(chan *pb.OrderBook, 1)
	trades := make(chan *pb.Trade, 1)
	books <- &pb.OrderBook{InstrumentUid: "uid-1", Bids: []*pb.Order{{Price: quotation(150, 0), Quantity: 1}}, Time: ts}
	close(books)

	done := make(chan struct{})
	go func() {
		p.pumpQuotes(context.Background(), books, trades)
		close(done)
	}()

	require.Eventually(t, func() bool {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		return len(rec.updates) == 1
	}, time.Second, 10*time.Millisecond)

	require.NoError(t, p.Unsubscribe(context.Background(), inst, marketdata.ResolutionLevel1))
	trades <- &pb.Trade{InstrumentUid: "uid-1", Price: quotation(151, 0), Quantity: 1, Time: ts}
	close(trades)
	<-done

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.updates, 1)
	assert.Equal(t, marketdata.ResolutionLevel1, rec.updates[0].resolution)
	assert.Equal(t, 150.0, rec.updates[0].ticks[0].Bid)
}

func TestDeliverHistorical(t *testing.T) {
	p, rec := newTestProvider(t)
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(time.Hour)

	p.deliverHistorical(context.Background(), "SBER", marketdata.ResolutionMinute, from, to, []*pb.HistoricCandle{
		{Close: quotation(1, 0), Time: timestamppb.New(from)},
		{Close: quotation(2, 0), Time: timestamppb.New(from.Add(time.Minute))},
	}, nil)
	assert.Len(t, rec.historical, 2)
	assert.Equal(t, 1, rec.completed)

	p.deliverHistorical(context.Background(), "SBER", marketdata.ResolutionMinute, from, to, nil, errors.New("rate limited"))
	require.Len(t, rec.failures, 1)
	assert.ErrorContains(t, rec.failures[0], "rate limited")
	assert.Equal(t, 1, rec.completed)
}

func TestRequiresConnection(t *testing.T) {
	p, _ := newTestProvider(t)
	inst := &refdata.Instrument{Ticker: "SBER"}

	err := p.Subscribe(context.Background(), inst, marketdata.ResolutionMinute)
	assert.ErrorIs(t, err, ErrNotConnected)

	err = p.RequestHistorical(context.Background(), inst, marketdata.ResolutionDay, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, ErrNotConnected)

	err = p.RequestHistorical(context.Background(), inst, marketdata.ResolutionLevel1, time.Now().Add(-time.Hour), time.Now())
	assert.ErrorIs(t, err, marketdata.ErrNotImplemented)

	assert.NoError(t, p.Disconnect(context.Background()))
}
