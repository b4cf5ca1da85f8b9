package invest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketgraph/internal/config"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/domain/interfaces"

	investgo "github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"
	"github.com/sirupsen/logrus"
)

var (
	_ interfaces.DataProvider = (*Provider)(nil)

	ErrNotConnected = errors.New("invest provider is not connected")
)

const orderBookDepth = 1

// Provider streams minute bars and Level1 quotes from the Invest API and
// downloads historical candles on request.
type Provider struct {
	cfg    config.InvestConfig
	name   string
	logger *logrus.Entry

	mu        sync.Mutex
	ctx       context.Context
	cancel    context.CancelFunc
	client    *investgo.Client
	stream    *investgo.MarketDataStream
	callbacks interfaces.ProviderCallbacks

	// subscribed id (uid or FIGI) -> ticker, per streamed resolution
	bars    map[string]string
	quotes  map[string]string
	book    quoteBook
	pumping map[marketdata.Resolution]bool

	wg sync.WaitGroup
}

func NewProvider(cfg config.InvestConfig, name string, logger *logrus.Logger) *Provider {
	return &Provider{
		cfg:     cfg,
		name:    name,
		logger:  logger.WithFields(logrus.Fields{"component": "invest", "provider": name}),
		bars:    make(map[string]string),
		quotes:  make(map[string]string),
		book:    make(quoteBook),
		pumping: make(map[marketdata.Resolution]bool),
	}
}

func (p *Provider) Name() string { return p.name }

func (p *Provider) SetCallbacks(callbacks interfaces.ProviderCallbacks) {
	p.mu.Lock()
	p.callbacks = callbacks
	p.mu.Unlock()
}

// Connect opens the API client and the market data stream. The stream is
// read until Disconnect.
func (p *Provider) Connect(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		return nil
	}

	client, err := investgo.NewClient(ctx, investgo.Config{
		EndPoint:           p.cfg.Endpoint,
		Token:              p.cfg.Token,
		AppName:            p.cfg.AppName,
		InsecureSkipVerify: p.cfg.SkipTLSVerify,
	}, p.logger.Logger)
	if err != nil {
		return fmt.Errorf("create invest api client: %w", err)
	}
	stream, err := client.NewMarketDataStreamClient().MarketDataStream()
	if err != nil {
		_ = client.Stop()
		return fmt.Errorf("create market data stream: %w", err)
	}

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.client = client
	p.stream = stream

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		if err := stream.Listen(); err != nil {
			p.logger.WithError(err).Warn("market data stream stopped")
		}
	}()

	p.logger.WithField("endpoint", p.cfg.Endpoint).Info("connected")
	return nil
}

func (p *Provider) Disconnect(ctx context.Context) error {
	p.mu.Lock()
	client, stream, cancel := p.client, p.stream, p.cancel
	p.client, p.stream, p.cancel = nil, nil, nil
	clear(p.bars)
	clear(p.quotes)
	clear(p.book)
	clear(p.pumping)
	p.mu.Unlock()
	if client == nil {
		return nil
	}

	cancel()
	stream.Stop()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("disconnect: workers still running")
	}

	if err := client.Stop(); err != nil {
		return fmt.Errorf("stop invest api client: %w", err)
	}
	p.logger.Info("disconnected")
	return nil
}

// RequestHistorical downloads candles in the background. Results and
// failures are reported through the callbacks.
func (p *Provider) RequestHistorical(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution, from, to time.Time) error {
	interval, err := candleInterval(resolution)
	if err != nil {
		return err
	}
	p.mu.Lock()
	client, runCtx := p.client, p.ctx
	p.mu.Unlock()
	if client == nil {
		return ErrNotConnected
	}

	ticker, id := instrument.Ticker, instrumentID(instrument)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		candles, err := client.NewMarketDataServiceClient().GetHistoricCandles(&investgo.GetHistoricCandlesRequest{
			Instrument: id,
			Interval:   interval,
			From:       from.UTC(),
			To:         to.UTC(),
		})
		p.deliverHistorical(runCtx, ticker, resolution, from, to, candles, err)
	}()
	return nil
}

func (p *Provider) deliverHistorical(ctx context.Context, ticker string, resolution marketdata.Resolution, from, to time.Time, candles []*pb.HistoricCandle, err error) {
	cb := p.currentCallbacks()
	if cb == nil {
		return
	}
	if err != nil {
		cb.OnRequestError(ctx, p.name, ticker, fmt.Errorf("historic candles: %w", err))
		return
	}
	bars := make([]marketdata.Bar, 0, len(candles))
	for _, c := range candles {
		if bar, ok := historicToBar(c); ok {
			bars = append(bars, bar)
		}
	}
	if len(bars) > 0 {
		if err := cb.OnHistoricalData(ctx, p.name, ticker, resolution, bars); err != nil {
			cb.OnRequestError(ctx, p.name, ticker, err)
			return
		}
	}
	cb.OnDownloadComplete(ctx, p.name, ticker, resolution, from, to)
}

// Subscribe starts streaming minute bars or Level1 quotes for the
// instrument.
func (p *Provider) Subscribe(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream == nil {
		return ErrNotConnected
	}
	id := instrumentID(instrument)
	ids := []string{id}
	runCtx := p.ctx

	switch resolution {
	case marketdata.ResolutionMinute:
		ch, err := p.stream.SubscribeCandle(ids, pb.SubscriptionInterval_SUBSCRIPTION_INTERVAL_ONE_MINUTE, true, nil)
		if err != nil {
			return fmt.Errorf("subscribe candles: %w", err)
		}
		p.bars[id] = instrument.Ticker
		p.startPumpLocked(resolution, func() { p.pumpCandles(runCtx, ch) })
	case marketdata.ResolutionLevel1:
		books, err := p.stream.SubscribeOrderBook(ids, orderBookDepth)
		if err != nil {
			return fmt.Errorf("subscribe order books: %w", err)
		}
		trades, err := p.stream.SubscribeTrade(ids, pb.TradeSourceType_TRADE_SOURCE_EXCHANGE, false)
		if err != nil {
			return fmt.Errorf("subscribe trades: %w", err)
		}
		p.quotes[id] = instrument.Ticker
		p.startPumpLocked(resolution, func() { p.pumpQuotes(runCtx, books, trades) })
	default:
		return fmt.Errorf("%w: real-time %s", marketdata.ErrNotImplemented, resolution)
	}

	p.logger.WithFields(logrus.Fields{
		"ticker":     instrument.Ticker,
		"uid":        id,
		"resolution": resolution,
	}).Info("subscribed")
	return nil
}

// Unsubscribe stops forwarding updates for the instrument. The stream
// subscription itself ends with Disconnect.
func (p *Provider) Unsubscribe(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := instrumentID(instrument)
	switch resolution {
	case marketdata.ResolutionMinute:
		delete(p.bars, id)
	case marketdata.ResolutionLevel1:
		delete(p.quotes, id)
		delete(p.book, id)
	default:
		return fmt.Errorf("%w: real-time %s", marketdata.ErrNotImplemented, resolution)
	}
	return nil
}

func (p *Provider) startPumpLocked(resolution marketdata.Resolution, pump func()) {
	if p.pumping[resolution] {
		return
	}
	p.pumping[resolution] = true
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		pump()
	}()
}

func (p *Provider) currentCallbacks() interfaces.ProviderCallbacks {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.callbacks
}

// subscribed matches a stream message by instrument uid or FIGI and
// returns the ticker and the id it was subscribed under.
func (p *Provider) subscribed(set map[string]string, uid, figi string) (string, string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, id := range []string{uid, figi} {
		if ticker, ok := set[id]; ok && id != "" {
			return ticker, id, true
		}
	}
	return "", "", false
}

func (p *Provider) pumpCandles(ctx context.Context, stream <-chan *pb.Candle) {
	for {
		select {
		case <-ctx.Done():
			return
		case candle, ok := <-stream:
			if !ok {
				return
			}
			ticker, _, tracked := p.subscribed(p.bars, candle.GetInstrumentUid(), candle.GetFigi())
			if !tracked {
				continue
			}
			bar, ok := candleToBar(candle)
			if !ok {
				p.logger.WithField("ticker", ticker).Warn("skip candle without time")
				continue
			}
			p.forward(ctx, ticker, marketdata.ResolutionMinute, []marketdata.Bar{bar}, nil)
		}
	}
}

func (p *Provider) pumpQuotes(ctx context.Context, books <-chan *pb.OrderBook, trades <-chan *pb.Trade) {
	for books != nil || trades != nil {
		var (
			ticker string
			tick   marketdata.Level1Tick
			ok     bool
		)
		select {
		case <-ctx.Done():
			return
		case ob, open := <-books:
			if !open {
				books = nil
				continue
			}
			var key string
			if ticker, key, ok = p.subscribed(p.quotes, ob.GetInstrumentUid(), ob.GetFigi()); !ok {
				continue
			}
			p.mu.Lock()
			tick, ok = p.book.applyOrderBook(key, ob)
			p.mu.Unlock()
		case tr, open := <-trades:
			if !open {
				trades = nil
				continue
			}
			var key string
			if ticker, key, ok = p.subscribed(p.quotes, tr.GetInstrumentUid(), tr.GetFigi()); !ok {
				continue
			}
			p.mu.Lock()
			tick, ok = p.book.applyTrade(key, tr)
			p.mu.Unlock()
		}
		if !ok {
			continue
		}
		p.forward(ctx, ticker, marketdata.ResolutionLevel1, nil, []marketdata.Level1Tick{tick})
	}
}

func (p *Provider) forward(ctx context.Context, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) {
	cb := p.currentCallbacks()
	if cb == nil {
		return
	}
	if err := cb.OnRealTimeUpdate(ctx, p.name, ticker, resolution, bars, ticks); err != nil {
		p.logger.WithError(err).WithFields(logrus.Fields{
			"ticker":     ticker,
			"resolution": resolution,
		}).Warn("real-time update rejected")
	}
}
