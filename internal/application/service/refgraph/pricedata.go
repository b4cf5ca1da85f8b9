package refgraph

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/domain/interfaces"

	"github.com/sirupsen/logrus"
)

var _ interfaces.ProviderCallbacks = (*Manager)(nil)

// AttachDataProvider plugs a market data source into the manager and
// routes its callbacks here.
func (m *Manager) AttachDataProvider(source interfaces.DataProvider) {
	m.mu.Lock()
	m.source = source
	m.mu.Unlock()
	if source != nil {
		source.SetCallbacks(m)
	}
}

func (m *Manager) dataSource() (interfaces.DataProvider, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.source == nil {
		return nil, fmt.Errorf("%w: no data provider attached", refdata.ErrInvalidProvider)
	}
	return m.source, nil
}

// RequestHistorical asks the attached provider for bars; results arrive
// through OnHistoricalData and OnDownloadComplete.
func (m *Manager) RequestHistorical(ctx context.Context, ticker string, resolution marketdata.Resolution, from, to time.Time) error {
	if from.After(to) {
		return fmt.Errorf("%w: %s > %s", marketdata.ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if !resolution.IsBar() {
		return fmt.Errorf("%w: historical %s", marketdata.ErrNotImplemented, resolution)
	}
	source, err := m.dataSource()
	if err != nil {
		return err
	}
	inst, err := m.FindInstrument(ctx, ticker)
	if err != nil {
		return err
	}
	return source.RequestHistorical(ctx, inst, resolution, from, to)
}

func (m *Manager) Subscribe(ctx context.Context, ticker string, resolution marketdata.Resolution) error {
	source, err := m.dataSource()
	if err != nil {
		return err
	}
	inst, err := m.FindInstrument(ctx, ticker)
	if err != nil {
		return err
	}
	return source.Subscribe(ctx, inst, resolution)
}

func (m *Manager) Unsubscribe(ctx context.Context, ticker string, resolution marketdata.Resolution) error {
	source, err := m.dataSource()
	if err != nil {
		return err
	}
	inst, err := m.FindInstrument(ctx, ticker)
	if err != nil {
		return err
	}
	return source.Unsubscribe(ctx, inst, resolution)
}

// priceTarget resolves the provider and primary ticker a price write goes
// to. Unknown tickers are stored under their normalized form.
func (m *Manager) priceTarget(ctx context.Context, provider, ticker string) (string, string, error) {
	if provider == "" {
		m.mu.Lock()
		provider, _ = m.requireProviderLocked()
		m.mu.Unlock()
	}
	if err := refdata.ValidateProviderName(provider); err != nil {
		return "", "", err
	}
	primary := refdata.NormalizeTicker(ticker)
	if primary == "" {
		return "", "", fmt.Errorf("ticker is required")
	}
	err := m.read(ctx, func(g *graph) error {
		if inst, ok := g.instrument(primary); ok {
			primary = inst.Ticker
		}
		return nil
	})
	return provider, primary, err
}

// UpsertBars stores bars for the provider (the active one when empty) and
// announces the covered range.
func (m *Manager) UpsertBars(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error {
	change, err := m.upsertBars(ctx, provider, ticker, resolution, bars, false)
	if err != nil || change == nil {
		return err
	}
	m.publish(emission{price: []notify.PriceChange{*change}})
	return nil
}

func (m *Manager) upsertBars(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, realTime bool) (*notify.PriceChange, error) {
	if !resolution.IsBar() {
		return nil, fmt.Errorf("%w: bars for %s", marketdata.ErrNotImplemented, resolution)
	}
	if len(bars) == 0 {
		return nil, nil
	}
	provider, primary, err := m.priceTarget(ctx, provider, ticker)
	if err != nil {
		return nil, err
	}
	err = m.store.UpsertBars(ctx, provider, primary, resolution, bars)
	m.metrics.StoreOperation("upsert_bars", err)
	if err != nil {
		return nil, fmt.Errorf("upsert bars: %w", err)
	}
	from, to := bars[0].DateTime, bars[0].DateTime
	for _, b := range bars[1:] {
		from, to = minTime(from, b.DateTime), maxTime(to, b.DateTime)
	}
	return &notify.PriceChange{
		Provider:   provider,
		Ticker:     primary,
		Resolution: resolution,
		From:       from,
		To:         to,
		Count:      len(bars),
		RealTime:   realTime,
	}, nil
}

func (m *Manager) UpsertTicks(ctx context.Context, provider, ticker string, ticks []marketdata.Level1Tick) error {
	change, err := m.upsertTicks(ctx, provider, ticker, ticks, false)
	if err != nil || change == nil {
		return err
	}
	m.publish(emission{price: []notify.PriceChange{*change}})
	return nil
}

func (m *Manager) upsertTicks(ctx context.Context, provider, ticker string, ticks []marketdata.Level1Tick, realTime bool) (*notify.PriceChange, error) {
	if len(ticks) == 0 {
		return nil, nil
	}
	provider, primary, err := m.priceTarget(ctx, provider, ticker)
	if err != nil {
		return nil, err
	}
	err = m.store.UpsertTicks(ctx, provider, primary, ticks)
	m.metrics.StoreOperation("upsert_ticks", err)
	if err != nil {
		return nil, fmt.Errorf("upsert ticks: %w", err)
	}
	from, to := ticks[0].DateTime, ticks[0].DateTime
	for _, t := range ticks[1:] {
		from, to = minTime(from, t.DateTime), maxTime(to, t.DateTime)
	}
	return &notify.PriceChange{
		Provider:   provider,
		Ticker:     primary,
		Resolution: marketdata.ResolutionLevel1,
		From:       from,
		To:         to,
		Count:      len(ticks),
		RealTime:   realTime,
	}, nil
}

// DeletePriceData removes stored rows of the active provider in
// [from, to] and returns how many went.
func (m *Manager) DeletePriceData(ctx context.Context, ticker string, resolution marketdata.Resolution, from, to time.Time) (int64, error) {
	if from.After(to) {
		return 0, fmt.Errorf("%w: %s > %s", marketdata.ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if _, err := resolution.TableSuffix(); err != nil {
		return 0, err
	}
	provider, primary, err := m.priceTarget(ctx, "", ticker)
	if err != nil {
		return 0, err
	}
	n, err := m.store.DeletePriceData(ctx, provider, primary, resolution, from, to)
	m.metrics.StoreOperation("delete_price_data", err)
	if err != nil {
		return 0, fmt.Errorf("delete price data: %w", err)
	}
	m.publish(emission{price: []notify.PriceChange{{
		Provider:   provider,
		Ticker:     primary,
		Resolution: resolution,
		From:       from,
		To:         to,
		Count:      int(n),
	}}})
	return n, nil
}

func (m *Manager) OnHistoricalData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error {
	return m.UpsertBars(ctx, provider, ticker, resolution, bars)
}

func (m *Manager) OnDownloadComplete(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time) {
	m.logger.WithFields(logrus.Fields{
		"provider":   provider,
		"ticker":     ticker,
		"resolution": resolution,
		"from":       from.Format(time.RFC3339),
		"to":         to.Format(time.RFC3339),
	}).Info("historical download complete")
}

// OnRealTimeUpdate stores a real-time batch and announces it with one
// event per series written.
func (m *Manager) OnRealTimeUpdate(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error {
	var out emission
	if len(bars) > 0 {
		change, err := m.upsertBars(ctx, provider, ticker, resolution, bars, true)
		if err != nil {
			return err
		}
		out.price = append(out.price, *change)
		m.metrics.RealTimeUpdate(change.Provider, string(resolution), len(bars))
	}
	if len(ticks) > 0 {
		change, err := m.upsertTicks(ctx, provider, ticker, ticks, true)
		if err != nil {
			return err
		}
		out.price = append(out.price, *change)
		m.metrics.RealTimeUpdate(change.Provider, string(marketdata.ResolutionLevel1), len(ticks))
	}
	m.publish(out)
	return nil
}

func (m *Manager) OnRequestError(ctx context.Context, provider, ticker string, err error) {
	m.logger.WithFields(logrus.Fields{
		"provider": provider,
		"ticker":   ticker,
	}).WithError(err).Error("data provider request failed")
}

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}
	return a
}

func maxTime(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
