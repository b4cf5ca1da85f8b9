package refgraph

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/application/service/feed"
	"marketgraph/internal/domain/entity/marketdata"

	"github.com/sirupsen/logrus"
)

// GetDataCache returns stored rows of the active provider in ascending
// time order.
func (m *Manager) GetDataCache(ctx context.Context, ticker string, resolution marketdata.Resolution, from, to time.Time, dataType marketdata.PriceDataType) (*marketdata.DataCache, error) {
	if from.After(to) {
		return nil, fmt.Errorf("%w: %s > %s", marketdata.ErrInvalidRange, from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	if _, err := resolution.TableSuffix(); err != nil {
		return nil, err
	}
	provider, primary, err := m.priceTarget(ctx, "", ticker)
	if err != nil {
		return nil, err
	}
	cache, err := m.store.GetDataCache(ctx, provider, primary, resolution, from, to, dataType)
	m.metrics.StoreOperation("get_data_cache", err)
	if err != nil {
		return nil, fmt.Errorf("get data cache: %w", err)
	}
	return cache, nil
}

// GetDataFeed returns a live feed with the same parameters if one is
// still registered on the price channel, otherwise builds and registers a
// new one. The feed stays registered only while the caller holds it.
func (m *Manager) GetDataFeed(ctx context.Context, params feed.Params) (*feed.Feed, error) {
	provider, primary, err := m.priceTarget(ctx, params.Provider, params.Ticker)
	if err != nil {
		return nil, err
	}
	params.Provider, params.Ticker = provider, primary
	if err := params.Normalize(); err != nil {
		return nil, err
	}
	for _, observer := range m.bus.Price.Observers() {
		if existing, ok := observer.(*feed.Feed); ok && existing.Params().Equal(params) {
			return existing, nil
		}
	}
	cache, err := m.store.GetDataCache(ctx, provider, primary, params.Resolution, params.From, params.To, params.DataType)
	m.metrics.StoreOperation("get_data_cache", err)
	if err != nil {
		return nil, fmt.Errorf("get data cache: %w", err)
	}
	f, err := feed.New(params, cache)
	if err != nil {
		return nil, err
	}
	notify.Subscribe(m.bus.Price, f)
	m.metrics.FeedBuilt(string(params.Resolution))
	m.logger.WithFields(logrus.Fields{
		"ticker":     primary,
		"resolution": params.Resolution,
		"interval":   params.Interval,
		"count":      f.Count(),
	}).Debug("feed built")
	return f, nil
}
