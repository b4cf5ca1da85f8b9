package interfaces

import (
	"context"
	"time"

	"marketgraph/internal/domain/entity/marketdata"
	"marketgraph/internal/domain/entity/refdata"
)

// PriceDataRepository stores bars and Level1 ticks in per-provider
// tables keyed by (ticker, date time).
type PriceDataRepository interface {
	UpsertBars(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error
	UpsertTicks(ctx context.Context, provider, ticker string, ticks []marketdata.Level1Tick) error
	DeletePriceData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time) (int64, error)
	GetDataCache(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time, dataType marketdata.PriceDataType) (*marketdata.DataCache, error)
}

// ProviderCallbacks receive asynchronous results from a DataProvider.
type ProviderCallbacks interface {
	OnHistoricalData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error
	OnDownloadComplete(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time)
	OnRealTimeUpdate(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar, ticks []marketdata.Level1Tick) error
	OnRequestError(ctx context.Context, provider, ticker string, err error)
}

// DataProvider is a market data source plugged into the graph manager.
type DataProvider interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error
	SetCallbacks(callbacks ProviderCallbacks)
	RequestHistorical(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution, from, to time.Time) error
	Subscribe(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution) error
	Unsubscribe(ctx context.Context, instrument *refdata.Instrument, resolution marketdata.Resolution) error
}
