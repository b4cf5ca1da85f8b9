package notify

import (
	"time"

	"marketgraph/internal/domain/entity/marketdata"

	"github.com/google/uuid"
)

type ChangeKind string

const (
	ChangeCreated   ChangeKind = "created"
	ChangeUpdated   ChangeKind = "updated"
	ChangeDeleted   ChangeKind = "deleted"
	ChangeRefreshed ChangeKind = "refreshed"
)

type EntityKind string

const (
	EntityGraph                 EntityKind = "graph"
	EntityCountry               EntityKind = "country"
	EntityExchange              EntityKind = "exchange"
	EntityHoliday               EntityKind = "holiday"
	EntitySession               EntityKind = "session"
	EntityInstrument            EntityKind = "instrument"
	EntityInstrumentGroup       EntityKind = "instrument_group"
	EntityFundamental           EntityKind = "fundamental"
	EntityCountryFundamental    EntityKind = "country_fundamental"
	EntityInstrumentFundamental EntityKind = "instrument_fundamental"
	EntityDataProvider          EntityKind = "data_provider"
)

// ModelChange describes a mutation of the reference-data graph. ID is set
// for uuid-keyed entities, Key for tickers and provider names.
type ModelChange struct {
	Kind   ChangeKind `json:"kind"`
	Entity EntityKind `json:"entity"`
	ID     uuid.UUID  `json:"id,omitempty"`
	Key    string     `json:"key,omitempty"`
}

// FundamentalChange describes a value written to or removed from a
// fundamental series.
type FundamentalChange struct {
	Kind          ChangeKind `json:"kind"`
	Provider      string     `json:"provider"`
	FundamentalID uuid.UUID  `json:"fundamental_id"`
	Entity        EntityKind `json:"entity"`
	Key           string     `json:"key"`
	DateTime      time.Time  `json:"date_time"`
	Value         float64    `json:"value"`
}

// PriceChange announces stored price data for a ticker in [From, To].
type PriceChange struct {
	Provider   string                `json:"provider"`
	Ticker     string                `json:"ticker"`
	Resolution marketdata.Resolution `json:"resolution"`
	From       time.Time             `json:"from"`
	To         time.Time             `json:"to"`
	Count      int                   `json:"count"`
	RealTime   bool                  `json:"real_time"`
}
