package interfaces

import (
	"context"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
)

type CountryRepository interface {
	LoadCountries(ctx context.Context) ([]*refdata.Country, error)
	CreateCountry(ctx context.Context, country *refdata.Country) error
	UpdateCountry(ctx context.Context, country *refdata.Country) error
	DeleteCountry(ctx context.Context, id uuid.UUID) error
}

type ExchangeRepository interface {
	LoadExchanges(ctx context.Context) ([]*refdata.Exchange, error)
	CreateExchange(ctx context.Context, exchange *refdata.Exchange) error
	UpdateExchange(ctx context.Context, exchange *refdata.Exchange) error
	DeleteExchange(ctx context.Context, id uuid.UUID) error
}

type HolidayRepository interface {
	LoadHolidays(ctx context.Context) ([]*refdata.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *refdata.Holiday) error
	UpdateHoliday(ctx context.Context, holiday *refdata.Holiday) error
	DeleteHoliday(ctx context.Context, id uuid.UUID) error
}

type SessionRepository interface {
	LoadSessions(ctx context.Context) ([]*refdata.Session, error)
	CreateSession(ctx context.Context, session *refdata.Session) error
	UpdateSession(ctx context.Context, session *refdata.Session) error
	DeleteSession(ctx context.Context, id uuid.UUID) error
}

type InstrumentGroupRepository interface {
	LoadInstrumentGroups(ctx context.Context) ([]*refdata.InstrumentGroup, error)
	CreateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup) error
	UpdateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup) error
	DeleteInstrumentGroup(ctx context.Context, id uuid.UUID) error

	LoadGroupMemberships(ctx context.Context) ([]refdata.GroupMembership, error)
	AddGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error
	RemoveGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error
}

// InstrumentRepository persists instruments together with their
// secondary exchange listings.
type InstrumentRepository interface {
	LoadInstruments(ctx context.Context) ([]*refdata.Instrument, error)
	CreateInstrument(ctx context.Context, instrument *refdata.Instrument) error
	UpdateInstrument(ctx context.Context, instrument *refdata.Instrument) error
	DeleteInstrument(ctx context.Context, ticker string) error
}

type FundamentalRepository interface {
	LoadFundamentals(ctx context.Context) ([]*refdata.Fundamental, error)
	CreateFundamental(ctx context.Context, fundamental *refdata.Fundamental) error
	UpdateFundamental(ctx context.Context, fundamental *refdata.Fundamental) error
	// DeleteFundamental removes the definition and its associations and
	// values for every provider.
	DeleteFundamental(ctx context.Context, id uuid.UUID) error
}

// AssociationRepository persists provider-scoped fundamental associations
// and their value series. Value writes for an entity that has no
// association in any provider fail with refdata.ErrNotAssociated.
type AssociationRepository interface {
	LoadCountryFundamentals(ctx context.Context, provider string) ([]*refdata.CountryFundamental, error)
	CreateCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) (uuid.UUID, error)
	DeleteCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) error
	UpsertCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, value refdata.FundamentalValue) error
	DeleteCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, at time.Time) error

	LoadInstrumentFundamentals(ctx context.Context, provider string) ([]*refdata.InstrumentFundamental, error)
	CreateInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) (uuid.UUID, error)
	DeleteInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) error
	UpsertInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, value refdata.FundamentalValue) error
	DeleteInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, at time.Time) error
}

type TranslationRepository interface {
	PutTranslation(ctx context.Context, translation refdata.Translation) error
	LoadTranslations(ctx context.Context, locale string) ([]refdata.Translation, error)
}

// ProviderRepository creates the per-provider tables on registration.
type ProviderRepository interface {
	RegisterProvider(ctx context.Context, name string) error
	Providers(ctx context.Context) ([]string, error)
}

// Store is the persistence bridge the graph manager depends on.
type Store interface {
	CreateSchema(ctx context.Context) error

	CountryRepository
	ExchangeRepository
	HolidayRepository
	SessionRepository
	InstrumentGroupRepository
	InstrumentRepository
	FundamentalRepository
	AssociationRepository
	TranslationRepository
	ProviderRepository
	PriceDataRepository

	Close()
}
