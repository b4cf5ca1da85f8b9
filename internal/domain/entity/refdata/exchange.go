package refdata

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Exchange struct {
	ID             uuid.UUID  `json:"id"`
	Attributes     Attributes `json:"attributes"`
	Tag            Tag        `json:"tag"`
	CountryID      uuid.UUID  `json:"country_id"`
	Name           string     `json:"name"`
	AlternateNames []string   `json:"alternate_names"`
	TimeZone       string     `json:"time_zone"`
	URL            string     `json:"url,omitempty"`
	LogoID         uuid.UUID  `json:"logo_id"`

	// Defaults applied to instruments listed on the exchange.
	DefaultPriceDecimals int     `json:"default_price_decimals"`
	DefaultMinMovement   float64 `json:"default_min_movement"`
	DefaultBigPointValue float64 `json:"default_big_point_value"`

	SessionIDs        []uuid.UUID `json:"session_ids"`
	HolidayIDs        []uuid.UUID `json:"holiday_ids"`
	InstrumentTickers []string    `json:"instrument_tickers"`
	SecondaryTickers  []string    `json:"secondary_tickers"`
}

func NewExchange(countryID uuid.UUID, name, timeZone string) (*Exchange, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("exchange name is required")
	}
	if _, err := LoadLocation(timeZone); err != nil {
		return nil, err
	}
	return &Exchange{
		ID:                   uuid.New(),
		Attributes:           AttrDefault,
		CountryID:            countryID,
		Name:                 name,
		TimeZone:             timeZone,
		LogoID:               uuid.New(),
		DefaultPriceDecimals: 2,
		DefaultMinMovement:   1,
		DefaultBigPointValue: 1,
	}, nil
}

// LoadLocation resolves an IANA zone name.
func LoadLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidTimeZone)
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidTimeZone, name)
	}
	return loc, nil
}

func (e *Exchange) Location() (*time.Location, error) {
	return LoadLocation(e.TimeZone)
}

// Matches compares a name against the primary and alternate names,
// ignoring case.
func (e *Exchange) Matches(name string) bool {
	name = strings.TrimSpace(name)
	if strings.EqualFold(e.Name, name) {
		return true
	}
	for _, alt := range e.AlternateNames {
		if strings.EqualFold(alt, name) {
			return true
		}
	}
	return false
}

func (e *Exchange) AddSession(id uuid.UUID)           { e.SessionIDs = addID(e.SessionIDs, id) }
func (e *Exchange) RemoveSession(id uuid.UUID)        { e.SessionIDs = removeID(e.SessionIDs, id) }
func (e *Exchange) AddHoliday(id uuid.UUID)           { e.HolidayIDs = addID(e.HolidayIDs, id) }
func (e *Exchange) RemoveHoliday(id uuid.UUID)        { e.HolidayIDs = removeID(e.HolidayIDs, id) }
func (e *Exchange) AddInstrument(ticker string)       { e.InstrumentTickers = addString(e.InstrumentTickers, ticker) }
func (e *Exchange) RemoveInstrument(ticker string)    { e.InstrumentTickers = removeString(e.InstrumentTickers, ticker) }
func (e *Exchange) AddSecondaryListing(ticker string) { e.SecondaryTickers = addString(e.SecondaryTickers, ticker) }
func (e *Exchange) RemoveSecondaryListing(ticker string) {
	e.SecondaryTickers = removeString(e.SecondaryTickers, ticker)
}

func (e *Exchange) ResetLinks() {
	e.SessionIDs = nil
	e.HolidayIDs = nil
	e.InstrumentTickers = nil
	e.SecondaryTickers = nil
}
