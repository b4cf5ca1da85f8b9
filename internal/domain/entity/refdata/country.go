package refdata

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// InternationalCountryID identifies the built-in country that owns
// instruments and exchanges without a national home.
var InternationalCountryID = uuid.MustParse("00000000-0000-0000-0000-000000000001")

// InternationalIsoCode is the UN M.49 code for "World".
const InternationalIsoCode = "001"

type Country struct {
	ID         uuid.UUID  `json:"id"`
	Attributes Attributes `json:"attributes"`
	Tag        Tag        `json:"tag"`
	IsoCode    string     `json:"iso_code"`

	DisplayName string `json:"display_name"`
	Currency    string `json:"currency,omitempty"`

	ExchangeIDs []uuid.UUID `json:"exchange_ids"`
	HolidayIDs  []uuid.UUID `json:"holiday_ids"`
}

// NewCountry validates the region code and returns an unsaved country.
func NewCountry(isoCode string) (*Country, error) {
	code, err := NormalizeIsoCode(isoCode)
	if err != nil {
		return nil, err
	}
	return &Country{
		ID:         uuid.New(),
		Attributes: AttrDefault,
		IsoCode:    code,
	}, nil
}

// NewInternationalCountry builds the protected sentinel country.
func NewInternationalCountry() *Country {
	return &Country{
		ID:         InternationalCountryID,
		Attributes: AttrNone,
		IsoCode:    InternationalIsoCode,
	}
}

// NormalizeIsoCode upper-cases an ISO 3166 alpha-2 code or accepts a UN
// M.49 numeric region.
func NormalizeIsoCode(code string) (string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidCountryCode)
	}
	if _, err := language.ParseRegion(code); err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidCountryCode, code)
	}
	return code, nil
}

func (c *Country) IsInternational() bool {
	return c.ID == InternationalCountryID
}

// Localize fills the display name and currency for the given locale.
func (c *Country) Localize(locale language.Tag) {
	region, err := language.ParseRegion(c.IsoCode)
	if err != nil {
		c.DisplayName = c.IsoCode
		c.Currency = ""
		return
	}
	name := display.Regions(locale).Name(region)
	if name == "" {
		name = c.IsoCode
	}
	c.DisplayName = name
	c.Currency = ""
	if unit, ok := currency.FromRegion(region); ok {
		c.Currency = unit.String()
	}
}

func (c *Country) AddExchange(id uuid.UUID)    { c.ExchangeIDs = addID(c.ExchangeIDs, id) }
func (c *Country) RemoveExchange(id uuid.UUID) { c.ExchangeIDs = removeID(c.ExchangeIDs, id) }
func (c *Country) AddHoliday(id uuid.UUID)     { c.HolidayIDs = addID(c.HolidayIDs, id) }
func (c *Country) RemoveHoliday(id uuid.UUID)  { c.HolidayIDs = removeID(c.HolidayIDs, id) }

// ResetLinks clears derived relationships before a relink pass.
func (c *Country) ResetLinks() {
	c.ExchangeIDs = nil
	c.HolidayIDs = nil
}
