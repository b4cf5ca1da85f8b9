package refdata

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InstrumentType string

const (
	InstrumentUnknown InstrumentType = "unknown"
	InstrumentStock   InstrumentType = "stock"
	InstrumentETF     InstrumentType = "etf"
	InstrumentFund    InstrumentType = "fund"
	InstrumentBond    InstrumentType = "bond"
	InstrumentFuture  InstrumentType = "future"
	InstrumentOption  InstrumentType = "option"
	InstrumentForex   InstrumentType = "forex"
	InstrumentCrypto  InstrumentType = "crypto"
	InstrumentIndex   InstrumentType = "index"
)

func (t InstrumentType) IsValid() bool {
	switch t {
	case InstrumentUnknown, InstrumentStock, InstrumentETF, InstrumentFund, InstrumentBond,
		InstrumentFuture, InstrumentOption, InstrumentForex, InstrumentCrypto, InstrumentIndex:
		return true
	default:
		return false
	}
}

func NewInstrumentType(s string) (InstrumentType, error) {
	t := InstrumentType(strings.ToLower(s))
	if !t.IsValid() {
		return "", fmt.Errorf("invalid instrument type: %s", s)
	}
	return t, nil
}

// Instrument is identified by its primary ticker; alternate tickers are
// treated as equivalent identities.
type Instrument struct {
	Attributes         Attributes     `json:"attributes"`
	Tag                Tag            `json:"tag"`
	Ticker             string         `json:"ticker"`
	AlternateTickers   []string       `json:"alternate_tickers"`
	Type               InstrumentType `json:"type"`
	Name               string         `json:"name"`
	Description        string         `json:"description"`
	PrimaryExchangeID  uuid.UUID      `json:"primary_exchange_id"`
	InceptionDate      time.Time      `json:"inception_date"`
	PriceDecimals      int            `json:"price_decimals"`
	MinMovement        float64        `json:"min_movement"`
	BigPointValue      float64        `json:"big_point_value"`
	ExtendedProperties Tag            `json:"extended_properties"`

	SecondaryExchangeIDs []uuid.UUID `json:"secondary_exchange_ids"`
	GroupIDs             []uuid.UUID `json:"group_ids"`
}

// NormalizeTicker trims and upper-cases a ticker.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// Normalize canonicalizes tickers in place and drops alternates that
// repeat the primary ticker.
func (i *Instrument) Normalize() error {
	i.Ticker = NormalizeTicker(i.Ticker)
	if i.Ticker == "" {
		return fmt.Errorf("instrument ticker is required")
	}
	if i.Type == "" {
		i.Type = InstrumentUnknown
	}
	if !i.Type.IsValid() {
		return fmt.Errorf("invalid instrument type: %s", i.Type)
	}
	alternates := make([]string, 0, len(i.AlternateTickers))
	for _, alt := range i.AlternateTickers {
		alt = NormalizeTicker(alt)
		if alt == "" || alt == i.Ticker || slices.Contains(alternates, alt) {
			continue
		}
		alternates = append(alternates, alt)
	}
	i.AlternateTickers = alternates
	if i.PriceDecimals < 0 {
		return fmt.Errorf("invalid price decimals: %d", i.PriceDecimals)
	}
	return nil
}

// Tickers returns the primary ticker followed by the alternates.
func (i *Instrument) Tickers() []string {
	out := make([]string, 0, 1+len(i.AlternateTickers))
	out = append(out, i.Ticker)
	return append(out, i.AlternateTickers...)
}

func (i *Instrument) Matches(ticker string) bool {
	ticker = NormalizeTicker(ticker)
	return ticker != "" && slices.Contains(i.Tickers(), ticker)
}

// Equal reports whether two instruments share any ticker.
func (i *Instrument) Equal(other *Instrument) bool {
	if other == nil {
		return false
	}
	for _, t := range other.Tickers() {
		if i.Matches(t) {
			return true
		}
	}
	return false
}

// NormalizePrice rounds a price to the instrument's decimals and snaps it
// to the minimum price movement.
func (i *Instrument) NormalizePrice(price float64) float64 {
	value := decimal.NewFromFloat(price)
	if i.MinMovement > 0 {
		step := decimal.NewFromFloat(i.MinMovement)
		if i.PriceDecimals > 0 {
			step = step.Div(decimal.New(1, int32(i.PriceDecimals)))
		}
		value = value.Div(step).Round(0).Mul(step)
	}
	result, _ := value.Round(int32(i.PriceDecimals)).Float64()
	return result
}

func (i *Instrument) AddSecondaryExchange(id uuid.UUID) {
	if id == i.PrimaryExchangeID {
		return
	}
	i.SecondaryExchangeIDs = addID(i.SecondaryExchangeIDs, id)
}

func (i *Instrument) RemoveSecondaryExchange(id uuid.UUID) {
	i.SecondaryExchangeIDs = removeID(i.SecondaryExchangeIDs, id)
}

func (i *Instrument) AddGroup(id uuid.UUID)    { i.GroupIDs = addID(i.GroupIDs, id) }
func (i *Instrument) RemoveGroup(id uuid.UUID) { i.GroupIDs = removeID(i.GroupIDs, id) }
