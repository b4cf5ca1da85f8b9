package refdata

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

type FundamentalCategory string

const (
	CategoryCountry    FundamentalCategory = "country"
	CategoryInstrument FundamentalCategory = "instrument"
)

func (c FundamentalCategory) IsValid() bool {
	return c == CategoryCountry || c == CategoryInstrument
}

type ReleaseInterval string

const (
	ReleaseUnknown   ReleaseInterval = "unknown"
	ReleaseDaily     ReleaseInterval = "daily"
	ReleaseWeekly    ReleaseInterval = "weekly"
	ReleaseMonthly   ReleaseInterval = "monthly"
	ReleaseQuarterly ReleaseInterval = "quarterly"
	ReleaseAnnually  ReleaseInterval = "annually"
)

func (r ReleaseInterval) IsValid() bool {
	switch r {
	case ReleaseUnknown, ReleaseDaily, ReleaseWeekly, ReleaseMonthly, ReleaseQuarterly, ReleaseAnnually:
		return true
	default:
		return false
	}
}

// Fundamental defines a named economic or company metric.
type Fundamental struct {
	ID              uuid.UUID           `json:"id"`
	Attributes      Attributes          `json:"attributes"`
	Tag             Tag                 `json:"tag"`
	Name            string              `json:"name"`
	Description     string              `json:"description"`
	Category        FundamentalCategory `json:"category"`
	ReleaseInterval ReleaseInterval     `json:"release_interval"`
}

func (f *Fundamental) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("fundamental name is required")
	}
	if !f.Category.IsValid() {
		return fmt.Errorf("invalid fundamental category: %q", string(f.Category))
	}
	if f.ReleaseInterval == "" {
		f.ReleaseInterval = ReleaseUnknown
	}
	if !f.ReleaseInterval.IsValid() {
		return fmt.Errorf("invalid release interval: %q", string(f.ReleaseInterval))
	}
	return nil
}

type FundamentalValue struct {
	DateTime time.Time `json:"date_time"`
	Value    float64   `json:"value"`
}

// FundamentalSeries is kept sorted by date.
type FundamentalSeries []FundamentalValue

func (s FundamentalSeries) search(at time.Time) int {
	return sort.Search(len(s), func(i int) bool { return !s[i].DateTime.Before(at) })
}

// Upsert inserts or replaces the value at the given date.
func (s FundamentalSeries) Upsert(at time.Time, value float64) FundamentalSeries {
	i := s.search(at)
	if i < len(s) && s[i].DateTime.Equal(at) {
		s[i].Value = value
		return s
	}
	s = append(s, FundamentalValue{})
	copy(s[i+1:], s[i:])
	s[i] = FundamentalValue{DateTime: at, Value: value}
	return s
}

func (s FundamentalSeries) Delete(at time.Time) (FundamentalSeries, bool) {
	i := s.search(at)
	if i >= len(s) || !s[i].DateTime.Equal(at) {
		return s, false
	}
	return append(s[:i], s[i+1:]...), true
}

// At returns the latest value released at or before the given date.
func (s FundamentalSeries) At(at time.Time) (FundamentalValue, bool) {
	i := s.search(at)
	if i < len(s) && s[i].DateTime.Equal(at) {
		return s[i], true
	}
	if i == 0 {
		return FundamentalValue{}, false
	}
	return s[i-1], true
}

// CountryFundamental associates a fundamental with a country for one
// data provider and carries its values.
type CountryFundamental struct {
	AssociationID uuid.UUID         `json:"association_id"`
	Provider      string            `json:"provider"`
	FundamentalID uuid.UUID         `json:"fundamental_id"`
	CountryID     uuid.UUID         `json:"country_id"`
	Values        FundamentalSeries `json:"values"`
}

type InstrumentFundamental struct {
	AssociationID uuid.UUID         `json:"association_id"`
	Provider      string            `json:"provider"`
	FundamentalID uuid.UUID         `json:"fundamental_id"`
	Ticker        string            `json:"ticker"`
	Values        FundamentalSeries `json:"values"`
}
