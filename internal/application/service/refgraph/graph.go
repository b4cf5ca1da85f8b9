package refgraph

import (
	"sort"
	"strings"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
)

type fundamentalKey struct {
	fundamentalID uuid.UUID
	entity        string
}

type translationKey struct {
	entity string
	field  refdata.TextField
}

// graph is the in-memory reference data. Relationships are id and ticker
// lists resolved through the maps.
type graph struct {
	countries    map[uuid.UUID]*refdata.Country
	exchanges    map[uuid.UUID]*refdata.Exchange
	holidays     map[uuid.UUID]*refdata.Holiday
	sessions     map[uuid.UUID]*refdata.Session
	groups       map[uuid.UUID]*refdata.InstrumentGroup
	fundamentals map[uuid.UUID]*refdata.Fundamental
	instruments  map[string]*refdata.Instrument

	// tickers maps every primary and alternate ticker to the primary one.
	tickers map[string]string

	countryFundamentals    map[fundamentalKey]*refdata.CountryFundamental
	instrumentFundamentals map[fundamentalKey]*refdata.InstrumentFundamental

	translations map[translationKey]string
}

func newGraph() *graph {
	return &graph{
		countries:              make(map[uuid.UUID]*refdata.Country),
		exchanges:              make(map[uuid.UUID]*refdata.Exchange),
		holidays:               make(map[uuid.UUID]*refdata.Holiday),
		sessions:               make(map[uuid.UUID]*refdata.Session),
		groups:                 make(map[uuid.UUID]*refdata.InstrumentGroup),
		fundamentals:           make(map[uuid.UUID]*refdata.Fundamental),
		instruments:            make(map[string]*refdata.Instrument),
		tickers:                make(map[string]string),
		countryFundamentals:    make(map[fundamentalKey]*refdata.CountryFundamental),
		instrumentFundamentals: make(map[fundamentalKey]*refdata.InstrumentFundamental),
		translations:           make(map[translationKey]string),
	}
}

func (g *graph) instrument(ticker string) (*refdata.Instrument, bool) {
	primary, ok := g.tickers[refdata.NormalizeTicker(ticker)]
	if !ok {
		return nil, false
	}
	inst, ok := g.instruments[primary]
	return inst, ok
}

// tickerOwner returns the primary ticker of the instrument that already
// uses any of the given tickers, ignoring the instrument named by self.
func (g *graph) tickerOwner(tickers []string, self string) (string, bool) {
	for _, t := range tickers {
		if owner, ok := g.tickers[t]; ok && owner != self {
			return owner, true
		}
	}
	return "", false
}

func (g *graph) indexTickers(inst *refdata.Instrument) {
	for _, t := range inst.Tickers() {
		g.tickers[t] = inst.Ticker
	}
}

func (g *graph) unindexTickers(inst *refdata.Instrument) {
	for _, t := range inst.Tickers() {
		if g.tickers[t] == inst.Ticker {
			delete(g.tickers, t)
		}
	}
}

func (g *graph) text(entity string, field refdata.TextField, fallback string) string {
	if v, ok := g.translations[translationKey{entity, field}]; ok && v != "" {
		return v
	}
	return fallback
}

// canonicalText keeps the stored value when a caller echoes back a
// translated display value.
func (g *graph) canonicalText(entity string, field refdata.TextField, incoming, stored string) string {
	if v, ok := g.translations[translationKey{entity, field}]; ok && v == incoming {
		return stored
	}
	return incoming
}

// descendants returns id and every group below it, children before
// parents.
func (g *graph) descendants(id uuid.UUID) []uuid.UUID {
	var out []uuid.UUID
	var walk func(uuid.UUID)
	walk = func(current uuid.UUID) {
		group, ok := g.groups[current]
		if !ok {
			return
		}
		for _, child := range group.ChildIDs {
			walk(child)
		}
		out = append(out, current)
	}
	walk(id)
	return out
}

func sortedValues[K comparable, V any](m map[K]V, less func(a, b V) bool) []V {
	out := make([]V, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func lessFold(a, b string) bool {
	return strings.ToLower(a) < strings.ToLower(b)
}
