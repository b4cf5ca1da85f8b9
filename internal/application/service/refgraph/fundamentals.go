package refgraph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func localizedFundamental(g *graph, f *refdata.Fundamental) *refdata.Fundamental {
	out := f.Clone()
	out.Name = g.text(f.ID.String(), refdata.FieldName, f.Name)
	out.Description = g.text(f.ID.String(), refdata.FieldDescription, f.Description)
	return out
}

func (m *Manager) Fundamentals(ctx context.Context) ([]*refdata.Fundamental, error) {
	var out []*refdata.Fundamental
	err := m.read(ctx, func(g *graph) error {
		for _, f := range sortedValues(g.fundamentals, func(a, b *refdata.Fundamental) bool { return lessFold(a.Name, b.Name) }) {
			out = append(out, localizedFundamental(g, f))
		}
		return nil
	})
	return out, err
}

func (m *Manager) Fundamental(ctx context.Context, id uuid.UUID) (*refdata.Fundamental, error) {
	var out *refdata.Fundamental
	err := m.read(ctx, func(g *graph) error {
		f, ok := g.fundamentals[id]
		if !ok {
			return fmt.Errorf("fundamental %s: %w", id, refdata.ErrNotFound)
		}
		out = localizedFundamental(g, f)
		return nil
	})
	return out, err
}

func fundamentalNameTaken(g *graph, f *refdata.Fundamental) bool {
	for _, other := range g.fundamentals {
		if other.ID != f.ID && other.Category == f.Category && strings.EqualFold(other.Name, f.Name) {
			return true
		}
	}
	return false
}

func (m *Manager) CreateFundamental(ctx context.Context, fundamental *refdata.Fundamental) (*refdata.Fundamental, error) {
	if fundamental == nil {
		return nil, ErrNilEntity
	}
	next := fundamental.Clone()
	next.Name = strings.TrimSpace(next.Name)
	if err := next.Validate(); err != nil {
		return nil, err
	}
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	if next.Attributes == refdata.AttrNone {
		next.Attributes = refdata.AttrDefault
	}
	var out *refdata.Fundamental
	err := m.mutate(ctx, "create_fundamental", func(g *graph) (emission, error) {
		if fundamentalNameTaken(g, next) {
			return emission{}, fmt.Errorf("fundamental %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateFundamental(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create fundamental: %w", err)
		}
		next.Tag.MarkClean()
		g.fundamentals[next.ID] = next
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityFundamental, next.ID, next.Name), nil
	})
	return out, err
}

// UpdateFundamental cannot change the category chosen at creation.
func (m *Manager) UpdateFundamental(ctx context.Context, fundamental *refdata.Fundamental, opts ...UpdateOption) error {
	if fundamental == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_fundamental", func(g *graph) (emission, error) {
		current, ok := g.fundamentals[fundamental.ID]
		if !ok {
			return emission{}, fmt.Errorf("fundamental %s: %w", fundamental.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			key := current.ID.String()
			if err := m.translate(ctx, g, key, o.locale, refdata.FieldName, fundamental.Name); err != nil {
				return emission{}, err
			}
			if err := m.translate(ctx, g, key, o.locale, refdata.FieldDescription, fundamental.Description); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityFundamental, current.ID, current.Name), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("fundamental %s: %w", current.Name, refdata.ErrProtectedEntity)
		}
		next := fundamental.Clone()
		if next.Category == "" {
			next.Category = current.Category
		}
		if next.Category != current.Category {
			return emission{}, fmt.Errorf("fundamental %s is %s: %w", current.Name, current.Category, refdata.ErrCategoryMismatch)
		}
		next.Attributes = current.Attributes
		next.Name = g.canonicalText(current.ID.String(), refdata.FieldName, strings.TrimSpace(next.Name), current.Name)
		next.Description = g.canonicalText(current.ID.String(), refdata.FieldDescription, next.Description, current.Description)
		if err := next.Validate(); err != nil {
			return emission{}, err
		}
		if fundamentalNameTaken(g, next) {
			return emission{}, fmt.Errorf("fundamental %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.UpdateFundamental(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update fundamental: %w", err)
		}
		next.Tag.MarkClean()
		g.fundamentals[next.ID] = next
		return modelEvent(notify.ChangeUpdated, notify.EntityFundamental, next.ID, next.Name), nil
	})
}

// DeleteFundamental removes the definition with every association and
// value it has under any provider.
func (m *Manager) DeleteFundamental(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_fundamental", func(g *graph) (emission, error) {
		f, ok := g.fundamentals[id]
		if !ok {
			return emission{}, fmt.Errorf("fundamental %s: %w", id, refdata.ErrNotFound)
		}
		if !f.Attributes.Deletable() {
			return emission{}, fmt.Errorf("fundamental %s: %w", f.Name, refdata.ErrProtectedEntity)
		}
		if err := m.store.DeleteFundamental(ctx, id); err != nil {
			return emission{}, fmt.Errorf("delete fundamental: %w", err)
		}
		for key := range g.countryFundamentals {
			if key.fundamentalID == id {
				delete(g.countryFundamentals, key)
			}
		}
		for key := range g.instrumentFundamentals {
			if key.fundamentalID == id {
				delete(g.instrumentFundamentals, key)
			}
		}
		delete(g.fundamentals, id)
		return modelEvent(notify.ChangeDeleted, notify.EntityFundamental, id, f.Name), nil
	})
}

func fundamentalOf(g *graph, id uuid.UUID, category refdata.FundamentalCategory) (*refdata.Fundamental, error) {
	f, ok := g.fundamentals[id]
	if !ok {
		return nil, fmt.Errorf("fundamental %s: %w", id, refdata.ErrNotFound)
	}
	if f.Category != category {
		return nil, fmt.Errorf("fundamental %s is %s: %w", f.Name, f.Category, refdata.ErrCategoryMismatch)
	}
	return f, nil
}

// valueTarget checks that a value write can reach a stored association.
// A missing fundamental means every association it had is gone.
func valueTarget(g *graph, id uuid.UUID, category refdata.FundamentalCategory) error {
	f, ok := g.fundamentals[id]
	if !ok {
		return fmt.Errorf("fundamental %s: %w", id, refdata.ErrNotAssociated)
	}
	if f.Category != category {
		return fmt.Errorf("fundamental %s is %s: %w", f.Name, f.Category, refdata.ErrCategoryMismatch)
	}
	return nil
}

// Country fundamentals

func (m *Manager) CountryFundamentals(ctx context.Context, countryID uuid.UUID) ([]*refdata.CountryFundamental, error) {
	var out []*refdata.CountryFundamental
	err := m.read(ctx, func(g *graph) error {
		if _, ok := g.countries[countryID]; !ok {
			return fmt.Errorf("country %s: %w", countryID, refdata.ErrNotFound)
		}
		for key, cf := range g.countryFundamentals {
			if key.entity == countryID.String() {
				out = append(out, cf.Clone())
			}
		}
		sortAssociations(out, func(cf *refdata.CountryFundamental) uuid.UUID { return cf.FundamentalID })
		return nil
	})
	return out, err
}

func (m *Manager) CountryFundamental(ctx context.Context, fundamentalID, countryID uuid.UUID) (*refdata.CountryFundamental, error) {
	var out *refdata.CountryFundamental
	err := m.read(ctx, func(g *graph) error {
		cf, ok := g.countryFundamentals[fundamentalKey{fundamentalID, countryID.String()}]
		if !ok {
			return fmt.Errorf("fundamental %s for country %s: %w", fundamentalID, countryID, refdata.ErrNotAssociated)
		}
		out = cf.Clone()
		return nil
	})
	return out, err
}

// AssociateCountryFundamental binds a country fundamental to a country
// for the active provider. An existing association is returned as is.
func (m *Manager) AssociateCountryFundamental(ctx context.Context, fundamentalID, countryID uuid.UUID) (*refdata.CountryFundamental, error) {
	var out *refdata.CountryFundamental
	err := m.mutate(ctx, "associate_country_fundamental", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if _, err := fundamentalOf(g, fundamentalID, refdata.CategoryCountry); err != nil {
			return emission{}, err
		}
		country, ok := g.countries[countryID]
		if !ok {
			return emission{}, fmt.Errorf("country %s: %w", countryID, refdata.ErrNotFound)
		}
		key := fundamentalKey{fundamentalID, countryID.String()}
		if cf, ok := g.countryFundamentals[key]; ok {
			out = cf.Clone()
			return emission{}, nil
		}
		id, err := m.store.CreateCountryFundamental(ctx, provider, fundamentalID, countryID)
		if err != nil {
			return emission{}, fmt.Errorf("create country fundamental: %w", err)
		}
		cf := &refdata.CountryFundamental{
			AssociationID: id,
			Provider:      provider,
			FundamentalID: fundamentalID,
			CountryID:     countryID,
		}
		g.countryFundamentals[key] = cf
		out = cf.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityCountryFundamental, id, country.IsoCode), nil
	})
	return out, err
}

func (m *Manager) DisassociateCountryFundamental(ctx context.Context, fundamentalID, countryID uuid.UUID) error {
	return m.mutate(ctx, "disassociate_country_fundamental", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		key := fundamentalKey{fundamentalID, countryID.String()}
		cf, ok := g.countryFundamentals[key]
		if !ok {
			return emission{}, fmt.Errorf("fundamental %s for country %s: %w", fundamentalID, countryID, refdata.ErrNotAssociated)
		}
		if err := m.store.DeleteCountryFundamental(ctx, provider, fundamentalID, countryID); err != nil {
			return emission{}, fmt.Errorf("delete country fundamental: %w", err)
		}
		delete(g.countryFundamentals, key)
		return modelEvent(notify.ChangeDeleted, notify.EntityCountryFundamental, cf.AssociationID, countryID.String()), nil
	})
}

// SetCountryFundamentalValue upserts the value released at the given date.
func (m *Manager) SetCountryFundamentalValue(ctx context.Context, fundamentalID, countryID uuid.UUID, at time.Time, value float64) error {
	at = at.UTC()
	return m.mutate(ctx, "set_country_fundamental_value", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if err := valueTarget(g, fundamentalID, refdata.CategoryCountry); err != nil {
			return emission{}, err
		}
		fv := refdata.FundamentalValue{DateTime: at, Value: value}
		if err := m.store.UpsertCountryFundamentalValue(ctx, provider, fundamentalID, countryID, fv); err != nil {
			return emission{}, fmt.Errorf("upsert country fundamental value: %w", err)
		}
		if cf, ok := g.countryFundamentals[fundamentalKey{fundamentalID, countryID.String()}]; ok {
			cf.Values = cf.Values.Upsert(at, value)
		} else {
			m.associationReused(provider, fundamentalID, countryID.String())
		}
		return fundamentalEvent(notify.ChangeUpdated, provider, fundamentalID, notify.EntityCountryFundamental, countryID.String(), fv), nil
	})
}

func (m *Manager) DeleteCountryFundamentalValue(ctx context.Context, fundamentalID, countryID uuid.UUID, at time.Time) error {
	at = at.UTC()
	return m.mutate(ctx, "delete_country_fundamental_value", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if err := valueTarget(g, fundamentalID, refdata.CategoryCountry); err != nil {
			return emission{}, err
		}
		if err := m.store.DeleteCountryFundamentalValue(ctx, provider, fundamentalID, countryID, at); err != nil {
			return emission{}, fmt.Errorf("delete country fundamental value: %w", err)
		}
		if cf, ok := g.countryFundamentals[fundamentalKey{fundamentalID, countryID.String()}]; ok {
			cf.Values, _ = cf.Values.Delete(at)
		} else {
			m.associationReused(provider, fundamentalID, countryID.String())
		}
		return fundamentalEvent(notify.ChangeDeleted, provider, fundamentalID, notify.EntityCountryFundamental, countryID.String(),
			refdata.FundamentalValue{DateTime: at}), nil
	})
}

// Instrument fundamentals

func (m *Manager) InstrumentFundamentals(ctx context.Context, ticker string) ([]*refdata.InstrumentFundamental, error) {
	var out []*refdata.InstrumentFundamental
	err := m.read(ctx, func(g *graph) error {
		inst, ok := g.instrument(ticker)
		if !ok {
			return fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		for key, inf := range g.instrumentFundamentals {
			if key.entity == inst.Ticker {
				out = append(out, inf.Clone())
			}
		}
		sortAssociations(out, func(inf *refdata.InstrumentFundamental) uuid.UUID { return inf.FundamentalID })
		return nil
	})
	return out, err
}

func (m *Manager) InstrumentFundamental(ctx context.Context, fundamentalID uuid.UUID, ticker string) (*refdata.InstrumentFundamental, error) {
	var out *refdata.InstrumentFundamental
	err := m.read(ctx, func(g *graph) error {
		inst, ok := g.instrument(ticker)
		if !ok {
			return fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		inf, ok := g.instrumentFundamentals[fundamentalKey{fundamentalID, inst.Ticker}]
		if !ok {
			return fmt.Errorf("fundamental %s for instrument %s: %w", fundamentalID, inst.Ticker, refdata.ErrNotAssociated)
		}
		out = inf.Clone()
		return nil
	})
	return out, err
}

func (m *Manager) AssociateInstrumentFundamental(ctx context.Context, fundamentalID uuid.UUID, ticker string) (*refdata.InstrumentFundamental, error) {
	var out *refdata.InstrumentFundamental
	err := m.mutate(ctx, "associate_instrument_fundamental", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if _, err := fundamentalOf(g, fundamentalID, refdata.CategoryInstrument); err != nil {
			return emission{}, err
		}
		inst, ok := g.instrument(ticker)
		if !ok {
			return emission{}, fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		key := fundamentalKey{fundamentalID, inst.Ticker}
		if inf, ok := g.instrumentFundamentals[key]; ok {
			out = inf.Clone()
			return emission{}, nil
		}
		id, err := m.store.CreateInstrumentFundamental(ctx, provider, fundamentalID, inst.Ticker)
		if err != nil {
			return emission{}, fmt.Errorf("create instrument fundamental: %w", err)
		}
		inf := &refdata.InstrumentFundamental{
			AssociationID: id,
			Provider:      provider,
			FundamentalID: fundamentalID,
			Ticker:        inst.Ticker,
		}
		g.instrumentFundamentals[key] = inf
		out = inf.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityInstrumentFundamental, id, inst.Ticker), nil
	})
	return out, err
}

func (m *Manager) DisassociateInstrumentFundamental(ctx context.Context, fundamentalID uuid.UUID, ticker string) error {
	return m.mutate(ctx, "disassociate_instrument_fundamental", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		inst, ok := g.instrument(ticker)
		if !ok {
			return emission{}, fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		key := fundamentalKey{fundamentalID, inst.Ticker}
		inf, ok := g.instrumentFundamentals[key]
		if !ok {
			return emission{}, fmt.Errorf("fundamental %s for instrument %s: %w", fundamentalID, inst.Ticker, refdata.ErrNotAssociated)
		}
		if err := m.store.DeleteInstrumentFundamental(ctx, provider, fundamentalID, inst.Ticker); err != nil {
			return emission{}, fmt.Errorf("delete instrument fundamental: %w", err)
		}
		delete(g.instrumentFundamentals, key)
		return modelEvent(notify.ChangeDeleted, notify.EntityInstrumentFundamental, inf.AssociationID, inst.Ticker), nil
	})
}

func (m *Manager) SetInstrumentFundamentalValue(ctx context.Context, fundamentalID uuid.UUID, ticker string, at time.Time, value float64) error {
	at = at.UTC()
	return m.mutate(ctx, "set_instrument_fundamental_value", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if err := valueTarget(g, fundamentalID, refdata.CategoryInstrument); err != nil {
			return emission{}, err
		}
		primary := refdata.NormalizeTicker(ticker)
		if inst, ok := g.instrument(ticker); ok {
			primary = inst.Ticker
		}
		fv := refdata.FundamentalValue{DateTime: at, Value: value}
		if err := m.store.UpsertInstrumentFundamentalValue(ctx, provider, fundamentalID, primary, fv); err != nil {
			return emission{}, fmt.Errorf("upsert instrument fundamental value: %w", err)
		}
		if inf, ok := g.instrumentFundamentals[fundamentalKey{fundamentalID, primary}]; ok {
			inf.Values = inf.Values.Upsert(at, value)
		} else {
			m.associationReused(provider, fundamentalID, primary)
		}
		return fundamentalEvent(notify.ChangeUpdated, provider, fundamentalID, notify.EntityInstrumentFundamental, primary, fv), nil
	})
}

func (m *Manager) DeleteInstrumentFundamentalValue(ctx context.Context, fundamentalID uuid.UUID, ticker string, at time.Time) error {
	at = at.UTC()
	return m.mutate(ctx, "delete_instrument_fundamental_value", func(g *graph) (emission, error) {
		provider, err := m.requireProviderLocked()
		if err != nil {
			return emission{}, err
		}
		if err := valueTarget(g, fundamentalID, refdata.CategoryInstrument); err != nil {
			return emission{}, err
		}
		primary := refdata.NormalizeTicker(ticker)
		if inst, ok := g.instrument(ticker); ok {
			primary = inst.Ticker
		}
		if err := m.store.DeleteInstrumentFundamentalValue(ctx, provider, fundamentalID, primary, at); err != nil {
			return emission{}, fmt.Errorf("delete instrument fundamental value: %w", err)
		}
		if inf, ok := g.instrumentFundamentals[fundamentalKey{fundamentalID, primary}]; ok {
			inf.Values, _ = inf.Values.Delete(at)
		} else {
			m.associationReused(provider, fundamentalID, primary)
		}
		return fundamentalEvent(notify.ChangeDeleted, provider, fundamentalID, notify.EntityInstrumentFundamental, primary,
			refdata.FundamentalValue{DateTime: at}), nil
	})
}

// associationReused is called when the store accepted a value write
// through another provider's association that the graph does not hold.
// The graph reloads to pick it up.
func (m *Manager) associationReused(provider string, fundamentalID uuid.UUID, entity string) {
	m.state = stateDirty
	m.logger.WithFields(logrus.Fields{
		"provider":    provider,
		"fundamental": fundamentalID.String(),
		"entity":      entity,
	}).Debug("value written through a reused association, graph will reload")
}

func fundamentalEvent(kind notify.ChangeKind, provider string, fundamentalID uuid.UUID, entity notify.EntityKind, key string, v refdata.FundamentalValue) emission {
	return emission{fundamental: []notify.FundamentalChange{{
		Kind:          kind,
		Provider:      provider,
		FundamentalID: fundamentalID,
		Entity:        entity,
		Key:           key,
		DateTime:      v.DateTime,
		Value:         v.Value,
	}}}
}

func sortAssociations[T any](items []T, fundamentalID func(T) uuid.UUID) {
	sort.Slice(items, func(i, j int) bool { return fundamentalID(items[i]).String() < fundamentalID(items[j]).String() })
}
