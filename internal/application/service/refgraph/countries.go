package refgraph

import (
	"context"
	"fmt"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func (m *Manager) Countries(ctx context.Context) ([]*refdata.Country, error) {
	var out []*refdata.Country
	err := m.read(ctx, func(g *graph) error {
		for _, c := range sortedValues(g.countries, func(a, b *refdata.Country) bool { return a.IsoCode < b.IsoCode }) {
			out = append(out, c.Clone())
		}
		return nil
	})
	return out, err
}

func (m *Manager) Country(ctx context.Context, id uuid.UUID) (*refdata.Country, error) {
	var out *refdata.Country
	err := m.read(ctx, func(g *graph) error {
		c, ok := g.countries[id]
		if !ok {
			return fmt.Errorf("country %s: %w", id, refdata.ErrNotFound)
		}
		out = c.Clone()
		return nil
	})
	return out, err
}

func (m *Manager) CountryByIsoCode(ctx context.Context, isoCode string) (*refdata.Country, error) {
	code, err := refdata.NormalizeIsoCode(isoCode)
	if err != nil {
		return nil, err
	}
	var out *refdata.Country
	err = m.read(ctx, func(g *graph) error {
		c, ok := countryByIso(g, code)
		if !ok {
			return fmt.Errorf("country %s: %w", code, refdata.ErrNotFound)
		}
		out = c.Clone()
		return nil
	})
	return out, err
}

func countryByIso(g *graph, code string) (*refdata.Country, bool) {
	for _, c := range g.countries {
		if c.IsoCode == code {
			return c, true
		}
	}
	return nil, false
}

func (m *Manager) CreateCountry(ctx context.Context, isoCode string) (*refdata.Country, error) {
	country, err := refdata.NewCountry(isoCode)
	if err != nil {
		return nil, err
	}
	var out *refdata.Country
	err = m.mutate(ctx, "create_country", func(g *graph) (emission, error) {
		if _, ok := countryByIso(g, country.IsoCode); ok {
			return emission{}, fmt.Errorf("country %s: %w", country.IsoCode, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateCountry(ctx, country); err != nil {
			return emission{}, fmt.Errorf("create country: %w", err)
		}
		country.Localize(m.locale)
		g.countries[country.ID] = country
		out = country.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityCountry, country.ID, country.IsoCode), nil
	})
	return out, err
}

// UpdateCountry persists the tag and iso code. With InLocale it stores a
// display-name translation instead.
func (m *Manager) UpdateCountry(ctx context.Context, country *refdata.Country, opts ...UpdateOption) error {
	if country == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_country", func(g *graph) (emission, error) {
		current, ok := g.countries[country.ID]
		if !ok {
			return emission{}, fmt.Errorf("country %s: %w", country.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			if err := m.translate(ctx, g, country.ID.String(), o.locale, refdata.FieldName, country.DisplayName); err != nil {
				return emission{}, err
			}
			if o.locale == m.locale.String() {
				current.DisplayName = country.DisplayName
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityCountry, current.ID, current.IsoCode), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("country %s: %w", current.IsoCode, refdata.ErrProtectedEntity)
		}
		code, err := refdata.NormalizeIsoCode(country.IsoCode)
		if err != nil {
			return emission{}, err
		}
		if other, ok := countryByIso(g, code); ok && other.ID != current.ID {
			return emission{}, fmt.Errorf("country %s: %w", code, refdata.ErrDuplicateName)
		}
		next := current.Clone()
		next.IsoCode = code
		next.Tag = country.Tag.Clone()
		if err := m.store.UpdateCountry(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update country: %w", err)
		}
		next.Tag.MarkClean()
		next.Localize(m.locale)
		next.DisplayName = g.text(next.ID.String(), refdata.FieldName, next.DisplayName)
		g.countries[next.ID] = next
		return modelEvent(notify.ChangeUpdated, notify.EntityCountry, next.ID, next.IsoCode), nil
	})
}

// DeleteCountry removes the country with its exchanges (and everything
// they own) and its holidays.
func (m *Manager) DeleteCountry(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_country", func(g *graph) (emission, error) {
		country, ok := g.countries[id]
		if !ok {
			return emission{}, fmt.Errorf("country %s: %w", id, refdata.ErrNotFound)
		}
		if country.IsInternational() || !country.Attributes.Deletable() {
			return emission{}, fmt.Errorf("country %s: %w", country.IsoCode, refdata.ErrProtectedEntity)
		}
		fields := logrus.Fields{"entity": "country", "id": id.String()}
		for _, exchangeID := range append([]uuid.UUID(nil), country.ExchangeIDs...) {
			if err := m.deleteExchangeLocked(ctx, g, exchangeID); err != nil {
				return emission{}, err
			}
		}
		for _, holidayID := range append([]uuid.UUID(nil), country.HolidayIDs...) {
			if err := m.store.DeleteHoliday(ctx, holidayID); err != nil {
				return emission{}, m.cascadeFailed(err, fields)
			}
			delete(g.holidays, holidayID)
		}
		if err := m.store.DeleteCountry(ctx, id); err != nil {
			return emission{}, m.cascadeFailed(fmt.Errorf("delete country: %w", err), fields)
		}
		for key := range g.countryFundamentals {
			if key.entity == id.String() {
				delete(g.countryFundamentals, key)
			}
		}
		delete(g.countries, id)
		return modelEvent(notify.ChangeDeleted, notify.EntityCountry, id, country.IsoCode), nil
	})
}

// translate writes a translation row and, for the active locale, updates
// the overlay used on reads.
func (m *Manager) translate(ctx context.Context, g *graph, entity, locale string, field refdata.TextField, value string) error {
	t := refdata.Translation{EntityKey: entity, Field: field, Locale: locale, Value: value}
	if err := m.store.PutTranslation(ctx, t); err != nil {
		return fmt.Errorf("put translation: %w", err)
	}
	if locale == m.locale.String() {
		g.translations[translationKey{entity, field}] = value
	}
	return nil
}
