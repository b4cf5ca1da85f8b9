package refgraph

import (
	"context"
	"fmt"
	"strings"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func localizedExchange(g *graph, e *refdata.Exchange) *refdata.Exchange {
	out := e.Clone()
	out.Name = g.text(e.ID.String(), refdata.FieldName, e.Name)
	return out
}

func (m *Manager) Exchanges(ctx context.Context) ([]*refdata.Exchange, error) {
	var out []*refdata.Exchange
	err := m.read(ctx, func(g *graph) error {
		for _, e := range sortedValues(g.exchanges, func(a, b *refdata.Exchange) bool { return lessFold(a.Name, b.Name) }) {
			out = append(out, localizedExchange(g, e))
		}
		return nil
	})
	return out, err
}

func (m *Manager) Exchange(ctx context.Context, id uuid.UUID) (*refdata.Exchange, error) {
	var out *refdata.Exchange
	err := m.read(ctx, func(g *graph) error {
		e, ok := g.exchanges[id]
		if !ok {
			return fmt.Errorf("exchange %s: %w", id, refdata.ErrNotFound)
		}
		out = localizedExchange(g, e)
		return nil
	})
	return out, err
}

// FindExchange looks an exchange up by name or alternate name within a
// country.
func (m *Manager) FindExchange(ctx context.Context, countryID uuid.UUID, name string) (*refdata.Exchange, error) {
	var out *refdata.Exchange
	err := m.read(ctx, func(g *graph) error {
		e, ok := exchangeByName(g, countryID, name)
		if !ok {
			return fmt.Errorf("exchange %q: %w", name, refdata.ErrNotFound)
		}
		out = localizedExchange(g, e)
		return nil
	})
	return out, err
}

func exchangeByName(g *graph, countryID uuid.UUID, name string) (*refdata.Exchange, bool) {
	country, ok := g.countries[countryID]
	if !ok {
		return nil, false
	}
	for _, id := range country.ExchangeIDs {
		if e := g.exchanges[id]; e != nil && e.Matches(name) {
			return e, true
		}
	}
	return nil, false
}

// exchangeNameTaken checks the name and alternates of e against the other
// exchanges of its country.
func exchangeNameTaken(g *graph, e *refdata.Exchange) bool {
	names := append([]string{e.Name}, e.AlternateNames...)
	for _, name := range names {
		if other, ok := exchangeByName(g, e.CountryID, name); ok && other.ID != e.ID {
			return true
		}
	}
	return false
}

func normalizeExchange(e *refdata.Exchange) error {
	e.Name = strings.TrimSpace(e.Name)
	if e.Name == "" {
		return fmt.Errorf("exchange name is required")
	}
	if _, err := refdata.LoadLocation(e.TimeZone); err != nil {
		return err
	}
	if e.DefaultPriceDecimals < 0 {
		return fmt.Errorf("invalid default price decimals: %d", e.DefaultPriceDecimals)
	}
	return nil
}

func (m *Manager) CreateExchange(ctx context.Context, exchange *refdata.Exchange) (*refdata.Exchange, error) {
	if exchange == nil {
		return nil, ErrNilEntity
	}
	next := exchange.Clone()
	next.ResetLinks()
	if err := normalizeExchange(next); err != nil {
		return nil, err
	}
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	if next.Attributes == refdata.AttrNone {
		next.Attributes = refdata.AttrDefault
	}
	if next.CountryID == uuid.Nil {
		next.CountryID = refdata.InternationalCountryID
	}
	var out *refdata.Exchange
	err := m.mutate(ctx, "create_exchange", func(g *graph) (emission, error) {
		country, ok := g.countries[next.CountryID]
		if !ok {
			return emission{}, fmt.Errorf("country %s: %w", next.CountryID, refdata.ErrInvalidParent)
		}
		if exchangeNameTaken(g, next) {
			return emission{}, fmt.Errorf("exchange %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateExchange(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create exchange: %w", err)
		}
		next.Tag.MarkClean()
		g.exchanges[next.ID] = next
		country.AddExchange(next.ID)
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityExchange, next.ID, next.Name), nil
	})
	return out, err
}

func (m *Manager) UpdateExchange(ctx context.Context, exchange *refdata.Exchange, opts ...UpdateOption) error {
	if exchange == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_exchange", func(g *graph) (emission, error) {
		current, ok := g.exchanges[exchange.ID]
		if !ok {
			return emission{}, fmt.Errorf("exchange %s: %w", exchange.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			if err := m.translate(ctx, g, current.ID.String(), o.locale, refdata.FieldName, exchange.Name); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityExchange, current.ID, current.Name), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("exchange %s: %w", current.Name, refdata.ErrProtectedEntity)
		}
		next := exchange.Clone()
		next.Attributes = current.Attributes
		next.SessionIDs = current.SessionIDs
		next.HolidayIDs = current.HolidayIDs
		next.InstrumentTickers = current.InstrumentTickers
		next.SecondaryTickers = current.SecondaryTickers
		next.Name = g.canonicalText(current.ID.String(), refdata.FieldName, strings.TrimSpace(next.Name), current.Name)
		if next.CountryID == uuid.Nil {
			next.CountryID = current.CountryID
		}
		if err := normalizeExchange(next); err != nil {
			return emission{}, err
		}
		newCountry, ok := g.countries[next.CountryID]
		if !ok {
			return emission{}, fmt.Errorf("country %s: %w", next.CountryID, refdata.ErrInvalidParent)
		}
		if exchangeNameTaken(g, next) {
			return emission{}, fmt.Errorf("exchange %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.UpdateExchange(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update exchange: %w", err)
		}
		next.Tag.MarkClean()
		if next.CountryID != current.CountryID {
			if old, ok := g.countries[current.CountryID]; ok {
				old.RemoveExchange(current.ID)
			}
			newCountry.AddExchange(next.ID)
		}
		g.exchanges[next.ID] = next
		return modelEvent(notify.ChangeUpdated, notify.EntityExchange, next.ID, next.Name), nil
	})
}

// DeleteExchange removes the exchange, its sessions and holidays and the
// instruments listed on it as primary exchange.
func (m *Manager) DeleteExchange(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_exchange", func(g *graph) (emission, error) {
		exchange, ok := g.exchanges[id]
		if !ok {
			return emission{}, fmt.Errorf("exchange %s: %w", id, refdata.ErrNotFound)
		}
		if !exchange.Attributes.Deletable() {
			return emission{}, fmt.Errorf("exchange %s: %w", exchange.Name, refdata.ErrProtectedEntity)
		}
		if err := m.deleteExchangeLocked(ctx, g, id); err != nil {
			return emission{}, err
		}
		return modelEvent(notify.ChangeDeleted, notify.EntityExchange, id, exchange.Name), nil
	})
}

func (m *Manager) deleteExchangeLocked(ctx context.Context, g *graph, id uuid.UUID) error {
	exchange, ok := g.exchanges[id]
	if !ok {
		return nil
	}
	fail := func(err error) error {
		return m.cascadeFailed(err, logrus.Fields{"entity": "exchange", "id": id.String()})
	}
	for _, ticker := range append([]string(nil), exchange.InstrumentTickers...) {
		if err := m.deleteInstrumentLocked(ctx, g, ticker); err != nil {
			return fail(err)
		}
	}
	for _, sessionID := range append([]uuid.UUID(nil), exchange.SessionIDs...) {
		if err := m.store.DeleteSession(ctx, sessionID); err != nil {
			return fail(fmt.Errorf("delete session: %w", err))
		}
		delete(g.sessions, sessionID)
	}
	for _, holidayID := range append([]uuid.UUID(nil), exchange.HolidayIDs...) {
		if err := m.store.DeleteHoliday(ctx, holidayID); err != nil {
			return fail(fmt.Errorf("delete holiday: %w", err))
		}
		delete(g.holidays, holidayID)
	}
	if err := m.store.DeleteExchange(ctx, id); err != nil {
		return fail(fmt.Errorf("delete exchange: %w", err))
	}
	for _, ticker := range exchange.SecondaryTickers {
		if inst, ok := g.instruments[ticker]; ok {
			inst.RemoveSecondaryExchange(id)
		}
	}
	if country, ok := g.countries[exchange.CountryID]; ok {
		country.RemoveExchange(id)
	}
	delete(g.exchanges, id)
	return nil
}
