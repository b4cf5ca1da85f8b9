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

func localizedInstrument(g *graph, inst *refdata.Instrument) *refdata.Instrument {
	out := inst.Clone()
	out.Name = g.text(inst.Ticker, refdata.FieldName, inst.Name)
	out.Description = g.text(inst.Ticker, refdata.FieldDescription, inst.Description)
	return out
}

func (m *Manager) Instruments(ctx context.Context) ([]*refdata.Instrument, error) {
	var out []*refdata.Instrument
	err := m.read(ctx, func(g *graph) error {
		for _, inst := range sortedValues(g.instruments, func(a, b *refdata.Instrument) bool { return a.Ticker < b.Ticker }) {
			out = append(out, localizedInstrument(g, inst))
		}
		return nil
	})
	return out, err
}

// FindInstrument resolves a primary or alternate ticker.
func (m *Manager) FindInstrument(ctx context.Context, ticker string) (*refdata.Instrument, error) {
	var out *refdata.Instrument
	err := m.read(ctx, func(g *graph) error {
		inst, ok := g.instrument(ticker)
		if !ok {
			return fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		out = localizedInstrument(g, inst)
		return nil
	})
	return out, err
}

// InstrumentsByExchange returns the instruments listed on the exchange,
// primary listings first.
func (m *Manager) InstrumentsByExchange(ctx context.Context, exchangeID uuid.UUID) ([]*refdata.Instrument, error) {
	var out []*refdata.Instrument
	err := m.read(ctx, func(g *graph) error {
		exchange, ok := g.exchanges[exchangeID]
		if !ok {
			return fmt.Errorf("exchange %s: %w", exchangeID, refdata.ErrNotFound)
		}
		out = instrumentsFor(g, exchange.InstrumentTickers)
		out = append(out, instrumentsFor(g, exchange.SecondaryTickers)...)
		return nil
	})
	return out, err
}

func (m *Manager) InstrumentsByGroup(ctx context.Context, groupID uuid.UUID) ([]*refdata.Instrument, error) {
	var out []*refdata.Instrument
	err := m.read(ctx, func(g *graph) error {
		group, ok := g.groups[groupID]
		if !ok {
			return fmt.Errorf("instrument group %s: %w", groupID, refdata.ErrNotFound)
		}
		out = instrumentsFor(g, group.InstrumentTickers)
		return nil
	})
	return out, err
}

func instrumentsFor(g *graph, tickers []string) []*refdata.Instrument {
	out := make([]*refdata.Instrument, 0, len(tickers))
	for _, t := range tickers {
		if inst, ok := g.instruments[t]; ok {
			out = append(out, localizedInstrument(g, inst))
		}
	}
	return out
}

func checkListings(g *graph, inst *refdata.Instrument) error {
	if _, ok := g.exchanges[inst.PrimaryExchangeID]; !ok {
		return fmt.Errorf("primary exchange %s: %w", inst.PrimaryExchangeID, refdata.ErrInvalidParent)
	}
	for _, id := range inst.SecondaryExchangeIDs {
		if _, ok := g.exchanges[id]; !ok {
			return fmt.Errorf("secondary exchange %s: %w", id, refdata.ErrInvalidParent)
		}
	}
	return nil
}

func prepareInstrument(in *refdata.Instrument) (*refdata.Instrument, error) {
	next := in.Clone()
	if err := next.Normalize(); err != nil {
		return nil, err
	}
	next.Name = strings.TrimSpace(next.Name)
	secondary := next.SecondaryExchangeIDs
	next.SecondaryExchangeIDs = nil
	for _, id := range secondary {
		next.AddSecondaryExchange(id)
	}
	return next, nil
}

func listInstrument(g *graph, inst *refdata.Instrument) {
	g.exchanges[inst.PrimaryExchangeID].AddInstrument(inst.Ticker)
	for _, id := range inst.SecondaryExchangeIDs {
		g.exchanges[id].AddSecondaryListing(inst.Ticker)
	}
}

func delistInstrument(g *graph, inst *refdata.Instrument) {
	if e, ok := g.exchanges[inst.PrimaryExchangeID]; ok {
		e.RemoveInstrument(inst.Ticker)
	}
	for _, id := range inst.SecondaryExchangeIDs {
		if e, ok := g.exchanges[id]; ok {
			e.RemoveSecondaryListing(inst.Ticker)
		}
	}
}

// CreateInstrument rejects any ticker, primary or alternate, already used
// by another instrument.
func (m *Manager) CreateInstrument(ctx context.Context, instrument *refdata.Instrument) (*refdata.Instrument, error) {
	if instrument == nil {
		return nil, ErrNilEntity
	}
	next, err := prepareInstrument(instrument)
	if err != nil {
		return nil, err
	}
	next.GroupIDs = nil
	if next.Attributes == refdata.AttrNone {
		next.Attributes = refdata.AttrDefault
	}
	var out *refdata.Instrument
	err = m.mutate(ctx, "create_instrument", func(g *graph) (emission, error) {
		if owner, taken := g.tickerOwner(next.Tickers(), ""); taken {
			return emission{}, fmt.Errorf("instrument %s already uses a ticker of %s: %w", owner, next.Ticker, refdata.ErrDuplicateTicker)
		}
		if err := checkListings(g, next); err != nil {
			return emission{}, err
		}
		if err := m.store.CreateInstrument(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create instrument: %w", err)
		}
		next.Tag.MarkClean()
		next.ExtendedProperties.MarkClean()
		g.instruments[next.Ticker] = next
		g.indexTickers(next)
		listInstrument(g, next)
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityInstrument, uuid.Nil, next.Ticker), nil
	})
	return out, err
}

// UpdateInstrument looks the instrument up by any of its tickers. The
// primary ticker cannot change; alternates can.
func (m *Manager) UpdateInstrument(ctx context.Context, instrument *refdata.Instrument, opts ...UpdateOption) error {
	if instrument == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_instrument", func(g *graph) (emission, error) {
		current, ok := g.instrument(instrument.Ticker)
		if !ok {
			return emission{}, fmt.Errorf("instrument %s: %w", instrument.Ticker, refdata.ErrNotFound)
		}
		if o.locale != "" {
			if err := m.translate(ctx, g, current.Ticker, o.locale, refdata.FieldName, instrument.Name); err != nil {
				return emission{}, err
			}
			if err := m.translate(ctx, g, current.Ticker, o.locale, refdata.FieldDescription, instrument.Description); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityInstrument, uuid.Nil, current.Ticker), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("instrument %s: %w", current.Ticker, refdata.ErrProtectedEntity)
		}
		in := instrument.Clone()
		in.Ticker = current.Ticker
		next, err := prepareInstrument(in)
		if err != nil {
			return emission{}, err
		}
		next.Attributes = current.Attributes
		next.GroupIDs = current.GroupIDs
		next.Name = g.canonicalText(current.Ticker, refdata.FieldName, next.Name, current.Name)
		next.Description = g.canonicalText(current.Ticker, refdata.FieldDescription, next.Description, current.Description)
		if owner, taken := g.tickerOwner(next.Tickers(), current.Ticker); taken {
			return emission{}, fmt.Errorf("instrument %s already uses a ticker of %s: %w", owner, next.Ticker, refdata.ErrDuplicateTicker)
		}
		if err := checkListings(g, next); err != nil {
			return emission{}, err
		}
		if err := m.store.UpdateInstrument(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update instrument: %w", err)
		}
		next.Tag.MarkClean()
		next.ExtendedProperties.MarkClean()
		delistInstrument(g, current)
		g.unindexTickers(current)
		g.instruments[next.Ticker] = next
		g.indexTickers(next)
		listInstrument(g, next)
		return modelEvent(notify.ChangeUpdated, notify.EntityInstrument, uuid.Nil, next.Ticker), nil
	})
}

// DeleteInstrument removes the instrument, its group memberships and its
// fundamental associations. Stored price data is kept.
func (m *Manager) DeleteInstrument(ctx context.Context, ticker string) error {
	return m.mutate(ctx, "delete_instrument", func(g *graph) (emission, error) {
		inst, ok := g.instrument(ticker)
		if !ok {
			return emission{}, fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
		}
		if !inst.Attributes.Deletable() {
			return emission{}, fmt.Errorf("instrument %s: %w", inst.Ticker, refdata.ErrProtectedEntity)
		}
		if err := m.deleteInstrumentLocked(ctx, g, inst.Ticker); err != nil {
			return emission{}, err
		}
		return modelEvent(notify.ChangeDeleted, notify.EntityInstrument, uuid.Nil, inst.Ticker), nil
	})
}

func (m *Manager) deleteInstrumentLocked(ctx context.Context, g *graph, ticker string) error {
	inst, ok := g.instruments[ticker]
	if !ok {
		return nil
	}
	if err := m.store.DeleteInstrument(ctx, ticker); err != nil {
		return m.cascadeFailed(fmt.Errorf("delete instrument: %w", err), logrus.Fields{"entity": "instrument", "id": ticker})
	}
	delistInstrument(g, inst)
	for _, id := range inst.GroupIDs {
		if group, ok := g.groups[id]; ok {
			group.RemoveInstrument(ticker)
		}
	}
	for key := range g.instrumentFundamentals {
		if key.entity == ticker {
			delete(g.instrumentFundamentals, key)
		}
	}
	g.unindexTickers(inst)
	delete(g.instruments, ticker)
	return nil
}
