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
)

// HolidayDate is a holiday resolved to its observed date in a year.
type HolidayDate struct {
	Holiday *refdata.Holiday `json:"holiday"`
	Date    time.Time        `json:"date"`
}

func localizedHoliday(g *graph, h *refdata.Holiday) *refdata.Holiday {
	out := h.Clone()
	out.Name = g.text(h.ID.String(), refdata.FieldName, h.Name)
	return out
}

func (m *Manager) Holiday(ctx context.Context, id uuid.UUID) (*refdata.Holiday, error) {
	var out *refdata.Holiday
	err := m.read(ctx, func(g *graph) error {
		h, ok := g.holidays[id]
		if !ok {
			return fmt.Errorf("holiday %s: %w", id, refdata.ErrNotFound)
		}
		out = localizedHoliday(g, h)
		return nil
	})
	return out, err
}

// Holidays returns the holidays owned by a country or an exchange.
func (m *Manager) Holidays(ctx context.Context, parentID uuid.UUID) ([]*refdata.Holiday, error) {
	var out []*refdata.Holiday
	err := m.read(ctx, func(g *graph) error {
		ids, err := holidayScope(g, parentID)
		if err != nil {
			return err
		}
		for _, id := range ids {
			out = append(out, localizedHoliday(g, g.holidays[id]))
		}
		sort.Slice(out, func(i, j int) bool { return lessFold(out[i].Name, out[j].Name) })
		return nil
	})
	return out, err
}

func holidayScope(g *graph, parentID uuid.UUID) ([]uuid.UUID, error) {
	if c, ok := g.countries[parentID]; ok {
		return c.HolidayIDs, nil
	}
	if e, ok := g.exchanges[parentID]; ok {
		return e.HolidayIDs, nil
	}
	return nil, fmt.Errorf("holiday parent %s: %w", parentID, refdata.ErrNotFound)
}

// HolidaysForYear merges the exchange's holidays with those of its
// country and resolves them to dates, ordered by date.
func (m *Manager) HolidaysForYear(ctx context.Context, exchangeID uuid.UUID, year int) ([]HolidayDate, error) {
	var out []HolidayDate
	err := m.read(ctx, func(g *graph) error {
		exchange, ok := g.exchanges[exchangeID]
		if !ok {
			return fmt.Errorf("exchange %s: %w", exchangeID, refdata.ErrNotFound)
		}
		ids := append([]uuid.UUID(nil), exchange.HolidayIDs...)
		if country, ok := g.countries[exchange.CountryID]; ok {
			ids = append(ids, country.HolidayIDs...)
		}
		for _, id := range ids {
			h := g.holidays[id]
			out = append(out, HolidayDate{Holiday: localizedHoliday(g, h), Date: h.ForYear(year)})
		}
		sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
		return nil
	})
	return out, err
}

// IsHoliday reports whether the exchange is closed for a holiday on the
// calendar date of t in the exchange time zone.
func (m *Manager) IsHoliday(ctx context.Context, exchangeID uuid.UUID, t time.Time) (bool, error) {
	exchange, err := m.Exchange(ctx, exchangeID)
	if err != nil {
		return false, err
	}
	loc, err := exchange.Location()
	if err != nil {
		return false, err
	}
	local := t.In(loc)
	dates, err := m.HolidaysForYear(ctx, exchangeID, local.Year())
	if err != nil {
		return false, err
	}
	for _, d := range dates {
		if d.Date.Month() == local.Month() && d.Date.Day() == local.Day() {
			return true, nil
		}
	}
	return false, nil
}

func holidayNameTaken(g *graph, h *refdata.Holiday) bool {
	ids, err := holidayScope(g, h.ParentID)
	if err != nil {
		return false
	}
	for _, id := range ids {
		other := g.holidays[id]
		if other.ID != h.ID && strings.EqualFold(other.Name, h.Name) {
			return true
		}
	}
	return false
}

func holidayParentExists(g *graph, h *refdata.Holiday) bool {
	switch h.Scope {
	case refdata.ScopeCountry:
		_, ok := g.countries[h.ParentID]
		return ok
	case refdata.ScopeExchange:
		_, ok := g.exchanges[h.ParentID]
		return ok
	default:
		return false
	}
}

func linkHoliday(g *graph, h *refdata.Holiday) {
	if h.Scope == refdata.ScopeCountry {
		g.countries[h.ParentID].AddHoliday(h.ID)
		return
	}
	g.exchanges[h.ParentID].AddHoliday(h.ID)
}

func unlinkHoliday(g *graph, h *refdata.Holiday) {
	if c, ok := g.countries[h.ParentID]; ok {
		c.RemoveHoliday(h.ID)
	}
	if e, ok := g.exchanges[h.ParentID]; ok {
		e.RemoveHoliday(h.ID)
	}
}

func (m *Manager) CreateHoliday(ctx context.Context, holiday *refdata.Holiday) (*refdata.Holiday, error) {
	if holiday == nil {
		return nil, ErrNilEntity
	}
	next := holiday.Clone()
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
	var out *refdata.Holiday
	err := m.mutate(ctx, "create_holiday", func(g *graph) (emission, error) {
		if !holidayParentExists(g, next) {
			return emission{}, fmt.Errorf("holiday %s parent %s: %w", next.Scope, next.ParentID, refdata.ErrInvalidParent)
		}
		if holidayNameTaken(g, next) {
			return emission{}, fmt.Errorf("holiday %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateHoliday(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create holiday: %w", err)
		}
		next.Tag.MarkClean()
		g.holidays[next.ID] = next
		linkHoliday(g, next)
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityHoliday, next.ID, next.Name), nil
	})
	return out, err
}

func (m *Manager) UpdateHoliday(ctx context.Context, holiday *refdata.Holiday, opts ...UpdateOption) error {
	if holiday == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_holiday", func(g *graph) (emission, error) {
		current, ok := g.holidays[holiday.ID]
		if !ok {
			return emission{}, fmt.Errorf("holiday %s: %w", holiday.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			if err := m.translate(ctx, g, current.ID.String(), o.locale, refdata.FieldName, holiday.Name); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityHoliday, current.ID, current.Name), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("holiday %s: %w", current.Name, refdata.ErrProtectedEntity)
		}
		next := holiday.Clone()
		next.Attributes = current.Attributes
		next.Name = g.canonicalText(current.ID.String(), refdata.FieldName, strings.TrimSpace(next.Name), current.Name)
		if next.ParentID == uuid.Nil {
			next.Scope, next.ParentID = current.Scope, current.ParentID
		}
		if err := next.Validate(); err != nil {
			return emission{}, err
		}
		if !holidayParentExists(g, next) {
			return emission{}, fmt.Errorf("holiday %s parent %s: %w", next.Scope, next.ParentID, refdata.ErrInvalidParent)
		}
		if holidayNameTaken(g, next) {
			return emission{}, fmt.Errorf("holiday %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.UpdateHoliday(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update holiday: %w", err)
		}
		next.Tag.MarkClean()
		unlinkHoliday(g, current)
		g.holidays[next.ID] = next
		linkHoliday(g, next)
		return modelEvent(notify.ChangeUpdated, notify.EntityHoliday, next.ID, next.Name), nil
	})
}

func (m *Manager) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_holiday", func(g *graph) (emission, error) {
		h, ok := g.holidays[id]
		if !ok {
			return emission{}, fmt.Errorf("holiday %s: %w", id, refdata.ErrNotFound)
		}
		if !h.Attributes.Deletable() {
			return emission{}, fmt.Errorf("holiday %s: %w", h.Name, refdata.ErrProtectedEntity)
		}
		if err := m.store.DeleteHoliday(ctx, id); err != nil {
			return emission{}, fmt.Errorf("delete holiday: %w", err)
		}
		unlinkHoliday(g, h)
		delete(g.holidays, id)
		return modelEvent(notify.ChangeDeleted, notify.EntityHoliday, id, h.Name), nil
	})
}
