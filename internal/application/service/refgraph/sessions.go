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

func localizedSession(g *graph, s *refdata.Session) *refdata.Session {
	out := s.Clone()
	out.Name = g.text(s.ID.String(), refdata.FieldName, s.Name)
	return out
}

func (m *Manager) Session(ctx context.Context, id uuid.UUID) (*refdata.Session, error) {
	var out *refdata.Session
	err := m.read(ctx, func(g *graph) error {
		s, ok := g.sessions[id]
		if !ok {
			return fmt.Errorf("session %s: %w", id, refdata.ErrNotFound)
		}
		out = localizedSession(g, s)
		return nil
	})
	return out, err
}

// Sessions returns every session of the exchange ordered by weekday and
// start time.
func (m *Manager) Sessions(ctx context.Context, exchangeID uuid.UUID) ([]*refdata.Session, error) {
	return m.sessions(ctx, exchangeID, func(*refdata.Session) bool { return true })
}

// SessionsFor returns the exchange's sessions on one weekday ordered by
// start time.
func (m *Manager) SessionsFor(ctx context.Context, exchangeID uuid.UUID, weekday time.Weekday) ([]*refdata.Session, error) {
	return m.sessions(ctx, exchangeID, func(s *refdata.Session) bool { return s.DayOfWeek == weekday })
}

func (m *Manager) sessions(ctx context.Context, exchangeID uuid.UUID, keep func(*refdata.Session) bool) ([]*refdata.Session, error) {
	var out []*refdata.Session
	err := m.read(ctx, func(g *graph) error {
		exchange, ok := g.exchanges[exchangeID]
		if !ok {
			return fmt.Errorf("exchange %s: %w", exchangeID, refdata.ErrNotFound)
		}
		for _, id := range exchange.SessionIDs {
			if s := g.sessions[id]; keep(s) {
				out = append(out, localizedSession(g, s))
			}
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].DayOfWeek != out[j].DayOfWeek {
				return out[i].DayOfWeek < out[j].DayOfWeek
			}
			return out[i].Start < out[j].Start
		})
		return nil
	})
	return out, err
}

func sessionNameTaken(g *graph, s *refdata.Session) bool {
	exchange, ok := g.exchanges[s.ExchangeID]
	if !ok {
		return false
	}
	for _, id := range exchange.SessionIDs {
		other := g.sessions[id]
		if other.ID != s.ID && other.DayOfWeek == s.DayOfWeek && strings.EqualFold(other.Name, s.Name) {
			return true
		}
	}
	return false
}

func (m *Manager) CreateSession(ctx context.Context, session *refdata.Session) (*refdata.Session, error) {
	if session == nil {
		return nil, ErrNilEntity
	}
	next := session.Clone()
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
	var out *refdata.Session
	err := m.mutate(ctx, "create_session", func(g *graph) (emission, error) {
		exchange, ok := g.exchanges[next.ExchangeID]
		if !ok {
			return emission{}, fmt.Errorf("exchange %s: %w", next.ExchangeID, refdata.ErrInvalidParent)
		}
		if sessionNameTaken(g, next) {
			return emission{}, fmt.Errorf("session %q on %s: %w", next.Name, next.DayOfWeek, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateSession(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create session: %w", err)
		}
		next.Tag.MarkClean()
		g.sessions[next.ID] = next
		exchange.AddSession(next.ID)
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntitySession, next.ID, next.Name), nil
	})
	return out, err
}

func (m *Manager) UpdateSession(ctx context.Context, session *refdata.Session, opts ...UpdateOption) error {
	if session == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_session", func(g *graph) (emission, error) {
		current, ok := g.sessions[session.ID]
		if !ok {
			return emission{}, fmt.Errorf("session %s: %w", session.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			if err := m.translate(ctx, g, current.ID.String(), o.locale, refdata.FieldName, session.Name); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntitySession, current.ID, current.Name), nil
		}
		if !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("session %s: %w", current.Name, refdata.ErrProtectedEntity)
		}
		next := session.Clone()
		next.Attributes = current.Attributes
		// Sessions stay with their exchange.
		next.ExchangeID = current.ExchangeID
		next.Name = g.canonicalText(current.ID.String(), refdata.FieldName, strings.TrimSpace(next.Name), current.Name)
		if err := next.Validate(); err != nil {
			return emission{}, err
		}
		if sessionNameTaken(g, next) {
			return emission{}, fmt.Errorf("session %q on %s: %w", next.Name, next.DayOfWeek, refdata.ErrDuplicateName)
		}
		if err := m.store.UpdateSession(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update session: %w", err)
		}
		next.Tag.MarkClean()
		g.sessions[next.ID] = next
		return modelEvent(notify.ChangeUpdated, notify.EntitySession, next.ID, next.Name), nil
	})
}

func (m *Manager) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_session", func(g *graph) (emission, error) {
		s, ok := g.sessions[id]
		if !ok {
			return emission{}, fmt.Errorf("session %s: %w", id, refdata.ErrNotFound)
		}
		if !s.Attributes.Deletable() {
			return emission{}, fmt.Errorf("session %s: %w", s.Name, refdata.ErrProtectedEntity)
		}
		if err := m.store.DeleteSession(ctx, id); err != nil {
			return emission{}, fmt.Errorf("delete session: %w", err)
		}
		if exchange, ok := g.exchanges[s.ExchangeID]; ok {
			exchange.RemoveSession(id)
		}
		delete(g.sessions, id)
		return modelEvent(notify.ChangeDeleted, notify.EntitySession, id, s.Name), nil
	})
}
