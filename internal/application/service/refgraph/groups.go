package refgraph

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"marketgraph/internal/application/notify"
	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func localizedGroup(g *graph, group *refdata.InstrumentGroup) *refdata.InstrumentGroup {
	out := group.Clone()
	out.Name = g.text(group.ID.String(), refdata.FieldName, group.Name)
	out.Description = g.text(group.ID.String(), refdata.FieldDescription, group.Description)
	return out
}

func (m *Manager) InstrumentGroups(ctx context.Context) ([]*refdata.InstrumentGroup, error) {
	var out []*refdata.InstrumentGroup
	err := m.read(ctx, func(g *graph) error {
		for _, group := range sortedValues(g.groups, func(a, b *refdata.InstrumentGroup) bool { return lessFold(a.Name, b.Name) }) {
			out = append(out, localizedGroup(g, group))
		}
		return nil
	})
	return out, err
}

func (m *Manager) InstrumentGroup(ctx context.Context, id uuid.UUID) (*refdata.InstrumentGroup, error) {
	var out *refdata.InstrumentGroup
	err := m.read(ctx, func(g *graph) error {
		group, ok := g.groups[id]
		if !ok {
			return fmt.Errorf("instrument group %s: %w", id, refdata.ErrNotFound)
		}
		out = localizedGroup(g, group)
		return nil
	})
	return out, err
}

// GroupChildren returns the direct children of a group.
func (m *Manager) GroupChildren(ctx context.Context, id uuid.UUID) ([]*refdata.InstrumentGroup, error) {
	var out []*refdata.InstrumentGroup
	err := m.read(ctx, func(g *graph) error {
		group, ok := g.groups[id]
		if !ok {
			return fmt.Errorf("instrument group %s: %w", id, refdata.ErrNotFound)
		}
		for _, child := range group.ChildIDs {
			out = append(out, localizedGroup(g, g.groups[child]))
		}
		return nil
	})
	return out, err
}

// GroupPath returns the groups from the root down to id.
func (m *Manager) GroupPath(ctx context.Context, id uuid.UUID) ([]*refdata.InstrumentGroup, error) {
	var out []*refdata.InstrumentGroup
	err := m.read(ctx, func(g *graph) error {
		for current := id; ; {
			group, ok := g.groups[current]
			if !ok {
				return fmt.Errorf("instrument group %s: %w", current, refdata.ErrNotFound)
			}
			out = append([]*refdata.InstrumentGroup{localizedGroup(g, group)}, out...)
			if group.IsRoot() {
				return nil
			}
			current = group.ParentID
		}
	})
	return out, err
}

// siblingTaken checks the name and alternates of group against the other
// children of its parent.
func siblingTaken(g *graph, group *refdata.InstrumentGroup) bool {
	parent, ok := g.groups[group.ParentID]
	if !ok {
		return false
	}
	names := append([]string{group.Name}, group.AlternateNames...)
	for _, id := range parent.ChildIDs {
		if id == group.ID {
			continue
		}
		for _, name := range names {
			if g.groups[id].Matches(name) {
				return true
			}
		}
	}
	return false
}

// isDescendant reports whether candidate lies in the subtree of id.
func isDescendant(g *graph, id, candidate uuid.UUID) bool {
	for current := candidate; current != uuid.Nil; {
		if current == id {
			return true
		}
		group, ok := g.groups[current]
		if !ok || group.IsRoot() {
			return false
		}
		current = group.ParentID
	}
	return false
}

func (m *Manager) CreateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup) (*refdata.InstrumentGroup, error) {
	if group == nil {
		return nil, ErrNilEntity
	}
	next := group.Clone()
	next.ResetLinks()
	next.Name = strings.TrimSpace(next.Name)
	if next.Name == "" {
		return nil, fmt.Errorf("group name is required")
	}
	if next.ID == uuid.Nil {
		next.ID = uuid.New()
	}
	if next.ID == refdata.RootGroupID {
		return nil, fmt.Errorf("instrument group %s: %w", next.ID, refdata.ErrProtectedEntity)
	}
	if next.ParentID == uuid.Nil {
		next.ParentID = refdata.RootGroupID
	}
	if next.Attributes == refdata.AttrNone {
		next.Attributes = refdata.AttrDefault
	}
	var out *refdata.InstrumentGroup
	err := m.mutate(ctx, "create_instrument_group", func(g *graph) (emission, error) {
		parent, ok := g.groups[next.ParentID]
		if !ok {
			return emission{}, fmt.Errorf("parent group %s: %w", next.ParentID, refdata.ErrInvalidParent)
		}
		if siblingTaken(g, next) {
			return emission{}, fmt.Errorf("instrument group %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.CreateInstrumentGroup(ctx, next); err != nil {
			return emission{}, fmt.Errorf("create instrument group: %w", err)
		}
		next.Tag.MarkClean()
		g.groups[next.ID] = next
		parent.AddChild(next.ID)
		out = next.Clone()
		return modelEvent(notify.ChangeCreated, notify.EntityInstrumentGroup, next.ID, next.Name), nil
	})
	return out, err
}

// UpdateInstrumentGroup may move the group under a new parent as long as
// the parent is not inside the group's own subtree.
func (m *Manager) UpdateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup, opts ...UpdateOption) error {
	if group == nil {
		return ErrNilEntity
	}
	o := applyUpdateOptions(opts)
	return m.mutate(ctx, "update_instrument_group", func(g *graph) (emission, error) {
		current, ok := g.groups[group.ID]
		if !ok {
			return emission{}, fmt.Errorf("instrument group %s: %w", group.ID, refdata.ErrNotFound)
		}
		if o.locale != "" {
			key := current.ID.String()
			if err := m.translate(ctx, g, key, o.locale, refdata.FieldName, group.Name); err != nil {
				return emission{}, err
			}
			if err := m.translate(ctx, g, key, o.locale, refdata.FieldDescription, group.Description); err != nil {
				return emission{}, err
			}
			return modelEvent(notify.ChangeUpdated, notify.EntityInstrumentGroup, current.ID, current.Name), nil
		}
		if current.IsRoot() || !current.Attributes.Editable() {
			return emission{}, fmt.Errorf("instrument group %s: %w", current.Name, refdata.ErrProtectedEntity)
		}
		next := group.Clone()
		next.Attributes = current.Attributes
		next.ChildIDs = current.ChildIDs
		next.InstrumentTickers = current.InstrumentTickers
		next.Name = g.canonicalText(current.ID.String(), refdata.FieldName, strings.TrimSpace(next.Name), current.Name)
		next.Description = g.canonicalText(current.ID.String(), refdata.FieldDescription, next.Description, current.Description)
		if next.Name == "" {
			return emission{}, fmt.Errorf("group name is required")
		}
		if next.ParentID == uuid.Nil {
			next.ParentID = current.ParentID
		}
		newParent, ok := g.groups[next.ParentID]
		if !ok || isDescendant(g, current.ID, next.ParentID) {
			return emission{}, fmt.Errorf("parent group %s: %w", next.ParentID, refdata.ErrInvalidParent)
		}
		if siblingTaken(g, next) {
			return emission{}, fmt.Errorf("instrument group %q: %w", next.Name, refdata.ErrDuplicateName)
		}
		if err := m.store.UpdateInstrumentGroup(ctx, next); err != nil {
			return emission{}, fmt.Errorf("update instrument group: %w", err)
		}
		next.Tag.MarkClean()
		if next.ParentID != current.ParentID {
			if old, ok := g.groups[current.ParentID]; ok {
				old.RemoveChild(current.ID)
			}
			newParent.AddChild(next.ID)
		}
		g.groups[next.ID] = next
		return modelEvent(notify.ChangeUpdated, notify.EntityInstrumentGroup, next.ID, next.Name), nil
	})
}

// DeleteInstrumentGroup removes the group and its whole subtree. Member
// instruments stay; only their memberships go.
func (m *Manager) DeleteInstrumentGroup(ctx context.Context, id uuid.UUID) error {
	return m.mutate(ctx, "delete_instrument_group", func(g *graph) (emission, error) {
		group, ok := g.groups[id]
		if !ok {
			return emission{}, fmt.Errorf("instrument group %s: %w", id, refdata.ErrNotFound)
		}
		if group.IsRoot() || !group.Attributes.Deletable() {
			return emission{}, fmt.Errorf("instrument group %s: %w", group.Name, refdata.ErrProtectedEntity)
		}
		for _, gid := range g.descendants(id) {
			if err := m.store.DeleteInstrumentGroup(ctx, gid); err != nil {
				return emission{}, m.cascadeFailed(fmt.Errorf("delete instrument group: %w", err),
					logrus.Fields{"entity": "instrument_group", "id": gid.String()})
			}
			doomed := g.groups[gid]
			for _, ticker := range doomed.InstrumentTickers {
				if inst, ok := g.instruments[ticker]; ok {
					inst.RemoveGroup(gid)
				}
			}
			delete(g.groups, gid)
		}
		if parent, ok := g.groups[group.ParentID]; ok {
			parent.RemoveChild(id)
		}
		return modelEvent(notify.ChangeDeleted, notify.EntityInstrumentGroup, id, group.Name), nil
	})
}

func (m *Manager) AddInstrumentToGroup(ctx context.Context, groupID uuid.UUID, ticker string) error {
	return m.mutate(ctx, "add_group_instrument", func(g *graph) (emission, error) {
		group, inst, err := membership(g, groupID, ticker)
		if err != nil {
			return emission{}, err
		}
		if slices.Contains(group.InstrumentTickers, inst.Ticker) {
			return emission{}, fmt.Errorf("instrument %s in group %s: %w", inst.Ticker, group.Name, refdata.ErrDuplicateTicker)
		}
		if err := m.store.AddGroupInstrument(ctx, group.ID, inst.Ticker); err != nil {
			return emission{}, fmt.Errorf("add group instrument: %w", err)
		}
		group.AddInstrument(inst.Ticker)
		inst.AddGroup(group.ID)
		return modelEvent(notify.ChangeUpdated, notify.EntityInstrumentGroup, group.ID, group.Name), nil
	})
}

func (m *Manager) RemoveInstrumentFromGroup(ctx context.Context, groupID uuid.UUID, ticker string) error {
	return m.mutate(ctx, "remove_group_instrument", func(g *graph) (emission, error) {
		group, inst, err := membership(g, groupID, ticker)
		if err != nil {
			return emission{}, err
		}
		if !slices.Contains(group.InstrumentTickers, inst.Ticker) {
			return emission{}, fmt.Errorf("instrument %s in group %s: %w", inst.Ticker, group.Name, refdata.ErrNotFound)
		}
		if err := m.store.RemoveGroupInstrument(ctx, group.ID, inst.Ticker); err != nil {
			return emission{}, fmt.Errorf("remove group instrument: %w", err)
		}
		group.RemoveInstrument(inst.Ticker)
		inst.RemoveGroup(group.ID)
		return modelEvent(notify.ChangeUpdated, notify.EntityInstrumentGroup, group.ID, group.Name), nil
	})
}

func membership(g *graph, groupID uuid.UUID, ticker string) (*refdata.InstrumentGroup, *refdata.Instrument, error) {
	group, ok := g.groups[groupID]
	if !ok {
		return nil, nil, fmt.Errorf("instrument group %s: %w", groupID, refdata.ErrNotFound)
	}
	inst, ok := g.instrument(ticker)
	if !ok {
		return nil, nil, fmt.Errorf("instrument %s: %w", ticker, refdata.ErrNotFound)
	}
	return group, inst, nil
}
