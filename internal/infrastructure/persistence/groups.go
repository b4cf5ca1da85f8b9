package persistence

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const groupColumns = `id, attributes, tag, parent_id, name, alternate_names, description, user_id`

func (r *Repository) LoadInstrumentGroups(ctx context.Context) ([]*refdata.InstrumentGroup, error) {
	query := `SELECT ` + groupColumns + ` FROM instrument_groups ORDER BY name`
	return collect(ctx, r, r.pool, query, scanGroup)
}

func scanGroup(row pgx.Rows) (*refdata.InstrumentGroup, error) {
	var (
		g                   refdata.InstrumentGroup
		attrs               int
		tag                 string
		parentID            *uuid.UUID
		description, userID *string
	)
	if err := row.Scan(&g.ID, &attrs, &tag, &parentID, &g.Name, &g.AlternateNames, &description, &userID); err != nil {
		return nil, err
	}
	var err error
	g.Attributes = refdata.Attributes(attrs)
	if g.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("instrument group %s: %w", g.ID, err)
	}
	if parentID != nil {
		g.ParentID = *parentID
	}
	if description != nil {
		g.Description = *description
	}
	if userID != nil {
		g.UserID = *userID
	}
	return &g, nil
}

func groupArgs(g *refdata.InstrumentGroup) []interface{} {
	return []interface{}{
		g.ID,
		int(g.Attributes),
		string(g.Tag.Bytes()),
		nullableID(g.ParentID),
		g.Name,
		nonNil(g.AlternateNames),
		g.Description,
		g.UserID,
	}
}

func (r *Repository) CreateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup) error {
	query := `INSERT INTO instrument_groups (` + groupColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.exec(ctx, query, groupArgs(group)...)
	return err
}

func (r *Repository) UpdateInstrumentGroup(ctx context.Context, group *refdata.InstrumentGroup) error {
	const query = `
		UPDATE instrument_groups
		SET attributes = $2,
			tag = $3,
			parent_id = $4,
			name = $5,
			alternate_names = $6,
			description = $7,
			user_id = $8,
			updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, groupArgs(group)...))
}

// DeleteInstrumentGroup removes one group and its memberships. Child
// groups are deleted by the caller first.
func (r *Repository) DeleteInstrumentGroup(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM instrument_groups WHERE id = $1`, id)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM instrument_group_instruments WHERE group_id = $1`, id); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, id.String())
	})
}

func (r *Repository) LoadGroupMemberships(ctx context.Context) ([]refdata.GroupMembership, error) {
	const query = `SELECT group_id, ticker FROM instrument_group_instruments ORDER BY group_id, ticker`
	return collect(ctx, r, r.pool, query, func(row pgx.Rows) (refdata.GroupMembership, error) {
		var m refdata.GroupMembership
		err := row.Scan(&m.GroupID, &m.Ticker)
		return m, err
	})
}

func (r *Repository) AddGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error {
	const query = `
		INSERT INTO instrument_group_instruments (group_id, ticker)
		VALUES ($1, $2)
		ON CONFLICT (group_id, ticker) DO NOTHING`
	_, err := r.exec(ctx, query, groupID, ticker)
	return err
}

func (r *Repository) RemoveGroupInstrument(ctx context.Context, groupID uuid.UUID, ticker string) error {
	const query = `DELETE FROM instrument_group_instruments WHERE group_id = $1 AND ticker = $2`
	return affected(r.exec(ctx, query, groupID, ticker))
}
