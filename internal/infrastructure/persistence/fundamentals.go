package persistence

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const fundamentalColumns = `id, attributes, tag, name, description, category, release_interval`

func (r *Repository) LoadFundamentals(ctx context.Context) ([]*refdata.Fundamental, error) {
	query := `SELECT ` + fundamentalColumns + ` FROM fundamentals ORDER BY category, name`
	return collect(ctx, r, r.pool, query, func(row pgx.Rows) (*refdata.Fundamental, error) {
		var (
			f                       refdata.Fundamental
			attrs                   int
			tag, category, interval string
			description             *string
		)
		if err := row.Scan(&f.ID, &attrs, &tag, &f.Name, &description, &category, &interval); err != nil {
			return nil, err
		}
		var err error
		f.Attributes = refdata.Attributes(attrs)
		if f.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
			return nil, fmt.Errorf("fundamental %s: %w", f.ID, err)
		}
		if description != nil {
			f.Description = *description
		}
		f.Category = refdata.FundamentalCategory(category)
		f.ReleaseInterval = refdata.ReleaseInterval(interval)
		return &f, nil
	})
}

func fundamentalArgs(f *refdata.Fundamental) []interface{} {
	return []interface{}{
		f.ID,
		int(f.Attributes),
		string(f.Tag.Bytes()),
		f.Name,
		f.Description,
		string(f.Category),
		string(f.ReleaseInterval),
	}
}

func (r *Repository) CreateFundamental(ctx context.Context, fundamental *refdata.Fundamental) error {
	query := `INSERT INTO fundamentals (` + fundamentalColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.exec(ctx, query, fundamentalArgs(fundamental)...)
	return err
}

func (r *Repository) UpdateFundamental(ctx context.Context, fundamental *refdata.Fundamental) error {
	const query = `
		UPDATE fundamentals
		SET attributes = $2,
			tag = $3,
			name = $4,
			description = $5,
			category = $6,
			release_interval = $7,
			updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, fundamentalArgs(fundamental)...))
}

// DeleteFundamental removes the definition with its associations and
// values in every provider, then invalidates every association index.
func (r *Repository) DeleteFundamental(ctx context.Context, id uuid.UUID) error {
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM fundamentals WHERE id = $1`, id)); err != nil {
			return err
		}
		for _, kind := range entityKinds {
			if err := dropAssociationsWhere(ctx, tx, kind, "fundamental_id", id); err != nil {
				return err
			}
		}
		return dropTranslations(ctx, tx, id.String())
	})
	if err == nil {
		r.associations.Invalidate("")
	}
	return err
}
