package persistence

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

func (r *Repository) LoadCountries(ctx context.Context) ([]*refdata.Country, error) {
	const query = `SELECT id, attributes, tag, iso_code FROM countries ORDER BY iso_code`
	return collect(ctx, r, r.pool, query, scanCountry)
}

func scanCountry(row pgx.Rows) (*refdata.Country, error) {
	var (
		c     refdata.Country
		attrs int
		tag   string
	)
	if err := row.Scan(&c.ID, &attrs, &tag, &c.IsoCode); err != nil {
		return nil, err
	}
	var err error
	c.Attributes = refdata.Attributes(attrs)
	if c.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("country %s: %w", c.ID, err)
	}
	return &c, nil
}

func (r *Repository) CreateCountry(ctx context.Context, country *refdata.Country) error {
	const query = `
		INSERT INTO countries (id, attributes, tag, iso_code)
		VALUES ($1, $2, $3, $4)`
	_, err := r.exec(ctx, query, country.ID, int(country.Attributes), string(country.Tag.Bytes()), country.IsoCode)
	return err
}

func (r *Repository) UpdateCountry(ctx context.Context, country *refdata.Country) error {
	const query = `
		UPDATE countries
		SET attributes = $2, tag = $3, iso_code = $4, updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, country.ID, int(country.Attributes), string(country.Tag.Bytes()), country.IsoCode))
}

// DeleteCountry removes the country with its fundamental associations in
// every provider and its translations.
func (r *Repository) DeleteCountry(ctx context.Context, id uuid.UUID) error {
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM countries WHERE id = $1`, id)); err != nil {
			return err
		}
		if err := dropAssociationsWhere(ctx, tx, kindCountry, kindCountry.column(), id); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, id.String())
	})
	if err == nil {
		r.associations.Invalidate("")
	}
	return err
}
