package persistence

import (
	"context"
	"fmt"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const exchangeColumns = `id, attributes, tag, country_id, name, alternate_names, time_zone, url, logo_id,
	default_price_decimals, default_min_movement, default_big_point_value`

func (r *Repository) LoadExchanges(ctx context.Context) ([]*refdata.Exchange, error) {
	query := `SELECT ` + exchangeColumns + ` FROM exchanges ORDER BY name`
	return collect(ctx, r, r.pool, query, scanExchange)
}

func scanExchange(row pgx.Rows) (*refdata.Exchange, error) {
	var (
		e      refdata.Exchange
		attrs  int
		tag    string
		url    *string
		logoID *uuid.UUID
	)
	if err := row.Scan(
		&e.ID,
		&attrs,
		&tag,
		&e.CountryID,
		&e.Name,
		&e.AlternateNames,
		&e.TimeZone,
		&url,
		&logoID,
		&e.DefaultPriceDecimals,
		&e.DefaultMinMovement,
		&e.DefaultBigPointValue,
	); err != nil {
		return nil, err
	}
	var err error
	e.Attributes = refdata.Attributes(attrs)
	if e.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("exchange %s: %w", e.ID, err)
	}
	if url != nil {
		e.URL = *url
	}
	if logoID != nil {
		e.LogoID = *logoID
	}
	return &e, nil
}

func exchangeArgs(e *refdata.Exchange) []interface{} {
	return []interface{}{
		e.ID,
		int(e.Attributes),
		string(e.Tag.Bytes()),
		e.CountryID,
		e.Name,
		nonNil(e.AlternateNames),
		e.TimeZone,
		e.URL,
		nullableID(e.LogoID),
		e.DefaultPriceDecimals,
		e.DefaultMinMovement,
		e.DefaultBigPointValue,
	}
}

func (r *Repository) CreateExchange(ctx context.Context, exchange *refdata.Exchange) error {
	query := `INSERT INTO exchanges (` + exchangeColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.exec(ctx, query, exchangeArgs(exchange)...)
	return err
}

func (r *Repository) UpdateExchange(ctx context.Context, exchange *refdata.Exchange) error {
	const query = `
		UPDATE exchanges
		SET attributes = $2,
			tag = $3,
			country_id = $4,
			name = $5,
			alternate_names = $6,
			time_zone = $7,
			url = $8,
			logo_id = $9,
			default_price_decimals = $10,
			default_min_movement = $11,
			default_big_point_value = $12,
			updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, exchangeArgs(exchange)...))
}

// DeleteExchange removes the exchange and its secondary listings.
// Sessions, holidays and primary instruments are deleted by the caller.
func (r *Repository) DeleteExchange(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM exchanges WHERE id = $1`, id)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM instrument_secondary_exchanges WHERE exchange_id = $1`, id); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, id.String())
	})
}

func nullableID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
