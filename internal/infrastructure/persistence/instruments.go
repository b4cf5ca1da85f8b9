package persistence

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const instrumentColumns = `ticker, attributes, tag, alternate_tickers, type, name, description,
	primary_exchange_id, inception_date, price_decimals, min_movement, big_point_value, extended_properties`

// LoadInstruments returns instruments with their secondary listings.
// Group membership is loaded separately.
func (r *Repository) LoadInstruments(ctx context.Context) ([]*refdata.Instrument, error) {
	query := `SELECT ` + instrumentColumns + ` FROM instruments ORDER BY ticker`
	instruments, err := collect(ctx, r, r.pool, query, scanInstrument)
	if err != nil {
		return nil, err
	}
	byTicker := make(map[string]*refdata.Instrument, len(instruments))
	for _, inst := range instruments {
		byTicker[inst.Ticker] = inst
	}

	type listing struct {
		ticker     string
		exchangeID uuid.UUID
	}
	listings, err := collect(ctx, r, r.pool,
		`SELECT ticker, exchange_id FROM instrument_secondary_exchanges ORDER BY ticker, exchange_id`,
		func(row pgx.Rows) (listing, error) {
			var l listing
			err := row.Scan(&l.ticker, &l.exchangeID)
			return l, err
		})
	if err != nil {
		return nil, err
	}
	for _, l := range listings {
		if inst, ok := byTicker[l.ticker]; ok {
			inst.AddSecondaryExchange(l.exchangeID)
		}
	}
	return instruments, nil
}

func scanInstrument(row pgx.Rows) (*refdata.Instrument, error) {
	var (
		inst                    refdata.Instrument
		attrs                   int
		tag, instType, extended string
		name, description       *string
		inception               *time.Time
	)
	if err := row.Scan(
		&inst.Ticker,
		&attrs,
		&tag,
		&inst.AlternateTickers,
		&instType,
		&name,
		&description,
		&inst.PrimaryExchangeID,
		&inception,
		&inst.PriceDecimals,
		&inst.MinMovement,
		&inst.BigPointValue,
		&extended,
	); err != nil {
		return nil, err
	}
	var err error
	inst.Attributes = refdata.Attributes(attrs)
	inst.Type = refdata.InstrumentType(instType)
	if inst.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("instrument %s: %w", inst.Ticker, err)
	}
	if inst.ExtendedProperties, err = refdata.ParseTag([]byte(extended)); err != nil {
		return nil, fmt.Errorf("instrument %s extended properties: %w", inst.Ticker, err)
	}
	if name != nil {
		inst.Name = *name
	}
	if description != nil {
		inst.Description = *description
	}
	if inception != nil {
		inst.InceptionDate = inception.UTC()
	}
	return &inst, nil
}

func instrumentArgs(inst *refdata.Instrument) []interface{} {
	var inception *time.Time
	if !inst.InceptionDate.IsZero() {
		t := inst.InceptionDate.UTC()
		inception = &t
	}
	return []interface{}{
		inst.Ticker,
		int(inst.Attributes),
		string(inst.Tag.Bytes()),
		nonNil(inst.AlternateTickers),
		string(inst.Type),
		inst.Name,
		inst.Description,
		inst.PrimaryExchangeID,
		inception,
		inst.PriceDecimals,
		inst.MinMovement,
		inst.BigPointValue,
		string(inst.ExtendedProperties.Bytes()),
	}
}

func (r *Repository) CreateInstrument(ctx context.Context, instrument *refdata.Instrument) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := `INSERT INTO instruments (` + instrumentColumns + `)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
		if _, err := tx.Exec(ctx, query, instrumentArgs(instrument)...); err != nil {
			return err
		}
		return insertSecondaryListings(ctx, tx, instrument)
	})
}

func (r *Repository) UpdateInstrument(ctx context.Context, instrument *refdata.Instrument) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		const query = `
			UPDATE instruments
			SET attributes = $2,
				tag = $3,
				alternate_tickers = $4,
				type = $5,
				name = $6,
				description = $7,
				primary_exchange_id = $8,
				inception_date = $9,
				price_decimals = $10,
				min_movement = $11,
				big_point_value = $12,
				extended_properties = $13,
				updated_at = NOW()
			WHERE ticker = $1`
		if err := affected(tx.Exec(ctx, query, instrumentArgs(instrument)...)); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `DELETE FROM instrument_secondary_exchanges WHERE ticker = $1`, instrument.Ticker); err != nil {
			return err
		}
		return insertSecondaryListings(ctx, tx, instrument)
	})
}

func insertSecondaryListings(ctx context.Context, tx pgx.Tx, instrument *refdata.Instrument) error {
	for _, exchangeID := range instrument.SecondaryExchangeIDs {
		if _, err := tx.Exec(ctx,
			`INSERT INTO instrument_secondary_exchanges (ticker, exchange_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`,
			instrument.Ticker, exchangeID); err != nil {
			return err
		}
	}
	return nil
}

// DeleteInstrument removes the instrument, its listings, memberships,
// fundamental associations and translations. Price rows are kept.
func (r *Repository) DeleteInstrument(ctx context.Context, ticker string) error {
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM instruments WHERE ticker = $1`, ticker)); err != nil {
			return err
		}
		for _, stmt := range []string{
			`DELETE FROM instrument_secondary_exchanges WHERE ticker = $1`,
			`DELETE FROM instrument_group_instruments WHERE ticker = $1`,
		} {
			if _, err := tx.Exec(ctx, stmt, ticker); err != nil {
				return err
			}
		}
		if err := dropAssociationsWhere(ctx, tx, kindInstrument, kindInstrument.column(), ticker); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, ticker)
	})
	if err == nil {
		r.associations.Invalidate("")
	}
	return err
}
