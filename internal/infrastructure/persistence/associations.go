package persistence

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sirupsen/logrus"
)

type associationRow struct {
	id            uuid.UUID
	fundamentalID uuid.UUID
	entity        string
}

func (r *Repository) loadAssociations(ctx context.Context, q querier, provider string, kind entityKind) ([]associationRow, error) {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT id, fundamental_id, %s::text FROM %s ORDER BY id`,
		kind.column(), associationTable(provider, kind))
	return collect(ctx, r, q, query, func(row pgx.Rows) (associationRow, error) {
		var a associationRow
		err := row.Scan(&a.id, &a.fundamentalID, &a.entity)
		return a, err
	})
}

// loadValues groups the value series of one provider by association id.
func (r *Repository) loadValues(ctx context.Context, provider string, kind entityKind) (map[uuid.UUID]refdata.FundamentalSeries, error) {
	type valueRow struct {
		associationID uuid.UUID
		value         refdata.FundamentalValue
	}
	query := fmt.Sprintf(`SELECT association_id, date_time, value FROM %s ORDER BY association_id, date_time`,
		valueTable(provider, kind))
	rows, err := collect(ctx, r, r.pool, query, func(row pgx.Rows) (valueRow, error) {
		var v valueRow
		err := row.Scan(&v.associationID, &v.value.DateTime, &v.value.Value)
		v.value.DateTime = v.value.DateTime.UTC()
		return v, err
	})
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]refdata.FundamentalSeries)
	for _, row := range rows {
		out[row.associationID] = append(out[row.associationID], row.value)
	}
	return out, nil
}

// loadAssociationIDs rebuilds one provider's association index.
func (r *Repository) loadAssociationIDs(ctx context.Context, q querier, provider string) (map[associationKey]uuid.UUID, error) {
	idx := make(map[associationKey]uuid.UUID)
	for _, kind := range entityKinds {
		rows, err := r.loadAssociations(ctx, q, provider, kind)
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			idx[associationKey{kind: kind, fundamentalID: row.fundamentalID, entity: row.entity}] = row.id
		}
	}
	return idx, nil
}

func (r *Repository) LoadCountryFundamentals(ctx context.Context, provider string) ([]*refdata.CountryFundamental, error) {
	rows, err := r.loadAssociations(ctx, r.pool, provider, kindCountry)
	if err != nil {
		return nil, err
	}
	values, err := r.loadValues(ctx, provider, kindCountry)
	if err != nil {
		return nil, err
	}
	out := make([]*refdata.CountryFundamental, 0, len(rows))
	for _, row := range rows {
		countryID, err := uuid.Parse(row.entity)
		if err != nil {
			return nil, fmt.Errorf("association %s: %w", row.id, err)
		}
		out = append(out, &refdata.CountryFundamental{
			AssociationID: row.id,
			Provider:      provider,
			FundamentalID: row.fundamentalID,
			CountryID:     countryID,
			Values:        values[row.id],
		})
	}
	return out, nil
}

func (r *Repository) LoadInstrumentFundamentals(ctx context.Context, provider string) ([]*refdata.InstrumentFundamental, error) {
	rows, err := r.loadAssociations(ctx, r.pool, provider, kindInstrument)
	if err != nil {
		return nil, err
	}
	values, err := r.loadValues(ctx, provider, kindInstrument)
	if err != nil {
		return nil, err
	}
	out := make([]*refdata.InstrumentFundamental, 0, len(rows))
	for _, row := range rows {
		out = append(out, &refdata.InstrumentFundamental{
			AssociationID: row.id,
			Provider:      provider,
			FundamentalID: row.fundamentalID,
			Ticker:        row.entity,
			Values:        values[row.id],
		})
	}
	return out, nil
}

func (r *Repository) CreateCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) (uuid.UUID, error) {
	return r.createAssociation(ctx, provider, countryKey(fundamentalID, countryID), countryID)
}

func (r *Repository) CreateInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) (uuid.UUID, error) {
	return r.createAssociation(ctx, provider, instrumentKey(fundamentalID, ticker), ticker)
}

func (r *Repository) DeleteCountryFundamental(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID) error {
	return r.deleteAssociation(ctx, provider, kindCountry, fundamentalID, countryID)
}

func (r *Repository) DeleteInstrumentFundamental(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string) error {
	return r.deleteAssociation(ctx, provider, kindInstrument, fundamentalID, ticker)
}

func (r *Repository) UpsertCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, value refdata.FundamentalValue) error {
	return r.upsertValue(ctx, provider, countryKey(fundamentalID, countryID), countryID, value)
}

func (r *Repository) UpsertInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, value refdata.FundamentalValue) error {
	return r.upsertValue(ctx, provider, instrumentKey(fundamentalID, ticker), ticker, value)
}

func (r *Repository) DeleteCountryFundamentalValue(ctx context.Context, provider string, fundamentalID, countryID uuid.UUID, at time.Time) error {
	return r.deleteValue(ctx, provider, countryKey(fundamentalID, countryID), countryID, at)
}

func (r *Repository) DeleteInstrumentFundamentalValue(ctx context.Context, provider string, fundamentalID uuid.UUID, ticker string, at time.Time) error {
	return r.deleteValue(ctx, provider, instrumentKey(fundamentalID, ticker), ticker, at)
}

// createAssociation returns the existing association of the provider, or
// inserts one. The id of another provider's association for the same
// pair is reused so values stay comparable across providers.
func (r *Repository) createAssociation(ctx context.Context, provider string, key associationKey, entity interface{}) (uuid.UUID, error) {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return uuid.Nil, err
	}
	var id uuid.UUID
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM fundamentals WHERE id = $1)`, key.fundamentalID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return refdata.ErrNotFound
		}
		providers, err := providersIn(ctx, tx)
		if err != nil {
			return err
		}
		if !slices.Contains(providers, provider) {
			return fmt.Errorf("%w: %q is not registered", refdata.ErrInvalidProvider, provider)
		}
		found, err := findAssociationID(ctx, tx, provider, key, entity)
		if err != nil {
			return err
		}
		if found != uuid.Nil {
			id = found
			return nil
		}
		id = uuid.New()
		for _, other := range providers {
			if other == provider {
				continue
			}
			found, err := findAssociationID(ctx, tx, other, key, entity)
			if err != nil {
				return err
			}
			if found != uuid.Nil {
				id = found
				break
			}
		}
		return insertAssociation(ctx, tx, provider, key, id, entity)
	})
	if err != nil {
		return uuid.Nil, err
	}
	r.associations.Invalidate(provider)
	return id, nil
}

func (r *Repository) deleteAssociation(ctx context.Context, provider string, kind entityKind, fundamentalID uuid.UUID, entity interface{}) error {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return err
	}
	err := r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE fundamental_id = $1 AND %s = $2 RETURNING id`,
			associationTable(provider, kind), kind.column())
		var id uuid.UUID
		if err := tx.QueryRow(ctx, query, fundamentalID, entity).Scan(&id); err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return refdata.ErrNotAssociated
			}
			return err
		}
		_, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE association_id = $1`, valueTable(provider, kind)), id)
		return err
	})
	if err != nil {
		return err
	}
	r.associations.Invalidate(provider)
	return nil
}

// resolveAssociation finds the association id for a value write through
// the cache. An id found under another provider is copied into the
// provider's own table first.
func (r *Repository) resolveAssociation(ctx context.Context, tx pgx.Tx, provider string, key associationKey, entity interface{}) (uuid.UUID, error) {
	providers, err := providersIn(ctx, tx)
	if err != nil {
		return uuid.Nil, err
	}
	if !slices.Contains(providers, provider) {
		return uuid.Nil, fmt.Errorf("%w: %q is not registered", refdata.ErrInvalidProvider, provider)
	}
	id, owner, err := r.associations.Lookup(ctx, tx, provider, providers, key)
	if err != nil {
		return uuid.Nil, err
	}
	if owner != provider {
		if err := insertAssociation(ctx, tx, provider, key, id, entity); err != nil {
			return uuid.Nil, err
		}
		r.associations.Invalidate(provider)
		r.logger.WithFields(logrus.Fields{
			"provider":       provider,
			"owner":          owner,
			"fundamental_id": key.fundamentalID,
			"entity":         key.entity,
		}).Debug("reused association of another provider")
	}
	return id, nil
}

func (r *Repository) upsertValue(ctx context.Context, provider string, key associationKey, entity interface{}, value refdata.FundamentalValue) error {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return err
	}
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, err := r.resolveAssociation(ctx, tx, provider, key, entity)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(`
			INSERT INTO %s (association_id, date_time, value)
			VALUES ($1, $2, $3)
			ON CONFLICT (association_id, date_time) DO UPDATE SET value = EXCLUDED.value`,
			valueTable(provider, key.kind))
		_, err = tx.Exec(ctx, query, id, value.DateTime.UTC(), value.Value)
		return err
	})
}

func (r *Repository) deleteValue(ctx context.Context, provider string, key associationKey, entity interface{}, at time.Time) error {
	if err := refdata.ValidateProviderName(provider); err != nil {
		return err
	}
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		id, err := r.resolveAssociation(ctx, tx, provider, key, entity)
		if err != nil {
			return err
		}
		query := fmt.Sprintf(`DELETE FROM %s WHERE association_id = $1 AND date_time = $2`, valueTable(provider, key.kind))
		_, err = tx.Exec(ctx, query, id, at.UTC())
		return err
	})
}

func findAssociationID(ctx context.Context, q queryRower, provider string, key associationKey, entity interface{}) (uuid.UUID, error) {
	query := fmt.Sprintf(`SELECT id FROM %s WHERE fundamental_id = $1 AND %s = $2`,
		associationTable(provider, key.kind), key.kind.column())
	var id uuid.UUID
	if err := q.QueryRow(ctx, query, key.fundamentalID, entity).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return id, nil
}

func insertAssociation(ctx context.Context, exec commandTagExecutor, provider string, key associationKey, id uuid.UUID, entity interface{}) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, fundamental_id, %s) VALUES ($1, $2, $3)
		ON CONFLICT (fundamental_id, %s) DO NOTHING`,
		associationTable(provider, key.kind), key.kind.column(), key.kind.column())
	_, err := exec.Exec(ctx, query, id, key.fundamentalID, entity)
	return err
}

// dropAssociationsWhere deletes, in every provider, the associations of
// kind matching column = value together with their values.
func dropAssociationsWhere(ctx context.Context, tx pgx.Tx, kind entityKind, column string, value interface{}) error {
	providers, err := providersIn(ctx, tx)
	if err != nil {
		return err
	}
	for _, provider := range providers {
		assoc := associationTable(provider, kind)
		if _, err := tx.Exec(ctx, fmt.Sprintf(
			`DELETE FROM %s WHERE association_id IN (SELECT id FROM %s WHERE %s = $1)`,
			valueTable(provider, kind), assoc, column), value); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE %s = $1`, assoc, column), value); err != nil {
			return err
		}
	}
	return nil
}

func providersIn(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.Query(ctx, `SELECT name FROM data_providers ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
