package persistence

import (
	"context"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/jackc/pgx/v5"
)

func (r *Repository) PutTranslation(ctx context.Context, translation refdata.Translation) error {
	const query = `
		INSERT INTO translations (entity_key, field, locale, value)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (entity_key, field, locale) DO UPDATE SET value = EXCLUDED.value`
	_, err := r.exec(ctx, query, translation.EntityKey, string(translation.Field), translation.Locale, translation.Value)
	return err
}

func (r *Repository) LoadTranslations(ctx context.Context, locale string) ([]refdata.Translation, error) {
	const query = `
		SELECT entity_key, field, locale, value
		FROM translations
		WHERE locale = $1
		ORDER BY entity_key, field`
	return collect(ctx, r, r.pool, query, func(row pgx.Rows) (refdata.Translation, error) {
		var (
			t     refdata.Translation
			field string
		)
		err := row.Scan(&t.EntityKey, &field, &t.Locale, &t.Value)
		t.Field = refdata.TextField(field)
		return t, err
	}, locale)
}

func dropTranslations(ctx context.Context, tx pgx.Tx, entityKey string) error {
	_, err := tx.Exec(ctx, `DELETE FROM translations WHERE entity_key = $1`, entityKey)
	return err
}
