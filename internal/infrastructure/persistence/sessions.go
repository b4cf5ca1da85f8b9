package persistence

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const sessionColumns = `id, attributes, tag, exchange_id, name, day_of_week, start_seconds, end_seconds`

func (r *Repository) LoadSessions(ctx context.Context) ([]*refdata.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions ORDER BY day_of_week, start_seconds`
	return collect(ctx, r, r.pool, query, scanSession)
}

func scanSession(row pgx.Rows) (*refdata.Session, error) {
	var (
		s                      refdata.Session
		attrs, day, start, end int
		tag                    string
	)
	if err := row.Scan(&s.ID, &attrs, &tag, &s.ExchangeID, &s.Name, &day, &start, &end); err != nil {
		return nil, err
	}
	var err error
	s.Attributes = refdata.Attributes(attrs)
	if s.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("session %s: %w", s.ID, err)
	}
	s.DayOfWeek = time.Weekday(day)
	s.Start = time.Duration(start) * time.Second
	s.End = time.Duration(end) * time.Second
	return &s, nil
}

func sessionArgs(s *refdata.Session) []interface{} {
	return []interface{}{
		s.ID,
		int(s.Attributes),
		string(s.Tag.Bytes()),
		s.ExchangeID,
		s.Name,
		int(s.DayOfWeek),
		int(s.Start / time.Second),
		int(s.End / time.Second),
	}
}

func (r *Repository) CreateSession(ctx context.Context, session *refdata.Session) error {
	query := `INSERT INTO sessions (` + sessionColumns + `) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`
	_, err := r.exec(ctx, query, sessionArgs(session)...)
	return err
}

func (r *Repository) UpdateSession(ctx context.Context, session *refdata.Session) error {
	const query = `
		UPDATE sessions
		SET attributes = $2,
			tag = $3,
			exchange_id = $4,
			name = $5,
			day_of_week = $6,
			start_seconds = $7,
			end_seconds = $8,
			updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, sessionArgs(session)...))
}

func (r *Repository) DeleteSession(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, id.String())
	})
}
