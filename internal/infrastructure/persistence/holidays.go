package persistence

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/domain/entity/refdata"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const holidayColumns = `id, attributes, tag, scope, parent_id, name, type, month,
	day_of_month, day_of_week, week_of_month, move_weekend`

func (r *Repository) LoadHolidays(ctx context.Context) ([]*refdata.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays ORDER BY month, day_of_month, name`
	return collect(ctx, r, r.pool, query, scanHoliday)
}

func scanHoliday(row pgx.Rows) (*refdata.Holiday, error) {
	var (
		h                                        refdata.Holiday
		attrs, month, dayOfWeek, weekOfMonth     int
		tag, scope, holidayType, moveWeekendRule string
	)
	if err := row.Scan(
		&h.ID,
		&attrs,
		&tag,
		&scope,
		&h.ParentID,
		&h.Name,
		&holidayType,
		&month,
		&h.DayOfMonth,
		&dayOfWeek,
		&weekOfMonth,
		&moveWeekendRule,
	); err != nil {
		return nil, err
	}
	var err error
	h.Attributes = refdata.Attributes(attrs)
	if h.Tag, err = refdata.ParseTag([]byte(tag)); err != nil {
		return nil, fmt.Errorf("holiday %s: %w", h.ID, err)
	}
	h.Scope = refdata.HolidayScope(scope)
	h.Type = refdata.HolidayType(holidayType)
	h.Month = time.Month(month)
	h.DayOfWeek = time.Weekday(dayOfWeek)
	h.WeekOfMonth = refdata.WeekOfMonth(weekOfMonth)
	h.MoveWeekend = refdata.MoveWeekend(moveWeekendRule)
	return &h, nil
}

func holidayArgs(h *refdata.Holiday) []interface{} {
	return []interface{}{
		h.ID,
		int(h.Attributes),
		string(h.Tag.Bytes()),
		string(h.Scope),
		h.ParentID,
		h.Name,
		string(h.Type),
		int(h.Month),
		h.DayOfMonth,
		int(h.DayOfWeek),
		int(h.WeekOfMonth),
		string(h.MoveWeekend),
	}
}

func (r *Repository) CreateHoliday(ctx context.Context, holiday *refdata.Holiday) error {
	query := `INSERT INTO holidays (` + holidayColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`
	_, err := r.exec(ctx, query, holidayArgs(holiday)...)
	return err
}

func (r *Repository) UpdateHoliday(ctx context.Context, holiday *refdata.Holiday) error {
	const query = `
		UPDATE holidays
		SET attributes = $2,
			tag = $3,
			scope = $4,
			parent_id = $5,
			name = $6,
			type = $7,
			month = $8,
			day_of_month = $9,
			day_of_week = $10,
			week_of_month = $11,
			move_weekend = $12,
			updated_at = NOW()
		WHERE id = $1`
	return affected(r.exec(ctx, query, holidayArgs(holiday)...))
}

func (r *Repository) DeleteHoliday(ctx context.Context, id uuid.UUID) error {
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		if err := affected(tx.Exec(ctx, `DELETE FROM holidays WHERE id = $1`, id)); err != nil {
			return err
		}
		return dropTranslations(ctx, tx, id.String())
	})
}
