package persistence

import (
	"context"
	"fmt"
	"time"

	"marketgraph/internal/domain/entity/marketdata"

	"github.com/jackc/pgx/v5"
)

// UpsertBars writes bars into the provider's table for the resolution.
// A single bar is one statement; larger sets go through one batch inside
// one transaction.
func (r *Repository) UpsertBars(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, bars []marketdata.Bar) error {
	if !resolution.IsBar() {
		return fmt.Errorf("%w: %s", marketdata.ErrNotImplemented, resolution)
	}
	table, err := priceTable(provider, resolution)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (ticker, date_time, open, high, low, close, volume, synthetic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker, date_time) DO UPDATE SET
			open = EXCLUDED.open,
			high = EXCLUDED.high,
			low = EXCLUDED.low,
			close = EXCLUDED.close,
			volume = EXCLUDED.volume,
			synthetic = EXCLUDED.synthetic`, table)
	args := func(b marketdata.Bar) []interface{} {
		return []interface{}{ticker, b.DateTime.UTC(), b.Open, b.High, b.Low, b.Close, b.Volume, b.Synthetic}
	}
	return upsertRows(ctx, r, query, bars, args)
}

func (r *Repository) UpsertTicks(ctx context.Context, provider, ticker string, ticks []marketdata.Level1Tick) error {
	table, err := priceTable(provider, marketdata.ResolutionLevel1)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (ticker, date_time, bid, bid_size, ask, ask_size, last, last_size, synthetic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (ticker, date_time) DO UPDATE SET
			bid = EXCLUDED.bid,
			bid_size = EXCLUDED.bid_size,
			ask = EXCLUDED.ask,
			ask_size = EXCLUDED.ask_size,
			last = EXCLUDED.last,
			last_size = EXCLUDED.last_size,
			synthetic = EXCLUDED.synthetic`, table)
	args := func(t marketdata.Level1Tick) []interface{} {
		return []interface{}{ticker, t.DateTime.UTC(), t.Bid, t.BidSize, t.Ask, t.AskSize, t.Last, t.LastSize, t.Synthetic}
	}
	return upsertRows(ctx, r, query, ticks, args)
}

func upsertRows[T any](ctx context.Context, r *Repository, query string, rows []T, args func(T) []interface{}) error {
	switch len(rows) {
	case 0:
		return nil
	case 1:
		_, err := r.exec(ctx, query, args(rows[0])...)
		return err
	}
	return r.write(ctx, func(ctx context.Context, tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, row := range rows {
			batch.Queue(query, args(row)...)
		}
		results := tx.SendBatch(ctx, batch)
		for range rows {
			if _, err := results.Exec(); err != nil {
				_ = results.Close()
				return err
			}
		}
		return results.Close()
	})
}

// DeletePriceData removes rows with from <= date_time <= to and reports
// how many were deleted.
func (r *Repository) DeletePriceData(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time) (int64, error) {
	table, err := priceTable(provider, resolution)
	if err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE ticker = $1 AND date_time >= $2 AND date_time <= $3`, table)
	tag, err := r.exec(ctx, query, ticker, from.UTC(), to.UTC())
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// GetDataCache reads rows with from <= date_time <= to in ascending
// order, filtered by the synthetic flag.
func (r *Repository) GetDataCache(ctx context.Context, provider, ticker string, resolution marketdata.Resolution, from, to time.Time, dataType marketdata.PriceDataType) (*marketdata.DataCache, error) {
	table, err := priceTable(provider, resolution)
	if err != nil {
		return nil, err
	}
	columns := "date_time, open, high, low, close, volume, synthetic"
	if !resolution.IsBar() {
		columns = "date_time, bid, bid_size, ask, ask_size, last, last_size, synthetic"
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE ticker = $1 AND date_time >= $2 AND date_time <= $3`, columns, table)
	args := []interface{}{ticker, from.UTC(), to.UTC()}
	switch dataType {
	case marketdata.PriceDataActual:
		query += ` AND NOT synthetic`
	case marketdata.PriceDataSynthetic:
		query += ` AND synthetic`
	}
	query += ` ORDER BY date_time`

	ctx, cancel := r.timeout(ctx)
	defer cancel()
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cache := marketdata.NewDataCache(ticker, resolution, from, to)
	for rows.Next() {
		if resolution.IsBar() {
			var b marketdata.Bar
			if err := rows.Scan(&b.DateTime, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Synthetic); err != nil {
				return nil, err
			}
			b.DateTime = b.DateTime.UTC()
			cache.AppendBar(b)
			continue
		}
		var t marketdata.Level1Tick
		if err := rows.Scan(&t.DateTime, &t.Bid, &t.BidSize, &t.Ask, &t.AskSize, &t.Last, &t.LastSize, &t.Synthetic); err != nil {
			return nil, err
		}
		t.DateTime = t.DateTime.UTC()
		cache.AppendTick(t)
	}
	return cache, rows.Err()
}
