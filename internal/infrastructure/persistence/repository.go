// Package persistence is the Postgres store behind the graph manager.
// Structural tables are shared by every data provider; associations,
// fundamental values and price data live in per-provider tables.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"marketgraph/internal/domain/entity/refdata"
	"marketgraph/internal/domain/interfaces"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var _ interfaces.Store = (*Repository)(nil)

type Config struct {
	DSN      string
	MaxConns int32

	// CommandTimeout bounds every statement unless the call overrides it
	// with WithCommandTimeout. Zero means no bound.
	CommandTimeout time.Duration
}

// Repository serializes writes behind one lock. Reads outside a write
// transaction are not locked and may observe a bulk write in progress.
type Repository struct {
	pool   *pgxpool.Pool
	sqlDB  *sql.DB
	gorm   *gorm.DB
	logger *logrus.Logger

	mu             sync.Mutex
	commandTimeout time.Duration
	associations   *AssociationCache
}

func NewRepository(ctx context.Context, cfg Config, logger *logrus.Logger) (*Repository, error) {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}

	sqlDB := stdlib.OpenDBFromPool(pool)
	gdb, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		_ = sqlDB.Close()
		pool.Close()
		return nil, fmt.Errorf("open gorm: %w", err)
	}

	r := &Repository{
		pool:           pool,
		sqlDB:          sqlDB,
		gorm:           gdb,
		logger:         logger,
		commandTimeout: cfg.CommandTimeout,
	}
	r.associations = NewAssociationCache(r.loadAssociationIDs)
	return r, nil
}

func (r *Repository) Close() {
	if r == nil || r.pool == nil {
		return
	}
	if r.sqlDB != nil {
		_ = r.sqlDB.Close()
	}
	r.pool.Close()
}

// Ping checks connectivity; used by health probes.
func (r *Repository) Ping(ctx context.Context) error {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	return r.pool.Ping(ctx)
}

type commandTimeoutKey struct{}

// WithCommandTimeout overrides the command timeout for store calls made
// with the returned context. Zero disables the bound; a negative value
// restores the connection default.
func WithCommandTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, commandTimeoutKey{}, d)
}

func (r *Repository) commandTimeoutFor(ctx context.Context) time.Duration {
	if d, ok := ctx.Value(commandTimeoutKey{}).(time.Duration); ok && d >= 0 {
		return d
	}
	return r.commandTimeout
}

func (r *Repository) timeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := r.commandTimeoutFor(ctx); d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

type querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
}

type commandTagExecutor interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

func (r *Repository) withTx(ctx context.Context, fn func(pgx.Tx) error) (err error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// write runs fn in a transaction while holding the writer lock.
func (r *Repository) write(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	return r.withTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, tx)
	})
}

// exec runs a single statement under the writer lock.
func (r *Repository) exec(ctx context.Context, query string, args ...interface{}) (pgconn.CommandTag, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	return r.pool.Exec(ctx, query, args...)
}

// affected maps an update or delete that touched no row to ErrNotFound.
func affected(tag pgconn.CommandTag, err error) error {
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return refdata.ErrNotFound
	}
	return nil
}

// collect reads every row of a query with scan, under the read timeout.
func collect[T any](ctx context.Context, r *Repository, q querier, query string, scan func(pgx.Rows) (T, error), args ...interface{}) ([]T, error) {
	ctx, cancel := r.timeout(ctx)
	defer cancel()
	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
