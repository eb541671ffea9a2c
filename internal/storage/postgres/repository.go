package postgres

import (
	"context"
	"fmt"

	"github.com/campusevents/server/internal/config"
	"github.com/campusevents/server/internal/domain/events"
	"github.com/campusevents/server/internal/domain/feedback"
	"github.com/campusevents/server/internal/domain/registrations"
	"github.com/campusevents/server/internal/domain/reports"
	"github.com/campusevents/server/internal/domain/users"
	"github.com/campusevents/server/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ storage.Repository = (*Repository)(nil)

// Repository implements storage.Repository with a PostgreSQL backend
type Repository struct {
	conn
}

// conn is embedded by every table repository. When tx is set all statements
// run inside it.
type conn struct {
	pool *pgxpool.Pool
	tx   pgx.Tx
}

type queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (c conn) queryer() queryer {
	if c.tx != nil {
		return c.tx
	}
	return c.pool
}

// Open builds a pool from the database section of the config and pings it.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MaxIdle > 0 && cfg.MaxIdle <= int(poolCfg.MaxConns) {
		poolCfg.MinConns = int32(cfg.MaxIdle)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

func NewRepository(pool *pgxpool.Pool) (*Repository, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool cannot be nil")
	}
	return &Repository{conn: conn{pool: pool}}, nil
}

func (r *Repository) Users() users.Repository {
	return &UserRepository{conn: r.conn}
}

func (r *Repository) Events() events.Repository {
	return &EventRepository{conn: r.conn}
}

func (r *Repository) Registrations() registrations.Repository {
	return &RegistrationRepository{conn: r.conn}
}

func (r *Repository) Feedback() feedback.Repository {
	return &FeedbackRepository{conn: r.conn}
}

func (r *Repository) Reports() reports.Repository {
	return &ReportRepository{conn: r.conn}
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

// WithTx executes fn within a database transaction. Nested calls reuse the
// outer transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, storage.Repository) error) error {
	return r.conn.inTx(ctx, func(ctx context.Context, c conn) error {
		return fn(ctx, &Repository{conn: c})
	})
}

func (c conn) inTx(ctx context.Context, fn func(context.Context, conn) error) error {
	if c.tx != nil {
		return fn(ctx, c)
	}

	tx, err := c.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if err := fn(ctx, conn{pool: c.pool, tx: tx}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback after error %v: %w", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
