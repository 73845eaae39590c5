// Package postgres persists encounter event logs in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cory-johannsen/tactics/internal/config"
)

// ApplicationName tags the simulator's sessions in pg_stat_activity.
const ApplicationName = "tactics-simulator"

// ErrSchemaMissing is returned by Ready when the event log table does not
// exist yet; run cmd/migrate first.
var ErrSchemaMissing = errors.New("postgres: encounter_events table missing")

// Pool owns the connection pool shared by the repositories.
type Pool struct {
	db *pgxpool.Pool
}

// NewPool connects using cfg and verifies the server answers.
//
// Precondition: cfg must hold valid connection parameters.
// Postcondition: Returns a connected Pool or a non-nil error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*Pool, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: parsing dsn: %w", err)
	}
	pcfg.MaxConns = cfg.MaxConns
	pcfg.MinConns = cfg.MinConns
	pcfg.MaxConnLifetime = cfg.MaxConnLifetime
	pcfg.ConnConfig.RuntimeParams["application_name"] = ApplicationName

	db, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, fmt.Errorf("postgres.NewPool: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres.NewPool: ping: %w", err)
	}
	return &Pool{db: db}, nil
}

// Ready reports whether the server answers within timeout and the event log
// schema is in place.
//
// Postcondition: Returns nil, ErrSchemaMissing, or the connection error.
func (p *Pool) Ready(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	var present bool
	err := p.db.QueryRow(ctx, `SELECT to_regclass('encounter_events') IS NOT NULL`).Scan(&present)
	if err != nil {
		return fmt.Errorf("postgres.Ready: %w", err)
	}
	if !present {
		return ErrSchemaMissing
	}
	return nil
}

// Close releases every connection. The Pool is unusable afterwards.
func (p *Pool) Close() { p.db.Close() }

// DB exposes the pgx pool to repositories.
func (p *Pool) DB() *pgxpool.Pool { return p.db }
