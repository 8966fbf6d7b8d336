package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/marcboeker/go-duckdb/v2"
	_ "modernc.org/sqlite"
)

type DBConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	// ReadOnly opens the pool through Target.WithReadOnly.
	ReadOnly bool
}

// Open opens the pool and verifies it with a ping.
func Open(ctx context.Context, cfg DBConfig) (*sql.DB, Target, error) {
	db, target, err := OpenPool(cfg)
	if err != nil {
		return nil, Target{}, err
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, Target{}, fmt.Errorf("ping %s db: %w", target.Dialect, err)
	}
	return db, target, nil
}

// OpenPool configures the pool without connecting. Connection failures
// surface on first use.
func OpenPool(cfg DBConfig) (*sql.DB, Target, error) {
	target, err := ParseURL(cfg.URL)
	if err != nil {
		return nil, Target{}, err
	}
	if cfg.ReadOnly {
		target = target.WithReadOnly()
	}

	db, err := sql.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, Target{}, fmt.Errorf("open %s db: %w", target.Dialect, err)
	}

	if target.Memory() {
		// Every connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxIdleTime(0)
		db.SetConnMaxLifetime(0)
		return db, target, nil
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	return db, target, nil
}

// Placeholder returns the n-th (1-based) bind parameter marker for the dialect.
func (d Dialect) Placeholder(n int) string {
	if d == DialectPostgreSQL {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}
