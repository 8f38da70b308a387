package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

type Config struct {
	Dialect Dialect
	Path    string // sqlite file, e.g. "./data/parkgate.db"
	URL     string // postgres DSN
	Env     string // "dev" | "prod"
}

// Open connects, pings, and migrates the database described by cfg.
func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Dialect == "" {
		cfg.Dialect = SQLite
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(cfg.Dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	if cfg.Dialect == SQLite {
		// Single connection: every write already funnels through Worker.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
	} else {
		db.SetMaxOpenConns(8)
		db.SetConnMaxIdleTime(5 * time.Minute)
	}

	// Validate connection early.
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if err := Migrate(ctx, db, cfg.Dialect); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

func dataSourceName(cfg Config) (string, error) {
	switch cfg.Dialect {
	case Postgres:
		if cfg.URL == "" {
			return "", fmt.Errorf("postgres dialect requires a connection URL")
		}
		return cfg.URL, nil
	case SQLite:
		if cfg.Path == "" {
			cfg.Path = "./data/parkgate.db"
		}
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return "", fmt.Errorf("mkdir db dir: %w", err)
		}
		// Per-connection PRAGMAs for modernc.org/sqlite.
		return fmt.Sprintf(
			"file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
			cfg.Path,
		), nil
	default:
		return "", fmt.Errorf("unknown db dialect %q", cfg.Dialect)
	}
}
