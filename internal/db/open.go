package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

const pragmas = "_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)"

type Config struct {
	Path string // e.g. "./data/database.db"
	Env  string // "dev" | "prod"

	// SkipMigrate opens the database without applying migrations.
	SkipMigrate bool
}

// FileDSN returns the modernc.org/sqlite DSN for an on-disk database with the
// per-connection PRAGMAs used in production:
//   - foreign_keys ON
//   - WAL so admin reads do not block webhook audit writes
//   - synchronous NORMAL
//   - busy_timeout to absorb SQLITE_BUSY under load
func FileDSN(path string) string {
	return fmt.Sprintf("file:%s?%s", path, pragmas)
}

// MemoryDSN returns a DSN for a named shared-cache in-memory database. The
// database lives as long as at least one connection of the pool is open.
func MemoryDSN(name string) string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&%s", name, pragmas)
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if cfg.Path == "" {
		cfg.Path = "./data/database.db"
	}
	if cfg.Env == "" {
		cfg.Env = "dev"
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("mkdir db dir: %w", err)
	}

	return OpenDSN(ctx, FileDSN(cfg.Path), !cfg.SkipMigrate)
}

// OpenDSN opens a single-connection pool for dsn, pings it and optionally
// applies migrations.
func OpenDSN(ctx context.Context, dsn string, migrate bool) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql.Open: %w", err)
	}

	// One connection: SQLite allows a single writer and the Worker already
	// serialises writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	if migrate {
		if _, err := Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	return db, nil
}
