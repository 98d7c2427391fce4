package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	dbpkg "github.com/mzDeaThly/data-spf/internal/db"
	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

type AdminStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAdminStore(db *sql.DB, writer *dbpkg.Worker) *AdminStore {
	return &AdminStore{db: db, writer: writer}
}

func (s *AdminStore) GetByUsername(ctx context.Context, username string) (types.Admin, error) {
	var (
		a         types.Admin
		createdMs int64
		updatedMs int64
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, username, password_hash, created_at_ms, updated_at_ms
FROM admins
WHERE username = ?;
`, strings.TrimSpace(username)).Scan(&a.ID, &a.Username, &a.PasswordHash, &createdMs, &updatedMs)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Admin{}, store.ErrNotFound
	}
	if err != nil {
		return types.Admin{}, fmt.Errorf("GetByUsername: %w", err)
	}
	a.CreatedAt = fromMs(createdMs)
	a.UpdatedAt = fromMs(updatedMs)
	return a, nil
}

func (s *AdminStore) Create(ctx context.Context, a types.Admin) (types.Admin, error) {
	ms := nowMs()
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO admins(username, password_hash, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?);
`, strings.TrimSpace(a.Username), a.PasswordHash, ms, ms)
		if err != nil {
			return mapConstraint(err)
		}
		a.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return types.Admin{}, err
	}
	a.CreatedAt = fromMs(ms)
	a.UpdatedAt = a.CreatedAt
	return a, nil
}

func (s *AdminStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM admins;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count admins: %w", err)
	}
	return n, nil
}
