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

// PermissionStore serves both line_users and line_groups; the two tables
// share a shape and differ only in the external id column.
type PermissionStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewPermissionStore(db *sql.DB, writer *dbpkg.Worker) *PermissionStore {
	return &PermissionStore{db: db, writer: writer}
}

type permTable struct {
	name  string
	idCol string
}

func tableFor(kind types.PermissionKind) (permTable, error) {
	switch kind {
	case types.PermissionUser:
		return permTable{name: "line_users", idCol: "line_user_id"}, nil
	case types.PermissionGroup:
		return permTable{name: "line_groups", idCol: "line_group_id"}, nil
	default:
		return permTable{}, fmt.Errorf("unknown permission kind %q", kind)
	}
}

func (t permTable) columns() string {
	return "id, " + t.idCol + ", is_active, display_name, created_at_ms, updated_at_ms"
}

func (s *PermissionStore) Lookup(ctx context.Context, kind types.PermissionKind, externalID string) (types.Permission, error) {
	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return types.Permission{}, store.ErrNotFound
	}
	t, err := tableFor(kind)
	if err != nil {
		return types.Permission{}, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+t.columns()+` FROM `+t.name+` WHERE `+t.idCol+` = ?;`, externalID)
	p, err := scanPermission(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Permission{}, store.ErrNotFound
	}
	if err != nil {
		return types.Permission{}, fmt.Errorf("Lookup %s: %w", kind, err)
	}
	return p, nil
}

func (s *PermissionStore) Get(ctx context.Context, kind types.PermissionKind, id int64) (types.Permission, error) {
	t, err := tableFor(kind)
	if err != nil {
		return types.Permission{}, err
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+t.columns()+` FROM `+t.name+` WHERE id = ?;`, id)
	p, err := scanPermission(row, kind)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Permission{}, store.ErrNotFound
	}
	if err != nil {
		return types.Permission{}, fmt.Errorf("Get %s %d: %w", kind, id, err)
	}
	return p, nil
}

func (s *PermissionStore) List(ctx context.Context, kind types.PermissionKind) ([]types.Permission, error) {
	t, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+t.columns()+` FROM `+t.name+` ORDER BY created_at_ms DESC, id DESC;`)
	if err != nil {
		return nil, fmt.Errorf("List %s: %w", kind, err)
	}
	defer rows.Close()

	var out []types.Permission
	for rows.Next() {
		p, err := scanPermission(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *PermissionStore) Create(ctx context.Context, p types.Permission) (types.Permission, error) {
	t, err := tableFor(p.Kind)
	if err != nil {
		return types.Permission{}, err
	}
	ms := nowMs()
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
INSERT INTO `+t.name+`(`+t.idCol+`, is_active, display_name, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);
`, strings.TrimSpace(p.ExternalID), boolInt(p.IsActive), nullText(p.DisplayName), ms, ms)
		if err != nil {
			return mapConstraint(err)
		}
		p.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return types.Permission{}, err
	}
	p.CreatedAt = fromMs(ms)
	p.UpdatedAt = p.CreatedAt
	return p, nil
}

func (s *PermissionStore) Update(ctx context.Context, p types.Permission) (types.Permission, error) {
	t, err := tableFor(p.Kind)
	if err != nil {
		return types.Permission{}, err
	}
	err = s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
UPDATE `+t.name+`
SET is_active = ?,
    display_name = ?,
    updated_at_ms = ?
WHERE id = ?;
`, boolInt(p.IsActive), nullText(p.DisplayName), nowMs(), p.ID)
		if err != nil {
			return fmt.Errorf("Update %s: %w", p.Kind, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
	if err != nil {
		return types.Permission{}, err
	}
	return s.Get(ctx, p.Kind, p.ID)
}

func (s *PermissionStore) Delete(ctx context.Context, kind types.PermissionKind, id int64) error {
	t, err := tableFor(kind)
	if err != nil {
		return err
	}
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `DELETE FROM `+t.name+` WHERE id = ?;`, id)
		if err != nil {
			return fmt.Errorf("Delete %s: %w", kind, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return store.ErrNotFound
		}
		return nil
	})
}

func (s *PermissionStore) Count(ctx context.Context, kind types.PermissionKind) (int, error) {
	t, err := tableFor(kind)
	if err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+t.name+`;`).Scan(&n); err != nil {
		return 0, fmt.Errorf("Count %s: %w", kind, err)
	}
	return n, nil
}

func scanPermission(r rowScanner, kind types.PermissionKind) (types.Permission, error) {
	var (
		p         types.Permission
		active    int
		name      sql.NullString
		createdMs int64
		updatedMs int64
	)
	if err := r.Scan(&p.ID, &p.ExternalID, &active, &name, &createdMs, &updatedMs); err != nil {
		return types.Permission{}, err
	}
	p.Kind = kind
	p.IsActive = active == 1
	p.DisplayName = name.String
	p.CreatedAt = fromMs(createdMs)
	p.UpdatedAt = fromMs(updatedMs)
	return p, nil
}
