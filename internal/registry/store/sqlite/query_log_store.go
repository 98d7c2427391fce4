package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/mzDeaThly/data-spf/internal/db"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

var displayNameColumns = []string{"actor_display_name", "context_display_name"}

type QueryLogStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewQueryLogStore(db *sql.DB, writer *dbpkg.Worker) *QueryLogStore {
	return &QueryLogStore{db: db, writer: writer}
}

// EnsureDisplayNameColumns adds whichever display-name columns are missing
// from query_logs. A "duplicate column" failure means another caller won the
// race and is treated as success.
func (s *QueryLogStore) EnsureDisplayNameColumns(ctx context.Context) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		have, err := tableColumns(ctx, tx, "query_logs")
		if err != nil {
			return err
		}
		for _, col := range displayNameColumns {
			if have[col] {
				continue
			}
			if _, err := tx.ExecContext(ctx, `ALTER TABLE query_logs ADD COLUMN `+col+` TEXT;`); err != nil {
				if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
					continue
				}
				return fmt.Errorf("add column %s: %w", col, err)
			}
		}
		return nil
	})
}

func (s *QueryLogStore) Append(ctx context.Context, rec types.QueryLog, withNames bool) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	createdMs := rec.CreatedAt.UTC().UnixMilli()

	var matched any
	if rec.MatchedCount != nil {
		matched = *rec.MatchedCount
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if withNames {
			if _, err := tx.ExecContext(ctx, `
INSERT INTO query_logs(
  created_at_ms, source_type, line_user_id, line_group_id, query_text,
  matched_count, allowed, actor_display_name, context_display_name
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
				createdMs, string(rec.SourceType), nullText(rec.UserID), nullText(rec.GroupID), rec.QueryText,
				matched, boolInt(rec.Allowed), nullTextPtr(rec.ActorDisplayName), nullTextPtr(rec.ContextDisplayName),
			); err != nil {
				return fmt.Errorf("Append insert: %w", err)
			}
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO query_logs(
  created_at_ms, source_type, line_user_id, line_group_id, query_text,
  matched_count, allowed
) VALUES (?, ?, ?, ?, ?, ?, ?);
`,
			createdMs, string(rec.SourceType), nullText(rec.UserID), nullText(rec.GroupID), rec.QueryText,
			matched, boolInt(rec.Allowed),
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
}

// Recent returns the newest entries first. Display names are read only when
// the columns exist.
func (s *QueryLogStore) Recent(ctx context.Context, limit int) ([]types.QueryLog, error) {
	if limit <= 0 {
		limit = 100
	}

	cols := "id, created_at_ms, source_type, line_user_id, line_group_id, query_text, matched_count, allowed"
	have, err := tableColumns(ctx, s.db, "query_logs")
	if err != nil {
		return nil, err
	}
	withNames := have["actor_display_name"] && have["context_display_name"]
	if withNames {
		cols += ", actor_display_name, context_display_name"
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+cols+` FROM query_logs ORDER BY created_at_ms DESC, id DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("Recent query: %w", err)
	}
	defer rows.Close()

	var out []types.QueryLog
	for rows.Next() {
		var (
			rec             types.QueryLog
			createdMs       int64
			source          string
			userID, groupID sql.NullString
			matched         sql.NullInt64
			allowed         int
			actor, ctxName  sql.NullString
		)
		dest := []any{&rec.ID, &createdMs, &source, &userID, &groupID, &rec.QueryText, &matched, &allowed}
		if withNames {
			dest = append(dest, &actor, &ctxName)
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		rec.CreatedAt = fromMs(createdMs)
		rec.SourceType = types.SourceType(source)
		rec.UserID = userID.String
		rec.GroupID = groupID.String
		rec.Allowed = allowed == 1
		if matched.Valid {
			n := int(matched.Int64)
			rec.MatchedCount = &n
		}
		if actor.Valid {
			rec.ActorDisplayName = &actor.String
		}
		if ctxName.Valid {
			rec.ContextDisplayName = &ctxName.String
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func tableColumns(ctx context.Context, q queryer, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, `PRAGMA table_info(`+table+`);`)
	if err != nil {
		return nil, fmt.Errorf("table_info %s: %w", table, err)
	}
	defer rows.Close()

	have := make(map[string]bool)
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table_info %s: %w", table, err)
		}
		have[strings.ToLower(name)] = true
	}
	return have, rows.Err()
}
