package sqlite

import (
	"database/sql"
	"strings"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// plateExpr is the SQL twin of types.NormalizePlate.
const plateExpr = `REPLACE(REPLACE(REPLACE(LOWER(license_plate), ' ', ''), '-', ''), '.', '')`

// likeContains builds a LIKE pattern matching s anywhere, with % _ and the
// escape character itself escaped. Use with ESCAPE '\'.
func likeContains(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(s) + "%"
}

func nullText(s string) any {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return s
}

func nullTextPtr(s *string) any {
	if s == nil {
		return nil
	}
	return nullText(*s)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func fromMs(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nowMs() int64 {
	return time.Now().UTC().UnixMilli()
}

func parseNullDate(ns sql.NullString) *types.Date {
	if !ns.Valid || strings.TrimSpace(ns.String) == "" {
		return nil
	}
	d, err := types.ParseDate(ns.String)
	if err != nil {
		// Rows written outside the admin API may hold junk; treat as unknown.
		return nil
	}
	return &d
}

func dateArg(d *types.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}

// mapConstraint turns a UNIQUE violation into store.ErrDuplicate.
func mapConstraint(err error) error {
	if err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed") {
		return store.ErrDuplicate
	}
	return err
}
