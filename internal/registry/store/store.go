package store

import (
	"context"
	"errors"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// VehicleStore holds the searched corpus. Only the admin side writes to it.
type VehicleStore interface {
	// SearchPlates returns up to limit vehicles, newest created first, whose
	// normalised plate contains needle. needle must already be normalised
	// with types.NormalizePlate.
	SearchPlates(ctx context.Context, needle string, limit int) ([]types.Vehicle, error)

	List(ctx context.Context, needle string, limit int) ([]types.Vehicle, error)
	Get(ctx context.Context, id int64) (types.Vehicle, error)
	Create(ctx context.Context, v types.Vehicle) (types.Vehicle, error)
	Update(ctx context.Context, v types.Vehicle) (types.Vehicle, error)
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int, error)

	// CreateMany inserts all vehicles in one transaction.
	CreateMany(ctx context.Context, vs []types.Vehicle) (int, error)
}

// PermissionStore holds the LINE users and groups allowed to query.
type PermissionStore interface {
	// Lookup returns the entry for an exact external id, or ErrNotFound.
	Lookup(ctx context.Context, kind types.PermissionKind, externalID string) (types.Permission, error)

	List(ctx context.Context, kind types.PermissionKind) ([]types.Permission, error)
	Create(ctx context.Context, p types.Permission) (types.Permission, error)
	Update(ctx context.Context, p types.Permission) (types.Permission, error)
	Delete(ctx context.Context, kind types.PermissionKind, id int64) error
	Get(ctx context.Context, kind types.PermissionKind, id int64) (types.Permission, error)
	Count(ctx context.Context, kind types.PermissionKind) (int, error)
}

// QueryLogStore persists the webhook query audit trail. It is append-only.
type QueryLogStore interface {
	// EnsureDisplayNameColumns adds actor_display_name and
	// context_display_name to older schemas. Idempotent.
	EnsureDisplayNameColumns(ctx context.Context) error

	// Append writes one entry. When withNames is false the display-name
	// columns are not referenced at all.
	Append(ctx context.Context, rec types.QueryLog, withNames bool) error

	// Recent returns the newest entries first.
	Recent(ctx context.Context, limit int) ([]types.QueryLog, error)
}

type AdminStore interface {
	GetByUsername(ctx context.Context, username string) (types.Admin, error)
	Create(ctx context.Context, a types.Admin) (types.Admin, error)
	Count(ctx context.Context) (int, error)
}

// ProfileCache remembers resolved LINE display names.
type ProfileCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, name string, ttl time.Duration) error
}
