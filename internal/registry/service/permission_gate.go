package service

import (
	"context"
	"errors"
	"strings"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// PermissionGate decides whether a LINE sender may query the registry.
type PermissionGate struct {
	store store.PermissionStore
}

func NewPermissionGate(st store.PermissionStore) *PermissionGate {
	return &PermissionGate{store: st}
}

// IsAuthorized is true when the user OR the group/room has an active entry.
// An error is returned only when no lookup could grant access and at least
// one of them failed.
func (g *PermissionGate) IsAuthorized(ctx context.Context, userID, groupID string) (bool, error) {
	var errs []error

	for _, c := range []struct {
		kind types.PermissionKind
		id   string
	}{
		{types.PermissionUser, userID},
		{types.PermissionGroup, groupID},
	} {
		ok, err := g.isActive(ctx, c.kind, c.id)
		if ok {
			return true, nil
		}
		if err != nil {
			errs = append(errs, err)
		}
	}

	return false, errors.Join(errs...)
}

func (g *PermissionGate) isActive(ctx context.Context, kind types.PermissionKind, id string) (bool, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}
	p, err := g.store.Lookup(ctx, kind, id)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return p.IsActive, nil
}

// DisplayName returns the operator-configured name for an id, active or not.
func (g *PermissionGate) DisplayName(ctx context.Context, kind types.PermissionKind, id string) (string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", false
	}
	p, err := g.store.Lookup(ctx, kind, id)
	if err != nil || strings.TrimSpace(p.DisplayName) == "" {
		return "", false
	}
	return p.DisplayName, true
}
