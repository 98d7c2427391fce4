package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store/memory"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

func TestPermissionGate_UserOrGroup(t *testing.T) {
	cases := []struct {
		name        string
		userActive  *bool
		groupActive *bool
		userID      string
		groupID     string
		want        bool
	}{
		{name: "no entries", userID: "U1", groupID: "G1", want: false},
		{name: "active user only", userActive: boolPtr(true), userID: "U1", groupID: "G1", want: true},
		{name: "active group only", groupActive: boolPtr(true), userID: "U1", groupID: "G1", want: true},
		{name: "inactive user and group", userActive: boolPtr(false), groupActive: boolPtr(false), userID: "U1", groupID: "G1", want: false},
		{name: "inactive user active group", userActive: boolPtr(false), groupActive: boolPtr(true), userID: "U1", groupID: "G1", want: true},
		{name: "active user inactive group", userActive: boolPtr(true), groupActive: boolPtr(false), userID: "U1", groupID: "G1", want: true},
		{name: "no ids at all", userActive: boolPtr(true), groupActive: boolPtr(true), want: false},
		{name: "group only id", groupActive: boolPtr(true), groupID: "G1", want: true},
		{name: "user only id", userActive: boolPtr(true), userID: "U1", want: true},
		{name: "whitespace ids", userActive: boolPtr(true), userID: "  U1  ", want: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			perms := memory.NewPermissionStore()
			if tc.userActive != nil {
				perms.Allow(types.PermissionUser, "U1", *tc.userActive, "")
			}
			if tc.groupActive != nil {
				perms.Allow(types.PermissionGroup, "G1", *tc.groupActive, "")
			}
			gate := service.NewPermissionGate(perms)

			got, err := gate.IsAuthorized(context.Background(), tc.userID, tc.groupID)
			if err != nil {
				t.Fatalf("IsAuthorized: %v", err)
			}
			if got != tc.want {
				t.Errorf("expected %v, got %v", tc.want, got)
			}
		})
	}
}

func TestPermissionGate_EmptyIDsSkipLookup(t *testing.T) {
	perms := memory.NewPermissionStore()
	gate := service.NewPermissionGate(perms)

	if ok, err := gate.IsAuthorized(context.Background(), "", "  "); ok || err != nil {
		t.Fatalf("expected denied without error, got %v, %v", ok, err)
	}
	if n := perms.Lookups(); n != 0 {
		t.Errorf("expected no store lookups, got %d", n)
	}
}

type brokenPermissionStore struct {
	*memory.PermissionStore
	failKind types.PermissionKind
}

var errPermissionsDown = errors.New("permissions table unavailable")

func (s brokenPermissionStore) Lookup(ctx context.Context, kind types.PermissionKind, id string) (types.Permission, error) {
	if kind == s.failKind {
		return types.Permission{}, errPermissionsDown
	}
	return s.PermissionStore.Lookup(ctx, kind, id)
}

func TestPermissionGate_LookupErrors(t *testing.T) {
	perms := memory.NewPermissionStore()
	perms.Allow(types.PermissionGroup, "G1", true, "")

	// A failing user lookup does not hide an active group.
	gate := service.NewPermissionGate(brokenPermissionStore{PermissionStore: perms, failKind: types.PermissionUser})
	ok, err := gate.IsAuthorized(context.Background(), "U1", "G1")
	if !ok || err != nil {
		t.Fatalf("expected allowed via group, got %v, %v", ok, err)
	}

	// When nothing grants access the failure is surfaced.
	gate = service.NewPermissionGate(brokenPermissionStore{PermissionStore: perms, failKind: types.PermissionUser})
	ok, err = gate.IsAuthorized(context.Background(), "U1", "G2")
	if ok {
		t.Fatal("expected denied")
	}
	if !errors.Is(err, errPermissionsDown) {
		t.Errorf("expected lookup error, got %v", err)
	}
}

func TestPermissionGate_DisplayNameIgnoresActiveFlag(t *testing.T) {
	perms := memory.NewPermissionStore()
	perms.Allow(types.PermissionUser, "U1", false, "Somchai")
	perms.Allow(types.PermissionGroup, "G1", true, "   ")
	gate := service.NewPermissionGate(perms)
	ctx := context.Background()

	if name, ok := gate.DisplayName(ctx, types.PermissionUser, "U1"); !ok || name != "Somchai" {
		t.Errorf("expected Somchai, got %q, %v", name, ok)
	}
	if _, ok := gate.DisplayName(ctx, types.PermissionGroup, "G1"); ok {
		t.Error("expected blank display name to be absent")
	}
	if _, ok := gate.DisplayName(ctx, types.PermissionGroup, "missing"); ok {
		t.Error("expected unknown id to be absent")
	}
}

func boolPtr(b bool) *bool { return &b }
