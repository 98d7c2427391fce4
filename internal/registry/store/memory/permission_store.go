package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

type PermissionStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[types.PermissionKind]map[int64]types.Permission

	lookups int
}

func NewPermissionStore() *PermissionStore {
	return &PermissionStore{
		rows: map[types.PermissionKind]map[int64]types.Permission{
			types.PermissionUser:  {},
			types.PermissionGroup: {},
		},
	}
}

// Allow registers an entry directly. Test-only helper.
func (s *PermissionStore) Allow(kind types.PermissionKind, externalID string, active bool, name string) {
	_, _ = s.Create(context.Background(), types.Permission{
		Kind: kind, ExternalID: externalID, IsActive: active, DisplayName: name,
	})
}

// Lookups reports how many Lookup calls were made.  Test-only helper.
func (s *PermissionStore) Lookups() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups
}

func (s *PermissionStore) Lookup(_ context.Context, kind types.PermissionKind, externalID string) (types.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lookups++

	externalID = strings.TrimSpace(externalID)
	if externalID == "" {
		return types.Permission{}, store.ErrNotFound
	}
	for _, p := range s.rows[kind] {
		if p.ExternalID == externalID {
			return p, nil
		}
	}
	return types.Permission{}, store.ErrNotFound
}

func (s *PermissionStore) Get(_ context.Context, kind types.PermissionKind, id int64) (types.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.rows[kind][id]
	if !ok {
		return types.Permission{}, store.ErrNotFound
	}
	return p, nil
}

func (s *PermissionStore) List(_ context.Context, kind types.PermissionKind) ([]types.Permission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Permission
	for id := s.nextID; id > 0; id-- {
		if p, ok := s.rows[kind][id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *PermissionStore) Create(_ context.Context, p types.Permission) (types.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ExternalID = strings.TrimSpace(p.ExternalID)
	for _, existing := range s.rows[p.Kind] {
		if existing.ExternalID == p.ExternalID {
			return types.Permission{}, store.ErrDuplicate
		}
	}
	s.nextID++
	p.ID = s.nextID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	if s.rows[p.Kind] == nil {
		s.rows[p.Kind] = make(map[int64]types.Permission)
	}
	s.rows[p.Kind][p.ID] = p
	return p, nil
}

func (s *PermissionStore) Update(_ context.Context, p types.Permission) (types.Permission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[p.Kind][p.ID]
	if !ok {
		return types.Permission{}, store.ErrNotFound
	}
	old.IsActive = p.IsActive
	old.DisplayName = strings.TrimSpace(p.DisplayName)
	old.UpdatedAt = time.Now().UTC()
	s.rows[p.Kind][p.ID] = old
	return old, nil
}

func (s *PermissionStore) Delete(_ context.Context, kind types.PermissionKind, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[kind][id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows[kind], id)
	return nil
}

func (s *PermissionStore) Count(_ context.Context, kind types.PermissionKind) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows[kind]), nil
}
