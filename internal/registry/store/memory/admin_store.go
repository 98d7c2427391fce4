package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

type AdminStore struct {
	mu     sync.RWMutex
	byName map[string]types.Admin
}

func NewAdminStore() *AdminStore {
	return &AdminStore{byName: make(map[string]types.Admin)}
}

func (s *AdminStore) GetByUsername(_ context.Context, username string) (types.Admin, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.byName[strings.TrimSpace(username)]
	if !ok {
		return types.Admin{}, store.ErrNotFound
	}
	return a, nil
}

func (s *AdminStore) Create(_ context.Context, a types.Admin) (types.Admin, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Username = strings.TrimSpace(a.Username)
	if _, ok := s.byName[a.Username]; ok {
		return types.Admin{}, store.ErrDuplicate
	}
	a.ID = int64(len(s.byName) + 1)
	a.CreatedAt = time.Now().UTC()
	a.UpdatedAt = a.CreatedAt
	s.byName[a.Username] = a
	return a, nil
}

func (s *AdminStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName), nil
}
