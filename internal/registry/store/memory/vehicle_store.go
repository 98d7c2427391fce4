package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// VehicleStore is an in-memory registry.
// It is intended for use in tests and dev environments.
type VehicleStore struct {
	mu     sync.RWMutex
	nextID int64
	rows   map[int64]types.Vehicle

	searches int
}

func NewVehicleStore() *VehicleStore {
	return &VehicleStore{rows: make(map[int64]types.Vehicle)}
}

// Add inserts v keeping its CreatedAt when set. Test-only helper.
func (s *VehicleStore) Add(v types.Vehicle) types.Vehicle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(v)
}

// Searches reports how many times SearchPlates ran.  Test-only helper.
func (s *VehicleStore) Searches() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.searches
}

func (s *VehicleStore) insertLocked(v types.Vehicle) types.Vehicle {
	s.nextID++
	v.ID = s.nextID
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	if v.UpdatedAt.IsZero() {
		v.UpdatedAt = v.CreatedAt
	}
	s.rows[v.ID] = v
	return v
}

func (s *VehicleStore) SearchPlates(_ context.Context, needle string, limit int) ([]types.Vehicle, error) {
	s.mu.Lock()
	s.searches++
	s.mu.Unlock()

	return s.filter(limit, func(v types.Vehicle) bool {
		return strings.Contains(types.NormalizePlate(v.LicensePlate), needle)
	}), nil
}

func (s *VehicleStore) List(_ context.Context, needle string, limit int) ([]types.Vehicle, error) {
	if limit <= 0 {
		limit = 500
	}
	raw := strings.ToLower(strings.TrimSpace(needle))
	norm := types.NormalizePlate(needle)
	return s.filter(limit, func(v types.Vehicle) bool {
		return strings.Contains(strings.ToLower(v.LicensePlate), raw) ||
			strings.Contains(types.NormalizePlate(v.LicensePlate), norm)
	}), nil
}

// filter returns matches ordered newest created first, ties by id.
func (s *VehicleStore) filter(limit int, match func(types.Vehicle) bool) []types.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []types.Vehicle
	for _, v := range s.rows {
		if match(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *VehicleStore) Get(_ context.Context, id int64) (types.Vehicle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.rows[id]
	if !ok {
		return types.Vehicle{}, store.ErrNotFound
	}
	return v, nil
}

func (s *VehicleStore) Create(_ context.Context, v types.Vehicle) (types.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v.CreatedAt = time.Time{}
	v.UpdatedAt = time.Time{}
	return s.insertLocked(v), nil
}

func (s *VehicleStore) CreateMany(ctx context.Context, vs []types.Vehicle) (int, error) {
	for _, v := range vs {
		if _, err := s.Create(ctx, v); err != nil {
			return 0, err
		}
	}
	return len(vs), nil
}

func (s *VehicleStore) Update(_ context.Context, v types.Vehicle) (types.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.rows[v.ID]
	if !ok {
		return types.Vehicle{}, store.ErrNotFound
	}
	v.CreatedAt = old.CreatedAt
	v.UpdatedAt = time.Now().UTC()
	s.rows[v.ID] = v
	return v, nil
}

func (s *VehicleStore) Delete(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rows[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func (s *VehicleStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows), nil
}
