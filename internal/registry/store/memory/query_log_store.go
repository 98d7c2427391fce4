package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// ErrNoNameColumns mirrors the SQLite failure when display names are written
// before the schema has been healed.
var ErrNoNameColumns = errors.New("query_logs has no display-name columns")

// QueryLogStore is an in-memory append-only audit log. It starts with the
// historical schema: display names are rejected until
// EnsureDisplayNameColumns succeeds.
type QueryLogStore struct {
	mu      sync.Mutex
	events  []types.QueryLog
	healed  bool
	ensures int

	// EnsureErr and AppendErr, when set, are returned by the matching call.
	EnsureErr error
	AppendErr error
}

func NewQueryLogStore() *QueryLogStore {
	return &QueryLogStore{}
}

func (s *QueryLogStore) EnsureDisplayNameColumns(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ensures++
	if s.EnsureErr != nil {
		return s.EnsureErr
	}
	s.healed = true
	return nil
}

func (s *QueryLogStore) Append(_ context.Context, rec types.QueryLog, withNames bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.AppendErr != nil {
		return s.AppendErr
	}
	if withNames && !s.healed {
		return ErrNoNameColumns
	}
	if !withNames {
		rec.ActorDisplayName = nil
		rec.ContextDisplayName = nil
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	rec.ID = int64(len(s.events) + 1)
	s.events = append(s.events, rec)
	return nil
}

func (s *QueryLogStore) Recent(_ context.Context, limit int) ([]types.QueryLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = 100
	}
	var out []types.QueryLog
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.events[i])
	}
	return out, nil
}

// Events returns a copy of all recorded entries in write order.  Test-only helper.
func (s *QueryLogStore) Events() []types.QueryLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.QueryLog, len(s.events))
	copy(out, s.events)
	return out
}

// EnsureCalls reports how many times the schema heal was attempted.  Test-only helper.
func (s *QueryLogStore) EnsureCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ensures
}

// SetFailures swaps the injected errors under the lock.  Test-only helper.
func (s *QueryLogStore) SetFailures(ensure, appendErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EnsureErr = ensure
	s.AppendErr = appendErr
}
