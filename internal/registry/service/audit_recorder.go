package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

// AuditEntry is one query attempt to be logged.
type AuditEntry struct {
	SourceType   types.SourceType
	UserID       string
	GroupID      string
	QueryText    string
	MatchedCount *int
	Allowed      bool
	ActorName    *string
	ContextName  *string
}

// AuditRecorder appends query attempts to the audit trail. Record never
// fails its caller.
type AuditRecorder struct {
	store store.QueryLogStore
	log   *zap.Logger
	now   func() time.Time

	// healMu serialises the first schema heal; healed flips once it succeeds
	// and is never reset.
	healMu sync.Mutex
	healed bool
}

func NewAuditRecorder(st store.QueryLogStore, log *zap.Logger) *AuditRecorder {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditRecorder{store: st, log: log, now: time.Now}
}

func (r *AuditRecorder) Record(ctx context.Context, e AuditEntry) {
	if !e.Allowed {
		e.MatchedCount = nil
	}

	rec := types.QueryLog{
		CreatedAt:          r.now().UTC(),
		SourceType:         e.SourceType,
		UserID:             e.UserID,
		GroupID:            e.GroupID,
		QueryText:          truncateRunes(e.QueryText, types.MaxQueryTextLen),
		MatchedCount:       e.MatchedCount,
		Allowed:            e.Allowed,
		ActorDisplayName:   e.ActorName,
		ContextDisplayName: e.ContextName,
	}

	withNames := r.ensureSchema(ctx)
	err := r.store.Append(ctx, rec, withNames)
	if err != nil && withNames {
		r.log.Warn("audit write with display names failed; retrying without", zap.Error(err))
		err = r.store.Append(ctx, rec, false)
	}
	if err != nil {
		r.log.Error("audit write failed",
			zap.String("source_type", string(rec.SourceType)),
			zap.String("user_id", rec.UserID),
			zap.Bool("allowed", rec.Allowed),
			zap.Error(err))
	}
}

// ensureSchema heals the display-name columns at most once per process.
// A failed attempt is retried on the next call.
func (r *AuditRecorder) ensureSchema(ctx context.Context) bool {
	r.healMu.Lock()
	defer r.healMu.Unlock()

	if r.healed {
		return true
	}
	if err := r.store.EnsureDisplayNameColumns(ctx); err != nil {
		r.log.Warn("query_logs display-name columns unavailable", zap.Error(err))
		return false
	}
	r.healed = true
	return true
}

func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
