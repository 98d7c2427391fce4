package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/store"
)

// ProfileClient fetches a sender's LINE profile.
type ProfileClient interface {
	Profile(ctx context.Context, src line.Source) (line.Profile, error)
}

// ProfileResolver looks up display names. It never fails its caller: any
// problem is logged and reported as no name.
type ProfileResolver struct {
	client ProfileClient
	cache  store.ProfileCache
	ttl    time.Duration
	log    *zap.Logger
}

// NewProfileResolver builds a resolver. cache may be nil.
func NewProfileResolver(client ProfileClient, cache store.ProfileCache, ttl time.Duration, log *zap.Logger) *ProfileResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileResolver{client: client, cache: cache, ttl: ttl, log: log}
}

func (r *ProfileResolver) ResolveDisplayName(ctx context.Context, src line.Source) (string, bool) {
	if r == nil || r.client == nil {
		return "", false
	}
	if _, err := line.ProfilePath(src); err != nil {
		return "", false
	}

	key := profileCacheKey(src)
	if r.cache != nil {
		name, ok, err := r.cache.Get(ctx, key)
		if err != nil {
			r.log.Warn("profile cache get failed", zap.String("key", key), zap.Error(err))
		} else if ok {
			return name, true
		}
	}

	p, err := r.client.Profile(ctx, src)
	if err != nil {
		r.log.Warn("line profile lookup failed",
			zap.String("source_type", src.Type),
			zap.String("user_id", src.UserID),
			zap.Error(err))
		return "", false
	}
	name := strings.TrimSpace(p.DisplayName)
	if name == "" {
		return "", false
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, name, r.ttl); err != nil {
			r.log.Warn("profile cache set failed", zap.String("key", key), zap.Error(err))
		}
	}
	return name, true
}

func profileCacheKey(src line.Source) string {
	return "profile:" + src.Type + ":" + src.ContextID() + ":" + src.UserID
}
