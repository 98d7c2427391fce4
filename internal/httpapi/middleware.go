package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/types"
)

const requestIDHeader = "X-Request-ID"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	adminKey
)

// RequestID returns the id assigned by requestLogger, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func requestLogger(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now().UTC()

		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestIDKey, id)))

		logger.Info("request",
			zap.String("request_id", id),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", clientIP(r)))
	})
}

// ── Admin guard ──────────────────────────────────────────────────────────────

// adminOnly rate limits by client address, then requires HTTP Basic
// credentials of an operator account.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			s.logger.Warn("admin rate limit exceeded", zap.String("ip", clientIP(r)))
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}

		user, pass, ok := r.BasicAuth()
		if !ok {
			unauthorized(w)
			return
		}
		a, err := s.admin.Authenticate(r.Context(), user, pass)
		if errors.Is(err, service.ErrUnauthorized) {
			s.logger.Warn("admin authentication failed", zap.String("username", user), zap.String("ip", clientIP(r)))
			unauthorized(w)
			return
		}
		if err != nil {
			s.logger.Error("admin authentication error", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "internal_error", "unexpected server error")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), adminKey, a)))
	}
}

// currentAdmin returns the operator authenticated by adminOnly.
func currentAdmin(ctx context.Context) (types.Admin, bool) {
	a, ok := ctx.Value(adminKey).(types.Admin)
	return a, ok
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="data-spf admin", charset="UTF-8"`)
	writeError(w, http.StatusUnauthorized, "unauthorized", "valid admin credentials required")
}

// clientLimiter keeps one token bucket per client address.
type clientLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients map[string]*rate.Limiter
}

// newClientLimiter allows perMinute requests per client with an equal burst.
// perMinute <= 0 returns a limiter that allows everything.
func newClientLimiter(perMinute int) *clientLimiter {
	if perMinute <= 0 {
		return &clientLimiter{limit: rate.Inf}
	}
	return &clientLimiter{
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   perMinute,
		clients: make(map[string]*rate.Limiter),
	}
}

func (l *clientLimiter) allow(key string) bool {
	if l == nil || l.limit == rate.Inf {
		return true
	}
	l.mu.Lock()
	lim, ok := l.clients[key]
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
		l.clients[key] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
