package httpapi

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/service"
)

// EventDispatcher processes verified webhook events.
type EventDispatcher interface {
	Dispatch(ctx context.Context, events []line.Event)
}

// LineCredentials is the channel configuration the webhook needs.
type LineCredentials struct {
	ChannelSecret      string
	ChannelAccessToken string
}

func (c LineCredentials) configured() bool {
	return c.ChannelSecret != "" && c.ChannelAccessToken != ""
}

type Dependencies struct {
	Logger     *zap.Logger
	Addr       string
	Line       LineCredentials
	Dispatcher EventDispatcher
	Admin      *service.AdminService

	// AdminRateLimitPerMinute is the per-client budget for /admin routes.
	// Zero disables limiting.
	AdminRateLimitPerMinute int
}

type Server struct {
	httpServer *http.Server
	logger     *zap.Logger
	mux        *http.ServeMux
	line       LineCredentials
	dispatcher EventDispatcher
	admin      *service.AdminService
	limiter    *clientLimiter
}

func NewServer(d Dependencies) *Server {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()

	s := &Server{
		logger:     logger,
		mux:        mux,
		line:       d.Line,
		dispatcher: d.Dispatcher,
		admin:      d.Admin,
		limiter:    newClientLimiter(d.AdminRateLimitPerMinute),
	}

	mux.HandleFunc("POST /line/webhook", s.handleWebhook)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	if s.admin != nil {
		s.registerAdminRoutes()
	}

	handler := requestLogger(logger, mux)

	s.httpServer = &http.Server{
		Addr:              d.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

func (s *Server) Start() error {
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
