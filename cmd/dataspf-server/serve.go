package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/httpapi"
	"github.com/mzDeaThly/data-spf/internal/line"
	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store"
	"github.com/mzDeaThly/data-spf/internal/registry/store/memory"
	"github.com/mzDeaThly/data-spf/internal/registry/store/redis"
)

const shutdownTimeout = 5 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook and admin HTTP server",
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	if !a.cfg.LineConfigured() {
		logger.Warn("LINE_CHANNEL_SECRET or LINE_CHANNEL_ACCESS_TOKEN unset; webhook will answer 500")
	}

	var cache store.ProfileCache = memory.NewProfileCache()
	if a.cfg.RedisAddr != "" {
		rc, err := redis.Dial(ctx, redis.Options{Addr: a.cfg.RedisAddr, Password: a.cfg.RedisPassword, DB: a.cfg.RedisDB})
		if err != nil {
			logger.Warn("redis unavailable; using in-process profile cache", zap.Error(err))
		} else {
			defer rc.Close()
			cache = redis.NewProfileCache(rc)
		}
	}

	client := line.NewClient(line.Config{
		BaseURL:     a.cfg.LineAPIBaseURL,
		AccessToken: a.cfg.LineChannelAccessToken,
	})

	search := a.search()
	admin := a.adminService(search)

	created, err := admin.EnsureInitialAdmin(ctx, a.cfg.AdminUsername, a.cfg.AdminPassword)
	if err != nil {
		logger.Error("seed initial admin failed", zap.Error(err))
	} else if created {
		logger.Info("initial admin created", zap.String("username", a.cfg.AdminUsername))
	}

	dispatcher := service.NewDispatcher(service.DispatcherDeps{
		Gate:       service.NewPermissionGate(a.permissions),
		Profiles:   service.NewProfileResolver(client, cache, a.cfg.ProfileCacheTTL, logger),
		Search:     search,
		Audit:      service.NewAuditRecorder(a.queryLogs, logger),
		Replier:    client,
		MaxAgeDays: a.cfg.CurrentMaxAgeDays,
		Logger:     logger,
	})

	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger: logger,
		Addr:   a.cfg.HTTPAddr,
		Line: httpapi.LineCredentials{
			ChannelSecret:      a.cfg.LineChannelSecret,
			ChannelAccessToken: a.cfg.LineChannelAccessToken,
		},
		Dispatcher:              dispatcher,
		Admin:                   admin,
		AdminRateLimitPerMinute: a.cfg.AdminRateLimitPerMinute,
	})

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	go func() {
		logger.Info("listening",
			zap.String("addr", a.cfg.HTTPAddr),
			zap.String("env", a.cfg.Env),
			zap.Int("max_age_days", a.cfg.MaxAgeDays),
			zap.String("timezone", a.cfg.Location.String()))
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
	return nil
}
