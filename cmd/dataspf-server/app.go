package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/mzDeaThly/data-spf/internal/config"
	"github.com/mzDeaThly/data-spf/internal/db"
	"github.com/mzDeaThly/data-spf/internal/logging"
	"github.com/mzDeaThly/data-spf/internal/registry/service"
	"github.com/mzDeaThly/data-spf/internal/registry/store/sqlite"
)

// app holds what every subcommand needs: config, logger and the SQLite
// backed stores behind the single-writer worker.
type app struct {
	cfg    config.Config
	logger *zap.Logger
	conn   *sql.DB
	writer *db.Worker

	vehicles    *sqlite.VehicleStore
	permissions *sqlite.PermissionStore
	queryLogs   *sqlite.QueryLogStore
	admins      *sqlite.AdminStore
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	conn, err := db.Open(ctx, db.Config{Path: cfg.DBPath, Env: cfg.Env})
	if err != nil {
		_ = logger.Sync()
		return nil, fmt.Errorf("open database: %w", err)
	}
	writer := db.NewWorker(conn)

	return &app{
		cfg:    cfg,
		logger: logger,
		conn:   conn,
		writer: writer,

		vehicles:    sqlite.NewVehicleStore(conn, writer),
		permissions: sqlite.NewPermissionStore(conn, writer),
		queryLogs:   sqlite.NewQueryLogStore(conn, writer),
		admins:      sqlite.NewAdminStore(conn, writer),
	}, nil
}

// adminService builds the operator service. today is evaluated in the
// configured zone.
func (a *app) adminService(search *service.RegistrySearch) *service.AdminService {
	return service.NewAdminService(service.AdminDeps{
		Vehicles:    a.vehicles,
		Permissions: a.permissions,
		QueryLogs:   a.queryLogs,
		Admins:      a.admins,
		Today:       search.Today,
	})
}

func (a *app) search() *service.RegistrySearch {
	return service.NewRegistrySearch(a.vehicles, a.cfg.Location, nil)
}

func (a *app) Close() {
	a.writer.Close()
	if err := a.conn.Close(); err != nil {
		a.logger.Warn("close database", zap.Error(err))
	}
	_ = a.logger.Sync()
}
