package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "royalty-admin/api/swagger" // swagger docs
	"royalty-admin/internal/app"
	"royalty-admin/internal/config"
	"royalty-admin/internal/database"
	"royalty-admin/internal/logging"
)

// @title           Royalty Admin API
// @version         1.0
// @description     Role and permission administration, revenue splits and earnings for a music rights platform.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logging.Setup(os.Stdout, cfg.LogLevel, cfg.IsRelease())

	db, err := database.NewConnection(cfg.DBDriver, cfg.DSN(), logging.GormLogger(cfg.LogLevel))
	if err != nil {
		slog.Error("database connection failed", "driver", cfg.DBDriver, "error", err)
		os.Exit(1)
	}
	slog.Info("connected to database", "driver", cfg.DBDriver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(ctx, cfg, db)
	go a.Hub.Run(ctx)

	seeded, err := a.Roles.SeedDefaults(ctx)
	if err != nil {
		slog.Error("failed to seed roles", "error", err)
		os.Exit(1)
	}
	slog.Info("roles seeded", "permissions", seeded.Permissions, "created", seeded.RolesCreated, "defaults_applied", seeded.RolesSeeded)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
	slog.Info("server stopped")
}
