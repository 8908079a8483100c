package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"turnos-gateway/internal/adapters/backend"
	rediscache "turnos-gateway/internal/adapters/cache/redis"
	mem "turnos-gateway/internal/adapters/storage/memory"
	pg "turnos-gateway/internal/adapters/storage/postgres"
	"turnos-gateway/internal/adapters/storage/sqlite"
	"turnos-gateway/internal/domain/turnos"
	"turnos-gateway/internal/platform/config"
	"turnos-gateway/internal/platform/httpclient"
	"turnos-gateway/internal/platform/logger"
	"turnos-gateway/internal/router"
	"turnos-gateway/internal/session"
)

// @title Turnos Gateway API
// @version 1.0
// @description Gateway de sesión frente al backend de turnos y pacientes.
// @BasePath /api
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	log := logger.New(logger.Options{
		Level:  logger.ParseLevel(cfg.LogLevel),
		Format: logger.ParseFormat(cfg.LogFormat),
		App:    cfg.AppName,
	})
	if zl, ok := log.(*logger.ZapLogger); ok {
		defer func() { _ = zl.Sync() }()
	}

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", map[string]any{"err": err})
		os.Exit(1)
	}
}

func run(cfg config.Config, log logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	hc, err := httpclient.NewWithBaseURL(cfg.BackendBaseURL(), cfg.BackendTimeout)
	if err != nil {
		return fmt.Errorf("backend url: %w", err)
	}
	cookies := session.NewManager(cfg.IsProduction())

	audit, closeAudit, err := openAudit(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeAudit()

	cache, closeCache, err := openCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	r := router.NewRouter(router.Options{
		Config:  cfg,
		Logger:  log,
		Backend: backend.NewClient(hc, cookies),
		Cookies: cookies,
		Audit:   audit,
		Cache:   cache,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server", map[string]any{
			"addr":         srv.Addr,
			"env":          cfg.Env,
			"backend":      cfg.BackendBaseURL(),
			"audit_driver": cfg.AuditDriver,
			"cache_driver": cfg.CacheDriver,
		})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down", nil)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openAudit(ctx context.Context, cfg config.Config) (turnos.AuditRepository, func(), error) {
	var (
		db  *sql.DB
		err error
	)
	switch cfg.AuditDriver {
	case "postgres":
		db, err = pg.Open(ctx, cfg.DBDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		repo := pg.NewAuditRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil

	case "sqlite":
		db, err = sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		repo := sqlite.NewAuditRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return repo, func() { _ = db.Close() }, nil
	}
	return mem.NewAuditRepo(), func() {}, nil
}

func openCache(ctx context.Context, cfg config.Config) (turnos.ViewCache, func(), error) {
	if cfg.CacheDriver != "redis" {
		return mem.NewViewCache(cfg.CacheTTL), func() {}, nil
	}
	client, err := rediscache.Open(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, nil, err
	}
	return rediscache.NewViewCache(client, cfg.CacheTTL), func() { _ = client.Close() }, nil
}
