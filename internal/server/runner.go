// Package server wires the pdnsadmin services together and runs the HTTP
// server until shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jroosing/pdnsadmin/internal/api"
	"github.com/jroosing/pdnsadmin/internal/api/handlers"
	"github.com/jroosing/pdnsadmin/internal/auth"
	"github.com/jroosing/pdnsadmin/internal/bulk"
	"github.com/jroosing/pdnsadmin/internal/config"
	"github.com/jroosing/pdnsadmin/internal/database"
	"github.com/jroosing/pdnsadmin/internal/dnssec"
	"github.com/jroosing/pdnsadmin/internal/kvstore"
	"github.com/jroosing/pdnsadmin/internal/logging"
	"github.com/jroosing/pdnsadmin/internal/pdns"
	"github.com/jroosing/pdnsadmin/internal/session"
	"github.com/jroosing/pdnsadmin/internal/validation"
	"github.com/jroosing/pdnsadmin/internal/zones"
)

// memoryStoreEntries caps the in-memory session store.
const memoryStoreEntries = 100_000

const stopTimeout = 5 * time.Second

// Runner orchestrates startup, configuration and shutdown.
type Runner struct {
	logger *slog.Logger
}

// NewRunner creates a new server runner with the given logger.
func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger}
}

// Run starts the server and blocks until SIGINT or SIGTERM.
func (r *Runner) Run(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return r.RunWithContext(ctx, cfg)
}

// RunWithContext starts the server and blocks until ctx is canceled or the
// listener fails.
//
// Server lifecycle:
//  1. Open the database and apply migrations
//  2. Connect the session store (Redis or memory)
//  3. Build the services and the HTTP server
//  4. Serve until shutdown, then drain with a timeout
func (r *Runner) RunWithContext(ctx context.Context, cfg *config.Config) error {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := OpenStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	svc, err := BuildServices(cfg, db, store, r.logger)
	if err != nil {
		return err
	}

	srv := api.New(cfg, db, svc, logging.Component(r.logger, "api"))
	r.logStartup(cfg, srv.Addr())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		r.logger.Warn("http server shutdown", "err", err)
	}
	r.logger.Info("pdnsadmin stopped")
	return nil
}

// OpenStore returns the key-value store for sessions and confirmation
// tokens, plus a function releasing it. An empty RedisAddr selects the
// in-memory store.
func OpenStore(ctx context.Context, cfg config.SessionConfig) (kvstore.Store, func(), error) {
	if cfg.RedisAddr == "" {
		return kvstore.NewMemory(memoryStoreEntries), func() {}, nil
	}
	rdb := kvstore.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis %s: %w", cfg.RedisAddr, err)
	}
	return rdb, func() { _ = rdb.Close() }, nil
}

// BuildServices constructs the services behind the API. The DNSSEC service
// is only built when DNSSEC is enabled.
func BuildServices(cfg *config.Config, db *database.DB, store kvstore.Store, logger *slog.Logger) (handlers.Services, error) {
	zoneSvc := zones.NewService(db, zones.Options{
		Hostnames: &validation.HostnameValidator{
			TopLevelCheck:  cfg.DNS.TopLevelTLDCheck,
			StrictTLDCheck: cfg.DNS.StrictTLDCheck,
		},
		SOA: database.SOADefaults{
			NS1:        cfg.DNS.NS1,
			Hostmaster: cfg.DNS.Hostmaster,
			TTL:        cfg.DNS.TTL,
			Refresh:    cfg.DNS.SOARefresh,
			Retry:      cfg.DNS.SOARetry,
			Expire:     cfg.DNS.SOAExpire,
			Minimum:    cfg.DNS.SOAMinimum,
		},
		AddReverseRecord: cfg.Interface.AddReverseRecord,
		DNSSECEnabled:    cfg.DNSSEC.Enabled,
		ShowSerial:       cfg.Interface.ShowSerial,
	}, logging.Component(logger, "zones"))

	svc := handlers.Services{
		Zones:    zoneSvc,
		Bulk:     bulk.NewRegistrar(zoneSvc, logging.Component(logger, "bulk")),
		APIKeys:  auth.NewAPIKeyService(db, cfg.API.MaxKeysPerUser, logging.Component(logger, "apikeys")),
		Auth:     auth.NewAuthenticator(db, db, logging.Component(logger, "auth")),
		Sessions: session.NewManager(store, cfg.Session.TTL),
	}

	if cfg.DNSSEC.Enabled {
		client, err := pdns.NewClient(cfg.PdnsAPI, logging.Component(logger, "pdns"))
		if err != nil {
			return handlers.Services{}, err
		}
		svc.DNSSEC = dnssec.NewService(client, zoneSvc,
			dnssec.NewConfirmationStore(store, dnssec.DefaultConfirmTTL), true,
			logging.Component(logger, "dnssec"))
	}
	return svc, nil
}

// logStartup logs server configuration at startup.
func (r *Runner) logStartup(cfg *config.Config, addr string) {
	store := "memory"
	if cfg.Session.RedisAddr != "" {
		store = "redis"
	}
	r.logger.Info("http listening",
		"addr", addr,
		"database", cfg.Database.Type,
		"session_store", store,
		"api", cfg.API.Enabled,
		"basic_auth", cfg.API.BasicAuthEnabled,
		"dnssec", cfg.DNSSEC.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)
}
