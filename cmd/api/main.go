package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/vidunsterling-afk/itroom-sub000/internal/audit"
	"github.com/vidunsterling-afk/itroom-sub000/internal/auth"
	"github.com/vidunsterling-afk/itroom-sub000/internal/config"
	"github.com/vidunsterling-afk/itroom-sub000/internal/httpapi"
	"github.com/vidunsterling-afk/itroom-sub000/internal/migrate"
	"github.com/vidunsterling-afk/itroom-sub000/internal/mutation"
	"github.com/vidunsterling-afk/itroom-sub000/internal/obs"
	"github.com/vidunsterling-afk/itroom-sub000/internal/sequence"
	"github.com/vidunsterling-afk/itroom-sub000/internal/store/memory"
	"github.com/vidunsterling-afk/itroom-sub000/internal/store/pg"
)

var (
	version = "0.1.0"
	commit  = "none"
)

// backend is everything the service persists.
type backend interface {
	auth.PermissionStore
	auth.UserStore
	audit.Store
	audit.EventStore
	sequence.CounterStore
	Ping(ctx context.Context) error
}

func main() {
	if err := run(); err != nil {
		obs.Logger().Error("fatal", "error", err.Error())
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger := obs.NewLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	obs.SetLogger(logger)
	obs.InitBuildInfo(version, commit)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	cache := auth.NewPermissionCache(store, cfg.PermissionCacheTTL, cfg.PermissionCacheSize)
	perms, err := auth.NewPermissionService(store, cache)
	if err != nil {
		return err
	}
	if err := perms.EnsureBuiltinModules(ctx); err != nil {
		return fmt.Errorf("seed modules: %w", err)
	}

	tokens, err := auth.NewTokenIssuer(cfg.AuthSecret,
		auth.WithIssuer(cfg.TokenIssuer),
		auth.WithTokenTTL(cfg.TokenTTL),
	)
	if err != nil {
		return err
	}
	authn, err := auth.NewAuthenticator(store, tokens)
	if err != nil {
		return err
	}
	if cfg.BootstrapAdminUsername != "" {
		u, err := authn.EnsureUser(ctx, cfg.BootstrapAdminUsername, cfg.BootstrapAdminPassword, auth.RoleAdmin)
		if err != nil {
			return fmt.Errorf("bootstrap admin: %w", err)
		}
		logger.Info("bootstrap_admin_ready", "username", u.Username, "user_id", u.ID)
	}

	recorder, err := audit.NewRecorder(store, store,
		audit.WithSanitizer(audit.NewSanitizer(cfg.AuditRedactKeys...)),
	)
	if err != nil {
		return err
	}
	seq, err := sequence.NewGenerator(store)
	if err != nil {
		return err
	}
	gate := auth.NewGate(perms)
	runner, err := mutation.NewRunner(gate, recorder)
	if err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Deps{
		Permissions:    perms,
		Gate:           gate,
		Authn:          authn,
		Audit:          recorder,
		Sequences:      seq,
		Runner:         runner,
		Ready:          store,
		Version:        version,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		MaxBodyBytes:   cfg.MaxBodyBytes,
		TrustedProxies: cfg.TrustedProxies,
	})
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	health := httpapi.NewHealthReporter(store)
	grpcSrv := httpapi.NewGRPCServer(health)
	grpcLis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return fmt.Errorf("listen grpc: %w", err)
	}

	healthCtx, stopHealth := context.WithCancel(ctx)
	defer stopHealth()
	go health.Run(healthCtx, 5*time.Second)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("http_listening", "addr", srv.Addr, "version", version)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http: %w", err)
		}
	}()
	go func() {
		logger.Info("grpc_listening", "addr", grpcLis.Addr().String())
		if err := grpcSrv.Serve(grpcLis); err != nil {
			errCh <- fmt.Errorf("grpc: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting_down")
	case runErr = <-errCh:
		logger.Error("server_failed", "error", runErr.Error())
	}

	stopHealth()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http_shutdown", "error", err.Error())
	}
	stopped := make(chan struct{})
	go func() {
		grpcSrv.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-shutdownCtx.Done():
		grpcSrv.Stop()
	}
	logger.Info("stopped")
	return runErr
}

// openBackend selects PostgreSQL when a DSN is configured, applying embedded migrations
// first, and falls back to process memory otherwise.
func openBackend(ctx context.Context, cfg *config.Config) (backend, func(), error) {
	if !cfg.UsePostgres() {
		obs.Logger().Warn("storage_in_memory", "reason", "ITROOM_PG_DSN is empty; state is lost on restart")
		return memory.New(), func() {}, nil
	}

	mgr, err := migrate.NewManager(cfg.PGDSN, obs.Logger())
	if err != nil {
		return nil, nil, err
	}
	err = mgr.Up(ctx)
	if cerr := mgr.Close(); cerr != nil {
		obs.Logger().Warn("migrate_close", "error", cerr.Error())
	}
	if err != nil {
		return nil, nil, err
	}

	store, err := pg.Open(cfg.PGDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		_ = store.Close()
		return nil, nil, fmt.Errorf("ping db: %w", err)
	}
	return store, func() { _ = store.Close() }, nil
}
