package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Strob0t/PertForge/internal/adapter/filestore"
	cfhttp "github.com/Strob0t/PertForge/internal/adapter/http"
	cfmcp "github.com/Strob0t/PertForge/internal/adapter/mcp"
	cfnats "github.com/Strob0t/PertForge/internal/adapter/nats"
	"github.com/Strob0t/PertForge/internal/adapter/natskv"
	cfotel "github.com/Strob0t/PertForge/internal/adapter/otel"
	"github.com/Strob0t/PertForge/internal/adapter/postgres"
	"github.com/Strob0t/PertForge/internal/adapter/ristretto"
	"github.com/Strob0t/PertForge/internal/adapter/tiered"
	"github.com/Strob0t/PertForge/internal/adapter/ws"
	"github.com/Strob0t/PertForge/internal/config"
	"github.com/Strob0t/PertForge/internal/logger"
	"github.com/Strob0t/PertForge/internal/middleware"
	"github.com/Strob0t/PertForge/internal/port/cache"
	"github.com/Strob0t/PertForge/internal/port/database"
	"github.com/Strob0t/PertForge/internal/port/messagequeue"
	"github.com/Strob0t/PertForge/internal/resilience"
	"github.com/Strob0t/PertForge/internal/secrets"
	"github.com/Strob0t/PertForge/internal/service"
)

const (
	idempotencyTTL   = 24 * time.Hour
	secretAPIKeyHash = "api_key_hash"
)

func main() {
	cmd, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		cmd, args = args[0], args[1:]
	}

	var err error
	switch cmd {
	case "serve":
		if err = run(); err != nil {
			slog.Error("fatal", "error", err)
			os.Exit(1)
		}
		return
	case "schedule":
		err = runSchedule(args, os.Stdout)
	case "admin":
		err = runAdmin(args)
	case "help", "-h", "--help":
		printHelp()
	default:
		printHelp()
		err = fmt.Errorf("unknown command: %s", cmd)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "pertforge:", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Fprintf(os.Stderr, `Usage: pertforge [command] [options]

Commands:
  serve      Run the HTTP API (default)
  schedule   Schedule a task file and print the result
  admin      Administrative commands (see "pertforge admin help")
  help       Show this help message
`)
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, logCloser := logger.New(cfg.Logging)
	defer logCloser.Close()
	slog.SetDefault(log)

	slog.Info("config loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Logging.Level,
		"store", cfg.Store.Backend,
		"max_tasks", cfg.Limits.MaxTasks,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---

	shutdownOTEL, err := cfotel.Setup(ctx, cfg.OTEL, cfhttp.Version)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTEL(flushCtx); err != nil {
			slog.Warn("otel shutdown", "error", err)
		}
	}()

	metrics, err := cfotel.NewMetrics()
	if err != nil {
		return fmt.Errorf("otel metrics: %w", err)
	}

	// --- Infrastructure ---

	checks := make(map[string]cfhttp.ReadinessCheck)

	store, closeStore, err := openStore(ctx, cfg, checks)
	if err != nil {
		return err
	}
	defer closeStore()

	// NATS is optional: without it there are no events and no L2 cache.
	var queue messagequeue.Queue
	var natsQueue *cfnats.Queue
	if cfg.NATS.URL != "" {
		natsQueue, err = cfnats.Connect(ctx, cfg.NATS.URL)
		if err != nil {
			return fmt.Errorf("nats: %w", err)
		}
		defer func() {
			if err := natsQueue.Drain(); err != nil {
				slog.Warn("nats drain", "error", err)
			}
		}()
		queue = natsQueue
		checks["nats"] = func(context.Context) error {
			if !natsQueue.IsConnected() {
				return errors.New("not connected")
			}
			return nil
		}
		slog.Info("nats connected", "url", cfg.NATS.URL)
	}

	resultCache, closeCache, err := openCache(ctx, cfg.Cache, natsQueue)
	if err != nil {
		return err
	}
	defer closeCache()

	// --- Services ---

	hub := ws.NewHub(originPatterns(cfg.Server.CORSOrigin))
	defer hub.Close()

	scheduleSvc := service.NewScheduleService(cfg.Limits, cfg.Store.PersistDefault, service.ScheduleDeps{
		Cache:        resultCache,
		CacheTTL:     cfg.Cache.L2TTL,
		Store:        store,
		Queue:        queue,
		Hub:          hub,
		Metrics:      metrics,
		StoreBreaker: service.NewStoreBreaker(cfg.Breaker),
		QueueBreaker: resilience.NewBreaker(cfg.Breaker.MaxFailures, cfg.Breaker.Timeout),
	})
	snapshotSvc := service.NewSnapshotService(store, scheduleSvc, queue, hub)

	schemas, err := cfhttp.CompileSchemas()
	if err != nil {
		return fmt.Errorf("schemas: %w", err)
	}

	handlers := &cfhttp.Handlers{
		Schedules:    scheduleSvc,
		Snapshots:    snapshotSvc,
		Schemas:      schemas,
		MaxBodyBytes: cfg.Limits.MaxBodyBytes,
		Checks:       checks,
	}

	// --- HTTP ---

	limiter := middleware.NewRateLimiter(cfg.Rate.RequestsPerSecond, cfg.Rate.Burst)
	limiter.StartCleanup(ctx, cfg.Rate.CleanupInterval, cfg.Rate.MaxIdleTime)
	auth, err := apiKeyAuth(ctx, cfg.Auth)
	if err != nil {
		return err
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(cfhttp.Logger)
	r.Use(cfhttp.CORS(cfg.Server.CORSOrigin))
	r.Use(cfhttp.SecurityHeaders)
	r.Use(chimw.Recoverer)
	r.Use(cfotel.HTTPMiddleware(cfg.OTEL.ServiceName))
	r.Use(limiter.Handler)
	r.Use(auth.Handler)

	// WebSocket connections outlive the request timeout.
	r.Get("/ws", hub.HandleWS)

	r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(cfg.Server.RequestTimeout))
		r.Use(middleware.Idempotency(resultCache, idempotencyTTL))
		cfhttp.MountRoutes(r, handlers)
	})

	// --- MCP ---

	if cfg.MCP.Enabled {
		mcpSrv := cfmcp.NewServer(cfmcp.ServerConfig{
			Addr:       cfg.MCP.Addr,
			Name:       "pertforge",
			Version:    cfhttp.Version,
			Middleware: []func(http.Handler) http.Handler{middleware.RequestID, auth.Handler},
		}, cfmcp.ServerDeps{Schedules: scheduleSvc, Snapshots: snapshotSvc})
		if err := mcpSrv.Start(); err != nil {
			return fmt.Errorf("mcp: %w", err)
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mcpSrv.Stop(stopCtx); err != nil {
				slog.Warn("mcp shutdown", "error", err)
			}
		}()
		slog.Info("mcp server started", "addr", mcpSrv.Addr().String())
	}

	addr := ":" + cfg.Server.Port

	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("starting server", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}

// apiKeyAuth builds the API key middleware. A hash file is loaded into a
// vault and re-read on SIGHUP.
func apiKeyAuth(ctx context.Context, cfg config.Auth) (*middleware.APIKeyAuth, error) {
	if cfg.APIKeyHashFile == "" {
		auth := middleware.NewAPIKeyAuth(cfg.APIKeyHash)
		if auth == nil {
			slog.Warn("api key auth disabled, no hash configured")
		}
		return auth, nil
	}

	vault, err := secrets.NewVault(secrets.FileLoader(map[string]string{secretAPIKeyHash: cfg.APIKeyHashFile}))
	if err != nil {
		return nil, fmt.Errorf("api key hash: %w", err)
	}
	go vault.ReloadOn(ctx, syscall.SIGHUP)
	slog.Info("api key hash loaded from file", "path", cfg.APIKeyHashFile)
	return middleware.NewAPIKeySource(func() string { return vault.Get(secretAPIKeyHash) }), nil
}

// openStore connects the configured snapshot backend and registers its
// readiness check.
func openStore(ctx context.Context, cfg *config.Config, checks map[string]cfhttp.ReadinessCheck) (database.Store, func(), error) {
	switch cfg.Store.Backend {
	case "file":
		store, err := filestore.New(cfg.Store.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("file store: %w", err)
		}
		checks["store"] = func(context.Context) error {
			_, err := os.Stat(cfg.Store.Dir)
			return err
		}
		slog.Info("file store ready", "dir", cfg.Store.Dir)
		return store, func() {}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		slog.Info("postgres connected")

		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrations: %w", err)
		}
		slog.Info("migrations applied")

		checks["postgres"] = pool.Ping
		return postgres.NewStore(pool), pool.Close, nil
	}
}

// openCache builds the result cache: ristretto in process, backed by a
// JetStream KV bucket when NATS is available.
func openCache(ctx context.Context, cfg config.Cache, q *cfnats.Queue) (cache.Cache, func(), error) {
	l1, err := ristretto.New(cfg.L1MaxSizeMB)
	if err != nil {
		return nil, nil, fmt.Errorf("l1 cache: %w", err)
	}
	if q == nil {
		return l1, l1.Close, nil
	}

	l2, err := natskv.Open(ctx, q.JetStream(), cfg.L2Bucket, cfg.L2TTL)
	if err != nil {
		l1.Close()
		return nil, nil, fmt.Errorf("l2 cache: %w", err)
	}
	return tiered.New(l1, l2, cfg.L1TTL), l1.Close, nil
}

// originPatterns turns the CORS origin into WebSocket origin patterns.
func originPatterns(origin string) []string {
	if origin == "" {
		return nil
	}
	if origin == "*" {
		return []string{"*"}
	}
	u, err := url.Parse(origin)
	if err != nil || u.Host == "" {
		return []string{origin}
	}
	return []string{u.Host}
}
