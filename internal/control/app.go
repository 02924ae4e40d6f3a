package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vietddude/ecosetu/internal/api"
	"github.com/vietddude/ecosetu/internal/core/config"
	"github.com/vietddude/ecosetu/internal/core/ledger"
	"github.com/vietddude/ecosetu/internal/core/worker"
	"github.com/vietddude/ecosetu/internal/infra/cache"
	redisclient "github.com/vietddude/ecosetu/internal/infra/redis"
	"github.com/vietddude/ecosetu/internal/telemetry"
	"github.com/vietddude/ecosetu/internal/tracking/emitter"
	"github.com/vietddude/ecosetu/internal/tracking/health"
)

// App owns the ledger service and every server and worker around it.
type App struct {
	cfg *config.AppConfig
	log *slog.Logger

	storage      *Storage
	redisClient  *redisclient.Client
	emitter      emitter.Emitter
	ledger       *ledger.Service
	healthMon    *health.Monitor
	healthServer *health.Server
	grpcHealth   *health.GRPCServer
	auditor      *worker.Auditor
	apiServer    *http.Server
	shutdownTrc  telemetry.ShutdownFunc

	mu      sync.Mutex
	apiAddr net.Addr
	cancel  context.CancelFunc
	group   *errgroup.Group
}

var setupTracing = telemetry.Setup

// NewApp wires the application from configuration. Nothing is served until Start.
func NewApp(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (_ *App, err error) {
	if logger == nil {
		logger = slog.Default()
	}

	shutdownTrc, err := setupTracing(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err == nil {
			return
		}
		if serr := shutdownTrc(context.WithoutCancel(ctx)); serr != nil {
			logger.Warn("Failed to shut down tracing", "error", serr)
		}
	}()

	// 1. Storage
	st, err := OpenStorage(ctx, cfg.Database, cfg.Database.ShouldMigrate())
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:         cfg,
		log:         logger,
		storage:     st,
		shutdownTrc: shutdownTrc,
		healthMon:   health.NewMonitor(),
	}
	if st.DB != nil {
		a.healthMon.AddCheck("database", true, st.DB.Health)
	}

	// 2. Locks. The version check keeps appends correct without redis.
	var locker ledger.Locker = ledger.NewKeyedLocker()
	if cfg.Redis.URL != "" {
		client, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			logger.Warn("Failed to connect to Redis, using in-process locks", "error", err)
		} else {
			a.redisClient = client
			locker = redisclient.NewLocker(client, cfg.Redis.LockTTL)
			a.healthMon.AddCheck("redis", false, client.Health)
		}
	}

	// 3. Events
	a.emitter, err = emitter.New(cfg.Events, logger)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// 4. Ledger
	policy, err := ledger.PolicyByName(cfg.Ledger.TransitionPolicy)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	backoff := ledger.DefaultBackoff()
	if cfg.Ledger.AppendMaxAttempts > 0 {
		backoff.MaxAttempts = cfg.Ledger.AppendMaxAttempts
	}
	if cfg.Ledger.AppendRetryDelay > 0 {
		backoff.InitialDelay = cfg.Ledger.AppendRetryDelay
	}

	directory := cache.NewCachedDirectory(
		cache.NewRepoDirectory(st.Materials, st.Parties),
		cfg.Ledger.SummaryCacheTTL,
	)
	a.ledger, err = ledger.NewService(ledger.Deps{
		Transactions: st.Transactions,
		Negotiations: st.Negotiations,
		Materials:    st.Materials,
		Directory:    directory,
		Locker:       locker,
		Emitter:      a.emitter,
		Logger:       logger,
	}, ledger.Options{
		Policy:           policy,
		AuthorizeParties: cfg.Ledger.PartyAuthorization(),
		Backoff:          backoff,
	})
	if err != nil {
		a.closeResources()
		return nil, err
	}

	// 5. Transport
	auth := api.NewAuthenticator(api.AuthConfig{
		JWTSecret:    cfg.Auth.JWTSecret,
		Issuer:       cfg.Auth.Issuer,
		TrustHeaders: cfg.Auth.TrustHeaders,
	})
	if cfg.Auth.TrustHeaders {
		logger.Warn("Trusting X-User-ID headers; do not run this way in production")
	}
	a.apiServer = &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: api.NewRouter(api.NewHandlers(a.ledger), auth, api.RouterConfig{
			CORSOrigins:        cfg.Server.CORSOrigins,
			RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
			MaxBodyBytes:       cfg.Server.MaxBodyBytes,
		}),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 6. Health and audit
	a.healthServer = health.NewServer(a.healthMon, cfg.Server.HealthPort)
	if cfg.Server.GRPCHealthPort > 0 {
		a.grpcHealth = health.NewGRPCServer(a.healthMon, cfg.Server.GRPCHealthPort)
	}
	a.auditor = worker.NewAuditor(cfg.Auditor, st.Transactions, a.healthMon, logger)

	return a, nil
}

// Ledger returns the wired ledger service.
func (a *App) Ledger() *ledger.Service { return a.ledger }

// Storage returns the repositories the app runs on.
func (a *App) Storage() *Storage { return a.storage }

// APIAddr is the bound API address once Start has returned.
func (a *App) APIAddr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.apiAddr
}

// Start binds the API listener and launches servers and workers in the
// background. It returns once the API port is bound.
func (a *App) Start(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.apiServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen for api: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)

	a.mu.Lock()
	a.apiAddr = lis.Addr()
	a.cancel = cancel
	a.group = g
	a.mu.Unlock()

	a.log.Info("API listening", "addr", lis.Addr().String())
	g.Go(func() error {
		if err := a.apiServer.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := a.healthServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("Health server failed", "error", err)
		}
		return nil
	})

	if a.grpcHealth != nil {
		g.Go(func() error {
			if err := a.grpcHealth.Start(gctx); err != nil {
				a.log.Error("gRPC health server failed", "error", err)
			}
			return nil
		})
	}

	g.Go(func() error {
		a.auditor.Start(gctx)
		return nil
	})

	if a.storage.DB != nil {
		a.storage.DB.StartMetricsCollector(gctx)
	}
	return nil
}

// Wait blocks until a server fails or Stop is called.
func (a *App) Wait() error {
	a.mu.Lock()
	g := a.group
	a.mu.Unlock()
	if g == nil {
		return nil
	}
	return g.Wait()
}

// Stop shuts servers down gracefully and releases every resource.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping EcoSetu ledger...")

	var errs []error
	if err := a.apiServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("api server: %w", err))
	}
	if err := a.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("health server: %w", err))
	}
	if a.grpcHealth != nil {
		a.grpcHealth.Stop()
	}

	a.mu.Lock()
	cancel, g := a.cancel, a.group
	a.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	if g != nil {
		if err := g.Wait(); err != nil {
			errs = append(errs, err)
		}
	}

	a.closeResources()
	if err := a.shutdownTrc(ctx); err != nil {
		errs = append(errs, fmt.Errorf("tracing: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) closeResources() {
	if a.emitter != nil {
		if err := a.emitter.Close(); err != nil {
			a.log.Warn("Failed to close emitter", "error", err)
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.log.Warn("Failed to close Redis", "error", err)
		}
	}
	if err := a.storage.Close(); err != nil {
		a.log.Warn("Failed to close database", "error", err)
	}
}
