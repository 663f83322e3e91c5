package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/okian/salle/internal/adapters/auth"
	"github.com/okian/salle/internal/adapters/export"
	"github.com/okian/salle/internal/adapters/http/api"
	"github.com/okian/salle/internal/adapters/http/live"
	"github.com/okian/salle/internal/adapters/repository"
	service "github.com/okian/salle/internal/app"
	"github.com/okian/salle/internal/config"
	"github.com/okian/salle/internal/domain/recording"
	"github.com/okian/salle/pkg/logger"
	"github.com/okian/salle/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 30 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
	exportPrefix              = "exports/"
)

func main() {
	// Our collectors live in a private registry.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		logger.Get().Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "server exited", logger.Error(err))
		os.Exit(1)
	}
}

// application is everything run needs to serve and later tear down.
type application struct {
	store   repository.Store
	svc     *service.Service
	handler http.Handler
}

// build opens the record store and wires the service, auth, live push and
// router. The caller starts the service.
func build(ctx context.Context, cfg *config.Config, log logger.Logger) (*application, error) {
	if cfg.JWTSecret == config.DefaultJWTSecret {
		log.Warn(ctx, "using the development JWT secret; set SALLE_JWT_SECRET")
	}

	raw, err := repository.Open(ctx, cfg.StoreDriver, cfg.DatabaseURL,
		repository.WithPool(cfg.DBMaxOpenConns, cfg.DBMaxIdleConns, cfg.ConnMaxLifetime()),
	)
	if err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}
	store := repository.Instrument(raw, cfg.RequestTimeout())

	provider, err := auth.NewLocal(auth.Config{
		Secret:       cfg.JWTSecret,
		TokenTTL:     cfg.TokenTTL(),
		MagicLinkTTL: cfg.MagicLinkTTL(),
		InviteTTL:    cfg.InviteTTL(),
		BaseURL:      cfg.AppBaseURL,
	}, store, auth.WithLogger(log.Named("auth")))
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("auth provider: %w", err)
	}

	var exporter *export.Exporter
	if cfg.ExportEnabled() {
		up, err := export.NewS3Uploader(ctx, export.S3Config{
			Bucket:          cfg.ExportBucket,
			Endpoint:        cfg.ExportEndpoint,
			Region:          cfg.ExportRegion,
			AccessKeyID:     cfg.ExportAccessKeyID,
			SecretAccessKey: cfg.ExportSecretAccessKey,
			PublicBaseURL:   cfg.ExportPublicBaseURL,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("export storage: %w", err)
		}
		exporter = export.NewExporter(up, exportPrefix)
	}

	hub := live.NewHub(live.WithLogger(log.Named("live")))
	go hub.Run(ctx)

	svc := service.New(store,
		service.WithLogger(log),
		service.WithRules(recording.Rules{
			ScoreMin:       cfg.ScoreMin,
			ScoreMax:       cfg.ScoreMax,
			WinningScore:   cfg.WinningScore,
			RequireSession: cfg.RequireSession,
		}),
		service.WithOptimisticWrites(cfg.OptimisticWrites),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithRefreshInterval(cfg.RefreshInterval()),
		service.WithAuth(provider),
		service.WithBroadcaster(hub),
		service.WithExporter(exporter),
	)

	handler := api.NewRouter(ctx, api.Dependencies{
		Service:        svc,
		Auth:           provider,
		Live:           live.NewHandler(hub, cfg.AllowedOrigins(), svc.LiveSnapshot),
		AllowedOrigins: cfg.AllowedOrigins(),
		RequestTimeout: cfg.RequestTimeout() * 2,
		Logger:         log,
	})
	return &application{store: store, svc: svc, handler: handler}, nil
}

func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	app, err := build(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := app.store.Close(); err != nil {
			log.Warn(ctx, "closing record store", logger.Error(err))
		}
	}()

	if err := app.svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer app.svc.Stop()

	if err := app.svc.BootstrapAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
		log.Error(ctx, "bootstrap admin failed", logger.String("email", cfg.AdminEmail), logger.Error(err))
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, app.svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.handler,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("store", cfg.StoreDriver),
			logger.Bool("export", cfg.ExportEnabled()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	log.Info(ctx, "server stopped")
	return nil
}

// startSystemMetricsUpdater periodically records runtime metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater periodically mirrors service counters into gauges.
func startServiceMetricsUpdater(ctx context.Context, svc *service.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

func updateServiceMetrics(svc *service.Service) {
	stats := svc.GetStats()

	if queueLen, ok := stats["queueLength"].(int); ok {
		metrics.UpdateQueueSize(queueLen)
	}
	fencers, _ := stats["fencers"].(int)
	bouts, _ := stats["bouts"].(int)
	sessions, _ := stats["sessions"].(int)
	metrics.UpdateStateSizes(fencers, bouts, sessions)
}
