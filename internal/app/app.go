// Package app wires the daemon: storage, device session, print pipeline,
// and the HTTP API, with graceful shutdown.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	sdkapp "github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/platewise/printd/internal/fallback"
	"github.com/platewise/printd/internal/handler"
	"github.com/platewise/printd/internal/printer"
	"github.com/platewise/printd/internal/settings"
	"github.com/platewise/printd/internal/storage/postgres"
	"github.com/platewise/printd/internal/usb"
	"github.com/platewise/printd/pkg/health"
	"github.com/platewise/printd/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the daemon.
func Run(ctx context.Context, lg *zap.Logger, m *sdkapp.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("terminal", cfg.Terminal))

	// Settings store and job journal: PostgreSQL when configured, otherwise
	// process-local.
	var (
		store   settings.Store = settings.NewMemoryStore()
		journal printer.Journal
	)
	healthSvc := health.New()
	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return errors.Wrap(err, "create db pool")
		}
		defer pool.Close()

		if err := postgres.RunMigrations(ctx, pool); err != nil {
			return errors.Wrap(err, "run migrations")
		}
		store = postgres.NewSettingsStore(pool, cfg.Terminal)
		journal = postgres.NewJobJournal(pool)
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
			return pool.Ping(ctx)
		})
	}

	// Device session over libusb.
	backend := usb.NewGousbBackend()
	defer func() {
		if err := backend.Close(); err != nil {
			lg.Warn("usb backend close failed", zap.Error(err))
		}
	}()
	session := usb.NewSession(backend, lg)
	defer session.Disconnect()

	// Print pipeline.
	spooler := printer.NewSpooler(session, lg)
	var fb printer.Fallback
	if cfg.PrintServiceURL != "" {
		fb = fallback.NewClient(cfg.PrintServiceURL, lg)
	}
	dispatcher := printer.NewDispatcher(spooler, fb, journal, lg)

	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	defer healthSvc.Stop()
	healthSvc.SetReady(true)

	// HTTP API.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	handler.New(dispatcher, session, store).Register(mux)

	h := httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(cfg.CORSOrigins),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.LogRequests(),
	)
	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      30 * time.Second, // multi-copy jobs hold the request open
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: otelhttp.NewHandler(h, "printd",
			otelhttp.WithTracerProvider(m.TracerProvider()),
			otelhttp.WithMeterProvider(m.MeterProvider()),
		),
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
