// Package app wires configuration, the catalog gateway, sessions and the HTTP
// server together.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/cocktail-catalog/internal/catalog"
	"github.com/xenking/cocktail-catalog/internal/gateway"
	"github.com/xenking/cocktail-catalog/internal/handler"
	"github.com/xenking/cocktail-catalog/internal/session"
	"github.com/xenking/cocktail-catalog/pkg/health"
	"github.com/xenking/cocktail-catalog/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("base_url", cfg.BaseURL),
		zap.Int("page_size", cfg.PageSize),
	)
	ctx = zctx.Base(ctx, lg)

	srv, err := newServer(ctx, lg, cfg, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		// ?wait=true holds the response for up to WaitTimeout.
		WriteTimeout:   cfg.WaitTimeout + 10*time.Second,
		IdleTimeout:    120 * time.Second,
		MaxHeaderBytes: 1 << 20,
		Addr:           cfg.Addr,
		Handler:        srv.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.sessions.Run(gctx)
	})
	for _, l := range srv.limiters {
		g.Go(func() error {
			l.Run(gctx)
			return nil
		})
	}
	g.Go(func() error {
		// Graceful shutdown: flip readiness, let the balancer notice, drain.
		<-gctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		return nil
	})
	g.Go(func() error {
		srv.health.Start(gctx, 10*time.Second)
		srv.health.SetReady(true)

		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	return g.Wait()
}

// server bundles the long-lived parts of a running service.
type server struct {
	handler  http.Handler
	sessions *session.Store
	limiters []*httpmiddleware.Limiter
	health   *health.Health
}

func newServer(
	ctx context.Context,
	lg *zap.Logger,
	cfg *Config,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*server, error) {
	gw, remoteCheck, err := newGateway(cfg, tp, mp)
	if err != nil {
		return nil, err
	}

	sessions := session.New(ctx, func(ctx context.Context) (*catalog.Controller, error) {
		return catalog.New(ctx, gw, catalog.Config{
			PageSize: cfg.PageSize,
			Locale:   cfg.Language(),
		}, catalog.WithMeterProvider(mp))
	}, session.Config{
		IdleTTL:     cfg.Session.IdleTTL,
		MaxSessions: cfg.Session.MaxSessions,
	})

	healthSvc := health.New(lg.Named("health"))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(50_000))
	if remoteCheck != nil {
		healthSvc.Add(health.Readiness, "remote", cfg.RequestTimeout, remoteCheck, health.WithThresholds(3, 1))
	}

	// Requests without a live session cookie are keyed by address in both
	// limiters; creations get the tighter budget.
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.RateLimit.Max,
		Window:  cfg.RateLimit.Window,
		KeyFunc: httpmiddleware.CookieOrIP(handler.SessionCookie, sessions.Has),
	})
	creations := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:     cfg.Session.CreateMax,
		Window:  cfg.Session.CreateWindow,
		KeyFunc: httpmiddleware.ClientIP,
		Skip: func(r *http.Request) bool {
			return sessions.Has(httpmiddleware.CookieValue(r, handler.SessionCookie))
		},
	})

	h := handler.New(handler.Config{
		DisplayName:        cfg.DisplayName,
		DisplayID:          cfg.DisplayID,
		DisplayNameDefault: cfg.DisplayName == DefaultDisplayName,
		DisplayIDDefault:   cfg.DisplayID == DefaultDisplayID,
		WaitTimeout:        cfg.WaitTimeout,
		SecureCookie:       cfg.SecureCookie,
	}, sessions, handler.WithSessionGuard(creations.Middleware()))

	r := chi.NewRouter()
	r.Use(httpmiddleware.LogRequests())
	r.Get("/livez", healthSvc.LiveEndpoint)
	r.Get("/readyz", healthSvc.ReadyEndpoint)
	r.With(limiter.Middleware()).Mount("/api", h.Routes())

	return &server{
		handler: httpmiddleware.Wrap(r,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.Instrument("catalog-api", tp, mp),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
		),
		sessions: sessions,
		limiters: []*httpmiddleware.Limiter{limiter, creations},
		health:   healthSvc,
	}, nil
}

// newGateway selects the remote gateway when a base URL is configured and the
// bundled dataset otherwise. The returned check watches the remote host and is
// nil for the dataset.
func newGateway(cfg *Config, tp trace.TracerProvider, mp metric.MeterProvider) (gateway.Gateway, health.CheckFunc, error) {
	if cfg.BaseURL == "" {
		items, err := gateway.LoadDataset(cfg.DatasetPath)
		if err != nil {
			return nil, nil, errors.Wrap(err, "load dataset")
		}
		return gateway.NewStatic(items), nil, nil
	}

	client := &http.Client{Timeout: cfg.RequestTimeout}
	gw, err := gateway.NewRemote(gateway.RemoteConfig{
		BaseURL:      cfg.BaseURL,
		ProductsPath: cfg.ProductsPath,
		Locale:       cfg.Language(),
	},
		gateway.WithHTTPClient(client),
		gateway.WithTracerProvider(tp),
		gateway.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, nil, errors.Wrap(err, "create remote gateway")
	}
	return gw, health.HTTPCheck(client, cfg.BaseURL), nil
}
