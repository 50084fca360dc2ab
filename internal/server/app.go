// Package server builds the site backend from configuration and runs it.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/api"
	"github.com/JakeFAU/consulting-site/internal/clock/system"
	"github.com/JakeFAU/consulting-site/internal/config"
	"github.com/JakeFAU/consulting-site/internal/contact"
	"github.com/JakeFAU/consulting-site/internal/events"
	"github.com/JakeFAU/consulting-site/internal/id/uuid"
	"github.com/JakeFAU/consulting-site/internal/logging"
	"github.com/JakeFAU/consulting-site/internal/mailer"
	"github.com/JakeFAU/consulting-site/internal/metrics"
	"github.com/JakeFAU/consulting-site/internal/publications"
	"github.com/JakeFAU/consulting-site/internal/security"
	pgstore "github.com/JakeFAU/consulting-site/internal/storage/postgres"
	"github.com/JakeFAU/consulting-site/internal/telemetry"
	"github.com/JakeFAU/consulting-site/internal/throttle"
)

// App contains the application's dependencies.
type App struct {
	cfg            *config.Config
	logger         *zap.Logger
	apiServer      *api.Server
	hub            *events.Hub
	stopJanitor    context.CancelFunc
	redis          *redis.Client
	pubsubClient   *pubsub.Client
	storage        *storage.Client
	outcomes       *pgstore.OutcomeStore
	tracerShutdown func(context.Context) error
}

// NewApp creates a new App with the given configuration.
func NewApp(cfg *config.Config, logger *zap.Logger) *App {
	logger.Info("creating application",
		zap.Int("server_port", cfg.Server.Port),
		zap.String("rate_limit_backend", cfg.RateLimit.Backend),
		zap.String("publications_backend", cfg.Publications.Backend),
		zap.Bool("events_enabled", cfg.Events.Enabled),
		zap.Bool("database_configured", cfg.Database.DSN != ""),
		zap.Bool("pubsub_configured", cfg.PubSub.TopicName != ""),
	)
	return &App{cfg: cfg, logger: logger}
}

// Handler exposes the HTTP handler, mainly for tests.
func (a *App) Handler() http.Handler {
	return a.apiServer.Handler()
}

// Run serves HTTP until ctx is canceled or a termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	a.logger.Info("application started")
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:           a.apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("http server started", zap.Int("port", a.cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("http server error", zap.Error(err))
			serveErr <- err
			stop()
		}
	}()

	<-ctx.Done()
	a.logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("server shutdown error", zap.Error(err))
	}

	closeErr := a.Close(shutdownCtx)
	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	default:
		return closeErr
	}
}

// Close releases every dependency. The event hub is drained before the
// clients its sinks publish through are closed.
func (a *App) Close(ctx context.Context) error {
	if a.stopJanitor != nil {
		a.stopJanitor()
	}
	a.closeInfrastructure(ctx)
	a.closeObservability(ctx)
	a.logger.Info("shutdown complete")
	return nil
}

func (a *App) closeInfrastructure(ctx context.Context) {
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("event hub close failed", zap.Error(err))
		}
	}
	if a.pubsubClient != nil {
		if err := a.pubsubClient.Close(); err != nil {
			a.logger.Warn("pubsub client close failed", zap.Error(err))
		}
	}
	if a.storage != nil {
		if err := a.storage.Close(); err != nil {
			a.logger.Warn("gcs client close failed", zap.Error(err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.logger.Warn("redis client close failed", zap.Error(err))
		}
	}
	if a.outcomes != nil {
		a.outcomes.Close()
	}
}

func (a *App) closeObservability(ctx context.Context) {
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	if err := a.logger.Sync(); err != nil {
		a.logger.Debug("logger sync failed", zap.Error(err))
	}
}

// Build creates the application's dependencies.
func Build(ctx context.Context, cfg *config.Config) (*App, error) {
	logger, err := logging.New(logging.Options{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return build(ctx, cfg, logger)
}

func build(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	app := NewApp(cfg, logger)
	ok := false
	defer func() {
		if !ok {
			_ = app.Close(context.Background())
		}
	}()

	if cfg.Telemetry.TracingEnabled {
		tp, err := telemetry.InitTracerProvider(ctx, telemetry.Options{
			ServiceName:    cfg.Telemetry.ServiceName,
			ServiceVersion: cfg.Telemetry.ServiceVersion,
			ProjectID:      cfg.Telemetry.ProjectID,
			SampleRatio:    cfg.Telemetry.SampleRatio,
		})
		if err != nil {
			return nil, fmt.Errorf("tracer init failed: %w", err)
		}
		app.tracerShutdown = tp.Shutdown
	}
	metrics.Init()
	metrics.SetBuildInfo(cfg.Telemetry.ServiceVersion)

	app.logger.Info("building application dependencies")

	limiter, err := setupLimiter(app)
	if err != nil {
		return nil, err
	}
	if err = setupDatabase(ctx, app); err != nil {
		return nil, err
	}
	emitter, err := setupEvents(ctx, app)
	if err != nil {
		return nil, err
	}

	verifier := turnstileVerifier(app)
	dispatcher, err := mailer.New(mailer.Config{
		APIKey:  cfg.Contact.ResendAPIKey,
		From:    cfg.Contact.FromEmail,
		To:      cfg.Contact.ToEmail,
		BaseURL: cfg.Contact.ResendBaseURL,
		Timeout: cfg.ContactHTTPTimeout(),
		Pacer:   throttle.New(throttle.Config{RPS: cfg.Contact.SendRPS, Burst: cfg.Contact.SendBurst}),
	}, logger.Named("mailer"))
	if err != nil {
		return nil, fmt.Errorf("mailer init failed: %w", err)
	}
	if err := dispatcher.CheckConfig(); err != nil {
		app.logger.Warn("email delivery incomplete; submissions will fail until configured", zap.Error(err))
	}

	svc, err := contact.NewService(contact.Deps{
		Limiter:    limiter,
		Verifier:   verifier,
		Dispatcher: dispatcher,
		Clock:      system.New(),
		IDs:        uuid.New(),
		Events:     emitter,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("contact service init failed: %w", err)
	}

	source, err := setupPublications(ctx, app)
	if err != nil {
		return nil, err
	}

	deps := api.Deps{
		Contact:        svc,
		Publications:   publications.NewCatalog(source, cfg.Publications.CacheTTL, logger),
		SiteURL:        cfg.Publications.SiteURL,
		NoIndex:        cfg.Publications.NoIndex,
		RequestTimeout: cfg.RequestTimeout(),
		Clock:          system.New(),
		Logger:         logger,
	}
	if cfg.Security.CSPEnabled {
		deps.Security = security.New(security.Config{
			NonProdHosts: cfg.Security.NonProdHosts,
			ConnectSrc:   cfg.Security.ConnectSrc,
			FrameSrc:     cfg.Security.FrameSrc,
			Logger:       logger.Named("csp"),
		}).Middleware
	}
	if app.outcomes != nil {
		deps.Ready = append(deps.Ready, app.outcomes)
	}
	app.apiServer, err = api.NewServer(deps)
	if err != nil {
		return nil, fmt.Errorf("api server init failed: %w", err)
	}

	ok = true
	return app, nil
}
