package server

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/JakeFAU/consulting-site/internal/clock/system"
	"github.com/JakeFAU/consulting-site/internal/events"
	"github.com/JakeFAU/consulting-site/internal/events/sinks"
	ipsha "github.com/JakeFAU/consulting-site/internal/hash/sha256"
	"github.com/JakeFAU/consulting-site/internal/metrics"
	"github.com/JakeFAU/consulting-site/internal/publications"
	"github.com/JakeFAU/consulting-site/internal/ratelimit"
	gcssource "github.com/JakeFAU/consulting-site/internal/storage/gcs"
	pgstore "github.com/JakeFAU/consulting-site/internal/storage/postgres"
	"github.com/JakeFAU/consulting-site/internal/turnstile"
)

func setupLimiter(app *App) (ratelimit.Limiter, error) {
	rl := app.cfg.RateLimit
	limitCfg := ratelimit.Config{Window: rl.Window, Max: rl.Max}
	if rl.Backend == "redis" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     rl.Redis.Addr,
			Password: rl.Redis.Password,
			DB:       rl.Redis.DB,
		})
		limiter, err := ratelimit.NewRedis(app.redis, limitCfg, rl.Redis.Prefix, system.New())
		if err != nil {
			return nil, fmt.Errorf("redis rate limiter init failed: %w", err)
		}
		app.logger.Info("using redis rate limiter",
			zap.String("addr", rl.Redis.Addr),
			zap.Duration("window", rl.Window),
			zap.Int("max", rl.Max),
		)
		return limiter, nil
	}

	limiter := ratelimit.NewMemory(limitCfg, system.New())
	janitorCtx, cancel := context.WithCancel(context.Background())
	app.stopJanitor = cancel
	limiter.StartJanitor(janitorCtx, rl.SweepInterval, app.logger.Named("ratelimit"))
	if err := metrics.TrackRateLimitKeys(nil, limiter.Len); err != nil {
		app.logger.Warn("rate limit gauge registration failed", zap.Error(err))
	}
	app.logger.Info("using in-memory rate limiter",
		zap.Duration("window", rl.Window),
		zap.Int("max", rl.Max),
		zap.Duration("sweep_interval", rl.SweepInterval),
	)
	return limiter, nil
}

func turnstileVerifier(app *App) *turnstile.Verifier {
	if app.cfg.Contact.TurnstileSecret == "" {
		app.logger.Warn("turnstile secret not configured; submissions will fail verification")
	}
	return turnstile.New(turnstile.Config{
		Secret:    app.cfg.Contact.TurnstileSecret,
		VerifyURL: app.cfg.Contact.TurnstileVerifyURL,
		Timeout:   app.cfg.ContactHTTPTimeout(),
	}, app.logger.Named("turnstile"))
}

func setupDatabase(ctx context.Context, app *App) error {
	db := app.cfg.Database
	if db.DSN == "" {
		app.logger.Warn("no DSN specified for database, skipping outcome store")
		return nil
	}
	var err error
	app.outcomes, err = pgstore.NewOutcomeStore(ctx, pgstore.OutcomeStoreConfig{
		DSN:             db.DSN,
		Table:           db.OutcomeTable,
		MaxConns:        db.MaxConns,
		MinConns:        db.MinConns,
		MaxConnLifetime: db.MaxConnLifetime,
	})
	if err != nil {
		return fmt.Errorf("outcome store init failed: %w", err)
	}
	if err := app.outcomes.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("outcome schema init failed: %w", err)
	}
	app.logger.Info("outcome store initialized", zap.String("table", db.OutcomeTable))
	return nil
}

func setupEvents(ctx context.Context, app *App) (events.Emitter, error) {
	cfg := app.cfg.Events
	if !cfg.Enabled {
		app.logger.Info("submission events disabled")
		return events.Discard{}, nil
	}

	prom, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		return nil, fmt.Errorf("prometheus sink init failed: %w", err)
	}
	sinkList := []events.Sink{prom}
	durable := func(s events.Sink) events.Sink {
		if !cfg.HashClientIP {
			return s
		}
		return sinks.Pseudonymize(s, ipsha.New(cfg.IPSalt))
	}
	if app.outcomes != nil {
		sinkList = append(sinkList, durable(sinks.NewStoreSink(app.outcomes, app.logger.Named("events_store"))))
		app.logger.Debug("added outcome store sink", zap.Bool("hash_client_ip", cfg.HashClientIP))
	}
	if cfg.LogEnabled {
		sinkList = append(sinkList, sinks.NewLogSink(app.logger.Named("events_log")))
		app.logger.Debug("added event log sink")
	}
	if app.cfg.PubSub.TopicName != "" {
		app.pubsubClient, err = pubsub.NewClient(ctx, app.cfg.PubSub.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("pubsub client init failed: %w", err)
		}
		sink, err := sinks.NewPubSubSink(app.pubsubClient.Topic(app.cfg.PubSub.TopicName))
		if err != nil {
			return nil, fmt.Errorf("pubsub sink init failed: %w", err)
		}
		sinkList = append(sinkList, durable(sink))
		app.logger.Info("pub/sub event sink initialized",
			zap.String("project", app.cfg.PubSub.ProjectID),
			zap.String("topic", app.cfg.PubSub.TopicName),
		)
	}

	hubCfg := events.Config{
		BufferSize:     cfg.BufferSize,
		MaxBatchEvents: cfg.Batch.MaxEvents,
		MaxBatchWait:   time.Duration(cfg.Batch.MaxWaitMs) * time.Millisecond,
		SinkTimeout:    time.Duration(cfg.SinkTimeoutMs) * time.Millisecond,
		BaseContext:    context.WithoutCancel(ctx),
		Logger:         app.logger.Named("events_hub"),
	}
	app.hub = events.NewHub(hubCfg, sinkList...)
	app.logger.Info("event hub initialized",
		zap.Int("sinks", len(sinkList)),
		zap.Int("buffer_size", hubCfg.BufferSize),
		zap.Int("max_batch_events", hubCfg.MaxBatchEvents),
		zap.Duration("max_batch_wait", hubCfg.MaxBatchWait),
		zap.Duration("sink_timeout", hubCfg.SinkTimeout),
	)
	return app.hub, nil
}

func setupPublications(ctx context.Context, app *App) (publications.Source, error) {
	pc := app.cfg.Publications
	if pc.Backend == "gcs" {
		var err error
		app.storage, err = storage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client init failed: %w", err)
		}
		src, err := gcssource.New(app.storage, gcssource.Config{Bucket: pc.Bucket, Prefix: pc.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs content source init failed: %w", err)
		}
		app.logger.Info("using GCS publications source",
			zap.String("bucket", pc.Bucket),
			zap.String("prefix", pc.Prefix),
		)
		return src, nil
	}
	app.logger.Info("using local publications source", zap.String("dir", pc.Dir))
	return publications.DirSource{Dir: pc.Dir}, nil
}
