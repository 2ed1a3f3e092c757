package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/extra/redisotel/v9"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shipquote/internal/config"
	"github.com/noah-isme/shipquote/internal/db"
	"github.com/noah-isme/shipquote/internal/health"
	"github.com/noah-isme/shipquote/internal/obs"
	"github.com/noah-isme/shipquote/internal/quote"
	"github.com/noah-isme/shipquote/internal/quotestore"
	"github.com/noah-isme/shipquote/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.Obs.LogFormat, cfg.Obs.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, obs.TracingConfig{
		Enabled:       cfg.Obs.TracingEnabled,
		Endpoint:      cfg.Obs.OTLPEndpoint,
		Exporter:      cfg.Obs.TracingExporter,
		SamplingRatio: cfg.Obs.SamplingRatio,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		cfg.Obs.TracingEnabled = false
	} else {
		defer func() {
			if err := shutdownTracer(context.Background()); err != nil {
				logger.Error().Err(err).Msg("shutdown tracer")
			}
		}()
	}

	var httpMetrics *obs.HTTPMetrics
	if cfg.Obs.MetricsEnabled {
		obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, nil)
		httpMetrics = obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), nil)
	}

	var b backends
	if cfg.DBAutoMigrate {
		if err := db.Migrate(ctx, cfg.DatabaseURL); err != nil {
			logger.Fatal().Err(err).Msg("migrate database")
		}
		logger.Info().Msg("database migrated")
	}
	if cfg.UsesPostgres() {
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns})
		if err != nil {
			logger.Fatal().Err(err).Msg("connect database")
		}
		defer pool.Close()
		b.pool = pool
	}
	if cfg.UsesRedis() {
		client, err := newRedis(ctx, cfg, logger)
		if err != nil {
			logger.Fatal().Err(err).Msg("connect redis")
		}
		defer func() {
			if err := client.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		b.redis = client
	}

	comps, err := buildComponents(cfg, b, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise components")
	}
	svc, err := buildService(cfg, comps, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise quote service")
	}

	if pgStore, ok := comps.store.(*quotestore.Postgres); ok {
		go runJanitor(ctx, pgStore, cfg.Quote.JanitorInterval, logger)
	}

	deps := routerDeps{
		cfg:         cfg,
		logger:      logger,
		quotes:      &quote.Handler{Svc: svc},
		health:      health.Handler{Probes: comps.probes, Timeout: cfg.Obs.ReadyTimeout},
		httpMetrics: httpMetrics,
	}
	if b.redis != nil {
		deps.limiter = ratelimit.Limiter{Client: b.redis, Prefix: "shipquote:ratelimit:"}
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           newRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).
			Str("catalog", cfg.Catalog.Source).
			Str("store", cfg.Quote.Store).
			Str("single_flight", cfg.Quote.SingleFlight).
			Msg("server starting")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
		return
	case <-ctx.Done():
	}

	health.SetReady(false)
	logger.Info().Msg("server draining")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown")
	}
	logger.Info().Msg("server stopped")
}

func newRedis(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	if err := redisotel.InstrumentTracing(client); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if cfg.Obs.MetricsEnabled {
		if err := redisotel.InstrumentMetrics(client); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	return client, nil
}
