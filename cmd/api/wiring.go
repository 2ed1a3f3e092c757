package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/config"
	"github.com/noah-isme/shipquote/internal/health"
	"github.com/noah-isme/shipquote/internal/lock"
	"github.com/noah-isme/shipquote/internal/quote"
	"github.com/noah-isme/shipquote/internal/quotestore"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

// backends holds the shared connections; either may be nil.
type backends struct {
	pool  *pgxpool.Pool
	redis redis.UniversalClient
}

type components struct {
	store   quote.Store
	catalog catalog.Catalog
	guard   quote.KeyGuard
	rates   ratesource.RateShopper
	probes  map[string]health.Probe
}

func buildComponents(cfg *config.Config, b backends, logger zerolog.Logger) (components, error) {
	c := components{probes: map[string]health.Probe{}}
	if b.pool != nil {
		c.probes["postgres"] = b.pool.Ping
	}
	if b.redis != nil {
		client := b.redis
		c.probes["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	switch cfg.Quote.Store {
	case config.StoreRedis:
		if b.redis == nil {
			return c, fmt.Errorf("quote store redis: client not configured")
		}
		c.store = quotestore.NewRedis(b.redis, cfg.Quote.KeyPrefix)
	case config.StorePostgres:
		if b.pool == nil {
			return c, fmt.Errorf("quote store postgres: pool not configured")
		}
		c.store = quotestore.NewPostgres(b.pool)
	default:
		mem := quotestore.NewMemory()
		c.store = mem
		c.probes["store"] = mem.Ping
	}

	switch cfg.Catalog.Source {
	case config.CatalogHTTP:
		remote := catalog.NewRemote(catalog.RemoteConfig{
			BaseURL:     cfg.Catalog.URL,
			ServiceKey:  cfg.Catalog.APIKey,
			Timeout:     cfg.Catalog.Timeout,
			MaxAttempts: cfg.Catalog.MaxAttempts,
			Logger:      logger.With().Str("component", "catalog").Logger(),
		})
		c.catalog = remote
		c.probes["catalog"] = remote.Ping
	case config.CatalogFile:
		static, err := catalog.LoadFile(cfg.Catalog.File)
		if err != nil {
			return c, err
		}
		c.catalog = static
	default:
		if b.pool == nil {
			return c, fmt.Errorf("catalog postgres: pool not configured")
		}
		c.catalog = catalog.NewPostgres(b.pool, logger.With().Str("component", "catalog").Logger())
	}

	switch cfg.Quote.SingleFlight {
	case config.GuardLocal:
		c.guard = lock.NewLocal()
	case config.GuardRedis:
		if b.redis == nil {
			return c, fmt.Errorf("single flight redis: client not configured")
		}
		c.guard = lock.Locker{R: b.redis, Prefix: "shipquote:", RetryBackoff: 25 * time.Millisecond}
	}

	if cfg.RateShopper == "mock" {
		c.rates = ratesource.MockClient{}
	}
	return c, nil
}

func buildService(cfg *config.Config, c components, logger zerolog.Logger) (*quote.Service, error) {
	dims, err := quote.ParseDefaultDimensions(cfg.Quote.DefaultDimensions)
	if err != nil {
		return nil, fmt.Errorf("QUOTE_DEFAULT_DIMENSIONS: %w", err)
	}
	return quote.NewService(quote.ServiceConfig{
		Catalog:        c.catalog,
		Cache:          quote.NewCache(c.store, cfg.Quote.CacheTTL, cfg.Quote.StoreTimeout, logger),
		RateShopper:    c.rates,
		Guard:          c.guard,
		GuardTTL:       cfg.Quote.LockTTL,
		Defaults:       quote.Defaults{WeightLbs: cfg.Quote.DefaultWeightLbs, Dimensions: dims},
		CatalogTimeout: cfg.Quote.CatalogDeadline,
		Logger:         logger,
	})
}

// runJanitor purges expired rows from the postgres quote store until ctx ends.
func runJanitor(ctx context.Context, store *quotestore.Postgres, every time.Duration, logger zerolog.Logger) {
	if every <= 0 {
		return
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := store.DeleteExpired(ctx, now)
			if err != nil {
				logger.Error().Err(err).Msg("quote_janitor_failed")
				continue
			}
			if n > 0 {
				logger.Info().Int64("deleted", n).Msg("quote_janitor")
			}
		}
	}
}
