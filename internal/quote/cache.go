package quote

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/shipquote/internal/obs"
)

// DefaultCacheTTL is the lifetime of a persisted quote.
const DefaultCacheTTL = 1800 * time.Second

// Store persists quote cache entries. Get reports found=false for absent keys.
type Store interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Upsert(ctx context.Context, entry Entry) error
}

// Cache applies the validity rules and failure policy on top of a Store:
// read failures are misses and write failures are no-ops, both logged.
type Cache struct {
	store   Store
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  zerolog.Logger
}

// NewCache wraps store. A zero ttl uses DefaultCacheTTL; a zero timeout leaves
// store calls bounded only by the caller's context.
func NewCache(store Store, ttl, timeout time.Duration, logger zerolog.Logger) *Cache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &Cache{store: store, ttl: ttl, timeout: timeout, now: time.Now, logger: logger}
}

// Lookup returns a servable entry for key.
func (c *Cache) Lookup(ctx context.Context, key string) (Entry, bool) {
	if c == nil || c.store == nil || key == "" {
		return Entry{}, false
	}
	ctx, cancel := c.bound(ctx)
	defer cancel()

	entry, found, err := c.store.Get(ctx, key)
	switch {
	case err != nil:
		loggerFrom(ctx, c.logger).Warn().Err(err).Str("quote_key", key).Msg("quote_cache_read_failed")
		obs.IncCounter(obs.QuoteCacheTotal, "error")
		return Entry{}, false
	case !found:
		obs.IncCounter(obs.QuoteCacheTotal, "miss")
		return Entry{}, false
	case !entry.ValidAt(c.now()):
		obs.IncCounter(obs.QuoteCacheTotal, "expired")
		return Entry{}, false
	}
	obs.IncCounter(obs.QuoteCacheTotal, "hit")
	entry.Source = SourceCache
	return entry, true
}

// Stamp sets the creation and expiry times of a fresh entry.
func (c *Cache) Stamp(entry *Entry) {
	now := time.Now
	ttl := DefaultCacheTTL
	if c != nil {
		now, ttl = c.now, c.ttl
	}
	created := now().UTC()
	expires := created.Add(ttl)
	entry.CreatedAt = created
	entry.ExpiresAt = &expires
}

// Save upserts entry. It survives cancellation of the request context so a
// client disconnect does not drop the write.
func (c *Cache) Save(ctx context.Context, entry Entry) bool {
	if c == nil || c.store == nil {
		return false
	}
	ctx, cancel := c.bound(context.WithoutCancel(ctx))
	defer cancel()

	if err := c.store.Upsert(ctx, entry); err != nil {
		loggerFrom(ctx, c.logger).Warn().Err(err).Str("quote_key", entry.QuoteKey).Msg("quote_cache_write_failed")
		obs.IncCounter(obs.QuoteStoreWriteTotal, "error")
		return false
	}
	obs.IncCounter(obs.QuoteStoreWriteTotal, "ok")
	return true
}

func (c *Cache) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout > 0 {
		return context.WithTimeout(ctx, c.timeout)
	}
	return context.WithCancel(ctx)
}

// loggerFrom prefers a request scoped logger stored on ctx.
func loggerFrom(ctx context.Context, fallback zerolog.Logger) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l != nil && l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &fallback
}
