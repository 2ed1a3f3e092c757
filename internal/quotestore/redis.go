package quotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/shipquote/internal/quote"
)

// DefaultKeyPrefix namespaces quote entries in a shared Redis.
const DefaultKeyPrefix = "shipquote:quote:"

// Redis stores entries as JSON documents that Redis expires at ExpiresAt.
type Redis struct {
	client redis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewRedis constructs a Redis backed store.
func NewRedis(client redis.UniversalClient, prefix string) *Redis {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) Get(ctx context.Context, key string) (quote.Entry, bool, error) {
	if r == nil || r.client == nil || key == "" {
		return quote.Entry{}, false, nil
	}
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return quote.Entry{}, false, nil
		}
		return quote.Entry{}, false, err
	}
	var e quote.Entry
	if err := json.Unmarshal(data, &e); err != nil {
		return quote.Entry{}, false, fmt.Errorf("decode quote %s: %w", key, err)
	}
	return e, true, nil
}

// Upsert overwrites the entry. Entries already past ExpiresAt are not written.
func (r *Redis) Upsert(ctx context.Context, e quote.Entry) error {
	if r == nil || r.client == nil {
		return errors.New("quotestore: redis client not configured")
	}
	var ttl time.Duration
	if e.ExpiresAt != nil {
		ttl = e.ExpiresAt.Sub(r.now())
		if ttl <= 0 {
			return nil
		}
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.prefix+e.QuoteKey, data, ttl).Err()
}

// Ping checks connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
