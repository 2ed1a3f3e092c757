package quote

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

var errStoreDown = errors.New("store unavailable")

type fakeStore struct {
	mu       sync.Mutex
	entries  map[string]Entry
	getErr   error
	writeErr error
	gets     int
	upserts  int
}

func newFakeStore() *fakeStore {
	return &fakeStore{entries: make(map[string]Entry)}
}

func (f *fakeStore) Get(_ context.Context, key string) (Entry, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return Entry{}, false, f.getErr
	}
	e, ok := f.entries[key]
	return e, ok, nil
}

func (f *fakeStore) Upsert(_ context.Context, e Entry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.upserts++
	if f.writeErr != nil {
		return f.writeErr
	}
	f.entries[e.QuoteKey] = e
	return nil
}

func (f *fakeStore) upsertCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.upserts
}

type countingCatalog struct {
	mu    sync.Mutex
	inner catalog.Catalog
	err   error
	calls int
	delay time.Duration
}

func (c *countingCatalog) Resolve(ctx context.Context, skus, ids, titles []string) ([]catalog.Profile, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	if c.delay > 0 {
		time.Sleep(c.delay)
	}
	if c.err != nil {
		return nil, c.err
	}
	return c.inner.Resolve(ctx, skus, ids, titles)
}

func (c *countingCatalog) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type failingRates struct{}

func (failingRates) Rates(context.Context, ratesource.RateRequest) ([]ratesource.Rate, error) {
	return nil, errors.New("carrier timeout")
}

func testCatalog() *catalog.Static {
	return catalog.NewStatic(
		catalog.Profile{ID: "desk", SKU: "DESK-1", Title: "Standing Desk", WeightLbs: 3, Dimensions: &catalog.Dimensions{Length: 10, Width: 8, Height: 4}},
		catalog.Profile{ID: "chair", SKU: "CHAIR-1", Title: "Chair", WeightLbs: 4, Dimensions: &catalog.Dimensions{Length: 12, Width: 6, Height: 5}},
		catalog.Profile{ID: "cabinet", SKU: "CAB-1", Title: "Cabinet", WeightLbs: 45, BoxDimensions: "40x20x20", ShipsAlone: true},
		catalog.Profile{ID: "safe", SKU: "SAFE-1", Title: "Gun Safe", WeightLbs: 150, Dimensions: &catalog.Dimensions{Length: 30, Width: 24, Height: 24}},
		catalog.Profile{ID: "install", SKU: "INSTALL-1", Title: "Installation", RequiresShipping: catalog.Bool(false)},
		catalog.Profile{ID: "labor", SKU: "LABOR-1", Title: "Labor", ProductType: "service"},
	)
}

type serviceFixture struct {
	svc     *Service
	store   *fakeStore
	catalog *countingCatalog
	cache   *Cache
}

func newServiceFixture(t *testing.T, mutate func(*ServiceConfig)) serviceFixture {
	t.Helper()
	store := newFakeStore()
	cat := &countingCatalog{inner: testCatalog()}
	cache := NewCache(store, time.Hour, time.Second, zerolog.Nop())
	cfg := ServiceConfig{
		Catalog:  cat,
		Cache:    cache,
		Defaults: testDefaults,
		Logger:   zerolog.Nop(),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	svc, err := NewService(cfg)
	require.NoError(t, err)
	return serviceFixture{svc: svc, store: store, catalog: cat, cache: cache}
}

func quoteRequest(t *testing.T, items ...string) Request {
	t.Helper()
	cart := make([]json.RawMessage, 0, len(items))
	for _, item := range items {
		cart = append(cart, json.RawMessage(item))
	}
	return Request{
		Cart: cart,
		Destination: map[string]any{
			"addressLine1": "12 Main St",
			"city":         "Springfield",
			"state":        "il",
			"postalCode":   "62701",
		},
	}
}
