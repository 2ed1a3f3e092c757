package quote

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/lock"
	"github.com/noah-isme/shipquote/internal/ratesource"
)

func TestQuoteIdempotentWithinTTL(t *testing.T) {
	f := newServiceFixture(t, nil)
	req := quoteRequest(t, `{"sku":"DESK-1"}`, `{"sku":"CHAIR-1"}`)

	first, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeStandard, first.Outcome)
	require.Equal(t, SourceFresh, first.Entry.Source)
	require.Equal(t, []Package{{WeightLbs: 7, Dimensions: catalog.Dimensions{Length: 12, Width: 8, Height: 5}}}, first.Packages)
	require.NotEmpty(t, first.Entry.QuoteKey)
	_, err = uuid.Parse(first.Entry.QuoteRequestID)
	require.NoError(t, err)
	require.Equal(t, "DESK-1 x1, CHAIR-1 x1", first.Entry.CartSummary)
	require.Zero(t, first.Entry.RateCount)
	require.NotNil(t, first.Entry.ExpiresAt)
	require.Equal(t, 1, f.store.upsertCount())

	second, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"CHAIR-1"}`, `{"sku":"DESK-1"}`))
	require.NoError(t, err)
	require.Equal(t, SourceCache, second.Entry.Source)
	require.Equal(t, first.Entry.QuoteKey, second.Entry.QuoteKey)
	require.Equal(t, first.Entry.QuoteRequestID, second.Entry.QuoteRequestID)
	require.Equal(t, first.Packages, second.Packages)
	require.Equal(t, 1, f.catalog.callCount())
	require.Equal(t, 1, f.store.upsertCount())
}

func TestQuoteRecomputesExpiredEntry(t *testing.T) {
	f := newServiceFixture(t, nil)
	req := quoteRequest(t, `{"sku":"DESK-1"}`)

	_, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)

	f.cache.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	res, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, SourceFresh, res.Entry.Source)
	require.Equal(t, 2, f.catalog.callCount())
	require.Equal(t, 2, f.store.upsertCount())
}

func TestQuotePartialResolution(t *testing.T) {
	f := newServiceFixture(t, nil)
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1","quantity":2}`, `{"sku":"GHOST"}`, `{"sku":"INSTALL-1"}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeStandard, res.Outcome)
	require.Equal(t, []string{"GHOST"}, res.MissingProducts)
	require.Equal(t, []string{"INSTALL-1"}, res.InstallOnlySKUs)
	require.Equal(t, 6.0, res.Packages[0].WeightLbs)
}

func TestQuoteAllInstallOnly(t *testing.T) {
	f := newServiceFixture(t, nil)
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"INSTALL-1"}`, `{"id":"labor"}`, `{"sku":"GHOST"}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeInstallOnly, res.Outcome)
	require.Equal(t, installOnlyMessage, res.Message)
	require.Equal(t, []string{"INSTALL-1", "labor"}, res.InstallOnlySKUs)
	require.Equal(t, []string{"GHOST"}, res.MissingProducts)
	require.Empty(t, res.Packages)
	require.Zero(t, f.store.upsertCount())
}

func TestQuoteNothingResolved(t *testing.T) {
	f := newServiceFixture(t, nil)
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"GHOST"}`, `{"quantity":2}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeInstallOnly, res.Outcome)
	require.Equal(t, unresolvedMessage, res.Message)
	require.Equal(t, []string{"GHOST", CustomItemIdentifier}, res.MissingProducts)
	require.Equal(t, []string{}, res.InstallOnlySKUs)
}

func TestQuoteFreightIsNotCached(t *testing.T) {
	f := newServiceFixture(t, nil)
	req := quoteRequest(t, `{"sku":"SAFE-1"}`, `{"sku":"DESK-1"}`, `{"sku":"INSTALL-1"}`)

	res, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, OutcomeFreight, res.Outcome)
	require.Equal(t, freightMessage, res.Message)
	require.Equal(t, []string{"INSTALL-1"}, res.InstallOnlySKUs)
	require.NotEmpty(t, res.FreightTriggers)
	require.Len(t, res.Packages, 1)
	require.Equal(t, 153.0, res.Packages[0].WeightLbs)
	require.Zero(t, f.store.upsertCount())

	_, err = f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, 2, f.catalog.callCount())
}

func TestQuoteShipsAloneExpansion(t *testing.T) {
	f := newServiceFixture(t, nil)
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"CAB-1","quantity":3}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeStandard, res.Outcome)
	require.Len(t, res.Packages, 3)
	for _, p := range res.Packages {
		require.Equal(t, 45.0, p.WeightLbs)
		require.Equal(t, catalog.Dimensions{Length: 40, Width: 20, Height: 20}, p.Dimensions)
		require.Equal(t, "CAB-1", p.SKU)
	}
}

func TestQuoteStoreUnavailable(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.store.getErr = errStoreDown
	f.store.writeErr = errStoreDown

	for i := 0; i < 2; i++ {
		res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
		require.NoError(t, err)
		require.Equal(t, OutcomeStandard, res.Outcome)
		require.Equal(t, SourceFresh, res.Entry.Source)
	}
	require.Equal(t, 2, f.catalog.callCount())
}

func TestQuoteCatalogFailure(t *testing.T) {
	f := newServiceFixture(t, nil)
	boom := errors.New("connection reset")
	f.catalog.err = boom

	_, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
	require.ErrorIs(t, err, ErrCatalogUnavailable)
	require.ErrorIs(t, err, boom)
}

func TestQuoteSkipsCatalogForAnonymousCart(t *testing.T) {
	f := newServiceFixture(t, nil)
	f.catalog.err = errors.New("must not be called")

	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"quantity":1}`, `null`))
	require.NoError(t, err)
	require.Equal(t, OutcomeInstallOnly, res.Outcome)
	require.Equal(t, []string{CustomItemIdentifier, UnknownIdentifier}, res.MissingProducts)
	require.Zero(t, f.catalog.callCount())
}

func TestQuoteValidation(t *testing.T) {
	f := newServiceFixture(t, nil)
	_, err := f.svc.Quote(context.Background(), Request{})
	require.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Len(t, verr.Fields, 2)
	require.Zero(t, f.catalog.callCount())
}

func TestQuoteHonoursCallerKeyAndRequestID(t *testing.T) {
	f := newServiceFixture(t, nil)
	req := quoteRequest(t, `{"sku":"DESK-1"}`)
	req.QuoteKey = "  client-key-1 "
	req.QuoteRequestID = "11111111-2222-3333-4444-555555555555"

	res, err := f.svc.Quote(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "client-key-1", res.Entry.QuoteKey)
	require.Equal(t, req.QuoteRequestID, res.Entry.QuoteRequestID)

	entry, err := f.svc.Lookup(context.Background(), "client-key-1")
	require.NoError(t, err)
	require.Equal(t, SourceCache, entry.Source)

	_, err = f.svc.Lookup(context.Background(), "other")
	require.ErrorIs(t, err, ErrNotFound)
	_, err = f.svc.Lookup(context.Background(), " ")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestQuoteWithRateShopper(t *testing.T) {
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.RateShopper = ratesource.MockClient{} })
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
	require.NoError(t, err)
	require.Len(t, res.Entry.Rates, 2)
	require.Equal(t, 2, res.Entry.RateCount)

	cached, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
	require.NoError(t, err)
	require.Equal(t, res.Entry.Rates, cached.Entry.Rates)
}

func TestQuoteRateShopperFailureKeepsPackages(t *testing.T) {
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.RateShopper = failingRates{} })
	res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
	require.NoError(t, err)
	require.Equal(t, OutcomeStandard, res.Outcome)
	require.Zero(t, res.Entry.RateCount)
	require.NotEmpty(t, res.Packages)
}

type coalescingGuard struct{ err error }

func (g coalescingGuard) WithLock(context.Context, string, time.Duration, func(context.Context) error) error {
	return g.err
}

func TestQuoteGuardFallbacks(t *testing.T) {
	for name, guard := range map[string]KeyGuard{
		"coalesced":   coalescingGuard{},
		"unavailable": coalescingGuard{err: errors.New("redis down")},
	} {
		t.Run(name, func(t *testing.T) {
			f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Guard = guard })
			res, err := f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
			require.NoError(t, err)
			require.Equal(t, OutcomeStandard, res.Outcome)
			require.Equal(t, 1, f.catalog.callCount())
		})
	}
}

func TestQuoteLocalGuardCoalescesConcurrentMisses(t *testing.T) {
	f := newServiceFixture(t, func(cfg *ServiceConfig) { cfg.Guard = lock.NewLocal() })
	f.catalog.delay = 50 * time.Millisecond

	const callers = 8
	var wg sync.WaitGroup
	results := make([]Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.svc.Quote(context.Background(), quoteRequest(t, `{"sku":"DESK-1"}`))
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		require.Equal(t, results[0].Entry.QuoteRequestID, results[i].Entry.QuoteRequestID)
	}
	require.Equal(t, 1, f.catalog.callCount())
	require.Equal(t, 1, f.store.upsertCount())
}

func TestNewServiceRequiresCatalog(t *testing.T) {
	_, err := NewService(ServiceConfig{})
	require.Error(t, err)
}
