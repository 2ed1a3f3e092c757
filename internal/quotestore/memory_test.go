package quotestore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/catalog"
	"github.com/noah-isme/shipquote/internal/quote"
)

func sampleEntry(key string, expiresAt *time.Time) quote.Entry {
	return quote.Entry{
		QuoteKey:        key,
		QuoteRequestID:  "8a1f0c3e-1111-4a4a-9b9b-000000000001",
		Destination:     quote.Destination{AddressLine1: "12 Main St", PostalCode: "62701", Country: "US"},
		Packages:        []quote.Package{{WeightLbs: 7, Dimensions: catalog.Dimensions{Length: 12, Width: 8, Height: 5}}},
		MissingProducts: []string{},
		InstallOnlySKUs: []string{"INSTALL-1"},
		CartSummary:     "DESK-1 x1",
		Source:          quote.SourceFresh,
		CreatedAt:       time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		ExpiresAt:       expiresAt,
	}
}

func TestMemoryRoundTrip(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	_, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.False(t, found)

	entry := sampleEntry("k1", nil)
	require.NoError(t, store.Upsert(ctx, entry))
	got, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, entry, got)

	entry.CartSummary = "DESK-1 x2"
	require.NoError(t, store.Upsert(ctx, entry))
	got, _, _ = store.Get(ctx, "k1")
	require.Equal(t, "DESK-1 x2", got.CartSummary)
	require.Equal(t, 1, store.Len())
}

func TestMemoryDropsExpired(t *testing.T) {
	store := NewMemory()
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	expires := now.Add(time.Minute)
	require.NoError(t, store.Upsert(context.Background(), sampleEntry("k1", &expires)))

	_, found, _ := store.Get(context.Background(), "k1")
	require.True(t, found)

	store.now = func() time.Time { return expires }
	_, found, err := store.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, found)
	require.Zero(t, store.Len())
}
