package catalog

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/db"
)

type failingQuerier struct{ err error }

func (f failingQuerier) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, f.err
}

func TestProfileRowDimensions(t *testing.T) {
	l, w, h := 10.0, 8.0, 4.0
	full := profileRow{ID: "p1", Length: &l, Width: &w, Height: &h}.profile()
	require.Equal(t, &Dimensions{Length: 10, Width: 8, Height: 4}, full.Dimensions)

	partial := profileRow{ID: "p2", Length: &l, BoxDimensions: "10x8x4"}.profile()
	require.Nil(t, partial.Dimensions)
	require.Equal(t, "10x8x4", partial.BoxDimensions)
	require.True(t, partial.NeedsShipping())
}

func TestPostgresResolveWrapsQueryError(t *testing.T) {
	boom := errors.New("connection refused")
	cat := NewPostgres(failingQuerier{err: boom}, zerolog.Nop())

	_, err := cat.Resolve(context.Background(), []string{"SKU"}, nil, nil)
	require.ErrorIs(t, err, boom)
}

func TestPostgresResolveEmptyBatchSkipsQuery(t *testing.T) {
	cat := NewPostgres(failingQuerier{err: errors.New("should not be called")}, zerolog.Nop())
	got, err := cat.Resolve(context.Background(), nil, nil, nil)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestPostgresResolveIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, dsn))
	pool, err := db.NewPool(ctx, db.PoolConfig{DSN: dsn, MaxConns: 2})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
INSERT INTO products (id, sku, title, requires_shipping, weight_lbs, length_in, width_in, height_in, ships_alone)
VALUES ('it-desk', 'IT-DESK', 'IT Desk', NULL, 40, 48, 24, 6, true),
       ('it-svc', 'IT-SVC', 'IT Install', false, 0, NULL, NULL, NULL, false)
ON CONFLICT (id) DO NOTHING`)
	require.NoError(t, err)
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM products WHERE id LIKE 'it-%'`) })

	cat := NewPostgres(pool, zerolog.Nop())
	got, err := cat.Resolve(ctx, []string{"IT-DESK"}, nil, []string{"IT Install"})
	require.NoError(t, err)
	require.Len(t, got, 2)

	byID := map[string]Profile{}
	for _, p := range got {
		byID[p.ID] = p
	}
	require.True(t, byID["it-desk"].NeedsShipping())
	require.True(t, byID["it-desk"].ShipsAlone)
	require.Equal(t, &Dimensions{Length: 48, Width: 24, Height: 6}, byID["it-desk"].Dimensions)
	require.False(t, byID["it-svc"].NeedsShipping())
	require.Nil(t, byID["it-svc"].Dimensions)
}
