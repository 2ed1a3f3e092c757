package quotestore

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/shipquote/internal/db"
	"github.com/noah-isme/shipquote/internal/quote"
)

type fakeRow struct {
	payload []byte
	err     error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	*(dest[0].(*[]byte)) = r.payload
	return nil
}

type fakeQuerier struct {
	row      fakeRow
	execSQL  string
	execArgs []any
	execErr  error
	affected int64
}

func (f *fakeQuerier) QueryRow(context.Context, string, ...any) pgx.Row {
	return f.row
}

func (f *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.execSQL = sql
	f.execArgs = args
	if f.execErr != nil {
		return pgconn.CommandTag{}, f.execErr
	}
	return pgconn.NewCommandTag("DELETE " + strconv.FormatInt(f.affected, 10)), nil
}

func TestPostgresGet(t *testing.T) {
	entry := sampleEntry("k1", nil)
	payload, err := json.Marshal(entry)
	require.NoError(t, err)

	store := NewPostgres(&fakeQuerier{row: fakeRow{payload: payload}})
	got, found, err := store.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, entry, got)

	store = NewPostgres(&fakeQuerier{row: fakeRow{err: pgx.ErrNoRows}})
	_, found, err = store.Get(context.Background(), "k1")
	require.NoError(t, err)
	require.False(t, found)

	boom := errors.New("conn closed")
	store = NewPostgres(&fakeQuerier{row: fakeRow{err: boom}})
	_, _, err = store.Get(context.Background(), "k1")
	require.ErrorIs(t, err, boom)
}

func TestPostgresUpsertArgs(t *testing.T) {
	q := &fakeQuerier{}
	store := NewPostgres(q)
	expires := time.Date(2024, 5, 1, 12, 30, 0, 0, time.UTC)
	entry := sampleEntry("k1", &expires)

	require.NoError(t, store.Upsert(context.Background(), entry))
	require.Contains(t, q.execSQL, "ON CONFLICT (quote_key) DO UPDATE")
	require.Equal(t, "k1", q.execArgs[0])
	require.Equal(t, entry.QuoteRequestID, q.execArgs[1])
	require.Equal(t, entry.CreatedAt, q.execArgs[3])
	require.Equal(t, &expires, q.execArgs[4])

	var stored quote.Entry
	require.NoError(t, json.Unmarshal(q.execArgs[2].([]byte), &stored))
	require.Equal(t, entry.Packages, stored.Packages)
}

func TestPostgresDeleteExpired(t *testing.T) {
	q := &fakeQuerier{affected: 3}
	n, err := NewPostgres(q).DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 3, n)
}

func TestPostgresIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()
	require.NoError(t, db.Migrate(ctx, dsn))
	pool, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store := NewPostgres(pool)
	key := "it-" + time.Now().Format("150405.000000")
	expires := time.Now().Add(time.Hour).UTC().Truncate(time.Millisecond)
	entry := sampleEntry(key, &expires)
	t.Cleanup(func() { _, _ = pool.Exec(ctx, `DELETE FROM shipping_quotes WHERE quote_key = $1`, key) })

	require.NoError(t, store.Upsert(ctx, entry))
	entry.CartSummary = "DESK-1 x3"
	require.NoError(t, store.Upsert(ctx, entry))

	got, found, err := store.Get(ctx, key)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, "DESK-1 x3", got.CartSummary)
	require.True(t, expires.Equal(*got.ExpiresAt))
}
