package quotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/shipquote/internal/quote"
)

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Postgres persists entries in the shipping_quotes table.
type Postgres struct {
	db querier
}

// NewPostgres wraps a pgx pool (or any compatible querier).
func NewPostgres(db querier) *Postgres {
	return &Postgres{db: db}
}

const getQuoteSQL = `SELECT payload FROM shipping_quotes WHERE quote_key = $1`

const upsertQuoteSQL = `
INSERT INTO shipping_quotes (quote_key, quote_request_id, payload, created_at, expires_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (quote_key) DO UPDATE
SET quote_request_id = EXCLUDED.quote_request_id,
    payload          = EXCLUDED.payload,
    created_at       = EXCLUDED.created_at,
    expires_at       = EXCLUDED.expires_at
`

const deleteExpiredSQL = `DELETE FROM shipping_quotes WHERE expires_at IS NOT NULL AND expires_at <= $1`

func (p *Postgres) Get(ctx context.Context, key string) (quote.Entry, bool, error) {
	var payload []byte
	if err := p.db.QueryRow(ctx, getQuoteSQL, key).Scan(&payload); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return quote.Entry{}, false, nil
		}
		return quote.Entry{}, false, fmt.Errorf("select quote: %w", err)
	}
	var e quote.Entry
	if err := json.Unmarshal(payload, &e); err != nil {
		return quote.Entry{}, false, fmt.Errorf("decode quote %s: %w", key, err)
	}
	return e, true, nil
}

func (p *Postgres) Upsert(ctx context.Context, e quote.Entry) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	var requestID any
	if e.QuoteRequestID != "" {
		requestID = e.QuoteRequestID
	}
	if _, err := p.db.Exec(ctx, upsertQuoteSQL, e.QuoteKey, requestID, payload, e.CreatedAt, e.ExpiresAt); err != nil {
		return fmt.Errorf("upsert quote: %w", err)
	}
	return nil
}

// DeleteExpired removes entries that expired before now and reports how many went.
func (p *Postgres) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	tag, err := p.db.Exec(ctx, deleteExpiredSQL, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired quotes: %w", err)
	}
	return tag.RowsAffected(), nil
}
