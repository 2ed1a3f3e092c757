package quotestore

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/shipquote/internal/quote"
)

// Memory keeps entries in process. Expired entries are dropped on read.
type Memory struct {
	mu      sync.RWMutex
	entries map[string]quote.Entry
	now     func() time.Time
}

// NewMemory returns an empty in-process store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]quote.Entry), now: time.Now}
}

func (m *Memory) Get(ctx context.Context, key string) (quote.Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return quote.Entry{}, false, err
	}
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok {
		return quote.Entry{}, false, nil
	}
	if e.ExpiresAt != nil && !m.now().Before(*e.ExpiresAt) {
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.ExpiresAt != nil && !m.now().Before(*cur.ExpiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return quote.Entry{}, false, nil
	}
	return e, true, nil
}

func (m *Memory) Upsert(ctx context.Context, e quote.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[e.QuoteKey] = e
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }
