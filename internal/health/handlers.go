package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Probe checks a single dependency.
type Probe func(ctx context.Context) error

var ready atomic.Bool

func init() { ready.Store(true) }

// SetReady toggles readiness; the server flips it off while draining.
func SetReady(v bool) { ready.Store(v) }

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and reports 503 when any fails or the
// server is shutting down.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	status := map[string]string{}
	healthy := ready.Load()
	if !healthy {
		status["server"] = "draining"
	}

	names := make([]string, 0, len(h.Probes))
	for name := range h.Probes {
		names = append(names, name)
	}
	sort.Strings(names)

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, name := range names {
		probe := h.Probes[name]
		wg.Add(1)
		go func(name string, probe Probe) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
			defer cancel()
			result := "ok"
			if err := probe(ctx); err != nil {
				result = err.Error()
			}
			mu.Lock()
			status[name] = result
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	for _, name := range names {
		if status[name] != "ok" {
			healthy = false
		}
	}
	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}
