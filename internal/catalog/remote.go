package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/shipquote/internal/resilience"
)

const resolvePath = "/shipping-profiles:resolve"

// RemoteConfig configures the HTTP catalog client.
type RemoteConfig struct {
	BaseURL     string
	ServiceKey  string
	Timeout     time.Duration
	MaxAttempts int
	Logger      zerolog.Logger
}

// Remote resolves profiles from an upstream product service over HTTP.
type Remote struct {
	baseURL    string
	serviceKey string
	client     resilience.HTTPClient
	logger     zerolog.Logger
}

type resolveRequest struct {
	SKUs   []string `json:"skus"`
	IDs    []string `json:"ids"`
	Titles []string `json:"titles"`
}

type resolveResponse struct {
	Profiles []Profile `json:"profiles"`
}

// NewRemote constructs a catalog client guarded by a circuit breaker and retries.
func NewRemote(cfg RemoteConfig) *Remote {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Target:       "catalog",
		MinRequests:  5,
		FailureRatio: 0.5,
		OpenFor:      30 * time.Second,
		Logger:       cfg.Logger,
	})
	return &Remote{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		serviceKey: cfg.ServiceKey,
		client: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker:     breaker,
			BaseBackoff: 100 * time.Millisecond,
			MaxAttempts: cfg.MaxAttempts,
			Jitter:      0.2,
			Timeout:     timeout,
		},
		logger: cfg.Logger,
	}
}

// Resolve posts the identifiers to the upstream resolve endpoint.
func (r *Remote) Resolve(ctx context.Context, skus, ids, titles []string) ([]Profile, error) {
	if r.baseURL == "" {
		return nil, errors.New("catalog: remote base url not configured")
	}
	if len(skus)+len(ids)+len(titles) == 0 {
		return nil, nil
	}
	payload, err := json.Marshal(resolveRequest{SKUs: nonNil(skus), IDs: nonNil(ids), Titles: nonNil(titles)})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+resolvePath, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if r.serviceKey != "" {
		req.Header.Set("X-Service-Key", r.serviceKey)
	}

	resp, err := r.client.Do(ctx, req)
	if err != nil {
		r.logger.Warn().Err(err).Msg("catalog_remote_request_failed")
		return nil, fmt.Errorf("catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("catalog returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out resolveResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode catalog response: %w", err)
	}
	return out.Profiles, nil
}

// Ping checks the upstream is reachable; any HTTP reply counts as alive.
func (r *Remote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, r.baseURL+resolvePath, nil)
	if err != nil {
		return err
	}
	resp, err := r.client.Client.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
