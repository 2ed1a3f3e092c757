package resilience

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrUpstreamStatus marks attempts that reached the dependency but got a 5xx reply.
var ErrUpstreamStatus = errors.New("resilience: upstream returned server error")

// HTTPClient wraps an http.Client with per-attempt timeouts, retries with
// jittered backoff and an optional circuit breaker. 4xx replies are returned
// to the caller as-is; transport errors and 5xx replies are retried.
type HTTPClient struct {
	Client      *http.Client
	Breaker     *Breaker
	BaseBackoff time.Duration
	MaxAttempts int
	Jitter      float64
	Timeout     time.Duration
	Fallback    func(context.Context, *http.Request, error) (*http.Response, error)
}

// Do sends req until it succeeds, attempts run out or the breaker opens.
// The body is buffered once so every attempt replays it. Without a Fallback
// the last error is returned (ErrOpenCircuit when the breaker refused).
func (cl HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if cl.Client == nil {
		return nil, errors.New("resilience: http client not configured")
	}
	body, err := readBody(req)
	if err != nil {
		return nil, err
	}
	attempts := max(cl.MaxAttempts, 1)
	target := cl.target()

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if cl.Breaker != nil && !cl.Breaker.Allow(ctx) {
			UpstreamAttempts.WithLabelValues(target, "rejected").Inc()
			lastErr = ErrOpenCircuit
			break
		}
		resp, err := cl.attempt(ctx, req, body)
		switch {
		case err == nil && resp.StatusCode < http.StatusInternalServerError:
			UpstreamAttempts.WithLabelValues(target, "ok").Inc()
			cl.report(ctx, true)
			return resp, nil
		case err == nil:
			UpstreamAttempts.WithLabelValues(target, "server_error").Inc()
			lastErr = fmt.Errorf("%w: %s", ErrUpstreamStatus, resp.Status)
			drain(resp)
		default:
			UpstreamAttempts.WithLabelValues(target, "error").Inc()
			lastErr = err
		}
		cl.report(ctx, false)
		if attempt == attempts {
			break
		}
		if err := sleep(ctx, Backoff(cl.BaseBackoff, attempt, cl.Jitter)); err != nil {
			return nil, err
		}
	}

	if cl.Fallback != nil {
		return cl.Fallback(ctx, req, lastErr)
	}
	return nil, lastErr
}

func (cl HTTPClient) target() string {
	if cl.Breaker != nil {
		return cl.Breaker.cfg.Target
	}
	return "default"
}

func (cl HTTPClient) report(ctx context.Context, ok bool) {
	if cl.Breaker != nil {
		cl.Breaker.Report(ctx, ok)
	}
}

// attempt runs one request bounded by Timeout. The response body stays
// readable after return because the attempt context is released on Close.
func (cl HTTPClient) attempt(ctx context.Context, req *http.Request, body []byte) (*http.Response, error) {
	timeout := cl.Timeout
	if timeout <= 0 {
		timeout = cl.Client.Timeout
	}
	callCtx, cancel := context.WithCancel(ctx)
	if timeout > 0 {
		callCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	clone := req.Clone(callCtx)
	if body != nil {
		clone.Body = io.NopCloser(bytes.NewReader(body))
		clone.GetBody = func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(body)), nil }
		clone.ContentLength = int64(len(body))
	}
	resp, err := cl.Client.Do(clone)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}

func readBody(req *http.Request) ([]byte, error) {
	if req.Body == nil || req.Body == http.NoBody {
		return nil, nil
	}
	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("resilience: buffer request body: %w", err)
	}
	return data, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func drain(resp *http.Response) {
	if resp == nil || resp.Body == nil {
		return
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
