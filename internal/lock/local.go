package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrCallbackPanicked is returned by Local.WithLock when fn panics.
var ErrCallbackPanicked = errors.New("lock: callback panicked")

// Local coalesces concurrent callers that share a key within one process.
// Only the first caller runs fn; the others wait for it and receive its
// error without running fn themselves. A waiter whose ctx ends stops waiting
// and gets ctx.Err() while the first caller carries on.
type Local struct {
	group singleflight.Group
}

// NewLocal returns an empty in-process guard.
func NewLocal() *Local {
	return &Local{}
}

// WithLock implements the same contract as Locker.WithLock. ttl is unused
// since the guard is released as soon as fn returns.
func (l *Local) WithLock(ctx context.Context, key string, _ time.Duration, fn func(context.Context) error) error {
	if fn == nil {
		return errors.New("lock: callback not provided")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	var (
		mu        sync.Mutex
		started   bool
		abandoned bool
	)
	// Only the first caller's closure ever runs, on a goroutine of its own.
	ch := l.group.DoChan(key, func() (_ any, err error) {
		mu.Lock()
		if abandoned {
			mu.Unlock()
			return nil, ctx.Err()
		}
		started = true
		mu.Unlock()
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("%w: %v", ErrCallbackPanicked, p)
			}
		}()
		return nil, fn(ctx)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
	}

	mu.Lock()
	if started {
		// fn runs on this ctx and must not outlive WithLock.
		mu.Unlock()
		return (<-ch).Err
	}
	abandoned = true
	mu.Unlock()
	return ctx.Err()
}
