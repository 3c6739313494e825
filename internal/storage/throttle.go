package storage

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"icescan/internal/domain"
)

// Compile-time checks: Throttled implements FileIO and Lister.
var _ domain.FileIO = (*Throttled)(nil)
var _ domain.Lister = (*Throttled)(nil)

// Throttled limits the request rate against an object store with a token
// bucket. Each ReadFull, Exists and List call takes one token and waits for
// it, so callers bound the wait through ctx.
type Throttled struct {
	next    domain.FileIO
	limiter *rate.Limiter
}

// NewThrottled wraps next with a limit of rps requests per second.
func NewThrottled(next domain.FileIO, rps float64, burst int) *Throttled {
	return &Throttled{next: next, limiter: rate.NewLimiter(rate.Limit(rps), max(burst, 1))}
}

// ReadFull waits for a token, then reads through the wrapped FileIO.
func (t *Throttled) ReadFull(ctx context.Context, location string) ([]byte, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle %q: %w", location, err)
	}
	return t.next.ReadFull(ctx, location)
}

// Exists waits for a token, then checks through the wrapped FileIO.
func (t *Throttled) Exists(ctx context.Context, location string) (bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return false, fmt.Errorf("throttle %q: %w", location, err)
	}
	return t.next.Exists(ctx, location)
}

// List waits for a token, then lists through the wrapped FileIO.
func (t *Throttled) List(ctx context.Context, prefix string) ([]string, error) {
	lister, ok := t.next.(domain.Lister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", prefix, ErrListUnsupported)
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("throttle %q: %w", prefix, err)
	}
	return lister.List(ctx, prefix)
}
