package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"icescan/internal/domain"
)

// Compile-time checks: Router implements FileIO and Lister.
var _ domain.FileIO = (*Router)(nil)
var _ domain.Lister = (*Router)(nil)

// ErrListUnsupported is returned by List when the backend for a location
// cannot enumerate objects.
var ErrListUnsupported = errors.New("listing not supported")

// Router dispatches each location to the backend registered for its URI
// scheme. Locations without a scheme go to the local backend.
type Router struct {
	local    domain.FileIO
	backends map[string]domain.FileIO
	closers  []io.Closer
}

// NewRouter creates a router whose scheme-less locations use local.
func NewRouter(local domain.FileIO) *Router {
	r := &Router{local: local, backends: map[string]domain.FileIO{}}
	r.Register(local, "file")
	return r
}

// Register routes the given schemes to fio. Backends implementing io.Closer
// are closed by Close.
func (r *Router) Register(fio domain.FileIO, schemes ...string) {
	for _, s := range schemes {
		r.backends[strings.ToLower(s)] = fio
	}
	if c, ok := fio.(io.Closer); ok {
		r.closers = append(r.closers, c)
	}
}

// Schemes returns the registered schemes.
func (r *Router) Schemes() []string {
	out := make([]string, 0, len(r.backends))
	for s := range r.backends {
		out = append(out, s)
	}
	return out
}

// ReadFull reads location through its backend.
func (r *Router) ReadFull(ctx context.Context, location string) ([]byte, error) {
	fio, err := r.backend(location)
	if err != nil {
		return nil, err
	}
	return fio.ReadFull(ctx, location)
}

// Exists checks location through its backend.
func (r *Router) Exists(ctx context.Context, location string) (bool, error) {
	fio, err := r.backend(location)
	if err != nil {
		return false, err
	}
	return fio.Exists(ctx, location)
}

// List lists prefix through its backend.
func (r *Router) List(ctx context.Context, prefix string) ([]string, error) {
	fio, err := r.backend(prefix)
	if err != nil {
		return nil, err
	}
	lister, ok := fio.(domain.Lister)
	if !ok {
		return nil, fmt.Errorf("%s: %w", prefix, ErrListUnsupported)
	}
	return lister.List(ctx, prefix)
}

// Close closes every registered backend that holds resources.
func (r *Router) Close() error {
	var errs []error
	for _, c := range r.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (r *Router) backend(location string) (domain.FileIO, error) {
	scheme, _, ok := strings.Cut(location, "://")
	if !ok {
		return r.local, nil
	}
	fio, ok := r.backends[strings.ToLower(scheme)]
	if !ok {
		return nil, fmt.Errorf("no storage backend configured for scheme %q", scheme)
	}
	return fio, nil
}
