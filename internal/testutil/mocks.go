// Package testutil provides an in-memory FileIO and Iceberg table fixtures
// for use in tests across the codebase. This follows the Go convention of a
// shared test utility package (like net/http/httptest).
package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"icescan/internal/domain"
)

// Store receives fixture files.
type Store interface {
	Put(location string, data []byte)
}

// === In-memory FileIO ===

// Compile-time checks: MemFileIO implements FileIO and Lister.
var _ domain.FileIO = (*MemFileIO)(nil)
var _ domain.Lister = (*MemFileIO)(nil)

// MemFileIO implements domain.FileIO and domain.Lister over a map. The Fn
// fields, when set, run before the map lookup; a non-nil error from them is
// returned as-is.
type MemFileIO struct {
	mu    sync.Mutex
	files map[string][]byte
	reads []string

	ReadFullFn func(ctx context.Context, location string) error
	ExistsFn   func(ctx context.Context, location string) error
	ListFn     func(ctx context.Context, prefix string) error
}

// NewMemFileIO creates an empty in-memory FileIO.
func NewMemFileIO() *MemFileIO {
	return &MemFileIO{files: map[string][]byte{}}
}

// Put stores data at location.
func (m *MemFileIO) Put(location string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[location] = data
}

// Delete removes location.
func (m *MemFileIO) Delete(location string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, location)
}

// ReadFull implements the interface method for testing.
func (m *MemFileIO) ReadFull(ctx context.Context, location string) ([]byte, error) {
	if m.ReadFullFn != nil {
		if err := m.ReadFullFn(ctx, location); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, location)
	data, ok := m.files[location]
	if !ok {
		return nil, fmt.Errorf("%s: %w", location, domain.ErrObjectNotFound)
	}
	return data, nil
}

// Exists implements the interface method for testing.
func (m *MemFileIO) Exists(ctx context.Context, location string) (bool, error) {
	if m.ExistsFn != nil {
		if err := m.ExistsFn(ctx, location); err != nil {
			return false, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[location]
	return ok, nil
}

// List implements the interface method for testing.
func (m *MemFileIO) List(ctx context.Context, prefix string) ([]string, error) {
	if m.ListFn != nil {
		if err := m.ListFn(ctx, prefix); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for loc := range m.files {
		if strings.HasPrefix(loc, prefix) {
			out = append(out, loc)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Reads returns every location passed to ReadFull, in call order.
func (m *MemFileIO) Reads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.reads...)
}

// WithoutLister hides the List method of fio.
func WithoutLister(fio domain.FileIO) domain.FileIO {
	return struct{ domain.FileIO }{fio}
}

// === Local directory store ===

// DirStore writes fixture files to the local filesystem. Locations are
// plain paths.
type DirStore struct {
	tb testing.TB
}

// NewDirStore creates a store that fails tb on write errors.
func NewDirStore(tb testing.TB) *DirStore {
	return &DirStore{tb: tb}
}

// Put writes data at location, creating parent directories.
func (d *DirStore) Put(location string, data []byte) {
	d.tb.Helper()
	if err := os.MkdirAll(filepath.Dir(location), 0o755); err != nil {
		d.tb.Fatal(err)
	}
	if err := os.WriteFile(location, data, 0o644); err != nil {
		d.tb.Fatal(err)
	}
}
