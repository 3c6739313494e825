// Package storage implements domain.FileIO for the local filesystem and the
// object stores tables live on (S3, Azure Blob Storage, GCS).
package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"icescan/internal/domain"
)

// Compile-time checks: Local implements FileIO and Lister.
var _ domain.FileIO = (*Local)(nil)
var _ domain.Lister = (*Local)(nil)

// Local reads table files from the local filesystem. Locations may be plain
// paths or file:// URIs.
type Local struct{}

// NewLocal creates a local filesystem FileIO.
func NewLocal() *Local { return &Local{} }

// ReadFull returns the contents of the file at location.
func (l *Local) ReadFull(_ context.Context, location string) ([]byte, error) {
	data, err := os.ReadFile(localPath(location))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", location, domain.ErrObjectNotFound)
		}
		return nil, err
	}
	return data, nil
}

// Exists reports whether a regular file exists at location.
func (l *Local) Exists(_ context.Context, location string) (bool, error) {
	info, err := os.Stat(localPath(location))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

// List returns the files directly under the directory part of prefix whose
// names start with the remainder of prefix.
func (l *Local) List(_ context.Context, prefix string) ([]string, error) {
	dirPart := prefix[:strings.LastIndex(prefix, "/")+1]
	namePrefix := prefix[len(dirPart):]

	dir := localPath(dirPart)
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(filepath.FromSlash(dir))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), namePrefix) {
			continue
		}
		out = append(out, dirPart+e.Name())
	}
	return out, nil
}

func localPath(location string) string {
	if rest, ok := strings.CutPrefix(location, "file://"); ok {
		return rest
	}
	return strings.TrimPrefix(location, "file:")
}
