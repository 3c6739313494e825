package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"icescan/internal/domain"
)

// Compile-time checks: GCS implements FileIO and Lister.
var _ domain.FileIO = (*GCS)(nil)
var _ domain.Lister = (*GCS)(nil)

// GCS reads table files from Google Cloud Storage (gs://).
type GCS struct {
	client *storage.Client
}

// NewGCS creates a GCS FileIO. An empty keyFilePath uses application
// default credentials.
func NewGCS(ctx context.Context, keyFilePath string) (*GCS, error) {
	var opts []option.ClientOption
	if keyFilePath != "" {
		opts = append(opts, option.WithAuthCredentialsFile(option.ServiceAccount, keyFilePath))
	}
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create GCS client: %w", err)
	}
	return &GCS{client: client}, nil
}

// ReadFull downloads the object at location.
func (g *GCS) ReadFull(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := parseGCSPath(location)
	if err != nil {
		return nil, err
	}
	r, err := g.client.Bucket(bucket).Object(key).NewReader(ctx)
	if err != nil {
		if isGCSNotFound(err) {
			return nil, fmt.Errorf("%s: %w", location, domain.ErrObjectNotFound)
		}
		return nil, fmt.Errorf("open object %q: %w", location, err)
	}
	defer r.Close() //nolint:errcheck

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read object %q: %w", location, err)
	}
	return data, nil
}

// Exists reports whether the object at location exists.
func (g *GCS) Exists(ctx context.Context, location string) (bool, error) {
	bucket, key, err := parseGCSPath(location)
	if err != nil {
		return false, err
	}
	if _, err := g.client.Bucket(bucket).Object(key).Attrs(ctx); err != nil {
		if isGCSNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("stat object %q: %w", location, err)
	}
	return true, nil
}

// List returns the locations of all objects under prefix.
func (g *GCS) List(ctx context.Context, prefix string) ([]string, error) {
	bucket, keyPrefix, err := parseGCSPath(prefix)
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(prefix, keyPrefix)

	var out []string
	it := g.client.Bucket(bucket).Objects(ctx, &storage.Query{Prefix: keyPrefix})
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list objects under %q: %w", prefix, err)
		}
		out = append(out, base+attrs.Name)
	}
	return out, nil
}

// Close releases the underlying client.
func (g *GCS) Close() error {
	return g.client.Close()
}

func isGCSNotFound(err error) bool {
	return errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist)
}

// parseGCSPath extracts bucket and key from a "gs://bucket/path/to/file" URI.
func parseGCSPath(path string) (bucket, key string, err error) {
	u, err := url.Parse(path)
	if err != nil {
		return "", "", fmt.Errorf("parse GCS path %q: %w", path, err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("expected gs:// scheme, got %q in %q", u.Scheme, path)
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if key == "" {
		return "", "", fmt.Errorf("empty key in GCS path %q", path)
	}
	return bucket, key, nil
}
