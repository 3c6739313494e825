package domain

import "context"

// FileIO retrieves table files in full. Implemented by the storage package
// (local filesystem, S3, Azure Blob Storage, GCS) and by test doubles.
type FileIO interface {
	// ReadFull returns the complete contents of the object at path. A missing
	// object is reported with an error wrapping ErrObjectNotFound.
	ReadFull(ctx context.Context, path string) ([]byte, error)
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// Lister is implemented by FileIO backends that can enumerate objects.
type Lister interface {
	// List returns the full locations of all objects whose location starts
	// with prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
