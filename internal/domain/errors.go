// Package domain defines the error taxonomy and storage ports shared by the
// Iceberg resolution core and its collaborators.
package domain

import (
	"errors"
	"fmt"
)

// ErrObjectNotFound is wrapped by FileIO implementations when the requested
// object does not exist. Any other retrieval failure must not wrap it.
var ErrObjectNotFound = errors.New("object not found")

// NotFoundError indicates a table location has no resolvable metadata document.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// SnapshotNotFoundError indicates a snapshot id or as-of timestamp matched nothing.
type SnapshotNotFoundError struct {
	Message string
}

func (e *SnapshotNotFoundError) Error() string { return e.Message }

// SchemaError indicates a document is present but structurally malformed.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// PathError indicates a file reference could not be resolved to a location.
type PathError struct {
	Message string
}

func (e *PathError) Error() string { return e.Message }

// IOError indicates a retrieval failed. Err carries the underlying cause.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("read %q: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// ErrNotFound creates a NotFoundError with a formatted message.
func ErrNotFound(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrSnapshotNotFound creates a SnapshotNotFoundError with a formatted message.
func ErrSnapshotNotFound(format string, args ...interface{}) *SnapshotNotFoundError {
	return &SnapshotNotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ErrSchema creates a SchemaError with a formatted message.
func ErrSchema(format string, args ...interface{}) *SchemaError {
	return &SchemaError{Message: fmt.Sprintf(format, args...)}
}

// ErrPath creates a PathError with a formatted message.
func ErrPath(format string, args ...interface{}) *PathError {
	return &PathError{Message: fmt.Sprintf(format, args...)}
}

// ErrIO wraps a retrieval failure for path.
func ErrIO(path string, err error) *IOError {
	return &IOError{Path: path, Err: err}
}

// IsObjectNotFound reports whether err signals a missing object.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}
