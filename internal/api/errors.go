package api

import (
	"errors"
	"net/http"

	"icescan/internal/domain"
)

// apiError is the client-facing form of a failure. Message never carries
// document bytes or backend detail; those stay in the server log.
type apiError struct {
	Status  int
	Code    string
	Message string
}

// apiErrorFromDomainError maps domain errors to HTTP status codes, a stable
// error code and a client-safe message.
func apiErrorFromDomainError(err error) apiError {
	var notFound *domain.NotFoundError
	var snapNotFound *domain.SnapshotNotFoundError
	var schema *domain.SchemaError
	var pathErr *domain.PathError
	var ioErr *domain.IOError

	switch {
	case errors.As(err, &notFound):
		return apiError{http.StatusNotFound, "TABLE_NOT_FOUND", "table has no metadata document"}
	case errors.As(err, &snapNotFound):
		return apiError{http.StatusNotFound, "SNAPSHOT_NOT_FOUND", snapNotFound.Message}
	case errors.As(err, &schema):
		return apiError{http.StatusUnprocessableEntity, "SCHEMA_ERROR", "table metadata is malformed"}
	case errors.As(err, &pathErr):
		return apiError{http.StatusUnprocessableEntity, "PATH_ERROR", "a file reference in the table metadata cannot be resolved"}
	case errors.As(err, &ioErr):
		return apiError{http.StatusBadGateway, "IO_ERROR", "reading table storage failed"}
	default:
		return apiError{http.StatusInternalServerError, "INTERNAL_ERROR", "internal error"}
	}
}
