package engine

import "errors"

// Sentinel errors forming the error taxonomy of the service.  Every
// layer wraps one of these with fmt.Errorf("%w: ...") so handlers can
// map any failure to an HTTP status with errors.Is.
var (
	// ErrInvalidInput marks malformed or semantically invalid requests
	// (HTTP 400/422).
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound marks lookups of entities that do not exist or are
	// soft-deleted (HTTP 404).
	ErrNotFound = errors.New("not found")
	// ErrConflict marks violations of uniqueness or booking-overlap
	// rules (HTTP 409).
	ErrConflict = errors.New("conflict")
	// ErrForbidden marks operations on resources the caller does not
	// own (HTTP 403).
	ErrForbidden = errors.New("forbidden")
)
