package repository

import "github.com/iliyamo/ev-charging-reservation/internal/engine"

// The repository layer shares the engine's error taxonomy so that
// errors.Is matches regardless of which layer produced the failure.
// Handlers map these four sentinels onto HTTP statuses: 400, 404, 409
// and 403 respectively.
var (
	ErrInvalidInput = engine.ErrInvalidInput
	ErrNotFound     = engine.ErrNotFound
	ErrConflict     = engine.ErrConflict
	ErrForbidden    = engine.ErrForbidden
)
