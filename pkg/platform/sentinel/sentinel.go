package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors:
// - ErrNotFound: the keyed record does not exist
// - ErrConflict: a write collided with existing state
// - ErrInvalidState: the record is in the wrong state for the operation
// - ErrUnavailable: the backing store or upstream is temporarily unavailable
//
// Validation failures belong in pkg/domain-errors, not here.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
