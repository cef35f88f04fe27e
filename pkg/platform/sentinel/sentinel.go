package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores return these (optionally
// wrapped) and services translate them into domain errors.
//
//   - ErrNotFound: record does not exist
//   - ErrConflict: optimistic check failed, the record changed underneath the caller
//   - ErrAlreadyUsed: a unique key (period name, rule version) is taken
//   - ErrLocked: the record belongs to a locked reporting period
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrAlreadyUsed = errors.New("already used")
	ErrLocked      = errors.New("locked")
	ErrUnavailable = errors.New("unavailable")
)
