package domain

import "errors"

var (
	// ErrValidation a required field is empty.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound unknown delivery id.
	ErrNotFound = errors.New("delivery not found")
	// ErrInvalidField field name outside the edit allow-list.
	ErrInvalidField = errors.New("field is not editable")
	// ErrInvalidState edit attempted on a record that is no longer a draft.
	ErrInvalidState = errors.New("delivery is not a draft")
	// ErrInvalidTransition event not legal from the current status.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrUnauthorized actor lacks the role required for the action.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrStoreUnavailable persistence layer failure.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrNoSession the session handle is unknown, expired or superseded.
	ErrNoSession = errors.New("no active session")
)
