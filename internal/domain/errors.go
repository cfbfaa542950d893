package domain

import "errors"

var (
	// ErrValidation signals malformed or missing input at a boundary.
	ErrValidation = errors.New("validation failed")
	// ErrNotConfigured signals a capability without endpoint or credentials.
	// Gateways always wrap it together with ErrUnavailable.
	ErrNotConfigured = errors.New("capability not configured")
	// ErrUnavailable signals that a remote capability produced no usable answer
	// (timeout, non-success status, malformed body, missing configuration).
	ErrUnavailable = errors.New("capability unavailable")
	// ErrNotApplicable signals that the captioning model judged the image out of scope.
	ErrNotApplicable = errors.New("not applicable")
	// ErrStoreUnavailable signals a failure initializing or querying the record store.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrRecordNotFound signals a record id absent from the store.
	ErrRecordNotFound = errors.New("record not found")
	// ErrNoMatch signals that every retrieval tier came back empty.
	ErrNoMatch = errors.New("no match")
)
