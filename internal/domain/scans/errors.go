package scans

import "errors"

// Failure taxonomy. Each sentinel maps to a stable machine-readable
// code at the HTTP boundary, so clients can tell "fix your input" from
// "try again later" from "not allowed".
var (
	// ErrInvalidRequest: bad input, nothing was attempted downstream.
	ErrInvalidRequest = errors.New("invalid scan request")

	// ErrClassifierUnreachable: connection refused or DNS failure.
	ErrClassifierUnreachable = errors.New("classifier unreachable")

	// ErrClassifierUnavailable: the bounded wait expired.
	ErrClassifierUnavailable = errors.New("classifier timed out")

	// ErrClassifierServerError: the classifier reported a 5xx.
	ErrClassifierServerError = errors.New("classifier server error")

	// ErrClassifierMalformed: response missing required fields or a
	// prediction outside the enumerated set.
	ErrClassifierMalformed = errors.New("malformed classifier response")

	// ErrPersistenceUnavailable: the ledger's backing store failed.
	ErrPersistenceUnavailable = errors.New("scan ledger unavailable")

	// ErrUnauthorized: owner-scoped operation without an identity.
	ErrUnauthorized = errors.New("authentication required")

	// ErrNotFound: owner-scoped lookup miss, including records owned
	// by someone else.
	ErrNotFound = errors.New("scan record not found")
)
