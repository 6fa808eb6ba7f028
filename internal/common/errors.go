// Package common defines sentinel errors shared by the gateway layers.
// Callers should use errors.Is to match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors.
	ErrorInternal      = errors.New("internal error")
	ErrorUnauthorized  = errors.New("unauthorized")
	ErrorConflict      = errors.New("conflict")
	ErrorValidation    = errors.New("validation error")
	ErrorQuotaExceeded = errors.New("quota exceeded")
	ErrorStorage       = errors.New("storage error")

	// Auth errors (invalid or malformed credential).
	ErrInvalidToken = errors.New("invalid token")
)
