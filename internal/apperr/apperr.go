package apperr

import "errors"

// Sentinel errors shared between services and handlers. Services wrap these
// with %w so handlers can map them to HTTP status codes with errors.Is.
var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation failed")
	ErrConflict     = errors.New("conflict")
	ErrExpired      = errors.New("expired")
	ErrExternal     = errors.New("external service failed")
)
