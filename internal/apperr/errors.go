// Package apperr holds the error taxonomy shared by every store backend.
package apperr

import "errors"

var (
	// ErrNotFound covers absent keys and lines that could not be parsed.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	// ErrStorage wraps every filesystem or database failure.
	ErrStorage = errors.New("storage failure")
	// ErrMalformed marks a record line that matches no known shape.
	ErrMalformed = errors.New("malformed record")
	// ErrInvalidCredentials is returned for both unknown users and wrong
	// passwords so callers cannot discover which usernames exist.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalid            = errors.New("invalid input")
)
