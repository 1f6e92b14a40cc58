// Package apperr holds the sentinel errors shared across layers. Callers wrap
// them with context and the API maps them onto status codes.
package apperr

import "errors"

var (
	// ErrNotFound: no image or file with the requested identity.
	ErrNotFound = errors.New("not found")
	// ErrConflict: a stored filename is already taken.
	ErrConflict = errors.New("conflict")
	// ErrInvalidInput: the request is malformed, e.g. a blank keyword or an
	// upload that is not an image.
	ErrInvalidInput = errors.New("invalid input")
)
