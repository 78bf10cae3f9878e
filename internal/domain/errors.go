package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrForbidden         = errors.New("forbidden")
	ErrConflict          = errors.New("conflict")
	ErrAlreadyFinal      = errors.New("generation already finalized")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrOverloaded        = errors.New("model overloaded")
)

// ErrorKind is the machine readable error class carried on the wire next to
// the human readable message.
type ErrorKind string

const (
	KindValidation     ErrorKind = "validation"
	KindAuthentication ErrorKind = "authentication"
	KindAuthorization  ErrorKind = "authorization"
	KindNotFound       ErrorKind = "not_found"
	KindConflict       ErrorKind = "conflict"
	KindOverloaded     ErrorKind = "overloaded"
	KindRateLimited    ErrorKind = "rate_limited"
	KindInternal       ErrorKind = "internal"
)
