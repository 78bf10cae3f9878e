package validation

import "fmt"

// Error is a user-correctable input problem. Its message is shown to clients
// verbatim.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(field, format string, args ...any) *Error {
	return &Error{Field: field, Message: fmt.Sprintf(format, args...)}
}

var (
	ErrImageRequired    = &Error{Field: "image", Message: "Image file is required"}
	ErrInvalidImageType = &Error{Field: "image", Message: "Only JPEG and PNG images are allowed"}
	ErrImageTooLarge    = &Error{Field: "image", Message: "Image must be 10MB or smaller"}
	ErrPromptRequired   = &Error{Field: "prompt", Message: "Prompt is required"}
	ErrPromptTooLong    = &Error{Field: "prompt", Message: fmt.Sprintf("Prompt must be at most %d characters", MaxPromptLength)}
	ErrInvalidEmail     = &Error{Field: "email", Message: "A valid email is required"}
)
