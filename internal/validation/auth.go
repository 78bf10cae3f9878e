package validation

import (
	"net/mail"
	"strings"
)

const (
	MinPasswordLength = 6
	// MaxPasswordBytes is the bcrypt input limit.
	MaxPasswordBytes = 72
)

// Email trims surrounding whitespace and checks the address shape. Case is
// preserved.
func Email(raw string) (string, error) {
	email := strings.TrimSpace(raw)
	if email == "" || len(email) > 254 {
		return "", ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}

// Password enforces signup password bounds.
func Password(raw string) error {
	if len([]rune(raw)) < MinPasswordLength {
		return newError("password", "Password must be at least %d characters", MinPasswordLength)
	}
	if len(raw) > MaxPasswordBytes {
		return newError("password", "Password must be at most %d bytes", MaxPasswordBytes)
	}
	return nil
}
