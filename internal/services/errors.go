package services

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrUnauthenticated     = errors.New("invalid credential")
	ErrForbidden           = errors.New("insufficient permissions")
	ErrInvalidCredentials  = errors.New("invalid email or password")
	ErrInvalidToken        = errors.New("invalid or expired refresh token")
	ErrUserNotFound        = errors.New("user not found")
	ErrEventNotFound       = errors.New("event not found")
	ErrEmailTaken          = errors.New("email already registered")
	ErrAlreadyCheckedIn    = errors.New("already checked in to this event")
	ErrCheckinNotOpen      = errors.New("check-in not open for this event")
	ErrCommentRequired     = errors.New("comment is required for this action")
	ErrUpstreamUnavailable = errors.New("identity provider unavailable")
)

// ValidationError reports rejected input, keyed by field.
type ValidationError struct {
	Fields map[string]string
}

func newValidationError(field, msg string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: msg}}
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = e.Fields[k]
	}
	return strings.Join(parts, "; ")
}

// IsValidation reports whether err is (or wraps) a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
