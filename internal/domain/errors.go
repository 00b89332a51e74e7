package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation error")
	ErrPrecondition    = errors.New("precondition failed")
	ErrConflict        = errors.New("concurrent update conflict")
	ErrProviderFailure = errors.New("provider failure")
	ErrNotConfigured   = errors.New("not configured")
)

// IsClientError reports whether err was caused by the caller rather than by
// processing, so it must not flip a session to failed.
func IsClientError(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrPrecondition) || errors.Is(err, ErrNotFound)
}
