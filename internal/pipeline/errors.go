package pipeline

import (
	"context"
	"errors"

	"brandmerch/internal/domain"
	"brandmerch/internal/retry"
)

// Retryable classifies errors for external calls. Caller mistakes, missing
// configuration and cancellation are final; provider errors defer to their
// HTTP status.
func Retryable(err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, domain.ErrValidation),
		errors.Is(err, domain.ErrPrecondition),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrNotConfigured),
		errors.Is(err, domain.ErrUnauthorized):
		return false
	}
	return retry.IsRetryable(err)
}

// marksFailed reports whether err should move the session to failed.
// Client errors, lost races and cancelled requests leave it untouched.
func marksFailed(err error) bool {
	switch {
	case domain.IsClientError(err),
		errors.Is(err, domain.ErrConflict),
		errors.Is(err, context.Canceled):
		return false
	}
	return true
}
