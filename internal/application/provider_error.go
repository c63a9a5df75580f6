package application

import (
	"errors"
	"fmt"
)

// ProviderError is a structured error returned by the payment provider.
type ProviderError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error [%s]: %s (status: %d)", e.Code, e.Message, e.StatusCode)
}

func (e *ProviderError) IsRetryable() bool {
	return e.StatusCode >= 500
}

func IsProviderError(err error) (*ProviderError, bool) {
	var provErr *ProviderError
	ok := errors.As(err, &provErr)
	return provErr, ok
}

// Provider error codes with idempotent-success semantics: the charge is
// already in the state the caller was driving it to.
const (
	ProviderCodeAlreadyCaptured = "already_captured"
	ProviderCodeAlreadyCanceled = "already_canceled"
	ProviderCodeAlreadyRefunded = "already_refunded"
)

// IsAlreadyInTargetState reports whether a provider error means the
// operation had already succeeded on a previous attempt.
func IsAlreadyInTargetState(err error, code string) bool {
	provErr, ok := IsProviderError(err)
	return ok && provErr.Code == code
}
