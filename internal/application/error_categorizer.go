package application

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/rideloop/payments/internal/domain"
)

// ErrorCategory represents the nature of an error for retry logic
type ErrorCategory string

const (
	// CategoryTransient: timeouts, network failures, provider 5xx.
	// Retried with backoff up to the queue item's attempt ceiling.
	CategoryTransient ErrorCategory = "TRANSIENT"
	// CategoryTerminal: explicit provider declines and invalid requests.
	// Never retried; the ledger goes to FAILED for manual remediation.
	CategoryTerminal ErrorCategory = "TERMINAL"
	// CategoryValidation: bad amounts and illegal state transitions.
	// Surfaced to the caller, never retried.
	CategoryValidation ErrorCategory = "VALIDATION"
	// CategoryConflict: optimistic-lock collisions and in-flight capture
	// races. The caller retries the whole operation.
	CategoryConflict ErrorCategory = "CONFLICT"
	// CategoryPolicy: refund/fee policy violations. Rejected outright.
	CategoryPolicy ErrorCategory = "POLICY"
)

// CategorizeError determines error category for retry and logging purposes
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	// Context errors: network/timeout, outcome unknown until reconciled.
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return CategoryTransient
	}

	if domain.IsErrorCode(err, domain.ErrCodeVersionConflict) ||
		domain.IsErrorCode(err, domain.ErrCodeCaptureInFlight) ||
		domain.IsErrorCode(err, domain.ErrCodeDuplicateQueueItem) {
		return CategoryConflict
	}

	if domain.IsErrorCode(err, domain.ErrCodeRefundExceedsBalance) {
		return CategoryPolicy
	}

	if domain.IsErrorCode(err, domain.ErrCodeInvalidTransition) ||
		domain.IsErrorCode(err, domain.ErrCodeInvalidAmount) ||
		domain.IsErrorCode(err, domain.ErrCodeMissingRequiredField) ||
		domain.IsErrorCode(err, domain.ErrCodeGrantNotConsumable) {
		return CategoryValidation
	}

	if svcErr, ok := IsServiceError(err); ok {
		switch svcErr.Code {
		case ErrCodeConflict:
			return CategoryConflict
		case ErrCodePolicyViolation:
			return CategoryPolicy
		case ErrCodeInvalidInput, ErrCodeInvalidState:
			return CategoryValidation
		case ErrCodeProviderDeclined:
			return CategoryTerminal
		case ErrCodeProviderUnavailable, ErrCodeTimeout:
			return CategoryTransient
		}
	}

	if provErr, ok := IsProviderError(err); ok {
		if provErr.StatusCode >= 500 {
			return CategoryTransient
		}

		switch provErr.Code {
		// TERMINAL: the instrument or charge cannot be driven further.
		case "card_declined",
			"insufficient_funds",
			"instrument_invalid",
			"authorization_expired",
			"authorization_voided",
			"amount_exceeds_authorization",
			"charge_not_found":
			return CategoryTerminal

		// TRANSIENT: provider-side infrastructure trouble.
		case "internal_error", "rate_limited":
			return CategoryTransient

		default:
			return CategoryTerminal
		}
	}

	// Default: transient. Unknown failures get reconciled, not declared.
	return CategoryTransient
}

// IsRetryable returns true if the error category suggests retry
func IsRetryable(err error) bool {
	return CategorizeError(err) == CategoryTransient
}

// ToHTTPStatus maps error to appropriate HTTP status code
func ToHTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}

	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.HTTPStatus
	}

	if domain.IsErrorCode(err, domain.ErrCodeIntentNotFound) {
		return http.StatusNotFound
	}

	switch CategorizeError(err) {
	case CategoryValidation:
		return http.StatusBadRequest
	case CategoryConflict:
		return http.StatusConflict
	case CategoryPolicy:
		return http.StatusUnprocessableEntity
	case CategoryTerminal:
		return http.StatusPaymentRequired
	case CategoryTransient:
		return http.StatusBadGateway
	}

	return http.StatusInternalServerError
}

// ToErrorCode clear error code for API responses
func ToErrorCode(err error) string {
	if svcErr, ok := IsServiceError(err); ok {
		return svcErr.Code
	}

	var domainErr *domain.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}

	if provErr, ok := IsProviderError(err); ok {
		return strings.ToUpper(provErr.Code)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrCodeTimeout
	}

	return ErrCodeInternal
}
