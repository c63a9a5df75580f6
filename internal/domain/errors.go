package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a business logic error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error for errors.Is/As support
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Domain validation errors
const (
	ErrCodeInvalidTransition    = "INVALID_TRANSITION"
	ErrCodeInvalidAmount        = "INVALID_AMOUNT"
	ErrCodeMissingRequiredField = "MISSING_REQUIRED_FIELD"
	ErrCodeRefundExceedsBalance = "REFUND_EXCEEDS_BALANCE"
	ErrCodeIntentNotFound       = "PAYMENT_INTENT_NOT_FOUND"
	ErrCodeDuplicateQueueItem   = "DUPLICATE_QUEUE_ITEM"
	ErrCodeGrantNotConsumable   = "GRANT_NOT_CONSUMABLE"
	ErrCodeVersionConflict      = "VERSION_CONFLICT"
	ErrCodeCaptureInFlight      = "CAPTURE_IN_FLIGHT"
)

func NewMissingRequiredFieldError(field string) *DomainError {
	return &DomainError{
		Code:    ErrCodeMissingRequiredField,
		Message: fmt.Sprintf("%s is required", field),
	}
}

func NewInvalidAmountError(amount int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidAmount,
		Message: fmt.Sprintf("invalid amount %d", amount),
	}
}

func NewInvalidTransitionError(from, to IntentStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeInvalidTransition,
		Message: fmt.Sprintf("cannot transition from %s to %s", from, to),
	}
}

func NewRefundExceedsBalanceError(requested, remaining int64) *DomainError {
	return &DomainError{
		Code:    ErrCodeRefundExceedsBalance,
		Message: fmt.Sprintf("refund of %d exceeds remaining captured balance %d", requested, remaining),
	}
}

func NewIntentNotFoundError(id string) *DomainError {
	return &DomainError{
		Code:    ErrCodeIntentNotFound,
		Message: fmt.Sprintf("payment intent %s not found", id),
	}
}

func NewDuplicateQueueItemError(intentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeDuplicateQueueItem,
		Message: fmt.Sprintf("an active capture item already exists for payment intent %s", intentID),
	}
}

func NewGrantNotConsumableError(grantID string, status GrantStatus) *DomainError {
	return &DomainError{
		Code:    ErrCodeGrantNotConsumable,
		Message: fmt.Sprintf("referral grant %s is %s, not PENDING", grantID, status),
	}
}

func NewVersionConflictError(intentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeVersionConflict,
		Message: fmt.Sprintf("payment intent %s was modified concurrently", intentID),
	}
}

func NewCaptureInFlightError(intentID string) *DomainError {
	return &DomainError{
		Code:    ErrCodeCaptureInFlight,
		Message: fmt.Sprintf("a capture attempt for payment intent %s is in flight, retry later", intentID),
	}
}

// IsErrorCode checks if an error is a DomainError with a specific code
func IsErrorCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
