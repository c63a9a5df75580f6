package application

import (
	"errors"
	"fmt"
	"net/http"
)

// APPLICATION-LEVEL ERRORS (Orchestration)

type ServiceError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
}

func (e *ServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

const (
	ErrCodeInternal            = "INTERNAL_ERROR"
	ErrCodeInvalidInput        = "INVALID_INPUT"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeConflict            = "CONSISTENCY_CONFLICT"
	ErrCodePolicyViolation     = "POLICY_VIOLATION"
	ErrCodeProviderDeclined    = "PROVIDER_DECLINED"
	ErrCodeProviderUnavailable = "PROVIDER_UNAVAILABLE"
	ErrCodeTimeout             = "TIMEOUT"
)

func NewInternalError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInternal,
		Message:    "An internal error occurred",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

func NewInvalidInputError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidInput,
		Message:    "Invalid input",
		HTTPStatus: http.StatusBadRequest,
		Err:        err,
	}
}

func NewInvalidStateError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeInvalidState,
		Message:    "Invalid state",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

// NewConflictError signals an optimistic-lock collision or an in-flight
// capture racing the caller. The caller retries the whole operation.
func NewConflictError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeConflict,
		Message:    "The payment was modified concurrently, retry the operation",
		HTTPStatus: http.StatusConflict,
		Err:        err,
	}
}

func NewPolicyViolationError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodePolicyViolation,
		Message:    "The requested amount violates the refund policy",
		HTTPStatus: http.StatusUnprocessableEntity,
		Err:        err,
	}
}

func NewProviderDeclinedError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProviderDeclined,
		Message:    "The payment provider declined the request",
		HTTPStatus: http.StatusPaymentRequired,
		Err:        err,
	}
}

func NewProviderUnavailableError(err error) *ServiceError {
	return &ServiceError{
		Code:       ErrCodeProviderUnavailable,
		Message:    "The payment provider is temporarily unavailable",
		HTTPStatus: http.StatusBadGateway,
		Err:        err,
	}
}

func IsServiceError(err error) (*ServiceError, bool) {
	var svcErr *ServiceError
	ok := errors.As(err, &svcErr)
	return svcErr, ok
}
