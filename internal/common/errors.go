package common

import (
	"errors"
	"net/http"
)

const (
	// CodeValidation marks user-correctable input problems.
	CodeValidation = "VALIDATION"
	// CodeInternal marks storage or network unavailability.
	CodeInternal = "INTERNAL"
	// CodePlatformAPI marks failures talking to the commerce platform.
	CodePlatformAPI = "PLATFORM_API"

	// InternalServerErrorMessage is the only message callers see for infrastructure failures.
	InternalServerErrorMessage = "Internal server error"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}

// ValidationError reports input the caller can fix. The message is shown to the user as is.
func ValidationError(message string) *AppError {
	return NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
}

// InfrastructureError wraps a storage or network failure. The wrapped error is
// kept for logs; callers only ever see InternalServerErrorMessage.
func InfrastructureError(err error) *AppError {
	return NewAppError(CodeInternal, InternalServerErrorMessage, http.StatusInternalServerError, err)
}

// PlatformAPIError wraps a failed call to the platform Admin API.
func PlatformAPIError(err error) *AppError {
	return NewAppError(CodePlatformAPI, "platform api request failed", http.StatusBadGateway, err)
}

// IsRetryable reports whether err is an infrastructure failure worth retrying.
func IsRetryable(err error) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Code == CodeInternal || appErr.Code == CodePlatformAPI
}
