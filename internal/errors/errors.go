package errors

import (
	"net/http"
)

// ErrorCode represents a standardized error code
type ErrorCode string

const (
	// Request errors (400xx)
	ErrInvalidRequest   ErrorCode = "40001"
	ErrValidationFailed ErrorCode = "40002"
	ErrMissingSignature ErrorCode = "40003"

	// Authentication errors (401xx)
	ErrUnauthorized       ErrorCode = "40100"
	ErrInvalidCredentials ErrorCode = "40101"
	ErrInvalidToken       ErrorCode = "40102"
	ErrInvalidSignature   ErrorCode = "40103"

	// Authorization errors (403xx)
	ErrForbidden ErrorCode = "40301"

	// Resource errors (404xx)
	ErrNotFound        ErrorCode = "40400"
	ErrWebhookNotFound ErrorCode = "40401"

	// Rate limiting (429xx)
	ErrRateLimited ErrorCode = "42901"

	// Server errors (500xx)
	ErrInternalServer ErrorCode = "50001"
)

// APIError represents a standardized API error
type APIError struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"-"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return e.Message
}

// ErrorResponse is the client-visible error body. Error carries the message so
// clients can read `{error}` directly.
type ErrorResponse struct {
	Error     string    `json:"error"`
	Code      ErrorCode `json:"code"`
	RequestID string    `json:"request_id,omitempty"`
}

// NewErrorResponse builds the response body for err
func NewErrorResponse(err *APIError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error:     err.Message,
		Code:      err.Code,
		RequestID: requestID,
	}
}

// Common errors
var (
	ErrNotAuthenticatedError = &APIError{
		Code:       ErrUnauthorized,
		Message:    "Not authenticated",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidTokenError = &APIError{
		Code:       ErrInvalidToken,
		Message:    "Invalid token",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidCredentialsError = &APIError{
		Code:       ErrInvalidCredentials,
		Message:    "Invalid credentials",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrInvalidSignatureError = &APIError{
		Code:       ErrInvalidSignature,
		Message:    "Invalid LINE signature",
		HTTPStatus: http.StatusUnauthorized,
	}

	ErrMissingSignatureError = &APIError{
		Code:       ErrMissingSignature,
		Message:    "Missing LINE signature",
		HTTPStatus: http.StatusBadRequest,
	}

	ErrForbiddenError = &APIError{
		Code:       ErrForbidden,
		Message:    "Access denied",
		HTTPStatus: http.StatusForbidden,
	}

	// Deliberately identical for unknown and deactivated endpoints
	ErrWebhookNotFoundError = &APIError{
		Code:       ErrWebhookNotFound,
		Message:    "Webhook endpoint not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrNotFoundError = &APIError{
		Code:       ErrNotFound,
		Message:    "Not found",
		HTTPStatus: http.StatusNotFound,
	}

	ErrRateLimitedError = &APIError{
		Code:       ErrRateLimited,
		Message:    "Too many requests",
		HTTPStatus: http.StatusTooManyRequests,
	}

	ErrInternalServerError = &APIError{
		Code:       ErrInternalServer,
		Message:    "Internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
)

// New creates an error for code with the status GetHTTPStatusFromCode assigns
func New(code ErrorCode, message string) *APIError {
	return &APIError{
		Code:       code,
		Message:    message,
		HTTPStatus: GetHTTPStatusFromCode(code),
	}
}

// NewValidationError creates a 400 error with a client-facing message
func NewValidationError(message string) *APIError {
	return New(ErrValidationFailed, message)
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) *APIError {
	return New(ErrInvalidRequest, message)
}

// NewInternalError creates a 500 error with a generic, operation-specific message
func NewInternalError(message string) *APIError {
	return New(ErrInternalServer, message)
}

// GetHTTPStatusFromCode maps an error code to its HTTP status
func GetHTTPStatusFromCode(code ErrorCode) int {
	switch code {
	case ErrInvalidRequest, ErrValidationFailed, ErrMissingSignature:
		return http.StatusBadRequest
	case ErrUnauthorized, ErrInvalidCredentials, ErrInvalidToken, ErrInvalidSignature:
		return http.StatusUnauthorized
	case ErrForbidden:
		return http.StatusForbidden
	case ErrNotFound, ErrWebhookNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// IsClientError reports whether err is a 4xx error
func IsClientError(err *APIError) bool {
	return err.HTTPStatus >= 400 && err.HTTPStatus < 500
}

// IsServerError reports whether err is a 5xx error
func IsServerError(err *APIError) bool {
	return err.HTTPStatus >= 500 && err.HTTPStatus < 600
}
