package errors

import (
	"errors"
	"net/http"
)

var (
	// ErrSessionExpired is returned when the upstream API rejects the stored token.
	ErrSessionExpired = errors.New("session expired, please log in again")
	// ErrUpstreamUnreachable is returned when the academy API cannot be reached.
	ErrUpstreamUnreachable = errors.New("academy api unreachable")
	// ErrRoleDenied is returned when the current role lacks access to a page.
	ErrRoleDenied = errors.New("your role does not grant access to this page")
	// ErrResourceDenied is returned when an ownership check rejects a resource id.
	ErrResourceDenied = errors.New("you do not have access to this resource")
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// HTTPError represents an HTTP error with status code.
type HTTPError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *HTTPError) Error() string {
	return e.Message
}

// NewHTTPError creates a new HTTP error.
func NewHTTPError(statusCode int, message, code string) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
		Code:       code,
	}
}

// ToErrorResponse converts an HTTPError to ErrorResponse.
func (e *HTTPError) ToErrorResponse() ErrorResponse {
	return ErrorResponse{
		Error: e.Message,
		Code:  e.Code,
	}
}

// MapErrorToHTTP maps domain errors to HTTP errors.
func MapErrorToHTTP(err error) *HTTPError {
	switch {
	case errors.Is(err, ErrSessionExpired):
		return NewHTTPError(http.StatusUnauthorized, err.Error(), "SESSION_EXPIRED")
	case errors.Is(err, ErrRoleDenied):
		return NewHTTPError(http.StatusForbidden, err.Error(), "ROLE_DENIED")
	case errors.Is(err, ErrResourceDenied):
		return NewHTTPError(http.StatusForbidden, err.Error(), "RESOURCE_DENIED")
	case errors.Is(err, ErrUpstreamUnreachable):
		return NewHTTPError(http.StatusBadGateway, err.Error(), "UPSTREAM_UNREACHABLE")
	default:
		return NewHTTPError(http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR")
	}
}
