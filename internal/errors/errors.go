// Package errors provides standardized error handling for the audit registry service.
package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents a standardized error code for the audit registry service.
type ErrorCode string

const (
	// Validation errors
	AUD_VALIDATION     ErrorCode = "AUD_VALIDATION"     // General validation error
	AUD_SCHEMA_REJECT  ErrorCode = "AUD_SCHEMA_REJECT"  // Payload schema validation failed
	AUD_BAD_REQUEST    ErrorCode = "AUD_BAD_REQUEST"    // Bad request
	AUD_STATUS_INVALID ErrorCode = "AUD_STATUS_INVALID" // Status outside the closed enumeration

	// Authentication/Authorization errors
	AUD_AUTHN         ErrorCode = "AUD_AUTHN"         // Authentication failed
	AUD_JWT_INVALID   ErrorCode = "AUD_JWT_INVALID"   // Invalid JWT
	AUD_JWT_EXPIRED   ErrorCode = "AUD_JWT_EXPIRED"   // Expired JWT
	AUD_JWT_MALFORMED ErrorCode = "AUD_JWT_MALFORMED" // Malformed JWT

	// Resource errors
	AUD_NOT_FOUND     ErrorCode = "AUD_NOT_FOUND"     // Complaint not found
	AUD_CONFLICT      ErrorCode = "AUD_CONFLICT"      // Complaint id already registered
	AUD_FROZEN        ErrorCode = "AUD_FROZEN"        // Mutation attempted on a terminal-state complaint
	AUD_ARTIFACT_SIZE ErrorCode = "AUD_ARTIFACT_SIZE" // Evidence size limit exceeded
	AUD_ARTIFACT_TYPE ErrorCode = "AUD_ARTIFACT_TYPE" // Evidence MIME type not allowed

	// Server errors
	AUD_INTERNAL    ErrorCode = "AUD_INTERNAL"    // Internal server error
	AUD_UNAVAILABLE ErrorCode = "AUD_UNAVAILABLE" // Service unavailable
)

// Error represents a standardized error response.
type Error struct {
	Code          ErrorCode   `json:"code"`
	Message       string      `json:"message"`
	CorrelationID string      `json:"correlationId"`
	Details       interface{} `json:"details,omitempty"`
	HTTPStatus    int         `json:"-"`
}

// New creates a new Error with the specified code and message.
func New(code ErrorCode, message string, correlationID string) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// NewWithDetails creates a new Error with the specified code, message, and details.
func NewWithDetails(code ErrorCode, message string, correlationID string, details interface{}) *Error {
	return &Error{
		Code:          code,
		Message:       message,
		CorrelationID: correlationID,
		Details:       details,
		HTTPStatus:    httpStatusCodeForCode(code),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Details != nil {
		return fmt.Sprintf("%s: %s (details: %v)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// httpStatusCodeForCode maps error codes to HTTP status codes.
func httpStatusCodeForCode(code ErrorCode) int {
	switch code {
	case AUD_VALIDATION, AUD_SCHEMA_REJECT, AUD_BAD_REQUEST, AUD_STATUS_INVALID:
		return http.StatusBadRequest
	case AUD_AUTHN, AUD_JWT_INVALID, AUD_JWT_EXPIRED, AUD_JWT_MALFORMED:
		return http.StatusUnauthorized
	case AUD_NOT_FOUND:
		return http.StatusNotFound
	case AUD_CONFLICT, AUD_FROZEN:
		return http.StatusConflict
	case AUD_ARTIFACT_SIZE, AUD_ARTIFACT_TYPE:
		return http.StatusBadRequest
	case AUD_UNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
