package dto

import "net/http"

// Error code constants organized by category
// Format: ERR_<CATEGORY>_<DESCRIPTION>

// General error codes
const (
	// ErrCodeUnknown is used when the error type is unknown
	ErrCodeUnknown = "ERR_UNKNOWN"
	// ErrCodeInternal is used for internal server errors
	ErrCodeInternal = "ERR_INTERNAL"
)

// Validation error codes
const (
	// ErrCodeValidation is the base code for validation errors
	ErrCodeValidation = "ERR_VALIDATION"
	// ErrCodeValidationRequired is used when a required field is missing
	ErrCodeValidationRequired = "ERR_VALIDATION_REQUIRED"
	// ErrCodeValidationFormat is used when a field has invalid format
	ErrCodeValidationFormat = "ERR_VALIDATION_FORMAT"
	// ErrCodeValidationRange is used when a value is out of range
	ErrCodeValidationRange = "ERR_VALIDATION_RANGE"
)

// Authentication error codes
const (
	// ErrCodeUnauthorized is used when authentication is required but missing/invalid
	ErrCodeUnauthorized = "ERR_UNAUTHORIZED"
	// ErrCodeForbidden is used when the caller lacks the required role
	ErrCodeForbidden = "ERR_FORBIDDEN"
	// ErrCodeTokenExpired is used when the auth token has expired
	ErrCodeTokenExpired = "ERR_TOKEN_EXPIRED"
	// ErrCodeTokenInvalid is used when the auth token is invalid
	ErrCodeTokenInvalid = "ERR_TOKEN_INVALID"
)

// Resource error codes
const (
	// ErrCodeNotFound is used when a resource is not found
	ErrCodeNotFound = "ERR_NOT_FOUND"
	// ErrCodeAlreadyExists is used when trying to create a duplicate resource
	ErrCodeAlreadyExists = "ERR_ALREADY_EXISTS"
	// ErrCodeConflict is used for general resource conflicts
	ErrCodeConflict = "ERR_CONFLICT"
	// ErrCodeConcurrencyConflict is used when optimistic locking fails
	ErrCodeConcurrencyConflict = "ERR_CONCURRENCY_CONFLICT"
)

// Commission rule error codes
const (
	// ErrCodeRejectedOverlap is used when an override window overlaps an
	// existing active override for the same scope
	ErrCodeRejectedOverlap = "ERR_REJECTED_OVERLAP"
	// ErrCodeInvalidRateBounds is used when a percentage is outside the
	// allowed policy band
	ErrCodeInvalidRateBounds = "ERR_INVALID_RATE_BOUNDS"
	// ErrCodeInvalidWindow is used when a validity window is malformed
	ErrCodeInvalidWindow = "ERR_INVALID_WINDOW"
	// ErrCodeInvalidVariant is used when an override variant is unknown
	ErrCodeInvalidVariant = "ERR_INVALID_VARIANT"
	// ErrCodeInvalidScope is used when the scope does not fit the variant
	ErrCodeInvalidScope = "ERR_INVALID_SCOPE"
	// ErrCodeInvalidTier is used when a membership tier is unknown
	ErrCodeInvalidTier = "ERR_INVALID_TIER"
)

// Resolution error codes
const (
	// ErrCodeInvalidLineItem is used when a line item fails structural checks
	ErrCodeInvalidLineItem = "ERR_INVALID_LINE_ITEM"
	// ErrCodeAuditWriteFailure is used when a resolution could not be
	// audited; the resolution is never returned as successful
	ErrCodeAuditWriteFailure = "ERR_AUDIT_WRITE_FAILURE"
	// ErrCodeInvalidCheckpointToken is used when a bulk resume token
	// cannot be parsed or belongs to a different batch
	ErrCodeInvalidCheckpointToken = "ERR_INVALID_CHECKPOINT_TOKEN"
)

// Input error codes
const (
	// ErrCodeBadRequest is used for malformed requests
	ErrCodeBadRequest = "ERR_BAD_REQUEST"
	// ErrCodeInvalidInput is used for invalid input data
	ErrCodeInvalidInput = "ERR_INVALID_INPUT"
	// ErrCodeInvalidJSON is used when JSON parsing fails
	ErrCodeInvalidJSON = "ERR_INVALID_JSON"
)

// Rate limiting error codes
const (
	// ErrCodeRateLimited is used when rate limit is exceeded
	ErrCodeRateLimited = "ERR_RATE_LIMITED"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	// General errors
	ErrCodeUnknown:  http.StatusInternalServerError,
	ErrCodeInternal: http.StatusInternalServerError,

	// Validation errors -> 400 Bad Request
	ErrCodeValidation:         http.StatusBadRequest,
	ErrCodeValidationRequired: http.StatusBadRequest,
	ErrCodeValidationFormat:   http.StatusBadRequest,
	ErrCodeValidationRange:    http.StatusBadRequest,

	// Auth errors
	ErrCodeUnauthorized: http.StatusUnauthorized,
	ErrCodeForbidden:    http.StatusForbidden,
	ErrCodeTokenExpired: http.StatusUnauthorized,
	ErrCodeTokenInvalid: http.StatusUnauthorized,

	// Resource errors
	ErrCodeNotFound:            http.StatusNotFound,
	ErrCodeAlreadyExists:       http.StatusConflict,
	ErrCodeConflict:            http.StatusConflict,
	ErrCodeConcurrencyConflict: http.StatusConflict,

	// Commission rule errors
	ErrCodeRejectedOverlap:   http.StatusConflict,
	ErrCodeInvalidRateBounds: http.StatusUnprocessableEntity,
	ErrCodeInvalidWindow:     http.StatusBadRequest,
	ErrCodeInvalidVariant:    http.StatusBadRequest,
	ErrCodeInvalidScope:      http.StatusBadRequest,
	ErrCodeInvalidTier:       http.StatusBadRequest,

	// Resolution errors
	ErrCodeInvalidLineItem:        http.StatusBadRequest,
	ErrCodeAuditWriteFailure:      http.StatusInternalServerError,
	ErrCodeInvalidCheckpointToken: http.StatusBadRequest,

	// Input errors -> 400 Bad Request
	ErrCodeBadRequest:   http.StatusBadRequest,
	ErrCodeInvalidInput: http.StatusBadRequest,
	ErrCodeInvalidJSON:  http.StatusBadRequest,

	// Rate limiting -> 429 Too Many Requests
	ErrCodeRateLimited: http.StatusTooManyRequests,
}

// GetHTTPStatus returns the HTTP status code for an error code
// Returns 500 Internal Server Error if the error code is not found
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// LegacyErrorCodeMapping maps domain error codes to the standardized
// wire format
var LegacyErrorCodeMapping = map[string]string{
	"NOT_FOUND":                ErrCodeNotFound,
	"ALREADY_EXISTS":           ErrCodeAlreadyExists,
	"INVALID_INPUT":            ErrCodeInvalidInput,
	"UNAUTHORIZED":             ErrCodeUnauthorized,
	"FORBIDDEN":                ErrCodeForbidden,
	"CONCURRENCY_CONFLICT":     ErrCodeConcurrencyConflict,
	"VALIDATION_ERROR":         ErrCodeValidation,
	"BAD_REQUEST":              ErrCodeBadRequest,
	"INTERNAL_ERROR":           ErrCodeInternal,
	"REJECTED_OVERLAP":         ErrCodeRejectedOverlap,
	"INVALID_RATE_BOUNDS":      ErrCodeInvalidRateBounds,
	"INVALID_WINDOW":           ErrCodeInvalidWindow,
	"INVALID_VARIANT":          ErrCodeInvalidVariant,
	"INVALID_SCOPE":            ErrCodeInvalidScope,
	"INVALID_TIER":             ErrCodeInvalidTier,
	"INVALID_LINE_ITEM":        ErrCodeInvalidLineItem,
	"AUDIT_WRITE_FAILURE":      ErrCodeAuditWriteFailure,
	"INVALID_CHECKPOINT_TOKEN": ErrCodeInvalidCheckpointToken,
}

// NormalizeErrorCode converts a domain error code to the standardized format
// If the code is already in the new format or unknown, returns it as-is
func NormalizeErrorCode(code string) string {
	if newCode, ok := LegacyErrorCodeMapping[code]; ok {
		return newCode
	}
	return code
}
