// internal/common/errors/errors.go
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

type ErrorCode string

const (
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeTokenInvalid    ErrorCode = "TOKEN_INVALID"

	ErrCodeJobNotFound         ErrorCode = "JOB_NOT_FOUND"
	ErrCodeApplicationNotFound ErrorCode = "APPLICATION_NOT_FOUND"
	ErrCodeResourceNotFound    ErrorCode = "RESOURCE_NOT_FOUND"

	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeInvalidFile      ErrorCode = "INVALID_FILE"

	ErrCodeDuplicateApplication     ErrorCode = "DUPLICATE_APPLICATION"
	ErrCodeInvalidStatusTransition  ErrorCode = "INVALID_STATUS_TRANSITION"
	ErrCodeStatusConflict           ErrorCode = "STATUS_CONFLICT"
	ErrCodeNotEditable              ErrorCode = "NOT_EDITABLE"
	ErrCodeNotDeletable             ErrorCode = "NOT_DELETABLE"
	ErrCodeNotAcceptingApplications ErrorCode = "NOT_ACCEPTING_APPLICATIONS"

	ErrCodeStorageUploadFailed ErrorCode = "STORAGE_UPLOAD_FAILED"
	ErrCodeStorageSignFailed   ErrorCode = "STORAGE_SIGN_FAILED"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeDatabaseQueryFailed      ErrorCode = "DATABASE_QUERY_FAILED"
	ErrCodeDatabaseInsertFailed     ErrorCode = "DATABASE_INSERT_FAILED"

	ErrCodeSearchQueryFailed ErrorCode = "SEARCH_QUERY_FAILED"
	ErrCodeSearchDisabled    ErrorCode = "SEARCH_DISABLED"

	ErrCodeExternalService ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"
)

type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// WithMetadata returns e with the key set, allocating the map on first use.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool) *StandardError {
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
	}
}

// ===== Identity =====

func NewUnauthenticatedError(details string) *StandardError {
	return newError(ErrCodeUnauthenticated, "Sign-in required", details, false)
}

func NewTokenInvalidError(details string) *StandardError {
	return newError(ErrCodeTokenInvalid, "Token is not active", details, false)
}

func NewForbiddenError(details string) *StandardError {
	return newError(ErrCodeForbidden, "Only the owner may perform this action", details, false)
}

// ===== Lookup =====

func NewJobNotFoundError(jobID int64) *StandardError {
	return newError(ErrCodeJobNotFound, "Job not found", fmt.Sprintf("jobId: %d", jobID), false)
}

func NewApplicationNotFoundError(details string) *StandardError {
	return newError(ErrCodeApplicationNotFound, "Application not found", details, false)
}

func NewResourceNotFoundError(resource, details string) *StandardError {
	return newError(ErrCodeResourceNotFound, fmt.Sprintf("Resource not found in %s", resource), details, false)
}

// ===== Validation =====

func NewValidationFailedError(details string) *StandardError {
	return newError(ErrCodeValidationFailed, "Input validation failed", details, false)
}

func NewInvalidFileError(details string) *StandardError {
	return newError(ErrCodeInvalidFile, "Uploaded file is not acceptable", details, false)
}

// ===== Business rules =====

func NewDuplicateApplicationError(jobID int64, userID string) *StandardError {
	return newError(ErrCodeDuplicateApplication, "Application already exists",
		fmt.Sprintf("jobId: %d, userId: %s", jobID, userID), false)
}

func NewInvalidStatusTransitionError(from, to string) *StandardError {
	return newError(ErrCodeInvalidStatusTransition, "Status transition not allowed",
		fmt.Sprintf("from: %s, to: %s", from, to), false)
}

func NewStatusConflictError(expected string) *StandardError {
	return newError(ErrCodeStatusConflict, "Status changed since it was read",
		fmt.Sprintf("expected: %s", expected), false)
}

func NewNotEditableError(jobID int64) *StandardError {
	return newError(ErrCodeNotEditable, "Job can no longer be edited",
		fmt.Sprintf("jobId: %d has applicants", jobID), false)
}

func NewNotDeletableError(jobID int64) *StandardError {
	return newError(ErrCodeNotDeletable, "Job cannot be deleted",
		fmt.Sprintf("jobId: %d must have no applicants, or be closed with none in progress", jobID), false)
}

func NewNotAcceptingApplicationsError(jobID int64, status string) *StandardError {
	return newError(ErrCodeNotAcceptingApplications, "Job is not accepting applications",
		fmt.Sprintf("jobId: %d, status: %s", jobID, status), false)
}

// ===== Infrastructure =====

func NewStorageUploadFailedError(bucket string, err error) *StandardError {
	return newError(ErrCodeStorageUploadFailed, "File upload failed",
		fmt.Sprintf("bucket: %s, error: %s", bucket, err.Error()), true)
}

func NewStorageSignFailedError(path string, err error) *StandardError {
	return newError(ErrCodeStorageSignFailed, "Could not sign file URL",
		fmt.Sprintf("path: %s, error: %s", path, err.Error()), true)
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err.Error(), true)
}

func NewDatabaseQueryFailedError(operation string, err error) *StandardError {
	return newError(ErrCodeDatabaseQueryFailed, "Database query failed",
		fmt.Sprintf("operation: %s, error: %s", operation, err.Error()), true)
}

func NewDatabaseInsertFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseInsertFailed, "Database insert operation failed", err.Error(), true)
}

func NewSearchQueryFailedError(index string, err error) *StandardError {
	return newError(ErrCodeSearchQueryFailed, "Elasticsearch query error",
		fmt.Sprintf("index: %s, error: %s", index, err.Error()), true)
}

func NewSearchDisabledError() *StandardError {
	return newError(ErrCodeSearchDisabled, "Search is disabled", "", false)
}

func NewExternalServiceError(service string, err error) *StandardError {
	return newError(ErrCodeExternalService, fmt.Sprintf("External service '%s' error", service), err.Error(), true)
}

// ===== Classification =====

// As extracts a StandardError anywhere in err's chain.
func As(err error) (*StandardError, bool) {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr, true
	}
	return nil, false
}

// CodeOf returns the code of the StandardError in err's chain, or ErrCodeInternal.
func CodeOf(err error) ErrorCode {
	if stdErr, ok := As(err); ok {
		return stdErr.Code
	}
	return ErrCodeInternal
}

var HTTPStatusMapping = map[ErrorCode]int{
	ErrCodeUnauthenticated:          http.StatusUnauthorized,
	ErrCodeTokenInvalid:             http.StatusUnauthorized,
	ErrCodeForbidden:                http.StatusForbidden,
	ErrCodeJobNotFound:              http.StatusNotFound,
	ErrCodeApplicationNotFound:      http.StatusNotFound,
	ErrCodeResourceNotFound:         http.StatusNotFound,
	ErrCodeValidationFailed:         http.StatusBadRequest,
	ErrCodeInvalidFile:              http.StatusUnsupportedMediaType,
	ErrCodeDuplicateApplication:     http.StatusConflict,
	ErrCodeInvalidStatusTransition:  http.StatusConflict,
	ErrCodeStatusConflict:           http.StatusConflict,
	ErrCodeNotEditable:              http.StatusConflict,
	ErrCodeNotDeletable:             http.StatusConflict,
	ErrCodeNotAcceptingApplications: http.StatusConflict,
	ErrCodeStorageUploadFailed:      http.StatusBadGateway,
	ErrCodeStorageSignFailed:        http.StatusBadGateway,
	ErrCodeExternalService:          http.StatusBadGateway,
	ErrCodeSearchQueryFailed:        http.StatusBadGateway,
	ErrCodeSearchDisabled:           http.StatusNotImplemented,
	ErrCodeDatabaseConnectionFailed: http.StatusServiceUnavailable,
}

// HTTPStatus maps a code to the response status. Unknown codes are 500.
func HTTPStatus(code ErrorCode) int {
	if status, ok := HTTPStatusMapping[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthenticated || code == ErrCodeForbidden || strings.Contains(codeStr, "TOKEN"):
		return "AUTH"
	case strings.HasSuffix(codeStr, "NOT_FOUND"):
		return "NOT_FOUND"
	case strings.Contains(codeStr, "DATABASE"):
		return "DATABASE"
	case strings.Contains(codeStr, "SEARCH"):
		return "SEARCH"
	case strings.Contains(codeStr, "STORAGE"):
		return "STORAGE"
	case strings.Contains(codeStr, "VALIDATION") || strings.Contains(codeStr, "INVALID_FILE"):
		return "VALIDATION"
	case code == ErrCodeExternalService:
		return "EXTERNAL"
	case code == ErrCodeInternal:
		return "OTHER"
	default:
		return "BUSINESS_RULE"
	}
}
