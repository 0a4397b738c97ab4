// Package errors maps worker failures onto codes the workflow engine can route on.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode is a stable, workflow-visible failure code.
type ErrorCode string

const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeRecordFetchFailed        ErrorCode = "RECORD_FETCH_FAILED"

	ErrCodeKeywordExtractionFailed ErrorCode = "KEYWORD_EXTRACTION_FAILED"

	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeUnknownStrategy ErrorCode = "UNKNOWN_STRATEGY"
	ErrCodeDuplicatePair   ErrorCode = "DUPLICATE_PAIR"

	ErrCodeRunNotFound ErrorCode = "RUN_NOT_FOUND"
	ErrCodeCacheFailed ErrorCode = "CACHE_FAILED"

	ErrCodeIndexFailed ErrorCode = "INDEX_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StandardError is a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	cause     error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError is the form thrown to the workflow engine.
type BPMNError struct {
	Code           string                 `json:"code"`
	Message        string                 `json:"message"`
	Details        string                 `json:"details,omitempty"`
	Retryable      bool                   `json:"retryable"`
	Retries        int                    `json:"retries"`
	ErrorVariables map[string]interface{} `json:"errorVariables,omitempty"`
}

func (e *BPMNError) Error() string {
	return fmt.Sprintf("BPMNError[%s]: %s", e.Code, e.Message)
}

// ToErrorVariables returns the process variables attached to a failed or thrown job.
func (e *BPMNError) ToErrorVariables() map[string]interface{} {
	vars := map[string]interface{}{
		"errorCode":    e.Code,
		"errorMessage": e.Message,
		"errorDetails": e.Details,
		"retryable":    e.Retryable,
	}
	for k, v := range e.ErrorVariables {
		vars[k] = v
	}
	return vars
}

// ==========================
// 3. Error Constructors
// ==========================

func newError(code ErrorCode, message string, retryable bool, cause error, details string) *StandardError {
	if details == "" && cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", true, err, "")
}

// NewRecordFetchFailedError reports a failed catalogue read. entity is "suppliers" or "demands".
func NewRecordFetchFailedError(entity string, err error) *StandardError {
	return newError(ErrCodeRecordFetchFailed, "Failed to fetch records", true, err,
		fmt.Sprintf("entity: %s, error: %v", entity, err))
}

// NewKeywordExtractionFailedError is raised only when extraction is the whole job;
// inside a matching run per-record failures are reported, not thrown.
func NewKeywordExtractionFailedError(details string) *StandardError {
	return newError(ErrCodeKeywordExtractionFailed, "Keyword extraction failed", true, nil, details)
}

func NewInvalidInputError(details string) *StandardError {
	return newError(ErrCodeInvalidInput, "Invalid job input", false, nil, details)
}

func NewUnknownStrategyError(err error) *StandardError {
	return newError(ErrCodeUnknownStrategy, "Unknown scoring strategy", false, err, "")
}

func NewDuplicatePairError(err error) *StandardError {
	return newError(ErrCodeDuplicatePair, "Duplicate supplier/demand ids in catalogue", false, err, "")
}

func NewRunNotFoundError(runID string) *StandardError {
	return newError(ErrCodeRunNotFound, "Matching run not found or expired", false, nil,
		fmt.Sprintf("runId: %s", runID))
}

func NewCacheFailedError(err error) *StandardError {
	return newError(ErrCodeCacheFailed, "Cache operation failed", true, err, "")
}

func NewIndexFailedError(err error) *StandardError {
	return newError(ErrCodeIndexFailed, "Failed to index matches", true, err, "")
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", false, err, "")
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns how many engine retries a code deserves.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeRecordFetchFailed,
		ErrCodeCacheFailed,
		ErrCodeIndexFailed:
		return 3
	case ErrCodeKeywordExtractionFailed:
		return 2
	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError for the workflow engine.
// Error codes are passed through unchanged.
func ConvertToBPMNError(stdErr *StandardError) *BPMNError {
	retries := GetRetryCount(stdErr.Code)
	if !stdErr.Retryable {
		retries = 0
	}

	vars := map[string]interface{}{
		"originalErrorCode": string(stdErr.Code),
		"timestamp":         stdErr.Timestamp.Format(time.RFC3339),
	}
	for k, v := range stdErr.Metadata {
		vars[k] = v
	}

	return &BPMNError{
		Code:           string(stdErr.Code),
		Message:        stdErr.Message,
		Details:        stdErr.Details,
		Retryable:      stdErr.Retryable,
		Retries:        retries,
		ErrorVariables: vars,
	}
}

// ==========================
// 5. Utility Functions
// ==========================

// AsStandardError unwraps err to a StandardError, wrapping unknown errors as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory groups codes for dashboards.
func GetErrorCategory(code ErrorCode) string {
	c := string(code)
	switch {
	case strings.Contains(c, "DATABASE") || strings.Contains(c, "RECORD"):
		return "DATABASE"
	case strings.Contains(c, "KEYWORD"):
		return "EXTRACTION"
	case strings.Contains(c, "CACHE") || strings.Contains(c, "RUN_NOT_FOUND"):
		return "CACHE"
	case strings.Contains(c, "INDEX"):
		return "SEARCH"
	case strings.Contains(c, "INVALID") || strings.Contains(c, "UNKNOWN") || strings.Contains(c, "DUPLICATE"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
