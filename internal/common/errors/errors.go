// Package errors provides the standard error type shared by the batch
// runner, the dispatch layer and the Zeebe workers.
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

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeContactFetchFailed       ErrorCode = "CONTACT_FETCH_FAILED"
	ErrCodeJobFetchFailed           ErrorCode = "JOB_FETCH_FAILED"
	ErrCodeContactNotFound          ErrorCode = "CONTACT_NOT_FOUND"
	ErrCodeMarkNotifiedFailed       ErrorCode = "MARK_NOTIFIED_FAILED"

	ErrCodeDigestSendFailed    ErrorCode = "DIGEST_SEND_FAILED"
	ErrCodeChannelUnavailable  ErrorCode = "CHANNEL_UNAVAILABLE"
	ErrCodeAttemptsExhausted   ErrorCode = "ATTEMPTS_EXHAUSTED"
	ErrCodeStoreUnavailable    ErrorCode = "STORE_UNAVAILABLE"
	ErrCodeBatchAlreadyRunning ErrorCode = "BATCH_ALREADY_RUNNING"

	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("StandardError[%s]: %s: %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata returns e after attaching a metadata entry.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = map[string]interface{}{}
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
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

// ==========================
// 2. BPMN Error Integration
// ==========================

// BPMNError represents an error that can be thrown to the Camunda workflow engine.
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

// ToErrorVariables returns a map suitable for setting Camunda job fail variables.
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

func NewDatabaseConnectionFailedError(err error) *StandardError {
	return newError(ErrCodeDatabaseConnectionFailed, "Database connection error", err, true)
}

func NewContactFetchFailedError(err error) *StandardError {
	return newError(ErrCodeContactFetchFailed, "Failed to load contacts", err, true)
}

func NewJobFetchFailedError(err error) *StandardError {
	return newError(ErrCodeJobFetchFailed, "Failed to load pending job postings", err, true)
}

// NewContactNotFoundError creates a non-retryable lookup error.
func NewContactNotFoundError(contactID string) *StandardError {
	e := newError(ErrCodeContactNotFound, "Contact not found", nil, false)
	e.Details = fmt.Sprintf("contactId: %s", contactID)
	return e
}

func NewMarkNotifiedFailedError(jobKey string, err error) *StandardError {
	return newError(ErrCodeMarkNotifiedFailed, "Failed to flag job as notified", err, true).
		WithMetadata("job", jobKey)
}

// NewDigestSendFailedError is returned when every channel failed for a contact.
func NewDigestSendFailedError(contactID string, err error) *StandardError {
	return newError(ErrCodeDigestSendFailed, "Digest could not be delivered", err, true).
		WithMetadata("contactId", contactID)
}

func NewChannelUnavailableError(channel string, err error) *StandardError {
	return newError(ErrCodeChannelUnavailable, fmt.Sprintf("Channel '%s' unavailable", channel), err, true)
}

// NewAttemptsExhaustedError is non-retryable until the attempt window rolls over.
func NewAttemptsExhaustedError(contactID string, attempts int64) *StandardError {
	e := newError(ErrCodeAttemptsExhausted, "Delivery attempts exhausted", nil, false)
	e.Details = fmt.Sprintf("contactId: %s, attempts: %d", contactID, attempts)
	return e
}

func NewStoreUnavailableError(err error) *StandardError {
	return newError(ErrCodeStoreUnavailable, "Key/value store unavailable", err, true)
}

func NewBatchAlreadyRunningError(lockKey string) *StandardError {
	e := newError(ErrCodeBatchAlreadyRunning, "Another batch run holds the lock", nil, false)
	e.Details = fmt.Sprintf("lock: %s", lockKey)
	return e
}

func NewInvalidInputError(details string) *StandardError {
	e := newError(ErrCodeInvalidInput, "Invalid input", nil, false)
	e.Details = details
	return e
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 4. Error Conversion to BPMN
// ==========================

// GetRetryCount returns the recommended retry count for a code.
func GetRetryCount(code ErrorCode) int {
	switch code {
	case ErrCodeDatabaseConnectionFailed,
		ErrCodeContactFetchFailed,
		ErrCodeJobFetchFailed,
		ErrCodeMarkNotifiedFailed,
		ErrCodeDigestSendFailed:
		return 3

	case ErrCodeChannelUnavailable,
		ErrCodeStoreUnavailable:
		return 2

	default:
		return 0
	}
}

// ConvertToBPMNError converts a StandardError to a BPMNError for Camunda.
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

// AsStandardError unwraps err to a *StandardError, wrapping unknown errors
// as INTERNAL_ERROR.
func AsStandardError(err error) *StandardError {
	var stdErr *StandardError
	if stderrors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Code == code
}

// IsRetryable reports whether err is a retryable StandardError.
func IsRetryable(err error) bool {
	var stdErr *StandardError
	return stderrors.As(err, &stdErr) && stdErr.Retryable
}

// IsRetryableErrorCode checks if an error code is retryable.
func IsRetryableErrorCode(code ErrorCode) bool {
	return GetRetryCount(code) > 0
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.Contains(codeStr, "DATABASE") || strings.Contains(codeStr, "FETCH") ||
		strings.Contains(codeStr, "NOT_FOUND") || strings.Contains(codeStr, "NOTIFIED"):
		return "DATABASE"
	case strings.Contains(codeStr, "DIGEST") || strings.Contains(codeStr, "CHANNEL") ||
		strings.Contains(codeStr, "ATTEMPTS"):
		return "DISPATCH"
	case strings.Contains(codeStr, "STORE") || strings.Contains(codeStr, "BATCH"):
		return "COORDINATION"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	default:
		return "OTHER"
	}
}
