package domain

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorCode represents a specific type of error in the domain
type ErrorCode string

const (
	// Common errors
	ErrInternal     ErrorCode = "INTERNAL_ERROR"
	ErrInvalidInput ErrorCode = "INVALID_INPUT"
	ErrNotFound     ErrorCode = "NOT_FOUND"

	// Input errors
	ErrChunkTooShort ErrorCode = "CHUNK_TOO_SHORT"

	// Row contract violations
	ErrMalformedKeywords       ErrorCode = "MALFORMED_KEYWORDS"
	ErrDuplicateID             ErrorCode = "DUPLICATE_ID"
	ErrInvalidID               ErrorCode = "INVALID_ID"
	ErrEmptyField              ErrorCode = "EMPTY_FIELD"
	ErrUnsupportedQuestionType ErrorCode = "UNSUPPORTED_QUESTION_TYPE"
	ErrInvalidChoicesJSON      ErrorCode = "INVALID_CHOICES_JSON"
	ErrNoAnswer                ErrorCode = "NO_ANSWER"
	ErrInvalidAnswer           ErrorCode = "INVALID_ANSWER"

	// Diagnostics; recorded, never a failure
	ErrSubjectTruncated      ErrorCode = "SUBJECT_TRUNCATED"
	ErrMultipleAnswers       ErrorCode = "MULTIPLE_ANSWERS"
	ErrNormalizationDegraded ErrorCode = "NORMALIZATION_DEGRADED"

	// Batch errors
	ErrIncomplete        ErrorCode = "INCOMPLETE"
	ErrDuplicateQuestion ErrorCode = "DUPLICATE_QUESTION"

	// Service errors
	ErrTimeout              ErrorCode = "TIMEOUT"
	ErrServiceUnavailable   ErrorCode = "SERVICE_UNAVAILABLE"
	ErrEmbeddingUnavailable ErrorCode = "EMBEDDING_UNAVAILABLE"

	// Storage errors
	ErrStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"
	ErrSchemaMismatch     ErrorCode = "SCHEMA_MISMATCH"

	ErrInvalidConfig ErrorCode = "INVALID_CONFIG"
	ErrCancelled     ErrorCode = "CANCELLED"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Cause   error                  `json:"-"`
	Context map[string]interface{} `json:"context,omitempty"`
}

func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is matches any DomainError carrying the same code, so errors.Is works
// against the sentinel-like values built with NewError(code, "", nil).
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// MarshalJSON implements the json.Marshaler interface
func (e *DomainError) MarshalJSON() ([]byte, error) {
	return json.Marshal(&struct {
		Code    string                 `json:"code"`
		Message string                 `json:"message"`
		Context map[string]interface{} `json:"context,omitempty"`
	}{
		Code:    string(e.Code),
		Message: e.Message,
		Context: e.Context,
	})
}

// WithContext attaches a key/value pair and returns the same error.
func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewError creates a new DomainError
func NewError(code ErrorCode, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// CodeOf returns the code of the first DomainError in err's chain, or
// ErrInternal when there is none.
func CodeOf(err error) ErrorCode {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ErrInternal
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	return err != nil && CodeOf(err) == code
}

// IsRetryable reports whether a failed call may succeed when repeated.
func IsRetryable(err error) bool {
	switch CodeOf(err) {
	case ErrTimeout, ErrServiceUnavailable, ErrStorageUnavailable:
		return true
	}
	return false
}

// Helper functions for common errors
func NewNotFoundError(message string) *DomainError {
	return NewError(ErrNotFound, message, nil)
}

func NewInvalidInputError(message string) *DomainError {
	return NewError(ErrInvalidInput, message, nil)
}

func NewInternalError(message string, err error) *DomainError {
	return NewError(ErrInternal, message, err)
}

func NewChunkTooShortError(chunkID string, length, min int) *DomainError {
	return NewError(ErrChunkTooShort, fmt.Sprintf("chunk %s has %d characters, minimum is %d", chunkID, length, min), nil).
		WithContext("chunk_id", chunkID)
}

func NewRowError(code ErrorCode, line int, message string) *DomainError {
	return NewError(code, message, nil).WithContext("line", line)
}

func NewIncompleteError(got int) *DomainError {
	return NewError(ErrIncomplete, fmt.Sprintf("batch has %d valid questions, want %d", got, QuestionsPerChunk), nil)
}

func NewTimeoutError(err error) *DomainError {
	return NewError(ErrTimeout, "completion request timed out", err)
}

func NewServiceUnavailableError(err error) *DomainError {
	return NewError(ErrServiceUnavailable, "completion service unavailable", err)
}

func NewEmbeddingUnavailableError(err error) *DomainError {
	return NewError(ErrEmbeddingUnavailable, "embedding service unavailable", err)
}

func NewStorageUnavailableError(message string, err error) *DomainError {
	return NewError(ErrStorageUnavailable, message, err)
}

func NewSchemaMismatchError(message string, err error) *DomainError {
	return NewError(ErrSchemaMismatch, message, err)
}

func NewInvalidConfigError(message string) *DomainError {
	return NewError(ErrInvalidConfig, message, nil)
}

func NewCancelledError(err error) *DomainError {
	return NewError(ErrCancelled, "run cancelled", err)
}
