// Package errors provides standardized error handling for the delivery engine.
package errors

import (
	"errors"
	"fmt"
	"time"
)

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	// Configuration errors: fail closed, never retried.
	ErrCodeNoConsent          ErrorCode = "NO_CONSENT"
	ErrCodePreferenceNotFound ErrorCode = "PREFERENCE_NOT_FOUND"
	ErrCodeInvalidRequest     ErrorCode = "INVALID_REQUEST"

	// Transport errors: isolated per channel, recorded on the attempt.
	ErrCodeTransportFailed  ErrorCode = "TRANSPORT_FAILED"
	ErrCodeTransportTimeout ErrorCode = "TRANSPORT_TIMEOUT"

	// Personalization errors: recovered locally with the original content.
	ErrCodePersonalizationTimeout ErrorCode = "PERSONALIZATION_TIMEOUT"
	ErrCodePersonalizationFailed  ErrorCode = "PERSONALIZATION_FAILED"

	ErrCodeDispatchFailed  ErrorCode = "DISPATCH_FAILED"
	ErrCodeSchedulingError ErrorCode = "SCHEDULING_ERROR"

	ErrCodeDatabaseConnectionFailed ErrorCode = "DATABASE_CONNECTION_FAILED"
	ErrCodeQueryExecutionFailed     ErrorCode = "QUERY_EXECUTION_FAILED"
)

// StandardError represents a structured application error.
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

// CodeOf extracts the error code from err if it wraps a StandardError.
func CodeOf(err error) (ErrorCode, bool) {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code, true
	}
	return "", false
}

// IsConfigurationError reports whether err is a fail-closed configuration
// error (no consent / missing preference record / bad request).
func IsConfigurationError(err error) bool {
	code, ok := CodeOf(err)
	if !ok {
		return false
	}
	switch code {
	case ErrCodeNoConsent, ErrCodePreferenceNotFound, ErrCodeInvalidRequest:
		return true
	}
	return false
}

// NewNoConsentError creates a non-retryable configuration error for recipients
// without consent or without a preference record.
func NewNoConsentError(recipientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeNoConsent,
		Message:   "Recipient has not consented to notifications",
		Details:   fmt.Sprintf("recipientId: %s", recipientID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPreferenceNotFoundError creates a non-retryable configuration error.
func NewPreferenceNotFoundError(recipientID string) *StandardError {
	return &StandardError{
		Code:      ErrCodePreferenceNotFound,
		Message:   "No preference record for recipient",
		Details:   fmt.Sprintf("recipientId: %s", recipientID),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewInvalidRequestError creates a non-retryable validation error.
func NewInvalidRequestError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeInvalidRequest,
		Message:   "Notification request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportFailedError creates a retryable per-channel transport error.
func NewTransportFailedError(channel string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportFailed,
		Message:   "Channel provider send failed",
		Details:   fmt.Sprintf("channel: %s, error: %s", channel, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewTransportTimeoutError creates a per-channel timeout error. Timeouts are
// treated as failures and never retried inline on the dispatch path.
func NewTransportTimeoutError(channel string) *StandardError {
	return &StandardError{
		Code:      ErrCodeTransportTimeout,
		Message:   "Channel provider send timed out",
		Details:   fmt.Sprintf("channel: %s", channel),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersonalizationTimeoutError creates an error recovered locally by the
// caller falling back to the original content.
func NewPersonalizationTimeoutError() *StandardError {
	return &StandardError{
		Code:      ErrCodePersonalizationTimeout,
		Message:   "Content enrichment timed out",
		Details:   "enrichment call exceeded timeout threshold",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewPersonalizationFailedError creates an error recovered locally by the
// caller falling back to the original content.
func NewPersonalizationFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodePersonalizationFailed,
		Message:   "Content enrichment failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDispatchFailedError creates an error for a dispatch where every attempted
// channel failed. This is the only transport condition surfaced to callers.
func NewDispatchFailedError(notificationID string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDispatchFailed,
		Message:   "All attempted channels failed",
		Details:   fmt.Sprintf("notificationId: %s", notificationID),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewSchedulingError creates a retryable scheduler error; the next tick
// attempts a catch-up pass over the missed window.
func NewSchedulingError(details string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeSchedulingError,
		Message:   "Scheduler pass failed",
		Details:   fmt.Sprintf("%s: %s", details, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewDatabaseConnectionFailedError creates a retryable database connection error.
func NewDatabaseConnectionFailedError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeDatabaseConnectionFailed,
		Message:   "Database connection error",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewQueryExecutionFailedError creates a retryable query execution error.
func NewQueryExecutionFailedError(op string, err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeQueryExecutionFailed,
		Message:   "Database query execution error",
		Details:   fmt.Sprintf("operation: %s, error: %s", op, err.Error()),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}
