// Package errors provides standardized error handling for webhook delivery.
//
// Dispatch failures surface to the provider as 200 responses carrying a
// human readable message; only authentication and malformed payloads map to
// 4xx. Nothing in the webhook path maps to 5xx because the provider retries
// those deliveries indefinitely.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeUnauthorized   ErrorCode = "UNAUTHORIZED"
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"

	ErrCodeInvalidVideoTitle ErrorCode = "INVALID_VIDEO_TITLE"
	ErrCodeDemoNotFound      ErrorCode = "DEMO_NOT_FOUND"
	ErrCodeVideoNotFound     ErrorCode = "VIDEO_NOT_FOUND"
	ErrCodeSignedURLFailed   ErrorCode = "SIGNED_URL_FAILED"

	ErrCodeDuplicateEvent    ErrorCode = "DUPLICATE_EVENT"
	ErrCodeBroadcastFailed   ErrorCode = "BROADCAST_FAILED"
	ErrCodePersistenceFailed ErrorCode = "PERSISTENCE_FAILED"
	ErrCodeLookupFailed      ErrorCode = "LOOKUP_FAILED"

	ErrCodeNotificationSendFailed ErrorCode = "NOTIFICATION_SEND_FAILED"
	ErrCodeIndexingFailed         ErrorCode = "INDEXING_FAILED"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
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
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message, details string, retryable bool, cause error) *StandardError {
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
// 2. Error Constructors
// ==========================

func NewUnauthorizedError(details string) *StandardError {
	return newError(ErrCodeUnauthorized, "Unauthorized", details, false, nil)
}

func NewInvalidPayloadError(details string) *StandardError {
	return newError(ErrCodeInvalidPayload, "Invalid webhook payload", details, false, nil)
}

func NewInvalidVideoTitleError() *StandardError {
	return newError(ErrCodeInvalidVideoTitle, "Invalid or missing video title.", "", false, nil)
}

func NewDemoNotFoundError(conversationID string) *StandardError {
	return newError(ErrCodeDemoNotFound, "Demo not found for conversation.",
		fmt.Sprintf("conversationId: %s", conversationID), false, nil)
}

func NewVideoNotFoundError(title string) *StandardError {
	return newError(ErrCodeVideoNotFound, "Video not found.",
		fmt.Sprintf("title: %s", title), false, nil)
}

func NewSignedURLFailedError(path string, err error) *StandardError {
	return newError(ErrCodeSignedURLFailed, "Could not generate video URL.",
		fmt.Sprintf("path: %s, error: %v", path, err), true, err)
}

func NewDuplicateEventError(eventID string) *StandardError {
	return newError(ErrCodeDuplicateEvent, "Event already processed.",
		fmt.Sprintf("eventId: %s", eventID), false, nil)
}

func NewBroadcastFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeBroadcastFailed, "Could not notify the demo session.",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewPersistenceFailedError(table string, err error) *StandardError {
	return newError(ErrCodePersistenceFailed, "Could not store webhook data.",
		fmt.Sprintf("table: %s, error: %v", table, err), true, err)
}

func NewLookupFailedError(table string, err error) *StandardError {
	return newError(ErrCodeLookupFailed, "Could not look up demo data.",
		fmt.Sprintf("table: %s, error: %v", table, err), true, err)
}

func NewNotificationSendFailedError(channel string, err error) *StandardError {
	return newError(ErrCodeNotificationSendFailed, "Notification send failed",
		fmt.Sprintf("channel: %s, error: %v", channel, err), true, err)
}

func NewIndexingFailedError(index string, err error) *StandardError {
	return newError(ErrCodeIndexingFailed, "Analytics indexing failed",
		fmt.Sprintf("index: %s, error: %v", index, err), true, err)
}

// ==========================
// 3. HTTP Mapping
// ==========================

// Normalize returns err as a StandardError, wrapping unknown errors as
// INTERNAL_ERROR.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return newError(ErrCodeInternal, "Webhook processed with errors.", err.Error(), false, err)
}

// HTTPStatus returns the status code the webhook endpoint answers with.
func HTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeInvalidPayload:
		return http.StatusBadRequest
	default:
		return http.StatusOK
	}
}

// Is reports whether err carries the given code anywhere in its chain.
func Is(err error, code ErrorCode) bool {
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr.Code == code
	}
	return false
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case code == ErrCodeUnauthorized:
		return "AUTH"
	case strings.Contains(codeStr, "INVALID"):
		return "VALIDATION"
	case strings.Contains(codeStr, "NOT_FOUND") || code == ErrCodeLookupFailed:
		return "LOOKUP"
	case code == ErrCodeSignedURLFailed:
		return "STORAGE"
	case code == ErrCodeBroadcastFailed:
		return "REALTIME"
	case code == ErrCodePersistenceFailed || code == ErrCodeDuplicateEvent:
		return "DATABASE"
	case code == ErrCodeNotificationSendFailed || code == ErrCodeIndexingFailed:
		return "INTEGRATION"
	default:
		return "INTERNAL"
	}
}
