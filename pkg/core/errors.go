package core

import (
	"errors"
	"fmt"
)

// Error is the canonical error carried across package boundaries.
type Error struct {
	Type       ErrorType `json:"type"`
	Message    string    `json:"message"`
	Code       string    `json:"code,omitempty"`
	RetryAfter *int      `json:"retry_after,omitempty"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s (code: %s)", e.Type, e.Message, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorType categorizes errors.
type ErrorType string

const (
	// ErrPermission: camera/microphone access refused. Fatal to session
	// start; no retry without user action.
	ErrPermission ErrorType = "permission_error"
	// ErrAuthentication: the remote reports the credential is no longer
	// valid. The caller must re-authenticate before retrying.
	ErrAuthentication ErrorType = "authentication_error"
	// ErrRateLimit: quota exceeded. Surfaced distinctly so the caller can
	// offer a targeted remedy instead of a generic failure.
	ErrRateLimit ErrorType = "rate_limit_error"
	// ErrMalformedResponse: the remote returned something we could not
	// parse or that violates the analysis schema. Recoverable.
	ErrMalformedResponse ErrorType = "malformed_response_error"
	// ErrStorage: the local history log could not be read or written.
	// Callers degrade to an empty in-memory history.
	ErrStorage ErrorType = "storage_error"
	// ErrAPI: any other remote failure.
	ErrAPI ErrorType = "api_error"
)

// NewPermissionError creates a permission error.
func NewPermissionError(message string) *Error {
	return &Error{
		Type:    ErrPermission,
		Message: message,
	}
}

// NewAuthenticationError creates an authentication error.
func NewAuthenticationError(message string) *Error {
	return &Error{
		Type:    ErrAuthentication,
		Message: message,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(message string, retryAfter int) *Error {
	e := &Error{
		Type:    ErrRateLimit,
		Message: message,
	}
	if retryAfter > 0 {
		e.RetryAfter = &retryAfter
	}
	return e
}

// NewMalformedResponseError creates a malformed response error.
func NewMalformedResponseError(message string) *Error {
	return &Error{
		Type:    ErrMalformedResponse,
		Message: message,
	}
}

// NewStorageError creates a storage error.
func NewStorageError(message string) *Error {
	return &Error{
		Type:    ErrStorage,
		Message: message,
	}
}

// NewAPIError creates a generic API error.
func NewAPIError(message string) *Error {
	return &Error{
		Type:    ErrAPI,
		Message: message,
	}
}

// IsRetryable returns true if the caller may retry the same request
// without any corrective action first.
func (e *Error) IsRetryable() bool {
	switch e.Type {
	case ErrMalformedResponse, ErrAPI:
		return true
	default:
		return false
	}
}

func isType(err error, t ErrorType) bool {
	var ce *Error
	if !errors.As(err, &ce) {
		return false
	}
	return ce.Type == t
}

// IsQuotaExceeded reports whether err is a rate-limit failure.
func IsQuotaExceeded(err error) bool { return isType(err, ErrRateLimit) }

// IsAuthInvalidated reports whether err means the credential must be
// re-selected before another attempt.
func IsAuthInvalidated(err error) bool { return isType(err, ErrAuthentication) }

// IsPermissionDenied reports whether err is a device-permission refusal.
func IsPermissionDenied(err error) bool { return isType(err, ErrPermission) }

// IsMalformedResponse reports whether err is a parse/schema failure.
func IsMalformedResponse(err error) bool { return isType(err, ErrMalformedResponse) }

// IsStorageFailure reports whether err is a history persistence failure.
func IsStorageFailure(err error) bool { return isType(err, ErrStorage) }

// TransportError represents transport-level failures (DNS, timeouts,
// connection reset, TLS handshake, websocket dial) while talking to the
// remote model.
//
// Use errors.As(err, &TransportError{}) to distinguish transport failures
// from canonical API errors (*core.Error).
type TransportError struct {
	Op  string
	URL string
	Err error
}

func (e *TransportError) Error() string {
	switch {
	case e == nil:
		return ""
	case e.Op != "" && e.URL != "":
		return fmt.Sprintf("transport error during %s %s: %v", e.Op, e.URL, e.Err)
	case e.Op != "":
		return fmt.Sprintf("transport error during %s: %v", e.Op, e.Err)
	default:
		return fmt.Sprintf("transport error: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
