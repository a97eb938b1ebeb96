// Package errors defines the typed application errors shared by every stage of a run.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// ErrTypeConfig represents missing or malformed settings; fatal at startup
	ErrTypeConfig ErrorType = "config"
	// ErrTypeConnection represents transport failures (DNS, refused, timeout)
	ErrTypeConnection ErrorType = "connection"
	// ErrTypeHTTPStatus represents a non-2xx response from a remote service
	ErrTypeHTTPStatus ErrorType = "http_status"
	// ErrTypeDecode represents a response body that could not be decoded
	ErrTypeDecode ErrorType = "decode"
	// ErrTypeValidation represents rejected input data
	ErrTypeValidation ErrorType = "validation"
	// ErrTypeDispatch represents a failed webhook delivery
	ErrTypeDispatch ErrorType = "dispatch"
	// ErrTypeInternal represents internal system errors
	ErrTypeInternal ErrorType = "internal"
	// ErrTypeRateLimit represents a wait on the rate limiter that was cut short
	ErrTypeRateLimit ErrorType = "rate_limit"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	StatusCode int                    `json:"status_code,omitempty"`
	Cause      error                  `json:"-"`
	Context    map[string]interface{} `json:"context,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	parts := []string{string(e.Type), e.Message}

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		contextParts := make([]string, 0, len(keys))
		for _, k := range keys {
			contextParts = append(contextParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context={%s}", strings.Join(contextParts, ", ")))
	}

	return strings.Join(parts, ": ")
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// ConfigError creates a new configuration error
func ConfigError(msg string) *AppError {
	return &AppError{Type: ErrTypeConfig, Message: msg}
}

// ConnectionError creates a new connection error
func ConnectionError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeConnection, Message: msg, Cause: cause}
}

// HTTPStatusError creates an error for a non-2xx response. The body is
// truncated so that a large error page does not flood the logs.
func HTTPStatusError(statusCode int, body string) *AppError {
	const maxBody = 512
	if len(body) > maxBody {
		body = body[:maxBody] + "..."
	}
	return &AppError{
		Type:       ErrTypeHTTPStatus,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, strings.TrimSpace(body)),
		StatusCode: statusCode,
	}
}

// DecodeError creates a new decode error
func DecodeError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeDecode, Message: msg, Cause: cause}
}

// ValidationError creates a new validation error
func ValidationError(msg string) *AppError {
	return &AppError{Type: ErrTypeValidation, Message: msg}
}

// DispatchError creates a new dispatch error
func DispatchError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeDispatch, Message: msg, Cause: cause}
}

// InternalError creates a new internal error
func InternalError(msg string, cause error) *AppError {
	return &AppError{Type: ErrTypeInternal, Message: msg, Cause: cause}
}

// RateLimitError creates a new rate limit error
func RateLimitError(resource string, cause error) *AppError {
	return &AppError{
		Type:    ErrTypeRateLimit,
		Message: fmt.Sprintf("rate limit wait interrupted for %s", resource),
		Cause:   cause,
	}
}

// IsType reports whether any AppError in err's chain has the given type
func IsType(err error, errType ErrorType) bool {
	var appErr *AppError
	if !errors.As(err, &appErr) {
		return false
	}
	return appErr.Type == errType
}

// GetType returns the type of the first AppError in err's chain, ErrTypeInternal
// for foreign errors and "" for nil
func GetType(err error) ErrorType {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if !errors.As(err, &appErr) {
		return ErrTypeInternal
	}
	return appErr.Type
}
