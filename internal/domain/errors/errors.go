package errors

import (
	"errors"
	"fmt"
)

// Error types for the assessment pipeline
type ErrorType string

const (
	ErrorTypeMissingCredentials ErrorType = "missing_credentials"
	ErrorTypeUpstreamFetch      ErrorType = "upstream_fetch"
	ErrorTypeMalformedResponse  ErrorType = "malformed_response"
	ErrorTypeNarrative          ErrorType = "narrative_generation"
	ErrorTypeToolExecution      ErrorType = "tool_execution"
	ErrorTypePipeline           ErrorType = "assessment_pipeline"
	ErrorTypeValidation         ErrorType = "validation"
	ErrorTypeNotFound           ErrorType = "not_found"
	ErrorTypeInternal           ErrorType = "internal"
	ErrorTypeExternal           ErrorType = "external"
)

// AppError represents a structured application error
type AppError struct {
	Type      ErrorType              `json:"type"`
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Cause     error                  `json:"-"`
	Retryable bool                   `json:"retryable"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// Error constructors
func NewMissingCredentialsError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMissingCredentials,
		Code:    "MISSING_CREDENTIALS",
		Message: message,
	}
}

func NewUpstreamFetchError(source string, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeUpstreamFetch,
		Code:      "UPSTREAM_FETCH_FAILED",
		Message:   fmt.Sprintf("%s fetch failed", source),
		Cause:     cause,
		Retryable: true,
		Details:   map[string]interface{}{"source": source},
	}
}

// NewUpstreamStatusError reports a non-2xx upstream response. Rate limiting
// and server errors are retryable.
func NewUpstreamStatusError(status int, cause error) *AppError {
	return &AppError{
		Type:      ErrorTypeUpstreamFetch,
		Code:      "UPSTREAM_STATUS",
		Message:   fmt.Sprintf("upstream returned status %d", status),
		Cause:     cause,
		Retryable: status == 429 || status >= 500,
		Details:   map[string]interface{}{"status": status},
	}
}

func NewMalformedResponseError(source, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeMalformedResponse,
		Code:    "MALFORMED_RESPONSE",
		Message: fmt.Sprintf("%s returned a malformed response: %s", source, message),
		Details: map[string]interface{}{"source": source},
	}
}

func NewNarrativeError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeNarrative,
		Code:      "NARRATIVE_GENERATION_FAILED",
		Message:   message,
		Retryable: true,
	}
}

func NewToolExecutionError(tool, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeToolExecution,
		Code:    "TOOL_EXECUTION_FAILED",
		Message: message,
		Details: map[string]interface{}{"tool": tool},
	}
}

func NewPipelineError(message string) *AppError {
	return &AppError{
		Type:    ErrorTypePipeline,
		Code:    "ASSESSMENT_FAILED",
		Message: message,
	}
}

func NewValidationError(code, message string) *AppError {
	return &AppError{
		Type:    ErrorTypeValidation,
		Code:    code,
		Message: message,
	}
}

func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Type:    ErrorTypeNotFound,
		Code:    "RESOURCE_NOT_FOUND",
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func NewInternalError(message string) *AppError {
	return &AppError{
		Type:      ErrorTypeInternal,
		Code:      "INTERNAL_ERROR",
		Message:   message,
		Retryable: true,
	}
}

func NewExternalError(service, message string) *AppError {
	return &AppError{
		Type:      ErrorTypeExternal,
		Code:      "EXTERNAL_SERVICE_ERROR",
		Message:   fmt.Sprintf("%s service error: %s", service, message),
		Retryable: true,
		Details:   map[string]interface{}{"service": service},
	}
}

// Wrap wraps an error with a message using fmt.Errorf with %w
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// IsType checks if an error is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable checks if an error is retryable
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
