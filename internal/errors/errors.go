package errors

import (
	stderrors "errors"
	"fmt"
	"runtime"
	"time"

	"go.uber.org/zap"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	ErrorTypeTransport  ErrorType = "transport"
	ErrorTypeProtocol   ErrorType = "protocol"
	ErrorTypeRejection  ErrorType = "rejection"
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConfig     ErrorType = "config"
	ErrorTypeStorage    ErrorType = "storage"
	ErrorTypeTimeout    ErrorType = "timeout"
	ErrorTypeInternal   ErrorType = "internal"
)

// ErrorSeverity represents the severity level of errors
type ErrorSeverity string

const (
	SeverityLow      ErrorSeverity = "low"      // expected noise, the client carries on
	SeverityMedium   ErrorSeverity = "medium"   // one relay or one event affected
	SeverityHigh     ErrorSeverity = "high"     // a component stopped working
	SeverityCritical ErrorSeverity = "critical" // the process cannot continue
)

// AppError represents a structured application error
type AppError struct {
	Type        ErrorType     `json:"type"`
	Code        string        `json:"code"`
	Message     string        `json:"message"`
	Details     string        `json:"details,omitempty"`
	Severity    ErrorSeverity `json:"severity"`
	Timestamp   time.Time     `json:"timestamp"`
	Relay       string        `json:"relay,omitempty"`
	UserMessage string        `json:"user_message,omitempty"`
	Cause       error         `json:"-"`
	StackTrace  string        `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("[%s:%s] %s: %s", e.Type, e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// Unwrap implements the Unwrap interface for error wrapping
func (e *AppError) Unwrap() error {
	return e.Cause
}

// New creates a new AppError with stack trace capture
func New(errorType ErrorType, code string, message string) *AppError {
	return &AppError{
		Type:       errorType,
		Code:       code,
		Message:    message,
		Severity:   SeverityMedium,
		Timestamp:  time.Now(),
		StackTrace: captureStackTrace(),
	}
}

// Wrap wraps an existing error with additional context
func Wrap(err error, errorType ErrorType, code string, message string) *AppError {
	appErr := New(errorType, code, message)
	appErr.Cause = err
	if err != nil {
		appErr.Details = err.Error()
	}
	return appErr
}

// WithSeverity sets the severity level of an error
func (e *AppError) WithSeverity(severity ErrorSeverity) *AppError {
	e.Severity = severity
	return e
}

// WithDetails adds additional details to an error
func (e *AppError) WithDetails(details string) *AppError {
	e.Details = details
	return e
}

// WithUserMessage sets a user-friendly message
func (e *AppError) WithUserMessage(message string) *AppError {
	e.UserMessage = message
	return e
}

// WithRelay associates an error with the relay it came from
func (e *AppError) WithRelay(url string) *AppError {
	e.Relay = url
	return e
}

// As extracts an *AppError from an error chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsType reports whether err carries an AppError of the given type.
func IsType(err error, t ErrorType) bool {
	appErr, ok := As(err)
	return ok && appErr.Type == t
}

// Fields returns the zap fields describing err.
func Fields(err error) []zap.Field {
	appErr, ok := As(err)
	if !ok {
		return []zap.Field{zap.Error(err)}
	}
	fields := []zap.Field{
		zap.String("error_type", string(appErr.Type)),
		zap.String("error_code", appErr.Code),
		zap.String("severity", string(appErr.Severity)),
	}
	if appErr.Relay != "" {
		fields = append(fields, zap.String("relay", appErr.Relay))
	}
	if appErr.Details != "" {
		fields = append(fields, zap.String("details", appErr.Details))
	}
	if appErr.Cause != nil {
		fields = append(fields, zap.Error(appErr.Cause))
	}
	if appErr.Severity == SeverityHigh || appErr.Severity == SeverityCritical {
		fields = append(fields, zap.String("stack_trace", appErr.StackTrace))
	}
	return fields
}

// Log writes err at the level matching its severity. Plain errors log at warn.
func Log(l *zap.Logger, err error) {
	if err == nil {
		return
	}
	msg := err.Error()
	severity := SeverityMedium
	if appErr, ok := As(err); ok {
		msg = appErr.Message
		severity = appErr.Severity
	}
	fields := Fields(err)

	switch severity {
	case SeverityLow:
		l.Debug(msg, fields...)
	case SeverityMedium:
		l.Warn(msg, fields...)
	default:
		l.Error(msg, fields...)
	}
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	buf := make([]byte, 4096)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}
