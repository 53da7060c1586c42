package errors

import (
	stderrors "errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

// Client-side error constructors

// TransportError classifies a socket failure on a relay connection.
func TransportError(relay, operation string, cause error) *AppError {
	code, severity, userMessage := classifyTransport(cause)
	return Wrap(cause, ErrorTypeTransport, code, fmt.Sprintf("relay %s failed", operation)).
		WithSeverity(severity).
		WithUserMessage(userMessage).
		WithRelay(relay)
}

func classifyTransport(cause error) (string, ErrorSeverity, string) {
	switch {
	case cause == nil:
		return "TRANSPORT_ERROR", SeverityMedium, "Relay connection error occurred."
	case websocket.IsCloseError(cause, websocket.CloseNormalClosure):
		return "WS_NORMAL_CLOSURE", SeverityLow, "Connection closed normally."
	case websocket.IsCloseError(cause, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		return "WS_ABNORMAL_CLOSURE", SeverityMedium, "Connection lost unexpectedly."
	case stderrors.Is(cause, websocket.ErrBadHandshake):
		return "WS_BAD_HANDSHAKE", SeverityHigh, "Relay refused the websocket handshake."
	}

	var errno syscall.Errno
	if stderrors.As(cause, &errno) {
		switch errno {
		case syscall.ECONNREFUSED:
			return "CONNECTION_REFUSED", SeverityHigh, "Connection refused by relay."
		case syscall.ECONNRESET:
			return "CONNECTION_RESET", SeverityMedium, "Connection was reset by relay."
		case syscall.ETIMEDOUT:
			return "CONNECTION_TIMEOUT", SeverityMedium, "Connection timed out."
		}
	}

	var opErr *net.OpError
	if stderrors.As(cause, &opErr) {
		switch opErr.Op {
		case "dial":
			return "NETWORK_DIAL_FAILED", SeverityHigh, "Failed to reach relay."
		case "read":
			return "NETWORK_READ_FAILED", SeverityMedium, "Failed to read from relay."
		case "write":
			return "NETWORK_WRITE_FAILED", SeverityMedium, "Failed to write to relay."
		}
	}

	var netErr net.Error
	if stderrors.As(cause, &netErr) && netErr.Timeout() {
		return "NETWORK_TIMEOUT", SeverityMedium, "Network operation timed out."
	}
	if isTemporaryNetError(cause) {
		return "NETWORK_TEMPORARY", SeverityLow, "Temporary network error."
	}
	return "TRANSPORT_ERROR", SeverityMedium, "Relay connection error occurred."
}

// ProtocolError describes an inbound frame that could not be understood.
func ProtocolError(relay, reason string) *AppError {
	return New(ErrorTypeProtocol, "PROTOCOL_ERROR", fmt.Sprintf("malformed relay frame: %s", reason)).
		WithSeverity(SeverityLow).
		WithRelay(relay)
}

// RelayRejection records an OK false answer to a published event.
func RelayRejection(relay, eventID, reason string) *AppError {
	return New(ErrorTypeRejection, "EVENT_REJECTED", "relay rejected event").
		WithSeverity(SeverityMedium).
		WithDetails(fmt.Sprintf("event %s: %s", eventID, reason)).
		WithRelay(relay)
}

// EventValidationError creates an error for event validation failures
func EventValidationError(eventID, reason string) *AppError {
	return New(ErrorTypeValidation, "EVENT_VALIDATION_FAILED", fmt.Sprintf("event validation failed: %s", reason)).
		WithSeverity(SeverityLow).
		WithDetails(fmt.Sprintf("event id: %s", eventID))
}

// KeyMaterialError is returned for unusable private keys.
func KeyMaterialError(reason string, cause error) *AppError {
	if cause == nil {
		return New(ErrorTypeValidation, "INVALID_KEY", fmt.Sprintf("invalid key material: %s", reason)).
			WithSeverity(SeverityHigh)
	}
	return Wrap(cause, ErrorTypeValidation, "INVALID_KEY", fmt.Sprintf("invalid key material: %s", reason)).
		WithSeverity(SeverityHigh)
}

// FilterError creates an error for filter validation issues
func FilterError(reason string) *AppError {
	return New(ErrorTypeValidation, "FILTER_ERROR", fmt.Sprintf("filter validation failed: %s", reason)).
		WithSeverity(SeverityLow)
}

// ConfigurationError creates an error for configuration issues
func ConfigurationError(field, reason string) *AppError {
	return New(ErrorTypeConfig, "CONFIGURATION_ERROR", fmt.Sprintf("configuration error in %s: %s", field, reason)).
		WithSeverity(SeverityCritical)
}

// StorageError wraps a persistence failure.
func StorageError(operation string, cause error) *AppError {
	return Wrap(cause, ErrorTypeStorage, "STORAGE_ERROR", fmt.Sprintf("storage %s failed", operation)).
		WithSeverity(SeverityHigh)
}

// TimeoutError creates a timeout error
func TimeoutError(operation string) *AppError {
	return New(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation)).
		WithSeverity(SeverityMedium)
}

// IsRecoverable determines if an error is recoverable (can be retried)
func IsRecoverable(err error) bool {
	appErr, ok := As(err)
	if !ok {
		return false
	}
	switch appErr.Type {
	case ErrorTypeTimeout, ErrorTypeTransport, ErrorTypeStorage:
		return appErr.Severity != SeverityCritical
	case ErrorTypeInternal:
		return appErr.Severity == SeverityLow || appErr.Severity == SeverityMedium
	default:
		// protocol, rejection, validation and config need a different input
		return false
	}
}

// ShouldRetry determines if an operation should be retried based on the error
func ShouldRetry(err error, attemptCount int, maxAttempts int) bool {
	if attemptCount >= maxAttempts {
		return false
	}
	return IsRecoverable(err)
}

// isTemporaryNetError stands in for the deprecated net.Error.Temporary.
func isTemporaryNetError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	temporaryPatterns := []string{
		"connection refused",
		"no route to host",
		"network is unreachable",
		"connection reset by peer",
		"broken pipe",
		"i/o timeout",
	}
	for _, pattern := range temporaryPatterns {
		if strings.Contains(errStr, pattern) {
			return true
		}
	}
	return false
}
