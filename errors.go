package apicall

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Error types carried by ClientError.Type.
const (
	ErrorTypeNetwork       = "Network"
	ErrorTypeHTTP          = "HTTP"
	ErrorTypeValidation    = "Validation"
	ErrorTypeCanceled      = "Canceled"
	ErrorTypeDecode        = "Decode"
	ErrorTypeInterceptor   = "Interceptor"
	ErrorTypeCircuitOpen   = "CircuitOpen"
	ErrorTypeRequest       = "Request"
	ErrorTypeConfiguration = "Configuration"
)

// Sentinel errors for errors.Is. They match any ClientError of the same type.
var (
	// ErrNetwork matches transport failures.
	ErrNetwork error = &ClientError{Type: ErrorTypeNetwork, Message: "network request failed"}

	// ErrHTTP matches non-2xx responses.
	ErrHTTP error = &ClientError{Type: ErrorTypeHTTP, Message: "unexpected status"}

	// ErrValidation matches responses rejected by a Schema.
	ErrValidation error = &ClientError{Type: ErrorTypeValidation, Message: "response failed schema validation"}

	// ErrCanceled matches calls aborted through their context.
	ErrCanceled error = &ClientError{Type: ErrorTypeCanceled, Message: "request canceled"}

	// ErrCircuitOpen is returned while the circuit breaker rejects calls.
	ErrCircuitOpen error = &ClientError{Type: ErrorTypeCircuitOpen, Message: "circuit breaker is open"}
)

var retryablePattern = regexp.MustCompile(`(?i)network|timeout|fetch|502|503|504`)

// ClientError is the error returned by Client.Call.
type ClientError struct {
	Type    string
	Message string
	Cause   error

	// StatusCode, Status and Body are set for HTTP errors.
	StatusCode int
	Status     string
	Body       string

	RequestID  string
	Method     string
	Endpoint   string
	URL        string
	Attempt    int
	MaxRetries int
	Timestamp  time.Time
	Duration   time.Duration
}

// Error implements error interface.
func (e *ClientError) Error() string {
	if e == nil {
		return "<nil>"
	}
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s (%v)", msg, e.Cause)
	}
	if e.RequestID != "" {
		msg = fmt.Sprintf("[%s] %s", e.RequestID, msg)
	}
	if e.Attempt > 0 {
		msg = fmt.Sprintf("%s (attempt %d/%d)", msg, e.Attempt, e.MaxRetries+1)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *ClientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is compares error types for errors.Is.
func (e *ClientError) Is(target error) bool {
	if e == nil {
		return false
	}
	if targetErr, ok := target.(*ClientError); ok {
		return e.Type == targetErr.Type
	}
	return false
}

// DebugInfo renders a multi-line string with diagnostic context.
func (e *ClientError) DebugInfo() string {
	if e == nil {
		return "Error: <nil>"
	}
	info := fmt.Sprintf("Error Type: %s\n", e.Type)
	info += fmt.Sprintf("Message: %s\n", e.Message)
	if e.RequestID != "" {
		info += fmt.Sprintf("Request ID: %s\n", e.RequestID)
	}
	if e.Method != "" {
		info += fmt.Sprintf("Method: %s\n", e.Method)
	}
	if e.Endpoint != "" {
		info += fmt.Sprintf("Endpoint: %s\n", e.Endpoint)
	}
	if e.URL != "" {
		info += fmt.Sprintf("URL: %s\n", e.URL)
	}
	if e.StatusCode > 0 {
		info += fmt.Sprintf("Status Code: %d\n", e.StatusCode)
	}
	if e.Body != "" {
		info += fmt.Sprintf("Body: %s\n", e.Body)
	}
	if e.Attempt > 0 {
		info += fmt.Sprintf("Attempt: %d/%d\n", e.Attempt, e.MaxRetries+1)
	}
	if !e.Timestamp.IsZero() {
		info += fmt.Sprintf("Timestamp: %s\n", e.Timestamp.Format(time.RFC3339))
	}
	if e.Duration > 0 {
		info += fmt.Sprintf("Duration: %v\n", e.Duration)
	}
	if e.Cause != nil {
		info += fmt.Sprintf("Cause: %v\n", e.Cause)
	}
	return info
}

// IsRetryable reports whether err is a transient failure worth another
// attempt: transport errors, HTTP status >= 500, and errors whose message
// mentions network, timeout, fetch, 502, 503 or 504. Validation, decode,
// interceptor, circuit-open and cancellation errors are never retryable.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var clientErr *ClientError
	if errors.As(err, &clientErr) {
		switch clientErr.Type {
		case ErrorTypeNetwork:
			return true
		case ErrorTypeHTTP:
			return clientErr.StatusCode >= 500 || retryablePattern.MatchString(clientErr.Message)
		default:
			return false
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return retryablePattern.MatchString(err.Error())
}

// terminal reports whether err must never be retried, whatever the retry
// condition says.
func terminal(err error) bool {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		return false
	}
	switch clientErr.Type {
	case ErrorTypeValidation, ErrorTypeCanceled, ErrorTypeDecode, ErrorTypeInterceptor, ErrorTypeCircuitOpen, ErrorTypeRequest:
		return true
	}
	return false
}

func newHTTPError(statusCode int, status string, body []byte) *ClientError {
	text := strings.TrimSpace(strings.TrimPrefix(status, strconv.Itoa(statusCode)))
	if text == "" {
		text = http.StatusText(statusCode)
	}
	return &ClientError{
		Type:       ErrorTypeHTTP,
		Message:    fmt.Sprintf("HTTP %d: %s", statusCode, text),
		StatusCode: statusCode,
		Status:     text,
		Body:       string(body),
	}
}

func newCanceledError(cause error) *ClientError {
	return &ClientError{Type: ErrorTypeCanceled, Message: "request canceled", Cause: cause}
}
