package apicall

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestClientError_Error(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeHTTP,
		Message:    "HTTP 503: Service Unavailable",
		RequestID:  "req-1",
		Attempt:    4,
		MaxRetries: 3,
	}

	want := "[req-1] HTTP: HTTP 503: Service Unavailable (attempt 4/4)"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	withCause := &ClientError{Type: ErrorTypeNetwork, Message: "network request failed", Cause: errors.New("dial tcp: refused")}
	if withCause.Error() != "Network: network request failed (dial tcp: refused)" {
		t.Errorf("Unexpected message %q", withCause.Error())
	}

	var nilErr *ClientError
	if nilErr.Error() != "<nil>" {
		t.Errorf("Unexpected nil message %q", nilErr.Error())
	}
}

func TestClientError_IsAndUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("wrapped: %w", &ClientError{Type: ErrorTypeValidation, Message: "bad", Cause: cause})

	if !errors.Is(err, ErrValidation) {
		t.Error("Expected errors.Is(err, ErrValidation)")
	}
	if errors.Is(err, ErrHTTP) {
		t.Error("Validation error matched ErrHTTP")
	}
	if !errors.Is(err, cause) {
		t.Error("Expected errors.Is to reach the cause")
	}

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeValidation {
		t.Errorf("errors.As failed: %v", clientErr)
	}
}

func TestClientError_DebugInfo(t *testing.T) {
	err := &ClientError{
		Type:       ErrorTypeHTTP,
		Message:    "HTTP 500: Internal Server Error",
		RequestID:  "req-9",
		Method:     "GET",
		Endpoint:   "/api/agents",
		URL:        "http://localhost:8000/api/v1/agents",
		StatusCode: 500,
		Body:       "oops",
		Attempt:    1,
		MaxRetries: 0,
		Timestamp:  time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
		Duration:   time.Second,
		Cause:      errors.New("root"),
	}

	info := err.DebugInfo()
	for _, want := range []string{
		"Error Type: HTTP",
		"Request ID: req-9",
		"Method: GET",
		"Endpoint: /api/agents",
		"URL: http://localhost:8000/api/v1/agents",
		"Status Code: 500",
		"Body: oops",
		"Attempt: 1/1",
		"Timestamp: 2026-01-02T03:04:05Z",
		"Duration: 1s",
		"Cause: root",
	} {
		if !strings.Contains(info, want) {
			t.Errorf("DebugInfo missing %q:\n%s", want, info)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"network", &ClientError{Type: ErrorTypeNetwork}, true},
		{"500", newHTTPError(500, "500 Internal Server Error", nil), true},
		{"503", newHTTPError(503, "", nil), true},
		{"404", newHTTPError(404, "404 Not Found", nil), false},
		{"408 message matches", newHTTPError(408, "408 Request Timeout", nil), true},
		{"validation", &ClientError{Type: ErrorTypeValidation, Message: "timeout in field"}, false},
		{"canceled", newCanceledError(context.Canceled), false},
		{"circuit open", &ClientError{Type: ErrorTypeCircuitOpen}, false},
		{"interceptor", &ClientError{Type: ErrorTypeInterceptor, Message: "network"}, false},
		{"plain fetch failure", errors.New("Failed to fetch"), true},
		{"plain 504", errors.New("upstream returned 504"), true},
		{"plain other", errors.New("permission denied"), false},
		{"context canceled", context.Canceled, false},
		{"deadline", context.DeadlineExceeded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewHTTPError(t *testing.T) {
	err := newHTTPError(502, "502 Bad Gateway", []byte("upstream"))

	if err.Message != "HTTP 502: Bad Gateway" {
		t.Errorf("Unexpected message %q", err.Message)
	}
	if err.Status != "Bad Gateway" || err.Body != "upstream" {
		t.Errorf("Unexpected status/body %q %q", err.Status, err.Body)
	}

	if got := newHTTPError(418, "", nil).Message; got != "HTTP 418: I'm a teapot" {
		t.Errorf("Expected status text fallback, got %q", got)
	}
}
