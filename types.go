package apicall

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"
)

// Logger is the structured logger used by the client. Key/value pairs follow
// the message, as in zap's sugared logger.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// PathMigrator rewrites legacy endpoints. *migration.Migrator implements it.
type PathMigrator interface {
	Enabled(ctx context.Context) bool
	MigratePath(path string) string
}

// TokenSource supplies the bearer token for AuthInterceptor. An empty token
// leaves the request unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to TokenSource.
type TokenSourceFunc func(ctx context.Context) (string, error)

// Token implements TokenSource.
func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// RequestOptions describes one logical call.
type RequestOptions struct {
	// Method defaults to GET.
	Method  string
	Headers http.Header
	// Body is sent as-is when it is a string, []byte or json.RawMessage, as a
	// multipart form when it is a *MultipartBody, and JSON-encoded otherwise.
	Body any

	// MaxRetries overrides the client's retry budget. Zero disables retries.
	MaxRetries *int
	// RetryBaseDelay overrides the client's base backoff delay when positive.
	RetryBaseDelay time.Duration

	// Dedupe forces deduplication on or off. Unset means on for GET only.
	Dedupe *bool

	Schema         Schema
	SkipValidation bool
}

// SetHeader sets a request header, allocating Headers if needed.
func (o *RequestOptions) SetHeader(key, value string) {
	if o.Headers == nil {
		o.Headers = make(http.Header)
	}
	o.Headers.Set(key, value)
}

func (o RequestOptions) method() string {
	if o.Method == "" {
		return http.MethodGet
	}
	return strings.ToUpper(o.Method)
}

// clone returns a copy whose headers can be modified without affecting o.
func (o RequestOptions) clone() RequestOptions {
	o.Headers = o.Headers.Clone()
	return o
}

// Int returns a pointer to n, for RequestOptions.MaxRetries.
func Int(n int) *int { return &n }

// Bool returns a pointer to b, for RequestOptions.Dedupe.
func Bool(b bool) *bool { return &b }

// RequestInterceptor transforms the endpoint and options before each attempt.
// Interceptors run in registration order.
type RequestInterceptor func(ctx context.Context, endpoint string, opts RequestOptions) (string, RequestOptions, error)

// ResponseInterceptor transforms a successfully parsed body. resp.Body can be
// read again; it holds the raw payload.
type ResponseInterceptor func(ctx context.Context, resp *http.Response, body any) (any, error)

// Response is the outcome of a successful call.
type Response struct {
	StatusCode int
	Header     http.Header
	// Endpoint is the endpoint actually requested, after interceptors.
	Endpoint string
	// Attempts counts the HTTP attempts made, retries included.
	Attempts int
	// Data is the parsed JSON body after response interceptors ran.
	Data any
	// Raw is the body as received.
	Raw []byte
}

// Decode stores Data into v.
func (r *Response) Decode(v any) error {
	if r == nil {
		return &ClientError{Type: ErrorTypeDecode, Message: "nil response"}
	}
	b, err := json.Marshal(r.Data)
	if err != nil {
		return &ClientError{Type: ErrorTypeDecode, Message: "re-encode response data", Cause: err, Endpoint: r.Endpoint}
	}
	if err := json.Unmarshal(b, v); err != nil {
		return &ClientError{Type: ErrorTypeDecode, Message: "decode response data", Cause: err, Endpoint: r.Endpoint}
	}
	return nil
}

// Option configures a Client.
type Option func(*Client)

// RoundTripperFunc adapts a function to http.RoundTripper.
type RoundTripperFunc func(*http.Request) (*http.Response, error)

// RoundTrip implements http.RoundTripper.
func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
