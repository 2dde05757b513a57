package apicall

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ambiyansyah-risyal/apicall/config"
	"github.com/ambiyansyah-risyal/apicall/internal/backoff"
)

const tracerName = "github.com/ambiyansyah-risyal/apicall"

const contentTypeJSON = "application/json"

// Client issues calls against the API. It is safe for concurrent use.
type Client struct {
	httpClient      *http.Client
	baseURL         string
	timeout         time.Duration
	defaultHeaders  http.Header
	maxRetries      int
	retryBaseDelay  time.Duration
	maxBackoff      time.Duration
	jitter          time.Duration
	backoffStrategy BackoffStrategy
	backoff         *backoff.Calculator
	retryCondition  RetryCondition

	mu                   sync.RWMutex
	requestInterceptors  []RequestInterceptor
	responseInterceptors []ResponseInterceptor

	dedup         *Deduplicator
	breakerConfig *CircuitBreakerConfig
	breaker       *gobreaker.CircuitBreaker
	metrics       *MetricsCollector
	tracer        trace.Tracer
	logger        Logger
	tokenSource   TokenSource
	requestIDGen  func() string
	sleep         func(ctx context.Context, d time.Duration) error

	validationError error
}

// New constructs a Client using the provided functional options. A best effort
// validation is performed; call IsValid / ValidationError for errors.
func New(options ...Option) *Client {
	client := &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:         "http://localhost:8000",
		timeout:         30 * time.Second,
		defaultHeaders:  http.Header{"User-Agent": []string{UserAgent()}},
		maxRetries:      3,
		retryBaseDelay:  time.Second,
		maxBackoff:      30 * time.Second,
		jitter:          time.Second,
		backoffStrategy: ExponentialJitter,
		retryCondition:  IsRetryable,
		dedup:           NewDeduplicator(),
		tracer:          otel.Tracer(tracerName, trace.WithInstrumentationVersion(Version)),
		logger:          NewNopLogger(),
		requestIDGen:    uuid.NewString,
		sleep:           sleepContext,
	}

	for _, option := range options {
		option(client)
	}

	client.backoff = backoff.NewCalculator(client.backoffStrategy, client.maxBackoff, 2.0, client.jitter)
	if client.breakerConfig != nil {
		client.breaker = client.newCircuitBreaker(*client.breakerConfig)
	}

	if err := client.ValidateConfiguration(); err != nil {
		client.validationError = err
	}

	return client
}

// NewDefault builds the client used by the application from cfg. Its request
// chain starts with migration through migrator, then request ID, auth (when
// WithTokenSource is given) and debug logging; interceptors passed through
// opts run after these. A nil migrator leaves endpoints untouched.
func NewDefault(cfg config.Config, migrator PathMigrator, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(cfg.APIURL),
		WithTimeout(cfg.Timeout),
		WithMaxRetries(cfg.MaxRetries),
		WithRetryBaseDelay(cfg.RetryBaseDelay),
	}
	if logger, err := NewLogger(cfg.LogLevel); err == nil {
		base = append(base, WithLogger(logger))
	}
	if cfg.MetricsEnabled {
		base = append(base, WithMetrics())
	}

	c := New(append(base, opts...)...)

	defaults := []RequestInterceptor{MigrationInterceptor(migrator), RequestIDInterceptor()}
	if c.tokenSource != nil {
		defaults = append(defaults, AuthInterceptor(c.tokenSource))
	}
	defaults = append(defaults, LoggingRequestInterceptor(c.logger))

	c.mu.Lock()
	c.requestInterceptors = append(defaults, c.requestInterceptors...)
	c.responseInterceptors = append([]ResponseInterceptor{LoggingResponseInterceptor(c.logger)}, c.responseInterceptors...)
	c.mu.Unlock()

	return c
}

// AddRequestInterceptor appends fn to the request chain. Calls already in
// progress keep the chain they started with.
func (c *Client) AddRequestInterceptor(fn RequestInterceptor) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requestInterceptors = append(c.requestInterceptors, fn)
}

// AddResponseInterceptor appends fn to the response chain.
func (c *Client) AddResponseInterceptor(fn ResponseInterceptor) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.responseInterceptors = append(c.responseInterceptors, fn)
}

func (c *Client) interceptors() ([]RequestInterceptor, []ResponseInterceptor) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]RequestInterceptor(nil), c.requestInterceptors...),
		append([]ResponseInterceptor(nil), c.responseInterceptors...)
}

// Call performs one logical call: deduplication, then up to 1+MaxRetries
// attempts, each running the request interceptors, the HTTP exchange, the
// response interceptors and schema validation.
func (c *Client) Call(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if RequestIDFromContext(ctx) == "" {
		ctx = WithRequestID(ctx, c.requestIDGen())
	}

	if !c.shouldDedupe(opts) {
		return c.execute(ctx, endpoint, opts)
	}

	method := opts.method()
	key, err := DedupeKey(method, endpoint, opts.Body)
	if err != nil {
		return c.execute(ctx, endpoint, opts)
	}

	resp, shared, err := c.dedup.Do(ctx, key, func() (*Response, error) {
		return c.execute(ctx, endpoint, opts)
	})
	if shared {
		c.metrics.RecordDeduplicationHit(method, metricsEndpoint(endpoint))
		c.logger.Debug("deduplicated call", "requestID", RequestIDFromContext(ctx), "key", key)
	}
	return resp, err
}

// CallAs performs Call and decodes the resulting data into T.
func CallAs[T any](ctx context.Context, c *Client, endpoint string, opts RequestOptions) (T, error) {
	var out T
	resp, err := c.Call(ctx, endpoint, opts)
	if err != nil {
		return out, err
	}
	if err := resp.Decode(&out); err != nil {
		return out, err
	}
	return out, nil
}

// execute runs the retry loop for one logical call.
func (c *Client) execute(ctx context.Context, endpoint string, opts RequestOptions) (*Response, error) {
	start := time.Now()
	method := opts.method()
	metricEndpoint := metricsEndpoint(endpoint)
	requestID := RequestIDFromContext(ctx)

	maxRetries := c.maxRetries
	if opts.MaxRetries != nil {
		maxRetries = *opts.MaxRetries
	}
	baseDelay := c.retryBaseDelay
	if opts.RetryBaseDelay > 0 {
		baseDelay = opts.RetryBaseDelay
	}

	ctx, span := c.tracer.Start(ctx, "apicall "+method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", method),
			attribute.String("apicall.endpoint", endpoint),
			attribute.String("apicall.request_id", requestID),
		))
	defer span.End()

	c.metrics.RecordRequestStart(method, metricEndpoint)
	defer c.metrics.RecordRequestEnd(method, metricEndpoint)

	requestChain, responseChain := c.interceptors()

	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			c.metrics.RecordRetry(method, metricEndpoint, attempt)
		}

		resp, err := c.attempt(ctx, endpoint, opts, requestChain, responseChain)
		if err == nil {
			resp.Attempts = attempt + 1
			c.metrics.RecordRequest(method, metricEndpoint, resp.StatusCode, time.Since(start))
			span.SetAttributes(
				attribute.String("apicall.final_endpoint", resp.Endpoint),
				attribute.Int("http.response.status_code", resp.StatusCode),
				attribute.Int("apicall.attempts", resp.Attempts),
			)
			return resp, nil
		}

		clientErr := c.annotate(err, method, endpoint, requestID, attempt+1, maxRetries, start)

		if terminal(clientErr) || attempt >= maxRetries || !c.retryCondition(clientErr) {
			c.fail(span, clientErr, method, metricEndpoint, start)
			return nil, clientErr
		}

		delay := c.backoff.Delay(attempt, baseDelay)
		c.logger.Info("retrying request",
			"requestID", requestID,
			"method", method,
			"endpoint", endpoint,
			"attempt", attempt+1,
			"maxRetries", maxRetries,
			"delay", delay,
			"error", clientErr.Message)

		if err := c.sleep(ctx, delay); err != nil {
			canceled := c.annotate(newCanceledError(err), method, endpoint, requestID, attempt+1, maxRetries, start)
			c.fail(span, canceled, method, metricEndpoint, start)
			return nil, canceled
		}
	}
}

// attempt performs a single HTTP exchange and post-processes the response.
func (c *Client) attempt(ctx context.Context, endpoint string, opts RequestOptions, requestChain []RequestInterceptor, responseChain []ResponseInterceptor) (*Response, error) {
	finalEndpoint, finalOpts := endpoint, opts.clone()
	for _, interceptor := range requestChain {
		var err error
		finalEndpoint, finalOpts, err = interceptor(ctx, finalEndpoint, finalOpts)
		if err != nil {
			if ctx.Err() != nil {
				return nil, newCanceledError(ctx.Err())
			}
			return nil, &ClientError{Type: ErrorTypeInterceptor, Message: "request interceptor failed", Cause: err}
		}
	}
	if finalEndpoint != endpoint {
		c.metrics.RecordEndpointRewrite(opts.method(), metricsEndpoint(endpoint))
	}

	req, err := c.buildRequest(ctx, finalEndpoint, finalOpts)
	if err != nil {
		return nil, err
	}

	httpResp, err := c.roundTrip(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newCanceledError(ctx.Err())
		}
		var clientErr *ClientError
		if errors.As(err, &clientErr) {
			return nil, clientErr
		}
		return nil, &ClientError{Type: ErrorTypeNetwork, Message: "network request failed", Cause: err, URL: req.URL.String()}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newCanceledError(ctx.Err())
		}
		return nil, &ClientError{Type: ErrorTypeNetwork, Message: "network error reading response body", Cause: err, URL: req.URL.String()}
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		httpErr := newHTTPError(httpResp.StatusCode, httpResp.Status, raw)
		httpErr.URL = req.URL.String()
		return nil, httpErr
	}

	var data any
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, &ClientError{Type: ErrorTypeDecode, Message: "response body is not valid JSON", Cause: err, StatusCode: httpResp.StatusCode, URL: req.URL.String()}
		}
	}

	httpResp.Body = io.NopCloser(bytes.NewReader(raw))
	for _, interceptor := range responseChain {
		data, err = interceptor(ctx, httpResp, data)
		if err != nil {
			return nil, &ClientError{Type: ErrorTypeInterceptor, Message: "response interceptor failed", Cause: err, StatusCode: httpResp.StatusCode}
		}
	}

	if finalOpts.Schema != nil && !finalOpts.SkipValidation {
		if err := finalOpts.Schema.Validate(data); err != nil {
			return nil, &ClientError{Type: ErrorTypeValidation, Message: "response failed schema validation", Cause: err, StatusCode: httpResp.StatusCode, URL: req.URL.String()}
		}
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Endpoint:   finalEndpoint,
		Data:       data,
		Raw:        raw,
	}, nil
}

func (c *Client) buildRequest(ctx context.Context, endpoint string, opts RequestOptions) (*http.Request, error) {
	body, contentType, err := encodeBody(opts.Body)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeRequest, Message: "encode request body", Cause: err}
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, opts.method(), c.resolveURL(endpoint), reader)
	if err != nil {
		return nil, &ClientError{Type: ErrorTypeRequest, Message: "build request", Cause: err}
	}

	for key, values := range c.defaultHeaders {
		req.Header[key] = append([]string(nil), values...)
	}
	req.Header.Set("Content-Type", contentType)
	for key, values := range opts.Headers {
		req.Header[key] = append([]string(nil), values...)
	}
	return req, nil
}

// encodeBody returns the payload and the Content-Type to send with it.
func encodeBody(body any) ([]byte, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, contentTypeJSON, nil
	case *MultipartBody:
		return b.encode()
	case string:
		return []byte(b), contentTypeJSON, nil
	case []byte:
		return b, contentTypeJSON, nil
	case json.RawMessage:
		return b, contentTypeJSON, nil
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return raw, contentTypeJSON, nil
	}
}

func (c *Client) resolveURL(endpoint string) string {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return endpoint
	}
	if endpoint != "" && !strings.HasPrefix(endpoint, "/") {
		endpoint = "/" + endpoint
	}
	return strings.TrimRight(c.baseURL, "/") + endpoint
}

func (c *Client) annotate(err error, method, endpoint, requestID string, attempt, maxRetries int, start time.Time) *ClientError {
	var clientErr *ClientError
	if !errors.As(err, &clientErr) {
		clientErr = &ClientError{Type: ErrorTypeNetwork, Message: err.Error(), Cause: err}
	}
	clientErr.Method = method
	clientErr.Endpoint = endpoint
	clientErr.RequestID = requestID
	clientErr.Attempt = attempt
	clientErr.MaxRetries = maxRetries
	clientErr.Timestamp = time.Now()
	clientErr.Duration = time.Since(start)
	return clientErr
}

func (c *Client) fail(span trace.Span, err *ClientError, method, endpoint string, start time.Time) {
	c.metrics.RecordError(err.Type, method, endpoint)
	c.metrics.RecordRequest(method, endpoint, err.StatusCode, time.Since(start))

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Message)
	span.SetAttributes(
		attribute.String("apicall.error_type", err.Type),
		attribute.Int("apicall.attempts", err.Attempt),
	)
	if err.StatusCode > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", err.StatusCode))
	}

	if err.Type == ErrorTypeCanceled {
		c.logger.Debug("request canceled", "requestID", err.RequestID, "method", method, "endpoint", err.Endpoint)
		return
	}
	c.logger.Warn("request failed",
		"requestID", err.RequestID,
		"method", method,
		"endpoint", err.Endpoint,
		"type", err.Type,
		"attempts", err.Attempt,
		"error", err.Error())
}

// IsValid reports whether configuration validation passed at construction.
func (c *Client) IsValid() bool {
	return c.validationError == nil
}

// ValidationError returns the configuration validation error, if any.
func (c *Client) ValidationError() error {
	return c.validationError
}

// Metrics returns the collector, or nil when metrics are disabled.
func (c *Client) Metrics() *MetricsCollector {
	return c.metrics
}

// Deduplicator returns the in-flight registry, or nil when deduplication is off.
func (c *Client) Deduplicator() *Deduplicator {
	return c.dedup
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// metricsEndpoint drops the query string to keep label cardinality bounded.
func metricsEndpoint(endpoint string) string {
	path, _, _ := strings.Cut(endpoint, "?")
	if path == "" {
		return "/"
	}
	return path
}
