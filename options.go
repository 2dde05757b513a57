package apicall

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/ambiyansyah-risyal/apicall/internal/backoff"
)

// BackoffStrategy computes retry delays. See ExponentialJitter and
// DecorrelatedJitter.
type BackoffStrategy = backoff.Strategy

var (
	// ExponentialJitter yields base*2^attempt plus a uniform jitter, capped.
	ExponentialJitter BackoffStrategy = backoff.ExponentialJitterStrategy{}
	// DecorrelatedJitter yields a uniform delay between base and base*3^attempt, capped.
	DecorrelatedJitter BackoffStrategy = backoff.DecorrelatedJitterStrategy{}
)

// RetryCondition decides whether a failed attempt is retried. Validation,
// decode, interceptor, circuit-open and cancellation errors are never retried
// whatever it returns.
type RetryCondition func(err error) bool

// WithBaseURL sets the origin prepended to every endpoint.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithMaxRetries sets the maximum number of retry attempts
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryBaseDelay sets the delay before the first retry.
func WithRetryBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = d
	}
}

// WithMaxBackoff caps every retry delay.
func WithMaxBackoff(d time.Duration) Option {
	return func(c *Client) {
		c.maxBackoff = d
	}
}

// WithJitter sets the width of the random window added to each delay.
func WithJitter(d time.Duration) Option {
	return func(c *Client) {
		if d < 0 {
			d = 0
		}
		c.jitter = d
	}
}

// WithBackoffStrategy replaces the exponential backoff.
func WithBackoffStrategy(s BackoffStrategy) Option {
	return func(c *Client) {
		c.backoffStrategy = s
	}
}

// WithRetryCondition sets a custom retry condition
func WithRetryCondition(fn RetryCondition) Option {
	return func(c *Client) {
		c.retryCondition = fn
	}
}

// WithTimeout sets the per-attempt timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
		if c.httpClient != nil {
			c.httpClient.Timeout = d
		}
	}
}

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client == nil {
			return
		}
		c.httpClient = client
		if c.timeout != 0 {
			c.httpClient.Timeout = c.timeout
		}
	}
}

// WithTransport swaps the HTTP transport, keeping the timeout.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) {
		c.httpClient.Transport = rt
	}
}

// WithHeader adds a header sent with every call. Per-call headers win.
func WithHeader(key, value string) Option {
	return func(c *Client) {
		c.defaultHeaders.Set(key, value)
	}
}

// WithUserAgent overrides the default User-Agent.
func WithUserAgent(ua string) Option {
	return WithHeader("User-Agent", ua)
}

// WithRequestInterceptor appends request interceptors.
func WithRequestInterceptor(interceptors ...RequestInterceptor) Option {
	return func(c *Client) {
		c.requestInterceptors = append(c.requestInterceptors, interceptors...)
	}
}

// WithResponseInterceptor appends response interceptors.
func WithResponseInterceptor(interceptors ...ResponseInterceptor) Option {
	return func(c *Client) {
		c.responseInterceptors = append(c.responseInterceptors, interceptors...)
	}
}

// WithTokenSource makes NewDefault install AuthInterceptor for ts.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) {
		c.tokenSource = ts
	}
}

// WithDeduplication turns in-flight deduplication on or off. It is on by
// default.
func WithDeduplication(enabled bool) Option {
	return func(c *Client) {
		if enabled {
			c.dedup = NewDeduplicator()
		} else {
			c.dedup = nil
		}
	}
}

// WithCircuitBreaker enables a circuit breaker around each attempt.
func WithCircuitBreaker(config CircuitBreakerConfig) Option {
	return func(c *Client) {
		cfg := config.withDefaults()
		c.breakerConfig = &cfg
	}
}

// WithMetrics enables Prometheus metrics collection
func WithMetrics() Option {
	return func(c *Client) {
		c.metrics = NewMetricsCollector()
	}
}

// WithMetricsCollector sets a custom metrics collector
func WithMetricsCollector(collector *MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = collector
	}
}

// WithTracerProvider records one span per logical call on tp.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) {
		if tp != nil {
			c.tracer = tp.Tracer(tracerName, trace.WithInstrumentationVersion(Version))
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSimpleLogger logs to the console at debug level
func WithSimpleLogger() Option {
	return func(c *Client) {
		c.logger = NewSimpleLogger()
	}
}

// WithRequestIDGenerator sets a custom function for generating request IDs
func WithRequestIDGenerator(gen func() string) Option {
	return func(c *Client) {
		c.requestIDGen = gen
	}
}

func withSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) {
		c.sleep = fn
	}
}

// ValidateConfiguration validates the client configuration and returns an error if invalid
func (c *Client) ValidateConfiguration() error {
	var errors []string

	errors = append(errors, c.validateRetryConfig()...)
	errors = append(errors, c.validateBaseURL()...)
	errors = append(errors, c.validateCircuitBreakerConfig()...)
	errors = append(errors, c.validateInterceptors()...)
	errors = append(errors, c.validateHTTPClientConfig()...)
	errors = append(errors, c.validateExtremeValues()...)

	if len(errors) > 0 {
		return &ClientError{
			Type:    ErrorTypeConfiguration,
			Message: "configuration validation failed",
			Cause:   fmt.Errorf("validation errors: %v", errors),
		}
	}

	return nil
}

func (c *Client) validateRetryConfig() []string {
	var errors []string

	if c.maxRetries < 0 {
		errors = append(errors, "maxRetries must be non-negative")
	}
	if c.retryBaseDelay < 0 {
		errors = append(errors, "retryBaseDelay must be non-negative")
	}
	if c.maxBackoff <= 0 {
		errors = append(errors, "maxBackoff must be positive")
	}
	if c.retryBaseDelay > c.maxBackoff {
		errors = append(errors, "maxBackoff must be greater than or equal to retryBaseDelay")
	}
	if c.timeout <= 0 {
		errors = append(errors, "timeout must be positive")
	}
	if c.retryCondition == nil {
		errors = append(errors, "retryCondition cannot be nil")
	}

	return errors
}

func (c *Client) validateBaseURL() []string {
	if c.baseURL == "" {
		return []string{"baseURL must be set"}
	}
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return []string{fmt.Sprintf("baseURL is invalid: %v", err)}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return []string{"baseURL must use http or https"}
	}
	if u.Host == "" {
		return []string{"baseURL must include a host"}
	}
	return nil
}

func (c *Client) validateCircuitBreakerConfig() []string {
	var errors []string

	if c.breakerConfig != nil {
		if c.breakerConfig.FailureThreshold == 0 {
			errors = append(errors, "circuitBreaker FailureThreshold must be positive")
		}
		if c.breakerConfig.RecoveryTimeout <= 0 {
			errors = append(errors, "circuitBreaker RecoveryTimeout must be positive")
		}
	}

	return errors
}

func (c *Client) validateInterceptors() []string {
	var errors []string

	for i, interceptor := range c.requestInterceptors {
		if interceptor == nil {
			errors = append(errors, fmt.Sprintf("requestInterceptors[%d] cannot be nil", i))
		}
	}
	for i, interceptor := range c.responseInterceptors {
		if interceptor == nil {
			errors = append(errors, fmt.Sprintf("responseInterceptors[%d] cannot be nil", i))
		}
	}

	return errors
}

func (c *Client) validateHTTPClientConfig() []string {
	if c.httpClient == nil {
		return []string{"HTTP client cannot be nil"}
	}
	return nil
}

func (c *Client) validateExtremeValues() []string {
	var errors []string

	if c.maxRetries > 100 {
		errors = append(errors, "maxRetries > 100 may cause excessive resource usage")
	}
	if c.maxBackoff > time.Hour {
		errors = append(errors, "maxBackoff > 1h may cause extremely long delays")
	}
	if c.timeout > 10*time.Minute {
		errors = append(errors, "timeout > 10m may cause requests to hang for too long")
	}

	return errors
}
