// Package apicall is the request client for the CRM backend API.
//
// A Client wraps net/http with the behaviour every caller of the API needs:
//
//   - Ordered request and response interceptor chains
//   - Legacy /api/* to /api/v1/* endpoint migration behind a runtime flag
//     (see MigrationInterceptor and the migration package)
//   - Deduplication of identical in-flight calls (GET by default)
//   - Retries of transient failures with exponential backoff and jitter,
//     capped at 30s per delay
//   - Optional response schema validation
//   - Optional circuit breaker, Prometheus metrics and OpenTelemetry spans
//
// There is no package-level client. The composition root builds one and
// passes it to whoever needs it:
//
//	cfg, err := config.Load()
//	flags, _, err := cfg.FlagSource(logger)
//	migrator := migration.MustNew(migration.DefaultTable(), flags)
//	client := apicall.NewDefault(cfg, migrator, apicall.WithMetrics())
//
//	resp, err := client.Call(ctx, "/api/agents", apicall.RequestOptions{})
//	agents, err := apicall.CallAs[[]Agent](ctx, client, "/api/agents", apicall.RequestOptions{})
//
// Errors are *ClientError values; use errors.Is with ErrValidation,
// ErrCanceled, ErrHTTP, ErrNetwork or ErrCircuitOpen to branch on them, and
// IsRetryable to apply the client's retry heuristic elsewhere.
package apicall
