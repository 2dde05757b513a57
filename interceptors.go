package apicall

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// HeaderRequestID carries the logical call's request ID.
const HeaderRequestID = "X-Request-ID"

type requestIDKey struct{}

// WithRequestID returns a context carrying id. Client.Call uses it instead of
// generating a new ID.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID assigned to the current call.
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// MigrationInterceptor rewrites legacy endpoints through m while m reports
// itself enabled. The flag is checked on every attempt. Query strings are
// kept and merged with any query the versioned path introduces.
func MigrationInterceptor(m PathMigrator) RequestInterceptor {
	return func(ctx context.Context, endpoint string, opts RequestOptions) (string, RequestOptions, error) {
		if m == nil || !m.Enabled(ctx) {
			return endpoint, opts, nil
		}
		return migrateEndpoint(m, endpoint), opts, nil
	}
}

func migrateEndpoint(m PathMigrator, endpoint string) string {
	path, query, hasQuery := strings.Cut(endpoint, "?")
	migrated := m.MigratePath(path)
	if !hasQuery || query == "" {
		return migrated
	}
	if strings.Contains(migrated, "?") {
		return migrated + "&" + query
	}
	return migrated + "?" + query
}

// RequestIDInterceptor sets the X-Request-ID header to the call's request ID
// unless the caller already set one.
func RequestIDInterceptor() RequestInterceptor {
	return func(ctx context.Context, endpoint string, opts RequestOptions) (string, RequestOptions, error) {
		if opts.Headers.Get(HeaderRequestID) != "" {
			return endpoint, opts, nil
		}
		if id := RequestIDFromContext(ctx); id != "" {
			opts.SetHeader(HeaderRequestID, id)
		}
		return endpoint, opts, nil
	}
}

// AuthInterceptor adds "Authorization: Bearer <token>" from ts. A caller-set
// Authorization header is left alone.
func AuthInterceptor(ts TokenSource) RequestInterceptor {
	return func(ctx context.Context, endpoint string, opts RequestOptions) (string, RequestOptions, error) {
		if ts == nil || opts.Headers.Get("Authorization") != "" {
			return endpoint, opts, nil
		}
		token, err := ts.Token(ctx)
		if err != nil {
			return "", opts, fmt.Errorf("fetch auth token: %w", err)
		}
		if token != "" {
			opts.SetHeader("Authorization", "Bearer "+token)
		}
		return endpoint, opts, nil
	}
}

// LoggingRequestInterceptor logs every outgoing attempt at debug level.
func LoggingRequestInterceptor(logger Logger) RequestInterceptor {
	return func(ctx context.Context, endpoint string, opts RequestOptions) (string, RequestOptions, error) {
		if logger != nil {
			logger.Debug("api request",
				"requestID", RequestIDFromContext(ctx),
				"method", opts.method(),
				"endpoint", endpoint)
		}
		return endpoint, opts, nil
	}
}

// LoggingResponseInterceptor logs every parsed response at debug level.
func LoggingResponseInterceptor(logger Logger) ResponseInterceptor {
	return func(ctx context.Context, resp *http.Response, body any) (any, error) {
		if logger != nil && resp != nil {
			kv := []any{"requestID", RequestIDFromContext(ctx), "status", resp.StatusCode}
			if resp.Request != nil && resp.Request.URL != nil {
				kv = append(kv, "method", resp.Request.Method, "path", resp.Request.URL.Path)
			}
			logger.Debug("api response", kv...)
		}
		return body, nil
	}
}
