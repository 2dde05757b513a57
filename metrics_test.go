package apicall

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker"

	"github.com/ambiyansyah-risyal/apicall/migration"
)

func TestNewMetricsCollectorWithRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewMetricsCollectorWithRegistry(registry)

	if collector == nil {
		t.Fatal("NewMetricsCollectorWithRegistry returned nil")
	}
	if collector.GetRegistry() != registry {
		t.Error("Expected GetRegistry to return the supplied registry")
	}
	if collector.Registerer() != registry {
		t.Error("Expected Registerer to return the supplied registry")
	}
}

func TestNewMetricsCollector_ReturnsSharedDefault(t *testing.T) {
	first := NewMetricsCollector()
	second := NewMetricsCollector()

	if first != second {
		t.Error("Expected the default collector to be shared")
	}
	if first.GetRegistry() != prometheus.DefaultRegisterer.(*prometheus.Registry) {
		t.Error("Expected default collector on the default registry")
	}
}

func TestMetricsCollector_NilSafe(t *testing.T) {
	var mc *MetricsCollector

	mc.RecordRequest("GET", "/x", 200, time.Second)
	mc.RecordRequestStart("GET", "/x")
	mc.RecordRequestEnd("GET", "/x")
	mc.RecordRetry("GET", "/x", 1)
	mc.RecordDeduplicationHit("GET", "/x")
	mc.RecordEndpointRewrite("GET", "/x")
	mc.RecordCircuitBreakerState("x", gobreaker.StateOpen)
	mc.RecordError(ErrorTypeHTTP, "GET", "/x")

	if mc.GetRegistry() != nil || mc.Registerer() != nil {
		t.Error("Expected nil registry from nil collector")
	}
}

func TestMetricsCollector_CircuitBreakerStates(t *testing.T) {
	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())

	states := map[gobreaker.State]float64{
		gobreaker.StateClosed:   0,
		gobreaker.StateOpen:     1,
		gobreaker.StateHalfOpen: 2,
	}
	for state, want := range states {
		mc.RecordCircuitBreakerState("crm", state)
		if got := testutil.ToFloat64(mc.circuitBreakerState.WithLabelValues("crm")); got != want {
			t.Errorf("state %v: expected %v, got %v", state, want, got)
		}
	}
}

func TestCall_RecordsMetrics(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		jsonHandler(http.StatusOK, `{}`)(w, r)
	}))
	defer server.Close()

	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	migrator := migration.MustNew(migration.DefaultTable(), migration.Static(true))
	client, _ := newTestClient(t, server.URL,
		WithMetricsCollector(mc),
		WithRequestInterceptor(MigrationInterceptor(migrator)))

	if _, err := client.Call(context.Background(), "/api/agents?page=2", RequestOptions{}); err != nil {
		t.Fatalf(unexpectedErrMsg, err)
	}

	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("GET", "200", "/api/agents")); got != 1 {
		t.Errorf("Expected 1 completed request, got %v", got)
	}
	for _, attempt := range []string{"1", "2"} {
		if got := testutil.ToFloat64(mc.retriesTotal.WithLabelValues("GET", "/api/agents", attempt)); got != 1 {
			t.Errorf("Expected retry %s recorded once, got %v", attempt, got)
		}
	}
	if got := testutil.ToFloat64(mc.endpointRewrites.WithLabelValues("GET", "/api/agents")); got != 3 {
		t.Errorf("Expected a rewrite per attempt, got %v", got)
	}
	if got := testutil.ToFloat64(mc.requestsInFlight.WithLabelValues("GET", "/api/agents")); got != 0 {
		t.Errorf("Expected in-flight gauge back to 0, got %v", got)
	}
	if got := testutil.CollectAndCount(mc.requestDuration); got != 1 {
		t.Errorf("Expected one duration series, got %d", got)
	}
}

func TestCall_RecordsErrorsByType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	mc := NewMetricsCollectorWithRegistry(prometheus.NewRegistry())
	client, _ := newTestClient(t, server.URL, WithMetricsCollector(mc))

	_, _ = client.Call(context.Background(), "/api/v1/leads", RequestOptions{Method: http.MethodPost, Body: `{}`})

	if got := testutil.ToFloat64(mc.errorsTotal.WithLabelValues(ErrorTypeHTTP, "POST", "/api/v1/leads")); got != 1 {
		t.Errorf("Expected 1 HTTP error, got %v", got)
	}
	if got := testutil.ToFloat64(mc.requestsTotal.WithLabelValues("POST", "400", "/api/v1/leads")); got != 1 {
		t.Errorf("Expected failed request counted with its status, got %v", got)
	}
}
