package apicall

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/goleak"

	"github.com/ambiyansyah-risyal/apicall/migration"
)

// gatedTransport blocks every round trip until release is closed.
type gatedTransport struct {
	calls   int32
	started chan string
	release chan struct{}
	status  int
	body    string
}

func newGatedTransport(status int, body string) *gatedTransport {
	return &gatedTransport{
		started: make(chan string, 16),
		release: make(chan struct{}),
		status:  status,
		body:    body,
	}
}

func (g *gatedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	atomic.AddInt32(&g.calls, 1)
	g.started <- req.URL.Path
	select {
	case <-g.release:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	return &http.Response{
		StatusCode: g.status,
		Status:     http.StatusText(g.status),
		Header:     http.Header{"Content-Type": []string{contentTypeJSON}},
		Body:       io.NopCloser(strings.NewReader(g.body)),
		Request:    req,
	}, nil
}

func waitInFlight(t *testing.T, d *Deduplicator, key string, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for d.InFlight(key) < want {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %d callers on %s, have %d", want, key, d.InFlight(key))
		}
		time.Sleep(time.Millisecond)
	}
}

type callResult struct {
	resp *Response
	err  error
}

func TestDedupeKey(t *testing.T) {
	tests := []struct {
		name     string
		method   string
		endpoint string
		body     any
		want     string
	}{
		{"get without body", "GET", "/api/agents", nil, "GET:/api/agents:"},
		{"empty method", "", "/api/agents", nil, "GET:/api/agents:"},
		{"string body", "POST", "/api/leads", `{"a":1}`, `POST:/api/leads:{"a":1}`},
		{"bytes body", "PUT", "/api/leads/1", []byte("x"), "PUT:/api/leads/1:x"},
		{"struct body", "POST", "/api/leads", map[string]int{"a": 1}, `POST:/api/leads:{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DedupeKey(tt.method, tt.endpoint, tt.body)
			if err != nil {
				t.Fatalf("DedupeKey() error: %v", err)
			}
			if got != tt.want {
				t.Errorf("DedupeKey() = %q, want %q", got, tt.want)
			}
		})
	}

	if _, err := DedupeKey("POST", "/x", make(chan int)); err == nil {
		t.Error("Expected error for unencodable body")
	}
}

func TestCall_DeduplicatesConcurrentGETs(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newGatedTransport(http.StatusOK, agentJSON)
	registry := prometheus.NewRegistry()
	metrics := NewMetricsCollectorWithRegistry(registry)
	client, _ := newTestClient(t, "http://api.test", WithTransport(transport), WithMetricsCollector(metrics))

	key, _ := DedupeKey(http.MethodGet, "/api/v1/agents", nil)
	results := make(chan callResult, 2)
	call := func() {
		resp, err := client.Call(context.Background(), "/api/v1/agents", RequestOptions{})
		results <- callResult{resp, err}
	}

	go call()
	<-transport.started
	go call()
	waitInFlight(t, client.Deduplicator(), key, 2)
	close(transport.release)

	first, second := <-results, <-results
	if first.err != nil || second.err != nil {
		t.Fatalf("Unexpected errors: %v / %v", first.err, second.err)
	}
	if first.resp != second.resp {
		t.Error("Expected both callers to share one response")
	}
	if got := atomic.LoadInt32(&transport.calls); got != 1 {
		t.Errorf("Expected 1 network request, got %d", got)
	}
	if got := testutil.ToFloat64(metrics.deduplicationHits.WithLabelValues("GET", "/api/v1/agents")); got != 1 {
		t.Errorf("Expected 1 dedupe hit, got %v", got)
	}
	if client.Deduplicator().InFlight(key) != 0 {
		t.Error("Expected registry entry removed after settlement")
	}

	// Settled calls are forgotten: the next call goes to the network again.
	done := make(chan struct{})
	go func() {
		defer close(done)
		<-transport.started
	}()
	if _, err := client.Call(context.Background(), "/api/v1/agents", RequestOptions{}); err != nil {
		t.Fatalf(unexpectedErrMsg, err)
	}
	<-done
	if got := atomic.LoadInt32(&transport.calls); got != 2 {
		t.Errorf("Expected a fresh request after settlement, got %d", got)
	}
}

func TestCall_DeduplicationSharesErrors(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newGatedTransport(http.StatusNotFound, `{"detail":"missing"}`)
	client, _ := newTestClient(t, "http://api.test", WithTransport(transport))

	key, _ := DedupeKey(http.MethodGet, "/api/v1/leads/9", nil)
	results := make(chan callResult, 2)
	call := func() {
		resp, err := client.Call(context.Background(), "/api/v1/leads/9", RequestOptions{})
		results <- callResult{resp, err}
	}

	go call()
	<-transport.started
	go call()
	waitInFlight(t, client.Deduplicator(), key, 2)
	close(transport.release)

	first, second := <-results, <-results
	if first.err == nil || first.err != second.err {
		t.Errorf("Expected the same error for both callers, got %v / %v", first.err, second.err)
	}
	if got := atomic.LoadInt32(&transport.calls); got != 1 {
		t.Errorf("Expected 1 network request, got %d", got)
	}
}

func TestCall_DeduplicationScope(t *testing.T) {
	tests := []struct {
		name      string
		opts      RequestOptions
		clientOpt []Option
		wantCalls int32
	}{
		{"post not deduplicated", RequestOptions{Method: http.MethodPost, Body: `{"a":1}`}, nil, 2},
		{"post opt in", RequestOptions{Method: http.MethodPost, Body: `{"a":1}`, Dedupe: Bool(true)}, nil, 1},
		{"get opt out", RequestOptions{Dedupe: Bool(false)}, nil, 2},
		{"client disabled", RequestOptions{}, []Option{WithDeduplication(false)}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

			transport := newGatedTransport(http.StatusOK, `{}`)
			client, _ := newTestClient(t, "http://api.test", append([]Option{WithTransport(transport)}, tt.clientOpt...)...)

			var wg sync.WaitGroup
			for i := 0; i < 2; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if _, err := client.Call(context.Background(), "/api/v1/leads", tt.opts); err != nil {
						t.Errorf(unexpectedErrMsg, err)
					}
				}()
			}

			<-transport.started
			if tt.wantCalls == 2 {
				<-transport.started
			} else {
				key, _ := DedupeKey(tt.opts.method(), "/api/v1/leads", tt.opts.Body)
				waitInFlight(t, client.Deduplicator(), key, 2)
			}
			close(transport.release)
			wg.Wait()

			if got := atomic.LoadInt32(&transport.calls); got != tt.wantCalls {
				t.Errorf("Expected %d network requests, got %d", tt.wantCalls, got)
			}
		})
	}
}

func TestCall_DedupeWaiterLeavesOnOwnContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newGatedTransport(http.StatusOK, agentJSON)
	client, _ := newTestClient(t, "http://api.test", WithTransport(transport))
	key, _ := DedupeKey(http.MethodGet, "/api/v1/agents", nil)

	leader := make(chan callResult, 1)
	go func() {
		resp, err := client.Call(context.Background(), "/api/v1/agents", RequestOptions{})
		leader <- callResult{resp, err}
	}()
	<-transport.started

	ctx, cancel := context.WithCancel(context.Background())
	waiter := make(chan error, 1)
	go func() {
		_, err := client.Call(ctx, "/api/v1/agents", RequestOptions{})
		waiter <- err
	}()
	waitInFlight(t, client.Deduplicator(), key, 2)
	cancel()

	if err := <-waiter; !errors.Is(err, ErrCanceled) {
		t.Errorf("Expected waiter canceled, got %v", err)
	}

	close(transport.release)
	res := <-leader
	if res.err != nil {
		t.Fatalf("Leader should be unaffected, got %v", res.err)
	}
}

func TestCall_DedupesLegacyEndpointBeforeMigration(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	transport := newGatedTransport(http.StatusOK, `[]`)
	migrator := migration.MustNew(migration.DefaultTable(), migration.Static(true))
	client, _ := newTestClient(t, "http://api.test",
		WithTransport(transport),
		WithRequestInterceptor(MigrationInterceptor(migrator)))

	key, _ := DedupeKey(http.MethodGet, "/api/agents", nil)
	results := make(chan callResult, 2)
	for i := 0; i < 2; i++ {
		go func() {
			resp, err := client.Call(context.Background(), "/api/agents", RequestOptions{})
			results <- callResult{resp, err}
		}()
	}

	path := <-transport.started
	waitInFlight(t, client.Deduplicator(), key, 2)
	close(transport.release)

	for i := 0; i < 2; i++ {
		res := <-results
		if res.err != nil {
			t.Fatalf(unexpectedErrMsg, res.err)
		}
		if res.resp.Endpoint != "/api/v1/agents" {
			t.Errorf("Expected migrated endpoint, got %s", res.resp.Endpoint)
		}
	}
	if path != "/api/v1/agents" {
		t.Errorf("Expected request to /api/v1/agents, got %s", path)
	}
	if got := atomic.LoadInt32(&transport.calls); got != 1 {
		t.Errorf("Expected 1 network request, got %d", got)
	}
}
