package apicall

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"
)

// DedupeKey identifies identical logical calls: "{METHOD}:{endpoint}:{body}".
// The body part is the body itself for strings and byte slices, its JSON
// encoding otherwise, and empty when there is no body.
func DedupeKey(method, endpoint string, body any) (string, error) {
	if method == "" {
		method = http.MethodGet
	}
	var encoded string
	switch b := body.(type) {
	case nil:
	case string:
		encoded = b
	case []byte:
		encoded = string(b)
	case json.RawMessage:
		encoded = string(b)
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return "", fmt.Errorf("encode body for dedupe key: %w", err)
		}
		encoded = string(raw)
	}
	return method + ":" + endpoint + ":" + encoded, nil
}

// Deduplicator collapses concurrent calls sharing a key into one execution.
// The key is forgotten as soon as that execution settles, so later calls run
// again.
type Deduplicator struct {
	group singleflight.Group

	mu      sync.Mutex
	callers map[string]int
}

// NewDeduplicator returns an empty registry.
func NewDeduplicator() *Deduplicator {
	return &Deduplicator{callers: make(map[string]int)}
}

// Do runs fn once per in-flight key. Callers arriving while fn runs share its
// result; shared reports whether this caller joined an execution started by
// another. A caller whose ctx ends first returns a cancellation error without
// affecting the others.
func (d *Deduplicator) Do(ctx context.Context, key string, fn func() (*Response, error)) (resp *Response, shared bool, err error) {
	d.attach(key)
	defer d.detach(key)

	leader := false
	ch := d.group.DoChan(key, func() (any, error) {
		leader = true
		return fn()
	})

	select {
	case res := <-ch:
		resp, _ = res.Val.(*Response)
		return resp, res.Shared && !leader, res.Err
	case <-ctx.Done():
		return nil, false, newCanceledError(ctx.Err())
	}
}

// InFlight returns how many callers are currently attached to key.
func (d *Deduplicator) InFlight(key string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.callers[key]
}

func (d *Deduplicator) attach(key string) {
	d.mu.Lock()
	d.callers[key]++
	d.mu.Unlock()
}

func (d *Deduplicator) detach(key string) {
	d.mu.Lock()
	if d.callers[key] <= 1 {
		delete(d.callers, key)
	} else {
		d.callers[key]--
	}
	d.mu.Unlock()
}

func (c *Client) shouldDedupe(opts RequestOptions) bool {
	if c.dedup == nil {
		return false
	}
	if opts.Dedupe != nil {
		return *opts.Dedupe
	}
	return opts.method() == http.MethodGet
}
