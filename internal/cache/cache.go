// Package cache provides a grouped TTL cache for rendered HTTP responses.
// Read endpoints are wrapped by Middleware; any mutation purges the whole
// group so readers never see a pre-mutation value beyond the purge itself.
package cache

import (
	"bytes"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/avitria/disaster-report-service/internal/observability"
)

type cachedResponse struct {
	status int
	header http.Header
	body   []byte
}

// ResponseCache stores rendered responses keyed by method and URI, tagged
// with a group so a mutation can drop every cached read for a collection at
// once. Entries expire after the configured TTL. The cache is an explicit,
// injected component; tests construct an isolated instance per scenario.
type ResponseCache struct {
	size    int
	ttl     time.Duration
	metrics *observability.Metrics

	mu     sync.Mutex
	groups map[string]*expirable.LRU[string, cachedResponse]
}

// New creates a response cache with the given per-group capacity and TTL.
func New(size int, ttl time.Duration, metrics *observability.Metrics) *ResponseCache {
	return &ResponseCache{
		size:    size,
		ttl:     ttl,
		metrics: metrics,
		groups:  make(map[string]*expirable.LRU[string, cachedResponse]),
	}
}

func (c *ResponseCache) group(name string) *expirable.LRU[string, cachedResponse] {
	c.mu.Lock()
	defer c.mu.Unlock()
	g, ok := c.groups[name]
	if !ok {
		g = expirable.NewLRU[string, cachedResponse](c.size, nil, c.ttl)
		c.groups[name] = g
	}
	return g
}

// PurgeGroup drops every cached response tagged with the group.
func (c *ResponseCache) PurgeGroup(name string) {
	c.mu.Lock()
	g, ok := c.groups[name]
	c.mu.Unlock()
	if ok {
		g.Purge()
	}
}

// Middleware wraps a read handler with the cache. Only 200 responses are
// stored; everything else passes through uncached.
func (c *ResponseCache) Middleware(group string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.RequestURI()
		g := c.group(group)
		if resp, ok := g.Get(key); ok {
			c.metrics.CacheLookups.WithLabelValues(group, "hit").Inc()
			writeCached(w, resp)
			return
		}
		c.metrics.CacheLookups.WithLabelValues(group, "miss").Inc()

		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		next(rec, r)

		if rec.status == http.StatusOK {
			g.Add(key, cachedResponse{
				status: rec.status,
				header: rec.Header().Clone(),
				body:   rec.buf.Bytes(),
			})
		}
	}
}

func writeCached(w http.ResponseWriter, resp cachedResponse) {
	for k, vals := range resp.header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.status)
	w.Write(resp.body) //nolint:errcheck // best-effort replay
}

// recorder tees the response so a 200 can be stored after it is written.
type recorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(p []byte) (int, error) {
	r.buf.Write(p)
	return r.ResponseWriter.Write(p)
}
