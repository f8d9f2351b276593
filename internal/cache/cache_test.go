package cache

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avitria/disaster-report-service/internal/observability"
)

func newTestCache(ttl time.Duration) *ResponseCache {
	return New(16, ttl, observability.NewMetricsForTesting())
}

// countingHandler writes a response that changes with every invocation so a
// cached replay is distinguishable from a fresh execution.
type countingHandler struct {
	calls  int
	status int
}

func (h *countingHandler) handle(w http.ResponseWriter, _ *http.Request) {
	h.calls++
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(h.status)
	fmt.Fprintf(w, `{"call":%d}`, h.calls)
}

func get(t *testing.T, handler http.HandlerFunc, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestMiddleware_CachesSuccessfulReads(t *testing.T) {
	c := newTestCache(time.Minute)
	inner := &countingHandler{status: http.StatusOK}
	wrapped := c.Middleware("cards", inner.handle)

	first := get(t, wrapped, "/cards/abc1234")
	second := get(t, wrapped, "/cards/abc1234")

	assert.Equal(t, 1, inner.calls, "second read should be served from cache")
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
}

func TestMiddleware_KeysOnMethodAndURI(t *testing.T) {
	c := newTestCache(time.Minute)
	inner := &countingHandler{status: http.StatusOK}
	wrapped := c.Middleware("cards", inner.handle)

	get(t, wrapped, "/cards/abc1234")
	get(t, wrapped, "/cards/zzz9876")

	assert.Equal(t, 2, inner.calls, "distinct ids must not share entries")
}

func TestMiddleware_DoesNotCacheFailures(t *testing.T) {
	c := newTestCache(time.Minute)
	inner := &countingHandler{status: http.StatusNotFound}
	wrapped := c.Middleware("cards", inner.handle)

	get(t, wrapped, "/cards/unknown77")
	get(t, wrapped, "/cards/unknown77")

	assert.Equal(t, 2, inner.calls, "non-200 responses must pass through uncached")
}

func TestPurgeGroup_DropsEveryEntry(t *testing.T) {
	c := newTestCache(time.Minute)
	inner := &countingHandler{status: http.StatusOK}
	wrapped := c.Middleware("cards", inner.handle)

	get(t, wrapped, "/cards/abc1234")
	get(t, wrapped, "/cards/zzz9876")
	require.Equal(t, 2, inner.calls)

	c.PurgeGroup("cards")

	fresh := get(t, wrapped, "/cards/abc1234")
	assert.Equal(t, 3, inner.calls, "purged entry must be re-executed")
	assert.Equal(t, `{"call":3}`, fresh.Body.String())
}

func TestPurgeGroup_UnknownGroupIsNoop(t *testing.T) {
	c := newTestCache(time.Minute)
	c.PurgeGroup("never-populated")
}

func TestMiddleware_EntriesExpire(t *testing.T) {
	c := newTestCache(20 * time.Millisecond)
	inner := &countingHandler{status: http.StatusOK}
	wrapped := c.Middleware("cards", inner.handle)

	get(t, wrapped, "/cards/abc1234")
	time.Sleep(50 * time.Millisecond)
	get(t, wrapped, "/cards/abc1234")

	assert.Equal(t, 2, inner.calls, "entry should expire after the TTL")
}
