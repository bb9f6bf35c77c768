package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
	"github.com/ETAnderson/celltrack/internal/state"
)

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"success":true}`))
	})
}

func patchAs(actor string, key string) *http.Request {
	req := httptest.NewRequest(http.MethodPatch, "/api/test-status/u-1", bytes.NewBufferString(`"PASS"`))
	req = req.WithContext(actorctx.WithActor(req.Context(), actor))
	req.Header.Set(IdempotencyHeaderKey, key)
	return req
}

func TestIdempotencyMiddleware_ReplaysCachedResponse(t *testing.T) {
	calls := 0
	mw := IdempotencyMiddleware{
		Cache: state.NewMemoryIdempotencyCache(),
		Next:  countingHandler(&calls, http.StatusOK),
	}

	rec1 := httptest.NewRecorder()
	mw.ServeHTTP(rec1, patchAs("jo", "abc123"))

	rec2 := httptest.NewRecorder()
	mw.ServeHTTP(rec2, patchAs("jo", "abc123"))

	if calls != 1 {
		t.Fatalf("expected underlying handler called once, got %d", calls)
	}
	if rec1.Body.String() != rec2.Body.String() {
		t.Fatalf("expected cached response match")
	}
	if rec2.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("expected replay header on second response")
	}
}

func TestIdempotencyMiddleware_ScopedByActor(t *testing.T) {
	calls := 0
	mw := IdempotencyMiddleware{
		Cache: state.NewMemoryIdempotencyCache(),
		Next:  countingHandler(&calls, http.StatusOK),
	}

	mw.ServeHTTP(httptest.NewRecorder(), patchAs("jo", "same-key"))
	mw.ServeHTTP(httptest.NewRecorder(), patchAs("sam", "same-key"))

	if calls != 2 {
		t.Fatalf("expected one call per engineer, got %d", calls)
	}
}

func TestIdempotencyMiddleware_DoesNotCacheServerErrors(t *testing.T) {
	calls := 0
	mw := IdempotencyMiddleware{
		Cache: state.NewMemoryIdempotencyCache(),
		Next:  countingHandler(&calls, http.StatusInternalServerError),
	}

	mw.ServeHTTP(httptest.NewRecorder(), patchAs("jo", "k"))
	mw.ServeHTTP(httptest.NewRecorder(), patchAs("jo", "k"))

	if calls != 2 {
		t.Fatalf("expected retry to reach handler, got %d calls", calls)
	}
}

func TestIdempotencyMiddleware_IgnoresReads(t *testing.T) {
	calls := 0
	mw := IdempotencyMiddleware{
		Cache: state.NewMemoryIdempotencyCache(),
		Next:  countingHandler(&calls, http.StatusOK),
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/sites", nil)
		req.Header.Set(IdempotencyHeaderKey, "k")
		mw.ServeHTTP(httptest.NewRecorder(), req)
	}

	if calls != 2 {
		t.Fatalf("expected GETs to bypass the cache, got %d calls", calls)
	}
}
