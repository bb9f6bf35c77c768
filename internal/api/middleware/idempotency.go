package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
	"github.com/ETAnderson/celltrack/internal/state"
)

// HTTP header used for idempotent requests
const IdempotencyHeaderKey = "Idempotency-Key"

const defaultIdempotencyTTL = 24 * time.Hour

// IdempotencyMiddleware replays the first response for a repeated
// Idempotency-Key on write methods, scoped by engineer and path.
type IdempotencyMiddleware struct {
	Cache state.IdempotencyCache
	TTL   time.Duration
	Next  http.Handler
}

func (m IdempotencyMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil || m.Cache == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		// continue
	default:
		m.Next.ServeHTTP(w, r)
		return
	}

	idemKey := strings.TrimSpace(r.Header.Get(IdempotencyHeaderKey))
	if idemKey == "" {
		m.Next.ServeHTTP(w, r)
		return
	}

	endpoint := r.Method + " " + strings.TrimSpace(r.URL.Path)
	actor := actorctx.Actor(r.Context())
	keyHash := state.HashIdempotencyKey(idemKey)

	rec, ok, err := m.Cache.GetIdempotency(r.Context(), actor, endpoint, keyHash)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"idempotency_lookup_failed"}`))
		return
	}

	if ok {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Idempotent-Replay", "true")

		status := rec.StatusCode
		if status == 0 {
			status = http.StatusOK
		}

		w.WriteHeader(status)
		_, _ = w.Write(rec.BodyJSON)
		return
	}

	if r.Body != nil {
		reqBody, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		r.Body = io.NopCloser(bytes.NewReader(reqBody))
	}

	rr := httptest.NewRecorder()
	m.Next.ServeHTTP(rr, r)

	for k, vals := range rr.Header() {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}

	status := rr.Code
	if status == 0 {
		status = http.StatusOK
	}

	w.WriteHeader(status)
	_, _ = w.Write(rr.Body.Bytes())

	// Server errors are not replayed; the caller should be able to retry.
	if status >= http.StatusInternalServerError {
		return
	}

	ttl := m.TTL
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	now := time.Now().UTC()

	// If caching fails, do not fail the request; response has already been written.
	_ = m.Cache.PutIdempotency(r.Context(), actor, endpoint, keyHash, state.IdempotencyRecord{
		StatusCode: status,
		BodyJSON:   rr.Body.Bytes(),
		CreatedAt:  now,
		ExpiresAt:  now.Add(ttl),
	})
}
