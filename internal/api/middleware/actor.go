package middleware

import (
	"net/http"
	"strings"
	"unicode"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
)

const ActorHeaderKey = "X-Engineer"

const maxActorLen = 64

type ActorMiddleware struct {
	Env  string // "dev" enables header override
	Next http.Handler
}

func (m ActorMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	actor := actorctx.DefaultActor

	// Only allow header override in dev
	if strings.EqualFold(strings.TrimSpace(m.Env), "dev") {
		raw := strings.TrimSpace(r.Header.Get(ActorHeaderKey))
		if raw != "" {
			if !validActor(raw) {
				w.Header().Set("Content-Type", "application/json; charset=utf-8")
				w.WriteHeader(http.StatusBadRequest)
				_, _ = w.Write([]byte(`{"error":"invalid_engineer","message":"X-Engineer must be 1-64 printable characters"}`))
				return
			}
			actor = raw
		}
	}

	ctx := actorctx.WithActor(r.Context(), actor)
	m.Next.ServeHTTP(w, r.WithContext(ctx))
}

func validActor(s string) bool {
	if len(s) > maxActorLen {
		return false
	}
	for _, r := range s {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
