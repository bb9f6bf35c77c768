package middleware

import (
	"crypto/rsa"
	"net/http"
	"strings"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
	"github.com/ETAnderson/celltrack/internal/api/auth"
)

// AuthMiddleware attributes requests to the engineer named in an RS256
// bearer token. Without a public key it is a pass-through.
type AuthMiddleware struct {
	Env       string
	PublicKey *rsa.PublicKey
	Next      http.Handler
}

func (m AuthMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if m.PublicKey == nil {
		m.Next.ServeHTTP(w, r)
		return
	}

	// In dev, an engineer set via X-Engineer (ActorMiddleware) or a missing
	// Authorization header passes through so local tooling keeps working.
	if strings.EqualFold(strings.TrimSpace(m.Env), "dev") {
		if actorctx.Actor(r.Context()) != actorctx.DefaultActor || strings.TrimSpace(r.Header.Get("Authorization")) == "" {
			m.Next.ServeHTTP(w, r)
			return
		}
	}

	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(authz, "Bearer ") {
		unauthorized(w, "missing bearer token")
		return
	}

	tokenString := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	if tokenString == "" {
		unauthorized(w, "empty bearer token")
		return
	}

	claims, err := auth.ParseAndValidateRS256(tokenString, m.PublicKey)
	if err != nil {
		unauthorized(w, "invalid token")
		return
	}

	ctx := actorctx.WithActor(r.Context(), claims.Actor())
	m.Next.ServeHTTP(w, r.WithContext(ctx))
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + msg + `"}`))
}
