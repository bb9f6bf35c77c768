package middleware

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ETAnderson/celltrack/internal/api/actorctx"
)

type RequestLogMiddleware struct {
	Logger *zap.SugaredLogger
	Next   http.Handler
}

func (m RequestLogMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if m.Next == nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if m.Logger == nil {
		m.Next.ServeHTTP(w, r)
		return
	}

	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	start := time.Now()
	m.Next.ServeHTTP(sw, r)

	m.Logger.Infow("request",
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.status,
		"actor", actorctx.Actor(r.Context()),
		"duration", time.Since(start),
	)
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}
