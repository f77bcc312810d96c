package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/claimlens/claimlens/internal/auth"
	"github.com/claimlens/claimlens/internal/nlp"
	"github.com/claimlens/claimlens/internal/redact"
)

const requestIDHeader = "X-Request-Id"

// requestID accepts a caller-supplied id or mints a uuid, echoes it back and
// stores it on the context for outbound model calls.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		ctx := nlp.WithRequestID(r.Context(), id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// traceContext continues a caller's W3C trace when one is propagated.
func traceContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// observe logs one line per request and feeds the HTTP metrics. Routes are
// labelled by pattern so claim ids in paths never become label values.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		elapsed := time.Since(start)
		s.metrics.RecordHTTP(route, status, elapsed)
		redact.Logf("http %s %s status=%d bytes=%d dur=%s request_id=%s",
			r.Method, route, status, ww.BytesWritten(), elapsed.Round(time.Microsecond), nlp.RequestIDFromContext(r.Context()))
	})
}

// authenticate requires a known bearer token when clients are configured.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.auth.Enabled() {
			next.ServeHTTP(w, r)
			return
		}
		key, ok := auth.ParseBearerToken(r.Header.Get("Authorization"))
		if !ok || key == "" {
			respondError(w, r, http.StatusUnauthorized, "invalid or missing API key", "")
			return
		}
		client, ok := s.auth.Lookup(key)
		if !ok {
			respondError(w, r, http.StatusUnauthorized, "invalid API key", "")
			return
		}
		redact.Logf("request_id=%s client=%s", nlp.RequestIDFromContext(r.Context()), client.ID)
		next.ServeHTTP(w, r)
	})
}
