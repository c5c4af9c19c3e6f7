package api

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

// requestIDHeader carries the per-request correlation ID in both directions.
const requestIDHeader = "X-Request-ID"

// maxRequestIDLen bounds a client-supplied request ID before it is reused.
const maxRequestIDLen = 128

// corsMaxAge is how long (seconds) browsers may cache a preflight result.
const corsMaxAge = "600"

// routes lists the paths reported as-is in metrics; everything else is
// collapsed into "other".
var routes = map[string]bool{
	"/":              true,
	"/api/latency":   true,
	"/api/v1/health": true,
	"/metrics":       true,
}

// statusWriter remembers the status code written through it.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (s *statusWriter) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// ServeHTTP applies CORS and request-ID headers, answers preflight requests,
// dispatches to the route handlers and records the outcome.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	id := r.Header.Get(requestIDHeader)
	if id == "" || len(id) > maxRequestIDLen {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Expose-Headers", requestIDHeader)

	sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
	if r.Method == http.MethodOptions {
		h.preflight(sw, r)
	} else {
		h.mux.ServeHTTP(sw, r)
	}

	elapsed := time.Since(start)
	route := r.URL.Path
	if !routes[route] {
		route = "other"
	}
	if h.metrics != nil {
		h.metrics.Observe(route, sw.code, elapsed)
	}
	slog.Debug("api: request",
		"id", id,
		"method", r.Method,
		"path", r.URL.Path,
		"status", sw.code,
		"duration", elapsed,
	)
}

// preflight answers OPTIONS on any path with the permissive CORS policy.
// With the wildcard header policy, the headers the browser asks for are
// echoed back verbatim.
func (h *Handler) preflight(w http.ResponseWriter, r *http.Request) {
	hdr := w.Header()
	hdr.Set("Access-Control-Allow-Methods", strings.Join(h.opts.AllowedMethods, ", "))

	allowHeaders := strings.Join(h.opts.AllowedHeaders, ", ")
	if allowHeaders == "*" {
		if requested := r.Header.Get("Access-Control-Request-Headers"); requested != "" {
			allowHeaders = requested
		}
	}
	hdr.Set("Access-Control-Allow-Headers", allowHeaders)
	hdr.Set("Access-Control-Max-Age", corsMaxAge)
	hdr.Add("Vary", "Access-Control-Request-Headers")
	w.WriteHeader(http.StatusNoContent)
}
