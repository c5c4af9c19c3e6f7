package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/obsidianstack/regionstats/server/internal/compute"
	"github.com/obsidianstack/regionstats/server/internal/metrics"
	"github.com/obsidianstack/regionstats/server/internal/store"
)

// Options tunes request handling. Nil or zero fields fall back to
// DefaultOptions.
type Options struct {
	// DefaultThresholdMs applies when a request omits threshold_ms.
	// Nil means compute.DefaultThresholdMs; a pointer to 0 is a real 0.
	DefaultThresholdMs *float64

	// MaxBodyBytes caps the request body; larger bodies get 413.
	MaxBodyBytes int64

	// AllowedMethods and AllowedHeaders are echoed on CORS preflight.
	AllowedMethods []string
	AllowedHeaders []string
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	threshold := compute.DefaultThresholdMs
	return Options{
		DefaultThresholdMs: &threshold,
		MaxBodyBytes:       1 << 20,
		AllowedMethods:     []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:     []string{"*"},
	}
}

// Handler is the HTTP handler for all routes.
// It aggregates over an immutable store and holds no per-request state.
type Handler struct {
	store   *store.Store
	metrics *metrics.Recorder
	opts    Options
	mux     *http.ServeMux
}

// New creates a Handler over st and registers all routes. rec may be nil, in
// which case /metrics is not served and nothing is recorded.
func New(st *store.Store, rec *metrics.Recorder, opts Options) http.Handler {
	def := DefaultOptions()
	if opts.DefaultThresholdMs == nil {
		opts.DefaultThresholdMs = def.DefaultThresholdMs
	}
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = def.MaxBodyBytes
	}
	if len(opts.AllowedMethods) == 0 {
		opts.AllowedMethods = def.AllowedMethods
	}
	if len(opts.AllowedHeaders) == 0 {
		opts.AllowedHeaders = def.AllowedHeaders
	}

	h := &Handler{store: st, metrics: rec, opts: opts, mux: http.NewServeMux()}

	h.mux.HandleFunc("/", h.root)
	h.mux.HandleFunc("/api/latency", h.latency)
	h.mux.HandleFunc("/api/v1/health", h.health)
	if rec != nil {
		h.mux.Handle("/metrics", rec)
	}

	return h
}

// --- route handlers ---------------------------------------------------------

// root serves GET / as a liveness probe and POST / as the aggregation
// endpoint. Any other path under / is 404.
func (h *Handler) root(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		jsonErr(w, http.StatusNotFound, "not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		h.health(w, r)
	case http.MethodPost:
		h.latency(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost)
	}
}

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Records: h.store.Len(),
		Regions: len(h.store.Regions()),
	})
}

// latency returns POST /api/latency: per-region stats for the requested
// regions.
func (h *Handler) latency(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}

	req, err := decodeLatencyRequest(http.MaxBytesReader(w, r.Body, h.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			jsonErr(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	threshold := req.Threshold(*h.opts.DefaultThresholdMs)
	res := compute.Aggregate(h.store, req.Regions, threshold)

	slog.Debug("api: aggregated",
		"regions", res.Len(), "threshold_ms", threshold)
	jsonResp(w, http.StatusOK, res)
}

// --- request decoding -------------------------------------------------------

// decodeLatencyRequest reads a LatencyRequest from body.
//
// An empty body is treated as {}. The body must otherwise be a JSON object;
// a literal null is rejected like any other non-object.
// Inside it, "regions" keeps only its string elements and is empty if it is
// not an array; "threshold_ms" is ignored (default applies) if it is not a
// number.
func decodeLatencyRequest(body io.Reader) (LatencyRequest, error) {
	var req LatencyRequest

	data, err := io.ReadAll(body)
	if err != nil {
		return req, fmt.Errorf("read body: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return req, nil
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return req, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	if fields == nil {
		return req, errors.New("request body must be a JSON object, got null")
	}

	if raw, ok := fields["regions"]; ok {
		req.Regions = decodeRegions(raw)
	}
	if raw, ok := fields["threshold_ms"]; ok {
		var v *float64
		if err := json.Unmarshal(raw, &v); err != nil {
			slog.Debug("api: ignoring non-numeric threshold_ms", "value", string(raw))
		} else {
			req.ThresholdMs = v
		}
	}
	return req, nil
}

// decodeRegions returns the string elements of raw, or nil if raw is not an
// array.
func decodeRegions(raw json.RawMessage) []string {
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		slog.Debug("api: ignoring non-array regions", "value", string(raw))
		return nil
	}
	regions := make([]string, 0, len(elems))
	for _, e := range elems {
		var s string
		if err := json.Unmarshal(e, &s); err != nil {
			slog.Debug("api: skipping non-string region", "value", string(e))
			continue
		}
		regions = append(regions, s)
	}
	return regions
}

// --- helpers ----------------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		slog.Error("api: encode response", "err", err)
		code = http.StatusInternalServerError
		b, _ = json.Marshal(errorResponse{Error: "internal error"})
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(append(b, '\n')) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	w.Header().Set("Allow", strings.Join(append(allowed, http.MethodOptions), ", "))
	jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
}
