// Package api implements the HTTP surface of regionstats-server.
//
// New(store, recorder, opts) returns an http.Handler that serves:
//
//	POST /                 — region latency aggregation (same as /api/latency)
//	POST /api/latency      — body {"regions": [...], "threshold_ms": n}
//	GET  /                 — liveness: {"status":"ok", ...}
//	GET  /api/v1/health    — same as GET /
//	GET  /metrics          — Prometheus text exposition (when a recorder is set)
//	OPTIONS <any>          — CORS preflight, 204
//
// All responses carry Access-Control-Allow-Origin: * and an X-Request-ID.
// JSON endpoints respond with Content-Type: application/json and return 405
// for methods they do not serve. Request decoding is lenient: a missing or
// mistyped field falls back to its default; only a body that is not a JSON
// object is rejected.
//
// JSON types are defined in types.go. No external HTTP framework is used.
package api
