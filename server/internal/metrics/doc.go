// Package metrics exposes service counters in the Prometheus text format.
//
// A Recorder is fed by the API middleware (Observe) and renders on GET
// /metrics:
//
//	regionstats_records_total                     gauge   records loaded at startup
//	regionstats_region_records{region}            gauge   records per region
//	regionstats_requests_total{route,code}        counter requests served
//	regionstats_request_duration_seconds          summary handling time; quantiles
//	                                                      come from a sliding window
//
// Families are built as client_model protobufs and written with expfmt, the
// same representation the Prometheus text parser produces.
package metrics
