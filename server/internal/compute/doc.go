// Package compute derives per-region latency and uptime statistics from the
// telemetry store.
//
// percentile.go provides Percentile, the linear-interpolation estimator
// between closest ranks (the same convention as NumPy's default percentile).
//
// aggregate.go provides the pure Aggregate function. For each requested
// region it reports mean latency, p95 latency, mean uptime and the number of
// samples strictly above the breach threshold. Regions with no records get
// null statistics and zero breaches.
package compute
