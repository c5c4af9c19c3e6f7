package compute

import (
	"bytes"
	"encoding/json"

	"github.com/montanaflynn/stats"

	"github.com/obsidianstack/regionstats/server/internal/store"
)

// DefaultThresholdMs is the breach threshold used when a request does not
// supply one.
const DefaultThresholdMs = 180.0

// p95 is the percentile reported as RegionStats.P95Latency.
const p95 = 95.0

// RecordSource is the read side of the telemetry store that Aggregate needs.
type RecordSource interface {
	ForRegion(region string) []store.Record
}

// RegionStats is the summary for one region.
// The pointer fields are nil (JSON null) when the region has no records.
type RegionStats struct {
	AvgLatency *float64 `json:"avg_latency"`
	P95Latency *float64 `json:"p95_latency"`
	AvgUptime  *float64 `json:"avg_uptime"`
	Breaches   int      `json:"breaches"`
}

// Result maps each requested region to its stats. It keeps the order in which
// regions were first requested and marshals to a JSON object in that order.
type Result struct {
	order []string
	stats map[string]RegionStats
}

// Regions returns the region names in first-requested order.
func (r *Result) Regions() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Get returns the stats for region and whether it was requested.
func (r *Result) Get(region string) (RegionStats, bool) {
	s, ok := r.stats[region]
	return s, ok
}

// Len returns the number of distinct regions in the result.
func (r *Result) Len() int {
	return len(r.order)
}

// MarshalJSON encodes the result as a JSON object keyed by region.
func (r *Result) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, region := range r.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(region)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(r.stats[region])
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Aggregate computes RegionStats for every distinct region in regions.
// A latency equal to thresholdMs is not a breach. Duplicate region names are
// computed once and appear once in the result.
func Aggregate(src RecordSource, regions []string, thresholdMs float64) *Result {
	res := &Result{
		order: make([]string, 0, len(regions)),
		stats: make(map[string]RegionStats, len(regions)),
	}
	for _, region := range regions {
		if _, ok := res.stats[region]; ok {
			continue
		}
		res.order = append(res.order, region)
		res.stats[region] = regionStats(src.ForRegion(region), thresholdMs)
	}
	return res
}

// regionStats summarises one region's records.
func regionStats(records []store.Record, thresholdMs float64) RegionStats {
	if len(records) == 0 {
		return RegionStats{}
	}

	latencies := make([]float64, len(records))
	uptimes := make([]float64, len(records))
	var out RegionStats
	for i, r := range records {
		latencies[i] = r.LatencyMs
		uptimes[i] = r.UptimePct
		if r.LatencyMs > thresholdMs {
			out.Breaches++
		}
	}

	// stats.Mean only errors on empty input, which is ruled out above.
	avgLatency, _ := stats.Mean(latencies)
	avgUptime, _ := stats.Mean(uptimes)
	p, _ := Percentile(latencies, p95)

	out.AvgLatency = &avgLatency
	out.AvgUptime = &avgUptime
	out.P95Latency = &p
	return out
}
