package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrInvalidRecord is returned by Load when a record is missing a required
// field.
var ErrInvalidRecord = errors.New("invalid telemetry record")

// Record is one observation of latency and uptime for a region.
type Record struct {
	Region    string  `json:"region"`
	LatencyMs float64 `json:"latency_ms"`
	UptimePct float64 `json:"uptime_pct"`
}

// Store is an immutable, in-memory list of telemetry records.
// There is no write path: the zero value is an empty store and New/Load are
// the only constructors.
type Store struct {
	records []Record
	regions []string // distinct regions, first-seen order
}

// New creates a Store holding a copy of records.
func New(records []Record) *Store {
	s := &Store{records: make([]Record, len(records))}
	copy(s.records, records)

	seen := make(map[string]struct{})
	for _, r := range s.records {
		if _, ok := seen[r.Region]; ok {
			continue
		}
		seen[r.Region] = struct{}{}
		s.regions = append(s.regions, r.Region)
	}
	return s
}

// rawRecord mirrors Record with pointer fields so Load can tell a missing
// field from a zero value.
type rawRecord struct {
	Region    *string  `json:"region"`
	LatencyMs *float64 `json:"latency_ms"`
	UptimePct *float64 `json:"uptime_pct"`
}

// Load reads the JSON array of records at path.
// A missing file, malformed JSON or a record without region, latency_ms or
// uptime_pct is an error; the caller is expected to abort startup.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read %q: %w", path, err)
	}

	var raw []rawRecord
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("store: parse %q: %w", path, err)
	}

	records := make([]Record, 0, len(raw))
	for i, r := range raw {
		switch {
		case r.Region == nil:
			return nil, fmt.Errorf("store: record %d: missing region: %w", i, ErrInvalidRecord)
		case r.LatencyMs == nil:
			return nil, fmt.Errorf("store: record %d (%s): missing latency_ms: %w", i, *r.Region, ErrInvalidRecord)
		case r.UptimePct == nil:
			return nil, fmt.Errorf("store: record %d (%s): missing uptime_pct: %w", i, *r.Region, ErrInvalidRecord)
		}
		records = append(records, Record{
			Region:    *r.Region,
			LatencyMs: *r.LatencyMs,
			UptimePct: *r.UptimePct,
		})
	}
	return New(records), nil
}

// ForRegion returns the records whose Region equals region exactly.
// The match is case-sensitive. The result is a fresh slice and is empty, not
// nil-with-error, when nothing matches.
func (s *Store) ForRegion(region string) []Record {
	out := make([]Record, 0)
	for _, r := range s.records {
		if r.Region == region {
			out = append(out, r)
		}
	}
	return out
}

// Len returns the total number of records held.
func (s *Store) Len() int {
	return len(s.records)
}

// Regions returns the distinct region names in the order they first appear
// in the data file.
func (s *Store) Regions() []string {
	out := make([]string, len(s.regions))
	copy(out, s.regions)
	return out
}
