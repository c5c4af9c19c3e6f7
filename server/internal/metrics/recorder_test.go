package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/obsidianstack/regionstats/server/internal/store"
)

func newRecorder() *Recorder {
	st := store.New([]store.Record{
		{Region: "emea", LatencyMs: 120, UptimePct: 99},
		{Region: "apac", LatencyMs: 200, UptimePct: 98},
		{Region: "emea", LatencyMs: 140, UptimePct: 97},
	})
	return New(st, 10)
}

// scrape renders the recorder through its HTTP handler and parses the result
// back with the Prometheus text parser.
func scrape(t *testing.T, r *Recorder) map[string]*dto.MetricFamily {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Errorf("Content-Type: got %q, want text/plain", ct)
	}

	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(rr.Body)
	if err != nil {
		t.Fatalf("parse exposition: %v", err)
	}
	return mfs
}

func TestRecorder_Inventory(t *testing.T) {
	mfs := scrape(t, newRecorder())

	total := mfs["regionstats_records_total"]
	if total == nil {
		t.Fatal("regionstats_records_total missing")
	}
	if got := total.GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("records_total: got %v, want 3", got)
	}

	perRegion := mfs["regionstats_region_records"]
	if perRegion == nil {
		t.Fatal("regionstats_region_records missing")
	}
	got := map[string]float64{}
	for _, m := range perRegion.GetMetric() {
		got[m.GetLabel()[0].GetValue()] = m.GetGauge().GetValue()
	}
	if got["emea"] != 2 || got["apac"] != 1 {
		t.Errorf("region_records: got %v, want emea=2 apac=1", got)
	}
}

func TestRecorder_NoRequestsYet(t *testing.T) {
	mfs := scrape(t, newRecorder())

	if reqs := mfs["regionstats_requests_total"]; reqs != nil && len(reqs.GetMetric()) != 0 {
		t.Errorf("requests_total: got %d series, want 0", len(reqs.GetMetric()))
	}
	dur := mfs["regionstats_request_duration_seconds"]
	if dur == nil {
		t.Fatal("request_duration_seconds missing")
	}
	if c := dur.GetMetric()[0].GetSummary().GetSampleCount(); c != 0 {
		t.Errorf("sample_count: got %d, want 0", c)
	}
}

func TestRecorder_Observe(t *testing.T) {
	r := newRecorder()
	r.Observe("/api/latency", 200, 10*time.Millisecond)
	r.Observe("/api/latency", 200, 30*time.Millisecond)
	r.Observe("/api/latency", 400, 20*time.Millisecond)
	r.Observe("/", 200, 40*time.Millisecond)

	mfs := scrape(t, r)

	counts := map[string]float64{}
	for _, m := range mfs["regionstats_requests_total"].GetMetric() {
		var route, code string
		for _, lp := range m.GetLabel() {
			switch lp.GetName() {
			case "route":
				route = lp.GetValue()
			case "code":
				code = lp.GetValue()
			}
		}
		counts[route+" "+code] = m.GetCounter().GetValue()
	}
	want := map[string]float64{"/api/latency 200": 2, "/api/latency 400": 1, "/ 200": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("requests_total[%s]: got %v, want %v", k, counts[k], v)
		}
	}

	s := mfs["regionstats_request_duration_seconds"].GetMetric()[0].GetSummary()
	if s.GetSampleCount() != 4 {
		t.Errorf("sample_count: got %d, want 4", s.GetSampleCount())
	}
	if sum := s.GetSampleSum(); sum < 0.0999 || sum > 0.1001 {
		t.Errorf("sample_sum: got %v, want 0.1", sum)
	}
	if len(s.GetQuantile()) != 3 {
		t.Fatalf("quantiles: got %d, want 3", len(s.GetQuantile()))
	}
	for _, q := range s.GetQuantile() {
		if v := q.GetValue(); v < 0.01 || v > 0.04 {
			t.Errorf("quantile %v: got %v, want within [0.01, 0.04]", q.GetQuantile(), v)
		}
	}
}

func TestRecorder_MethodNotAllowed(t *testing.T) {
	rr := httptest.NewRecorder()
	newRecorder().ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/metrics", nil))
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("status: got %d, want 405", rr.Code)
	}
}

func TestRecorder_ConcurrentObserveAndScrape(t *testing.T) {
	r := newRecorder()
	var wg sync.WaitGroup

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Observe("/", 200, time.Millisecond)
		}()
		go func() {
			defer wg.Done()
			r.Families()
		}()
	}
	wg.Wait()

	s := r.durationFamily().GetMetric()[0].GetSummary()
	if s.GetSampleCount() != 50 {
		t.Errorf("sample_count: got %d, want 50", s.GetSampleCount())
	}
}
