package metrics

import (
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/jamiealquiza/tachymeter"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"google.golang.org/protobuf/proto"

	"github.com/obsidianstack/regionstats/server/internal/store"
)

// DefaultWindow is the number of recent request durations kept for the
// duration quantiles.
const DefaultWindow = 1000

const namespace = "regionstats"

// Inventory is the part of the telemetry store the recorder reports on.
type Inventory interface {
	Len() int
	Regions() []string
	ForRegion(region string) []store.Record
}

type requestKey struct {
	route string
	code  int
}

// Recorder accumulates request counters and durations.
// All exported methods are safe for concurrent use.
type Recorder struct {
	inv Inventory

	mu       sync.Mutex
	requests map[requestKey]uint64
	count    uint64
	sum      time.Duration
	tach     *tachymeter.Tachymeter
}

// New creates a Recorder reporting on inv, keeping the last window request
// durations for quantiles. window <= 0 selects DefaultWindow.
func New(inv Inventory, window int) *Recorder {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Recorder{
		inv:      inv,
		requests: make(map[requestKey]uint64),
		tach:     tachymeter.New(&tachymeter.Config{Size: window}),
	}
}

// Observe records one served request.
func (r *Recorder) Observe(route string, code int, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requests[requestKey{route: route, code: code}]++
	r.count++
	r.sum += d
	r.tach.AddTime(d)
}

// ServeHTTP renders all metric families in the Prometheus text format.
func (r *Recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet && req.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	format := expfmt.NewFormat(expfmt.TypeTextPlain)
	w.Header().Set("Content-Type", string(format))
	w.WriteHeader(http.StatusOK)
	if req.Method == http.MethodHead {
		return
	}

	enc := expfmt.NewEncoder(w, format)
	for _, mf := range r.Families() {
		// The text format has no representation for a family without series.
		if len(mf.GetMetric()) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return
		}
	}
}

// Families returns the current metric families, sorted by label values so
// the output is stable between scrapes.
func (r *Recorder) Families() []*dto.MetricFamily {
	return []*dto.MetricFamily{
		r.recordsFamily(),
		r.regionFamily(),
		r.requestsFamily(),
		r.durationFamily(),
	}
}

func (r *Recorder) recordsFamily() *dto.MetricFamily {
	return &dto.MetricFamily{
		Name: proto.String(namespace + "_records_total"),
		Help: proto.String("Telemetry records loaded at startup."),
		Type: dto.MetricType_GAUGE.Enum(),
		Metric: []*dto.Metric{{
			Gauge: &dto.Gauge{Value: proto.Float64(float64(r.inv.Len()))},
		}},
	}
}

func (r *Recorder) regionFamily() *dto.MetricFamily {
	regions := r.inv.Regions()
	sort.Strings(regions)

	metrics := make([]*dto.Metric, 0, len(regions))
	for _, region := range regions {
		metrics = append(metrics, &dto.Metric{
			Label: []*dto.LabelPair{label("region", region)},
			Gauge: &dto.Gauge{Value: proto.Float64(float64(len(r.inv.ForRegion(region))))},
		})
	}
	return &dto.MetricFamily{
		Name:   proto.String(namespace + "_region_records"),
		Help:   proto.String("Telemetry records per region."),
		Type:   dto.MetricType_GAUGE.Enum(),
		Metric: metrics,
	}
}

func (r *Recorder) requestsFamily() *dto.MetricFamily {
	r.mu.Lock()
	counts := make(map[requestKey]uint64, len(r.requests))
	keys := make([]requestKey, 0, len(r.requests))
	for k, v := range r.requests {
		counts[k] = v
		keys = append(keys, k)
	}
	r.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool {
		if keys[i].route != keys[j].route {
			return keys[i].route < keys[j].route
		}
		return keys[i].code < keys[j].code
	})

	metrics := make([]*dto.Metric, 0, len(keys))
	for _, k := range keys {
		metrics = append(metrics, &dto.Metric{
			Label: []*dto.LabelPair{
				label("code", strconv.Itoa(k.code)),
				label("route", k.route),
			},
			Counter: &dto.Counter{Value: proto.Float64(float64(counts[k]))},
		})
	}
	return &dto.MetricFamily{
		Name:   proto.String(namespace + "_requests_total"),
		Help:   proto.String("API requests served, by route and status code."),
		Type:   dto.MetricType_COUNTER.Enum(),
		Metric: metrics,
	}
}

func (r *Recorder) durationFamily() *dto.MetricFamily {
	r.mu.Lock()
	count, sum := r.count, r.sum
	var quantiles []*dto.Quantile
	if count > 0 {
		calc := r.tach.Calc()
		quantiles = []*dto.Quantile{
			quantile(0.5, calc.Time.P50),
			quantile(0.95, calc.Time.P95),
			quantile(0.99, calc.Time.P99),
		}
	}
	r.mu.Unlock()

	return &dto.MetricFamily{
		Name: proto.String(namespace + "_request_duration_seconds"),
		Help: proto.String("API request handling time; quantiles over the most recent requests."),
		Type: dto.MetricType_SUMMARY.Enum(),
		Metric: []*dto.Metric{{
			Summary: &dto.Summary{
				SampleCount: proto.Uint64(count),
				SampleSum:   proto.Float64(sum.Seconds()),
				Quantile:    quantiles,
			},
		}},
	}
}

func label(name, value string) *dto.LabelPair {
	return &dto.LabelPair{Name: proto.String(name), Value: proto.String(value)}
}

func quantile(q float64, d time.Duration) *dto.Quantile {
	return &dto.Quantile{Quantile: proto.Float64(q), Value: proto.Float64(d.Seconds())}
}
