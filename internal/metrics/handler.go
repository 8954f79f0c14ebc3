package metrics

import (
	"encoding/json"
	"math"
	"net/http"
	"sort"
	"time"

	dto "github.com/prometheus/client_model/go"
)

// Summary is the JSON document served at /metrics/summary.
type Summary struct {
	Console       latencySummary `json:"console"`
	Backend       backendSummary `json:"backend"`
	Auth          authInfo       `json:"auth"`
	Notifications notifyInfo     `json:"notifications"`
	DB            dbInfo         `json:"db"`
	Server        serverInfo     `json:"server"`
}

type latencySummary struct {
	TotalRequests float64 `json:"totalRequests"`
	ErrorRate     float64 `json:"errorRate"`
	P50Latency    float64 `json:"p50Latency"`
	P95Latency    float64 `json:"p95Latency"`
	P99Latency    float64 `json:"p99Latency"`
}

type backendSummary struct {
	latencySummary
	Unauthorized float64 `json:"unauthorized"`
}

type authInfo struct {
	Successes      float64 `json:"successes"`
	Failures       float64 `json:"failures"`
	ThrottledLogin float64 `json:"throttledLogin"`
}

type notifyInfo struct {
	Shown      float64 `json:"shown"`
	Suppressed float64 `json:"suppressed"`
}

type dbInfo struct {
	TotalConns    float64 `json:"totalConns"`
	IdleConns     float64 `json:"idleConns"`
	AcquiredConns float64 `json:"acquiredConns"`
}

type serverInfo struct {
	StartTime     float64 `json:"startTime"`
	UptimeSeconds float64 `json:"uptimeSeconds"`
}

// Handler serves a JSON summary of the live metrics.
func (m *Metrics) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		summary, err := m.Summary()
		if err != nil {
			http.Error(w, "failed to gather metrics", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "no-cache, no-store")
		_ = json.NewEncoder(w).Encode(summary)
	}
}

// Summary gathers the registry and condenses it.
func (m *Metrics) Summary() (Summary, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return Summary{}, err
	}
	fam := make(map[string]*dto.MetricFamily, len(families))
	for _, f := range families {
		fam[f.GetName()] = f
	}

	start := gaugeValue(fam["ovpnadmin_server_start_time_seconds"])
	return Summary{
		Console: latencySummary{
			TotalRequests: sumCounter(fam["ovpnadmin_http_requests_total"], nil),
			ErrorRate:     errorRate(fam["ovpnadmin_http_requests_total"]),
			P50Latency:    histogramPercentile(fam["ovpnadmin_http_request_duration_seconds"], 0.50),
			P95Latency:    histogramPercentile(fam["ovpnadmin_http_request_duration_seconds"], 0.95),
			P99Latency:    histogramPercentile(fam["ovpnadmin_http_request_duration_seconds"], 0.99),
		},
		Backend: backendSummary{
			latencySummary: latencySummary{
				TotalRequests: sumCounter(fam["ovpnadmin_backend_requests_total"], nil),
				ErrorRate:     errorRate(fam["ovpnadmin_backend_requests_total"]),
				P50Latency:    histogramPercentile(fam["ovpnadmin_backend_request_duration_seconds"], 0.50),
				P95Latency:    histogramPercentile(fam["ovpnadmin_backend_request_duration_seconds"], 0.95),
				P99Latency:    histogramPercentile(fam["ovpnadmin_backend_request_duration_seconds"], 0.99),
			},
			Unauthorized: sumCounter(fam["ovpnadmin_backend_unauthorized_total"], nil),
		},
		Auth: authInfo{
			Successes:      sumCounter(fam["ovpnadmin_auth_results_total"], label("result", "success")),
			Failures:       sumCounter(fam["ovpnadmin_auth_results_total"], label("result", "failure")),
			ThrottledLogin: sumCounter(fam["ovpnadmin_login_throttled_total"], nil),
		},
		Notifications: notifyInfo{
			Shown:      sumCounter(fam["ovpnadmin_notifications_total"], label("suppressed", "false")),
			Suppressed: sumCounter(fam["ovpnadmin_notifications_total"], label("suppressed", "true")),
		},
		DB: dbInfo{
			TotalConns:    sumGauge(fam["ovpnadmin_db_pool_conns"], label("state", "total")),
			IdleConns:     sumGauge(fam["ovpnadmin_db_pool_conns"], label("state", "idle")),
			AcquiredConns: sumGauge(fam["ovpnadmin_db_pool_conns"], label("state", "acquired")),
		},
		Server: serverInfo{
			StartTime:     start,
			UptimeSeconds: float64(time.Now().Unix()) - start,
		},
	}, nil
}

// --- Prometheus metric helpers ---

type labelFilter func(*dto.Metric) bool

func label(name, value string) labelFilter {
	return func(m *dto.Metric) bool {
		for _, lp := range m.GetLabel() {
			if lp.GetName() == name && lp.GetValue() == value {
				return true
			}
		}
		return false
	}
}

func sumCounter(f *dto.MetricFamily, keep labelFilter) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() != nil && (keep == nil || keep(m)) {
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func sumGauge(f *dto.MetricFamily, keep labelFilter) float64 {
	var total float64
	for _, m := range f.GetMetric() {
		if m.GetGauge() != nil && (keep == nil || keep(m)) {
			total += m.GetGauge().GetValue()
		}
	}
	return total
}

func gaugeValue(f *dto.MetricFamily) float64 {
	ms := f.GetMetric()
	if len(ms) == 0 || ms[0].GetGauge() == nil {
		return 0
	}
	return ms[0].GetGauge().GetValue()
}

// errorRate is the share of requests whose status_code label is 4xx, 5xx
// or 0 (no response).
func errorRate(f *dto.MetricFamily) float64 {
	var total, errs float64
	for _, m := range f.GetMetric() {
		if m.GetCounter() == nil {
			continue
		}
		v := m.GetCounter().GetValue()
		total += v
		for _, lp := range m.GetLabel() {
			if lp.GetName() != "status_code" {
				continue
			}
			if code := lp.GetValue(); code == "0" || (len(code) > 0 && code[0] >= '4') {
				errs += v
			}
		}
	}
	if total == 0 {
		return 0
	}
	return errs / total
}

// histogramPercentile computes a percentile from aggregated histogram buckets
// using linear interpolation.
func histogramPercentile(f *dto.MetricFamily, q float64) float64 {
	type bucket struct {
		upperBound      float64
		cumulativeCount uint64
	}
	var totalCount uint64
	bucketMap := make(map[float64]uint64)

	for _, m := range f.GetMetric() {
		h := m.GetHistogram()
		if h == nil {
			continue
		}
		totalCount += h.GetSampleCount()
		for _, b := range h.GetBucket() {
			bucketMap[b.GetUpperBound()] += b.GetCumulativeCount()
		}
	}
	if totalCount == 0 {
		return 0
	}

	buckets := make([]bucket, 0, len(bucketMap))
	for ub, count := range bucketMap {
		buckets = append(buckets, bucket{upperBound: ub, cumulativeCount: count})
	}
	sort.Slice(buckets, func(i, j int) bool {
		return buckets[i].upperBound < buckets[j].upperBound
	})

	rank := q * float64(totalCount)
	var prevBound float64
	var prevCount uint64
	for _, b := range buckets {
		if math.IsInf(b.upperBound, 1) {
			break
		}
		if float64(b.cumulativeCount) >= rank {
			n := b.cumulativeCount - prevCount
			if n == 0 {
				return b.upperBound
			}
			fraction := (rank - float64(prevCount)) / float64(n)
			return prevBound + fraction*(b.upperBound-prevBound)
		}
		prevBound = b.upperBound
		prevCount = b.cumulativeCount
	}
	for i := len(buckets) - 1; i >= 0; i-- {
		if !math.IsInf(buckets[i].upperBound, 1) {
			return buckets[i].upperBound
		}
	}
	return 0
}
