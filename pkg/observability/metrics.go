package observability

import (
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Labels attached to a metric sample
type Labels map[string]string

// MetricData is the aggregate kept for one name+label combination.
// Invariant: Avg == Sum/Count after every Increment.
type MetricData struct {
	Count       float64   `json:"count"`
	Sum         float64   `json:"sum"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Avg         float64   `json:"avg"`
	LastUpdated time.Time `json:"lastUpdated"`

	name   string
	labels Labels
}

// Name returns the metric name without labels
func (d MetricData) Name() string { return d.name }

// Labels returns a copy of the labels the sample was recorded with
func (d MetricData) Labels() Labels {
	out := make(Labels, len(d.labels))
	for k, v := range d.labels {
		out[k] = v
	}
	return out
}

// SummaryEntry is the rounded view of a sample
type SummaryEntry struct {
	Count       float64   `json:"count"`
	Avg         float64   `json:"avg"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Summary is returned by Registry.Summary
type Summary struct {
	TotalMetrics int                     `json:"totalMetrics"`
	Metrics      map[string]SummaryEntry `json:"metrics"`
}

// Registry is the in-process metrics store. It is constructed once and
// injected into every component that records metrics.
type Registry struct {
	mu      sync.Mutex
	metrics map[string]*MetricData
	logger  *zap.Logger
	now     func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		metrics: make(map[string]*MetricData),
		logger:  logger.With(zap.String("component", "metrics")),
		now:     time.Now,
	}
}

// Increment adds value to a counter. The value is added to both count and sum.
func (r *Registry) Increment(name string, value float64, labels Labels) {
	key := MetricKey(name, labels)

	r.mu.Lock()
	m, ok := r.metrics[key]
	if !ok {
		m = &MetricData{
			Min:    math.Inf(1),
			Max:    math.Inf(-1),
			name:   name,
			labels: copyLabels(labels),
		}
		r.metrics[key] = m
	}
	m.Count += value
	m.Sum += value
	m.Min = math.Min(m.Min, value)
	m.Max = math.Max(m.Max, value)
	if m.Count != 0 {
		m.Avg = m.Sum / m.Count
	}
	m.LastUpdated = r.now()
	snapshot := *m
	r.mu.Unlock()

	if ce := r.logger.Check(zap.DebugLevel, "Metric incremented"); ce != nil {
		ce.Write(
			zap.String("metric", name),
			zap.Float64("value", value),
			zap.Any("labels", labels),
			zap.Float64("count", snapshot.Count),
		)
	}
}

// Timing records a duration in milliseconds as name_duration_ms and bumps name_count
func (r *Registry) Timing(name string, durationMs float64, labels Labels) {
	r.Increment(name+"_duration_ms", durationMs, labels)
	r.Increment(name+"_count", 1, labels)
}

// Gauge overwrites the sample with a single observation
func (r *Registry) Gauge(name string, value float64, labels Labels) {
	key := MetricKey(name, labels)

	r.mu.Lock()
	r.metrics[key] = &MetricData{
		Count:       1,
		Sum:         value,
		Min:         value,
		Max:         value,
		Avg:         value,
		LastUpdated: r.now(),
		name:        name,
		labels:      copyLabels(labels),
	}
	r.mu.Unlock()

	if ce := r.logger.Check(zap.DebugLevel, "Gauge recorded"); ce != nil {
		ce.Write(zap.String("metric", name), zap.Float64("value", value), zap.Any("labels", labels))
	}
}

// All returns a copy of every sample keyed by metric key
func (r *Registry) All() map[string]MetricData {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make(map[string]MetricData, len(r.metrics))
	for k, v := range r.metrics {
		out[k] = *v
	}
	return out
}

// Get returns one sample
func (r *Registry) Get(name string, labels Labels) (MetricData, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.metrics[MetricKey(name, labels)]
	if !ok {
		return MetricData{}, false
	}
	return *m, true
}

// Reset drops every sample
func (r *Registry) Reset() {
	r.mu.Lock()
	r.metrics = make(map[string]*MetricData)
	r.mu.Unlock()

	r.logger.Info("All metrics reset")
}

// Summary returns counts, averages rounded to two decimals and bounds with
// infinities replaced by zero
func (r *Registry) Summary() Summary {
	all := r.All()
	summary := Summary{
		TotalMetrics: len(all),
		Metrics:      make(map[string]SummaryEntry, len(all)),
	}
	for key, data := range all {
		summary.Metrics[key] = SummaryEntry{
			Count:       data.Count,
			Avg:         math.Round(data.Avg*100) / 100,
			Min:         finiteOrZero(data.Min),
			Max:         finiteOrZero(data.Max),
			LastUpdated: data.LastUpdated,
		}
	}
	return summary
}

// MetricKey renders name{k1=v1,k2=v2} with labels sorted by key
func MetricKey(name string, labels Labels) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + labels[k]
	}
	return name + "{" + strings.Join(parts, ",") + "}"
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func copyLabels(labels Labels) Labels {
	if len(labels) == 0 {
		return nil
	}
	out := make(Labels, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
