package observability

import (
	"net/http"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusBridge exposes the samples of a Registry in the Prometheus
// exposition format. Every sample becomes two series: <name> with the running
// sum and <name>_avg with the running average.
type PrometheusBridge struct {
	source    *Registry
	namespace string
}

// NewPrometheusBridge creates a collector reading from source
func NewPrometheusBridge(source *Registry, namespace string) *PrometheusBridge {
	return &PrometheusBridge{source: source, namespace: namespace}
}

// Describe sends nothing, which makes this an unchecked collector: the set
// of series depends on what has been recorded.
func (b *PrometheusBridge) Describe(chan<- *prometheus.Desc) {}

// Collect implements prometheus.Collector
func (b *PrometheusBridge) Collect(ch chan<- prometheus.Metric) {
	for _, data := range b.source.All() {
		labelNames, labelValues := splitLabels(data.labels)
		fqName := prometheus.BuildFQName(b.namespace, "", sanitizeMetricName(data.name))

		sumDesc := prometheus.NewDesc(fqName, "Running sum of "+data.name, labelNames, nil)
		avgDesc := prometheus.NewDesc(fqName+"_avg", "Running average of "+data.name, labelNames, nil)

		if m, err := prometheus.NewConstMetric(sumDesc, prometheus.UntypedValue, data.Sum, labelValues...); err == nil {
			ch <- m
		}
		if m, err := prometheus.NewConstMetric(avgDesc, prometheus.GaugeValue, data.Avg, labelValues...); err == nil {
			ch <- m
		}
	}
}

// NewPrometheusRegistry builds a dedicated registry holding the bridge and
// the Go runtime and process collectors
func NewPrometheusRegistry(bridge *PrometheusBridge) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		bridge,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// PrometheusHandler serves the registry over HTTP
func PrometheusHandler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

func splitLabels(labels Labels) ([]string, []string) {
	if len(labels) == 0 {
		return nil, nil
	}
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)

	values := make([]string, len(names))
	for i, k := range names {
		values[i] = labels[k]
		names[i] = sanitizeMetricName(k)
	}
	return names, values
}

func sanitizeMetricName(name string) string {
	var sb strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			sb.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			sb.WriteRune(r)
		default:
			sb.WriteRune('_')
		}
	}
	return sb.String()
}
