// Package metrics exposes chatrelay's counters, timers and gauges in
// Prometheus format.
package metrics

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names
const (
	DispatchCycles      = "chatrelay_dispatch_cycles_total"
	CompletionDuration  = "chatrelay_completion_duration_seconds"
	RateLimitRetries    = "chatrelay_rate_limit_retries_total"
	MessagesIngested    = "chatrelay_messages_ingested_total"
	MessagesEvicted     = "chatrelay_messages_evicted_total"
	QueueDepth          = "chatrelay_queue_depth"
	SourceReconnects    = "chatrelay_source_reconnects_total"
	SourceConnected     = "chatrelay_source_connected"
	StoreErrors         = "chatrelay_store_errors_total"
	CompletionTokensUse = "chatrelay_completion_tokens_total"
	StatusRequests      = "chatrelay_status_requests_total"
	StatusRequestTime   = "chatrelay_status_request_duration_seconds"
)

// Registry creates Prometheus collectors on first use. The label names of a
// metric are fixed by the first call that records it; later calls with a
// different label set are dropped.
type Registry struct {
	mu       sync.Mutex
	reg      *prometheus.Registry
	counters map[string]*prometheus.CounterVec
	timers   map[string]*prometheus.HistogramVec
	gauges   map[string]*prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry
func NewRegistry() *Registry {
	return &Registry{
		reg:      prometheus.NewRegistry(),
		counters: make(map[string]*prometheus.CounterVec),
		timers:   make(map[string]*prometheus.HistogramVec),
		gauges:   make(map[string]*prometheus.GaugeVec),
	}
}

// Global registry instance
var globalRegistry = NewRegistry()

// GetRegistry returns the global registry instance
func GetRegistry() *Registry {
	return globalRegistry
}

// IncrementCounter increments a counter metric
func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

// AddToCounter adds a value to a counter metric
func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	if value < 0 {
		return
	}

	r.mu.Lock()
	vec, ok := r.counters[name]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help(name, description)}, labelNames(labels))
		if err := r.reg.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.counters[name] = vec
	}
	r.mu.Unlock()

	if c, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		c.Add(value)
	}
}

// RecordTimer records a timing measurement in seconds
func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	r.mu.Lock()
	vec, ok := r.timers[name]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    name,
			Help:    help(name, description),
			Buckets: prometheus.DefBuckets,
		}, labelNames(labels))
		if err := r.reg.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.timers[name] = vec
	}
	r.mu.Unlock()

	if h, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		h.Observe(duration.Seconds())
	}
}

// SetGauge sets a gauge metric value
func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	vec, ok := r.gauges[name]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{Name: name, Help: help(name, description)}, labelNames(labels))
		if err := r.reg.Register(vec); err != nil {
			r.mu.Unlock()
			return
		}
		r.gauges[name] = vec
	}
	r.mu.Unlock()

	if g, err := vec.GetMetricWith(prometheus.Labels(labels)); err == nil {
		g.Set(value)
	}
}

// Gatherer exposes the underlying registry for scraping and tests.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// Handler serves the registry in the Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

func labelNames(labels map[string]string) []string {
	names := make([]string, 0, len(labels))
	for k := range labels {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func help(name, description string) string {
	if description == "" {
		return name
	}
	return description
}

// Convenience functions for global registry

// IncrementCounter increments a counter in the global registry
func IncrementCounter(name string, labels map[string]string, description string) {
	globalRegistry.IncrementCounter(name, labels, description)
}

// AddToCounter adds to a counter in the global registry
func AddToCounter(name string, value float64, labels map[string]string, description string) {
	globalRegistry.AddToCounter(name, value, labels, description)
}

// RecordTimer records timing in the global registry
func RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	globalRegistry.RecordTimer(name, duration, labels, description)
}

// SetGauge sets a gauge in the global registry
func SetGauge(name string, value float64, labels map[string]string, description string) {
	globalRegistry.SetGauge(name, value, labels, description)
}

// Handler serves the global registry
func Handler() http.Handler {
	return globalRegistry.Handler()
}
