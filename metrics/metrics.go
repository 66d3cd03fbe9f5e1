// Package metrics instruments the HTTP client. All methods are safe on a nil
// receiver so instrumentation stays strictly optional.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Cache event labels.
const (
	CacheHit       = "hit"
	CacheMiss      = "miss"
	CacheBypass    = "bypass"
	CacheStoreFail = "store_fail"
)

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	cacheEvents *prometheus.CounterVec
	duration    *prometheus.HistogramVec
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_requests_total",
		Help: "Total API requests issued over the network",
	}, []string{"method", "status_class"})

	cacheEvents := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "client_cache_events_total",
		Help: "Response cache events",
	}, []string{"event"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "client_request_duration_seconds",
		Help:    "API request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	registry.MustRegister(requests, cacheEvents, duration)

	return &Metrics{
		registry:    registry,
		requests:    requests,
		cacheEvents: cacheEvents,
		duration:    duration,
	}
}

// Handler exposes the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest records one network round trip. status 0 means the request
// never produced a response.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, statusClass(status)).Inc()
	m.duration.WithLabelValues(method).Observe(d.Seconds())
}

func (m *Metrics) RecordCacheEvent(event string) {
	if m == nil {
		return
	}
	m.cacheEvents.WithLabelValues(event).Inc()
}

func statusClass(status int) string {
	if status <= 0 {
		return "transport_error"
	}
	return fmt.Sprintf("%dxx", status/100)
}
