package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts handled requests by route, method and status
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "couple_notes_http_requests_total",
			Help: "Total number of HTTP requests handled",
		},
		[]string{"route", "method", "status"},
	)

	// HTTPRequestDuration observes request latency by route
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "couple_notes_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)

	// WSConnections tracks open websocket connections
	WSConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "couple_notes_ws_connections",
			Help: "Number of open websocket connections",
		},
	)
)

var registerOnce sync.Once

// Init registers the collectors with the default registry
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(HTTPRequestsTotal)
		prometheus.MustRegister(HTTPRequestDuration)
		prometheus.MustRegister(WSConnections)
	})
}

// Handler exposes the default registry
func Handler() http.Handler {
	return promhttp.Handler()
}
