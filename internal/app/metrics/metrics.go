package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ordzaar",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ordzaar",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ordzaar",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	marketplaceOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ordzaar",
			Subsystem: "marketplace",
			Name:      "operations_total",
			Help:      "Mint and purchase attempts by outcome.",
		},
		[]string{"operation", "success"},
	)

	saleVolume = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ordzaar",
			Subsystem: "marketplace",
			Name:      "sale_volume_btc_total",
			Help:      "Cumulative BTC volume of completed sales.",
		},
	)

	collectionsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ordzaar",
			Subsystem: "collections",
			Name:      "created_total",
			Help:      "Collections materialized from approved applications.",
		},
	)

	statsRefresh = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ordzaar",
			Subsystem: "marketplace",
			Name:      "stats_refresh_duration_seconds",
			Help:      "Duration of market statistics recomputation.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
		},
		[]string{"success"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		marketplaceOps,
		saleVolume,
		collectionsCreated,
		statsRefresh,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// TrackInFlight increments the in-flight gauge and returns the matching
// decrement.
func TrackInFlight() func() {
	httpInFlight.Inc()
	return httpInFlight.Dec
}

// RecordHTTPRequest records one handled request. route is the matched route
// template; when empty the raw path is collapsed to its resource.
func RecordHTTPRequest(method, route, rawPath string, status int, duration time.Duration) {
	if route == "" {
		route = canonicalPath(rawPath)
	}
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// RecordMarketplaceOperation records a mint or purchase attempt.
func RecordMarketplaceOperation(operation string, success bool) {
	marketplaceOps.WithLabelValues(operation, strconv.FormatBool(success)).Inc()
}

// RecordSale adds a completed sale's price to the volume counter.
func RecordSale(priceBTC float64) {
	if priceBTC > 0 {
		saleVolume.Add(priceBTC)
	}
}

// RecordCollectionCreated counts a materialized collection.
func RecordCollectionCreated() {
	collectionsCreated.Inc()
}

// RecordStatsRefresh records a market statistics recomputation.
func RecordStatsRefresh(duration time.Duration, success bool) {
	if duration <= 0 {
		duration = time.Millisecond
	}
	statsRefresh.WithLabelValues(strconv.FormatBool(success)).Observe(duration.Seconds())
}

// canonicalPath keeps unmatched paths from creating unbounded label values:
// /api/v1/<resource>/<anything> becomes /api/v1/<resource>/:id.
func canonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "v1" {
		if len(parts) == 3 {
			return "/api/v1/" + parts[2]
		}
		return "/api/v1/" + parts[2] + "/:id"
	}
	return "/" + parts[0]
}
