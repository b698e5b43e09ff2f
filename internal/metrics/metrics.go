package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes application metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	zoomTransitions     *prometheus.CounterVec
	filterApplies       prometheus.Counter
	selectionChanges    prometheus.Counter
	selectionRejects    prometheus.Counter
	markersRendered     prometheus.Gauge
	treeReloadsTotal    *prometheus.CounterVec
	treeReloadDuration  prometheus.Histogram
}

// New creates a fresh Metrics registry with HTTP and interaction metrics
// registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "http_requests_total",
		Help:      "Count of HTTP requests processed by map-core",
	}, []string{"method", "path", "status"})

	httpRequestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "geopanel",
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests served by map-core",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	zoomTransitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "zoom_level_transitions_total",
		Help:      "Count of hierarchy level transitions, labelled by target level",
	}, []string{"level"})

	filterApplies := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "filter_applies_total",
		Help:      "Count of filter set applications",
	})

	selectionChanges := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "selection_changes_total",
		Help:      "Count of selection membership changes",
	})

	selectionRejects := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "selection_rejections_total",
		Help:      "Count of selections rejected at the max-selection bound",
	})

	markersRendered := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "geopanel",
		Name:      "markers_rendered",
		Help:      "Number of markers in the currently rendered set",
	})

	treeReloadsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geopanel",
		Name:      "tree_reloads_total",
		Help:      "Count of hierarchy tree reloads, labelled by outcome",
	}, []string{"outcome"})

	treeReloadDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "geopanel",
		Name:      "tree_reload_duration_seconds",
		Help:      "Duration of hierarchy tree reloads from the store",
		Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10},
	})

	registry.MustRegister(
		httpRequests,
		httpRequestDuration,
		zoomTransitions,
		filterApplies,
		selectionChanges,
		selectionRejects,
		markersRendered,
		treeReloadsTotal,
		treeReloadDuration,
	)

	return &Metrics{
		registry:            registry,
		httpRequests:        httpRequests,
		httpRequestDuration: httpRequestDuration,
		zoomTransitions:     zoomTransitions,
		filterApplies:       filterApplies,
		selectionChanges:    selectionChanges,
		selectionRejects:    selectionRejects,
		markersRendered:     markersRendered,
		treeReloadsTotal:    treeReloadsTotal,
		treeReloadDuration:  treeReloadDuration,
	}
}

// ObserveHTTPRequest records a single HTTP request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// IncZoomTransition counts one marker-set transition to the given level.
func (m *Metrics) IncZoomTransition(level int) {
	if m == nil {
		return
	}
	m.zoomTransitions.WithLabelValues(strconv.Itoa(level)).Inc()
}

// IncFilterApply counts one filter application.
func (m *Metrics) IncFilterApply() {
	if m == nil {
		return
	}
	m.filterApplies.Inc()
}

// IncSelectionChange counts one selection membership change.
func (m *Metrics) IncSelectionChange() {
	if m == nil {
		return
	}
	m.selectionChanges.Inc()
}

// IncSelectionReject counts one max-selections rejection.
func (m *Metrics) IncSelectionReject() {
	if m == nil {
		return
	}
	m.selectionRejects.Inc()
}

// SetMarkersRendered records the size of the current marker set.
func (m *Metrics) SetMarkersRendered(n int) {
	if m == nil {
		return
	}
	m.markersRendered.Set(float64(n))
}

// IncTreeReload counts a tree reload attempt by outcome ("ok", "invalid",
// "error").
func (m *Metrics) IncTreeReload(outcome string) {
	if m == nil {
		return
	}
	m.treeReloadsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTreeReloadDuration observes one reload duration.
func (m *Metrics) ObserveTreeReloadDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.treeReloadDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
