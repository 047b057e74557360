package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics.
// Methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	// Lifecycle metrics
	TransitionsTotal *prometheus.CounterVec
	InstancesByState *prometheus.GaugeVec
	InitDuration     *prometheus.HistogramVec
	DeinitDuration   *prometheus.HistogramVec
	StartDuration    *prometheus.HistogramVec
	LoadErrorsTotal  *prometheus.CounterVec

	// Admin HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		TransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_lifecycle_transitions_total",
				Help: "Total number of plugin instance state transitions",
			},
			[]string{"plugin", "state"},
		),
		InstancesByState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "harness_instances",
				Help: "Number of plugin instances by lifecycle state",
			},
			[]string{"state"},
		),
		InitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_init_duration_seconds",
				Help:    "Plugin init hook duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"plugin", "status"},
		),
		DeinitDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_deinit_duration_seconds",
				Help:    "Plugin deinit hook duration in seconds",
				Buckets: []float64{.001, .005, .01, .05, .1, .5, 1, 5},
			},
			[]string{"plugin", "status"},
		),
		StartDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_start_duration_seconds",
				Help:    "Time a plugin start hook ran before returning, in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
			},
			[]string{"plugin", "status"},
		),
		LoadErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_load_errors_total",
				Help: "Total number of failed plugin loads",
			},
			[]string{"kind"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "harness_http_requests_total",
				Help: "Total number of admin HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "harness_http_request_duration_seconds",
				Help:    "Admin HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	registry.MustRegister(
		m.TransitionsTotal,
		m.InstancesByState,
		m.InitDuration,
		m.DeinitDuration,
		m.StartDuration,
		m.LoadErrorsTotal,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
	)

	return m
}

// Transition records an instance moving from one state to another.
// An empty from records a new instance.
func (m *Metrics) Transition(plugin, from, to string) {
	if m == nil {
		return
	}
	if from != "" {
		m.InstancesByState.WithLabelValues(from).Dec()
	}
	m.InstancesByState.WithLabelValues(to).Inc()
	m.TransitionsTotal.WithLabelValues(plugin, to).Inc()
}

// ObserveInit records the duration of an init hook
func (m *Metrics) ObserveInit(plugin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.InitDuration.WithLabelValues(plugin, status(err)).Observe(d.Seconds())
}

// ObserveDeinit records the duration of a deinit hook
func (m *Metrics) ObserveDeinit(plugin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.DeinitDuration.WithLabelValues(plugin, status(err)).Observe(d.Seconds())
}

// ObserveStart records how long a start hook ran
func (m *Metrics) ObserveStart(plugin string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.StartDuration.WithLabelValues(plugin, status(err)).Observe(d.Seconds())
}

// LoadFailed counts a failed load by error kind
func (m *Metrics) LoadFailed(kind string) {
	if m == nil {
		return
	}
	m.LoadErrorsTotal.WithLabelValues(kind).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments admin HTTP requests with Prometheus
// metrics. Requests are labelled with the route template, not the raw path.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tmpl, err := route.GetPathTemplate(); err == nil {
					path = tmpl
				}
			}

			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
		})
	}
}

// RegisterMetricsEndpoint registers the /metrics endpoint
func RegisterMetricsEndpoint(router *mux.Router, registry *prometheus.Registry) {
	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}
