// Package metrics defines the Prometheus collectors for the HTTP API and
// for account, quiz and maintenance events.
package metrics

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const defaultNamespace = "qchemaxis"

// register registers c, reusing an identical collector that is already
// registered so constructors can run more than once per process.
func register[T prometheus.Collector](reg prometheus.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		already, ok := err.(prometheus.AlreadyRegisteredError)
		if !ok {
			return c, fmt.Errorf("register collector: %w", err)
		}
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return c, fmt.Errorf("existing collector has unexpected type %T", already.ExistingCollector)
		}
		return existing, nil
	}
	return c, nil
}

// HTTPMetricsOptions configures the HTTP metrics middleware.
type HTTPMetricsOptions struct {
	Registerer prometheus.Registerer
	Namespace  string
	Subsystem  string
	Buckets    []float64
}

// HTTPMetrics exposes Prometheus collectors for request instrumentation.
type HTTPMetrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight prometheus.Gauge
}

// NewHTTPMetrics constructs collectors for HTTP request metrics and registers them.
func NewHTTPMetrics(opts HTTPMetricsOptions) (*HTTPMetrics, error) {
	namespace := opts.Namespace
	if namespace == "" {
		namespace = defaultNamespace
	}
	subsystem := opts.Subsystem
	if subsystem == "" {
		subsystem = "http"
	}
	reg := opts.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	buckets := opts.Buckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	requests, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "requests_total",
		Help:      "Total number of HTTP requests partitioned by method, route, and status code.",
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	duration, err := register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request_duration_seconds",
		Help:      "Histogram of HTTP request latencies in seconds partitioned by method, route, and status code.",
		Buckets:   buckets,
	}, []string{"method", "route", "status"}))
	if err != nil {
		return nil, err
	}

	inFlight, err := register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "in_flight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	}))
	if err != nil {
		return nil, err
	}

	return &HTTPMetrics{Requests: requests, Duration: duration, InFlight: inFlight}, nil
}

// Handler returns a Gin middleware that records the HTTP metrics.
func (m *HTTPMetrics) Handler() gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		m.InFlight.Inc()
		defer m.InFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		labels := prometheus.Labels{
			"method": c.Request.Method,
			"route":  route,
			"status": strconv.Itoa(c.Writer.Status()),
		}
		m.Requests.With(labels).Inc()
		m.Duration.With(labels).Observe(time.Since(start).Seconds())
	}
}

// Domain counts account, quiz and maintenance events. A nil *Domain is a
// valid no-op recorder.
type Domain struct {
	AuthEvents         *prometheus.CounterVec
	QuizSubmissions    *prometheus.CounterVec
	MaintenanceChanges *prometheus.CounterVec
}

// NewDomain constructs and registers the domain collectors.
func NewDomain(reg prometheus.Registerer) (*Domain, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	auth, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "auth_events_total",
		Help:      "Account events partitioned by event and outcome.",
	}, []string{"event", "outcome"}))
	if err != nil {
		return nil, err
	}

	quiz, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "quiz_submissions_total",
		Help:      "Placement quiz submissions partitioned by resulting level.",
	}, []string{"level"}))
	if err != nil {
		return nil, err
	}

	changes, err := register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: defaultNamespace,
		Name:      "maintenance_changes_total",
		Help:      "Cleanup changes partitioned by change type and mode.",
	}, []string{"type", "mode"}))
	if err != nil {
		return nil, err
	}

	return &Domain{AuthEvents: auth, QuizSubmissions: quiz, MaintenanceChanges: changes}, nil
}

// AuthEvent records an account event such as ("login", "failure").
func (d *Domain) AuthEvent(event, outcome string) {
	if d == nil {
		return
	}
	d.AuthEvents.WithLabelValues(event, outcome).Inc()
}

// QuizSubmitted records a quiz submission.
func (d *Domain) QuizSubmitted(level string) {
	if d == nil {
		return
	}
	d.QuizSubmissions.WithLabelValues(level).Inc()
}

// MaintenanceChange records a planned or applied cleanup change.
func (d *Domain) MaintenanceChange(changeType, mode string) {
	if d == nil {
		return
	}
	d.MaintenanceChanges.WithLabelValues(changeType, mode).Inc()
}
