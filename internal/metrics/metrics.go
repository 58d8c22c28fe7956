package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds relay Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	Invocations        *prometheus.CounterVec
	InvocationDuration *prometheus.HistogramVec
	RemoteCalls        *prometheus.CounterVec
	RemoteDuration     *prometheus.HistogramVec
	TagStoreOps        *prometheus.CounterVec
}

// New creates and registers relay collectors.
// Params: metric namespace (service name with dashes replaced).
// Returns: metrics bundle.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		Invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Total number of webhook invocations by source, action and outcome",
		}, []string{"source", "action", "outcome"}),

		InvocationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "invocation_duration_seconds",
			Help:      "Webhook invocation latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),

		RemoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Total number of Slack API requests by method and HTTP status",
		}, []string{"method", "status"}),

		RemoteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Slack API request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),

		TagStoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tag_store_operations_total",
			Help:      "Total number of correlation tag store operations",
		}, []string{"operation", "outcome"}),
	}

	m.registry.MustRegister(
		m,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.Invocations.Describe(ch)
	m.InvocationDuration.Describe(ch)
	m.RemoteCalls.Describe(ch)
	m.RemoteDuration.Describe(ch)
	m.TagStoreOps.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.Invocations.Collect(ch)
	m.InvocationDuration.Collect(ch)
	m.RemoteCalls.Collect(ch)
	m.RemoteDuration.Collect(ch)
	m.TagStoreOps.Collect(ch)
}

// Handler exposes the private registry in text format.
// Params: none.
// Returns: HTTP handler for the metrics path.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveInvocation records one finished webhook invocation.
// Params: source and action labels ("" when classification failed), error, and latency.
// Returns: nothing.
func (m *Metrics) ObserveInvocation(source, action string, err error, elapsed time.Duration) {
	if source == "" {
		source = "unknown"
	}
	if action == "" {
		action = "unknown"
	}
	outcome := outcomeOf(err)
	m.Invocations.WithLabelValues(source, action, outcome).Inc()
	m.InvocationDuration.WithLabelValues(outcome).Observe(elapsed.Seconds())
}

// ObserveRemoteCall records one Slack API exchange; signature matches transport.Observer.
// Params: method, HTTP status (0 on transport failure), latency, and error.
// Returns: nothing.
func (m *Metrics) ObserveRemoteCall(method string, status int, elapsed time.Duration, err error) {
	label := strconv.Itoa(status)
	if err != nil && status == 0 {
		label = "error"
	}
	m.RemoteCalls.WithLabelValues(method, label).Inc()
	m.RemoteDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

// ObserveTagStore records one tag store read, write, or delete.
// Params: operation name and error.
// Returns: nothing.
func (m *Metrics) ObserveTagStore(operation string, err error) {
	m.TagStoreOps.WithLabelValues(operation, outcomeOf(err)).Inc()
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
