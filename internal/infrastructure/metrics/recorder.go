// Package metrics exposes engine and HTTP measurements to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "approval"

// Recorder counts engine activity. It satisfies workflow.Recorder.
type Recorder struct {
	registry *prometheus.Registry

	requestsCreated *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	lockContention  prometheus.Counter
	failures        *prometheus.CounterVec
	remindersSent   prometheus.Counter

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// NewRecorder registers all collectors on a fresh registry, together with
// the Go runtime and process collectors
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		requestsCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_created_total",
			Help:      "Approval requests submitted, by category.",
		}, []string{"category"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_total",
			Help:      "Approver decisions recorded, by outcome.",
		}, []string{"decision"}),
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transitions_total",
			Help:      "Instance state transitions.",
		}, []string{"from", "to"}),
		lockContention: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_contention_total",
			Help:      "Mutations refused because the instance was busy.",
		}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_failures_total",
			Help:      "Engine operations that returned an error.",
		}, []string{"operation"}),
		remindersSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overdue_reminders_total",
			Help:      "Overdue requests whose approvers were reminded.",
		}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

func (r *Recorder) RequestCreated(category string) {
	if category == "" {
		category = "uncategorized"
	}
	r.requestsCreated.WithLabelValues(category).Inc()
}

func (r *Recorder) DecisionRecorded(decision string) {
	r.decisions.WithLabelValues(decision).Inc()
}

func (r *Recorder) Transition(from, to string) {
	r.transitions.WithLabelValues(from, to).Inc()
}

func (r *Recorder) LockContention() {
	r.lockContention.Inc()
}

func (r *Recorder) OperationFailed(operation string) {
	r.failures.WithLabelValues(operation).Inc()
}

// RemindersSent adds n to the reminder counter
func (r *Recorder) RemindersSent(n int) {
	r.remindersSent.Add(float64(n))
}

// ObserveHTTP records one served request. route is the matched route
// pattern, not the raw path.
func (r *Recorder) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}
