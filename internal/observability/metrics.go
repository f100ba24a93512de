package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce                sync.Once
	apiRequestsTotal            *prometheus.CounterVec
	apiLatencySeconds           *prometheus.HistogramVec
	apiErrorsTotal              *prometheus.CounterVec
	evaluationSubmissionsTotal  *prometheus.CounterVec
	evaluationRunSeconds        prometheus.Histogram
	evaluationWorkersBusy       prometheus.Gauge
	notificationsPublishedTotal *prometheus.CounterVec
	sseClientsActive            prometheus.Gauge
	progressSubscribersActive   prometheus.Gauge
)

// RegisterMetrics initialises the Prometheus collectors shared by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		apiRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inklaunch_api_requests_total",
			Help: "Competition API requests served, by surface.",
		}, []string{"surface", "method", "route", "status"})

		apiLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inklaunch_api_latency_seconds",
			Help:    "Latency distribution for competition API requests.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 1, 5, 30, 120},
		}, []string{"surface", "method", "route"})

		apiErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inklaunch_api_errors_total",
			Help: "Error responses returned by the competition API, by surface.",
		}, []string{"surface", "method", "route", "status"})

		evaluationSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evaluation_submissions_total",
			Help: "Submissions processed by evaluation runs, by outcome.",
		}, []string{"outcome"})

		evaluationRunSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evaluation_run_duration_seconds",
			Help:    "Wall-clock duration of evaluation runs.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		})

		evaluationWorkersBusy = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evaluation_workers_busy",
			Help: "Evaluation workers currently waiting on the critic.",
		})

		notificationsPublishedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "notifications_published_total",
			Help: "Notifications delivered to subscribers, by type.",
		}, []string{"type"})

		sseClientsActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "notifications_sse_clients_active",
			Help: "Open notification SSE streams.",
		})

		progressSubscribersActive = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evaluation_progress_subscribers_active",
			Help: "Open evaluation progress websocket streams.",
		})

		prometheus.MustRegister(
			apiRequestsTotal,
			apiLatencySeconds,
			apiErrorsTotal,
			evaluationSubmissionsTotal,
			evaluationRunSeconds,
			evaluationWorkersBusy,
			notificationsPublishedTotal,
			sseClientsActive,
			progressSubscribersActive,
		)
	})
}

// APIRequests exposes the request counter.
func APIRequests() *prometheus.CounterVec {
	RegisterMetrics()
	return apiRequestsTotal
}

// APILatency exposes the request latency histogram.
func APILatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return apiLatencySeconds
}

// APIErrors exposes the error response counter.
func APIErrors() *prometheus.CounterVec {
	RegisterMetrics()
	return apiErrorsTotal
}

// EvaluationSubmissions counts per-submission outcomes of evaluation runs.
func EvaluationSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationSubmissionsTotal
}

// EvaluationRunDuration observes whole-run durations.
func EvaluationRunDuration() prometheus.Histogram {
	RegisterMetrics()
	return evaluationRunSeconds
}

// EvaluationWorkersBusy tracks workers blocked on critic calls.
func EvaluationWorkersBusy() prometheus.Gauge {
	RegisterMetrics()
	return evaluationWorkersBusy
}

// NotificationsPublishedTotal counts delivered notifications.
func NotificationsPublishedTotal() *prometheus.CounterVec {
	RegisterMetrics()
	return notificationsPublishedTotal
}

// SSEClientsActive tracks open notification streams.
func SSEClientsActive() prometheus.Gauge {
	RegisterMetrics()
	return sseClientsActive
}

// ProgressSubscribersActive tracks open evaluation progress streams.
func ProgressSubscribersActive() prometheus.Gauge {
	RegisterMetrics()
	return progressSubscribersActive
}
