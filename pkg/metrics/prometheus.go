package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/jainyogya07/monolith/pkg/model"
)

var (
	DecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_decisions_total",
			Help: "Total number of admission decisions by action, reason and task type",
		},
		[]string{"action", "reason", "type"},
	)

	ForecastFailureProbability = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "monolith_forecast_failure_probability",
			Help:    "Forecasted probability of an SLA violation for borderline submissions",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	DecisionEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "monolith_decision_events_dropped_total",
			Help: "Decisions not published because the publish buffer was full",
		},
	)

	TasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monolith_tasks_processed_total",
			Help: "Total number of drained tasks by type",
		},
		[]string{"type", "heavy"},
	)

	QueueWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monolith_queue_wait_seconds",
			Help:    "Time tasks spent in the backlog before processing",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"type"},
	)

	ProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "monolith_processing_duration_seconds",
			Help:    "Simulated processing time per task",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 10),
		},
		[]string{"type"},
	)
)

func RecordDecision(decision model.Decision) {
	DecisionsTotal.WithLabelValues(
		string(decision.Action),
		string(decision.Reason),
		string(decision.Task.Type),
	).Inc()
	if decision.Metrics.Forecast != nil {
		ForecastFailureProbability.Observe(decision.Metrics.Forecast.FailureProbability)
	}
}

// ObserveProcessed matches queue.ProcessedHook.
func ObserveProcessed(entry model.QueuedEntry, waited, took time.Duration) {
	taskType := string(entry.Task.Type)
	TasksProcessedTotal.WithLabelValues(taskType, strconv.FormatBool(entry.Task.Payload.Heavy)).Inc()
	QueueWait.WithLabelValues(taskType).Observe(waited.Seconds())
	ProcessingDuration.WithLabelValues(taskType).Observe(took.Seconds())
}
