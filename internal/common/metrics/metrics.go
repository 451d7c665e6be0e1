package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of Zeebe jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of Zeebe jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of Zeebe job processing in seconds",
		},
		[]string{"task_type"},
	)

	DigestsSelected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobnotifier_digests_selected_total",
			Help: "Selections per winning strategy tag",
		},
		[]string{"strategy"},
	)

	DigestDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobnotifier_digest_deliveries_total",
			Help: "Digest send attempts per channel and outcome",
		},
		[]string{"channel", "status"},
	)

	JobsMarkedNotified = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "jobnotifier_jobs_marked_notified_total",
			Help: "Job postings whose notify-sent flag was flipped",
		},
	)

	BatchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "jobnotifier_batch_run_duration_seconds",
			Help:    "Duration of batch runs in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 900},
		},
		[]string{"status"},
	)
)

// Delivery statuses used as the status label of DigestDeliveries.
const (
	DeliverySent   = "sent"
	DeliveryFailed = "failed"
)
