package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stromdeals_requests_total",
			Help: "Total number of API requests per endpoint",
		},
		[]string{"endpoint"},
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stromdeals_request_duration_seconds",
			Help:    "Request duration in seconds per endpoint",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	RequestErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stromdeals_request_errors_total",
			Help: "Total number of error responses per endpoint and status code",
		},
		[]string{"endpoint", "code"},
	)
)

var (
	DumpServedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stromdeals_dump_served_total",
			Help: "Number of dumps served per freshness tier",
		},
		[]string{"tier"},
	)

	UpstreamFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stromdeals_upstream_failures_total",
			Help: "Number of failed vendor API fetches",
		},
	)

	PersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stromdeals_persist_failures_total",
			Help: "Number of fetched dumps that could not be written to storage",
		},
	)

	DumpAgeSeconds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stromdeals_dump_age_seconds",
			Help: "Age of the most recently served dump",
		},
	)

	DumpOffers = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stromdeals_dump_offers",
			Help: "Number of offers in the most recently served dump per source",
		},
		[]string{"source"},
	)
)

// ObserveDump records which tier served a dump and how old and large it was.
func ObserveDump(tier, source string, age time.Duration, offers int) {
	DumpServedTotal.WithLabelValues(tier).Inc()
	DumpAgeSeconds.Set(age.Seconds())
	DumpOffers.WithLabelValues(source).Set(float64(offers))
}

var (
	ScheduledJobLastRun = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stromdeals_job_last_run_timestamp",
			Help: "Unix timestamp of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobLastDurationSeconds = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stromdeals_job_last_duration_seconds",
			Help: "Duration of the last completed run for a job",
		},
		[]string{"job"},
	)

	ScheduledJobFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stromdeals_job_failures_total",
			Help: "Total number of failed executions per job",
		},
		[]string{"job"},
	)
)

func UpdateJobMetrics(job string, startedAt time.Time, err error) {
	dur := time.Since(startedAt).Seconds()
	ScheduledJobLastDurationSeconds.WithLabelValues(job).Set(dur)
	ScheduledJobLastRun.WithLabelValues(job).Set(float64(time.Now().Unix()))
	if err != nil {
		ScheduledJobFailuresTotal.WithLabelValues(job).Inc()
	}
}
