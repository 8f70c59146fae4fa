package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/josangl08/Ballers-V3-sub002/internal/calsync"
)

var (
	SyncRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_runs_total",
			Help: "Completed sync runs by trigger and result.",
		},
		[]string{"trigger", "result"},
	)

	SyncChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_changes_total",
			Help: "Sessions touched by sync, by action.",
		},
		[]string{"action"},
	)

	SyncRejections = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sync_rejections_total",
			Help: "Calendar events rejected during import.",
		},
	)

	SyncDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sync_run_duration_seconds",
			Help:    "Wall time of a full sync run.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(SyncRuns, SyncChanges, SyncRejections, SyncDuration)
}

// ObserveRun records one finished sync run.
func ObserveRun(trigger string, report *calsync.Report, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	SyncRuns.WithLabelValues(trigger, result).Inc()

	if report == nil {
		return
	}
	SyncDuration.Observe(report.Duration.Seconds())
	SyncChanges.WithLabelValues("created").Add(float64(report.Created))
	SyncChanges.WithLabelValues("updated").Add(float64(report.Updated))
	SyncChanges.WithLabelValues("deleted").Add(float64(report.Deleted))
	SyncChanges.WithLabelValues("pushed").Add(float64(report.Pushed))
	SyncChanges.WithLabelValues("completed").Add(float64(report.PastCompleted))
	SyncRejections.Add(float64(len(report.Rejected)))
}
