package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	runs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leasesync",
			Name:      "runs_total",
			Help:      "Sync runs by outcome.",
		},
		[]string{"outcome"},
	)
	runDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "leasesync",
			Name:      "run_duration_seconds",
			Help:      "Sync run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
	)
	lastRun = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "leasesync",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last sync run finished.",
		},
	)
	commands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leasesync",
			Subsystem: "router",
			Name:      "commands_total",
			Help:      "Lease commands sent to slave routers.",
		},
		[]string{"router", "kind", "result"},
	)
	missingScopes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "leasesync",
			Subsystem: "router",
			Name:      "missing_scopes",
			Help:      "DHCP servers present on the master but absent on a slave.",
		},
		[]string{"router"},
	)
	presenceActions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "leasesync",
			Subsystem: "tracking",
			Name:      "actions_total",
			Help:      "Calls made to tracking service instances.",
		},
		[]string{"target", "kind", "result"},
	)
)

// RegisterMetrics registers the collectors with the default registry
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(runs, runDuration, lastRun, commands, missingScopes, presenceActions)
	})
}

func result(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

// RecordRun records a finished run
func RecordRun(outcome string, duration time.Duration, finished time.Time) {
	RegisterMetrics()
	runs.WithLabelValues(outcome).Inc()
	runDuration.Observe(duration.Seconds())
	lastRun.Set(float64(finished.Unix()))
}

// RecordCommand records one command sent to a slave router
func RecordCommand(router, kind string, ok bool) {
	RegisterMetrics()
	commands.WithLabelValues(router, kind, result(ok)).Inc()
}

// SetMissingScopes records how many master scopes a slave lacks
func SetMissingScopes(router string, n int) {
	RegisterMetrics()
	missingScopes.WithLabelValues(router).Set(float64(n))
}

// RecordPresence records one call to a tracking service
func RecordPresence(target, kind string, ok bool) {
	RegisterMetrics()
	presenceActions.WithLabelValues(target, kind, result(ok)).Inc()
}
