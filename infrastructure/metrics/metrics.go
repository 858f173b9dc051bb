package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomePublished = "published"
	OutcomeDuplicate = "duplicate"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

var (
	SweepRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkedpost_sweep_runs_total",
		Help: "Scheduler sweeps by trigger source and result",
	}, []string{"source", "result"})

	SweepPostsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "linkedpost_sweep_posts_total",
		Help: "Due posts handled by the sweep, by outcome",
	}, []string{"outcome"})

	SweepDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "linkedpost_sweep_duration_seconds",
		Help:    "Wall time of one scheduler sweep",
		Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
	}, []string{"source"})

	PublishDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "linkedpost_publish_duration_seconds",
		Help:    "Time spent publishing a single post to LinkedIn",
		Buckets: prometheus.DefBuckets,
	})
)

var registerOnce sync.Once

// MustRegister registers the collectors once; later calls are no-ops.
func MustRegister(registerer prometheus.Registerer) {
	registerOnce.Do(func() {
		registerer.MustRegister(
			SweepRunsTotal,
			SweepPostsTotal,
			SweepDuration,
			PublishDuration,
		)
	})
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
