// Package metrics records the outcome of a backup run and pushes it to a
// Prometheus Pushgateway. A run is a short-lived batch job, so nothing is
// scraped.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ami_backup"

// Recorder holds the metrics of a single run.
type Recorder struct {
	registry *prometheus.Registry
	server   string

	imagesCreated      prometheus.Counter
	imagesDeregistered prometheus.Counter
	snapshotsDeleted   prometheus.Counter
	imagesKept         prometheus.Gauge
	cleanupsResumed    prometheus.Counter
	runDuration        prometheus.Gauge
	lastSuccess        prometheus.Gauge
	lastFailure        prometheus.Gauge
}

// New returns a Recorder for runs backing up serverName.
func New(serverName string) *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		server:   serverName,

		imagesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_created_total",
			Help:      "AMIs created by the run",
		}),
		imagesDeregistered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_deregistered_total",
			Help:      "Expired AMIs deregistered by the run",
		}),
		snapshotsDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_deleted_total",
			Help:      "Snapshots of expired AMIs deleted by the run",
		}),
		imagesKept: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "images_kept",
			Help:      "AMIs within the retention window",
		}),
		cleanupsResumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cleanups_resumed_total",
			Help:      "Unfinished cleanups from earlier runs picked up by the run",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the run",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful run",
		}),
		lastFailure: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_failure_timestamp_seconds",
			Help:      "Unix time of the last failed run",
		}),
	}

	r.registry.MustRegister(
		r.imagesCreated,
		r.imagesDeregistered,
		r.snapshotsDeleted,
		r.imagesKept,
		r.cleanupsResumed,
		r.runDuration,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) ImageCreated() {
	r.imagesCreated.Inc()
}

// Swept records the outcome of a retention sweep.
func (r *Recorder) Swept(deregistered, snapshotsDeleted, kept, resumed int) {
	r.imagesDeregistered.Add(float64(deregistered))
	r.snapshotsDeleted.Add(float64(snapshotsDeleted))
	r.imagesKept.Set(float64(kept))
	r.cleanupsResumed.Add(float64(resumed))
}

// Finished records the end of the run at end. Only the timestamp of the
// run's outcome is exposed, so a push keeps the other one on the gateway.
func (r *Recorder) Finished(err error, start, end time.Time) {
	r.runDuration.Set(end.Sub(start).Seconds())

	outcome, other := r.lastSuccess, r.lastFailure
	if err != nil {
		outcome, other = r.lastFailure, r.lastSuccess
	}
	r.registry.Unregister(other)
	r.registry.Unregister(outcome)
	outcome.Set(float64(end.Unix()))
	r.registry.MustRegister(outcome)
}

// Push adds the metrics of job for this server to the Pushgateway at url.
// Series with the same names are replaced; others in the group are kept.
func (r *Recorder) Push(ctx context.Context, url, job string) error {
	err := push.New(url, job).
		Gatherer(r.registry).
		Grouping("server", r.server).
		AddContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
