package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	workerSpawns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpskill",
			Subsystem: "worker",
			Name:      "spawns_total",
			Help:      "Number of successful worker spawns.",
		}, []string{"skill"},
	)
	workerHeartbeats = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpskill",
			Subsystem: "worker",
			Name:      "heartbeats_total",
			Help:      "Number of heartbeat updates recorded.",
		}, []string{"skill"},
	)
	idleTerminations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpskill",
			Subsystem: "worker",
			Name:      "idle_terminations_total",
			Help:      "Number of workers terminated for exceeding the idle timeout.",
		}, []string{"skill"},
	)
	reconciliations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcpskill",
			Subsystem: "worker",
			Name:      "reconciliations_total",
			Help:      "Number of times stale durable state was cleared after a worker died outside supervisor control.",
		}, []string{"skill"},
	)
	idleSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcpskill",
			Subsystem: "worker",
			Name:      "idle_seconds_at_termination",
			Help:      "Observed idle duration when a worker was terminated for idleness.",
			Buckets:   prometheus.ExponentialBuckets(60, 2, 10),
		}, []string{"skill"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{workerSpawns, workerHeartbeats, idleTerminations, reconciliations, idleSeconds}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
			// If already registered, ignore (allows double Register with default registry)
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	regOK.Store(true)
	return nil
}

// Handler returns an http.Handler that serves Prometheus metrics for the DefaultGatherer.
// The caller is responsible for starting an HTTP server and wiring the route.
func Handler() http.Handler { return promhttp.Handler() }

// Below are lightweight helpers used by internal packages to record metrics.
// They no-op if Register hasn't been called.

func IncSpawn(skill string) {
	if regOK.Load() {
		workerSpawns.WithLabelValues(skill).Inc()
	}
}

func IncHeartbeat(skill string) {
	if regOK.Load() {
		workerHeartbeats.WithLabelValues(skill).Inc()
	}
}

func IncIdleTermination(skill string, idle float64) {
	if regOK.Load() {
		idleTerminations.WithLabelValues(skill).Inc()
		idleSeconds.WithLabelValues(skill).Observe(idle)
	}
}

func IncReconcile(skill string) {
	if regOK.Load() {
		reconciliations.WithLabelValues(skill).Inc()
	}
}
