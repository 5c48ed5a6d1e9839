package metrics

import (
	"errors"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Restart triggers used as the "trigger" label.
const (
	TriggerExit  = "exit"
	TriggerFiles = "files"
	TriggerForce = "force"
)

// Package-level Prometheus collectors. They are registered via Register.
var (
	regOK atomic.Bool

	processStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "process",
			Name:      "starts_total",
			Help:      "Number of successful process starts.",
		}, []string{"name"},
	)
	processStops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "process",
			Name:      "stops_total",
			Help:      "Number of forced terminations.",
		}, []string{"name"},
	)
	processExits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "process",
			Name:      "exits_total",
			Help:      "Number of observed exits by result.",
		}, []string{"name", "result"},
	)
	processRestarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "process",
			Name:      "restarts_total",
			Help:      "Number of restarts by trigger.",
		}, []string{"name", "trigger"},
	)
	processRunning = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "procwatch",
			Subsystem: "process",
			Name:      "running",
			Help:      "1 while a child process handle is held.",
		}, []string{"name"},
	)
	detectorChanges = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "procwatch",
			Subsystem: "detector",
			Name:      "changes_total",
			Help:      "Number of scans that found a changed file.",
		}, []string{"dir"},
	)
)

// Register registers all metrics with the provided registerer.
// It is safe to call multiple times; subsequent calls after success are no-ops.
func Register(r prometheus.Registerer) error {
	if regOK.Load() {
		return nil
	}
	cs := []prometheus.Collector{processStarts, processStops, processExits, processRestarts, processRunning, detectorChanges}
	for _, c := range cs {
		if err := r.Register(c); err != nil {
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

// HandlerFor serves the given gatherer.
func HandlerFor(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// The helpers below no-op until Register has been called.

func IncStart(name string) {
	if regOK.Load() {
		processStarts.WithLabelValues(name).Inc()
		processRunning.WithLabelValues(name).Set(1)
	}
}

func IncStop(name string) {
	if regOK.Load() {
		processStops.WithLabelValues(name).Inc()
		processRunning.WithLabelValues(name).Set(0)
	}
}

func IncExit(name string, success bool) {
	if regOK.Load() {
		result := "failure"
		if success {
			result = "success"
		}
		processExits.WithLabelValues(name, result).Inc()
		processRunning.WithLabelValues(name).Set(0)
	}
}

func IncRestart(name, trigger string) {
	if regOK.Load() {
		processRestarts.WithLabelValues(name, trigger).Inc()
	}
}

func IncDetectorChange(dir string) {
	if regOK.Load() {
		detectorChanges.WithLabelValues(dir).Inc()
	}
}
