package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	Registry = prometheus.NewRegistry()

	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ensemble",
			Name:      "transitions_total",
			Help:      "Coordinator state changes.",
		},
		[]string{"coordinator", "from", "to"},
	)

	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "ensemble",
			Name:      "tick_duration_seconds",
			Help:      "Time spent evaluating one registry tick.",
			// 10µs .. ~80ms
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 14),
		},
	)

	RegisteredVehicles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "ensemble",
			Name:      "registered_vehicles",
			Help:      "Vehicles currently holding a coordinator pair.",
		},
	)

	Warnings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ensemble",
			Name:      "protocol_warnings_total",
			Help:      "Recovered per-vehicle anomalies, by kind.",
		},
		[]string{"kind"},
	)

	RegistryMisuse = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ensemble",
			Name:      "registry_misuse_total",
			Help:      "Rejected register/unregister calls.",
		},
		[]string{"op"},
	)

	buildInfo = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "ensemble",
			Name:      "build_info",
			Help:      "Build info (constant 1, labeled by version).",
		},
		[]string{"version"},
	)
)

func init() {
	Registry.MustRegister(Transitions, TickDuration, RegisteredVehicles, Warnings, RegistryMisuse, buildInfo)
}

// MetricsHandler exposes /metrics. Mount it with mux.Handle("/metrics", telemetry.MetricsHandler()).
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// SetBuildInfo should be called once at startup.
func SetBuildInfo(version string) {
	buildInfo.WithLabelValues(version).Set(1)
}
