//go:build !ios && !android && (amd64 || arm64)

package crtgo

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	resourcesLive = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "crtgo_resources_live",
			Help: "Resources acquired and not yet fully destroyed.",
		},
		[]string{"class"},
	)

	resourcesCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crtgo_resources_created_total",
			Help: "Resources whose native allocation succeeded.",
		},
		[]string{"class"},
	)

	resourcesDestroyed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crtgo_resources_destroyed_total",
			Help: "Resources that reached the destroyed state.",
		},
		[]string{"class"},
	)

	nativeDestroyFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crtgo_native_destroy_failures_total",
			Help: "Native destroy calls that reported an error.",
		},
		[]string{"class"},
	)

	protocolViolations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crtgo_protocol_violations_total",
			Help: "Lifecycle protocol violations detected and ignored.",
		},
		[]string{"class", "kind"},
	)

	resourcesLeaked = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crtgo_resources_leaked_total",
			Help: "Resources garbage collected while still live.",
		},
		[]string{"class"},
	)

	teardownDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crtgo_teardown_duration_seconds",
			Help:    "Time from Release to the destroyed state.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
		[]string{"class"},
	)
)

func init() {
	prometheus.MustRegister(
		resourcesLive,
		resourcesCreated,
		resourcesDestroyed,
		nativeDestroyFailures,
		protocolViolations,
		resourcesLeaked,
		teardownDuration,
	)
}
