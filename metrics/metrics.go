package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	KindLabel     = "kind"
	KindOverrides = "overrides"
	KindPaTable   = "patable"
)

var (
	ResolveCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "rfgen",
			Name:      "resolve_total",
			Help:      "The total number of override and PA table resolutions",
		},
		[]string{KindLabel},
	)

	RenderCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfgen",
			Name:      "render_total",
			Help:      "The total number of rendered designs",
		},
	)

	ChangedCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfgen",
			Name:      "changed_total",
			Help:      "The total number of renders stored because they changed",
		},
	)

	UnknownElementCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfgen",
			Name:      "unknown_element_total",
			Help:      "The total number of override elements rendered as errors",
		},
	)

	ErrorCounter = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "rfgen",
			Name:      "error_total",
			Help:      "The total number of errors occurring",
		},
	)
)
