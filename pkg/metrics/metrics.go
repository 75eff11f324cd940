// Package metrics provides a Prometheus-backed observer for continuation
// signals dropped by the wrapping layer's at-most-once guard. Plug its hook
// into funnel.WithDropHook to count drops per callable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// DropCounter counts continuation signals dropped after the continuation
// already fired for an invocation.
type DropCounter struct {
	dropped *prometheus.CounterVec
}

// NewDropCounter creates a DropCounter registered with reg. A nil reg falls
// back to the default registerer.
func NewDropCounter(reg prometheus.Registerer) *DropCounter {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	d := &DropCounter{
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "funnel_continuation_drops_total",
				Help: "Continuation signals dropped because the continuation already fired for the invocation.",
			},
			[]string{"callable"},
		),
	}
	reg.MustRegister(d.dropped)
	return d
}

// Hook returns the drop hook to pass to funnel.WithDropHook.
func (d *DropCounter) Hook() func(callable string, dropped error) {
	return func(callable string, _ error) {
		d.dropped.WithLabelValues(callable).Inc()
	}
}

// Describe implements prometheus.Collector.
func (d *DropCounter) Describe(ch chan<- *prometheus.Desc) {
	d.dropped.Describe(ch)
}

// Collect implements prometheus.Collector.
func (d *DropCounter) Collect(ch chan<- prometheus.Metric) {
	d.dropped.Collect(ch)
}
