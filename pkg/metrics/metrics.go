// Package metrics exports lock contention as prometheus counters.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kikimo/spin-stresser/pkg/spinlock"
)

// Metrics holds the contention counters for every lock variant.
type Metrics struct {
	Acquisitions *prometheus.CounterVec
	Yields       *prometheus.CounterVec
}

// New creates the counters under namespace. They still have to be
// registered, see Collectors.
func New(namespace string) *Metrics {
	return &Metrics{
		Acquisitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spinlock",
			Name:      "acquisitions_total",
			Help:      "Number of times a lock was acquired.",
		}, []string{"variant", "contended"}),
		Yields: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "spinlock",
			Name:      "yields_total",
			Help:      "Number of times a waiter yielded its time slice.",
		}, []string{"variant"}),
	}
}

// Collectors returns all prometheus metrics as collectors for registration.
func (m *Metrics) Collectors() []prometheus.Collector {
	if m == nil {
		return nil
	}
	return []prometheus.Collector{
		m.Acquisitions,
		m.Yields,
	}
}

// Observer returns a spinlock.Observer recording into m under the variant
// label. A nil m returns a nil Observer, which disables observation.
func (m *Metrics) Observer(variant string) spinlock.Observer {
	if m == nil {
		return nil
	}
	return &observer{
		acquired: [2]prometheus.Counter{
			m.Acquisitions.WithLabelValues(variant, strconv.FormatBool(false)),
			m.Acquisitions.WithLabelValues(variant, strconv.FormatBool(true)),
		},
		yields: m.Yields.WithLabelValues(variant),
	}
}

// observer resolves its label values once so the spin loop does not.
type observer struct {
	acquired [2]prometheus.Counter
	yields   prometheus.Counter
}

func (o *observer) Acquired(contended bool) {
	if contended {
		o.acquired[1].Inc()
		return
	}
	o.acquired[0].Inc()
}

func (o *observer) Yielded() {
	o.yields.Inc()
}
