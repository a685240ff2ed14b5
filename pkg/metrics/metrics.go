// Package metrics exports Prometheus counters and gauges fed by tree event
// subscriptions.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gtgtree/gtgtree/pkg/tree"
)

const namespace = "gtgtree"

// Metrics holds the collectors for every observed store or view.
type Metrics struct {
	// EventsTotal counts change events by source and kind.
	EventsTotal *prometheus.CounterVec
	// Nodes is the live node count per source.
	Nodes *prometheus.GaugeVec
	// ReloadsTotal counts file reloads by outcome (ok, error).
	ReloadsTotal *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers the collectors with reg. A nil reg uses a fresh registry.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Change events emitted, by source and kind",
		}, []string{"source", "kind"}),
		Nodes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Live nodes, by source",
		}, []string{"source"}),
		ReloadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reloads_total",
			Help:      "Task file reloads, by outcome",
		}, []string{"outcome"}),
		gatherer: reg,
	}
}

// Counter is the node-count side of a store or view.
type Counter interface {
	Count(rootsOnly bool) int
}

// Observe subscribes to src and records each event under name.
func Observe[K comparable, V any](m *Metrics, name string, src tree.Source[K, V], counter Counter) *tree.Subscription {
	if counter != nil {
		m.Nodes.WithLabelValues(name).Set(float64(counter.Count(false)))
	}
	return src.Subscribe(func(ev tree.Event[K, V]) {
		m.EventsTotal.WithLabelValues(name, ev.Kind.String()).Inc()
		if counter != nil {
			m.Nodes.WithLabelValues(name).Set(float64(counter.Count(false)))
		}
	})
}

// Reload records the outcome of a reload.
func (m *Metrics) Reload(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ReloadsTotal.WithLabelValues(outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
