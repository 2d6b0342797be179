// Package metrics exposes the planning run's counters and gauges as
// Prometheus collectors (SPEC_FULL.md §4.9): nodes expanded,
// backtracks taken, queue depth summed across live flaw orders, and the rank vector
// of the most recently expanded plan. A Collector is created once per
// Context and threaded through exactly like the logger -- never reached
// via a package-level registry.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector owns one planning run's metric instruments, registered
// against its own prometheus.Registry rather than prometheus's global
// DefaultRegisterer so that multiple Contexts (as in a test suite running
// several scenarios back to back) never collide on metric names.
type Collector struct {
	registry *prometheus.Registry

	nodesExpanded prometheus.Counter
	backtracks    prometheus.Counter
	queueDepth    prometheus.Gauge
	planRank      *prometheus.GaugeVec
}

// NewCollector builds a Collector with its own private registry.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	c := &Collector{
		registry: reg,
		nodesExpanded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vhplan_nodes_expanded_total",
			Help: "Total number of partial plans popped and expanded by the search driver.",
		}),
		backtracks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "vhplan_backtracks_total",
			Help: "Total number of times the search driver discarded a plan with no viable refinement.",
		}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "vhplan_queue_depth",
			Help: "Number of plans currently queued, summed across live flaw orders.",
		}),
		planRank: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "vhplan_plan_rank",
			Help: "Components of the most recently expanded plan's rank vector.",
		}, []string{"component"}),
	}
	reg.MustRegister(c.nodesExpanded, c.backtracks, c.queueDepth, c.planRank)
	return c
}

// Registry exposes the private registry for an HTTP /metrics handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// IncNodesExpanded records one plan popped off a queue and expanded.
func (c *Collector) IncNodesExpanded() { c.nodesExpanded.Inc() }

// IncBacktracks records one plan discarded for lack of a viable refinement.
func (c *Collector) IncBacktracks() { c.backtracks.Inc() }

// SetQueueDepth reports the current total queued-plan count.
func (c *Collector) SetQueueDepth(n int) { c.queueDepth.Set(float64(n)) }

// SetPlanRank publishes one component of a plan's rank vector, labeled by
// its kind name (e.g. "steps-plus-open", "add-cost").
func (c *Collector) SetPlanRank(component string, value float64) {
	c.planRank.WithLabelValues(component).Set(value)
}
