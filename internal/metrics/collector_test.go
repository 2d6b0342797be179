package metrics

import (
	"testing"
)

func gaugeValue(t *testing.T, c *Collector, name string) float64 {
	t.Helper()
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.Metric {
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
			if ctr := m.GetCounter(); ctr != nil {
				return ctr.GetValue()
			}
		}
	}
	t.Fatalf("metric %q not found", name)
	return 0
}

func TestCollector_Counters(t *testing.T) {
	c := NewCollector()
	c.IncNodesExpanded()
	c.IncNodesExpanded()
	c.IncBacktracks()

	if got := gaugeValue(t, c, "vhplan_nodes_expanded_total"); got != 2 {
		t.Errorf("vhplan_nodes_expanded_total = %v, want 2", got)
	}
	if got := gaugeValue(t, c, "vhplan_backtracks_total"); got != 1 {
		t.Errorf("vhplan_backtracks_total = %v, want 1", got)
	}
}

func TestCollector_QueueDepth(t *testing.T) {
	c := NewCollector()
	c.SetQueueDepth(5)
	c.SetQueueDepth(3)
	if got := gaugeValue(t, c, "vhplan_queue_depth"); got != 3 {
		t.Errorf("vhplan_queue_depth = %v, want 3 (last write wins)", got)
	}
}

func TestCollector_PlanRank(t *testing.T) {
	c := NewCollector()
	c.SetPlanRank("add-cost", 12.5)
	families, err := c.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	var found bool
	for _, f := range families {
		if f.GetName() != "vhplan_plan_rank" {
			continue
		}
		for _, m := range f.Metric {
			for _, lbl := range m.Label {
				if lbl.GetName() == "component" && lbl.GetValue() == "add-cost" {
					found = true
					if m.GetGauge().GetValue() != 12.5 {
						t.Errorf("vhplan_plan_rank{component=add-cost} = %v, want 12.5", m.GetGauge().GetValue())
					}
				}
			}
		}
	}
	if !found {
		t.Fatalf("expected a vhplan_plan_rank series labeled component=add-cost")
	}
}
