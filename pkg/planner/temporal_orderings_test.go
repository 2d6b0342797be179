package planner

import "testing"

func TestTemporalOrderings_DurationBounds(t *testing.T) {
	stn := NewTemporalOrderings(0.01)
	stn, ok := stn.RefineNewStep(1, 5, 10, 0)
	if !ok {
		t.Fatalf("RefineNewStep(1, min=5, max=10) should succeed")
	}
	starts, ends, _ := stn.Schedule(nil)
	dur := ends[1] - starts[1]
	if dur < 5-1e-9 || dur > 10+1e-9 {
		t.Errorf("step 1 duration = %v, want between 5 and 10", dur)
	}
}

func TestTemporalOrderings_RefineOrderingSeparation(t *testing.T) {
	stn := NewTemporalOrderings(0.01)
	stn, ok := stn.RefineNewStep(1, 1, 1, 0)
	if !ok {
		t.Fatalf("RefineNewStep(1) failed")
	}
	stn, ok = stn.RefineNewStep(2, 1, 1, 0)
	if !ok {
		t.Fatalf("RefineNewStep(2) failed")
	}
	stn, ok = stn.RefineOrdering(1, StepEnd, 2, StepStart, 2)
	if !ok {
		t.Fatalf("RefineOrdering(1.end -> 2.start, sep=2) should succeed")
	}
	starts, ends, _ := stn.Schedule(nil)
	if starts[2] < ends[1]+2-1e-9 {
		t.Errorf("step 2 should start at least 2 units after step 1 ends: ends[1]=%v starts[2]=%v", ends[1], starts[2])
	}
}

func TestTemporalOrderings_RefineOrderingInfeasible(t *testing.T) {
	stn := NewTemporalOrderings(0.01)
	stn, ok := stn.RefineNewStep(1, 1, 1, 0)
	if !ok {
		t.Fatalf("RefineNewStep(1) failed")
	}
	stn, ok = stn.RefineNewStep(2, 1, 1, 0)
	if !ok {
		t.Fatalf("RefineNewStep(2) failed")
	}
	stn, ok = stn.RefineOrdering(1, StepStart, 2, StepStart, 1)
	if !ok {
		t.Fatalf("RefineOrdering(1 before 2) should succeed")
	}
	if _, ok := stn.RefineOrdering(2, StepStart, 1, StepStart, 1); ok {
		t.Errorf("posting the reverse ordering should be rejected as infeasible")
	}
}

func TestTemporalOrderings_GoalAchieverMakespan(t *testing.T) {
	stn := NewTemporalOrderings(0.01)
	stn, ok := stn.RefineNewStep(1, 3, 3, 0)
	if !ok {
		t.Fatalf("RefineNewStep(1) failed")
	}
	stn = stn.AddGoalAchiever(1)
	_, ends, makespan := stn.Schedule(nil)
	if makespan != ends[1] {
		t.Errorf("makespan = %v, want ends[1] = %v", makespan, ends[1])
	}
}

func TestTemporalOrderings_PossiblyBeforeUnconstrained(t *testing.T) {
	stn := NewTemporalOrderings(0.01)
	if !stn.PossiblyBefore(1, StepStart, 2, StepStart) {
		t.Errorf("two never-introduced time-points should remain possibly-ordered either way")
	}
}
