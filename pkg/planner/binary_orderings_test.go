package planner

import "testing"

func TestBinaryOrderings_RefineAndBefore(t *testing.T) {
	bo, ok := EmptyBinaryOrderings.Refine(1, 2)
	if !ok {
		t.Fatalf("Refine(1, 2) on an empty store should succeed")
	}
	if !bo.Before(1, 2) {
		t.Errorf("Before(1, 2) = false after Refine(1, 2)")
	}
	if bo.Before(2, 1) {
		t.Errorf("Before(2, 1) = true, want false")
	}
}

func TestBinaryOrderings_RefineRejectsCycle(t *testing.T) {
	bo, ok := EmptyBinaryOrderings.Refine(1, 2)
	if !ok {
		t.Fatalf("Refine(1, 2) failed")
	}
	if _, ok := bo.Refine(2, 1); ok {
		t.Errorf("Refine(2, 1) should fail: it would close a cycle with 1 < 2")
	}
}

func TestBinaryOrderings_RefineRejectsSelfLoop(t *testing.T) {
	if _, ok := EmptyBinaryOrderings.Refine(1, 1); ok {
		t.Errorf("Refine(1, 1) should fail: a step cannot precede itself")
	}
}

func TestBinaryOrderings_TransitiveClosure(t *testing.T) {
	bo, ok := EmptyBinaryOrderings.Refine(1, 2)
	if !ok {
		t.Fatalf("Refine(1, 2) failed")
	}
	bo, ok = bo.Refine(2, 3)
	if !ok {
		t.Fatalf("Refine(2, 3) failed")
	}
	if !bo.Before(1, 3) {
		t.Errorf("Before(1, 3) = false, want true (transitive closure of 1<2<3)")
	}
	// Adding 3 < 1 now must fail: it would close the 1<2<3 cycle.
	if _, ok := bo.Refine(3, 1); ok {
		t.Errorf("Refine(3, 1) should fail given the existing 1<2<3 chain")
	}
}

func TestBinaryOrderings_StructuralSharingAcrossRefine(t *testing.T) {
	base, ok := EmptyBinaryOrderings.Refine(1, 2)
	if !ok {
		t.Fatalf("Refine(1, 2) failed")
	}
	siblingA, ok := base.Refine(3, 4)
	if !ok {
		t.Fatalf("Refine(3, 4) failed")
	}
	siblingB, ok := base.Refine(5, 6)
	if !ok {
		t.Fatalf("Refine(5, 6) failed")
	}
	// Refining one sibling must not leak into the other or into base.
	if siblingA.Before(5, 6) {
		t.Errorf("siblingA should not see siblingB's ordering")
	}
	if siblingB.Before(3, 4) {
		t.Errorf("siblingB should not see siblingA's ordering")
	}
	if base.Before(3, 4) || base.Before(5, 6) {
		t.Errorf("base should be unaffected by either child's Refine")
	}
	if !base.Before(1, 2) {
		t.Errorf("base's own ordering should be untouched")
	}
}

func TestBinaryOrderings_PossiblyBeforeInitGoal(t *testing.T) {
	if !EmptyBinaryOrderings.PossiblyBefore(InitID, 7) {
		t.Errorf("Init must be possibly-before any step")
	}
	if EmptyBinaryOrderings.PossiblyBefore(7, InitID) {
		t.Errorf("nothing can be possibly-before Init")
	}
	if !EmptyBinaryOrderings.PossiblyBefore(7, GoalID) {
		t.Errorf("any step must be possibly-before Goal")
	}
	if EmptyBinaryOrderings.PossiblyBefore(GoalID, 7) {
		t.Errorf("Goal cannot be possibly-before any other step")
	}
}

func TestBinaryOrderings_PossiblyConcurrent(t *testing.T) {
	if !EmptyBinaryOrderings.PossiblyConcurrent(1, 2) {
		t.Errorf("unordered steps should be possibly concurrent")
	}
	bo, _ := EmptyBinaryOrderings.Refine(1, 2)
	if bo.PossiblyConcurrent(1, 2) {
		t.Errorf("steps with a forced ordering should not be possibly concurrent")
	}
}

func TestBinaryOrderings_Schedule(t *testing.T) {
	bo, _ := EmptyBinaryOrderings.Refine(InitID, 1)
	bo, _ = bo.Refine(1, 2)
	bo, _ = bo.Refine(2, GoalID)

	starts, ends, makespan := bo.Schedule([]StepID{1, 2})
	if starts[1] >= starts[2] {
		t.Errorf("step 1 should be scheduled before step 2: starts=%v", starts)
	}
	if ends[2] > makespan {
		t.Errorf("makespan %v should be >= end of the last step %v", makespan, ends[2])
	}
}
