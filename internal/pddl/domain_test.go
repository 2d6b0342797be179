package pddl

import (
	"testing"

	"github.com/gitrdm/vhplan/pkg/planner"
)

func TestDomain_TypeHierarchy(t *testing.T) {
	d := NewDomain()
	objID, err := d.AddType("object")
	if err != nil {
		t.Fatalf("AddType(object) failed: %v", err)
	}
	blockID, err := d.AddType("block", "object")
	if err != nil {
		t.Fatalf("AddType(block) failed: %v", err)
	}
	if !d.types.Subtype(blockID, objID) {
		t.Errorf("block should be a subtype of object")
	}
	if _, err := d.AddType("object"); err == nil {
		t.Errorf("expected error re-declaring type %q", "object")
	}
	if _, err := d.AddType("table", "nosuchtype"); err == nil {
		t.Errorf("expected error declaring type with undeclared supertype")
	}
}

func TestDomain_Predicates(t *testing.T) {
	d := NewDomain()
	blockID, _ := d.AddType("block")
	onID := d.AddPredicate("on", blockID, blockID)
	clearID := d.AddPredicate("clear", blockID)
	if onID == clearID {
		t.Fatalf("distinct predicates got the same id")
	}
	if got, ok := d.PredicateID("on"); !ok || got != onID {
		t.Errorf("PredicateID(on) = %v, %v; want %v, true", got, ok, onID)
	}
	if _, ok := d.PredicateID("missing"); ok {
		t.Errorf("PredicateID(missing) should not resolve")
	}
}

func TestDomain_IsStatic(t *testing.T) {
	d := NewDomain()
	blockID, _ := d.AddType("block")
	onID := d.AddPredicate("on", blockID, blockID)
	clearID := d.AddPredicate("clear", blockID)

	b := d.NewAction("move")
	x := b.Param("x", blockID)
	y := b.Param("y", blockID)
	b.Precondition(planner.NewAtom(clearID, planner.TimingAtStart, x))
	b.Effect(planner.NewAtom(onID, planner.TimingAtEnd, x, y), planner.TimingAtEnd)
	b.Build()

	if d.IsStatic(onID) {
		t.Errorf("on/2 is asserted by move's effect, should not be static")
	}
	if !d.IsStatic(clearID) {
		t.Errorf("clear/1 is never effected in this domain, should be static")
	}
}

func TestActionBuilder_Durative(t *testing.T) {
	d := NewDomain()
	blockID, _ := d.AddType("block")
	onID := d.AddPredicate("on", blockID, blockID)

	b := d.NewAction("stack")
	x := b.Param("x", blockID)
	y := b.Param("y", blockID)
	b.Durative(5, 5)
	b.Effect(planner.NewAtom(onID, planner.TimingAtEnd, x, y), planner.TimingAtEnd)
	a := b.Build()

	if !a.Durative {
		t.Fatalf("expected a durative action")
	}
	if a.Duration.Min != 5 || a.Duration.Max != 5 {
		t.Errorf("Duration = %+v, want {5 5}", a.Duration)
	}
	if len(d.Actions()) != 1 || d.Actions()[0] != a {
		t.Errorf("action was not registered with the domain")
	}
}
