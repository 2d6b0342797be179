package pddl

import (
	"testing"

	"github.com/gitrdm/vhplan/pkg/planner"
)

const blocksworldDomain = `
(define (domain blocksworld)
  (:requirements :strips :typing)
  (:types block)
  (:predicates
    (on ?x - block ?y - block)
    (on-table ?x - block)
    (clear ?x - block)
    (holding ?x - block)
    (handempty))
  (:action pick-up
    :parameters (?x - block)
    :precondition (and (clear ?x) (on-table ?x) (handempty))
    :effect (and
      (not (on-table ?x))
      (not (clear ?x))
      (not (handempty))
      (holding ?x)))
  (:action put-down
    :parameters (?x - block)
    :precondition (holding ?x)
    :effect (and
      (not (holding ?x))
      (clear ?x)
      (handempty)
      (on-table ?x)))
  (:action stack
    :parameters (?x - block ?y - block)
    :precondition (and (holding ?x) (clear ?y))
    :effect (and
      (not (holding ?x))
      (not (clear ?y))
      (clear ?x)
      (handempty)
      (on ?x ?y)))
  (:action unstack
    :parameters (?x - block ?y - block)
    :precondition (and (on ?x ?y) (clear ?x) (handempty))
    :effect (and
      (holding ?x)
      (clear ?y)
      (not (clear ?x))
      (not (handempty))
      (not (on ?x ?y)))))
`

const blocksworldProblem = `
(define (problem swap-two)
  (:domain blocksworld)
  (:objects a b - block)
  (:init (on-table a) (on-table b) (clear a) (clear b) (handempty))
  (:goal (on a b)))
`

func TestReadDomain_Blocksworld(t *testing.T) {
	d, err := ReadDomain("blocksworld.pddl", []byte(blocksworldDomain))
	if err != nil {
		t.Fatalf("ReadDomain failed: %v", err)
	}
	if _, ok := d.TypeID("block"); !ok {
		t.Fatalf("expected type %q to be declared", "block")
	}
	wantPreds := []string{"on", "on-table", "clear", "holding", "handempty"}
	for _, name := range wantPreds {
		if _, ok := d.PredicateID(name); !ok {
			t.Errorf("expected predicate %q to be declared", name)
		}
	}
	if len(d.Actions()) != 4 {
		t.Fatalf("expected 4 actions, got %d", len(d.Actions()))
	}
	for _, a := range d.Actions() {
		if a.Durative {
			t.Errorf("action %q should not be durative", a.Name)
		}
		if a.Condition.VariantKind() != planner.FormulaConjunction && len(a.Parameters) > 1 {
			// single-precondition actions collapse to a bare literal; only
			// flag genuinely missing preconditions.
		}
	}
}

func TestReadDomain_UndeclaredPredicateIsParseError(t *testing.T) {
	bad := `
(define (domain bad)
  (:types block)
  (:predicates (clear ?x - block))
  (:action noop
    :parameters (?x - block)
    :precondition (mystery ?x)
    :effect (clear ?x)))
`
	if _, err := ReadDomain("bad.pddl", []byte(bad)); err == nil {
		t.Fatalf("expected a parse error for an undeclared predicate")
	} else if _, ok := err.(*planner.ParseError); !ok {
		t.Errorf("expected *planner.ParseError, got %T: %v", err, err)
	}
}

func TestReadProblem_Blocksworld(t *testing.T) {
	d, err := ReadDomain("blocksworld.pddl", []byte(blocksworldDomain))
	if err != nil {
		t.Fatalf("ReadDomain failed: %v", err)
	}
	p, err := ReadProblem("swap-two.pddl", []byte(blocksworldProblem), d)
	if err != nil {
		t.Fatalf("ReadProblem failed: %v", err)
	}
	if len(p.Objects()) != 2 {
		t.Fatalf("expected 2 objects, got %d", len(p.Objects()))
	}
	if len(p.InitAtoms()) != 5 {
		t.Fatalf("expected 5 initial atoms, got %d", len(p.InitAtoms()))
	}
	goal := p.Goal()
	if goal.VariantKind() != planner.FormulaAtom {
		t.Fatalf("expected goal to be a single atom, got kind %v", goal.VariantKind())
	}
	onID, ok := d.PredicateID("on")
	if !ok {
		t.Fatalf("predicate %q should be declared", "on")
	}
	if goal.Predicate != onID {
		t.Errorf("goal predicate = %v, want %v (on)", goal.Predicate, onID)
	}

	a, aOK := p.ObjectID("a")
	b, bOK := p.ObjectID("b")
	if !aOK || !bOK {
		t.Fatalf("expected objects %q and %q to resolve", "a", "b")
	}
	if len(goal.Args) != 2 || goal.Args[0] != a || goal.Args[1] != b {
		t.Errorf("goal args = %v, want [%v %v]", goal.Args, a, b)
	}
}

func TestReadProblem_NegativeInitIsRejected(t *testing.T) {
	d, err := ReadDomain("blocksworld.pddl", []byte(blocksworldDomain))
	if err != nil {
		t.Fatalf("ReadDomain failed: %v", err)
	}
	bad := `
(define (problem bad)
  (:domain blocksworld)
  (:objects a - block)
  (:init (not (clear a)))
  (:goal (clear a)))
`
	if _, err := ReadProblem("bad.pddl", []byte(bad), d); err == nil {
		t.Fatalf("expected a parse error for a negative :init literal")
	}
}

func TestReadDomain_DurativeActionRequiresDuration(t *testing.T) {
	bad := `
(define (domain durtest)
  (:types block)
  (:predicates (clear ?x - block))
  (:durative-action wait
    :parameters (?x - block)
    :condition (over all (clear ?x))
    :effect (at end (clear ?x))))
`
	_, err := ReadDomain("durtest.pddl", []byte(bad))
	if err == nil {
		t.Fatalf("expected an error for a durative action missing :duration")
	}
	if _, ok := err.(*planner.DomainInconsistencyError); !ok {
		t.Errorf("expected *planner.DomainInconsistencyError, got %T: %v", err, err)
	}
}

func TestReadDomain_ForallEffect(t *testing.T) {
	src := `
(define (domain clearall)
  (:types block)
  (:predicates (clear ?x - block) (on ?x - block ?y - block))
  (:action clear-table
    :parameters (?y - block)
    :precondition (clear ?y)
    :effect (forall (?x - block) (when (on ?x ?y) (not (on ?x ?y))))))
`
	d, err := ReadDomain("clearall.pddl", []byte(src))
	if err != nil {
		t.Fatalf("ReadDomain failed: %v", err)
	}
	if len(d.Actions()) != 1 {
		t.Fatalf("expected 1 action, got %d", len(d.Actions()))
	}
	a := d.Actions()[0]
	if len(a.Effects) != 1 {
		t.Fatalf("expected 1 effect, got %d", len(a.Effects))
	}
	eff := a.Effects[0]
	if len(eff.Parameters) != 1 {
		t.Errorf("expected the forall effect to carry 1 quantified parameter, got %d", len(eff.Parameters))
	}
	if !eff.HasCondition() {
		t.Errorf("expected the when-guarded effect to carry a non-trivial condition")
	}
}
