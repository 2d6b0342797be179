package planner_test

import (
	"testing"

	"github.com/gitrdm/vhplan/internal/pddl"
	"github.com/gitrdm/vhplan/pkg/planner"
)

// blocksworld returns a freshly parsed blocksworld domain and a two-block
// swap-goal problem (scenario S1: stack a on b from a cleared table),
// matching the S1 seeded scenario.
func blocksworld(t *testing.T) (*pddl.Domain, *pddl.Problem) {
	t.Helper()
	domSrc := `
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
    :effect (and (not (on-table ?x)) (not (clear ?x)) (not (handempty)) (holding ?x)))
  (:action put-down
    :parameters (?x - block)
    :precondition (holding ?x)
    :effect (and (not (holding ?x)) (clear ?x) (handempty) (on-table ?x)))
  (:action stack
    :parameters (?x - block ?y - block)
    :precondition (and (holding ?x) (clear ?y))
    :effect (and (not (holding ?x)) (not (clear ?y)) (clear ?x) (handempty) (on ?x ?y)))
  (:action unstack
    :parameters (?x - block ?y - block)
    :precondition (and (on ?x ?y) (clear ?x) (handempty))
    :effect (and (holding ?x) (clear ?y) (not (clear ?x)) (not (handempty)) (not (on ?x ?y)))))
`
	probSrc := `
(define (problem swap-two)
  (:domain blocksworld)
  (:objects a b - block)
  (:init (on-table a) (on-table b) (clear a) (clear b) (handempty))
  (:goal (on a b)))
`
	d, err := pddl.ReadDomain("blocksworld.pddl", []byte(domSrc))
	if err != nil {
		t.Fatalf("ReadDomain failed: %v", err)
	}
	p, err := pddl.ReadProblem("swap-two.pddl", []byte(probSrc), d)
	if err != nil {
		t.Fatalf("ReadProblem failed: %v", err)
	}
	return d, p
}

func defaultSearchConfig(t *testing.T) planner.SearchConfig {
	t.Helper()
	order, err := planner.ParseFlawOrder("default", "{n,s,o}LIFO")
	if err != nil {
		t.Fatalf("ParseFlawOrder failed: %v", err)
	}
	return planner.SearchConfig{
		Algorithm: planner.AlgorithmAStar,
		Orders:    []*planner.FlawOrder{order},
		RankSpecs: []planner.RankSpec{{Components: []planner.RankComponentKind{planner.RankStepsPlusFlaws}, Weight: 1}},
	}
}

// TestScenario_S1_TwoBlockSwap covers the seeded scenario of stacking a on
// b from a fully cleared two-block table: the planner must introduce
// exactly a pick-up/stack pair and reach a solution with no open flaws.
func TestScenario_S1_TwoBlockSwap(t *testing.T) {
	d, p := blocksworld(t)
	ctx, err := planner.NewContext(d, p)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	plan, err := planner.Search(ctx, defaultSearchConfig(t))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if plan == nil {
		t.Fatalf("expected a solution plan, got nil")
	}
	if !plan.IsComplete() {
		t.Errorf("returned plan is not complete: %d unsafes, %d open conditions",
			plan.Unsafes.Length(), plan.OpenConditions.Length())
	}
	if got := plan.Steps.Length(); got != 4 {
		t.Errorf("expected 4 steps (Init, Goal, pick-up, stack), got %d", got)
	}
}

// TestScenario_S3_DisjunctiveGoal exercises the disjunction flaw: a goal
// of "on a b OR on b a" from a cleared table must resolve by picking
// exactly one disjunct and reaching it, never leaving a disjunction flaw
// unresolved in the returned plan.
func TestScenario_S3_DisjunctiveGoal(t *testing.T) {
	d, p := blocksworld(t)

	onID, _ := d.PredicateID("on")
	aTerm, _ := p.ObjectID("a")
	bTerm, _ := p.ObjectID("b")
	goal := planner.Or(
		planner.NewAtom(onID, planner.TimingAtStart, aTerm, bTerm),
		planner.NewAtom(onID, planner.TimingAtStart, bTerm, aTerm),
	)
	p.SetGoal(goal)

	ctx, err := planner.NewContext(d, p)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	plan, err := planner.Search(ctx, defaultSearchConfig(t))
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if plan == nil || !plan.IsComplete() {
		t.Fatalf("expected a complete solution plan for the disjunctive goal")
	}
	for _, f := range plan.Flaws() {
		if f.Kind == planner.FlawDisjunction {
			t.Errorf("returned plan still carries an unresolved disjunction flaw")
		}
	}
}

// TestScenario_S6_SearchLimitReached covers spec.md §8's S6 scenario: a
// solvable goal that needs more than one generated plan (pick-up then
// stack, from the S1 problem) run with a per-order quota of 1 must report
// the search limit distinctly from genuine unsatisfiability -- not just
// any SearchExhaustionError, but one carrying ReasonSearchLimitReached.
func TestScenario_S6_SearchLimitReached(t *testing.T) {
	d, p := blocksworld(t)

	ctx, err := planner.NewContext(d, p)
	if err != nil {
		t.Fatalf("NewContext failed: %v", err)
	}
	cfg := defaultSearchConfig(t)
	cfg.Quota = 1
	_, err = planner.Search(ctx, cfg)
	if err == nil {
		t.Fatalf("expected a search-exhaustion error under a quota of 1")
	}
	exhausted, ok := err.(*planner.SearchExhaustionError)
	if !ok {
		t.Fatalf("expected *planner.SearchExhaustionError, got %T: %v", err, err)
	}
	if exhausted.Reason != planner.ReasonSearchLimitReached {
		t.Errorf("Reason = %v, want ReasonSearchLimitReached", exhausted.Reason)
	}
}
