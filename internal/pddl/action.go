package pddl

import "github.com/gitrdm/vhplan/pkg/planner"

// ActionBuilder assembles one planner.Action schema fluently: declare
// parameters, set the precondition, append effects, optionally mark it
// durative, then Build() to register it with the owning Domain.
//
// Grounded on the teacher's model.go builder idiom (NewVariable / AddConstraint
// incrementally populating a Model), adapted from CSP variables/constraints
// to action parameters/effects.
type ActionBuilder struct {
	domain *Domain
	name   string

	params    []planner.Term
	condition planner.Formula
	effects   []planner.Effect
	durative  bool
	duration  planner.DurationBound
}

// Param declares a new typed parameter and returns its Term for use in
// Precondition/Effect formulas.
func (b *ActionBuilder) Param(name string, typ planner.TypeID) planner.Term {
	t := b.domain.freshVar(name, typ)
	b.params = append(b.params, t)
	return t
}

// Precondition sets the action's condition (a conjunction of at-start/
// over-all/at-end literals for durative actions, at-start only otherwise).
func (b *ActionBuilder) Precondition(f planner.Formula) *ActionBuilder {
	b.condition = f
	return b
}

// Effect appends one unconditional, unquantified effect literal timed at
// when.
func (b *ActionBuilder) Effect(literal planner.Formula, when planner.Timing) *ActionBuilder {
	b.effects = append(b.effects, planner.Effect{Literal: literal, When: when, Condition: planner.TRUE, LinkCondition: planner.TRUE})
	return b
}

// ConditionalEffect appends an effect that only fires when cond holds.
func (b *ActionBuilder) ConditionalEffect(cond, literal planner.Formula, when planner.Timing) *ActionBuilder {
	b.effects = append(b.effects, planner.Effect{Literal: literal, Condition: cond, LinkCondition: planner.TRUE, When: when})
	return b
}

// QuantifiedEffect appends a universally-quantified effect over freshly
// declared effect parameters (distinct from the action's own parameters,
// per spec.md §4.5.3); build forms the literal/condition with the
// supplied vars.
func (b *ActionBuilder) QuantifiedEffect(vars []planner.Term, cond, literal planner.Formula, when planner.Timing) *ActionBuilder {
	b.effects = append(b.effects, planner.Effect{
		Parameters: vars, Condition: cond, LinkCondition: planner.TRUE, Literal: literal, When: when,
	})
	return b
}

// Durative marks the action as durative with a constant min/max duration.
func (b *ActionBuilder) Durative(min, max float64) *ActionBuilder {
	b.durative = true
	b.duration = planner.DurationBound{Min: min, Max: max}
	return b
}

// Build finalizes the action schema, registers it with the owning domain,
// and returns it.
func (b *ActionBuilder) Build() *planner.Action {
	a := &planner.Action{
		Name:       b.name,
		Parameters: b.params,
		Condition:  b.condition,
		Effects:    b.effects,
		Durative:   b.durative,
		Duration:   b.duration,
	}
	b.domain.AddAction(a)
	return a
}
