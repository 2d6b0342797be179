package planner

// FlawKind tags which of the five flaw families (spec.md §4.5) a Flaw
// value carries.
type FlawKind int

const (
	FlawOpenCondition FlawKind = iota
	FlawUnsafe
	FlawDisjunction
	FlawInequality
	FlawUnexpanded // non-ground step pending instantiation (§4.5.4)
)

// Flaw is one outstanding defect of a partial plan that the refinement
// engine must resolve before the plan can be returned as a solution.
// Exactly one of the payload fields is meaningful, selected by Kind.
type Flaw struct {
	Kind FlawKind

	// OpenCond is populated for FlawOpenCondition, FlawDisjunction, and
	// FlawInequality -- all three originate from one OpenConditions chain
	// entry, distinguished only by the shape of OpenCond.Formula (atom/
	// negation, disjunction, or inequality respectively).
	OpenCond OpenCondition
	Threat   Unsafe
	Unexp    StepID

	// Refinements is the number of times this flaw (or, after a parent
	// plan's flaw list is copied forward, its lineage) has been selected
	// and produced children without being fully resolved -- the count a
	// criterion's refinement cap compares against (spec.md §4.6).
	Refinements int
}
