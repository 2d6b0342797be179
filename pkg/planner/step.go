package planner

// StepID identifies a step instance within a plan. Step id 0 denotes the
// synthetic Init action; GoalID denotes the synthetic Goal action; every
// other step gets a fresh positive id from Context.FreshStepID.
type StepID int

const (
	InitID StepID = 0
	GoalID StepID = -1
)

// StepTime distinguishes the start and end time-points of a step, used by
// both ordering-store variants and by temporal literal annotations.
type StepTime int

const (
	StepStart StepTime = iota
	StepEnd
)

// Effect describes one consequence of an action: a literal that becomes
// true (or false, if Literal is a negation) when the action's timing point
// is reached, gated by a condition and carrying a link-condition that must
// additionally hold along any causal link whose producer is this effect.
// Effect parameters that are universally quantified (Forall) range over
// the effect's own Parameters, distinct from the action's parameters.
// separate renames them to fresh variables when it wraps a threatening
// effect's negated condition in a new Forall. installLink does not rename
// them when it posts an effect's condition as an open condition; there,
// as with action parameters, instances are told apart only by the step id
// each term is paired with.
type Effect struct {
	Parameters     []Term // universally quantified parameters of this effect
	Condition      Formula
	LinkCondition  Formula
	Literal        Formula // FormulaAtom or FormulaNegation
	When           Timing  // TimingAtStart or TimingAtEnd
}

// HasCondition reports whether this effect is conditional (has a
// non-trivial Condition), used by threat separation and link installation.
func (e Effect) HasCondition() bool {
	return e.Condition.kind != FormulaTrue
}

// HasLinkCondition reports whether this effect carries an extra constraint
// that must hold along any causal link it participates in.
func (e Effect) HasLinkCondition() bool {
	return e.LinkCondition.kind != FormulaTrue
}

// DurationBound is a constant-valued min/max duration expression for a
// durative action. The core requires constant durations (spec.md §7);
// non-constant durations are rejected as a DomainInconsistencyError at
// action-schema registration time.
type DurationBound struct {
	Min, Max float64
}

// Action is one domain action schema: name, parameters, a condition (a
// formula over at-start/over-all/at-end parts), a list of effects, and,
// for durative actions, a constant min/max duration.
type Action struct {
	Name       string
	Parameters []Term
	Condition  Formula
	Effects    []Effect
	Durative   bool
	Duration   DurationBound
}

// Step is a step instance: a step id paired with the action it instances.
// Init and Goal are synthetic steps with no real Action; Context provides
// their Condition/Effects via dedicated accessors.
type Step struct {
	ID     StepID
	Action *Action
}

// Link is a causal link: producer step From supplies effect Condition (at
// the given time) to consumer step To (at the given time). It is the
// recorded reason an open condition was closed.
type Link struct {
	From          StepID
	FromTime      Timing
	To            StepID
	Condition     Formula
	ConditionTime Timing
}

// Equal reports structural (not pointer) equality, required for Unsafe/
// OpenCondition/Link matching in persistent chains (spec.md §9's note on
// explicit equality functions).
func (l Link) Equal(o Link) bool {
	return l.From == o.From && l.FromTime == o.FromTime && l.To == o.To && l.ConditionTime == o.ConditionTime && formulaEqual(l.Condition, o.Condition)
}

// Unsafe is a threat: step Step's effect Effect (whose literal is
// AddLiteral) can interfere with the causal Link if ordered between its
// endpoints.
type Unsafe struct {
	Link       Link
	Step       StepID
	Effect     Effect
	AddLiteral Formula
}

func (u Unsafe) Equal(o Unsafe) bool {
	return u.Link.Equal(o.Link) && u.Step == o.Step && formulaEqual(u.AddLiteral, o.AddLiteral)
}

// OpenCondition is an unresolved precondition: Step needs Formula to hold
// at time When.
type OpenCondition struct {
	Step    StepID
	Formula Formula
	When    Timing
}

func (o OpenCondition) Equal(p OpenCondition) bool {
	return o.Step == p.Step && o.When == p.When && formulaEqual(o.Formula, p.Formula)
}

// Ordering is a single precedence constraint between two step time-points.
type Ordering struct {
	Before     StepID
	BeforeTime StepTime
	After      StepID
	AfterTime  StepTime
}

func (o Ordering) Equal(p Ordering) bool {
	return o == p
}

// formulaEqual is structural equality over formulas, used for Link/Unsafe/
// OpenCondition matching (threat completeness, §8 property 5) rather than
// pointer identity.
func formulaEqual(a, b Formula) bool {
	if a.kind != b.kind || a.Kind != b.Kind {
		return false
	}
	switch a.kind {
	case FormulaTrue, FormulaFalse:
		return true
	case FormulaAtom, FormulaNegation:
		if a.Predicate != b.Predicate || len(a.Args) != len(b.Args) {
			return false
		}
		for i := range a.Args {
			if a.Args[i] != b.Args[i] {
				return false
			}
		}
		return true
	case FormulaConjunction, FormulaDisjunction:
		if len(a.Parts) != len(b.Parts) {
			return false
		}
		for i := range a.Parts {
			if !formulaEqual(a.Parts[i], b.Parts[i]) {
				return false
			}
		}
		return true
	case FormulaExists, FormulaForall:
		if len(a.QuantifiedVars) != len(b.QuantifiedVars) {
			return false
		}
		for i := range a.QuantifiedVars {
			if a.QuantifiedVars[i] != b.QuantifiedVars[i] {
				return false
			}
		}
		if (a.Body == nil) != (b.Body == nil) {
			return false
		}
		if a.Body == nil {
			return true
		}
		return formulaEqual(*a.Body, *b.Body)
	case FormulaEquality, FormulaInequality:
		return a.Left == b.Left && a.LeftStep == b.LeftStep && a.Right == b.Right && a.RightStep == b.RightStep
	default:
		return false
	}
}
