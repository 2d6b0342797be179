package planner

import (
	"fmt"
	"strings"
)

// Plan is a partial plan: steps, causal links, orderings, bindings,
// threats, and open conditions, per spec.md §3. Every collection field
// is an immutable chain (or, for Bindings/Orderings, an immutable value
// built the same way) shared with ancestor and sibling plans by
// reference counting; no refinement ever mutates an entity reachable
// from more than one plan (the persistent-update discipline of §3's
// Lifecycle note and §5's shared-resource policy).
type Plan struct {
	Steps          *Chain[Step]
	Links          *Chain[Link]
	Orderings      *OrderingStore
	Bindings       *Bindings
	Unsafes        *Chain[Unsafe]
	OpenConditions *Chain[OpenCondition]

	Serial int
	Rank   RankVector

	refinementCounts *Chain[refinementRecord]
}

type refinementRecord struct {
	Key   string
	Count int
}

// replaceChain swaps *slot for newVal, releasing the reference *slot
// used to hold. Every refinement that produces a new chain value for a
// Plan field goes through this so the old reference is never leaked nor
// double-released.
func replaceChain[T any](slot **Chain[T], newVal *Chain[T]) {
	old := *slot
	*slot = newVal
	old.Release()
}

// NewInitialPlan builds the search root: two synthetic steps (Init,
// Goal), the problem's goal conjuncts as open conditions on Goal, and an
// empty binding/ordering store (binary unless the domain has any
// durative action, per spec.md §4.3's variant split).
func NewInitialPlan(ctx *Context) (*Plan, error) {
	initStep := Step{ID: InitID}
	goalStep := Step{ID: GoalID}
	initNode := Cons(initStep, nil)
	steps := Cons(goalStep, initNode)
	initNode.Release()

	var store *OrderingStore
	if ctx.Durative() {
		store = NewTemporalOrderingStore(ctx.Threshold())
	} else {
		store = NewBinaryOrderingStore()
	}
	store, ok := store.RefineNewStep(InitID, 0, 0, 0)
	if !ok {
		return nil, NewDomainInconsistencyError("could not register Init time-point")
	}
	store, ok = store.RefineNewStep(GoalID, 0, 0, 0)
	if !ok {
		return nil, NewDomainInconsistencyError("could not register Goal time-point")
	}
	store, ok = store.RefineOrdering(InitID, StepEnd, GoalID, StepStart, 0)
	if !ok {
		return nil, NewDomainInconsistencyError("Init could not be ordered before Goal")
	}

	var ocChain *Chain[OpenCondition]
	goalParts := flattenConjunction(ctx.Problem.Goal())
	for i := len(goalParts) - 1; i >= 0; i-- {
		oc := OpenCondition{Step: GoalID, Formula: goalParts[i], When: TimingAtStart}
		n := Cons(oc, ocChain)
		ocChain.Release()
		ocChain = n
	}

	plan := &Plan{
		Steps:          steps,
		Orderings:      store.AddGoalAchiever(GoalID),
		Bindings:       EmptyBindings,
		OpenConditions: ocChain,
		Serial:         ctx.NextPlanSerial(),
	}
	return plan, nil
}

// flattenConjunction decomposes a (possibly nested) conjunction into its
// leaf conjuncts; TRUE contributes nothing.
func flattenConjunction(f Formula) []Formula {
	switch f.kind {
	case FormulaTrue:
		return nil
	case FormulaConjunction:
		var out []Formula
		for _, p := range f.Parts {
			out = append(out, flattenConjunction(p)...)
		}
		return out
	default:
		return []Formula{f}
	}
}

// timingToStepTime maps a literal's temporal annotation to the ordering
// store's start/end time-point: at-end literals anchor to a step's end,
// everything else (at-start, over-all) anchors to its start.
func timingToStepTime(t Timing) StepTime {
	if t == TimingAtEnd {
		return StepEnd
	}
	return StepStart
}

// negateFormula returns the De Morgan negation of f, pushing negation
// down to literals rather than wrapping a compound formula -- needed
// because Formula.Negate only handles the literal case (spec.md §9's
// tagged-variant note: every switch over FormulaKind here is exhaustive).
func negateFormula(f Formula) Formula {
	switch f.kind {
	case FormulaTrue:
		return FALSE
	case FormulaFalse:
		return TRUE
	case FormulaAtom, FormulaNegation:
		return f.Negate()
	case FormulaConjunction:
		parts := make([]Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = negateFormula(p)
		}
		return Or(parts...)
	case FormulaDisjunction:
		parts := make([]Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = negateFormula(p)
		}
		return And(parts...)
	case FormulaExists:
		body := negateFormula(*f.Body)
		return Forall(f.QuantifiedVars, body)
	case FormulaForall:
		body := negateFormula(*f.Body)
		return Exists(f.QuantifiedVars, body)
	case FormulaEquality:
		return Inequality(f.Left, f.LeftStep, f.Right, f.RightStep)
	case FormulaInequality:
		return Equality(f.Left, f.LeftStep, f.Right, f.RightStep)
	default:
		panic(NewInternalInvariantError("negateFormula: unknown formula kind"))
	}
}

// substituteTerm replaces t with subst[t.Index] if t is a variable present
// in subst, leaving objects and unmapped variables untouched.
func substituteTerm(t Term, subst map[int]Term) Term {
	if t.IsVariable() {
		if nt, ok := subst[t.Index]; ok {
			return nt
		}
	}
	return t
}

// substituteFormula applies subst (old variable index -> fresh term) to
// every term appearing in f, recursing through every connective and
// quantifier. Used to freshen an effect's universally quantified
// parameters before wrapping their negated condition in a new Forall
// (spec.md §4.5.2's separation case), so the new quantifier's bound
// variables are distinct from the lifted parameter indices the effect
// itself reuses across every instance of its action schema.
func substituteFormula(f Formula, subst map[int]Term) Formula {
	switch f.kind {
	case FormulaTrue, FormulaFalse:
		return f
	case FormulaAtom, FormulaNegation:
		args := make([]Term, len(f.Args))
		for i, a := range f.Args {
			args[i] = substituteTerm(a, subst)
		}
		return Formula{kind: f.kind, Predicate: f.Predicate, Kind: f.Kind, Args: args}
	case FormulaConjunction:
		parts := make([]Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = substituteFormula(p, subst)
		}
		return And(parts...)
	case FormulaDisjunction:
		parts := make([]Formula, len(f.Parts))
		for i, p := range f.Parts {
			parts[i] = substituteFormula(p, subst)
		}
		return Or(parts...)
	case FormulaExists:
		body := substituteFormula(*f.Body, subst)
		return Exists(f.QuantifiedVars, body)
	case FormulaForall:
		body := substituteFormula(*f.Body, subst)
		return Forall(f.QuantifiedVars, body)
	case FormulaEquality:
		return Equality(substituteTerm(f.Left, subst), f.LeftStep, substituteTerm(f.Right, subst), f.RightStep)
	case FormulaInequality:
		return Inequality(substituteTerm(f.Left, subst), f.LeftStep, substituteTerm(f.Right, subst), f.RightStep)
	default:
		panic(NewInternalInvariantError("substituteFormula: unknown formula kind"))
	}
}

// orElim ORs a and b together, eliding a contradiction operand instead of
// keeping it as a dead disjunct (mirroring formulas.cc's operator||, which
// Plan::separate relies on to keep its accumulated goal simplified). An
// unadorned Or(a, b) would instead build a literal FALSE disjunct whenever
// a or b happens to be FALSE, which refineDisjunction would still branch
// on -- a redundant child that can never resolve.
func orElim(a, b Formula) Formula {
	switch {
	case a.kind == FormulaTrue || b.kind == FormulaTrue:
		return TRUE
	case a.kind == FormulaFalse:
		return b
	case b.kind == FormulaFalse:
		return a
	default:
		return Or(a, b)
	}
}

// formulaKeyString renders a stable, structural key for a formula, used
// only for refinement-count bookkeeping (not for plan output).
func formulaKeyString(f Formula) string {
	var b strings.Builder
	writeFormulaKey(&b, f)
	return b.String()
}

func writeFormulaKey(b *strings.Builder, f Formula) {
	fmt.Fprintf(b, "%d|%d", f.kind, f.Kind)
	switch f.kind {
	case FormulaAtom, FormulaNegation:
		fmt.Fprintf(b, "|%d", f.Predicate)
		for _, a := range f.Args {
			fmt.Fprintf(b, ":%d/%d", a.Index, a.Type)
		}
	case FormulaConjunction, FormulaDisjunction:
		for _, p := range f.Parts {
			b.WriteByte('(')
			writeFormulaKey(b, p)
			b.WriteByte(')')
		}
	case FormulaExists, FormulaForall:
		for _, v := range f.QuantifiedVars {
			fmt.Fprintf(b, ":%d", v.Index)
		}
		if f.Body != nil {
			b.WriteByte('(')
			writeFormulaKey(b, *f.Body)
			b.WriteByte(')')
		}
	case FormulaEquality, FormulaInequality:
		fmt.Fprintf(b, "|%d/%d=%d/%d", f.Left.Index, f.LeftStep, f.Right.Index, f.RightStep)
	}
}

// flawKey returns a stable string identity for a flaw, used to look up
// and bump its refinement count across a plan's lineage.
func flawKey(f Flaw) string {
	switch f.Kind {
	case FlawUnsafe:
		return fmt.Sprintf("t|%d|%d|%s", f.Threat.Link.From, f.Threat.Step, formulaKeyString(f.Threat.AddLiteral))
	case FlawUnexpanded:
		return fmt.Sprintf("n|%d", f.Unexp)
	default:
		return fmt.Sprintf("o|%d|%d|%s", f.OpenCond.Step, f.OpenCond.When, formulaKeyString(f.OpenCond.Formula))
	}
}

func (p *Plan) refinementCount(key string) int {
	n := 0
	p.refinementCounts.Each(func(r refinementRecord) bool {
		if r.Key == key {
			n = r.Count
			return false
		}
		return true
	})
	return n
}

func (p *Plan) bumpRefinement(key string) *Chain[refinementRecord] {
	cur := p.refinementCount(key)
	removed := Remove(p.refinementCounts, refinementRecord{Key: key}, func(a, b refinementRecord) bool { return a.Key == b.Key })
	n := Cons(refinementRecord{Key: key, Count: cur + 1}, removed)
	removed.Release()
	return n
}

// derive returns a fresh Plan sharing every field with p (each chain
// reference retained for the copy's independent ownership) and a new
// serial id, ready for the caller to overwrite whichever fields this
// refinement changes.
func (p *Plan) derive(ctx *Context) *Plan {
	cp := *p
	cp.Serial = ctx.NextPlanSerial()
	cp.Rank = nil
	cp.Steps.retain()
	cp.Links.retain()
	cp.Unsafes.retain()
	cp.OpenConditions.retain()
	cp.refinementCounts.retain()
	return &cp
}

// Flaws enumerates every outstanding defect of p: each Unsafes entry is a
// threat flaw; each OpenConditions entry is an open-condition,
// disjunction, or inequality flaw depending on its formula's shape (the
// dispatch spec.md §4.5.1 describes "by kind of φ").
func (p *Plan) Flaws() []Flaw {
	var flaws []Flaw
	p.Unsafes.Each(func(u Unsafe) bool {
		f := Flaw{Kind: FlawUnsafe, Threat: u}
		f.Refinements = p.refinementCount(flawKey(f))
		flaws = append(flaws, f)
		return true
	})
	p.OpenConditions.Each(func(oc OpenCondition) bool {
		var kind FlawKind
		switch oc.Formula.kind {
		case FormulaDisjunction:
			kind = FlawDisjunction
		case FormulaInequality:
			kind = FlawInequality
		default:
			kind = FlawOpenCondition
		}
		f := Flaw{Kind: kind, OpenCond: oc}
		f.Refinements = p.refinementCount(flawKey(f))
		flaws = append(flaws, f)
		return true
	})
	return flaws
}

// AllStepsBound reports whether every real step's parameters are bound
// to a single concrete object.
func (p *Plan) AllStepsBound() bool {
	bound := true
	p.Steps.Each(func(s Step) bool {
		if s.Action == nil {
			return true
		}
		for _, param := range s.Action.Parameters {
			if p.Bindings.Binding(param, s.ID).IsVariable() {
				bound = false
				return false
			}
		}
		return true
	})
	return bound
}

// IsComplete reports whether p has no outstanding flaws and every step's
// parameters are fully bound -- the search driver's success condition.
func (p *Plan) IsComplete() bool {
	return p.Unsafes.Length() == 0 && p.OpenConditions.Length() == 0 && p.AllStepsBound()
}

// RefineFlaw dispatches to the refinement appropriate for f's kind,
// bumping f's refinement count onto every resulting child (spec.md
// §4.5).
func (p *Plan) RefineFlaw(ctx *Context, f Flaw) ([]*Plan, error) {
	key := flawKey(f)
	bumped := p.bumpRefinement(key)
	defer bumped.Release()

	base := *p
	base.refinementCounts = bumped

	switch f.Kind {
	case FlawUnsafe:
		return (&base).refineUnsafe(ctx, f.Threat)
	case FlawDisjunction:
		return (&base).refineDisjunction(ctx, f.OpenCond)
	case FlawInequality:
		return (&base).refineInequality(ctx, f.OpenCond)
	case FlawOpenCondition:
		return (&base).refineOpenCondition(ctx, f.OpenCond)
	case FlawUnexpanded:
		return (&base).InstantiateNext(ctx)
	default:
		panic(NewInternalInvariantError("RefineFlaw: unknown flaw kind"))
	}
}

// InstantiateNext implements spec.md §4.5.4: when a plan has no flaws
// but parameters remain unbound, enumerate type-compatible objects for
// the first unbound parameter (in step/action-parameter order) and
// produce one child per consistent binding.
func (p *Plan) InstantiateNext(ctx *Context) ([]*Plan, error) {
	var targetStep Step
	var targetParam Term
	found := false
	p.Steps.Each(func(s Step) bool {
		if s.Action == nil {
			return true
		}
		for _, param := range s.Action.Parameters {
			if p.Bindings.Binding(param, s.ID).IsVariable() {
				targetStep, targetParam, found = s, param, true
				return false
			}
		}
		return true
	})
	if !found {
		return nil, nil
	}

	objs := ctx.Problem.ObjectsOfType(targetParam.Type, ctx.Domain.Types())
	var children []*Plan
	for _, o := range objs {
		lit := eqLit(targetParam, targetStep.ID, Term{Index: o, Type: targetParam.Type}, InitID)
		nb, ok := p.Bindings.Add([]BindingLiteral{lit}, false)
		if !ok {
			continue
		}
		child := p.derive(ctx)
		child.Bindings = nb
		children = append(children, child)
	}
	return children, nil
}

// refineOpenCondition implements spec.md §4.5.1's literal case: add-step
// over the planning graph's achiever set, reuse-step over every
// possibly-earlier existing step (including Init's atoms), and, for
// negations, closed-world closure against unifying init atoms.
func (p *Plan) refineOpenCondition(ctx *Context, oc OpenCondition) ([]*Plan, error) {
	formula := oc.Formula
	var children []*Plan
	consumerTime := timingToStepTime(oc.When)

	p.Steps.Each(func(s Step) bool {
		if s.ID == oc.Step || s.ID == GoalID {
			return true
		}
		if s.ID != InitID && !p.Orderings.PossiblyBefore(s.ID, StepEnd, oc.Step, consumerTime) {
			return true
		}
		if s.ID == InitID {
			if formula.kind != FormulaAtom {
				return true
			}
			for _, atom := range ctx.Problem.InitAtoms() {
				mgu, ok := p.Bindings.Unify(atom, InitID, formula, oc.Step)
				if !ok {
					continue
				}
				if child, err := p.installLink(ctx, false, InitID, nil, nil, TimingAtStart, mgu, oc); err == nil && child != nil {
					children = append(children, child)
				}
			}
			return true
		}
		if s.Action == nil {
			return true
		}
		for ei := range s.Action.Effects {
			eff := &s.Action.Effects[ei]
			if eff.Literal.kind != formula.kind || eff.Literal.Predicate != formula.Predicate {
				continue
			}
			mgu, ok := p.Bindings.Unify(eff.Literal, s.ID, formula, oc.Step)
			if !ok {
				continue
			}
			if child, err := p.installLink(ctx, false, s.ID, s.Action, eff, eff.When, mgu, oc); err == nil && child != nil {
				children = append(children, child)
			}
		}
		return true
	})

	achievers := ctx.Graph.LiteralAchievers(formula, oc.Step, p.Bindings)
	seen := map[*Action]map[*Effect]bool{}
	for _, ach := range achievers {
		if ach.Action == nil || ach.Effect == nil {
			continue
		}
		if seen[ach.Action] == nil {
			seen[ach.Action] = map[*Effect]bool{}
		}
		if seen[ach.Action][ach.Effect] {
			continue
		}
		seen[ach.Action][ach.Effect] = true

		newStep := ctx.FreshStepID()
		mgu, ok := p.Bindings.Unify(ach.Effect.Literal, newStep, formula, oc.Step)
		if !ok {
			continue
		}
		if child, err := p.installLink(ctx, true, newStep, ach.Action, ach.Effect, ach.Effect.When, mgu, oc); err == nil && child != nil {
			children = append(children, child)
		}
	}

	if formula.kind == FormulaNegation {
		if child := p.closedWorldClosure(ctx, oc); child != nil {
			children = append(children, child)
		}
	}

	return children, nil
}

// installLink implements spec.md §4.5.3's five-step algorithm for a
// candidate producer (producerID, action, effect) achieving the open
// condition oc under mgu. newStep indicates the producer is a
// freshly-added step rather than a reused one.
func (p *Plan) installLink(ctx *Context, newStep bool, producerID StepID, action *Action, effect *Effect, producerTiming Timing, mgu []BindingLiteral, oc OpenCondition) (*Plan, error) {
	newBindings, ok := p.Bindings.Add(mgu, false)
	if !ok {
		return nil, nil
	}

	child := p.derive(ctx)
	child.Bindings = newBindings

	if newStep {
		step := Step{ID: producerID, Action: action}
		n := Cons(step, child.Steps)
		replaceChain(&child.Steps, n)

		varsForParams := make([]int, len(action.Parameters))
		for i, t := range action.Parameters {
			varsForParams[i] = t.Index
		}
		domain := NewActionDomain(ctx.Graph.ActionDomainFor(action.Name))
		nb, ok2 := child.Bindings.AddStepDomain(producerID, varsForParams, domain)
		if !ok2 {
			return nil, nil
		}
		child.Bindings = nb
	}

	removed := Remove(child.OpenConditions, oc, OpenCondition.Equal)
	replaceChain(&child.OpenConditions, removed)

	if effect != nil {
		if effect.HasCondition() {
			newOC := OpenCondition{Step: producerID, Formula: effect.Condition, When: effect.Condition.Kind}
			n := Cons(newOC, child.OpenConditions)
			replaceChain(&child.OpenConditions, n)
		}
		if effect.HasLinkCondition() {
			newOC := OpenCondition{Step: producerID, Formula: effect.LinkCondition, When: effect.LinkCondition.Kind}
			n := Cons(newOC, child.OpenConditions)
			replaceChain(&child.OpenConditions, n)
		}
	}

	if newStep && action != nil {
		for _, c := range flattenConjunction(action.Condition) {
			newOC := OpenCondition{Step: producerID, Formula: c, When: c.Kind}
			n := Cons(newOC, child.OpenConditions)
			replaceChain(&child.OpenConditions, n)
		}
	}

	consumerTime := timingToStepTime(oc.When)
	producerTime := timingToStepTime(producerTiming)
	newOrderings, ok3 := child.Orderings.RefineOrdering(producerID, producerTime, oc.Step, consumerTime, ctx.Threshold())
	if !ok3 {
		return nil, nil
	}
	if newStep && action != nil {
		minDur, maxDur := 0.0, 0.0
		if action.Durative {
			minDur, maxDur = action.Duration.Min, action.Duration.Max
		}
		no, ok4 := newOrderings.RefineNewStep(producerID, minDur, maxDur, 0)
		if !ok4 {
			return nil, nil
		}
		newOrderings = no
	}
	if oc.Step == GoalID {
		newOrderings = newOrderings.AddGoalAchiever(producerID)
	}
	child.Orderings = newOrderings

	link := Link{From: producerID, FromTime: producerTiming, To: oc.Step, Condition: oc.Formula, ConditionTime: oc.When}

	child.Steps.Each(func(s Step) bool {
		if s.ID == link.From || s.ID == link.To || s.Action == nil {
			return true
		}
		for ei := range s.Action.Effects {
			eff := &s.Action.Effects[ei]
			if _, affects := child.Bindings.Affects(eff.Literal, s.ID, link.Condition, link.To); !affects {
				continue
			}
			if !child.Orderings.PossiblyBefore(link.From, timingToStepTime(link.FromTime), s.ID, timingToStepTime(eff.When)) {
				continue
			}
			if !child.Orderings.PossiblyBefore(s.ID, timingToStepTime(eff.When), link.To, timingToStepTime(link.ConditionTime)) {
				continue
			}
			u := Unsafe{Link: link, Step: s.ID, Effect: *eff, AddLiteral: eff.Literal}
			if !Contains(child.Unsafes, u, Unsafe.Equal) {
				n := Cons(u, child.Unsafes)
				replaceChain(&child.Unsafes, n)
			}
		}
		return true
	})

	if newStep && action != nil {
		child.Links.Each(func(l Link) bool {
			for ei := range action.Effects {
				eff := &action.Effects[ei]
				if _, affects := child.Bindings.Affects(eff.Literal, producerID, l.Condition, l.To); !affects {
					continue
				}
				if !child.Orderings.PossiblyBefore(l.From, timingToStepTime(l.FromTime), producerID, timingToStepTime(eff.When)) {
					continue
				}
				if !child.Orderings.PossiblyBefore(producerID, timingToStepTime(eff.When), l.To, timingToStepTime(l.ConditionTime)) {
					continue
				}
				u := Unsafe{Link: l, Step: producerID, Effect: *eff, AddLiteral: eff.Literal}
				if !Contains(child.Unsafes, u, Unsafe.Equal) {
					n := Cons(u, child.Unsafes)
					replaceChain(&child.Unsafes, n)
				}
			}
			return true
		})
	}

	n := Cons(link, child.Links)
	replaceChain(&child.Links, n)

	return child, nil
}

// closedWorldClosure implements the negation branch of spec.md §4.5.1(c):
// for a negative open condition ¬a, every init atom that could still
// unify with a needs a separating disjunction of positional inequalities
// posted as a new goal; the negation itself is then closed via an
// implicit link from Init, subject to the usual threat scan (a later
// step whose effect asserts a would threaten this link).
func (p *Plan) closedWorldClosure(ctx *Context, oc OpenCondition) *Plan {
	formula := oc.Formula
	positive := formula
	positive.kind = FormulaAtom

	child := p.derive(ctx)

	removed := Remove(child.OpenConditions, oc, OpenCondition.Equal)
	replaceChain(&child.OpenConditions, removed)

	for _, atom := range ctx.Problem.InitAtoms() {
		if atom.kind != FormulaAtom || atom.Predicate != positive.Predicate || len(atom.Args) != len(positive.Args) {
			continue
		}
		if _, ok := p.Bindings.Unify(positive, oc.Step, atom, InitID); !ok {
			continue
		}
		parts := make([]Formula, len(positive.Args))
		for i := range positive.Args {
			parts[i] = Inequality(positive.Args[i], oc.Step, atom.Args[i], InitID)
		}
		sep := OpenCondition{Step: oc.Step, Formula: Or(parts...), When: oc.When}
		n := Cons(sep, child.OpenConditions)
		replaceChain(&child.OpenConditions, n)
	}

	consumerTime := timingToStepTime(oc.When)
	newOrderings, ok := child.Orderings.RefineOrdering(InitID, StepStart, oc.Step, consumerTime, ctx.Threshold())
	if !ok {
		return nil
	}
	if oc.Step == GoalID {
		newOrderings = newOrderings.AddGoalAchiever(InitID)
	}
	child.Orderings = newOrderings

	link := Link{From: InitID, FromTime: TimingAtStart, To: oc.Step, Condition: formula, ConditionTime: oc.When}

	child.Steps.Each(func(s Step) bool {
		if s.ID == InitID || s.ID == oc.Step || s.Action == nil {
			return true
		}
		for ei := range s.Action.Effects {
			eff := &s.Action.Effects[ei]
			if _, affects := child.Bindings.Affects(eff.Literal, s.ID, link.Condition, link.To); !affects {
				continue
			}
			if !child.Orderings.PossiblyBefore(link.From, StepStart, s.ID, timingToStepTime(eff.When)) {
				continue
			}
			if !child.Orderings.PossiblyBefore(s.ID, timingToStepTime(eff.When), link.To, consumerTime) {
				continue
			}
			u := Unsafe{Link: link, Step: s.ID, Effect: *eff, AddLiteral: eff.Literal}
			if !Contains(child.Unsafes, u, Unsafe.Equal) {
				n := Cons(u, child.Unsafes)
				replaceChain(&child.Unsafes, n)
			}
		}
		return true
	})

	n := Cons(link, child.Links)
	replaceChain(&child.Links, n)
	return child
}

// refineDisjunction implements spec.md §4.5.1's disjunction case: one
// child per disjunct, replacing the disjunction open condition with the
// disjunct as a new open condition.
func (p *Plan) refineDisjunction(ctx *Context, oc OpenCondition) ([]*Plan, error) {
	var children []*Plan
	for _, d := range oc.Formula.Parts {
		child := p.derive(ctx)
		removed := Remove(child.OpenConditions, oc, OpenCondition.Equal)
		replaceChain(&child.OpenConditions, removed)
		newOC := OpenCondition{Step: oc.Step, Formula: d, When: oc.When}
		n := Cons(newOC, child.OpenConditions)
		replaceChain(&child.OpenConditions, n)
		children = append(children, child)
	}
	return children, nil
}

// refineInequality implements spec.md §4.5.1's inequality case: branch
// on the smaller-domain side's variable, one child per candidate object,
// posting both the equality (variable = object) and the residual
// inequality (other side != object).
func (p *Plan) refineInequality(ctx *Context, oc OpenCondition) ([]*Plan, error) {
	formula := oc.Formula
	var ld, rd map[int]bool
	var leftOk, rightOk bool
	if formula.Left.IsVariable() {
		ld, leftOk = p.Bindings.VariableDomain(formula.Left.Index, formula.LeftStep)
	}
	if formula.Right.IsVariable() {
		rd, rightOk = p.Bindings.VariableDomain(formula.Right.Index, formula.RightStep)
	}

	var domain map[int]bool
	var varTerm, otherTerm Term
	var varStep, otherStep StepID
	switch {
	case leftOk && (!rightOk || len(ld) <= len(rd)):
		domain, varTerm, varStep, otherTerm, otherStep = ld, formula.Left, formula.LeftStep, formula.Right, formula.RightStep
	case rightOk:
		domain, varTerm, varStep, otherTerm, otherStep = rd, formula.Right, formula.RightStep, formula.Left, formula.LeftStep
	default:
		nb, ok := p.Bindings.Add([]BindingLiteral{neqLit(formula.Left, formula.LeftStep, formula.Right, formula.RightStep)}, false)
		if !ok {
			return nil, nil
		}
		child := p.derive(ctx)
		child.Bindings = nb
		removed := Remove(child.OpenConditions, oc, OpenCondition.Equal)
		replaceChain(&child.OpenConditions, removed)
		return []*Plan{child}, nil
	}

	var children []*Plan
	for val := range domain {
		valTerm := Term{Index: val, Type: varTerm.Type}
		lits := []BindingLiteral{
			eqLit(varTerm, varStep, valTerm, InitID),
			neqLit(otherTerm, otherStep, valTerm, InitID),
		}
		nb, ok := p.Bindings.Add(lits, false)
		if !ok {
			continue
		}
		child := p.derive(ctx)
		child.Bindings = nb
		removed := Remove(child.OpenConditions, oc, OpenCondition.Equal)
		replaceChain(&child.OpenConditions, removed)
		children = append(children, child)
	}
	return children, nil
}

// refineUnsafe implements spec.md §4.5.2: promotion, demotion, and
// separation, each producing zero or one child.
func (p *Plan) refineUnsafe(ctx *Context, u Unsafe) ([]*Plan, error) {
	var children []*Plan

	if no, ok := p.Orderings.RefineOrdering(u.Link.To, timingToStepTime(u.Link.ConditionTime), u.Step, timingToStepTime(u.Effect.When), ctx.Threshold()); ok {
		child := p.derive(ctx)
		child.Orderings = no
		removed := Remove(child.Unsafes, u, Unsafe.Equal)
		replaceChain(&child.Unsafes, removed)
		children = append(children, child)
	}

	if no, ok := p.Orderings.RefineOrdering(u.Step, timingToStepTime(u.Effect.When), u.Link.From, timingToStepTime(u.Link.FromTime), ctx.Threshold()); ok {
		child := p.derive(ctx)
		child.Orderings = no
		removed := Remove(child.Unsafes, u, Unsafe.Equal)
		replaceChain(&child.Unsafes, removed)
		children = append(children, child)
	}

	if sepChild := p.separate(ctx, u); sepChild != nil {
		children = append(children, sepChild)
	}

	return children, nil
}

// separate implements spec.md §4.5.2's separation case: a single new goal
// that is the disjunction of every consistent non-quantified separating
// inequality from the threat's unifier, together with the negation of the
// threatening effect's condition (if any), installed as one open
// condition on one derived child -- never one child per inequality.
// Mirrors plans.cc:1046-1160 (Plan::separate), whose "goal ||= ..." loop
// builds exactly this disjunction before a single add_goal/push_back.
func (p *Plan) separate(ctx *Context, u Unsafe) *Plan {
	mgu, ok := p.Bindings.Unify(u.AddLiteral, u.Step, u.Link.Condition, u.Link.To)
	if !ok {
		return nil
	}

	quantified := map[int]bool{}
	for _, qv := range u.Effect.Parameters {
		quantified[qv.Index] = true
	}

	goal := FALSE
	for _, lit := range mgu {
		if lit.Kind != BindEq {
			continue
		}
		if lit.Left.IsVariable() && quantified[lit.Left.Index] {
			continue
		}
		if lit.Right.IsVariable() && quantified[lit.Right.Index] {
			continue
		}
		neq := Inequality(lit.Left, lit.LeftStep, lit.Right, lit.RightStep)
		if p.Bindings.ConsistentWith(neq, InitID) {
			goal = orElim(goal, neq)
		}
	}

	if u.Effect.HasCondition() {
		neg := negateFormula(u.Effect.Condition)
		if len(u.Effect.Parameters) > 0 {
			fresh := make([]Term, len(u.Effect.Parameters))
			subst := make(map[int]Term, len(u.Effect.Parameters))
			for i, qv := range u.Effect.Parameters {
				fv := ctx.FreshVariable(qv.Type)
				fresh[i] = fv
				subst[qv.Index] = fv
			}
			neg = Forall(fresh, substituteFormula(neg, subst))
		}
		goal = orElim(goal, neg)
	}

	if goal.kind == FormulaFalse {
		// No inequality separated the threat and the effect is
		// unconditional (or its negated condition collapsed to FALSE):
		// separation contributes nothing, matching add_goal's rejection
		// of a contradiction in the ground truth.
		return nil
	}

	child := p.derive(ctx)
	removed := Remove(child.Unsafes, u, Unsafe.Equal)
	replaceChain(&child.Unsafes, removed)
	newOC := OpenCondition{Step: u.Step, Formula: goal, When: u.Effect.When}
	n := Cons(newOC, child.OpenConditions)
	replaceChain(&child.OpenConditions, n)
	return child
}
