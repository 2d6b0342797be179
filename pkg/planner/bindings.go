package planner

// BindingKind distinguishes an equality from an inequality binding
// literal.
type BindingKind int

const (
	BindEq BindingKind = iota
	BindNeq
)

// BindingLiteral is one equality or inequality constraint over two
// step-indexed terms, the unit of work Bindings.Add consumes.
type BindingLiteral struct {
	Kind      BindingKind
	Left      Term
	LeftStep  StepID
	Right     Term
	RightStep StepID
}

func eqLit(left Term, leftStep StepID, right Term, rightStep StepID) BindingLiteral {
	return BindingLiteral{Kind: BindEq, Left: left, LeftStep: leftStep, Right: right, RightStep: rightStep}
}

func neqLit(left Term, leftStep StepID, right Term, rightStep StepID) BindingLiteral {
	return BindingLiteral{Kind: BindNeq, Left: left, LeftStep: leftStep, Right: right, RightStep: rightStep}
}

// Bindings is the persistent binding store of spec.md §4.2: a sequence of
// varsets plus a sequence of per-step parameter domains, plus the largest
// step id mentioned in any varset. Every Bindings value is immutable;
// Add/AddStepDomain return a new Bindings (or false) and never mutate the
// receiver, which is what lets many sibling plans share one Bindings
// value's chains.
type Bindings struct {
	varsets  *Chain[*Varset]
	domains  *Chain[*StepDomainEntry]
	highStep StepID

	varsetIndex map[LocatedTerm]*Varset
	domainIndex map[StepID]*StepDomainEntry
}

// EmptyBindings is the Bindings::EMPTY singleton: no varsets, no step
// domains, per spec.md §9's note on singleton constants.
var EmptyBindings = &Bindings{}

func newBindings(varsets *Chain[*Varset], domains *Chain[*StepDomainEntry], highStep StepID) *Bindings {
	b := &Bindings{varsets: varsets, domains: domains, highStep: highStep}
	b.varsetIndex = make(map[LocatedTerm]*Varset)
	varsets.Each(func(vs *Varset) bool {
		for _, c := range vs.Codesignate {
			b.varsetIndex[c] = vs
		}
		return true
	})
	b.domainIndex = make(map[StepID]*StepDomainEntry)
	domains.Each(func(e *StepDomainEntry) bool {
		b.domainIndex[e.Step] = e
		return true
	})
	return b
}

// Binding returns the current binding for term at step: the varset's
// constant if term is a variable whose varset has one, else term itself.
func (b *Bindings) Binding(term Term, step StepID) Term {
	if b == nil || term.IsObject() {
		return term
	}
	if vs, ok := b.varsetIndex[located(term, step)]; ok && vs.HasConstant {
		return vs.Constant
	}
	return term
}

// VariableDomain returns the current legal value set for the parameter
// occupying varIndex in step's StepDomainEntry, or (nil, false) if this
// step has no tracked step-domain (domain constraints disabled) or the
// variable is not one of its tracked parameters.
func (b *Bindings) VariableDomain(varIndex int, step StepID) (map[int]bool, bool) {
	if b == nil {
		return nil, false
	}
	e, ok := b.domainIndex[step]
	if !ok {
		return nil, false
	}
	col := e.columnOf(varIndex)
	if col < 0 {
		return nil, false
	}
	return e.Domain.Column(col), true
}

// bindingWorker performs a working-copy merge/propagation pass over a
// Bindings' varsets and step domains. It never mutates existing Varset /
// StepDomainEntry values; every change replaces a map entry with a freshly
// built value, preserving the persistent-update discipline of spec.md §3.
type bindingWorker struct {
	varsetOf map[LocatedTerm]*Varset
	domainOf map[StepID]*StepDomainEntry
	highStep StepID
	pending  []BindingLiteral
}

func newBindingWorker(b *Bindings) *bindingWorker {
	w := &bindingWorker{
		varsetOf: make(map[LocatedTerm]*Varset, len(b.varsetIndex)),
		domainOf: make(map[StepID]*StepDomainEntry, len(b.domainIndex)),
		highStep: b.highStep,
	}
	for k, v := range b.varsetIndex {
		w.varsetOf[k] = v
	}
	for k, v := range b.domainIndex {
		w.domainOf[k] = v
	}
	return w
}

func (w *bindingWorker) bumpHighStep(step StepID) {
	if step > w.highStep {
		w.highStep = step
	}
}

// run processes the pending queue to a fixed point, returning false on the
// first inconsistency.
func (w *bindingWorker) run(initial []BindingLiteral) bool {
	w.pending = append(w.pending, initial...)
	for len(w.pending) > 0 {
		lit := w.pending[0]
		w.pending = w.pending[1:]
		var ok bool
		if lit.Kind == BindEq {
			ok = w.addEquality(lit)
		} else {
			ok = w.addInequality(lit)
		}
		if !ok {
			return false
		}
	}
	return true
}

func (w *bindingWorker) addEquality(lit BindingLiteral) bool {
	w.bumpHighStep(lit.LeftStep)
	w.bumpHighStep(lit.RightStep)
	left, right := lit.Left, lit.Right

	if left.IsObject() && right.IsObject() {
		return left.Index == right.Index
	}

	if left.IsObject() {
		return w.bindVarToConstant(located(right, lit.RightStep), left)
	}
	if right.IsObject() {
		return w.bindVarToConstant(located(left, lit.LeftStep), right)
	}

	lt := located(left, lit.LeftStep)
	rt := located(right, lit.RightStep)
	v1, ok1 := w.varsetOf[lt]
	v2, ok2 := w.varsetOf[rt]

	switch {
	case !ok1 && !ok2:
		vs := &Varset{Codesignate: []LocatedTerm{lt, rt}}
		w.install(vs)
		return true
	case ok1 && !ok2:
		if v1.containsNonCodesignate(rt) {
			return false
		}
		vs := v1.clone()
		vs.Codesignate = append(vs.Codesignate, rt)
		return w.installMerged(vs)
	case !ok1 && ok2:
		if v2.containsNonCodesignate(lt) {
			return false
		}
		vs := v2.clone()
		vs.Codesignate = append(vs.Codesignate, lt)
		return w.installMerged(vs)
	default:
		if v1 == v2 {
			return true // already codesignate
		}
		merged, ok := mergeVarsets(v1, v2)
		if !ok {
			return false
		}
		return w.installMerged(merged)
	}
}

// bindVarToConstant unifies the variable vt's varset with a constant.
func (w *bindingWorker) bindVarToConstant(vt LocatedTerm, constant Term) bool {
	if existing, ok := w.varsetOf[vt]; ok {
		if existing.HasConstant && existing.Constant.Index != constant.Index {
			return false
		}
		if existing.containsNonCodesignate(located(constant, InitID)) {
			return false
		}
		vs := existing.clone()
		vs.HasConstant = true
		vs.Constant = constant
		return w.installMerged(vs)
	}
	vs := &Varset{HasConstant: true, Constant: constant, Codesignate: []LocatedTerm{vt}}
	w.install(vs)
	return w.narrowStepDomains(vs)
}

// install registers a brand-new varset (no prior members to repoint).
func (w *bindingWorker) install(vs *Varset) {
	for _, c := range vs.Codesignate {
		w.varsetOf[c] = vs
	}
}

// installMerged registers vs as the replacement for all of its members'
// varset entries, then narrows step domains and processes any induced
// equalities.
func (w *bindingWorker) installMerged(vs *Varset) bool {
	for _, c := range vs.Codesignate {
		w.varsetOf[c] = vs
	}
	return w.narrowStepDomains(vs)
}

// narrowStepDomains intersects every codesignating variable's step-domain
// column with the varset's constant (if any) or with the intersection of
// all codesignating variables' current projections, per spec.md §4.2 step
// 3. Narrowing to a singleton enqueues the induced equality.
func (w *bindingWorker) narrowStepDomains(vs *Varset) bool {
	var allowed map[int]bool
	if vs.HasConstant {
		allowed = map[int]bool{vs.Constant.Index: true}
	} else {
		for _, c := range vs.Codesignate {
			proj, ok := w.columnProjection(c)
			if !ok {
				continue
			}
			if allowed == nil {
				allowed = proj
			} else {
				allowed = intersectSets(allowed, proj)
			}
		}
		if allowed == nil {
			return true // no tracked domains to narrow
		}
	}

	for _, c := range vs.Codesignate {
		e, ok := w.domainOf[c.Step]
		if !ok {
			continue
		}
		col := e.columnOf(c.Term.Index)
		if col < 0 {
			continue
		}
		narrowed := e.Domain.RestrictColumn(col, allowed)
		if narrowed.IsEmpty() {
			return false
		}
		if narrowed.Count() != e.Domain.Count() {
			ne := e.clone()
			ne.Domain = narrowed
			w.domainOf[c.Step] = ne
			if narrowed.IsSingleton() {
				val := narrowed.Tuples()[0][col]
				w.pending = append(w.pending, eqLit(c.Term, c.Step, Term{Index: val, Type: c.Term.Type}, InitID))
			}
		}
	}
	return true
}

func (w *bindingWorker) columnProjection(c LocatedTerm) (map[int]bool, bool) {
	e, ok := w.domainOf[c.Step]
	if !ok {
		return nil, false
	}
	col := e.columnOf(c.Term.Index)
	if col < 0 {
		return nil, false
	}
	return e.Domain.Column(col), true
}

func intersectSets(a, b map[int]bool) map[int]bool {
	out := make(map[int]bool)
	for k := range a {
		if b[k] {
			out[k] = true
		}
	}
	return out
}

func (w *bindingWorker) addInequality(lit BindingLiteral) bool {
	w.bumpHighStep(lit.LeftStep)
	w.bumpHighStep(lit.RightStep)
	left, right := lit.Left, lit.Right

	if left.IsObject() && right.IsObject() {
		return left.Index != right.Index
	}

	if left.IsObject() && !right.IsObject() {
		return w.excludeConstant(located(right, lit.RightStep), left)
	}
	if right.IsObject() && !left.IsObject() {
		return w.excludeConstant(located(left, lit.LeftStep), right)
	}

	lt := located(left, lit.LeftStep)
	rt := located(right, lit.RightStep)
	v1, ok1 := w.varsetOf[lt]
	v2, ok2 := w.varsetOf[rt]
	if ok1 && ok2 && v1 == v2 {
		return false // already codesignate
	}

	if !w.addNonCodesignate(lt, rt) {
		return false
	}
	if !w.addNonCodesignate(rt, lt) {
		return false
	}
	return true
}

// addNonCodesignate records that subject may never codesignate with
// forbidden, creating subject's varset if it has none yet. If forbidden's
// varset (if any) has a constant, that constant is excluded from subject's
// codesignating step-domain columns.
func (w *bindingWorker) addNonCodesignate(subject, forbidden LocatedTerm) bool {
	vs, ok := w.varsetOf[subject]
	if !ok {
		vs = newSingletonVarset(subject)
	} else {
		vs = vs.clone()
	}
	if vs.containsCodesignate(forbidden) {
		return false
	}
	vs.NonCodes = append(vs.NonCodes, forbidden)
	if !w.installMerged(vs) {
		return false
	}
	if fvs, ok := w.varsetOf[forbidden]; ok && fvs.HasConstant {
		return w.excludeConstant(subject, fvs.Constant)
	}
	return true
}

// excludeConstant forbids vt's varset from codesignating with constant and
// removes constant from vt's class's step-domain columns.
func (w *bindingWorker) excludeConstant(vt LocatedTerm, constant Term) bool {
	existing, ok := w.varsetOf[vt]
	if ok && existing.HasConstant && existing.Constant.Index == constant.Index {
		return false
	}
	var vs *Varset
	if ok {
		vs = existing.clone()
	} else {
		vs = newSingletonVarset(vt)
	}
	vs.NonCodes = append(vs.NonCodes, located(constant, InitID))
	for _, c := range vs.Codesignate {
		w.varsetOf[c] = vs
	}
	for _, c := range vs.Codesignate {
		e, ok := w.domainOf[c.Step]
		if !ok {
			continue
		}
		col := e.columnOf(c.Term.Index)
		if col < 0 {
			continue
		}
		narrowed := e.Domain.ExcludeColumnValue(col, constant.Index)
		if narrowed.IsEmpty() {
			return false
		}
		if narrowed.Count() != e.Domain.Count() {
			ne := e.clone()
			ne.Domain = narrowed
			w.domainOf[c.Step] = ne
			if narrowed.IsSingleton() {
				val := narrowed.Tuples()[0][col]
				w.pending = append(w.pending, eqLit(c.Term, c.Step, Term{Index: val, Type: c.Term.Type}, InitID))
			}
		}
	}
	return true
}

// commit builds a fresh Bindings from the worker's final maps.
func (w *bindingWorker) commit() *Bindings {
	seenVS := make(map[*Varset]bool)
	var vsChain *Chain[*Varset]
	for _, vs := range w.varsetOf {
		if seenVS[vs] {
			continue
		}
		seenVS[vs] = true
		n := Cons(vs, vsChain)
		vsChain.Release()
		vsChain = n
	}
	seenE := make(map[*StepDomainEntry]bool)
	var domChain *Chain[*StepDomainEntry]
	for _, e := range w.domainOf {
		if seenE[e] {
			continue
		}
		seenE[e] = true
		n := Cons(e, domChain)
		domChain.Release()
		domChain = n
	}
	return newBindings(vsChain, domChain, w.highStep)
}

// Add extends the store with the given binding literals, processed to a
// fixed point (induced equalities from step-domain narrowing are
// re-enqueued automatically). If testOnly is set, only a feasibility check
// is performed and the receiver is returned unchanged on success. Returns
// (nil, false) if the literals are inconsistent with the current store.
func (b *Bindings) Add(literals []BindingLiteral, testOnly bool) (*Bindings, bool) {
	if b == nil {
		b = EmptyBindings
	}
	w := newBindingWorker(b)
	if !w.run(literals) {
		return nil, false
	}
	if testOnly {
		return b, true
	}
	return w.commit(), true
}

// ConsistentWith reports, without mutating the store, whether the given
// equality/inequality formula could be added.
func (b *Bindings) ConsistentWith(f Formula, step StepID) bool {
	var lit BindingLiteral
	switch f.kind {
	case FormulaEquality:
		lit = eqLit(f.Left, f.LeftStep, f.Right, f.RightStep)
	case FormulaInequality:
		lit = neqLit(f.Left, f.LeftStep, f.Right, f.RightStep)
	default:
		panic(NewInternalInvariantError("ConsistentWith: not a binding literal"))
	}
	_, ok := b.Add([]BindingLiteral{lit}, true)
	return ok
}

// Unify attempts to unify two literals (atoms or their negations) under
// the current store: it fails if they differ in polarity, predicate, or
// arity; otherwise it pairwise-unifies their term lists and returns the
// most general unifier as a binding list, without committing it.
func (b *Bindings) Unify(lit1 Formula, id1 StepID, lit2 Formula, id2 StepID) ([]BindingLiteral, bool) {
	if lit1.kind != lit2.kind || lit1.Predicate != lit2.Predicate || len(lit1.Args) != len(lit2.Args) {
		return nil, false
	}
	if lit1.kind != FormulaAtom && lit1.kind != FormulaNegation {
		return nil, false
	}
	var mgu []BindingLiteral
	for i := range lit1.Args {
		mgu = append(mgu, eqLit(lit1.Args[i], id1, lit2.Args[i], id2))
	}
	if _, ok := b.Add(mgu, true); !ok {
		return nil, false
	}
	return mgu, true
}

// Affects reports whether lit1 and lit2 are negations of one another and
// their underlying atoms unify; if so it returns the unifying binding
// list. Used to detect whether a step's effect could threaten a causal
// link's condition.
func (b *Bindings) Affects(lit1 Formula, id1 StepID, lit2 Formula, id2 StepID) ([]BindingLiteral, bool) {
	if lit1.kind == lit2.kind {
		return nil, false
	}
	if lit1.kind != FormulaAtom && lit1.kind != FormulaNegation {
		return nil, false
	}
	a1 := lit1
	a1.kind = FormulaAtom
	a2 := lit2
	a2.kind = FormulaAtom
	return b.Unify(a1, id1, a2, id2)
}

// AddStepDomain installs step's initial parameter domain computed from the
// planning graph's action_domain for action, keyed to the step's own
// (fresh) variable indices. If any column of the action domain is already
// a singleton, the corresponding equality is posted and propagated
// immediately (spec.md §4.2).
func (b *Bindings) AddStepDomain(step StepID, varsForParams []int, domain ActionDomain) (*Bindings, bool) {
	if b == nil {
		b = EmptyBindings
	}
	w := newBindingWorker(b)
	entry := &StepDomainEntry{Step: step, Vars: append([]int(nil), varsForParams...), Domain: domain}
	w.domainOf[step] = entry
	w.bumpHighStep(step)

	var induced []BindingLiteral
	for col, v := range varsForParams {
		vals := domain.Column(col)
		if len(vals) == 1 {
			var only int
			for k := range vals {
				only = k
			}
			induced = append(induced, eqLit(Term{Index: v}, step, Term{Index: only}, InitID))
		}
	}
	if !w.run(induced) {
		return nil, false
	}
	return w.commit(), true
}
