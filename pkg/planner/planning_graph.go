package planner

import (
	"fmt"
	"strconv"
	"strings"
)

// groundAchiever records one ground (action, effect, argument-tuple)
// instantiation that produces a literal, used both for add-step refinement
// (spec.md §4.5.1) and for action_domain.
type groundAchiever struct {
	Action *Action
	Effect *Effect
	Args   []int // object index per action parameter, in Action.Parameters order
}

// PlanningGraph is the relaxed forward-reachability structure of spec.md
// §4.4: it ignores delete effects, builds level by level until a fixed
// point, and records the cheapest HeuristicValue and the achiever set for
// every ground literal reached, plus the per-action-name reachable
// argument-tuple set (action_domain).
//
// Grounded on propagation.go / fd_solver.go's fixed-point propagation loop
// (iterate until nothing changes) and fd_monitor.go's statistics idiom,
// adapted from constraint propagation over FD domains to reachability
// propagation over ground literals.
type PlanningGraph struct {
	domain  DomainView
	problem ProblemView

	heuristics map[string]HeuristicValue
	achievers  map[string][]groundAchiever
	domains    map[string][]Tuple // action name -> reachable parameter tuples

	levels int
}

func literalKey(pred PredicateID, positive bool, args []int) string {
	var b strings.Builder
	if positive {
		b.WriteByte('+')
	} else {
		b.WriteByte('-')
	}
	b.WriteString(strconv.Itoa(int(pred)))
	for _, a := range args {
		b.WriteByte(':')
		b.WriteString(strconv.Itoa(a))
	}
	return b.String()
}

// BuildPlanningGraph runs relaxed reachability to a fixed point over
// domain/problem and returns the resulting graph.
func BuildPlanningGraph(domain DomainView, problem ProblemView) (*PlanningGraph, error) {
	pg := &PlanningGraph{
		domain:     domain,
		problem:    problem,
		heuristics: make(map[string]HeuristicValue),
		achievers:  make(map[string][]groundAchiever),
		domains:    make(map[string][]Tuple),
	}

	for _, atom := range problem.InitAtoms() {
		if atom.kind != FormulaAtom {
			continue
		}
		args := make([]int, len(atom.Args))
		for i, t := range atom.Args {
			args[i] = t.Index
		}
		pg.heuristics[literalKey(atom.Predicate, true, args)] = ZeroHeuristic
	}

	instantiations, err := pg.enumerateInstantiations()
	if err != nil {
		return nil, err
	}

	level := 0
	for {
		level++
		changed := false
		for _, inst := range instantiations {
			condVal := pg.valueOf(inst.condition)
			if condVal.IsInfinite() {
				continue
			}
			for _, eff := range inst.effects {
				args := eff.args
				key := literalKey(eff.predicate, eff.positive, args)
				candidate := condVal.Add(HeuristicValue{AddCost: 1, AddWork: 1, Makespan: condVal.Makespan + 1})
				if cur, ok := pg.heuristics[key]; !ok || candidate.Less(cur) {
					pg.heuristics[key] = candidate
					changed = true
				}
				pg.achievers[key] = appendAchieverOnce(pg.achievers[key], groundAchiever{
					Action: inst.action, Effect: eff.src, Args: inst.args,
				})
				if eff.positive {
					pg.domains[inst.action.Name] = appendTupleOnce(pg.domains[inst.action.Name], inst.args)
				}
			}
		}
		if !changed || level > maxPlanningGraphLevels {
			break
		}
	}
	pg.levels = level
	return pg, nil
}

const maxPlanningGraphLevels = 64

func appendTupleOnce(tuples []Tuple, t []int) []Tuple {
	cp := Tuple(append([]int(nil), t...))
	for _, o := range tuples {
		if o.equal(cp) {
			return tuples
		}
	}
	return append(tuples, cp)
}

func appendAchieverOnce(list []groundAchiever, a groundAchiever) []groundAchiever {
	for _, o := range list {
		if o.Action == a.Action && o.Effect == a.Effect && sameArgs(o.Args, a.Args) {
			return list
		}
	}
	return append(list, a)
}

func sameArgs(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// groundEffect is one fully-grounded effect literal produced by a ground
// action instantiation.
type groundEffect struct {
	predicate PredicateID
	positive  bool
	args      []int
	src       *Effect
}

// groundInstantiation is one fully-grounded action-parameter assignment.
type groundInstantiation struct {
	action    *Action
	args      []int // by action.Parameters index
	condition Formula
	effects   []groundEffect
}

// enumerateInstantiations grounds every action over every type-compatible
// object tuple. This is a brute-force cartesian product, acceptable for
// the modestly sized domains this planner targets (spec.md treats full
// grounding as the -g flag's job; the planning graph always needs a ground
// view to compute reachability regardless of whether search itself later
// works lifted or ground).
func (pg *PlanningGraph) enumerateInstantiations() ([]groundInstantiation, error) {
	var out []groundInstantiation
	types := pg.domain.Types()
	for _, action := range pg.domain.Actions() {
		domains := make([][]int, len(action.Parameters))
		for i, p := range action.Parameters {
			domains[i] = pg.problem.ObjectsOfType(p.Type, types)
			if len(domains[i]) == 0 {
				break
			}
		}
		combos := cartesianProduct(domains)
		for _, combo := range combos {
			subst := make(map[int]int, len(combo))
			for i, p := range action.Parameters {
				subst[p.Index] = combo[i]
			}
			cond := groundFormula(action.Condition, subst)
			var effects []groundEffect
			for ei := range action.Effects {
				eff := &action.Effects[ei]
				ground := groundFormula(eff.Literal, subst)
				if ground.kind != FormulaAtom && ground.kind != FormulaNegation {
					continue
				}
				args := make([]int, len(ground.Args))
				ok := true
				for i, a := range ground.Args {
					if a.IsVariable() {
						ok = false
						break
					}
					args[i] = a.Index
				}
				if !ok {
					continue
				}
				effects = append(effects, groundEffect{
					predicate: ground.Predicate,
					positive:  ground.kind == FormulaAtom,
					args:      args,
					src:       eff,
				})
			}
			if len(effects) == 0 {
				continue
			}
			out = append(out, groundInstantiation{action: action, args: combo, condition: cond, effects: effects})
		}
	}
	return out, nil
}

func cartesianProduct(domains [][]int) [][]int {
	if len(domains) == 0 {
		return [][]int{{}}
	}
	rest := cartesianProduct(domains[1:])
	var out [][]int
	for _, v := range domains[0] {
		for _, r := range rest {
			combo := append([]int{v}, r...)
			out = append(out, combo)
		}
	}
	return out
}

// groundFormula substitutes variable indices per subst throughout f.
func groundFormula(f Formula, subst map[int]int) Formula {
	g := f
	switch f.kind {
	case FormulaAtom, FormulaNegation:
		g.Args = make([]Term, len(f.Args))
		for i, a := range f.Args {
			g.Args[i] = substTerm(a, subst)
		}
	case FormulaConjunction, FormulaDisjunction:
		g.Parts = make([]Formula, len(f.Parts))
		for i, p := range f.Parts {
			g.Parts[i] = groundFormula(p, subst)
		}
	case FormulaExists, FormulaForall:
		if f.Body != nil {
			b := groundFormula(*f.Body, subst)
			g.Body = &b
		}
	case FormulaEquality, FormulaInequality:
		g.Left = substTerm(f.Left, subst)
		g.Right = substTerm(f.Right, subst)
	}
	return g
}

func substTerm(t Term, subst map[int]int) Term {
	if t.IsObject() {
		return t
	}
	if v, ok := subst[t.Index]; ok {
		return Term{Index: v, Type: t.Type}
	}
	return t
}

// valueOf computes the heuristic value of a ground formula under the
// current reachability state: atoms look up directly, conjunction sums,
// disjunction takes the min, and exists and forall alike take the value of
// their body as it stands; the quantified variables are not expanded over
// objects here.
func (pg *PlanningGraph) valueOf(f Formula) HeuristicValue {
	switch f.kind {
	case FormulaTrue:
		return ZeroHeuristic
	case FormulaFalse:
		return InfiniteHeuristic
	case FormulaAtom:
		args := make([]int, len(f.Args))
		for i, a := range f.Args {
			if a.IsVariable() {
				return InfiniteHeuristic // not yet ground; caller must ground first
			}
			args[i] = a.Index
		}
		if v, ok := pg.heuristics[literalKey(f.Predicate, true, args)]; ok {
			return v
		}
		return InfiniteHeuristic
	case FormulaNegation:
		args := make([]int, len(f.Args))
		for i, a := range f.Args {
			if a.IsVariable() {
				return InfiniteHeuristic
			}
			args[i] = a.Index
		}
		// Closed-world: negative literals are free (cost 0) unless the
		// positive form is asserted in the initial state and never
		// deleted in this relaxation (delete effects are ignored, so a
		// negative literal is reachable unless it's a known init atom
		// that's never re-asserted false -- approximate as "free unless
		// the positive literal holds at level 0").
		if v, ok := pg.heuristics[literalKey(f.Predicate, true, args)]; ok && v == ZeroHeuristic {
			return InfiniteHeuristic
		}
		return ZeroHeuristic
	case FormulaConjunction:
		v := ZeroHeuristic
		for _, p := range f.Parts {
			v = v.Add(pg.valueOf(p))
		}
		return v
	case FormulaDisjunction:
		v := InfiniteHeuristic
		for _, p := range f.Parts {
			v = v.Min(pg.valueOf(p))
		}
		return v
	case FormulaExists, FormulaForall:
		if f.Body == nil {
			return ZeroHeuristic
		}
		return pg.valueOf(*f.Body)
	default:
		panic(NewInternalInvariantError(fmt.Sprintf("valueOf: unknown formula kind %d", f.kind)))
	}
}

// LiteralHeuristic returns the heuristic value of a ground literal.
func (pg *PlanningGraph) LiteralHeuristic(lit Formula) HeuristicValue {
	return pg.valueOf(lit)
}

// LiteralAchievers unifies the (possibly lifted) query literal against
// every recorded ground atom of the same predicate/polarity under
// bindings, returning the union of their achiever sets as (action,
// effect, ground-args) triples.
func (pg *PlanningGraph) LiteralAchievers(lit Formula, step StepID, bindings *Bindings) []groundAchiever {
	var out []groundAchiever
	positive := lit.kind == FormulaAtom
	for key, achievers := range pg.achievers {
		pred, pos, args := parseLiteralKey(key)
		if pred != lit.Predicate || pos != positive || len(args) != len(lit.Args) {
			continue
		}
		objArgs := make([]Term, len(args))
		for i, a := range args {
			objArgs[i] = Term{Index: a}
		}
		ground := lit
		ground.Args = objArgs
		if _, ok := bindings.Unify(lit, step, ground, InitID); ok {
			out = append(out, achievers...)
		}
	}
	return out
}

func parseLiteralKey(key string) (PredicateID, bool, []int) {
	positive := key[0] == '+'
	parts := strings.Split(key[1:], ":")
	pred, _ := strconv.Atoi(parts[0])
	args := make([]int, 0, len(parts)-1)
	for _, p := range parts[1:] {
		v, _ := strconv.Atoi(p)
		args = append(args, v)
	}
	return PredicateID(pred), positive, args
}

// ActionDomainFor returns the reachable argument tuples for the named
// ground action, exposed to the binding store as the initial step domain
// (spec.md §4.2's Bindings.Add(step-id, action, planning-graph)).
func (pg *PlanningGraph) ActionDomainFor(name string) []Tuple {
	return pg.domains[name]
}
