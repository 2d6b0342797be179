package pddl

import (
	"fmt"
	"strconv"

	"github.com/gitrdm/vhplan/pkg/planner"
)

// scope resolves bare names encountered while parsing a formula or effect:
// term (variable or object) names against vars, predicate names against
// the owning domain. One scope is built per action (its parameters) or
// per problem section (its objects); forall/exists extend a copy with
// their own quantified variables.
type scope struct {
	domain *Domain
	vars   map[string]planner.Term
}

func newActionScope(d *Domain) *scope {
	return &scope{domain: d, vars: map[string]planner.Term{}}
}

func newProblemScope(p *Problem) *scope {
	s := &scope{domain: p.domain, vars: map[string]planner.Term{}}
	for name, idx := range p.objectIDs {
		s.vars[name] = planner.Term{Index: idx, Type: p.objectTypes[idx]}
	}
	return s
}

// extend returns a copy of s with additional bindings, leaving s itself
// untouched -- used when entering a forall/exists quantifier.
func (s *scope) extend() *scope {
	child := &scope{domain: s.domain, vars: make(map[string]planner.Term, len(s.vars))}
	for k, v := range s.vars {
		child.vars[k] = v
	}
	return child
}

func (s *scope) term(name string) (planner.Term, bool) {
	t, ok := s.vars[name]
	return t, ok
}

// ReadDomain parses a restricted subset of PDDL 2.1 sufficient to express
// the six seeded end-to-end scenarios and typical textbook domains: typed
// objects, :predicates, :action and :durative-action schemas with
// :precondition/:condition, :effect, and a constant :duration. This stands
// in for the out-of-scope full PDDL lexer/parser collaborator (spec.md §6);
// anything outside this subset is reported as a *planner.ParseError, not
// silently accepted.
func ReadDomain(filename string, data []byte) (*Domain, error) {
	forms, err := parseSexprs(filename, data)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, planner.NewParseError(filename, 0, "expected exactly one top-level form")
	}
	top := forms[0]
	if top.isAtom || len(top.list) < 2 || !top.list[0].isAtom || top.list[0].atom != "define" {
		return nil, planner.NewParseError(filename, 0, "expected (define (domain NAME) ...)")
	}
	header := top.list[1]
	if header.isAtom || len(header.list) < 2 || header.list[0].atom != "domain" {
		return nil, planner.NewParseError(filename, 0, "expected (domain NAME) header")
	}

	d := NewDomain()
	for _, section := range top.list[2:] {
		if section.isAtom || len(section.list) == 0 || !section.list[0].isAtom {
			return nil, planner.NewParseError(filename, 0, "expected a keyword section")
		}
		keyword := section.list[0].atom
		body := section.list[1:]
		switch keyword {
		case ":requirements":
			// Accepted but not interpreted -- the core's capability set
			// (typing, STRIPS, durative actions) is fixed, not negotiated.
		case ":types":
			if err := readTypes(d, filename, body); err != nil {
				return nil, err
			}
		case ":constants":
			return nil, planner.NewParseError(filename, 0, ":constants is not supported; declare objects in the problem file")
		case ":predicates":
			if err := readPredicates(d, filename, body); err != nil {
				return nil, err
			}
		case ":action":
			if err := readAction(d, filename, body, false); err != nil {
				return nil, err
			}
		case ":durative-action":
			if err := readAction(d, filename, body, true); err != nil {
				return nil, err
			}
		default:
			return nil, planner.NewParseError(filename, 0, fmt.Sprintf("unsupported domain section %q", keyword))
		}
	}
	return d, nil
}

// ReadProblem parses a problem file against an already-parsed domain.
func ReadProblem(filename string, data []byte, domain *Domain) (*Problem, error) {
	forms, err := parseSexprs(filename, data)
	if err != nil {
		return nil, err
	}
	if len(forms) != 1 {
		return nil, planner.NewParseError(filename, 0, "expected exactly one top-level form")
	}
	top := forms[0]
	if top.isAtom || len(top.list) < 2 || !top.list[0].isAtom || top.list[0].atom != "define" {
		return nil, planner.NewParseError(filename, 0, "expected (define (problem NAME) ...)")
	}
	header := top.list[1]
	if header.isAtom || len(header.list) < 2 || header.list[0].atom != "problem" {
		return nil, planner.NewParseError(filename, 0, "expected (problem NAME) header")
	}

	p := NewProblem(domain)
	for _, section := range top.list[2:] {
		if section.isAtom || len(section.list) == 0 || !section.list[0].isAtom {
			return nil, planner.NewParseError(filename, 0, "expected a keyword section")
		}
		keyword := section.list[0].atom
		body := section.list[1:]
		switch keyword {
		case ":domain":
			// Name cross-check only; the domain is already bound by the caller.
		case ":objects":
			if err := readObjects(p, filename, body); err != nil {
				return nil, err
			}
		case ":init":
			if err := readInit(p, filename, body); err != nil {
				return nil, err
			}
		case ":goal":
			if len(body) != 1 {
				return nil, planner.NewParseError(filename, 0, ":goal takes exactly one formula")
			}
			f, err := readFormula(filename, body[0], newProblemScope(p))
			if err != nil {
				return nil, err
			}
			p.SetGoal(f)
		default:
			return nil, planner.NewParseError(filename, 0, fmt.Sprintf("unsupported problem section %q", keyword))
		}
	}
	return p, nil
}

// readTypedList parses a PDDL typed list "a b - t1 c - t2 d" into pairs of
// (name, typeName); typeName is "" for names left untyped.
func readTypedList(items []sexpr) ([][2]string, error) {
	var out [][2]string
	var pending []string
	i := 0
	for i < len(items) {
		item := items[i]
		if !item.isAtom {
			return nil, fmt.Errorf("expected atom in typed list, got %s", item.String())
		}
		if item.atom == "-" {
			if i+1 >= len(items) || !items[i+1].isAtom {
				return nil, fmt.Errorf("'-' must be followed by a type name")
			}
			typeName := items[i+1].atom
			for _, n := range pending {
				out = append(out, [2]string{n, typeName})
			}
			pending = nil
			i += 2
			continue
		}
		pending = append(pending, item.atom)
		i++
	}
	for _, n := range pending {
		out = append(out, [2]string{n, ""})
	}
	return out, nil
}

func readTypes(d *Domain, filename string, body []sexpr) error {
	pairs, err := readTypedList(body)
	if err != nil {
		return planner.NewParseError(filename, 0, err.Error())
	}
	// Two passes: declare every type name first (so forward-referenced
	// supertypes resolve), then attach supertypes.
	for _, p := range pairs {
		if _, ok := d.TypeID(p[0]); !ok {
			if _, err := d.AddType(p[0]); err != nil {
				return planner.NewParseError(filename, 0, err.Error())
			}
		}
	}
	for _, p := range pairs {
		if p[1] == "" {
			continue
		}
		if _, ok := d.TypeID(p[1]); !ok {
			if _, err := d.AddType(p[1]); err != nil {
				return planner.NewParseError(filename, 0, err.Error())
			}
		}
		childID, _ := d.TypeID(p[0])
		superID, _ := d.TypeID(p[1])
		d.types.AddSupertype(childID, superID)
	}
	return nil
}

func readPredicates(d *Domain, filename string, body []sexpr) error {
	for _, entry := range body {
		if entry.isAtom || len(entry.list) == 0 || !entry.list[0].isAtom {
			return planner.NewParseError(filename, 0, "expected (predicate-name ?x - type ...)")
		}
		name := entry.list[0].atom
		pairs, err := readTypedList(entry.list[1:])
		if err != nil {
			return planner.NewParseError(filename, 0, err.Error())
		}
		paramTypes := make([]planner.TypeID, len(pairs))
		for i, p := range pairs {
			if p[1] == "" {
				paramTypes[i] = planner.NoType
				continue
			}
			tid, ok := d.TypeID(p[1])
			if !ok {
				return planner.NewParseError(filename, 0, fmt.Sprintf("predicate %q references undeclared type %q", name, p[1]))
			}
			paramTypes[i] = tid
		}
		d.AddPredicate(name, paramTypes...)
	}
	return nil
}

func readAction(d *Domain, filename string, body []sexpr, durative bool) error {
	if len(body) == 0 || !body[0].isAtom {
		return planner.NewParseError(filename, 0, "action missing a name")
	}
	name := body[0].atom
	b := d.NewAction(name)
	sc := newActionScope(d)

	fields := body[1:]
	for i := 0; i+1 <= len(fields); {
		if !fields[i].isAtom {
			return planner.NewParseError(filename, 0, "expected a :keyword in action body")
		}
		key := fields[i].atom
		switch key {
		case ":parameters":
			if i+1 >= len(fields) {
				return planner.NewParseError(filename, 0, ":parameters needs a value")
			}
			params := fields[i+1]
			pairs, err := readTypedList(params.list)
			if err != nil {
				return planner.NewParseError(filename, 0, err.Error())
			}
			for _, p := range pairs {
				typ := planner.NoType
				if p[1] != "" {
					tid, ok := d.TypeID(p[1])
					if !ok {
						return planner.NewParseError(filename, 0, fmt.Sprintf("action %q parameter %q references undeclared type %q", name, p[0], p[1]))
					}
					typ = tid
				}
				sc.vars[p[0]] = b.Param(p[0], typ)
			}
			i += 2
		case ":precondition", ":condition":
			if i+1 >= len(fields) {
				return planner.NewParseError(filename, 0, key+" needs a value")
			}
			f, err := readFormula(filename, fields[i+1], sc)
			if err != nil {
				return err
			}
			b.Precondition(f)
			i += 2
		case ":effect":
			if i+1 >= len(fields) {
				return planner.NewParseError(filename, 0, ":effect needs a value")
			}
			if err := readEffects(b, filename, fields[i+1], sc); err != nil {
				return err
			}
			i += 2
		case ":duration":
			if !durative {
				return planner.NewParseError(filename, 0, ":duration is only valid on :durative-action")
			}
			if i+1 >= len(fields) {
				return planner.NewParseError(filename, 0, ":duration needs a value")
			}
			min, max, err := readDuration(filename, fields[i+1])
			if err != nil {
				return err
			}
			b.Durative(min, max)
			i += 2
		default:
			return planner.NewParseError(filename, 0, fmt.Sprintf("unsupported action field %q", key))
		}
	}
	if durative && !b.durative {
		return planner.NewDomainInconsistencyError(fmt.Sprintf("durative action %q missing :duration", name))
	}
	b.Build()
	return nil
}

// readDuration accepts only "(= ?duration N)", the constant-duration form
// the core requires (spec.md §7); anything else is a DomainInconsistency.
func readDuration(filename string, f sexpr) (float64, float64, error) {
	if f.isAtom || len(f.list) != 3 || !f.list[0].isAtom || f.list[0].atom != "=" {
		return 0, 0, planner.NewDomainInconsistencyError("non-constant duration expression: " + f.String())
	}
	if !f.list[2].isAtom {
		return 0, 0, planner.NewDomainInconsistencyError("non-constant duration expression: " + f.String())
	}
	v, err := strconv.ParseFloat(f.list[2].atom, 64)
	if err != nil {
		return 0, 0, planner.NewDomainInconsistencyError("duration is not a constant number: " + f.String())
	}
	return v, v, nil
}

// readFormula recursively parses a precondition/goal expression under the
// default at-start timing, switching timing inside "(at start ...)",
// "(at end ...)", and "(over all ...)" wrappers.
func readFormula(filename string, f sexpr, sc *scope) (planner.Formula, error) {
	return readFormulaTimed(filename, f, sc, planner.TimingAtStart)
}

func readFormulaTimed(filename string, f sexpr, sc *scope, when planner.Timing) (planner.Formula, error) {
	if f.isAtom {
		return planner.Formula{}, planner.NewParseError(filename, 0, "expected a formula, got bare atom "+f.atom)
	}
	if len(f.list) == 0 {
		return planner.TRUE, nil
	}
	head := f.list[0]
	if !head.isAtom {
		return planner.Formula{}, planner.NewParseError(filename, 0, "expected a formula keyword")
	}
	switch head.atom {
	case "and":
		parts := make([]planner.Formula, 0, len(f.list)-1)
		for _, c := range f.list[1:] {
			p, err := readFormulaTimed(filename, c, sc, when)
			if err != nil {
				return planner.Formula{}, err
			}
			parts = append(parts, p)
		}
		return planner.And(parts...), nil
	case "or":
		parts := make([]planner.Formula, 0, len(f.list)-1)
		for _, c := range f.list[1:] {
			p, err := readFormulaTimed(filename, c, sc, when)
			if err != nil {
				return planner.Formula{}, err
			}
			parts = append(parts, p)
		}
		return planner.Or(parts...), nil
	case "not":
		if len(f.list) != 2 {
			return planner.Formula{}, planner.NewParseError(filename, 0, "(not ...) takes exactly one argument")
		}
		inner, err := readFormulaTimed(filename, f.list[1], sc, when)
		if err != nil {
			return planner.Formula{}, err
		}
		if !inner.IsLiteral() {
			return planner.Formula{}, planner.NewParseError(filename, 0, "(not ...) may only negate a literal")
		}
		return inner.Negate(), nil
	case "at":
		if len(f.list) != 3 || !f.list[1].isAtom {
			return planner.Formula{}, planner.NewParseError(filename, 0, "expected (at start|end FORMULA)")
		}
		var t planner.Timing
		switch f.list[1].atom {
		case "start":
			t = planner.TimingAtStart
		case "end":
			t = planner.TimingAtEnd
		default:
			return planner.Formula{}, planner.NewParseError(filename, 0, "expected 'start' or 'end' after 'at'")
		}
		return readFormulaTimed(filename, f.list[2], sc, t)
	case "over":
		if len(f.list) != 3 || !f.list[1].isAtom || f.list[1].atom != "all" {
			return planner.Formula{}, planner.NewParseError(filename, 0, "expected (over all FORMULA)")
		}
		return readFormulaTimed(filename, f.list[2], sc, planner.TimingOverAll)
	case "exists", "forall":
		if len(f.list) != 3 {
			return planner.Formula{}, planner.NewParseError(filename, 0, fmt.Sprintf("expected (%s (VARS) FORMULA)", head.atom))
		}
		pairs, err := readTypedList(f.list[1].list)
		if err != nil {
			return planner.Formula{}, planner.NewParseError(filename, 0, err.Error())
		}
		child := sc.extend()
		vars := make([]planner.Term, len(pairs))
		for i, p := range pairs {
			typ := planner.NoType
			if p[1] != "" {
				if tid, ok := sc.domain.TypeID(p[1]); ok {
					typ = tid
				}
			}
			t := sc.domain.freshVar(p[0], typ)
			child.vars[p[0]] = t
			vars[i] = t
		}
		body, err := readFormulaTimed(filename, f.list[2], child, when)
		if err != nil {
			return planner.Formula{}, err
		}
		if head.atom == "exists" {
			return planner.Exists(vars, body), nil
		}
		return planner.Forall(vars, body), nil
	default:
		args := make([]planner.Term, 0, len(f.list)-1)
		for _, a := range f.list[1:] {
			if !a.isAtom {
				return planner.Formula{}, planner.NewParseError(filename, 0, "expected an argument name")
			}
			t, ok := sc.term(a.atom)
			if !ok {
				return planner.Formula{}, planner.NewParseError(filename, 0, fmt.Sprintf("undeclared term %q", a.atom))
			}
			args = append(args, t)
		}
		pred, ok := sc.domain.PredicateID(head.atom)
		if !ok {
			return planner.Formula{}, planner.NewParseError(filename, 0, fmt.Sprintf("undeclared predicate %q", head.atom))
		}
		return planner.NewAtom(pred, when, args...), nil
	}
}

func readEffects(b *ActionBuilder, filename string, f sexpr, sc *scope) error {
	return readEffectsTimed(b, filename, f, sc, planner.TimingAtStart)
}

func readEffectsTimed(b *ActionBuilder, filename string, f sexpr, sc *scope, when planner.Timing) error {
	if f.isAtom {
		return planner.NewParseError(filename, 0, "expected an effect, got bare atom "+f.atom)
	}
	if len(f.list) == 0 {
		return nil
	}
	head := f.list[0]
	if !head.isAtom {
		return planner.NewParseError(filename, 0, "expected an effect keyword")
	}
	switch head.atom {
	case "and":
		for _, c := range f.list[1:] {
			if err := readEffectsTimed(b, filename, c, sc, when); err != nil {
				return err
			}
		}
		return nil
	case "at":
		if len(f.list) != 3 || !f.list[1].isAtom {
			return planner.NewParseError(filename, 0, "expected (at start|end EFFECT)")
		}
		var t planner.Timing
		switch f.list[1].atom {
		case "start":
			t = planner.TimingAtStart
		case "end":
			t = planner.TimingAtEnd
		default:
			return planner.NewParseError(filename, 0, "expected 'start' or 'end' after 'at'")
		}
		return readEffectsTimed(b, filename, f.list[2], sc, t)
	case "when":
		if len(f.list) != 3 {
			return planner.NewParseError(filename, 0, "expected (when COND EFFECT)")
		}
		cond, err := readFormulaTimed(filename, f.list[1], sc, when)
		if err != nil {
			return err
		}
		lit, err := readFormulaTimed(filename, f.list[2], sc, when)
		if err != nil {
			return err
		}
		if !lit.IsLiteral() {
			return planner.NewParseError(filename, 0, "(when ...) effect must be a literal")
		}
		b.ConditionalEffect(cond, lit, when)
		return nil
	case "forall":
		if len(f.list) != 3 {
			return planner.NewParseError(filename, 0, "expected (forall (VARS) EFFECT)")
		}
		pairs, err := readTypedList(f.list[1].list)
		if err != nil {
			return planner.NewParseError(filename, 0, err.Error())
		}
		child := sc.extend()
		vars := make([]planner.Term, len(pairs))
		for i, p := range pairs {
			typ := planner.NoType
			if p[1] != "" {
				if tid, ok := sc.domain.TypeID(p[1]); ok {
					typ = tid
				}
			}
			t := sc.domain.freshVar(p[0], typ)
			child.vars[p[0]] = t
			vars[i] = t
		}
		bodies, err := readQuantifiedEffectBody(filename, f.list[2], child, when)
		if err != nil {
			return err
		}
		for _, cl := range bodies {
			b.QuantifiedEffect(vars, cl.cond, cl.literal, cl.when)
		}
		return nil
	case "not":
		if len(f.list) != 2 {
			return planner.NewParseError(filename, 0, "(not ...) takes exactly one argument")
		}
		lit, err := readFormulaTimed(filename, f.list[1], sc, when)
		if err != nil {
			return err
		}
		if !lit.IsLiteral() {
			return planner.NewParseError(filename, 0, "(not ...) may only negate a literal in an effect")
		}
		b.Effect(lit.Negate(), when)
		return nil
	default:
		lit, err := readFormulaTimed(filename, f, sc, when)
		if err != nil {
			return err
		}
		b.Effect(lit, when)
		return nil
	}
}

// condLit is one (condition, literal, timing) triple flattened out of a
// quantified effect's body -- "(forall (VARS) (and (when C1 L1) L2))"
// yields two, each sharing the forall's variables.
type condLit struct {
	cond    planner.Formula
	literal planner.Formula
	when    planner.Timing
}

// readQuantifiedEffectBody parses a forall effect's body, which -- like
// any other effect body -- may itself be an "and" of effects, an "(at
// start|end ...)" wrapper, or a "(when COND LITERAL)" conditional. Unlike
// readEffectsTimed, it returns the accumulated (cond, literal, when)
// triples instead of appending directly to the builder, since each one
// must be built into its own Effect sharing the same quantified
// Parameters (ActionBuilder.QuantifiedEffect takes one literal at a time).
func readQuantifiedEffectBody(filename string, f sexpr, sc *scope, when planner.Timing) ([]condLit, error) {
	if f.isAtom {
		return nil, planner.NewParseError(filename, 0, "expected an effect, got bare atom "+f.atom)
	}
	if len(f.list) == 0 {
		return nil, nil
	}
	head := f.list[0]
	if !head.isAtom {
		return nil, planner.NewParseError(filename, 0, "expected an effect keyword")
	}
	switch head.atom {
	case "and":
		var out []condLit
		for _, c := range f.list[1:] {
			sub, err := readQuantifiedEffectBody(filename, c, sc, when)
			if err != nil {
				return nil, err
			}
			out = append(out, sub...)
		}
		return out, nil
	case "at":
		if len(f.list) != 3 || !f.list[1].isAtom {
			return nil, planner.NewParseError(filename, 0, "expected (at start|end EFFECT)")
		}
		var t planner.Timing
		switch f.list[1].atom {
		case "start":
			t = planner.TimingAtStart
		case "end":
			t = planner.TimingAtEnd
		default:
			return nil, planner.NewParseError(filename, 0, "expected 'start' or 'end' after 'at'")
		}
		return readQuantifiedEffectBody(filename, f.list[2], sc, t)
	case "when":
		if len(f.list) != 3 {
			return nil, planner.NewParseError(filename, 0, "expected (when COND EFFECT)")
		}
		cond, err := readFormulaTimed(filename, f.list[1], sc, when)
		if err != nil {
			return nil, err
		}
		lit, err := readFormulaTimed(filename, f.list[2], sc, when)
		if err != nil {
			return nil, err
		}
		if !lit.IsLiteral() {
			return nil, planner.NewParseError(filename, 0, "(when ...) effect must be a literal")
		}
		return []condLit{{cond: cond, literal: lit, when: when}}, nil
	case "not":
		if len(f.list) != 2 {
			return nil, planner.NewParseError(filename, 0, "(not ...) takes exactly one argument")
		}
		lit, err := readFormulaTimed(filename, f.list[1], sc, when)
		if err != nil {
			return nil, err
		}
		if !lit.IsLiteral() {
			return nil, planner.NewParseError(filename, 0, "(not ...) may only negate a literal in an effect")
		}
		return []condLit{{cond: planner.TRUE, literal: lit.Negate(), when: when}}, nil
	default:
		lit, err := readFormulaTimed(filename, f, sc, when)
		if err != nil {
			return nil, err
		}
		return []condLit{{cond: planner.TRUE, literal: lit, when: when}}, nil
	}
}

func readObjects(p *Problem, filename string, body []sexpr) error {
	pairs, err := readTypedList(body)
	if err != nil {
		return planner.NewParseError(filename, 0, err.Error())
	}
	for _, pr := range pairs {
		typ := planner.NoType
		if pr[1] != "" {
			tid, ok := p.domain.TypeID(pr[1])
			if !ok {
				return planner.NewParseError(filename, 0, fmt.Sprintf("object %q references undeclared type %q", pr[0], pr[1]))
			}
			typ = tid
		}
		p.AddObject(pr[0], typ)
	}
	return nil
}

func readInit(p *Problem, filename string, body []sexpr) error {
	sc := newProblemScope(p)
	for _, atomExpr := range body {
		f, err := readFormulaTimed(filename, atomExpr, sc, planner.TimingAtStart)
		if err != nil {
			return err
		}
		if !f.IsLiteral() || f.VariantKind() == planner.FormulaNegation {
			return planner.NewParseError(filename, 0, "(:init ...) entries must be positive atoms: "+atomExpr.String())
		}
		p.AddInit(f)
	}
	return nil
}
