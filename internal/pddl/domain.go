// Package pddl is the domain/problem object model the refinement core
// borrows from: concrete types satisfying planner.DomainView and
// planner.ProblemView, a fluent builder API for constructing them
// programmatically, and a minimal restricted-S-expression reader standing
// in for the out-of-scope PDDL 2.1 lexer/parser.
//
// Grounded on the teacher's model.go Model: an incrementally built,
// immutable-once-constructed object (here, two objects -- Domain and
// Problem, since planner.DomainView/ProblemView split the same way).
// Unlike Model, construction here is always single-threaded (one domain
// parse, one Context built from it), so the builder carries no mutex --
// the teacher's mutex exists because Models are read concurrently by
// parallel search workers, a concern this planner's single-threaded core
// (spec.md §5) does not share.
package pddl

import (
	"fmt"

	"github.com/gitrdm/vhplan/pkg/planner"
)

// Domain is a builder-populated planner.DomainView: named types, named
// predicates, and action schemas.
type Domain struct {
	types   *planner.TypeTable
	typeIDs map[string]planner.TypeID

	predicates   []planner.PredicateInfo
	predicateIDs map[string]planner.PredicateID

	actions []*planner.Action

	nextVar int // next fresh variable index, counting down from -1

	varNames []string // names.Variables, indexed by -i-1
}

// NewDomain creates an empty domain with no types, predicates, or actions.
func NewDomain() *Domain {
	return &Domain{
		types:        planner.NewTypeTable(),
		typeIDs:      make(map[string]planner.TypeID),
		predicateIDs: make(map[string]planner.PredicateID),
		nextVar:      -1,
	}
}

// AddType registers a simple type, with zero or more direct supertype
// names (which must already be registered). Returns the new type's id.
func (d *Domain) AddType(name string, supertypes ...string) (planner.TypeID, error) {
	if _, exists := d.typeIDs[name]; exists {
		return planner.NoType, fmt.Errorf("pddl: type %q already declared", name)
	}
	superIDs := make([]planner.TypeID, len(supertypes))
	for i, s := range supertypes {
		id, ok := d.typeIDs[s]
		if !ok {
			return planner.NoType, fmt.Errorf("pddl: type %q has undeclared supertype %q", name, s)
		}
		superIDs[i] = id
	}
	id := d.types.AddType(name, superIDs...)
	d.typeIDs[name] = id
	return id, nil
}

// AddUnionType registers an "either" type over already-declared members.
func (d *Domain) AddUnionType(name string, members ...string) (planner.TypeID, error) {
	memberIDs := make([]planner.TypeID, len(members))
	for i, m := range members {
		id, ok := d.typeIDs[m]
		if !ok {
			return planner.NoType, fmt.Errorf("pddl: union type %q has undeclared member %q", name, m)
		}
		memberIDs[i] = id
	}
	id := d.types.AddUnionType(name, memberIDs...)
	d.typeIDs[name] = id
	return id, nil
}

// TypeID looks up a previously declared type by name. Returns
// planner.NoType, false if it has not been declared -- a caller that wants
// the universal type should not call this at all and use planner.NoType
// directly.
func (d *Domain) TypeID(name string) (planner.TypeID, bool) {
	id, ok := d.typeIDs[name]
	return id, ok
}

// AddPredicate registers a predicate and its parameter types, returning its
// id for use in Atom/Not/action conditions and effects.
func (d *Domain) AddPredicate(name string, paramTypes ...planner.TypeID) planner.PredicateID {
	id := planner.PredicateID(len(d.predicates))
	d.predicates = append(d.predicates, planner.PredicateInfo{Name: name, ParamTypes: paramTypes})
	d.predicateIDs[name] = id
	return id
}

// PredicateID looks up a previously declared predicate by name.
func (d *Domain) PredicateID(name string) (planner.PredicateID, bool) {
	id, ok := d.predicateIDs[name]
	return id, ok
}

// freshVar allocates a new parameter/effect variable term, naming it for
// diagnostics. Variable indices are small negative integers, reused across
// every instance of the action schema that declares them (spec.md §4.5.3) --
// they are never reused *across* schemas here only because each call
// allocates a fresh one; nothing in the core requires that, it just keeps
// NameTable.Variables unambiguous for dumps.
func (d *Domain) freshVar(name string, typ planner.TypeID) planner.Term {
	idx := d.nextVar
	d.nextVar--
	d.varNames = append(d.varNames, name)
	return planner.Term{Index: idx, Type: typ}
}

// NewAction starts a fluent builder for an action schema. Call Build() on
// the returned *ActionBuilder to register it with the domain.
func (d *Domain) NewAction(name string) *ActionBuilder {
	return &ActionBuilder{domain: d, name: name}
}

// AddAction registers an already-built action schema directly -- used by
// the reader, which assembles Action values itself while parsing.
func (d *Domain) AddAction(a *planner.Action) {
	d.actions = append(d.actions, a)
}

// Types implements planner.DomainView.
func (d *Domain) Types() *planner.TypeTable { return d.types }

// Predicates implements planner.DomainView.
func (d *Domain) Predicates() []planner.PredicateInfo { return d.predicates }

// Actions implements planner.DomainView.
func (d *Domain) Actions() []*planner.Action { return d.actions }

// IsStatic implements planner.DomainView: a predicate is static if no
// action effect in this domain ever asserts or retracts it. Computed on
// demand rather than cached, since -d0 (the only consumer) checks this at
// most once per step-domain installation, not in a hot loop.
func (d *Domain) IsStatic(pred planner.PredicateID) bool {
	for _, a := range d.actions {
		for _, eff := range a.Effects {
			k := eff.Literal.VariantKind()
			if (k == planner.FormulaAtom || k == planner.FormulaNegation) && eff.Literal.Predicate == pred {
				return false
			}
		}
	}
	return true
}

// names returns the NameTable covering every variable allocated across all
// of this domain's action schemas, for diagnostic use by a Problem built
// against this domain.
func (d *Domain) names(objects []string) *planner.NameTable {
	return &planner.NameTable{Objects: objects, Variables: d.varNames}
}
