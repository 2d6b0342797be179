package pddl

import (
	"fmt"

	"github.com/gitrdm/vhplan/pkg/planner"
)

// Problem is a builder-populated planner.ProblemView: typed objects, the
// initial-state atom set, and a goal formula, all resolved against the
// types and predicates of an owning Domain.
type Problem struct {
	domain *Domain

	objectNames []string
	objectTypes []planner.TypeID
	objectIDs   map[string]int

	initAtoms []planner.Formula
	goal      planner.Formula
}

// NewProblem creates an empty problem over domain.
func NewProblem(domain *Domain) *Problem {
	return &Problem{domain: domain, objectIDs: make(map[string]int), goal: planner.TRUE}
}

// AddObject declares a ground constant of the given type and returns its
// Term (a non-negative index).
func (p *Problem) AddObject(name string, typ planner.TypeID) planner.Term {
	idx := len(p.objectNames)
	p.objectNames = append(p.objectNames, name)
	p.objectTypes = append(p.objectTypes, typ)
	p.objectIDs[name] = idx
	return planner.Term{Index: idx, Type: typ}
}

// ObjectID looks up a previously declared object's term by name.
func (p *Problem) ObjectID(name string) (planner.Term, bool) {
	idx, ok := p.objectIDs[name]
	if !ok {
		return planner.Term{}, false
	}
	return planner.Term{Index: idx, Type: p.objectTypes[idx]}, true
}

// Atom builds a ground positive literal against this problem's domain,
// erroring if pred is unregistered.
func (p *Problem) Atom(predName string, args ...planner.Term) (planner.Formula, error) {
	pred, ok := p.domain.PredicateID(predName)
	if !ok {
		return planner.Formula{}, fmt.Errorf("pddl: undeclared predicate %q", predName)
	}
	return planner.NewAtom(pred, planner.TimingAtStart, args...), nil
}

// AddInit appends one ground positive atom to the initial state.
func (p *Problem) AddInit(atom planner.Formula) {
	p.initAtoms = append(p.initAtoms, atom)
}

// SetGoal sets the problem's goal formula.
func (p *Problem) SetGoal(f planner.Formula) {
	p.goal = f
}

// Objects implements planner.ProblemView.
func (p *Problem) Objects() []planner.ObjectInfo {
	out := make([]planner.ObjectInfo, len(p.objectNames))
	for i, name := range p.objectNames {
		out[i] = planner.ObjectInfo{Name: name, Type: p.objectTypes[i]}
	}
	return out
}

// ObjectsOfType implements planner.ProblemView: every object whose
// declared type is compatible with t (reflexive/transitive subtype).
func (p *Problem) ObjectsOfType(t planner.TypeID, types *planner.TypeTable) []int {
	var out []int
	for i, ot := range p.objectTypes {
		if types.Compatible(ot, t) {
			out = append(out, i)
		}
	}
	return out
}

// InitAtoms implements planner.ProblemView.
func (p *Problem) InitAtoms() []planner.Formula { return p.initAtoms }

// Goal implements planner.ProblemView.
func (p *Problem) Goal() planner.Formula { return p.goal }

// Names implements planner.ProblemView, delegating variable names to the
// owning domain and supplying this problem's own object names.
func (p *Problem) Names() *planner.NameTable { return p.domain.names(p.objectNames) }
