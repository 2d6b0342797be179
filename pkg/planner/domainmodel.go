package planner

// This file defines the interfaces the refinement-search core consumes
// from the domain/problem object model. Per spec.md §1/§9, that model
// (types, predicates, action schemas, the PDDL lexer/parser) is an
// external collaborator: internal/pddl provides a concrete implementation
// that imports this package, never the other way around, keeping the core
// free of any dependency on how domains and problems are parsed or built.

// ObjectInfo names one ground constant and its declared type.
type ObjectInfo struct {
	Name string
	Type TypeID
}

// PredicateInfo names one predicate and its parameter types.
type PredicateInfo struct {
	Name       string
	ParamTypes []TypeID
}

// DomainView is everything the core needs from a parsed planning domain.
type DomainView interface {
	Types() *TypeTable
	Predicates() []PredicateInfo
	Actions() []*Action
	// IsStatic reports whether pred is never the subject of any action
	// effect in this domain -- used by the flaw-selection `t` mask
	// (openConditionIsStatic). Step-domain installation does not use it.
	IsStatic(pred PredicateID) bool
}

// ProblemView is everything the core needs from a parsed planning problem.
type ProblemView interface {
	Objects() []ObjectInfo
	ObjectsOfType(t TypeID, types *TypeTable) []int
	InitAtoms() []Formula
	Goal() Formula
	Names() *NameTable
}
