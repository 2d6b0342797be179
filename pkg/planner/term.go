// Package planner implements the refinement-search core of a partial-order
// causal-link (POCL) planner: the partial-plan data model and its
// refinement operators, the binding and ordering constraint stores, the
// planning-graph heuristic oracle, the flaw-selection strategy language,
// and the search driver that ties them together.
//
// The package assumes a prebuilt domain and problem (see internal/pddl)
// and emits a Plan; it does not parse PDDL or execute plans.
package planner

import "fmt"

// Term is an integer-indexed handle into either the object table or the
// variable table of a Context. Non-negative indices denote objects (ground
// constants); negative indices denote variables. Variable instantiations
// for a plan are keyed by the pair (variable index, step id), since the
// same lifted variable index is reused across every instance of an action
// schema.
type Term struct {
	Index int // >= 0: object index; < 0: variable index
	Type  TypeID
}

// IsVariable reports whether t denotes a variable rather than an object.
func (t Term) IsVariable() bool { return t.Index < 0 }

// IsObject reports whether t denotes a ground object.
func (t Term) IsObject() bool { return t.Index >= 0 }

// StepVar pairs a variable term with the step instance it is local to.
// Two equal StepVars denote the same logic variable; the same variable
// Index in two different steps denotes unrelated variables until unified.
type StepVar struct {
	VarIndex int
	StepID   StepID
}

// String renders a term using the given object/variable name tables, for
// diagnostics and for the plan listing Plan.DebugString builds.
func (t Term) String(names *NameTable) string {
	if names == nil {
		return fmt.Sprintf("term(%d)", t.Index)
	}
	if t.IsObject() {
		return names.ObjectName(t.Index)
	}
	return names.VariableName(t.Index)
}

// NameTable maps object/variable indices to human-readable names, supplied
// by the external domain/problem collaborator for diagnostics only.
type NameTable struct {
	Objects   []string
	Variables []string
}

func (n *NameTable) ObjectName(i int) string {
	if n == nil || i < 0 || i >= len(n.Objects) {
		return fmt.Sprintf("obj%d", i)
	}
	return n.Objects[i]
}

func (n *NameTable) VariableName(i int) string {
	idx := -i - 1
	if n == nil || idx < 0 || idx >= len(n.Variables) {
		return fmt.Sprintf("?v%d", -i)
	}
	return n.Variables[idx]
}

// TypeID indexes into a Context's type table.
type TypeID int

// NoType is the sentinel for "untyped" / the universal object type.
const NoType TypeID = -1

// TypeKind distinguishes a simple type from a union ("either") type.
type TypeKind int

const (
	TypeSimple TypeKind = iota
	TypeUnion
)

// TypeInfo is one node of the type DAG: either a simple type with a
// (possibly empty) set of direct supertypes, or a union of other types.
type TypeInfo struct {
	Name        string
	Kind        TypeKind
	Supertypes  []TypeID // direct supertypes, for TypeSimple
	UnionMembers []TypeID // member types, for TypeUnion
}

// TypeTable is the DAG of simple types plus union types for one domain. It
// caches each subtype result the first time it is computed, so a repeated
// query does not walk the DAG again.
type TypeTable struct {
	types        []TypeInfo
	subtypeCache map[[2]TypeID]bool
}

// NewTypeTable constructs an empty type table; types are added with AddType.
func NewTypeTable() *TypeTable {
	return &TypeTable{subtypeCache: make(map[[2]TypeID]bool)}
}

// AddType registers a new simple type and returns its id.
func (tt *TypeTable) AddType(name string, supertypes ...TypeID) TypeID {
	id := TypeID(len(tt.types))
	tt.types = append(tt.types, TypeInfo{Name: name, Kind: TypeSimple, Supertypes: supertypes})
	tt.subtypeCache = make(map[[2]TypeID]bool)
	return id
}

// AddSupertype attaches an additional direct supertype to an already
// registered simple type -- used by readers that must declare a batch of
// type names before any of their supertype edges are known (PDDL's
// ":types" section allows forward references within the same block).
// Invalidates the subtype cache, since it changes the DAG.
func (tt *TypeTable) AddSupertype(child, super TypeID) {
	tt.types[child].Supertypes = append(tt.types[child].Supertypes, super)
	tt.subtypeCache = make(map[[2]TypeID]bool)
}

// AddUnionType registers a new either-of type over the given members.
func (tt *TypeTable) AddUnionType(name string, members ...TypeID) TypeID {
	id := TypeID(len(tt.types))
	tt.types = append(tt.types, TypeInfo{Name: name, Kind: TypeUnion, UnionMembers: members})
	tt.subtypeCache = make(map[[2]TypeID]bool)
	return id
}

// Name returns the registered name for id, or "" if id is NoType/unknown.
func (tt *TypeTable) Name(id TypeID) string {
	if id == NoType || int(id) < 0 || int(id) >= len(tt.types) {
		return ""
	}
	return tt.types[id].Name
}

// Subtype reports whether a is a (reflexive, transitive) subtype of b.
// NoType is the universal type: every type is a subtype of NoType, and
// NoType is only a subtype of itself.
func (tt *TypeTable) Subtype(a, b TypeID) bool {
	if a == b {
		return true
	}
	if b == NoType {
		return true
	}
	if a == NoType {
		return false
	}
	key := [2]TypeID{a, b}
	if v, ok := tt.subtypeCache[key]; ok {
		return v
	}
	result := tt.subtypeUncached(a, b)
	tt.subtypeCache[key] = result
	return result
}

func (tt *TypeTable) subtypeUncached(a, b TypeID) bool {
	if int(a) < 0 || int(a) >= len(tt.types) {
		return false
	}
	info := tt.types[a]
	switch info.Kind {
	case TypeSimple:
		for _, s := range info.Supertypes {
			if tt.Subtype(s, b) {
				return true
			}
		}
		return false
	case TypeUnion:
		// A union type is a subtype of b iff every member is.
		for _, m := range info.UnionMembers {
			if !tt.Subtype(m, b) {
				return false
			}
		}
		return len(info.UnionMembers) > 0
	}
	return false
}

// Compatible reports whether a and b could denote the same object: either
// is a subtype of the other (reflexive).
func (tt *TypeTable) Compatible(a, b TypeID) bool {
	return tt.Subtype(a, b) || tt.Subtype(b, a)
}
