package planner

import (
	"fmt"
	"sort"
	"strings"
)

// formulaString renders a formula for diagnostics: predicate names come
// from domain, term names from names, and variable terms are resolved
// through bindings for the given step before printing -- matching
// plans.cc's Formula::print(ostream&, predicates, terms, step, bindings).
// Unlike plan output (spec.md §6's Makespan/step listing), this is never
// meant to be machine-read back in.
func formulaString(f Formula, domain DomainView, names *NameTable, step StepID, bindings *Bindings) string {
	var b strings.Builder
	writeFormulaString(&b, f, domain, names, step, bindings)
	return b.String()
}

func predicateName(domain DomainView, pred PredicateID) string {
	preds := domain.Predicates()
	if int(pred) < 0 || int(pred) >= len(preds) {
		return fmt.Sprintf("pred%d", pred)
	}
	return preds[pred].Name
}

func writeTermString(b *strings.Builder, t Term, names *NameTable, step StepID, bindings *Bindings) {
	if bindings != nil && t.IsVariable() {
		t = bindings.Binding(t, step)
	}
	b.WriteString(t.String(names))
}

func writeFormulaString(b *strings.Builder, f Formula, domain DomainView, names *NameTable, step StepID, bindings *Bindings) {
	switch f.kind {
	case FormulaTrue:
		b.WriteString("(and)")
	case FormulaFalse:
		b.WriteString("(or)")
	case FormulaAtom, FormulaNegation:
		if f.kind == FormulaNegation {
			b.WriteString("(not ")
		}
		b.WriteByte('(')
		b.WriteString(predicateName(domain, f.Predicate))
		for _, a := range f.Args {
			b.WriteByte(' ')
			writeTermString(b, a, names, step, bindings)
		}
		b.WriteByte(')')
		if f.kind == FormulaNegation {
			b.WriteByte(')')
		}
	case FormulaConjunction, FormulaDisjunction:
		if f.kind == FormulaConjunction {
			b.WriteString("(and")
		} else {
			b.WriteString("(or")
		}
		for _, p := range f.Parts {
			b.WriteByte(' ')
			writeFormulaString(b, p, domain, names, step, bindings)
		}
		b.WriteByte(')')
	case FormulaExists, FormulaForall:
		if f.kind == FormulaExists {
			b.WriteString("(exists (")
		} else {
			b.WriteString("(forall (")
		}
		for i, v := range f.QuantifiedVars {
			if i > 0 {
				b.WriteByte(' ')
			}
			writeTermString(b, v, names, step, bindings)
		}
		b.WriteString(") ")
		if f.Body != nil {
			writeFormulaString(b, *f.Body, domain, names, step, bindings)
		}
		b.WriteByte(')')
	case FormulaEquality, FormulaInequality:
		if f.kind == FormulaEquality {
			b.WriteString("(= ")
		} else {
			b.WriteString("(/= ")
		}
		writeTermString(b, f.Left, names, f.LeftStep, bindings)
		b.WriteByte(' ')
		writeTermString(b, f.Right, names, f.RightStep, bindings)
		b.WriteByte(')')
	default:
		b.WriteString("<unknown-formula>")
	}
}

// timingPrefix renders the timing wrapper plans.cc prints before a link's
// or open condition's condition ("at start ", "over all ", "at end ").
func timingPrefix(t Timing) string {
	switch t {
	case TimingAtStart:
		return "at start "
	case TimingOverAll:
		return "over all "
	case TimingAtEnd:
		return "at end "
	default:
		return ""
	}
}

// actionString renders a step's instantiated action: its name followed by
// each parameter resolved through bindings for that step.
func actionString(s Step, names *NameTable, bindings *Bindings) string {
	if s.Action == nil {
		if s.ID == InitID {
			return "<init>"
		}
		return "<goal>"
	}
	var b strings.Builder
	b.WriteByte('(')
	b.WriteString(s.Action.Name)
	for _, param := range s.Action.Parameters {
		b.WriteByte(' ')
		writeTermString(&b, param, names, s.ID, bindings)
	}
	b.WriteByte(')')
	return b.String()
}

// DebugString renders p for diagnostics at the given verbosity level,
// grounded on plans.cc's operator<<(ostream&, const Plan&): level < 2
// prints the scheduled step list plans-cc style ("T: (action args)",
// with "[duration]" for durative steps); level >= 2 prints instead the
// initial atoms and every step's incoming links (with any threatening steps in angle brackets)
// and the remaining open conditions, and level >= 3 also appends the raw
// ordering and binding stores. Callers needing machine-readable plan output
// should use the level < 2 form and stop there; the level >= 2 form is
// for -v2/-v3 debugging only.
func (p *Plan) DebugString(ctx *Context, level int) string {
	names := ctx.Problem.Names()
	domain := ctx.Domain

	var stepIDs []StepID
	p.Steps.Each(func(s Step) bool {
		if s.ID != InitID && s.ID != GoalID {
			stepIDs = append(stepIDs, s.ID)
		}
		return true
	})

	allIDs := append([]StepID{InitID, GoalID}, stepIDs...)
	starts, ends, makespan := p.Orderings.Schedule(allIDs)
	sort.Slice(stepIDs, func(i, j int) bool { return starts[stepIDs[i]] < starts[stepIDs[j]] })

	var b strings.Builder
	if level < 2 {
		fmt.Fprintf(&b, "Makespan: %g", makespan)
		for _, id := range stepIDs {
			s := p.stepByID(id)
			fmt.Fprintf(&b, "\n%g: %s", starts[id], actionString(s, names, p.Bindings))
			if s.Action != nil && s.Action.Durative {
				fmt.Fprintf(&b, "[%g]", ends[id]-starts[id])
			}
		}
		return b.String()
	}

	b.WriteString("Initial  :")
	for _, atom := range ctx.Problem.InitAtoms() {
		b.WriteByte(' ')
		b.WriteString(formulaString(atom, domain, names, InitID, p.Bindings))
	}

	ordered := append(stepIDs, GoalID)
	for _, id := range ordered {
		if id == GoalID {
			b.WriteString("\n\nGoal      : ")
		} else {
			fmt.Fprintf(&b, "\n\nStep %-3d : %s", id, actionString(p.stepByID(id), names, p.Bindings))
		}
		p.Links.Each(func(l Link) bool {
			if l.To != id {
				return true
			}
			fmt.Fprintf(&b, "\n          %-3d -> (%s%s)", l.From, timingPrefix(l.ConditionTime), formulaString(l.Condition, domain, names, l.To, p.Bindings))
			p.Unsafes.Each(func(u Unsafe) bool {
				if u.Link.Equal(l) {
					fmt.Fprintf(&b, " <%d>", u.Step)
				}
				return true
			})
			return true
		})
		p.OpenConditions.Each(func(oc OpenCondition) bool {
			if oc.Step != id {
				return true
			}
			fmt.Fprintf(&b, "\n           ?? -> (%s%s)", timingPrefix(oc.When), formulaString(oc.Formula, domain, names, oc.Step, p.Bindings))
			return true
		})
	}

	if level > 2 {
		fmt.Fprintf(&b, "\norderings = %+v", p.Orderings)
		fmt.Fprintf(&b, "\nbindings = %s", p.bindingsString(names))
	}

	return b.String()
}

// stepByID linearly scans the Steps chain for id -- debug-only, never
// called from the hot refinement path.
func (p *Plan) stepByID(id StepID) Step {
	var found Step
	p.Steps.Each(func(s Step) bool {
		if s.ID == id {
			found = s
			return false
		}
		return true
	})
	return found
}

// bindingsString renders every step parameter that is bound to an object
// as name=object, for -v3's raw binding-store dump; parameters still
// unbound are left out.
func (p *Plan) bindingsString(names *NameTable) string {
	var b strings.Builder
	first := true
	p.Steps.Each(func(s Step) bool {
		if s.Action == nil {
			return true
		}
		for _, param := range s.Action.Parameters {
			bound := p.Bindings.Binding(param, s.ID)
			if bound.IsVariable() {
				continue
			}
			if !first {
				b.WriteByte(' ')
			}
			first = false
			fmt.Fprintf(&b, "%s=%s", param.String(names), bound.String(names))
		}
		return true
	})
	return b.String()
}
