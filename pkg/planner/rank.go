package planner

import "strings"

// RankComponentKind names one contributor to a plan's rank vector
// (spec.md §4.7's component list). A RankVector is an ordered tuple of
// these, compared lexicographically: the first component orders, ties
// break on the next, and so on -- giving deterministic tie-breaking
// across heuristically equal plans.
type RankComponentKind int

const (
	RankLIFO             RankComponentKind = iota // -serial: later plans sort first
	RankFIFO                                      // serial: earlier plans sort first
	RankOpenCondCount                             // len(open-conditions)
	RankUnsafeCount                               // len(unsafes)
	RankHasUnsafe                                 // 1 if any unsafe, else 0
	RankStepsPlusOpen                             // num-steps + w*open-conds
	RankStepsPlusFlaws                            // num-steps + w*(open-conds+unsafes)
	RankAddCost                                   // add_cost(open-conditions) + num-steps
	RankWork                                      // add_work(open-conditions)
	RankMakespan                                  // planning-graph makespan estimate
)

// RankSpec names the ordered components and weight for one flaw order's
// priority queue (spec.md §6's -h flag, composable with "/").
type RankSpec struct {
	Components []RankComponentKind
	Weight     float64 // -w; defaults to 1 when zero
}

// RankVector is one plan's cached rank under a RankSpec: a fixed-size
// tuple of floats compared lexicographically by Less.
type RankVector []float64

// Less reports whether v sorts before o (v is a better/earlier plan).
func (v RankVector) Less(o RankVector) bool {
	n := len(v)
	if len(o) < n {
		n = len(o)
	}
	for i := 0; i < n; i++ {
		if v[i] != o[i] {
			return v[i] < o[i]
		}
	}
	return len(v) < len(o)
}

// isHeuristicComponent reports whether k is derived from the planning
// graph's estimated cost (as opposed to a structural count or a serial
// id), and so is the kind of component -w's weighting is meant to scale.
func isHeuristicComponent(k RankComponentKind) bool {
	switch k {
	case RankAddCost, RankWork, RankMakespan:
		return true
	default:
		return false
	}
}

// Weighted returns a copy of v with every component kinds identifies as
// heuristic-derived (RankAddCost, RankWork, RankMakespan) scaled by w,
// leaving structural counts and serial-id components untouched. This is
// the -w weighted rank combination (heuristics.cc, SPEC_FULL.md §10);
// ComputeRank applies it automatically from spec.Weight, so callers only
// need this directly when re-weighting an already-computed vector (e.g.
// comparing the same plan under several candidate weights without
// recomputing planning-graph heuristics).
func (v RankVector) Weighted(kinds []RankComponentKind, w float64) RankVector {
	out := make(RankVector, len(v))
	copy(out, v)
	for i := 0; i < len(out) && i < len(kinds); i++ {
		if isHeuristicComponent(kinds[i]) {
			out[i] *= w
		}
	}
	return out
}

// ComputeRank evaluates spec's components for p under ctx's planning
// graph, in serial-id, open-condition and unsafe terms already resident
// on p.
func ComputeRank(p *Plan, spec RankSpec, ctx *Context) RankVector {
	w := spec.Weight
	if w == 0 {
		w = 1
	}
	openCount := p.OpenConditions.Length()
	unsafeCount := p.Unsafes.Length()
	numSteps := p.Steps.Length()

	var addCost, addWork, makespan float64
	p.OpenConditions.Each(func(oc OpenCondition) bool {
		h := ctx.Graph.LiteralHeuristic(oc.Formula)
		if !h.IsInfinite() {
			addCost += h.AddCost
			addWork += h.AddWork
			if h.Makespan > makespan {
				makespan = h.Makespan
			}
		} else {
			addCost += 1e6 // penalise but don't poison an otherwise-comparable vector
		}
		return true
	})

	out := make(RankVector, 0, len(spec.Components))
	for _, k := range spec.Components {
		switch k {
		case RankLIFO:
			out = append(out, -float64(p.Serial))
		case RankFIFO:
			out = append(out, float64(p.Serial))
		case RankOpenCondCount:
			out = append(out, float64(openCount))
		case RankUnsafeCount:
			out = append(out, float64(unsafeCount))
		case RankHasUnsafe:
			if unsafeCount > 0 {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		case RankStepsPlusOpen:
			out = append(out, float64(numSteps)+w*float64(openCount))
		case RankStepsPlusFlaws:
			out = append(out, float64(numSteps)+w*float64(openCount+unsafeCount))
		case RankAddCost:
			out = append(out, addCost+float64(numSteps))
		case RankWork:
			out = append(out, addWork)
		case RankMakespan:
			out = append(out, makespan)
		default:
			panic(NewInternalInvariantError("ComputeRank: unknown rank component"))
		}
	}
	return out.Weighted(spec.Components, w)
}

// rankComponentNames maps spec.md §6's -h token vocabulary onto
// RankComponentKind, composable with "/" the same way flaw orders compose
// criteria: each token contributes one tie-breaking component, tried in
// the order given. ADDR and ADD share a component (the reuse distinction
// lives in flaw-order tactics, not in the rank vector itself -- spec.md
// never defines a reuse-aware rank component separately).
var rankComponentNames = map[string]RankComponentKind{
	"LIFO":    RankLIFO,
	"FIFO":    RankFIFO,
	"S+OC":    RankStepsPlusOpen,
	"S+OCU":   RankStepsPlusFlaws,
	"UCPOP":   RankStepsPlusOpen,
	"ADD":     RankAddCost,
	"ADDR":    RankAddCost,
	"WORK":    RankWork,
	"MAKESPAN": RankMakespan,
}

// ParseRankSpec parses spec.md §6's -h grammar, e.g. "ADD/LIFO", into a
// RankSpec with the given weight (-w; 0 defaults to 1 at ComputeRank
// time).
func ParseRankSpec(text string, weight float64) (RankSpec, error) {
	var kinds []RankComponentKind
	for _, tok := range strings.Split(text, "/") {
		tok = strings.TrimSpace(tok)
		k, ok := rankComponentNames[tok]
		if !ok {
			return RankSpec{}, NewConfigError("-h", "unknown heuristic component "+tok)
		}
		kinds = append(kinds, k)
	}
	if len(kinds) == 0 {
		return RankSpec{}, NewConfigError("-h", "empty heuristic spec")
	}
	return RankSpec{Components: kinds, Weight: weight}, nil
}
