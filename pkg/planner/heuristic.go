package planner

import "math"

// HeuristicValue is the planning graph's three-component cost estimate for
// a literal or formula, per spec.md §4.4: additive cost, amount of work
// (achiever count), and a critical-path makespan estimate.
type HeuristicValue struct {
	AddCost  float64
	AddWork  float64
	Makespan float64
}

// InfiniteHeuristic is the distinguished saturating "unreachable" value.
var InfiniteHeuristic = HeuristicValue{AddCost: math.Inf(1), AddWork: math.Inf(1), Makespan: math.Inf(1)}

// ZeroHeuristic is the value of a literal true in the initial state.
var ZeroHeuristic = HeuristicValue{}

// IsInfinite reports whether h denotes "unreachable."
func (h HeuristicValue) IsInfinite() bool {
	return math.IsInf(h.AddCost, 1)
}

// Add sums cost and work and takes the max of makespan -- the value of a
// conjunction of independently-achieved literals (additive heuristic).
func (h HeuristicValue) Add(o HeuristicValue) HeuristicValue {
	if h.IsInfinite() || o.IsInfinite() {
		return InfiniteHeuristic
	}
	ms := h.Makespan
	if o.Makespan > ms {
		ms = o.Makespan
	}
	return HeuristicValue{AddCost: h.AddCost + o.AddCost, AddWork: h.AddWork + o.AddWork, Makespan: ms}
}

// Min returns whichever of h and o has the smaller AddCost, ties broken
// by the smaller AddWork; the other components come along with the chosen
// value -- the value of a disjunction (cheapest disjunct).
func (h HeuristicValue) Min(o HeuristicValue) HeuristicValue {
	if h.AddCost < o.AddCost {
		return h
	}
	if o.AddCost < h.AddCost {
		return o
	}
	if h.AddWork <= o.AddWork {
		return h
	}
	return o
}

// Less orders two heuristic values for ranking purposes: by AddCost, then
// AddWork, then Makespan.
func (h HeuristicValue) Less(o HeuristicValue) bool {
	if h.AddCost != o.AddCost {
		return h.AddCost < o.AddCost
	}
	if h.AddWork != o.AddWork {
		return h.AddWork < o.AddWork
	}
	return h.Makespan < o.Makespan
}
