package planner

// BinaryOrderings is the non-durative ordering store of spec.md §4.3.1: an
// n x n boolean matrix before[i][j] meaning "step i precedes step j" in
// the transitive closure, stored row by row so that refining one ordering
// only replaces the rows it touches -- the rest are shared, by map-pointer
// identity, with every sibling plan's BinaryOrderings.
//
// Grounded on domain.go's BitSetDomain: rows are immutable bitsets (here
// represented as read-only sets of successor step ids) adapted from
// per-value membership to per-step precedence.
type BinaryOrderings struct {
	// row[a] is the set of steps that a is known to precede. Each row map
	// is never mutated after being published into a BinaryOrderings value;
	// Refine always builds fresh row maps for the rows it changes and
	// reuses the old map pointer for every other row.
	row map[StepID]map[StepID]bool
}

// EmptyBinaryOrderings is the initial, empty ordering store.
var EmptyBinaryOrderings = &BinaryOrderings{row: map[StepID]map[StepID]bool{}}

func (bo *BinaryOrderings) successors(a StepID) map[StepID]bool {
	if bo == nil {
		return nil
	}
	return bo.row[a]
}

// Before reports whether a precedes b in the transitive closure.
func (bo *BinaryOrderings) Before(a, b StepID) bool {
	return bo.successors(a)[b]
}

// PossiblyBefore reports whether a could still be ordered before b: true
// unless a==b or b is already known to precede a. Init (step 0) trivially
// precedes everything and Goal trivially follows everything.
func (bo *BinaryOrderings) PossiblyBefore(a StepID, b StepID) bool {
	if a == b {
		return false
	}
	if a == InitID || b == GoalID {
		return true
	}
	if a == GoalID || b == InitID {
		return false
	}
	return !bo.Before(b, a)
}

// PossiblyConcurrent reports whether neither ordering is forced yet.
func (bo *BinaryOrderings) PossiblyConcurrent(a, b StepID) bool {
	return a != b && !bo.Before(a, b) && !bo.Before(b, a)
}

// Refine adds the precedence i < j (and everything implied by transitive
// closure) and returns the new store, or (nil, false) if doing so would
// introduce a cycle (j already precedes i).
func (bo *BinaryOrderings) Refine(i, j StepID) (*BinaryOrderings, bool) {
	if bo == nil {
		bo = EmptyBinaryOrderings
	}
	if bo.Before(j, i) || i == j {
		return nil, false
	}
	if bo.Before(i, j) {
		return bo, true // already implied
	}

	predecessorsOfI := map[StepID]bool{i: true}
	for k, succ := range bo.row {
		if succ[i] {
			predecessorsOfI[k] = true
		}
	}
	successorsOfJ := map[StepID]bool{j: true}
	for l := range bo.successors(j) {
		successorsOfJ[l] = true
	}

	newRow := make(map[StepID]map[StepID]bool, len(bo.row)+len(predecessorsOfI))
	for k, v := range bo.row {
		newRow[k] = v
	}
	for k := range predecessorsOfI {
		old := newRow[k]
		fresh := make(map[StepID]bool, len(old)+len(successorsOfJ))
		for s := range old {
			fresh[s] = true
		}
		for l := range successorsOfJ {
			fresh[l] = true
		}
		newRow[k] = fresh
	}
	return &BinaryOrderings{row: newRow}, true
}

// Schedule assigns each step an integer "topological depth" (its longest
// path length from Init), treating each step as contributing one unit of
// duration, and returns the makespan (the maximum depth reached, i.e. the
// depth of Goal).
func (bo *BinaryOrderings) Schedule(steps []StepID) (starts, ends map[StepID]float64, makespan float64) {
	starts = make(map[StepID]float64)
	ends = make(map[StepID]float64)
	depth := make(map[StepID]int)

	all := append([]StepID{InitID}, steps...)
	all = append(all, GoalID)

	changed := true
	for changed {
		changed = false
		for _, s := range all {
			best := depth[s]
			for pred, succ := range bo.row {
				if succ[s] {
					if cand := depth[pred] + 1; cand > best {
						best = cand
						changed = changed || best != depth[s]
					}
				}
			}
			if best != depth[s] {
				depth[s] = best
				changed = true
			}
		}
	}
	for _, s := range all {
		starts[s] = float64(depth[s])
		ends[s] = float64(depth[s] + 1)
		if ends[s] > makespan {
			makespan = ends[s]
		}
	}
	return starts, ends, makespan
}
