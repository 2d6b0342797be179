package planner

import "math"

// DefaultThreshold is the minimum separation enforced between ordered
// steps when no -t flag overrides it, expressed in the same real-valued
// time unit as durations (spec.md §4.3.2).
const DefaultThreshold = 0.01

// infDist is the saturating "no known bound" distance, kept far below
// math.MaxInt to tolerate repeated addition during propagation without
// overflow.
const infDist = math.MaxInt32 / 4

// stnNode identifies one time-point: a step's start or end instant.
type stnNode struct {
	Step StepID
	Time StepTime
}

// TemporalOrderings is the durative ordering store of spec.md §4.3.2: a
// Simple Temporal Network over per-step start/end time-points plus a
// distinguished origin (absolute zero), represented as an all-pairs
// distance matrix in integral units of Threshold, consistency-closed by
// incremental shortest paths on every Refine.
//
// Grounded on cumulative.go's discrete-time compulsory-part reasoning
// (start/duration arithmetic over integer time units) and
// interval_arithmetic.go's bound-propagation idiom, adapted here from
// per-variable bound tightening to an all-pairs distance matrix.
type TemporalOrderings struct {
	Threshold float64

	dist      map[int]map[int]int
	nodeIndex map[stnNode]int
	nodes     []stnNode // nodes[0] is always the origin (zero-valued stnNode is never a real node)

	goalAchievers *Chain[StepID]
}

const originNode = 0

// NewTemporalOrderings creates an empty STN with the given minimum
// step-separation threshold (spec.md §6's -t flag).
func NewTemporalOrderings(threshold float64) *TemporalOrderings {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	t := &TemporalOrderings{
		Threshold: threshold,
		dist:      map[int]map[int]int{originNode: {originNode: 0}},
		nodeIndex: map[stnNode]int{},
		nodes:     []stnNode{{Step: -1 << 30, Time: StepStart}}, // placeholder for origin slot
	}
	return t
}

func (t *TemporalOrderings) units(v float64) int {
	return int(math.Round(v / t.Threshold))
}

func (t *TemporalOrderings) clone() *TemporalOrderings {
	nt := &TemporalOrderings{
		Threshold:     t.Threshold,
		dist:          make(map[int]map[int]int, len(t.dist)),
		nodeIndex:     make(map[stnNode]int, len(t.nodeIndex)),
		nodes:         append([]stnNode(nil), t.nodes...),
		goalAchievers: t.goalAchievers,
	}
	nt.goalAchievers.retain()
	for k, row := range t.dist {
		newRow := make(map[int]int, len(row))
		for kk, vv := range row {
			newRow[kk] = vv
		}
		nt.dist[k] = newRow
	}
	for k, v := range t.nodeIndex {
		nt.nodeIndex[k] = v
	}
	return nt
}

// nodeID returns the existing node id for (step,time), creating it (with
// unconstrained distances) if absent.
func (t *TemporalOrderings) nodeID(step StepID, when StepTime) int {
	key := stnNode{Step: step, Time: when}
	if id, ok := t.nodeIndex[key]; ok {
		return id
	}
	id := len(t.nodes)
	t.nodes = append(t.nodes, key)
	t.nodeIndex[key] = id
	t.dist[id] = map[int]int{id: 0}
	for other := range t.dist {
		if other == id {
			continue
		}
		t.dist[other][id] = infDist
		t.dist[id][other] = infDist
	}
	// time(node) >= 0 by default: distance from node to origin is unbounded
	// above (node can be arbitrarily later than zero); distance from origin
	// to node defaults to infinity until a duration/ordering bounds it, but
	// node cannot precede the origin, i.e. time(node)-time(origin) has no
	// lower bound requirement beyond 0, enforced via the origin row below.
	t.dist[id][originNode] = 0 // time(origin) - time(node) <= 0  =>  time(node) >= 0
	return id
}

func (t *TemporalOrderings) get(u, v int) int {
	if u == v {
		return 0
	}
	row, ok := t.dist[u]
	if !ok {
		return infDist
	}
	d, ok := row[v]
	if !ok {
		return infDist
	}
	return d
}

// tighten posts d[u][v] <= w and restores consistency by incremental
// all-pairs shortest paths, failing (returning false) if a negative cycle
// results.
func (t *TemporalOrderings) tighten(u, v, w int) bool {
	if w >= t.get(u, v) {
		return true // no tightening needed
	}
	t.dist[u][v] = w
	for p := range t.dist {
		dpu := t.get(p, u)
		if dpu >= infDist {
			continue
		}
		for q := range t.dist {
			dvq := t.get(v, q)
			if dvq >= infDist {
				continue
			}
			cand := dpu + w + dvq
			if cand < t.get(p, q) {
				if _, ok := t.dist[p]; !ok {
					t.dist[p] = map[int]int{}
				}
				t.dist[p][q] = cand
			}
		}
	}
	// get(k, k) always answers 0, so read the stored diagonal directly.
	for k := range t.dist {
		if t.dist[k][k] < 0 {
			return false
		}
	}
	return true
}

// RefineOrdering posts "after's time-point occurs at least minSeparation
// after before's time-point" and returns the new store, or (nil, false) on
// infeasibility. Both time-points must already have been introduced via
// RefineNewStep (Init/Goal are introduced lazily on first use).
func (t *TemporalOrderings) RefineOrdering(before StepID, beforeTime StepTime, after StepID, afterTime StepTime, minSeparation float64) (*TemporalOrderings, bool) {
	nt := t.clone()
	u := nt.nodeID(after, afterTime)
	v := nt.nodeID(before, beforeTime)
	w := -nt.units(minSeparation)
	if !nt.tighten(u, v, w) {
		return nil, false
	}
	return nt, true
}

// RefineNewStep introduces a step's start/end time-points, bounding their
// separation by the action's constant min/max duration, and optionally a
// start-time lower bound derived from the planning graph's heuristic
// makespan.
func (t *TemporalOrderings) RefineNewStep(step StepID, minDur, maxDur float64, startLowerBound float64) (*TemporalOrderings, bool) {
	nt := t.clone()
	start := nt.nodeID(step, StepStart)
	end := nt.nodeID(step, StepEnd)
	if !nt.tighten(start, end, nt.units(maxDur)) {
		return nil, false
	}
	if !nt.tighten(end, start, -nt.units(minDur)) {
		return nil, false
	}
	if startLowerBound > 0 {
		if !nt.tighten(start, originNode, -nt.units(startLowerBound)) {
			return nil, false
		}
	}
	return nt, true
}

// AddGoalAchiever records step as a goal achiever, so its end time counts
// toward the makespan Schedule reports. It posts no ordering constraint.
func (t *TemporalOrderings) AddGoalAchiever(step StepID) *TemporalOrderings {
	nt := t.clone()
	nt.goalAchievers = Cons(step, t.goalAchievers)
	return nt
}

// PossiblyBefore reports whether i's time-point could still be ordered
// strictly before j's: d[node(j,tj)][node(i,ti)] > 0, i.e. the upper bound
// on time(i,ti)-time(j,tj) is still positive (threshold is the minimum
// separation between ordered steps, so equality is not "before").
func (t *TemporalOrderings) PossiblyBefore(i StepID, ti StepTime, j StepID, tj StepTime) bool {
	jn, jok := t.nodeIndex[stnNode{Step: j, Time: tj}]
	in, iok := t.nodeIndex[stnNode{Step: i, Time: ti}]
	if !jok || !iok {
		return true // no constraints posted yet between them
	}
	return t.get(jn, in) > 0
}

// Schedule derives concrete start/end times for every known step,
// minimizing each time-point given the current STN, and returns the
// makespan (the latest end time among recorded goal achievers). The
// steps parameter is unused; it keeps the signature the same as
// BinaryOrderings.Schedule's, so OrderingStore can call either one. The
// STN already knows every step it has a time-point for.
func (t *TemporalOrderings) Schedule(_ []StepID) (starts, ends map[StepID]float64, makespan float64) {
	starts = make(map[StepID]float64)
	ends = make(map[StepID]float64)
	for node, id := range t.nodeIndex {
		v := -float64(t.get(id, originNode)) * t.Threshold
		if node.Time == StepStart {
			starts[node.Step] = v
		} else {
			ends[node.Step] = v
		}
	}
	t.goalAchievers.Each(func(s StepID) bool {
		if e, ok := ends[s]; ok && e > makespan {
			makespan = e
		}
		return true
	})
	return starts, ends, makespan
}

// Makespan returns the makespan implied by ends (typically the ends map
// Schedule returns), i.e. the max end time over goal achievers.
func (t *TemporalOrderings) Makespan(ends map[StepID]float64) float64 {
	var m float64
	t.goalAchievers.Each(func(s StepID) bool {
		if e, ok := ends[s]; ok && e > m {
			m = e
		}
		return true
	})
	return m
}
