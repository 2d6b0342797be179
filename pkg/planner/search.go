package planner

import (
	"container/heap"
	"time"

	"go.uber.org/zap"
)

// Algorithm selects the search strategy of spec.md §4.7.
type Algorithm int

const (
	AlgorithmAStar Algorithm = iota
	AlgorithmIDAStar
	AlgorithmHillClimbing
)

// planEntry pairs a plan with the rank it was pushed under, for the
// priority queue's ordering.
type planEntry struct {
	plan *Plan
	rank RankVector
}

// planQueue is a binary-heap priority queue of planEntry, ordered by
// RankVector.Less, implementing container/heap.Interface.
type planQueue []planEntry

func (q planQueue) Len() int            { return len(q) }
func (q planQueue) Less(i, j int) bool  { return q[i].rank.Less(q[j].rank) }
func (q planQueue) Swap(i, j int)       { q[i], q[j] = q[j], q[i] }
func (q *planQueue) Push(x interface{}) { *q = append(*q, x.(planEntry)) }
func (q *planQueue) Pop() interface{} {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[:n-1]
	return item
}

// orderQueue is one flaw-selection order's search state: its own
// priority queue, its FlawOrder (criteria plus NEW/REUSE/locality
// bookkeeping), its rank spec, and its remaining plan-generation quota
// (spec.md §4.7's "round-robin... per-iteration quota").
type orderQueue struct {
	order    *FlawOrder
	rankSpec RankSpec
	queue    planQueue
	quota    int
	retired  bool
	popped   int

	// retiredByQuota distinguishes this round's retirement cause: true
	// when popped reached quota with candidates still queued, false when
	// the queue was (or became) structurally empty. Search uses this to
	// tell quota exhaustion apart from genuine exhaustion of the search
	// space (spec.md §6's -l flag vs. §4.5's "no solution").
	retiredByQuota bool

	// deferred holds plans popped while over the current IDA* f-limit;
	// ownership of their chain references transfers here rather than
	// being released, since the plan must survive to the next, larger
	// f-limit iteration (spec.md §4.7's "plans with rank > limit are
	// deferred to the next iteration").
	deferred []planEntry
}

// SearchConfig bundles the tunables spec.md §6's CLI flags expose.
type SearchConfig struct {
	Algorithm   Algorithm
	Orders      []*FlawOrder
	RankSpecs   []RankSpec // parallel to Orders; Orders[i] ranks by RankSpecs[i]
	Quota       int        // plans an order may pop in total before it retires
	WallClock   time.Duration
	RandomizeOC bool // -r: recorded only; neither Search nor refinement reads it, so open conditions are never shuffled
}

// DefaultQuota is the per-order plan-generation quota used when
// SearchConfig.Quota is left at zero.
const DefaultQuota = 1000

// Search drives refinement search to a complete plan or exhaustion,
// implementing spec.md §4.7: one priority queue per flaw order,
// round-robin visiting under a per-order quota, and a periodic wall-clock
// check between plan pops (the only interruption point, per spec.md §5).
// Quotas are not doubled when orders retire on them: once every order has
// retired on its quota with plans still queued, Search returns
// ReasonSearchLimitReached.
func Search(ctx *Context, cfg SearchConfig) (*Plan, error) {
	if len(cfg.Orders) == 0 {
		return nil, NewConfigError("-f", "at least one flaw order is required")
	}
	quota := cfg.Quota
	if quota <= 0 {
		quota = DefaultQuota
	}

	root, err := NewInitialPlan(ctx)
	if err != nil {
		return nil, err
	}

	orders := make([]*orderQueue, len(cfg.Orders))
	for i, fo := range cfg.Orders {
		spec := RankSpec{Components: []RankComponentKind{RankAddCost, RankFIFO}}
		if i < len(cfg.RankSpecs) {
			spec = cfg.RankSpecs[i]
		}
		oq := &orderQueue{order: fo, rankSpec: spec, quota: quota}
		// Every order queue after the first needs its own reference to
		// root's chains: root itself already holds the reference the
		// first queue consumes.
		if i > 0 {
			root.Steps.retain()
			root.Links.retain()
			root.Unsafes.retain()
			root.OpenConditions.retain()
			root.refinementCounts.retain()
		}
		rootRank := ComputeRank(root, spec, ctx)
		heap.Push(&oq.queue, planEntry{plan: root, rank: rootRank})
		orders[i] = oq
	}

	deadline := time.Time{}
	if cfg.WallClock > 0 {
		deadline = time.Now().Add(cfg.WallClock)
	}

	usesLimit := cfg.Algorithm == AlgorithmIDAStar
	limit := 0.0
	if usesLimit {
		rootRank := ComputeRank(root, orders[0].rankSpec, ctx)
		if len(rootRank) > 0 {
			limit = rootRank[0]
		}
	}

	for {
		anyActive := false
		for _, oq := range orders {
			if oq.retired {
				continue
			}
			anyActive = true
		}
		if !anyActive {
			for _, oq := range orders {
				oq.retired = false
				oq.retiredByQuota = false
				oq.quota *= 2
			}
			ctx.Logger.Debug("all flaw orders exhausted, doubling quotas", zap.Int("new_quota", orders[0].quota))
		}

		expandedAny := false
		nextLimit := posInf

		for _, oq := range orders {
			if oq.retired || oq.queue.Len() == 0 {
				oq.retired = true
				continue
			}
			if !deadline.IsZero() && time.Now().After(deadline) {
				return nil, NewSearchExhaustionError(ReasonSearchLimitReached)
			}
			if oq.popped >= oq.quota {
				oq.retired = true
				oq.retiredByQuota = true
				continue
			}

			entry := heap.Pop(&oq.queue).(planEntry)
			oq.popped++
			ctx.Metrics.IncNodesExpanded()

			if usesLimit && len(entry.rank) > 0 && entry.rank[0] > limit {
				if entry.rank[0] < nextLimit {
					nextLimit = entry.rank[0]
				}
				oq.deferred = append(oq.deferred, entry)
				continue
			}
			expandedAny = true

			if entry.plan.IsComplete() {
				return entry.plan, nil
			}

			children, err := expandOne(ctx, oq.order, entry.plan)
			entry.plan.Steps.Release()
			entry.plan.Links.Release()
			entry.plan.Unsafes.Release()
			entry.plan.OpenConditions.Release()
			entry.plan.refinementCounts.Release()
			if err != nil {
				ctx.Metrics.IncBacktracks()
				continue
			}
			if len(children) == 0 {
				ctx.Metrics.IncBacktracks()
				continue
			}

			if cfg.Algorithm == AlgorithmHillClimbing {
				best := bestChild(ctx, children, oq.rankSpec)
				pushChild(oq, ctx, best)
				for _, c := range children {
					if c != best {
						c.Steps.Release()
						c.Links.Release()
						c.Unsafes.Release()
						c.OpenConditions.Release()
						c.refinementCounts.Release()
					}
				}
			} else {
				for _, c := range children {
					pushChild(oq, ctx, c)
				}
			}
			depth := 0
			for _, o := range orders {
				if !o.retired {
					depth += o.queue.Len()
				}
			}
			ctx.Metrics.SetQueueDepth(depth)
		}

		if !expandedAny {
			// Every order retired this round without expanding a plan.
			// If every one of them retired specifically because it hit
			// its quota -- not because its queue ran dry -- and at least
			// one still has unexpanded candidates waiting, the search
			// space was not exhausted; the quota was. Report that
			// distinctly from "no solution" (spec.md §6's -l flag, §8's
			// S6 scenario) instead of doubling past a limit the caller
			// asked us to respect.
			allQuotaRetired := len(orders) > 0
			quotaWorkRemains := false
			for _, oq := range orders {
				if !(oq.retired && oq.retiredByQuota) {
					allQuotaRetired = false
				}
				if oq.retired && oq.retiredByQuota && oq.queue.Len() > 0 {
					quotaWorkRemains = true
				}
			}
			if allQuotaRetired && quotaWorkRemains {
				return nil, NewSearchExhaustionError(ReasonSearchLimitReached)
			}

			if usesLimit && nextLimit < posInf {
				limit = nextLimit
				for _, oq := range orders {
					if len(oq.deferred) == 0 {
						continue
					}
					for _, e := range oq.deferred {
						heap.Push(&oq.queue, e)
					}
					oq.deferred = nil
					if oq.queue.Len() > 0 {
						oq.retired = false
					}
				}
				continue
			}
			return nil, NewSearchExhaustionError(ReasonNoSolution)
		}
	}
}

const posInf = 1e18

func pushChild(oq *orderQueue, ctx *Context, p *Plan) {
	rank := ComputeRank(p, oq.rankSpec, ctx)
	p.Rank = rank
	heap.Push(&oq.queue, planEntry{plan: p, rank: rank})
}

func bestChild(ctx *Context, children []*Plan, spec RankSpec) *Plan {
	best := children[0]
	bestRank := ComputeRank(best, spec, ctx)
	for _, c := range children[1:] {
		r := ComputeRank(c, spec, ctx)
		if r.Less(bestRank) {
			best, bestRank = c, r
		}
	}
	return best
}

// expandOne resolves one flaw of plan under order, or -- if plan has no
// flaws but still has unbound step parameters -- instantiates the next
// unbound parameter (spec.md §4.5.4), returning the resulting children.
func expandOne(ctx *Context, order *FlawOrder, plan *Plan) ([]*Plan, error) {
	flaw, ok := order.Select(ctx, plan)
	if !ok {
		return plan.InstantiateNext(ctx)
	}
	return plan.RefineFlaw(ctx, flaw)
}
