package planner

import (
	"math"
	"strconv"
	"strings"
)

// flawKindMask is spec.md §4.6's flaw-kind classification, distinct from
// (and finer-grained than) the core FlawKind tag: n/s split threats by
// separability, o/t/u split open conditions by staticness and whether
// they are themselves threatened, and l marks "same step as the
// previously-selected open condition" regardless of kind. o dominates
// the open-condition subcategories (t, u): a criterion naming o matches
// every open condition, whether or not it also names t or u.
type flawKindMask struct {
	NonSeparableThreat bool // n
	SeparableThreat    bool // s
	AnyOpenCondition   bool // o
	Local              bool // l
	StaticOpenCond     bool // t
	ThreatenedOpenCond bool // u
}

func (m flawKindMask) empty() bool {
	return !m.NonSeparableThreat && !m.SeparableThreat && !m.AnyOpenCondition && !m.Local && !m.StaticOpenCond && !m.ThreatenedOpenCond
}

// tactic enumerates spec.md §4.6's ordering tactics. The heuristic-ranked
// tactics (LC/MC/LW/MW) carry their cost basis (AddCost or Makespan/work)
// and reuse modifier separately in criterion, not in the tactic tag
// itself, since "ADD" vs "MAKESPAN" and the R modifier compose
// orthogonally with LC/MC/LW/MW.
type tactic int

const (
	tacticLIFO tactic = iota
	tacticFIFO
	tacticR
	tacticLR
	tacticMR
	tacticNEW
	tacticREUSE
	tacticLC
	tacticMC
	tacticLW
	tacticMW
)

// heuristicBasis selects whether a LC/MC/LW/MW tactic ranks by the
// planning graph's additive cost estimate or its makespan estimate.
type heuristicBasis int

const (
	basisAdd heuristicBasis = iota
	basisMakespan
)

// criterion is one element of a flaw-selection order: spec.md §4.6's
// (flaw-kind mask, refinement cap, ordering tactic) triple.
type criterion struct {
	Mask   flawKindMask
	Cap    int // math.MaxInt: unbounded ("k = infinity")
	Tactic tactic
	Basis  heuristicBasis
	Reuse  bool // the R modifier on LC/MC/LW/MW: rank by an existing step's heuristic
}

// FlawOrder is a parsed flaw-selection order: an ordered sequence of
// criteria, tried in turn against the current plan's flaw set (spec.md
// §4.6's "scan criteria in order").
type FlawOrder struct {
	Name       string
	Criteria   []criterion
	prevStep   StepID
	havePrev   bool
}

// matches reports whether f's effective flaw-kind mask intersects m,
// computing threat separability, open-condition staticness, and threat
// status from ctx/plan context the core FlawKind enum alone doesn't carry.
func (m flawKindMask) matches(ctx *Context, p *Plan, f Flaw, prevStep StepID, havePrev bool) bool {
	switch f.Kind {
	case FlawUnsafe:
		separable := threatIsSeparable(p, f.Threat)
		if separable && m.SeparableThreat {
			return true
		}
		if !separable && m.NonSeparableThreat {
			return true
		}
		return false
	case FlawOpenCondition, FlawDisjunction, FlawInequality:
		if m.AnyOpenCondition {
			return true
		}
		if m.StaticOpenCond && openConditionIsStatic(ctx, f.OpenCond) {
			return true
		}
		if m.ThreatenedOpenCond && openConditionIsThreatened(p, f.OpenCond) {
			return true
		}
		if m.Local && havePrev && f.OpenCond.Step == prevStep {
			return true
		}
		return false
	default:
		return false
	}
}

// threatIsSeparable reports whether a threat could be resolved by
// separation (a consistent inequality exists between the threatening
// effect's arguments and the link condition's), as opposed to needing
// promotion/demotion.
func threatIsSeparable(p *Plan, u Unsafe) bool {
	_, ok := p.Bindings.Unify(u.AddLiteral, u.Step, u.Link.Condition, u.Link.To)
	return ok
}

// openConditionIsStatic reports whether oc's predicate is never the
// target of any domain effect (spec.md's `t` mask bit).
func openConditionIsStatic(ctx *Context, oc OpenCondition) bool {
	if !oc.Formula.IsLiteral() {
		return false
	}
	return ctx.Domain.IsStatic(oc.Formula.Predicate)
}

// openConditionIsThreatened reports whether oc's step/formula already
// appears as a threatened link's condition among p's unsafes (spec.md's
// `u` mask bit).
func openConditionIsThreatened(p *Plan, oc OpenCondition) bool {
	found := false
	p.Unsafes.Each(func(u Unsafe) bool {
		if u.Link.To == oc.Step && formulaEqual(u.Link.Condition, oc.Formula) {
			found = true
			return false
		}
		return true
	})
	return found
}

// flawRank is the per-criterion comparison key computed for one flaw; two
// flaws are compared lexicographically by (key, tiebreak) under a given
// tactic, with ties broken by the tactic's own secondary rule (LR/MR by
// refinement count, NEW/REUSE by whether the open condition needs a new
// step, LC/MC/LW/MW by heuristic value).
type flawRank struct {
	primary float64
	index   int // position in the candidate slice, used by LIFO/FIFO/R bookkeeping
}

// Select implements spec.md §4.6's selection algorithm: scan criteria in
// order; for the first criterion with at least one matching, under-cap
// flaw, pick the best flaw under that criterion's tactic (ties broken
// arbitrarily but deterministically, since a later criterion only gets a
// chance when no earlier one bound a flaw at all -- "cannot be improved
// by a later criterion" in practice means exactly this package's reading:
// the first criterion to produce any candidate wins).
func (fo *FlawOrder) Select(ctx *Context, p *Plan) (Flaw, bool) {
	flaws := p.Flaws()
	if len(flaws) == 0 {
		return Flaw{}, false
	}

	for _, c := range fo.Criteria {
		var candidates []Flaw
		for _, f := range flaws {
			if f.Refinements > c.Cap {
				continue
			}
			if !c.Mask.matches(ctx, p, f, fo.prevStep, fo.havePrev) {
				continue
			}
			candidates = append(candidates, f)
		}
		if len(candidates) == 0 {
			continue
		}
		chosen := fo.rankCandidates(ctx, p, candidates, c)
		fo.prevStep = flawStepOf(chosen)
		fo.havePrev = true
		return chosen, true
	}
	return Flaw{}, false
}

func flawStepOf(f Flaw) StepID {
	if f.Kind == FlawUnsafe {
		return f.Threat.Step
	}
	return f.OpenCond.Step
}

// rankCandidates picks the best-ranked flaw among candidates under c's
// tactic.
func (fo *FlawOrder) rankCandidates(ctx *Context, p *Plan, candidates []Flaw, c criterion) Flaw {
	switch c.Tactic {
	case tacticLIFO:
		return candidates[len(candidates)-1]
	case tacticFIFO:
		return candidates[0]
	case tacticR:
		return candidates[ctx.Rand().Intn(len(candidates))]
	case tacticLR:
		return bestBy(candidates, func(f Flaw) float64 { return float64(f.Refinements) })
	case tacticMR:
		return bestBy(candidates, func(f Flaw) float64 { return -float64(f.Refinements) })
	case tacticNEW:
		return bestBy(candidates, func(f Flaw) float64 {
			if openConditionNeedsNewStep(ctx, p, f) {
				return 0
			}
			return 1
		})
	case tacticREUSE:
		return bestBy(candidates, func(f Flaw) float64 {
			if openConditionNeedsNewStep(ctx, p, f) {
				return 1
			}
			return 0
		})
	case tacticLC, tacticMC, tacticLW, tacticMW:
		sign := 1.0
		if c.Tactic == tacticMC || c.Tactic == tacticMW {
			sign = -1.0
		}
		return bestBy(candidates, func(f Flaw) float64 {
			return sign * heuristicRankValue(ctx, p, f, c)
		})
	default:
		panic(NewInternalInvariantError("rankCandidates: unknown tactic"))
	}
}

// bestBy returns the candidate with the smallest key(f), breaking ties by
// earliest position (stable, deterministic).
func bestBy(candidates []Flaw, key func(Flaw) float64) Flaw {
	best := candidates[0]
	bestKey := key(best)
	for _, f := range candidates[1:] {
		k := key(f)
		if k < bestKey {
			best, bestKey = f, k
		}
	}
	return best
}

// openConditionNeedsNewStep reports whether f's open condition has no
// existing reusable step -- i.e. every achiever in the planning graph
// would require a freshly added step -- used by the NEW/REUSE tactics.
func openConditionNeedsNewStep(ctx *Context, p *Plan, f Flaw) bool {
	if f.Kind != FlawOpenCondition {
		return true
	}
	reusable := false
	p.Steps.Each(func(s Step) bool {
		if s.ID == f.OpenCond.Step || s.Action == nil {
			return true
		}
		for ei := range s.Action.Effects {
			eff := &s.Action.Effects[ei]
			if _, ok := p.Bindings.Unify(eff.Literal, s.ID, f.OpenCond.Formula, f.OpenCond.Step); ok {
				reusable = true
				return false
			}
		}
		return true
	})
	return !reusable
}

// heuristicRankValue computes the LC/MC/LW/MW comparison key for a flaw:
// for open conditions, the planning graph's AddCost or Makespan of the
// open condition's formula; for threats, the separating literal's
// implied cost (approximated as the threat's link condition cost, since
// a threat has no single achieving literal of its own). The R modifier
// additionally reports the minimum over any existing step's cost to
// achieve the same literal, modeling reuse-style achievement.
func heuristicRankValue(ctx *Context, p *Plan, f Flaw, c criterion) float64 {
	var h HeuristicValue
	switch f.Kind {
	case FlawUnsafe:
		h = ctx.Graph.LiteralHeuristic(f.Threat.Link.Condition)
	default:
		h = ctx.Graph.LiteralHeuristic(f.OpenCond.Formula)
	}
	if h.IsInfinite() {
		return math.Inf(1)
	}
	val := h.AddCost
	if c.Basis == basisMakespan {
		val = h.Makespan
	} else if c.Tactic == tacticLW || c.Tactic == tacticMW {
		val = h.AddWork
	}
	if !c.Reuse || f.Kind == FlawUnsafe {
		return val
	}
	best := val
	p.Steps.Each(func(s Step) bool {
		if s.ID == f.OpenCond.Step || s.Action == nil {
			return true
		}
		for ei := range s.Action.Effects {
			eff := &s.Action.Effects[ei]
			if _, ok := p.Bindings.Unify(eff.Literal, s.ID, f.OpenCond.Formula, f.OpenCond.Step); ok {
				if 0 < best {
					best = 0
				}
				return false
			}
		}
		return true
	})
	return best
}

// ParseFlawOrder parses spec.md §4.6's grammar, e.g.
// "{n,s}LIFO/{o}0LIFO/{o}LR", into a FlawOrder, expanding shorthand names
// first.
func ParseFlawOrder(name, text string) (*FlawOrder, error) {
	text = expandShorthand(text)
	parts := strings.Split(text, "/")
	fo := &FlawOrder{Name: name}
	for _, part := range parts {
		c, err := parseCriterion(part)
		if err != nil {
			return nil, NewConfigError("-f", "invalid flaw order "+name+": "+err.Error())
		}
		fo.Criteria = append(fo.Criteria, c)
	}
	return fo, nil
}

func parseCriterion(s string) (criterion, error) {
	s = strings.TrimSpace(s)
	open := strings.IndexByte(s, '{')
	shut := strings.IndexByte(s, '}')
	if open != 0 || shut < 0 {
		return criterion{}, NewConfigError("-f", "missing {mask} in criterion "+s)
	}
	maskText := s[open+1 : shut]
	rest := s[shut+1:]

	mask, err := parseMask(maskText)
	if err != nil {
		return criterion{}, err
	}

	refCap := math.MaxInt
	i := 0
	for i < len(rest) && rest[i] >= '0' && rest[i] <= '9' {
		i++
	}
	if i > 0 {
		n, err := strconv.Atoi(rest[:i])
		if err != nil {
			return criterion{}, NewConfigError("-f", "invalid refinement cap in "+s)
		}
		refCap = n
		rest = rest[i:]
	}

	t, basis, reuse, err := parseTactic(rest)
	if err != nil {
		return criterion{}, err
	}

	if !isOrderingOnlyTactic(t) && (mask.NonSeparableThreat || mask.SeparableThreat) && !mask.AnyOpenCondition {
		// spec.md §9 redesign note: the grammar accepts {n,s} with
		// non-LIFO/FIFO/R/LR/MR tactics but the reference implementation
		// rejects it; this parser preserves that restriction.
		return criterion{}, NewConfigError("-f", "threat masks only combine with LIFO/FIFO/R/LR/MR tactics: "+s)
	}

	return criterion{Mask: mask, Cap: refCap, Tactic: t, Basis: basis, Reuse: reuse}, nil
}

func isOrderingOnlyTactic(t tactic) bool {
	switch t {
	case tacticLIFO, tacticFIFO, tacticR, tacticLR, tacticMR:
		return true
	default:
		return false
	}
}

func parseMask(text string) (flawKindMask, error) {
	var m flawKindMask
	for _, tok := range strings.Split(text, ",") {
		switch strings.TrimSpace(tok) {
		case "n":
			m.NonSeparableThreat = true
		case "s":
			m.SeparableThreat = true
		case "o":
			m.AnyOpenCondition = true
		case "l":
			m.Local = true
		case "t":
			m.StaticOpenCond = true
		case "u":
			m.ThreatenedOpenCond = true
		case "":
			// an empty token (a bare "{}" or a stray comma) adds no
			// letter; a mask left with no letter at all is rejected below.
		default:
			return flawKindMask{}, NewConfigError("-f", "unknown flaw-kind letter "+tok)
		}
	}
	if m.empty() {
		return flawKindMask{}, NewConfigError("-f", "empty flaw-kind mask {"+text+"}")
	}
	return m, nil
}

func parseTactic(s string) (tactic, heuristicBasis, bool, error) {
	// A trailing R is the reuse modifier only after LC/MC/LW/MW; in R, LR
	// and MR it is part of the tactic name.
	reuse := false
	body := s
	if len(s) > 2 && strings.HasSuffix(s, "R") {
		switch s[:2] {
		case "LC", "MC", "LW", "MW":
			reuse = true
			body = s[:len(s)-1]
		}
	}

	switch {
	case body == "LIFO":
		return tacticLIFO, basisAdd, false, nil
	case body == "FIFO":
		return tacticFIFO, basisAdd, false, nil
	case body == "R":
		return tacticR, basisAdd, false, nil
	case body == "LR":
		return tacticLR, basisAdd, false, nil
	case body == "MR":
		return tacticMR, basisAdd, false, nil
	case body == "NEW":
		return tacticNEW, basisAdd, false, nil
	case body == "REUSE":
		return tacticREUSE, basisAdd, false, nil
	case strings.HasPrefix(body, "LC"):
		return tacticLC, basisOf(body[2:]), reuse, nil
	case strings.HasPrefix(body, "MC"):
		return tacticMC, basisOf(body[2:]), reuse, nil
	case strings.HasPrefix(body, "LW"):
		return tacticLW, basisOf(body[2:]), reuse, nil
	case strings.HasPrefix(body, "MW"):
		return tacticMW, basisOf(body[2:]), reuse, nil
	default:
		return 0, 0, false, NewConfigError("-f", "unknown tactic "+s)
	}
}

func basisOf(suffix string) heuristicBasis {
	if strings.Contains(suffix, "MAKESPAN") {
		return basisMakespan
	}
	return basisAdd
}

// expandShorthand replaces a recognized canonical flaw-order name with its
// full criterion-sequence text; text that isn't a recognized shorthand
// passes through unchanged, per spec.md §4.6's "UCPOP, LCFR, MC, ZLIFO,
// etc. expand to canonical sequences" note, cross-checked against
// flaws.cc's shorthand table (SPEC_FULL.md §10).
func expandShorthand(text string) string {
	switch text {
	case "UCPOP":
		return "{n,s}LIFO"
	case "LCFR":
		return "{n,s}LIFO/{o}LCADD"
	case "MC":
		return "{n,s}LIFO/{o}MCADD"
	case "ZLIFO":
		return "{n,s}0LIFO/{o}LIFO"
	default:
		return text
	}
}
