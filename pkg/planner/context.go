package planner

import (
	"math/rand"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gitrdm/vhplan/internal/metrics"
)

// Context owns everything the refinement engine and search driver borrow
// for the lifetime of one planning run: the domain/problem object model,
// the planning graph, a structured logger, a metrics sink, and the PRNG
// used by the R tactic.
//
// This replaces the source's global mutable tables (domains, problems,
// application interning, the static planning-graph singleton) per
// spec.md §9: a plan never reaches into package-level state, only into
// the Context it was built from.
//
// Grounded on solver.go's Model/Solver split (immutable problem
// definition vs. mutable solve-time state), generalized here to also
// carry the ambient stack (logger, metrics, run id) the teacher threads
// through its own Solver value.
type Context struct {
	Domain  DomainView
	Problem ProblemView
	Graph   *PlanningGraph

	Logger  *zap.Logger
	Metrics *metrics.Collector
	RunID   uuid.UUID

	rng *rand.Rand

	threshold float64
	domainK   int // -1: off, 0: strip static preconditions, >0: keep them
	ground    bool
	durative  bool

	nextStepID   StepID
	nextSerial   int
	nextVarIndex int
}

// ContextOption configures a Context at construction time.
type ContextOption func(*Context)

// WithSeed fixes the PRNG seed (spec.md §6's -S flag), for reproducible
// search when the R tactic is in play.
func WithSeed(seed int64) ContextOption {
	return func(c *Context) { c.rng = rand.New(rand.NewSource(seed)) }
}

// WithThreshold sets the STN minimum step separation (-t).
func WithThreshold(t float64) ContextOption {
	return func(c *Context) { c.threshold = t }
}

// WithDomainConstraints records -d[k], read back by
// DomainConstraintsEnabled and StripStaticPreconditions. Refinement does
// not consult it: every new step gets the planning graph's step domain
// whatever k is, and k=0 strips no static preconditions.
func WithDomainConstraints(k int) ContextOption {
	return func(c *Context) { c.domainK = k }
}

// WithGrounding records -g, read back by Grounded. Search does not
// consult it and never grounds actions up front.
func WithGrounding(on bool) ContextOption {
	return func(c *Context) { c.ground = on }
}

// WithLogger overrides the default no-op logger.
func WithLogger(l *zap.Logger) ContextOption {
	return func(c *Context) { c.Logger = l }
}

// WithMetrics overrides the default metrics collector.
func WithMetrics(m *metrics.Collector) ContextOption {
	return func(c *Context) { c.Metrics = m }
}

// NewContext builds a planning run's Context: it builds the planning
// graph eagerly (every search algorithm needs heuristic values from the
// first plan onward) and assigns a fresh run id for log/metric
// correlation.
func NewContext(domain DomainView, problem ProblemView, opts ...ContextOption) (*Context, error) {
	c := &Context{
		Domain:       domain,
		Problem:      problem,
		Logger:       zap.NewNop(),
		Metrics:      metrics.NewCollector(),
		RunID:        uuid.New(),
		rng:          rand.New(rand.NewSource(1)),
		threshold:    DefaultThreshold,
		domainK:      -1,
		nextStepID:   1,
		nextVarIndex: -(1 << 20),
	}
	for _, opt := range opts {
		opt(c)
	}

	graph, err := BuildPlanningGraph(domain, problem)
	if err != nil {
		return nil, err
	}
	c.Graph = graph

	for _, a := range domain.Actions() {
		if a.Durative {
			c.durative = true
			break
		}
	}

	c.Logger = c.Logger.With(zap.String("run_id", c.RunID.String()))
	return c, nil
}

// Durative reports whether this run's domain contains any durative
// action, which selects the temporal (STN) ordering-store variant over
// the binary one (spec.md §4.3).
func (c *Context) Durative() bool { return c.durative }

// FreshStepID allocates the next positive step id.
func (c *Context) FreshStepID() StepID {
	id := c.nextStepID
	c.nextStepID++
	return id
}

// FreshVariable allocates a variable term disjoint from every
// domain-declared variable (those count down from -1; this counts down
// from far below them), for refinements that must introduce a genuinely
// new quantified variable rather than reuse a lifted parameter's index
// (spec.md §4.5.2's separation case, plan.go's refineUnsafe Forall
// freshening).
func (c *Context) FreshVariable(typ TypeID) Term {
	idx := c.nextVarIndex
	c.nextVarIndex--
	return Term{Index: idx, Type: typ}
}

// NextPlanSerial allocates the next plan serial id, used by LIFO/FIFO
// rank components and by refinement bookkeeping.
func (c *Context) NextPlanSerial() int {
	id := c.nextSerial
	c.nextSerial++
	return id
}

// Threshold returns the configured STN minimum separation.
func (c *Context) Threshold() float64 { return c.threshold }

// DomainConstraintsEnabled reports whether -d[k] domain constraints are on.
func (c *Context) DomainConstraintsEnabled() bool { return c.domainK >= 0 }

// StripStaticPreconditions reports whether -d0 is in effect.
func (c *Context) StripStaticPreconditions() bool { return c.domainK == 0 }

// Grounded reports whether -g full grounding is in effect.
func (c *Context) Grounded() bool { return c.ground }

// Rand exposes the run's PRNG for the R selection tactic.
func (c *Context) Rand() *rand.Rand { return c.rng }

// Close flushes the Context's logger and returns the logger's Sync error.
// It releases nothing else: the planning graph and metrics collector stay
// referenced by the Context.
func (c *Context) Close() error {
	return c.Logger.Sync()
}
