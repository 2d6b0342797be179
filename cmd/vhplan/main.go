// Command vhplan is the CLI front end for the partial-order causal-link
// planner in pkg/planner: it reads a PDDL-shaped domain/problem pair,
// drives refinement search, and prints the resulting plan (or a
// "no plan" verdict) in spec.md §6's output format.
package main

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gitrdm/vhplan/internal/logging"
	"github.com/gitrdm/vhplan/internal/metrics"
	"github.com/gitrdm/vhplan/internal/pddl"
	"github.com/gitrdm/vhplan/pkg/planner"
)

// cliFlags collects every flag of spec.md §6's CLI flags table plus the
// additive --metrics-addr of SPEC_FULL.md §6, bound to the root command in
// newRootCommand.
type cliFlags struct {
	domainConstraints int
	orders            []string
	rankSpecs         []string
	ground            bool
	quotas            []string
	randomizeOC       bool
	algorithm         string
	seed              int64
	threshold         float64
	wallClockMinutes  float64
	verbosity         int
	warningLevel      int
	version           bool
	weight            float64
	metricsAddr       string
}

func main() {
	cmd := newRootCommand()
	// pflag reads an optional value glued to a shorthand ("-d0", "-v2") as
	// the bare flag followed by another shorthand; rewrite such arguments to
	// the "-d=0" form it parses as flag plus value.
	args := make([]string, 0, len(os.Args)-1)
	for _, a := range os.Args[1:] {
		if len(a) > 2 && a[0] == '-' && (a[1] == 'd' || a[1] == 'v' || a[1] == 'W') && a[2] >= '0' && a[2] <= '9' {
			a = a[:2] + "=" + a[2:]
		}
		args = append(args, a)
	}
	cmd.SetArgs(args)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &cliFlags{}
	cmd := &cobra.Command{
		Use:           "vhplan [domain-file] [problem-file]",
		Short:         "a partial-order causal-link planner",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, args, flags)
		},
	}

	f := cmd.Flags()
	f.IntVarP(&flags.domainConstraints, "domain-constraints", "d", -1, "accepted, but has no effect: planning-graph step domains are always installed, and 0 strips no preconditions")
	f.Lookup("domain-constraints").NoOptDefVal = "1"
	f.StringArrayVarP(&flags.orders, "flaw-order", "f", nil, "append a flaw-selection order (repeatable)")
	f.BoolVarP(&flags.ground, "ground", "g", false, "accepted, but has no effect: search always works on lifted actions")
	f.StringArrayVarP(&flags.rankSpecs, "heuristic", "h", nil, "plan ranking heuristic, one per -f (composable with /)")
	f.StringArrayVarP(&flags.quotas, "quota", "l", nil, "plan-generation quota applied to every flaw order (repeatable, but only the first value is used; \"unlimited\" accepted)")
	f.BoolVarP(&flags.randomizeOC, "randomize", "r", false, "accepted, but has no effect: open-condition order is not randomised")
	f.StringVarP(&flags.algorithm, "algorithm", "s", "A", "search algorithm: A, IDA, or HC")
	f.Int64VarP(&flags.seed, "seed", "S", 1, "seed the PRNG")
	f.Float64VarP(&flags.threshold, "threshold", "t", planner.DefaultThreshold, "temporal tolerance (minimum ordered-step separation)")
	f.Float64VarP(&flags.wallClockMinutes, "wall-clock", "T", 0, "wall-clock time limit in minutes (0: unlimited)")
	f.IntVarP(&flags.verbosity, "verbose", "v", 0, "verbosity level")
	f.Lookup("verbose").NoOptDefVal = "1"
	f.IntVarP(&flags.warningLevel, "warn", "W", 0, "warning level")
	f.Lookup("warn").NoOptDefVal = "1"
	f.BoolVarP(&flags.version, "version", "V", false, "print version and exit")
	f.Float64VarP(&flags.weight, "weight", "w", 1, "heuristic weight")
	f.StringVar(&flags.metricsAddr, "metrics-addr", "", "if set, serve Prometheus metrics on this address for the duration of the search")

	return cmd
}

// version is overridden at release-build time via -ldflags; the source
// tree itself carries no release process.
var version = "dev"

func run(cmd *cobra.Command, args []string, flags *cliFlags) error {
	if flags.version {
		fmt.Fprintln(cmd.OutOrStdout(), "vhplan", version)
		return nil
	}

	domainSrc, problemSrc, domainFile, problemFile, err := readInput(args)
	if err != nil {
		return err
	}

	domain, err := pddl.ReadDomain(domainFile, domainSrc)
	if err != nil {
		return err
	}
	problem, err := pddl.ReadProblem(problemFile, problemSrc, domain)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Verbosity(flags.verbosity))
	defer logger.Sync()

	collector := metrics.NewCollector()
	if flags.metricsAddr != "" {
		srv := serveMetrics(flags.metricsAddr, collector, logger)
		defer srv.Close()
	}

	ctx, err := planner.NewContext(domain, problem,
		planner.WithSeed(flags.seed),
		planner.WithThreshold(flags.threshold),
		planner.WithDomainConstraints(flags.domainConstraints),
		planner.WithGrounding(flags.ground),
		planner.WithLogger(logger),
		planner.WithMetrics(collector),
	)
	if err != nil {
		return err
	}
	defer ctx.Close()

	cfg, err := buildSearchConfig(flags)
	if err != nil {
		return err
	}

	plan, err := planner.Search(ctx, cfg)
	if err != nil {
		if exhausted, ok := err.(*planner.SearchExhaustionError); ok {
			fmt.Fprintln(cmd.OutOrStdout(), "no plan")
			fmt.Fprintln(cmd.OutOrStdout(), exhausted.Reason.Comment())
			return nil
		}
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), plan.DebugString(ctx, flags.verbosity))
	return nil
}

// buildSearchConfig assembles a planner.SearchConfig from the parsed CLI
// flags, pairing each -f flaw order with the -h heuristic at the same
// position (or the last one given, if fewer -h than -f); the first -l
// quota applies to every order.
func buildSearchConfig(flags *cliFlags) (planner.SearchConfig, error) {
	orderTexts := flags.orders
	if len(orderTexts) == 0 {
		orderTexts = []string{"UCPOP"}
	}

	var orders []*planner.FlawOrder
	var rankSpecs []planner.RankSpec
	for i, text := range orderTexts {
		order, err := planner.ParseFlawOrder(fmt.Sprintf("order%d", i), text)
		if err != nil {
			return planner.SearchConfig{}, err
		}
		orders = append(orders, order)

		heuristicText := "ADD"
		if len(flags.rankSpecs) > 0 {
			idx := i
			if idx >= len(flags.rankSpecs) {
				idx = len(flags.rankSpecs) - 1
			}
			heuristicText = flags.rankSpecs[idx]
		}
		spec, err := planner.ParseRankSpec(heuristicText, flags.weight)
		if err != nil {
			return planner.SearchConfig{}, err
		}
		rankSpecs = append(rankSpecs, spec)
	}

	algorithm, err := parseAlgorithm(flags.algorithm)
	if err != nil {
		return planner.SearchConfig{}, err
	}

	quota, err := parseQuota(flags.quotas)
	if err != nil {
		return planner.SearchConfig{}, err
	}

	var wallClock time.Duration
	if flags.wallClockMinutes > 0 {
		wallClock = time.Duration(flags.wallClockMinutes * float64(time.Minute))
	}

	return planner.SearchConfig{
		Algorithm:   algorithm,
		Orders:      orders,
		RankSpecs:   rankSpecs,
		Quota:       quota,
		WallClock:   wallClock,
		RandomizeOC: flags.randomizeOC,
	}, nil
}

func parseAlgorithm(s string) (planner.Algorithm, error) {
	switch s {
	case "A", "":
		return planner.AlgorithmAStar, nil
	case "IDA":
		return planner.AlgorithmIDAStar, nil
	case "HC":
		return planner.AlgorithmHillClimbing, nil
	default:
		return 0, planner.NewConfigError("-s", "unknown algorithm "+s)
	}
}

// parseQuota reads the first -l value, which Search applies to every
// flaw order; later -l values are ignored. An "unlimited" sentinel maps
// to 1<<30 plans.
func parseQuota(quotas []string) (int, error) {
	if len(quotas) == 0 {
		return planner.DefaultQuota, nil
	}
	if quotas[0] == "unlimited" {
		return 1 << 30, nil
	}
	var n int
	if _, err := fmt.Sscanf(quotas[0], "%d", &n); err != nil || n <= 0 {
		return 0, planner.NewConfigError("-l", "invalid quota "+quotas[0])
	}
	return n, nil
}

// readInput resolves the domain/problem source text from zero, one, or
// two positional file arguments: two files are domain then problem; one
// file or no files (stdin) is expected to carry both top-level forms,
// split by locating their "(define (domain" / "(define (problem"
// headers.
func readInput(args []string) (domainSrc, problemSrc []byte, domainFile, problemFile string, err error) {
	switch len(args) {
	case 2:
		domainFile, problemFile = args[0], args[1]
		domainSrc, err = os.ReadFile(domainFile)
		if err != nil {
			return nil, nil, "", "", err
		}
		problemSrc, err = os.ReadFile(problemFile)
		if err != nil {
			return nil, nil, "", "", err
		}
		return domainSrc, problemSrc, domainFile, problemFile, nil
	case 0, 1:
		var data []byte
		if len(args) == 1 {
			domainFile, problemFile = args[0], args[0]
			data, err = os.ReadFile(args[0])
		} else {
			domainFile, problemFile = "<stdin>", "<stdin>"
			data, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return nil, nil, "", "", err
		}
		domainSrc, problemSrc, err = splitDomainProblem(data)
		return domainSrc, problemSrc, domainFile, problemFile, err
	default:
		return nil, nil, "", "", planner.NewConfigError("args", "expected zero, one, or two positional file arguments")
	}
}

// splitDomainProblem locates the "(define (domain" and "(define (problem"
// top-level forms within one combined source and returns each as its own
// slice, in whichever order they appear.
func splitDomainProblem(data []byte) (domainSrc, problemSrc []byte, err error) {
	const domainMarker = "(define (domain"
	const problemMarker = "(define (problem"

	di := indexOf(data, domainMarker)
	pi := indexOf(data, problemMarker)
	if di < 0 {
		return nil, nil, planner.NewConfigError("input", "no \"(define (domain ...)\" form found")
	}
	if pi < 0 {
		return nil, nil, planner.NewConfigError("input", "no \"(define (problem ...)\" form found")
	}

	if di < pi {
		return data[di:pi], data[pi:], nil
	}
	return data[di:], data[pi:di], nil
}

func indexOf(data []byte, marker string) int {
	for i := 0; i+len(marker) <= len(data); i++ {
		if string(data[i:i+len(marker)]) == marker {
			return i
		}
	}
	return -1
}

// serveMetrics starts a background HTTP server exposing /metrics for the
// duration of the search (SPEC_FULL.md §6's --metrics-addr), purely
// additive observability absent from the original source.
func serveMetrics(addr string, collector *metrics.Collector, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics server stopped", zap.Error(err))
		}
	}()
	return srv
}
