package main

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/copyleftdev/divrect/internal/optimization"
	"github.com/copyleftdev/divrect/internal/optimization/direct"
	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

type runOptions struct {
	objective string
	dims      int
	lower     []float64
	upper     []float64
	iters     int
	minRadius float64
	epsilon   float64
	workers   int
	asJSON    bool
	history   bool
}

// runResult is the JSON form of a finished run.
type runResult struct {
	Objective   string    `json:"objective"`
	Parameters  []float64 `json:"parameters"`
	Value       float64   `json:"value"`
	Iterations  int       `json:"iterations"`
	Evaluations int       `json:"evaluations"`
	Converged   bool      `json:"converged"`
	ElapsedMS   int64     `json:"elapsed_ms"`
}

func newRunCmd(loggerFor func() (*zap.Logger, error)) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Minimize a built-in objective",
		Long: `Runs DIRECT on a built-in objective, over its default box or the
one given with --lower and --upper, and prints the best point found.`,
		Example: `  direct run --objective branin --iters 50
  direct run --objective sphere --dims 3 --lower=-1,-1,-1 --upper=2,2,2 --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := loggerFor()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return runOptimization(ctx, cmd, opts, logger)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.objective, "objective", "branin", "Objective to minimize (see 'direct objectives')")
	f.IntVar(&opts.dims, "dims", 0, "Dimension, required for objectives defined in any dimension")
	f.Float64SliceVar(&opts.lower, "lower", nil, "Lower bounds, one per dimension")
	f.Float64SliceVar(&opts.upper, "upper", nil, "Upper bounds, one per dimension")
	f.IntVar(&opts.iters, "iters", direct.DefaultMaxIterations, "Max iterations")
	f.Float64Var(&opts.minRadius, "min-radius", direct.DefaultMinRadius, "Smallest radius a rectangle may have and still be split")
	f.Float64Var(&opts.epsilon, "epsilon", direct.DefaultEpsilon, "Tolerance of the convex hull tests")
	f.IntVar(&opts.workers, "workers", 1, "Concurrent objective evaluations")
	f.BoolVar(&opts.asJSON, "json", false, "Print the result as JSON")
	f.BoolVar(&opts.history, "history", false, "Print the best value after every iteration")
	return cmd
}

func (o *runOptions) config() (objectives.Objective, optimization.OptimizerConfig, error) {
	var cfg optimization.OptimizerConfig

	if (o.lower == nil) != (o.upper == nil) {
		return objectives.Objective{}, cfg, fmt.Errorf("--lower and --upper must be given together")
	}
	dims := o.dims
	if dims == 0 && o.lower != nil {
		dims = len(o.lower)
	}
	obj, err := objectives.Lookup(o.objective, dims)
	if err != nil {
		return obj, cfg, err
	}

	cfg.Bounds = obj.Bounds()
	if o.lower != nil {
		if len(o.lower) != len(cfg.Bounds) || len(o.upper) != len(cfg.Bounds) {
			return obj, cfg, fmt.Errorf("%s needs %d bounds, got %d lower and %d upper",
				obj.Name, len(cfg.Bounds), len(o.lower), len(o.upper))
		}
		for i := range cfg.Bounds {
			cfg.Bounds[i] = [2]float64{o.lower[i], o.upper[i]}
		}
	}

	cfg.Objective = obj.Func
	cfg.MaxIterations = o.iters
	cfg.MinRadius = o.minRadius
	cfg.Epsilon = o.epsilon
	cfg.Workers = o.workers
	for _, v := range []float64{o.minRadius, o.epsilon} {
		if !(v > 0) || math.IsInf(v, 1) {
			return obj, cfg, fmt.Errorf("--min-radius and --epsilon must be positive and finite")
		}
	}
	return obj, cfg, nil
}

func runOptimization(ctx context.Context, cmd *cobra.Command, opts *runOptions, logger *zap.Logger) error {
	obj, cfg, err := opts.config()
	if err != nil {
		return err
	}

	logger.Info("Starting optimization",
		zap.String("objective", obj.Name),
		zap.Int("dims", len(cfg.Bounds)),
		zap.Int("iters", cfg.MaxIterations),
	)

	start := time.Now()
	result, err := direct.NewOptimizer(logger).Optimize(ctx, cfg)
	if err != nil {
		return fmt.Errorf("optimization failed: %w", err)
	}
	elapsed := time.Since(start)

	out := cmd.OutOrStdout()
	res := runResult{
		Objective:   obj.Name,
		Parameters:  result.BestSolution.Parameters,
		Value:       result.BestSolution.Value,
		Iterations:  result.Iterations,
		Evaluations: result.Evaluations,
		Converged:   result.Converged,
		ElapsedMS:   elapsed.Milliseconds(),
	}
	if opts.asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	if opts.history {
		fmt.Fprintln(tw, "ITER\tRECTS\tSELECTED\tEVALS\tBEST")
		for _, h := range result.History {
			fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%.10g\n", h.Iteration, h.Rectangles, h.Selected, h.Evaluations, h.Solution.Value)
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintf(tw, "objective\t%s\n", res.Objective)
	fmt.Fprintf(tw, "best value\t%.10g\n", res.Value)
	fmt.Fprintf(tw, "best point\t%v\n", res.Parameters)
	fmt.Fprintf(tw, "known minimum\t%g\n", obj.Minimum)
	fmt.Fprintf(tw, "iterations\t%d (converged: %t)\n", res.Iterations, res.Converged)
	fmt.Fprintf(tw, "evaluations\t%d\n", res.Evaluations)
	fmt.Fprintf(tw, "elapsed\t%s\n", elapsed.Round(time.Microsecond))
	return tw.Flush()
}
