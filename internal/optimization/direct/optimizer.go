package direct

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/divrect/internal/optimization"
)

const (
	// DefaultMaxIterations is the iteration budget used when none is given.
	DefaultMaxIterations = 100
	// DefaultMinRadius is the smallest radius a rectangle may have and still
	// be split.
	DefaultMinRadius = 1e-5

	maxHistoryPrealloc = 1024
)

// Optimizer runs the DIRECT algorithm. It implements optimization.Optimizer.
//
// An Optimizer runs one optimization at a time; GetBestSolution and
// GetHistory may be called concurrently with Optimize.
type Optimizer struct {
	logger *zap.Logger

	mu           sync.RWMutex
	bestSolution *optimization.Solution
	history      []optimization.Evaluation
	cancel       context.CancelFunc
}

var _ optimization.Optimizer = (*Optimizer)(nil)

// NewOptimizer creates a DIRECT optimizer. A nil logger disables logging.
func NewOptimizer(logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		logger: logger.Named("direct"),
	}
}

// Optimize minimizes config.Objective over config.Bounds.
//
// A zero MinRadius or Epsilon selects the package default; MaxIterations is
// taken as given and zero only evaluates the domain center.
func (o *Optimizer) Optimize(ctx context.Context, config optimization.OptimizerConfig) (*optimization.OptimizationResult, error) {
	config, err := withDefaults(config)
	if err != nil {
		return nil, err
	}

	norm, err := NewNormalizer(config.LowerBounds(), config.UpperBounds())
	if err != nil {
		return nil, err
	}
	g := norm.Wrap(config.Objective)

	ctx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.cancel = cancel
	o.bestSolution = nil
	o.history = make([]optimization.Evaluation, 0, min(config.MaxIterations, maxHistoryPrealloc))
	o.mu.Unlock()
	defer cancel()

	n := norm.Dims()
	center := make([]float64, n)
	for i := range center {
		center[i] = 0.5
	}
	y, err := evaluate(g, center)
	if err != nil {
		return nil, err
	}
	rects := newStore(NewRectangle(center, y, make([]int, n)))
	evaluations := 1
	o.setBest(norm, rects.best())

	o.logger.Debug("Starting DIRECT",
		zap.Int("dims", n),
		zap.Int("max_iterations", config.MaxIterations),
		zap.Float64("min_radius", config.MinRadius),
		zap.Float64("initial_value", y),
	)

	converged := false
	iterations := 0
	for k := 0; k < config.MaxIterations; k++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		picked := rects.take(Select(rects.rects, config.MinRadius, config.Epsilon))
		if len(picked) == 0 {
			// Every hull rectangle is below the minimum radius; the partition
			// can no longer change.
			converged = true
			o.logger.Debug("No rectangle left to split", zap.Int("iteration", k))
			break
		}

		children, evals, err := splitAll(ctx, picked, g, config.Workers)
		if err != nil {
			return nil, err
		}
		rects.add(children...)
		evaluations += evals
		iterations++

		best := rects.best()
		solution := o.setBest(norm, best)
		o.record(optimization.Evaluation{
			Iteration:   k,
			Solution:    solution,
			Rectangles:  rects.len(),
			Selected:    len(picked),
			Evaluations: evaluations,
		})

		o.logger.Debug("Iteration complete",
			zap.Int("iteration", k),
			zap.Int("selected", len(picked)),
			zap.Int("rectangles", rects.len()),
			zap.Float64("best_value", best.Value),
			zap.Float64("best_radius", best.Radius),
		)
	}

	best := o.GetBestSolution()
	o.logger.Info("DIRECT finished",
		zap.Int("iterations", iterations),
		zap.Int("evaluations", evaluations),
		zap.Float64("best_value", best.Value),
		zap.Float64s("best_parameters", best.Parameters),
	)

	return &optimization.OptimizationResult{
		BestSolution: best,
		History:      o.GetHistory(),
		Iterations:   iterations,
		Evaluations:  evaluations,
		Converged:    converged,
	}, nil
}

// GetBestSolution returns the best solution found so far, in the caller's
// coordinates.
func (o *Optimizer) GetBestSolution() *optimization.Solution {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.bestSolution
}

// GetHistory returns one entry per completed iteration.
func (o *Optimizer) GetHistory() []optimization.Evaluation {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return append([]optimization.Evaluation(nil), o.history...)
}

// Stop cancels a running optimization. It returns immediately; Optimize
// returns context.Canceled at the next iteration boundary.
func (o *Optimizer) Stop() {
	o.mu.RLock()
	cancel := o.cancel
	o.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (o *Optimizer) setBest(norm *Normalizer, best Rectangle) *optimization.Solution {
	solution := &optimization.Solution{
		Parameters: norm.Inverse(best.Center),
		Value:      best.Value,
	}
	o.mu.Lock()
	o.bestSolution = solution
	o.mu.Unlock()
	return solution
}

func (o *Optimizer) record(eval optimization.Evaluation) {
	o.mu.Lock()
	o.history = append(o.history, eval)
	o.mu.Unlock()
}

// splitAll splits every picked rectangle and concatenates the children in
// picked order, whatever the degree of concurrency.
func splitAll(ctx context.Context, picked []Rectangle, g optimization.ObjectiveFunction, workers int) ([]Rectangle, int, error) {
	if workers <= 1 || len(picked) == 1 {
		var (
			children []Rectangle
			total    int
		)
		for _, r := range picked {
			out, n, err := Split(ctx, r, g, workers)
			if err != nil {
				return nil, 0, err
			}
			children = append(children, out...)
			total += n
		}
		return children, total, nil
	}

	slots := make([][]Rectangle, len(picked))
	counts := make([]int, len(picked))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, r := range picked {
		eg.Go(func() error {
			out, n, err := Split(egCtx, r, g, 1)
			if err != nil {
				return err
			}
			slots[i] = out
			counts[i] = n
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, 0, err
	}

	var (
		children []Rectangle
		total    int
	)
	for i := range slots {
		children = append(children, slots[i]...)
		total += counts[i]
	}
	return children, total, nil
}

func withDefaults(config optimization.OptimizerConfig) (optimization.OptimizerConfig, error) {
	if config.Objective == nil {
		return config, configError("objective function is required")
	}
	if config.MaxIterations < 0 {
		return config, configError("max iterations must not be negative, got %d", config.MaxIterations)
	}
	if config.MinRadius == 0 {
		config.MinRadius = DefaultMinRadius
	}
	if config.Epsilon == 0 {
		config.Epsilon = DefaultEpsilon
	}
	if !positiveFinite(config.MinRadius) {
		return config, configError("min radius must be positive and finite, got %v", config.MinRadius)
	}
	if !positiveFinite(config.Epsilon) {
		return config, configError("epsilon must be positive and finite, got %v", config.Epsilon)
	}
	return config, nil
}
