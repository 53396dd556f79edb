package optimization

import (
	"context"
)

// Optimizer defines the interface for optimization algorithms
type Optimizer interface {
	// Optimize runs the optimization process
	Optimize(ctx context.Context, config OptimizerConfig) (*OptimizationResult, error)

	// GetBestSolution returns the best solution found so far
	GetBestSolution() *Solution

	// GetHistory returns the per-iteration history of the run
	GetHistory() []Evaluation

	// Stop gracefully stops the optimization process
	Stop()
}

// OptimizerConfig contains configuration for the optimizer
type OptimizerConfig struct {
	// Objective function to minimize
	Objective ObjectiveFunction

	// Bounds for each dimension [lower, upper]
	Bounds [][2]float64

	// Number of DIRECT iterations. Zero is valid and only evaluates the
	// center of the domain.
	MaxIterations int

	// Rectangles with a radius below MinRadius are never split again
	MinRadius float64

	// Area tolerance of the convex hull test
	Epsilon float64

	// Maximum number of concurrent objective evaluations. Values <= 1
	// evaluate sequentially.
	Workers int
}

// LowerBounds returns the lower bound of every dimension.
func (c OptimizerConfig) LowerBounds() []float64 {
	lower := make([]float64, len(c.Bounds))
	for i, b := range c.Bounds {
		lower[i] = b[0]
	}
	return lower
}

// UpperBounds returns the upper bound of every dimension.
func (c OptimizerConfig) UpperBounds() []float64 {
	upper := make([]float64, len(c.Bounds))
	for i, b := range c.Bounds {
		upper[i] = b[1]
	}
	return upper
}

// ObjectiveFunction defines the function to be minimized
type ObjectiveFunction func([]float64) (float64, error)

// Solution represents a solution in the optimization space
type Solution struct {
	Parameters []float64
	Value      float64
}

// Evaluation records the state of a run after one iteration
type Evaluation struct {
	Iteration int
	Solution  *Solution
	// Rectangles is the size of the partition after the iteration
	Rectangles int
	// Selected is the number of rectangles split during the iteration
	Selected int
	// Evaluations is the cumulative number of objective calls
	Evaluations int
}

// OptimizationResult contains the result of an optimization run
type OptimizationResult struct {
	BestSolution *Solution
	History      []Evaluation
	Iterations   int
	Evaluations  int
	Converged    bool
}
