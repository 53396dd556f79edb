package direct

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/copyleftdev/divrect/internal/optimization"
	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

func square(x []float64) float64 {
	return x[0] * x[0]
}

func TestOptimizeZeroIterationsReturnsMidpoint(t *testing.T) {
	lower := []float64{-2, 3}
	upper := []float64{1, 7}

	for _, minRadius := range []float64{1e-5, 0.3, 10} {
		var calls int
		f := func(x []float64) float64 {
			calls++
			return x[0] + x[1]
		}

		x, err := Optimize(f, lower, upper, WithMaxIterations(0), WithMinRadius(minRadius))
		require.NoError(t, err)
		assert.Equal(t, []float64{-0.5, 5}, x, "min radius %v", minRadius)
		assert.Equal(t, 1, calls)
	}
}

func TestOptimizeQuadratic(t *testing.T) {
	x, err := Optimize(square, []float64{-2}, []float64{2}, WithMaxIterations(30))
	require.NoError(t, err)
	require.Len(t, x, 1)
	assert.InDelta(t, 0, x[0], DefaultMinRadius)
}

func TestOptimizeShiftedQuadratic(t *testing.T) {
	f := func(x []float64) float64 {
		return (x[0] - 0.7) * (x[0] - 0.7)
	}

	x, err := Optimize(f, []float64{-2}, []float64{2}, WithMaxIterations(40))
	require.NoError(t, err)
	assert.InDelta(t, 0.7, x[0], 1e-3)
}

func TestOptimizeDefaultBudget(t *testing.T) {
	f := func(x []float64) float64 {
		return objectives.Linear(x)
	}

	x, err := Optimize(f, []float64{0, 0, 0}, []float64{1, 1, 1})
	require.NoError(t, err)
	assert.Less(t, objectives.Linear(x), 1e-3)
}

func TestOptimizerKnownMinima(t *testing.T) {
	tests := []struct {
		name       string
		objective  string
		dims       int
		iterations int
		tolerance  float64
	}{
		{name: "branin", objective: "branin", iterations: 50, tolerance: 1e-4},
		{name: "wave", objective: "wave", iterations: 50, tolerance: 1e-3},
		{name: "rastrigin", objective: "rastrigin", dims: 2, iterations: 50, tolerance: 1e-6},
		{name: "rosenbrock", objective: "rosenbrock", dims: 2, iterations: 200, tolerance: 1e-4},
		{name: "sphere", objective: "sphere", dims: 3, iterations: 50, tolerance: 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obj, err := objectives.Lookup(tt.objective, tt.dims)
			require.NoError(t, err)

			opt := NewOptimizer(zap.NewNop())
			result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
				Objective:     obj.Func,
				Bounds:        obj.Bounds(),
				MaxIterations: tt.iterations,
			})
			require.NoError(t, err)
			require.NotNil(t, result.BestSolution)

			assert.InDelta(t, obj.Minimum, result.BestSolution.Value, tt.tolerance)
			value, err := obj.Func(result.BestSolution.Parameters)
			require.NoError(t, err)
			assert.InDelta(t, result.BestSolution.Value, value, 1e-9, "reported value must match the reported point")
			assert.Equal(t, result.BestSolution, opt.GetBestSolution())
		})
	}
}

func TestOptimizerHistory(t *testing.T) {
	obj, err := objectives.Lookup("rastrigin", 2)
	require.NoError(t, err)
	// Asymmetric bounds keep the optimum away from the first center.
	bounds := [][2]float64{{-5.12, 5.12}, {-4, 6}}

	opt := NewOptimizer(nil)
	result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     obj.Func,
		Bounds:        bounds,
		MaxIterations: 60,
	})
	require.NoError(t, err)

	history := opt.GetHistory()
	require.Len(t, history, 60)
	assert.Equal(t, history, result.History)
	assert.Equal(t, 60, result.Iterations)
	assert.False(t, result.Converged)

	prevValue := math.Inf(1)
	prevEvals := 1
	for i, eval := range history {
		assert.Equal(t, i, eval.Iteration)
		require.NotNil(t, eval.Solution)
		assert.LessOrEqual(t, eval.Solution.Value, prevValue, "best value must never increase (iteration %d)", i)
		assert.Greater(t, eval.Evaluations, prevEvals)
		assert.Positive(t, eval.Selected)
		// Every evaluation adds exactly one rectangle to the partition.
		assert.Equal(t, eval.Evaluations, eval.Rectangles)
		prevValue = eval.Solution.Value
		prevEvals = eval.Evaluations
	}
	assert.Equal(t, history[len(history)-1].Evaluations, result.Evaluations)
	assert.Equal(t, history[len(history)-1].Solution, result.BestSolution)
}

func TestOptimizerStopsWhenEverythingIsTooSmall(t *testing.T) {
	var calls int
	opt := NewOptimizer(nil)
	result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			calls++
			return square(x), nil
		},
		Bounds:        [][2]float64{{-2, 2}},
		MaxIterations: 50,
		// The first split produces radius 1/6, which is never split again.
		MinRadius: 0.2,
	})
	require.NoError(t, err)

	assert.True(t, result.Converged)
	assert.Equal(t, 1, result.Iterations)
	assert.Equal(t, 3, result.Evaluations)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []float64{0}, result.BestSolution.Parameters)
}

func TestOptimizerInvalidBoundsEvaluatesNothing(t *testing.T) {
	var calls int
	f := func(x []float64) float64 {
		calls++
		return 0
	}

	tests := []struct {
		name  string
		lower []float64
		upper []float64
	}{
		{name: "empty", lower: []float64{}, upper: []float64{}},
		{name: "mismatch", lower: []float64{0}, upper: []float64{1, 1}},
		{name: "inverted", lower: []float64{0, 2}, upper: []float64{1, 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Optimize(f, tt.lower, tt.upper)
			require.Error(t, err)
			assert.Nil(t, x)
			assert.True(t, errors.Is(err, optimization.ErrInvalidBounds), "got %v", err)
		})
	}
	assert.Zero(t, calls)
}

func TestOptimizerNonFiniteEvaluation(t *testing.T) {
	tests := []struct {
		name string
		f    func([]float64) float64
	}{
		{
			name: "nan at the center",
			f:    func([]float64) float64 { return math.NaN() },
		},
		{
			name: "infinity during a split",
			f: func(x []float64) float64 {
				if x[0] > 1 {
					return math.Inf(1)
				}
				return x[0] * x[0]
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, err := Optimize(tt.f, []float64{-2}, []float64{2}, WithMaxIterations(10))
			require.Error(t, err)
			assert.Nil(t, x)
			assert.True(t, errors.Is(err, optimization.ErrNonFiniteEvaluation), "got %v", err)
		})
	}
}

func TestOptimizerObjectiveError(t *testing.T) {
	boom := errors.New("solver diverged")
	opt := NewOptimizer(nil)

	result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			if x[0] < 0 {
				return 0, boom
			}
			return x[0], nil
		},
		Bounds:        [][2]float64{{-1, 1}},
		MaxIterations: 5,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, boom))

	optErr, ok := optimization.IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "direct", optErr.Component)
	assert.Equal(t, "evaluate", optErr.Op)
}

// optimizerWith runs Optimizer.Optimize on a counting objective after
// applying modify to an otherwise valid config. The objective must never be
// called.
func optimizerWith(modify func(*optimization.OptimizerConfig)) func() error {
	return func() error {
		calls := 0
		cfg := optimization.OptimizerConfig{
			Objective: func([]float64) (float64, error) {
				calls++
				return 0, nil
			},
			Bounds:        [][2]float64{{0, 1}},
			MaxIterations: 50,
		}
		modify(&cfg)
		_, err := NewOptimizer(nil).Optimize(context.Background(), cfg)
		if calls != 0 {
			return fmt.Errorf("objective called %d times: %v", calls, err)
		}
		return err
	}
}

func TestOptimizerInvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		run  func() error
	}{
		{
			name: "negative iterations",
			run: func() error {
				_, err := Optimize(square, []float64{0}, []float64{1}, WithMaxIterations(-1))
				return err
			},
		},
		{
			name: "zero min radius",
			run: func() error {
				_, err := Optimize(square, []float64{0}, []float64{1}, WithMinRadius(0))
				return err
			},
		},
		{
			name: "nan epsilon",
			run: func() error {
				_, err := Optimize(square, []float64{0}, []float64{1}, WithEpsilon(math.NaN()))
				return err
			},
		},
		{
			name: "nil objective",
			run: func() error {
				_, err := Optimize(nil, []float64{0}, []float64{1})
				return err
			},
		},
		{
			name: "negative config min radius",
			run:  optimizerWith(func(c *optimization.OptimizerConfig) { c.MinRadius = -1 }),
		},
		{
			name: "nan config min radius",
			run:  optimizerWith(func(c *optimization.OptimizerConfig) { c.MinRadius = math.NaN() }),
		},
		{
			name: "infinite config min radius",
			run:  optimizerWith(func(c *optimization.OptimizerConfig) { c.MinRadius = math.Inf(1) }),
		},
		{
			name: "nan config epsilon",
			run:  optimizerWith(func(c *optimization.OptimizerConfig) { c.Epsilon = math.NaN() }),
		},
		{
			name: "infinite config epsilon",
			run:  optimizerWith(func(c *optimization.OptimizerConfig) { c.Epsilon = math.Inf(1) }),
		},
		{
			name: "infinite min radius option",
			run: func() error {
				_, err := Optimize(square, []float64{0}, []float64{1}, WithMinRadius(math.Inf(1)))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.run()
			require.Error(t, err)
			assert.True(t, errors.Is(err, optimization.ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestOptimizerWorkersMatchSequential(t *testing.T) {
	obj, err := objectives.Lookup("rosenbrock", 3)
	require.NoError(t, err)

	run := func(workers int) *optimization.OptimizationResult {
		var calls atomic.Int64
		cfg := optimization.OptimizerConfig{
			Objective: func(x []float64) (float64, error) {
				calls.Add(1)
				return obj.Func(x)
			},
			Bounds:        obj.Bounds(),
			MaxIterations: 25,
			Workers:       workers,
		}
		result, err := NewOptimizer(nil).Optimize(context.Background(), cfg)
		require.NoError(t, err)
		assert.Equal(t, int64(result.Evaluations), calls.Load())
		return result
	}

	sequential := run(1)
	concurrent := run(8)

	assert.Equal(t, sequential.BestSolution, concurrent.BestSolution)
	assert.Equal(t, sequential.History, concurrent.History)
	assert.Equal(t, sequential.Evaluations, concurrent.Evaluations)
}

func TestOptimizerCancel(t *testing.T) {
	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result, err := NewOptimizer(nil).Optimize(ctx, optimization.OptimizerConfig{
			Objective:     func(x []float64) (float64, error) { return square(x), nil },
			Bounds:        [][2]float64{{-1, 1}},
			MaxIterations: 10,
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
	})

	t.Run("stop during run", func(t *testing.T) {
		opt := NewOptimizer(nil)
		var calls int
		result, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
			Objective: func(x []float64) (float64, error) {
				calls++
				if calls == 20 {
					opt.Stop()
				}
				return square(x), nil
			},
			Bounds:        [][2]float64{{-1, 1}, {-1, 1}},
			MaxIterations: 1000,
		})
		require.ErrorIs(t, err, context.Canceled)
		assert.Nil(t, result)
		assert.Less(t, calls, 100)
	})
}

func TestOptimizerLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	opt := NewOptimizer(zap.New(core))

	_, err := opt.Optimize(context.Background(), optimization.OptimizerConfig{
		Objective:     func(x []float64) (float64, error) { return square(x), nil },
		Bounds:        [][2]float64{{-1, 2}},
		MaxIterations: 3,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, logs.FilterMessage("Iteration complete").Len())
	finished := logs.FilterMessage("DIRECT finished").All()
	require.Len(t, finished, 1)
	assert.Equal(t, "direct", finished[0].LoggerName)
	assert.Equal(t, int64(3), finished[0].ContextMap()["iterations"])
}
