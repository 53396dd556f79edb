package direct

import (
	"context"
	"math/rand"
	"testing"

	"github.com/copyleftdev/divrect/internal/optimization"
	"github.com/copyleftdev/divrect/internal/optimization/objectives"
)

// BenchmarkOptimizeBranin measures a full run on the Branin function
func BenchmarkOptimizeBranin(b *testing.B) {
	obj, err := objectives.Lookup("branin", 0)
	if err != nil {
		b.Fatal(err)
	}
	cfg := optimization.OptimizerConfig{
		Objective:     obj.Func,
		Bounds:        obj.Bounds(),
		MaxIterations: 50,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewOptimizer(nil).Optimize(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkOptimizeRosenbrockWorkers runs a 4-dimensional problem with
// concurrent evaluation
func BenchmarkOptimizeRosenbrockWorkers(b *testing.B) {
	obj, err := objectives.Lookup("rosenbrock", 4)
	if err != nil {
		b.Fatal(err)
	}
	cfg := optimization.OptimizerConfig{
		Objective:     obj.Func,
		Bounds:        obj.Bounds(),
		MaxIterations: 30,
		Workers:       4,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := NewOptimizer(nil).Optimize(context.Background(), cfg); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkSelect measures hull selection over a large partition
func BenchmarkSelect(b *testing.B) {
	rng := rand.New(rand.NewSource(42))
	rects := make([]Rectangle, 10000)
	for i := range rects {
		splits := []int{rng.Intn(8), rng.Intn(8), rng.Intn(8)}
		rects[i] = NewRectangle([]float64{rng.Float64(), rng.Float64(), rng.Float64()}, rng.NormFloat64(), splits)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = Select(rects, DefaultMinRadius, DefaultEpsilon)
	}
}
