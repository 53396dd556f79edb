package direct

import (
	"context"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/copyleftdev/divrect/internal/optimization"
)

// sample is one trial point of a split: the pair of centers offset along a
// single dimension and their values.
type sample struct {
	dim    int
	plus   []float64
	minus  []float64
	yPlus  float64
	yMinus float64
}

func (s sample) score() float64 {
	return math.Min(s.yPlus, s.yMinus)
}

// Split divides r into thirds along every dimension that has been split the
// fewest times. It returns the 2·k+1 children (k being the number of such
// dimensions) and the number of objective evaluations performed.
//
// Dimensions are cut in ascending order of their best trial value, so the
// most promising dimension keeps the widest slabs. Ties keep ascending
// dimension order. With workers > 1 the trial points are evaluated
// concurrently; the children do not depend on evaluation order.
func Split(ctx context.Context, r Rectangle, g optimization.ObjectiveFunction, workers int) ([]Rectangle, int, error) {
	dMin, dirs := r.minSplits()
	delta := math.Pow(3, -float64(dMin+1))

	samples := make([]sample, len(dirs))
	for j, i := range dirs {
		plus := append([]float64(nil), r.Center...)
		minus := append([]float64(nil), r.Center...)
		plus[i] += delta
		minus[i] -= delta
		samples[j] = sample{dim: i, plus: plus, minus: minus}
	}

	if err := evaluateSamples(ctx, samples, g, workers); err != nil {
		return nil, 0, err
	}

	sort.SliceStable(samples, func(a, b int) bool {
		return samples[a].score() < samples[b].score()
	})

	splits := append([]int(nil), r.Splits...)
	children := make([]Rectangle, 0, 2*len(samples)+1)
	for _, s := range samples {
		splits[s.dim]++
		children = append(children,
			NewRectangle(s.plus, s.yPlus, splits),
			NewRectangle(s.minus, s.yMinus, splits),
		)
	}
	children = append(children, NewRectangle(r.Center, r.Value, splits))

	return children, 2 * len(samples), nil
}

func evaluateSamples(ctx context.Context, samples []sample, g optimization.ObjectiveFunction, workers int) error {
	if workers <= 1 {
		for j := range samples {
			if err := ctx.Err(); err != nil {
				return err
			}
			y, err := evaluate(g, samples[j].plus)
			if err != nil {
				return err
			}
			samples[j].yPlus = y

			y, err = evaluate(g, samples[j].minus)
			if err != nil {
				return err
			}
			samples[j].yMinus = y
		}
		return nil
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for j := range samples {
		s := &samples[j]
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			y, err := evaluate(g, s.plus)
			if err != nil {
				return err
			}
			s.yPlus = y
			return nil
		})
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			y, err := evaluate(g, s.minus)
			if err != nil {
				return err
			}
			s.yMinus = y
			return nil
		})
	}
	return eg.Wait()
}

// evaluate calls g at the normalized point u and rejects non-finite values.
func evaluate(g optimization.ObjectiveFunction, u []float64) (float64, error) {
	y, err := g(u)
	if err != nil {
		return 0, optimization.WrapErrorf(
			&evaluationError{point: u, cause: err},
			"objective failed",
		).WithComponent("direct").WithOperation("evaluate")
	}
	if math.IsNaN(y) || math.IsInf(y, 0) {
		return 0, optimization.WrapErrorf(
			&evaluationError{point: u, value: y},
			"objective returned %v", y,
		).WithComponent("direct").WithOperation("evaluate")
	}
	return y, nil
}
