package direct

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/copyleftdev/divrect/internal/optimization"
)

func constant(v float64) optimization.ObjectiveFunction {
	return func([]float64) (float64, error) {
		return v, nil
	}
}

func TestSplitSquare(t *testing.T) {
	parent := NewRectangle([]float64{0.5, 0.5}, 7, []int{0, 0})
	g := func(u []float64) (float64, error) {
		return 10*(u[0]-0.5)*(u[0]-0.5) + (u[1]-0.9)*(u[1]-0.9), nil
	}

	children, evals, err := Split(context.Background(), parent, g, 1)
	require.NoError(t, err)
	require.Len(t, children, 5)
	assert.Equal(t, 4, evals)

	// Dimension 1 holds the best trial point, so it is cut first and keeps
	// the wider slabs.
	third := 1.0 / 3.0
	expected := []struct {
		center []float64
		splits []int
	}{
		{center: []float64{0.5, 0.5 + third}, splits: []int{0, 1}},
		{center: []float64{0.5, 0.5 - third}, splits: []int{0, 1}},
		{center: []float64{0.5 + third, 0.5}, splits: []int{1, 1}},
		{center: []float64{0.5 - third, 0.5}, splits: []int{1, 1}},
		{center: []float64{0.5, 0.5}, splits: []int{1, 1}},
	}

	for i, want := range expected {
		got := children[i]
		assert.InDeltaSlice(t, want.center, got.Center, 1e-15, "child %d center", i)
		assert.Equal(t, want.splits, got.Splits, "child %d splits", i)
		assert.Equal(t, Radius(got.Splits), got.Radius, "child %d radius", i)
		assert.Less(t, got.Radius, parent.Radius, "child %d must be smaller than its parent", i)

		y, err := g(got.Center)
		require.NoError(t, err)
		if i < 4 {
			assert.Equal(t, y, got.Value, "child %d value", i)
		}
	}

	residual := children[4]
	assert.Equal(t, parent.Center, residual.Center)
	assert.Equal(t, parent.Value, residual.Value)
	assert.Greater(t, children[0].Radius, children[2].Radius)
}

func TestSplitTieKeepsDimensionOrder(t *testing.T) {
	parent := NewRectangle([]float64{0.5, 0.5, 0.5}, 1, []int{0, 0, 0})

	children, _, err := Split(context.Background(), parent, constant(1), 1)
	require.NoError(t, err)
	require.Len(t, children, 7)

	assert.Equal(t, []int{1, 0, 0}, children[0].Splits)
	assert.Equal(t, []int{1, 1, 0}, children[2].Splits)
	assert.Equal(t, []int{1, 1, 1}, children[4].Splits)
	assert.Equal(t, []int{1, 1, 1}, children[6].Splits)
	assert.InDelta(t, 0.5+1.0/3.0, children[0].Center[0], 1e-15)
	assert.InDelta(t, 0.5+1.0/3.0, children[2].Center[1], 1e-15)
	assert.InDelta(t, 0.5+1.0/3.0, children[4].Center[2], 1e-15)
}

func TestSplitOnlyLeastDividedDimensions(t *testing.T) {
	parent := NewRectangle([]float64{0.5, 0.5, 0.5}, 2, []int{1, 0, 1})

	children, evals, err := Split(context.Background(), parent, constant(1), 1)
	require.NoError(t, err)
	require.Len(t, children, 3)
	assert.Equal(t, 2, evals)

	for _, c := range children {
		assert.Equal(t, []int{1, 1, 1}, c.Splits)
		assert.Less(t, c.Radius, parent.Radius)
	}
	assert.InDeltaSlice(t, []float64{0.5, 0.5 + 1.0/3.0, 0.5}, children[0].Center, 1e-15)
	assert.InDeltaSlice(t, []float64{0.5, 0.5 - 1.0/3.0, 0.5}, children[1].Center, 1e-15)
}

func TestSplitDeepRectangleUsesSmallerOffset(t *testing.T) {
	parent := NewRectangle([]float64{0.5, 0.5}, 0, []int{2, 2})

	children, _, err := Split(context.Background(), parent, constant(0), 1)
	require.NoError(t, err)

	delta := 1.0 / 27.0
	assert.InDelta(t, 0.5+delta, children[0].Center[0], 1e-15)
	assert.InDelta(t, 0.5-delta, children[1].Center[0], 1e-15)
}

func TestSplitRejectsNonFiniteValues(t *testing.T) {
	parent := NewRectangle([]float64{0.5}, 0, []int{0})

	for _, bad := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, _, err := Split(context.Background(), parent, constant(bad), 1)
		require.Error(t, err)
		assert.True(t, errors.Is(err, optimization.ErrNonFiniteEvaluation), "value %v: %v", bad, err)
	}
}

func TestSplitPropagatesObjectiveError(t *testing.T) {
	parent := NewRectangle([]float64{0.5}, 0, []int{0})
	boom := errors.New("simulator crashed")

	_, _, err := Split(context.Background(), parent, func([]float64) (float64, error) {
		return 0, boom
	}, 1)

	require.Error(t, err)
	assert.True(t, errors.Is(err, boom))
	assert.True(t, errors.Is(err, optimization.ErrNonFiniteEvaluation))
}

func TestSplitConcurrentMatchesSequential(t *testing.T) {
	parent := NewRectangle([]float64{0.5, 0.5, 0.5, 0.5}, 3, []int{0, 0, 0, 0})
	var calls atomic.Int64
	g := func(u []float64) (float64, error) {
		calls.Add(1)
		sum := 0.0
		for i, v := range u {
			sum += float64(i+1) * (v - 0.2) * (v - 0.2)
		}
		return sum, nil
	}

	sequential, _, err := Split(context.Background(), parent, g, 1)
	require.NoError(t, err)
	concurrent, evals, err := Split(context.Background(), parent, g, 4)
	require.NoError(t, err)

	assert.Equal(t, sequential, concurrent)
	assert.Equal(t, 8, evals)
	assert.Equal(t, int64(16), calls.Load())
}

func TestSplitCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	parent := NewRectangle([]float64{0.5}, 0, []int{0})
	for _, workers := range []int{1, 2} {
		_, _, err := Split(ctx, parent, constant(0), workers)
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", workers)
	}
}
