package optimization

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorString(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		expected string
	}{
		{
			name:     "message only",
			err:      &Error{Message: "boom"},
			expected: "boom",
		},
		{
			name:     "component and operation",
			err:      (&Error{Message: "bad value 3"}).WithComponent("direct").WithOperation("split"),
			expected: "direct: split: bad value 3",
		},
		{
			name:     "wrapped",
			err:      WrapError(ErrInvalidBounds, "lower >= upper").WithComponent("normalizer"),
			expected: "normalizer: lower >= upper: invalid bounds",
		},
		{
			name:     "operation only wrapped",
			err:      WrapErrorf(ErrInvalidConfig, "epsilon %v", 0.0).WithOperation("validate"),
			expected: "validate: epsilon 0: invalid optimizer configuration",
		},
		{
			name:     "nil",
			err:      nil,
			expected: "<nil>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestWrapErrorNil(t *testing.T) {
	assert.Nil(t, WrapError(nil, "ignored"))
	assert.Nil(t, WrapErrorf(nil, "ignored %d", 1))
}

func TestSentinelMatching(t *testing.T) {
	err := fmt.Errorf("outer: %w", WrapError(ErrNonFiniteEvaluation, "f(0.5) = NaN"))

	assert.True(t, errors.Is(err, ErrNonFiniteEvaluation))
	assert.False(t, errors.Is(err, ErrInvalidBounds))

	optErr, ok := IsOptimizationError(err)
	require.True(t, ok)
	assert.Equal(t, "f(0.5) = NaN", optErr.Message)

	_, ok = IsOptimizationError(errors.New("plain"))
	assert.False(t, ok)
}

func TestConfigBounds(t *testing.T) {
	cfg := OptimizerConfig{Bounds: [][2]float64{{-1, 1}, {0, 10}}}

	assert.Equal(t, []float64{-1, 0}, cfg.LowerBounds())
	assert.Equal(t, []float64{1, 10}, cfg.UpperBounds())
}
