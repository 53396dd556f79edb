// Package direct implements the DIRECT (DIvided RECTangles) algorithm for
// derivative-free global minimization over a box.
//
// The domain is rescaled to the unit hypercube, which is partitioned into
// rectangles evaluated at their centers. Each iteration selects the
// potentially optimal rectangles, those on the lower-right convex hull of
// (radius, value), and splits them into thirds along their least divided
// dimensions.
package direct

import (
	"context"
	"math"

	"go.uber.org/zap"

	"github.com/copyleftdev/divrect/internal/optimization"
)

type options struct {
	maxIterations int
	minRadius     float64
	epsilon       float64
	workers       int
	logger        *zap.Logger
}

// Option configures Optimize.
type Option func(*options)

// WithMaxIterations sets the iteration budget. Zero evaluates only the
// center of the domain.
func WithMaxIterations(n int) Option {
	return func(o *options) {
		o.maxIterations = n
	}
}

// WithMinRadius sets the radius below which rectangles are no longer split.
func WithMinRadius(r float64) Option {
	return func(o *options) {
		o.minRadius = r
	}
}

// WithEpsilon sets the tolerance of the convex hull tests.
func WithEpsilon(eps float64) Option {
	return func(o *options) {
		o.epsilon = eps
	}
}

// WithWorkers bounds the number of concurrent objective evaluations. The
// objective must then be safe for concurrent use.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithLogger sets the logger. If nil is passed, logging is disabled.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func (o *options) validate() error {
	if o.maxIterations < 0 {
		return configError("max iterations must not be negative, got %d", o.maxIterations)
	}
	if !positiveFinite(o.minRadius) {
		return configError("min radius must be positive and finite, got %v", o.minRadius)
	}
	if !positiveFinite(o.epsilon) {
		return configError("epsilon must be positive and finite, got %v", o.epsilon)
	}
	return nil
}

// positiveFinite reports whether x is in (0, +Inf). It is false for NaN.
func positiveFinite(x float64) bool {
	return x > 0 && !math.IsInf(x, 1)
}

// Optimize minimizes f over the box [lower, upper] and returns the best point
// found, in the caller's coordinates.
//
// Errors match optimization.ErrInvalidBounds (before any evaluation),
// optimization.ErrInvalidConfig or optimization.ErrNonFiniteEvaluation.
func Optimize(f func([]float64) float64, lower, upper []float64, opts ...Option) ([]float64, error) {
	o := options{
		maxIterations: DefaultMaxIterations,
		minRadius:     DefaultMinRadius,
		epsilon:       DefaultEpsilon,
		workers:       1,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.validate(); err != nil {
		return nil, err
	}
	if f == nil {
		return nil, configError("objective function is required")
	}

	if _, err := NewNormalizer(lower, upper); err != nil {
		return nil, err
	}
	bounds := make([][2]float64, len(lower))
	for i := range lower {
		bounds[i] = [2]float64{lower[i], upper[i]}
	}

	result, err := NewOptimizer(o.logger).Optimize(context.Background(), optimization.OptimizerConfig{
		Objective: func(x []float64) (float64, error) {
			return f(x), nil
		},
		Bounds:        bounds,
		MaxIterations: o.maxIterations,
		MinRadius:     o.minRadius,
		Epsilon:       o.epsilon,
		Workers:       o.workers,
	})
	if err != nil {
		return nil, err
	}
	return result.BestSolution.Parameters, nil
}
