package direct

import (
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/copyleftdev/divrect/internal/optimization"
)

// Normalizer maps between the caller's box [lower, upper] and the unit
// hypercube searched internally.
type Normalizer struct {
	lower []float64
	width []float64
}

// NewNormalizer validates the bounds and builds a Normalizer. The error
// matches optimization.ErrInvalidBounds.
func NewNormalizer(lower, upper []float64) (*Normalizer, error) {
	const op = "NewNormalizer"

	if len(lower) == 0 || len(upper) == 0 {
		return nil, boundsError(op, "bounds must not be empty")
	}
	if len(lower) != len(upper) {
		return nil, boundsError(op, "lower has %d dimensions, upper has %d", len(lower), len(upper))
	}

	for i := range lower {
		if math.IsNaN(lower[i]) || math.IsInf(lower[i], 0) || math.IsNaN(upper[i]) || math.IsInf(upper[i], 0) {
			return nil, boundsError(op, "dimension %d has non-finite bounds [%v, %v]", i, lower[i], upper[i])
		}
		if lower[i] >= upper[i] {
			return nil, boundsError(op, "dimension %d: lower bound %v is not below upper bound %v", i, lower[i], upper[i])
		}
	}

	width := make([]float64, len(lower))
	floats.SubTo(width, upper, lower)

	return &Normalizer{
		lower: append([]float64(nil), lower...),
		width: width,
	}, nil
}

func boundsError(op, format string, args ...interface{}) error {
	return optimization.WrapErrorf(optimization.ErrInvalidBounds, format, args...).
		WithComponent("direct").
		WithOperation(op)
}

// Dims returns the dimension of the domain.
func (n *Normalizer) Dims() int {
	return len(n.lower)
}

// Forward maps a point of the caller's box into the unit hypercube.
func (n *Normalizer) Forward(x []float64) []float64 {
	u := make([]float64, len(x))
	floats.SubTo(u, x, n.lower)
	floats.Div(u, n.width)
	return u
}

// Inverse maps a unit hypercube point back to the caller's box,
// u ⊙ (upper − lower) + lower.
func (n *Normalizer) Inverse(u []float64) []float64 {
	x := make([]float64, len(u))
	floats.MulTo(x, u, n.width)
	floats.Add(x, n.lower)
	return x
}

// Wrap returns g(u) = f(Inverse(u)).
func (n *Normalizer) Wrap(f optimization.ObjectiveFunction) optimization.ObjectiveFunction {
	return func(u []float64) (float64, error) {
		return f(n.Inverse(u))
	}
}
