// Package objectives provides named test functions with known minima, used to
// exercise DIRECT from the server, the CLI and tests.
package objectives

import (
	"fmt"
	"math"
	"sort"

	"github.com/copyleftdev/divrect/internal/optimization"
)

// Objective is a named test function with its default search box.
type Objective struct {
	Name        string
	Description string
	// Func is the function to minimize.
	Func optimization.ObjectiveFunction
	// Lower and Upper are the default bounds.
	Lower []float64
	Upper []float64
	// Minimum is the known global minimum value.
	Minimum float64
}

// Bounds returns the default box as [lower, upper] pairs.
func (o Objective) Bounds() [][2]float64 {
	bounds := make([][2]float64, len(o.Lower))
	for i := range o.Lower {
		bounds[i] = [2]float64{o.Lower[i], o.Upper[i]}
	}
	return bounds
}

type definition struct {
	description string
	// fixedDims is zero for functions defined in any dimension.
	fixedDims int
	lower     float64
	upper     float64
	minimum   float64
	fn        func(x []float64) float64
	// box overrides lower/upper for functions with per-dimension bounds.
	box [][2]float64
}

var registry = map[string]definition{
	"sphere": {
		description: "sum of squares, minimum 0 at the origin",
		lower:       -2,
		upper:       2,
		fn:          Sphere,
	},
	"linear": {
		description: "dot([1,2,3], x) on the unit cube, minimum 0 at the origin",
		fixedDims:   3,
		lower:       0,
		upper:       1,
		fn:          Linear,
	},
	"wave": {
		description: "x1^2 + x2^2 + 3 sin(5 x1) + 2 cos(3 x2), two global minima near (-0.306, ±0.940)",
		fixedDims:   2,
		lower:       -2,
		upper:       2,
		minimum:     -3.9177,
		fn:          Wave,
	},
	"branin": {
		description: "Branin-Hoo function, three global minima of 0.397887",
		fixedDims:   2,
		minimum:     0.397887,
		fn:          Branin,
		box:         [][2]float64{{-5, 10}, {0, 15}},
	},
	"rastrigin": {
		description: "highly multimodal, minimum 0 at the origin",
		lower:       -5.12,
		upper:       5.12,
		fn:          Rastrigin,
	},
	"rosenbrock": {
		description: "curved valley, minimum 0 at (1, ..., 1)",
		lower:       -2,
		upper:       2,
		fn:          Rosenbrock,
	},
}

// Names returns the registered objective names in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the named objective in the requested dimension. dims is
// ignored by fixed-dimension functions when zero; otherwise it must match.
func Lookup(name string, dims int) (Objective, error) {
	def, ok := registry[name]
	if !ok {
		return Objective{}, fmt.Errorf("unknown objective %q", name)
	}

	if def.fixedDims > 0 {
		if dims != 0 && dims != def.fixedDims {
			return Objective{}, fmt.Errorf("objective %q is defined in %d dimensions, got %d", name, def.fixedDims, dims)
		}
		dims = def.fixedDims
	}
	if dims < 1 {
		return Objective{}, fmt.Errorf("objective %q needs a positive dimension, got %d", name, dims)
	}

	lower := make([]float64, dims)
	upper := make([]float64, dims)
	for i := 0; i < dims; i++ {
		if def.box != nil {
			lower[i], upper[i] = def.box[i][0], def.box[i][1]
		} else {
			lower[i], upper[i] = def.lower, def.upper
		}
	}

	fn := def.fn
	return Objective{
		Name:        name,
		Description: def.description,
		Func: func(x []float64) (float64, error) {
			if len(x) != dims {
				return 0, fmt.Errorf("%s: expected %d parameters, got %d", name, dims, len(x))
			}
			return fn(x), nil
		},
		Lower:   lower,
		Upper:   upper,
		Minimum: def.minimum,
	}, nil
}

// Sphere is Σ xᵢ².
func Sphere(x []float64) float64 {
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return sum
}

// Linear is 1·x₁ + 2·x₂ + 3·x₃.
func Linear(x []float64) float64 {
	return x[0] + 2*x[1] + 3*x[2]
}

// Wave is x₁² + x₂² + 3·sin(5x₁) + 2·cos(3x₂).
func Wave(x []float64) float64 {
	return x[0]*x[0] + x[1]*x[1] + 3*math.Sin(5*x[0]) + 2*math.Cos(3*x[1])
}

// Branin is the Branin-Hoo function with the usual constants.
func Branin(x []float64) float64 {
	const (
		a = 1.0
		b = 5.1 / (4 * math.Pi * math.Pi)
		c = 5 / math.Pi
		r = 6.0
		s = 10.0
		t = 1 / (8 * math.Pi)
	)
	u := x[1] - b*x[0]*x[0] + c*x[0] - r
	return a*u*u + s*(1-t)*math.Cos(x[0]) + s
}

// Rastrigin is 10n + Σ (xᵢ² − 10·cos(2πxᵢ)).
func Rastrigin(x []float64) float64 {
	sum := 10 * float64(len(x))
	for _, v := range x {
		sum += v*v - 10*math.Cos(2*math.Pi*v)
	}
	return sum
}

// Rosenbrock is Σ 100·(xᵢ₊₁ − xᵢ²)² + (1 − xᵢ)².
func Rosenbrock(x []float64) float64 {
	sum := 0.0
	for i := 0; i+1 < len(x); i++ {
		a := x[i+1] - x[i]*x[i]
		b := 1 - x[i]
		sum += 100*a*a + b*b
	}
	return sum
}

// Entry summarizes a registered objective.
type Entry struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	// Dims is zero for objectives defined in any dimension.
	Dims        int     `json:"dims"`
	Minimum     float64 `json:"minimum"`
}

// Catalog lists the registered objectives in name order.
func Catalog() []Entry {
	names := Names()
	entries := make([]Entry, len(names))
	for i, name := range names {
		def := registry[name]
		entries[i] = Entry{
			Name:        name,
			Description: def.description,
			Dims:        def.fixedDims,
			Minimum:     def.minimum,
		}
	}
	return entries
}
