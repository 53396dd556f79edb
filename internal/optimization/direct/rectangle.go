package direct

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Rectangle is one cell of the partition of the unit hypercube.
//
// Rectangles are values: they are built by NewRectangle and never modified
// afterwards. Radius is always derived from Splits.
type Rectangle struct {
	// Center is the point where the objective was evaluated, in [0,1]^n.
	Center []float64
	// Value is the normalized objective at Center.
	Value float64
	// Splits counts how many times each dimension has been divided.
	Splits []int
	// Radius is the distance from Center to any vertex of the cell.
	Radius float64
}

// NewRectangle copies center and splits and derives the radius.
func NewRectangle(center []float64, value float64, splits []int) Rectangle {
	return Rectangle{
		Center: append([]float64(nil), center...),
		Value:  value,
		Splits: append([]int(nil), splits...),
		Radius: Radius(splits),
	}
}

// Radius returns ‖0.5·3^(−splits)‖₂.
//
// Terms are summed in ascending split order so that permutations of the same
// split vector yield bit-identical radii.
func Radius(splits []int) float64 {
	sorted := append([]int(nil), splits...)
	sort.Ints(sorted)

	half := make([]float64, len(sorted))
	for i, d := range sorted {
		half[i] = 0.5 * math.Pow(3, -float64(d))
	}
	return floats.Norm(half, 2)
}

// InitialRadius is the radius of the unsplit unit hypercube, 0.5·√n.
func InitialRadius(n int) float64 {
	return Radius(make([]int, n))
}

// minSplits returns the smallest split count and the dimensions reaching it
// in ascending order.
func (r Rectangle) minSplits() (int, []int) {
	dMin := r.Splits[0]
	for _, d := range r.Splits[1:] {
		if d < dMin {
			dMin = d
		}
	}

	dirs := make([]int, 0, len(r.Splits))
	for i, d := range r.Splits {
		if d == dMin {
			dirs = append(dirs, i)
		}
	}
	return dMin, dirs
}
