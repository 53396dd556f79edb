package direct

import "sort"

// DefaultEpsilon is the area tolerance of the counter-clockwise test of the
// hull construction.
const DefaultEpsilon = 1e-6

// Select returns the indices into rects of the potentially optimal
// rectangles: the lower-right convex hull of the (radius, value) points,
// restricted to rectangles whose radius is at least minRadius.
//
// rects is not modified. The returned indices follow ascending radius.
func Select(rects []Rectangle, minRadius, eps float64) []int {
	order := make([]int, len(rects))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := rects[order[i]], rects[order[j]]
		if a.Radius != b.Radius {
			return a.Radius < b.Radius
		}
		return a.Value < b.Value
	})

	hull := make([]int, 0, len(order))
	for _, idx := range order {
		cur := rects[idx]

		// Equal radii sort by value, so a repeated radius cannot lower the
		// hull. Radius is bit-identical for equal split multisets.
		if len(hull) >= 1 && cur.Radius == rects[hull[len(hull)-1]].Radius {
			continue
		}

		for len(hull) >= 1 && cur.Value <= rects[hull[len(hull)-1]].Value {
			hull = hull[:len(hull)-1]
		}

		for len(hull) >= 2 && !isCCW(rects[hull[len(hull)-2]], rects[hull[len(hull)-1]], cur, eps) {
			hull = hull[:len(hull)-1]
		}

		hull = append(hull, idx)
	}

	selected := hull[:0]
	for _, idx := range hull {
		if rects[idx].Radius >= minRadius {
			selected = append(selected, idx)
		}
	}
	return selected
}

// SelectRectangles is Select returning copies of the chosen rectangles.
func SelectRectangles(rects []Rectangle, minRadius, eps float64) []Rectangle {
	idx := Select(rects, minRadius, eps)
	out := make([]Rectangle, len(idx))
	for i, j := range idx {
		out[i] = rects[j]
	}
	return out
}

// isCCW reports whether a, b, c make a strictly counter-clockwise turn in
// (radius, value) space.
func isCCW(a, b, c Rectangle, eps float64) bool {
	area := a.Radius*(b.Value-c.Value) - a.Value*(b.Radius-c.Radius) + (b.Radius*c.Value - b.Value*c.Radius)
	return area >= eps
}
