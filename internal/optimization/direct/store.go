package direct

// store is the partition of the unit hypercube. Only the driver touches it.
type store struct {
	rects []Rectangle
}

func newStore(initial Rectangle) *store {
	return &store{rects: []Rectangle{initial}}
}

func (s *store) len() int {
	return len(s.rects)
}

// take removes the rectangles at the given indices and returns them in the
// order of idx. Survivors keep their relative order.
func (s *store) take(idx []int) []Rectangle {
	if len(idx) == 0 {
		return nil
	}

	picked := make([]Rectangle, len(idx))
	remove := make(map[int]struct{}, len(idx))
	for i, j := range idx {
		picked[i] = s.rects[j]
		remove[j] = struct{}{}
	}

	kept := s.rects[:0]
	for i, r := range s.rects {
		if _, ok := remove[i]; !ok {
			kept = append(kept, r)
		}
	}
	// Clear the tail so removed slices can be collected.
	for i := len(kept); i < len(s.rects); i++ {
		s.rects[i] = Rectangle{}
	}
	s.rects = kept
	return picked
}

func (s *store) add(rects ...Rectangle) {
	s.rects = append(s.rects, rects...)
}

// best returns the rectangle with the lowest value; the earliest one wins ties.
func (s *store) best() Rectangle {
	best := s.rects[0]
	for _, r := range s.rects[1:] {
		if r.Value < best.Value {
			best = r
		}
	}
	return best
}
