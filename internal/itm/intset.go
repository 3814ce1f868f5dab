package itm

// IntSet is a fixed-capacity set of small non-negative integers,
// used to record protocol anomalies so each distinct value is logged
// only once regardless of how often it recurs.
type IntSet struct {
	bits []uint64
	max  int
}

// NewIntSet creates a set holding values in [0, capacity).
func NewIntSet(capacity int) *IntSet {
	return &IntSet{
		bits: make([]uint64, (capacity+63)/64),
		max:  capacity,
	}
}

// Add inserts v and reports whether it was newly added. Values out of
// range are ignored and report false.
func (s *IntSet) Add(v int) bool {
	if v < 0 || v >= s.max {
		return false
	}
	mask := uint64(1) << (uint(v) % 64)
	if s.bits[v/64]&mask != 0 {
		return false
	}
	s.bits[v/64] |= mask
	return true
}

// Contains reports whether v is in the set.
func (s *IntSet) Contains(v int) bool {
	if v < 0 || v >= s.max {
		return false
	}
	return s.bits[v/64]&(uint64(1)<<(uint(v)%64)) != 0
}

// Values returns the members in ascending order.
func (s *IntSet) Values() []int {
	var vals []int
	for v := 0; v < s.max; v++ {
		if s.Contains(v) {
			vals = append(vals, v)
		}
	}
	return vals
}
