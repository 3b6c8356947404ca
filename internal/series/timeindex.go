package series

import "sort"

// TimeIndex is a read-only view over a sorted timestamp column.
type TimeIndex struct {
	t []float64
}

// NewTimeIndex wraps ts. The slice is not copied and must not be modified.
func NewTimeIndex(ts []float64) *TimeIndex {
	return &TimeIndex{t: ts}
}

// Len returns the number of timestamps.
func (x *TimeIndex) Len() int {
	return len(x.t)
}

// At returns the timestamp at row i.
func (x *TimeIndex) At(i int) float64 {
	return x.t[i]
}

// First returns the earliest timestamp.
func (x *TimeIndex) First() float64 {
	return x.t[0]
}

// Last returns the latest timestamp.
func (x *TimeIndex) Last() float64 {
	return x.t[len(x.t)-1]
}

// LowerBound returns the smallest i with T[i] > q, or Len() if there is none.
func (x *TimeIndex) LowerBound(q float64) int {
	return sort.Search(len(x.t), func(i int) bool { return x.t[i] > q })
}

// UpperBound returns the smallest i with T[i] >= q, minus one. The result is the
// last row strictly before q and is -1 when every timestamp is >= q.
func (x *TimeIndex) UpperBound(q float64) int {
	return sort.Search(len(x.t), func(i int) bool { return x.t[i] >= q }) - 1
}
