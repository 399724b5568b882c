// Package series provides the missing-value-aware numeric sequence that every
// indicator in this module is composed from.
//
// A Series is an immutable, fixed-length sequence of float64 values where NaN
// is the single representation of "missing". Index 0 is the oldest value.
// Every operation returns a freshly allocated Series of the same length, so a
// Series can be shared freely between goroutines.
package series

import (
	"fmt"
	"math"
)

// Series is a fixed-length sequence of nullable float64 values.
type Series struct {
	values []float64
}

// New builds a Series from raw values. The input is copied; NaN and ±Inf
// mark a missing position.
func New(values []float64) Series {
	v := make([]float64, len(values))
	for i, x := range values {
		v[i] = clean(x)
	}
	return Series{values: v}
}

// FromInts builds a Series from integer values (e.g. volumes).
func FromInts(values []int64) Series {
	v := make([]float64, len(values))
	for i, x := range values {
		v[i] = clean(float64(x))
	}
	return Series{values: v}
}

// Fill returns a Series of length n where every position holds v. A
// non-finite v gives an all-missing series.
func Fill(v float64, n int) Series {
	v = clean(v)
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return Series{values: out}
}

// Empty returns a Series of length n where every position is missing.
func Empty(n int) Series {
	return Fill(math.NaN(), n)
}

// Len returns the number of positions.
func (s Series) Len() int { return len(s.values) }

// Get returns the value at i and whether it is present.
// Panics if i is out of range.
func (s Series) Get(i int) (float64, bool) {
	s.checkIndex(i)
	v := s.values[i]
	return v, !math.IsNaN(v)
}

// At returns the value at i, NaN when missing. Panics if i is out of range.
func (s Series) At(i int) float64 {
	s.checkIndex(i)
	return s.values[i]
}

// Last returns the newest value and whether it is present.
func (s Series) Last() (float64, bool) {
	if len(s.values) == 0 {
		return math.NaN(), false
	}
	return s.Get(len(s.values) - 1)
}

// Values returns a copy of the underlying values, missing rendered as NaN.
func (s Series) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

// Present reports how many positions hold a value.
func (s Series) Present() int {
	n := 0
	for _, v := range s.values {
		if !math.IsNaN(v) {
			n++
		}
	}
	return n
}

func (s Series) checkIndex(i int) {
	if i < 0 || i >= len(s.values) {
		panic(fmt.Sprintf("series: index %d out of range [0,%d)", i, len(s.values)))
	}
}

// String renders the series for debugging.
func (s Series) String() string {
	return fmt.Sprintf("Series%v", s.values)
}

// missing is the single missing representation.
var missing = math.NaN()

func isMissing(v float64) bool { return math.IsNaN(v) }

// clean maps non-finite arithmetic results to missing.
func clean(v float64) float64 {
	if math.IsInf(v, 0) {
		return missing
	}
	return v
}
