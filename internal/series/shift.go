package series

import "fmt"

// Shift moves every value n positions towards the newer end. The first n
// positions become missing. Panics if n is negative.
func (s Series) Shift(n int) Series {
	if n < 0 {
		panic(fmt.Sprintf("series: negative shift %d", n))
	}
	out := make([]float64, len(s.values))
	for i := range out {
		if i < n {
			out[i] = missing
			continue
		}
		out[i] = s.values[i-n]
	}
	return Series{values: out}
}

// Change is s - s.Shift(n).
func (s Series) Change(n int) Series {
	return s.Sub(s.Shift(n))
}

// FillMissing replaces missing positions with v. Present values are kept.
func (s Series) FillMissing(v float64) Series {
	out := make([]float64, len(s.values))
	for i, x := range s.values {
		if isMissing(x) {
			out[i] = v
		} else {
			out[i] = x
		}
	}
	return Series{values: out}
}

// FillForward carries the last present value over missing positions.
// Leading missing positions stay missing.
func (s Series) FillForward() Series {
	out := make([]float64, len(s.values))
	last := missing
	for i, x := range s.values {
		if !isMissing(x) {
			last = x
		}
		out[i] = last
	}
	return Series{values: out}
}
