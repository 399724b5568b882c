package series

import "math"

// Map applies f to every present value. Missing positions stay missing and
// non-finite results become missing.
func (s Series) Map(f func(float64) float64) Series {
	out := make([]float64, len(s.values))
	for i, v := range s.values {
		if isMissing(v) {
			out[i] = missing
			continue
		}
		out[i] = clean(f(v))
	}
	return Series{values: out}
}

// Zip combines s and other position by position. Missing on either side
// yields missing. Panics with *ShapeError on a length mismatch.
func (s Series) Zip(other Series, f func(a, b float64) float64) Series {
	return s.zip("zip", other, f)
}

func (s Series) zip(op string, other Series, f func(a, b float64) float64) Series {
	mustAlign(op, len(s.values), len(other.values))
	out := make([]float64, len(s.values))
	for i, a := range s.values {
		b := other.values[i]
		if isMissing(a) || isMissing(b) {
			out[i] = missing
			continue
		}
		out[i] = clean(f(a, b))
	}
	return Series{values: out}
}

func (s Series) Add(other Series) Series {
	return s.zip("add", other, func(a, b float64) float64 { return a + b })
}

func (s Series) Sub(other Series) Series {
	return s.zip("sub", other, func(a, b float64) float64 { return a - b })
}

func (s Series) Mul(other Series) Series {
	return s.zip("mul", other, func(a, b float64) float64 { return a * b })
}

// Div divides position by position. A zero divisor yields missing.
func (s Series) Div(other Series) Series {
	return s.zip("div", other, divide)
}

// Max keeps the larger operand at each position.
func (s Series) Max(other Series) Series {
	return s.zip("max", other, math.Max)
}

// Min keeps the smaller operand at each position.
func (s Series) Min(other Series) Series {
	return s.zip("min", other, math.Min)
}

func (s Series) AddScalar(k float64) Series {
	return s.Map(func(v float64) float64 { return v + k })
}

func (s Series) SubScalar(k float64) Series {
	return s.Map(func(v float64) float64 { return v - k })
}

func (s Series) MulScalar(k float64) Series {
	return s.Map(func(v float64) float64 { return v * k })
}

func (s Series) DivScalar(k float64) Series {
	return s.Map(func(v float64) float64 { return divide(v, k) })
}

// ScalarSub computes k - s.
func (s Series) ScalarSub(k float64) Series {
	return s.Map(func(v float64) float64 { return k - v })
}

// ScalarDiv computes k / s.
func (s Series) ScalarDiv(k float64) Series {
	return s.Map(func(v float64) float64 { return divide(k, v) })
}

func (s Series) Neg() Series {
	return s.Map(func(v float64) float64 { return -v })
}

func (s Series) Abs() Series {
	return s.Map(math.Abs)
}

// Sqrt yields missing for negative values.
func (s Series) Sqrt() Series {
	return s.Map(func(v float64) float64 {
		if v < 0 {
			return missing
		}
		return math.Sqrt(v)
	})
}

// Log is the natural logarithm; non-positive values yield missing.
func (s Series) Log() Series {
	return s.Map(func(v float64) float64 {
		if v <= 0 {
			return missing
		}
		return math.Log(v)
	})
}

func (s Series) Pow(exp float64) Series {
	return s.Map(func(v float64) float64 { return math.Pow(v, exp) })
}

// IsMissing marks the missing positions.
func (s Series) IsMissing() Bools {
	b := NewBools(len(s.values))
	for i, v := range s.values {
		if isMissing(v) {
			b.bits.Set(uint(i))
		}
	}
	return b
}

// Select picks a[i] where cond[i] holds and b[i] elsewhere.
func Select(cond Bools, a, b Series) Series {
	mustAlign("select", cond.Len(), a.Len())
	mustAlign("select", a.Len(), b.Len())
	out := make([]float64, a.Len())
	for i := range out {
		if cond.At(i) {
			out[i] = a.values[i]
		} else {
			out[i] = b.values[i]
		}
	}
	return Series{values: out}
}

func divide(a, b float64) float64 {
	if b == 0 {
		return missing
	}
	return a / b
}
