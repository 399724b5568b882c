package series

import (
	"strings"

	"github.com/bits-and-blooms/bitset"
)

// Bools is a fixed-length two-valued boolean sequence, the result of a
// comparison. It is immutable once returned.
type Bools struct {
	bits *bitset.BitSet
	n    int
}

// NewBools returns an all-false sequence of length n.
func NewBools(n int) Bools {
	return Bools{bits: bitset.New(uint(n)), n: n}
}

// BoolsOf builds a sequence from plain values.
func BoolsOf(values ...bool) Bools {
	b := NewBools(len(values))
	for i, v := range values {
		if v {
			b.bits.Set(uint(i))
		}
	}
	return b
}

func (b Bools) Len() int { return b.n }

// At reports the value at i. Panics if i is out of range.
func (b Bools) At(i int) bool {
	if i < 0 || i >= b.n {
		panic("series: bool index out of range")
	}
	return b.bits.Test(uint(i))
}

// Last returns the newest value, false on an empty sequence.
func (b Bools) Last() bool {
	if b.n == 0 {
		return false
	}
	return b.At(b.n - 1)
}

// Count returns the number of true positions.
func (b Bools) Count() int {
	if b.bits == nil {
		return 0
	}
	return int(b.bits.Count())
}

func (b Bools) And(other Bools) Bools {
	mustAlign("and", b.n, other.n)
	return Bools{bits: b.bits.Intersection(other.bits), n: b.n}
}

func (b Bools) Or(other Bools) Bools {
	mustAlign("or", b.n, other.n)
	return Bools{bits: b.bits.Union(other.bits), n: b.n}
}

func (b Bools) Not() Bools {
	out := bitset.New(uint(b.n))
	for i := 0; i < b.n; i++ {
		if !b.bits.Test(uint(i)) {
			out.Set(uint(i))
		}
	}
	return Bools{bits: out, n: b.n}
}

// Float renders true as 1 and false as 0.
func (b Bools) Float() Series {
	out := make([]float64, b.n)
	for i := range out {
		if b.bits.Test(uint(i)) {
			out[i] = 1
		}
	}
	return Series{values: out}
}

// Values returns the sequence as a plain slice.
func (b Bools) Values() []bool {
	out := make([]bool, b.n)
	for i := range out {
		out[i] = b.bits.Test(uint(i))
	}
	return out
}

func (b Bools) String() string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i := 0; i < b.n; i++ {
		if i > 0 {
			sb.WriteByte(' ')
		}
		if b.bits.Test(uint(i)) {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	}
	sb.WriteByte(']')
	return sb.String()
}
