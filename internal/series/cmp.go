package series

// Comparisons never propagate missing. A missing operand is replaced with a
// NaN sentinel and the predicate still runs, so every ordering and equality
// test against it is false while Ne is true.

func (s Series) compareScalar(k float64, pred func(a, b float64) bool) Bools {
	out := NewBools(len(s.values))
	for i, v := range s.values {
		if pred(v, k) {
			out.bits.Set(uint(i))
		}
	}
	return out
}

func (s Series) compare(op string, other Series, pred func(a, b float64) bool) Bools {
	mustAlign(op, len(s.values), len(other.values))
	out := NewBools(len(s.values))
	for i, v := range s.values {
		if pred(v, other.values[i]) {
			out.bits.Set(uint(i))
		}
	}
	return out
}

func eq(a, b float64) bool { return a == b }
func ne(a, b float64) bool { return a != b }
func gt(a, b float64) bool { return a > b }
func ge(a, b float64) bool { return a >= b }
func lt(a, b float64) bool { return a < b }
func le(a, b float64) bool { return a <= b }

func (s Series) Eq(other Series) Bools { return s.compare("eq", other, eq) }
func (s Series) Ne(other Series) Bools { return s.compare("ne", other, ne) }
func (s Series) Gt(other Series) Bools { return s.compare("gt", other, gt) }
func (s Series) Ge(other Series) Bools { return s.compare("ge", other, ge) }
func (s Series) Lt(other Series) Bools { return s.compare("lt", other, lt) }
func (s Series) Le(other Series) Bools { return s.compare("le", other, le) }

func (s Series) EqScalar(k float64) Bools { return s.compareScalar(k, eq) }
func (s Series) NeScalar(k float64) Bools { return s.compareScalar(k, ne) }
func (s Series) GtScalar(k float64) Bools { return s.compareScalar(k, gt) }
func (s Series) GeScalar(k float64) Bools { return s.compareScalar(k, ge) }
func (s Series) LtScalar(k float64) Bools { return s.compareScalar(k, lt) }
func (s Series) LeScalar(k float64) Bools { return s.compareScalar(k, le) }
