package series

// CrossOver is true at i when a moves from at-or-below b at i-1 to above b
// at i. Any missing operand among the four makes the position false.
func CrossOver(a, b Series) Bools {
	return cross("crossover", a, b, func(ac, bc, ap, bp float64) bool { return ac > bc && ap <= bp })
}

// CrossUnder is true at i when a moves from at-or-above b at i-1 to below b
// at i.
func CrossUnder(a, b Series) Bools {
	return cross("crossunder", a, b, func(ac, bc, ap, bp float64) bool { return ac < bc && ap >= bp })
}

// CrossOverLine is CrossOver against a constant level.
func CrossOverLine(a Series, level float64) Bools {
	return CrossOver(a, Fill(level, a.Len()))
}

// CrossUnderLine is CrossUnder against a constant level.
func CrossUnderLine(a Series, level float64) Bools {
	return CrossUnder(a, Fill(level, a.Len()))
}

func cross(op string, a, b Series, hit func(ac, bc, ap, bp float64) bool) Bools {
	mustAlign(op, a.Len(), b.Len())
	out := NewBools(a.Len())
	for i := 1; i < a.Len(); i++ {
		ac, bc := a.values[i], b.values[i]
		ap, bp := a.values[i-1], b.values[i-1]
		if isMissing(ac) || isMissing(bc) || isMissing(ap) || isMissing(bp) {
			continue
		}
		if hit(ac, bc, ap, bp) {
			out.bits.Set(uint(i))
		}
	}
	return out
}
