package series

import (
	"fmt"
	"math"
)

// Weighting is a validated weight vector for a weighted rolling mean.
// Weights are ordered oldest to newest and need not sum to one.
type Weighting struct {
	weights []float64
	norm    float64
}

// NewWeighting validates that weights has exactly period entries with a
// non-zero sum.
func NewWeighting(period int, weights []float64) (Weighting, error) {
	if period <= 0 {
		return Weighting{}, fmt.Errorf("weighting period %d: %w", period, ErrInvalidPeriod)
	}
	if len(weights) != period {
		return Weighting{}, fmt.Errorf("weighting has %d weights for period %d: %w", len(weights), period, ErrWeightLength)
	}
	var norm float64
	for _, w := range weights {
		norm += w
	}
	if norm == 0 || math.IsNaN(norm) || math.IsInf(norm, 0) {
		return Weighting{}, fmt.Errorf("weighting sum %v cannot normalize", norm)
	}
	w := make([]float64, period)
	copy(w, weights)
	return Weighting{weights: w, norm: norm}, nil
}

// LinearWeighting returns weights 1..period, the classic WMA.
func LinearWeighting(period int) (Weighting, error) {
	if period <= 0 {
		return Weighting{}, fmt.Errorf("weighting period %d: %w", period, ErrInvalidPeriod)
	}
	w := make([]float64, period)
	for i := range w {
		w[i] = float64(i + 1)
	}
	return NewWeighting(period, w)
}

// SineWeighting returns sin((i+1)·π/(period+1)) for i in [0, period).
func SineWeighting(period int) (Weighting, error) {
	if period <= 0 {
		return Weighting{}, fmt.Errorf("weighting period %d: %w", period, ErrInvalidPeriod)
	}
	w := make([]float64, period)
	for i := range w {
		w[i] = math.Sin(float64(i+1) * math.Pi / float64(period+1))
	}
	return NewWeighting(period, w)
}

func (w Weighting) Period() int { return len(w.weights) }

// Apply computes the normalized dot product of each trailing window with the
// weights. The first period-1 positions, and any window holding a missing
// value, yield missing.
func (w Weighting) Apply(s Series) Series {
	p := len(w.weights)
	if p == 0 {
		panic(fmt.Errorf("series: zero Weighting: %w", ErrInvalidPeriod))
	}
	out := make([]float64, len(s.values))
	for i := range s.values {
		if i < p-1 {
			out[i] = missing
			continue
		}
		var dot float64
		start := i - p + 1
		for k, wk := range w.weights {
			v := s.values[start+k]
			if isMissing(v) {
				dot = missing
				break
			}
			dot += v * wk
		}
		out[i] = clean(dot / w.norm)
	}
	return Series{values: out}
}
