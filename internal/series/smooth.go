package series

import (
	"fmt"
	"math"
	"strings"
)

// Seed selects how a recursive filter obtains its first output.
type Seed int

const (
	// SeedFirst seeds with the first present input.
	SeedFirst Seed = iota
	// SeedMean seeds with the mean of the first Period present inputs.
	SeedMean
)

// Carry selects what a seeded recursive filter does when its input (or
// alpha) is missing.
type Carry int

const (
	// Hold emits the previous output and keeps the state.
	Hold Carry = iota
	// Reseed emits missing, drops the state and seeds again from the next
	// present input.
	Reseed
)

// Step computes output[i] from output[i-1], input[i] and alpha[i].
type Step func(prev, cur, alpha float64) float64

// ExponentialStep is prev + alpha·(cur - prev).
func ExponentialStep(prev, cur, alpha float64) float64 {
	return prev + alpha*(cur-prev)
}

// Recurrence describes a single-pass, state-carrying filter. Run evaluates
// strictly left to right.
type Recurrence struct {
	Seed   Seed
	Period int // seed length for SeedMean
	Carry  Carry
	Step   Step
}

// Run folds src with the per-position alpha.
func (r Recurrence) Run(src, alpha Series) Series {
	mustAlign("recurrence", src.Len(), alpha.Len())
	if r.Seed == SeedMean && r.Period <= 0 {
		panic(fmt.Errorf("series: SeedMean recurrence: %w", ErrInvalidPeriod))
	}
	out := make([]float64, src.Len())
	prev := missing
	var acc float64
	accN := 0
	for i, x := range src.values {
		if isMissing(prev) {
			out[i] = missing
			if isMissing(x) {
				continue
			}
			switch r.Seed {
			case SeedMean:
				acc += x
				accN++
				if accN == r.Period {
					prev = acc / float64(accN)
					out[i] = prev
					acc, accN = 0, 0
				}
			default:
				prev = x
				out[i] = x
			}
			continue
		}
		a := alpha.values[i]
		var v float64
		if isMissing(x) || isMissing(a) {
			v = missing
		} else {
			v = clean(r.Step(prev, x, a))
		}
		if !isMissing(v) {
			prev = v
			out[i] = v
			continue
		}
		switch r.Carry {
		case Reseed:
			prev = missing
			out[i] = missing
		default:
			out[i] = prev
		}
	}
	return Series{values: out}
}

// Smoothing is the closed set of recursive smoothing families.
type Smoothing int

const (
	// Exponential uses alpha = 2/(period+1).
	Exponential Smoothing = iota + 1
	// Running is the modified (Wilder) average with alpha = 1/period.
	Running
	// Adaptive derives alpha from the efficiency ratio of the input.
	Adaptive
)

func (k Smoothing) String() string {
	switch k {
	case Exponential:
		return "EMA"
	case Running:
		return "SMMA"
	case Adaptive:
		return "KAMA"
	default:
		return fmt.Sprintf("Smoothing(%d)", int(k))
	}
}

// ParseSmoothing maps a family name to its Smoothing.
func ParseSmoothing(name string) (Smoothing, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "EMA", "EXPONENTIAL":
		return Exponential, nil
	case "SMMA", "RMA", "RUNNING":
		return Running, nil
	case "KAMA", "ADAPTIVE":
		return Adaptive, nil
	default:
		return 0, fmt.Errorf("smoothing %q: %w", name, ErrUnknownSmoothing)
	}
}

// Smoother is a validated smoothing family and period.
type Smoother struct {
	kind   Smoothing
	period int
}

// NewSmoother validates kind and period.
func NewSmoother(kind Smoothing, period int) (Smoother, error) {
	if period <= 0 {
		return Smoother{}, fmt.Errorf("%s period %d: %w", kind, period, ErrInvalidPeriod)
	}
	switch kind {
	case Exponential, Running, Adaptive:
	default:
		return Smoother{}, fmt.Errorf("%s: %w", kind, ErrUnknownSmoothing)
	}
	return Smoother{kind: kind, period: period}, nil
}

func (m Smoother) Kind() Smoothing { return m.kind }
func (m Smoother) Period() int     { return m.period }

// Apply runs the smoothing family over src. Every family seeds with the
// first present input. Exponential and Running hold their last output over
// missing inputs; Adaptive reseeds after one.
func (m Smoother) Apply(src Series) Series {
	n := src.Len()
	switch m.kind {
	case Exponential:
		return Recurrence{Seed: SeedFirst, Carry: Hold, Step: ExponentialStep}.
			Run(src, Fill(2/float64(m.period+1), n))
	case Running:
		return Recurrence{Seed: SeedFirst, Carry: Hold, Step: ExponentialStep}.
			Run(src, Fill(1/float64(m.period), n))
	case Adaptive:
		return Recurrence{Seed: SeedFirst, Carry: Reseed, Step: ExponentialStep}.
			Run(src, AdaptiveAlpha(src, m.period))
	default:
		panic(fmt.Errorf("series: %s: %w", m.kind, ErrUnknownSmoothing))
	}
}

// EfficiencyRatio is |Change(period)| / Sum(|Change(1)|, period).
func EfficiencyRatio(src Series, period int) Series {
	w := MustWindow(period, Partial)
	direction := src.Change(period).Abs()
	volatility := src.Change(1).Abs().Sum(w)
	return direction.Div(volatility)
}

// AdaptiveAlpha is sqrt(er·2/3) where the efficiency ratio is present and
// 2/(period+1) elsewhere.
func AdaptiveAlpha(src Series, period int) Series {
	er := EfficiencyRatio(src, period)
	fallback := Fill(2/float64(period+1), src.Len())
	return Select(er.IsMissing(), fallback, er.Map(func(v float64) float64 {
		return math.Sqrt(v * 2 / 3)
	}))
}
