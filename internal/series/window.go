package series

import (
	"fmt"
	"math"
)

// Mode selects how a rolling reduction treats the start of a series, where
// fewer than period positions have been seen.
type Mode int

const (
	// Partial reduces over the positions available so far.
	Partial Mode = iota
	// Strict yields missing until period positions have been seen.
	Strict
)

func (m Mode) String() string {
	switch m {
	case Partial:
		return "partial"
	case Strict:
		return "strict"
	default:
		return "unknown"
	}
}

// Window is a validated trailing-window specification.
type Window struct {
	period int
	mode   Mode
}

// NewWindow validates period and returns a Window.
func NewWindow(period int, mode Mode) (Window, error) {
	if period <= 0 {
		return Window{}, fmt.Errorf("window period %d: %w", period, ErrInvalidPeriod)
	}
	if mode != Partial && mode != Strict {
		return Window{}, fmt.Errorf("window mode %d: unknown", mode)
	}
	return Window{period: period, mode: mode}, nil
}

// MustWindow is NewWindow for parameters known to be valid. It panics on error.
func MustWindow(period int, mode Mode) Window {
	w, err := NewWindow(period, mode)
	if err != nil {
		panic(err)
	}
	return w
}

func (w Window) Period() int { return w.period }
func (w Window) Mode() Mode  { return w.mode }

func (w Window) check() {
	if w.period <= 0 {
		panic(fmt.Errorf("series: zero Window: %w", ErrInvalidPeriod))
	}
}

// warming reports whether position i is still inside the strict warm-up.
func (w Window) warming(i int) bool {
	return w.mode == Strict && i < w.period-1
}

// Reduce applies f to the present values of the trailing window ending at
// each position, oldest first. The slice passed to f is scratch space and
// must not be retained. A window with no present values yields missing.
func (s Series) Reduce(w Window, f func(window []float64) float64) Series {
	w.check()
	out := make([]float64, len(s.values))
	buf := make([]float64, 0, w.period)
	for i := range s.values {
		if w.warming(i) {
			out[i] = missing
			continue
		}
		buf = buf[:0]
		for j := max(0, i-w.period+1); j <= i; j++ {
			if v := s.values[j]; !isMissing(v) {
				buf = append(buf, v)
			}
		}
		if len(buf) == 0 {
			out[i] = missing
			continue
		}
		out[i] = clean(f(buf))
	}
	return Series{values: out}
}

// running walks the series keeping the sum and count of the present values
// in the trailing window, calling emit at every position.
func (s Series) running(w Window, emit func(sum float64, count int) float64) Series {
	w.check()
	out := make([]float64, len(s.values))
	var sum float64
	count := 0
	for i, v := range s.values {
		if !isMissing(v) {
			sum += v
			count++
		}
		if i >= w.period {
			if old := s.values[i-w.period]; !isMissing(old) {
				sum -= old
				count--
			}
		}
		if count == 0 || w.warming(i) {
			out[i] = missing
			continue
		}
		out[i] = clean(emit(sum, count))
	}
	return Series{values: out}
}

// Sum is the rolling sum of present values.
func (s Series) Sum(w Window) Series {
	return s.running(w, func(sum float64, _ int) float64 { return sum })
}

// Mean is the rolling mean of present values.
func (s Series) Mean(w Window) Series {
	return s.running(w, func(sum float64, count int) float64 { return sum / float64(count) })
}

// StdDev is the rolling population standard deviation of present values.
//
// The window keeps sums of deviations from a reference value instead of raw
// sums, and every period positions the reference moves to the newest value
// and the sums are rebuilt from the window. Cancellation error is therefore
// bounded by the spread inside the window, not by the price level, and the
// pass stays O(n).
func (s Series) StdDev(w Window) Series {
	w.check()
	out := make([]float64, len(s.values))
	var ref, d1, d2 float64
	count := 0
	for i, v := range s.values {
		if i%w.period == 0 {
			ref, d1, d2, count = s.rebase(i, w.period)
		} else {
			if !isMissing(v) {
				dv := v - ref
				d1 += dv
				d2 += dv * dv
				count++
			}
			if i >= w.period {
				if old := s.values[i-w.period]; !isMissing(old) {
					dv := old - ref
					d1 -= dv
					d2 -= dv * dv
					count--
				}
			}
		}
		if count == 0 || w.warming(i) {
			out[i] = missing
			continue
		}
		n := float64(count)
		mean := d1 / n
		variance := d2/n - mean*mean
		if variance < 0 {
			variance = 0
		}
		out[i] = clean(math.Sqrt(variance))
	}
	return Series{values: out}
}

// rebase recomputes the deviation sums of the window ending at i around its
// newest present value.
func (s Series) rebase(i, period int) (ref, d1, d2 float64, count int) {
	from := max(0, i-period+1)
	for j := i; j >= from; j-- {
		if v := s.values[j]; !isMissing(v) {
			ref = v
			break
		}
	}
	for j := from; j <= i; j++ {
		if v := s.values[j]; !isMissing(v) {
			dv := v - ref
			d1 += dv
			d2 += dv * dv
			count++
		}
	}
	return ref, d1, d2, count
}

// MeanAbsDev is the rolling mean of |x - windowMean|.
func (s Series) MeanAbsDev(w Window) Series {
	return s.Reduce(w, func(window []float64) float64 {
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(len(window))
		var dev float64
		for _, v := range window {
			dev += math.Abs(v - mean)
		}
		return dev / float64(len(window))
	})
}

// Highest is the rolling maximum of present values.
func (s Series) Highest(w Window) Series {
	return s.extreme(w, func(kept, incoming float64) bool { return kept <= incoming })
}

// Lowest is the rolling minimum of present values.
func (s Series) Lowest(w Window) Series {
	return s.extreme(w, func(kept, incoming float64) bool { return kept >= incoming })
}

// extreme keeps a monotonic deque of indices; evict reports whether the
// value at the back is dominated by the incoming one.
func (s Series) extreme(w Window, evict func(kept, incoming float64) bool) Series {
	w.check()
	out := make([]float64, len(s.values))
	dq := newDeque(w.period)
	for i, v := range s.values {
		for !dq.empty() && dq.front() <= i-w.period {
			dq.popFront()
		}
		if !isMissing(v) {
			for !dq.empty() && evict(s.values[dq.back()], v) {
				dq.popBack()
			}
			dq.pushBack(i)
		}
		if dq.empty() || w.warming(i) {
			out[i] = missing
			continue
		}
		out[i] = s.values[dq.front()]
	}
	return Series{values: out}
}

// deque is a fixed-capacity ring of indices.
type deque struct {
	buf        []int
	head, size int
}

func newDeque(capacity int) *deque {
	return &deque{buf: make([]int, capacity)}
}

func (d *deque) empty() bool { return d.size == 0 }
func (d *deque) front() int  { return d.buf[d.head] }
func (d *deque) back() int   { return d.buf[(d.head+d.size-1)%len(d.buf)] }

func (d *deque) pushBack(v int) {
	d.buf[(d.head+d.size)%len(d.buf)] = v
	d.size++
}

func (d *deque) popFront() {
	d.head = (d.head + 1) % len(d.buf)
	d.size--
}

func (d *deque) popBack() { d.size-- }
