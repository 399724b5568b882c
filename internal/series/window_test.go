package series

import (
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWindow_Validation(t *testing.T) {
	_, err := NewWindow(0, Partial)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPeriod))

	_, err = NewWindow(3, Mode(9))
	require.Error(t, err)

	w, err := NewWindow(3, Strict)
	require.NoError(t, err)
	assert.Equal(t, 3, w.Period())
	assert.Equal(t, Strict, w.Mode())
}

func TestZeroWindowPanics(t *testing.T) {
	assert.Panics(t, func() { New([]float64{1, 2}).Mean(Window{}) })
}

func TestMean_ArithmeticSequence(t *testing.T) {
	const a, d, p = 3.0, 0.5, 4
	v := make([]float64, 20)
	for i := range v {
		v[i] = a + d*float64(i)
	}
	got := New(v).Mean(MustWindow(p, Strict))

	for i := 0; i < got.Len(); i++ {
		if i < p-1 {
			_, ok := got.Get(i)
			assert.False(t, ok, "position %d should be warming up", i)
			continue
		}
		want := a + d*(float64(i)-float64(p-1)/2)
		assert.InDelta(t, want, got.At(i), 1e-9, "position %d", i)
	}
}

func TestMean_TwiceIsTriangular(t *testing.T) {
	w := MustWindow(3, Partial)
	got := New([]float64{1, 2, 3, 4, 5}).Mean(w).Mean(w)
	assertSeries(t, []float64{1, 1.25, 1.5, 2.1666667, 3}, got, 1e-6)
}

func TestSum_PartialVersusStrict(t *testing.T) {
	s := New([]float64{1, 2, 3, 4})

	assertSeries(t, []float64{1, 3, 6, 9}, s.Sum(MustWindow(3, Partial)), 0)
	assertSeries(t, []float64{nan, nan, 6, 9}, s.Sum(MustWindow(3, Strict)), 0)
}

func TestSum_SkipsMissing(t *testing.T) {
	s := New([]float64{nan, 1, nan, 2, nan, nan})
	assertSeries(t, []float64{nan, 1, 1, 2, 2, nan}, s.Sum(MustWindow(2, Partial)), 0)
}

func TestStdDev(t *testing.T) {
	s := New([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	got := s.StdDev(MustWindow(8, Strict))
	v, ok := got.Last()
	require.True(t, ok)
	assert.InDelta(t, 2.0, v, 1e-12)
}

// walk is a random walk of n closes starting at level.
func walk(n int, level float64, seed int64) []float64 {
	r := rand.New(rand.NewSource(seed))
	out := make([]float64, n)
	for i := range out {
		level += (r.Float64() - 0.5) * 10
		out[i] = level
	}
	return out
}

func TestStdDev_FlatWindowAfterLongWalk(t *testing.T) {
	vals := walk(50000, 24000, 7)
	for i := 0; i < 60; i++ {
		vals = append(vals, 24017.35)
	}
	got := New(vals).StdDev(MustWindow(20, Strict))
	v, ok := got.Last()
	require.True(t, ok)
	assert.InDelta(t, 0, v, 1e-9)
}

func TestStdDev_MatchesTwoPass(t *testing.T) {
	vals := walk(5000, 1e6, 11)
	for i := 3; i < len(vals); i += 17 {
		vals[i] = nan
	}
	s := New(vals)
	for _, mode := range []Mode{Partial, Strict} {
		w := MustWindow(20, mode)
		twoPass := s.Reduce(w, func(win []float64) float64 {
			var sum float64
			for _, v := range win {
				sum += v
			}
			mean := sum / float64(len(win))
			var sq float64
			for _, v := range win {
				sq += (v - mean) * (v - mean)
			}
			return math.Sqrt(sq / float64(len(win)))
		})
		assertSeries(t, twoPass.Values(), s.StdDev(w), 1e-6)
	}
}

func TestRunning_InfiniteInputDoesNotPoison(t *testing.T) {
	s := New([]float64{1, math.Inf(1), 2, 3, 4, 5, 6})
	w := MustWindow(2, Partial)
	want := []float64{1, 1, 2, 2.5, 3.5, 4.5, 5.5}

	assertSeries(t, want, s.Mean(w), 1e-12)
	assertSeries(t, []float64{1, 1, 2, 5, 7, 9, 11}, s.Sum(w), 1e-12)
	reduced := s.Reduce(w, func(win []float64) float64 {
		var sum float64
		for _, v := range win {
			sum += v
		}
		return sum / float64(len(win))
	})
	assertSeries(t, want, reduced, 1e-12)
}

func TestMeanAbsDev(t *testing.T) {
	s := New([]float64{1, 2, 3, 4, 5})
	got := s.MeanAbsDev(MustWindow(3, Partial))
	assertSeries(t, []float64{0, 0.5, 2.0 / 3, 2.0 / 3, 2.0 / 3}, got, 1e-12)
}

func TestReduce_CustomMedian(t *testing.T) {
	s := New([]float64{5, 1, 3, nan, 9})
	mid := s.Reduce(MustWindow(3, Strict), func(w []float64) float64 {
		lo, hi := math.Inf(1), math.Inf(-1)
		var sum float64
		for _, v := range w {
			lo, hi = math.Min(lo, v), math.Max(hi, v)
			sum += v
		}
		if len(w) < 3 {
			return sum / float64(len(w))
		}
		return sum - lo - hi
	})
	assertSeries(t, []float64{nan, nan, 3, 2, 6}, mid, 1e-12)
}

// bruteExtreme scans the trailing window directly.
func bruteExtreme(s Series, p int, better func(a, b float64) bool) []float64 {
	out := make([]float64, s.Len())
	for i := range out {
		out[i] = nan
		for j := max(0, i-p+1); j <= i; j++ {
			v, ok := s.Get(j)
			if !ok {
				continue
			}
			if math.IsNaN(out[i]) || better(v, out[i]) {
				out[i] = v
			}
		}
	}
	return out
}

func TestHighestLowest_MatchBruteForce(t *testing.T) {
	s := noisy(200, 11)
	for _, p := range []int{1, 2, 5, 17} {
		w := MustWindow(p, Partial)
		assertSeries(t, bruteExtreme(s, p, func(a, b float64) bool { return a > b }), s.Highest(w), 0)
		assertSeries(t, bruteExtreme(s, p, func(a, b float64) bool { return a < b }), s.Lowest(w), 0)
	}
}

func TestHighest_BoundsEveryPresentValue(t *testing.T) {
	s := noisy(120, 5)
	const p = 9
	hi := s.Highest(MustWindow(p, Strict))
	lo := s.Lowest(MustWindow(p, Strict))
	for i := p - 1; i < s.Len(); i++ {
		h, ok := hi.Get(i)
		if !ok {
			continue
		}
		l, _ := lo.Get(i)
		for j := i - p + 1; j <= i; j++ {
			if v, ok := s.Get(j); ok {
				assert.LessOrEqual(t, v, h, "highest at %d", i)
				assert.GreaterOrEqual(t, v, l, "lowest at %d", i)
			}
		}
	}
}

func TestHighest_StrictWarmup(t *testing.T) {
	got := New([]float64{3, 1, 2, 5}).Highest(MustWindow(3, Strict))
	assertSeries(t, []float64{nan, nan, 3, 5}, got, 0)
}
