package series

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic_PropagatesMissing(t *testing.T) {
	a := New([]float64{1, nan, 3, 4})
	b := New([]float64{2, 2, nan, 4})

	assertSeries(t, []float64{3, nan, nan, 8}, a.Add(b), 1e-12)
	assertSeries(t, []float64{-1, nan, nan, 0}, a.Sub(b), 1e-12)
	assertSeries(t, []float64{2, nan, nan, 16}, a.Mul(b), 1e-12)
	assertSeries(t, []float64{0.5, nan, nan, 1}, a.Div(b), 1e-12)
}

func TestDiv_ByZeroIsMissing(t *testing.T) {
	a := New([]float64{1, 0, -1})
	b := New([]float64{0, 0, 0})

	assertSeries(t, []float64{nan, nan, nan}, a.Div(b), 0)
	assertSeries(t, []float64{nan, nan, nan}, a.DivScalar(0), 0)
	assertSeries(t, []float64{nan, nan, -1}, a.ScalarDiv(1), 0)
}

func TestUnary_DomainEdgesAreMissing(t *testing.T) {
	s := New([]float64{4, 0, -4, nan})

	assertSeries(t, []float64{2, 0, nan, nan}, s.Sqrt(), 1e-12)
	assertSeries(t, []float64{1.3862943611, nan, nan, nan}, s.Log(), 1e-9)
	assertSeries(t, []float64{4, 0, 4, nan}, s.Abs(), 0)
	assertSeries(t, []float64{-4, 0, 4, nan}, s.Neg(), 0)
}

func TestScalarBroadcast(t *testing.T) {
	s := New([]float64{1, 2, nan})

	assertSeries(t, []float64{11, 12, nan}, s.AddScalar(10), 0)
	assertSeries(t, []float64{-1, 0, nan}, s.SubScalar(2), 0)
	assertSeries(t, []float64{3, 6, nan}, s.MulScalar(3), 0)
	assertSeries(t, []float64{9, 8, nan}, s.ScalarSub(10), 0)
	assertSeries(t, []float64{1, 4, nan}, s.Pow(2), 0)
}

func TestMaxMin(t *testing.T) {
	a := New([]float64{1, 5, nan})
	b := New([]float64{3, 2, 1})

	assertSeries(t, []float64{3, 5, nan}, a.Max(b), 0)
	assertSeries(t, []float64{1, 2, nan}, a.Min(b), 0)
}

func TestBinary_MismatchedLengthPanics(t *testing.T) {
	a := New([]float64{1, 2, 3})
	b := New([]float64{1, 2})

	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic")
		err, ok := r.(error)
		require.True(t, ok)
		var shape *ShapeError
		require.True(t, errors.As(err, &shape))
		assert.Equal(t, "add", shape.Op)
		assert.Equal(t, 3, shape.Left)
		assert.Equal(t, 2, shape.Right)
	}()
	a.Add(b)
}

func TestSelect(t *testing.T) {
	cond := BoolsOf(true, false, true)
	a := New([]float64{1, 2, 3})
	b := New([]float64{10, 20, nan})

	assertSeries(t, []float64{1, 20, 3}, Select(cond, a, b), 0)
}

func TestIsMissing(t *testing.T) {
	got := New([]float64{nan, 1, nan}).IsMissing()
	assert.Equal(t, []bool{true, false, true}, got.Values())
}

func TestOutputsDoNotAliasInputs(t *testing.T) {
	s := New([]float64{1, 2, 3})
	out := s.AddScalar(0)
	raw := out.Values()
	raw[0] = 42
	assert.Equal(t, 1.0, s.At(0))
	assert.Equal(t, 1.0, out.At(0))
}
