package indicator

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ta-engine/internal/series"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

var nan = math.NaN()

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// assertSeries checks every position; NaN in want means missing.
func assertSeries(t *testing.T, label string, got series.Series, want []float64, tol float64) {
	t.Helper()
	require.Equal(t, len(want), got.Len(), "%s: length", label)
	for i, w := range want {
		v, ok := got.Get(i)
		if math.IsNaN(w) {
			if ok {
				t.Errorf("%s[%d]: got %.6f, want missing", label, i, v)
			}
			continue
		}
		if !ok {
			t.Errorf("%s[%d]: got missing, want %.6f", label, i, w)
			continue
		}
		assertClose(t, label, v, w, tol)
	}
}

func seq(vals ...float64) series.Series { return series.New(vals) }

// ────────────────────────────────────────────────────────────
// Moving averages
// ────────────────────────────────────────────────────────────

func TestSma_PartialWarmup(t *testing.T) {
	got, err := Sma(seq(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assertSeries(t, "SMA(3)", got, []float64{1, 1.5, 2, 3, 4}, 1e-9)
}

func TestTma_Correctness(t *testing.T) {
	got, err := Tma(seq(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assertSeries(t, "TMA(3)", got, []float64{1.0, 1.25, 1.5, 2.1666667, 3.0}, 1e-6)
}

func TestWma_Correctness(t *testing.T) {
	got, err := Wma(seq(1, 2, 3, 4), 3)
	require.NoError(t, err)
	assertSeries(t, "WMA(3)", got, []float64{nan, nan, 14.0 / 6, 20.0 / 6}, 1e-9)
}

func TestSinwma_Correctness(t *testing.T) {
	src := seq(0.01707, 0.01706, 0.01707, 0.01705, 0.01710, 0.01705, 0.01704, 0.01709)
	got, err := Sinwma(src, 3)
	require.NoError(t, err)
	assertSeries(t, "SINWMA(3)", got,
		[]float64{nan, nan, 0.017065858, 0.017061213, 0.017070502, 0.01707071, 0.017061714, 0.017057573}, 1e-6)
}

func TestHma_TracksLinearInput(t *testing.T) {
	v := make([]float64, 10)
	for i := range v {
		v[i] = float64(i)
	}
	got, err := Hma(series.New(v), 4)
	require.NoError(t, err)
	assertSeries(t, "HMA(4)", got, []float64{nan, nan, nan, nan, 4, 5, 6, 7, 8, 9}, 1e-9)
}

func TestVwma_Correctness(t *testing.T) {
	got, err := Vwma(seq(1, 2, 3), seq(1, 1, 2), 2)
	require.NoError(t, err)
	assertSeries(t, "VWMA(2)", got, []float64{nan, 1.5, 8.0 / 3}, 1e-9)
}

func TestGma_Correctness(t *testing.T) {
	got, err := Gma(seq(1, 4), 2)
	require.NoError(t, err)
	assertSeries(t, "GMA(2)", got, []float64{1, 2}, 1e-9)
}

func TestAlma_ConstantInput(t *testing.T) {
	got, err := Alma(series.Fill(5, 10), 9, 0.85, 6)
	require.NoError(t, err)
	v, ok := got.Last()
	require.True(t, ok)
	assertClose(t, "ALMA(9)", v, 5, 1e-9)

	_, err = Alma(series.Fill(5, 10), 9, 0.85, 0)
	assert.Error(t, err)
}

func TestEma_Correctness(t *testing.T) {
	got, err := Ema(seq(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assertSeries(t, "EMA(3)", got, []float64{1, 1.5, 2.25, 3.125, 4.0625}, 1e-9)
}

func TestDema_Correctness(t *testing.T) {
	// EMA:  1, 1.5,  2.25, 3.125,  4.0625
	// EMA²: 1, 1.25, 1.75, 2.4375, 3.25
	got, err := Dema(seq(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assertSeries(t, "DEMA(3)", got, []float64{1, 1.75, 2.75, 3.8125, 4.875}, 1e-9)
}

func TestZlema_Correctness(t *testing.T) {
	// lag=1: input becomes N, 3, 4, 5
	got, err := Zlema(seq(1, 2, 3, 4), 3)
	require.NoError(t, err)
	assertSeries(t, "ZLEMA(3)", got, []float64{nan, 3, 3.5, 4.25}, 1e-9)
}

func TestRecursiveFamilies_ConstantInput(t *testing.T) {
	src := series.Fill(7, 30)
	for name, fn := range map[string]func(series.Series, int) (series.Series, error){
		"EMA":  Ema,
		"SMMA": Smma,
		"KAMA": Kama,
		"DEMA": Dema,
		"TEMA": Tema,
	} {
		got, err := fn(src, 5)
		require.NoError(t, err, name)
		for i := 0; i < got.Len(); i++ {
			assertClose(t, name, got.At(i), 7, 1e-9)
		}
	}
	t3, err := T3Ma(src, 5, 0.7)
	require.NoError(t, err)
	v, _ := t3.Last()
	assertClose(t, "T3", v, 7, 1e-9)
}

func TestKama_Correctness(t *testing.T) {
	got, err := Kama(seq(19.099, 19.079, 19.074, 19.139, 19.191), 3)
	require.NoError(t, err)
	assertSeries(t, "KAMA(3)", got, []float64{19.099, 19.089, 19.081501, 19.112799, 19.173977}, 1e-4)
}

func TestInvalidPeriod(t *testing.T) {
	src := seq(1, 2, 3)
	fns := map[string]func(series.Series, int) (series.Series, error){
		"SMA": Sma, "TMA": Tma, "WMA": Wma, "SINWMA": Sinwma, "HMA": Hma, "GMA": Gma,
		"EMA": Ema, "KAMA": Kama, "SMMA": Smma, "DEMA": Dema, "TEMA": Tema, "ZLEMA": Zlema,
		"RSI": Rsi, "ROC": Roc,
	}
	for name, fn := range fns {
		_, err := fn(src, 0)
		assert.True(t, errors.Is(err, series.ErrInvalidPeriod), "%s: %v", name, err)
	}
}

// ────────────────────────────────────────────────────────────
// Oscillators
// ────────────────────────────────────────────────────────────

func TestRoc_Correctness(t *testing.T) {
	got, err := Roc(seq(1, 2, 3, 4, 5), 3)
	require.NoError(t, err)
	assertSeries(t, "ROC(3)", got, []float64{0, 0, 0, 300, 150}, 1e-9)
}

func TestCci_Correctness(t *testing.T) {
	hlc3 := seq(1, 2, 3, 4, 5)
	got, err := Cci(hlc3, 3, CCIFactor)
	require.NoError(t, err)
	assertSeries(t, "CCI(3)", got, []float64{nan, 66.66667, 100, 100, 100}, 1e-4)
}

func TestRsi_Correctness(t *testing.T) {
	// gains 1,1,0,1 losses 0,0,1,0 with alpha 1/2:
	// avgGain 1,1,0.5,0.75  avgLoss 0,0,0.5,0.25
	got, err := Rsi(seq(1, 2, 3, 2, 3), 2)
	require.NoError(t, err)
	assertSeries(t, "RSI(2)", got, []float64{nan, 100, 100, 50, 75}, 1e-9)
}

func TestRsi_FlatIsNeutral(t *testing.T) {
	got, err := Rsi(seq(5, 5, 5, 6), 2)
	require.NoError(t, err)
	assertSeries(t, "RSI(2)", got, []float64{nan, 50, 50, 100}, 1e-9)
}

func TestRsi_Bounds(t *testing.T) {
	closes := []float64{100, 102, 101, 103, 104, 102, 99, 98, 101, 105, 106, 104, 103, 107, 108}
	got, err := Rsi(series.New(closes), 14)
	require.NoError(t, err)
	for i := 1; i < got.Len(); i++ {
		v, ok := got.Get(i)
		require.True(t, ok)
		assert.GreaterOrEqual(t, v, 0.0)
		assert.LessOrEqual(t, v, 100.0)
	}
}

func TestStoch_Correctness(t *testing.T) {
	high := series.Fill(3, 5)
	low := series.Fill(1, 5)
	got, err := Stoch(high, low, seq(2, 2.5, 2, 1.5, 2), 3)
	require.NoError(t, err)
	assertSeries(t, "STOCH(3)", got, []float64{50, 75, 50, 25, 50}, 1e-9)
}

func TestSso_Correctness(t *testing.T) {
	high := series.Fill(3, 5)
	low := series.Fill(1, 5)
	got, err := Sso(high, low, seq(2, 2.5, 2, 1.5, 2), 3, WMA)
	require.NoError(t, err)
	assertSeries(t, "SSO(3)", got, []float64{50, 50, 58.333336, 41.666668, 41.666668}, 1e-5)
}

func TestMfi_Correctness(t *testing.T) {
	hlc3 := seq(2.0, 2.1666, 2.0, 1.8333, 2.0)
	volume := series.Fill(1, 5)
	got, err := Mfi(hlc3, volume, 3)
	require.NoError(t, err)
	assertSeries(t, "MFI(3)", got, []float64{50, 100, 51.9992, 36.1106, 34.2859}, 1e-3)
}

func TestMacd_FlatIsZero(t *testing.T) {
	line, sig, hist, err := Macd(series.Fill(10, 40), 12, 26, 9)
	require.NoError(t, err)
	for _, s := range []series.Series{line, sig, hist} {
		v, ok := s.Last()
		require.True(t, ok)
		assertClose(t, "MACD", v, 0, 1e-12)
	}
}

// ────────────────────────────────────────────────────────────
// Volatility
// ────────────────────────────────────────────────────────────

func TestTrueRangeAndAtr(t *testing.T) {
	high := seq(10, 15)
	low := seq(8, 13)
	close := seq(9, 14)

	assertSeries(t, "TR", TrueRange(high, low, close), []float64{2, 6}, 1e-9)

	atr, err := Atr(high, low, close, 2)
	require.NoError(t, err)
	assertSeries(t, "ATR(2)", atr, []float64{2, 4}, 1e-9)
}

func TestSnatr_Range(t *testing.T) {
	high := seq(10, 12, 11, 15, 14, 13, 18, 16, 15, 17)
	low := seq(9, 10, 10, 12, 12, 12, 14, 15, 14, 15)
	close := seq(9.5, 11, 10.5, 14, 13, 12.5, 17, 15.5, 14.5, 16)
	got, err := Snatr(high, low, close, 4, 2)
	require.NoError(t, err)
	for i := 0; i < got.Len(); i++ {
		if v, ok := got.Get(i); ok {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
		}
	}
}

func TestBollinger_Correctness(t *testing.T) {
	bands, err := Bollinger(seq(2, 4, 4, 4, 5, 5, 7, 9), 8, 2)
	require.NoError(t, err)

	up, _ := bands.Upper.Last()
	mid, _ := bands.Middle.Last()
	lo, _ := bands.Lower.Last()
	assertClose(t, "BB upper", up, 9, 1e-9)
	assertClose(t, "BB middle", mid, 5, 1e-9)
	assertClose(t, "BB lower", lo, 1, 1e-9)

	_, ok := bands.Middle.Get(6)
	assert.False(t, ok, "strict window must warm up")
}

func TestHighestLowest(t *testing.T) {
	hi, err := Highest(seq(1, 3, 2, 5, 4), 2)
	require.NoError(t, err)
	assertSeries(t, "HIGHEST(2)", hi, []float64{1, 3, 3, 5, 5}, 0)

	lo, err := Lowest(seq(1, 3, 2, 5, 4), 2)
	require.NoError(t, err)
	assertSeries(t, "LOWEST(2)", lo, []float64{1, 1, 2, 2, 4}, 0)
}

// ────────────────────────────────────────────────────────────
// MAType
// ────────────────────────────────────────────────────────────

func TestMATypeCodes(t *testing.T) {
	assert.Equal(t, ALMA, MATypeFromCode(1))
	assert.Equal(t, KAMA, MATypeFromCode(7))
	assert.Equal(t, SMA, MATypeFromCode(10))
	assert.Equal(t, ZLEMA, MATypeFromCode(17))
	assert.Equal(t, SMA, MATypeFromCode(99), "unknown codes fall back to SMA")
	assert.Equal(t, "SINWMA", SINWMA.String())
}

func TestParseMAType(t *testing.T) {
	got, err := ParseMAType(" kama ")
	require.NoError(t, err)
	assert.Equal(t, KAMA, got)

	_, err = ParseMAType("LSMA")
	assert.True(t, errors.Is(err, ErrUnsupportedMA))
}
