package indicator

import (
	"fmt"

	"ta-engine/internal/series"
)

// CCIFactor is Lambert's constant for the commodity channel index.
const CCIFactor = 0.015

// Roc is the percentage rate of change over period bars. Positions without a
// reference value, or with a zero reference, read 0.
func Roc(src series.Series, period int) (series.Series, error) {
	if period <= 0 {
		return series.Series{}, fmt.Errorf("ROC period %d: %w", period, series.ErrInvalidPeriod)
	}
	prev := src.Shift(period)
	return src.Sub(prev).MulScalar(100).Div(prev).FillMissing(0), nil
}

// Cci is the commodity channel index of a typical-price series.
func Cci(hlc3 series.Series, period int, factor float64) (series.Series, error) {
	w, err := window("CCI", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	return hlc3.Sub(hlc3.Mean(w)).Div(hlc3.MeanAbsDev(w).MulScalar(factor)), nil
}

// Stoch is the stochastic %K: where close sits in the period's high-low
// range, 0..100. A flat range is missing.
func Stoch(high, low, close series.Series, period int) (series.Series, error) {
	w, err := window("STOCH", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	lowest := low.Lowest(w)
	return close.Sub(lowest).MulScalar(100).Div(high.Highest(w).Sub(lowest)), nil
}

// Sso is the smoothed stochastic: each of high, low and close is smoothed
// with the chosen family (SMA, WMA or HMA) before %K. Missing positions
// read 50.
func Sso(high, low, close series.Series, period int, smoothing MAType) (series.Series, error) {
	smooth := func(s series.Series) (series.Series, error) {
		switch smoothing {
		case WMA:
			return Wma(s, period)
		case HMA:
			return Hma(s, period)
		default:
			return Sma(s, period)
		}
	}
	h, err := smooth(high)
	if err != nil {
		return series.Series{}, fmt.Errorf("SSO: %w", err)
	}
	l, _ := smooth(low)
	c, _ := smooth(close)
	k, err := Stoch(h, l, c, period)
	if err != nil {
		return series.Series{}, fmt.Errorf("SSO: %w", err)
	}
	return k.FillMissing(50), nil
}

// Mfi is the money flow index over a typical-price series. All-positive flow
// reads 100 and an undefined ratio reads 50.
func Mfi(hlc3, volume series.Series, period int) (series.Series, error) {
	w, err := window("MFI", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	n := hlc3.Len()
	delta := hlc3.Change(1)
	flow := volume.Mul(hlc3)

	upper := delta.GtScalar(0).Float().Mul(flow).Sum(w)
	lower := delta.LtScalar(0).Float().Mul(flow).Sum(w)

	mfi := upper.Div(lower).AddScalar(1).ScalarDiv(100).ScalarSub(100)
	allUp := lower.EqScalar(0).And(upper.GtScalar(0))
	return series.Select(allUp, series.Fill(100, n), mfi).FillMissing(50), nil
}

// Macd returns the MACD line, its signal line and the histogram.
func Macd(src series.Series, fast, slow, signal int) (line, sig, hist series.Series, err error) {
	f, err := Ema(src, fast)
	if err != nil {
		return line, sig, hist, fmt.Errorf("MACD fast: %w", err)
	}
	s, err := Ema(src, slow)
	if err != nil {
		return line, sig, hist, fmt.Errorf("MACD slow: %w", err)
	}
	line = f.Sub(s)
	sig, err = Ema(line, signal)
	if err != nil {
		return line, sig, hist, fmt.Errorf("MACD signal: %w", err)
	}
	return line, sig, line.Sub(sig), nil
}
