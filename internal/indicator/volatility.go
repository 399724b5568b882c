package indicator

import (
	"fmt"

	"ta-engine/internal/series"
)

// TrueRange is max(high-low, |high-prevClose|, |low-prevClose|). The first
// bar has no previous close and reads high-low.
func TrueRange(high, low, close series.Series) series.Series {
	prev := close.Shift(1)
	hl := high.Sub(low)
	hc := high.Sub(prev).Abs()
	lc := low.Sub(prev).Abs()
	return series.Select(prev.IsMissing(), hl, hl.Max(hc).Max(lc))
}

// Atr is the Wilder-smoothed average true range.
func Atr(high, low, close series.Series, period int) (series.Series, error) {
	atr, err := Smma(TrueRange(high, low, close), period)
	if err != nil {
		return series.Series{}, fmt.Errorf("ATR: %w", err)
	}
	return atr, nil
}

// Snatr is the ATR normalized into its own period range (0..1) and then
// smoothed with a WMA.
func Snatr(high, low, close series.Series, atrPeriod, smoothing int) (series.Series, error) {
	atr, err := Atr(high, low, close, atrPeriod)
	if err != nil {
		return series.Series{}, fmt.Errorf("SNATR: %w", err)
	}
	w, err := window("SNATR", atrPeriod, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	lowest := atr.Lowest(w)
	norm := atr.Sub(lowest).Div(atr.Highest(w).Sub(lowest))
	return Wma(norm, smoothing)
}

// Bands holds Bollinger bands.
type Bands struct {
	Upper  series.Series
	Middle series.Series
	Lower  series.Series
}

// Bollinger returns the period SMA plus and minus mult population standard
// deviations. The window is strict.
func Bollinger(src series.Series, period int, mult float64) (Bands, error) {
	w, err := window("BB", period, series.Strict)
	if err != nil {
		return Bands{}, err
	}
	mid := src.Mean(w)
	dev := src.StdDev(w).MulScalar(mult)
	return Bands{Upper: mid.Add(dev), Middle: mid, Lower: mid.Sub(dev)}, nil
}

// Highest is the period high of src.
func Highest(src series.Series, period int) (series.Series, error) {
	w, err := window("HIGHEST", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	return src.Highest(w), nil
}

// Lowest is the period low of src.
func Lowest(src series.Series, period int) (series.Series, error) {
	w, err := window("LOWEST", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	return src.Lowest(w), nil
}
