package indicator

import (
	"fmt"
	"math"

	"ta-engine/internal/series"
)

// Sma is the simple moving average. The window is partial, so the first
// period-1 positions average what has been seen so far.
func Sma(src series.Series, period int) (series.Series, error) {
	w, err := window("SMA", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	return src.Mean(w), nil
}

// Tma is the triangular moving average: Sma applied twice.
func Tma(src series.Series, period int) (series.Series, error) {
	first, err := Sma(src, period)
	if err != nil {
		return series.Series{}, fmt.Errorf("TMA: %w", err)
	}
	return Sma(first, period)
}

// Wma is the linearly weighted moving average, newest weighted heaviest.
func Wma(src series.Series, period int) (series.Series, error) {
	w, err := series.LinearWeighting(period)
	if err != nil {
		return series.Series{}, fmt.Errorf("WMA: %w", err)
	}
	return w.Apply(src), nil
}

// Sinwma weights the window by a half sine wave, peaking in the middle.
func Sinwma(src series.Series, period int) (series.Series, error) {
	w, err := series.SineWeighting(period)
	if err != nil {
		return series.Series{}, fmt.Errorf("SINWMA: %w", err)
	}
	return w.Apply(src), nil
}

// Alma is the Arnaud Legoux moving average: a Gaussian weighting centred at
// offset·(period-1) with width period/sigma.
func Alma(src series.Series, period int, offset, sigma float64) (series.Series, error) {
	if period <= 0 {
		return series.Series{}, fmt.Errorf("ALMA period %d: %w", period, series.ErrInvalidPeriod)
	}
	if sigma <= 0 {
		return series.Series{}, fmt.Errorf("ALMA sigma %v must be positive", sigma)
	}
	m := offset * float64(period-1)
	s := float64(period) / sigma
	weights := make([]float64, period)
	for i := range weights {
		d := float64(i) - m
		weights[i] = math.Exp(-d * d / (2 * s * s))
	}
	w, err := series.NewWeighting(period, weights)
	if err != nil {
		return series.Series{}, fmt.Errorf("ALMA: %w", err)
	}
	return w.Apply(src), nil
}

// Hma is the Hull moving average: WMA(2·WMA(n/2) - WMA(n), √n).
func Hma(src series.Series, period int) (series.Series, error) {
	if period <= 0 {
		return series.Series{}, fmt.Errorf("HMA period %d: %w", period, series.ErrInvalidPeriod)
	}
	half, err := Wma(src, max(1, period/2))
	if err != nil {
		return series.Series{}, err
	}
	full, err := Wma(src, period)
	if err != nil {
		return series.Series{}, err
	}
	return Wma(half.MulScalar(2).Sub(full), max(1, int(math.Sqrt(float64(period)))))
}

// Vwma is the volume-weighted moving average over a strict window.
func Vwma(src, volume series.Series, period int) (series.Series, error) {
	w, err := window("VWMA", period, series.Strict)
	if err != nil {
		return series.Series{}, err
	}
	return src.Mul(volume).Sum(w).Div(volume.Sum(w)), nil
}

// Gma is the geometric moving average. Non-positive inputs are missing.
func Gma(src series.Series, period int) (series.Series, error) {
	w, err := window("GMA", period, series.Partial)
	if err != nil {
		return series.Series{}, err
	}
	return src.Log().Mean(w).Map(math.Exp), nil
}
