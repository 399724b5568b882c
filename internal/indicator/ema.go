package indicator

import (
	"fmt"

	"ta-engine/internal/series"
)

func smoothWith(kind series.Smoothing, src series.Series, period int) (series.Series, error) {
	m, err := series.NewSmoother(kind, period)
	if err != nil {
		return series.Series{}, err
	}
	return m.Apply(src), nil
}

// Ema is the exponential moving average with alpha 2/(period+1), seeded with
// the first present input.
func Ema(src series.Series, period int) (series.Series, error) {
	return smoothWith(series.Exponential, src, period)
}

// Kama is Kaufman's adaptive moving average. A missing input resets it and
// it seeds again from the next present value.
func Kama(src series.Series, period int) (series.Series, error) {
	return smoothWith(series.Adaptive, src, period)
}

// Dema is 2·EMA - EMA(EMA).
func Dema(src series.Series, period int) (series.Series, error) {
	e1, err := Ema(src, period)
	if err != nil {
		return series.Series{}, fmt.Errorf("DEMA: %w", err)
	}
	e2, _ := Ema(e1, period)
	return e1.MulScalar(2).Sub(e2), nil
}

// Tema is 3·EMA - 3·EMA² + EMA³.
func Tema(src series.Series, period int) (series.Series, error) {
	e1, err := Ema(src, period)
	if err != nil {
		return series.Series{}, fmt.Errorf("TEMA: %w", err)
	}
	e2, _ := Ema(e1, period)
	e3, _ := Ema(e2, period)
	return e1.Sub(e2).MulScalar(3).Add(e3), nil
}

// Zlema removes lag by feeding EMA with src + (src - src[lag]), where lag is
// (period-1)/2.
func Zlema(src series.Series, period int) (series.Series, error) {
	if period <= 0 {
		return series.Series{}, fmt.Errorf("ZLEMA period %d: %w", period, series.ErrInvalidPeriod)
	}
	lag := (period - 1) / 2
	return Ema(src.Add(src.Change(lag)), period)
}

// T3Ma is Tillson's T3: three generalized DEMAs with volume factor v.
func T3Ma(src series.Series, period int, v float64) (series.Series, error) {
	if period <= 0 {
		return series.Series{}, fmt.Errorf("T3 period %d: %w", period, series.ErrInvalidPeriod)
	}
	e := make([]series.Series, 7)
	e[0] = src
	for i := 1; i < len(e); i++ {
		e[i], _ = Ema(e[i-1], period)
	}
	v2, v3 := v*v, v*v*v
	c1 := -v3
	c2 := 3*v2 + 3*v3
	c3 := -6*v2 - 3*v - 3*v3
	c4 := 1 + 3*v + v3 + 3*v2
	return e[6].MulScalar(c1).
		Add(e[5].MulScalar(c2)).
		Add(e[4].MulScalar(c3)).
		Add(e[3].MulScalar(c4)), nil
}
