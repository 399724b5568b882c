package indicator

import (
	"fmt"

	"ta-engine/internal/series"
)

// Rsi is the Relative Strength Index with Wilder smoothing of gains and
// losses. A window with gains and no losses reads 100; a flat window with
// neither reads a neutral 50.
func Rsi(src series.Series, period int) (series.Series, error) {
	m, err := series.NewSmoother(series.Running, period)
	if err != nil {
		return series.Series{}, fmt.Errorf("RSI: %w", err)
	}
	n := src.Len()
	zero := series.Fill(0, n)
	delta := src.Change(1)

	avgGain := m.Apply(delta.Max(zero))
	avgLoss := m.Apply(delta.Neg().Max(zero))

	rsi := avgGain.Div(avgLoss).AddScalar(1).ScalarDiv(100).ScalarSub(100)
	noLoss := avgLoss.EqScalar(0)
	rsi = series.Select(noLoss, series.Fill(100, n), rsi)
	return series.Select(noLoss.And(avgGain.EqScalar(0)), series.Fill(50, n), rsi), nil
}
