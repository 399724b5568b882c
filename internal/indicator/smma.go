package indicator

import "ta-engine/internal/series"

// Smma is the smoothed (Wilder) moving average with alpha 1/period. It holds
// its last value across missing inputs.
func Smma(src series.Series, period int) (series.Series, error) {
	return smoothWith(series.Running, src, period)
}
