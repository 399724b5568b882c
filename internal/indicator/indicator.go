// Package indicator computes technical indicators over candle histories.
//
// Every indicator is a composition of internal/series operations and returns
// a series aligned with its input. Warm-up positions are missing rather than
// zero. Parameters are validated up front; a bad period is an error, never a
// panic.
package indicator

import (
	"errors"
	"fmt"
	"strings"

	"ta-engine/internal/model"
	"ta-engine/internal/series"
)

// ErrUnsupportedMA is returned for a moving-average family that has a code
// but no implementation.
var ErrUnsupportedMA = errors.New("unsupported moving average")

// MAType identifies a moving-average family. The numeric values are the
// smoothing codes accepted by the strategy host.
type MAType int

const (
	ALMA MAType = iota + 1
	DEMA
	EMA
	FRAMA
	GMA
	HMA
	KAMA
	RMSMA
	SINWMA
	SMA
	SMMA
	T3
	TEMA
	TMA
	VWMA
	WMA
	ZLEMA
)

var maNames = map[MAType]string{
	ALMA: "ALMA", DEMA: "DEMA", EMA: "EMA", FRAMA: "FRAMA", GMA: "GMA",
	HMA: "HMA", KAMA: "KAMA", RMSMA: "RMSMA", SINWMA: "SINWMA", SMA: "SMA",
	SMMA: "SMMA", T3: "T3", TEMA: "TEMA", TMA: "TMA", VWMA: "VWMA",
	WMA: "WMA", ZLEMA: "ZLEMA",
}

func (t MAType) String() string {
	if n, ok := maNames[t]; ok {
		return n
	}
	return fmt.Sprintf("MAType(%d)", int(t))
}

// MATypeFromCode maps a host smoothing code to its family. Unknown codes fall
// back to SMA, matching the host contract.
func MATypeFromCode(code int) MAType {
	if _, ok := maNames[MAType(code)]; ok {
		return MAType(code)
	}
	return SMA
}

// ParseMAType maps a family name ("ema", "SINWMA") to its MAType.
func ParseMAType(name string) (MAType, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	for t, n := range maNames {
		if n == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("moving average %q: %w", name, ErrUnsupportedMA)
}

// MovingAverage applies the family to the close column. VWMA also reads the
// volume column.
func MovingAverage(t MAType, o model.OHLCV, period int) (series.Series, error) {
	src := o.Close
	switch t {
	case ALMA:
		return Alma(src, period, 0.85, 6)
	case DEMA:
		return Dema(src, period)
	case EMA:
		return Ema(src, period)
	case GMA:
		return Gma(src, period)
	case HMA:
		return Hma(src, period)
	case KAMA:
		return Kama(src, period)
	case SINWMA:
		return Sinwma(src, period)
	case SMA:
		return Sma(src, period)
	case SMMA:
		return Smma(src, period)
	case T3:
		return T3Ma(src, period, 0.7)
	case TEMA:
		return Tema(src, period)
	case TMA:
		return Tma(src, period)
	case VWMA:
		return Vwma(src, o.Volume, period)
	case WMA:
		return Wma(src, period)
	case ZLEMA:
		return Zlema(src, period)
	default:
		return series.Series{}, fmt.Errorf("%s: %w", t, ErrUnsupportedMA)
	}
}

// window builds a window or reports the bad period under name.
func window(name string, period int, mode series.Mode) (series.Window, error) {
	w, err := series.NewWindow(period, mode)
	if err != nil {
		return series.Window{}, fmt.Errorf("%s: %w", name, err)
	}
	return w, nil
}
