// Package pattern detects candlestick patterns. Each detector returns a
// series.Bools aligned with the input history; true marks the bar on which
// the pattern completes.
package pattern

import (
	"fmt"

	"ta-engine/internal/model"
	"ta-engine/internal/series"
)

// Lookback is the number of bars before the completing bar that the
// longest pattern inspects.
const Lookback = 3

// Detector flags the completing bar of a pattern.
type Detector func(o model.OHLCV) series.Bools

// Pattern pairs the bullish and bearish variant of a named pattern.
type Pattern struct {
	Name    string
	Bullish Detector
	Bearish Detector
}

// All lists every pattern this package knows, in a stable order.
var All = []Pattern{
	{Name: "doji", Bullish: DojiBullish, Bearish: DojiBearish},
	{Name: "counterattack", Bullish: CounterattackBullish, Bearish: CounterattackBearish},
	{Name: "three_candles", Bullish: ThreeCandlesBullish, Bearish: ThreeCandlesBearish},
	{Name: "bottle", Bullish: BottleBullish, Bearish: BottleBearish},
	{Name: "doppelganger", Bullish: DoppelgangerBullish, Bearish: DoppelgangerBearish},
	{Name: "engulfing", Bullish: EngulfingBullish, Bearish: EngulfingBearish},
}

// Lookup returns the named pattern.
func Lookup(name string) (Pattern, bool) {
	for _, p := range All {
		if p.Name == name {
			return p, true
		}
	}
	return Pattern{}, false
}

// Within flags every bar on which d completed on that bar or on one of the
// previous within-1 bars.
func Within(d Detector, o model.OHLCV, within int) (series.Bools, error) {
	w, err := series.NewWindow(within, series.Partial)
	if err != nil {
		return series.Bools{}, fmt.Errorf("pattern window: %w", err)
	}
	return d(o).Float().Highest(w).GtScalar(0), nil
}

// and folds any number of conditions of equal length.
func and(first series.Bools, rest ...series.Bools) series.Bools {
	out := first
	for _, b := range rest {
		out = out.And(b)
	}
	return out
}

// DojiBullish: a bearish bar, then a doji (open == close), then a bullish bar.
func DojiBullish(o model.OHLCV) series.Bools {
	return and(
		o.Close.Gt(o.Open),
		o.Close.Shift(1).Eq(o.Open.Shift(1)),
		o.Close.Shift(2).Lt(o.Open.Shift(2)),
	)
}

// DojiBearish mirrors DojiBullish.
func DojiBearish(o model.OHLCV) series.Bools {
	return and(
		o.Close.Lt(o.Open),
		o.Close.Shift(1).Eq(o.Open.Shift(1)),
		o.Close.Shift(2).Gt(o.Open.Shift(2)),
	)
}

// CounterattackBullish: after a bearish bar, a bar gaps below its close and
// rallies back to close exactly at it.
func CounterattackBullish(o model.OHLCV) series.Bools {
	prevClose := o.Close.Shift(1)
	return and(
		o.Open.Lt(prevClose),
		o.Close.Gt(o.Open),
		prevClose.Lt(o.Open.Shift(1)),
		o.Close.Eq(prevClose),
	)
}

// CounterattackBearish mirrors CounterattackBullish.
func CounterattackBearish(o model.OHLCV) series.Bools {
	prevClose := o.Close.Shift(1)
	return and(
		o.Open.Gt(prevClose),
		o.Close.Lt(o.Open),
		prevClose.Gt(o.Open.Shift(1)),
		o.Close.Eq(prevClose),
	)
}

// threeCandles requires three consecutive closes moving in one direction,
// each with the largest body of its five-bar window.
func threeCandles(o model.OHLCV, step func(cur, prev series.Series) series.Bools) series.Bools {
	w := series.MustWindow(5, series.Partial)
	body := o.Open.Sub(o.Close).Abs()
	c := o.Close
	conds := []series.Bools{
		step(c, c.Shift(1)),
		step(c.Shift(1), c.Shift(2)),
		step(c.Shift(2), c.Shift(3)),
	}
	for lag := 0; lag < 3; lag++ {
		b := body.Shift(lag)
		conds = append(conds, b.Ge(b.Highest(w)))
	}
	return and(conds[0], conds[1:]...)
}

// ThreeCandlesBullish: three rising closes on dominant bodies.
func ThreeCandlesBullish(o model.OHLCV) series.Bools {
	return threeCandles(o, series.Series.Gt)
}

// ThreeCandlesBearish: three falling closes on dominant bodies.
func ThreeCandlesBearish(o model.OHLCV) series.Bools {
	return threeCandles(o, series.Series.Lt)
}

// BottleBullish: two bullish bars where the second opens below the first
// close, on its low, and closes higher.
func BottleBullish(o model.OHLCV) series.Bools {
	c1, c2 := o.Close.Shift(1), o.Close.Shift(2)
	o1, o2 := o.Open.Shift(1), o.Open.Shift(2)
	return and(
		c2.Gt(o2),
		c1.Gt(o1),
		o1.Lt(c2),
		o1.Eq(o.Low.Shift(1)),
		c1.Gt(c2),
	)
}

// BottleBearish mirrors BottleBullish using the high.
func BottleBearish(o model.OHLCV) series.Bools {
	c1, c2 := o.Close.Shift(1), o.Close.Shift(2)
	o1, o2 := o.Open.Shift(1), o.Open.Shift(2)
	return and(
		c2.Lt(o2),
		c1.Lt(o1),
		o1.Gt(c2),
		o1.Eq(o.High.Shift(1)),
		c1.Lt(c2),
	)
}

// twins reports two consecutive bars (one and two back) with identical
// range and identical body bounds.
func twins(o model.OHLCV) series.Bools {
	c1, c2 := o.Close.Shift(1), o.Close.Shift(2)
	o1, o2 := o.Open.Shift(1), o.Open.Shift(2)
	return and(
		o.High.Shift(2).Eq(o.High.Shift(1)),
		o.Low.Shift(2).Eq(o.Low.Shift(1)),
		c1.Max(o1).Eq(c2.Max(o2)),
		c1.Min(o1).Eq(c2.Min(o2)),
	)
}

// DoppelgangerBullish: a bearish bar followed by two identical bars.
func DoppelgangerBullish(o model.OHLCV) series.Bools {
	return o.Close.Shift(3).Lt(o.Open.Shift(3)).And(twins(o))
}

// DoppelgangerBearish: a bullish bar followed by two identical bars.
func DoppelgangerBearish(o model.OHLCV) series.Bools {
	return o.Close.Shift(3).Gt(o.Open.Shift(3)).And(twins(o))
}

// EngulfingBullish: a bullish body that covers the previous bearish body.
func EngulfingBullish(o model.OHLCV) series.Bools {
	prevOpen, prevClose := o.Open.Shift(1), o.Close.Shift(1)
	return and(
		prevClose.Lt(prevOpen),
		o.Close.Gt(o.Open),
		o.Open.Le(prevClose),
		o.Close.Ge(prevOpen),
	)
}

// EngulfingBearish: a bearish body that covers the previous bullish body.
func EngulfingBearish(o model.OHLCV) series.Bools {
	prevOpen, prevClose := o.Open.Shift(1), o.Close.Shift(1)
	return and(
		prevClose.Gt(prevOpen),
		o.Close.Lt(o.Open),
		o.Open.Ge(prevClose),
		o.Close.Le(prevOpen),
	)
}
