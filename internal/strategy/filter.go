package strategy

import (
	"fmt"

	"ta-engine/internal/indicator"
	"ta-engine/internal/model"
	"ta-engine/internal/series"
)

// RSIFilter blocks longs when RSI is overbought and shorts when it is
// oversold.
type RSIFilter struct {
	Period     int
	Oversold   float64
	Overbought float64
}

// DefaultRSIFilter is RSI(14) with 30/70 bands.
func DefaultRSIFilter() *RSIFilter {
	return &RSIFilter{Period: 14, Oversold: 30, Overbought: 70}
}

func (f *RSIFilter) ID() string {
	return fmt.Sprintf("RSI:%d:%g:%g", f.Period, f.Oversold, f.Overbought)
}

func (f *RSIFilter) Lookback() int { return f.Period }

func (f *RSIFilter) Apply(o model.OHLCV) (long, short series.Bools) {
	rsi, err := indicator.Rsi(o.Close, f.Period)
	if err != nil {
		return noEntries(o)
	}
	return rsi.LeScalar(f.Overbought), rsi.GeScalar(f.Oversold)
}

// DumbFilter allows everything.
type DumbFilter struct{}

func (DumbFilter) ID() string    { return "DUMB" }
func (DumbFilter) Lookback() int { return 0 }

func (DumbFilter) Apply(o model.OHLCV) (long, short series.Bools) {
	all := series.NewBools(o.Len()).Not()
	return all, all
}
