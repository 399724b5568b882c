package model

import (
	"time"

	"ta-engine/internal/series"
)

// OHLCV is the column form of a candle history, oldest first. Prices are in
// rupees; every column has the same length.
type OHLCV struct {
	Exchange string
	Token    string
	TF       int
	TS       []time.Time
	Open     series.Series
	High     series.Series
	Low      series.Series
	Close    series.Series
	Volume   series.Series
}

// FromCandles builds the column form of a TF candle history. Candles must
// already be in timestamp order.
func FromCandles(candles []TFCandle) OHLCV {
	n := len(candles)
	ts := make([]time.Time, n)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	closes := make([]float64, n)
	vol := make([]float64, n)
	for i, c := range candles {
		ts[i] = c.TS
		open[i] = PaiseToPrice(c.Open)
		high[i] = PaiseToPrice(c.High)
		low[i] = PaiseToPrice(c.Low)
		closes[i] = PaiseToPrice(c.Close)
		vol[i] = float64(c.Volume)
	}
	o := OHLCV{
		TS:     ts,
		Open:   series.New(open),
		High:   series.New(high),
		Low:    series.New(low),
		Close:  series.New(closes),
		Volume: series.New(vol),
	}
	if n > 0 {
		o.Exchange, o.Token, o.TF = candles[0].Exchange, candles[0].Token, candles[0].TF
	}
	return o
}

// Len returns the number of bars.
func (o OHLCV) Len() int { return o.Close.Len() }

// Key returns "exchange:token".
func (o OHLCV) Key() string { return o.Exchange + ":" + o.Token }

// LastTS returns the timestamp of the newest bar, zero if empty.
func (o OHLCV) LastTS() time.Time {
	if len(o.TS) == 0 {
		return time.Time{}
	}
	return o.TS[len(o.TS)-1]
}

// HLC3 is the typical price (high + low + close) / 3.
func (o OHLCV) HLC3() series.Series {
	return o.High.Add(o.Low).Add(o.Close).DivScalar(3)
}

// HL2 is the median price (high + low) / 2.
func (o OHLCV) HL2() series.Series {
	return o.High.Add(o.Low).DivScalar(2)
}
