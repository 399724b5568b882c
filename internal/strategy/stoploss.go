package strategy

import (
	"errors"
	"fmt"

	"ta-engine/internal/indicator"
	"ta-engine/internal/model"
)

// ATRStop places the stop Multi ATRs away from the newest close.
type ATRStop struct {
	Period int
	Multi  float64
}

func (s ATRStop) ID() string { return fmt.Sprintf("ATR:%d:%g", s.Period, s.Multi) }

// Levels returns the long and short stop prices for the newest bar.
func (s ATRStop) Levels(o model.OHLCV) (stopLong, stopShort float64, err error) {
	atr, err := indicator.Atr(o.High, o.Low, o.Close, s.Period)
	if err != nil {
		return 0, 0, fmt.Errorf("stop: %w", err)
	}
	a, ok := atr.Last()
	c, okClose := o.Close.Last()
	if !ok || !okClose {
		return 0, 0, errors.New("stop: newest ATR or close is missing")
	}
	return c - a*s.Multi, c + a*s.Multi, nil
}
