// Package strategy combines indicators into entry decisions.
//
// A Strategy is a Signal that proposes entries, a Filter that gates them by
// market regime, a Confirm that must agree on the same bar, and an ATR stop.
// Strategies are registered in a Registry and addressed by integer handle,
// which is how the Host exposes them to an embedding application.
package strategy

import (
	"errors"
	"fmt"

	"ta-engine/internal/model"
	"ta-engine/internal/series"
)

// ErrNotEnoughData is returned when a history is shorter than a strategy's
// lookback.
var ErrNotEnoughData = errors.New("not enough data")

// Signal proposes long and short entries.
type Signal interface {
	ID() string
	Lookback() int
	Entry(o model.OHLCV) (long, short series.Bools)
}

// Filter allows or blocks entries by regime.
type Filter interface {
	ID() string
	Lookback() int
	Apply(o model.OHLCV) (long, short series.Bools)
}

// Confirm must agree with a signal on the same bar.
type Confirm interface {
	ID() string
	Lookback() int
	Validate(o model.OHLCV) (long, short series.Bools)
}

// Decision is a strategy's verdict on the newest bar.
type Decision struct {
	GoLong    bool
	GoShort   bool
	StopLong  float64 // stop price for a long entry; 0 if no entry
	StopShort float64
}

// Strategy is one configured Signal/Filter/Confirm/stop combination.
type Strategy struct {
	Name    string
	Signal  Signal
	Filter  Filter
	Confirm Confirm
	Stop    ATRStop
}

// ID identifies the strategy and all of its parameters.
func (s *Strategy) ID() string {
	return fmt.Sprintf("%s_%s_%s_%s_%s", s.Name, s.Signal.ID(), s.Filter.ID(), s.Confirm.ID(), s.Stop.ID())
}

// Lookback is the minimum history the strategy needs.
func (s *Strategy) Lookback() int {
	return max(s.Signal.Lookback(), s.Filter.Lookback(), s.Confirm.Lookback(), s.Stop.Period) + 1
}

// Entries evaluates the strategy on every bar of o.
func (s *Strategy) Entries(o model.OHLCV) (long, short series.Bools) {
	sigLong, sigShort := s.Signal.Entry(o)
	filtLong, filtShort := s.Filter.Apply(o)
	confLong, confShort := s.Confirm.Validate(o)
	return sigLong.And(filtLong).And(confLong), sigShort.And(filtShort).And(confShort)
}

// Evaluate returns the decision for the newest bar of o.
func (s *Strategy) Evaluate(o model.OHLCV) (Decision, error) {
	if need := s.Lookback(); o.Len() < need {
		return Decision{}, fmt.Errorf("%s: have %d bars, need %d: %w", s.Name, o.Len(), need, ErrNotEnoughData)
	}
	long, short := s.Entries(o)
	d := Decision{GoLong: long.Last(), GoShort: short.Last()}
	if d.GoLong || d.GoShort {
		stopLong, stopShort, err := s.Stop.Levels(o)
		if err != nil {
			return Decision{}, fmt.Errorf("%s: %w", s.Name, err)
		}
		if d.GoLong {
			d.StopLong = stopLong
		}
		if d.GoShort {
			d.StopShort = stopShort
		}
	}
	return d, nil
}
