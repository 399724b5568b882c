package strategy

import (
	"errors"
	"log/slog"

	"ta-engine/internal/model"
)

// Engine evaluates every registered strategy against candle histories and
// returns a SignalResult for each entry decision.
type Engine struct {
	reg *Registry
}

// NewEngine creates a strategy engine over reg.
func NewEngine(reg *Registry) *Engine {
	return &Engine{reg: reg}
}

// Evaluate runs all strategies on one history and returns the entries found
// on its newest bar. Strategies without enough data are skipped.
func (e *Engine) Evaluate(o model.OHLCV) []model.SignalResult {
	var out []model.SignalResult
	for _, h := range e.reg.Handles() {
		s, ok := e.reg.Get(h)
		if !ok {
			continue
		}
		d, err := s.Evaluate(o)
		if err != nil {
			if !errors.Is(err, ErrNotEnoughData) {
				slog.Warn("strategy: evaluate failed", "handle", h, "key", o.Key(), "error", err)
			}
			continue
		}
		if !d.GoLong && !d.GoShort {
			continue
		}
		out = append(out, model.SignalResult{
			Strategy:  s.Name,
			Handle:    h,
			Token:     o.Token,
			Exchange:  o.Exchange,
			TF:        o.TF,
			TS:        o.LastTS(),
			GoLong:    d.GoLong,
			GoShort:   d.GoShort,
			StopLong:  d.StopLong,
			StopShort: d.StopShort,
		})
	}
	return out
}
