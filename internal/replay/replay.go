// Package replay walks stored candle histories bar by bar and evaluates
// strategies on every prefix, as a backtest of entry signals.
package replay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ta-engine/internal/model"
)

// CandleSource reads candles newer than afterTS (unix seconds), oldest first.
type CandleSource interface {
	ReadTFCandles(ctx context.Context, exchange, token string, tf int, afterTS int64) ([]model.TFCandle, error)
}

// EvalFunc returns the entries found on the newest bar of o.
type EvalFunc func(o model.OHLCV) []model.SignalResult

// Replayer feeds growing windows of a candle history to an EvalFunc.
type Replayer struct {
	src CandleSource

	// Window caps the bars handed to each evaluation (0 = whole prefix).
	Window int
	// Speed scales the gaps between candle timestamps: 1 is real time,
	// 100 is 100x, 0 is as fast as possible.
	Speed float64
}

// Stats summarises one replay.
type Stats struct {
	Bars    int
	Long    int
	Short   int
	First   time.Time
	Last    time.Time
	Signals []model.SignalResult
}

// New creates a Replayer over src.
func New(src CandleSource) *Replayer {
	return &Replayer{src: src}
}

// Run replays exchange:token at tf from fromTS and collects every entry.
func (r *Replayer) Run(ctx context.Context, exchange, token string, tf int, fromTS int64, eval EvalFunc) (Stats, error) {
	var st Stats
	candles, err := r.src.ReadTFCandles(ctx, exchange, token, tf, fromTS)
	if err != nil {
		return st, fmt.Errorf("replay %s:%s@%ds: %w", exchange, token, tf, err)
	}
	if len(candles) == 0 {
		slog.Info("replay: no candles", "key", exchange+":"+token, "tf", tf)
		return st, nil
	}
	st.First, st.Last = candles[0].TS, candles[len(candles)-1].TS

	var prevTS time.Time
	for i, c := range candles {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		if err := r.wait(ctx, prevTS, c.TS); err != nil {
			return st, err
		}
		prevTS = c.TS

		lo := 0
		if r.Window > 0 && i+1 > r.Window {
			lo = i + 1 - r.Window
		}
		o := model.FromCandles(candles[lo : i+1])
		for _, sig := range eval(o) {
			if sig.GoLong {
				st.Long++
			}
			if sig.GoShort {
				st.Short++
			}
			st.Signals = append(st.Signals, sig)
		}
		st.Bars++
	}

	slog.Info("replay: completed", "key", exchange+":"+token, "tf", tf, "bars", st.Bars, "signals", len(st.Signals))
	return st, nil
}

// wait sleeps for the scaled gap between two candles, capped at 5s.
func (r *Replayer) wait(ctx context.Context, prev, cur time.Time) error {
	if r.Speed <= 0 || prev.IsZero() {
		return nil
	}
	gap := cur.Sub(prev)
	if gap <= 0 {
		return nil
	}
	d := min(time.Duration(float64(gap)/r.Speed), 5*time.Second)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
