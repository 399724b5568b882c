package strategy

import (
	"fmt"
	"strings"

	"ta-engine/internal/indicator"
	"ta-engine/internal/model"
	"ta-engine/internal/pattern"
	"ta-engine/internal/series"
)

// NewConfirm builds a confirmation by kind: "" or "dumb" always agrees,
// "roc" needs momentum over period bars, and a pattern name (see
// pattern.All) needs that pattern to have completed within period bars.
func NewConfirm(kind string, period int) (Confirm, error) {
	kind = strings.ToLower(strings.TrimSpace(kind))
	switch kind {
	case "", "dumb":
		return DumbConfirm{}, nil
	case "roc":
		if period <= 0 {
			return nil, fmt.Errorf("roc confirm period %d: %w", period, series.ErrInvalidPeriod)
		}
		return &ROCConfirm{Period: period}, nil
	}
	p, ok := pattern.Lookup(kind)
	if !ok {
		return nil, fmt.Errorf("unknown confirm %q", kind)
	}
	if period <= 0 {
		return nil, fmt.Errorf("%s confirm period %d: %w", kind, period, series.ErrInvalidPeriod)
	}
	return &PatternConfirm{Pattern: p, Within: period}, nil
}

// ROCConfirm requires positive momentum for longs and negative for shorts.
type ROCConfirm struct {
	Period int
}

func (c *ROCConfirm) ID() string    { return fmt.Sprintf("ROC:%d", c.Period) }
func (c *ROCConfirm) Lookback() int { return c.Period }

func (c *ROCConfirm) Validate(o model.OHLCV) (long, short series.Bools) {
	roc, err := indicator.Roc(o.Close, c.Period)
	if err != nil {
		return noEntries(o)
	}
	return roc.GtScalar(0), roc.LtScalar(0)
}

// PatternConfirm requires the bullish variant of a candlestick pattern to
// have completed within the last Within bars for longs, and the bearish
// variant for shorts.
type PatternConfirm struct {
	Pattern pattern.Pattern
	Within  int
}

func (c *PatternConfirm) ID() string    { return fmt.Sprintf("PATTERN:%s:%d", c.Pattern.Name, c.Within) }
func (c *PatternConfirm) Lookback() int { return c.Within + pattern.Lookback }

func (c *PatternConfirm) Validate(o model.OHLCV) (long, short series.Bools) {
	long, err := pattern.Within(c.Pattern.Bullish, o, c.Within)
	if err != nil {
		return noEntries(o)
	}
	short, err = pattern.Within(c.Pattern.Bearish, o, c.Within)
	if err != nil {
		return noEntries(o)
	}
	return long, short
}

// DumbConfirm always agrees.
type DumbConfirm struct{}

func (DumbConfirm) ID() string    { return "DUMB" }
func (DumbConfirm) Lookback() int { return 0 }

func (DumbConfirm) Validate(o model.OHLCV) (long, short series.Bools) {
	all := series.NewBools(o.Len()).Not()
	return all, all
}
