package indicator

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"ta-engine/internal/model"
	"ta-engine/internal/pattern"
	"ta-engine/internal/series"
)

// IndicatorConfig specifies a single indicator to compute.
type IndicatorConfig struct {
	Type   string `yaml:"type" json:"type" validate:"required"`
	Period int    `yaml:"period" json:"period" validate:"gt=0"`
}

// Name returns the result name, e.g. "SMA_20".
func (c IndicatorConfig) Name() string {
	return c.Type + "_" + model.Itoa(c.Period)
}

// TFIndicatorConfig groups indicator configs for a specific timeframe.
type TFIndicatorConfig struct {
	TF         int               `yaml:"tf" json:"tf" validate:"gt=0"`
	Indicators []IndicatorConfig `yaml:"indicators" json:"indicators" validate:"dive"`
}

type calcFunc func(o model.OHLCV, period int) (series.Series, error)

// calculators holds every non-moving-average indicator type. Moving
// averages are resolved through ParseMAType.
var calculators = map[string]calcFunc{
	"RSI": func(o model.OHLCV, p int) (series.Series, error) { return Rsi(o.Close, p) },
	"ROC": func(o model.OHLCV, p int) (series.Series, error) { return Roc(o.Close, p) },
	"CCI": func(o model.OHLCV, p int) (series.Series, error) { return Cci(o.HLC3(), p, CCIFactor) },
	"MFI": func(o model.OHLCV, p int) (series.Series, error) { return Mfi(o.HLC3(), o.Volume, p) },
	"STOCH": func(o model.OHLCV, p int) (series.Series, error) {
		return Stoch(o.High, o.Low, o.Close, p)
	},
	"SSO": func(o model.OHLCV, p int) (series.Series, error) {
		return Sso(o.High, o.Low, o.Close, p, WMA)
	},
	"ATR": func(o model.OHLCV, p int) (series.Series, error) { return Atr(o.High, o.Low, o.Close, p) },
	"BBU": func(o model.OHLCV, p int) (series.Series, error) {
		b, err := Bollinger(o.Close, p, 2)
		return b.Upper, err
	},
	"BBL": func(o model.OHLCV, p int) (series.Series, error) {
		b, err := Bollinger(o.Close, p, 2)
		return b.Lower, err
	},
	"HIGHEST": func(o model.OHLCV, p int) (series.Series, error) { return Highest(o.High, p) },
	"LOWEST":  func(o model.OHLCV, p int) (series.Series, error) { return Lowest(o.Low, p) },
}

// Candlestick patterns are exposed as <NAME>_BULL and <NAME>_BEAR, e.g.
// DOJI_BULL:3. The value is 1 when the pattern completed within the last
// period bars and 0 otherwise.
func init() {
	for _, p := range pattern.All {
		name := strings.ToUpper(p.Name)
		calculators[name+"_BULL"] = patternCalc(p.Bullish)
		calculators[name+"_BEAR"] = patternCalc(p.Bearish)
	}
}

func patternCalc(d pattern.Detector) calcFunc {
	return func(o model.OHLCV, p int) (series.Series, error) {
		hit, err := pattern.Within(d, o, p)
		if err != nil {
			return series.Series{}, err
		}
		return hit.Float(), nil
	}
}

// Compute evaluates one configured indicator over the whole history.
func Compute(cfg IndicatorConfig, o model.OHLCV) (series.Series, error) {
	if fn, ok := calculators[cfg.Type]; ok {
		return fn(o, cfg.Period)
	}
	t, err := ParseMAType(cfg.Type)
	if err != nil {
		return series.Series{}, fmt.Errorf("unknown indicator type %q: %w", cfg.Type, err)
	}
	return MovingAverage(t, o, cfg.Period)
}

// Engine computes the configured indicators for each timeframe over candle
// histories. Configs can be swapped at runtime with ReloadConfigs; a
// computation in flight keeps the set it started with.
type Engine struct {
	mu      sync.RWMutex
	configs []TFIndicatorConfig
	tfIndex map[int]int
	workers int
}

// NewEngine validates configs and creates an engine. workers bounds the
// concurrency of ComputeAll; values below 1 mean one.
func NewEngine(configs []TFIndicatorConfig, workers int) (*Engine, error) {
	if err := ValidateConfigs(configs); err != nil {
		return nil, err
	}
	e := &Engine{workers: max(1, workers)}
	e.setConfigs(configs)
	return e, nil
}

func (e *Engine) setConfigs(configs []TFIndicatorConfig) {
	e.configs = configs
	e.tfIndex = make(map[int]int, len(configs))
	for i, cfg := range configs {
		e.tfIndex[cfg.TF] = i
	}
}

// Configs returns the active per-TF configuration.
func (e *Engine) Configs() []TFIndicatorConfig {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]TFIndicatorConfig, len(e.configs))
	copy(out, e.configs)
	return out
}

// TFs returns the configured timeframes in config order.
func (e *Engine) TFs() []int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	tfs := make([]int, len(e.configs))
	for i, cfg := range e.configs {
		tfs[i] = cfg.TF
	}
	return tfs
}

func (e *Engine) indicatorsFor(tf int) ([]IndicatorConfig, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	idx, ok := e.tfIndex[tf]
	if !ok {
		return nil, false
	}
	return e.configs[idx].Indicators, true
}

// Process computes every indicator configured for o.TF and returns the
// newest value of each. Returns nil if the TF is not configured.
func (e *Engine) Process(o model.OHLCV) ([]model.IndicatorResult, error) {
	inds, ok := e.indicatorsFor(o.TF)
	if !ok {
		return nil, nil
	}

	results := make([]model.IndicatorResult, 0, len(inds))
	for _, cfg := range inds {
		s, err := Compute(cfg, o)
		if err != nil {
			return nil, fmt.Errorf("%s on %s TF=%d: %w", cfg.Name(), o.Key(), o.TF, err)
		}
		v, present := s.Last()
		results = append(results, model.IndicatorResult{
			Name:     cfg.Name(),
			Token:    o.Token,
			Exchange: o.Exchange,
			TF:       o.TF,
			Value:    v,
			TS:       o.LastTS(),
			Ready:    present && o.Len() >= cfg.Period,
			Bars:     o.Len(),
		})
	}
	return results, nil
}

// ComputeAll runs Process over many histories concurrently. Results keep the
// order of histories; the first error cancels the rest.
func (e *Engine) ComputeAll(ctx context.Context, histories []model.OHLCV) ([][]model.IndicatorResult, error) {
	out := make([][]model.IndicatorResult, len(histories))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i := range histories {
		i := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := e.Process(histories[i])
			if err != nil {
				return err
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
