// Package indengine runs the indicator service: it periodically reloads
// candle histories from SQLite, recomputes the configured indicators and the
// registered strategies, and publishes the newest values to Redis and to
// WebSocket clients.
package indengine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"ta-engine/config"
	"ta-engine/internal/gateway"
	"ta-engine/internal/indicator"
	"ta-engine/internal/logger"
	"ta-engine/internal/markethours"
	"ta-engine/internal/metrics"
	"ta-engine/internal/model"
	"ta-engine/internal/strategy"
)

// HistorySource loads the newest limit bars of one token and timeframe.
type HistorySource interface {
	ReadOHLCV(ctx context.Context, exchange, token string, tf, limit int) (model.OHLCV, error)
}

// Publisher pushes results to downstream consumers.
type Publisher interface {
	WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) error
	WriteSignals(ctx context.Context, sigs []model.SignalResult) error
}

// SignalJournal records strategy entries.
type SignalJournal interface {
	SaveSignals(ctx context.Context, sigs []model.SignalResult) (int, error)
}

// SignalNotifier raises alerts for new entries.
type SignalNotifier interface {
	NotifySignals(sigs []model.SignalResult)
}

// Deps are the collaborators of a Service. Source is required; the rest
// may be nil. A nil Session recomputes around the clock.
type Deps struct {
	Source    HistorySource
	Publisher Publisher
	Journal   SignalJournal
	Alerts    SignalNotifier
	Hub       *gateway.Hub
	Metrics   *metrics.Metrics
	Health    *metrics.HealthStatus
	Session   *markethours.Session
}

// Service is the top-level orchestrator of the indicator engine.
type Service struct {
	cfg *config.Config
	Deps

	engine *indicator.Engine
	reg    *strategy.Registry
	host   *strategy.Host
	strat  *strategy.Engine

	mu      sync.RWMutex
	latest  map[string]model.IndicatorResult // by stream key
	signals map[string]model.SignalResult    // by stream key

	idle bool // session closed and the closing bar already computed
}

// Report summarises one recompute cycle. Signals holds every entry on the
// newest bars; Fresh only those not reported by an earlier cycle.
type Report struct {
	TraceID   string
	Histories int
	Bars      int
	Results   []model.IndicatorResult
	Signals   []model.SignalResult
	Fresh     []model.SignalResult
	Duration  time.Duration
}

// New builds the engine and registers the configured strategies.
func New(cfg *config.Config, deps Deps) (*Service, error) {
	if deps.Source == nil {
		return nil, errors.New("indengine: history source is required")
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewMetrics()
	}
	if deps.Health == nil {
		deps.Health = metrics.NewHealthStatus()
	}

	engine, err := indicator.NewEngine(cfg.IndConfigs, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("indengine: %w", err)
	}
	reg := strategy.NewRegistry()
	svc := &Service{
		cfg:     cfg,
		Deps:    deps,
		engine:  engine,
		reg:     reg,
		host:    strategy.NewHost(reg),
		strat:   strategy.NewEngine(reg),
		latest:  make(map[string]model.IndicatorResult),
		signals: make(map[string]model.SignalResult),
	}
	for _, sc := range cfg.Strategies {
		if _, err := svc.RegisterStrategy(sc); err != nil {
			return nil, err
		}
	}
	svc.Health.SetEnabledTFs(engine.TFs())
	return svc, nil
}

// Engine exposes the indicator engine.
func (s *Service) Engine() *indicator.Engine { return s.engine }

// RegisterStrategy registers sc through the host surface and names it.
func (s *Service) RegisterStrategy(sc config.StrategyConfig) (int32, error) {
	return Register(s.host, s.reg, sc)
}

// Register maps a strategy config onto the host entry points, attaches its
// confirmation and renames it to sc.Name in upper case.
func Register(host *strategy.Host, reg *strategy.Registry, sc config.StrategyConfig) (int32, error) {
	var h int32
	switch sc.Kind {
	case "crossma":
		h = host.RegisterCrossMA(sc.Smoothing, sc.Short, sc.Long, sc.ATRPeriod, sc.StopMulti)
	case "ground":
		h = host.RegisterGround(sc.Smoothing, sc.Long, sc.ATRPeriod, sc.StopMulti)
	case "snatr":
		lower, upper := sc.Barriers()
		h = host.RegisterSnatr(sc.Short, sc.Long, lower, upper, sc.ATRPeriod, sc.StopMulti)
	default:
		return strategy.InvalidHandle, fmt.Errorf("strategy %q: unknown kind %q", sc.Name, sc.Kind)
	}
	if h == strategy.InvalidHandle {
		return h, fmt.Errorf("strategy %q: parameters rejected", sc.Name)
	}
	if sc.Confirm != "" && host.AttachConfirm(h, sc.Confirm, sc.ConfirmPeriod) == strategy.InvalidHandle {
		host.Unregister(h)
		return strategy.InvalidHandle, fmt.Errorf("strategy %q: confirm %q rejected", sc.Name, sc.Confirm)
	}
	if sc.Name != "" {
		reg.Rename(h, strings.ToUpper(sc.Name))
	}
	return h, nil
}

// Run recomputes immediately and then every cfg.Interval until ctx is
// cancelled. A failed cycle is logged and retried on the next tick.
func (s *Service) Run(ctx context.Context) error {
	slog.Info("indicator service starting",
		"tfs", s.engine.TFs(),
		"tokens", s.cfg.TokenKeys,
		"interval", s.cfg.Interval.String(),
		"strategies", s.reg.Len(),
	)
	if s.Session != nil {
		slog.Info("market session gating enabled", "market", s.Session.Status(time.Now()))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		if s.shouldRun(time.Now()) {
			if _, err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
				slog.Error("recompute cycle failed", "error", err)
			}
		}
		select {
		case <-ctx.Done():
			slog.Info("indicator service stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// shouldRun gates cycles on the market session. The first cycle after the
// close still runs so the closing bar is computed.
func (s *Service) shouldRun(now time.Time) bool {
	if s.Session == nil || s.Session.IsOpen(now) {
		s.idle = false
		return true
	}
	if s.idle {
		return false
	}
	s.idle = true
	slog.Info("market closed, pausing recomputes", "market", s.Session.Status(now))
	return true
}

// RunCycle loads every configured history, computes indicators and
// strategies over it and publishes the newest values.
func (s *Service) RunCycle(ctx context.Context) (Report, error) {
	traceID := logger.NewTraceID()
	ctx = logger.WithTraceID(ctx, traceID)
	start := time.Now()

	rep, err := s.cycle(ctx)
	rep.TraceID = traceID
	rep.Duration = time.Since(start)

	s.Metrics.ComputeDur.Observe(rep.Duration.Seconds())
	s.Health.RecordCycle(start, err)
	if err != nil {
		s.Metrics.ComputeErrors.Inc()
		return rep, err
	}

	slog.Debug("recompute cycle done", append(logger.Attrs(ctx),
		"histories", rep.Histories,
		"results", len(rep.Results),
		"signals", len(rep.Signals),
		"fresh", len(rep.Fresh),
		"duration", rep.Duration.String(),
	)...)
	return rep, nil
}

func (s *Service) cycle(ctx context.Context) (Report, error) {
	var rep Report

	histories, err := s.loadHistories(ctx)
	if err != nil {
		return rep, err
	}
	rep.Histories = len(histories)
	for _, o := range histories {
		rep.Bars += o.Len()
	}
	s.Metrics.HistoryBars.Set(float64(rep.Bars))

	perHistory, err := s.engine.ComputeAll(ctx, histories)
	if err != nil {
		return rep, fmt.Errorf("compute: %w", err)
	}
	for i, rs := range perHistory {
		s.Metrics.SeriesTotal.WithLabelValues(model.Itoa(histories[i].TF)).Add(float64(len(rs)))
		rep.Results = append(rep.Results, rs...)
	}
	for _, o := range histories {
		rep.Signals = append(rep.Signals, s.strat.Evaluate(o)...)
	}

	rep.Fresh = s.store(rep.Results, rep.Signals)
	for _, sig := range rep.Fresh {
		if sig.GoLong {
			s.Metrics.SignalsTotal.WithLabelValues("long").Inc()
		}
		if sig.GoShort {
			s.Metrics.SignalsTotal.WithLabelValues("short").Inc()
		}
	}
	s.publish(ctx, rep.Results, rep.Fresh)
	return rep, nil
}

func (s *Service) loadHistories(ctx context.Context) ([]model.OHLCV, error) {
	var out []model.OHLCV
	for _, tf := range s.engine.TFs() {
		for _, key := range s.cfg.TokenKeys {
			ex, tok, ok := strings.Cut(key, ":")
			if !ok {
				return nil, fmt.Errorf("invalid token key %q", key)
			}
			o, err := s.Source.ReadOHLCV(ctx, ex, tok, tf, s.cfg.History)
			if err != nil {
				return nil, fmt.Errorf("load %s@%ds: %w", key, tf, err)
			}
			if o.Len() == 0 {
				continue
			}
			out = append(out, o)
		}
	}
	return out, nil
}

// store records the newest values and returns the signals whose bar differs
// from the one last stored under the same key.
func (s *Service) store(results []model.IndicatorResult, sigs []model.SignalResult) []model.SignalResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range results {
		s.latest[r.StreamKey()] = r
	}
	var fresh []model.SignalResult
	for _, sig := range sigs {
		key := sig.StreamKey()
		if prev, ok := s.signals[key]; ok && prev.TS.Equal(sig.TS) && prev.GoLong == sig.GoLong && prev.GoShort == sig.GoShort {
			continue
		}
		s.signals[key] = sig
		fresh = append(fresh, sig)
	}
	return fresh
}

// publish fans results and fresh signals out. Downstream failures are
// logged and do not fail the cycle.
func (s *Service) publish(ctx context.Context, results []model.IndicatorResult, sigs []model.SignalResult) {
	if s.Hub != nil {
		s.Hub.PublishResults(results)
		s.Hub.PublishSignals(sigs)
	}
	if s.Publisher != nil {
		if err := s.Publisher.WriteIndicatorBatch(ctx, results); err != nil {
			slog.Warn("publish indicators failed", append(logger.Attrs(ctx), "error", err)...)
		}
		if len(sigs) > 0 {
			if err := s.Publisher.WriteSignals(ctx, sigs); err != nil {
				slog.Warn("publish signals failed", append(logger.Attrs(ctx), "error", err)...)
			}
		}
	}
	if s.Journal != nil && len(sigs) > 0 {
		if _, err := s.Journal.SaveSignals(ctx, sigs); err != nil {
			slog.Warn("journal signals failed", append(logger.Attrs(ctx), "error", err)...)
		}
	}
	if s.Alerts != nil && len(sigs) > 0 {
		s.Alerts.NotifySignals(sigs)
	}
}

// Reload swaps the indicator configuration. Values of dropped indicators
// are forgotten.
func (s *Service) Reload(configs []indicator.TFIndicatorConfig) (kept, added int, err error) {
	kept, added, err = s.engine.ReloadConfigs(configs)
	if err != nil {
		return 0, 0, err
	}
	s.Health.SetEnabledTFs(s.engine.TFs())

	wanted := make(map[string]bool)
	for _, c := range configs {
		for _, ic := range c.Indicators {
			wanted[ic.Name()+":"+model.Itoa(c.TF)] = true
		}
	}
	s.mu.Lock()
	for k, r := range s.latest {
		if !wanted[r.Name+":"+model.Itoa(r.TF)] {
			delete(s.latest, k)
		}
	}
	s.mu.Unlock()
	return kept, added, nil
}

// LatestResults returns the newest indicator values, optionally filtered by
// timeframe (0 = all) and "exchange:token" key ("" = all).
func (s *Service) LatestResults(tf int, key string) []model.IndicatorResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.IndicatorResult, 0, len(s.latest))
	for _, r := range s.latest {
		if tf != 0 && r.TF != tf {
			continue
		}
		if key != "" && r.Exchange+":"+r.Token != key {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LatestSignals returns the newest entry signal of every strategy and key.
func (s *Service) LatestSignals() []model.SignalResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.SignalResult, 0, len(s.signals))
	for _, sig := range s.signals {
		out = append(out, sig)
	}
	return out
}
