package strategy

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"ta-engine/internal/indicator"
	"ta-engine/internal/model"
)

// InvalidHandle is returned by Host registration calls that fail.
const InvalidHandle int32 = -1

// Registry owns registered strategies and hands out integer handles.
// Handles are assigned sequentially from 0 and never reused.
type Registry struct {
	mu         sync.RWMutex
	strategies map[int32]*Strategy
	next       int32
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: make(map[int32]*Strategy)}
}

// Register stores s and returns its handle.
func (r *Registry) Register(s *Strategy) int32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	h := r.next
	r.next++
	r.strategies[h] = s
	return h
}

// Get returns the strategy behind handle.
func (r *Registry) Get(handle int32) (*Strategy, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.strategies[handle]
	return s, ok
}

// Rename replaces the strategy behind handle with a copy carrying name, so
// callers holding the old pointer are unaffected.
func (r *Registry) Rename(handle int32, name string) bool {
	return r.update(handle, func(s *Strategy) { s.Name = name })
}

// update swaps the strategy behind handle for a modified copy.
func (r *Registry) update(handle int32, modify func(*Strategy)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.strategies[handle]
	if !ok {
		return false
	}
	cp := *s
	modify(&cp)
	r.strategies[handle] = &cp
	return true
}

// Remove drops a handle. It reports whether the handle existed.
func (r *Registry) Remove(handle int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.strategies[handle]; !ok {
		return false
	}
	delete(r.strategies, handle)
	return true
}

// Handles returns every live handle in ascending order.
func (r *Registry) Handles() []int32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]int32, 0, len(r.strategies))
	for h := range r.strategies {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Len returns the number of live strategies.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.strategies)
}

// Host is the flat, integer-coded surface for embedding applications.
// Smoothing arguments are MAType codes; unknown codes mean SMA.
type Host struct {
	reg *Registry
}

// NewHost wraps a registry.
func NewHost(reg *Registry) *Host {
	return &Host{reg: reg}
}

// RegisterCrossMA registers an MA crossover strategy with RSI filter and ATR
// stop. It returns InvalidHandle if the parameters are rejected.
func (h *Host) RegisterCrossMA(smoothing, shortPeriod, longPeriod, atrPeriod int, stopLossMulti float64) int32 {
	ma := indicator.MATypeFromCode(smoothing)
	sig, err := NewMACrossSignal(ma, shortPeriod, longPeriod)
	if err != nil {
		slog.Warn("host: crossma rejected", "smoothing", smoothing, "error", err)
		return InvalidHandle
	}
	if atrPeriod <= 0 || stopLossMulti <= 0 {
		slog.Warn("host: crossma rejected", "atr_period", atrPeriod, "stop_loss_multi", stopLossMulti)
		return InvalidHandle
	}
	handle := h.reg.Register(&Strategy{
		Name:    "CROSSMA",
		Signal:  sig,
		Filter:  DefaultRSIFilter(),
		Confirm: DumbConfirm{},
		Stop:    ATRStop{Period: atrPeriod, Multi: stopLossMulti},
	})
	slog.Info("host: registered crossma", "handle", handle, "ma", ma.String(), "short", shortPeriod, "long", longPeriod)
	return handle
}

// RegisterGround registers the close-versus-MA baseline strategy.
func (h *Host) RegisterGround(smoothing, longPeriod, atrPeriod int, stopLossMulti float64) int32 {
	ma := indicator.MATypeFromCode(smoothing)
	if longPeriod <= 0 || atrPeriod <= 0 || stopLossMulti <= 0 || !indicator.KnownType(ma.String()) {
		slog.Warn("host: ground rejected", "smoothing", smoothing, "long", longPeriod, "atr_period", atrPeriod)
		return InvalidHandle
	}
	handle := h.reg.Register(&Strategy{
		Name:    "GROUND",
		Signal:  &GroundSignal{Smoothing: ma, Period: longPeriod},
		Filter:  DumbFilter{},
		Confirm: DumbConfirm{},
		Stop:    ATRStop{Period: atrPeriod, Multi: stopLossMulti},
	})
	slog.Info("host: registered ground", "handle", handle, "ma", ma.String(), "long", longPeriod)
	return handle
}

// RegisterSnatr registers the volatility-fade strategy on smoothed
// normalized ATR. Barriers lie in 0..1.
func (h *Host) RegisterSnatr(atrPeriod, atrSmoothing int, lowerBarrier, upperBarrier float64, stopAtrPeriod int, stopLossMulti float64) int32 {
	sig, err := NewSNATRSignal(atrPeriod, atrSmoothing, lowerBarrier, upperBarrier)
	if err != nil {
		slog.Warn("host: snatr rejected", "error", err)
		return InvalidHandle
	}
	if stopAtrPeriod <= 0 || stopLossMulti <= 0 {
		slog.Warn("host: snatr rejected", "atr_period", stopAtrPeriod, "stop_loss_multi", stopLossMulti)
		return InvalidHandle
	}
	handle := h.reg.Register(&Strategy{
		Name:    "SNATR",
		Signal:  sig,
		Filter:  DumbFilter{},
		Confirm: DumbConfirm{},
		Stop:    ATRStop{Period: stopAtrPeriod, Multi: stopLossMulti},
	})
	slog.Info("host: registered snatr", "handle", handle, "atr", atrPeriod, "smoothing", atrSmoothing,
		"lower", lowerBarrier, "upper", upperBarrier)
	return handle
}

// AttachConfirm replaces the confirmation of a registered strategy (see
// NewConfirm for kinds). It returns handle, or InvalidHandle if the handle
// is unknown or the confirmation is rejected.
func (h *Host) AttachConfirm(handle int32, kind string, period int) int32 {
	c, err := NewConfirm(kind, period)
	if err != nil {
		slog.Warn("host: confirm rejected", "handle", handle, "error", err)
		return InvalidHandle
	}
	if !h.reg.update(handle, func(s *Strategy) { s.Confirm = c }) {
		return InvalidHandle
	}
	return handle
}

// Evaluate runs the strategy behind handle on the newest bar of o.
func (h *Host) Evaluate(handle int32, o model.OHLCV) (Decision, error) {
	s, ok := h.reg.Get(handle)
	if !ok {
		return Decision{}, fmt.Errorf("strategy handle %d not registered", handle)
	}
	return s.Evaluate(o)
}

// Unregister drops a handle.
func (h *Host) Unregister(handle int32) bool {
	return h.reg.Remove(handle)
}
