// Package notification delivers strategy entry alerts to chat and webhook
// endpoints.
package notification

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"ta-engine/internal/model"
)

// Level is the severity of an alert.
type Level string

const (
	LevelInfo     Level = "INFO"
	LevelWarning  Level = "WARNING"
	LevelCritical Level = "CRITICAL"
)

// Alert is one notification.
type Alert struct {
	Level   Level               `json:"level"`
	Title   string              `json:"title"`
	Message string              `json:"message"`
	Signal  *model.SignalResult `json:"signal,omitempty"`
}

// Notifier delivers alerts to one backend.
type Notifier interface {
	Send(ctx context.Context, alert Alert) error
}

// SignalAlert describes an entry signal.
func SignalAlert(sig model.SignalResult) Alert {
	side, stop := "LONG", sig.StopLong
	if sig.GoShort && !sig.GoLong {
		side, stop = "SHORT", sig.StopShort
	}
	return Alert{
		Level: LevelInfo,
		Title: fmt.Sprintf("%s %s %s:%s %ds", sig.Strategy, side, sig.Exchange, sig.Token, sig.TF),
		Message: fmt.Sprintf("entry on bar %s, stop %.2f",
			sig.TS.In(time.UTC).Format("2006-01-02 15:04"), stop),
		Signal: &sig,
	}
}

// LogNotifier writes alerts to the structured log.
type LogNotifier struct{}

func (LogNotifier) Send(_ context.Context, alert Alert) error {
	slog.Info("alert", "level", alert.Level, "title", alert.Title, "message", alert.Message)
	return nil
}

// Multi sends to every notifier and joins their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatcher queues signal alerts and delivers them off the compute path,
// retrying failed sends with backoff.
type Dispatcher struct {
	n       Notifier
	queue   chan Alert
	retry   retrypolicy.RetryPolicy[any]
	dropped atomic.Int64
}

// NewDispatcher creates a dispatcher holding up to buffer pending alerts.
func NewDispatcher(n Notifier, buffer int) *Dispatcher {
	return &Dispatcher{
		n:     n,
		queue: make(chan Alert, buffer),
		retry: retrypolicy.Builder().
			WithMaxRetries(2).
			WithBackoff(200*time.Millisecond, 2*time.Second).
			Build(),
	}
}

// NotifySignals enqueues one alert per signal. Alerts are dropped when the
// queue is full.
func (d *Dispatcher) NotifySignals(sigs []model.SignalResult) {
	for _, sig := range sigs {
		select {
		case d.queue <- SignalAlert(sig):
		default:
			d.dropped.Add(1)
			slog.Warn("alert queue full, dropping", "strategy", sig.Strategy, "key", sig.StreamKey())
		}
	}
}

// Dropped returns how many alerts were discarded.
func (d *Dispatcher) Dropped() int64 { return d.dropped.Load() }

// Run delivers queued alerts until ctx is cancelled.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case a := <-d.queue:
			err := failsafe.With(d.retry).WithContext(ctx).Run(func() error {
				return d.n.Send(ctx, a)
			})
			if err != nil && ctx.Err() == nil {
				slog.Warn("alert delivery failed", "title", a.Title, "error", err)
			}
		}
	}
}
