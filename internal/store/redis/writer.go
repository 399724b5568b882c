package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	goredis "github.com/go-redis/redis/v8"

	"ta-engine/internal/metrics"
	"ta-engine/internal/model"
)

const (
	defaultLatestTTL = 30 * time.Minute

	// ReloadChannel carries indicator config reload requests (JSON body of
	// []indicator.TFIndicatorConfig).
	ReloadChannel = "config:indicators"
)

// ErrBreakerOpen is returned while the publish breaker rejects writes.
var ErrBreakerOpen = errors.New("redis publish breaker open")

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int

	// Consecutive pipeline failures before publishing is suspended, and for
	// how long. Zero values use 5 and 10s.
	BreakerFailures uint
	BreakerDelay    time.Duration
}

// Writer publishes indicator results and strategy signals: XADD to a capped
// stream, SET of the latest value and PUBLISH for live subscribers, batched
// into one pipeline per call.
type Writer struct {
	client  *goredis.Client
	breaker circuitbreaker.CircuitBreaker[any]
	m       *metrics.Metrics
}

// New creates a Writer and pings the server.
func New(cfg WriterConfig, m *metrics.Metrics) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	slog.Info("redis connected", "addr", cfg.Addr)
	return NewWithClient(client, cfg, m), nil
}

// NewWithClient wraps an existing client without pinging it. m may be nil.
func NewWithClient(client *goredis.Client, cfg WriterConfig, m *metrics.Metrics) *Writer {
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}
	delay := cfg.BreakerDelay
	if delay == 0 {
		delay = 10 * time.Second
	}

	w := &Writer{client: client, m: m}
	w.breaker = circuitbreaker.Builder().
		WithFailureThreshold(circuitbreaker.NewCountBasedThreshold(failures, failures)).
		WithDelay(delay).
		OnOpen(func(circuitbreaker.StateChangedEvent) { w.breakerChanged("open", 1) }).
		OnHalfOpen(func(circuitbreaker.StateChangedEvent) { w.breakerChanged("half-open", 2) }).
		OnClose(func(circuitbreaker.StateChangedEvent) { w.breakerChanged("closed", 0) }).
		Build()
	return w
}

func (w *Writer) breakerChanged(state string, gauge float64) {
	slog.Warn("redis publish breaker state changed", "state", state)
	if w.m != nil {
		w.m.BreakerState.Set(gauge)
	}
}

// Client returns the underlying client for health checks and pub/sub.
func (w *Writer) Client() *goredis.Client { return w.client }

// BreakerOpen reports whether publishing is currently suspended.
func (w *Writer) BreakerOpen() bool { return w.breaker.IsOpen() }

// streamMaxLen keeps roughly three hours of bars per stream.
func streamMaxLen(tf int) int64 {
	if tf <= 0 {
		return 200
	}
	return max(int64(10800/tf)+100, 200)
}

// WriteIndicatorBatch publishes every Ready result in a single pipeline.
// Results that are not ready are skipped.
func (w *Writer) WriteIndicatorBatch(ctx context.Context, results []model.IndicatorResult) error {
	return w.exec(ctx, "indicators", func(pipe goredis.Pipeliner) int {
		n := 0
		for i := range results {
			ind := &results[i]
			if !ind.Ready {
				continue
			}
			data := string(ind.JSON())
			stream := ind.StreamKey()
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: stream,
				MaxLen: streamMaxLen(ind.TF),
				Approx: true,
				Values: map[string]interface{}{"data": data},
			})
			pipe.Set(ctx, ind.LatestKey(), data, defaultLatestTTL)
			pipe.Publish(ctx, "pub:"+stream, data)
			n++
		}
		return n
	})
}

// WriteSignals publishes strategy decisions for the newest bar.
func (w *Writer) WriteSignals(ctx context.Context, sigs []model.SignalResult) error {
	return w.exec(ctx, "signals", func(pipe goredis.Pipeliner) int {
		for i := range sigs {
			s := &sigs[i]
			data := string(s.JSON())
			stream := s.StreamKey()
			pipe.XAdd(ctx, &goredis.XAddArgs{
				Stream: stream,
				MaxLen: streamMaxLen(s.TF),
				Approx: true,
				Values: map[string]interface{}{"data": data},
			})
			pipe.Set(ctx, stream+":latest", data, defaultLatestTTL)
			pipe.Publish(ctx, "pub:"+stream, data)
		}
		return len(sigs)
	})
}

// exec runs one pipeline through the breaker. fill queues the commands and
// returns how many items it queued; an empty pipeline is not sent.
func (w *Writer) exec(ctx context.Context, what string, fill func(goredis.Pipeliner) int) error {
	if !w.breaker.TryAcquirePermit() {
		w.publishFailed()
		return ErrBreakerOpen
	}

	start := time.Now()
	pipe := w.client.Pipeline()
	n := fill(pipe)
	if n == 0 {
		pipe.Discard()
		w.breaker.RecordSuccess()
		return nil
	}

	_, err := pipe.Exec(ctx)
	if w.m != nil {
		w.m.PublishDur.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		w.breaker.RecordFailure()
		w.publishFailed()
		return fmt.Errorf("redis %s pipeline (%d items): %w", what, n, err)
	}
	w.breaker.RecordSuccess()
	return nil
}

func (w *Writer) publishFailed() {
	if w.m != nil {
		w.m.PublishErrors.Inc()
	}
}

// Latest returns the newest value stored under key, or "" if absent.
func (w *Writer) Latest(ctx context.Context, key string) (string, error) {
	v, err := w.client.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	return v, err
}

// Subscribe opens a pub/sub subscription on channel.
func (w *Writer) Subscribe(ctx context.Context, channel string) *goredis.PubSub {
	return w.client.Subscribe(ctx, channel)
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
