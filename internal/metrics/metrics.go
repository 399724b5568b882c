package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus metrics of the indicator service.
type Metrics struct {
	reg *prometheus.Registry

	// Recompute cycle
	ComputeDur    prometheus.Histogram
	SeriesTotal   *prometheus.CounterVec // labels: tf
	ComputeErrors prometheus.Counter
	HistoryBars   prometheus.Gauge

	// Strategy layer
	SignalsTotal *prometheus.CounterVec // labels: side=long|short

	// Publishing
	PublishDur    prometheus.Histogram
	PublishErrors prometheus.Counter
	BreakerState  prometheus.Gauge // 0=closed, 1=open, 2=half-open

	// WebSocket fan-out
	WSClients prometheus.Gauge
	WSDrops   prometheus.Counter
}

// NewMetrics creates all metrics on a private registry. Go runtime and
// process collectors are included.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		reg: reg,
		ComputeDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ta_compute_duration_seconds",
			Help:    "Duration of one recompute cycle over all histories.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		SeriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ta_indicator_series_total",
			Help: "Indicator series computed, by timeframe.",
		}, []string{"tf"}),
		ComputeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ta_compute_errors_total",
			Help: "Recompute cycles that failed.",
		}),
		HistoryBars: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ta_history_bars",
			Help: "Bars loaded in the last recompute cycle.",
		}),
		SignalsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ta_signals_total",
			Help: "Strategy entries raised on the newest bar.",
		}, []string{"side"}),
		PublishDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "ta_publish_duration_seconds",
			Help:    "Duration of one Redis publish pipeline.",
			Buckets: prometheus.DefBuckets,
		}),
		PublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ta_publish_errors_total",
			Help: "Redis publish pipelines that failed or were rejected by the breaker.",
		}),
		BreakerState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ta_redis_circuit_breaker_state",
			Help: "Redis publish circuit breaker state (0=closed, 1=open, 2=half-open).",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ta_ws_clients",
			Help: "Connected WebSocket clients.",
		}),
		WSDrops: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ta_ws_dropped_messages_total",
			Help: "Messages dropped for slow WebSocket clients.",
		}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ComputeDur,
		m.SeriesTotal,
		m.ComputeErrors,
		m.HistoryBars,
		m.SignalsTotal,
		m.PublishDur,
		m.PublishErrors,
		m.BreakerState,
		m.WSClients,
		m.WSDrops,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// HealthStatus is the service health reported on /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected  bool      `json:"redis_connected"`
	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteOK        bool      `json:"sqlite_ok"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	EngineOK        bool      `json:"engine_ok"`
	LastCycleAt     time.Time `json:"last_cycle_at"`
	LastCycleErr    string    `json:"last_cycle_error,omitempty"`
	EnabledTFs      []int     `json:"enabled_tfs"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a health status with nothing confirmed yet.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetEnabledTFs(tfs []int) {
	h.mu.Lock()
	h.EnabledTFs = append([]int(nil), tfs...)
	h.mu.Unlock()
}

// RecordCycle stores the outcome of a recompute cycle.
func (h *HealthStatus) RecordCycle(at time.Time, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.LastCycleAt = at
	h.EngineOK = err == nil
	h.LastCycleErr = ""
	if err != nil {
		h.LastCycleErr = err.Error()
	}
}

// CheckRedis pings Redis and records latency and connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the candle database and records latency and health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// StartLivenessChecker runs the dependency probes every interval until ctx
// is cancelled. Either dependency may be nil.
func (h *HealthStatus) StartLivenessChecker(ctx context.Context, rdb *goredis.Client, sqlDB *sql.DB, interval time.Duration) {
	probe := func() {
		probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if rdb != nil {
			h.CheckRedis(probeCtx, rdb)
		}
		if sqlDB != nil {
			h.CheckSQLite(probeCtx, sqlDB)
		}
	}
	go func() {
		probe()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				probe()
			}
		}
	}()
}

// Status returns "healthy", "degraded" or "unhealthy".
//
// SQLite and the engine are required; Redis only degrades the service
// since results still reach WebSocket clients.
func (h *HealthStatus) Status() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	switch {
	case !h.SQLiteOK || !h.EngineOK:
		return "unhealthy"
	case !h.RedisConnected:
		return "degraded"
	}
	return "healthy"
}

// ServeHTTP handles /healthz.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := h.Status()

	h.mu.RLock()
	body := struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
		*healthView
	}{
		Status:     status,
		Uptime:     time.Since(h.StartedAt).Round(time.Second).String(),
		healthView: h.view(),
	}
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	if status == "unhealthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(body)
}

type healthView struct {
	RedisConnected  bool    `json:"redis_connected"`
	RedisLatencyMs  float64 `json:"redis_latency_ms"`
	SQLiteOK        bool    `json:"sqlite_ok"`
	SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
	EngineOK        bool    `json:"engine_ok"`
	LastCycleAt     string  `json:"last_cycle_at"`
	LastCycleErr    string  `json:"last_cycle_error,omitempty"`
	EnabledTFs      []int   `json:"enabled_tfs"`
	LastCheckAt     string  `json:"last_check_at"`
}

// view copies the fields under the caller's read lock.
func (h *HealthStatus) view() *healthView {
	return &healthView{
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		EngineOK:        h.EngineOK,
		LastCycleAt:     h.LastCycleAt.Format(time.RFC3339),
		LastCycleErr:    h.LastCycleErr,
		EnabledTFs:      h.EnabledTFs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}
}
