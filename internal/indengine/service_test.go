package indengine

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ta-engine/config"
	"ta-engine/internal/indicator"
	"ta-engine/internal/markethours"
	"ta-engine/internal/metrics"
	"ta-engine/internal/model"
	"ta-engine/internal/strategy"
)

// dip falls from 10 to 6 and recovers to 9, so SMA(2) crosses above SMA(4)
// on the last bar.
var dip = []float64{10, 10, 10, 10, 10, 10, 10, 10, 10, 10, 9, 8, 7, 6, 7, 9}

type fakeSource struct {
	closes map[string][]float64 // by "exchange:token"
	err    error
}

func (f *fakeSource) ReadOHLCV(_ context.Context, ex, tok string, tf, limit int) (model.OHLCV, error) {
	if f.err != nil {
		return model.OHLCV{}, f.err
	}
	closes := f.closes[ex+":"+tok]
	if len(closes) > limit {
		closes = closes[len(closes)-limit:]
	}
	start := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	candles := make([]model.TFCandle, len(closes))
	for i, c := range closes {
		p := model.PriceToPaise(c)
		candles[i] = model.TFCandle{
			Exchange: ex, Token: tok, TF: tf,
			TS:   start.Add(time.Duration(i*tf) * time.Second),
			Open: p, High: p + 100, Low: p - 100, Close: p, Volume: 1000,
		}
	}
	return model.FromCandles(candles), nil
}

type fakePublisher struct {
	mu      sync.Mutex
	batches [][]model.IndicatorResult
	signals []model.SignalResult
	err     error
}

func (f *fakePublisher) WriteIndicatorBatch(_ context.Context, results []model.IndicatorResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches = append(f.batches, results)
	return f.err
}

func (f *fakePublisher) WriteSignals(_ context.Context, sigs []model.SignalResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.signals = append(f.signals, sigs...)
	return f.err
}

type fakeJournal struct {
	saved []model.SignalResult
}

func (f *fakeJournal) SaveSignals(_ context.Context, sigs []model.SignalResult) (int, error) {
	f.saved = append(f.saved, sigs...)
	return len(sigs), nil
}

type fakeAlerts struct {
	sigs []model.SignalResult
}

func (f *fakeAlerts) NotifySignals(sigs []model.SignalResult) { f.sigs = append(f.sigs, sigs...) }

func testConfig() *config.Config {
	return &config.Config{
		Interval:  time.Hour,
		History:   100,
		Workers:   2,
		ReloadRPS: 1,
		TokenKeys: []string{"NSE:SBIN", "NSE:EMPTY"},
		IndConfigs: []indicator.TFIndicatorConfig{{
			TF: 60,
			Indicators: []indicator.IndicatorConfig{
				{Type: "SMA", Period: 2},
				{Type: "SMA", Period: 4},
				{Type: "SMA", Period: 50},
			},
		}},
		Strategies: []config.StrategyConfig{{
			Name: "trend", Kind: "crossma", Smoothing: 10, Short: 2, Long: 4, ATRPeriod: 3, StopMulti: 1.5,
		}},
	}
}

type fixture struct {
	svc    *Service
	pub    *fakePublisher
	jrn    *fakeJournal
	alerts *fakeAlerts
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	pub := &fakePublisher{}
	jrn := &fakeJournal{}
	alerts := &fakeAlerts{}
	svc, err := New(testConfig(), Deps{
		Source:    &fakeSource{closes: map[string][]float64{"NSE:SBIN": dip}},
		Publisher: pub,
		Journal:   jrn,
		Alerts:    alerts,
		Metrics:   metrics.NewMetrics(),
	})
	require.NoError(t, err)
	return fixture{svc: svc, pub: pub, jrn: jrn, alerts: alerts}
}

func TestNew_RequiresSource(t *testing.T) {
	_, err := New(testConfig(), Deps{})
	assert.Error(t, err)
}

func TestNew_RejectsBadStrategy(t *testing.T) {
	cfg := testConfig()
	cfg.Strategies[0].Short = 9 // short >= long
	_, err := New(cfg, Deps{Source: &fakeSource{}})
	assert.Error(t, err)
}

func TestRegister_SnatrWithConfirm(t *testing.T) {
	reg := strategy.NewRegistry()
	host := strategy.NewHost(reg)

	h, err := Register(host, reg, config.StrategyConfig{
		Name: "fade", Kind: "snatr", Short: 14, Long: 3, ATRPeriod: 14, StopMulti: 1.5,
		Confirm: "roc", ConfirmPeriod: 5,
	})
	require.NoError(t, err)
	s, ok := reg.Get(h)
	require.True(t, ok)
	assert.Equal(t, "FADE", s.Name)
	assert.Equal(t, "SNATR:14:3:0.2:0.8", s.Signal.ID())
	assert.Equal(t, "ROC:5", s.Confirm.ID())

	_, err = Register(host, reg, config.StrategyConfig{
		Name: "bad", Kind: "crossma", Smoothing: 10, Short: 2, Long: 4, ATRPeriod: 3, StopMulti: 1,
		Confirm: "hammer", ConfirmPeriod: 2,
	})
	assert.Error(t, err)
	assert.Equal(t, 1, reg.Len(), "rejected confirm leaves no strategy behind")
}

func TestRunCycle_ComputesAndPublishes(t *testing.T) {
	f := newFixture(t)

	rep, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.NotEmpty(t, rep.TraceID)
	assert.Equal(t, 1, rep.Histories, "empty histories are skipped")
	assert.Equal(t, len(dip), rep.Bars)
	require.Len(t, rep.Results, 3)

	byName := map[string]model.IndicatorResult{}
	for _, r := range rep.Results {
		byName[r.Name] = r
	}
	assert.InDelta(t, 8.0, byName["SMA_2"].Value, 1e-9)
	assert.InDelta(t, 7.25, byName["SMA_4"].Value, 1e-9)
	assert.False(t, byName["SMA_50"].Ready)

	require.Len(t, rep.Signals, 1)
	sig := rep.Signals[0]
	assert.Equal(t, "TREND", sig.Strategy)
	assert.True(t, sig.GoLong)
	assert.Equal(t, "sig:TREND:60s:NSE:SBIN", sig.StreamKey())

	require.Len(t, f.pub.batches, 1)
	assert.Len(t, f.pub.batches[0], 3)
	assert.Len(t, f.pub.signals, 1)
	assert.Len(t, f.jrn.saved, 1)
	assert.Len(t, f.alerts.sigs, 1)
	assert.Equal(t, rep.Signals, rep.Fresh)

	m := f.svc.Metrics
	assert.Equal(t, 3.0, testutil.ToFloat64(m.SeriesTotal.WithLabelValues("60")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SignalsTotal.WithLabelValues("long")))
	assert.Equal(t, float64(len(dip)), testutil.ToFloat64(m.HistoryBars))
	assert.True(t, f.svc.Health.EngineOK)
}

func TestRunCycle_RepeatedBarIsNotRepublished(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	rep, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, rep.Signals, 1)
	assert.Empty(t, rep.Fresh)

	assert.Len(t, f.pub.batches, 2, "indicators are republished every cycle")
	assert.Len(t, f.pub.signals, 1)
	assert.Len(t, f.jrn.saved, 1)
	assert.Len(t, f.alerts.sigs, 1)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.svc.Metrics.SignalsTotal.WithLabelValues("long")))
}

func TestShouldRun_MarketSession(t *testing.T) {
	f := newFixture(t)
	assert.True(t, f.svc.shouldRun(time.Now()), "no session always runs")

	sess, err := markethours.NSE()
	require.NoError(t, err)
	f.svc.Session = sess
	at := func(s string) time.Time {
		tm, err := time.ParseInLocation("2006-01-02 15:04", s, markethours.IST)
		require.NoError(t, err)
		return tm
	}

	assert.True(t, f.svc.shouldRun(at("2026-03-02 15:29")))
	assert.True(t, f.svc.shouldRun(at("2026-03-02 15:30")), "closing bar")
	assert.False(t, f.svc.shouldRun(at("2026-03-02 15:40")))
	assert.False(t, f.svc.shouldRun(at("2026-03-03 09:00")))
	assert.True(t, f.svc.shouldRun(at("2026-03-03 09:15")))
}

func TestRunCycle_PublishFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.pub.err = errors.New("redis down")

	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.svc.LatestResults(0, ""), 3)
}

func TestRunCycle_SourceErrorIsReported(t *testing.T) {
	svc, err := New(testConfig(), Deps{Source: &fakeSource{err: errors.New("disk gone")}})
	require.NoError(t, err)

	_, err = svc.RunCycle(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.Metrics.ComputeErrors))
	assert.False(t, svc.Health.EngineOK)
}

func TestLatestResults_Filters(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	assert.Len(t, f.svc.LatestResults(60, "NSE:SBIN"), 3)
	assert.Empty(t, f.svc.LatestResults(300, ""))
	assert.Empty(t, f.svc.LatestResults(0, "NSE:OTHER"))
	assert.Len(t, f.svc.LatestSignals(), 1)
}

func TestReload_PrunesDroppedIndicators(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)

	kept, added, err := f.svc.Reload([]indicator.TFIndicatorConfig{{
		TF:         60,
		Indicators: []indicator.IndicatorConfig{{Type: "SMA", Period: 2}, {Type: "EMA", Period: 3}},
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, kept)
	assert.Equal(t, 1, added)

	latest := f.svc.LatestResults(0, "")
	require.Len(t, latest, 1)
	assert.Equal(t, "SMA_2", latest[0].Name)

	_, _, err = f.svc.Reload([]indicator.TFIndicatorConfig{{
		TF: 60, Indicators: []indicator.IndicatorConfig{{Type: "NOPE", Period: 2}},
	}})
	assert.Error(t, err)
}

func TestRun_StopsOnCancel(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	require.Eventually(t, func() bool { return len(f.svc.LatestResults(0, "")) > 0 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouter_Indicators(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	h := f.svc.Router()

	rec := do(t, h, http.MethodGet, "/indicators?tf=60&key=NSE:SBIN", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var results []model.IndicatorResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &results))
	require.Len(t, results, 3)
	assert.Equal(t, []string{"SMA_2", "SMA_4", "SMA_50"}, []string{results[0].Name, results[1].Name, results[2].Name})

	rec = do(t, h, http.MethodGet, "/indicators?tf=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid tf")

	rec = do(t, h, http.MethodGet, "/signals", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"strategy":"TREND"`)
}

func TestRouter_Strategies(t *testing.T) {
	f := newFixture(t)
	h := f.svc.Router()

	rec := do(t, h, http.MethodPost, "/strategies",
		`{"name":"base","kind":"ground","smoothing":3,"long":5,"atr_period":3,"stop_multi":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"handle":1}`, rec.Body.String())

	rec = do(t, h, http.MethodPost, "/strategies", `{"name":"x","kind":"martingale","long":5}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodPost, "/strategies", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, http.MethodGet, "/strategies", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var views []strategyView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
	require.Len(t, views, 2)
	assert.Equal(t, "TREND", views[0].Name)
	assert.Equal(t, "BASE", views[1].Name)

	assert.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/strategies/1", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/strategies/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodDelete, "/strategies/x", "").Code)
}

func TestRouter_ReloadAndRateLimit(t *testing.T) {
	f := newFixture(t)
	h := f.svc.Router()

	rec := do(t, h, http.MethodPost, "/reload", "SMA:2, RSI:14")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"status":"ok","kept":1,"added":1}`, rec.Body.String())

	// the limiter allows one request per second with a burst of one
	rec = do(t, h, http.MethodPost, "/reload", `[{"tf":60,"indicators":[{"type":"EMA","period":5}]}]`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestParseReload(t *testing.T) {
	f := newFixture(t)

	configs, err := f.svc.parseReload([]byte(`[{"tf":300,"indicators":[{"type":"EMA","period":5}]}]`))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 300, configs[0].TF)

	configs, err = f.svc.parseReload([]byte("ema:9"))
	require.NoError(t, err)
	require.Len(t, configs, 1)
	assert.Equal(t, 60, configs[0].TF)
	assert.Equal(t, "EMA", configs[0].Indicators[0].Type)

	_, err = f.svc.parseReload([]byte("[oops"))
	assert.Error(t, err)
	_, err = f.svc.parseReload([]byte("EMA"))
	assert.Error(t, err)
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.RunCycle(context.Background())
	require.NoError(t, err)
	h := f.svc.Router()

	// SQLite was never checked, so the service reports unhealthy.
	rec := do(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"engine_ok":true`)

	rec = do(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ta_indicator_series_total")

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/ws", "").Code, "no hub configured")
}
