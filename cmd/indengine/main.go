// indengine recomputes technical indicators and strategy entries over the
// candle histories in SQLite and publishes the newest values to Redis and
// WebSocket clients.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ta-engine/config"
	"ta-engine/internal/gateway"
	"ta-engine/internal/indengine"
	"ta-engine/internal/logger"
	"ta-engine/internal/markethours"
	"ta-engine/internal/metrics"
	"ta-engine/internal/notification"
	redisstore "ta-engine/internal/store/redis"
	sqlitestore "ta-engine/internal/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "error", err)
		os.Exit(1)
	}
	logger.Init("indengine", cfg.SlogLevel())

	if err := run(cfg); err != nil {
		slog.Error("indengine failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()

	// The writer creates the schema, so open it before the reader.
	if dir := filepath.Dir(cfg.SQLitePath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	journal, err := sqlitestore.NewWriter(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer journal.Close()
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		return err
	}
	defer reader.Close()
	slog.Info("sqlite ready", "path", cfg.SQLitePath)

	hub := gateway.NewHub(prom)
	defer hub.Close()

	deps := indengine.Deps{
		Source:  reader,
		Journal: journal,
		Hub:     hub,
		Metrics: prom,
		Health:  health,
	}

	rw, err := redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, prom)
	if err != nil {
		slog.Warn("redis unavailable, continuing without it", "addr", cfg.RedisAddr, "error", err)
		health.StartLivenessChecker(ctx, nil, reader.DB(), 10*time.Second)
	} else {
		defer rw.Close()
		deps.Publisher = rw
		health.StartLivenessChecker(ctx, rw.Client(), reader.DB(), 10*time.Second)
		slog.Info("redis ready", "addr", cfg.RedisAddr)
	}

	if cfg.MarketHoursOnly {
		sess, err := markethours.NSE(cfg.HolidayList()...)
		if err != nil {
			return err
		}
		deps.Session = sess
	}
	if n := notifiers(cfg); len(n) > 0 {
		d := notification.NewDispatcher(n, 256)
		go d.Run(ctx)
		deps.Alerts = d
	}

	svc, err := indengine.New(cfg, deps)
	if err != nil {
		return err
	}
	if rw != nil {
		go svc.WatchReloads(ctx, rw)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           svc.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			stop()
		}
	}()

	runErr := svc.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("http shutdown", "error", err)
	}
	slog.Info("indengine stopped")
	return runErr
}

func notifiers(cfg *config.Config) notification.Multi {
	var n notification.Multi
	if cfg.WebhookURL != "" {
		n = append(n, notification.NewWebhookNotifier(cfg.WebhookURL))
	}
	if cfg.TelegramToken != "" {
		n = append(n, notification.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if len(n) > 0 || cfg.SlogLevel() <= slog.LevelDebug {
		n = append(n, notification.LogNotifier{})
	}
	return n
}
