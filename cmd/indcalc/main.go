// indcalc computes indicators and strategy entries over candles stored in
// SQLite and prints a summary. With --replay it walks each history bar by
// bar and reports every entry a strategy would have taken.
//
// Usage:
//
//	go run ./cmd/indcalc --db=data/candles.db --tf=60,300 --indicators=SMA:20,KAMA:10
//	go run ./cmd/indcalc --tf=60 --strategy=crossma:10:9:21:14:2 --replay
//	go run ./cmd/indcalc --tf=60 --strategy=snatr:0:14:3:14:1.5:engulfing:2
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"

	"ta-engine/config"
	"ta-engine/internal/indengine"
	"ta-engine/internal/indicator"
	"ta-engine/internal/logger"
	"ta-engine/internal/model"
	"ta-engine/internal/replay"
	"ta-engine/internal/strategy"
	redisstore "ta-engine/internal/store/redis"
	sqlitestore "ta-engine/internal/store/sqlite"
)

type options struct {
	db         string
	tfs        []int
	tokens     string
	indicators string
	file       string
	limit      int
	strategies []config.StrategyConfig
	replay     bool
	speed      float64
	from       int64
	redisAddr  string
}

func main() {
	var (
		o         options
		tfStr     string
		stratSpec string
		level     string
	)
	flag.StringVar(&o.db, "db", "data/candles.db", "Path to SQLite database")
	flag.StringVar(&tfStr, "tf", "60,300", "Comma-separated TFs in seconds")
	flag.StringVar(&o.tokens, "tokens", "", "exchangeType:token,... (default: every key in the database)")
	flag.StringVar(&o.indicators, "indicators", config.DefaultIndicators, "Indicator specs: TYPE:PERIOD,...")
	flag.StringVar(&o.file, "file", "", "YAML file with indicators and strategies")
	flag.IntVar(&o.limit, "limit", 500, "Bars of history per token")
	flag.StringVar(&stratSpec, "strategy", "", "kind:smoothing:short:long:atr:multi[:confirm:period],... (ground ignores short; snatr reads short/long as ATR/smoothing periods)")
	flag.BoolVar(&o.replay, "replay", false, "Replay each history bar by bar")
	flag.Float64Var(&o.speed, "speed", 0, "Replay speed multiplier (0=max, 1=realtime)")
	flag.Int64Var(&o.from, "from", 0, "Replay candles after this unix timestamp")
	flag.StringVar(&o.redisAddr, "redis", "", "Publish the newest values to this Redis address")
	flag.StringVar(&level, "log-level", "warn", "debug, info, warn or error")
	flag.Parse()

	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelWarn
	}
	logger.Init("indcalc", lvl)

	o.tfs = config.ParseTFs(tfStr)
	if len(o.tfs) == 0 {
		fatal("no valid TFs specified")
	}
	sc, err := parseStrategies(stratSpec)
	if err != nil {
		fatal(err.Error())
	}
	o.strategies = sc

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, o); err != nil {
		fatal(err.Error())
	}
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, "indcalc:", msg)
	os.Exit(1)
}

func run(ctx context.Context, o options) error {
	configs, strategies, err := resolve(o)
	if err != nil {
		return err
	}
	engine, err := indicator.NewEngine(configs, 4)
	if err != nil {
		return err
	}
	reg := strategy.NewRegistry()
	host := strategy.NewHost(reg)
	for _, sc := range strategies {
		if _, err := indengine.Register(host, reg, sc); err != nil {
			return err
		}
	}
	strat := strategy.NewEngine(reg)

	reader, err := sqlitestore.NewReader(o.db)
	if err != nil {
		return err
	}
	defer reader.Close()

	var histories []model.OHLCV
	for _, tf := range engine.TFs() {
		keys, err := tokenKeys(ctx, reader, o.tokens, tf)
		if err != nil {
			return err
		}
		for _, key := range keys {
			ex, tok, _ := strings.Cut(key, ":")
			h, err := reader.ReadOHLCV(ctx, ex, tok, tf, o.limit)
			if err != nil {
				return err
			}
			if h.Len() > 0 {
				histories = append(histories, h)
			}
		}
	}
	if len(histories) == 0 {
		return fmt.Errorf("no candles found in %s for TFs %v", o.db, engine.TFs())
	}

	perHistory, err := engine.ComputeAll(ctx, histories)
	if err != nil {
		return err
	}
	var results []model.IndicatorResult
	var sigs []model.SignalResult
	for i, h := range histories {
		printResults(h, perHistory[i])
		results = append(results, perHistory[i]...)
		sigs = append(sigs, strat.Evaluate(h)...)
	}

	if o.replay && reg.Len() > 0 {
		rp := replay.New(reader)
		rp.Speed = o.speed
		rp.Window = o.limit
		for _, h := range histories {
			st, err := rp.Run(ctx, h.Exchange, h.Token, h.TF, o.from, strat.Evaluate)
			if err != nil {
				return err
			}
			printReplay(h, st)
		}
	}

	printSummary(histories, results, sigs)

	if o.redisAddr != "" {
		return publish(ctx, o.redisAddr, results, sigs)
	}
	return nil
}

// resolve merges --file with the flag values. Flags win when both are set.
func resolve(o options) ([]indicator.TFIndicatorConfig, []config.StrategyConfig, error) {
	var file config.File
	if o.file != "" {
		f, err := config.LoadFile(o.file)
		if err != nil {
			return nil, nil, err
		}
		file = *f
	}

	configs := file.Indicators
	if len(configs) == 0 || o.indicators != config.DefaultIndicators {
		specs, err := config.ParseIndicatorSpecs(o.indicators)
		if err != nil {
			return nil, nil, err
		}
		configs = config.ForTFs(o.tfs, specs)
	}
	if err := indicator.ValidateConfigs(configs); err != nil {
		return nil, nil, err
	}
	return configs, append(file.Strategies, o.strategies...), nil
}

// parseStrategies parses "kind:smoothing:short:long:atr:multi[:confirm:period],...".
func parseStrategies(s string) ([]config.StrategyConfig, error) {
	var out []config.StrategyConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		f := strings.Split(part, ":")
		if len(f) != 6 && len(f) != 8 {
			return nil, fmt.Errorf("invalid strategy %q: want kind:smoothing:short:long:atr:multi[:confirm:period]", part)
		}
		var n [4]int
		for i := range n {
			v, err := strconv.Atoi(f[i+1])
			if err != nil {
				return nil, fmt.Errorf("invalid strategy %q: %w", part, err)
			}
			n[i] = v
		}
		multi, err := strconv.ParseFloat(f[5], 64)
		if err != nil {
			return nil, fmt.Errorf("invalid strategy %q: %w", part, err)
		}
		sc := config.StrategyConfig{
			Name:      f[0],
			Kind:      strings.ToLower(f[0]),
			Smoothing: n[0],
			Short:     n[1],
			Long:      n[2],
			ATRPeriod: n[3],
			StopMulti: multi,
		}
		if len(f) == 8 {
			sc.Confirm = f[6]
			if sc.ConfirmPeriod, err = strconv.Atoi(f[7]); err != nil {
				return nil, fmt.Errorf("invalid strategy %q: %w", part, err)
			}
		}
		out = append(out, sc)
	}
	return out, nil
}

func tokenKeys(ctx context.Context, reader *sqlitestore.Reader, tokens string, tf int) ([]string, error) {
	if tokens != "" {
		return config.ParseTokenKeys(tokens), nil
	}
	return reader.ListKeys(ctx, tf)
}

func printResults(h model.OHLCV, results []model.IndicatorResult) {
	fmt.Printf("%s TF=%ds bars=%d last=%s\n", h.Key(), h.TF, h.Len(), h.LastTS().Format("2006-01-02 15:04:05"))
	for _, r := range results {
		if !r.Ready {
			fmt.Printf("  %-12s  (warming up)\n", r.Name)
			continue
		}
		fmt.Printf("  %-12s %12.4f\n", r.Name, r.Value)
	}
}

func printReplay(h model.OHLCV, st replay.Stats) {
	fmt.Printf("replay %s TF=%ds: %d bars, %d long, %d short\n", h.Key(), h.TF, st.Bars, st.Long, st.Short)
	for _, s := range st.Signals {
		side := "LONG "
		stop := s.StopLong
		if s.GoShort {
			side, stop = "SHORT", s.StopShort
		}
		fmt.Printf("  %s %s %-10s stop=%.2f\n", s.TS.Format("2006-01-02 15:04"), side, s.Strategy, stop)
	}
}

func printSummary(histories []model.OHLCV, results []model.IndicatorResult, sigs []model.SignalResult) {
	ready := 0
	for _, r := range results {
		if r.Ready {
			ready++
		}
	}
	sort.Slice(sigs, func(i, j int) bool { return sigs[i].StreamKey() < sigs[j].StreamKey() })

	fmt.Println()
	fmt.Printf("histories: %d  indicators ready: %d/%d  entries on last bar: %d\n",
		len(histories), ready, len(results), len(sigs))
	for _, s := range sigs {
		fmt.Printf("  %s long=%t short=%t\n", s.StreamKey(), s.GoLong, s.GoShort)
	}
}

func publish(ctx context.Context, addr string, results []model.IndicatorResult, sigs []model.SignalResult) error {
	w, err := redisstore.New(redisstore.WriterConfig{Addr: addr}, nil)
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteIndicatorBatch(ctx, results); err != nil {
		return err
	}
	if len(sigs) > 0 {
		if err := w.WriteSignals(ctx, sigs); err != nil {
			return err
		}
	}
	fmt.Printf("published %d results and %d signals to %s\n", len(results), len(sigs), addr)
	return nil
}
