// Package config loads service configuration from the environment, an
// optional .env file and an optional YAML file describing indicators and
// strategies.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"ta-engine/internal/indicator"
)

// Prefix is the environment variable prefix, e.g. TA_SQLITE_PATH.
const Prefix = "TA"

// DefaultIndicators is used when neither TA_INDICATORS nor the YAML file
// names any indicator.
const DefaultIndicators = "SMA:9,SMA:20,SMA:50,SMA:200,EMA:9,EMA:21,RSI:14"

// Config holds all service configuration.
type Config struct {
	SQLitePath    string        `envconfig:"SQLITE_PATH" default:"data/candles.db" validate:"required"`
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0,lte=15"`
	HTTPAddr      string        `envconfig:"HTTP_ADDR" default:":9095" validate:"required"`
	EnabledTFs    string        `envconfig:"ENABLED_TFS" default:"60,300"`
	Tokens        string        `envconfig:"SUBSCRIBE_TOKENS" default:"1:99926000"`
	Indicators    string        `envconfig:"INDICATORS"`
	IndicatorFile string        `envconfig:"INDICATOR_FILE"`
	Interval      time.Duration `envconfig:"INTERVAL" default:"10s" validate:"gt=0"`
	History       int           `envconfig:"HISTORY" default:"500" validate:"gte=10"`
	Workers       int           `envconfig:"WORKERS" default:"4" validate:"gte=1,lte=64"`
	LogLevel      string        `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`
	ReloadRPS     float64       `envconfig:"RELOAD_RPS" default:"1" validate:"gt=0"`

	// Skip recomputes while the exchange is closed.
	MarketHoursOnly bool   `envconfig:"MARKET_HOURS_ONLY" default:"false"`
	Holidays        string `envconfig:"HOLIDAYS"` // YYYY-MM-DD,... (default: built-in calendar)

	WebhookURL     string `envconfig:"WEBHOOK_URL" validate:"omitempty,url"`
	TelegramToken  string `envconfig:"TELEGRAM_TOKEN"`
	TelegramChatID string `envconfig:"TELEGRAM_CHAT_ID" validate:"required_with=TelegramToken"`

	// Resolved by Load.
	TFs        []int                         `ignored:"true"`
	TokenKeys  []string                      `ignored:"true" validate:"min=1"`
	IndConfigs []indicator.TFIndicatorConfig `ignored:"true" validate:"min=1,dive"`
	Strategies []StrategyConfig              `ignored:"true" validate:"dive"`
}

// StrategyConfig describes one strategy registered at startup.
//
// crossma uses Smoothing, Short and Long; ground uses Smoothing and Long;
// snatr uses Short as the ATR period, Long as the smoothing period and the
// Lower/Upper barriers (0.2/0.8 when both are zero). Confirm optionally
// names a confirmation ("roc" or a candlestick pattern) over ConfirmPeriod
// bars.
type StrategyConfig struct {
	Name          string  `yaml:"name" json:"name" validate:"required"`
	Kind          string  `yaml:"kind" json:"kind" validate:"oneof=crossma ground snatr"`
	Smoothing     int     `yaml:"smoothing" json:"smoothing" validate:"gte=0"` // MAType code
	Short         int     `yaml:"short" json:"short" validate:"gte=0"`
	Long          int     `yaml:"long" json:"long" validate:"gt=0"`
	ATRPeriod     int     `yaml:"atr_period" json:"atr_period" validate:"gt=0"`
	StopMulti     float64 `yaml:"stop_multi" json:"stop_multi" validate:"gt=0"`
	Lower         float64 `yaml:"lower" json:"lower,omitempty" validate:"gte=0,lte=1"`
	Upper         float64 `yaml:"upper" json:"upper,omitempty" validate:"gte=0,lte=1"`
	Confirm       string  `yaml:"confirm" json:"confirm,omitempty"`
	ConfirmPeriod int     `yaml:"confirm_period" json:"confirm_period,omitempty" validate:"required_with=Confirm"`
}

// Barriers returns the SNATR barriers, defaulting to 0.2/0.8.
func (sc StrategyConfig) Barriers() (lower, upper float64) {
	if sc.Lower == 0 && sc.Upper == 0 {
		return 0.2, 0.8
	}
	return sc.Lower, sc.Upper
}

// File is the YAML layout of TA_INDICATOR_FILE.
type File struct {
	Indicators []indicator.TFIndicatorConfig `yaml:"indicators"`
	Strategies []StrategyConfig              `yaml:"strategies"`
}

// Load reads .env (if present), the TA_* environment and the optional
// indicator file, then validates the result.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(Prefix, &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.TFs = ParseTFs(cfg.EnabledTFs)
	cfg.TokenKeys = ParseTokenKeys(cfg.Tokens)

	var file File
	if cfg.IndicatorFile != "" {
		f, err := LoadFile(cfg.IndicatorFile)
		if err != nil {
			return nil, err
		}
		file = *f
	}

	// Env specs win over the file; the file wins over the defaults.
	switch {
	case cfg.Indicators != "":
		specs, err := ParseIndicatorSpecs(cfg.Indicators)
		if err != nil {
			return nil, err
		}
		cfg.IndConfigs = ForTFs(cfg.TFs, specs)
	case len(file.Indicators) > 0:
		cfg.IndConfigs = file.Indicators
		cfg.TFs = cfg.TFs[:0]
		for _, c := range file.Indicators {
			cfg.TFs = append(cfg.TFs, c.TF)
		}
	default:
		specs, _ := ParseIndicatorSpecs(DefaultIndicators)
		cfg.IndConfigs = ForTFs(cfg.TFs, specs)
	}
	cfg.Strategies = file.Strategies

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFile parses a YAML indicator/strategy file.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	for i := range f.Indicators {
		for j := range f.Indicators[i].Indicators {
			ic := &f.Indicators[i].Indicators[j]
			ic.Type = strings.ToUpper(ic.Type)
		}
	}
	return &f, nil
}

// Validate checks struct constraints and the indicator catalogue.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if err := indicator.ValidateConfigs(c.IndConfigs); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// SlogLevel maps LogLevel onto a slog level.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// HolidayList splits Holidays into dates.
func (c *Config) HolidayList() []string {
	var out []string
	for _, d := range strings.Split(c.Holidays, ",") {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// ForTFs applies the same indicator list to every timeframe.
func ForTFs(tfs []int, specs []indicator.IndicatorConfig) []indicator.TFIndicatorConfig {
	configs := make([]indicator.TFIndicatorConfig, len(tfs))
	for i, tf := range tfs {
		configs[i] = indicator.TFIndicatorConfig{TF: tf, Indicators: specs}
	}
	return configs
}

// ParseIndicatorSpecs parses "TYPE:PERIOD,..." into indicator configs.
// Example: "SMA:9,SMA:20,KAMA:10,RSI:14".
func ParseIndicatorSpecs(s string) ([]indicator.IndicatorConfig, error) {
	var configs []indicator.IndicatorConfig
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		typ, per, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid indicator spec %q: want TYPE:PERIOD", part)
		}
		period, err := strconv.Atoi(strings.TrimSpace(per))
		if err != nil || period <= 0 {
			return nil, fmt.Errorf("invalid indicator spec %q: bad period", part)
		}
		configs = append(configs, indicator.IndicatorConfig{
			Type:   strings.ToUpper(strings.TrimSpace(typ)),
			Period: period,
		})
	}
	if len(configs) == 0 {
		return nil, fmt.Errorf("no indicator specs in %q", s)
	}
	return configs, nil
}

// ParseTFs parses comma-separated timeframe seconds, skipping bad entries.
func ParseTFs(s string) []int {
	parts := strings.Split(s, ",")
	tfs := make([]int, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil || n <= 0 {
			slog.Warn("skipping invalid TF value", "value", p)
			continue
		}
		tfs = append(tfs, n)
	}
	return tfs
}

// ParseTokenKeys parses "exchangeType:token,..." into "exchange:token" keys.
// Exchange types: 1 NSE, 2 NFO, 3 BSE. A non-numeric type is kept as is.
func ParseTokenKeys(s string) []string {
	var keys []string
	for _, pair := range strings.Split(s, ",") {
		ex, tok, ok := strings.Cut(strings.TrimSpace(pair), ":")
		if !ok || tok == "" {
			continue
		}
		keys = append(keys, ExchangeName(ex)+":"+tok)
	}
	return keys
}

// ExchangeName maps an exchange type code to its name.
func ExchangeName(code string) string {
	switch code {
	case "1":
		return "NSE"
	case "2":
		return "NFO"
	case "3":
		return "BSE"
	}
	return code
}
