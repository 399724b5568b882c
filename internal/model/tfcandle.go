package model

import (
	"encoding/json"
	"time"
)

// TFCandle is a resampled OHLC candle for one timeframe as stored in
// candles_tf. TF is the timeframe duration in seconds. Prices are in paise.
type TFCandle struct {
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`
	TS       time.Time `json:"ts"` // bucket start (UTC, TF-aligned)
	Open     int64     `json:"open"`
	High     int64     `json:"high"`
	Low      int64     `json:"low"`
	Close    int64     `json:"close"`
	Volume   int64     `json:"volume"`
	Count    int       `json:"count"` // number of 1s candles merged
}

// Key returns "exchange:token".
func (c *TFCandle) Key() string {
	return c.Exchange + ":" + c.Token
}

// IndicatorResult is the newest value of one configured indicator for a
// token and timeframe. Ready is false when the newest value is missing.
type IndicatorResult struct {
	Name     string    `json:"name"` // e.g. "SMA_20", "KAMA_10"
	Token    string    `json:"token"`
	Exchange string    `json:"exchange"`
	TF       int       `json:"tf"`
	Value    float64   `json:"value"`
	TS       time.Time `json:"ts"` // timestamp of the bar that produced Value
	Ready    bool      `json:"ready"`
	Bars     int       `json:"bars"` // history length the value was computed over
}

// StreamKey returns the Redis stream key: "ind:{name}:{TF}s:{exchange}:{token}".
func (r *IndicatorResult) StreamKey() string {
	return "ind:" + r.Name + ":" + Itoa(r.TF) + "s:" + r.Exchange + ":" + r.Token
}

// LatestKey returns the Redis key holding the newest value.
func (r *IndicatorResult) LatestKey() string {
	return "ind:latest:" + r.Name + ":" + Itoa(r.TF) + "s:" + r.Exchange + ":" + r.Token
}

// JSON returns the JSON-encoded indicator result.
func (r *IndicatorResult) JSON() []byte {
	b, _ := json.Marshal(r)
	return b
}

// SignalResult is the newest entry decision of a registered strategy.
type SignalResult struct {
	Strategy  string    `json:"strategy"`
	Handle    int32     `json:"handle"`
	Token     string    `json:"token"`
	Exchange  string    `json:"exchange"`
	TF        int       `json:"tf"`
	TS        time.Time `json:"ts"`
	GoLong    bool      `json:"go_long"`
	GoShort   bool      `json:"go_short"`
	StopLong  float64   `json:"stop_long,omitempty"`
	StopShort float64   `json:"stop_short,omitempty"`
}

// StreamKey returns "sig:{strategy}:{TF}s:{exchange}:{token}".
func (s *SignalResult) StreamKey() string {
	return "sig:" + s.Strategy + ":" + Itoa(s.TF) + "s:" + s.Exchange + ":" + s.Token
}

// JSON returns the JSON-encoded signal.
func (s *SignalResult) JSON() []byte {
	b, _ := json.Marshal(s)
	return b
}
