package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ta-engine/config"
)

func TestParseStrategies(t *testing.T) {
	got, err := parseStrategies("crossma:10:9:21:14:2, ground:3:0:50:14:1.5")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, config.StrategyConfig{
		Name: "crossma", Kind: "crossma", Smoothing: 10, Short: 9, Long: 21, ATRPeriod: 14, StopMulti: 2,
	}, got[0])
	assert.Equal(t, 1.5, got[1].StopMulti)

	got, err = parseStrategies("")
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = parseStrategies("snatr:0:14:3:14:1.5:engulfing:2")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "snatr", got[0].Kind)
	assert.Equal(t, "engulfing", got[0].Confirm)
	assert.Equal(t, 2, got[0].ConfirmPeriod)

	_, err = parseStrategies("crossma:10:9:21:14:2:roc")
	assert.Error(t, err)
	_, err = parseStrategies("crossma:10:9")
	assert.Error(t, err)
	_, err = parseStrategies("crossma:x:9:21:14:2")
	assert.Error(t, err)
}

func TestResolve_FlagsOverDefaults(t *testing.T) {
	configs, strategies, err := resolve(options{tfs: []int{60, 300}, indicators: "ema:9"})
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "EMA_9", configs[1].Indicators[0].Name())
	assert.Empty(t, strategies)

	_, _, err = resolve(options{tfs: []int{60}, indicators: "FOO:3"})
	assert.Error(t, err)
}
