package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"execution-lab/internal/backtest"
	"execution-lab/internal/guardrail"
)

const sampleYAML = `
campaign:
  symbol: BTC-USD
  from: 2024-01-01
  to: 2024-03-31
  seed: 42
strategy:
  type: time_exit
  hold_bars: 12
engine:
  initial_capital: 50000
  execution:
    tolerance: 45s
guardrail:
  min_trades: 10
walk_forward:
  train_days: 60
storage:
  use_memory: true
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestParse_OverlaysDefaults(t *testing.T) {
	cfg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, 50000.0, cfg.Engine.InitialCapital)
	assert.Equal(t, 45*time.Second, cfg.Engine.Execution.Tolerance)
	assert.Equal(t, backtest.DefaultConfig().FeeRate, cfg.Engine.FeeRate)
	assert.Equal(t, backtest.DefaultConfig().Order, cfg.Engine.Order)

	assert.Equal(t, 10, cfg.Guardrail.MinTrades)
	assert.Equal(t, guardrail.DefaultConfig().MinOOSCalmar, cfg.Guardrail.MinOOSCalmar)

	assert.Equal(t, 60, cfg.WalkForward.TrainDays)
	assert.Equal(t, 30, cfg.WalkForward.TestDays)

	require.NotNil(t, cfg.Strategy.HoldBars)
	assert.Equal(t, 12, *cfg.Strategy.HoldBars)
	assert.Equal(t, uint64(42), cfg.Campaign.Seed)
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("engine: [unclosed"))
	assert.Error(t, err)
}

func TestLoad_EnvOverridesAndDefaults(t *testing.T) {
	t.Setenv("EXECLAB_SYMBOL", "ETH-USD")
	t.Setenv("EXECLAB_SEED", "7")
	t.Setenv("EXECLAB_WORKERS", "2")
	t.Setenv("EXECLAB_LOG_FORMAT", "json")

	cfg, err := Load(writeConfig(t, sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "ETH-USD", cfg.Campaign.Symbol)
	assert.Equal(t, uint64(7), cfg.Campaign.Seed)
	assert.Equal(t, 2, cfg.WalkForward.Workers)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, "info", cfg.Log.Level)

	assert.Equal(t, "TIME_EXIT", cfg.Strategy.StrategyType)
	assert.Equal(t, "LONG", cfg.Strategy.Side)
	assert.Equal(t, 1, cfg.Storage.FetchBurst)
	assert.Equal(t, []float64{-0.2, -0.1, 0.1, 0.2}, cfg.Sweep.Steps)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadEnvValue(t *testing.T) {
	t.Setenv("EXECLAB_SEED", "not-a-number")
	_, err := Load(writeConfig(t, sampleYAML))
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfig_Range(t *testing.T) {
	cfg := Default()
	cfg.Campaign.From = "2024-01-01"
	cfg.Campaign.To = "2024-01-02"

	from, to, err := cfg.Range()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), from)
	assert.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC).UnixMilli()-1, to)

	cfg.Campaign.To = "2023-12-31"
	_, _, err = cfg.Range()
	assert.Error(t, err)

	cfg.Campaign.To = "31/12/2024"
	_, _, err = cfg.Range()
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	base := func() *Config {
		cfg := Default()
		cfg.Campaign = CampaignConfig{Symbol: "BTC-USD", From: "2024-01-01", To: "2024-02-01"}
		cfg.Strategy.StrategyType = "TIME_EXIT"
		cfg.Storage.UseMemory = true
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(*Config) {}, false},
		{"no symbol", func(c *Config) { c.Campaign.Symbol = "" }, true},
		{"no strategy", func(c *Config) { c.Strategy.StrategyType = "" }, true},
		{"db without dsn", func(c *Config) { c.Storage.UseMemory = false }, true},
		{"db with dsns", func(c *Config) {
			c.Storage.UseMemory = false
			c.Storage.PostgresDSN = "postgres://localhost/lab"
			c.Storage.ClickHouseDSN = "clickhouse://localhost:9000/lab"
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
