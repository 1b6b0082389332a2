package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"execution-lab/internal/backtest"
	"execution-lab/internal/domain"
	"execution-lab/internal/fillmodel"
	"execution-lab/internal/guardrail"
	"execution-lab/internal/metrics"
	"execution-lab/internal/walkforward"
)

// DateLayout is the layout of campaign from/to dates.
const DateLayout = "2006-01-02"

// Config is the complete configuration of a backtest or walk-forward campaign.
type Config struct {
	Campaign    CampaignConfig              `yaml:"campaign"`
	Strategy    domain.StrategyConfig       `yaml:"strategy"`
	Engine      backtest.Config             `yaml:"engine"`
	FillModel   fillmodel.Params            `yaml:"fill_model"`
	Metrics     metrics.SummaryOptions      `yaml:"metrics"`
	Guardrail   guardrail.Config            `yaml:"guardrail"`
	Sensitivity guardrail.SensitivityConfig `yaml:"sensitivity"`
	Sweep       SweepConfig                 `yaml:"sweep"`
	WalkForward walkforward.Config          `yaml:"walk_forward"`
	Storage     StorageConfig               `yaml:"storage"`
	Log         LogConfig                   `yaml:"log"`
	MetricsAddr string                      `yaml:"metrics_addr"` // empty disables the /metrics server
}

// CampaignConfig selects what is replayed.
type CampaignConfig struct {
	Symbol string `yaml:"symbol"`
	From   string `yaml:"from"` // YYYY-MM-DD, inclusive
	To     string `yaml:"to"`   // YYYY-MM-DD, inclusive through the end of the day
	Seed   uint64 `yaml:"seed"`
}

// SweepConfig holds the relative parameter steps of the sensitivity sweep.
type SweepConfig struct {
	Steps []float64 `yaml:"steps"`
}

// StorageConfig controls where bars, snapshots and results live.
type StorageConfig struct {
	UseMemory       bool    `yaml:"use_memory"`
	PostgresDSN     string  `yaml:"postgres_dsn"`
	ClickHouseDSN   string  `yaml:"clickhouse_dsn"`
	SQLiteDir       string  `yaml:"sqlite_dir"` // per-symbol snapshot files; overrides ClickHouse snapshots
	FetchRatePerSec float64 `yaml:"fetch_rate_per_sec"`
	FetchBurst      int     `yaml:"fetch_burst"`
}

// LogConfig controls logging format and level.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // console | json
}

// Default returns the configuration used when no file overrides a value.
func Default() *Config {
	return &Config{
		Engine:      backtest.DefaultConfig(),
		FillModel:   fillmodel.DefaultParams(),
		Metrics:     metrics.DefaultSummaryOptions(),
		Guardrail:   guardrail.DefaultConfig(),
		Sensitivity: guardrail.DefaultSensitivityConfig(),
		Sweep:       SweepConfig{Steps: []float64{-0.2, -0.1, 0.1, 0.2}},
		WalkForward: walkforward.DefaultConfig(),
	}
}

// Load reads the YAML file at path over the defaults, then applies EXECLAB_*
// environment overrides. A .env file in the working directory is loaded first
// if present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: read %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	setDefaults(cfg)
	return cfg, nil
}

// Parse decodes YAML over the defaults without consulting the environment.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config.Load: parse YAML: %w", err)
	}
	return cfg, nil
}

// Range returns the campaign range in Unix milliseconds. To covers the whole
// last day.
func (c *Config) Range() (from, to int64, err error) {
	f, err := time.Parse(DateLayout, c.Campaign.From)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign.from: %w", err)
	}
	t, err := time.Parse(DateLayout, c.Campaign.To)
	if err != nil {
		return 0, 0, fmt.Errorf("campaign.to: %w", err)
	}
	if t.Before(f) {
		return 0, 0, fmt.Errorf("campaign.to %s before campaign.from %s", c.Campaign.To, c.Campaign.From)
	}
	return f.UnixMilli(), t.Add(24*time.Hour).UnixMilli() - 1, nil
}

// Validate reports settings a campaign cannot run without.
func (c *Config) Validate() error {
	if c.Campaign.Symbol == "" {
		return fmt.Errorf("campaign.symbol is required")
	}
	if _, _, err := c.Range(); err != nil {
		return err
	}
	if c.Strategy.StrategyType == "" {
		return fmt.Errorf("strategy.type is required")
	}
	if !c.Storage.UseMemory {
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required unless storage.use_memory is set")
		}
		if c.Storage.ClickHouseDSN == "" {
			return fmt.Errorf("storage.clickhouse_dsn is required unless storage.use_memory is set")
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	str := map[string]*string{
		"EXECLAB_SYMBOL":         &cfg.Campaign.Symbol,
		"EXECLAB_FROM":           &cfg.Campaign.From,
		"EXECLAB_TO":             &cfg.Campaign.To,
		"EXECLAB_POSTGRES_DSN":   &cfg.Storage.PostgresDSN,
		"EXECLAB_CLICKHOUSE_DSN": &cfg.Storage.ClickHouseDSN,
		"EXECLAB_SQLITE_DIR":     &cfg.Storage.SQLiteDir,
		"EXECLAB_LOG_LEVEL":      &cfg.Log.Level,
		"EXECLAB_LOG_FORMAT":     &cfg.Log.Format,
		"EXECLAB_METRICS_ADDR":   &cfg.MetricsAddr,
	}
	for key, dst := range str {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv("EXECLAB_SEED"); v != "" {
		seed, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("EXECLAB_SEED: %w", err)
		}
		cfg.Campaign.Seed = seed
	}
	if v := os.Getenv("EXECLAB_USE_MEMORY"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("EXECLAB_USE_MEMORY: %w", err)
		}
		cfg.Storage.UseMemory = b
	}
	if v := os.Getenv("EXECLAB_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("EXECLAB_WORKERS: %w", err)
		}
		cfg.WalkForward.Workers = n
	}
	return nil
}

func setDefaults(cfg *Config) {
	cfg.Strategy.StrategyType = strings.ToUpper(cfg.Strategy.StrategyType)
	cfg.Strategy.Side = strings.ToUpper(cfg.Strategy.Side)
	if cfg.Strategy.Side == "" {
		cfg.Strategy.Side = string(domain.PositionLong)
	}
	if cfg.Storage.FetchBurst <= 0 {
		cfg.Storage.FetchBurst = 1
	}
	if len(cfg.Sweep.Steps) == 0 {
		cfg.Sweep.Steps = Default().Sweep.Steps
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
}
