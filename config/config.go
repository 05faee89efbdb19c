package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"auric/market"
)

// Config is the complete runtime configuration.
type Config struct {
	Account AccountConfig `yaml:"account"`
	Feed    FeedConfig    `yaml:"feed"`
	Oracle  OracleConfig  `yaml:"oracle"`
	Risk    RiskConfig    `yaml:"risk"`
	Loop    LoopConfig    `yaml:"loop"`
	Server  ServerConfig  `yaml:"server"`
	Journal JournalConfig `yaml:"journal"`
	Logging LoggingConfig `yaml:"logging"`
}

type AccountConfig struct {
	ID       string  `yaml:"id"`
	Currency string  `yaml:"currency"`
	Balance  float64 `yaml:"balance"`
}

type FeedConfig struct {
	// Source is "synthetic" or "oanda".
	Source     string  `yaml:"source"`
	Instrument string  `yaml:"instrument"`
	// Strict refuses to start when the live source is unreachable instead of
	// silently degrading to synthetic data.
	Strict       bool    `yaml:"strict"`
	Seed         int64   `yaml:"seed"`
	InitialPrice float64 `yaml:"initial_price"`
	Oanda        struct {
		Token     string `yaml:"token"`
		AccountID string `yaml:"account_id"`
		Practice  bool   `yaml:"practice"`
	} `yaml:"oanda"`
}

type OracleConfig struct {
	Endpoint string `yaml:"endpoint"`
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
	Timeout  string `yaml:"timeout"` // e.g. "8s"
}

// ParseTimeout converts the timeout string to a time.Duration.
func (o OracleConfig) ParseTimeout() (time.Duration, error) {
	if o.Timeout == "" {
		return 8 * time.Second, nil
	}
	return time.ParseDuration(o.Timeout)
}

type RiskConfig struct {
	MaxOpenPositions    int     `yaml:"max_open_positions"`
	MinStopDistance     float64 `yaml:"min_stop_distance"`
	MinRR               float64 `yaml:"min_rr"`
	ConfidenceThreshold float64 `yaml:"confidence_threshold"`
	DefaultVolume       float64 `yaml:"default_volume"`
	MaxVolume           float64 `yaml:"max_volume"`
}

type LoopConfig struct {
	SamplePeriod  string `yaml:"sample_period"` // e.g. "1s"
	DecisionEvery int    `yaml:"decision_every"` // in samples
	SnapshotEvery int    `yaml:"snapshot_every"` // in samples
	Timeframe     string `yaml:"timeframe"`
}

// ParseSamplePeriod converts the sample period string to a time.Duration.
func (l LoopConfig) ParseSamplePeriod() (time.Duration, error) {
	if l.SamplePeriod == "" {
		return time.Second, nil
	}
	return time.ParseDuration(l.SamplePeriod)
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

type JournalConfig struct {
	Type       string `yaml:"type"` // "none", "csv" or "sqlite"
	TradesFile string `yaml:"trades_file,omitempty"`
	EquityFile string `yaml:"equity_file,omitempty"`
	DBPath     string `yaml:"db_path,omitempty"`
}

type LoggingConfig struct {
	Level     string `yaml:"level"`
	File      string `yaml:"file,omitempty"`
	MaxSizeMB int    `yaml:"max_size_mb,omitempty"`
}

// Default returns a configuration that runs out of the box on synthetic data.
func Default() *Config {
	cfg := &Config{
		Account: AccountConfig{
			ID:       "SIM-001",
			Currency: "USD",
			Balance:  10000,
		},
		Feed: FeedConfig{
			Source:       "synthetic",
			Instrument:   "XAU_USD",
			Seed:         1,
			InitialPrice: 2650.0,
		},
		Oracle: OracleConfig{
			Model:   "gpt-4o-mini",
			Timeout: "8s",
		},
		Risk: RiskConfig{
			MaxOpenPositions:    1,
			MinStopDistance:     5.0,
			MinRR:               1.5,
			ConfidenceThreshold: 0.70,
			DefaultVolume:       0.01,
			MaxVolume:           1.0,
		},
		Loop: LoopConfig{
			SamplePeriod:  "1s",
			DecisionEvery: 10,
			SnapshotEvery: 2,
			Timeframe:     "M5",
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Journal: JournalConfig{
			Type: "none",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
	return cfg
}

// Load reads the YAML file (when path is non-empty) over the defaults, then
// applies environment overrides. A .env file is honored when present.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("TRADING_SYMBOL"); v != "" {
		c.Feed.Instrument = v
	}
	if v := os.Getenv("FEED_SOURCE"); v != "" {
		c.Feed.Source = v
	}
	if v := os.Getenv("FEED_STRICT"); v != "" {
		c.Feed.Strict = v == "true" || v == "1"
	}
	if v := os.Getenv("OANDA_TOKEN"); v != "" {
		c.Feed.Oanda.Token = v
	}
	if v := os.Getenv("OANDA_ACCOUNT_ID"); v != "" {
		c.Feed.Oanda.AccountID = v
	}
	if v := os.Getenv("ORACLE_ENDPOINT"); v != "" {
		c.Oracle.Endpoint = v
	}
	if v := os.Getenv("ORACLE_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("ORACLE_MODEL"); v != "" {
		c.Oracle.Model = v
	}
	if v := os.Getenv("DEFAULT_VOLUME"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			c.Risk.DefaultVolume = f
		}
	}
	if v := os.Getenv("CONFIDENCE_THRESHOLD"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Risk.ConfidenceThreshold = f
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("SERVER_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

func (c *Config) Validate() error {
	if c.Account.Currency == "" {
		return fmt.Errorf("account.currency is required")
	}
	if c.Account.Balance <= 0 {
		return fmt.Errorf("account.balance must be positive")
	}
	if c.Feed.Instrument == "" {
		return fmt.Errorf("feed.instrument is required")
	}
	switch c.Feed.Source {
	case "synthetic", "oanda":
	default:
		return fmt.Errorf("feed.source must be \"synthetic\" or \"oanda\", got %q", c.Feed.Source)
	}
	if c.Feed.Source == "synthetic" && c.Feed.InitialPrice <= 0 {
		return fmt.Errorf("feed.initial_price must be positive")
	}
	if c.Feed.Source == "oanda" && c.Feed.Oanda.Token == "" {
		return fmt.Errorf("feed.oanda.token is required for the oanda source")
	}
	if c.Risk.MaxOpenPositions < 1 {
		return fmt.Errorf("risk.max_open_positions must be at least 1")
	}
	if c.Risk.ConfidenceThreshold < 0 || c.Risk.ConfidenceThreshold > 1 {
		return fmt.Errorf("risk.confidence_threshold must be in [0,1]")
	}
	if c.Risk.MinRR < 1 {
		return fmt.Errorf("risk.min_rr must be at least 1")
	}
	if d, err := c.Loop.ParseSamplePeriod(); err != nil || d <= 0 {
		return fmt.Errorf("loop.sample_period must be a positive duration")
	}
	if d, err := c.Oracle.ParseTimeout(); err != nil || d <= 0 {
		return fmt.Errorf("oracle.timeout must be a positive duration")
	}
	if c.Loop.DecisionEvery < 1 || c.Loop.SnapshotEvery < 1 {
		return fmt.Errorf("loop cadences must be at least 1 sample")
	}
	if _, err := market.ParseTimeframe(c.Loop.Timeframe); err != nil {
		return err
	}
	switch c.Journal.Type {
	case "", "none":
	case "csv":
		if c.Journal.TradesFile == "" || c.Journal.EquityFile == "" {
			return fmt.Errorf("journal trades_file and equity_file required for csv")
		}
	case "sqlite":
		if c.Journal.DBPath == "" {
			return fmt.Errorf("journal db_path required for sqlite")
		}
	default:
		return fmt.Errorf("journal.type must be none, csv or sqlite")
	}
	return nil
}
