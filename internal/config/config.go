package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"trustscan/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Detector  DetectorConfig  `mapstructure:"detector"`
	Ledger    LedgerConfig    `mapstructure:"ledger"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Market    MarketConfig    `mapstructure:"market"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Export    ExportConfig    `mapstructure:"export"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DetectorConfig holds the breakout policy.
type DetectorConfig struct {
	SurgeMultiplier float64 `mapstructure:"surge_multiplier"`
	PriceWeight     float64 `mapstructure:"price_weight"`
	VolumeWeight    float64 `mapstructure:"volume_weight"`
	Strict          bool    `mapstructure:"strict"`
}

// LedgerConfig selects the fingerprint digest.
type LedgerConfig struct {
	Hash string `mapstructure:"hash"`
}

// StorageConfig chooses and parameterises the ledger backend.
type StorageConfig struct {
	Backend     string         `mapstructure:"backend"`
	FilePath    string         `mapstructure:"file_path"`
	SQLitePath  string         `mapstructure:"sqlite_path"`
	MemoryDelay time.Duration  `mapstructure:"memory_delay"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig covers the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Key      string `mapstructure:"key"`
}

// MarketConfig selects where snapshots come from.
type MarketConfig struct {
	Source         string        `mapstructure:"source"`
	SnapshotFile   string        `mapstructure:"snapshot_file"`
	URL            string        `mapstructure:"url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// SchedulerConfig governs the watch-mode cadence.
type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	AlignToBucket   bool          `mapstructure:"align_to_bucket"`
	AdvisoryLockKey int64         `mapstructure:"advisory_lock_key"`
	StartupDelay    time.Duration `mapstructure:"startup_delay"`
}

// AlertingConfig defines signal notification routing.
type AlertingConfig struct {
	Enabled     bool           `mapstructure:"enabled"`
	MinStrength int            `mapstructure:"min_strength"`
	Channels    []string       `mapstructure:"channels"`
	Telegram    TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig describes Telegram delivery.
type TelegramConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	BotToken string        `mapstructure:"bot_token"`
	ChatID   string        `mapstructure:"chat_id"`
	APIBase  string        `mapstructure:"api_base"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// MetricsConfig controls the prometheus endpoint used by `run`.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
}

// ExportConfig sets CLI export behaviour.
type ExportConfig struct {
	MaxRecords int `mapstructure:"max_records"`
}

// Load builds configuration from .env, file, environment, and defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("TRUSTSCAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "trustscan")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("detector.surge_multiplier", 1.5)
	v.SetDefault("detector.price_weight", 3.0)
	v.SetDefault("detector.volume_weight", 5.0)
	v.SetDefault("detector.strict", false)

	v.SetDefault("ledger.hash", "sha256")

	v.SetDefault("storage.backend", "file")
	v.SetDefault("storage.file_path", "data/ledger.json")
	v.SetDefault("storage.sqlite_path", "data/ledger.db")
	v.SetDefault("storage.memory_delay", "0s")
	v.SetDefault("storage.database.max_open_conns", 4)
	v.SetDefault("storage.database.max_idle_conns", 1)
	v.SetDefault("storage.database.conn_max_lifetime", "30m")
	v.SetDefault("storage.redis.addr", "localhost:6379")
	v.SetDefault("storage.redis.key", "trustscan:ledger")

	v.SetDefault("market.source", "demo")
	v.SetDefault("market.request_timeout", "10s")
	v.SetDefault("market.user_agent", "trustscan/1.0")

	v.SetDefault("scheduler.interval", "1m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.advisory_lock_key", int64(0x74727573))
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("alerting.enabled", false)
	v.SetDefault("alerting.min_strength", 1)
	v.SetDefault("alerting.channels", []string{"telegram"})
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")
	v.SetDefault("alerting.telegram.timeout", "10s")

	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", ":9108")

	v.SetDefault("export.max_records", 10000)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Detector.SurgeMultiplier <= 0 {
		return fmt.Errorf("detector.surge_multiplier must be greater than zero")
	}
	if c.Detector.PriceWeight < 0 || c.Detector.VolumeWeight < 0 {
		return fmt.Errorf("detector weights cannot be negative")
	}
	if c.Detector.PriceWeight == 0 && c.Detector.VolumeWeight == 0 {
		return fmt.Errorf("at least one detector weight must be positive")
	}

	switch strings.ToLower(c.Ledger.Hash) {
	case "", "sha256", "keccak256":
	default:
		return fmt.Errorf("ledger.hash must be sha256 or keccak256, got %q", c.Ledger.Hash)
	}

	switch strings.ToLower(c.Storage.Backend) {
	case "file":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("storage.file_path is required for the file backend")
		}
	case "memory":
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("storage.sqlite_path is required for the sqlite backend")
		}
	case "postgres":
		if c.Storage.Database.DSN == "" {
			return fmt.Errorf("storage.database.dsn is required for the postgres backend")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return fmt.Errorf("storage.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}

	switch strings.ToLower(c.Market.Source) {
	case "demo":
	case "file":
		if c.Market.SnapshotFile == "" {
			return fmt.Errorf("market.snapshot_file is required for the file source")
		}
	case "http":
		if c.Market.URL == "" {
			return fmt.Errorf("market.url is required for the http source")
		}
	default:
		return fmt.Errorf("unknown market.source %q", c.Market.Source)
	}

	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Export.MaxRecords <= 0 {
		return fmt.Errorf("export.max_records must be greater than zero")
	}
	if c.Alerting.MinStrength < 1 || c.Alerting.MinStrength > 10 {
		return fmt.Errorf("alerting.min_strength must be within 1..10")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token is required")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id is required")
		}
	}
	return nil
}

// ResolveMaxRecords returns either the CLI override or config default.
func (c *Config) ResolveMaxRecords(override int) int {
	if override > 0 {
		return override
	}
	return c.Export.MaxRecords
}
