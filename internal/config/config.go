package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"candle-diff/internal/logging"
)

// Config materialises application configuration. It is built once at process
// start and handed to each component; nothing reads the environment after
// Load returns.
type Config struct {
	App        AppConfig      `mapstructure:"app"`
	Logging    logging.Config `mapstructure:"logging"`
	Binance    BinanceConfig  `mapstructure:"binance"`
	Reya       ReyaConfig     `mapstructure:"reya"`
	Resolution string         `mapstructure:"resolution"`
	Rows       int            `mapstructure:"rows"`
	Fetch      FetchConfig    `mapstructure:"fetch"`
	Parse      ParseConfig    `mapstructure:"parse"`
	Output     OutputConfig   `mapstructure:"output"`
	Database   DatabaseConfig `mapstructure:"database"`
}

// AppConfig names the process and its environment.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// BinanceConfig locates the Binance futures kline endpoint.
type BinanceConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Symbol  string `mapstructure:"symbol"`
}

// ReyaConfig locates the Reya candle-history endpoint.
type ReyaConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Symbol  string `mapstructure:"symbol"`
}

// FetchConfig governs HTTP retry and pacing behaviour.
type FetchConfig struct {
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxRetries     int           `mapstructure:"max_retries"`
	BackoffBase    time.Duration `mapstructure:"backoff_base"`
	RequestsPerSec int           `mapstructure:"requests_per_sec"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// ParseConfig selects normalizer strictness.
type ParseConfig struct {
	Strict bool `mapstructure:"strict"`
}

// OutputConfig sets artifact locations and naming.
type OutputConfig struct {
	Dir   string `mapstructure:"dir"`
	Pair  string `mapstructure:"pair"`
	Chart bool   `mapstructure:"chart"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity. An empty DSN disables
// the mirror.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// Load merges defaults, an optional config file, and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("CANDLEDIFF")
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

// Unmarshal only sees environment values for keys registered here, so even
// keys whose default is empty get a SetDefault.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "candlediff")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.time_format", "")
	v.SetDefault("logging.caller", false)
	v.SetDefault("logging.pretty", false)

	v.SetDefault("binance.base_url", "https://fapi.binance.com")
	v.SetDefault("binance.symbol", "BTCUSDT")

	v.SetDefault("reya.base_url", "https://api.reya.xyz")
	v.SetDefault("reya.symbol", "BTCRUSDPERP")

	v.SetDefault("resolution", "1m")
	v.SetDefault("rows", 1440)

	v.SetDefault("fetch.timeout", "20s")
	v.SetDefault("fetch.max_retries", 3)
	v.SetDefault("fetch.backoff_base", "1.5s")
	v.SetDefault("fetch.requests_per_sec", 4)
	v.SetDefault("fetch.user_agent", "candlediff/1.0")

	v.SetDefault("parse.strict", false)

	v.SetDefault("output.dir", "data")
	v.SetDefault("output.pair", "btc_reya_vs_binance")
	v.SetDefault("output.chart", false)

	v.SetDefault("database.dsn", "")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.max_idle_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
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

// Validate checks the loaded values before any component starts.
func (c *Config) Validate() error {
	if c.Rows <= 0 {
		return fmt.Errorf("rows must be greater than zero")
	}
	if c.Resolution == "" {
		return fmt.Errorf("resolution is required")
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be greater than zero")
	}
	if c.Fetch.MaxRetries <= 0 {
		return fmt.Errorf("fetch.max_retries must be greater than zero")
	}
	if c.Fetch.BackoffBase < 0 {
		return fmt.Errorf("fetch.backoff_base cannot be negative")
	}
	if c.Fetch.RequestsPerSec <= 0 {
		return fmt.Errorf("fetch.requests_per_sec must be greater than zero")
	}
	if c.Binance.Symbol == "" {
		return fmt.Errorf("binance.symbol is required")
	}
	if c.Reya.Symbol == "" {
		return fmt.Errorf("reya.symbol is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	if c.Output.Pair == "" {
		return fmt.Errorf("output.pair is required")
	}
	return nil
}

// MirrorEnabled reports whether a database mirror target is configured.
func (c *Config) MirrorEnabled() bool {
	return c.Database.DSN != ""
}
