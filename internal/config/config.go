package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/codyseavey/tcg-portfolio/internal/pricing"
)

// Config holds application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	PriceFeed PriceFeedConfig `mapstructure:"price_feed"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Snapshot  SnapshotConfig  `mapstructure:"snapshot"`
	Pricing   PricingConfig   `mapstructure:"pricing"`
}

type ServerConfig struct {
	Port               string   `mapstructure:"port"`
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`
	FrontendDistPath   string   `mapstructure:"frontend_dist_path"`
	GinMode            string   `mapstructure:"gin_mode"`
}

// DatabaseConfig selects the driver from the DSN: postgres:// URLs and
// key=value strings use postgres, anything else is a sqlite path.
type DatabaseConfig struct {
	DSN      string `mapstructure:"dsn"`
	LogLevel string `mapstructure:"log_level"`
}

type PriceFeedConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RetryMax          int           `mapstructure:"retry_max"`
	HistoryDays       int           `mapstructure:"history_days"`
}

type SyncConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	Interval         time.Duration `mapstructure:"interval"`
	BatchSize        int           `mapstructure:"batch_size"`
	StaleAfter       time.Duration `mapstructure:"stale_after"`
	MatchMaxDistance int           `mapstructure:"match_max_distance"`
}

type SnapshotConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

type PricingConfig struct {
	GradingFeeUSD            float64 `mapstructure:"grading_fee_usd"`
	VarianceThresholdPercent float64 `mapstructure:"variance_threshold_percent"`
	PriceThresholdUSD        float64 `mapstructure:"price_threshold_usd"`
	CacheSize                int     `mapstructure:"cache_size"`
}

// Thresholds returns the range display thresholds
func (p PricingConfig) Thresholds() pricing.DisplayThresholds {
	return pricing.DisplayThresholds{
		VariancePercent: p.VarianceThresholdPercent,
		PriceUSD:        p.PriceThresholdUSD,
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.cors_allowed_origins", []string{"http://localhost:5173", "http://localhost:3000"})
	v.SetDefault("server.frontend_dist_path", "")
	v.SetDefault("server.gin_mode", "release")

	v.SetDefault("database.dsn", "./tcg_portfolio.db")
	v.SetDefault("database.log_level", "warn")

	v.SetDefault("price_feed.base_url", "https://www.pokemonpricetracker.com/api/v2")
	v.SetDefault("price_feed.api_key", "")
	v.SetDefault("price_feed.requests_per_minute", 60)
	v.SetDefault("price_feed.timeout", 2*time.Minute)
	v.SetDefault("price_feed.retry_max", 4)
	v.SetDefault("price_feed.history_days", 365)

	v.SetDefault("sync.enabled", true)
	v.SetDefault("sync.interval", 15*time.Minute)
	v.SetDefault("sync.batch_size", 100)
	v.SetDefault("sync.stale_after", 24*time.Hour)
	v.SetDefault("sync.match_max_distance", 2)

	v.SetDefault("snapshot.enabled", true)
	v.SetDefault("snapshot.schedule", "0 23 * * *")

	v.SetDefault("pricing.grading_fee_usd", pricing.DefaultGradingFeeUSD)
	v.SetDefault("pricing.variance_threshold_percent", pricing.DefaultVarianceThresholdPercent)
	v.SetDefault("pricing.price_threshold_usd", pricing.DefaultPriceThresholdUSD)
	v.SetDefault("pricing.cache_size", 2048)
}

// Load reads configuration from file and env. Env var overrides use prefix TCGP_,
// e.g. TCGP_DATABASE_DSN or TCGP_PRICE_FEED_API_KEY.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)

	cfgPath := os.Getenv("TCGP_CONFIG")
	if cfgPath != "" {
		v.SetConfigFile(cfgPath)
	} else {
		v.SetConfigName("tcg-portfolio")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tcg-portfolio")
	}

	v.SetEnvPrefix("TCGP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// a missing file is only fine when none was asked for explicitly
		if cfgPath != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate rejects settings the services cannot run with
func (c Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn must be set")
	}
	if c.Sync.BatchSize <= 0 {
		return fmt.Errorf("sync.batch_size must be positive, got %d", c.Sync.BatchSize)
	}
	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync.interval must be positive, got %s", c.Sync.Interval)
	}
	if c.PriceFeed.RequestsPerMinute <= 0 {
		return fmt.Errorf("price_feed.requests_per_minute must be positive, got %d", c.PriceFeed.RequestsPerMinute)
	}
	if c.Pricing.GradingFeeUSD < 0 {
		return fmt.Errorf("pricing.grading_fee_usd must not be negative, got %v", c.Pricing.GradingFeeUSD)
	}
	return nil
}
