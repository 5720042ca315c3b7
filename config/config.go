package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Etsy     EtsyConfig     `mapstructure:"etsy"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string   `mapstructure:"host"`
	Port           string   `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	RateLimitRPS   float64  `mapstructure:"rate_limit_rps"`
}

// DatabaseConfig holds the Postgres connection settings
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// ScraperConfig holds per-tier timeouts and the fallback services
type ScraperConfig struct {
	LightTimeout   time.Duration `mapstructure:"light_timeout"`
	ProxyTimeout   time.Duration `mapstructure:"proxy_timeout"`
	BrowserTimeout time.Duration `mapstructure:"browser_timeout"`
	ProxyBaseURL   string        `mapstructure:"proxy_base_url"`
	ProxyEnabled   bool          `mapstructure:"proxy_enabled"`
	BrowserEnabled bool          `mapstructure:"browser_enabled"`
	BrowserBin     string        `mapstructure:"browser_bin"`
	CacheTTL       time.Duration `mapstructure:"cache_ttl"`
}

// EtsyConfig holds Etsy Open API configuration
type EtsyConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
	Enabled bool          `mapstructure:"enabled"`
}

// IsValid reports whether the partner API can be used
func (c EtsyConfig) IsValid() bool {
	return c.Enabled && c.APIKey != ""
}

// MonitorConfig drives the price check loop and notification cleanup
type MonitorConfig struct {
	Enabled         bool   `mapstructure:"enabled"`
	Schedule        string `mapstructure:"schedule"`
	CleanupSchedule string `mapstructure:"cleanup_schedule"`
	CronSecret      string `mapstructure:"cron_secret"`
	RetentionDays   int    `mapstructure:"retention_days"`
}

// LogConfig selects the logrus level and formatter
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from defaults, an optional config.yaml, and
// PRICEWATCH_* environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/pricewatch/")

	v.SetEnvPrefix("PRICEWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	bindLegacyEnv(v)

	// Config file is optional
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit_rps", 5.0)

	v.SetDefault("database.url", "")

	v.SetDefault("scraper.light_timeout", "15s")
	v.SetDefault("scraper.proxy_timeout", "30s")
	v.SetDefault("scraper.browser_timeout", "60s")
	v.SetDefault("scraper.proxy_base_url", "https://r.jina.ai")
	v.SetDefault("scraper.proxy_enabled", true)
	v.SetDefault("scraper.browser_enabled", true)
	v.SetDefault("scraper.browser_bin", "")
	v.SetDefault("scraper.cache_ttl", "10m")

	v.SetDefault("etsy.api_key", "")
	v.SetDefault("etsy.base_url", "https://openapi.etsy.com")
	v.SetDefault("etsy.timeout", "10s")
	v.SetDefault("etsy.enabled", true)

	v.SetDefault("monitor.enabled", true)
	v.SetDefault("monitor.schedule", "0 */15 * * * *")
	v.SetDefault("monitor.cleanup_schedule", "0 0 3 * * *")
	v.SetDefault("monitor.cron_secret", "")
	v.SetDefault("monitor.retention_days", 30)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// bindLegacyEnv accepts the unprefixed variable names used by existing
// deployments
func bindLegacyEnv(v *viper.Viper) {
	_ = v.BindEnv("server.port", "PRICEWATCH_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.url", "PRICEWATCH_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("etsy.api_key", "PRICEWATCH_ETSY_API_KEY", "ETSY_API_KEY")
	_ = v.BindEnv("monitor.cron_secret", "PRICEWATCH_MONITOR_CRON_SECRET", "CRON_SECRET")
}

// validate validates the configuration
func validate(config *Config) error {
	timeouts := map[string]time.Duration{
		"scraper.light_timeout":   config.Scraper.LightTimeout,
		"scraper.proxy_timeout":   config.Scraper.ProxyTimeout,
		"scraper.browser_timeout": config.Scraper.BrowserTimeout,
		"etsy.timeout":            config.Etsy.Timeout,
	}
	for name, d := range timeouts {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got: %s", name, d)
		}
	}

	if config.Scraper.CacheTTL < 0 {
		return fmt.Errorf("scraper.cache_ttl must not be negative, got: %s", config.Scraper.CacheTTL)
	}

	if config.Server.RateLimitRPS <= 0 {
		return fmt.Errorf("server.rate_limit_rps must be positive, got: %v", config.Server.RateLimitRPS)
	}

	if config.Monitor.RetentionDays <= 0 {
		return fmt.Errorf("monitor.retention_days must be positive, got: %d", config.Monitor.RetentionDays)
	}

	switch config.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log format must be 'text' or 'json', got: %s", config.Log.Format)
	}

	return nil
}

// ValidateService checks the settings only the long-running service needs
func (c *Config) ValidateService() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database URL is required (set PRICEWATCH_DATABASE_URL or DATABASE_URL)")
	}
	return nil
}

// Addr returns the listen address of the HTTP server
func (c ServerConfig) Addr() string {
	return c.Host + ":" + c.Port
}
