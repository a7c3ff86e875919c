package config

import (
	"strings"

	"github.com/spf13/viper"

	"vigilant-snatch-go/internal/models"
)

// Config holds all configuration for the application.
type Config struct {
	Logger        Logger               `mapstructure:"logger"`
	Database      Database             `mapstructure:"database"`
	Kraken        Kraken               `mapstructure:"kraken"`
	CryptoCompare CryptoCompare        `mapstructure:"cryptocompare"`
	Telegram      Telegram             `mapstructure:"telegram"`
	Watch         Watch                `mapstructure:"watch"`
	Triggers      []models.TriggerSpec `mapstructure:"triggers"`
}

// Logger holds the configuration for the logger.
type Logger struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Database holds the configuration for the price store.
type Database struct {
	DSN string `mapstructure:"dsn"`
}

// Withdrawal configures automated withdrawal for a single coin. It is passed
// opaquely to the marketplace adapter, which decides per order whether the
// current fee is acceptable.
type Withdrawal struct {
	Target          string  `mapstructure:"target"`
	FeeLimitPercent float64 `mapstructure:"fee_limit_percent"`
}

// Kraken holds the configuration for the Kraken marketplace adapter.
type Kraken struct {
	ApiKey                  string                `mapstructure:"apiKey"`
	SecretKey               string                `mapstructure:"secretKey"`
	PreferFeeInBaseCurrency bool                  `mapstructure:"prefer_fee_in_base_currency"`
	RateLimit               float64               `mapstructure:"rate_limit"`
	RateLimitBurst          int                   `mapstructure:"rate_limit_burst"`
	Withdrawal              map[string]Withdrawal `mapstructure:"withdrawal"`
}

// CryptoCompare holds the configuration for the historical price API.
type CryptoCompare struct {
	ApiKey         string  `mapstructure:"apiKey"`
	RateLimit      float64 `mapstructure:"rate_limit"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// Telegram holds the configuration for the notification channel.
// An empty token disables notifications entirely.
type Telegram struct {
	Token  string `mapstructure:"token"`
	ChatID string `mapstructure:"chat_id"`
	Level  string `mapstructure:"level"`
}

// Watch holds the configuration for the watch loop and the caching layer.
type Watch struct {
	PollingIntervalSeconds int `mapstructure:"polling_interval_seconds"`
	FreshnessMinutes       int `mapstructure:"freshness_minutes"`
	ToleranceMinutes       int `mapstructure:"tolerance_minutes"`
	ApiPort                int `mapstructure:"api_port"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config") // name of config file (without extension)
	viper.SetConfigType("yml")    // or yaml, json

	// Allow environment variables to override config file
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("kraken.rate_limit", 1) // requests per second
	viper.SetDefault("kraken.rate_limit_burst", 3)
	viper.SetDefault("cryptocompare.rate_limit", 10)
	viper.SetDefault("cryptocompare.rate_limit_burst", 5)
	viper.SetDefault("watch.polling_interval_seconds", 60)
	viper.SetDefault("watch.freshness_minutes", 5)
	viper.SetDefault("watch.tolerance_minutes", 5)
	viper.SetDefault("watch.api_port", 8080)
	viper.SetDefault("telegram.level", "warning")
	viper.SetDefault("database.dsn", "vigilant-snatch.sqlite")

	err = viper.ReadInConfig()
	if err != nil {
		return
	}

	err = viper.Unmarshal(&config)
	return
}
