package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"tripwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Logging   logging.Config  `mapstructure:"logging"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Feed      FeedConfig      `mapstructure:"feed"`
	Analysis  AnalysisConfig  `mapstructure:"analysis"`
	Window    WindowConfig    `mapstructure:"window"`
	Alerting  AlertingConfig  `mapstructure:"alerting"`
	Watch     WatchConfig     `mapstructure:"watch"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the alert archive.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// SchedulerConfig governs the watch loop cadence.
type SchedulerConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	AlignToBucket bool          `mapstructure:"align_to_bucket"`
	StartupDelay  time.Duration `mapstructure:"startup_delay"`
}

// FeedConfig covers the upstream trip data API.
type FeedConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	UserAgent      string        `mapstructure:"user_agent"`
}

// AnalysisConfig holds cost analyzer thresholds.
type AnalysisConfig struct {
	BudgetMaxPrice  float64 `mapstructure:"budget_max_price"`
	EconomyMaxPrice float64 `mapstructure:"economy_max_price"`
	GreatDealPct    float64 `mapstructure:"great_deal_pct"`
	ExceptionalPct  float64 `mapstructure:"exceptional_pct"`
	OutlierStdDevs  float64 `mapstructure:"outlier_std_devs"`
}

// WindowConfig sets date window defaults.
type WindowConfig struct {
	Days int `mapstructure:"days"`
	TopN int `mapstructure:"top_n"`
}

// AlertingConfig defines monitor defaults and notification routing.
type AlertingConfig struct {
	Enabled             bool           `mapstructure:"enabled"`
	PriceThresholdPct   float64        `mapstructure:"price_threshold_pct"`
	TempChangeThreshold float64        `mapstructure:"temp_change_threshold"`
	Telegram            TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig 描述 Telegram 告警参数。
type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
	APIBase  string `mapstructure:"api_base"`
}

// WatchConfig lists the targets the run loop monitors.
type WatchConfig struct {
	Prices       []PriceWatch  `mapstructure:"prices"`
	Flights      []FlightWatch `mapstructure:"flights"`
	Destinations []string      `mapstructure:"destinations"`
}

// PriceWatch registers one price monitor at startup.
type PriceWatch struct {
	ItemID       string  `mapstructure:"item_id"`
	ItemType     string  `mapstructure:"item_type"`
	ThresholdPct float64 `mapstructure:"threshold_pct"`
}

// FlightWatch registers one flight status monitor at startup.
type FlightWatch struct {
	FlightID     string `mapstructure:"flight_id"`
	FlightNumber string `mapstructure:"flight_number"`
	Airline      string `mapstructure:"airline"`
	Departure    string `mapstructure:"departure"`
	Arrival      string `mapstructure:"arrival"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TRIPWATCH")
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
	v.SetDefault("app.name", "tripwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("scheduler.interval", "15m")
	v.SetDefault("scheduler.align_to_bucket", true)
	v.SetDefault("scheduler.startup_delay", "0s")

	v.SetDefault("feed.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("feed.request_timeout", "10s")
	v.SetDefault("feed.user_agent", "tripwatch/1.0")

	v.SetDefault("analysis.budget_max_price", 300.0)
	v.SetDefault("analysis.economy_max_price", 600.0)
	v.SetDefault("analysis.great_deal_pct", 20.0)
	v.SetDefault("analysis.exceptional_pct", 30.0)
	v.SetDefault("analysis.outlier_std_devs", 2.0)

	v.SetDefault("window.days", 7)
	v.SetDefault("window.top_n", 3)

	v.SetDefault("alerting.enabled", true)
	v.SetDefault("alerting.price_threshold_pct", 5.0)
	v.SetDefault("alerting.temp_change_threshold", 10.0)
	v.SetDefault("alerting.telegram.enabled", false)
	v.SetDefault("alerting.telegram.api_base", "https://api.telegram.org")

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
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

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler.interval must be greater than zero")
	}
	if c.Analysis.BudgetMaxPrice <= 0 || c.Analysis.EconomyMaxPrice <= c.Analysis.BudgetMaxPrice {
		return fmt.Errorf("analysis tier thresholds must satisfy 0 < budget_max_price < economy_max_price")
	}
	if c.Analysis.GreatDealPct <= 0 || c.Analysis.ExceptionalPct <= c.Analysis.GreatDealPct {
		return fmt.Errorf("analysis deal thresholds must satisfy 0 < great_deal_pct < exceptional_pct")
	}
	if c.Window.Days <= 0 {
		return fmt.Errorf("window.days must be greater than zero")
	}
	if c.Window.TopN <= 0 {
		return fmt.Errorf("window.top_n must be greater than zero")
	}
	if c.Alerting.PriceThresholdPct < 0 {
		return fmt.Errorf("alerting.price_threshold_pct cannot be negative")
	}
	if c.Alerting.Telegram.Enabled {
		if c.Alerting.Telegram.BotToken == "" {
			return fmt.Errorf("alerting.telegram.bot_token 必须配置")
		}
		if c.Alerting.Telegram.ChatID == "" {
			return fmt.Errorf("alerting.telegram.chat_id 必须配置")
		}
	}
	for _, watch := range c.Watch.Prices {
		if watch.ItemID == "" {
			return fmt.Errorf("watch.prices entries require item_id")
		}
	}
	for _, watch := range c.Watch.Flights {
		if watch.FlightID == "" || watch.FlightNumber == "" {
			return fmt.Errorf("watch.flights entries require flight_id and flight_number")
		}
	}
	return nil
}
