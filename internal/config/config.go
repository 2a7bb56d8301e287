package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/gridwatch/dayahead/internal/pricing"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`
	Prices struct {
		Interval          string `yaml:"interval"`
		Currency          string `yaml:"currency"`
		PreferredProvider string `yaml:"preferred_provider"`
		BiddingZone       string `yaml:"bidding_zone"`
		KeepDays          int    `yaml:"keep_days"`
	} `yaml:"prices"`
	Tariff struct {
		GridFee   float64 `yaml:"grid_fee"`
		Surcharge float64 `yaml:"surcharge"`
		VATRate   float64 `yaml:"vat_rate"`
	} `yaml:"tariff"`
	MQTT struct {
		BrokerURL   string `yaml:"broker_url"`
		ClientID    string `yaml:"client_id"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Schedule struct {
		FetchCron         string `yaml:"fetch_cron"`
		PublishCron       string `yaml:"publish_cron"`
		SweepCron         string `yaml:"sweep_cron"`
		TomorrowAfterHour int    `yaml:"tomorrow_after_hour"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error; env and defaults
// still apply.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("PRICE_INTERVAL"); v != "" {
		cfg.Prices.Interval = v
	}
	if v := os.Getenv("DISPLAY_CURRENCY"); v != "" {
		cfg.Prices.Currency = v
	}
	if v := os.Getenv("PREFERRED_PROVIDER"); v != "" {
		cfg.Prices.PreferredProvider = v
	}
	if v := os.Getenv("MQTT_BROKER_URL"); v != "" {
		cfg.MQTT.BrokerURL = v
	}
	if v := os.Getenv("MQTT_TOPIC_PREFIX"); v != "" {
		cfg.MQTT.TopicPrefix = v
	}
	if v := os.Getenv("KEEP_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Prices.KeepDays = n
		}
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/dayahead.db"
	}
	if cfg.Prices.Interval == "" {
		cfg.Prices.Interval = "1h"
	}
	if cfg.Prices.Currency == "" {
		cfg.Prices.Currency = "EUR"
	}
	if cfg.Prices.PreferredProvider == "" {
		cfg.Prices.PreferredProvider = "awattar"
	}
	if cfg.Prices.BiddingZone == "" {
		cfg.Prices.BiddingZone = "DE-LU"
	}
	if cfg.Prices.KeepDays == 0 {
		cfg.Prices.KeepDays = 10
	}
	if cfg.MQTT.ClientID == "" {
		cfg.MQTT.ClientID = "dayahead"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "dayahead/prices"
	}
	if cfg.Schedule.FetchCron == "" {
		cfg.Schedule.FetchCron = "0 5 * * * *"
	}
	if cfg.Schedule.PublishCron == "" {
		cfg.Schedule.PublishCron = "30 0 0 * * *"
	}
	if cfg.Schedule.SweepCron == "" {
		cfg.Schedule.SweepCron = "0 30 3 * * *"
	}
	if cfg.Schedule.TomorrowAfterHour == 0 {
		cfg.Schedule.TomorrowAfterHour = 13
	}

	return cfg, nil
}

// Validate checks field ranges.
func (c *Config) Validate() error {
	if _, err := pricing.ParseInterval(c.Prices.Interval); err != nil {
		return fmt.Errorf("prices.interval: %w", err)
	}
	if c.Prices.KeepDays < 1 {
		return fmt.Errorf("prices.keep_days must be positive")
	}
	if c.Tariff.VATRate < 0 || c.Tariff.VATRate >= 1 {
		return fmt.Errorf("tariff.vat_rate must be in [0, 1)")
	}
	if c.Schedule.TomorrowAfterHour < 0 || c.Schedule.TomorrowAfterHour > 23 {
		return fmt.Errorf("schedule.tomorrow_after_hour must be in [0, 23]")
	}
	return nil
}

// Interval returns the parsed target interval. Call Validate first.
func (c *Config) Interval() pricing.Interval {
	iv, _ := pricing.ParseInterval(c.Prices.Interval)
	return iv
}
