// Package config loads the bot configuration: strategy parameters from
// YAML, credentials from the environment.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Strategy holds the tunable trading parameters.
type Strategy struct {
	RiskPerTrade     float64 `yaml:"risk_per_trade"`
	MaxPositions     int     `yaml:"max_positions"`
	DataDays         int     `yaml:"data_days"`
	SMAWindow        int     `yaml:"sma_window"`
	VolumeWindow     int     `yaml:"volume_window"`
	VolumeRatio      float64 `yaml:"volume_ratio"`
	TrendSMAWindow   int     `yaml:"trend_sma_window"`
	RefreshHour      int     `yaml:"watchlist_refresh_hour"`
	CycleSeconds     int     `yaml:"cycle_seconds"`
	IdleCycleSeconds int     `yaml:"idle_cycle_seconds"`
}

// Paths holds filesystem locations the bot writes to.
type Paths struct {
	TradeLog  string `yaml:"trade_log"`
	Heartbeat string `yaml:"heartbeat"`
}

// Config is the full application configuration.
type Config struct {
	Strategy Strategy `yaml:"strategy"`
	Paths    Paths    `yaml:"paths"`
}

// Default returns the configuration matching the stock strategy.
func Default() Config {
	return Config{
		Strategy: Strategy{
			RiskPerTrade:     0.01,
			MaxPositions:     25,
			DataDays:         10,
			SMAWindow:        20,
			VolumeWindow:     20,
			VolumeRatio:      1.5,
			TrendSMAWindow:   50,
			RefreshHour:      8,
			CycleSeconds:     300,
			IdleCycleSeconds: 300,
		},
		Paths: Paths{
			TradeLog:  "trade_log.csv",
			Heartbeat: "heartbeat.txt",
		},
	}
}

// Load reads a YAML file over the defaults. A missing file returns the
// defaults unchanged; a malformed file is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// CycleInterval is the pause between cycles while the market is open.
func (s Strategy) CycleInterval() time.Duration {
	return time.Duration(s.CycleSeconds) * time.Second
}

// IdleInterval is the pause between cycles while the market is closed.
func (s Strategy) IdleInterval() time.Duration {
	return time.Duration(s.IdleCycleSeconds) * time.Second
}

// Credentials are the broker API keys, fatal to miss at startup.
type Credentials struct {
	APIKey    string
	APISecret string
	BaseURL   string
}

// CredentialsFromEnv reads the Alpaca credentials. The base URL
// defaults to the paper endpoint.
func CredentialsFromEnv() (Credentials, error) {
	c := Credentials{
		APIKey:    os.Getenv("ALPACA_API_KEY"),
		APISecret: os.Getenv("ALPACA_SECRET_KEY"),
		BaseURL:   os.Getenv("ALPACA_BASE_URL"),
	}
	if c.APIKey == "" || c.APISecret == "" {
		return c, fmt.Errorf("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}
	if c.BaseURL == "" {
		c.BaseURL = "https://paper-api.alpaca.markets"
	}
	return c, nil
}
