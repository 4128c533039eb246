// Package config exposes strongly typed application configuration structs loaded from YAML.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// App captures process-wide runtime settings such as name, environment, metrics, and logging levels.
type App struct {
	Name        string `yaml:"name"`
	Env         string `yaml:"env"`
	MetricsAddr string `yaml:"metrics_addr"`
	LogLevel    string `yaml:"log_level"`
}

// Exchange describes venue connectivity. Credentials are referenced by
// environment variable name only; secret values never live in YAML.
type Exchange struct {
	Name         string `yaml:"name"`
	RESTBaseURL  string `yaml:"rest_base_url"`
	WSBaseURL    string `yaml:"ws_base_url"`
	APIKeyEnv    string `yaml:"api_key_env"`
	APISecretEnv string `yaml:"api_secret_env"`
	RecvWindowMs int64  `yaml:"recv_window_ms"`
}

// Engine tunes the signal cycle loop and the built-in momentum recommender.
type Engine struct {
	Enabled              bool   `yaml:"enabled"`
	CycleIntervalMs      int    `yaml:"cycle_interval_ms"`
	MaxParallel          int    `yaml:"max_parallel"`
	MaxDataAgeMs         int    `yaml:"max_data_age_ms"`
	MomentumThresholdPct string `yaml:"momentum_threshold_pct"`
	MomentumWindowSecs   int    `yaml:"momentum_window_secs"`
}

// Risk encodes guard-rails for order sizing.
type Risk struct {
	MaxNotionalPerOrder string `yaml:"max_notional_per_order"`
}

// Instrument is the per-symbol alert and order configuration.
type Instrument struct {
	Symbol         string `yaml:"symbol"`
	Enabled        bool   `yaml:"enabled"`
	Quantity       string `yaml:"quantity"`
	TakeProfitPct  string `yaml:"take_profit_pct"`
	StopLossPct    string `yaml:"stop_loss_pct"`
	Strategy       string `yaml:"strategy"`
	PlaceProtected bool   `yaml:"place_protected_orders"`
}

// Config collects every configuration leaf for easy marshaling from YAML.
type Config struct {
	App         App          `yaml:"app"`
	Exchange    Exchange     `yaml:"exchange"`
	Engine      Engine       `yaml:"engine"`
	Risk        Risk         `yaml:"risk"`
	Instruments []Instrument `yaml:"instruments"`
}

// Load reads a YAML file from disk and hydrates a Config struct.
func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var config Config
	if err := yaml.NewDecoder(file).Decode(&config); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	return &config, nil
}

// Save persists a Config struct to disk as YAML.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
