// Package config loads the autowifi configuration file. Values are read
// once per invocation and treated as immutable for the whole cycle.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full daemon configuration.
type Config struct {
	// Interface is the wireless device the controller manages.
	Interface string `yaml:"interface"`

	// AP profile parameters.
	APProfile  string `yaml:"ap_profile"`
	APSSID     string `yaml:"ap_ssid"`
	APPassword string `yaml:"ap_password"`
	APCIDR     string `yaml:"ap_cidr"`
	APGateway  string `yaml:"ap_gateway"`

	// AutoEnableWifi turns the radio on at the start of a cycle when it
	// is found disabled.
	AutoEnableWifi bool `yaml:"auto_enable_wifi"`

	// Settle intervals after asynchronous driver actions, in seconds.
	ScanSettleS  int `yaml:"scan_settle_s"`
	RadioSettleS int `yaml:"radio_settle_s"`

	// ConnectTimeoutS bounds every "connection up" call, in seconds.
	// Expiry counts as an activation failure.
	ConnectTimeoutS int `yaml:"connect_timeout_s"`

	LogLevel string `yaml:"log_level"`

	History HistoryConfig `yaml:"history"`
	Metrics MetricsConfig `yaml:"metrics"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
}

// HistoryConfig controls the bbolt cycle-history store.
type HistoryConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Path           string `yaml:"path"`
	RetentionHours int    `yaml:"retention_hours"`
}

// MetricsConfig controls the Prometheus listener (daemon mode only).
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// MQTTConfig controls the optional cycle-outcome publisher.
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         int    `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// Default returns the configuration defaults. Interface, AP profile name
// and AP SSID have no defaults; Validate rejects a config without them.
func Default() *Config {
	return &Config{
		APCIDR:          "10.0.0.1/24",
		APGateway:       "10.0.0.1",
		AutoEnableWifi:  true,
		ScanSettleS:     2,
		RadioSettleS:    3,
		ConnectTimeoutS: 45,
		LogLevel:        "info",
		History: HistoryConfig{
			Path:           "/var/lib/autowifi/history.db",
			RetentionHours: 168,
		},
		Metrics: MetricsConfig{
			Port: 9101,
		},
		MQTT: MQTTConfig{
			Broker:      "localhost",
			Port:        1883,
			ClientID:    "autowifid",
			TopicPrefix: "autowifi",
			QoS:         1,
		},
	}
}

// ScanSettle is the wait between a scan request and reading its results.
func (c *Config) ScanSettle() time.Duration {
	return time.Duration(c.ScanSettleS) * time.Second
}

// RadioSettle is the wait after enabling the WiFi radio.
func (c *Config) RadioSettle() time.Duration {
	return time.Duration(c.RadioSettleS) * time.Second
}

// ConnectTimeout is the bound on every connection activation.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.ConnectTimeoutS) * time.Second
}

// Load reads the YAML config at path on top of the defaults and validates
// the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the required settings. It runs before any network
// mutation; a failure here aborts the invocation.
func (c *Config) Validate() error {
	if c.Interface == "" {
		return fmt.Errorf("interface is required")
	}
	if c.APProfile == "" {
		return fmt.Errorf("ap_profile is required")
	}
	if c.APSSID == "" {
		return fmt.Errorf("ap_ssid is required")
	}
	if c.APPassword != "" && (len(c.APPassword) < 8 || len(c.APPassword) > 63) {
		return fmt.Errorf("ap_password must be 8-63 characters, got %d", len(c.APPassword))
	}
	if c.ScanSettleS < 0 || c.RadioSettleS < 0 {
		return fmt.Errorf("settle intervals must not be negative")
	}
	if c.ConnectTimeoutS <= 0 {
		return fmt.Errorf("connect_timeout_s must be positive")
	}
	if c.History.Enabled && c.History.RetentionHours < 1 {
		return fmt.Errorf("history.retention_hours must be at least 1")
	}
	if c.Metrics.Enabled && (c.Metrics.Port < 1 || c.Metrics.Port > 65535) {
		return fmt.Errorf("metrics.port out of range: %d", c.Metrics.Port)
	}
	return nil
}
