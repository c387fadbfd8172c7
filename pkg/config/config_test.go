package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
interface: wlan0
ap_profile: autowifi-ap
ap_ssid: autowifi-setup
ap_password: changeme123
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "wlan0", cfg.Interface)
	assert.Equal(t, "10.0.0.1/24", cfg.APCIDR)
	assert.Equal(t, "10.0.0.1", cfg.APGateway)
	assert.True(t, cfg.AutoEnableWifi)
	assert.Equal(t, 2*time.Second, cfg.ScanSettle())
	assert.Equal(t, 45*time.Second, cfg.ConnectTimeout())
	assert.False(t, cfg.MQTT.Enabled)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
interface: wlan1
ap_profile: field-ap
ap_ssid: field-setup
ap_password: fieldsecret
ap_cidr: 192.168.50.1/24
ap_gateway: 192.168.50.1
auto_enable_wifi: false
scan_settle_s: 5
log_level: debug
history:
  enabled: true
  retention_hours: 48
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.50.1/24", cfg.APCIDR)
	assert.False(t, cfg.AutoEnableWifi)
	assert.Equal(t, 5*time.Second, cfg.ScanSettle())
	assert.True(t, cfg.History.Enabled)
	assert.Equal(t, 48, cfg.History.RetentionHours)
}

func TestValidateRequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing interface", func(c *Config) { c.Interface = "" }},
		{"missing ap profile", func(c *Config) { c.APProfile = "" }},
		{"missing ap ssid", func(c *Config) { c.APSSID = "" }},
		{"short ap password", func(c *Config) { c.APPassword = "short" }},
		{"zero connect timeout", func(c *Config) { c.ConnectTimeoutS = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Interface = "wlan0"
			cfg.APProfile = "ap"
			cfg.APSSID = "setup"
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateAllowsOpenAP(t *testing.T) {
	cfg := Default()
	cfg.Interface = "wlan0"
	cfg.APProfile = "ap"
	cfg.APSSID = "setup"
	cfg.APPassword = ""
	assert.NoError(t, cfg.Validate())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
