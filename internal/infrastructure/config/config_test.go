package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, "api:\n  port: 8000\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WiFi.Interface != "wlan0" {
		t.Errorf("wifi.interface = %q, want wlan0", cfg.WiFi.Interface)
	}
	if cfg.Registry.Path != "./data/devices.json" {
		t.Errorf("registry.path = %q", cfg.Registry.Path)
	}
	if got := len(cfg.GPIO.LEDPins); got != 5 {
		t.Errorf("led pins = %d, want 5", got)
	}
	if cfg.Inputs.Roles["encoder_2"] != "exposure-dial" {
		t.Errorf("default input role missing: %v", cfg.Inputs.Roles)
	}
	if cfg.MotorStep() != 200*time.Millisecond {
		t.Errorf("MotorStep = %v, want 200ms", cfg.MotorStep())
	}
	if cfg.GuardMargin() != 150*time.Millisecond {
		t.Errorf("GuardMargin = %v, want 150ms", cfg.GuardMargin())
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
wifi:
  interface: wlan1
gpio:
  motor:
    step_ms: 250
exposure:
  guard_margin_ms: 100
  poll_interval: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WiFi.Interface != "wlan1" {
		t.Errorf("wifi.interface = %q, want wlan1", cfg.WiFi.Interface)
	}
	if cfg.MotorStep() != 250*time.Millisecond {
		t.Errorf("MotorStep = %v, want 250ms", cfg.MotorStep())
	}
	if cfg.Exposure.PollInterval != 0 {
		t.Errorf("poll_interval = %d, want 0", cfg.Exposure.PollInterval)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("NETDASH_WIFI_INTERFACE", "ap0")
	t.Setenv("NETDASH_API_PORT", "9000")

	path := writeConfig(t, "wifi:\n  interface: wlan1\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.WiFi.Interface != "ap0" {
		t.Errorf("env override lost: wifi.interface = %q", cfg.WiFi.Interface)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("env override lost: api.port = %d", cfg.API.Port)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "bad port",
			mutate: func(c *Config) { c.API.Port = 0 },
			want:   "api.port",
		},
		{
			name:   "missing registry path",
			mutate: func(c *Config) { c.Registry.Path = "" },
			want:   "registry.path",
		},
		{
			name:   "wrong led pin count",
			mutate: func(c *Config) { c.GPIO.LEDPins = []int{5, 6} },
			want:   "led_pins",
		},
		{
			name:   "zero motor step",
			mutate: func(c *Config) { c.GPIO.Motor.StepMS = 0 },
			want:   "step_ms",
		},
		{
			name:   "unknown input role",
			mutate: func(c *Config) { c.Inputs.Roles = map[string]string{"encoder_1": "volume"} },
			want:   "unknown role",
		},
		{
			name: "mqtt enabled without host",
			mutate: func(c *Config) {
				c.MQTT.Enabled = true
				c.MQTT.Broker.Host = ""
			},
			want: "mqtt.broker.host",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate: expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
