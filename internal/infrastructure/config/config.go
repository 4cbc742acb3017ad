package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for NetDash Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Logging   LoggingConfig   `yaml:"logging"`
	Registry  RegistryConfig  `yaml:"registry"`
	WiFi      WiFiConfig      `yaml:"wifi"`
	WAN       WANConfig       `yaml:"wan"`
	GPIO      GPIOConfig      `yaml:"gpio"`
	Exposure  ExposureConfig  `yaml:"exposure"`
	Inputs    InputsConfig    `yaml:"inputs"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Encoders  EncodersConfig  `yaml:"encoders"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
// An empty origin list allows all origins (dev mode, UI served elsewhere).
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
	SendBuffer     int `yaml:"send_buffer"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// RegistryConfig contains the device metadata store settings.
type RegistryConfig struct {
	// Path is the location of the MAC->metadata JSON file.
	Path string `yaml:"path"`
}

// WiFiConfig contains hotspot client enumeration settings.
type WiFiConfig struct {
	// Interface is the wireless interface running the hotspot.
	Interface string `yaml:"interface"`

	// CommandTimeout bounds each `iw` invocation, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// LeaseFiles are candidate dnsmasq lease file paths, tried in order.
	// Empty means the built-in NetworkManager/dnsmasq defaults.
	LeaseFiles []string `yaml:"lease_files"`
}

// WANConfig contains firewall-based WAN access control settings.
type WANConfig struct {
	// Tool is the firewall binary used to block/unblock MACs.
	Tool string `yaml:"tool"`

	// Chain is the chain rules are inserted into.
	Chain string `yaml:"chain"`

	// CommandTimeout bounds each firewall invocation, in seconds.
	CommandTimeout int `yaml:"command_timeout"`

	// Enabled disables enforcement entirely when false (off-device dev).
	Enabled bool `yaml:"enabled"`
}

// GPIOConfig contains pin assignments for the physical outputs.
type GPIOConfig struct {
	// LEDPins are the five exposure bar LEDs, lowest level first (BCM).
	LEDPins []int `yaml:"led_pins"`

	Motor MotorConfig `yaml:"motor"`
}

// MotorConfig contains the L298N dial motor settings.
type MotorConfig struct {
	PinIn1 int `yaml:"pin_in1"`
	PinIn2 int `yaml:"pin_in2"`

	// StepMS is how long the motor is driven per exposure level, in milliseconds.
	StepMS int `yaml:"step_ms"`

	// PauseMS is the settle time between steps, in milliseconds.
	PauseMS int `yaml:"pause_ms"`

	// InvertDirection flips up/down if the dial is wired backwards.
	InvertDirection bool `yaml:"invert_direction"`
}

// ExposureConfig contains exposure engine tuning.
type ExposureConfig struct {
	// GuardMarginMS is added per motor step when computing the rotate
	// guard window, in milliseconds.
	GuardMarginMS int `yaml:"guard_margin_ms"`

	// PollInterval re-derives the level from the live fleet every N
	// seconds. Zero disables the poller.
	PollInterval int `yaml:"poll_interval"`
}

// InputsConfig maps input device IDs to named roles.
// Roles are resolved once at startup; events from unmapped devices are
// broadcast verbatim.
type InputsConfig struct {
	// Roles maps a device ID (e.g. "encoder_2") to an input role.
	// Recognised roles: "exposure-dial".
	Roles map[string]string `yaml:"roles"`
}

// MQTTConfig contains optional MQTT broker settings for the Home Assistant
// publisher and smart plug commands.
type MQTTConfig struct {
	Enabled   bool          `yaml:"enabled"`
	Broker    MQTTBroker    `yaml:"broker"`
	Auth      MQTTAuth      `yaml:"auth"`
	QoS       int           `yaml:"qos"`
	Topics    MQTTTopics    `yaml:"topics"`
	Reconnect MQTTReconnect `yaml:"reconnect"`
}

// MQTTBroker contains broker connection details.
type MQTTBroker struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuth contains broker credentials.
type MQTTAuth struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTTopics contains the topics NetDash publishes on.
type MQTTTopics struct {
	// Prefix is prepended to all status topics. Default "netdash".
	Prefix string `yaml:"prefix"`

	// PlugCommand is the smart plug command topic.
	PlugCommand string `yaml:"plug_command"`
}

// MQTTReconnect contains reconnection backoff settings in seconds.
type MQTTReconnect struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// EncodersConfig holds the rotary encoder watcher definitions, shared
// between the hub config and the encoderd daemon.
type EncodersConfig struct {
	// HubURL is where encoderd posts events (encoderd only).
	HubURL string `yaml:"hub_url"`

	// Devices lists one entry per physical encoder.
	Devices []EncoderConfig `yaml:"devices"`
}

// EncoderConfig describes one rotary encoder (BCM pins).
type EncoderConfig struct {
	DeviceID string `yaml:"device_id"`
	PinA     int    `yaml:"pin_a"`
	PinB     int    `yaml:"pin_b"`
	PinSW    int    `yaml:"pin_sw"`
}

// Load reads configuration from the given YAML file path.
//
// Order of precedence (lowest to highest):
//  1. Built-in defaults
//  2. YAML file values
//  3. NETDASH_* environment variables
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Pin numbers follow the reference hardware build (BCM numbering).
func defaultConfig() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 4096,
			PingInterval:   30,
			PongTimeout:    60,
			SendBuffer:     64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Registry: RegistryConfig{
			Path: "./data/devices.json",
		},
		WiFi: WiFiConfig{
			Interface:      "wlan0",
			CommandTimeout: 5,
		},
		WAN: WANConfig{
			Tool:           "iptables",
			Chain:          "FORWARD",
			CommandTimeout: 5,
			Enabled:        true,
		},
		GPIO: GPIOConfig{
			LEDPins: []int{5, 6, 13, 19, 26},
			Motor: MotorConfig{
				PinIn1:  25,
				PinIn2:  8,
				StepMS:  200,
				PauseMS: 50,
			},
		},
		Exposure: ExposureConfig{
			GuardMarginMS: 150,
			PollInterval:  10,
		},
		Inputs: InputsConfig{
			Roles: map[string]string{
				"encoder_2": "exposure-dial",
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBroker{
				Host:     "localhost",
				Port:     1883,
				ClientID: "netdash-core",
			},
			QoS: 1,
			Topics: MQTTTopics{
				Prefix:      "netdash",
				PlugCommand: "netdash/plug/command",
			},
			Reconnect: MQTTReconnect{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Encoders: EncodersConfig{
			HubURL: "http://localhost:8000",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: NETDASH_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("NETDASH_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("NETDASH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
	if v := os.Getenv("NETDASH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("NETDASH_REGISTRY_PATH"); v != "" {
		cfg.Registry.Path = v
	}
	if v := os.Getenv("NETDASH_WIFI_INTERFACE"); v != "" {
		cfg.WiFi.Interface = v
	}
	if v := os.Getenv("NETDASH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("NETDASH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("NETDASH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("NETDASH_HUB_URL"); v != "" {
		cfg.Encoders.HubURL = v
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Registry.Path == "" {
		errs = append(errs, "registry.path is required")
	}

	if c.WiFi.Interface == "" {
		errs = append(errs, "wifi.interface is required")
	}

	if len(c.GPIO.LEDPins) != 5 {
		errs = append(errs, "gpio.led_pins must list exactly 5 pins")
	}

	if c.GPIO.Motor.StepMS <= 0 {
		errs = append(errs, "gpio.motor.step_ms must be positive")
	}

	if c.Exposure.GuardMarginMS < 0 {
		errs = append(errs, "exposure.guard_margin_ms must not be negative")
	}

	for device, role := range c.Inputs.Roles {
		switch role {
		case "exposure-dial":
		default:
			errs = append(errs, fmt.Sprintf("inputs.roles[%s]: unknown role %q", device, role))
		}
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// MotorStep returns the per-level motor drive duration.
func (c *Config) MotorStep() time.Duration {
	return time.Duration(c.GPIO.Motor.StepMS) * time.Millisecond
}

// MotorPause returns the settle time between motor steps.
func (c *Config) MotorPause() time.Duration {
	return time.Duration(c.GPIO.Motor.PauseMS) * time.Millisecond
}

// GuardMargin returns the per-step guard margin duration.
func (c *Config) GuardMargin() time.Duration {
	return time.Duration(c.Exposure.GuardMarginMS) * time.Millisecond
}
