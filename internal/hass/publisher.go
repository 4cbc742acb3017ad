package hass

import (
	"fmt"
	"strconv"

	"github.com/netdash/netdash-core/internal/infrastructure/config"
	"github.com/netdash/netdash-core/internal/infrastructure/mqtt"
	"github.com/netdash/netdash-core/internal/registry"
)

// Broker is the slice of the MQTT client the publisher uses.
type Broker interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishRetained(topic string, payload []byte) error
	IsConnected() bool
}

// Logger defines the logging interface used by the Publisher.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Publisher mirrors hub state onto MQTT topics that Home Assistant
// consumes. It implements the exposure engine's status sink, so every
// applied level and device status write flows out as a retained
// message.
//
// Publishing is best-effort: a disconnected broker or failed publish is
// logged and dropped, never surfaced to the caller. The hub's own state
// is authoritative; MQTT is a mirror.
type Publisher struct {
	broker Broker
	topics mqtt.Topics
	cfg    config.MQTTConfig
	logger Logger
}

// New creates a publisher over an established broker connection.
func New(broker Broker, cfg config.MQTTConfig, logger Logger) *Publisher {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Publisher{
		broker: broker,
		topics: mqtt.Topics{Prefix: cfg.Topics.Prefix},
		cfg:    cfg,
		logger: logger,
	}
}

// ExposureChanged publishes the applied exposure level retained.
func (p *Publisher) ExposureChanged(level int) {
	topic := p.topics.ExposureLevel()
	if err := p.broker.PublishRetained(topic, []byte(strconv.Itoa(level))); err != nil {
		p.logger.Warn("exposure publish failed", "topic", topic, "error", err)
		return
	}
	p.logger.Debug("exposure published", "level", level)
}

// DeviceStatusChanged publishes a device's status retained on its own
// topic.
func (p *Publisher) DeviceStatusChanged(mac string, status registry.Status) {
	topic := p.topics.DeviceStatus(mac)
	if err := p.broker.PublishRetained(topic, []byte(status)); err != nil {
		p.logger.Warn("device status publish failed", "topic", topic, "error", err)
	}
}

// PlugToggle publishes a toggle command to the configured smart plug
// command topic. Unlike the state topics the command is not retained.
func (p *Publisher) PlugToggle() error {
	topic := p.cfg.Topics.PlugCommand
	if topic == "" {
		return fmt.Errorf("hass: no plug command topic configured")
	}
	if err := p.broker.Publish(topic, []byte("TOGGLE"), byte(p.cfg.QoS), false); err != nil {
		return fmt.Errorf("hass: plug toggle: %w", err)
	}
	p.logger.Debug("plug toggle published", "topic", topic)
	return nil
}
