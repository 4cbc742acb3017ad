// NetDash hub - home network exposure controller.
//
// The hub bridges the physical panel (rotary encoders, LED bar,
// motorized dial), the Wi-Fi hotspot's client fleet, WAN access
// control, and the connected dashboards into one process built around
// a single exposure level.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/netdash/netdash-core/internal/api"
	"github.com/netdash/netdash-core/internal/exposure"
	"github.com/netdash/netdash-core/internal/gpio"
	"github.com/netdash/netdash-core/internal/hass"
	"github.com/netdash/netdash-core/internal/infrastructure/config"
	"github.com/netdash/netdash-core/internal/infrastructure/logging"
	"github.com/netdash/netdash-core/internal/infrastructure/mqtt"
	"github.com/netdash/netdash-core/internal/netscan"
	"github.com/netdash/netdash-core/internal/registry"
	"github.com/netdash/netdash-core/internal/wan"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0"
var (
	version = "dev"
	commit  = "unknown"
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability and consistent exit codes.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting NetDash hub", "version", version, "commit", commit)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath)

	// Device registry: MAC -> category/sensitivity/status, persisted as
	// an atomic JSON file.
	store := registry.Open(cfg.Registry.Path)
	store.SetLogger(log)
	log.Info("device registry opened", "path", cfg.Registry.Path, "devices", store.Count())

	// Live client enumeration from the hotspot interface.
	scanner := netscan.New(cfg.WiFi.Interface,
		netscan.WithLogger(log),
		netscan.WithTimeout(time.Duration(cfg.WiFi.CommandTimeout)*time.Second),
		netscan.WithLeaseFiles(cfg.WiFi.LeaseFiles),
	)

	// WAN enforcement. Disabled controller no-ops for off-router dev.
	access := wan.Disabled()
	if cfg.WAN.Enabled {
		access = wan.New(cfg.WAN.Tool, cfg.WAN.Chain,
			wan.WithLogger(log),
			wan.WithTimeout(time.Duration(cfg.WAN.CommandTimeout)*time.Second),
		)
		log.Info("WAN enforcement enabled", "tool", cfg.WAN.Tool, "chain", cfg.WAN.Chain)
	} else {
		log.Info("WAN enforcement disabled")
	}

	// Physical outputs. hw is false off the Pi and everything degrades
	// to logged no-ops.
	hw := gpio.Open(log)
	defer gpio.Close()

	bar := gpio.NewBar(cfg.GPIO.LEDPins, hw, log)
	defer bar.Off()

	motor := gpio.NewMotor(gpio.MotorSettings{
		PinIn1: cfg.GPIO.Motor.PinIn1,
		PinIn2: cfg.GPIO.Motor.PinIn2,
		Step:   cfg.MotorStep(),
		Pause:  cfg.MotorPause(),
		Invert: cfg.GPIO.Motor.InvertDirection,
	}, hw, log)

	// Optional MQTT mirror for Home Assistant plus the smart plug
	// command path.
	var publisher *hass.Publisher
	if cfg.MQTT.Enabled {
		broker, mqttErr := mqtt.Connect(cfg.MQTT)
		if mqttErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", mqttErr)
		}
		broker.SetLogger(log)
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := broker.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		publisher = hass.New(broker, cfg.MQTT, log)
	} else {
		log.Info("MQTT disabled")
	}

	// One hub shared between the engine and the API server, so every
	// state change reaches every session.
	hub := api.NewHub(log)

	engineDeps := exposure.Deps{
		Store:       store,
		Enumerator:  scanner,
		LEDs:        bar,
		Motor:       motor,
		Broadcaster: hub,
		Access:      access,
		Logger:      log,
		GuardMargin: cfg.GuardMargin(),
	}
	if publisher != nil {
		engineDeps.Sink = publisher
	}
	engine := exposure.New(engineDeps)
	engine.Start()
	defer engine.Close()

	serverDeps := api.Deps{
		Config:      cfg.API,
		WS:          cfg.WebSocket,
		Logger:      log,
		Engine:      engine,
		Store:       store,
		Scanner:     scanner,
		Access:      access,
		Roles:       cfg.Inputs.Roles,
		ExternalHub: hub,
		Version:     version,
	}
	if publisher != nil {
		serverDeps.Sink = publisher
		serverDeps.Plug = publisher
	}
	server, err := api.New(serverDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Fleet poller: periodically re-derive the level from the live
	// fleet so devices joining or leaving move the dial.
	if cfg.Exposure.PollInterval > 0 {
		go pollFleet(ctx, engine, time.Duration(cfg.Exposure.PollInterval)*time.Second, log)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// pollFleet runs the periodic fleet recompute until the context ends.
func pollFleet(ctx context.Context, engine *exposure.Engine, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("fleet poller started", "interval", interval)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.Recompute(ctx)
		}
	}
}

// getConfigPath returns the configuration file path.
// Uses the NETDASH_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("NETDASH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
