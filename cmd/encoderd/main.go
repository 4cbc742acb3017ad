// encoderd watches the panel's rotary encoders and forwards rotate and
// button events to the hub's event ingress.
//
// It runs as its own process so a hub restart never drops encoder
// state, and so the GPIO polling loops stay isolated from the HTTP
// serving path.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/netdash/netdash-core/internal/gpio"
	"github.com/netdash/netdash-core/internal/infrastructure/config"
	"github.com/netdash/netdash-core/internal/infrastructure/logging"
)

var version = "dev"

const defaultConfigPath = "configs/config.yaml"

// postTimeout bounds each event delivery. Losing an event beats
// blocking the poll loop behind a slow hub.
const postTimeout = 2 * time.Second

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting encoderd", "version", version)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)

	if len(cfg.Encoders.Devices) == 0 {
		return fmt.Errorf("no encoders configured")
	}

	hw := gpio.Open(log)
	defer gpio.Close()

	forwarder := newForwarder(cfg.Encoders.HubURL, log)

	var wg sync.WaitGroup
	for _, enc := range cfg.Encoders.Devices {
		e := gpio.NewEncoder(enc.DeviceID, enc.PinA, enc.PinB, enc.PinSW, hw, log)
		log.Info("watching encoder",
			"device", enc.DeviceID,
			"pin_a", enc.PinA,
			"pin_b", enc.PinB,
			"pin_sw", enc.PinSW,
		)

		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Watch(ctx, func(eventType, payload string) {
				forwarder.send(ctx, e.Device(), eventType, payload)
			})
		}()
	}

	<-ctx.Done()
	log.Info("shutdown signal received")
	wg.Wait()
	return nil
}

// forwarder posts encoder events to the hub's event ingress.
type forwarder struct {
	url    string
	client *http.Client
	logger *logging.Logger
}

func newForwarder(hubURL string, logger *logging.Logger) *forwarder {
	return &forwarder{
		url:    hubURL + "/api/v1/events",
		client: &http.Client{Timeout: postTimeout},
		logger: logger,
	}
}

// send delivers one event. Failures are logged and dropped; the
// encoder keeps producing regardless of hub availability.
func (f *forwarder) send(ctx context.Context, device, eventType, payload string) {
	body, err := json.Marshal(map[string]string{
		"type":    eventType,
		"device":  device,
		"payload": payload,
	})
	if err != nil {
		f.logger.Error("event marshal failed", "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		f.logger.Error("event request build failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Warn("event delivery failed", "device", device, "type", eventType, "error", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		f.logger.Warn("event rejected by hub",
			"device", device,
			"type", eventType,
			"status", resp.StatusCode,
		)
		return
	}
	f.logger.Debug("event delivered", "device", device, "type", eventType, "payload", payload)
}

func getConfigPath() string {
	if path := os.Getenv("NETDASH_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
