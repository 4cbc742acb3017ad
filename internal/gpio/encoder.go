package gpio

import (
	"context"
	"time"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// Event types and payloads emitted by an encoder watcher. These are the
// abstract input events the hub ingests; the watcher never interprets
// them.
const (
	EventRotate = "rotate"
	EventButton = "button"

	PayloadCW    = "cw"
	PayloadCCW   = "ccw"
	PayloadPress = "press"
)

// defaultPollInterval is the encoder sampling period. 5ms is fast enough
// for hand rotation without burning a core.
const defaultPollInterval = 5 * time.Millisecond

// EmitFunc receives each decoded encoder event.
type EmitFunc func(eventType, payload string)

// Encoder watches a single quadrature rotary encoder with a push switch.
//
// Detection is by polling: a falling edge on pin A is a detent, and pin
// B at that moment gives the direction; a falling edge on the switch pin
// is a press. Pins are pulled up, so idle reads high.
type Encoder struct {
	device string
	pinA   int
	pinB   int
	pinSW  int
	poll   time.Duration
	logger Logger

	// read reports whether a pin is high; swapped in tests and when
	// hardware is absent.
	read func(pin int) bool
}

// NewEncoder creates a watcher for one encoder. When hw is false the
// watcher idles until cancelled.
func NewEncoder(device string, pinA, pinB, pinSW int, hw bool, logger Logger) *Encoder {
	if logger == nil {
		logger = noopLogger{}
	}
	e := &Encoder{
		device: device,
		pinA:   pinA,
		pinB:   pinB,
		pinSW:  pinSW,
		poll:   defaultPollInterval,
		logger: logger,
	}
	if hw {
		for _, p := range []int{pinA, pinB, pinSW} {
			pin := rpio.Pin(p)
			pin.Input()
			pin.PullUp()
		}
		e.read = func(pin int) bool {
			return rpio.Pin(pin).Read() == rpio.High
		}
	} else {
		e.read = nil
	}
	return e
}

// Device returns the configured device ID for this encoder.
func (e *Encoder) Device() string {
	return e.device
}

// Watch polls the encoder until ctx is cancelled, calling emit for each
// rotate and press event. Without hardware it blocks until cancelled.
func (e *Encoder) Watch(ctx context.Context, emit EmitFunc) {
	if e.read == nil {
		e.logger.Info("encoder idle (no hardware)", "device", e.device)
		<-ctx.Done()
		return
	}

	e.logger.Info("encoder watching",
		"device", e.device,
		"pin_a", e.pinA,
		"pin_b", e.pinB,
		"pin_sw", e.pinSW,
	)

	lastA := e.read(e.pinA)
	lastSW := true

	ticker := time.NewTicker(e.poll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		a := e.read(e.pinA)
		if lastA && !a {
			if !e.read(e.pinB) {
				e.logger.Debug("rotate", "device", e.device, "dir", PayloadCW)
				emit(EventRotate, PayloadCW)
			} else {
				e.logger.Debug("rotate", "device", e.device, "dir", PayloadCCW)
				emit(EventRotate, PayloadCCW)
			}
		}
		lastA = a

		sw := e.read(e.pinSW)
		if lastSW && !sw {
			e.logger.Debug("press", "device", e.device)
			emit(EventButton, PayloadPress)
		}
		lastSW = sw
	}
}
