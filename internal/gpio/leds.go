package gpio

import (
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// Bar drives the five-LED exposure indicator.
//
// Apply(level) lights the first `level` pins and clears the rest, so the
// bar always mirrors the current exposure level exactly. Individual pin
// writes are idempotent.
type Bar struct {
	pins   []int
	logger Logger

	mu    sync.Mutex
	level int

	// write is swapped out in tests and when hardware is absent.
	write func(pin int, on bool)
}

// NewBar creates the LED bar on the given pins (lowest level first).
// When hw is false every write becomes a debug log line.
func NewBar(pins []int, hw bool, logger Logger) *Bar {
	if logger == nil {
		logger = noopLogger{}
	}
	b := &Bar{
		pins:   pins,
		logger: logger,
	}
	if hw {
		for _, p := range pins {
			rpio.Pin(p).Output()
		}
		b.write = func(pin int, on bool) {
			if on {
				rpio.Pin(pin).High()
			} else {
				rpio.Pin(pin).Low()
			}
		}
	} else {
		b.write = func(pin int, on bool) {
			logger.Debug("led write skipped (no hardware)", "pin", pin, "on", on)
		}
	}
	return b
}

// Set turns a single LED on or off. Idempotent.
func (b *Bar) Set(pin int, on bool) {
	b.write(pin, on)
}

// Apply lights the first `level` LEDs and clears the rest.
func (b *Bar) Apply(level int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, pin := range b.pins {
		b.write(pin, i < level)
	}
	b.level = level
}

// Level returns the last applied level.
func (b *Bar) Level() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.level
}

// Off clears every LED. Used on shutdown.
func (b *Bar) Off() {
	b.Apply(0)
}
