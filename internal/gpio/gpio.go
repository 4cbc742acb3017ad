package gpio

import (
	"sync"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// Logger defines the logging interface used by GPIO devices.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

var (
	openMu   sync.Mutex
	opened   bool
	openRefs int
)

// Open maps the GPIO memory range and reports whether real hardware is
// available. It is safe to call from both the hub and device
// constructors; the underlying mapping is opened once.
//
// A false return is not an error condition: every device in this package
// degrades to a logged no-op so the hub runs unchanged on development
// machines.
func Open(logger Logger) bool {
	if logger == nil {
		logger = noopLogger{}
	}

	openMu.Lock()
	defer openMu.Unlock()

	if opened {
		openRefs++
		return true
	}

	if err := rpio.Open(); err != nil {
		logger.Warn("gpio unavailable, devices will no-op", "error", err)
		return false
	}

	opened = true
	openRefs = 1
	logger.Debug("gpio opened")
	return true
}

// Close releases the GPIO mapping once all Open calls are balanced.
func Close() {
	openMu.Lock()
	defer openMu.Unlock()

	if !opened {
		return
	}
	openRefs--
	if openRefs > 0 {
		return
	}
	rpio.Close()
	opened = false
}
