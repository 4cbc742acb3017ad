package gpio

import (
	"context"
	"sync"
	"time"

	rpio "github.com/stianeikeland/go-rpio/v4"
)

// MotorSettings configures the L298N dial motor.
type MotorSettings struct {
	PinIn1 int
	PinIn2 int

	// Step is how long the motor is driven per exposure level.
	Step time.Duration

	// Pause is the settle time between steps.
	Pause time.Duration

	// Invert flips the up/down direction for reversed wiring.
	Invert bool
}

// Motor drives the physical exposure dial through an L298N H-bridge.
//
// One "step" corresponds to one exposure level: the selected input pin
// is driven high for the step duration, then both pins are released.
// Moves block for the full motion; callers run them off the request path.
// A mutex serialises overlapping moves so the bridge never sees both
// inputs high.
type Motor struct {
	settings MotorSettings
	logger   Logger

	mu sync.Mutex

	// pulse drives one step in the given direction; swapped in tests and
	// when hardware is absent.
	pulse func(ctx context.Context, up bool)
}

// NewMotor creates the dial motor. When hw is false each step becomes a
// timed no-op so guard-window behaviour stays realistic off-device.
func NewMotor(settings MotorSettings, hw bool, logger Logger) *Motor {
	if logger == nil {
		logger = noopLogger{}
	}
	m := &Motor{
		settings: settings,
		logger:   logger,
	}
	if hw {
		in1 := rpio.Pin(settings.PinIn1)
		in2 := rpio.Pin(settings.PinIn2)
		in1.Output()
		in2.Output()
		in1.Low()
		in2.Low()
		m.pulse = func(ctx context.Context, up bool) {
			drive, idle := in1, in2
			if !up {
				drive, idle = in2, in1
			}
			idle.Low()
			drive.High()
			sleepCtx(ctx, settings.Step)
			drive.Low()
		}
	} else {
		m.pulse = func(ctx context.Context, up bool) {
			logger.Debug("motor step skipped (no hardware)", "up", up)
			sleepCtx(ctx, settings.Step)
		}
	}
	return m
}

// StepDuration returns the per-level drive duration. The exposure engine
// derives its rotate guard window from this.
func (m *Motor) StepDuration() time.Duration {
	return m.settings.Step
}

// Move turns the dial by the signed number of exposure levels. It blocks
// for the full motion and returns early when ctx is cancelled, leaving
// both bridge inputs low.
func (m *Motor) Move(ctx context.Context, delta int) {
	if delta == 0 {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	up := delta > 0
	if m.settings.Invert {
		up = !up
	}
	steps := delta
	if steps < 0 {
		steps = -steps
	}

	m.logger.Debug("motor move", "delta", delta, "steps", steps)
	for i := 0; i < steps; i++ {
		if ctx.Err() != nil {
			m.logger.Debug("motor move cancelled", "completed", i)
			return
		}
		m.pulse(ctx, up)
		if m.settings.Pause > 0 && i < steps-1 {
			sleepCtx(ctx, m.settings.Pause)
		}
	}
}

// sleepCtx sleeps for d or until ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
