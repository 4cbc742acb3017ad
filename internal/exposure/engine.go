package exposure

import (
	"context"
	"sync"
	"time"

	"github.com/netdash/netdash-core/internal/netscan"
	"github.com/netdash/netdash-core/internal/registry"
)

// Exposure level bounds. Every external write is clamped into this range.
const (
	MinLevel = 1
	MaxLevel = 5
)

// Broadcast event types emitted by the engine.
const (
	EventExposure    = "exposure"
	EventMetaUpdated = "devices_meta_updated"
)

// Rotate payloads accepted by HandleRotate.
const (
	RotateCW  = "cw"
	RotateCCW = "ccw"
)

// onlineCap is the most devices rebalancing promotes to Online (level 3)
// or Cloud-Connected (level 5).
const onlineCap = 4

// Enumerator produces the current live client list.
type Enumerator interface {
	List(ctx context.Context) []netscan.Client
}

// Store is the slice of the device registry the engine writes through.
type Store interface {
	SetAttributes(mac string, attrs registry.Attributes) (registry.Record, error)
	Enrich(live []netscan.Client) []registry.Client
}

// LEDs is the exposure bar output.
type LEDs interface {
	Apply(level int)
}

// Motor is the physical dial output. Move blocks for the full motion and
// must only be called off the request path.
type Motor interface {
	Move(ctx context.Context, delta int)
	StepDuration() time.Duration
}

// Broadcaster fans state-change notifications out to connected UI
// sessions.
type Broadcaster interface {
	Broadcast(eventType string, payload any)
}

// Access applies WAN enforcement for a device status.
type Access interface {
	Enforce(ctx context.Context, mac string, status registry.Status)
}

// StatusSink receives applied levels and status writes for external
// publication (Home Assistant). Optional.
type StatusSink interface {
	ExposureChanged(level int)
	DeviceStatusChanged(mac string, status registry.Status)
}

// Logger defines the logging interface used by the Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}

// Deps holds the dependencies required by the Engine.
type Deps struct {
	Store       Store
	Enumerator  Enumerator
	LEDs        LEDs
	Motor       Motor   // optional; nil disables dial movement
	Broadcaster Broadcaster
	Access      Access     // optional; nil disables WAN enforcement
	Sink        StatusSink // optional
	Logger      Logger

	// GuardMargin is added per motor step when computing the rotate
	// guard window.
	GuardMargin time.Duration
}

// Engine owns the process-wide exposure level and keeps LEDs, the motor
// dial, the registry, and connected UI sessions consistent with it.
//
// Level changes arrive from three independent sources: rotary input,
// direct API writes, and status changes to individual devices. A single
// mutex guards every mutation of level and guard state, and each
// operation completes its side effects (registry writes, LED state)
// before broadcasting, so sessions never observe a notification ahead of
// its consequence.
type Engine struct {
	store  Store
	enum   Enumerator
	leds   LEDs
	motor  Motor
	hub    Broadcaster
	access Access
	sink   StatusSink
	logger Logger

	guardMargin time.Duration

	mu         sync.Mutex
	level      int
	guardUntil time.Time

	// now is swapped in tests to control the guard window.
	now func() time.Time

	motorCtx    context.Context
	motorCancel context.CancelFunc
	wg          sync.WaitGroup
}

// New creates an exposure engine. The level starts at 1 and is not
// persisted across restarts.
func New(deps Deps) *Engine {
	logger := deps.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		store:       deps.Store,
		enum:        deps.Enumerator,
		leds:        deps.LEDs,
		motor:       deps.Motor,
		hub:         deps.Broadcaster,
		access:      deps.Access,
		sink:        deps.Sink,
		logger:      logger,
		guardMargin: deps.GuardMargin,
		level:       MinLevel,
		now:         time.Now,
		motorCtx:    ctx,
		motorCancel: cancel,
	}
}

// Start applies the initial level to the LED bar.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.leds != nil {
		e.leds.Apply(e.level)
	}
}

// Close cancels any in-flight motor motion and waits for it to finish.
func (e *Engine) Close() {
	e.motorCancel()
	e.wg.Wait()
}

// Level returns the current exposure level.
func (e *Engine) Level() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.level
}

// Guarded reports whether rotate input is currently suppressed.
func (e *Engine) Guarded() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now().Before(e.guardUntil)
}

// clampLevel forces a level into [MinLevel, MaxLevel]. Out-of-range
// input is clamped silently, never rejected.
func clampLevel(level int) int {
	if level < MinLevel {
		return MinLevel
	}
	if level > MaxLevel {
		return MaxLevel
	}
	return level
}

// LevelFromCounts derives the exposure level from the fleet status
// counts. Only Online and Cloud-Connected devices contribute.
//
// Rule table, evaluated in precedence order:
//
//	cloud >= 4            -> 5
//	cloud >= 1            -> 4
//	cloud == 0, online >3 -> 3
//	cloud == 0, online>=1 -> 2
//	otherwise             -> 1
func LevelFromCounts(online, cloud int) int {
	switch {
	case cloud >= 4:
		return 5
	case cloud >= 1:
		return 4
	case online > 3:
		return 3
	case online >= 1:
		return 2
	default:
		return 1
	}
}

// Assignment is one per-MAC status decision produced by RebalancePlan.
type Assignment struct {
	MAC    string
	Status registry.Status
}

// RebalancePlan distributes statuses across the currently associated
// MACs (in enumeration order) to match a target level:
//
//	level 1: all Local-only
//	level 2: first MAC Online, rest Local-only
//	level 3: first min(4, N) Online, rest Local-only
//	level 4: first MAC Cloud-Connected, rest Online
//	level 5: first min(4, N) Cloud-Connected, rest Online
//
// The plan is intentionally not the inverse of LevelFromCounts for
// levels 2 and 3; the asymmetry is long-standing observed behaviour and
// is pinned by tests.
func RebalancePlan(level int, macs []string) []Assignment {
	level = clampLevel(level)
	plan := make([]Assignment, 0, len(macs))

	var headCount int
	var head, tail registry.Status
	switch level {
	case 1:
		headCount, head, tail = 0, registry.StatusLocalOnly, registry.StatusLocalOnly
	case 2:
		headCount, head, tail = 1, registry.StatusOnline, registry.StatusLocalOnly
	case 3:
		headCount, head, tail = onlineCap, registry.StatusOnline, registry.StatusLocalOnly
	case 4:
		headCount, head, tail = 1, registry.StatusCloud, registry.StatusOnline
	case 5:
		headCount, head, tail = onlineCap, registry.StatusCloud, registry.StatusOnline
	}

	for i, mac := range macs {
		status := tail
		if i < headCount {
			status = head
		}
		plan = append(plan, Assignment{MAC: mac, Status: status})
	}
	return plan
}

// SetLevel handles a direct exposure write (API). The level is clamped,
// the registry is rebalanced to match, and the dial motor tracks the
// change. Returns the applied level.
func (e *Engine) SetLevel(ctx context.Context, level int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	level = clampLevel(level)
	e.rebalanceLocked(ctx, level)
	e.applyLocked(level)

	e.hub.Broadcast(EventExposure, level)
	e.hub.Broadcast(EventMetaUpdated, nil)
	return level
}

// HandleRotate handles a dial rotation from the physical encoder.
//
// The change is purely user-driven: the hand is already on the dial, so
// the motor stays still and no guard window is set. While a motor-driven
// motion is in flight (now < guardUntil) the event is acknowledged but
// ignored, preventing the motor's own motion from being misread as user
// input. Returns the resulting level and whether it changed.
func (e *Engine) HandleRotate(ctx context.Context, direction string) (int, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.now().Before(e.guardUntil) {
		e.logger.Debug("rotate ignored during guard window",
			"direction", direction,
			"until", e.guardUntil,
		)
		e.hub.Broadcast(EventExposure, e.level)
		return e.level, false
	}

	delta := 0
	switch direction {
	case RotateCW:
		delta = 1
	case RotateCCW:
		delta = -1
	default:
		e.logger.Warn("unknown rotate payload", "payload", direction)
		e.hub.Broadcast(EventExposure, e.level)
		return e.level, false
	}

	target := clampLevel(e.level + delta)
	changed := target != e.level
	if changed {
		e.applyUserDrivenLocked(ctx, target)
	}

	e.hub.Broadcast(EventExposure, e.level)
	if changed {
		e.hub.Broadcast(EventMetaUpdated, nil)
	}
	return e.level, changed
}

// HandlePress handles the dial button: the level cycles up by one,
// wrapping from 5 back to 1, through the same user-driven path as
// rotation.
func (e *Engine) HandlePress(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	target := e.level + 1
	if target > MaxLevel {
		target = MinLevel
	}
	e.applyUserDrivenLocked(ctx, target)

	e.hub.Broadcast(EventExposure, e.level)
	e.hub.Broadcast(EventMetaUpdated, nil)
	return e.level
}

// Recompute re-derives the level from the live fleet: enumerate clients,
// enrich with stored statuses, count, and apply the derived level if it
// differs. A metadata-changed notification is always broadcast so UIs
// refresh their device lists even when the level is unchanged.
func (e *Engine) Recompute(ctx context.Context) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	live := e.enum.List(ctx)
	enriched := e.store.Enrich(live)

	var online, cloud int
	for _, c := range enriched {
		switch c.Status {
		case registry.StatusOnline:
			online++
		case registry.StatusCloud:
			cloud++
		}
	}

	level := LevelFromCounts(online, cloud)
	if level != e.level {
		e.logger.Info("exposure re-derived from fleet",
			"online", online,
			"cloud", cloud,
			"level", level,
			"previous", e.level,
		)
		e.applyLocked(level)
		e.hub.Broadcast(EventExposure, level)
	}

	e.hub.Broadcast(EventMetaUpdated, nil)
	return e.level
}

// applyLocked stores a new level, mirrors it on the LED bar, and, when
// the level actually changed, launches the background motor job and
// opens the guard window for its expected duration. Idempotent for an
// unchanged level: no motor motion, no new guard. Caller holds e.mu.
func (e *Engine) applyLocked(level int) {
	level = clampLevel(level)
	prev := e.level
	e.level = level

	if e.leds != nil {
		e.leds.Apply(level)
	}

	delta := level - prev
	if delta != 0 && e.motor != nil {
		steps := delta
		if steps < 0 {
			steps = -steps
		}
		window := time.Duration(steps) * (e.motor.StepDuration() + e.guardMargin)
		e.guardUntil = e.now().Add(window)

		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			e.motor.Move(e.motorCtx, delta)
		}()

		e.logger.Debug("motor job launched",
			"delta", delta,
			"guard_window", window,
		)
	}

	if delta != 0 && e.sink != nil {
		e.sink.ExposureChanged(level)
	}
}

// applyUserDrivenLocked is the rotate/press path: LED state and registry
// rebalancing only. The dial already moved under the user's hand, so the
// motor stays still and no guard window is opened. Caller holds e.mu.
func (e *Engine) applyUserDrivenLocked(ctx context.Context, level int) {
	level = clampLevel(level)
	changed := level != e.level
	e.level = level

	if e.leds != nil {
		e.leds.Apply(level)
	}
	e.rebalanceLocked(ctx, level)

	if changed && e.sink != nil {
		e.sink.ExposureChanged(level)
	}
}

// rebalanceLocked redistributes statuses across the currently associated
// MACs to match the target level, writing each assignment through the
// registry and applying WAN enforcement. Write failures are logged and
// skipped; rebalancing is best-effort per device. Caller holds e.mu.
func (e *Engine) rebalanceLocked(ctx context.Context, level int) {
	live := e.enum.List(ctx)
	macs := make([]string, 0, len(live))
	for _, c := range live {
		macs = append(macs, registry.NormalizeMAC(c.MAC))
	}

	for _, a := range RebalancePlan(level, macs) {
		status := a.Status
		if _, err := e.store.SetAttributes(a.MAC, registry.Attributes{Status: &status}); err != nil {
			e.logger.Warn("rebalance write failed", "mac", a.MAC, "error", err)
			continue
		}
		if e.access != nil {
			e.access.Enforce(ctx, a.MAC, status)
		}
		if e.sink != nil {
			e.sink.DeviceStatusChanged(a.MAC, status)
		}
	}

	e.logger.Debug("registry rebalanced", "level", level, "devices", len(macs))
}
