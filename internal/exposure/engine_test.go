package exposure

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/netdash/netdash-core/internal/netscan"
	"github.com/netdash/netdash-core/internal/registry"
)

// fixture wires an Engine to recording fakes. The fakes share one
// ordered op log so side-effect/broadcast ordering can be asserted.
type fixture struct {
	engine *Engine
	enum   *fakeEnum
	store  *fakeStore
	leds   *fakeLEDs
	motor  *fakeMotor
	hub    *fakeHub
	access *fakeAccess

	mu  sync.Mutex
	ops []string
}

func (f *fixture) logOp(op string) {
	f.mu.Lock()
	f.ops = append(f.ops, op)
	f.mu.Unlock()
}

type fakeEnum struct {
	clients []netscan.Client
}

func (f *fakeEnum) List(_ context.Context) []netscan.Client {
	return f.clients
}

type fakeStore struct {
	fx *fixture

	mu      sync.Mutex
	records map[string]registry.Record
}

func (f *fakeStore) SetAttributes(mac string, attrs registry.Attributes) (registry.Record, error) {
	f.mu.Lock()
	rec := f.records[mac]
	if attrs.Category != nil {
		rec.Category = *attrs.Category
	}
	if attrs.Sensitivity != nil {
		rec.Sensitivity = *attrs.Sensitivity
	}
	if attrs.Status != nil {
		rec.Status = *attrs.Status
	}
	f.records[mac] = rec
	f.mu.Unlock()

	f.fx.logOp("store:" + mac)
	return rec, nil
}

func (f *fakeStore) Enrich(live []netscan.Client) []registry.Client {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]registry.Client, 0, len(live))
	for _, lc := range live {
		rec := f.records[registry.NormalizeMAC(lc.MAC)]
		out = append(out, registry.Client{
			MAC:      registry.NormalizeMAC(lc.MAC),
			IP:       lc.IP,
			Hostname: lc.Hostname,
			Signal:   lc.Signal,
			Status:   rec.EffectiveStatus(),
		})
	}
	return out
}

func (f *fakeStore) status(mac string) registry.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records[mac].EffectiveStatus()
}

type fakeLEDs struct {
	mu      sync.Mutex
	applied []int
}

func (f *fakeLEDs) Apply(level int) {
	f.mu.Lock()
	f.applied = append(f.applied, level)
	f.mu.Unlock()
}

type fakeMotor struct {
	mu    sync.Mutex
	moves []int
	step  time.Duration
}

func (f *fakeMotor) Move(_ context.Context, delta int) {
	f.mu.Lock()
	f.moves = append(f.moves, delta)
	f.mu.Unlock()
}

func (f *fakeMotor) StepDuration() time.Duration {
	return f.step
}

func (f *fakeMotor) moveCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.moves)
}

type broadcastMsg struct {
	eventType string
	payload   any
}

type fakeHub struct {
	fx *fixture

	mu   sync.Mutex
	msgs []broadcastMsg
}

func (f *fakeHub) Broadcast(eventType string, payload any) {
	f.mu.Lock()
	f.msgs = append(f.msgs, broadcastMsg{eventType, payload})
	f.mu.Unlock()
	f.fx.logOp("broadcast:" + eventType)
}

func (f *fakeHub) byType(eventType string) []broadcastMsg {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []broadcastMsg
	for _, m := range f.msgs {
		if m.eventType == eventType {
			out = append(out, m)
		}
	}
	return out
}

type fakeAccess struct {
	mu       sync.Mutex
	enforced map[string]registry.Status
}

func (f *fakeAccess) Enforce(_ context.Context, mac string, status registry.Status) {
	f.mu.Lock()
	f.enforced[mac] = status
	f.mu.Unlock()
}

func newFixture(t *testing.T, macs ...string) *fixture {
	t.Helper()

	fx := &fixture{}
	fx.enum = &fakeEnum{}
	for _, mac := range macs {
		fx.enum.clients = append(fx.enum.clients, netscan.Client{MAC: mac})
	}
	fx.store = &fakeStore{fx: fx, records: make(map[string]registry.Record)}
	fx.leds = &fakeLEDs{}
	fx.motor = &fakeMotor{step: 200 * time.Millisecond}
	fx.hub = &fakeHub{fx: fx}
	fx.access = &fakeAccess{enforced: make(map[string]registry.Status)}

	fx.engine = New(Deps{
		Store:       fx.store,
		Enumerator:  fx.enum,
		LEDs:        fx.leds,
		Motor:       fx.motor,
		Broadcaster: fx.hub,
		Access:      fx.access,
		GuardMargin: 150 * time.Millisecond,
	})
	t.Cleanup(fx.engine.Close)
	return fx
}

func TestLevelFromCounts(t *testing.T) {
	tests := []struct {
		online, cloud, want int
	}{
		{0, 0, 1},
		{1, 0, 2},
		{3, 0, 2},
		{4, 0, 3},
		{10, 0, 3},
		{0, 1, 4},
		{5, 1, 4},
		{0, 3, 4},
		{0, 4, 5},
		{9, 9, 5},
	}

	for _, tt := range tests {
		if got := LevelFromCounts(tt.online, tt.cloud); got != tt.want {
			t.Errorf("LevelFromCounts(%d, %d) = %d, want %d", tt.online, tt.cloud, got, tt.want)
		}
	}
}

func TestLevelFromCountsMonotonic(t *testing.T) {
	for online := 0; online <= 8; online++ {
		prev := 0
		for cloud := 0; cloud <= 8; cloud++ {
			got := LevelFromCounts(online, cloud)
			if got < MinLevel || got > MaxLevel {
				t.Fatalf("LevelFromCounts(%d, %d) = %d out of range", online, cloud, got)
			}
			if got < prev {
				t.Errorf("not monotonic in cloud: (%d,%d)=%d < previous %d", online, cloud, got, prev)
			}
			prev = got
		}
	}

	// At cloud == 0, non-decreasing in online.
	prev := 0
	for online := 0; online <= 8; online++ {
		got := LevelFromCounts(online, 0)
		if got < prev {
			t.Errorf("not monotonic in online: (%d,0)=%d < previous %d", online, got, prev)
		}
		prev = got
	}
}

func planStatuses(level int, macs ...string) map[string]registry.Status {
	out := make(map[string]registry.Status)
	for _, a := range RebalancePlan(level, macs) {
		out[a.MAC] = a.Status
	}
	return out
}

func TestRebalancePlan(t *testing.T) {
	got := planStatuses(1, "a", "b", "c")
	for mac, status := range got {
		if status != registry.StatusLocalOnly {
			t.Errorf("level 1: %s = %s, want Local-only", mac, status)
		}
	}

	got = planStatuses(2, "a", "b", "c")
	if got["a"] != registry.StatusOnline || got["b"] != registry.StatusLocalOnly || got["c"] != registry.StatusLocalOnly {
		t.Errorf("level 2 plan wrong: %v", got)
	}

	got = planStatuses(3, "a", "b", "c", "d", "e", "f")
	online := 0
	for _, status := range got {
		if status == registry.StatusOnline {
			online++
		}
	}
	if online != 4 || got["e"] != registry.StatusLocalOnly || got["f"] != registry.StatusLocalOnly {
		t.Errorf("level 3 plan wrong: %v", got)
	}

	got = planStatuses(4, "a", "b", "c")
	if got["a"] != registry.StatusCloud || got["b"] != registry.StatusOnline || got["c"] != registry.StatusOnline {
		t.Errorf("level 4 plan wrong: %v", got)
	}

	got = planStatuses(5, "a", "b", "c", "d", "e")
	for _, mac := range []string{"a", "b", "c", "d"} {
		if got[mac] != registry.StatusCloud {
			t.Errorf("level 5: %s = %s, want Cloud-Connected", mac, got[mac])
		}
	}
	if got["e"] != registry.StatusOnline {
		t.Errorf("level 5: e = %s, want Online", got["e"])
	}
}

// TestRebalanceConvergence pins the known asymmetry between
// RebalancePlan and LevelFromCounts. Any change to either table will
// fail here and must be a deliberate decision.
func TestRebalanceConvergence(t *testing.T) {
	countsAfter := func(level int, macs ...string) (online, cloud int) {
		for _, a := range RebalancePlan(level, macs) {
			switch a.Status {
			case registry.StatusOnline:
				online++
			case registry.StatusCloud:
				cloud++
			}
		}
		return online, cloud
	}

	tests := []struct {
		level    int
		macs     []string
		rederive int // level LevelFromCounts yields after the rebalance
	}{
		{1, []string{"a", "b", "c"}, 1},
		{2, []string{"a", "b", "c"}, 2},          // 1 Online -> 2: converges
		{3, []string{"a", "b"}, 2},               // only 2 Online -> 2: does NOT converge
		{3, []string{"a", "b", "c", "d", "e"}, 3}, // 4 Online -> 3: converges
		{4, []string{"a", "b", "c"}, 4},
		{5, []string{"a", "b", "c", "d", "e"}, 5},
		{5, []string{"a", "b"}, 4}, // only 2 Cloud -> 4: does NOT converge
	}

	for _, tt := range tests {
		online, cloud := countsAfter(tt.level, tt.macs...)
		if got := LevelFromCounts(online, cloud); got != tt.rederive {
			t.Errorf("rebalance(%d, %d macs) re-derives %d, pinned %d",
				tt.level, len(tt.macs), got, tt.rederive)
		}
	}
}

func TestSetLevelClampsAndRebalances(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03")

	got := fx.engine.SetLevel(context.Background(), 9)
	if got != 5 {
		t.Errorf("SetLevel(9) = %d, want clamp to 5", got)
	}
	if fx.engine.Level() != 5 {
		t.Errorf("Level() = %d, want 5", fx.engine.Level())
	}

	// Level 5 with 3 MACs: up to 4 Cloud-Connected.
	for _, mac := range []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03"} {
		if s := fx.store.status(mac); s != registry.StatusCloud {
			t.Errorf("%s = %s, want Cloud-Connected", mac, s)
		}
	}

	got = fx.engine.SetLevel(context.Background(), -3)
	if got != 1 {
		t.Errorf("SetLevel(-3) = %d, want clamp to 1", got)
	}
	for _, mac := range []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03"} {
		if s := fx.store.status(mac); s != registry.StatusLocalOnly {
			t.Errorf("%s = %s, want Local-only after level 1", mac, s)
		}
	}
}

func TestSetLevelDrivesMotorAndWAN(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02")

	fx.engine.SetLevel(context.Background(), 4)
	fx.engine.Close() // wait for the motor job

	fx.motor.mu.Lock()
	moves := append([]int(nil), fx.motor.moves...)
	fx.motor.mu.Unlock()
	if len(moves) != 1 || moves[0] != 3 {
		t.Errorf("motor moves = %v, want [3]", moves)
	}

	fx.access.mu.Lock()
	defer fx.access.mu.Unlock()
	if fx.access.enforced["aa:bb:cc:dd:ee:01"] != registry.StatusCloud {
		t.Errorf("WAN enforcement missing for promoted device: %v", fx.access.enforced)
	}
	if fx.access.enforced["aa:bb:cc:dd:ee:02"] != registry.StatusOnline {
		t.Errorf("WAN enforcement missing for online device: %v", fx.access.enforced)
	}
}

func TestApplyIdempotentForSameLevel(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01")

	fx.engine.SetLevel(context.Background(), 3)
	firstExposure := fx.hub.byType(EventExposure)

	fx.engine.SetLevel(context.Background(), 3)
	fx.engine.Close()

	if got := fx.motor.moveCount(); got != 1 {
		t.Errorf("motor moved %d times, want 1 (no duplicate on same level)", got)
	}

	second := fx.hub.byType(EventExposure)
	if len(second) != len(firstExposure)+1 {
		t.Fatalf("expected one more exposure broadcast, got %d -> %d", len(firstExposure), len(second))
	}
	if second[len(second)-1].payload != second[len(second)-2].payload {
		t.Errorf("broadcast payload changed on idempotent re-apply: %v", second)
	}

	fx.leds.mu.Lock()
	defer fx.leds.mu.Unlock()
	last := fx.leds.applied[len(fx.leds.applied)-1]
	if last != 3 {
		t.Errorf("LED level = %d, want 3", last)
	}
}

func TestRotateChangesLevelWithoutMotor(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02")

	level, changed := fx.engine.HandleRotate(context.Background(), RotateCW)
	if !changed || level != 2 {
		t.Errorf("rotate cw: level = %d changed = %v, want 2 true", level, changed)
	}

	level, changed = fx.engine.HandleRotate(context.Background(), RotateCCW)
	if !changed || level != 1 {
		t.Errorf("rotate ccw: level = %d changed = %v, want 1 true", level, changed)
	}

	// Clamped at the bottom: acknowledged but unchanged.
	level, changed = fx.engine.HandleRotate(context.Background(), RotateCCW)
	if changed || level != 1 {
		t.Errorf("rotate below min: level = %d changed = %v, want 1 false", level, changed)
	}

	fx.engine.Close()
	if got := fx.motor.moveCount(); got != 0 {
		t.Errorf("rotate path moved the motor %d times, want 0", got)
	}

	// Rotation still rebalances the registry.
	if s := fx.store.status("aa:bb:cc:dd:ee:01"); s != registry.StatusLocalOnly {
		t.Errorf("registry not rebalanced after rotate: %s", s)
	}
}

func TestRotateIgnoredDuringGuardWindow(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01")

	base := time.Now()
	now := base
	var nowMu sync.Mutex
	fx.engine.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return now
	}

	// 1 -> 3 moves the motor 2 steps: guard = 2 * (200ms + 150ms).
	fx.engine.SetLevel(context.Background(), 3)
	if !fx.engine.Guarded() {
		t.Fatal("guard window not set after motor-driven change")
	}

	if level, changed := fx.engine.HandleRotate(context.Background(), RotateCW); changed || level != 3 {
		t.Errorf("guarded rotate: level = %d changed = %v, want 3 false", level, changed)
	}

	// Just before expiry: still guarded.
	nowMu.Lock()
	now = base.Add(699 * time.Millisecond)
	nowMu.Unlock()
	if _, changed := fx.engine.HandleRotate(context.Background(), RotateCW); changed {
		t.Error("rotate accepted 1ms before guard expiry")
	}

	// After expiry: accepted again.
	nowMu.Lock()
	now = base.Add(701 * time.Millisecond)
	nowMu.Unlock()
	if level, changed := fx.engine.HandleRotate(context.Background(), RotateCW); !changed || level != 4 {
		t.Errorf("post-guard rotate: level = %d changed = %v, want 4 true", level, changed)
	}
}

func TestPressCyclesAndWraps(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01")

	for want := 2; want <= 5; want++ {
		if got := fx.engine.HandlePress(context.Background()); got != want {
			t.Fatalf("press -> %d, want %d", got, want)
		}
	}
	if got := fx.engine.HandlePress(context.Background()); got != 1 {
		t.Errorf("press at 5 -> %d, want wrap to 1", got)
	}

	fx.engine.Close()
	if got := fx.motor.moveCount(); got != 0 {
		t.Errorf("press path moved the motor %d times, want 0", got)
	}
}

func TestRecomputeFromFleet(t *testing.T) {
	macs := []string{"aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02", "aa:bb:cc:dd:ee:03", "aa:bb:cc:dd:ee:04"}
	fx := newFixture(t, macs...)

	// 4 Online, 0 Cloud -> level 3 (online > 3).
	online := registry.StatusOnline
	for _, mac := range macs {
		if _, err := fx.store.SetAttributes(mac, registry.Attributes{Status: &online}); err != nil {
			t.Fatal(err)
		}
	}

	if got := fx.engine.Recompute(context.Background()); got != 3 {
		t.Errorf("Recompute = %d, want 3", got)
	}

	exposures := fx.hub.byType(EventExposure)
	if len(exposures) != 1 || exposures[0].payload != 3 {
		t.Errorf("exposure broadcasts = %v, want one with payload 3", exposures)
	}
	if len(fx.hub.byType(EventMetaUpdated)) != 1 {
		t.Error("devices_meta_updated not broadcast")
	}

	// Unchanged level: no second exposure broadcast, but metadata still
	// announced.
	fx.engine.Recompute(context.Background())
	if got := len(fx.hub.byType(EventExposure)); got != 1 {
		t.Errorf("exposure broadcast repeated for unchanged level: %d", got)
	}
	if got := len(fx.hub.byType(EventMetaUpdated)); got != 2 {
		t.Errorf("meta broadcasts = %d, want 2", got)
	}
}

func TestBroadcastFollowsSideEffects(t *testing.T) {
	fx := newFixture(t, "aa:bb:cc:dd:ee:01", "aa:bb:cc:dd:ee:02")

	fx.engine.SetLevel(context.Background(), 2)

	fx.mu.Lock()
	defer fx.mu.Unlock()

	lastStore := -1
	firstBroadcast := len(fx.ops)
	for i, op := range fx.ops {
		switch {
		case op[:6] == "store:":
			lastStore = i
		case op[:10] == "broadcast:" && i < firstBroadcast:
			firstBroadcast = i
		}
	}
	if lastStore == -1 || firstBroadcast == len(fx.ops) {
		t.Fatalf("missing ops in log: %v", fx.ops)
	}
	if firstBroadcast < lastStore {
		t.Errorf("broadcast issued before registry writes completed: %v", fx.ops)
	}
}
