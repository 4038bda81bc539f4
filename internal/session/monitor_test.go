package session

import (
	"sync"
	"testing"
	"time"
)

// fakeClock is a manually advanced time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// events collects callback invocations.
type events struct {
	mu         sync.Mutex
	warnings   []time.Duration
	ticks      []time.Duration
	expiredCnt int
}

func (e *events) callbacks() Callbacks {
	return Callbacks{
		OnWarning: func(remaining time.Duration) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.warnings = append(e.warnings, remaining)
		},
		OnCountdownTick: func(remaining time.Duration) {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.ticks = append(e.ticks, remaining)
		},
		OnExpired: func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.expiredCnt++
		},
	}
}

func (e *events) expired() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.expiredCnt
}

func newTestMonitor(t *testing.T, cfg Config) (*Monitor, *fakeClock, *events) {
	t.Helper()
	ev := &events{}
	m, err := NewMonitor(cfg, ev.callbacks())
	if err != nil {
		t.Fatalf("NewMonitor: %v", err)
	}
	clock := newFakeClock()
	m.SetClock(clock.Now)
	return m, clock, ev
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero budget", Config{WarningLead: time.Minute, Countdown: time.Second}, true},
		{"zero lead", Config{IdleBudget: time.Minute, Countdown: time.Second}, true},
		{"zero countdown", Config{IdleBudget: 15 * time.Minute, WarningLead: 5 * time.Minute}, true},
		{"lead equals budget", Config{IdleBudget: 5 * time.Minute, WarningLead: 5 * time.Minute, Countdown: time.Second}, true},
		{"lead exceeds budget", Config{IdleBudget: 5 * time.Minute, WarningLead: 10 * time.Minute, Countdown: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

// TestWatchdogSchedule walks the stock 15-minute budget: warning at the
// 10-minute idle mark with a 5-minute countdown, forced logout at 15:00.
func TestWatchdogSchedule(t *testing.T) {
	m, clock, ev := newTestMonitor(t, DefaultConfig())

	// Just before the warning mark nothing happens.
	clock.Advance(10*time.Minute - time.Second)
	m.Tick()
	if got := m.State(); got != StateActive {
		t.Fatalf("state at 9:59 = %q, want active", got)
	}

	// At 10:00 idle the warning fires, seeded with the full remaining time.
	clock.Advance(time.Second)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Fatalf("state at 10:00 = %q, want warning", got)
	}
	if len(ev.warnings) != 1 {
		t.Fatalf("warnings = %d, want 1", len(ev.warnings))
	}
	if ev.warnings[0] != 5*time.Minute {
		t.Errorf("warning countdown = %s, want 5m", ev.warnings[0])
	}

	// Countdown ticks report the shrinking remainder.
	clock.Advance(time.Minute)
	m.Tick()
	if len(ev.ticks) != 1 || ev.ticks[0] != 4*time.Minute {
		t.Errorf("ticks = %v, want [4m]", ev.ticks)
	}

	// At 15:00 idle the session is forced out.
	clock.Advance(4 * time.Minute)
	m.Tick()
	if got := m.State(); got != StateExpired {
		t.Fatalf("state at 15:00 = %q, want expired", got)
	}
	if ev.expired() != 1 {
		t.Errorf("expired callbacks = %d, want 1", ev.expired())
	}

	// Further ticks and activity are inert.
	m.Tick()
	m.Touch()
	if got := m.State(); got != StateExpired {
		t.Errorf("state after post-expiry activity = %q, want expired", got)
	}
	if ev.expired() != 1 {
		t.Errorf("expired callbacks after extra tick = %d, want 1", ev.expired())
	}
}

func TestActivityResetsWarning(t *testing.T) {
	m, clock, ev := newTestMonitor(t, DefaultConfig())

	clock.Advance(11 * time.Minute)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Fatalf("state = %q, want warning", got)
	}

	// Activity during the warning returns to Active and clears the countdown.
	m.Touch()
	if got := m.State(); got != StateActive {
		t.Fatalf("state after touch = %q, want active", got)
	}

	// The idle clock restarted: ten more minutes to the next warning.
	clock.Advance(10*time.Minute - time.Second)
	m.Tick()
	if got := m.State(); got != StateActive {
		t.Errorf("state = %q, want active", got)
	}
	clock.Advance(time.Second)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Errorf("state = %q, want warning", got)
	}
	if ev.expired() != 0 {
		t.Errorf("expired callbacks = %d, want 0", ev.expired())
	}
}

func TestExtendFromWarning(t *testing.T) {
	m, clock, _ := newTestMonitor(t, DefaultConfig())

	clock.Advance(12 * time.Minute)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Fatalf("state = %q, want warning", got)
	}

	m.Extend()
	if got := m.State(); got != StateActive {
		t.Errorf("state after extend = %q, want active", got)
	}
	if got := m.Remaining(); got != 15*time.Minute {
		t.Errorf("remaining after extend = %s, want 15m", got)
	}
}

func TestEndExpiresImmediately(t *testing.T) {
	m, _, ev := newTestMonitor(t, DefaultConfig())

	m.End()
	if got := m.State(); got != StateExpired {
		t.Fatalf("state = %q, want expired", got)
	}
	if ev.expired() != 1 {
		t.Errorf("expired callbacks = %d, want 1", ev.expired())
	}

	// End is idempotent.
	m.End()
	if ev.expired() != 1 {
		t.Errorf("expired callbacks after second End = %d, want 1", ev.expired())
	}
}

// TestCountdownFloor covers waking up past the budget: the first tick shows
// a warning with at least the configured countdown instead of logging the
// user out with no notice.
func TestCountdownFloor(t *testing.T) {
	m, clock, ev := newTestMonitor(t, DefaultConfig())

	// Resume from sleep 20 minutes later, well past the budget.
	clock.Advance(20 * time.Minute)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Fatalf("state = %q, want warning", got)
	}
	if len(ev.warnings) != 1 || ev.warnings[0] != 60*time.Second {
		t.Errorf("warning countdown = %v, want [1m]", ev.warnings)
	}

	// The floor expires sixty seconds after the warning appeared.
	clock.Advance(59 * time.Second)
	m.Tick()
	if got := m.State(); got != StateWarning {
		t.Fatalf("state at floor-1s = %q, want warning", got)
	}
	clock.Advance(time.Second)
	m.Tick()
	if got := m.State(); got != StateExpired {
		t.Errorf("state at floor = %q, want expired", got)
	}
}

func TestStopHaltsTicker(t *testing.T) {
	m, _, _ := newTestMonitor(t, DefaultConfig())
	m.Start()
	m.Start() // second Start is a no-op

	m.Stop()
	m.Stop() // and Stop is idempotent

	// After Stop the background goroutine is gone; manual ticks still work
	// because Tick itself is just the state machine.
	if got := m.State(); got != StateActive {
		t.Errorf("state after stop = %q, want active", got)
	}
}

func TestRemaining(t *testing.T) {
	m, clock, _ := newTestMonitor(t, DefaultConfig())

	if got := m.Remaining(); got != 15*time.Minute {
		t.Errorf("remaining at start = %s, want 15m", got)
	}
	clock.Advance(5 * time.Minute)
	if got := m.Remaining(); got != 10*time.Minute {
		t.Errorf("remaining after 5m = %s, want 10m", got)
	}

	m.End()
	if got := m.Remaining(); got != 0 {
		t.Errorf("remaining after end = %s, want 0", got)
	}
}
