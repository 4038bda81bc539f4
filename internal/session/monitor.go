// Package session implements the idle-session watchdog used by desktop and
// kiosk clients embedding this module. The server itself is stateless with
// respect to it: session expiry there is enforced by token lifetimes.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// State is the watchdog's lifecycle state.
type State string

const (
	StateActive  State = "active"
	StateWarning State = "warning"
	StateExpired State = "expired"
)

// Config controls the watchdog schedule. All three windows are configurable
// independently.
type Config struct {
	// IdleBudget is the total idle time before the session is forced out.
	IdleBudget time.Duration
	// WarningLead is how long before expiry the warning appears. The
	// countdown shown in the warning is seeded from the remaining time.
	WarningLead time.Duration
	// Countdown is the minimum countdown a warning will show. If the
	// process wakes up already past the budget (laptop resume), the user
	// still gets at least this long before the forced logout.
	Countdown time.Duration
}

// DefaultConfig returns the stock schedule: 15 minutes of idle budget, a
// warning 5 minutes before the end, and a 60-second countdown floor.
func DefaultConfig() Config {
	return Config{
		IdleBudget:  15 * time.Minute,
		WarningLead: 5 * time.Minute,
		Countdown:   60 * time.Second,
	}
}

// Validate checks that the schedule is coherent: the warning must fire
// strictly before the budget runs out, or the user never sees it.
func (c Config) Validate() error {
	if c.IdleBudget <= 0 {
		return errors.New("idle budget must be positive")
	}
	if c.WarningLead <= 0 {
		return errors.New("warning lead must be positive")
	}
	if c.Countdown <= 0 {
		return errors.New("countdown must be positive")
	}
	if c.WarningLead >= c.IdleBudget {
		return fmt.Errorf("warning lead %s must be shorter than idle budget %s", c.WarningLead, c.IdleBudget)
	}
	return nil
}

// Callbacks are invoked on state transitions. All are optional and are
// called without the monitor's lock held, so they may call back into the
// monitor. OnExpired is fire-and-forget: local state is already cleared
// when it runs, so a failing remote logout never blocks the local one.
type Callbacks struct {
	OnWarning       func(remaining time.Duration)
	OnCountdownTick func(remaining time.Duration)
	OnExpired       func()
}

// Monitor is the three-state idle watchdog: Active, Warning (countdown
// showing), Expired. A single mutex guards all state; transitions happen on
// discrete events (tick, Touch, Extend, End) so behavior is deterministic
// under test.
type Monitor struct {
	cfg       Config
	callbacks Callbacks

	mu           sync.Mutex
	now          func() time.Time
	state        State
	lastActivity time.Time
	warnedAt     time.Time
	stopCh       chan struct{}
	stopOnce     sync.Once
	started      bool
}

// NewMonitor creates a Monitor in the Active state. It does not start
// ticking until Start is called. The config must validate.
func NewMonitor(cfg Config, callbacks Callbacks) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("session monitor config: %w", err)
	}
	m := &Monitor{
		cfg:       cfg,
		callbacks: callbacks,
		now:       time.Now,
		state:     StateActive,
		stopCh:    make(chan struct{}),
	}
	m.lastActivity = m.now()
	return m, nil
}

// SetClock replaces the monitor's time source and resets the idle clock
// against it. Used by tests to drive the schedule deterministically.
func (m *Monitor) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
	m.lastActivity = now()
}

// Start begins watching with a 1-second tick. Calling Start twice is a
// no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.lastActivity = m.now()
	m.mu.Unlock()

	go m.run()
}

func (m *Monitor) run() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Stop deregisters the ticker goroutine completely. After Stop the monitor
// performs no further periodic work; it is called when authentication ends
// so no timers leak past logout.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

// State returns the current state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Remaining returns the time left before forced expiry, or zero once
// expired.
func (m *Monitor) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExpired {
		return 0
	}
	left := m.deadlineLocked().Sub(m.now())
	if left < 0 {
		return 0
	}
	return left
}

// deadlineLocked computes the instant of forced expiry. Normally that is
// lastActivity + IdleBudget; once a warning is showing, it never lands
// sooner than warnedAt + Countdown.
func (m *Monitor) deadlineLocked() time.Time {
	deadline := m.lastActivity.Add(m.cfg.IdleBudget)
	if m.state == StateWarning {
		if floor := m.warnedAt.Add(m.cfg.Countdown); floor.After(deadline) {
			deadline = floor
		}
	}
	return deadline
}

// Touch records user activity. In Active it pushes the idle deadline out;
// in Warning it dismisses the warning and returns to Active. Activity
// after expiry is ignored: the session is already gone.
func (m *Monitor) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateExpired {
		return
	}
	m.lastActivity = m.now()
	m.state = StateActive
	m.warnedAt = time.Time{}
}

// Extend is the explicit "stay signed in" action from the warning dialog.
// It behaves like Touch but is kept separate so callers can audit it.
func (m *Monitor) Extend() {
	m.Touch()
}

// End expires the session immediately, as on explicit logout from the
// warning dialog.
func (m *Monitor) End() {
	m.expire()
}

func (m *Monitor) expire() {
	m.mu.Lock()
	if m.state == StateExpired {
		m.mu.Unlock()
		return
	}
	m.state = StateExpired
	onExpired := m.callbacks.OnExpired
	m.mu.Unlock()

	if onExpired != nil {
		onExpired()
	}
}

// Tick advances the state machine against the current clock. The running
// goroutine calls it once per second; tests call it directly with an
// injected clock.
func (m *Monitor) Tick() {
	m.mu.Lock()

	switch m.state {
	case StateExpired:
		m.mu.Unlock()
		return

	case StateActive:
		idle := m.now().Sub(m.lastActivity)
		if idle < m.cfg.IdleBudget-m.cfg.WarningLead {
			m.mu.Unlock()
			return
		}
		m.state = StateWarning
		m.warnedAt = m.now()
		remaining := m.deadlineLocked().Sub(m.now())
		onWarning := m.callbacks.OnWarning
		m.mu.Unlock()
		if onWarning != nil {
			onWarning(remaining)
		}
		return

	case StateWarning:
		remaining := m.deadlineLocked().Sub(m.now())
		if remaining <= 0 {
			m.mu.Unlock()
			m.expire()
			return
		}
		onTick := m.callbacks.OnCountdownTick
		m.mu.Unlock()
		if onTick != nil {
			onTick(remaining)
		}
		return
	}

	m.mu.Unlock()
}
