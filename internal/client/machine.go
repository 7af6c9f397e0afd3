package client

import (
	"sync"
	"time"

	"github.com/polytrack/polytrack/internal/config"
)

// State is the connection lifecycle state.
type State int

const (
	// StateConnecting means a dial is in progress.
	StateConnecting State = iota
	// StateConnected means the feed is live.
	StateConnected
	// StateBackingOff means the last attempt failed and the next one is
	// waiting out its delay.
	StateBackingOff
	// StatePermanentlyFailed means the attempt budget is exhausted. The
	// machine never leaves this state.
	StatePermanentlyFailed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateBackingOff:
		return "backing_off"
	case StatePermanentlyFailed:
		return "permanently_failed"
	default:
		return "unknown"
	}
}

// Machine tracks reconnection state and computes backoff delays. Safe for
// concurrent use.
type Machine struct {
	cfg config.ReconnectConfig

	mu      sync.Mutex
	state   State
	attempt int
}

// NewMachine creates a machine in the connecting state.
func NewMachine(cfg config.ReconnectConfig) *Machine {
	return &Machine{cfg: cfg, state: StateConnecting}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Attempt returns the number of consecutive failures.
func (m *Machine) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Connecting marks a dial in progress. No-op once permanently failed.
func (m *Machine) Connecting() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != StatePermanentlyFailed {
		m.state = StateConnecting
	}
}

// Success marks a live connection and resets the failure counter, so a later
// disconnect starts the backoff ladder from the base delay again.
func (m *Machine) Success() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StatePermanentlyFailed {
		return
	}
	m.state = StateConnected
	m.attempt = 0
}

// Failure records a failed attempt. It returns the delay before the next
// attempt and true, or zero and false once the attempt budget is exhausted
// and the machine is permanently failed. MaxAttempts <= 0 means unbounded.
func (m *Machine) Failure() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StatePermanentlyFailed {
		return 0, false
	}

	m.attempt++
	if m.cfg.MaxAttempts > 0 && m.attempt >= m.cfg.MaxAttempts {
		m.state = StatePermanentlyFailed
		return 0, false
	}

	m.state = StateBackingOff
	return m.delayLocked(), true
}

// delayLocked doubles the base delay per consecutive failure, capped at the
// configured maximum. Caller holds the lock.
func (m *Machine) delayLocked() time.Duration {
	delay := m.cfg.BaseDelay
	for i := 1; i < m.attempt; i++ {
		delay *= 2
		if delay >= m.cfg.MaxDelay || delay <= 0 {
			return m.cfg.MaxDelay
		}
	}
	if delay > m.cfg.MaxDelay {
		return m.cfg.MaxDelay
	}
	return delay
}
