// Package monitor turns integrity signals from the host environment into a
// bounded, monotonically increasing violation count with escalation.
package monitor

import (
	"sync"
	"time"
)

// SignalSource is the host environment the monitor listens to. Enable attaches
// the handler; Disable detaches it. Both must tolerate repeated calls.
type SignalSource interface {
	Enable(handler func(Signal))
	Disable()
}

// Config holds the escalation policy and callbacks of a Monitor.
type Config struct {
	// MaxViolations is the count at which OnDisqualify fires.
	MaxViolations int
	// InitialCount carries a stored count forward on resume.
	InitialCount int
	// Debounce drops repeats of the same signal type inside the window.
	// Zero disables debouncing.
	Debounce time.Duration

	OnViolation  func(sig Signal, count int)
	OnDisqualify func()

	Now func() time.Time
}

// Monitor counts violations reported by a SignalSource.
type Monitor struct {
	source SignalSource
	cfg    Config

	// emitMu serializes signal handling so callbacks see counts in order.
	emitMu sync.Mutex

	mu           sync.Mutex
	enabled      bool
	count        int
	disqualified bool
	lastSeen     map[Signal]time.Time
}

// New creates a disabled Monitor over source.
func New(source SignalSource, cfg Config) *Monitor {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Monitor{
		source:   source,
		cfg:      cfg,
		count:    cfg.InitialCount,
		lastSeen: make(map[Signal]time.Time),
	}
}

// Enable attaches the monitor to its source. Calling it twice is a no-op.
func (m *Monitor) Enable() {
	m.mu.Lock()
	if m.enabled {
		m.mu.Unlock()
		return
	}
	m.enabled = true
	m.mu.Unlock()

	m.source.Enable(m.handle)
}

// Disable detaches the monitor. Safe to call repeatedly and before Enable.
func (m *Monitor) Disable() {
	m.mu.Lock()
	wasEnabled := m.enabled
	m.enabled = false
	m.mu.Unlock()

	if wasEnabled {
		m.source.Disable()
	}
}

// Enabled reports whether the monitor is currently listening.
func (m *Monitor) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

// Count returns the current violation count.
func (m *Monitor) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.count
}

// Disqualified reports whether the escalation callback has fired.
func (m *Monitor) Disqualified() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.disqualified
}

func (m *Monitor) handle(sig Signal) {
	m.emitMu.Lock()
	defer m.emitMu.Unlock()

	m.mu.Lock()
	if !m.enabled {
		m.mu.Unlock()
		return
	}
	if m.cfg.Debounce > 0 {
		now := m.cfg.Now()
		if last, ok := m.lastSeen[sig]; ok && now.Sub(last) < m.cfg.Debounce {
			m.mu.Unlock()
			return
		}
		m.lastSeen[sig] = now
	}
	m.count++
	count := m.count
	escalate := false
	if count >= m.cfg.MaxViolations && !m.disqualified {
		m.disqualified = true
		escalate = true
	}
	m.mu.Unlock()

	// Callbacks run outside mu so they may call Disable.
	if m.cfg.OnViolation != nil {
		m.cfg.OnViolation(sig, count)
	}
	if escalate && m.cfg.OnDisqualify != nil {
		m.cfg.OnDisqualify()
	}
}
