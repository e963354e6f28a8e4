package monitor

import "sync"

// HostSource is a SignalSource fed by the transport layer: the connection
// handler calls Emit for every signal the client reports. Signals emitted
// while no handler is attached are dropped.
type HostSource struct {
	mu      sync.RWMutex
	handler func(Signal)
}

// NewHostSource returns a detached source.
func NewHostSource() *HostSource {
	return &HostSource{}
}

func (s *HostSource) Enable(handler func(Signal)) {
	s.mu.Lock()
	s.handler = handler
	s.mu.Unlock()
}

func (s *HostSource) Disable() {
	s.mu.Lock()
	s.handler = nil
	s.mu.Unlock()
}

// Emit delivers sig to the attached handler and reports whether one was
// attached.
func (s *HostSource) Emit(sig Signal) bool {
	s.mu.RLock()
	h := s.handler
	s.mu.RUnlock()
	if h == nil {
		return false
	}
	h(sig)
	return true
}
