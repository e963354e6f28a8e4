package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitor"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/store"
)

const feedTimeout = 2 * time.Second

// ErrSessionNotFound is returned when no stored session matches an id.
var ErrSessionNotFound = errors.New("session not found")

// Feed ships session activity off the process. Nil when running without Redis.
type Feed interface {
	EnqueueViolation(ctx context.Context, ev model.ViolationEvent) error
	Publish(ctx context.Context, examID uuid.UUID, v any) error
}

// MonitorMessage is what the live monitor channel carries for one session.
type MonitorMessage struct {
	Type      session.EventType        `json:"type"`
	ExamID    uuid.UUID                `json:"exam_id"`
	SessionID uuid.UUID                `json:"session_id"`
	Name      string                   `json:"name"`
	Email     string                   `json:"email"`
	State     session.State            `json:"state,omitempty"`
	Violation *session.ViolationNotice `json:"violation,omitempty"`
	Result    *session.Result          `json:"result,omitempty"`
	At        time.Time                `json:"at"`
}

// SessionService builds session machines and tracks the live ones, one per
// stored session.
type SessionService struct {
	store store.Store
	feed  Feed
	cfg   *config.Config
	log   zerolog.Logger

	mu   sync.Mutex
	live map[uuid.UUID]*liveSession
}

type liveSession struct {
	machine *session.Machine
	evict   func()
}

// NewSessionService creates a new SessionService. feed may be nil.
func NewSessionService(st store.Store, feed Feed, cfg *config.Config, log zerolog.Logger) *SessionService {
	return &SessionService{
		store: st,
		feed:  feed,
		cfg:   cfg,
		log:   log.With().Str("component", "session_service").Logger(),
		live:  make(map[uuid.UUID]*liveSession),
	}
}

// NewMachine creates a machine wired to the configured store, timings and
// feed. Events reach sink first, then the monitor channel.
func (s *SessionService) NewMachine(src monitor.SignalSource, sink session.EventSink) *session.Machine {
	var m *session.Machine
	m = session.New(session.Options{
		Store:        s.store,
		Source:       src,
		Log:          s.log,
		TickInterval: s.cfg.TickInterval,
		Debounce:     s.cfg.ViolationDebounce,
		Retry: session.RetryPolicy{
			MaxAttempts: s.cfg.FinalWriteAttempts,
			InitialWait: s.cfg.FinalWriteInitialWait,
			MaxWait:     s.cfg.FinalWriteMaxWait,
			Multiplier:  2,
		},
		Sink: func(ev session.Event) {
			if sink != nil {
				sink(ev)
			}
			s.relay(m, ev)
		},
		OnViolation: s.audit,
		Claim:       s.release,
	})
	return m
}

// relay forwards the events an invigilator cares about to the monitor channel.
func (s *SessionService) relay(m *session.Machine, ev session.Event) {
	if s.feed == nil || m == nil {
		return
	}
	switch ev.Type {
	case session.EventState, session.EventViolation, session.EventResult:
	default:
		return
	}
	who, ok := m.Examinee()
	if !ok {
		return
	}

	msg := MonitorMessage{
		Type:      ev.Type,
		ExamID:    who.ExamID,
		SessionID: who.SessionID,
		Name:      who.Name,
		Email:     who.Email,
		State:     ev.State,
		Violation: ev.Violation,
		Result:    ev.Result,
		At:        time.Now().UTC(),
	}
	ctx, cancel := context.WithTimeout(context.Background(), feedTimeout)
	defer cancel()
	if err := s.feed.Publish(ctx, who.ExamID, msg); err != nil {
		s.log.Warn().Err(err).Str("session_id", who.SessionID.String()).Msg("Monitor publish failed")
	}
}

// audit queues a counted violation for the audit log.
func (s *SessionService) audit(ev model.ViolationEvent) {
	if s.feed == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), feedTimeout)
	defer cancel()
	if err := s.feed.EnqueueViolation(ctx, ev); err != nil {
		s.log.Warn().Err(err).
			Str("session_id", ev.SessionID.String()).
			Str("type", ev.Type).
			Msg("Violation audit enqueue failed")
	}
}

// Attach registers m as the live machine of its session. A machine already
// live for the same session is evicted and closed, so one examinee never
// drives two machines at once. evict is called when m itself is displaced.
func (s *SessionService) Attach(m *session.Machine, evict func()) error {
	id := m.SessionID()
	if id == uuid.Nil {
		return session.ErrInvalidState
	}

	s.mu.Lock()
	prev := s.live[id]
	s.live[id] = &liveSession{machine: m, evict: evict}
	metrics.SessionsActive.Set(float64(len(s.live)))
	s.mu.Unlock()

	if prev != nil && prev.machine != m {
		s.displace(id, prev)
	}
	return nil
}

// release evicts the live machine of a session about to be resumed by a new
// one. It returns after the evicted machine has flushed its pending writes.
func (s *SessionService) release(id uuid.UUID) {
	s.mu.Lock()
	prev, ok := s.live[id]
	if ok {
		delete(s.live, id)
	}
	metrics.SessionsActive.Set(float64(len(s.live)))
	s.mu.Unlock()

	if ok {
		s.displace(id, prev)
	}
}

func (s *SessionService) displace(id uuid.UUID, prev *liveSession) {
	s.log.Info().Str("session_id", id.String()).Msg("Session reopened elsewhere, evicting previous connection")
	prev.machine.Close()
	if prev.evict != nil {
		prev.evict()
	}
}

// Detach forgets m if it is still the live machine of its session.
func (s *SessionService) Detach(m *session.Machine) {
	id := m.SessionID()
	if id == uuid.Nil {
		return
	}
	s.mu.Lock()
	if cur, ok := s.live[id]; ok && cur.machine == m {
		delete(s.live, id)
	}
	metrics.SessionsActive.Set(float64(len(s.live)))
	s.mu.Unlock()
}

// Live returns the live machine of a session, if any.
func (s *SessionService) Live(id uuid.UUID) (*session.Machine, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ls, ok := s.live[id]
	if !ok {
		return nil, false
	}
	return ls.machine, true
}

// LiveCount returns the number of attached machines.
func (s *SessionService) LiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.live)
}

// GetSession returns the stored record of a session.
func (s *SessionService) GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	sess, err := s.store.GetSession(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSessionNotFound
	}
	return sess, err
}

// Shutdown closes every live machine. Stored sessions stay resumable.
func (s *SessionService) Shutdown() {
	s.mu.Lock()
	live := make([]*liveSession, 0, len(s.live))
	for _, ls := range s.live {
		live = append(live, ls)
	}
	s.live = make(map[uuid.UUID]*liveSession)
	metrics.SessionsActive.Set(0)
	s.mu.Unlock()

	for _, ls := range live {
		ls.machine.Close()
		if ls.evict != nil {
			ls.evict()
		}
	}
	s.log.Info().Int("closed", len(live)).Msg("Live sessions closed")
}
