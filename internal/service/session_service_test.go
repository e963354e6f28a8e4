package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitor"
	"github.com/stemsi/exstem-proctor/internal/session"
	"github.com/stemsi/exstem-proctor/internal/store"
)

type fakeFeed struct {
	mu        sync.Mutex
	queued    []model.ViolationEvent
	published []MonitorMessage
}

func (f *fakeFeed) EnqueueViolation(_ context.Context, ev model.ViolationEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued = append(f.queued, ev)
	return nil
}

func (f *fakeFeed) Publish(_ context.Context, _ uuid.UUID, v any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := v.(MonitorMessage); ok {
		f.published = append(f.published, msg)
	}
	return nil
}

func (f *fakeFeed) messages(t session.EventType) []MonitorMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []MonitorMessage
	for _, m := range f.published {
		if m.Type == t {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeFeed) queuedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queued)
}

func testConfig() *config.Config {
	return &config.Config{
		TickInterval:          time.Second,
		FinalWriteAttempts:    3,
		FinalWriteInitialWait: time.Millisecond,
		FinalWriteMaxWait:     2 * time.Millisecond,
	}
}

func seededStore(t *testing.T) (*store.Memory, *model.Exam) {
	t.Helper()
	mem := store.NewMemory()
	exam := &model.Exam{
		Title:         "Physics",
		AccessCode:    "PHY-1",
		TimeLimit:     30,
		MaxViolations: 5,
		Status:        model.ExamStatusActive,
	}
	mem.PutExam(exam, []model.Question{
		{QuestionText: "g is", Options: []string{"9.8", "1"}, Answer: 0, OrderIndex: 1},
		{QuestionText: "c is", Options: []string{"3e8", "1"}, Answer: 0, OrderIndex: 2},
	})
	return mem, exam
}

func registered(t *testing.T, svc *SessionService, src monitor.SignalSource, email string) *session.Machine {
	t.Helper()
	m := svc.NewMachine(src, nil)
	t.Cleanup(m.Close)
	ctx := context.Background()
	require.NoError(t, m.Initiate(ctx, "phy-1"))
	require.NoError(t, m.Register(ctx, model.RegisterRequest{Name: "Wayan", Email: email}))
	return m
}

func TestSessionService_RelaysToFeed(t *testing.T) {
	mem, exam := seededStore(t)
	feed := &fakeFeed{}
	svc := NewSessionService(mem, feed, testConfig(), zerolog.Nop())

	src := monitor.NewHostSource()
	m := registered(t, svc, src, "wayan@example.com")
	require.NoError(t, m.BeginExam(context.Background()))

	src.Emit(monitor.SignalTabSwitch)

	require.Eventually(t, func() bool { return len(feed.messages(session.EventViolation)) == 1 }, time.Second, time.Millisecond)
	msg := feed.messages(session.EventViolation)[0]
	assert.Equal(t, exam.ID, msg.ExamID)
	assert.Equal(t, m.SessionID(), msg.SessionID)
	assert.Equal(t, "wayan@example.com", msg.Email)
	require.NotNil(t, msg.Violation)

	assert.Eventually(t, func() bool { return feed.queuedCount() == 1 }, time.Second, time.Millisecond)

	states := feed.messages(session.EventState)
	require.NotEmpty(t, states)
	assert.Equal(t, session.StateExam, states[len(states)-1].State)
}

func TestSessionService_NilFeed(t *testing.T) {
	mem, _ := seededStore(t)
	svc := NewSessionService(mem, nil, testConfig(), zerolog.Nop())

	var got []session.Event
	var mu sync.Mutex
	src := monitor.NewHostSource()
	m := svc.NewMachine(src, func(ev session.Event) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, ev)
	})
	t.Cleanup(m.Close)

	require.NoError(t, m.Initiate(context.Background(), "PHY-1"))
	mu.Lock()
	defer mu.Unlock()
	assert.NotEmpty(t, got)
}

func TestSessionService_AttachEvictsPrevious(t *testing.T) {
	mem, _ := seededStore(t)
	svc := NewSessionService(mem, nil, testConfig(), zerolog.Nop())

	first := registered(t, svc, monitor.NewHostSource(), "a@example.com")
	evicted := 0
	require.NoError(t, svc.Attach(first, func() { evicted++ }))
	assert.Equal(t, 1, svc.LiveCount())

	second := registered(t, svc, monitor.NewHostSource(), "a@example.com")
	require.Equal(t, first.SessionID(), second.SessionID())
	require.NoError(t, svc.Attach(second, nil))

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, svc.LiveCount())
	live, ok := svc.Live(second.SessionID())
	require.True(t, ok)
	assert.Same(t, second, live)

	// A stale machine detaching must not drop the newer one.
	svc.Detach(first)
	assert.Equal(t, 1, svc.LiveCount())

	svc.Detach(second)
	assert.Equal(t, 0, svc.LiveCount())
}

func TestSessionService_AttachRequiresSession(t *testing.T) {
	mem, _ := seededStore(t)
	svc := NewSessionService(mem, nil, testConfig(), zerolog.Nop())

	m := svc.NewMachine(monitor.NewHostSource(), nil)
	t.Cleanup(m.Close)
	assert.ErrorIs(t, svc.Attach(m, nil), session.ErrInvalidState)
}

func TestSessionService_GetSession(t *testing.T) {
	mem, exam := seededStore(t)
	svc := NewSessionService(mem, nil, testConfig(), zerolog.Nop())

	_, err := svc.GetSession(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	m := registered(t, svc, monitor.NewHostSource(), "b@example.com")
	sess, err := svc.GetSession(context.Background(), m.SessionID())
	require.NoError(t, err)
	assert.Equal(t, exam.ID, sess.ExamID)
	assert.Equal(t, "b@example.com", sess.Email)
}

func TestSessionService_Shutdown(t *testing.T) {
	mem, _ := seededStore(t)
	svc := NewSessionService(mem, nil, testConfig(), zerolog.Nop())

	src := monitor.NewHostSource()
	m := registered(t, svc, src, "c@example.com")
	require.NoError(t, m.BeginExam(context.Background()))
	evicted := false
	require.NoError(t, svc.Attach(m, func() { evicted = true }))

	svc.Shutdown()

	assert.True(t, evicted)
	assert.Equal(t, 0, svc.LiveCount())
	assert.False(t, src.Emit(monitor.SignalTabSwitch))
}

// slowStore delays session writes so a checkpoint is still in flight when
// the examinee reconnects.
type slowStore struct {
	*store.Memory
	delay time.Duration
}

func (s *slowStore) UpdateSession(ctx context.Context, id uuid.UUID, patch model.SessionPatch) error {
	time.Sleep(s.delay)
	return s.Memory.UpdateSession(ctx, id, patch)
}

func TestSessionService_ReconnectKeepsPendingCheckpoint(t *testing.T) {
	mem, _ := seededStore(t)
	st := &slowStore{Memory: mem, delay: 50 * time.Millisecond}
	svc := NewSessionService(st, nil, testConfig(), zerolog.Nop())
	ctx := context.Background()

	old := registered(t, svc, monitor.NewHostSource(), "d@example.com")
	evicted := false
	require.NoError(t, svc.Attach(old, func() { evicted = true }))
	require.NoError(t, old.BeginExam(ctx))
	require.NoError(t, old.SelectAnswer(0, 1))

	// Same order as the WebSocket host: register, attach, begin.
	next := registered(t, svc, monitor.NewHostSource(), "d@example.com")
	require.Equal(t, old.SessionID(), next.SessionID())
	assert.True(t, evicted, "previous machine is evicted before the resume reads the store")
	require.NoError(t, svc.Attach(next, nil))
	require.NoError(t, next.BeginExam(ctx))

	assert.True(t, next.Snapshot().Answers[0].Is(1))

	stored, err := mem.GetSession(ctx, next.SessionID())
	require.NoError(t, err)
	assert.True(t, stored.Answers[0].Is(1))
	assert.Equal(t, 1, svc.LiveCount())
}
