package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// Memory is an in-process Store with the same semantics as the PostgreSQL
// adapter. It backs tests and the single-node "memory" driver.
type Memory struct {
	mu        sync.Mutex
	exams     map[uuid.UUID]*model.Exam
	questions map[uuid.UUID][]model.Question
	sessions  map[uuid.UUID]*model.ExamSession

	// hook, when set, runs before every call and may fail it.
	hook func(op string) error
	// updates records every successful update, oldest first.
	updates []Update
}

// Update is a recorded UpdateSession call.
type Update struct {
	SessionID uuid.UUID
	Patch     model.SessionPatch
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		exams:     make(map[uuid.UUID]*model.Exam),
		questions: make(map[uuid.UUID][]model.Question),
		sessions:  make(map[uuid.UUID]*model.ExamSession),
	}
}

// PutExam seeds an exam with its questions.
func (m *Memory) PutExam(e *model.Exam, questions []model.Question) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	c := *e
	m.exams[e.ID] = &c
	qs := make([]model.Question, len(questions))
	for i, q := range questions {
		if q.ID == uuid.Nil {
			q.ID = uuid.New()
		}
		q.ExamID = e.ID
		qs[i] = q
	}
	sort.SliceStable(qs, func(i, j int) bool { return qs[i].OrderIndex < qs[j].OrderIndex })
	m.questions[e.ID] = qs
}

// SetHook installs a function consulted before each operation. Returning an
// error fails the operation with it. Pass nil to clear.
func (m *Memory) SetHook(hook func(op string) error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Updates returns the successful updates applied so far.
func (m *Memory) Updates() []Update {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Update, len(m.updates))
	copy(out, m.updates)
	return out
}

// SessionCount returns the number of sessions stored for (exam, email).
func (m *Memory) SessionCount(examID uuid.UUID, email string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	email = NormalizeEmail(email)
	n := 0
	for _, s := range m.sessions {
		if s.ExamID == examID && s.Email == email {
			n++
		}
	}
	return n
}

func (m *Memory) check(op string) error {
	if m.hook == nil {
		return nil
	}
	return m.hook(op)
}

func (m *Memory) FindExamByAccessCode(ctx context.Context, code string) (*model.Exam, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindExamByAccessCode"); err != nil {
		return nil, err
	}
	code = NormalizeAccessCode(code)
	for _, e := range m.exams {
		if NormalizeAccessCode(e.AccessCode) == code {
			c := *e
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("ListQuestions"); err != nil {
		return nil, err
	}
	qs := m.questions[examID]
	out := make([]model.Question, len(qs))
	copy(out, qs)
	return out, nil
}

func (m *Memory) FindSessionByEmail(ctx context.Context, examID uuid.UUID, email string) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("FindSessionByEmail"); err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	for _, s := range m.sessions {
		if s.ExamID == examID && s.Email == email {
			return s.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (m *Memory) CreateSession(ctx context.Context, s *model.ExamSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("CreateSession"); err != nil {
		return err
	}
	s.Email = NormalizeEmail(s.Email)
	for _, existing := range m.sessions {
		if existing.ExamID == s.ExamID && existing.Email == s.Email {
			return ErrConflict
		}
	}
	now := time.Now()
	s.ID = uuid.New()
	s.CreatedAt = now
	s.UpdatedAt = now
	m.sessions[s.ID] = s.Clone()
	return nil
}

func (m *Memory) UpdateSession(ctx context.Context, id uuid.UUID, patch model.SessionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("UpdateSession"); err != nil {
		return err
	}
	s, ok := m.sessions[id]
	if !ok {
		return ErrNotFound
	}
	if s.Status.Terminal() {
		return fmt.Errorf("update session %s: %w", id, ErrTerminal)
	}
	patch.Apply(s)
	s.UpdatedAt = time.Now()
	m.updates = append(m.updates, Update{SessionID: id, Patch: patch})
	return nil
}

func (m *Memory) GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("GetSession"); err != nil {
		return nil, err
	}
	s, ok := m.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s.Clone(), nil
}
