// Package session drives one examinee through an exam: registration, the
// timed and monitored exam itself, and the single durable terminal write.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitor"
	"github.com/stemsi/exstem-proctor/internal/shuffle"
	"github.com/stemsi/exstem-proctor/internal/store"
	"github.com/stemsi/exstem-proctor/internal/validator"
)

// Options configures a Machine. Store is required.
type Options struct {
	Store  store.Store
	Source monitor.SignalSource
	Sink   EventSink
	Log    zerolog.Logger

	// Now defaults to time.Now.
	Now func() time.Time
	// TickInterval is the real duration of one countdown second.
	TickInterval time.Duration
	// Debounce drops repeated violations of one type inside the window.
	Debounce time.Duration
	Retry    RetryPolicy

	// OnViolation receives every counted violation, e.g. for an audit log.
	OnViolation func(model.ViolationEvent)
	// Claim runs before an existing session is resumed. It must return only
	// once no other machine can write to that session.
	Claim func(sessionID uuid.UUID)
}

// Machine is the state machine of one exam session. All methods are safe for
// concurrent use; the countdown and the monitor call into it from their own
// goroutines.
type Machine struct {
	store       store.Store
	source      monitor.SignalSource
	sink        EventSink
	log         zerolog.Logger
	now         func() time.Time
	tick        time.Duration
	debounce    time.Duration
	retry       RetryPolicy
	onViolation func(model.ViolationEvent)
	claim       func(uuid.UUID)

	mu        sync.Mutex
	state     State
	exam      *model.Exam
	questions []model.Question
	presented []model.PresentedQuestion
	seed      int64
	sess      *model.ExamSession
	answers   model.Answers
	flags     map[int]struct{}
	cursor    int
	remaining int

	starting   bool
	finalizing bool // a terminal transition has been claimed
	writing    bool // a terminal write is in flight
	closed     bool
	pending    *terminal
	result     *Result

	mon    *monitor.Monitor
	timer  *countdown
	writer *writeQueue
}

type terminal struct {
	status model.SessionStatus
	patch  model.SessionPatch
	auto   bool
}

// New creates a Machine in the loading state.
func New(opts Options) *Machine {
	if opts.Source == nil {
		opts.Source = monitor.NewHostSource()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.Retry == (RetryPolicy{}) {
		opts.Retry = DefaultRetryPolicy
	}
	return &Machine{
		store:       opts.Store,
		source:      opts.Source,
		sink:        opts.Sink,
		log:         opts.Log.With().Str("component", "session").Logger(),
		now:         opts.Now,
		tick:        opts.TickInterval,
		debounce:    opts.Debounce,
		retry:       opts.Retry.withDefaults(),
		onViolation: opts.OnViolation,
		claim:       opts.Claim,
		state:       StateLoading,
	}
}

// ─── Accessors ──────────────────────────────────────────────────────────────

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SessionID returns the adopted session id, or uuid.Nil before registration.
func (m *Machine) SessionID() uuid.UUID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return uuid.Nil
	}
	return m.sess.ID
}

// Exam returns the loaded exam, or nil before Initiate succeeds.
func (m *Machine) Exam() *model.Exam {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exam == nil {
		return nil
	}
	e := *m.exam
	return &e
}

// Result returns the terminal result, or nil while not finalized.
func (m *Machine) Result() *Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.result == nil {
		return nil
	}
	r := *m.result
	return &r
}

// Presented returns the questions in presentation order, answer keys included.
func (m *Machine) Presented() []model.PresentedQuestion {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.PresentedQuestion, len(m.presented))
	copy(out, m.presented)
	return out
}

// Examinee identifies an adopted session to observers.
type Examinee struct {
	ExamID    uuid.UUID `json:"exam_id"`
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
}

// Examinee reports who the machine is serving. ok is false before
// registration completes.
func (m *Machine) Examinee() (e Examinee, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sess == nil {
		return Examinee{}, false
	}
	return Examinee{
		ExamID:    m.sess.ExamID,
		SessionID: m.sess.ID,
		Name:      m.sess.Name,
		Email:     m.sess.Email,
	}, true
}

// ─── Entry ──────────────────────────────────────────────────────────────────

// Initiate resolves the access code and prepares the presentation.
func (m *Machine) Initiate(ctx context.Context, accessCode string) error {
	m.mu.Lock()
	if m.state != StateLoading {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("initiate in %s: %w", state, ErrInvalidState)
	}
	m.mu.Unlock()

	exam, err := m.store.FindExamByAccessCode(ctx, accessCode)
	if errors.Is(err, store.ErrNotFound) {
		return m.notFound("no exam matches access code")
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("Exam lookup failed")
		return fmt.Errorf("%w: find exam: %w", ErrTransientStore, err)
	}
	if !exam.Status.AcceptsEntry() {
		return m.notFound("exam is " + string(exam.Status))
	}

	questions, err := m.store.ListQuestions(ctx, exam.ID)
	if err != nil {
		m.log.Warn().Err(err).Str("exam_id", exam.ID.String()).Msg("Question lookup failed")
		return fmt.Errorf("%w: list questions: %w", ErrTransientStore, err)
	}
	if len(questions) == 0 {
		return m.notFound("exam has no questions")
	}

	seed := m.now().UnixMilli()
	presented := shuffle.Present(questions, shuffle.PolicyFor(exam), seed)

	m.mu.Lock()
	if m.state != StateLoading {
		m.mu.Unlock()
		return ErrInvalidState
	}
	m.exam = exam
	m.questions = questions
	m.presented = presented
	m.seed = seed
	m.state = StateRegistration
	m.log = m.log.With().Str("exam_id", exam.ID.String()).Logger()
	m.mu.Unlock()

	m.publish(stateEvent(StateRegistration))
	return nil
}

func (m *Machine) notFound(reason string) error {
	m.mu.Lock()
	if m.state == StateLoading {
		m.state = StateNotFound
	}
	m.mu.Unlock()
	m.publish(stateEvent(StateNotFound))
	return fmt.Errorf("%w: %s", ErrNotFound, reason)
}

// Register creates the examinee's session or resumes a non-terminal one.
func (m *Machine) Register(ctx context.Context, in model.RegisterRequest) error {
	m.mu.Lock()
	if m.state != StateRegistration {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("register in %s: %w", state, ErrInvalidState)
	}
	exam := m.exam
	seed := m.seed
	total := len(m.presented)
	m.mu.Unlock()

	in.Name = strings.TrimSpace(in.Name)
	in.Email = store.NormalizeEmail(in.Email)
	if in.StudentID != nil {
		id := strings.TrimSpace(*in.StudentID)
		in.StudentID = &id
		if id == "" {
			in.StudentID = nil
		}
	}
	if fields := validator.Struct(&in); fields != nil {
		return &ValidationError{Fields: fields}
	}

	resumed := true
	sess, err := m.store.FindSessionByEmail(ctx, exam.ID, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		sess, resumed, err = m.createSession(ctx, exam, in, seed, total)
	}
	if err == nil && resumed && !sess.Status.Terminal() && m.claim != nil {
		// A previous machine may still be flushing answers. Read the row
		// again once it has stopped.
		m.claim(sess.ID)
		sess, err = m.store.GetSession(ctx, sess.ID)
	}
	if err != nil {
		if errors.Is(err, ErrTransientStore) {
			return err
		}
		m.log.Warn().Err(err).Msg("Session lookup failed")
		return fmt.Errorf("%w: find session: %w", ErrTransientStore, err)
	}
	if sess.Status.Terminal() {
		m.log.Info().
			Str("session_id", sess.ID.String()).
			Str("status", string(sess.Status)).
			Msg("Registration refused, session already finalized")
		return ErrTerminalConflict
	}

	return m.adopt(sess, resumed)
}

// createSession inserts a new session. resumed is true when a concurrent
// registration of the same email won and its row is returned instead.
func (m *Machine) createSession(ctx context.Context, exam *model.Exam, in model.RegisterRequest, seed int64, total int) (sess *model.ExamSession, resumed bool, err error) {
	sess = &model.ExamSession{
		ExamID:         exam.ID,
		Name:           in.Name,
		Email:          in.Email,
		StudentID:      in.StudentID,
		Status:         model.SessionStatusRegistered,
		TotalQuestions: total,
		Answers:        model.NewAnswers(total),
		ShuffleSeed:    seed,
	}
	err = m.store.CreateSession(ctx, sess)
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent registration of the same email.
		sess, err = m.store.FindSessionByEmail(ctx, exam.ID, in.Email)
		return sess, true, err
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("Session create failed")
		return nil, false, fmt.Errorf("%w: create session: %w", ErrTransientStore, err)
	}
	return sess, false, nil
}

func (m *Machine) adopt(sess *model.ExamSession, resumed bool) error {
	m.mu.Lock()
	if m.state != StateRegistration {
		m.mu.Unlock()
		return ErrInvalidState
	}
	if sess.ShuffleSeed != 0 && sess.ShuffleSeed != m.seed {
		m.seed = sess.ShuffleSeed
		m.presented = shuffle.Present(m.questions, shuffle.PolicyFor(m.exam), m.seed)
	}
	n := len(m.presented)
	m.answers = sess.Answers.Resized(n)
	sess.Answers = m.answers.Clone()
	sess.TotalQuestions = n
	m.sess = sess
	m.log = m.log.With().Str("session_id", sess.ID.String()).Logger()
	m.writer = newWriteQueue(m.store, sess.ID, m.retry, m.log, m.checkpointFailed)
	m.state = StateInstructions
	log := m.log
	m.mu.Unlock()

	if resumed {
		log.Info().Int("answered", sess.Answers.Answered()).Msg("Session resumed")
	} else {
		log.Info().Msg("Session registered")
	}
	m.publish(stateEvent(StateInstructions))
	return nil
}

// BeginExam starts the timed exam.
func (m *Machine) BeginExam(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateInstructions || m.starting || m.closed {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("begin in %s: %w", state, ErrInvalidState)
	}
	m.starting = true
	now := m.now()
	started := now
	if m.sess.Status == model.SessionStatusInProgress && m.sess.StartedAt != nil {
		started = *m.sess.StartedAt
	}
	status := model.SessionStatusInProgress
	total := len(m.presented)
	patch := model.SessionPatch{
		Status:         &status,
		StartedAt:      &started,
		TotalQuestions: &total,
		Answers:        m.answers.Clone(),
	}
	w := m.writer
	m.mu.Unlock()

	if err := w.Do(ctx, patch); err != nil {
		m.mu.Lock()
		m.starting = false
		m.mu.Unlock()
		if errors.Is(err, store.ErrTerminal) {
			return ErrTerminalConflict
		}
		m.log.Warn().Err(err).Msg("Session start failed")
		return fmt.Errorf("%w: start session: %w", ErrTransientStore, err)
	}

	m.mu.Lock()
	m.starting = false
	if m.state != StateInstructions || m.closed {
		m.mu.Unlock()
		return ErrInvalidState
	}
	patch.Apply(m.sess)

	limit := m.exam.TimeLimitSeconds()
	remaining := limit - int(now.Sub(started)/time.Second)
	remaining = max(0, min(limit, remaining))
	m.remaining = remaining
	m.flags = make(map[int]struct{})
	m.cursor = 0
	m.state = StateExam

	m.mon = monitor.New(m.source, monitor.Config{
		MaxViolations: m.exam.MaxViolations,
		InitialCount:  m.sess.ViolationCount,
		Debounce:      m.debounce,
		OnViolation:   m.violation,
		OnDisqualify:  m.escalate,
		Now:           m.now,
	})
	// A resumed session may already be out of time or over the limit.
	expired := remaining == 0
	overLimit := m.sess.ViolationCount > 0 && m.sess.ViolationCount >= m.exam.MaxViolations
	if !expired && !overLimit {
		m.timer = startCountdown(m.tick, m.onTick)
		m.mon.Enable()
	}
	log := m.log
	m.mu.Unlock()

	metrics.SessionsStarted.Inc()
	log.Info().Int("remaining", remaining).Time("started_at", started).Msg("Exam started")
	on := true
	m.publish(
		stateEvent(StateExam),
		Event{Type: EventFullscreen, Fullscreen: &on},
		Event{Type: EventTick, Remaining: &remaining},
	)

	switch {
	case overLimit:
		return m.Disqualify(ctx)
	case expired:
		_, err := m.Submit(ctx, true)
		return err
	}
	return nil
}

// ─── Exam ───────────────────────────────────────────────────────────────────

func (m *Machine) requireExamLocked() error {
	if m.state != StateExam || m.finalizing || m.closed {
		return fmt.Errorf("%s: %w", m.state, ErrInvalidState)
	}
	return nil
}

func (m *Machine) checkQuestionLocked(q int) error {
	if q < 0 || q >= len(m.presented) {
		return fmt.Errorf("question %d of %d: %w", q, len(m.presented), ErrOutOfRange)
	}
	return nil
}

// checkpointLocked is the full mutable projection written by a checkpoint.
func (m *Machine) checkpointLocked() model.SessionPatch {
	count := m.sess.ViolationCount
	return model.SessionPatch{Answers: m.answers.Clone(), ViolationCount: &count}
}

// SelectAnswer records an answer and schedules a best-effort checkpoint.
func (m *Machine) SelectAnswer(question, option int) error {
	m.mu.Lock()
	if err := m.requireExamLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if err := m.checkQuestionLocked(question); err != nil {
		m.mu.Unlock()
		return err
	}
	if n := len(m.presented[question].Options); option < 0 || option >= n {
		m.mu.Unlock()
		return fmt.Errorf("option %d of %d: %w", option, n, ErrOutOfRange)
	}
	m.answers[question] = model.Chosen(option)
	patch := m.checkpointLocked()
	w := m.writer
	m.mu.Unlock()

	w.Checkpoint(patch)
	return nil
}

// ToggleFlag marks or unmarks a question for review.
func (m *Machine) ToggleFlag(question int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireExamLocked(); err != nil {
		return false, err
	}
	if err := m.checkQuestionLocked(question); err != nil {
		return false, err
	}
	if _, ok := m.flags[question]; ok {
		delete(m.flags, question)
		return false, nil
	}
	m.flags[question] = struct{}{}
	return true, nil
}

// Navigate moves the current-question cursor.
func (m *Machine) Navigate(question int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.requireExamLocked(); err != nil {
		return err
	}
	if err := m.checkQuestionLocked(question); err != nil {
		return err
	}
	m.cursor = question
	return nil
}

// Flags returns the flagged question indices in ascending order.
func (m *Machine) Flags() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.flagsLocked()
}

func (m *Machine) flagsLocked() []int {
	out := make([]int, 0, len(m.flags))
	for q := range m.flags {
		out = append(out, q)
	}
	sort.Ints(out)
	return out
}

// ConfirmSubmit summarizes the answer sheet ahead of a manual submit.
func (m *Machine) ConfirmSubmit() SubmitSummary {
	m.mu.Lock()
	defer m.mu.Unlock()
	answered := m.answers.Answered()
	return SubmitSummary{
		Total:      len(m.answers),
		Answered:   answered,
		Unanswered: len(m.answers) - answered,
		Flagged:    len(m.flags),
	}
}

func (m *Machine) onTick() bool {
	m.mu.Lock()
	if m.state != StateExam || m.finalizing || m.closed {
		m.mu.Unlock()
		return false
	}
	if m.remaining > 0 {
		m.remaining--
	}
	remaining := m.remaining
	m.mu.Unlock()

	m.publish(Event{Type: EventTick, Remaining: &remaining})
	if remaining > 0 {
		return true
	}
	if _, err := m.Submit(context.Background(), true); err != nil {
		m.log.Error().Err(err).Msg("Auto-submit failed")
	}
	return false
}

func (m *Machine) violation(sig monitor.Signal, count int) {
	m.mu.Lock()
	if m.sess == nil {
		m.mu.Unlock()
		return
	}
	if count > m.sess.ViolationCount {
		m.sess.ViolationCount = count
	}
	ev := model.ViolationEvent{
		SessionID:  m.sess.ID,
		ExamID:     m.exam.ID,
		Type:       string(sig),
		Count:      count,
		OccurredAt: m.now(),
	}
	notice := &ViolationNotice{Type: sig, Count: count, MaxViolations: m.exam.MaxViolations}
	var patch *model.SessionPatch
	if !m.finalizing && !m.closed {
		p := m.checkpointLocked()
		patch = &p
	}
	w := m.writer
	log := m.log
	m.mu.Unlock()

	metrics.ViolationsTotal.WithLabelValues(string(sig)).Inc()
	log.Warn().Str("type", string(sig)).Int("count", count).Msg("Integrity violation")
	if m.onViolation != nil {
		m.onViolation(ev)
	}
	m.publish(Event{Type: EventViolation, Violation: notice})
	if patch != nil {
		w.Checkpoint(*patch)
	}
}

func (m *Machine) escalate() {
	if err := m.Disqualify(context.Background()); err != nil {
		m.log.Error().Err(err).Msg("Disqualification failed")
	}
}

func (m *Machine) checkpointFailed(err error) {
	m.publish(Event{Type: EventCheckpointFailed, Error: err.Error()})
}

// ─── Finalization ───────────────────────────────────────────────────────────

// Submit scores the answer sheet and persists the submitted session. The
// first terminal transition wins: once finalized, Submit returns the stored
// result without writing again. A nil result with a nil error means another
// terminal transition is in flight; its outcome arrives as events.
func (m *Machine) Submit(ctx context.Context, auto bool) (*Result, error) {
	m.mu.Lock()
	switch {
	case m.state == StateSubmitted || m.state == StateDisqualified:
		r := m.result
		m.mu.Unlock()
		return r, nil
	case m.state == StateSubmitFailed:
		m.mu.Unlock()
		return m.RetryFinalize(ctx)
	case m.finalizing:
		m.mu.Unlock()
		return nil, nil
	case m.state != StateExam || m.closed:
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("submit in %s: %w", state, ErrInvalidState)
	}

	// Escalation already fired but has not claimed yet; it takes precedence.
	status := model.SessionStatusSubmitted
	if m.mon.Disqualified() {
		status = model.SessionStatusDisqualified
	}
	t := m.claimLocked(status, auto)
	m.mu.Unlock()

	return m.finalize(ctx, t)
}

// Disqualify ends the exam as disqualified. It is a no-op once a terminal
// transition has been claimed.
func (m *Machine) Disqualify(ctx context.Context) error {
	m.mu.Lock()
	if m.finalizing || m.state != StateExam {
		m.mu.Unlock()
		return nil
	}
	t := m.claimLocked(model.SessionStatusDisqualified, false)
	m.mu.Unlock()

	_, err := m.finalize(ctx, t)
	return err
}

// RetryFinalize repeats the failed terminal write with the same snapshot.
func (m *Machine) RetryFinalize(ctx context.Context) (*Result, error) {
	m.mu.Lock()
	if m.state != StateSubmitFailed || m.pending == nil {
		state := m.state
		m.mu.Unlock()
		return nil, fmt.Errorf("retry in %s: %w", state, ErrInvalidState)
	}
	if m.writing {
		m.mu.Unlock()
		return nil, nil
	}
	m.writing = true
	t := m.pending
	m.mu.Unlock()

	m.log.Info().Str("status", string(t.status)).Msg("Retrying terminal write")
	return m.finalize(ctx, t)
}

// claimLocked freezes the session for its terminal write.
func (m *Machine) claimLocked(status model.SessionStatus, auto bool) *terminal {
	m.finalizing = true
	m.writing = true
	m.timer.Stop()
	m.mon.Disable()

	count := max(m.mon.Count(), m.sess.ViolationCount)
	m.sess.ViolationCount = count
	patch := model.SessionPatch{
		Status:         &status,
		Answers:        m.answers.Clone(),
		ViolationCount: &count,
	}
	if status == model.SessionStatusSubmitted {
		now := m.now()
		score := Score(m.presented, m.answers)
		total := len(m.presented)
		taken := m.exam.TimeLimitSeconds() - m.remaining
		patch.SubmittedAt = &now
		patch.Score = &score
		patch.TotalQuestions = &total
		patch.TimeTaken = &taken
	}
	t := &terminal{status: status, patch: patch, auto: auto}
	m.pending = t
	return t
}

func (m *Machine) finalize(ctx context.Context, t *terminal) (*Result, error) {
	start := time.Now()
	err := m.writer.Final(ctx, t.patch)

	m.mu.Lock()
	m.writing = false
	if err != nil {
		m.state = StateSubmitFailed
		log := m.log
		m.mu.Unlock()

		metrics.FinalWriteDuration.WithLabelValues("failed").Observe(time.Since(start).Seconds())
		log.Error().Err(err).Str("status", string(t.status)).Msg("Terminal write failed")
		m.publish(
			stateEvent(StateSubmitFailed),
			Event{Type: EventError, Error: ErrFatalStore.Error()},
		)
		return nil, fmt.Errorf("%w: %w", ErrFatalStore, err)
	}

	t.patch.Apply(m.sess)
	m.pending = nil
	if t.status == model.SessionStatusDisqualified {
		m.state = StateDisqualified
	} else {
		m.state = StateSubmitted
	}
	res := &Result{
		SessionID:      m.sess.ID,
		Status:         m.sess.Status,
		Score:          m.sess.Score,
		TotalQuestions: m.sess.TotalQuestions,
		TimeTaken:      m.sess.TimeTaken,
		ViolationCount: m.sess.ViolationCount,
		SubmittedAt:    m.sess.SubmittedAt,
		Auto:           t.auto,
	}
	m.result = res
	state := m.state
	show := m.exam.ShowResultsImmediately
	log := m.log
	m.mu.Unlock()

	trigger := "manual"
	switch {
	case t.status == model.SessionStatusDisqualified:
		trigger = "violations"
	case t.auto:
		trigger = "timer"
	}
	metrics.FinalWriteDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	metrics.SessionsFinalized.WithLabelValues(string(t.status), trigger).Inc()
	if res.Score != nil && res.TotalQuestions > 0 {
		metrics.ScoreRatio.Observe(float64(*res.Score) / float64(res.TotalQuestions))
	}

	ev := log.Info().Str("status", string(res.Status)).Str("trigger", trigger).Int("violations", res.ViolationCount)
	if res.Score != nil {
		ev = ev.Int("score", *res.Score).Int("total", res.TotalQuestions)
	}
	ev.Msg("Session finalized")

	off := false
	m.publish(
		Event{Type: EventFullscreen, Fullscreen: &off},
		stateEvent(state),
		Event{Type: EventResult, Result: res.Public(show)},
	)
	return res, nil
}

// Score counts the slots whose option equals the presented correct answer.
func Score(presented []model.PresentedQuestion, answers model.Answers) int {
	score := 0
	for i, q := range presented {
		if i < len(answers) && answers[i].Is(q.Answer) {
			score++
		}
	}
	return score
}

// ─── Host ───────────────────────────────────────────────────────────────────

// Snapshot returns the examinee's view of the session.
func (m *Machine) Snapshot() View {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := View{State: m.state, Cursor: m.cursor, Remaining: m.remaining}
	if m.exam != nil {
		v.Exam = &model.ExamInfo{
			ID:            m.exam.ID,
			Title:         m.exam.Title,
			Subject:       m.exam.Subject,
			TimeLimit:     m.exam.TimeLimit,
			MaxViolations: m.exam.MaxViolations,
			QuestionCount: len(m.presented),
			Status:        m.exam.Status,
		}
	}
	if m.sess != nil {
		id := m.sess.ID
		v.SessionID = &id
		v.Name = m.sess.Name
		v.ViolationCount = m.sess.ViolationCount
		v.Answers = m.answers.Clone()
	}
	if m.state == StateExam || m.state == StateSubmitFailed {
		v.Questions = make([]model.QuestionForStudent, len(m.presented))
		for i, q := range m.presented {
			v.Questions[i] = q.ForStudent(i)
		}
		v.Flags = m.flagsLocked()
	}
	if m.result != nil {
		v.Result = m.result.Public(m.exam.ShowResultsImmediately)
	}
	return v
}

// Close stops the countdown and the monitor and flushes pending writes. The
// stored session stays resumable.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.timer.Stop()
	if m.mon != nil {
		m.mon.Disable()
	}
	w := m.writer
	m.mu.Unlock()

	if w != nil {
		w.Close()
	}
}

func (m *Machine) publish(events ...Event) {
	if m.sink == nil {
		return
	}
	for _, e := range events {
		m.sink(e)
	}
}

func stateEvent(s State) Event {
	return Event{Type: EventState, State: s}
}
