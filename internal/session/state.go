package session

import (
	"time"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitor"
)

// State is the examinee-facing step of a session.
type State string

const (
	StateLoading      State = "loading"
	StateNotFound     State = "not_found"
	StateRegistration State = "registration"
	StateInstructions State = "instructions"
	StateExam         State = "exam"
	StateSubmitted    State = "submitted"
	StateDisqualified State = "disqualified"
	// StateSubmitFailed is entered when the terminal write exhausted its
	// retries. The examinee may retry from here.
	StateSubmitFailed State = "submit_failed"
)

// Terminal reports whether no further transition can leave this state.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateDisqualified || s == StateNotFound
}

// EventType names a notification pushed to the host.
type EventType string

const (
	EventState            EventType = "state"
	EventTick             EventType = "tick"
	EventViolation        EventType = "violation"
	EventFullscreen       EventType = "fullscreen"
	EventCheckpointFailed EventType = "checkpoint_failed"
	EventResult           EventType = "result"
	EventError            EventType = "error"
)

// Event is a notification from a Machine to its host.
type Event struct {
	Type       EventType        `json:"type"`
	State      State            `json:"state,omitempty"`
	Remaining  *int             `json:"remaining,omitempty"`
	Violation  *ViolationNotice `json:"violation,omitempty"`
	Fullscreen *bool            `json:"fullscreen,omitempty"`
	Result     *Result          `json:"result,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// EventSink receives events outside the machine lock. It must not block for
// long.
type EventSink func(Event)

// ViolationNotice describes one counted violation.
type ViolationNotice struct {
	Type          monitor.Signal `json:"type"`
	Count         int            `json:"count"`
	MaxViolations int            `json:"max_violations"`
}

// Result is the outcome of a terminal transition.
type Result struct {
	SessionID      uuid.UUID           `json:"session_id"`
	Status         model.SessionStatus `json:"status"`
	Score          *int                `json:"score"`
	TotalQuestions int                 `json:"total_questions"`
	TimeTaken      *int                `json:"time_taken,omitempty"`
	ViolationCount int                 `json:"violation_count"`
	SubmittedAt    *time.Time          `json:"submitted_at,omitempty"`
	Auto           bool                `json:"auto"`
}

// Public returns a copy safe to show the examinee. The score is hidden unless
// the exam shows results immediately.
func (r *Result) Public(showScore bool) *Result {
	if r == nil {
		return nil
	}
	c := *r
	if !showScore {
		c.Score = nil
	}
	return &c
}

// SubmitSummary is shown before a manual submit. It never blocks submission.
type SubmitSummary struct {
	Total      int `json:"total"`
	Answered   int `json:"answered"`
	Unanswered int `json:"unanswered"`
	Flagged    int `json:"flagged"`
}

// View is a read-only snapshot of a Machine for the host.
type View struct {
	State          State                      `json:"state"`
	Exam           *model.ExamInfo            `json:"exam,omitempty"`
	SessionID      *uuid.UUID                 `json:"session_id,omitempty"`
	Name           string                     `json:"name,omitempty"`
	Questions      []model.QuestionForStudent `json:"questions,omitempty"`
	Answers        model.Answers              `json:"answers,omitempty"`
	Flags          []int                      `json:"flags,omitempty"`
	Cursor         int                        `json:"cursor"`
	Remaining      int                        `json:"remaining"`
	ViolationCount int                        `json:"violation_count"`
	Result         *Result                    `json:"result,omitempty"`
}
