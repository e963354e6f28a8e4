package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus enumerates exam session states.
type SessionStatus string

const (
	SessionStatusRegistered   SessionStatus = "registered"
	SessionStatusInProgress   SessionStatus = "in_progress"
	SessionStatusSubmitted    SessionStatus = "submitted"
	SessionStatusDisqualified SessionStatus = "disqualified"
)

// Terminal reports whether no further mutation is allowed in this status.
func (s SessionStatus) Terminal() bool {
	return s == SessionStatusSubmitted || s == SessionStatusDisqualified
}

// ExamSession represents one examinee's attempt at an exam.
type ExamSession struct {
	ID             uuid.UUID     `json:"id"`
	ExamID         uuid.UUID     `json:"exam_id"`
	Name           string        `json:"name"`
	Email          string        `json:"email"`
	StudentID      *string       `json:"student_id,omitempty"`
	Status         SessionStatus `json:"status"`
	StartedAt      *time.Time    `json:"started_at,omitempty"`
	SubmittedAt    *time.Time    `json:"submitted_at,omitempty"`
	Score          *int          `json:"score"`
	TotalQuestions int           `json:"total_questions"`
	Answers        Answers       `json:"answers"`
	ViolationCount int           `json:"violation_count"`
	TimeTaken      *int          `json:"time_taken,omitempty"` // seconds
	ShuffleSeed    int64         `json:"shuffle_seed"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
}

// Clone returns a deep copy of the session.
func (s *ExamSession) Clone() *ExamSession {
	c := *s
	c.Answers = s.Answers.Clone()
	if s.StudentID != nil {
		v := *s.StudentID
		c.StudentID = &v
	}
	if s.StartedAt != nil {
		v := *s.StartedAt
		c.StartedAt = &v
	}
	if s.SubmittedAt != nil {
		v := *s.SubmittedAt
		c.SubmittedAt = &v
	}
	if s.Score != nil {
		v := *s.Score
		c.Score = &v
	}
	if s.TimeTaken != nil {
		v := *s.TimeTaken
		c.TimeTaken = &v
	}
	return &c
}

// SessionPatch is a partial update of a session. Nil fields are left as is.
type SessionPatch struct {
	Status         *SessionStatus
	StartedAt      *time.Time
	SubmittedAt    *time.Time
	Score          *int
	TotalQuestions *int
	Answers        Answers
	ViolationCount *int
	TimeTaken      *int
}

// Apply writes the patch onto s.
func (p SessionPatch) Apply(s *ExamSession) {
	if p.Status != nil {
		s.Status = *p.Status
	}
	if p.StartedAt != nil {
		v := *p.StartedAt
		s.StartedAt = &v
	}
	if p.SubmittedAt != nil {
		v := *p.SubmittedAt
		s.SubmittedAt = &v
	}
	if p.Score != nil {
		v := *p.Score
		s.Score = &v
	}
	if p.TotalQuestions != nil {
		s.TotalQuestions = *p.TotalQuestions
	}
	if p.Answers != nil {
		s.Answers = p.Answers.Clone()
	}
	if p.ViolationCount != nil && *p.ViolationCount > s.ViolationCount {
		s.ViolationCount = *p.ViolationCount
	}
	if p.TimeTaken != nil {
		v := *p.TimeTaken
		s.TimeTaken = &v
	}
}

// RegisterRequest is the examinee registration payload.
type RegisterRequest struct {
	Name      string  `json:"name" binding:"required,min=1,max=255"`
	Email     string  `json:"email" binding:"required,email,max=255"`
	StudentID *string `json:"student_id" binding:"omitempty,max=64"`
}
