package model

import (
	"time"

	"github.com/google/uuid"
)

// ExamStatus enumerates the possible states of an exam.
type ExamStatus string

const (
	ExamStatusDraft     ExamStatus = "draft"
	ExamStatusScheduled ExamStatus = "scheduled"
	ExamStatusActive    ExamStatus = "active"
	ExamStatusCompleted ExamStatus = "completed"
	ExamStatusCancelled ExamStatus = "cancelled"
)

// AcceptsEntry reports whether examinees may enter an exam with this status.
func (s ExamStatus) AcceptsEntry() bool {
	return s == ExamStatusActive || s == ExamStatusScheduled
}

// Exam is the exam definition. It is authored elsewhere and read-only here.
type Exam struct {
	ID                     uuid.UUID  `json:"id"`
	Title                  string     `json:"title"`
	Subject                string     `json:"subject"`
	TimeLimit              int        `json:"time_limit"` // minutes
	MaxViolations          int        `json:"max_violations"`
	ShuffleQuestions       bool       `json:"shuffle_questions"`
	ShuffleOptions         bool       `json:"shuffle_options"`
	ShowResultsImmediately bool       `json:"show_results_immediately"`
	Status                 ExamStatus `json:"status"`
	AccessCode             string     `json:"access_code,omitempty"`
	CreatedAt              time.Time  `json:"created_at"`
	UpdatedAt              time.Time  `json:"updated_at"`
}

// TimeLimitSeconds returns the countdown length of the exam.
func (e *Exam) TimeLimitSeconds() int {
	return e.TimeLimit * 60
}

// ExamInfo is the public landing view of an exam (no questions, no access code).
type ExamInfo struct {
	ID            uuid.UUID  `json:"id"`
	Title         string     `json:"title"`
	Subject       string     `json:"subject"`
	TimeLimit     int        `json:"time_limit"`
	MaxViolations int        `json:"max_violations"`
	QuestionCount int        `json:"question_count"`
	Status        ExamStatus `json:"status"`
}
