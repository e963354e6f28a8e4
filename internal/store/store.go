// Package store defines the contract between an exam session and the durable
// persistence service.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/model"
)

var (
	// ErrNotFound is returned when a lookup matches nothing.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a session already exists for (exam, email).
	ErrConflict = errors.New("session already exists")
	// ErrTerminal is returned when an update targets a submitted or
	// disqualified session.
	ErrTerminal = errors.New("session is terminal")
)

// Store is the calling contract toward the persistence collaborator.
// Every call may fail transiently; callers decide whether to retry.
type Store interface {
	FindExamByAccessCode(ctx context.Context, code string) (*model.Exam, error)
	// ListQuestions returns the exam's questions ordered by order_index.
	ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error)
	FindSessionByEmail(ctx context.Context, examID uuid.UUID, email string) (*model.ExamSession, error)
	// CreateSession assigns ID and timestamps on success.
	CreateSession(ctx context.Context, s *model.ExamSession) error
	UpdateSession(ctx context.Context, id uuid.UUID, patch model.SessionPatch) error
	GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error)
}

// NormalizeEmail is the canonical form used to key sessions by examinee.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizeAccessCode is the canonical form of an access code.
func NormalizeAccessCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
