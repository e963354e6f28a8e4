package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// Domain Errors
var (
	ErrExamNotFound     = errors.New("exam not found")
	ErrExamNotAvailable = errors.New("exam is not open for entry")
	ErrCacheUnsupported = errors.New("store has no cache to refresh")
)

// cacheInvalidator is implemented by stores that cache exam definitions.
type cacheInvalidator interface {
	Invalidate(ctx context.Context, exam *model.Exam) error
}

// ExamService serves read-only exam definitions to the landing page and
// lets staff drop stale cached copies.
type ExamService struct {
	store store.Store
	log   zerolog.Logger
}

// NewExamService creates a new ExamService.
func NewExamService(st store.Store, log zerolog.Logger) *ExamService {
	return &ExamService{
		store: st,
		log:   log.With().Str("component", "exam_service").Logger(),
	}
}

// GetInfo returns the public landing view of the exam behind an access code.
func (s *ExamService) GetInfo(ctx context.Context, accessCode string) (*model.ExamInfo, error) {
	exam, err := s.store.FindExamByAccessCode(ctx, store.NormalizeAccessCode(accessCode))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrExamNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find exam: %w", err)
	}
	if !exam.Status.AcceptsEntry() {
		return nil, ErrExamNotAvailable
	}

	questions, err := s.store.ListQuestions(ctx, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("list questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, ErrExamNotAvailable
	}

	return &model.ExamInfo{
		ID:            exam.ID,
		Title:         exam.Title,
		Subject:       exam.Subject,
		TimeLimit:     exam.TimeLimit,
		MaxViolations: exam.MaxViolations,
		QuestionCount: len(questions),
		Status:        exam.Status,
	}, nil
}

// RefreshCache drops the cached definition and questions of an exam so the
// next lookup reads the database. Sessions already in progress keep the
// presentation they started with.
func (s *ExamService) RefreshCache(ctx context.Context, accessCode string) error {
	inv, ok := s.store.(cacheInvalidator)
	if !ok {
		return ErrCacheUnsupported
	}

	exam, err := s.store.FindExamByAccessCode(ctx, store.NormalizeAccessCode(accessCode))
	if errors.Is(err, store.ErrNotFound) {
		return ErrExamNotFound
	}
	if err != nil {
		return fmt.Errorf("find exam: %w", err)
	}

	if err := inv.Invalidate(ctx, exam); err != nil {
		return fmt.Errorf("invalidate cache: %w", err)
	}
	s.log.Info().Str("exam_id", exam.ID.String()).Msg("Exam cache invalidated")
	return nil
}
