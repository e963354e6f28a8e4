package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/store"
)

const uniqueViolation = "23505"

const sessionColumns = `id, exam_id, name, email, student_id, status, started_at, submitted_at,
		        score, total_questions, answers, violation_count, time_taken, shuffle_seed,
		        created_at, updated_at`

// ExamSessionRepository handles exam session data access.
type ExamSessionRepository struct {
	pool *pgxpool.Pool
}

// NewExamSessionRepository creates a new ExamSessionRepository.
func NewExamSessionRepository(pool *pgxpool.Pool) *ExamSessionRepository {
	return &ExamSessionRepository{pool: pool}
}

func scanSession(row pgx.Row) (*model.ExamSession, error) {
	s := &model.ExamSession{}
	err := row.Scan(&s.ID, &s.ExamID, &s.Name, &s.Email, &s.StudentID, &s.Status, &s.StartedAt, &s.SubmittedAt,
		&s.Score, &s.TotalQuestions, &s.Answers, &s.ViolationCount, &s.TimeTaken, &s.ShuffleSeed,
		&s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// FindSessionByEmail retrieves the session of an examinee for an exam.
func (r *ExamSessionRepository) FindSessionByEmail(ctx context.Context, examID uuid.UUID, email string) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+`
		 FROM exam_sessions
		 WHERE exam_id = $1 AND email = $2`, examID, store.NormalizeEmail(email),
	))
}

// GetSession retrieves a session by ID.
func (r *ExamSessionRepository) GetSession(ctx context.Context, id uuid.UUID) (*model.ExamSession, error) {
	return scanSession(r.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM exam_sessions WHERE id = $1`, id,
	))
}

// CreateSession inserts a new session. A second session for the same
// (exam, email) fails with store.ErrConflict.
func (r *ExamSessionRepository) CreateSession(ctx context.Context, s *model.ExamSession) error {
	s.Email = store.NormalizeEmail(s.Email)
	answers := s.Answers
	if answers == nil {
		answers = model.NewAnswers(s.TotalQuestions)
	}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO exam_sessions (exam_id, name, email, student_id, status, total_questions, answers, shuffle_seed)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at, updated_at`,
		s.ExamID, s.Name, s.Email, s.StudentID, s.Status, s.TotalQuestions, answers, s.ShuffleSeed,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return store.ErrConflict
	}
	return err
}

// UpdateSession applies a partial update to a non-terminal session. Updates
// aimed at a submitted or disqualified row fail with store.ErrTerminal, so a
// late checkpoint can never overwrite a final result. violation_count only
// grows.
func (r *ExamSessionRepository) UpdateSession(ctx context.Context, id uuid.UUID, p model.SessionPatch) error {
	var sets []string
	var args []any
	set := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if p.Status != nil {
		set("status = $%d", *p.Status)
	}
	if p.StartedAt != nil {
		set("started_at = $%d", *p.StartedAt)
	}
	if p.SubmittedAt != nil {
		set("submitted_at = $%d", *p.SubmittedAt)
	}
	if p.Score != nil {
		set("score = $%d", *p.Score)
	}
	if p.TotalQuestions != nil {
		set("total_questions = $%d", *p.TotalQuestions)
	}
	if p.Answers != nil {
		set("answers = $%d", p.Answers)
	}
	if p.ViolationCount != nil {
		set("violation_count = GREATEST(violation_count, $%d)", *p.ViolationCount)
	}
	if p.TimeTaken != nil {
		set("time_taken = $%d", *p.TimeTaken)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, id)

	tag, err := r.pool.Exec(ctx,
		`UPDATE exam_sessions SET `+strings.Join(sets, ", ")+`
		 WHERE id = $`+fmt.Sprint(len(args))+` AND status IN ('registered', 'in_progress')`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// Nothing matched: tell a missing row from a finalized one.
	var status model.SessionStatus
	err = r.pool.QueryRow(ctx, `SELECT status FROM exam_sessions WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	return fmt.Errorf("update session %s (%s): %w", id, status, store.ErrTerminal)
}
