package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// ExamRepository reads exam definitions. Exams are authored elsewhere; the
// only write path is the seed importer.
type ExamRepository struct {
	pool *pgxpool.Pool
}

// NewExamRepository creates a new ExamRepository.
func NewExamRepository(pool *pgxpool.Pool) *ExamRepository {
	return &ExamRepository{pool: pool}
}

// FindExamByAccessCode retrieves the exam behind an access code.
// Codes compare case-insensitively.
func (r *ExamRepository) FindExamByAccessCode(ctx context.Context, code string) (*model.Exam, error) {
	e := &model.Exam{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, title, subject, time_limit, max_violations,
		        shuffle_questions, shuffle_options, show_results_immediately,
		        status, access_code, created_at, updated_at
		 FROM exams WHERE upper(access_code) = $1`, store.NormalizeAccessCode(code),
	).Scan(&e.ID, &e.Title, &e.Subject, &e.TimeLimit, &e.MaxViolations,
		&e.ShuffleQuestions, &e.ShuffleOptions, &e.ShowResultsImmediately,
		&e.Status, &e.AccessCode, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find exam by access code: %w", err)
	}
	return e, nil
}

// ImportExam inserts a seed exam and its questions in one transaction.
// It returns false without writing when an exam with the same access code
// already exists, so repeated imports are harmless.
func (r *ExamRepository) ImportExam(ctx context.Context, e *store.SeedExam) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO exams (title, subject, time_limit, max_violations,
		                    shuffle_questions, shuffle_options, show_results_immediately,
		                    status, access_code)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT ((upper(access_code))) DO NOTHING
		 RETURNING id, created_at, updated_at`,
		e.Title, e.Subject, e.TimeLimit, e.MaxViolations,
		e.ShuffleQuestions, e.ShuffleOptions, e.ShowResultsImmediately,
		e.Status, e.AccessCode,
	).Scan(&e.ID, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert exam %q: %w", e.AccessCode, err)
	}

	rows := make([][]any, 0, len(e.Questions))
	for i, q := range e.Questions {
		order := q.OrderIndex
		if order == 0 {
			order = i + 1
		}
		rows = append(rows, []any{e.ID, q.QuestionText, q.Options, q.Answer, q.Explanation, order})
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"questions"},
		[]string{"exam_id", "question_text", "options", "answer", "explanation", "order_index"},
		pgx.CopyFromRows(rows),
	); err != nil {
		return false, fmt.Errorf("copy questions for %q: %w", e.AccessCode, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit import: %w", err)
	}
	return true, nil
}
