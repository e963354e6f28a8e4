package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// SessionProgress is one examinee's row in the live monitor.
type SessionProgress struct {
	SessionID      uuid.UUID           `json:"session_id"`
	Name           string              `json:"name"`
	Email          string              `json:"email"`
	Status         model.SessionStatus `json:"status"`
	AnsweredCount  int                 `json:"answered_count"`
	TotalQuestions int                 `json:"total_questions"`
	ViolationCount int                 `json:"violation_count"`
	Score          *int                `json:"score"`
	StartedAt      *time.Time          `json:"started_at"`
	SubmittedAt    *time.Time          `json:"submitted_at"`
}

// MonitorRepository provides data access for the live exam monitoring feature.
type MonitorRepository struct {
	pool *pgxpool.Pool
}

// NewMonitorRepository creates a new MonitorRepository.
func NewMonitorRepository(pool *pgxpool.Pool) *MonitorRepository {
	return &MonitorRepository{pool: pool}
}

// ListProgress returns every session of the exam with its answered count.
func (r *MonitorRepository) ListProgress(ctx context.Context, examID uuid.UUID) ([]SessionProgress, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, email, status,
		        (SELECT COUNT(*) FROM jsonb_array_elements(answers) a WHERE a <> 'null'::jsonb),
		        total_questions, violation_count, score, started_at, submitted_at
		 FROM exam_sessions
		 WHERE exam_id = $1
		 ORDER BY name, email`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SessionProgress
	for rows.Next() {
		var p SessionProgress
		if err := rows.Scan(&p.SessionID, &p.Name, &p.Email, &p.Status, &p.AnsweredCount,
			&p.TotalQuestions, &p.ViolationCount, &p.Score, &p.StartedAt, &p.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ViolationCounts returns the number of audited violations per type for the exam.
func (r *MonitorRepository) ViolationCounts(ctx context.Context, examID uuid.UUID) (map[string]int64, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT type, COUNT(*)
		 FROM exam_violations
		 WHERE exam_id = $1
		 GROUP BY type`,
		examID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int64)
	for rows.Next() {
		var typ string
		var count int64
		if err := rows.Scan(&typ, &count); err != nil {
			return nil, err
		}
		counts[typ] = count
	}
	return counts, rows.Err()
}
