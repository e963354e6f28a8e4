package repository

import (
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// Store is the PostgreSQL session store.
type Store struct {
	*ExamRepository
	*QuestionRepository
	*ExamSessionRepository
}

var _ store.Store = (*Store)(nil)

// NewStore creates a Store over pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		ExamRepository:        NewExamRepository(pool),
		QuestionRepository:    NewQuestionRepository(pool),
		ExamSessionRepository: NewExamSessionRepository(pool),
	}
}
