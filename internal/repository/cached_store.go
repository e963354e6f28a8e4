package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/store"
)

// CachedStore keeps exam definitions and question lists in Redis so a wave
// of examinees entering the same exam does not hit PostgreSQL for each one.
// Session reads and writes always go to the underlying store.
type CachedStore struct {
	store.Store
	rdb *redis.Client
	ttl time.Duration
	log zerolog.Logger
}

// NewCachedStore wraps inner with a read-through Redis cache.
func NewCachedStore(inner store.Store, rdb *redis.Client, ttl time.Duration, log zerolog.Logger) *CachedStore {
	return &CachedStore{
		Store: inner,
		rdb:   rdb,
		ttl:   ttl,
		log:   log.With().Str("component", "exam_cache").Logger(),
	}
}

func (c *CachedStore) FindExamByAccessCode(ctx context.Context, code string) (*model.Exam, error) {
	key := config.Keys.ExamByCode(store.NormalizeAccessCode(code))

	var exam model.Exam
	if c.get(ctx, key, &exam) {
		return &exam, nil
	}

	e, err := c.Store.FindExamByAccessCode(ctx, code)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, e)
	return e, nil
}

func (c *CachedStore) ListQuestions(ctx context.Context, examID uuid.UUID) ([]model.Question, error) {
	key := config.Keys.ExamQuestions(examID)

	var questions []model.Question
	if c.get(ctx, key, &questions) {
		return questions, nil
	}

	qs, err := c.Store.ListQuestions(ctx, examID)
	if err != nil {
		return nil, err
	}
	c.set(ctx, key, qs)
	return qs, nil
}

// Invalidate drops the cached entries of an exam.
func (c *CachedStore) Invalidate(ctx context.Context, exam *model.Exam) error {
	pipe := c.rdb.Pipeline()
	pipe.Del(ctx, config.Keys.ExamByCode(store.NormalizeAccessCode(exam.AccessCode)))
	pipe.Del(ctx, config.Keys.ExamQuestions(exam.ID))
	_, err := pipe.Exec(ctx)
	return err
}

// get reports a hit. Redis failures count as misses.
func (c *CachedStore) get(ctx context.Context, key string, dst any) bool {
	data, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn().Err(err).Str("key", key).Msg("Cache read failed, falling back to database")
		}
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Discarding malformed cache entry")
		return false
	}
	return true
}

func (c *CachedStore) set(ctx context.Context, key string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if err := c.rdb.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
