package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
)

// EventFeed ships session activity to Redis: raw violations onto the audit
// queue drained by the violation worker, and live events onto the exam's
// monitor channel.
type EventFeed struct {
	rdb *redis.Client
}

// NewEventFeed creates a new EventFeed.
func NewEventFeed(rdb *redis.Client) *EventFeed {
	return &EventFeed{rdb: rdb}
}

// EnqueueViolation queues a violation for the audit log.
func (f *EventFeed) EnqueueViolation(ctx context.Context, ev model.ViolationEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := f.rdb.RPush(ctx, config.Keys.ViolationQueue(), data).Err(); err != nil {
		return fmt.Errorf("enqueue violation: %w", err)
	}
	return nil
}

// Publish sends v as JSON to the exam's monitor channel.
func (f *EventFeed) Publish(ctx context.Context, examID uuid.UUID, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return f.rdb.Publish(ctx, config.Keys.ExamMonitor(examID), data).Err()
}

// Subscribe opens a subscription to the exam's monitor channel.
func (f *EventFeed) Subscribe(ctx context.Context, examID uuid.UUID) *redis.PubSub {
	return f.rdb.Subscribe(ctx, config.Keys.ExamMonitor(examID))
}

// QueueDepth returns the number of violations waiting for the worker.
func (f *EventFeed) QueueDepth(ctx context.Context) (int64, error) {
	return f.rdb.LLen(ctx, config.Keys.ViolationQueue()).Result()
}
