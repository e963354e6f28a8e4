package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/store"
)

const checkpointTimeout = 10 * time.Second

var errQueueClosed = errors.New("write queue closed")

// writeQueue serializes every store write of one session on a single
// goroutine. Only the newest checkpoint is kept. Once a terminal write is
// queued, checkpoints are dropped.
type writeQueue struct {
	store store.Store
	id    uuid.UUID
	log   zerolog.Logger
	retry RetryPolicy

	onCheckpointError func(error)

	mu         sync.Mutex
	checkpoint *model.SessionPatch
	jobs       []*writeJob
	sealed     bool
	closed     bool

	wake chan struct{}
	done chan struct{}
}

type writeJob struct {
	ctx    context.Context
	patch  model.SessionPatch
	final  bool
	result chan error
}

func newWriteQueue(s store.Store, id uuid.UUID, retry RetryPolicy, log zerolog.Logger, onCheckpointError func(error)) *writeQueue {
	q := &writeQueue{
		store:             s,
		id:                id,
		log:               log.With().Str("component", "write_queue").Logger(),
		retry:             retry,
		onCheckpointError: onCheckpointError,
		wake:              make(chan struct{}, 1),
		done:              make(chan struct{}),
	}
	go q.run()
	return q
}

// Checkpoint schedules a best-effort write and returns immediately. It
// reports false if the patch was dropped.
func (q *writeQueue) Checkpoint(patch model.SessionPatch) bool {
	q.mu.Lock()
	if q.sealed || q.closed {
		q.mu.Unlock()
		return false
	}
	q.checkpoint = &patch
	q.mu.Unlock()
	q.notify()
	return true
}

// Do performs a single synchronous write.
func (q *writeQueue) Do(ctx context.Context, patch model.SessionPatch) error {
	return q.enqueue(ctx, patch, false)
}

// Final performs the terminal write with retries and seals the queue against
// further checkpoints, including any still pending.
func (q *writeQueue) Final(ctx context.Context, patch model.SessionPatch) error {
	return q.enqueue(ctx, patch, true)
}

func (q *writeQueue) enqueue(ctx context.Context, patch model.SessionPatch, final bool) error {
	job := &writeJob{ctx: ctx, patch: patch, final: final, result: make(chan error, 1)}

	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return errQueueClosed
	}
	if final {
		q.sealed = true
		q.checkpoint = nil
	}
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	q.notify()

	select {
	case err := <-job.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close flushes pending work and stops the goroutine. Safe to call twice.
func (q *writeQueue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.notify()
	<-q.done
}

func (q *writeQueue) notify() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *writeQueue) run() {
	defer close(q.done)
	for {
		q.mu.Lock()
		cp := q.checkpoint
		q.checkpoint = nil
		var job *writeJob
		if cp == nil && len(q.jobs) > 0 {
			job = q.jobs[0]
			q.jobs = q.jobs[1:]
		}
		closed := q.closed
		q.mu.Unlock()

		switch {
		case cp != nil:
			q.writeCheckpoint(*cp)
		case job != nil:
			job.result <- q.write(job)
		case closed:
			return
		default:
			<-q.wake
		}
	}
}

func (q *writeQueue) writeCheckpoint(patch model.SessionPatch) {
	ctx, cancel := context.WithTimeout(context.Background(), checkpointTimeout)
	defer cancel()

	err := q.store.UpdateSession(ctx, q.id, patch)
	if err == nil {
		return
	}
	if errors.Is(err, store.ErrTerminal) {
		q.log.Debug().Msg("Checkpoint skipped, session already finalized")
		return
	}
	metrics.CheckpointFailures.Inc()
	q.log.Warn().Err(err).Msg("Checkpoint failed, keeping local answers")
	if q.onCheckpointError != nil {
		q.onCheckpointError(err)
	}
}

func (q *writeQueue) write(job *writeJob) error {
	if !job.final {
		return q.store.UpdateSession(job.ctx, q.id, job.patch)
	}

	err := q.retry.do(job.ctx, func(ctx context.Context) error {
		return q.store.UpdateSession(ctx, q.id, job.patch)
	}, func(attempt int, err error) {
		q.log.Warn().Err(err).Int("attempt", attempt).Msg("Terminal write failed, retrying")
	})
	if errors.Is(err, store.ErrTerminal) && q.landed(job) {
		// An earlier attempt whose response was lost already committed.
		return nil
	}
	return err
}

// landed reports whether the stored row already carries the job's status.
func (q *writeQueue) landed(job *writeJob) bool {
	if job.patch.Status == nil {
		return false
	}
	s, err := q.store.GetSession(job.ctx, q.id)
	if err != nil {
		return false
	}
	return s.Status == *job.patch.Status
}
