package service

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

// ProgressReader is the data source of the live monitor.
type ProgressReader interface {
	ListProgress(ctx context.Context, examID uuid.UUID) ([]repository.SessionProgress, error)
	ViolationCounts(ctx context.Context, examID uuid.UUID) (map[string]int64, error)
}

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	repo ProgressReader
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(repo ProgressReader) *MonitorService {
	return &MonitorService{repo: repo}
}

// MonitorStats aggregates the sessions of an exam by status.
type MonitorStats struct {
	Joined          int   `json:"total_joined"`
	Registered      int   `json:"total_registered"`
	InProgress      int   `json:"total_in_progress"`
	Submitted       int   `json:"total_submitted"`
	Disqualified    int   `json:"total_disqualified"`
	TotalViolations int64 `json:"total_violations"`
}

// MonitorSnapshot is the full picture sent when an invigilator attaches and
// on every refresh.
type MonitorSnapshot struct {
	ExamID           uuid.UUID                    `json:"exam_id"`
	Stats            MonitorStats                 `json:"stats"`
	ViolationsByType map[string]int64             `json:"violations_by_type"`
	Sessions         []repository.SessionProgress `json:"sessions"`
}

// Snapshot fetches session progress and audited violation counts in
// parallel. Progress is required; violation counts are best-effort.
func (s *MonitorService) Snapshot(ctx context.Context, examID uuid.UUID) (*MonitorSnapshot, error) {
	var (
		progress     []repository.SessionProgress
		counts       map[string]int64
		progressErr  error
		violationErr error
		wg           sync.WaitGroup
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		progress, progressErr = s.repo.ListProgress(ctx, examID)
	}()
	go func() {
		defer wg.Done()
		counts, violationErr = s.repo.ViolationCounts(ctx, examID)
	}()
	wg.Wait()

	if progressErr != nil {
		return nil, progressErr
	}

	snap := &MonitorSnapshot{
		ExamID:           examID,
		ViolationsByType: map[string]int64{},
		Sessions:         progress,
	}
	if snap.Sessions == nil {
		snap.Sessions = []repository.SessionProgress{}
	}
	if violationErr == nil && counts != nil {
		snap.ViolationsByType = counts
		for _, n := range counts {
			snap.Stats.TotalViolations += n
		}
	}

	for _, p := range snap.Sessions {
		snap.Stats.Joined++
		switch p.Status {
		case model.SessionStatusRegistered:
			snap.Stats.Registered++
		case model.SessionStatusInProgress:
			snap.Stats.InProgress++
		case model.SessionStatusSubmitted:
			snap.Stats.Submitted++
		case model.SessionStatusDisqualified:
			snap.Stats.Disqualified++
		}
	}
	return snap, nil
}
