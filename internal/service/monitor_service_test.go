package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/repository"
)

type fakeProgress struct {
	rows      []repository.SessionProgress
	counts    map[string]int64
	rowsErr   error
	countsErr error
}

func (f *fakeProgress) ListProgress(context.Context, uuid.UUID) ([]repository.SessionProgress, error) {
	return f.rows, f.rowsErr
}

func (f *fakeProgress) ViolationCounts(context.Context, uuid.UUID) (map[string]int64, error) {
	return f.counts, f.countsErr
}

func TestMonitorService_Snapshot(t *testing.T) {
	repo := &fakeProgress{
		rows: []repository.SessionProgress{
			{Status: model.SessionStatusRegistered},
			{Status: model.SessionStatusInProgress},
			{Status: model.SessionStatusInProgress},
			{Status: model.SessionStatusSubmitted},
			{Status: model.SessionStatusDisqualified},
		},
		counts: map[string]int64{"tab_switch": 4, "copy_attempt": 1},
	}
	examID := uuid.New()

	snap, err := NewMonitorService(repo).Snapshot(context.Background(), examID)
	require.NoError(t, err)
	assert.Equal(t, examID, snap.ExamID)
	assert.Equal(t, MonitorStats{
		Joined:          5,
		Registered:      1,
		InProgress:      2,
		Submitted:       1,
		Disqualified:    1,
		TotalViolations: 5,
	}, snap.Stats)
	assert.Len(t, snap.Sessions, 5)
}

func TestMonitorService_ViolationCountsBestEffort(t *testing.T) {
	repo := &fakeProgress{countsErr: errors.New("slow query")}

	snap, err := NewMonitorService(repo).Snapshot(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, snap.Sessions)
	assert.Empty(t, snap.ViolationsByType)
	assert.Zero(t, snap.Stats.TotalViolations)
}

func TestMonitorService_ProgressRequired(t *testing.T) {
	repo := &fakeProgress{rowsErr: errors.New("db down")}

	_, err := NewMonitorService(repo).Snapshot(context.Background(), uuid.New())
	assert.Error(t, err)
}
