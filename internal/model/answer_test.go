package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnswers_JSONKeepsNullSlots(t *testing.T) {
	a := Answers{Chosen(2), {}, Chosen(0)}

	raw, err := json.Marshal(a)
	require.NoError(t, err)
	assert.JSONEq(t, `[2,null,0]`, string(raw))

	var back Answers
	require.NoError(t, json.Unmarshal(raw, &back))
	assert.Equal(t, a, back)
}

func TestAnswer_RejectsNegative(t *testing.T) {
	var a Answer
	assert.Error(t, json.Unmarshal([]byte(`-1`), &a))
}

func TestAnswers_Resized(t *testing.T) {
	a := Answers{Chosen(1), Chosen(3)}

	assert.Equal(t, Answers{Chosen(1), Chosen(3), {}}, a.Resized(3))
	assert.Equal(t, Answers{Chosen(1)}, a.Resized(1))
	assert.Equal(t, 2, a.Answered())
	assert.True(t, a[1].Is(3))
	assert.False(t, Answer{}.Is(0))
}

func TestSessionPatch_Apply(t *testing.T) {
	s := &ExamSession{Status: SessionStatusRegistered, ViolationCount: 2}
	inProgress := SessionStatusInProgress
	lower := 1

	SessionPatch{Status: &inProgress, ViolationCount: &lower}.Apply(s)

	assert.Equal(t, SessionStatusInProgress, s.Status)
	assert.Equal(t, 2, s.ViolationCount)
	assert.Nil(t, s.Score)
}
