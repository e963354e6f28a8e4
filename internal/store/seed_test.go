package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

const seedJSON = `[
  {
    "title": "Chemistry",
    "access_code": "chem-7",
    "time_limit": 20,
    "max_violations": 2,
    "shuffle_options": true,
    "questions": [
      {"question_text": "H2O is", "options": ["water", "salt"], "answer": 0, "order_index": 1},
      {"question_text": "NaCl is", "options": ["water", "salt"], "answer": 1, "order_index": 2}
    ]
  }
]`

func TestLoadSeed(t *testing.T) {
	m := NewMemory()
	n, err := LoadSeed(strings.NewReader(seedJSON), m)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	exam, err := m.FindExamByAccessCode(context.Background(), "CHEM-7")
	require.NoError(t, err)
	assert.Equal(t, model.ExamStatusActive, exam.Status)
	assert.True(t, exam.ShuffleOptions)

	qs, err := m.ListQuestions(context.Background(), exam.ID)
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, "H2O is", qs[0].QuestionText)
	assert.Equal(t, exam.ID, qs[1].ExamID)
}

func TestLoadSeed_Rejects(t *testing.T) {
	cases := map[string]string{
		"malformed":      `{`,
		"no access code": `[{"title": "x", "time_limit": 5}]`,
		"answer out of range": `[{"title": "x", "access_code": "x", "time_limit": 5,
			"questions": [{"question_text": "q", "options": ["a"], "answer": 3}]}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			m := NewMemory()
			_, err := LoadSeed(strings.NewReader(raw), m)
			assert.Error(t, err)
			_, err = m.FindExamByAccessCode(context.Background(), "x")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}
