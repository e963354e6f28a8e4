package store

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/stemsi/exstem-proctor/internal/model"
)

// SeedExam is one exam with its questions in a seed file.
type SeedExam struct {
	model.Exam
	Questions []model.Question `json:"questions"`
}

// ParseSeed decodes a JSON array of exams with their questions. Exams without
// an access code or with an answer outside its options are rejected. Missing
// statuses default to active.
func ParseSeed(r io.Reader) ([]SeedExam, error) {
	var exams []SeedExam
	if err := json.NewDecoder(r).Decode(&exams); err != nil {
		return nil, fmt.Errorf("decode seed: %w", err)
	}

	for i := range exams {
		e := &exams[i]
		if strings.TrimSpace(e.AccessCode) == "" {
			return nil, fmt.Errorf("seed exam %d (%q): access_code is required", i, e.Title)
		}
		if e.Status == "" {
			e.Status = model.ExamStatusActive
		}
		for j, q := range e.Questions {
			if q.Answer < 0 || q.Answer >= len(q.Options) {
				return nil, fmt.Errorf("seed exam %q question %d: answer %d outside %d options", e.AccessCode, j, q.Answer, len(q.Options))
			}
		}
	}
	return exams, nil
}

// LoadSeed parses a seed file into m and returns how many exams were loaded.
// Nothing is loaded when any exam is rejected.
func LoadSeed(r io.Reader, m *Memory) (int, error) {
	exams, err := ParseSeed(r)
	if err != nil {
		return 0, err
	}
	for i := range exams {
		m.PutExam(&exams[i].Exam, exams[i].Questions)
	}
	return len(exams), nil
}
