package model

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Answer is one slot of a session's answer sheet: either an option index or
// nothing. It encodes to JSON as an integer or null.
type Answer struct {
	Option int
	Set    bool
}

// Chosen returns an Answer holding the given option index.
func Chosen(option int) Answer {
	return Answer{Option: option, Set: true}
}

// Is reports whether the slot holds exactly the given option.
func (a Answer) Is(option int) bool {
	return a.Set && a.Option == option
}

func (a Answer) MarshalJSON() ([]byte, error) {
	if !a.Set {
		return []byte("null"), nil
	}
	return json.Marshal(a.Option)
}

func (a *Answer) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*a = Answer{}
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("answer slot: %w", err)
	}
	if n < 0 {
		return fmt.Errorf("answer slot: negative option %d", n)
	}
	*a = Chosen(n)
	return nil
}

// Answers is the fixed-length answer sheet, one slot per presented question.
type Answers []Answer

// NewAnswers returns an answer sheet of n empty slots.
func NewAnswers(n int) Answers {
	return make(Answers, n)
}

// Clone returns an independent copy.
func (a Answers) Clone() Answers {
	out := make(Answers, len(a))
	copy(out, a)
	return out
}

// Resized returns a copy with exactly n slots, padding with empty slots or
// dropping trailing ones.
func (a Answers) Resized(n int) Answers {
	out := make(Answers, n)
	copy(out, a)
	return out
}

// Answered counts the slots that hold an option.
func (a Answers) Answered() int {
	n := 0
	for _, s := range a {
		if s.Set {
			n++
		}
	}
	return n
}
