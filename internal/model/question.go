package model

import (
	"github.com/google/uuid"
)

// Question represents a single multiple-choice exam question in authoring order.
type Question struct {
	ID           uuid.UUID `json:"id"`
	ExamID       uuid.UUID `json:"exam_id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	Answer       int       `json:"answer"` // zero-based index into Options
	Explanation  *string   `json:"explanation,omitempty"`
	OrderIndex   int       `json:"order_index"`
}

// PresentedQuestion is a question in the order and option layout shown to one
// examinee. Answer is remapped to the presented option positions and stays
// fixed for the lifetime of the session.
type PresentedQuestion struct {
	QuestionID   uuid.UUID `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
	OptionOrder  []int     `json:"option_order"` // presented position -> authoring index
	Answer       int       `json:"answer"`
	Explanation  *string   `json:"explanation,omitempty"`
	OrderIndex   int       `json:"order_index"`
}

// QuestionForStudent is a presented question without the correct answer.
type QuestionForStudent struct {
	Index        int       `json:"index"`
	QuestionID   uuid.UUID `json:"question_id"`
	QuestionText string    `json:"question_text"`
	Options      []string  `json:"options"`
}

// ForStudent strips the answer key from a presented question.
func (q PresentedQuestion) ForStudent(index int) QuestionForStudent {
	return QuestionForStudent{
		Index:        index,
		QuestionID:   q.QuestionID,
		QuestionText: q.QuestionText,
		Options:      q.Options,
	}
}
