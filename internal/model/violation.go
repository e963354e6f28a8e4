package model

import (
	"time"

	"github.com/google/uuid"
)

// ViolationEvent is a single integrity signal observed during an exam.
// Count is the running violation count after this event.
type ViolationEvent struct {
	SessionID  uuid.UUID `json:"session_id"`
	ExamID     uuid.UUID `json:"exam_id"`
	Type       string    `json:"type"`
	Count      int       `json:"count"`
	OccurredAt time.Time `json:"occurred_at"`
}
