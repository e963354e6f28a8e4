package worker

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/model"
)

func TestDecodeViolation(t *testing.T) {
	ev, err := decodeViolation(`{"session_id":"6f1c1a57-2d37-4f39-9a57-4b8f5d7f7c11","exam_id":"0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10","type":"tab_switch","count":2,"occurred_at":"2026-03-02T08:15:00Z"}`)
	require.NoError(t, err)
	assert.Equal(t, "tab_switch", ev.Type)
	assert.Equal(t, 2, ev.Count)
	assert.Equal(t, time.Date(2026, 3, 2, 8, 15, 0, 0, time.UTC), ev.OccurredAt)
}

func TestDecodeViolation_Rejects(t *testing.T) {
	for name, raw := range map[string]string{
		"malformed":  `{"session_id":`,
		"no session": `{"exam_id":"0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10","type":"tab_switch"}`,
		"no type":    `{"session_id":"6f1c1a57-2d37-4f39-9a57-4b8f5d7f7c11","exam_id":"0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10"}`,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := decodeViolation(raw)
			assert.Error(t, err)
		})
	}
}

func TestDecodeViolation_DefaultsTimestamp(t *testing.T) {
	ev, err := decodeViolation(`{"session_id":"6f1c1a57-2d37-4f39-9a57-4b8f5d7f7c11","exam_id":"0b6f3c1e-7a9d-4d02-8b7e-2a1b7c9e4f10","type":"window_blur","count":1}`)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), ev.OccurredAt, time.Minute)
}

func TestEncodeAll_SkipsUnencodable(t *testing.T) {
	w := NewViolationWorker(nil, nil, zerolog.Nop())
	good := &model.ViolationEvent{SessionID: uuid.New(), ExamID: uuid.New(), Type: "tab_switch", Count: 1, OccurredAt: time.Now().UTC()}
	// time.Time refuses to encode years past 9999.
	bad := &model.ViolationEvent{SessionID: uuid.New(), Type: "window_blur", Count: 2, OccurredAt: time.Date(10000, 1, 1, 0, 0, 0, 0, time.UTC)}

	payloads := w.encodeAll([]*model.ViolationEvent{good, bad})
	require.Len(t, payloads, 1)

	ev, err := decodeViolation(string(payloads[0]))
	require.NoError(t, err)
	assert.Equal(t, good.SessionID, ev.SessionID)
}
