package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stemsi/exstem-proctor/internal/config"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/store"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

type frame struct {
	Event     ws.Event        `json:"event"`
	View      json.RawMessage `json:"view"`
	Violation json.RawMessage `json:"violation"`
	Result    json.RawMessage `json:"result"`
	Error     *struct {
		Code string `json:"code"`
	} `json:"error"`
	Flagged bool `json:"flagged"`
}

type wsFixture struct {
	store    *store.Memory
	sessions *service.SessionService
	url      string
}

func newWSFixture(t *testing.T, maxViolations int) *wsFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mem := store.NewMemory()
	mem.PutExam(&model.Exam{
		Title:                  "Biology",
		AccessCode:             "BIO-1",
		TimeLimit:              30,
		MaxViolations:          maxViolations,
		ShowResultsImmediately: true,
		Status:                 model.ExamStatusActive,
	}, []model.Question{
		{QuestionText: "cell", Options: []string{"yes", "no"}, Answer: 0, OrderIndex: 1},
		{QuestionText: "atom", Options: []string{"yes", "no"}, Answer: 1, OrderIndex: 2},
	})

	cfg := &config.Config{
		TickInterval:          time.Second,
		FinalWriteAttempts:    2,
		FinalWriteInitialWait: time.Millisecond,
		FinalWriteMaxWait:     time.Millisecond,
	}
	sessions := service.NewSessionService(mem, nil, cfg, zerolog.Nop())
	h := NewWSHandler(sessions, zerolog.Nop(), nil)

	r := gin.New()
	r.GET("/ws/v1/exams/:access_code", h.ExamSession)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &wsFixture{
		store:    mem,
		sessions: sessions,
		url:      "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/v1/exams/",
	}
}

func (f *wsFixture) dial(t *testing.T, code string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(f.url+code, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, req map[string]any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(req))
}

// await reads frames until one has the wanted event, skipping ticks and
// anything else in between.
func await(t *testing.T, conn *websocket.Conn, want ws.Event) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		var f frame
		require.NoError(t, conn.ReadJSON(&f), "waiting for %s", want)
		if f.Event == want {
			return f
		}
	}
}

// awaitState reads state frames until the view reaches want.
func awaitState(t *testing.T, conn *websocket.Conn, want string) {
	t.Helper()
	for {
		f := await(t, conn, ws.EventState)
		var v struct {
			State string `json:"state"`
		}
		require.NoError(t, json.Unmarshal(f.View, &v))
		if v.State == want {
			return
		}
	}
}

func TestWSHandler_FullExam(t *testing.T) {
	fx := newWSFixture(t, 3)
	conn := fx.dial(t, "bio-1")

	awaitState(t, conn, "registration")

	send(t, conn, map[string]any{"action": "register", "name": "Made", "email": "made@example.com"})
	awaitState(t, conn, "instructions")
	require.Eventually(t, func() bool { return fx.sessions.LiveCount() == 1 }, time.Second, 5*time.Millisecond)

	send(t, conn, map[string]any{"action": "begin"})
	await(t, conn, ws.EventFullscreen)

	send(t, conn, map[string]any{"action": "answer", "question": 0, "option": 0})
	send(t, conn, map[string]any{"action": "flag", "question": 1})
	assert.True(t, await(t, conn, ws.EventFlag).Flagged)

	send(t, conn, map[string]any{"action": "signal", "keys": "Ctrl+C"})
	await(t, conn, ws.EventViolation)

	send(t, conn, map[string]any{"action": "confirm_submit"})
	await(t, conn, ws.EventSummary)

	send(t, conn, map[string]any{"action": "submit"})
	res := await(t, conn, ws.EventResult)
	var result struct {
		Status         string `json:"status"`
		ViolationCount int    `json:"violation_count"`
		Score          *int   `json:"score"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &result))
	assert.Equal(t, "submitted", result.Status)
	assert.Equal(t, 1, result.ViolationCount)
	require.NotNil(t, result.Score)

	send(t, conn, map[string]any{"action": "ping"})
	await(t, conn, ws.EventPong)
}

func TestWSHandler_UnknownExam(t *testing.T) {
	fx := newWSFixture(t, 3)
	conn := fx.dial(t, "nope")

	f := await(t, conn, ws.EventError)
	require.NotNil(t, f.Error)
	assert.Equal(t, "EXAM_NOT_FOUND", f.Error.Code)
}

func TestWSHandler_BadFrames(t *testing.T) {
	fx := newWSFixture(t, 3)
	conn := fx.dial(t, "BIO-1")
	await(t, conn, ws.EventState)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"action": 5}`)))
	assert.Equal(t, "INVALID_PAYLOAD", await(t, conn, ws.EventError).Error.Code)

	send(t, conn, map[string]any{"action": "dance"})
	assert.Equal(t, "UNKNOWN_ACTION", await(t, conn, ws.EventError).Error.Code)

	send(t, conn, map[string]any{"action": "begin"})
	assert.Equal(t, "INVALID_STATE", await(t, conn, ws.EventError).Error.Code)

	send(t, conn, map[string]any{"action": "register", "name": "", "email": "not-an-email"})
	assert.Equal(t, "VALIDATION_ERROR", await(t, conn, ws.EventError).Error.Code)
}

func TestWSHandler_ReconnectEvictsOldConnection(t *testing.T) {
	fx := newWSFixture(t, 3)
	register := map[string]any{"action": "register", "name": "Made", "email": "made@example.com"}

	first := fx.dial(t, "BIO-1")
	await(t, first, ws.EventState)
	send(t, first, register)
	await(t, first, ws.EventState)

	second := fx.dial(t, "BIO-1")
	await(t, second, ws.EventState)
	send(t, second, register)

	assert.Equal(t, "SESSION_REPLACED", await(t, first, ws.EventError).Error.Code)
	require.Eventually(t, func() bool { return fx.sessions.LiveCount() == 1 }, time.Second, 5*time.Millisecond)
}

func TestWSHandler_DisqualifiedAtLimit(t *testing.T) {
	fx := newWSFixture(t, 1)
	conn := fx.dial(t, "BIO-1")
	await(t, conn, ws.EventState)

	send(t, conn, map[string]any{"action": "register", "name": "Made", "email": "made@example.com"})
	await(t, conn, ws.EventState)
	send(t, conn, map[string]any{"action": "begin"})
	await(t, conn, ws.EventFullscreen)

	send(t, conn, map[string]any{"action": "signal", "signal": "tab_switch"})
	res := await(t, conn, ws.EventResult)
	var result struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(res.Result, &result))
	assert.Equal(t, "disqualified", result.Status)

	require.Eventually(t, func() bool {
		for _, u := range fx.store.Updates() {
			if u.Patch.Status != nil && *u.Patch.Status == model.SessionStatusDisqualified {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

}
