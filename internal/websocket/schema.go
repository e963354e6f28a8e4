package websocket

import (
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionRegister      Action = "register"
	ActionBegin         Action = "begin"
	ActionAnswer        Action = "answer"
	ActionFlag          Action = "flag"
	ActionNavigate      Action = "navigate"
	ActionConfirmSubmit Action = "confirm_submit"
	ActionSubmit        Action = "submit"
	ActionRetrySubmit   Action = "retry_submit"
	ActionSignal        Action = "signal"
	ActionState         Action = "state"
	ActionPing          Action = "ping"
)

// Request is every client frame. Only the fields of its action are read.
type Request struct {
	Action Action `json:"action"`

	// register
	Name      string  `json:"name,omitempty"`
	Email     string  `json:"email,omitempty"`
	StudentID *string `json:"student_id,omitempty"`

	// answer, flag, navigate
	Question *int `json:"question,omitempty"`
	Option   *int `json:"option,omitempty"`

	// signal: either a tag such as "tab_switch" or a raw key combo.
	Signal string `json:"signal,omitempty"`
	Keys   string `json:"keys,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState            Event = "state"
	EventTick             Event = "tick"
	EventViolation        Event = "violation"
	EventFullscreen       Event = "fullscreen"
	EventCheckpointFailed Event = "checkpoint_failed"
	EventSummary          Event = "summary"
	EventFlag             Event = "flag"
	EventResult           Event = "result"
	EventError            Event = "error"
	EventPong             Event = "pong"
)

// StateResponse carries the full examinee view.
type StateResponse struct {
	Event Event        `json:"event"`
	View  session.View `json:"view"`
}

type TickResponse struct {
	Event     Event `json:"event"`
	Remaining int   `json:"remaining"`
}

type ViolationResponse struct {
	Event     Event                   `json:"event"`
	Violation session.ViolationNotice `json:"violation"`
}

// FullscreenResponse asks the client to enter or leave fullscreen.
type FullscreenResponse struct {
	Event      Event `json:"event"`
	Fullscreen bool  `json:"fullscreen"`
}

// CheckpointFailedResponse warns that answers are kept locally only for now.
type CheckpointFailedResponse struct {
	Event Event `json:"event"`
}

type SummaryResponse struct {
	Event   Event                 `json:"event"`
	Summary session.SubmitSummary `json:"summary"`
}

type FlagResponse struct {
	Event    Event `json:"event"`
	Question int   `json:"question"`
	Flagged  bool  `json:"flagged"`
}

type ResultResponse struct {
	Event  Event           `json:"event"`
	Result *session.Result `json:"result"`
}

type ErrorResponse struct {
	Event Event               `json:"event"`
	Error *response.ErrorBody `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
