package websocket

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/session"
)

const (
	writeWait = 10 * time.Second
	// ReadWait bounds the silence between client frames. Clients ping well
	// inside it.
	ReadWait = 2 * time.Minute
)

// WriteTyped sends a strongly-typed response payload over the WebSocket.
func WriteTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(v)
}

// WriteError sends a typed ErrorResponse over the WebSocket.
func WriteError(conn *websocket.Conn, body *response.ErrorBody) error {
	return WriteTyped(conn, ErrorFrame(body))
}

// ReadJSON reads and decodes a message into the provided structure.
// It sets a read deadline.
func ReadJSON(conn *websocket.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(ReadWait))
	return conn.ReadJSON(v)
}

// ErrorFrame wraps an error body for the wire.
func ErrorFrame(body *response.ErrorBody) ErrorResponse {
	return ErrorResponse{Event: EventError, Error: body}
}

// Frame converts a machine event into its wire frame. State events carry a
// fresh snapshot from view. It returns nil for events with no frame.
func Frame(ev session.Event, view func() session.View) any {
	switch ev.Type {
	case session.EventState:
		return StateResponse{Event: EventState, View: view()}
	case session.EventTick:
		if ev.Remaining == nil {
			return nil
		}
		return TickResponse{Event: EventTick, Remaining: *ev.Remaining}
	case session.EventViolation:
		if ev.Violation == nil {
			return nil
		}
		return ViolationResponse{Event: EventViolation, Violation: *ev.Violation}
	case session.EventFullscreen:
		if ev.Fullscreen == nil {
			return nil
		}
		return FullscreenResponse{Event: EventFullscreen, Fullscreen: *ev.Fullscreen}
	case session.EventCheckpointFailed:
		return CheckpointFailedResponse{Event: EventCheckpointFailed}
	case session.EventResult:
		return ResultResponse{Event: EventResult, Result: ev.Result}
	case session.EventError:
		return ErrorFrame(response.Error(response.ErrSubmitFailed, nil))
	}
	return nil
}
