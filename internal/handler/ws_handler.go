package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/stemsi/exstem-proctor/internal/metrics"
	"github.com/stemsi/exstem-proctor/internal/model"
	"github.com/stemsi/exstem-proctor/internal/monitor"
	"github.com/stemsi/exstem-proctor/internal/response"
	"github.com/stemsi/exstem-proctor/internal/service"
	"github.com/stemsi/exstem-proctor/internal/session"
	ws "github.com/stemsi/exstem-proctor/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler hosts examinee sessions over WebSocket. Each connection drives
// one session machine; the browser reports integrity signals and the server
// owns the clock.
type WSHandler struct {
	sessions *service.SessionService
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions: sessions,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// wsConn is the per-connection state of ExamSession.
type wsConn struct {
	h       *WSHandler
	client  *wsClient
	source  *monitor.HostSource
	machine *session.Machine
	log     zerolog.Logger
}

// ExamSession godoc
// WS /ws/v1/exams/:access_code
// Upgrades to WebSocket and runs one exam session from landing to result.
func (h *WSHandler) ExamSession(c *gin.Context) {
	accessCode := c.Param("access_code")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	metrics.WSConnections.Inc()
	defer metrics.WSConnections.Dec()

	wsLog := h.log.With().Str("access_code", accessCode).Str("remote", c.ClientIP()).Logger()
	wc := &wsConn{
		h:      h,
		client: newWSClient(conn, wsLog),
		source: monitor.NewHostSource(),
		log:    wsLog,
	}
	wc.machine = h.sessions.NewMachine(wc.source, wc.forward)
	defer func() {
		h.sessions.Detach(wc.machine)
		wc.machine.Close()
		wc.client.close()
	}()

	ctx := c.Request.Context()
	if err := wc.machine.Initiate(ctx, accessCode); err != nil {
		wc.fail(err)
		return
	}
	wsLog.Debug().Msg("Examinee connected")

	for {
		var req ws.Request
		err := ws.ReadJSON(conn, &req)
		if err != nil {
			if isDecodeError(err) {
				wc.client.send(ws.ErrorFrame(response.Error(response.ErrInvalidPayload, nil)))
				continue
			}
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		wc.dispatch(ctx, &req)
	}
}

// forward turns machine events into frames. It runs outside the machine lock.
func (wc *wsConn) forward(ev session.Event) {
	if frame := ws.Frame(ev, wc.snapshot); frame != nil {
		wc.client.send(frame)
	}
}

func (wc *wsConn) snapshot() session.View {
	return wc.machine.Snapshot()
}

func (wc *wsConn) dispatch(ctx context.Context, req *ws.Request) {
	m := wc.machine
	// Terminal writes must not be cut short by the examinee leaving.
	durable := context.WithoutCancel(ctx)

	switch req.Action {
	case ws.ActionRegister:
		err := m.Register(ctx, model.RegisterRequest{Name: req.Name, Email: req.Email, StudentID: req.StudentID})
		if err != nil {
			wc.fail(err)
			return
		}
		if err := wc.h.sessions.Attach(m, wc.evicted); err != nil {
			wc.fail(err)
		}

	case ws.ActionBegin:
		if err := m.BeginExam(durable); err != nil {
			wc.fail(err)
		}

	case ws.ActionAnswer:
		if req.Question == nil || req.Option == nil {
			wc.invalidPayload()
			return
		}
		if err := m.SelectAnswer(*req.Question, *req.Option); err != nil {
			wc.fail(err)
		}

	case ws.ActionFlag:
		if req.Question == nil {
			wc.invalidPayload()
			return
		}
		flagged, err := m.ToggleFlag(*req.Question)
		if err != nil {
			wc.fail(err)
			return
		}
		wc.client.send(ws.FlagResponse{Event: ws.EventFlag, Question: *req.Question, Flagged: flagged})

	case ws.ActionNavigate:
		if req.Question == nil {
			wc.invalidPayload()
			return
		}
		if err := m.Navigate(*req.Question); err != nil {
			wc.fail(err)
			return
		}
		wc.sendState()

	case ws.ActionConfirmSubmit:
		if m.State() != session.StateExam {
			wc.fail(session.ErrInvalidState)
			return
		}
		wc.client.send(ws.SummaryResponse{Event: ws.EventSummary, Summary: m.ConfirmSubmit()})

	case ws.ActionSubmit:
		res, err := m.Submit(durable, false)
		if err != nil {
			wc.failFinal(err)
			return
		}
		if res != nil {
			wc.sendState()
		}

	case ws.ActionRetrySubmit:
		if _, err := m.RetryFinalize(durable); err != nil {
			wc.failFinal(err)
		}

	case ws.ActionSignal:
		wc.signal(req)

	case ws.ActionState:
		wc.sendState()

	case ws.ActionPing:
		wc.client.send(ws.PongResponse{Event: ws.EventPong})

	default:
		wc.log.Warn().Str("action", string(req.Action)).Msg("Unknown action")
		wc.client.send(ws.ErrorFrame(response.Error(response.ErrUnknownAction, nil)))
	}
}

// signal feeds a browser-reported event to the monitor. Raw key combos count
// only when they are on the denylist.
func (wc *wsConn) signal(req *ws.Request) {
	if req.Keys != "" {
		if monitor.IsDeniedShortcut(req.Keys) {
			wc.source.Emit(monitor.SignalKeyboardShortcut)
		}
		return
	}
	sig, ok := monitor.ParseSignal(req.Signal)
	if !ok {
		wc.invalidPayload()
		return
	}
	wc.source.Emit(sig)
}

func (wc *wsConn) sendState() {
	wc.client.send(ws.StateResponse{Event: ws.EventState, View: wc.machine.Snapshot()})
}

func (wc *wsConn) invalidPayload() {
	wc.client.send(ws.ErrorFrame(response.Error(response.ErrInvalidPayload, nil)))
}

func (wc *wsConn) fail(err error) {
	status, body := classify(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, session.ErrTransientStore) && !errors.Is(err, session.ErrFatalStore) {
		wc.log.Error().Err(err).Msg("Session action failed")
	} else {
		wc.log.Debug().Err(err).Str("code", string(body.Code)).Msg("Session action rejected")
	}
	wc.client.send(ws.ErrorFrame(body))
}

// failFinal reports a failed submit. A failed terminal write was already
// announced by the machine's own error event.
func (wc *wsConn) failFinal(err error) {
	if errors.Is(err, session.ErrFatalStore) {
		return
	}
	wc.fail(err)
}

// evicted runs when the same session is opened on another connection.
func (wc *wsConn) evicted() {
	wc.client.send(ws.ErrorFrame(response.Error(response.ErrSessionReplaced, nil)))
	wc.client.shutdown()
}

func isDecodeError(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}
