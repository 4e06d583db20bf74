package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/middleware"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/response"
	"github.com/cloudtrack/certprep/internal/scheduler"
	"github.com/cloudtrack/certprep/internal/service"
	ws "github.com/cloudtrack/certprep/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
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

// WSHandler streams the caller's exam session over a WebSocket: a tick every
// second, and a state snapshot after each client action.
type WSHandler struct {
	sessions  *service.ExamSessionService
	scheduler scheduler.Scheduler
	log       zerolog.Logger
	upgrader  websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(sessions *service.ExamSessionService, sched scheduler.Scheduler, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		sessions:  sessions,
		scheduler: sched,
		log:       log.With().Str("component", "ws_handler").Logger(),
		upgrader:  buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/session/stream?token=...
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}
	userID := claims.UserID

	// Reject before upgrading so clients get a normal HTTP error.
	sess, err := h.sessions.State(c.Request.Context(), userID)
	if err != nil {
		status, code := sessionErrorCode(err)
		response.Fail(c, status, code)
		return
	}

	raw, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	conn := ws.NewConn(raw)
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsLog := h.log.With().
		Str("user_id", userID).
		Str("session_id", sess.ID.String()).
		Logger()
	wsLog.Info().Msg("Session stream connected")

	h.writeState(conn, sess)

	stream := &sessionStream{handler: h, conn: conn, userID: userID, log: wsLog}
	if sess.Status == exam.StatusFinished {
		stream.sendFinished(sess)
	} else {
		stream.setStop(h.scheduler.SchedulePeriodic(func() { stream.tick(ctx) }, time.Second))
		defer stream.stopTicking()
	}

	for {
		var msg ws.RequestPayload
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}
		stream.handle(ctx, &msg)
	}
}

func (h *WSHandler) writeState(conn *ws.Conn, sess *exam.Session) {
	_ = conn.WriteTyped(ws.StateResponse{Event: ws.EventState, Session: model.NewSessionView(sess)})
}

// sessionStream is the per-connection state of SessionStream. The ticker
// callback and the read loop share it.
type sessionStream struct {
	handler *WSHandler
	conn    *ws.Conn
	userID  string
	log     zerolog.Logger

	mu       sync.Mutex
	stop     scheduler.CancelFunc
	finished bool
}

func (s *sessionStream) tick(ctx context.Context) {
	sess, err := s.handler.sessions.State(ctx, s.userID)
	if err != nil {
		s.fail(err)
		s.stopTicking()
		return
	}
	if sess.Status == exam.StatusFinished {
		s.sendFinished(sess)
		return
	}
	_ = s.conn.WriteTyped(ws.TickResponse{
		Event:            ws.EventTick,
		RemainingSeconds: sess.RemainingSeconds,
		Clock:            exam.FormatClock(sess.RemainingSeconds),
	})
}

func (s *sessionStream) handle(ctx context.Context, msg *ws.RequestPayload) {
	svc := s.handler.sessions

	var (
		sess *exam.Session
		err  error
	)
	switch msg.Action {
	case ws.ActionPing:
		_ = s.conn.WriteTyped(ws.PongResponse{Event: ws.EventPong})
		return
	case ws.ActionAnswer:
		if msg.QuestionID == "" || msg.OptionIndex == nil {
			_ = s.conn.WriteError("question_id and option_index are required")
			return
		}
		sess, err = svc.SelectAnswer(ctx, s.userID, msg.QuestionID, *msg.OptionIndex)
	case ws.ActionFlag:
		if msg.QuestionID == "" {
			_ = s.conn.WriteError("question_id is required")
			return
		}
		sess, err = svc.ToggleFlag(ctx, s.userID, msg.QuestionID)
	case ws.ActionGoTo:
		if msg.Index == nil {
			_ = s.conn.WriteError("index is required")
			return
		}
		sess, err = svc.GoTo(ctx, s.userID, *msg.Index)
	case ws.ActionFinish:
		sess, err = svc.Finish(ctx, s.userID)
	default:
		s.log.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
		_ = s.conn.WriteError("unknown action: " + string(msg.Action))
		return
	}

	if err != nil {
		s.fail(err)
		return
	}

	s.handler.writeState(s.conn, sess)
	if sess.Status == exam.StatusFinished {
		s.sendFinished(sess)
	}
}

// sendFinished emits the final score once and stops the ticker.
func (s *sessionStream) sendFinished(sess *exam.Session) {
	s.stopTicking()

	s.mu.Lock()
	done := s.finished
	s.finished = true
	s.mu.Unlock()
	if done {
		return
	}

	report, err := sess.Score()
	if err != nil {
		s.fail(err)
		return
	}
	s.log.Info().Int("score", report.TotalScore).Bool("passed", report.Passed).Msg("Session stream finished")
	_ = s.conn.WriteTyped(ws.FinishedResponse{Event: ws.EventFinished, Expired: sess.Expired, Score: report})
}

func (s *sessionStream) setStop(stop scheduler.CancelFunc) {
	s.mu.Lock()
	s.stop = stop
	s.mu.Unlock()
}

func (s *sessionStream) stopTicking() {
	s.mu.Lock()
	stop := s.stop
	s.mu.Unlock()
	if stop != nil {
		stop()
	}
}

func (s *sessionStream) fail(err error) {
	_, code := sessionErrorCode(err)
	if code == response.ErrInternal {
		s.log.Error().Err(err).Msg("Session stream error")
	}
	if errors.Is(err, service.ErrNoActiveSession) {
		s.stopTicking()
	}
	_ = s.conn.WriteError(response.GetMessage(code))
}
