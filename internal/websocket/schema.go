package websocket

import (
	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionAnswer Action = "answer"
	ActionFlag   Action = "flag"
	ActionGoTo   Action = "goto"
	ActionFinish Action = "finish"
	ActionPing   Action = "ping"
)

// RequestPayload carries every client action; fields unused by an action
// are ignored.
type RequestPayload struct {
	Action      Action `json:"action"`
	QuestionID  string `json:"question_id,omitempty"`
	OptionIndex *int   `json:"option_index,omitempty"`
	Index       *int   `json:"index,omitempty"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventState    Event = "state"
	EventTick     Event = "tick"
	EventFinished Event = "finished"
	EventError    Event = "error"
	EventPong     Event = "pong"
)

// StateResponse carries the full session snapshot.
type StateResponse struct {
	Event   Event             `json:"event"`
	Session model.SessionView `json:"session"`
}

// TickResponse is sent once per second while the session runs.
type TickResponse struct {
	Event            Event  `json:"event"`
	RemainingSeconds int    `json:"remaining_seconds"`
	Clock            string `json:"clock"`
}

// FinishedResponse is sent once when the session ends.
type FinishedResponse struct {
	Event   Event            `json:"event"`
	Expired bool             `json:"expired"`
	Score   exam.ScoreReport `json:"score"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
