package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/cloudtrack/certprep/internal/exam"
)

// StartSessionQuery narrows the questions a new session draws from.
type StartSessionQuery struct {
	Category   string `form:"category" binding:"omitempty,max=64,slug"`
	Difficulty string `form:"difficulty" binding:"omitempty,oneof=easy medium hard"`
}

// Filter converts the query into a bank filter.
func (q StartSessionQuery) Filter() exam.Filter {
	return exam.Filter{Category: q.Category, Difficulty: exam.Difficulty(q.Difficulty)}
}

// AnswerRequest records an option for a question.
type AnswerRequest struct {
	OptionIndex *int `json:"option_index" binding:"required"`
}

// NavigateRequest moves the question cursor.
type NavigateRequest struct {
	Index *int `json:"index" binding:"required"`
}

// QuestionView is a question as shown to a learner. The correct option and
// explanation are only present once the session is finished.
type QuestionView struct {
	ID            string          `json:"id"`
	Prompt        string          `json:"prompt"`
	Options       []string        `json:"options"`
	Difficulty    exam.Difficulty `json:"difficulty"`
	Category      string          `json:"category"`
	SelectedIndex *int            `json:"selected_index,omitempty"`
	Flagged       bool            `json:"flagged"`
	CorrectOption *int            `json:"correct_option,omitempty"`
	Explanation   string          `json:"explanation,omitempty"`
}

// SessionView is the learner-facing snapshot of an exam session.
type SessionView struct {
	ID               uuid.UUID       `json:"id"`
	Exam             exam.Definition `json:"exam"`
	Status           exam.Status     `json:"status"`
	CurrentIndex     int             `json:"current_index"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Clock            string          `json:"clock"`
	Answered         int             `json:"answered"`
	Expired          bool            `json:"expired"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at,omitempty"`
	Questions        []QuestionView  `json:"questions"`
}

// NewSessionView builds the snapshot for s, hiding answer keys until the
// session is finished.
func NewSessionView(s *exam.Session) SessionView {
	finished := s.Status == exam.StatusFinished

	questions := make([]QuestionView, len(s.Questions))
	for i, q := range s.Questions {
		v := QuestionView{
			ID:         q.ID,
			Prompt:     q.Prompt,
			Options:    q.Options,
			Difficulty: q.Difficulty,
			Category:   q.Category,
			Flagged:    s.Flagged(q.ID),
		}
		if idx, ok := s.Answer(q.ID); ok {
			v.SelectedIndex = &idx
		}
		if finished {
			correct := q.CorrectOption
			v.CorrectOption = &correct
			v.Explanation = q.Explanation
		}
		questions[i] = v
	}

	return SessionView{
		ID:               s.ID,
		Exam:             s.Definition,
		Status:           s.Status,
		CurrentIndex:     s.CurrentIndex,
		RemainingSeconds: s.RemainingSeconds,
		Clock:            exam.FormatClock(s.RemainingSeconds),
		Answered:         len(s.Answers),
		Expired:          s.Expired,
		StartedAt:        s.StartedAt,
		FinishedAt:       s.FinishedAt,
		Questions:        questions,
	}
}
