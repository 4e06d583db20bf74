// Package exam implements the mock exam session engine: question selection,
// timed progression, answer and flag bookkeeping, completion and scoring.
//
// A Session is owned by a single caller at a time. Nothing in this package
// starts goroutines or reads the clock except to stamp StartedAt/FinishedAt;
// time only advances through Tick.
package exam

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status enumerates the lifecycle states of a session.
type Status string

const (
	StatusNotStarted Status = "NOT_STARTED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFinished   Status = "FINISHED"
)

// Session is one exam attempt.
type Session struct {
	ID               uuid.UUID       `json:"id"`
	Definition       Definition      `json:"definition"`
	Questions        []Question      `json:"questions"`
	Answers          map[string]int  `json:"answers"`
	Flags            map[string]bool `json:"flags"`
	CurrentIndex     int             `json:"current_index"`
	RemainingSeconds int             `json:"remaining_seconds"`
	Status           Status          `json:"status"`
	Expired          bool            `json:"expired"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       *time.Time      `json:"finished_at,omitempty"`
}

// Start creates an in-progress session for def with
// min(def.QuestionCount, len(bank)) questions drawn from bank by rnd.
func Start(def Definition, bank Bank, rnd RandomSource) (*Session, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	if len(bank) == 0 {
		return nil, fmt.Errorf("empty question bank: %w", ErrInvalidInput)
	}
	if rnd == nil {
		return nil, fmt.Errorf("nil random source: %w", ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(bank))
	for _, q := range bank {
		if err := q.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[q.ID]; dup {
			return nil, fmt.Errorf("duplicate question id %s: %w", q.ID, ErrInvalidInput)
		}
		seen[q.ID] = struct{}{}
	}

	n := min(def.QuestionCount, len(bank))

	return &Session{
		ID:               uuid.New(),
		Definition:       def,
		Questions:        pick(bank, n, rnd),
		Answers:          make(map[string]int),
		Flags:            make(map[string]bool),
		CurrentIndex:     0,
		RemainingSeconds: def.DurationSeconds(),
		Status:           StatusInProgress,
		StartedAt:        time.Now().UTC(),
	}, nil
}

// Tick advances the session clock by one second. Reaching zero finishes the
// session. Outside IN_PROGRESS it does nothing, so late timer callbacks are
// harmless.
func (s *Session) Tick() {
	if s.Status != StatusInProgress {
		return
	}
	if s.RemainingSeconds > 0 {
		s.RemainingSeconds--
	}
	if s.RemainingSeconds == 0 {
		s.Expired = true
		s.finish()
	}
}

// Advance applies up to n ticks and returns how many changed the clock.
func (s *Session) Advance(n int) int {
	applied := 0
	for ; applied < n && s.Status == StatusInProgress; applied++ {
		s.Tick()
	}
	return applied
}

// SelectAnswer records optionIndex as the answer to questionID, replacing any
// earlier answer.
func (s *Session) SelectAnswer(questionID string, optionIndex int) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("select answer in %s: %w", s.Status, ErrInvalidState)
	}
	q, ok := s.question(questionID)
	if !ok {
		return fmt.Errorf("unknown question %s: %w", questionID, ErrInvalidInput)
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		return fmt.Errorf("option %d out of range [0,%d): %w", optionIndex, len(q.Options), ErrInvalidInput)
	}
	s.Answers[questionID] = optionIndex
	return nil
}

// ToggleFlag flips the review marker on questionID.
func (s *Session) ToggleFlag(questionID string) error {
	if s.Status != StatusInProgress {
		return fmt.Errorf("toggle flag in %s: %w", s.Status, ErrInvalidState)
	}
	if _, ok := s.question(questionID); !ok {
		return fmt.Errorf("unknown question %s: %w", questionID, ErrInvalidInput)
	}
	if s.Flags[questionID] {
		delete(s.Flags, questionID)
	} else {
		s.Flags[questionID] = true
	}
	return nil
}

// GoTo moves the cursor to index, clamped into the question range.
func (s *Session) GoTo(index int) {
	if s.Status != StatusInProgress {
		return
	}
	last := len(s.Questions) - 1
	switch {
	case index < 0:
		index = 0
	case index > last:
		index = last
	}
	s.CurrentIndex = index
}

// Next and Prev move the cursor by one, clamped.
func (s *Session) Next() { s.GoTo(s.CurrentIndex + 1) }
func (s *Session) Prev() { s.GoTo(s.CurrentIndex - 1) }

// Finish submits the session early. Finishing twice is a no-op.
func (s *Session) Finish() error {
	switch s.Status {
	case StatusFinished:
		return nil
	case StatusInProgress:
		s.finish()
		return nil
	default:
		return fmt.Errorf("finish in %s: %w", s.Status, ErrInvalidState)
	}
}

// Current returns the question under the cursor.
func (s *Session) Current() (Question, bool) {
	if s.CurrentIndex < 0 || s.CurrentIndex >= len(s.Questions) {
		return Question{}, false
	}
	return s.Questions[s.CurrentIndex], true
}

// Answer returns the recorded option for questionID.
func (s *Session) Answer(questionID string) (int, bool) {
	v, ok := s.Answers[questionID]
	return v, ok
}

// Flagged reports whether questionID is marked for review.
func (s *Session) Flagged(questionID string) bool {
	return s.Flags[questionID]
}

func (s *Session) finish() {
	now := time.Now().UTC()
	s.Status = StatusFinished
	s.FinishedAt = &now
}

func (s *Session) question(id string) (Question, bool) {
	for _, q := range s.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}
