package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/model"
	"github.com/cloudtrack/certprep/internal/repository"
)

// Session errors.
var (
	ErrNoActiveSession = errors.New("no active exam session")
	ErrNoQuestions     = errors.New("question bank is empty")
)

// SessionStore persists the active session record of each user.
type SessionStore interface {
	Get(ctx context.Context, userID string) (*model.ActiveSession, error)
	Save(ctx context.Context, rec *model.ActiveSession) error
	Delete(ctx context.Context, userID string) error
}

// ExamSessionService runs exam sessions on behalf of users. Each user has at
// most one session. The session clock follows wall time: every call first
// applies one tick per whole second elapsed since the record was last synced.
type ExamSessionService struct {
	exams     *CatalogService
	questions QuestionSource
	store     SessionStore
	events    SessionEventBus
	locks     *keyedMutex
	log       zerolog.Logger

	now       func() time.Time
	newRandom func() exam.RandomSource
}

// NewExamSessionService creates a new ExamSessionService. events may be nil.
func NewExamSessionService(
	exams *CatalogService,
	questions QuestionSource,
	store SessionStore,
	events SessionEventBus,
	log zerolog.Logger,
) *ExamSessionService {
	return &ExamSessionService{
		exams:     exams,
		questions: questions,
		store:     store,
		events:    events,
		locks:     newKeyedMutex(),
		log:       log,
		now:       time.Now,
		newRandom: exam.NewRandomSource,
	}
}

// Start begins a new attempt of examID for userID, discarding any previous one.
// Questions are drawn from the part of the bank matching filter. When the
// category matches nothing, every question of the requested difficulty is used.
func (s *ExamSessionService) Start(ctx context.Context, userID, examID string, filter exam.Filter) (*exam.Session, error) {
	def, err := s.exams.Get(examID)
	if err != nil {
		return nil, err
	}

	bank, err := s.pool(ctx, userID, filter)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(userID)
	defer unlock()

	sess, err := exam.Start(def, bank, s.newRandom())
	if err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}

	rec := &model.ActiveSession{UserID: userID, Session: sess, SyncedAt: s.now()}
	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("user_id", userID).
		Str("session_id", sess.ID.String()).
		Str("exam_id", examID).
		Str("category", filter.Category).
		Str("difficulty", string(filter.Difficulty)).
		Int("questions", len(sess.Questions)).
		Msg("Exam session started")
	s.publish(ctx, SessionEvent{
		Type:      SessionEventStarted,
		UserID:    userID,
		SessionID: sess.ID.String(),
		ExamID:    examID,
	})
	return sess, nil
}

func (s *ExamSessionService) pool(ctx context.Context, userID string, filter exam.Filter) (exam.Bank, error) {
	bank, err := s.questions.Bank(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("load question bank: %w", err)
	}
	if len(bank) == 0 && filter.Category != "" {
		s.log.Debug().
			Str("user_id", userID).
			Str("category", filter.Category).
			Msg("No questions in category, widening to difficulty")
		bank, err = s.questions.Bank(ctx, filter.Widen())
		if err != nil {
			return nil, fmt.Errorf("load question bank: %w", err)
		}
	}
	if len(bank) == 0 {
		return nil, ErrNoQuestions
	}
	return bank, nil
}

// State returns the user's session after catching its clock up.
func (s *ExamSessionService) State(ctx context.Context, userID string) (*exam.Session, error) {
	return s.mutate(ctx, userID, func(*exam.Session) error { return nil })
}

// SelectAnswer records an answer on the user's session.
func (s *ExamSessionService) SelectAnswer(ctx context.Context, userID, questionID string, optionIndex int) (*exam.Session, error) {
	return s.mutate(ctx, userID, func(sess *exam.Session) error {
		return sess.SelectAnswer(questionID, optionIndex)
	})
}

// ToggleFlag flips the review marker of a question.
func (s *ExamSessionService) ToggleFlag(ctx context.Context, userID, questionID string) (*exam.Session, error) {
	return s.mutate(ctx, userID, func(sess *exam.Session) error {
		return sess.ToggleFlag(questionID)
	})
}

// GoTo moves the question cursor, clamped into range.
func (s *ExamSessionService) GoTo(ctx context.Context, userID string, index int) (*exam.Session, error) {
	return s.mutate(ctx, userID, func(sess *exam.Session) error {
		sess.GoTo(index)
		return nil
	})
}

// Finish submits the user's session.
func (s *ExamSessionService) Finish(ctx context.Context, userID string) (*exam.Session, error) {
	submitted := false
	sess, err := s.mutate(ctx, userID, func(sess *exam.Session) error {
		submitted = sess.Status == exam.StatusInProgress
		return sess.Finish()
	})
	if err != nil {
		return nil, err
	}
	if submitted {
		s.log.Info().Str("user_id", userID).Str("session_id", sess.ID.String()).Msg("Exam session finished")
	}
	return sess, nil
}

// Score returns the result of the user's finished session.
func (s *ExamSessionService) Score(ctx context.Context, userID string) (exam.ScoreReport, error) {
	sess, err := s.State(ctx, userID)
	if err != nil {
		return exam.ScoreReport{}, err
	}
	return sess.Score()
}

// Reset discards the user's session.
func (s *ExamSessionService) Reset(ctx context.Context, userID string) error {
	unlock := s.locks.Lock(userID)
	defer unlock()

	if err := s.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.log.Info().Str("user_id", userID).Msg("Exam session reset")
	s.publish(ctx, SessionEvent{Type: SessionEventReset, UserID: userID})
	return nil
}

// mutate loads and syncs the user's session, applies fn and stores the
// result. The stored record is left untouched when fn fails.
func (s *ExamSessionService) mutate(ctx context.Context, userID string, fn func(*exam.Session) error) (*exam.Session, error) {
	unlock := s.locks.Lock(userID)
	defer unlock()

	rec, err := s.store.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}

	wasRunning := rec.Session.Status == exam.StatusInProgress
	expired := s.sync(rec)
	if expired {
		s.log.Info().Str("user_id", userID).Str("session_id", rec.Session.ID.String()).Msg("Exam session time expired")
	}

	if err := fn(rec.Session); err != nil {
		if expired {
			if saveErr := s.store.Save(ctx, rec); saveErr != nil {
				s.log.Error().Err(saveErr).Str("user_id", userID).Msg("Failed to store expired session")
			} else {
				s.publishFinished(ctx, rec)
			}
		}
		return nil, err
	}

	if err := s.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	if wasRunning && rec.Session.Status == exam.StatusFinished {
		s.publishFinished(ctx, rec)
	}
	return rec.Session, nil
}

func (s *ExamSessionService) publishFinished(ctx context.Context, rec *model.ActiveSession) {
	ev := SessionEvent{
		Type:      SessionEventFinished,
		UserID:    rec.UserID,
		SessionID: rec.Session.ID.String(),
		ExamID:    rec.Session.Definition.ID,
		Expired:   rec.Session.Expired,
	}
	if report, err := rec.Session.Score(); err == nil {
		ev.Score = &report.TotalScore
		ev.Passed = &report.Passed
	}
	s.publish(ctx, ev)
}

// publish is best-effort; monitors are never allowed to fail a session call.
func (s *ExamSessionService) publish(ctx context.Context, ev SessionEvent) {
	if s.events == nil {
		return
	}
	ev.At = s.now()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.Warn().Err(err).Str("type", string(ev.Type)).Str("user_id", ev.UserID).Msg("Failed to publish session event")
	}
}

// sync ticks the session once per whole second since rec.SyncedAt and reports
// whether the clock ran out during catch-up.
func (s *ExamSessionService) sync(rec *model.ActiveSession) bool {
	now := s.now()
	if rec.Session.Status != exam.StatusInProgress {
		rec.SyncedAt = now
		return false
	}

	elapsed := int(now.Sub(rec.SyncedAt) / time.Second)
	if elapsed <= 0 {
		return false
	}
	rec.Session.Advance(elapsed)
	rec.SyncedAt = rec.SyncedAt.Add(time.Duration(elapsed) * time.Second)
	return rec.Session.Status == exam.StatusFinished
}

// keyedMutex hands out one mutex per key and frees it when unused.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedLock)}
}

// Lock acquires the mutex for key and returns its release function.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
