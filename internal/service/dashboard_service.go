package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/cloudtrack/certprep/internal/model"
)

// UserCounter reports how many accounts exist per role.
type UserCounter interface {
	CountUsersByRole(ctx context.Context) (map[model.Role]int, error)
}

// ActiveSessionCounter reports how many exam sessions are in progress.
type ActiveSessionCounter interface {
	CountActive(ctx context.Context) (int, error)
}

// DashboardData consolidates all metrics for the admin dashboard.
type DashboardData struct {
	TotalUsers     int                `json:"total_users"`
	UsersByRole    map[model.Role]int `json:"users_by_role"`
	TotalExams     int                `json:"total_exams"`
	TotalQuestions int                `json:"total_questions"`
	ActiveSessions int                `json:"active_sessions"`
	// Partial is set when a best-effort metric could not be fetched.
	Partial bool `json:"partial"`
}

// DashboardService handles admin dashboard business logic.
type DashboardService struct {
	users     UserCounter
	sessions  ActiveSessionCounter
	questions *QuestionService
	catalog   *CatalogService
	log       zerolog.Logger
}

// NewDashboardService creates a new DashboardService.
func NewDashboardService(
	users UserCounter,
	sessions ActiveSessionCounter,
	questions *QuestionService,
	catalog *CatalogService,
	log zerolog.Logger,
) *DashboardService {
	return &DashboardService{
		users:     users,
		sessions:  sessions,
		questions: questions,
		catalog:   catalog,
		log:       log.With().Str("component", "dashboard_service").Logger(),
	}
}

// GetDashboardData fetches every metric concurrently.
func (s *DashboardService) GetDashboardData(ctx context.Context) (*DashboardData, error) {
	var (
		userCounts  map[model.Role]int
		stats       *QuestionStats
		active      int
		usersErr    error
		statsErr    error
		sessionsErr error
		wg          sync.WaitGroup
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		userCounts, usersErr = s.users.CountUsersByRole(ctx)
	}()
	go func() {
		defer wg.Done()
		stats, statsErr = s.questions.Stats(ctx)
	}()
	go func() {
		defer wg.Done()
		active, sessionsErr = s.sessions.CountActive(ctx)
	}()
	wg.Wait()

	// User and question counts are critical; the session count is best-effort.
	if usersErr != nil {
		return nil, fmt.Errorf("count users: %w", usersErr)
	}
	if statsErr != nil {
		return nil, fmt.Errorf("question stats: %w", statsErr)
	}

	data := &DashboardData{
		UsersByRole:    userCounts,
		TotalExams:     len(s.catalog.List()),
		TotalQuestions: stats.Total,
		ActiveSessions: active,
	}
	for _, n := range userCounts {
		data.TotalUsers += n
	}
	if sessionsErr != nil {
		s.log.Warn().Err(sessionsErr).Msg("Failed to count active sessions")
		data.Partial = true
	}
	return data, nil
}
