package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/repository"
	"github.com/cloudtrack/certprep/internal/response"
)

// QuestionSource supplies the question bank exams draw from.
type QuestionSource interface {
	// Bank returns the questions matching f.
	Bank(ctx context.Context, f exam.Filter) (exam.Bank, error)
	// Page returns questions ordered by id, optionally restricted to category,
	// along with the number of matching questions.
	Page(ctx context.Context, category string, limit, offset int) (exam.Bank, int, error)
	CategoryCounts(ctx context.Context) ([]catalog.CategoryCount, error)
}

// CatalogQuestionSource serves the bank embedded in an exam catalog.
type CatalogQuestionSource struct {
	catalog *catalog.Catalog
}

// NewCatalogQuestionSource creates a new CatalogQuestionSource.
func NewCatalogQuestionSource(c *catalog.Catalog) *CatalogQuestionSource {
	return &CatalogQuestionSource{catalog: c}
}

func (s *CatalogQuestionSource) Bank(_ context.Context, f exam.Filter) (exam.Bank, error) {
	return s.catalog.Bank().Filter(f), nil
}

func (s *CatalogQuestionSource) Page(_ context.Context, category string, limit, offset int) (exam.Bank, int, error) {
	matched := s.catalog.Bank().Filter(exam.Filter{Category: category})
	slices.SortStableFunc(matched, func(a, b exam.Question) int { return strings.Compare(a.ID, b.ID) })

	total := len(matched)
	start := min(offset, total)
	end := min(start+limit, total)
	return matched[start:end], total, nil
}

func (s *CatalogQuestionSource) CategoryCounts(context.Context) ([]catalog.CategoryCount, error) {
	return s.catalog.CategoryCounts(), nil
}

// PostgresQuestionSource serves the bank stored in the questions table.
type PostgresQuestionSource struct {
	repo *repository.QuestionRepository
}

// NewPostgresQuestionSource creates a new PostgresQuestionSource.
func NewPostgresQuestionSource(repo *repository.QuestionRepository) *PostgresQuestionSource {
	return &PostgresQuestionSource{repo: repo}
}

func (s *PostgresQuestionSource) Bank(ctx context.Context, f exam.Filter) (exam.Bank, error) {
	return s.repo.List(ctx, f)
}

func (s *PostgresQuestionSource) Page(ctx context.Context, category string, limit, offset int) (exam.Bank, int, error) {
	return s.repo.ListPaginated(ctx, category, limit, offset)
}

func (s *PostgresQuestionSource) CategoryCounts(ctx context.Context) ([]catalog.CategoryCount, error) {
	return s.repo.CategoryCounts(ctx)
}

// ImportQueue receives encoded questions for the import worker.
type ImportQueue interface {
	Push(ctx context.Context, payloads ...[]byte) error
}

// QuestionStats summarises the bank.
type QuestionStats struct {
	Total      int                     `json:"total"`
	Categories []catalog.CategoryCount `json:"categories"`
}

// QuestionService handles question bank administration.
type QuestionService struct {
	source QuestionSource
	queue  ImportQueue
}

// NewQuestionService creates a new QuestionService. queue may be nil when
// imports are disabled.
func NewQuestionService(source QuestionSource, queue ImportQueue) *QuestionService {
	return &QuestionService{source: source, queue: queue}
}

// Stats returns the question count per category.
func (s *QuestionService) Stats(ctx context.Context) (*QuestionStats, error) {
	counts, err := s.source.CategoryCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("count questions: %w", err)
	}
	stats := &QuestionStats{Categories: counts}
	for _, c := range counts {
		stats.Total += c.Count
	}
	return stats, nil
}

// List returns one page of the bank, optionally restricted to category.
func (s *QuestionService) List(ctx context.Context, category string, page, perPage int) ([]exam.Question, *response.Pagination, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = 20
	}
	if perPage > 100 {
		perPage = 100
	}

	questions, total, err := s.source.Page(ctx, category, perPage, (page-1)*perPage)
	if err != nil {
		return nil, nil, fmt.Errorf("list questions: %w", err)
	}
	if questions == nil {
		questions = []exam.Question{}
	}
	return questions, response.NewPagination(page, perPage, total), nil
}

// EnqueueImport validates questions and queues them for the import worker.
// Questions without an id get a generated one. It returns the queued ids.
func (s *QuestionService) EnqueueImport(ctx context.Context, questions []exam.Question) ([]string, error) {
	if s.queue == nil {
		return nil, fmt.Errorf("question import is disabled: %w", exam.ErrInvalidState)
	}

	ids := make([]string, 0, len(questions))
	payloads := make([][]byte, 0, len(questions))
	for i := range questions {
		q := questions[i]
		if q.ID == "" {
			q.ID = uuid.NewString()
		}
		if err := q.Validate(); err != nil {
			return nil, fmt.Errorf("question %d: %w", i, err)
		}
		data, err := json.Marshal(q)
		if err != nil {
			return nil, fmt.Errorf("marshal question %s: %w", q.ID, err)
		}
		ids = append(ids, q.ID)
		payloads = append(payloads, data)
	}

	if err := s.queue.Push(ctx, payloads...); err != nil {
		return nil, fmt.Errorf("enqueue import: %w", err)
	}
	return ids, nil
}
