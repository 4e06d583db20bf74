package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/exam"
)

// QuestionRepository handles question bank data access.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

const questionColumns = `id, prompt, options, correct_option, difficulty, category, explanation`

// List retrieves the questions matching f ordered by id.
func (r *QuestionRepository) List(ctx context.Context, f exam.Filter) (exam.Bank, error) {
	query := `SELECT ` + questionColumns + ` FROM questions`
	var (
		where []string
		args  []any
	)
	if f.Category != "" {
		args = append(args, f.Category)
		where = append(where, `category = $`+strconv.Itoa(len(args)))
	}
	if f.Difficulty != "" {
		args = append(args, string(f.Difficulty))
		where = append(where, `difficulty = $`+strconv.Itoa(len(args)))
	}
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, ` AND `)
	}
	query += ` ORDER BY id`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return scanQuestions(rows)
}

// ListPaginated retrieves one page of questions ordered by id, with the total
// count. Pass category="" to list every category.
func (r *QuestionRepository) ListPaginated(ctx context.Context, category string, limit, offset int) (exam.Bank, int, error) {
	countQuery := `SELECT COUNT(*) FROM questions`
	query := `SELECT ` + questionColumns + ` FROM questions`
	var args []any
	if category != "" {
		countQuery += ` WHERE category = $1`
		query += ` WHERE category = $1`
		args = append(args, category)
	}

	var total int
	if err := r.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if offset >= total {
		return exam.Bank{}, total, nil
	}

	query += ` ORDER BY id LIMIT $` + strconv.Itoa(len(args)+1) + ` OFFSET $` + strconv.Itoa(len(args)+2)
	args = append(args, limit, offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	bank, err := scanQuestions(rows)
	if err != nil {
		return nil, 0, err
	}
	return bank, total, nil
}

// CategoryCounts returns the number of questions per category.
func (r *QuestionRepository) CategoryCounts(ctx context.Context) ([]catalog.CategoryCount, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM questions GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var counts []catalog.CategoryCount
	for rows.Next() {
		var c catalog.CategoryCount
		if err := rows.Scan(&c.Category, &c.Count); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// BulkUpsert inserts or replaces a batch of questions in one statement.
func (r *QuestionRepository) BulkUpsert(ctx context.Context, questions []exam.Question) error {
	if len(questions) == 0 {
		return nil
	}

	n := len(questions)
	ids := make([]string, 0, n)
	prompts := make([]string, 0, n)
	options := make([][]byte, 0, n)
	corrects := make([]int32, 0, n)
	difficulties := make([]string, 0, n)
	categories := make([]string, 0, n)
	explanations := make([]string, 0, n)

	for _, q := range questions {
		ob, err := json.Marshal(q.Options)
		if err != nil {
			return fmt.Errorf("marshal options of %s: %w", q.ID, err)
		}
		ids = append(ids, q.ID)
		prompts = append(prompts, q.Prompt)
		options = append(options, ob)
		corrects = append(corrects, int32(q.CorrectOption))
		difficulties = append(difficulties, string(q.Difficulty))
		categories = append(categories, q.Category)
		explanations = append(explanations, q.Explanation)
	}

	query := `
		INSERT INTO questions (id, prompt, options, correct_option, difficulty, category, explanation)
		SELECT u.id, u.prompt, u.options, u.correct_option, u.difficulty, u.category, u.explanation
		FROM UNNEST(
			$1::text[],
			$2::text[],
			$3::jsonb[],
			$4::int[],
			$5::text[],
			$6::text[],
			$7::text[]
		) AS u (id, prompt, options, correct_option, difficulty, category, explanation)
		ON CONFLICT (id) DO UPDATE
		SET prompt = EXCLUDED.prompt,
		    options = EXCLUDED.options,
		    correct_option = EXCLUDED.correct_option,
		    difficulty = EXCLUDED.difficulty,
		    category = EXCLUDED.category,
		    explanation = EXCLUDED.explanation,
		    updated_at = NOW()
	`

	_, err := r.pool.Exec(ctx, query, ids, prompts, options, corrects, difficulties, categories, explanations)
	return err
}

// Upsert inserts or replaces a single question.
func (r *QuestionRepository) Upsert(ctx context.Context, q exam.Question) error {
	ob, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("marshal options of %s: %w", q.ID, err)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO questions (id, prompt, options, correct_option, difficulty, category, explanation)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO UPDATE
		 SET prompt = EXCLUDED.prompt,
		     options = EXCLUDED.options,
		     correct_option = EXCLUDED.correct_option,
		     difficulty = EXCLUDED.difficulty,
		     category = EXCLUDED.category,
		     explanation = EXCLUDED.explanation,
		     updated_at = NOW()`,
		q.ID, q.Prompt, ob, q.CorrectOption, string(q.Difficulty), q.Category, q.Explanation,
	)
	return err
}

func scanQuestions(rows pgx.Rows) (exam.Bank, error) {
	defer rows.Close()

	var bank exam.Bank
	for rows.Next() {
		var (
			q       exam.Question
			options []byte
			diff    string
		)
		if err := rows.Scan(&q.ID, &q.Prompt, &options, &q.CorrectOption, &diff, &q.Category, &q.Explanation); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(options, &q.Options); err != nil {
			return nil, fmt.Errorf("decode options of %s: %w", q.ID, err)
		}
		q.Difficulty = exam.Difficulty(diff)
		bank = append(bank, q)
	}
	return bank, rows.Err()
}
