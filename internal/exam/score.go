package exam

import "fmt"

// Breakdown is the result for one category or difficulty group.
type Breakdown struct {
	Name       string `json:"name"`
	Correct    int    `json:"correct"`
	Total      int    `json:"total"`
	Percentage int    `json:"percentage"`
}

// ScoreReport summarises a finished session.
type ScoreReport struct {
	SessionID      string      `json:"session_id"`
	ExamID         string      `json:"exam_id"`
	CorrectCount   int         `json:"correct_count"`
	TotalQuestions int         `json:"total_questions"`
	Answered       int         `json:"answered"`
	Flagged        int         `json:"flagged"`
	TotalScore     int         `json:"total_score"`
	PassingScore   int         `json:"passing_score"`
	Passed         bool        `json:"passed"`
	Percentage     int         `json:"percentage"`
	Expired        bool        `json:"expired"`
	TimeTaken      int         `json:"time_taken_seconds"`
	Categories     []Breakdown `json:"categories"`
	Difficulties   []Breakdown `json:"difficulties"`
}

// Score grades a finished session. Unanswered questions count as incorrect.
func (s *Session) Score() (ScoreReport, error) {
	if s.Status != StatusFinished {
		return ScoreReport{}, fmt.Errorf("score in %s: %w", s.Status, ErrInvalidState)
	}

	categories := newTally()
	difficulties := newTally()
	correct := 0

	for _, q := range s.Questions {
		ok := s.isCorrect(q)
		if ok {
			correct++
		}
		categories.add(q.Category, ok)
		difficulties.add(string(q.Difficulty), ok)
	}

	total := len(s.Questions)
	score := roundRatio(correct, total, MaxScore)

	return ScoreReport{
		SessionID:      s.ID.String(),
		ExamID:         s.Definition.ID,
		CorrectCount:   correct,
		TotalQuestions: total,
		Answered:       len(s.Answers),
		Flagged:        len(s.Flags),
		TotalScore:     score,
		PassingScore:   s.Definition.PassingScore,
		Passed:         score >= s.Definition.PassingScore,
		Percentage:     roundRatio(correct, total, 100),
		Expired:        s.Expired,
		TimeTaken:      s.Definition.DurationSeconds() - s.RemainingSeconds,
		Categories:     categories.breakdowns(),
		Difficulties:   difficulties.breakdowns(),
	}, nil
}

// IsCorrect reports whether the recorded answer to questionID is right.
func (s *Session) IsCorrect(questionID string) bool {
	q, ok := s.question(questionID)
	return ok && s.isCorrect(q)
}

func (s *Session) isCorrect(q Question) bool {
	ans, ok := s.Answers[q.ID]
	return ok && ans == q.CorrectOption
}

// roundRatio returns round(n/d*scale) with halves rounded up, in integer
// arithmetic. d == 0 yields 0.
func roundRatio(n, d, scale int) int {
	if d <= 0 {
		return 0
	}
	return (2*n*scale + d) / (2 * d)
}

// tally counts per-group results while keeping first-seen order.
type tally struct {
	order []string
	rows  map[string]*Breakdown
}

func newTally() *tally {
	return &tally{rows: make(map[string]*Breakdown)}
}

func (t *tally) add(name string, correct bool) {
	row, ok := t.rows[name]
	if !ok {
		row = &Breakdown{Name: name}
		t.rows[name] = row
		t.order = append(t.order, name)
	}
	row.Total++
	if correct {
		row.Correct++
	}
}

func (t *tally) breakdowns() []Breakdown {
	out := make([]Breakdown, 0, len(t.order))
	for _, name := range t.order {
		row := *t.rows[name]
		row.Percentage = roundRatio(row.Correct, row.Total, 100)
		out = append(out, row)
	}
	return out
}
