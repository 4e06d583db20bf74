package exam

import "fmt"

// MaxScore is the top of the scoring scale used by PassingScore and TotalScore.
const MaxScore = 1000

// Definition describes one exam type.
type Definition struct {
	ID              string `json:"id" toml:"id"`
	Title           string `json:"title" toml:"title"`
	DurationMinutes int    `json:"duration_minutes" toml:"duration_minutes"`
	QuestionCount   int    `json:"question_count" toml:"question_count"`
	PassingScore    int    `json:"passing_score" toml:"passing_score"`
	Description     string `json:"description" toml:"description"`
}

// DurationSeconds returns the exam time budget in seconds.
func (d Definition) DurationSeconds() int {
	return d.DurationMinutes * 60
}

// Validate reports whether the definition can be used to start a session.
func (d Definition) Validate() error {
	switch {
	case d.ID == "":
		return fmt.Errorf("definition id is empty: %w", ErrInvalidInput)
	case d.DurationMinutes < 1:
		return fmt.Errorf("definition %s: duration %d: %w", d.ID, d.DurationMinutes, ErrInvalidInput)
	case d.QuestionCount < 1:
		return fmt.Errorf("definition %s: question count %d: %w", d.ID, d.QuestionCount, ErrInvalidInput)
	case d.PassingScore < 0 || d.PassingScore > MaxScore:
		return fmt.Errorf("definition %s: passing score %d: %w", d.ID, d.PassingScore, ErrInvalidInput)
	}
	return nil
}
