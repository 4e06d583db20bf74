package exam

import "fmt"

// Difficulty tags a question.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Valid reports whether d is one of the known difficulty tags.
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}
	return false
}

// Question is one multiple-choice item with exactly one correct option.
type Question struct {
	ID            string     `json:"id" toml:"id"`
	Prompt        string     `json:"prompt" toml:"prompt"`
	Options       []string   `json:"options" toml:"options"`
	CorrectOption int        `json:"correct_option" toml:"correct_option"`
	Difficulty    Difficulty `json:"difficulty" toml:"difficulty"`
	Category      string     `json:"category" toml:"category"`
	Explanation   string     `json:"explanation,omitempty" toml:"explanation"`
}

// Validate checks the structural rules a question must satisfy before it can
// enter a bank.
func (q Question) Validate() error {
	switch {
	case q.ID == "":
		return fmt.Errorf("question id is empty: %w", ErrInvalidInput)
	case q.Prompt == "":
		return fmt.Errorf("question %s: empty prompt: %w", q.ID, ErrInvalidInput)
	case len(q.Options) < 2:
		return fmt.Errorf("question %s: %d options: %w", q.ID, len(q.Options), ErrInvalidInput)
	case q.CorrectOption < 0 || q.CorrectOption >= len(q.Options):
		return fmt.Errorf("question %s: correct option %d: %w", q.ID, q.CorrectOption, ErrInvalidInput)
	case !q.Difficulty.Valid():
		return fmt.Errorf("question %s: difficulty %q: %w", q.ID, q.Difficulty, ErrInvalidInput)
	case q.Category == "":
		return fmt.Errorf("question %s: empty category: %w", q.ID, ErrInvalidInput)
	}
	return nil
}

// Bank is the read-only collection questions are drawn from.
type Bank []Question

// Filter narrows the bank a session draws from. Zero fields match anything.
type Filter struct {
	Category   string     `json:"category,omitempty"`
	Difficulty Difficulty `json:"difficulty,omitempty"`
}

// IsZero reports whether f matches every question.
func (f Filter) IsZero() bool { return f.Category == "" && f.Difficulty == "" }

// Match reports whether q passes f.
func (f Filter) Match(q Question) bool {
	if f.Category != "" && q.Category != f.Category {
		return false
	}
	return f.Difficulty == "" || q.Difficulty == f.Difficulty
}

// Widen drops the category, keeping the difficulty.
func (f Filter) Widen() Filter { return Filter{Difficulty: f.Difficulty} }

// Filter returns the questions matching f in bank order.
func (b Bank) Filter(f Filter) Bank {
	if f.IsZero() {
		return b
	}
	out := make(Bank, 0, len(b))
	for _, q := range b {
		if f.Match(q) {
			out = append(out, q)
		}
	}
	return out
}
