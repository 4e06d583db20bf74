// Package tui runs a mock exam in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/cloudtrack/certprep/internal/exam"
)

type tickMsg time.Time

type screen int

const (
	screenExam screen = iota
	screenConfirm
	screenResults
	screenReview
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C89A3A"))
	clockStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	urgentStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF4D4F"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5CB3FF")).Bold(true)
	correctStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	wrongStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	flagStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FAAD14"))
	boxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

// urgentSeconds is when the clock turns red.
const urgentSeconds = 5 * 60

// Model implements the Bubble Tea exam UI over a running session.
type Model struct {
	session *exam.Session
	report  exam.ScoreReport
	screen  screen
	review  int
	help    help.Model

	width  int
	height int
}

// NewModel wraps an in-progress session.
func NewModel(s *exam.Session) *Model {
	m := &Model{session: s, help: help.New()}
	if s.Status == exam.StatusFinished {
		m.showResults()
	}
	return m
}

// Session returns the session driven by the model.
func (m *Model) Session() *exam.Session { return m.session }

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if m.session.Status != exam.StatusInProgress {
		return nil
	}
	return tick()
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case tickMsg:
		if m.session.Status != exam.StatusInProgress {
			return m, nil
		}
		m.session.Tick()
		if m.session.Status == exam.StatusFinished {
			m.showResults()
			return m, nil
		}
		return m, tick()
	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			return m, tea.Quit
		}
		switch m.screen {
		case screenExam:
			m.updateExam(msg)
		case screenConfirm:
			m.updateConfirm(msg)
		case screenResults:
			if key.Matches(msg, keys.Review) {
				m.screen = screenReview
				m.review = 0
			}
		case screenReview:
			m.updateReview(msg)
		}
	}
	return m, nil
}

func (m *Model) updateExam(msg tea.KeyMsg) {
	s := m.session
	switch {
	case key.Matches(msg, keys.Prev):
		s.Prev()
	case key.Matches(msg, keys.Next):
		s.Next()
	case key.Matches(msg, keys.Flag):
		if q, ok := s.Current(); ok {
			_ = s.ToggleFlag(q.ID)
		}
	case key.Matches(msg, keys.Choose):
		q, ok := s.Current()
		if !ok {
			return
		}
		idx := int(msg.Runes[0] - '1')
		// Out-of-range digits are ignored.
		_ = s.SelectAnswer(q.ID, idx)
	case key.Matches(msg, keys.Submit):
		m.screen = screenConfirm
	}
}

func (m *Model) updateConfirm(msg tea.KeyMsg) {
	switch msg.String() {
	case "y", "Y", "enter":
		if err := m.session.Finish(); err == nil {
			m.showResults()
		}
	default:
		m.screen = screenExam
	}
}

func (m *Model) updateReview(msg tea.KeyMsg) {
	last := len(m.session.Questions) - 1
	switch {
	case key.Matches(msg, keys.Prev):
		m.review = max(m.review-1, 0)
	case key.Matches(msg, keys.Next):
		m.review = min(m.review+1, last)
	case key.Matches(msg, keys.Review):
		m.screen = screenResults
	}
}

func (m *Model) showResults() {
	report, err := m.session.Score()
	if err != nil {
		return
	}
	m.report = report
	m.screen = screenResults
}

// View implements tea.Model.
func (m *Model) View() string {
	var body string
	switch m.screen {
	case screenExam:
		body = m.viewExam()
	case screenConfirm:
		body = m.viewConfirm()
	case screenResults:
		body = m.viewResults()
	case screenReview:
		body = m.viewReview()
	}
	if m.width == 0 || m.height == 0 {
		return body
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, body)
}

func (m *Model) contentWidth() int {
	if m.width == 0 {
		return 80
	}
	return max(int(float64(m.width)*0.8), 20)
}

func (m *Model) viewExam() string {
	s := m.session
	q, ok := s.Current()
	if !ok {
		return ""
	}

	clock := clockStyle.Render(exam.FormatClock(s.RemainingSeconds))
	if s.RemainingSeconds <= urgentSeconds {
		clock = urgentStyle.Render(exam.FormatClock(s.RemainingSeconds))
	}
	header := fmt.Sprintf("%s  %s  %s",
		titleStyle.Render(s.Definition.Title),
		clock,
		mutedStyle.Render(fmt.Sprintf("answered %d/%d · flagged %d", len(s.Answers), len(s.Questions), len(s.Flags))),
	)

	var b strings.Builder
	marker := ""
	if s.Flagged(q.ID) {
		marker = flagStyle.Render(" [flagged]")
	}
	fmt.Fprintf(&b, "Question %d of %d%s\n", s.CurrentIndex+1, len(s.Questions), marker)
	b.WriteString(mutedStyle.Render(fmt.Sprintf("%s · %s", q.Category, q.Difficulty)))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(m.contentWidth()).Render(q.Prompt))
	b.WriteString("\n\n")

	selected, answered := s.Answer(q.ID)
	for i, opt := range q.Options {
		line := m.optionLine(i, opt)
		if answered && i == selected {
			line = selectedStyle.Render("> " + line)
		} else {
			line = "  " + line
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		boxStyle.Render(strings.TrimRight(b.String(), "\n")),
		m.help.View(keys),
	)
}

func (m *Model) optionLine(i int, opt string) string {
	return runewidth.Truncate(fmt.Sprintf("%d. %s", i+1, opt), m.contentWidth()-4, "…")
}

func (m *Model) viewConfirm() string {
	s := m.session
	unanswered := len(s.Questions) - len(s.Answers)
	msg := fmt.Sprintf("Submit the exam now? %d unanswered, %d flagged.\n\n[y] submit   [any other key] keep going",
		unanswered, len(s.Flags))
	return boxStyle.Render(msg)
}

func (m *Model) viewResults() string {
	r := m.report

	verdict := correctStyle.Render("PASSED")
	if !r.Passed {
		verdict = wrongStyle.Render("FAILED")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", titleStyle.Render(m.session.Definition.Title))
	fmt.Fprintf(&b, "Score      %d / %d  %s\n", r.TotalScore, exam.MaxScore, verdict)
	fmt.Fprintf(&b, "Passing    %d\n", r.PassingScore)
	fmt.Fprintf(&b, "Correct    %d of %d (%d%%)\n", r.CorrectCount, r.TotalQuestions, r.Percentage)
	fmt.Fprintf(&b, "Time taken %s\n", exam.FormatClock(r.TimeTaken))
	if r.Expired {
		b.WriteString(urgentStyle.Render("Time expired before submission.") + "\n")
	}

	b.WriteString("\nBy category\n")
	writeBreakdowns(&b, r.Categories)
	b.WriteString("\nBy difficulty\n")
	writeBreakdowns(&b, r.Difficulties)

	return lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(strings.TrimRight(b.String(), "\n")),
		m.help.View(reviewKeys{keys}),
	)
}

func writeBreakdowns(b *strings.Builder, rows []exam.Breakdown) {
	for _, row := range rows {
		fmt.Fprintf(b, "  %-20s %d/%d  %3d%%\n", row.Name, row.Correct, row.Total, row.Percentage)
	}
}

func (m *Model) viewReview() string {
	s := m.session
	q := s.Questions[m.review]
	selected, answered := s.Answer(q.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Review %d of %d\n\n", m.review+1, len(s.Questions))
	b.WriteString(lipgloss.NewStyle().Width(m.contentWidth()).Render(q.Prompt))
	b.WriteString("\n\n")
	for i, opt := range q.Options {
		line := "  " + m.optionLine(i, opt)
		switch {
		case i == q.CorrectOption:
			line = correctStyle.Render(line + "  ✓")
		case answered && i == selected:
			line = wrongStyle.Render(line + "  ✗")
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	if !answered {
		b.WriteString(mutedStyle.Render("Not answered.") + "\n")
	}
	if q.Explanation != "" {
		b.WriteString("\n")
		b.WriteString(lipgloss.NewStyle().Width(m.contentWidth()).Render(q.Explanation))
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		boxStyle.Render(strings.TrimRight(b.String(), "\n")),
		m.help.View(reviewKeys{keys}),
	)
}
