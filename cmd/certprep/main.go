// Package main provides the terminal entrypoint for practicing exams offline.
package main

import (
	"fmt"
	"os"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/exam"
	"github.com/cloudtrack/certprep/internal/tui"
)

var (
	catalogPath  string
	takeSeed       uint64
	takeCategory   string
	takeDifficulty string
)

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...)
}

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "certprep",
		Short:        "Timed certification practice exams in the terminal",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", os.Getenv("EXAM_CATALOG_PATH"), "TOML exam catalog (default: built-in)")

	rootCmd.AddCommand(newExamsCmd())
	rootCmd.AddCommand(newQuestionsCmd())
	rootCmd.AddCommand(newTakeCmd())

	return rootCmd
}

func newExamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "exams",
		Short: "List available exams",
		Args:  cobra.NoArgs,
		RunE:  runExamsCmd,
	}
}

func runExamsCmd(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	t := newTable("ID", "TITLE", "MINUTES", "QUESTIONS", "PASS")
	for _, d := range cat.Definitions() {
		t.Row(d.ID, d.Title, strconv.Itoa(d.DurationMinutes), strconv.Itoa(d.QuestionCount),
			fmt.Sprintf("%d/%d", d.PassingScore, exam.MaxScore))
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return err
}

func newQuestionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "questions",
		Short: "Show question bank size per category",
		Args:  cobra.NoArgs,
		RunE:  runQuestionsCmd,
	}
}

func runQuestionsCmd(cmd *cobra.Command, _ []string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	t := newTable("CATEGORY", "QUESTIONS")
	for _, c := range cat.CategoryCounts() {
		t.Row(c.Category, strconv.Itoa(c.Count))
	}
	t.Row("total", strconv.Itoa(len(cat.Questions)))
	_, err = fmt.Fprintln(cmd.OutOrStdout(), t.Render())
	return err
}

func newTakeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "take <exam-id>",
		Short: "Take a timed exam",
		Args:  cobra.ExactArgs(1),
		RunE:  runTakeCmd,
	}
	cmd.Flags().Uint64Var(&takeSeed, "seed", 0, "shuffle seed for a reproducible exam (0: random)")
	cmd.Flags().StringVar(&takeCategory, "category", "", "only draw questions from this category")
	cmd.Flags().StringVar(&takeDifficulty, "difficulty", "", "only draw questions of this difficulty (easy, medium, hard)")
	return cmd
}

func runTakeCmd(cmd *cobra.Command, args []string) error {
	cat, err := catalog.Load(catalogPath)
	if err != nil {
		return fmt.Errorf("failed to load catalog: %w", err)
	}

	def, ok := cat.Definition(args[0])
	if !ok {
		return fmt.Errorf("unknown exam %q (see: certprep exams)", args[0])
	}

	bank, err := takeBank(cat, takeCategory, takeDifficulty)
	if err != nil {
		return err
	}

	rnd := exam.NewRandomSource()
	if takeSeed != 0 {
		rnd = exam.NewSeededSource(takeSeed)
	}

	sess, err := exam.Start(def, bank, rnd)
	if err != nil {
		return fmt.Errorf("failed to start exam: %w", err)
	}

	program := tea.NewProgram(tui.NewModel(sess), tea.WithAltScreen())
	final, err := program.Run()
	if err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}

	m, ok := final.(*tui.Model)
	if !ok || m.Session().Status != exam.StatusFinished {
		fmt.Fprintln(cmd.OutOrStdout(), "Exam abandoned.")
		return nil
	}
	report, err := m.Session().Score()
	if err != nil {
		return err
	}
	verdict := "FAILED"
	if report.Passed {
		verdict = "PASSED"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d (%d%%) %s\n",
		def.Title, report.TotalScore, exam.MaxScore, report.Percentage, verdict)
	return nil
}

// takeBank narrows the catalog bank to the requested flags. Unlike the API,
// an explicit flag that matches nothing is an error.
func takeBank(cat *catalog.Catalog, category, difficulty string) (exam.Bank, error) {
	f := exam.Filter{Category: category, Difficulty: exam.Difficulty(difficulty)}
	if difficulty != "" && !f.Difficulty.Valid() {
		return nil, fmt.Errorf("invalid difficulty %q (want easy, medium or hard)", difficulty)
	}
	bank := cat.Bank().Filter(f)
	if len(bank) == 0 {
		return nil, fmt.Errorf("no questions available")
	}
	return bank, nil
}
