package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/cloudtrack/certprep/internal/catalog"
	"github.com/cloudtrack/certprep/internal/exam"
)

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	catalogPath = ""
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestExamsListsBuiltInCatalog(t *testing.T) {
	out, err := runCmd(t, "exams")
	if err != nil {
		t.Fatalf("exams: %v", err)
	}
	for _, id := range []string{"hcia-cloud", "hcip-cloud", "hcie-cloud"} {
		if !strings.Contains(out, id) {
			t.Fatalf("output missing %s:\n%s", id, out)
		}
	}
}

func TestQuestionsPrintsTotal(t *testing.T) {
	out, err := runCmd(t, "questions")
	if err != nil {
		t.Fatalf("questions: %v", err)
	}
	if !strings.Contains(out, "CATEGORY") || !strings.Contains(out, "total") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}

func TestTakeRejectsUnknownExam(t *testing.T) {
	_, err := runCmd(t, "take", "nope")
	if err == nil || !strings.Contains(err.Error(), "unknown exam") {
		t.Fatalf("err = %v, want unknown exam", err)
	}
}

func TestTakeRejectsEmptyCategory(t *testing.T) {
	_, err := runCmd(t, "take", "hcia-cloud", "--category", "does-not-exist")
	if err == nil || !strings.Contains(err.Error(), "no questions") {
		t.Fatalf("err = %v, want no questions", err)
	}
	takeCategory = ""
}

func TestTakeRejectsInvalidDifficulty(t *testing.T) {
	_, err := runCmd(t, "take", "hcia-cloud", "--difficulty", "extreme")
	if err == nil || !strings.Contains(err.Error(), "invalid difficulty") {
		t.Fatalf("err = %v, want invalid difficulty", err)
	}
	takeDifficulty = ""
}

func TestTakeBankFilters(t *testing.T) {
	cat, err := catalog.Default()
	if err != nil {
		t.Fatalf("default catalog: %v", err)
	}

	hard, err := takeBank(cat, "", "hard")
	if err != nil {
		t.Fatalf("hard: %v", err)
	}
	for _, q := range hard {
		if q.Difficulty != exam.DifficultyHard {
			t.Fatalf("question %s is %s, want hard", q.ID, q.Difficulty)
		}
	}

	both, err := takeBank(cat, hard[0].Category, "hard")
	if err != nil {
		t.Fatalf("category and difficulty: %v", err)
	}
	for _, q := range both {
		if q.Category != hard[0].Category || q.Difficulty != exam.DifficultyHard {
			t.Fatalf("question %s = %s/%s", q.ID, q.Category, q.Difficulty)
		}
	}

	all, err := takeBank(cat, "", "")
	if err != nil || len(all) != len(cat.Questions) {
		t.Fatalf("unfiltered = %d questions (%v), want %d", len(all), err, len(cat.Questions))
	}
}
