package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultCatalog(t *testing.T) {
	c, err := Default()
	if err != nil {
		t.Fatalf("default: %v", err)
	}
	if len(c.Definitions()) != 3 {
		t.Fatalf("definitions = %d, want 3", len(c.Definitions()))
	}

	d, ok := c.Definition("hcie-cloud")
	if !ok {
		t.Fatalf("hcie-cloud missing")
	}
	if d.DurationMinutes != 120 || d.QuestionCount != 80 || d.PassingScore != 700 {
		t.Fatalf("hcie-cloud = %+v", d)
	}
	if _, ok := c.Definition("nope"); ok {
		t.Fatalf("unexpected definition")
	}
	if len(c.Bank()) < 8 {
		t.Fatalf("bank = %d questions, want at least 8", len(c.Bank()))
	}

	total := 0
	for _, cc := range c.CategoryCounts() {
		total += cc.Count
	}
	if total != len(c.Bank()) {
		t.Fatalf("category counts sum %d, want %d", total, len(c.Bank()))
	}
}

func TestParseRejectsBadCatalogs(t *testing.T) {
	tests := []struct {
		name string
		data string
		want string
	}{
		{
			name: "unknown key",
			data: "[[exam]]\nid = \"a\"\nduration_minutes = 1\nquestion_count = 1\npassing_score = 1\ncolour = \"red\"\n",
			want: "unknown key",
		},
		{
			name: "duplicate exam",
			data: "[[exam]]\nid = \"a\"\nduration_minutes = 1\nquestion_count = 1\n[[exam]]\nid = \"a\"\nduration_minutes = 1\nquestion_count = 1\n",
			want: "duplicate exam",
		},
		{
			name: "bad passing score",
			data: "[[exam]]\nid = \"a\"\nduration_minutes = 1\nquestion_count = 1\npassing_score = 1001\n",
			want: "passing score",
		},
		{
			name: "correct option out of range",
			data: "[[question]]\nid = \"q\"\nprompt = \"p\"\noptions = [\"x\", \"y\"]\ncorrect_option = 2\ndifficulty = \"easy\"\ncategory = \"c\"\n",
			want: "correct option",
		},
		{
			name: "bad difficulty",
			data: "[[question]]\nid = \"q\"\nprompt = \"p\"\noptions = [\"x\", \"y\"]\ncorrect_option = 0\ndifficulty = \"brutal\"\ncategory = \"c\"\n",
			want: "difficulty",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.data)
			if err == nil {
				t.Fatalf("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.toml")
	data := `
[[exam]]
id = "quick"
title = "Quick"
duration_minutes = 5
question_count = 2
passing_score = 500

[[question]]
id = "q1"
prompt = "one"
options = ["a", "b"]
correct_option = 0
difficulty = "easy"
category = "basics"
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	c, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	d, ok := c.Definition("quick")
	if !ok || d.QuestionCount != 2 {
		t.Fatalf("quick = %+v, %v", d, ok)
	}
	if len(c.Bank()) != 1 || c.Bank()[0].Options[1] != "b" {
		t.Fatalf("bank = %+v", c.Bank())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
