// Package catalog loads exam definitions and seed questions from a TOML
// file. A default catalog is compiled into the binary.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"github.com/BurntSushi/toml"

	"github.com/cloudtrack/certprep/internal/exam"
)

//go:embed default.toml
var defaultCatalog string

// Catalog is the parsed catalog file.
type Catalog struct {
	Exams     []exam.Definition `toml:"exam"`
	Questions []exam.Question   `toml:"question"`

	byID map[string]int
}

// Default returns the built-in catalog.
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads the catalog at path. An empty path selects the built-in catalog.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(string(data))
}

// Parse decodes and validates catalog TOML.
func Parse(data string) (*Catalog, error) {
	var c Catalog
	md, err := toml.Decode(data, &c)
	if err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("decode catalog: unknown key %s", undecoded[0])
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	c.byID = make(map[string]int, len(c.Exams))
	for i, d := range c.Exams {
		if err := d.Validate(); err != nil {
			return fmt.Errorf("catalog exam %d: %w", i, err)
		}
		if _, dup := c.byID[d.ID]; dup {
			return fmt.Errorf("catalog: duplicate exam id %q", d.ID)
		}
		c.byID[d.ID] = i
	}

	seen := make(map[string]struct{}, len(c.Questions))
	for i, q := range c.Questions {
		if err := q.Validate(); err != nil {
			return fmt.Errorf("catalog question %d: %w", i, err)
		}
		if _, dup := seen[q.ID]; dup {
			return fmt.Errorf("catalog: duplicate question id %q", q.ID)
		}
		seen[q.ID] = struct{}{}
	}
	return nil
}

// Definition looks up an exam by id.
func (c *Catalog) Definition(id string) (exam.Definition, bool) {
	i, ok := c.byID[id]
	if !ok {
		return exam.Definition{}, false
	}
	return c.Exams[i], true
}

// Definitions returns the exams in file order.
func (c *Catalog) Definitions() []exam.Definition {
	out := make([]exam.Definition, len(c.Exams))
	copy(out, c.Exams)
	return out
}

// Bank returns a copy of the catalog questions.
func (c *Catalog) Bank() exam.Bank {
	out := make(exam.Bank, len(c.Questions))
	copy(out, c.Questions)
	return out
}

// CategoryCounts returns the number of questions per category, sorted by name.
func (c *Catalog) CategoryCounts() []CategoryCount {
	counts := make(map[string]int)
	for _, q := range c.Questions {
		counts[q.Category]++
	}
	out := make([]CategoryCount, 0, len(counts))
	for name, n := range counts {
		out = append(out, CategoryCount{Category: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

// CategoryCount is the size of one category in a question bank.
type CategoryCount struct {
	Category string `json:"category"`
	Count    int    `json:"count"`
}
