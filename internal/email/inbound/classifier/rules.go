package classifier

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/TIPA-VN/uxone-sub003/internal/models"
)

// rulesFile is the on-disk format. Sequences keep evaluation order.
//
//	categories:
//	  - name: BUG
//	    keywords: [bug, error]
//	priorities:
//	  - name: URGENT
//	    keywords: [urgent]
type rulesFile struct {
	Categories []namedKeywords `yaml:"categories"`
	Priorities []namedKeywords `yaml:"priorities"`
}

type namedKeywords struct {
	Name     string   `yaml:"name"`
	Keywords []string `yaml:"keywords"`
}

// LoadRules reads a YAML rules file. A section that is absent keeps the
// built-in table.
func LoadRules(r io.Reader) (*Classifier, error) {
	var f rulesFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode classifier rules: %w", err)
	}

	var cats []CategoryRule
	for _, c := range f.Categories {
		cat, ok := models.ParseCategory(c.Name)
		if !ok {
			return nil, fmt.Errorf("classifier rules: unknown category %q", c.Name)
		}
		cats = append(cats, CategoryRule{Category: cat, Keywords: c.Keywords})
	}

	var pris []PriorityRule
	for _, p := range f.Priorities {
		pri, ok := models.ParsePriority(p.Name)
		if !ok {
			return nil, fmt.Errorf("classifier rules: unknown priority %q", p.Name)
		}
		pris = append(pris, PriorityRule{Priority: pri, Keywords: p.Keywords})
	}
	return New(cats, pris), nil
}

// LoadRulesFile is LoadRules on a path. An empty path yields Default().
func LoadRulesFile(path string) (*Classifier, error) {
	if path == "" {
		return Default(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open classifier rules: %w", err)
	}
	defer f.Close()
	return LoadRules(f)
}
