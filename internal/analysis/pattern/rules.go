package pattern

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule declares one psychological pattern: the cues that detect it and the
// insight template rendered when it wins. Templates may reference {context},
// {trigger} and {somatic}.
type Rule struct {
	Tag     string   `yaml:"tag" json:"tag"`
	Name    string   `yaml:"name" json:"name"`
	Cues    []string `yaml:"cues" json:"cues"`
	Insight string   `yaml:"insight" json:"insight"`
}

type compiledRule struct {
	Rule
	cues []*regexp.Regexp
}

// Table is an ordered, compiled, read-only set of rules. Registration order is
// the tie-break when two rules match the same number of cues.
type Table struct {
	rules []compiledRule
	byTag map[string]int
}

// NewTable compiles rules in the given order.
func NewTable(rules []Rule) (*Table, error) {
	t := &Table{
		rules: make([]compiledRule, 0, len(rules)),
		byTag: make(map[string]int, len(rules)),
	}
	for _, r := range rules {
		tag := strings.TrimSpace(r.Tag)
		if tag == "" {
			return nil, errors.New("pattern rule tag is required")
		}
		if _, dup := t.byTag[tag]; dup {
			return nil, fmt.Errorf("duplicate pattern rule %q", tag)
		}
		if len(r.Cues) == 0 {
			return nil, fmt.Errorf("pattern rule %q has no cues", tag)
		}

		cr := compiledRule{Rule: r}
		cr.Tag = tag
		if cr.Name == "" {
			cr.Name = tag
		}
		for _, cue := range r.Cues {
			re, err := regexp.Compile("(?i)" + cue)
			if err != nil {
				return nil, fmt.Errorf("pattern rule %q cue %q: %w", tag, cue, err)
			}
			cr.cues = append(cr.cues, re)
		}
		t.byTag[tag] = len(t.rules)
		t.rules = append(t.rules, cr)
	}
	return t, nil
}

// MustTable is NewTable for static rule sets.
func MustTable(rules []Rule) *Table {
	t, err := NewTable(rules)
	if err != nil {
		panic(err)
	}
	return t
}

type tableFile struct {
	Patterns []Rule `yaml:"patterns"`
}

// LoadTable reads a YAML rule file of the form
//
//	patterns:
//	  - tag: sunk-cost
//	    name: Sunk-cost
//	    cues: ['\bwast(e|ed|ing)\b']
//	    insight: "..."
func LoadTable(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pattern table: %w", err)
	}

	var file tableFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode pattern table: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("pattern table %s declares no patterns", path)
	}
	return NewTable(file.Patterns)
}

// Rules returns a copy of the declared rules in registration order.
func (t *Table) Rules() []Rule {
	out := make([]Rule, 0, len(t.rules))
	for _, r := range t.rules {
		rule := r.Rule
		rule.Cues = append([]string(nil), r.Cues...)
		out = append(out, rule)
	}
	return out
}

// Tags lists the rule tags in registration order.
func (t *Table) Tags() []string {
	out := make([]string, 0, len(t.rules))
	for _, r := range t.rules {
		out = append(out, r.Tag)
	}
	return out
}

// Lookup finds a rule by tag.
func (t *Table) Lookup(tag string) (Rule, bool) {
	idx, ok := t.byTag[tag]
	if !ok {
		return Rule{}, false
	}
	return t.rules[idx].Rule, true
}

// Match is the score of one rule against a text.
type Match struct {
	Tag   string
	Score int
}

// Classify returns the best rule for text: highest number of distinct matching
// cues, earliest registration on a tie. ok is false when no cue matched.
func (t *Table) Classify(text string) (Match, bool) {
	best := Match{}
	for _, r := range t.rules {
		score := 0
		for _, cue := range r.cues {
			if cue.MatchString(text) {
				score++
			}
		}
		if score > best.Score {
			best = Match{Tag: r.Tag, Score: score}
		}
	}
	return best, best.Score > 0
}
