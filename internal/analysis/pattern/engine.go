// Package pattern turns free-text situation descriptions into structured logs.
// Extraction is table-driven: the engine interprets an injected, read-only
// rule table and fixed detector lists, so identical input and clock always
// yield an identical log.
package pattern

import (
	"strings"
	"time"

	"github.com/rudeai/innerlog/backend/internal/model/record"
)

// Engine creates logs. It is safe for concurrent use.
type Engine struct {
	table *Table
	now   func() time.Time
	loc   *time.Location
}

// Option customises an Engine.
type Option func(*Engine)

// WithClock overrides the clock used for timestamp labels.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithLocation sets the zone timestamp labels are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(e *Engine) {
		if loc != nil {
			e.loc = loc
		}
	}
}

// NewEngine builds an engine over table; a nil table selects DefaultTable.
func NewEngine(table *Table, opts ...Option) *Engine {
	if table == nil {
		table = DefaultTable()
	}
	e := &Engine{table: table, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Table exposes the rule table the engine interprets.
func (e *Engine) Table() *Table {
	return e.table
}

// Location is the zone timestamp labels are rendered in.
func (e *Engine) Location() *time.Location {
	return e.loc
}

// Create builds a log from raw situation text. It never fails: text without
// recognisable cues degrades to fallback fields and a generic insight.
func (e *Engine) Create(raw string) record.Log {
	text := normalize(raw)

	trigger, cued := extractTrigger(text)
	log := record.Log{
		TimestampLabel:  record.TimestampLabel(e.now().In(e.loc)),
		Context:         extractContext(text),
		Trigger:         trigger,
		SomaticResponse: extractSomatic(text),
	}

	if match, ok := e.table.Classify(text); ok {
		log.PatternTag = match.Tag
	}
	log.Insight = e.insight(log)
	log.Ambiguous = log.PatternTag == "" && len(log.SomaticResponse) == 0 && !cued
	return log
}

// WithPattern re-renders log under tag, for callers that pick a pattern by
// other means. Unknown tags leave the log unchanged.
func (e *Engine) WithPattern(log record.Log, tag string) record.Log {
	if _, ok := e.table.Lookup(tag); !ok {
		return log
	}
	out := log.Clone()
	out.PatternTag = tag
	out.Ambiguous = false
	out.Insight = e.insight(out)
	return out
}

func (e *Engine) insight(log record.Log) string {
	if log.PatternTag != "" {
		if rule, ok := e.table.Lookup(log.PatternTag); ok && strings.TrimSpace(rule.Insight) != "" {
			return renderTemplate(rule.Insight, log)
		}
	}
	return genericInsight(log.SomaticResponse)
}

func renderTemplate(tmpl string, log record.Log) string {
	somatic := "no reported sensation"
	if len(log.SomaticResponse) > 0 {
		somatic = strings.Join(log.SomaticResponse, ", ")
	}
	r := strings.NewReplacer(
		"{context}", quoteToken(log.Context),
		"{trigger}", quoteToken(log.Trigger),
		"{somatic}", somatic,
	)
	return normalize(r.Replace(tmpl))
}

func quoteToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "the situation"
	}
	return `"` + truncateWords(lowerFirst(s), 12) + `"`
}

func lowerFirst(s string) string {
	if len(s) > 1 && s[0] >= 'A' && s[0] <= 'Z' && !(s[1] >= 'A' && s[1] <= 'Z') && !strings.HasPrefix(s, "I ") {
		return strings.ToLower(s[:1]) + s[1:]
	}
	return s
}

func genericInsight(somatic []string) string {
	has := func(labels ...string) bool {
		for _, item := range somatic {
			for _, l := range labels {
				if item == l {
					return true
				}
			}
		}
		return false
	}

	switch {
	case has("tight chest", "racing heart", "shallow breathing"):
		return "This was a somatic override scenario. The nervous system read the situation as threat based on prior emotional scripts. " +
			"The body's response preceded cognitive evaluation. Recognition interrupts the automatic sequence."
	case has("anxiety", "restlessness"):
		return "Anxiety functions here as anticipatory protection, attempting to control uncertain outcomes through mental preparation. " +
			"The nervous system conflates vigilance with safety."
	default:
		return "Emotional activation occurred through learned response patterns. " +
			"The reaction stems from historical associations rather than present circumstances. " +
			"Conscious recognition creates space between trigger and response."
	}
}
