package record

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrMalformedLog is returned by Parse when the text is not a rendered log block.
	ErrMalformedLog = errors.New("malformed log block")
	// ErrIncompleteLog wraps every problem reported by Validate.
	ErrIncompleteLog = errors.New("incomplete log")
)

// MinFieldLength is the shortest trimmed text Validate accepts for a field.
const MinFieldLength = 10

// Log is the structured clinical record extracted from one situation description.
type Log struct {
	ID              string   `json:"id,omitempty"`
	TimestampLabel  string   `json:"timestampLabel"`
	Context         string   `json:"context"`
	Trigger         string   `json:"trigger"`
	SomaticResponse []string `json:"somaticResponse"`
	Insight         string   `json:"insight"`
	PatternTag      string   `json:"patternTag,omitempty"`
	Ambiguous       bool     `json:"ambiguous,omitempty"`
}

// Clone returns a deep copy so callers cannot mutate a stored log.
func (l Log) Clone() Log {
	out := l
	if l.SomaticResponse != nil {
		out.SomaticResponse = append([]string(nil), l.SomaticResponse...)
	}
	return out
}

const (
	contextLabel = "Context:"
	triggerLabel = "Trigger:"
	somaticLabel = "Somatic Response:"
	insightLabel = "Insight:"
	bullet       = "- "
)

// TimestampLabel formats t the way log headers are written, e.g. "August 27, 2025 Evening".
func TimestampLabel(t time.Time) string {
	return fmt.Sprintf("%s %s", t.Format("January 2, 2006"), partOfDay(t.Hour()))
}

func partOfDay(hour int) string {
	switch {
	case hour >= 5 && hour < 12:
		return "Morning"
	case hour >= 12 && hour < 17:
		return "Afternoon"
	case hour >= 17 && hour < 21:
		return "Evening"
	default:
		return "Night"
	}
}

var partsOfDay = []string{"Morning", "Afternoon", "Evening", "Night"}

// Validate checks that a log reads as a complete record: the header names a
// month and a part of day, and every field carries substantive text. It
// returns nil for a complete log.
func Validate(l Log) []error {
	var problems []error

	hasMonth := false
	for m := time.January; m <= time.December; m++ {
		if strings.Contains(l.TimestampLabel, m.String()) {
			hasMonth = true
			break
		}
	}
	if !hasMonth {
		problems = append(problems, fmt.Errorf("%w: header must contain a month name", ErrIncompleteLog))
	}

	hasPart := false
	for _, part := range partsOfDay {
		if strings.Contains(l.TimestampLabel, part) {
			hasPart = true
			break
		}
	}
	if !hasPart {
		problems = append(problems, fmt.Errorf("%w: header must contain a part of day", ErrIncompleteLog))
	}

	fields := []struct {
		name  string
		value string
	}{
		{"context", l.Context},
		{"trigger", l.Trigger},
		{"somatic response", strings.Join(l.SomaticResponse, ", ")},
		{"insight", l.Insight},
	}
	for _, f := range fields {
		if len(strings.TrimSpace(f.value)) < MinFieldLength {
			problems = append(problems, fmt.Errorf("%w: %s must be at least %d characters", ErrIncompleteLog, f.name, MinFieldLength))
		}
	}
	return problems
}

// Render writes the labeled block consumed by the override-protocol and persistence collaborators.
func Render(l Log) string {
	var b strings.Builder
	b.WriteString(l.TimestampLabel)
	b.WriteString("\n")
	writeField(&b, contextLabel, l.Context)
	writeField(&b, triggerLabel, l.Trigger)
	b.WriteString(somaticLabel)
	b.WriteString("\n")
	for _, item := range l.SomaticResponse {
		b.WriteString(bullet)
		b.WriteString(item)
		b.WriteString("\n")
	}
	b.WriteString(insightLabel)
	if l.Insight != "" {
		b.WriteString(" ")
		b.WriteString(l.Insight)
	}
	return b.String()
}

func writeField(b *strings.Builder, label, value string) {
	b.WriteString(label)
	if value != "" {
		b.WriteString(" ")
		b.WriteString(value)
	}
	b.WriteString("\n")
}

// Parse reads a block produced by Render back into a Log. ID, PatternTag and
// Ambiguous are not part of the block and stay zero.
func Parse(text string) (Log, error) {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	idx := 0
	for idx < len(lines) && strings.TrimSpace(lines[idx]) == "" {
		idx++
	}
	if idx >= len(lines) {
		return Log{}, fmt.Errorf("%w: empty input", ErrMalformedLog)
	}

	var out Log
	out.TimestampLabel = strings.TrimSpace(lines[idx])
	idx++

	var ok bool
	if out.Context, idx, ok = readField(lines, idx, contextLabel); !ok {
		return Log{}, fmt.Errorf("%w: missing %q", ErrMalformedLog, contextLabel)
	}
	if out.Trigger, idx, ok = readField(lines, idx, triggerLabel); !ok {
		return Log{}, fmt.Errorf("%w: missing %q", ErrMalformedLog, triggerLabel)
	}
	if idx >= len(lines) || strings.TrimSpace(lines[idx]) != somaticLabel {
		return Log{}, fmt.Errorf("%w: missing %q", ErrMalformedLog, somaticLabel)
	}
	idx++

	out.SomaticResponse = []string{}
	for idx < len(lines) {
		line := strings.TrimSpace(lines[idx])
		item, isBullet := strings.CutPrefix(line, strings.TrimSpace(bullet))
		if !isBullet {
			break
		}
		out.SomaticResponse = append(out.SomaticResponse, strings.TrimSpace(item))
		idx++
	}

	if out.Insight, _, ok = readField(lines, idx, insightLabel); !ok {
		return Log{}, fmt.Errorf("%w: missing %q", ErrMalformedLog, insightLabel)
	}
	return out, nil
}

func readField(lines []string, idx int, label string) (string, int, bool) {
	if idx >= len(lines) {
		return "", idx, false
	}
	rest, ok := strings.CutPrefix(strings.TrimSpace(lines[idx]), label)
	if !ok {
		return "", idx, false
	}
	return strings.TrimSpace(rest), idx + 1, true
}
