package pattern

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxContextWords = 24
	fallbackContext = "Unspecified situation"
)

var whitespace = regexp.MustCompile(`\s+`)

// contextAnchors locate a situational label; the first anchor that matches wins.
var contextAnchors = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bwhile (?:talking to|speaking with|calling|texting) (?:my )?\w+`),
	regexp.MustCompile(`(?i)\bwhile (?:cooking|working|driving|eating|walking|scrolling)\b`),
	regexp.MustCompile(`(?i)\b(?:paying|sending|receiving|paid|sent) (?:the |my |an? )?(?:money|payment|rent|deposit|e-transfer)\b(?: (?:via|for|to) [\w-]+)?`),
	regexp.MustCompile(`(?i)\b(?:had|got into) (?:a |an )?(?:fight|argument|conflict) with (?:my )?\w+`),
	regexp.MustCompile(`(?i)\breceived (?:a |an )?(?:message|call|email|text) from (?:my )?\w+`),
	regexp.MustCompile(`(?i)\b(?:job )?(?:interview|meeting|appointment|presentation) (?:with|at|for|tomorrow|today)\b`),
	regexp.MustCompile(`(?i)\bdecided (?:to|not to) [^.!?;,]+`),
}

// triggerCue finds the leftmost temporal or causal connective. Longer cues are
// listed first so "whenever" is not read as "when".
var triggerCue = regexp.MustCompile(`(?i)\b(every time|as soon as|whenever|when|after|because)\b`)

var clauseEnd = regexp.MustCompile(`[.!?;,\n]`)

var sentenceEnd = regexp.MustCompile(`[.!?;\n]`)

type detector struct {
	label string
	re    *regexp.Regexp
}

// somaticDetectors is the ordered physical-sensation vocabulary.
var somaticDetectors = []detector{
	{"anxiety", regexp.MustCompile(`(?i)\b(anxious|anxiety|nervous|panic\w*|on edge|dread)\b`)},
	{"tight chest", regexp.MustCompile(`(?i)\bchest\b[^.!?]{0,30}?\b(tight\w*|heavy|pressure|tension|burning)\b|\b(tight|heavy|burning)\w*\s+(?:in (?:my |the )?)?chest\b`)},
	{"racing heart", regexp.MustCompile(`(?i)\bheart\b[^.!?]{0,25}?\b(rac\w+|pound\w*|beating fast|fast)\b|\bpalpitations?\b`)},
	{"shallow breathing", regexp.MustCompile(`(?i)\bbreath\w*\b[^.!?]{0,20}?\b(shallow|short|fast|quick)\b|\bcan'?t breathe\b|\bholding (?:my )?breath\b`)},
	{"stomach tension", regexp.MustCompile(`(?i)\bstomach\b[^.!?]{0,25}?\b(knots?|tight\w*|churn\w*|drop\w*|sick)\b|\bsick feeling in (?:my )?stomach\b|\bnause\w*`)},
	{"muscle tension", regexp.MustCompile(`(?i)\b(jaw|shoulders?|neck|muscles?)\b[^.!?]{0,20}?\b(clench\w*|tight|tense|tension)\b`)},
	{"trembling", regexp.MustCompile(`(?i)\b(shaking|trembl\w*|shaky)\b`)},
	{"thought loop", regexp.MustCompile(`(?i)\b(loop\w*|spiral\w*|ruminat\w*|can'?t stop thinking|over and over)\b|\b(mind|thoughts?) (?:is |was |were |kept |keeps )?racing\b`)},
	{"checking", regexp.MustCompile(`(?i)\bcheck(?:ing|ed|s)?\b`)},
	{"restlessness", regexp.MustCompile(`(?i)\b(restless\w*|fidget\w*|can'?t sit still|pacing)\b`)},
	{"fatigue", regexp.MustCompile(`(?i)\b(exhaust\w*|drained|tired|fatigue\w*)\b`)},
}

func normalize(text string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " "))
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

func trimClause(s string) string {
	return strings.TrimSpace(strings.Trim(strings.TrimSpace(s), `"'.,;:!?-`))
}

func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ") + "..."
}

func extractContext(text string) string {
	if text == "" {
		return fallbackContext
	}

	for _, anchor := range contextAnchors {
		if span := anchor.FindString(text); span != "" {
			return capitalize(trimClause(span))
		}
	}

	first := text
	if loc := sentenceEnd.FindStringIndex(text); loc != nil && loc[0] > 0 {
		first = text[:loc[0]]
	}
	first = trimClause(first)
	if first == "" {
		return fallbackContext
	}
	return capitalize(truncateWords(first, maxContextWords))
}

// extractTrigger returns the clause after the first cue and whether a cue was used.
func extractTrigger(text string) (string, bool) {
	for _, loc := range triggerCue.FindAllStringIndex(text, -1) {
		rest := text[loc[1]:]
		if end := clauseEnd.FindStringIndex(rest); end != nil {
			rest = rest[:end[0]]
		}
		if clause := trimClause(rest); clause != "" {
			return capitalize(clause), true
		}
	}
	return capitalize(trimClause(text)), false
}

func extractSomatic(text string) []string {
	type hit struct {
		label  string
		offset int
		order  int
	}

	hits := make([]hit, 0, len(somaticDetectors))
	for i, d := range somaticDetectors {
		loc := d.re.FindStringIndex(text)
		if loc == nil {
			continue
		}
		hits = append(hits, hit{label: d.label, offset: loc[0], order: i})
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].offset != hits[b].offset {
			return hits[a].offset < hits[b].offset
		}
		return hits[a].order < hits[b].order
	})

	out := make([]string, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.label)
	}
	return out
}
