// Package intent classifies short protocol answers: yes/no replies, override
// outcome reports and inline log corrections.
package intent

import (
	"regexp"
	"strings"

	"github.com/rudeai/innerlog/backend/internal/model/session"
)

// Label is the classified meaning of a reply.
type Label string

const (
	Empty       Label = "empty"
	Affirmative Label = "affirmative"
	Negative    Label = "negative"
	Ambiguous   Label = "ambiguous"
)

// MinCorrectionWords is the shortest text accepted as a corrected situation.
const MinCorrectionWords = 4

var tokenPattern = regexp.MustCompile(`[a-z]+(?:'[a-z]+)?`)

var affirmativeWords = map[string]bool{
	"yes": true, "y": true, "yeah": true, "yep": true, "yup": true, "ya": true,
	"confirm": true, "confirmed": true, "correct": true, "accurate": true,
	"ready": true, "sure": true, "ok": true, "okay": true, "right": true,
	"affirmative": true, "absolutely": true, "definitely": true, "agreed": true,
}

var negativeWords = map[string]bool{
	"no": true, "n": true, "nope": true, "nah": true, "not": true, "never": true,
	"wrong": true, "incorrect": true, "inaccurate": true, "negative": true,
	"don't": true, "dont": true, "isn't": true, "wasn't": true, "can't": true,
	"cannot": true, "won't": true, "decline": true, "cancel": true, "stop": true,
}

// negators flip an affirmative word that follows within two tokens.
var negators = map[string]bool{
	"not": true, "no": true, "never": true, "don't": true, "dont": true,
	"isn't": true, "wasn't": true, "can't": true, "cannot": true, "won't": true,
}

var hedgePhrases = []string{
	"maybe", "perhaps", "unsure", "not sure", "don't know", "dont know",
	"idk", "no idea", "kind of", "sort of", "i guess",
}

func tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

func hasPhrase(toks []string, phrase string) bool {
	want := strings.Fields(phrase)
	for i := 0; i+len(want) <= len(toks); i++ {
		if matchAt(toks, i, want) {
			return true
		}
	}
	return false
}

// Classify labels a yes/no answer. Hedged answers and answers carrying both
// polarities are ambiguous so the caller re-asks instead of guessing.
func Classify(text string) Label {
	if strings.TrimSpace(text) == "" {
		return Empty
	}

	toks := tokens(text)
	for _, phrase := range hedgePhrases {
		if hasPhrase(toks, phrase) {
			return Ambiguous
		}
	}

	aff, neg := 0, 0
	for i, tok := range toks {
		switch {
		case affirmativeWords[tok]:
			if negatedAt(toks, i) {
				neg++
			} else {
				aff++
			}
		case negativeWords[tok]:
			neg++
		}
	}

	switch {
	case aff > 0 && neg == 0:
		return Affirmative
	case neg > 0 && aff == 0:
		return Negative
	default:
		return Ambiguous
	}
}

func negatedAt(toks []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		if negators[toks[j]] {
			return true
		}
	}
	return false
}

var clauseBreak = regexp.MustCompile(`[,.;:!?\n]|\s-\s`)

var rejectionStarters = map[string]bool{
	"no": true, "nope": true, "nah": true, "not": true, "wrong": true,
	"incorrect": true, "inaccurate": true, "negative": true,
}

var leadingFiller = map[string]bool{
	"actually": true, "well": true, "so": true, "and": true, "but": true,
	"it's": true, "its": true, "that's": true, "thats": true,
}

// Rejection reports whether text opens with a rejection clause, such as "No,"
// or "that's wrong", regardless of the words that follow it.
func Rejection(text string) bool {
	body := strings.TrimSpace(text)
	head := body
	if loc := clauseBreak.FindStringIndex(body); loc != nil && loc[0] > 0 {
		head = body[:loc[0]]
	}
	toks := tokens(head)
	if len(toks) == 0 || !rejectionStarters[toks[0]] {
		return false
	}
	if len(toks) > 2 {
		toks = toks[:2]
	}
	return Classify(strings.Join(toks, " ")) == Negative
}

// Correction extracts the corrected situation from a rejection such as
// "No, it happened when my boss called". ok is false for a bare rejection.
func Correction(text string) (string, bool) {
	body := strings.TrimSpace(text)

	if loc := clauseBreak.FindStringIndex(body); loc != nil && loc[0] > 0 {
		head := body[:loc[0]]
		if toks := tokens(head); len(toks) > 0 && rejectionStarters[toks[0]] && Classify(head) == Negative {
			body = body[loc[1]:]
		}
	}

	words := strings.Fields(body)
	for len(words) > 0 {
		w := strings.ToLower(strings.Trim(words[0], `,.;:!?"'`))
		if negativeWords[w] || leadingFiller[w] || w == "" {
			words = words[1:]
			continue
		}
		break
	}

	if len(words) < MinCorrectionWords {
		return "", false
	}
	return strings.Join(words, " "), true
}

var (
	partialCues = []string{
		"a bit", "a little", "somewhat", "partially", "partly", "slightly",
		"kind of", "sort of", "some", "helped some", "a little bit", "not fully",
		"not completely", "not entirely", "mostly", "less than", "a little less",
	}
	successCues = []string{
		"it worked", "that worked", "it helped", "that helped", "worked",
		"resolved", "gone", "relieved", "calm", "calmer", "settled", "better",
	}
	unresolvedCues = []string{
		"no", "nope", "not", "didn't", "didnt", "doesn't", "did not", "still",
		"worse", "nothing", "unresolved", "failed", "useless",
	}
	hardFailureCues = []string{
		"didn't", "didnt", "doesn't", "did not", "still", "worse", "unresolved",
		"failed", "useless",
	}
	resolvedCues = []string{
		"yes", "yeah", "yep", "resolved", "worked", "helped", "better", "calm",
		"calmer", "gone", "relieved", "fine", "good", "settled",
	}
)

var outcomeNegators = map[string]bool{
	"not": true, "no": true, "never": true, "didn't": true, "didnt": true,
	"doesn't": true, "doesnt": true, "isn't": true, "wasn't": true, "hasn't": true,
}

// ClassifyOutcome maps a free-text report on the override sequence to an
// outcome. Partial cues win, then an un-negated success statement, then a
// plain "yes" without a failure cue; otherwise negative cues beat positive
// ones and a report with no cue is recorded as unresolved.
func ClassifyOutcome(text string) session.Outcome {
	toks := tokens(text)
	switch {
	case anyPhrase(toks, partialCues):
		return session.OutcomePartial
	case successStated(toks):
		return session.OutcomeResolved
	case len(toks) > 0 && affirmativeWords[toks[0]] && !anyPhrase(toks, hardFailureCues):
		return session.OutcomeResolved
	case anyPhrase(toks, unresolvedCues):
		return session.OutcomeUnresolved
	case anyPhrase(toks, resolvedCues):
		return session.OutcomeResolved
	default:
		return session.OutcomeUnresolved
	}
}

// successStated finds a success cue that no nearby negator cancels, so
// "not better" stays unresolved while "it worked" resolves.
func successStated(toks []string) bool {
	for _, phrase := range successCues {
		want := strings.Fields(phrase)
		for i := 0; i+len(want) <= len(toks); i++ {
			if !matchAt(toks, i, want) {
				continue
			}
			negated := false
			for j := i - 1; j >= 0 && j >= i-2; j-- {
				if outcomeNegators[toks[j]] {
					negated = true
				}
			}
			if !negated && !anyPhrase(toks, hardFailureCues) {
				return true
			}
		}
	}
	return false
}

func matchAt(toks []string, i int, want []string) bool {
	for j, w := range want {
		if toks[i+j] != w {
			return false
		}
	}
	return true
}

func anyPhrase(toks []string, phrases []string) bool {
	for _, p := range phrases {
		if hasPhrase(toks, p) {
			return true
		}
	}
	return false
}
