package logits

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultPenalty is the logit penalty filters subtract from inadmissible
// tokens. It is large enough to suppress a token in practice without
// producing -Inf arithmetic.
const DefaultPenalty = 20.0

// Filter adjusts next-token logits in place before truncation. piece returns
// the decoded surface text of a single token; filters must not suppress
// sentence-terminal tokens (the sampler restores them regardless).
type Filter interface {
	Apply(logits []float64, piece func(id int) string)
}

// LetterConstraint penalizes every token that starts a new word with the
// wrong letter. A token starts a new word when its decoded text begins with
// a space; the comparison is case-insensitive.
type LetterConstraint struct {
	Letter  rune
	Penalty float64 // 0 means DefaultPenalty
}

func (f LetterConstraint) Apply(logits []float64, piece func(id int) string) {
	penalty := f.Penalty
	if penalty == 0 {
		penalty = DefaultPenalty
	}
	want := unicode.ToLower(f.Letter)
	for id := range logits {
		p := piece(id)
		if !strings.HasPrefix(p, " ") {
			continue
		}
		word := strings.TrimSpace(p)
		if word == "" {
			continue
		}
		first, _ := utf8.DecodeRuneInString(word)
		if unicode.ToLower(first) != want {
			logits[id] -= penalty
		}
	}
}

// BannedWords removes tokens whose decoded word form appears in the banned
// set. Matching is case-insensitive on the space-trimmed token text.
type BannedWords struct {
	Words map[string]struct{}
}

func (f BannedWords) Apply(logits []float64, piece func(id int) string) {
	for id := range logits {
		word := strings.ToLower(strings.TrimSpace(piece(id)))
		if word == "" {
			continue
		}
		if _, banned := f.Words[word]; banned {
			logits[id] = math.Inf(-1)
		}
	}
}
