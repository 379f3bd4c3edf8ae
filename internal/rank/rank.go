// Package rank scores and orders generated candidate replies. The score is a
// weighted sum of cheap text heuristics plus, when the candidate carries
// per-token log-probabilities, decode-quality terms. Higher is better.
package rank

import (
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Scoring weights. The length window rewards replies between 25 and 160
// characters and charges 0.002 per character past 120.
const (
	lengthSoftCap    = 120
	lengthRate       = 0.002
	windowMin        = 25
	windowMax        = 160
	windowBonus      = 0.2
	typeTokenWeight  = 0.6
	endPunctBonus    = 0.2
	topicalWeight    = 0.6
	rolePenalty      = 0.5
	sharpDropGap     = 3.0
	sharpDropPenalty = 1.0
	repeatPenalty    = 1.0
	letterPenalty    = 2.0
)

// wordRe matches words including Polish letters; regexp \w is ASCII-only.
var (
	wordRe     = regexp.MustCompile(`[\p{L}\p{N}_]+`)
	endPunctRe = regexp.MustCompile(`[.?!]$`)
)

// Candidate is one reply under consideration. LogProbs is nil for candidates
// produced outside the sampler (no decode-quality terms apply then). Score is
// filled in by Rank.
type Candidate struct {
	Text     string
	LogProbs []float64
	Score    float64
}

// Scorer holds the per-query context the score depends on. Reference is the
// utterance the reply answers (topical overlap term); Constraint, when
// nonzero, is the required initial letter of every word.
type Scorer struct {
	Reference  string
	Constraint rune
}

// Score computes the composite score of a single candidate.
func (s Scorer) Score(c Candidate) float64 {
	txt := strings.TrimSpace(c.Text)
	score := lengthTerm(txt)
	score += typeTokenWeight * typeTokenRatio(txt)
	if endPunctRe.MatchString(txt) {
		score += endPunctBonus
	}
	score += topicalWeight * jaccard(s.Reference, txt)
	if leaksRole(txt) {
		score -= rolePenalty
	}

	if len(c.LogProbs) > 0 {
		var sum float64
		for _, lp := range c.LogProbs {
			sum += lp
		}
		score += sum / float64(len(c.LogProbs))
		score -= sharpDropPenalty * float64(sharpDrops(c.LogProbs))
		score -= repeatPenalty * float64(repeatedWords(txt))
	}
	if s.Constraint != 0 {
		score -= letterPenalty * float64(letterViolations(txt, s.Constraint))
	}
	return score
}

// Rank returns the candidates ordered best-first with Score filled in.
// Candidates whose score is NaN or infinite are dropped. The sort is stable,
// so equal scores keep their input order.
func (s Scorer) Rank(cands []Candidate) []Candidate {
	out := make([]Candidate, 0, len(cands))
	for _, c := range cands {
		c.Score = s.Score(c)
		if math.IsNaN(c.Score) || math.IsInf(c.Score, 0) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// Best returns the top candidate, or false when nothing scored finite.
func (s Scorer) Best(cands []Candidate) (Candidate, bool) {
	ranked := s.Rank(cands)
	if len(ranked) == 0 {
		return Candidate{}, false
	}
	return ranked[0], true
}

func lengthTerm(txt string) float64 {
	n := utf8.RuneCountInString(txt)
	term := -lengthRate * float64(max(0, n-lengthSoftCap))
	if n >= windowMin && n <= windowMax {
		term += windowBonus
	}
	return term
}

// typeTokenRatio is unique words over total words; empty text counts as 1
// so brevity is not punished twice.
func typeTokenRatio(txt string) float64 {
	words := wordRe.FindAllString(strings.ToLower(txt), -1)
	if len(words) == 0 {
		return 1
	}
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return float64(len(seen)) / float64(len(words))
}

func jaccard(a, b string) float64 {
	wa := wordSet(a)
	wb := wordSet(b)
	if len(wa) == 0 || len(wb) == 0 {
		return 0
	}
	inter := 0
	for w := range wa {
		if _, ok := wb[w]; ok {
			inter++
		}
	}
	union := len(wa) + len(wb) - inter
	return float64(inter) / float64(union)
}

func wordSet(s string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range wordRe.FindAllString(strings.ToLower(s), -1) {
		out[w] = struct{}{}
	}
	return out
}

// leaksRole reports whether the candidate spilled dialogue markup. A leading
// "BOT:" is tolerated (the trimmer removes it); one appearing later, or any
// "USER:", means the model kept writing the scene.
func leaksRole(txt string) bool {
	if strings.Contains(txt, "USER:") {
		return true
	}
	rest := txt
	if len(rest) > 5 {
		rest = rest[5:]
	} else {
		rest = ""
	}
	return strings.Contains(rest, "BOT:")
}

// sharpDrops counts steps where the token log-probability falls more than
// sharpDropGap nats below its predecessor, a cheap signal of a derailed
// decode.
func sharpDrops(logProbs []float64) int {
	drops := 0
	for i := 1; i < len(logProbs); i++ {
		if logProbs[i] < logProbs[i-1]-sharpDropGap {
			drops++
		}
	}
	return drops
}

func repeatedWords(txt string) int {
	words := strings.Fields(txt)
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}
	return len(words) - len(seen)
}

func letterViolations(txt string, letter rune) int {
	want := unicode.ToLower(letter)
	bad := 0
	for _, w := range strings.Fields(txt) {
		first, _ := utf8.DecodeRuneInString(w)
		if unicode.ToLower(first) != want {
			bad++
		}
	}
	return bad
}
