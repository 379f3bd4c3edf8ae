// Package generate builds whole sentences with the causal model: alliterated
// continuations of a fixed prefix, and word-order search over a sentence by
// total sequence log-probability.
package generate

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"pytia/internal/lm"
	"pytia/internal/logits"
	"pytia/internal/rank"
	"pytia/internal/score"
)

// Prefixes are the stock alliteration openers; the constraint letter is the
// first letter of the first word.
var Prefixes = []string{
	"Prawdziwy piekarz przyprawia pieczywo pieprzem",
	"Mały marynarz maluje mapy morskie",
	"Dzielny drwal dźwiga duże drewno",
}

// MaxOrderingWords bounds the permutation search; beyond this the factorial
// blowup is not worth scoring.
const MaxOrderingWords = 8

var ErrNoCandidates = errors.New("generate: no candidate scored finite")

const (
	defaultSamples   = 5
	defaultTopK      = 40
	defaultTopP      = 0.9
	defaultMaxTokens = 40
)

// Config tunes constrained generation. Zero values take the defaults.
type Config struct {
	Seed         int64
	Samples      int
	Temperature  float64
	TopK         int
	TopP         float64
	MaxNewTokens int
}

// BestConstrained samples several continuations of prefix in which every new
// word must start with the prefix's initial letter, scores them with the
// candidate reranker and returns the winning full sentence.
func BestConstrained(ctx context.Context, model lm.Causal, tok lm.Tokenizer, prefix string, cfg Config) (string, error) {
	if cfg.Samples <= 0 {
		cfg.Samples = defaultSamples
	}
	if cfg.TopK <= 0 {
		cfg.TopK = defaultTopK
	}
	if cfg.TopP <= 0 {
		cfg.TopP = defaultTopP
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = defaultMaxTokens
	}

	letter, err := constraintLetter(prefix)
	if err != nil {
		return "", err
	}

	sampler := logits.New(model, tok, logits.Config{
		Seed:         cfg.Seed,
		Temperature:  cfg.Temperature,
		TopK:         cfg.TopK,
		TopP:         cfg.TopP,
		MaxNewTokens: cfg.MaxNewTokens,
		Filters:      []logits.Filter{logits.LetterConstraint{Letter: letter}},
	})

	promptIDs, err := tok.Encode(prefix)
	if err != nil {
		return "", fmt.Errorf("generate: encode prefix: %w", err)
	}

	cands := make([]rank.Candidate, 0, cfg.Samples)
	for i := 0; i < cfg.Samples; i++ {
		sample, err := sampler.Sample(ctx, promptIDs)
		if err != nil {
			return "", fmt.Errorf("generate: sample %d: %w", i, err)
		}
		cands = append(cands, rank.Candidate{
			Text:     prefix + sample.Text,
			LogProbs: sample.LogProbs,
		})
	}

	best, ok := (rank.Scorer{Constraint: letter}).Best(cands)
	if !ok {
		return "", ErrNoCandidates
	}
	return best.Text, nil
}

// Ordering is one permutation of the sentence's words and its total causal
// log-probability.
type Ordering struct {
	Text    string
	LogProb float64
}

// RankOrderings scores every word-order permutation of sentence (lowercased,
// punctuation stripped, recapitalized with a final period) and returns them
// best-first.
func RankOrderings(ctx context.Context, model lm.Causal, tok lm.Tokenizer, sentence string) ([]Ordering, error) {
	words := orderingWords(sentence)
	if len(words) == 0 {
		return nil, fmt.Errorf("generate: no words in %q", sentence)
	}
	if len(words) > MaxOrderingWords {
		return nil, fmt.Errorf("generate: %d words exceeds the %d-word permutation limit", len(words), MaxOrderingWords)
	}

	var out []Ordering
	for _, perm := range permutations(words) {
		text := sentenceFromWords(perm)
		lp, err := score.SequenceLogProb(ctx, model, tok, text)
		if err != nil {
			return nil, fmt.Errorf("generate: score %q: %w", text, err)
		}
		out = append(out, Ordering{Text: text, LogProb: lp})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].LogProb > out[j].LogProb })
	return out, nil
}

// BestOrdering returns the most probable word order of sentence.
func BestOrdering(ctx context.Context, model lm.Causal, tok lm.Tokenizer, sentence string) (string, error) {
	ranked, err := RankOrderings(ctx, model, tok, sentence)
	if err != nil {
		return "", err
	}
	return ranked[0].Text, nil
}

func constraintLetter(prefix string) (rune, error) {
	fields := strings.Fields(prefix)
	if len(fields) == 0 {
		return 0, fmt.Errorf("generate: empty prefix")
	}
	r, _ := utf8.DecodeRuneInString(fields[0])
	return unicode.ToLower(r), nil
}

func orderingWords(sentence string) []string {
	s := strings.ToLower(sentence)
	s = strings.ReplaceAll(s, ".", "")
	s = strings.ReplaceAll(s, ",", "")
	return strings.Fields(s)
}

func sentenceFromWords(words []string) string {
	s := strings.Join(words, " ")
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + s[size:] + "."
}

// permutations returns every ordering of words. Heap's algorithm, copies out
// each arrangement.
func permutations(words []string) [][]string {
	n := len(words)
	buf := append([]string(nil), words...)
	var out [][]string

	var generate func(k int)
	generate = func(k int) {
		if k == 1 {
			out = append(out, append([]string(nil), buf...))
			return
		}
		for i := 0; i < k; i++ {
			generate(k - 1)
			if k%2 == 0 {
				buf[i], buf[k-1] = buf[k-1], buf[i]
			} else {
				buf[0], buf[k-1] = buf[k-1], buf[0]
			}
		}
	}
	generate(n)
	return out
}
