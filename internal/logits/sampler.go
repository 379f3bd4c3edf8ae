// Package logits implements constrained nucleus sampling over the causal
// model adapter. Truncation (top-k, then top-p) operates on logits before
// any softmax over the full vocabulary; the surviving shortlist is
// renormalized before a token is drawn, and the drawn token's log-probability
// is recorded under that final distribution.
package logits

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"strings"

	"pytia/internal/lm"
)

// ErrNoCandidates is returned when filtering and truncation leave nothing to
// sample from.
var ErrNoCandidates = errors.New("logits: no candidate tokens survive filtering")

// Config configures a Sampler.
type Config struct {
	Seed         int64
	Temperature  float64
	TopK         int
	TopP         float64
	MaxNewTokens int
	Filters      []Filter
}

// Sample is one generated continuation: the decoded text, the sampled token
// ids, and the log-probability each token had under the distribution it was
// actually drawn from.
type Sample struct {
	Text     string
	TokenIDs []int
	LogProbs []float64
}

type Sampler struct {
	rng   *rand.Rand
	cfg   Config
	model lm.Causal
	tok   lm.Tokenizer

	pieces []string
	known  []bool

	topIdx []int
	topVal []float64
}

// New returns a sampler over the given model and tokenizer. Zero config
// fields fall back to Temperature 1, TopK 40, TopP 1 (disabled) and 40 new
// tokens.
func New(model lm.Causal, tok lm.Tokenizer, cfg Config) *Sampler {
	if cfg.Temperature <= 0 {
		cfg.Temperature = 1
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 40
	}
	if cfg.TopP <= 0 || cfg.TopP > 1 {
		cfg.TopP = 1
	}
	if cfg.MaxNewTokens <= 0 {
		cfg.MaxNewTokens = 40
	}
	vocab := model.VocabSize()
	return &Sampler{
		rng:    rand.New(rand.NewSource(cfg.Seed)),
		cfg:    cfg,
		model:  model,
		tok:    tok,
		pieces: make([]string, vocab),
		known:  make([]bool, vocab),
	}
}

// Sample generates one continuation of prompt. Generation stops when a
// sampled token decodes to sentence-terminal punctuation (the terminal token
// is kept) or when MaxNewTokens is reached.
func (s *Sampler) Sample(ctx context.Context, prompt []int) (Sample, error) {
	cur := append([]int(nil), prompt...)
	out := Sample{}

	for step := 0; step < s.cfg.MaxNewTokens; step++ {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		logits, err := s.model.NextLogits(ctx, cur)
		if err != nil {
			return out, err
		}

		if s.cfg.Temperature != 1 {
			invTemp := 1 / s.cfg.Temperature
			for i := range logits {
				logits[i] *= invTemp
			}
		}

		s.applyFilters(logits)

		id, logProb, err := s.draw(logits)
		if err != nil {
			return out, err
		}

		cur = append(cur, id)
		out.TokenIDs = append(out.TokenIDs, id)
		out.LogProbs = append(out.LogProbs, logProb)

		if isTerminal(s.piece(id)) {
			break
		}
	}

	text, err := s.tok.Decode(out.TokenIDs)
	if err != nil {
		return out, err
	}
	out.Text = text
	return out, nil
}

// applyFilters runs the admissibility filters with a guarantee that
// sentence-terminal tokens are never suppressed below their incoming logit,
// so a sample can always finish.
func (s *Sampler) applyFilters(logits []float64) {
	if len(s.cfg.Filters) == 0 {
		return
	}
	type saved struct {
		id  int
		val float64
	}
	var terminals []saved
	for id := range logits {
		if isTerminal(s.piece(id)) {
			terminals = append(terminals, saved{id, logits[id]})
		}
	}
	for _, f := range s.cfg.Filters {
		f.Apply(logits, s.piece)
	}
	for _, t := range terminals {
		if logits[t.id] < t.val {
			logits[t.id] = t.val
		}
	}
}

// draw truncates logits to the top-k shortlist, applies the nucleus cut,
// renormalizes and samples one token. It returns the token id and its
// log-probability under the final distribution.
func (s *Sampler) draw(logits []float64) (int, float64, error) {
	k := min(s.cfg.TopK, len(logits))
	idx, val := s.topK(logits, k)
	if len(idx) == 0 || math.IsInf(val[0], -1) {
		return 0, 0, ErrNoCandidates
	}

	// Softmax over the shortlist only; the full vocabulary never sees an
	// exponentiation.
	probs := make([]float64, len(val))
	maxv := val[0]
	var sum float64
	for i, v := range val {
		e := math.Exp(v - maxv)
		probs[i] = e
		sum += e
	}
	if sum == 0 {
		return 0, 0, ErrNoCandidates
	}
	for i := range probs {
		probs[i] /= sum
	}

	cut := nucleusCut(probs, s.cfg.TopP)
	probs = probs[:cut]
	idx = idx[:cut]

	// Renormalize the kept prefix; sampling from the truncated but
	// unnormalized weights would be a correctness bug.
	var kept float64
	for _, p := range probs {
		kept += p
	}
	for i := range probs {
		probs[i] /= kept
	}

	r := s.rng.Float64()
	var c float64
	chosen := len(probs) - 1
	for i, p := range probs {
		c += p
		if r <= c {
			chosen = i
			break
		}
	}
	return idx[chosen], math.Log(probs[chosen]), nil
}

// nucleusCut returns the length of the smallest prefix of the descending
// probability vector whose cumulative sum first reaches p. Everything past
// the cut is discarded, even if only one token remains.
func nucleusCut(probs []float64, p float64) int {
	if p >= 1 {
		return len(probs)
	}
	var c float64
	for i, v := range probs {
		c += v
		if c >= p {
			return i + 1
		}
	}
	return len(probs)
}

// topK returns the indices and values of the k largest logits, ordered from
// largest to smallest. O(V*K) insertion, fine for the small k used here.
func (s *Sampler) topK(logits []float64, k int) ([]int, []float64) {
	if cap(s.topIdx) < k+1 {
		s.topIdx = make([]int, 0, k+1)
		s.topVal = make([]float64, 0, k+1)
	}
	topIdx := s.topIdx[:0]
	topVal := s.topVal[:0]

	for i, v := range logits {
		pos := len(topVal)
		for pos > 0 && topVal[pos-1] < v {
			pos--
		}
		if pos >= k {
			continue
		}
		topIdx = append(topIdx, 0)
		topVal = append(topVal, 0)
		copy(topIdx[pos+1:], topIdx[pos:])
		copy(topVal[pos+1:], topVal[pos:])
		topIdx[pos] = i
		topVal[pos] = v
		if len(topVal) > k {
			topIdx = topIdx[:k]
			topVal = topVal[:k]
		}
	}
	s.topIdx = topIdx
	s.topVal = topVal
	return topIdx, topVal
}

// piece returns the decoded surface text of a single token, cached per
// sampler since filters scan the whole vocabulary every step.
func (s *Sampler) piece(id int) string {
	if id < 0 || id >= len(s.pieces) {
		return ""
	}
	if !s.known[id] {
		text, err := s.tok.Decode([]int{id})
		if err == nil {
			s.pieces[id] = text
		}
		s.known[id] = true
	}
	return s.pieces[id]
}

func isTerminal(piece string) bool {
	switch strings.TrimSpace(piece) {
	case ".", "!", "?":
		return true
	}
	return false
}
