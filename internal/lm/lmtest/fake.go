// Package lmtest provides deterministic in-process fakes for the adapter
// interfaces in internal/lm. Tests drive the scorers, the sampler and the
// router against these instead of a real model.
package lmtest

import (
	"context"
	"fmt"
	"strings"
)

// Tokenizer is a toy piece tokenizer over a fixed vocabulary. Encode uses
// greedy longest-match from the left, Decode concatenates pieces. Pieces
// follow the GPT-2 convention that a leading space starts a new word.
type Tokenizer struct {
	pieces []string
	index  map[string]int
}

func NewTokenizer(pieces ...string) *Tokenizer {
	t := &Tokenizer{
		pieces: pieces,
		index:  make(map[string]int, len(pieces)),
	}
	for i, p := range pieces {
		t.index[p] = i
	}
	return t
}

// Len returns the vocabulary size.
func (t *Tokenizer) Len() int { return len(t.pieces) }

// Piece returns the surface string of a token id, or "" when out of range.
func (t *Tokenizer) Piece(id int) string {
	if id < 0 || id >= len(t.pieces) {
		return ""
	}
	return t.pieces[id]
}

// ID returns the id of a piece, or -1 when unknown.
func (t *Tokenizer) ID(piece string) int {
	if id, ok := t.index[piece]; ok {
		return id
	}
	return -1
}

func (t *Tokenizer) Encode(text string) ([]int, error) {
	var ids []int
	rest := text
	for rest != "" {
		best := -1
		bestLen := 0
		for i, p := range t.pieces {
			if p != "" && len(p) > bestLen && strings.HasPrefix(rest, p) {
				best = i
				bestLen = len(p)
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("lmtest: no piece matches %q", rest)
		}
		ids = append(ids, best)
		rest = rest[bestLen:]
	}
	return ids, nil
}

func (t *Tokenizer) Decode(ids []int) (string, error) {
	var b strings.Builder
	for _, id := range ids {
		if id < 0 || id >= len(t.pieces) {
			return "", fmt.Errorf("lmtest: token id %d out of range", id)
		}
		b.WriteString(t.pieces[id])
	}
	return b.String(), nil
}

// Causal is a scripted causal model. Fn receives the full context and
// returns logits; a nil Fn yields a uniform distribution. Err, when set,
// is returned from every call.
type Causal struct {
	Vocab int
	Fn    func(ids []int) []float64
	Err   error
	Calls int
}

func (c *Causal) NextLogits(_ context.Context, ids []int) ([]float64, error) {
	c.Calls++
	if c.Err != nil {
		return nil, c.Err
	}
	if c.Fn == nil {
		return make([]float64, c.Vocab), nil
	}
	return c.Fn(ids), nil
}

func (c *Causal) VocabSize() int { return c.Vocab }

// Masked is a scripted masked model, the fill-in-the-blank counterpart of
// Causal.
type Masked struct {
	Vocab int
	Mask  int
	Fn    func(ids []int, pos int) []float64
	Err   error
	Calls int
}

func (m *Masked) MaskedLogits(_ context.Context, ids []int, pos int) ([]float64, error) {
	m.Calls++
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Fn == nil {
		return make([]float64, m.Vocab), nil
	}
	return m.Fn(ids, pos), nil
}

func (m *Masked) MaskID() int    { return m.Mask }
func (m *Masked) VocabSize() int { return m.Vocab }

// Logits builds a logits vector of the given size where every id listed in
// peaks gets its mapped value and everything else gets base. Handy for
// scripting sharply peaked fake distributions.
func Logits(vocab int, base float64, peaks map[int]float64) []float64 {
	out := make([]float64, vocab)
	for i := range out {
		out[i] = base
	}
	for id, v := range peaks {
		if id >= 0 && id < vocab {
			out[id] = v
		}
	}
	return out
}
