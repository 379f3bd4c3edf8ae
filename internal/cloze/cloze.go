// Package cloze answers fill-in-the-blank templates with the masked model:
// single-token fills reranked by sentence pseudo-log-likelihood, and a greedy
// multi-token span for answers longer than one token.
package cloze

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"pytia/internal/lm"
	"pytia/internal/score"
)

// Mask is the placeholder templates use for the blank position.
const Mask = "<mask>"

// ErrNoFillers is returned when no usable filler survives cleaning.
var ErrNoFillers = errors.New("cloze: no usable fillers")

const (
	defaultTopK = 10
	rerankTopK  = 5
	spanTopK    = 5
	// MaxSpanTokens bounds the greedy multi-token answer.
	MaxSpanTokens = 3
)

// spanStops end the greedy span: punctuation or the conjunction "i" means
// the answer proper is over.
var spanStops = map[string]struct{}{
	",": {}, ".": {}, ";": {}, "!": {}, "?": {}, "i": {},
}

// Filler is one candidate fill with the probability the masked model
// assigned to it.
type Filler struct {
	Prob float64
	Text string
}

// Engine runs cloze templates against a masked model.
type Engine struct {
	model lm.Masked
	tok   lm.Tokenizer
	topK  int
}

func New(model lm.Masked, tok lm.Tokenizer) *Engine {
	return &Engine{model: model, tok: tok, topK: defaultTopK}
}

// Fill returns up to k fillers for the single blank in template, most
// probable first. Fillers that clean to the empty string are skipped.
func (e *Engine) Fill(ctx context.Context, template string, k int) ([]Filler, error) {
	if k <= 0 {
		k = e.topK
	}
	pre, post, err := splitTemplate(template)
	if err != nil {
		return nil, err
	}
	preIDs, err := e.tok.Encode(pre)
	if err != nil {
		return nil, fmt.Errorf("cloze: encode prefix: %w", err)
	}
	postIDs, err := e.tok.Encode(post)
	if err != nil {
		return nil, fmt.Errorf("cloze: encode suffix: %w", err)
	}

	ids := make([]int, 0, len(preIDs)+1+len(postIDs))
	ids = append(ids, preIDs...)
	pos := len(ids)
	ids = append(ids, e.model.MaskID())
	ids = append(ids, postIDs...)

	logits, err := e.model.MaskedLogits(ctx, ids, pos)
	if err != nil {
		return nil, fmt.Errorf("cloze: masked logits: %w", err)
	}
	probs := lm.Softmax(logits)

	type scored struct {
		id   int
		prob float64
	}
	top := make([]scored, 0, k+1)
	for id, p := range probs {
		n := len(top)
		i := sort.Search(n, func(i int) bool { return top[i].prob < p })
		if i >= k {
			continue
		}
		top = append(top, scored{})
		copy(top[i+1:], top[i:])
		top[i] = scored{id, p}
		if len(top) > k {
			top = top[:k]
		}
	}

	out := make([]Filler, 0, len(top))
	for _, s := range top {
		piece, err := e.tok.Decode([]int{s.id})
		if err != nil {
			continue
		}
		if text := CleanPiece(piece); text != "" {
			out = append(out, Filler{Prob: s.prob, Text: text})
		}
	}
	return out, nil
}

// FillBest answers a single-token template: the top fillers are substituted
// back into the template and the completed sentences reranked by
// pseudo-log-likelihood. The model's raw fill order is only a shortlist.
func (e *Engine) FillBest(ctx context.Context, template string) (string, error) {
	fillers, err := e.Fill(ctx, template, rerankTopK)
	if err != nil {
		return "", err
	}
	if len(fillers) == 0 {
		return "", ErrNoFillers
	}

	best := ""
	bestPLL := 0.0
	for i, f := range fillers {
		sentence := strings.Replace(template, Mask, f.Text, 1)
		pll, err := score.PLL(ctx, e.model, e.tok, sentence)
		if err != nil {
			return "", fmt.Errorf("cloze: rerank %q: %w", f.Text, err)
		}
		if i == 0 || pll > bestPLL {
			best = f.Text
			bestPLL = pll
		}
	}
	return best, nil
}

// FillTop answers the template with the single most probable filler, no
// reranking. Used by the generic last-resort stage.
func (e *Engine) FillTop(ctx context.Context, template string, k int) (string, error) {
	fillers, err := e.Fill(ctx, template, k)
	if err != nil {
		return "", err
	}
	if len(fillers) == 0 {
		return "", ErrNoFillers
	}
	return fillers[0].Text, nil
}

// GreedySpan builds a multi-word answer one token at a time: the blank is
// re-opened after each accepted word until a stop token appears or the span
// limit is reached. A local choice at each step, not a joint search.
func (e *Engine) GreedySpan(ctx context.Context, prefix string, maxTokens int, terminator string) (string, error) {
	if maxTokens <= 0 {
		maxTokens = MaxSpanTokens
	}
	cur := strings.TrimRight(prefix, " ")
	var words []string
	for range maxTokens {
		template := cur + " " + Mask + terminator
		fillers, err := e.Fill(ctx, template, spanTopK)
		if err != nil {
			return "", err
		}
		if len(fillers) == 0 {
			break
		}
		word := fillers[0].Text
		if _, stop := spanStops[word]; stop {
			break
		}
		words = append(words, word)
		cur = cur + " " + word
	}
	return strings.Join(words, " "), nil
}

// CleanPiece strips BPE word-boundary artifacts and surrounding whitespace
// from a decoded token.
func CleanPiece(piece string) string {
	piece = strings.ReplaceAll(piece, "Ġ", "")
	piece = strings.ReplaceAll(piece, "▁", "")
	return strings.TrimSpace(piece)
}

func splitTemplate(template string) (pre, post string, err error) {
	i := strings.Index(template, Mask)
	if i < 0 {
		return "", "", fmt.Errorf("cloze: template %q has no %s", template, Mask)
	}
	pre = template[:i]
	post = template[i+len(Mask):]
	if strings.Contains(post, Mask) {
		return "", "", fmt.Errorf("cloze: template %q has more than one %s", template, Mask)
	}
	return pre, post, nil
}
