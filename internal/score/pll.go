// Package score computes sentence-level plausibility scores from the model
// adapter: pseudo-log-likelihood under a masked model and autoregressive
// log-probability under a causal model. The scores are relative signals for
// comparing hypotheses, not calibrated probabilities.
package score

import (
	"context"
	"fmt"

	"pytia/internal/lm"
)

// PLL returns the pseudo-log-likelihood of a complete sentence: every token
// position except the first and last (assumed boundary markers) is blanked
// in turn, and the mean log-probability the masked model assigns to the
// original token is accumulated. The mean, not the sum, keeps sentences of
// different lengths comparable; the divisor floors at 1 so sentences shorter
// than three tokens still score.
func PLL(ctx context.Context, m lm.Masked, tok lm.Tokenizer, text string) (float64, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("score: encode %q: %w", text, err)
	}

	masked := make([]int, len(ids))
	var sum float64
	count := 0
	for i := 1; i < len(ids)-1; i++ {
		copy(masked, ids)
		masked[i] = m.MaskID()
		logits, err := m.MaskedLogits(ctx, masked, i)
		if err != nil {
			return 0, fmt.Errorf("score: masked logits at %d: %w", i, err)
		}
		sum += lm.LogProbAt(logits, ids[i])
		count++
	}
	if count < 1 {
		count = 1
	}
	return sum / float64(count), nil
}
