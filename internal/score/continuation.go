package score

import (
	"context"
	"fmt"

	"pytia/internal/lm"
)

// ContinuationLogProb returns log P(continuation | prefix) in nats, summed
// over the continuation tokens. Prefix and continuation are tokenized
// independently so the continuation's ids do not depend on the prefix text.
// Decoding is teacher-forced: the true next token is appended after each
// step regardless of what the model would have sampled.
func ContinuationLogProb(ctx context.Context, c lm.Causal, tok lm.Tokenizer, prefix, continuation string) (float64, error) {
	prefixIDs, err := tok.Encode(prefix)
	if err != nil {
		return 0, fmt.Errorf("score: encode prefix: %w", err)
	}
	contIDs, err := tok.Encode(continuation)
	if err != nil {
		return 0, fmt.Errorf("score: encode continuation: %w", err)
	}

	cur := append([]int(nil), prefixIDs...)
	var sum float64
	for _, id := range contIDs {
		logits, err := c.NextLogits(ctx, cur)
		if err != nil {
			return 0, fmt.Errorf("score: next logits: %w", err)
		}
		sum += lm.LogProbAt(logits, id)
		cur = append(cur, id)
	}
	return sum, nil
}

// SequenceLogProb returns the total causal log-probability of a sentence:
// the sum of log P(token_i | tokens_<i) for every position after the first.
func SequenceLogProb(ctx context.Context, c lm.Causal, tok lm.Tokenizer, text string) (float64, error) {
	ids, err := tok.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("score: encode %q: %w", text, err)
	}
	var sum float64
	for i := 1; i < len(ids); i++ {
		logits, err := c.NextLogits(ctx, ids[:i])
		if err != nil {
			return 0, fmt.Errorf("score: next logits at %d: %w", i, err)
		}
		sum += lm.LogProbAt(logits, ids[i])
	}
	return sum, nil
}
