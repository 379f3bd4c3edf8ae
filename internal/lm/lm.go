// Package lm defines the model adapter boundary for the rest of the engine.
//
// The language model itself is an external collaborator. The scorers,
// the sampler and the router depend only on the interfaces below: a
// tokenizer mapping text to integer ids, a causal model returning
// next-token logits for a token sequence, and a masked model returning
// logits for a single blanked-out position.
package lm

import "context"

// Tokenizer maps text to token id sequences and back.
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(ids []int) (string, error)
}

// Causal exposes the next-token distribution of an autoregressive model.
// NextLogits returns unnormalized logits over the vocabulary for the token
// following ids. The returned slice has length VocabSize and is owned by the
// caller.
type Causal interface {
	NextLogits(ctx context.Context, ids []int) ([]float64, error)
	VocabSize() int
}

// Masked exposes the blank-position distribution of a masked model.
// MaskedLogits returns unnormalized logits over the vocabulary for position
// pos of ids. Callers mark the blank themselves by placing MaskID at pos
// before the call.
type Masked interface {
	MaskedLogits(ctx context.Context, ids []int, pos int) ([]float64, error)
	MaskID() int
	VocabSize() int
}
