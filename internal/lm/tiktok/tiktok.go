// Package tiktok adapts an OpenAI BPE encoding to the lm.Tokenizer
// interface. It is useful against causal endpoints whose server shares a
// tiktoken encoding with the client, so text never has to cross the wire.
package tiktok

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// New returns a tokenizer for a named encoding, e.g. "cl100k_base".
func New(encoding string) (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("tiktok: load encoding %q: %w", encoding, err)
	}
	return &Tokenizer{enc: enc}, nil
}

// ForModel returns a tokenizer for a model name, e.g. "gpt-3.5-turbo".
func ForModel(model string) (*Tokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("tiktok: load encoding for model %q: %w", model, err)
	}
	return &Tokenizer{enc: enc}, nil
}

func (t *Tokenizer) Encode(text string) ([]int, error) {
	return t.enc.Encode(text, nil, nil), nil
}

func (t *Tokenizer) Decode(ids []int) (string, error) {
	return t.enc.Decode(ids), nil
}
