package logits

import (
	"context"
	"errors"
	"math"
	"testing"

	"pytia/internal/lm/lmtest"
)

// A small vocabulary with word-initial pieces and sentence terminals, enough
// to drive the sampler end to end.
func testVocab() *lmtest.Tokenizer {
	return lmtest.NewTokenizer(
		" ala", " kot", " pies", " ma", ".", "!", "?", " abak", " bal",
	)
}

func TestSampleDeterminism(t *testing.T) {
	tok := testVocab()
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			return lmtest.Logits(tok.Len(), 0, map[int]float64{
				0: 2, 1: 1.5, 3: 1, 4: 0.5,
			})
		},
	}
	cfg := Config{Seed: 7, Temperature: 0.9, TopK: 5, TopP: 0.95, MaxNewTokens: 6}

	a, err := New(model, tok, cfg).Sample(context.Background(), []int{3})
	if err != nil {
		t.Fatalf("first sample: %v", err)
	}
	b, err := New(model, tok, cfg).Sample(context.Background(), []int{3})
	if err != nil {
		t.Fatalf("second sample: %v", err)
	}

	if a.Text != b.Text {
		t.Fatalf("same seed produced %q and %q", a.Text, b.Text)
	}
	if len(a.TokenIDs) != len(b.TokenIDs) {
		t.Fatalf("token count mismatch: %d vs %d", len(a.TokenIDs), len(b.TokenIDs))
	}
	for i := range a.TokenIDs {
		if a.TokenIDs[i] != b.TokenIDs[i] || a.LogProbs[i] != b.LogProbs[i] {
			t.Fatalf("step %d differs: (%d, %g) vs (%d, %g)",
				i, a.TokenIDs[i], a.LogProbs[i], b.TokenIDs[i], b.LogProbs[i])
		}
	}
}

func TestSampleStopsAtTerminal(t *testing.T) {
	tok := testVocab()
	dot := tok.ID(".")
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			// First step strongly favors " kot", then the terminal.
			if len(ids) == 1 {
				return lmtest.Logits(tok.Len(), -10, map[int]float64{1: 10})
			}
			return lmtest.Logits(tok.Len(), -10, map[int]float64{dot: 10})
		},
	}
	s := New(model, tok, Config{Seed: 1, TopK: 1, MaxNewTokens: 20})

	out, err := s.Sample(context.Background(), []int{0})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if out.Text != " kot." {
		t.Fatalf("Text = %q, want %q", out.Text, " kot.")
	}
	if got := out.TokenIDs[len(out.TokenIDs)-1]; got != dot {
		t.Fatalf("last token = %d, want terminal %d", got, dot)
	}
	if model.Calls != 2 {
		t.Fatalf("model called %d times, want 2", model.Calls)
	}
}

func TestSampleHonorsMaxNewTokens(t *testing.T) {
	tok := testVocab()
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			// Never favors a terminal.
			return lmtest.Logits(tok.Len(), -10, map[int]float64{1: 10})
		},
	}
	s := New(model, tok, Config{Seed: 1, TopK: 1, MaxNewTokens: 3})

	out, err := s.Sample(context.Background(), []int{0})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	if len(out.TokenIDs) != 3 {
		t.Fatalf("generated %d tokens, want 3", len(out.TokenIDs))
	}
	if len(out.LogProbs) != 3 {
		t.Fatalf("recorded %d log-probs, want 3", len(out.LogProbs))
	}
}

func TestSampleLetterConstraint(t *testing.T) {
	tok := testVocab()
	dot := tok.ID(".")
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			// Slight preference for words that do not start with 'a',
			// then a terminal once something was produced.
			if len(ids) >= 3 {
				return lmtest.Logits(tok.Len(), -10, map[int]float64{dot: 10})
			}
			return lmtest.Logits(tok.Len(), 0, map[int]float64{1: 1, 2: 1, 8: 1})
		},
	}
	s := New(model, tok, Config{
		Seed:         3,
		TopK:         9,
		MaxNewTokens: 10,
		Filters:      []Filter{LetterConstraint{Letter: 'a'}},
	})

	out, err := s.Sample(context.Background(), []int{0})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for _, id := range out.TokenIDs {
		piece := tok.Piece(id)
		if piece == "." || piece == "!" || piece == "?" {
			continue
		}
		if piece[0] == ' ' && piece[1] != 'a' {
			t.Fatalf("sampled word-initial piece %q despite letter constraint", piece)
		}
	}
}

func TestSampleNoCandidates(t *testing.T) {
	tok := lmtest.NewTokenizer(" ala", " kot") // no terminals in vocab
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			return []float64{math.Inf(-1), math.Inf(-1)}
		},
	}
	s := New(model, tok, Config{Seed: 1, MaxNewTokens: 4})

	_, err := s.Sample(context.Background(), []int{0})
	if !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("err = %v, want ErrNoCandidates", err)
	}
}

func TestSampleContextCancel(t *testing.T) {
	tok := testVocab()
	model := &lmtest.Causal{Vocab: tok.Len()}
	s := New(model, tok, Config{Seed: 1, MaxNewTokens: 4})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Sample(ctx, []int{0})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if model.Calls != 0 {
		t.Fatalf("model called %d times after cancellation", model.Calls)
	}
}

func TestNucleusCut(t *testing.T) {
	tests := []struct {
		name  string
		probs []float64
		p     float64
		want  int
	}{
		{"disabled", []float64{0.5, 0.3, 0.2}, 1, 3},
		{"single dominant", []float64{0.9, 0.05, 0.05}, 0.8, 1},
		{"boundary inclusive", []float64{0.5, 0.3, 0.2}, 0.8, 2},
		{"needs all", []float64{0.4, 0.3, 0.3}, 0.99, 3},
		{"tiny p keeps one", []float64{0.4, 0.3, 0.3}, 0.1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := nucleusCut(tt.probs, tt.p)
			if got != tt.want {
				t.Fatalf("nucleusCut(%v, %g) = %d, want %d", tt.probs, tt.p, got, tt.want)
			}
			// The cut is minimal: the prefix one shorter must not reach p.
			if tt.p < 1 && got > 1 {
				var c float64
				for _, v := range tt.probs[:got-1] {
					c += v
				}
				if c >= tt.p {
					t.Fatalf("prefix of length %d already reaches p", got-1)
				}
			}
		})
	}
}

func TestTopKOrdering(t *testing.T) {
	tok := testVocab()
	model := &lmtest.Causal{Vocab: tok.Len()}
	s := New(model, tok, Config{})

	logits := []float64{0.1, 5, 3, -1, 4, 2, 0, -3, 1}
	idx, val := s.topK(logits, 4)

	wantIdx := []int{1, 4, 2, 5}
	if len(idx) != len(wantIdx) {
		t.Fatalf("got %d entries, want %d", len(idx), len(wantIdx))
	}
	for i := range wantIdx {
		if idx[i] != wantIdx[i] {
			t.Fatalf("idx = %v, want %v", idx, wantIdx)
		}
		if val[i] != logits[idx[i]] {
			t.Fatalf("val[%d] = %g, want %g", i, val[i], logits[idx[i]])
		}
	}
}

func TestDrawLogProbMatchesRenormalizedDistribution(t *testing.T) {
	tok := testVocab()
	model := &lmtest.Causal{Vocab: tok.Len()}
	s := New(model, tok, Config{Seed: 11, TopK: 2, TopP: 1})

	// Two survivors with logits 1 and 0: p = e/(e+1) and 1/(e+1).
	logits := lmtest.Logits(tok.Len(), -100, map[int]float64{2: 1, 5: 0})
	id, lp, err := s.draw(logits)
	if err != nil {
		t.Fatalf("draw: %v", err)
	}
	var want float64
	switch id {
	case 2:
		want = math.Log(math.E / (math.E + 1))
	case 5:
		want = math.Log(1 / (math.E + 1))
	default:
		t.Fatalf("drew token %d outside the shortlist", id)
	}
	if math.Abs(lp-want) > 1e-12 {
		t.Fatalf("log-prob = %g, want %g", lp, want)
	}
}

func TestSampleBannedWords(t *testing.T) {
	tok := testVocab()
	dot := tok.ID(".")
	kot := tok.ID(" kot")
	pies := tok.ID(" pies")
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			if len(ids) >= 2 {
				return lmtest.Logits(tok.Len(), -10, map[int]float64{dot: 10})
			}
			// The banned word is the model's clear favorite.
			return lmtest.Logits(tok.Len(), 0, map[int]float64{kot: 5, pies: 1})
		},
	}
	s := New(model, tok, Config{
		Seed:         1,
		TopK:         9,
		MaxNewTokens: 4,
		Filters:      []Filter{BannedWords{Words: map[string]struct{}{"kot": {}}}},
	})

	out, err := s.Sample(context.Background(), []int{0})
	if err != nil {
		t.Fatalf("Sample: %v", err)
	}
	for _, id := range out.TokenIDs {
		if id == kot {
			t.Fatalf("sampled banned token %q", tok.Piece(id))
		}
	}
}
