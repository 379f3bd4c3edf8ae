package generate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pytia/internal/lm/lmtest"
)

func TestBestConstrainedKeepsLetter(t *testing.T) {
	tok := lmtest.NewTokenizer(
		"Mały", " marynarz", " maluje", " mapy", " morskie", " kotwice", ".",
	)
	morskie, kotwice, dot := tok.ID(" morskie"), tok.ID(" kotwice"), tok.ID(".")
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			last := ids[len(ids)-1]
			if last == morskie || last == kotwice {
				return lmtest.Logits(tok.Len(), -50, map[int]float64{dot: 50})
			}
			// The raw model slightly prefers the constraint-breaking word.
			return lmtest.Logits(tok.Len(), -50, map[int]float64{kotwice: 1, morskie: 0})
		},
	}

	out, err := BestConstrained(context.Background(), model, tok,
		"Mały marynarz maluje mapy", Config{Seed: 9})
	require.NoError(t, err)
	assert.Equal(t, "Mały marynarz maluje mapy morskie.", out)
	for _, w := range strings.Fields(strings.TrimSuffix(out, ".")) {
		assert.Equal(t, "m", strings.ToLower(w[:2])[:1], "word %q breaks the constraint", w)
	}
}

func TestBestConstrainedEmptyPrefix(t *testing.T) {
	tok := lmtest.NewTokenizer(".")
	model := &lmtest.Causal{Vocab: tok.Len()}
	_, err := BestConstrained(context.Background(), model, tok, "   ", Config{})
	assert.Error(t, err)
}

func TestRankOrderingsPrefersScriptedOrder(t *testing.T) {
	tok := lmtest.NewTokenizer("Ala", " ma", " kota", "Kota", "Ma", " ala", " a", ".", " ")
	ala, ma, kota := tok.ID("Ala"), tok.ID(" ma"), tok.ID(" kota")
	model := &lmtest.Causal{
		Vocab: tok.Len(),
		Fn: func(ids []int) []float64 {
			// Reward exactly the continuation "Ala ma kota".
			switch {
			case len(ids) == 1 && ids[0] == ala:
				return lmtest.Logits(tok.Len(), 0, map[int]float64{ma: 5})
			case len(ids) == 2 && ids[0] == ala && ids[1] == ma:
				return lmtest.Logits(tok.Len(), 0, map[int]float64{kota: 5})
			default:
				return lmtest.Logits(tok.Len(), 0, nil)
			}
		},
	}

	best, err := BestOrdering(context.Background(), model, tok, "kota ma Ala.")
	require.NoError(t, err)
	assert.Equal(t, "Ala ma kota.", best)

	ranked, err := RankOrderings(context.Background(), model, tok, "kota ma Ala.")
	require.NoError(t, err)
	require.Len(t, ranked, 6)
	assert.Equal(t, "Ala ma kota.", ranked[0].Text)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqual(t, ranked[i-1].LogProb, ranked[i].LogProb)
	}
}

func TestRankOrderingsWordLimit(t *testing.T) {
	tok := lmtest.NewTokenizer(".")
	model := &lmtest.Causal{Vocab: tok.Len()}
	_, err := RankOrderings(context.Background(), model, tok,
		"jeden dwa trzy cztery pięć sześć siedem osiem dziewięć")
	assert.Error(t, err)
}

func TestPermutations(t *testing.T) {
	perms := permutations([]string{"a", "b", "c"})
	require.Len(t, perms, 6)
	seen := make(map[string]struct{})
	for _, p := range perms {
		seen[strings.Join(p, " ")] = struct{}{}
	}
	assert.Len(t, seen, 6)
}
