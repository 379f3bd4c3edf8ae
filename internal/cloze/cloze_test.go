package cloze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pytia/internal/lm/lmtest"
)

func TestFillOrdersAndCleansFillers(t *testing.T) {
	tok := lmtest.NewTokenizer("Stolicą", " Polski", " jest", " Warszawa", " Kraków", ".", " ", "<mask>")
	warszawa, krakow, space := tok.ID(" Warszawa"), tok.ID(" Kraków"), tok.ID(" ")
	model := &lmtest.Masked{
		Vocab: tok.Len(),
		Mask:  tok.ID("<mask>"),
		Fn: func(ids []int, pos int) []float64 {
			// A bare-space filler ranks between the two cities; it must be
			// dropped after cleaning.
			return lmtest.Logits(tok.Len(), -5, map[int]float64{
				krakow: 3, space: 2, warszawa: 1,
			})
		},
	}
	e := New(model, tok)

	fillers, err := e.Fill(context.Background(), "Stolicą Polski jest <mask>.", 3)
	require.NoError(t, err)
	require.Len(t, fillers, 2)
	assert.Equal(t, "Kraków", fillers[0].Text)
	assert.Equal(t, "Warszawa", fillers[1].Text)
	assert.Greater(t, fillers[0].Prob, fillers[1].Prob)
}

func TestFillBestRerankOverridesFillOrder(t *testing.T) {
	tok := lmtest.NewTokenizer("Stolicą", " Polski", " jest", " Warszawa", " Kraków", ".", " ", "<mask>")
	warszawa, krakow := tok.ID(" Warszawa"), tok.ID(" Kraków")
	maskID := tok.ID("<mask>")

	// The raw fill prefers Kraków, but the completed Warszawa sentence gets
	// confident interior predictions and wins the PLL rerank.
	model := &lmtest.Masked{
		Vocab: tok.Len(),
		Mask:  maskID,
		Fn: func(ids []int, pos int) []float64 {
			if len(ids) == 6 && ids[pos] == maskID && pos == 4 {
				return lmtest.Logits(tok.Len(), -5, map[int]float64{krakow: 3, warszawa: 2})
			}
			if len(ids) == 5 && ids[3] == warszawa {
				truth := map[int]int{1: tok.ID(" Polski"), 2: tok.ID(" jest")}[pos]
				return lmtest.Logits(tok.Len(), 0, map[int]float64{truth: 6})
			}
			return lmtest.Logits(tok.Len(), 0, nil)
		},
	}
	e := New(model, tok)

	best, err := e.FillBest(context.Background(), "Stolicą Polski jest <mask>.")
	require.NoError(t, err)
	assert.Equal(t, "Warszawa", best)
}

func TestGreedySpanStopsOnPunctuation(t *testing.T) {
	tok := lmtest.NewTokenizer("Autorem", " jest", " Gabriel", " García", ".", " ", "<mask>")
	model := &lmtest.Masked{
		Vocab: tok.Len(),
		Mask:  tok.ID("<mask>"),
		Fn: func(ids []int, pos int) []float64 {
			top := map[int]int{
				3: tok.ID(" Gabriel"),
				4: tok.ID(" García"),
				5: tok.ID("."),
			}[pos]
			return lmtest.Logits(tok.Len(), -5, map[int]float64{top: 5})
		},
	}
	e := New(model, tok)

	span, err := e.GreedySpan(context.Background(), "Autorem jest", 3, ".")
	require.NoError(t, err)
	assert.Equal(t, "Gabriel García", span)
}

func TestGreedySpanHonorsTokenLimit(t *testing.T) {
	tok := lmtest.NewTokenizer("Autorem", " jest", " Gabriel", " García", ".", " ", "<mask>")
	gabriel := tok.ID(" Gabriel")
	model := &lmtest.Masked{
		Vocab: tok.Len(),
		Mask:  tok.ID("<mask>"),
		Fn: func(ids []int, pos int) []float64 {
			// Never emits a stop token.
			return lmtest.Logits(tok.Len(), -5, map[int]float64{gabriel: 5})
		},
	}
	e := New(model, tok)

	span, err := e.GreedySpan(context.Background(), "Autorem jest", 2, ".")
	require.NoError(t, err)
	assert.Equal(t, "Gabriel Gabriel", span)
	assert.Equal(t, 2, model.Calls)
}

func TestSplitTemplateValidation(t *testing.T) {
	_, _, err := splitTemplate("bez maski.")
	assert.Error(t, err)

	_, _, err = splitTemplate("<mask> i <mask>.")
	assert.Error(t, err)

	pre, post, err := splitTemplate("Stolicą Polski jest <mask>.")
	require.NoError(t, err)
	assert.Equal(t, "Stolicą Polski jest ", pre)
	assert.Equal(t, ".", post)
}

func TestCleanPiece(t *testing.T) {
	assert.Equal(t, "Madryt", CleanPiece("ĠMadryt"))
	assert.Equal(t, "Madryt", CleanPiece("▁Madryt"))
	assert.Equal(t, "Madryt", CleanPiece(" Madryt "))
	assert.Equal(t, "", CleanPiece(" Ġ "))
}
