package lm

import (
	"math"
	"testing"
)

func TestLogSumExp(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want float64
	}{
		{"single", []float64{2.5}, 2.5},
		{"pair", []float64{0, 0}, math.Log(2)},
		{"large magnitudes", []float64{1000, 1000}, 1000 + math.Log(2)},
		{"empty", nil, math.Inf(-1)},
		{"all neg inf", []float64{math.Inf(-1), math.Inf(-1)}, math.Inf(-1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := LogSumExp(tt.x)
			if math.IsInf(tt.want, -1) {
				if !math.IsInf(got, -1) {
					t.Fatalf("LogSumExp(%v) = %g, want -Inf", tt.x, got)
				}
				return
			}
			if math.Abs(got-tt.want) > 1e-12 {
				t.Fatalf("LogSumExp(%v) = %g, want %g", tt.x, got, tt.want)
			}
		})
	}
}

func TestLogProbAt(t *testing.T) {
	logits := []float64{1, 2, 3}

	// Probabilities over all ids must sum to one.
	var total float64
	for id := range logits {
		total += math.Exp(LogProbAt(logits, id))
	}
	if math.Abs(total-1) > 1e-12 {
		t.Fatalf("probabilities sum to %g, want 1", total)
	}

	if got := LogProbAt(logits, -1); !math.IsInf(got, -1) {
		t.Fatalf("LogProbAt(-1) = %g, want -Inf", got)
	}
	if got := LogProbAt(logits, 3); !math.IsInf(got, -1) {
		t.Fatalf("LogProbAt(out of range) = %g, want -Inf", got)
	}
}

func TestSoftmax(t *testing.T) {
	probs := Softmax([]float64{0, math.Log(3)})
	if math.Abs(probs[0]-0.25) > 1e-12 || math.Abs(probs[1]-0.75) > 1e-12 {
		t.Fatalf("Softmax = %v, want [0.25 0.75]", probs)
	}

	zero := Softmax([]float64{math.Inf(-1), math.Inf(-1)})
	for i, p := range zero {
		if p != 0 {
			t.Fatalf("Softmax of -Inf logits has nonzero entry %d: %g", i, p)
		}
	}
}
