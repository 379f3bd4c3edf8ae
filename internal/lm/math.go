package lm

import "math"

// LogSumExp computes log(sum(exp(x))) with the usual max subtraction so that
// large logits do not overflow.
func LogSumExp(x []float64) float64 {
	if len(x) == 0 {
		return math.Inf(-1)
	}
	maxv := x[0]
	for _, v := range x[1:] {
		if v > maxv {
			maxv = v
		}
	}
	if math.IsInf(maxv, -1) {
		return maxv
	}
	var sum float64
	for _, v := range x {
		sum += math.Exp(v - maxv)
	}
	return maxv + math.Log(sum)
}

// LogProbAt returns the log-probability that the distribution described by
// logits assigns to token id, i.e. logits[id] - LogSumExp(logits).
func LogProbAt(logits []float64, id int) float64 {
	if id < 0 || id >= len(logits) {
		return math.Inf(-1)
	}
	return logits[id] - LogSumExp(logits)
}

// Softmax converts logits to probabilities. The result is a fresh slice; an
// all -Inf input yields all zeros.
func Softmax(logits []float64) []float64 {
	out := make([]float64, len(logits))
	lse := LogSumExp(logits)
	if math.IsInf(lse, -1) {
		return out
	}
	for i, v := range logits {
		out[i] = math.Exp(v - lse)
	}
	return out
}
