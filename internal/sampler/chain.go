// Package sampler composes the fixed-order chain the spec requires:
// repetition penalty, top-k truncation, top-p (nucleus) truncation,
// temperature scaling, then a seeded categorical draw.
package sampler

import (
	"math"
	"math/rand"
	"sort"

	"modeld/pkg/types"
)

// lastNWindow bounds how many recent tokens the repetition penalty looks
// back over.
const lastNWindow = 64

// Chain is built fresh per generation call. The seed is drawn at chain
// creation time (not at engine construction), so each generation is
// independently reproducible when the seed is fixed.
type Chain struct {
	topK          int
	topP          float64
	temperature   float64
	repeatPenalty float64
	rng           *rand.Rand
}

// New builds a Chain from already-clamped GenerationParameters and a seed.
func New(params types.GenerationParameters, seed int64) *Chain {
	return &Chain{
		topK:          params.TopK,
		topP:          params.TopP,
		temperature:   params.Temperature,
		repeatPenalty: params.RepeatPenalty,
		rng:           rand.New(rand.NewSource(seed)),
	}
}

// Sample draws the next token id from logits, given the recently emitted
// token history (used by the repetition penalty, last-N with frequency and
// presence both zero).
func (c *Chain) Sample(logits []float32, history []int32) int32 {
	work := make([]float64, len(logits))
	for i, v := range logits {
		work[i] = float64(v)
	}

	c.applyRepetitionPenalty(work, history)
	c.applyTopK(work)

	probs := softmax(work)
	probs = c.applyTopP(probs)
	probs = c.applyTemperature(probs)

	return c.draw(probs)
}

func (c *Chain) applyRepetitionPenalty(logits []float64, history []int32) {
	if c.repeatPenalty <= 1.0 || len(history) == 0 {
		return
	}
	start := 0
	if len(history) > lastNWindow {
		start = len(history) - lastNWindow
	}
	seen := make(map[int32]bool)
	for _, tok := range history[start:] {
		if int(tok) < 0 || int(tok) >= len(logits) || seen[tok] {
			continue
		}
		seen[tok] = true
		if logits[tok] > 0 {
			logits[tok] /= c.repeatPenalty
		} else {
			logits[tok] *= c.repeatPenalty
		}
	}
}

func (c *Chain) applyTopK(logits []float64) {
	k := c.topK
	if k <= 0 || k >= len(logits) {
		return
	}
	idx := make([]int, len(logits))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return logits[idx[i]] > logits[idx[j]] })
	for _, i := range idx[k:] {
		logits[i] = math.Inf(-1)
	}
}

func softmax(logits []float64) []float64 {
	maxv := math.Inf(-1)
	for _, v := range logits {
		if v > maxv {
			maxv = v
		}
	}
	sum := 0.0
	out := make([]float64, len(logits))
	for i, v := range logits {
		if math.IsInf(v, -1) {
			out[i] = 0
			continue
		}
		e := math.Exp(v - maxv)
		out[i] = e
		sum += e
	}
	if sum == 0 {
		return out
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// applyTopP keeps the smallest prefix of probability mass (sorted
// descending) whose cumulative sum reaches topP, zeroing the tail and
// renormalizing.
func (c *Chain) applyTopP(probs []float64) []float64 {
	p := c.topP
	if p <= 0 || p >= 1 {
		return probs
	}
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.Slice(idx, func(i, j int) bool { return probs[idx[i]] > probs[idx[j]] })

	out := make([]float64, len(probs))
	cum := 0.0
	for _, i := range idx {
		if cum >= p {
			break
		}
		out[i] = probs[i]
		cum += probs[i]
	}
	return renormalize(out)
}

// applyTemperature raises surviving probabilities to the power 1/temperature
// and renormalizes; temperature is already clamped to >= 0.01 by
// GenerationParameters.Clamp.
func (c *Chain) applyTemperature(probs []float64) []float64 {
	t := c.temperature
	if t <= 0 {
		t = 0.01
	}
	if t == 1.0 {
		return probs
	}
	out := make([]float64, len(probs))
	for i, v := range probs {
		if v <= 0 {
			continue
		}
		out[i] = math.Pow(v, 1.0/t)
	}
	return renormalize(out)
}

func renormalize(probs []float64) []float64 {
	sum := 0.0
	for _, v := range probs {
		sum += v
	}
	if sum == 0 {
		return probs
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}

func (c *Chain) draw(probs []float64) int32 {
	r := c.rng.Float64()
	cum := 0.0
	for i, p := range probs {
		cum += p
		if r <= cum {
			return int32(i)
		}
	}
	// Floating point rounding may leave cum just under r; fall back to the
	// highest-probability surviving token.
	best, bestP := 0, -1.0
	for i, p := range probs {
		if p > bestP {
			best, bestP = i, p
		}
	}
	return int32(best)
}
