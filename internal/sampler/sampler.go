// Package sampler implements the logit sampler: argmax, temperature
// softmax multinomial, and nucleus (top-p) sampling, driven by a
// deterministic per-session RNG.
package sampler

import (
	"sort"

	"github.com/screenager/llamago/internal/kernel"
)

// probIndex pairs a probability with its vocabulary index, used as scratch
// space for nucleus sampling.
type probIndex struct {
	prob  float32
	index int32
}

// Sampler holds the sampling configuration and a scratch buffer reused
// across calls to avoid per-step allocation.
type Sampler struct {
	Temperature float32
	TopP        float32
	VocabSize   int

	rng     *RNG
	scratch []probIndex
}

// New returns a Sampler configured for the given temperature, top-p, and
// vocabulary size, seeded deterministically.
func New(temperature, topP float32, vocabSize int, seed uint64) *Sampler {
	return &Sampler{
		Temperature: temperature,
		TopP:        topP,
		VocabSize:   vocabSize,
		rng:         NewRNG(seed),
		scratch:     make([]probIndex, 0, vocabSize),
	}
}

// Sample returns a token id drawn from logits. When Temperature == 0 this
// is a pure function of logits: argmax, ties broken by lowest index.
// Otherwise logits are scaled by temperature and passed through softmax in
// place, then either a plain multinomial draw or nucleus sampling is used
// depending on TopP.
func (s *Sampler) Sample(logits []float32) int32 {
	if s.Temperature == 0 {
		return argmax(logits)
	}

	for i := range logits {
		logits[i] /= s.Temperature
	}
	kernel.Softmax(logits)

	u := s.rng.Float32()
	if s.TopP <= 0 || s.TopP >= 1 {
		return sampleMultinomial(logits, u)
	}
	return s.sampleNucleus(logits, u)
}

// argmax returns the index of the largest value, with ties broken by the
// lowest index.
func argmax(logits []float32) int32 {
	best := 0
	for i := 1; i < len(logits); i++ {
		if logits[i] > logits[best] {
			best = i
		}
	}
	return int32(best)
}

// sampleMultinomial walks the distribution accumulating probability mass
// and returns the first index where the running sum exceeds u. The last
// index catches any floating-point shortfall so the walk always returns.
func sampleMultinomial(probs []float32, u float32) int32 {
	var cdf float32
	for i, p := range probs {
		cdf += p
		if u < cdf {
			return int32(i)
		}
	}
	return int32(len(probs) - 1)
}

// sampleNucleus restricts sampling to the smallest set of tokens whose
// cumulative probability is at least TopP, renormalizes among those kept,
// and draws via the same running-sum procedure as sampleMultinomial.
func (s *Sampler) sampleNucleus(probs []float32, u float32) int32 {
	cutoff := (1 - s.TopP) / float32(s.VocabSize-1)

	s.scratch = s.scratch[:0]
	for i, p := range probs {
		if p >= cutoff {
			s.scratch = append(s.scratch, probIndex{prob: p, index: int32(i)})
		}
	}

	sort.Slice(s.scratch, func(i, j int) bool {
		if s.scratch[i].prob != s.scratch[j].prob {
			return s.scratch[i].prob > s.scratch[j].prob
		}
		return s.scratch[i].index > s.scratch[j].index
	})

	var cumulative float32
	lastIdx := len(s.scratch) - 1
	for i, pi := range s.scratch {
		cumulative += pi.prob
		if cumulative >= s.TopP {
			lastIdx = i
			break
		}
	}
	kept := s.scratch[:lastIdx+1]

	var total float32
	for _, pi := range kept {
		total += pi.prob
	}

	target := u * total
	var cdf float32
	for _, pi := range kept {
		cdf += pi.prob
		if target < cdf {
			return pi.index
		}
	}
	return kept[len(kept)-1].index
}
