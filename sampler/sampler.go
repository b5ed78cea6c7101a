// Package sampler implements per-row token selection from a logits row:
// temperature, top-k, top-p (spec §4.2 Sampler). The teacher's own
// `sample` package could not be retrieved for this pack; the component is
// built directly from spec §4.2 and the way the generation loop calls it
// in runner/ollamarunner/runner_compute.go (`seq.sampler.Sample(logits)`,
// once per produced token).
package sampler

import (
	"math"
	"math/rand/v2"
	"sort"
)

// Params holds one session's sampling configuration (spec §3
// sample_params).
type Params struct {
	Temperature float32
	TopK        int
	TopP        float32
}

// Sampler draws one token id from a row of logits.
type Sampler struct {
	params Params
	rng    *rand.Rand
}

// New builds a Sampler with an explicit random source, so sampling is
// reproducible given the same seed (spec §8: fork/revert determinism
// properties require this).
func New(params Params, seed uint64) *Sampler {
	return &Sampler{params: params, rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// SetParams updates the sampling configuration, e.g. from per-call
// overrides in an Infer request.
func (s *Sampler) SetParams(p Params) { s.params = p }

// Sample picks one token id from logits (length V).
func (s *Sampler) Sample(logits []float32) int32 {
	if s.params.Temperature <= 0 || s.params.TopK == 1 {
		return argmax(logits)
	}

	probs := softmaxTemperature(logits, s.params.Temperature)

	type candidate struct {
		id   int32
		prob float32
	}
	cands := make([]candidate, len(probs))
	for i, p := range probs {
		cands[i] = candidate{int32(i), p}
	}
	sort.Slice(cands, func(i, j int) bool { return cands[i].prob > cands[j].prob })

	if s.params.TopK > 0 && s.params.TopK < len(cands) {
		cands = cands[:s.params.TopK]
	}

	if s.params.TopP > 0 && s.params.TopP < 1 {
		var cum float32
		cut := len(cands)
		for i, c := range cands {
			cum += c.prob
			if cum >= s.params.TopP {
				cut = i + 1
				break
			}
		}
		cands = cands[:cut]
	}

	var total float32
	for _, c := range cands {
		total += c.prob
	}
	if total == 0 {
		return argmax(logits)
	}

	target := s.rng.Float32() * total
	var cum float32
	for _, c := range cands {
		cum += c.prob
		if cum >= target {
			return c.id
		}
	}
	return cands[len(cands)-1].id
}

func argmax(logits []float32) int32 {
	best := 0
	for i, v := range logits {
		if v > logits[best] {
			best = i
		}
	}
	return int32(best)
}

func softmaxTemperature(logits []float32, temperature float32) []float32 {
	out := make([]float32, len(logits))
	maxVal := float32(math.Inf(-1))
	for _, v := range logits {
		if v > maxVal {
			maxVal = v
		}
	}

	var sum float64
	for i, v := range logits {
		e := math.Exp(float64((v - maxVal) / temperature))
		out[i] = float32(e)
		sum += e
	}
	for i := range out {
		out[i] = float32(float64(out[i]) / sum)
	}
	return out
}
