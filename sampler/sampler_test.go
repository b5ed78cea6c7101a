package sampler

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSampleGreedyPicksArgmax(t *testing.T) {
	s := New(Params{Temperature: 0}, 1)
	id := s.Sample([]float32{0.1, 5.0, -2.0, 3.0})
	require.Equal(t, int32(1), id)
}

func TestSampleTopKOnePicksArgmaxRegardlessOfTemperature(t *testing.T) {
	s := New(Params{Temperature: 1, TopK: 1}, 1)
	id := s.Sample([]float32{0.1, 5.0, -2.0, 3.0})
	require.Equal(t, int32(1), id)
}

func TestSampleIsReproducibleForTheSameSeed(t *testing.T) {
	logits := []float32{1, 2, 3, 4, 5}
	a := New(Params{Temperature: 1, TopK: 0, TopP: 0}, 42)
	b := New(Params{Temperature: 1, TopK: 0, TopP: 0}, 42)

	for i := 0; i < 20; i++ {
		require.Equal(t, a.Sample(logits), b.Sample(logits))
	}
}

func TestSampleDifferentSeedsCanDiverge(t *testing.T) {
	logits := []float32{1, 2, 3, 4, 5, 6, 7, 8}
	a := New(Params{Temperature: 2, TopK: 0, TopP: 0}, 1)
	b := New(Params{Temperature: 2, TopK: 0, TopP: 0}, 2)

	diverged := false
	for i := 0; i < 50; i++ {
		if a.Sample(logits) != b.Sample(logits) {
			diverged = true
			break
		}
	}
	require.True(t, diverged)
}

func TestSampleTopKRestrictsToHighestCandidates(t *testing.T) {
	s := New(Params{Temperature: 1, TopK: 2}, 7)
	logits := []float32{10, 9, -100, -100, -100}
	for i := 0; i < 30; i++ {
		id := s.Sample(logits)
		require.True(t, id == 0 || id == 1, "sampled id %d outside top-2", id)
	}
}

func TestSetParamsChangesSubsequentSamples(t *testing.T) {
	s := New(Params{Temperature: 1, TopK: 0}, 3)
	s.SetParams(Params{Temperature: 0})
	id := s.Sample([]float32{1, 9, 2})
	require.Equal(t, int32(1), id)
}
