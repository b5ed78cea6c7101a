package transformer

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/larchlabs/forge/kvcache"
	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/tensor"
)

func newTestModel() *model.Weights {
	cfg := model.Config{
		NLayers: 2, D: 8, NHeads: 2, NKVHeads: 1, DInter: 8,
		MaxSeqLen: 32, Theta: 10000, Epsilon: 1e-5, VocabSize: 11,
	}

	rng := rand.New(rand.NewPCG(7, 11))
	rt := func(shape ...int) *tensor.View {
		v := tensor.New(tensor.F32, shape...)
		n := 1
		for _, d := range shape {
			n *= d
		}
		idx := make([]int, len(shape))
		for i := 0; i < n; i++ {
			val := float32(rng.Float64()*0.2 - 0.1)
			rem := i
			for d := len(shape) - 1; d >= 0; d-- {
				idx[d] = rem % shape[d]
				rem /= shape[d]
			}
			v.Set(val, idx...)
		}
		return v
	}

	dkv := cfg.KVDim()
	layers := make([]model.Layer, cfg.NLayers)
	for i := range layers {
		layers[i] = model.Layer{
			AttnNorm: rt(cfg.D),
			AttnQKV:  rt(cfg.D, cfg.D+2*dkv),
			AttnOut:  rt(cfg.D, cfg.D),
			MLPNorm:  rt(cfg.D),
			GateUp:   rt(cfg.D, 2*cfg.DInter),
			MLPDown:  rt(cfg.DInter, cfg.D),
		}
	}

	return &model.Weights{
		Config: cfg,
		Embed:  rt(cfg.VocabSize, cfg.D),
		Layers: layers,
		LMNorm: rt(cfg.D),
		LMHead: rt(cfg.D, cfg.VocabSize),
	}
}

func TestForwardProducesOneLogitsRowPerDecodeRequest(t *testing.T) {
	w := newTestModel()
	cache := kvcache.New(w.Config)
	ids := []int32{1, 2, 3}
	queries := []Query{{Cache: cache, Pos: 0, SeqLen: 3, NumDecode: 1}}

	logits := Forward(w, ids, queries)
	require.Equal(t, []int{1, w.Config.VocabSize}, logits.Shape())
	require.Equal(t, 3, cache.Len())
}

func TestForwardIsDeterministicGivenTheSameInputs(t *testing.T) {
	w := newTestModel()
	ids := []int32{4, 5, 6, 7}

	c1 := kvcache.New(w.Config)
	logits1 := Forward(w, ids, []Query{{Cache: c1, Pos: 0, SeqLen: 4, NumDecode: 2}})

	c2 := kvcache.New(w.Config)
	logits2 := Forward(w, ids, []Query{{Cache: c2, Pos: 0, SeqLen: 4, NumDecode: 2}})

	require.Equal(t, logits1.Floats(), logits2.Floats())
}

func TestForwardBatchesMultipleSessionsIndependently(t *testing.T) {
	w := newTestModel()

	cacheA := kvcache.New(w.Config)
	cacheB := kvcache.New(w.Config)

	// Run each session alone first, to get a reference per-session result.
	refA := Forward(w, []int32{1, 2}, []Query{{Cache: kvcache.New(w.Config), Pos: 0, SeqLen: 2, NumDecode: 1}})
	refB := Forward(w, []int32{3, 4, 5}, []Query{{Cache: kvcache.New(w.Config), Pos: 0, SeqLen: 3, NumDecode: 1}})

	// Now run both together in one batched call.
	ids := []int32{1, 2, 3, 4, 5}
	queries := []Query{
		{Cache: cacheA, Pos: 0, SeqLen: 2, NumDecode: 1},
		{Cache: cacheB, Pos: 0, SeqLen: 3, NumDecode: 1},
	}
	logits := Forward(w, ids, queries)

	require.Equal(t, []int{2, w.Config.VocabSize}, logits.Shape())
	require.InDeltaSlice(t, refA.Floats(), logits.Row(0).Floats(), 1e-4)
	require.InDeltaSlice(t, refB.Floats(), logits.Row(1).Floats(), 1e-4)
}

func TestForwardContinuesFromAnExistingCache(t *testing.T) {
	w := newTestModel()
	cache := kvcache.New(w.Config)

	Forward(w, []int32{1, 2}, []Query{{Cache: cache, Pos: 0, SeqLen: 2, NumDecode: 0}})
	require.Equal(t, 2, cache.Len())

	logits := Forward(w, []int32{3}, []Query{{Cache: cache, Pos: 2, SeqLen: 1, NumDecode: 1}})
	require.Equal(t, []int{1, w.Config.VocabSize}, logits.Shape())
	require.Equal(t, 3, cache.Len())
}
