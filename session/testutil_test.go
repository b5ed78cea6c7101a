package session

import (
	"math/rand/v2"
	"strings"
	"testing"

	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/sampler"
	"github.com/larchlabs/forge/tensor"
	"github.com/larchlabs/forge/tokenizer"
)

// newTestEngine builds a tiny LLaMA-shaped model (small enough to run a
// forward pass quickly in a test) and a vocabulary with full byte
// fallback plus a couple of literal pieces, deterministically seeded.
func newTestEngine(t *testing.T) (*model.Weights, *tokenizer.Tokenizer) {
	t.Helper()

	var sb strings.Builder
	sb.WriteString("\"<unk>\"\n\"<s>\"\n\"</s>\"\n")
	for b := 0; b < 256; b++ {
		sb.WriteString(quoteByte(b))
	}
	sb.WriteString("\"hi\"\n")
	sb.WriteString("\"there\"\n")
	vocab, err := tokenizer.ReadVocabulary(strings.NewReader(sb.String()))
	if err != nil {
		t.Fatalf("load vocab: %v", err)
	}

	cfg := model.Config{
		NLayers:   1,
		D:         8,
		NHeads:    2,
		NKVHeads:  1,
		DInter:    8,
		MaxSeqLen: 64,
		Theta:     10000,
		Epsilon:   1e-5,
		BOSToken:  1,
		EOSToken:  2,
		VocabSize: vocab.Len(),
	}

	rng := rand.New(rand.NewPCG(1, 2))
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

	w := &model.Weights{
		Config: cfg,
		Embed:  rt(cfg.VocabSize, cfg.D),
		Layers: []model.Layer{{
			AttnNorm: rt(cfg.D),
			AttnQKV:  rt(cfg.D, cfg.D+2*dkv),
			AttnOut:  rt(cfg.D, cfg.D),
			MLPNorm:  rt(cfg.D),
			GateUp:   rt(cfg.D, 2*cfg.DInter),
			MLPDown:  rt(cfg.DInter, cfg.D),
		}},
		LMNorm: rt(cfg.D),
		LMHead: rt(cfg.D, cfg.VocabSize),
	}

	tok := tokenizer.New(vocab, cfg.BOSToken, cfg.EOSToken)
	return w, tok
}

func quoteByte(b int) string {
	const hex = "0123456789ABCDEF"
	return "\"<0x" + string([]byte{hex[b>>4], hex[b&0xF]}) + ">\"\n"
}

func testParams() sampler.Params {
	return sampler.Params{Temperature: 0, TopK: 1, TopP: 0}
}
