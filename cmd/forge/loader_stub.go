package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/tensor"
)

// stubLoader implements model.Loader by reading hyperparameters from a
// small JSON sidecar at path and zero-initializing every tensor to that
// shape. Real weight loading (safetensors, gguf, ...) is out of scope
// (spec §1); this exists so `forge serve` has a concrete Loader to call
// rather than leaving model.Loader entirely uninstantiated, and is the
// one piece of this engine meant to be replaced before production use.
type stubLoader struct{}

// stubManifest is the sidecar shape stubLoader reads: just the config
// fields from model.Config, nothing about tensor storage.
type stubManifest struct {
	NLayers   int     `json:"n_layers"`
	D         int     `json:"d"`
	NHeads    int     `json:"n_heads"`
	NKVHeads  int     `json:"n_kv_heads"`
	DInter    int     `json:"d_inter"`
	MaxSeqLen int     `json:"max_seq_len"`
	Theta     float32 `json:"theta"`
	Epsilon   float32 `json:"epsilon"`
	BOSToken  int32   `json:"bos_token"`
	EOSToken  int32   `json:"eos_token"`
	VocabSize int     `json:"vocab_size"`
}

func (stubLoader) Load(path string) (*model.Weights, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("stub loader: %w", err)
	}
	defer f.Close()

	var m stubManifest
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return nil, fmt.Errorf("stub loader: decode manifest: %w", err)
	}

	cfg := model.Config{
		NLayers: m.NLayers, D: m.D, NHeads: m.NHeads, NKVHeads: m.NKVHeads,
		DInter: m.DInter, MaxSeqLen: m.MaxSeqLen, Theta: m.Theta, Epsilon: m.Epsilon,
		BOSToken: m.BOSToken, EOSToken: m.EOSToken, VocabSize: m.VocabSize,
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("stub loader: %w", err)
	}

	dkv := cfg.KVDim()
	zeros := func(shape ...int) *tensor.View { return tensor.New(tensor.F16, shape...) }

	layers := make([]model.Layer, cfg.NLayers)
	for i := range layers {
		layers[i] = model.Layer{
			AttnNorm: zeros(cfg.D),
			AttnQKV:  zeros(cfg.D, cfg.D+2*dkv),
			AttnOut:  zeros(cfg.D, cfg.D),
			MLPNorm:  zeros(cfg.D),
			GateUp:   zeros(cfg.D, 2*cfg.DInter),
			MLPDown:  zeros(cfg.DInter, cfg.D),
		}
	}

	return &model.Weights{
		Config: cfg,
		Embed:  zeros(cfg.VocabSize, cfg.D),
		Layers: layers,
		LMNorm: zeros(cfg.D),
		LMHead: zeros(cfg.D, cfg.VocabSize),
	}, nil
}
