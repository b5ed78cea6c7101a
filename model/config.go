// Package model holds the in-memory layout of a loaded LLaMA-family
// model: hyperparameters, embedding table, per-layer weights, LM head
// (spec §3). Loading itself (on-disk tensor file format) is out of scope
// per spec §1; Loader below is the contract a collaborator implements.
//
// The tagged-struct-of-tensors shape of Layer is grounded on the
// teacher's per-architecture model structs (model/models/glm4moelite/mlp.go,
// model/models/deepseek2/attention.go), minus the `gguf:"..."` struct
// tags, which exist purely to drive the on-disk loader this spec excludes.
package model

import (
	"fmt"

	"github.com/larchlabs/forge/tensor"
)

// Config holds per-model constants (spec §3).
type Config struct {
	NLayers   int // L
	D         int // hidden size
	NHeads    int // nh, query heads
	NKVHeads  int // nkvh, KV heads; must divide NHeads
	DInter    int // di, MLP intermediate size
	MaxSeqLen int // cache capacity per session
	Theta     float32
	Epsilon   float32
	BOSToken  int32
	EOSToken  int32
	VocabSize int
}

// HeadDim returns dh = d/nh.
func (c Config) HeadDim() int { return c.D / c.NHeads }

// KVDim returns dkv = nkvh*dh.
func (c Config) KVDim() int { return c.NKVHeads * c.HeadDim() }

// HeadGroup returns nh/nkvh, the number of query heads sharing one KV head.
func (c Config) HeadGroup() int { return c.NHeads / c.NKVHeads }

// Validate checks the derived-dimension invariant nh = nkvh * head_group.
func (c Config) Validate() error {
	if c.NHeads%c.NKVHeads != 0 {
		return fmt.Errorf("model: nh (%d) must be a multiple of nkvh (%d)", c.NHeads, c.NKVHeads)
	}
	return nil
}

// Layer holds one transformer layer's parameters (spec §3).
type Layer struct {
	AttnNorm *tensor.View // att_layernorm[d]
	AttnQKV  *tensor.View // att_qkv[d, d+2dkv]
	AttnOut  *tensor.View // att_o[d,d]
	MLPNorm  *tensor.View // mlp_layernorm[d]
	GateUp   *tensor.View // mlp_gate_up[d, 2di]
	MLPDown  *tensor.View // mlp_down[di,d]
}

// Weights holds the full set of loaded model parameters (spec §3).
type Weights struct {
	Config   Config
	Embed    *tensor.View // E[V,d]
	Layers   []Layer
	LMNorm   *tensor.View // lm_layernorm[d]
	LMHead   *tensor.View // lm_head[d,V]
}

// Loader is the contract an external collaborator implements to produce a
// loaded model from an on-disk path (spec §6). The on-disk tensor file
// format itself is out of scope here; any implementation (safetensors,
// gguf, ...) just needs to populate Weights with the shapes above.
type Loader interface {
	Load(path string) (*Weights, error)
}
