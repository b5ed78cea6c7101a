// Package transformer implements the batched forward pass of spec §4.2:
// layer-wise RMSNorm → QKV projection → RoPE → grouped-query attention
// against each session's cached K/V → output projection → gated MLP,
// followed by the decoding head that compacts the rows needing sampling
// and projects them through lm_head into logits.
//
// Grounded on original_source/transformer-cpu/src/lib.rs's forward/decode
// pair (the per-layer schedule and the α/β mat_mul convention are taken
// directly from its call sites), expressed in the teacher's tensor/kernel
// idiom rather than the Rust original's flat slice arithmetic.
package transformer

import (
	"math"

	"github.com/larchlabs/forge/kernel"
	"github.com/larchlabs/forge/kvcache"
	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/tensor"
)

// Query describes one session's slice of a batched forward pass: the
// cache it writes into, how many cached tokens already precede it, how
// many new tokens it contributes, and how many of its trailing rows need
// logits (spec §4.2's num_decode).
type Query struct {
	Cache     *kvcache.Cache
	Pos       int // cached token count before this call
	SeqLen    int // new tokens contributed by this query
	NumDecode int // trailing rows of this query's block needing logits
}

// AttLen is the attention length this query sees: its prior cache length
// plus the new tokens it is about to write.
func (q Query) AttLen() int { return q.Pos + q.SeqLen }

// Forward runs one batched pass over the concatenated token ids of every
// query in order, splicing each query's new K/V rows into its own
// session cache, and returns logits[M, vocab] for the M = Σ NumDecode
// rows the caller asked to sample (spec §4.2 "Decoding head").
func Forward(w *model.Weights, ids []int32, queries []Query) *tensor.View {
	cfg := w.Config
	nt := len(ids)
	d := cfg.D
	dh := cfg.HeadDim()
	dkv := cfg.KVDim()
	nh := cfg.NHeads
	nkvh := cfg.NKVHeads
	headGroup := cfg.HeadGroup()
	di := cfg.DInter

	offsets := queryOffsets(queries)
	pos := positions(queries, offsets, nt)

	x := tensor.New(tensor.F32, nt, d)
	kernel.Gather(x, w.Embed, ids)

	for l := 0; l < cfg.NLayers; l++ {
		layer := w.Layers[l]

		// 1. x1 ← rms_norm(x, att_layernorm)
		x1 := tensor.New(tensor.F32, nt, d)
		kernel.RMSNorm(x1, x, layer.AttnNorm, cfg.Epsilon)

		// 2. qkv ← x1 · att_qkv, split into q, k, v by column range. We
		// project each of q/k/v with its own mat_mul against a
		// column-sliced view of att_qkv rather than one packed mat_mul
		// into a shared scratch buffer: tensor.View's Reshape requires a
		// contiguous view, and a column slice of att_qkv isn't one, while
		// kernel.MatMul reads through arbitrary strides regardless. The
		// arithmetic is identical to the packed-buffer form in spec §4.2.
		q := tensor.New(tensor.F32, nt, d)
		kernel.MatMul(q, 0, x1, layer.AttnQKV.Slice(1, 0, d, 1), 1)
		k := tensor.New(tensor.F32, nt, dkv)
		kernel.MatMul(k, 0, x1, layer.AttnQKV.Slice(1, d, d+dkv, 1), 1)
		v := tensor.New(tensor.F32, nt, dkv)
		kernel.MatMul(v, 0, x1, layer.AttnQKV.Slice(1, d+dkv, d+2*dkv, 1), 1)

		q3 := q.Reshape(nt, nh, dh)
		k3 := k.Reshape(nt, nkvh, dh)

		// 3. RoPE over q and k using each token's absolute position.
		kernel.RotaryEmbedding(q3, pos, cfg.Theta)
		kernel.RotaryEmbedding(k3, pos, cfg.Theta)

		v3 := v.Reshape(nt, nkvh, dh)

		// 4. Transpose heads to the outer dimension, then split per
		// query along the nt axis.
		qT := q3.Transpose(1, 0, 2) // [nh, nt, dh]
		kT := k3.Transpose(1, 0, 2) // [nkvh, nt, dh]
		vT := v3.Transpose(1, 0, 2) // [nkvh, nt, dh]

		scale := float32(1 / math.Sqrt(float64(dh)))

		for qi, query := range queries {
			off := offsets[qi]
			seqLen := query.SeqLen
			if seqLen == 0 {
				continue
			}
			attLen := query.AttLen()

			qi3 := qT.Slice(1, off, off+seqLen, 1) // [nh, seqLen, dh]
			ki3 := kT.Slice(1, off, off+seqLen, 1) // [nkvh, seqLen, dh]
			vi3 := vT.Slice(1, off, off+seqLen, 1) // [nkvh, seqLen, dh]

			query.Cache.Put(l, query.Pos, seqLen, ki3, vi3)
			kCache, vCache := query.Cache.Get(l, attLen)

			x1Query := x1.Slice(0, off, off+seqLen, 1) // [seqLen, d]

			// 5. Grouped-query attention, one query head at a time;
			// heads sharing a KV head (h/head_group) read the same
			// cached rows. spec §4.2 frames this as a single reshaped
			// batch of [nkvh, head_group·seq_len, dh]; looping per head
			// is mathematically identical and avoids merging two
			// dimensions whose strides aren't adjacent in memory.
			for h := 0; h < nh; h++ {
				kv := h / headGroup
				qh := qi3.Row(h)          // [seqLen, dh]
				kh := kCache.Row(kv)      // [attLen, dh]
				vh := vCache.Row(kv)      // [attLen, dh]
				khT := kh.Transpose(1, 0) // [dh, attLen]

				att := tensor.New(tensor.F32, seqLen, attLen)
				kernel.MatMul(att, 0, qh, khT, scale)
				kernel.Softmax(att, seqLen, attLen)

				oh := tensor.New(tensor.F32, seqLen, dh)
				kernel.MatMul(oh, 0, att, vh, 1)

				for r := 0; r < seqLen; r++ {
					for j := 0; j < dh; j++ {
						x1Query.Set(oh.At(r, j), r, h*dh+j)
					}
				}
			}
		}

		// 6. residual: x ← x + x1·att_o
		kernel.MatMul(x, 1, x1, layer.AttnOut, 1)

		// 7. x1 ← rms_norm(x, mlp_layernorm)
		kernel.RMSNorm(x1, x, layer.MLPNorm, cfg.Epsilon)

		// 8. gate_up ← x1 · mlp_gate_up, split into gate, up.
		gateUp := tensor.New(tensor.F32, nt, 2*di)
		kernel.MatMul(gateUp, 0, x1, layer.GateUp, 1)
		gate := gateUp.Slice(1, 0, di, 1)
		up := gateUp.Slice(1, di, 2*di, 1)

		// 9. swiglu in place
		kernel.SwiGLU(gate, up)

		// 10. residual: x ← x + gate·mlp_down
		kernel.MatMul(x, 1, gate, layer.MLPDown, 1)
	}

	return decode(w, x, queries, offsets)
}

// decode compacts the rows each query flagged as needing logits into a
// contiguous prefix, then projects them through lm_norm and lm_head
// (spec §4.2 "Decoding head").
func decode(w *model.Weights, x *tensor.View, queries []Query, offsets []int) *tensor.View {
	cfg := w.Config
	m := 0
	for _, q := range queries {
		m += q.NumDecode
	}

	xDecode := tensor.New(tensor.F32, m, cfg.D)
	row := 0
	for qi, q := range queries {
		if q.NumDecode == 0 {
			continue
		}
		start := offsets[qi] + q.SeqLen - q.NumDecode
		for i := 0; i < q.NumDecode; i++ {
			x.Row(start + i).ReformTo(xDecode.Row(row))
			row++
		}
	}

	norm := tensor.New(tensor.F32, m, cfg.D)
	kernel.RMSNorm(norm, xDecode, w.LMNorm, cfg.Epsilon)

	logits := tensor.New(tensor.F32, m, cfg.VocabSize)
	kernel.MatMul(logits, 0, norm, w.LMHead, 1)
	return logits
}

func queryOffsets(queries []Query) []int {
	offsets := make([]int, len(queries))
	acc := 0
	for i, q := range queries {
		offsets[i] = acc
		acc += q.SeqLen
	}
	return offsets
}

// positions fills pos[i] with q_j.Pos + (i - offset_j) for the token at
// absolute row i belonging to query j (spec §4.2 step 3).
func positions(queries []Query, offsets []int, nt int) []int32 {
	pos := make([]int32, nt)
	for qi, q := range queries {
		for j := 0; j < q.SeqLen; j++ {
			pos[offsets[qi]+j] = int32(q.Pos + j)
		}
	}
	return pos
}
