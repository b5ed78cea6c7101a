// Package kvcache implements the per-session key/value attention cache of
// spec §3/§9: a single owned tensor slab per session, shaped
// [L, 2, nkvh, max_seq_len, dh], with Put/Get per layer, Fork (deep-copy
// the valid prefix only) and Revert (truncate the valid prefix).
//
// Generalized down from the teacher's kvcache package, which maintains a
// single *shared* cache across many concurrently-interleaved sequences
// (kvcache/constructors.go's cell-table design, findLocs/shift in
// kvcache/forward.go) — this spec's session model (§4.3) instead gives
// every session its own exclusively-held slab, so the shared-cell
// bookkeeping collapses to a single "valid length" counter per session.
// Fork/Revert are grounded directly on the teacher's CopyPrefix/Remove
// (kvcache/sequence_ops.go) and confirmed against
// original_source/transformer-cpu/src/lib.rs's duplicate_cache, which
// performs exactly this strided rectangular copy of the valid prefix.
package kvcache

import (
	"fmt"

	"github.com/larchlabs/forge/model"
	"github.com/larchlabs/forge/tensor"
)

// Cache is one session's owned KV cache slab.
type Cache struct {
	cfg    model.Config
	data   *tensor.View // [L, 2, nkvh, max_seq_len, dh]
	length int          // valid prefix along max_seq_len, i.e. cached token count
}

const (
	kDim = 0
	vDim = 1
)

// New allocates an empty cache slab for the given model config.
func New(cfg model.Config) *Cache {
	return &Cache{
		cfg:  cfg,
		data: tensor.New(tensor.F16, cfg.NLayers, 2, cfg.NKVHeads, cfg.MaxSeqLen, cfg.HeadDim()),
	}
}

// Len returns the cache's current valid prefix length (number of
// previously-cached tokens).
func (c *Cache) Len() int { return c.length }

// Put writes k, v (each shaped [nkvh, seqLen, dh]) into rows
// [pos, pos+seqLen) of layer's cache, and advances the valid length to
// pos+seqLen. Spec §4.2 step 5: "Write k_i, v_i into rows [pos, pos+seq_len)
// of the session's cache[layer]".
func (c *Cache) Put(layer, pos, seqLen int, k, v *tensor.View) {
	if pos+seqLen > c.cfg.MaxSeqLen {
		panic(fmt.Sprintf("kvcache: put would exceed max_seq_len (%d+%d > %d)", pos, seqLen, c.cfg.MaxSeqLen))
	}

	kDst := c.data.Row(layer).Row(kDim).Slice(1, pos, pos+seqLen, 1)
	vDst := c.data.Row(layer).Row(vDim).Slice(1, pos, pos+seqLen, 1)
	k.ReformTo(kDst)
	v.ReformTo(vDst)

	if end := pos + seqLen; end > c.length {
		c.length = end
	}
}

// Get returns read-only views over rows [0, attLen) of layer's K and V,
// each shaped [nkvh, attLen, dh]. Spec §4.2 step 5: "Read k_cache, v_cache
// over rows [0, att_len)".
func (c *Cache) Get(layer, attLen int) (k, v *tensor.View) {
	if attLen > c.cfg.MaxSeqLen {
		panic(fmt.Sprintf("kvcache: get attLen %d exceeds max_seq_len %d", attLen, c.cfg.MaxSeqLen))
	}
	k = c.data.Row(layer).Row(kDim).Slice(1, 0, attLen, 1)
	v = c.data.Row(layer).Row(vDim).Slice(1, 0, attLen, 1)
	return k, v
}

// Revert truncates the cache's valid prefix to length n. A request to
// revert to n >= the current valid length is a no-op rather than an
// error: the cache legitimately trails len(tokens) by the one terminal
// token a completed generation loop samples but never re-feeds through
// Forward (runLoop breaks on eos/cancellation/max_seq_len before the next
// iteration would write it), so Session.Revert(dialogPos) routinely asks
// to "revert" to a length the cache hasn't quite reached yet. It is still
// an error to revert to a negative length.
func (c *Cache) Revert(n int) error {
	if n < 0 {
		return fmt.Errorf("kvcache: cannot revert to negative length %d", n)
	}
	if n < c.length {
		c.length = n
	}
	return nil
}

// Fork deep-copies only the valid prefix [0, length) of every layer into
// a fresh, independent cache of the same capacity; the unused tail is
// left zeroed and invisible (spec §3, §9).
func (c *Cache) Fork() *Cache {
	out := New(c.cfg)
	out.length = c.length
	if c.length == 0 {
		return out
	}

	for layer := 0; layer < c.cfg.NLayers; layer++ {
		for _, d := range []int{kDim, vDim} {
			src := c.data.Row(layer).Row(d).Slice(1, 0, c.length, 1)
			dst := out.data.Row(layer).Row(d).Slice(1, 0, c.length, 1)
			src.ReformTo(dst)
		}
	}
	return out
}
