// Package kernel implements the numeric primitives of spec §4.1: gather,
// rms_norm, mat_mul, rotary_embedding, softmax, swiglu. Every kernel reads
// and writes through tensor.View's half-precision-aware accessors, so
// storage stays half precision while every internal accumulation is
// float32 — matching the teacher's kernel split (ollama's
// ml/backend/ggml/tensor_nn.go has the same operation set, but cgo-bound;
// original_source/transformer-cpu/src/kernel/* is the plain per-op split
// this package mirrors one-to-one).
package kernel

import (
	"fmt"

	"github.com/larchlabs/forge/tensor"
)

// Gather sets out[i,:] = table[ids[i],:] for each row i. Fails (panics,
// a programmer error per spec §7) if any id is out of range.
func Gather(out, table *tensor.View, ids []int32) {
	v := table.Dim(0)
	d := table.Dim(1)
	if out.Dim(0) != len(ids) || out.Dim(1) != d {
		panic(fmt.Sprintf("kernel: gather shape mismatch out=%v table=%v ids=%d", out.Shape(), table.Shape(), len(ids)))
	}

	for i, id := range ids {
		if id < 0 || int(id) >= v {
			panic(fmt.Sprintf("kernel: gather id %d out of range [0,%d)", id, v))
		}
		for j := 0; j < d; j++ {
			out.Set(table.At(int(id), j), i, j)
		}
	}
}
