package kernel

import (
	"math"

	"github.com/larchlabs/forge/tensor"
)

// SwiGLU computes, in place, gate ← silu(gate) · up, with
// silu(z) = z·σ(z) (spec §4.1).
func SwiGLU(gate, up *tensor.View) {
	rows := gate.Dim(0)
	d := gate.Dim(1)
	for r := 0; r < rows; r++ {
		for j := 0; j < d; j++ {
			z := float64(gate.At(r, j))
			silu := z / (1 + math.Exp(-z))
			gate.Set(float32(silu)*up.At(r, j), r, j)
		}
	}
}
