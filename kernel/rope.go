package kernel

import (
	"math"

	"github.com/larchlabs/forge/tensor"
)

// RotaryEmbedding rotates each pair (x[2k], x[2k+1]) within every head by
// angle pos[i]·θ^(−2k/dh), in place, for a tensor shaped [N, h, dh]
// (spec §4.1).
func RotaryEmbedding(x *tensor.View, pos []int32, theta float32) {
	n, h, dh := x.Dim(0), x.Dim(1), x.Dim(2)
	if len(pos) != n {
		panic("kernel: rotary_embedding position count mismatch")
	}
	if dh%2 != 0 {
		panic("kernel: rotary_embedding requires an even head dimension")
	}

	for i := 0; i < n; i++ {
		p := float64(pos[i])
		for hd := 0; hd < h; hd++ {
			for k := 0; k < dh/2; k++ {
				freq := math.Pow(float64(theta), -2*float64(k)/float64(dh))
				angle := p * freq
				sin, cos := math.Sincos(angle)

				a := x.At(i, hd, 2*k)
				b := x.At(i, hd, 2*k+1)
				x.Set(a*float32(cos)-b*float32(sin), i, hd, 2*k)
				x.Set(a*float32(sin)+b*float32(cos), i, hd, 2*k+1)
			}
		}
	}
}
