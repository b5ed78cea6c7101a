package kernel

import (
	"math"

	"github.com/larchlabs/forge/tensor"
)

// Softmax computes a row-wise softmax over the last dimension of a tensor
// shaped [.., s_q, s_k], batched over any leading dimensions, with causal
// masking: for query row q, key range [attLen-seqLen+q+1, s_k) is masked
// to -inf before exponentiating (spec §4.1). Numerically stabilised by
// subtracting the row max over the unmasked range.
func Softmax(a *tensor.View, seqLen, attLen int) {
	rank := len(a.Shape())
	if rank < 2 {
		panic("kernel: softmax requires rank >= 2")
	}
	batchShape := a.Shape()[:rank-2]
	forEachBatch(batchShape, func(idx []int) {
		sub := reduceLeading(a, idx)
		softmax2D(sub, seqLen, attLen)
	})
}

func softmax2D(a *tensor.View, seqLen, attLen int) {
	sq, sk := a.Dim(0), a.Dim(1)
	row := make([]float32, sk)

	for q := 0; q < sq; q++ {
		// columns [0, validEnd) are visible; the rest is causally masked.
		validEnd := attLen - seqLen + q + 1
		if validEnd > sk {
			validEnd = sk
		}
		if validEnd < 0 {
			validEnd = 0
		}

		maxVal := float32(math.Inf(-1))
		for j := 0; j < validEnd; j++ {
			v := a.At(q, j)
			row[j] = v
			if v > maxVal {
				maxVal = v
			}
		}

		var sum float64
		for j := 0; j < validEnd; j++ {
			e := math.Exp(float64(row[j] - maxVal))
			row[j] = float32(e)
			sum += e
		}

		for j := 0; j < sk; j++ {
			switch {
			case j >= validEnd:
				a.Set(0, q, j)
			case sum == 0:
				a.Set(0, q, j)
			default:
				a.Set(row[j]/float32(sum), q, j)
			}
		}
	}
}
