package kernel

import (
	"math"

	"github.com/larchlabs/forge/tensor"
)

// RMSNorm computes, for each row r of x: s = mean(r²),
// y[r,j] = x[r,j] * w[j] / sqrt(s + eps). y and x may be the same view
// (spec §4.1 requires in-place aliasing to be permitted); each row is
// fully read before any element of it is written, so aliasing is safe.
func RMSNorm(y, x, w *tensor.View, eps float32) {
	rows := x.Dim(0)
	d := x.Dim(1)

	row := make([]float32, d)
	for r := 0; r < rows; r++ {
		var ss float64
		for j := 0; j < d; j++ {
			v := x.At(r, j)
			row[j] = v
			ss += float64(v) * float64(v)
		}
		scale := float32(1.0 / math.Sqrt(ss/float64(d)+float64(eps)))
		for j := 0; j < d; j++ {
			y.Set(row[j]*scale*w.At(j), r, j)
		}
	}
}
