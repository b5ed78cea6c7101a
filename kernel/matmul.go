package kernel

import (
	"fmt"

	"gonum.org/v1/gonum/blas/blas32"

	"github.com/larchlabs/forge/tensor"
)

// MatMul computes c ← α·c + β·(a·b), batched over any leading dimensions
// shared by a, b and c (spec §4.1 mat_mul; the α scales the existing c,
// β scales the product — spec §9's "reference design" convention).
//
// gonum's blas32.Gemm computes C = alpha·(A·B) + beta·C, the mirror of
// our naming (its alpha scales the product, its beta scales existing C).
// This function swaps the arguments once, here, so every caller can use
// the spec's own α/β convention without having to remember the mirror.
func MatMul(c *tensor.View, alpha float32, a, b *tensor.View, beta float32) {
	rank := len(c.Shape())
	if rank < 2 {
		panic("kernel: mat_mul requires rank >= 2")
	}

	m, k := a.Dim(rank-2), a.Dim(rank-1)
	k2, n := b.Dim(rank-2), b.Dim(rank-1)
	if k != k2 {
		panic(fmt.Sprintf("kernel: mat_mul inner dimension mismatch a=%v b=%v", a.Shape(), b.Shape()))
	}
	if c.Dim(rank-2) != m || c.Dim(rank-1) != n {
		panic(fmt.Sprintf("kernel: mat_mul output shape mismatch c=%v want [..,%d,%d]", c.Shape(), m, n))
	}

	batchShape := c.Shape()[:rank-2]
	forEachBatch(batchShape, func(idx []int) {
		aSub := reduceLeading(a, idx)
		bSub := reduceLeading(b, idx)
		cSub := reduceLeading(c, idx)
		gemm2D(cSub, alpha, aSub, bSub, beta)
	})
}

// reduceLeading drops len(idx) leading dimensions, fixing each to the
// given index, leaving the trailing 2D matrix view.
func reduceLeading(v *tensor.View, idx []int) *tensor.View {
	for _, i := range idx {
		v = v.Row(i)
	}
	return v
}

func forEachBatch(shape []int, fn func(idx []int)) {
	if len(shape) == 0 {
		fn(nil)
		return
	}
	idx := make([]int, len(shape))
	var rec func(d int)
	rec = func(d int) {
		if d == len(shape) {
			fn(append([]int(nil), idx...))
			return
		}
		for i := 0; i < shape[d]; i++ {
			idx[d] = i
			rec(d + 1)
		}
	}
	rec(0)
}

func gemm2D(c *tensor.View, alpha float32, a, b *tensor.View, beta float32) {
	m, k := a.Dim(0), a.Dim(1)
	n := b.Dim(1)

	aGen := blas32.General{Rows: m, Cols: k, Stride: k, Data: materialize(a)}
	bGen := blas32.General{Rows: k, Cols: n, Stride: n, Data: materialize(b)}
	cData := materialize(c)
	cGen := blas32.General{Rows: m, Cols: n, Stride: n, Data: cData}

	// our α scales existing c (gonum's beta); our β scales the product
	// (gonum's alpha).
	blas32.Gemm(blas32.NoTrans, blas32.NoTrans, beta, aGen, bGen, alpha, cGen)

	writeBack(c, cGen.Data)
}

// materialize copies a 2D view into a dense row-major []float32, since
// blas32.General requires a single contiguous stride per row.
func materialize(v *tensor.View) []float32 {
	rows, cols := v.Dim(0), v.Dim(1)
	out := make([]float32, rows*cols)
	for r := 0; r < rows; r++ {
		for cIdx := 0; cIdx < cols; cIdx++ {
			out[r*cols+cIdx] = v.At(r, cIdx)
		}
	}
	return out
}

func writeBack(v *tensor.View, data []float32) {
	rows, cols := v.Dim(0), v.Dim(1)
	for r := 0; r < rows; r++ {
		for cIdx := 0; cIdx < cols; cIdx++ {
			v.Set(data[r*cols+cIdx], r, cIdx)
		}
	}
}
