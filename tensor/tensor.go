package tensor

import (
	"fmt"

	"github.com/x448/float16"
)

// View is a logical tensor: a dtype, a shape, an element stride per
// dimension, an element offset into a shared buffer, and the buffer
// itself. Strides are counted in elements, not bytes, for readability;
// Slice/Reshape/Transpose only ever touch shape/stride/offset and never
// copy the underlying buffer. ReformTo is the one operation that performs
// a physical copy, laying out an arbitrary source stride pattern into a
// destination view's own stride pattern (typically contiguous).
type View struct {
	dtype  DType
	shape  []int
	stride []int
	offset int
	buf    []float32
}

// New allocates a zeroed, contiguous (row-major) view of the given shape.
// Internally every view is backed by a float32 slice regardless of dtype;
// dtype only controls the precision observed through At/Set and ReformTo,
// matching spec §4.1's "accumulate in single precision internally" even
// when the logical dtype is half precision.
func New(dtype DType, shape ...int) *View {
	n := numel(shape)
	return &View{
		dtype:  dtype,
		shape:  append([]int(nil), shape...),
		stride: rowMajorStrides(shape),
		buf:    make([]float32, n),
	}
}

func rowMajorStrides(shape []int) []int {
	s := make([]int, len(shape))
	acc := 1
	for i := len(shape) - 1; i >= 0; i-- {
		s[i] = acc
		acc *= shape[i]
	}
	return s
}

func numel(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// FromFloat32 wraps s as a contiguous F32 view of the given shape. s is
// used directly, not copied.
func FromFloat32(s []float32, shape ...int) *View {
	if numel(shape) != len(s) {
		panic(fmt.Sprintf("tensor: shape %v does not match %d elements", shape, len(s)))
	}
	return &View{dtype: F32, shape: append([]int(nil), shape...), stride: rowMajorStrides(shape), buf: s}
}

// FromInt32 wraps integer ids (e.g. token ids) as an I32 view, storing
// them in the same float32-backed buffer (exact for any value used as a
// vocabulary index or position).
func FromInt32(s []int32, shape ...int) *View {
	if numel(shape) != len(s) {
		panic(fmt.Sprintf("tensor: shape %v does not match %d elements", shape, len(s)))
	}
	f := make([]float32, len(s))
	for i, v := range s {
		f[i] = float32(v)
	}
	return &View{dtype: I32, shape: append([]int(nil), shape...), stride: rowMajorStrides(shape), buf: f}
}

func (v *View) DType() DType   { return v.dtype }
func (v *View) NDim() int      { return len(v.shape) }
func (v *View) Shape() []int   { return append([]int(nil), v.shape...) }
func (v *View) Dim(n int) int  { return v.shape[n] }
func (v *View) Stride(n int) int { return v.stride[n] }
func (v *View) Numel() int     { return numel(v.shape) }

func (v *View) elemOffset(idx []int) int {
	off := v.offset
	for i, x := range idx {
		off += x * v.stride[i]
	}
	return off
}

// At returns the value at idx as float32, decoding through the dtype's
// half-precision representation when the view is logically F16 — this is
// the single choke point every kernel reads through, so storage precision
// stays consistent regardless of which kernel touches it.
func (v *View) At(idx ...int) float32 {
	x := v.buf[v.elemOffset(idx)]
	if v.dtype == F16 {
		return float16.Fromfloat32(x).Float32()
	}
	return x
}

// Set writes val at idx, rounding to half precision first when the view
// is logically F16, so repeated reads observe the same value a real
// half-precision buffer would produce.
func (v *View) Set(val float32, idx ...int) {
	if v.dtype == F16 {
		val = float16.Fromfloat32(val).Float32()
	}
	v.buf[v.elemOffset(idx)] = val
}

// Contiguous reports whether the view's strides match a row-major layout
// of its shape, i.e. reshape would be a free reinterpretation.
func (v *View) Contiguous() bool {
	want := rowMajorStrides(v.shape)
	for i := range want {
		if v.shape[i] != 1 && v.stride[i] != want[i] {
			return false
		}
	}
	return true
}

// Reshape reinterprets the view under a new shape. Only valid when the
// view is contiguous, matching spec §3's "reshape (only when strides
// allow a contiguous reinterpretation)".
func (v *View) Reshape(shape ...int) *View {
	if !v.Contiguous() {
		panic("tensor: reshape requires a contiguous view")
	}
	if numel(shape) != v.Numel() {
		panic(fmt.Sprintf("tensor: cannot reshape %v into %v", v.shape, shape))
	}
	return &View{dtype: v.dtype, shape: append([]int(nil), shape...), stride: rowMajorStrides(shape), offset: v.offset, buf: v.buf}
}

// Transpose returns a view over the same buffer with dimensions permuted
// according to perm (perm[i] names which source dimension becomes the new
// dimension i).
func (v *View) Transpose(perm ...int) *View {
	if len(perm) != len(v.shape) {
		panic("tensor: transpose permutation length mismatch")
	}
	shape := make([]int, len(perm))
	stride := make([]int, len(perm))
	for i, p := range perm {
		shape[i] = v.shape[p]
		stride[i] = v.stride[p]
	}
	return &View{dtype: v.dtype, shape: shape, stride: stride, offset: v.offset, buf: v.buf}
}

// Slice takes the rectangular sub-range [low, high) with the given step
// (may be negative, i.e. ±1 per spec §3) along dim.
func (v *View) Slice(dim, low, high, step int) *View {
	if step == 0 {
		panic("tensor: slice step must be non-zero")
	}
	n := (high - low + step - 1) / step
	if step < 0 {
		n = (low - high - step - 1) / (-step)
	}
	shape := append([]int(nil), v.shape...)
	stride := append([]int(nil), v.stride...)
	shape[dim] = n
	stride[dim] = v.stride[dim] * step
	return &View{dtype: v.dtype, shape: shape, stride: stride, offset: v.offset + low*v.stride[dim], buf: v.buf}
}

// Row returns the sub-view fixing the leading dimension to index i,
// dropping that dimension — a common convenience on top of Slice used by
// the kernels to walk a [N, d] tensor row by row.
func (v *View) Row(i int) *View {
	shape := append([]int(nil), v.shape[1:]...)
	stride := append([]int(nil), v.stride[1:]...)
	return &View{dtype: v.dtype, shape: shape, stride: stride, offset: v.offset + i*v.stride[0], buf: v.buf}
}

// ReformTo physically copies v into dst, which must have the same shape
// (dtype may differ, e.g. F16 -> F32). This is the one tensor operation
// that performs an actual data copy rather than a logical reinterpretation,
// used to splice a query's new K/V rows into a session's cache slab and to
// materialize a strided view into a dense scratch buffer before a matmul.
func (v *View) ReformTo(dst *View) {
	if len(v.shape) != len(dst.shape) {
		panic("tensor: reform shape rank mismatch")
	}
	for i := range v.shape {
		if v.shape[i] != dst.shape[i] {
			panic(fmt.Sprintf("tensor: reform shape mismatch %v vs %v", v.shape, dst.shape))
		}
	}
	reformRec(v, dst, nil)
}

func reformRec(src, dst *View, idx []int) {
	if len(idx) == len(src.shape) {
		dst.Set(src.At(idx...), idx...)
		return
	}
	d := len(idx)
	for i := 0; i < src.shape[d]; i++ {
		reformRec(src, dst, append(idx, i))
	}
}

// Floats materializes the view as a dense, row-major []float32 (a copy),
// decoding through the dtype as At does.
func (v *View) Floats() []float32 {
	out := make([]float32, v.Numel())
	i := 0
	var walk func(idx []int)
	walk = func(idx []int) {
		if len(idx) == len(v.shape) {
			out[i] = v.At(idx...)
			i++
			return
		}
		d := len(idx)
		for x := 0; x < v.shape[d]; x++ {
			walk(append(idx, x))
		}
	}
	walk(nil)
	return out
}

// Ints materializes an I32 view as []int32.
func (v *View) Ints() []int32 {
	f := v.Floats()
	out := make([]int32, len(f))
	for i, x := range f {
		out[i] = int32(x)
	}
	return out
}
