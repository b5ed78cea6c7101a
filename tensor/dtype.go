// Package tensor implements the logical tensor view used throughout the
// engine: shape, stride, data type and a shared float32 buffer, with
// slicing, reshape, transpose and physical copy ("reform") over it.
//
// Grounded on the shape of ml.Context/ml.Tensor in the teacher
// (ollama/ollama), adapted from a cgo-backed lazy compute graph into a
// concrete, eager, pure-Go struct — the numeric kernels in package kernel
// operate on it directly rather than through a graph. Every view's buffer
// is float32 regardless of DType; F16 views round-trip through
// github.com/x448/float16 on every At/Set instead of storing a packed
// 16-bit representation, so DType only ever governs precision, never
// physical layout or element size.
package tensor

// DType is the element type observed through a view's At/Set, independent
// of how the view's buffer is physically stored (see package doc).
type DType int

const (
	F32 DType = iota
	F16
	I32
)

func (d DType) String() string {
	switch d {
	case F32:
		return "f32"
	case F16:
		return "f16"
	case I32:
		return "i32"
	default:
		return "unknown"
	}
}
