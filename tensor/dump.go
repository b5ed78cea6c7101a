package tensor

import (
	"strconv"
	"strings"
)

// Dump renders v as a nested, human-readable string, e.g. for test
// failure output. Adapted from the teacher's ml.Dump, trimmed to the
// single float32-backed buffer this package uses.
func Dump(v *View, precision int) string {
	var sb strings.Builder
	data := v.Floats()
	shape := v.Shape()

	var rec func(dims []int, stride int)
	rec = func(dims []int, stride int) {
		sb.WriteString("[")
		if len(dims) == 1 {
			for i := 0; i < dims[0]; i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				sb.WriteString(strconv.FormatFloat(float64(data[stride+i]), 'f', precision, 32))
			}
		} else {
			inner := numel(dims[1:])
			for i := 0; i < dims[0]; i++ {
				if i > 0 {
					sb.WriteString(", ")
				}
				rec(dims[1:], stride+i*inner)
			}
		}
		sb.WriteString("]")
	}
	rec(shape, 0)
	return sb.String()
}
