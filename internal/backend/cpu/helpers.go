package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

type float interface {
	float32 | float64
}

// slice returns the typed backing slice of r. T must match r's dtype.
func slice[T float](r *tensor.RawTensor) []T {
	var zero T
	switch any(zero).(type) {
	case float32:
		return any(r.AsFloat32()).([]T)
	default:
		return any(r.AsFloat64()).([]T)
	}
}

func dot[T float](a, b []T) T {
	if a64, ok := any(a).([]float64); ok {
		return T(floats.Dot(a64, any(b).([]float64)))
	}
	var s T
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

// planes checks that t is [N, C, spatial...] with spatial equal to want and
// returns N and C.
func planes(op, name string, t *tensor.RawTensor, want []int) (n, c int) {
	shape := t.Shape()
	if len(shape) != len(want)+2 {
		panic(fmt.Sprintf("%s: %s must be %dD [N,C,...], got %dD %v", op, name, len(want)+2, len(shape), shape))
	}
	for d, size := range want {
		if shape[d+2] != size {
			panic(fmt.Sprintf("%s: %s spatial shape %v does not match geometry %v", op, name, shape[2:], want))
		}
	}
	return shape[0], shape[1]
}

func sameDType(op string, ts ...*tensor.RawTensor) tensor.DataType {
	dt := ts[0].DType()
	for _, t := range ts[1:] {
		if t.DType() != dt {
			panic(fmt.Sprintf("%s: dtype mismatch %s vs %s", op, dt, t.DType()))
		}
	}
	if dt != tensor.Float32 && dt != tensor.Float64 {
		panic(fmt.Sprintf("%s: unsupported dtype %s", op, dt))
	}
	return dt
}

func batchShape(n, c int, spatial []int) tensor.Shape {
	return append(tensor.Shape{n, c}, spatial...)
}

// maxOf returns the largest tapped value, or false for an empty window.
func maxOf[T float](in []T, taps []window.Tap) (T, bool) {
	if len(taps) == 0 {
		return 0, false
	}
	m := in[taps[0].Input]
	for _, t := range taps[1:] {
		if v := in[t.Input]; v > m {
			m = v
		}
	}
	return m, true
}
