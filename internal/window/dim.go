package window

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Dim is a declared axis size: either fixed ahead of time or free until an
// array is bound at evaluation time.
type Dim struct {
	size int
	free bool
}

// Free marks an axis whose size is taken from the bound array.
var Free = Dim{free: true}

// Fixed returns a Dim of the given size.
func Fixed(n int) Dim {
	return Dim{size: n}
}

// FixedDims converts concrete sizes into fixed Dims.
func FixedDims(sizes ...int) []Dim {
	dims := make([]Dim, len(sizes))
	for i, s := range sizes {
		dims[i] = Fixed(s)
	}
	return dims
}

// IsFree reports whether the axis is resolved lazily.
func (d Dim) IsFree() bool {
	return d.free
}

// Size returns the fixed size, or -1 for a free axis.
func (d Dim) Size() int {
	if d.free {
		return -1
	}
	return d.size
}

func (d Dim) String() string {
	if d.free {
		return "?"
	}
	return strconv.Itoa(d.size)
}

// FormatDims renders dims as "[3 ? ?]".
func FormatDims(dims []Dim) string {
	parts := make([]string, len(dims))
	for i, d := range dims {
		parts[i] = d.String()
	}
	return "[" + strings.Join(parts, " ") + "]"
}

// HasFree reports whether any of dims is free.
func HasFree(dims []Dim) bool {
	for _, d := range dims {
		if d.free {
			return true
		}
	}
	return false
}

// ResolveDims concretises declared against the actual shape of a bound array.
// Free axes take the actual size; fixed axes must match it exactly.
func ResolveDims(declared []Dim, actual []int) ([]int, error) {
	if len(declared) != len(actual) {
		return nil, mismatchf("rank %d does not match declared %s", len(actual), FormatDims(declared))
	}
	resolved := make([]int, len(actual))
	for i, d := range declared {
		if actual[i] <= 0 {
			return nil, mismatchf("axis %d has non-positive size %d", i, actual[i])
		}
		if !d.free && d.size != actual[i] {
			return nil, mismatchf("axis %d is %d, declared %s", i, actual[i], FormatDims(declared))
		}
		resolved[i] = actual[i]
	}
	return resolved, nil
}

// Infer returns the output dims of spec over the declared input dims. Fixed
// axes are resolved and validated immediately; free axes stay free until
// evaluation.
func Infer(input []Dim, spec Spec) ([]Dim, error) {
	return infer(input, spec, false)
}

// InferTranspose is Infer for a transposed operator. An explicit output shape
// fixes the output even when the input axis is free.
func InferTranspose(input []Dim, spec Spec) ([]Dim, error) {
	return infer(input, spec, true)
}

func infer(input []Dim, spec Spec, transpose bool) ([]Dim, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(input) != spec.Rank() {
		return nil, invalidf("input %s has %d spatial axes, window %v has %d",
			FormatDims(input), len(input), spec.Window, spec.Rank())
	}
	out := make([]Dim, len(input))
	for d, in := range input {
		axis := spec.Axis(d)
		if in.free {
			out[d] = Free
			if transpose && axis.OutputShape != nil {
				out[d] = Fixed(axis.OutputShape[0])
			}
			continue
		}

		var size int
		if transpose {
			g, err := ResolveTranspose([]int{in.size}, axis)
			if err != nil {
				return nil, errors.WithMessagef(err, "axis %d", d)
			}
			size = g.Axis(0).Input
		} else {
			axis.OutputShape = nil
			g, err := Resolve([]int{in.size}, axis)
			if err != nil {
				return nil, errors.WithMessagef(err, "axis %d", d)
			}
			size = g.Axis(0).Output
		}
		out[d] = Fixed(size)
	}
	return out, nil
}
