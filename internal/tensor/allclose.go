package tensor

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// AllClose reports whether a and b have equal shapes and every pair of
// elements differs by at most atol.
func AllClose(a, b *RawTensor, atol float64) bool {
	if !a.Shape().Equal(b.Shape()) {
		return false
	}
	return floats.EqualApprox(a.Float64s(), b.Float64s(), atol)
}

// MaxAbsDiff returns the largest element-wise absolute difference between a
// and b, or +Inf when their shapes differ.
func MaxAbsDiff(a, b *RawTensor) float64 {
	if !a.Shape().Equal(b.Shape()) {
		return math.Inf(1)
	}
	if a.NumElements() == 0 {
		return 0
	}
	return floats.Distance(a.Float64s(), b.Float64s(), math.Inf(1))
}
