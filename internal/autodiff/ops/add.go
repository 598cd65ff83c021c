package ops

import "github.com/born-ml/kernels/internal/tensor"

// AddOp records sum = a + b. Both operands receive the upstream gradient
// unchanged.
type AddOp struct {
	a, b, sum *tensor.RawTensor
}

// NewAddOp records a + b = sum.
func NewAddOp(a, b, sum *tensor.RawTensor) *AddOp {
	return &AddOp{a: a, b: b, sum: sum}
}

// Backward returns [grad, grad].
func (op *AddOp) Backward(grad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{grad, grad}
}

// Inputs returns [a, b].
func (op *AddOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.a, op.b}
}

// Output returns the sum.
func (op *AddOp) Output() *tensor.RawTensor {
	return op.sum
}
