package ops

import (
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// AvgPoolOp records an average pooling operation for autodiff.
//
// Backward: every output gradient is spread over its window with the same
// weights the forward pass used.
type AvgPoolOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	geom   *window.Geometry
}

// NewAvgPoolOp creates a new AvgPoolOp.
func NewAvgPoolOp(input, output *tensor.RawTensor, g *window.Geometry) *AvgPoolOp {
	return &AvgPoolOp{input: input, output: output, geom: g}
}

// Inputs returns the input tensors.
func (op *AvgPoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *AvgPoolOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the input gradient.
func (op *AvgPoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.AvgPoolBackward(outputGrad, op.geom)}
}

// MaxPoolOp records a max pooling operation for autodiff.
//
// Backward: gradients flow to every position holding its window's maximum.
// The maxima are found again from the saved input, so ties are routed to
// all of them.
//
// Example (2x2 pool, stride=2):
//
//	Input:  [[1, 4],  Output: [4]  Input Grad: [[0, grad],
//	         [3, 4]]                             [0, grad]]
type MaxPoolOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
	geom   *window.Geometry
}

// NewMaxPoolOp creates a new MaxPoolOp.
func NewMaxPoolOp(input, output *tensor.RawTensor, g *window.Geometry) *MaxPoolOp {
	return &MaxPoolOp{input: input, output: output, geom: g}
}

// Inputs returns the input tensors.
func (op *MaxPoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns the output tensor.
func (op *MaxPoolOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes the input gradient.
func (op *MaxPoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	return []*tensor.RawTensor{backend.MaxPoolBackward(op.input, outputGrad, op.geom)}
}

// MaxUnpoolOp records a max unpooling operation for autodiff.
//
// Forward: output = MaxUnpool(pooled, reference, geometry)
//
// Backward:
//   - d_pooled: sum of d_output over the maxima each pooled value was copied to
//   - d_reference: zeros; the reference only selects positions
type MaxUnpoolOp struct {
	pooled    *tensor.RawTensor
	reference *tensor.RawTensor
	output    *tensor.RawTensor
	geom      *window.Geometry
}

// NewMaxUnpoolOp creates a new MaxUnpoolOp.
func NewMaxUnpoolOp(pooled, reference, output *tensor.RawTensor, g *window.Geometry) *MaxUnpoolOp {
	return &MaxUnpoolOp{pooled: pooled, reference: reference, output: output, geom: g}
}

// Inputs returns the input tensors [pooled, reference].
func (op *MaxUnpoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.pooled, op.reference}
}

// Output returns the output tensor.
func (op *MaxUnpoolOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for [pooled, reference].
func (op *MaxUnpoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	pooledGrad := backend.MaxUnpoolBackward(op.reference, outputGrad, op.geom)
	return []*tensor.RawTensor{pooledGrad, tensor.ZerosLike(op.reference)}
}
