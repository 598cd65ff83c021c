// Package ops holds the tape entries of the sliding-window operators.
//
// An entry keeps the tensors and geometry of one forward call and turns an
// upstream gradient into one gradient per input:
//   - ConvolutionOp, ConvolutionTransposeOp: input and kernel
//   - AvgPoolOp, MaxPoolOp: the pooled input
//   - MaxUnpoolOp: the pooled values; the reference gets zeros
//   - ROIPoolOp: the feature map; the boxes get zeros
//   - AddOp: both operands
package ops

import "github.com/born-ml/kernels/internal/tensor"

// Operation is one recorded forward call.
type Operation interface {
	// Backward maps the gradient of Output to gradients of Inputs, in order.
	// A nil entry stops propagation into that input.
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	Inputs() []*tensor.RawTensor
	Output() *tensor.RawTensor
}
