package ops

import (
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// ConvolutionOp records an N-dimensional convolution for autodiff.
//
// Forward: output = Convolution(input, kernel, geometry)
//
// Backward (gradients):
//   - d_input:  gather of d_output through the inverse index map, i.e. the
//     transposed convolution of d_output with kernel
//   - d_kernel: correlation of input with d_output
//
// References:
//   - "A guide to convolution arithmetic for deep learning" (Dumoulin & Visin, 2016)
type ConvolutionOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	geom   *window.Geometry
}

// NewConvolutionOp creates a new ConvolutionOp.
func NewConvolutionOp(input, kernel, output *tensor.RawTensor, g *window.Geometry) *ConvolutionOp {
	return &ConvolutionOp{input: input, kernel: kernel, output: output, geom: g}
}

// Inputs returns the input tensors [input, kernel].
func (op *ConvolutionOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *ConvolutionOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the input [N, C_in, I...] and the kernel
// [C_out, C_in, K...].
func (op *ConvolutionOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.ConvolutionInputBackward(op.kernel, outputGrad, op.geom)
	kernelGrad := backend.ConvolutionKernelBackward(op.input, outputGrad, op.geom)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}

// ConvolutionTransposeOp records a transposed convolution for autodiff.
//
// Forward: output = ConvolutionTranspose(input, kernel, geometry), where the
// geometry maps output back onto input.
//
// Backward:
//   - d_input:  the forward convolution of d_output with kernel
//   - d_kernel: the convolution kernel gradient with operands swapped
type ConvolutionTransposeOp struct {
	input  *tensor.RawTensor
	kernel *tensor.RawTensor
	output *tensor.RawTensor
	geom   *window.Geometry
}

// NewConvolutionTransposeOp creates a new ConvolutionTransposeOp.
func NewConvolutionTransposeOp(input, kernel, output *tensor.RawTensor, g *window.Geometry) *ConvolutionTransposeOp {
	return &ConvolutionTransposeOp{input: input, kernel: kernel, output: output, geom: g}
}

// Inputs returns the input tensors [input, kernel].
func (op *ConvolutionTransposeOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input, op.kernel}
}

// Output returns the output tensor.
func (op *ConvolutionTransposeOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for the input [N, C_in, O...] and the kernel
// [C_in, C_out, K...].
func (op *ConvolutionTransposeOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	inputGrad := backend.Convolution(outputGrad, op.kernel, op.geom)
	kernelGrad := backend.ConvolutionKernelBackward(outputGrad, op.input, op.geom)
	return []*tensor.RawTensor{inputGrad, kernelGrad}
}
