// Package autodiff implements gradient tracking for the sliding-window
// operators using the decorator pattern.
//
// AutodiffBackend wraps any Backend implementation and records every forward
// operator in a GradientTape. Backward kernels are delegated to the wrapped
// backend and are never recorded.
//
// Usage:
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.Convolution(x, k, g)
//	grads := autodiff.Backward(y, backend)
//	dx, dk := grads[x], grads[k]
package autodiff

import (
	"github.com/born-ml/kernels/internal/autodiff/ops"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// AutodiffBackend wraps a Backend and adds automatic differentiation.
// It implements the tensor.Backend interface and records operations in a GradientTape.
//
// Type parameter B must satisfy the tensor.Backend interface.
type AutodiffBackend[B tensor.Backend] struct {
	inner B             // Wrapped backend
	tape  *GradientTape // Records operations for backpropagation
}

// New creates a new AutodiffBackend wrapping the given backend.
func New[B tensor.Backend](backend B) *AutodiffBackend[B] {
	return &AutodiffBackend[B]{
		inner: backend,
		tape:  NewGradientTape(),
	}
}

// Tape returns the gradient tape for manual control.
func (b *AutodiffBackend[B]) Tape() *GradientTape {
	return b.tape
}

// Inner returns the wrapped backend for direct access.
func (b *AutodiffBackend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *AutodiffBackend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *AutodiffBackend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
func (b *AutodiffBackend[B]) Add(a, c *tensor.RawTensor) *tensor.RawTensor {
	result := b.inner.Add(a, c)
	b.tape.Record(ops.NewAddOp(a, c, result))
	return result
}

// Convolution performs the convolution and records the operation.
func (b *AutodiffBackend[B]) Convolution(input, kernel *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	result := b.inner.Convolution(input, kernel, g)
	b.tape.Record(ops.NewConvolutionOp(input, kernel, result, g))
	return result
}

// ConvolutionInputBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) ConvolutionInputBackward(kernel, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return b.inner.ConvolutionInputBackward(kernel, grad, g)
}

// ConvolutionKernelBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) ConvolutionKernelBackward(input, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return b.inner.ConvolutionKernelBackward(input, grad, g)
}

// ConvolutionTranspose performs the transposed convolution and records the operation.
func (b *AutodiffBackend[B]) ConvolutionTranspose(input, kernel *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	result := b.inner.ConvolutionTranspose(input, kernel, g)
	b.tape.Record(ops.NewConvolutionTransposeOp(input, kernel, result, g))
	return result
}

// AvgPool performs average pooling and records the operation.
func (b *AutodiffBackend[B]) AvgPool(input *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	result := b.inner.AvgPool(input, g)
	b.tape.Record(ops.NewAvgPoolOp(input, result, g))
	return result
}

// AvgPoolBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) AvgPoolBackward(grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return b.inner.AvgPoolBackward(grad, g)
}

// MaxPool performs max pooling and records the operation.
func (b *AutodiffBackend[B]) MaxPool(input *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	result := b.inner.MaxPool(input, g)
	b.tape.Record(ops.NewMaxPoolOp(input, result, g))
	return result
}

// MaxPoolBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MaxPoolBackward(input, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return b.inner.MaxPoolBackward(input, grad, g)
}

// MaxUnpool performs max unpooling and records the operation.
func (b *AutodiffBackend[B]) MaxUnpool(pooled, reference *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	result := b.inner.MaxUnpool(pooled, reference, g)
	b.tape.Record(ops.NewMaxUnpoolOp(pooled, reference, result, g))
	return result
}

// MaxUnpoolBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) MaxUnpoolBackward(reference, grad *tensor.RawTensor, g *window.Geometry) *tensor.RawTensor {
	return b.inner.MaxUnpoolBackward(reference, grad, g)
}

// ROIPool performs ROI max pooling and records the operation.
func (b *AutodiffBackend[B]) ROIPool(features, rois *tensor.RawTensor, spec window.ROISpec) *tensor.RawTensor {
	result := b.inner.ROIPool(features, rois, spec)
	b.tape.Record(ops.NewROIPoolOp(features, rois, result, spec))
	return result
}

// ROIPoolBackward delegates to the wrapped backend without recording.
func (b *AutodiffBackend[B]) ROIPoolBackward(features, rois, grad *tensor.RawTensor, spec window.ROISpec) *tensor.RawTensor {
	return b.inner.ROIPoolBackward(features, rois, grad, spec)
}
