package tensor

import "github.com/born-ml/kernels/internal/window"

// Backend defines the sliding-window operators a compute backend implements.
//
// Tensors use the layout [N, C, D1..Dr]. The geometry g describes the r spatial
// axes; the backend handles the batch and channel axes. Geometries are resolved
// and validated by the caller, so implementations panic on shape or dtype
// mismatches instead of returning errors.
//
// Implementations:
//   - CPU: pure Go, parallel over (batch, channel) planes
type Backend interface {
	Name() string
	Device() Device

	// Add returns a + b for equal shapes. Used to accumulate gradients.
	Add(a, b *RawTensor) *RawTensor

	// Convolution computes out[n,co,o] = sum_ci sum_k kernel[co,ci,k] * in[n,ci,o*S+k-P_lo].
	// Input [N, Cin, I...], kernel [Cout, Cin, K...], output [N, Cout, O...].
	Convolution(input, kernel *RawTensor, g *window.Geometry) *RawTensor
	// ConvolutionInputBackward maps an output gradient [N, Cout, O...] back
	// onto the input [N, Cin, I...].
	ConvolutionInputBackward(kernel, grad *RawTensor, g *window.Geometry) *RawTensor
	// ConvolutionKernelBackward returns the kernel gradient [Cout, Cin, K...].
	ConvolutionKernelBackward(input, grad *RawTensor, g *window.Geometry) *RawTensor
	// ConvolutionTranspose takes input [N, Cin, O...] and kernel [Cin, Cout, K...]
	// to output [N, Cout, I...], where g is the forward geometry I -> O.
	ConvolutionTranspose(input, kernel *RawTensor, g *window.Geometry) *RawTensor

	// Pooling operators run per (n, c) plane over [N, C, ...].
	AvgPool(input *RawTensor, g *window.Geometry) *RawTensor
	AvgPoolBackward(grad *RawTensor, g *window.Geometry) *RawTensor
	MaxPool(input *RawTensor, g *window.Geometry) *RawTensor
	MaxPoolBackward(input, grad *RawTensor, g *window.Geometry) *RawTensor
	// MaxUnpool scatters pooled [N, C, O...] onto every maximiser of the
	// reference [N, C, I...], summing overlapping claims.
	MaxUnpool(pooled, reference *RawTensor, g *window.Geometry) *RawTensor
	// MaxUnpoolBackward gathers grad [N, C, I...] back onto the pooled shape.
	MaxUnpoolBackward(reference, grad *RawTensor, g *window.Geometry) *RawTensor

	// ROIPool pools features [N, C, H, W] inside rois [N, R, 4] to
	// [N, R, C, outH, outW].
	ROIPool(features, rois *RawTensor, spec window.ROISpec) *RawTensor
	ROIPoolBackward(features, rois, grad *RawTensor, spec window.ROISpec) *RawTensor
}
