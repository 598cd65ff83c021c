package ops

import (
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// ROIPoolOp records an ROI max pooling operation for autodiff.
//
// Backward:
//   - d_features: each bin's gradient goes to every maximum of that bin
//   - d_rois: zeros; box coordinates are not differentiated
type ROIPoolOp struct {
	features *tensor.RawTensor
	rois     *tensor.RawTensor
	output   *tensor.RawTensor
	spec     window.ROISpec
}

// NewROIPoolOp creates a new ROIPoolOp.
func NewROIPoolOp(features, rois, output *tensor.RawTensor, spec window.ROISpec) *ROIPoolOp {
	return &ROIPoolOp{features: features, rois: rois, output: output, spec: spec}
}

// Inputs returns the input tensors [features, rois].
func (op *ROIPoolOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.features, op.rois}
}

// Output returns the output tensor.
func (op *ROIPoolOp) Output() *tensor.RawTensor {
	return op.output
}

// Backward computes gradients for [features, rois].
func (op *ROIPoolOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	featuresGrad := backend.ROIPoolBackward(op.features, op.rois, outputGrad, op.spec)
	return []*tensor.RawTensor{featuresGrad, tensor.ZerosLike(op.rois)}
}
