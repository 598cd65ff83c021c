// Package graph is the evaluation boundary of the sliding-window operators.
//
// A graph is built from Input and Constant leaves and operator nodes. Builders
// check every geometry that is known at construction time; axes declared Free
// are checked when the graph is evaluated against concrete bindings.
//
//	x := graph.Input("x", window.Fixed(1), window.Free, window.Free)
//	k := graph.Constant("k", kernel)
//	y, err := graph.Convolution(k, x, window.Spec{Mode: window.PadAuto})
//	out, err := graph.NewEvaluator().Evaluate(y, graph.Bindings{x: data})
package graph

import (
	"fmt"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// Error kinds returned by builders and evaluators; check with errors.Is.
var (
	ErrInvalidGeometry = window.ErrInvalidGeometry
	ErrShapeMismatch   = window.ErrShapeMismatch
)

// Kind identifies what a node computes.
type Kind int

// Node kinds.
const (
	KindInput Kind = iota
	KindConstant
	KindConvolution
	KindConvolutionTranspose
	KindPooling
	KindUnpooling
	KindROIPooling
)

func (k Kind) String() string {
	switch k {
	case KindInput:
		return "input"
	case KindConstant:
		return "constant"
	case KindConvolution:
		return "convolution"
	case KindConvolutionTranspose:
		return "convolution_transpose"
	case KindPooling:
		return "pooling"
	case KindUnpooling:
		return "unpooling"
	case KindROIPooling:
		return "roi_pooling"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// PoolingType selects the pooling reduction.
type PoolingType int

// Pooling reductions.
const (
	MaxPooling PoolingType = iota
	AvgPooling
)

func (p PoolingType) String() string {
	if p == AvgPooling {
		return "avg"
	}
	return "max"
}

var nextID atomic.Int64

// Node is an immutable vertex of an operator graph.
//
// Dims is the per-sample shape: batched nodes are bound or evaluated as
// [N, Dims...]. Constants are not batched and Dims is their full shape.
type Node struct {
	id      int64
	name    string
	kind    Kind
	inputs  []*Node
	dims    []window.Dim
	batched bool

	value   *tensor.RawTensor
	spec    window.Spec
	pooling PoolingType
	roi     window.ROISpec
}

// Name returns the node name.
func (n *Node) Name() string {
	return n.name
}

// Kind returns what the node computes.
func (n *Node) Kind() Kind {
	return n.kind
}

// Dims returns the declared or inferred per-sample shape.
func (n *Node) Dims() []window.Dim {
	return append([]window.Dim(nil), n.dims...)
}

// Inputs returns the operand nodes.
func (n *Node) Inputs() []*Node {
	return append([]*Node(nil), n.inputs...)
}

func (n *Node) String() string {
	return fmt.Sprintf("%s %q %s", n.kind, n.name, window.FormatDims(n.dims))
}

func newNode(kind Kind, name string, inputs ...*Node) *Node {
	id := nextID.Add(1)
	if name == "" {
		name = fmt.Sprintf("%s%d", kind, id)
	}
	return &Node{id: id, name: name, kind: kind, inputs: inputs, batched: true}
}

// Input declares a batched graph input with per-sample shape dims, laid out
// as [C, D1..Dr] for the operators. Any axis may be window.Free.
func Input(name string, dims ...window.Dim) *Node {
	n := newNode(KindInput, name)
	n.dims = append([]window.Dim(nil), dims...)
	return n
}

// Constant wraps a fixed, unbatched value such as a convolution kernel.
// The value is copied.
func Constant(name string, value *tensor.RawTensor) *Node {
	n := newNode(KindConstant, name)
	n.value = value.Clone()
	n.dims = window.FixedDims(value.Shape()...)
	n.batched = false
	return n
}

// Convolution builds a convolution of input [C_in, D...] with a constant
// kernel [C_out, C_in, K...]. A nil spec.Window defaults to the kernel's
// spatial shape.
func Convolution(kernel, input *Node, spec window.Spec) (*Node, error) {
	spec, err := kernelSpec("convolution", kernel, input, spec)
	if err != nil {
		return nil, err
	}
	if err := checkChannels("convolution", input.dims[0], kernel.dims[1]); err != nil {
		return nil, err
	}
	spatial, err := window.Infer(input.dims[1:], spec)
	if err != nil {
		return nil, errors.WithMessage(err, "convolution")
	}
	n := newNode(KindConvolution, "", kernel, input)
	n.spec = spec
	n.dims = append([]window.Dim{kernel.dims[0]}, spatial...)
	return n, nil
}

// ConvolutionTranspose builds a transposed convolution of input [C_in, D...]
// with a constant kernel [C_in, C_out, K...]. spec.OutputShape optionally
// fixes the spatial output shape.
func ConvolutionTranspose(kernel, input *Node, spec window.Spec) (*Node, error) {
	spec, err := kernelSpec("convolution_transpose", kernel, input, spec)
	if err != nil {
		return nil, err
	}
	if err := checkChannels("convolution_transpose", input.dims[0], kernel.dims[0]); err != nil {
		return nil, err
	}
	spatial, err := window.InferTranspose(input.dims[1:], spec)
	if err != nil {
		return nil, errors.WithMessage(err, "convolution_transpose")
	}
	n := newNode(KindConvolutionTranspose, "", kernel, input)
	n.spec = spec
	n.dims = append([]window.Dim{kernel.dims[1]}, spatial...)
	return n, nil
}

// Pooling builds max or average pooling over the spatial axes of
// input [C, D...].
func Pooling(input *Node, kind PoolingType, spec window.Spec) (*Node, error) {
	if err := checkOperand("pooling", input, spec.Rank()); err != nil {
		return nil, err
	}
	if kind != MaxPooling && kind != AvgPooling {
		return nil, errors.Wrapf(ErrInvalidGeometry, "pooling: unknown pooling type %d", int(kind))
	}
	spatial, err := window.Infer(input.dims[1:], spec)
	if err != nil {
		return nil, errors.WithMessage(err, "pooling")
	}
	n := newNode(KindPooling, "", input)
	n.spec = spec
	n.pooling = kind
	n.dims = append([]window.Dim{input.dims[0]}, spatial...)
	return n, nil
}

// Unpooling builds max unpooling: pooled [C, O...] is scattered onto the
// maxima of reference [C, I...] under the window spec that produced it.
func Unpooling(pooled, reference *Node, spec window.Spec) (*Node, error) {
	if err := checkOperand("unpooling", reference, spec.Rank()); err != nil {
		return nil, err
	}
	if err := checkOperand("unpooling", pooled, spec.Rank()); err != nil {
		return nil, err
	}
	spatial, err := window.Infer(reference.dims[1:], spec)
	if err != nil {
		return nil, errors.WithMessage(err, "unpooling")
	}
	want := append([]window.Dim{reference.dims[0]}, spatial...)
	for d, dim := range pooled.dims {
		if !dim.IsFree() && !want[d].IsFree() && dim != want[d] {
			return nil, errors.Wrapf(ErrInvalidGeometry, "unpooling: pooled shape %s does not match %s pooled from reference %s",
				window.FormatDims(pooled.dims), window.FormatDims(want), window.FormatDims(reference.dims))
		}
	}
	n := newNode(KindUnpooling, "", pooled, reference)
	n.spec = spec
	n.dims = append([]window.Dim(nil), reference.dims...)
	return n, nil
}

// ROIPooling builds ROI max pooling of features [C, H, W] over boxes [R, 4].
// The result is [R, C, outH, outW] per sample.
func ROIPooling(features, rois *Node, spec window.ROISpec) (*Node, error) {
	if err := spec.Validate(); err != nil {
		return nil, errors.WithMessage(err, "roi_pooling")
	}
	if err := checkOperand("roi_pooling", features, 2); err != nil {
		return nil, err
	}
	if !rois.batched || len(rois.dims) != 2 || (!rois.dims[1].IsFree() && rois.dims[1].Size() != 4) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "roi_pooling: rois must be batched [R, 4], got %s", rois)
	}
	n := newNode(KindROIPooling, "", features, rois)
	n.roi = spec
	n.dims = []window.Dim{rois.dims[0], features.dims[0],
		window.Fixed(spec.OutputShape[0]), window.Fixed(spec.OutputShape[1])}
	return n, nil
}

// checkOperand requires a batched node with a channel axis and rank spatial axes.
func checkOperand(op string, n *Node, rank int) error {
	if !n.batched {
		return errors.Wrapf(ErrInvalidGeometry, "%s: operand %q must be batched, not a constant", op, n.name)
	}
	if len(n.dims) != rank+1 {
		return errors.Wrapf(ErrInvalidGeometry, "%s: operand %s needs a channel axis and %d spatial axes",
			op, n, rank)
	}
	return nil
}

func kernelSpec(op string, kernel, input *Node, spec window.Spec) (window.Spec, error) {
	if kernel.kind != KindConstant {
		return spec, errors.Wrapf(ErrInvalidGeometry, "%s: kernel %q must be a constant", op, kernel.name)
	}
	if len(kernel.dims) < 3 {
		return spec, errors.Wrapf(ErrInvalidGeometry, "%s: kernel %s must be [C, C, K...]", op, kernel)
	}
	kernelWindow := make([]int, len(kernel.dims)-2)
	for d, dim := range kernel.dims[2:] {
		kernelWindow[d] = dim.Size()
	}
	if spec.Window == nil {
		spec.Window = kernelWindow
	}
	for d := range spec.Window {
		if len(spec.Window) != len(kernelWindow) || spec.Window[d] != kernelWindow[d] {
			return spec, errors.Wrapf(ErrInvalidGeometry, "%s: window %v does not match kernel %s",
				op, spec.Window, window.FormatDims(kernel.dims))
		}
	}
	return spec, checkOperand(op, input, len(kernelWindow))
}

func checkChannels(op string, input, kernel window.Dim) error {
	if !input.IsFree() && input != kernel {
		return errors.Wrapf(ErrInvalidGeometry, "%s: input has %s channels, kernel expects %s", op, input, kernel)
	}
	return nil
}
