// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package graph evaluates graphs of sliding-window operators and their
// gradients.
//
// Example:
//
//	x := graph.Input("x", window.Fixed(1), window.Free, window.Free)
//	y, err := graph.Pooling(x, graph.MaxPooling, window.Spec{
//	    Window:  []int{2, 2},
//	    Strides: []int{2, 2},
//	})
//	ev := graph.NewEvaluator()
//	out, err := ev.Evaluate(y, graph.Bindings{x: data})
//	grads, err := ev.Gradient(y, graph.Bindings{x: data}, x)
package graph

import (
	"github.com/born-ml/kernels/internal/graph"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

type (
	// Node is an immutable vertex of an operator graph.
	Node = graph.Node
	// Kind identifies what a node computes.
	Kind = graph.Kind
	// PoolingType selects the pooling reduction.
	PoolingType = graph.PoolingType
	// Bindings maps Input nodes to batched values.
	Bindings = graph.Bindings
	// Evaluator runs graphs on a backend.
	Evaluator = graph.Evaluator
	// Option configures an Evaluator.
	Option = graph.Option
)

// Pooling reductions.
const (
	MaxPooling = graph.MaxPooling
	AvgPooling = graph.AvgPooling
)

// Error kinds; check with errors.Is.
var (
	ErrInvalidGeometry = graph.ErrInvalidGeometry
	ErrShapeMismatch   = graph.ErrShapeMismatch
)

// Input declares a batched input with per-sample shape dims.
func Input(name string, dims ...window.Dim) *Node { return graph.Input(name, dims...) }

// Constant wraps a fixed, unbatched value such as a kernel.
func Constant(name string, value *tensor.RawTensor) *Node { return graph.Constant(name, value) }

// Convolution builds a convolution of input with a constant kernel.
func Convolution(kernel, input *Node, spec window.Spec) (*Node, error) {
	return graph.Convolution(kernel, input, spec)
}

// ConvolutionTranspose builds a transposed convolution of input with a constant kernel.
func ConvolutionTranspose(kernel, input *Node, spec window.Spec) (*Node, error) {
	return graph.ConvolutionTranspose(kernel, input, spec)
}

// Pooling builds max or average pooling.
func Pooling(input *Node, kind PoolingType, spec window.Spec) (*Node, error) {
	return graph.Pooling(input, kind, spec)
}

// Unpooling builds max unpooling of pooled onto the maxima of reference.
func Unpooling(pooled, reference *Node, spec window.Spec) (*Node, error) {
	return graph.Unpooling(pooled, reference, spec)
}

// ROIPooling builds ROI max pooling of features over boxes.
func ROIPooling(features, rois *Node, spec window.ROISpec) (*Node, error) {
	return graph.ROIPooling(features, rois, spec)
}

// NewEvaluator creates an evaluator.
func NewEvaluator(opts ...Option) *Evaluator { return graph.NewEvaluator(opts...) }

// WithBackend evaluates on the given backend.
func WithBackend(b tensor.Backend) Option { return graph.WithBackend(b) }

// WithConfig evaluates on a CPU backend with the given worker configuration.
var WithConfig = graph.WithConfig

// WithDType converts every binding and constant to dt before evaluation.
func WithDType(dt tensor.DataType) Option { return graph.WithDType(dt) }
