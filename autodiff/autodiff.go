// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides gradient tracking for the sliding-window operators.
//
// It wraps any backend and records every forward operator on a gradient tape.
//
// Example:
//
//	import (
//	    "github.com/born-ml/kernels/autodiff"
//	    "github.com/born-ml/kernels/backend/cpu"
//	)
//
//	func main() {
//	    backend := autodiff.New(cpu.New())
//	    backend.Tape().StartRecording()
//	    y := backend.MaxPool(x, g)
//	    grads := autodiff.Backward(y, backend)
//	    dx := grads[x]
//	}
package autodiff

import (
	"github.com/born-ml/kernels/internal/autodiff"
	"github.com/born-ml/kernels/internal/tensor"
)

// Backend is the autodiff-enabled backend.
type Backend[B tensor.Backend] = autodiff.AutodiffBackend[B]

// New creates a new autodiff backend wrapping the given backend.
//
// Example:
//
//	base := cpu.New()
//	backend := autodiff.New(base)
func New[B tensor.Backend](backend B) *Backend[B] {
	return autodiff.New(backend)
}

// GradientTape records operations for automatic differentiation.
type GradientTape = autodiff.GradientTape

// NewGradientTape creates a new gradient tape.
func NewGradientTape() *GradientTape {
	return autodiff.NewGradientTape()
}

// BackwardCapable interface for backends that support backpropagation.
type BackwardCapable = autodiff.BackwardCapable

// Backward computes gradients of output with an all-ones upstream gradient.
func Backward[B BackwardCapable](output *tensor.RawTensor, backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(output, backend)
}
