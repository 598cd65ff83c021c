// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go CPU backend for the sliding-window operators.
//
// # Overview
//
// This package implements:
//   - N-dimensional convolution (im2col) and transposed convolution
//   - Average and max pooling, max unpooling
//   - ROI max pooling
//   - The backward pass of each operator
//   - Float32 and Float64 support
//
// # Basic Usage
//
//	import (
//	    "github.com/born-ml/kernels/backend/cpu"
//	    "github.com/born-ml/kernels/tensor"
//	    "github.com/born-ml/kernels/window"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    g, _ := window.Resolve([]int{3, 3}, window.Spec{Window: []int{2, 2}, Mode: window.PadAuto})
//	    x := tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float32, 0)
//	    k := tensor.Arange(tensor.Shape{1, 1, 2, 2}, tensor.Float32, 0)
//	    y := backend.Convolution(x, k, g)
//	}
//
// # Performance
//
// Index maps are cached per geometry, and kernels run (batch, channel)
// planes on parallel workers according to Config.
//
// # Thread Safety
//
// The CPU backend is safe for concurrent use. The index-map cache is guarded
// by a mutex and kernels never write to their operands.
package cpu
