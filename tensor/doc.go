// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the dense tensors and backend contract of the
// sliding-window operators.
//
// # Overview
//
// Tensors are row-major float32 or float64 arrays laid out as [N, C, D1..Dr]
// for the operators: a batch axis, a channel axis and r spatial axes.
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
//	    x := tensor.Arange(tensor.Shape{1, 1, 8, 8}, tensor.Float32, 1)
//	    g, _ := window.Resolve([]int{8, 8}, window.Spec{Window: []int{2, 2}, Strides: []int{2, 2}})
//	    y := backend.MaxPool(x, g)
//	}
//
// # Supported Data Types
//
// Float32 and Float64. Every operand of one operator call must share a dtype.
package tensor
