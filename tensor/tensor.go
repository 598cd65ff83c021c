// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package tensor

import "github.com/born-ml/kernels/internal/tensor"

// RawTensor is a dense row-major tensor.
type RawTensor = tensor.RawTensor

// Shape represents the dimensions of a tensor.
type Shape = tensor.Shape

// DataType represents runtime type information for tensors.
type DataType = tensor.DataType

// Device represents the compute device for tensor operations.
type Device = tensor.Device

// Backend defines the sliding-window operators a compute backend implements.
type Backend = tensor.Backend

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
)

// CPU is the only compute device.
const CPU = tensor.CPU

// NewRaw creates a zero-filled tensor.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	return tensor.NewRaw(shape, dtype, device)
}

// FromFloat64s creates a tensor of the given shape and dtype from values.
func FromFloat64s(shape Shape, dtype DataType, values []float64) (*RawTensor, error) {
	return tensor.FromFloat64s(shape, dtype, values)
}

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	return tensor.Zeros(shape, dtype)
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) *RawTensor {
	return tensor.Ones(shape, dtype)
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64) *RawTensor {
	return tensor.Full(shape, dtype, value)
}

// Arange creates a tensor filled with start, start+1, ... in row-major order.
func Arange(shape Shape, dtype DataType, start float64) *RawTensor {
	return tensor.Arange(shape, dtype, start)
}

// ParseDataType parses "float32" or "float64".
func ParseDataType(s string) (DataType, error) {
	return tensor.ParseDataType(s)
}

// AllClose reports whether a and b have equal shapes and elements within atol.
func AllClose(a, b *RawTensor, atol float64) bool {
	return tensor.AllClose(a, b, atol)
}
