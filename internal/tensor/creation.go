package tensor

import "fmt"

// Zeros creates a zero-filled tensor.
func Zeros(shape Shape, dtype DataType) *RawTensor {
	r, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		panic(err)
	}
	return r
}

// Full creates a tensor filled with value.
func Full(shape Shape, dtype DataType, value float64) *RawTensor {
	r := Zeros(shape, dtype)
	switch dtype {
	case Float32:
		for i := range r.f32 {
			r.f32[i] = float32(value)
		}
	case Float64:
		for i := range r.f64 {
			r.f64[i] = value
		}
	}
	return r
}

// Ones creates a tensor filled with ones.
func Ones(shape Shape, dtype DataType) *RawTensor {
	return Full(shape, dtype, 1)
}

// OnesLike creates a tensor of ones with the shape and dtype of r.
func OnesLike(r *RawTensor) *RawTensor {
	return Ones(r.shape, r.dtype)
}

// ZerosLike creates a zero tensor with the shape and dtype of r.
func ZerosLike(r *RawTensor) *RawTensor {
	return Zeros(r.shape, r.dtype)
}

// Arange creates a tensor of the given shape filled with start, start+1, ...
// in row-major order.
//
// Example:
//
//	x := tensor.Arange(tensor.Shape{1, 1, 3, 3}, tensor.Float32, 0) // 0..8
func Arange(shape Shape, dtype DataType, start float64) *RawTensor {
	r := Zeros(shape, dtype)
	for i := 0; i < r.NumElements(); i++ {
		r.set(i, start+float64(i))
	}
	return r
}

// FromFloat64s creates a tensor of the given shape and dtype from values.
func FromFloat64s(shape Shape, dtype DataType, values []float64) (*RawTensor, error) {
	if shape.NumElements() != len(values) {
		return nil, fmt.Errorf("shape %v needs %d values, got %d", shape, shape.NumElements(), len(values))
	}
	r, err := NewRaw(shape, dtype, CPU)
	if err != nil {
		return nil, err
	}
	for i, v := range values {
		r.set(i, v)
	}
	return r, nil
}

// MustFromFloat64s is FromFloat64s that panics on error. Intended for fixtures.
func MustFromFloat64s(shape Shape, dtype DataType, values []float64) *RawTensor {
	r, err := FromFloat64s(shape, dtype, values)
	if err != nil {
		panic(err)
	}
	return r
}

func (r *RawTensor) set(i int, v float64) {
	if r.dtype == Float32 {
		r.f32[i] = float32(v)
		return
	}
	r.f64[i] = v
}
