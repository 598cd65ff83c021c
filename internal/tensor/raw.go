package tensor

import "fmt"

// Device represents the compute device for tensor operations.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
)

// String returns a human-readable device name.
func (d Device) String() string {
	if d == CPU {
		return "CPU"
	}
	return "Unknown"
}

// RawTensor is a dense row-major tensor of float32 or float64 elements.
// Exactly one of the typed slices is populated, matching dtype.
type RawTensor struct {
	shape  Shape
	dtype  DataType
	device Device
	f32    []float32
	f64    []float64
}

// NewRaw creates a new zero-filled RawTensor with the given shape and type.
func NewRaw(shape Shape, dtype DataType, device Device) (*RawTensor, error) {
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	r := &RawTensor{shape: shape.Clone(), dtype: dtype, device: device}
	switch dtype {
	case Float32:
		r.f32 = make([]float32, shape.NumElements())
	case Float64:
		r.f64 = make([]float64, shape.NumElements())
	default:
		return nil, fmt.Errorf("unsupported dtype %s", dtype)
	}
	return r, nil
}

// Shape returns the tensor's shape.
func (r *RawTensor) Shape() Shape {
	return r.shape
}

// DType returns the tensor's data type.
func (r *RawTensor) DType() DataType {
	return r.dtype
}

// Device returns the tensor's compute device.
func (r *RawTensor) Device() Device {
	return r.device
}

// NumElements returns the total number of elements.
func (r *RawTensor) NumElements() int {
	return r.shape.NumElements()
}

// AsFloat32 returns the backing slice.
// Panics if the tensor's dtype is not Float32.
func (r *RawTensor) AsFloat32() []float32 {
	if r.dtype != Float32 {
		panic(fmt.Sprintf("tensor dtype is %s, not float32", r.dtype))
	}
	return r.f32
}

// AsFloat64 returns the backing slice.
// Panics if the tensor's dtype is not Float64.
func (r *RawTensor) AsFloat64() []float64 {
	if r.dtype != Float64 {
		panic(fmt.Sprintf("tensor dtype is %s, not float64", r.dtype))
	}
	return r.f64
}

// At returns element i of the flattened tensor as float64.
func (r *RawTensor) At(i int) float64 {
	if r.dtype == Float32 {
		return float64(r.f32[i])
	}
	return r.f64[i]
}

// Float64s returns a float64 copy of the elements.
func (r *RawTensor) Float64s() []float64 {
	out := make([]float64, r.NumElements())
	if r.dtype == Float64 {
		copy(out, r.f64)
		return out
	}
	for i, v := range r.f32 {
		out[i] = float64(v)
	}
	return out
}

// Clone returns a deep copy.
func (r *RawTensor) Clone() *RawTensor {
	c := &RawTensor{shape: r.shape.Clone(), dtype: r.dtype, device: r.device}
	if r.f32 != nil {
		c.f32 = append([]float32(nil), r.f32...)
	}
	if r.f64 != nil {
		c.f64 = append([]float64(nil), r.f64...)
	}
	return c
}

// Reshape returns a view with a new shape sharing the same elements.
func (r *RawTensor) Reshape(shape Shape) (*RawTensor, error) {
	if shape.NumElements() != r.NumElements() {
		return nil, fmt.Errorf("reshape: cannot view %v as %v", r.shape, shape)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("reshape: %w", err)
	}
	return &RawTensor{shape: shape.Clone(), dtype: r.dtype, device: r.device, f32: r.f32, f64: r.f64}, nil
}

// To converts the tensor to dtype. It returns r itself when no conversion is needed.
func (r *RawTensor) To(dtype DataType) *RawTensor {
	if r.dtype == dtype {
		return r
	}
	out, err := NewRaw(r.shape, dtype, r.device)
	if err != nil {
		panic(fmt.Sprintf("to: %v", err))
	}
	switch dtype {
	case Float32:
		for i, v := range r.f64 {
			out.f32[i] = float32(v)
		}
	case Float64:
		for i, v := range r.f32 {
			out.f64[i] = float64(v)
		}
	}
	return out
}

func (r *RawTensor) String() string {
	return fmt.Sprintf("RawTensor(%s, %v)", r.dtype, r.shape)
}
