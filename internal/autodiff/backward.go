package autodiff

import (
	"fmt"

	"github.com/born-ml/kernels/internal/tensor"
)

// BackwardCapable is a backend that owns a gradient tape.
type BackwardCapable interface {
	tensor.Backend
	GetTape() *GradientTape
}

// GetTape returns the backend's tape.
func (b *AutodiffBackend[B]) GetTape() *GradientTape {
	return b.tape
}

// Backward returns the gradient of sum(output) for every tensor that output
// was computed from on the backend's tape.
//
//	backend := autodiff.New(cpu.New())
//	backend.Tape().StartRecording()
//	y := backend.MaxPool(x, g)
//	dx := autodiff.Backward(y, backend)[x]
func Backward[B BackwardCapable](output *tensor.RawTensor, backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	tape := backend.GetTape()
	if tape.NumOps() == 0 {
		panic("backward: tape is empty, call Tape().StartRecording() before the forward pass")
	}
	if dt := output.DType(); dt != tensor.Float32 && dt != tensor.Float64 {
		panic(fmt.Sprintf("backward: unsupported dtype %s", dt))
	}
	return tape.BackwardFrom(output, tensor.OnesLike(output), backend)
}
