package autodiff

import (
	"github.com/born-ml/kernels/internal/autodiff/ops"
	"github.com/born-ml/kernels/internal/tensor"
)

// GradientTape is the ordered log of sliding-window operators run while
// recording. Walking it backwards yields reverse-mode gradients.
//
// A tape is not safe for concurrent use; give every goroutine its own
// AutodiffBackend.
type GradientTape struct {
	log       []ops.Operation
	recording bool
}

// NewGradientTape returns an empty tape that is not recording.
func NewGradientTape() *GradientTape {
	return &GradientTape{log: make([]ops.Operation, 0, 8)}
}

// StartRecording makes Record append to the tape.
func (t *GradientTape) StartRecording() { t.recording = true }

// StopRecording makes Record a no-op.
func (t *GradientTape) StopRecording() { t.recording = false }

// IsRecording reports whether Record appends.
func (t *GradientTape) IsRecording() bool { return t.recording }

// Record appends op while the tape is recording.
func (t *GradientTape) Record(op ops.Operation) {
	if !t.recording {
		return
	}
	t.log = append(t.log, op)
}

// Clear drops the recorded operators and keeps the recording state.
func (t *GradientTape) Clear() {
	clear(t.log)
	t.log = t.log[:0]
}

// NumOps returns the number of recorded operators.
func (t *GradientTape) NumOps() int {
	return len(t.log)
}

// Backward propagates outputGrad from the output of the last recorded operator.
func (t *GradientTape) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	if len(t.log) == 0 {
		return map[*tensor.RawTensor]*tensor.RawTensor{}
	}
	return t.BackwardFrom(t.log[len(t.log)-1].Output(), outputGrad, backend)
}

// BackwardFrom seeds output with grad and walks the tape in reverse. A tensor
// read by several operators receives the sum of their contributions, added
// with backend.Add. Operators that do not lead to output are skipped.
//
// The result maps every reached tensor, output included, to its gradient.
func (t *GradientTape) BackwardFrom(output, grad *tensor.RawTensor, backend tensor.Backend) map[*tensor.RawTensor]*tensor.RawTensor {
	grads := map[*tensor.RawTensor]*tensor.RawTensor{output: grad}

	// Gradient kernels must not land on the tape.
	defer func(was bool) { t.recording = was }(t.recording)
	t.recording = false

	for i := len(t.log) - 1; i >= 0; i-- {
		op := t.log[i]
		upstream, reached := grads[op.Output()]
		if !reached {
			continue
		}
		inputs := op.Inputs()
		for j, g := range op.Backward(upstream, backend) {
			if g == nil || j >= len(inputs) {
				continue
			}
			if prev, ok := grads[inputs[j]]; ok {
				g = backend.Add(prev, g)
			}
			grads[inputs[j]] = g
		}
	}
	return grads
}
