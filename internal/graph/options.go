package graph

import (
	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
)

// Option configures an Evaluator.
type Option func(*evaluatorOptions)

type evaluatorOptions struct {
	backend tensor.Backend
	dtype   tensor.DataType
	fixed   bool
}

// WithBackend evaluates on the given backend instead of a default CPU backend.
func WithBackend(b tensor.Backend) Option {
	return func(o *evaluatorOptions) {
		o.backend = b
	}
}

// WithConfig evaluates on a CPU backend with the given worker configuration.
func WithConfig(cfg parallel.Config) Option {
	return func(o *evaluatorOptions) {
		o.backend = cpu.NewWithConfig(cfg)
	}
}

// WithDType converts every binding and constant to dt before evaluation.
// Without it, evaluation runs in float64 when any binding is float64 and in
// float32 otherwise.
func WithDType(dt tensor.DataType) Option {
	return func(o *evaluatorOptions) {
		o.dtype = dt
		o.fixed = true
	}
}
