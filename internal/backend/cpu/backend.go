// Package cpu implements the sliding-window operators on the CPU.
package cpu

import (
	"fmt"

	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// CPUBackend implements tensor.Backend in pure Go. Kernels fan out over
// (batch, channel) planes according to its parallel.Config.
type CPUBackend struct {
	device tensor.Device
	cfg    parallel.Config
	memo   *window.Memo
}

// New creates a new CPU backend with parallel.DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(parallel.DefaultConfig())
}

// NewWithConfig creates a CPU backend with the given worker configuration.
func NewWithConfig(cfg parallel.Config) *CPUBackend {
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	if cfg.MinChunkSize <= 0 {
		cfg.MinChunkSize = 1
	}
	return &CPUBackend{
		device: tensor.CPU,
		cfg:    cfg,
		memo:   window.NewMemo(window.DefaultMemoLimit),
	}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return cpu.device
}

// Config returns the worker configuration.
func (cpu *CPUBackend) Config() parallel.Config {
	return cpu.cfg
}

// Memo returns the index-map cache shared by all kernels of this backend.
func (cpu *CPUBackend) Memo() *window.Memo {
	return cpu.memo
}

// Add performs element-wise addition of two tensors of equal shape and dtype.
func (cpu *CPUBackend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	if !a.Shape().Equal(b.Shape()) {
		panic(fmt.Sprintf("add: shape mismatch %v vs %v", a.Shape(), b.Shape()))
	}
	if a.DType() != b.DType() {
		panic(fmt.Sprintf("add: dtype mismatch %s vs %s", a.DType(), b.DType()))
	}
	result := cpu.alloc("add", a.Shape(), a.DType())
	switch a.DType() {
	case tensor.Float32:
		addSlices(result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), cpu.cfg)
	case tensor.Float64:
		addSlices(result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), cpu.cfg)
	default:
		panic(fmt.Sprintf("add: unsupported dtype %s", a.DType()))
	}
	return result
}

func addSlices[T float](dst, a, b []T, cfg parallel.Config) {
	cfg.MinChunkSize = max(cfg.MinChunkSize, addChunk)
	parallel.ForRange(len(dst), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = a[i] + b[i]
		}
	}, cfg)
}

// addChunk is the smallest element count worth a goroutine in Add.
const addChunk = 1 << 14

func (cpu *CPUBackend) alloc(op string, shape tensor.Shape, dtype tensor.DataType) *tensor.RawTensor {
	r, err := tensor.NewRaw(shape, dtype, cpu.device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", op, err))
	}
	return r
}
