// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	internalcpu "github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/parallel"
	"github.com/born-ml/kernels/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Config controls how kernels fan out over (batch, channel) planes.
type Config = parallel.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a new CPU backend using DefaultConfig.
//
// Example:
//
//	backend := cpu.New()
//	y := backend.AvgPool(x, g)
func New() *Backend {
	return internalcpu.New()
}

// NewWithConfig creates a CPU backend with the given worker configuration.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}

// DefaultConfig returns a configuration sized to the number of CPUs.
func DefaultConfig() Config {
	return parallel.DefaultConfig()
}

// SequentialConfig returns a configuration that runs every kernel on the
// calling goroutine.
func SequentialConfig() Config {
	return parallel.Sequential()
}
