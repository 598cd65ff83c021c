package graph

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/born-ml/kernels/internal/autodiff"
	"github.com/born-ml/kernels/internal/backend/cpu"
	"github.com/born-ml/kernels/internal/tensor"
	"github.com/born-ml/kernels/internal/window"
)

// Bindings maps Input nodes to batched values [N, dims...].
type Bindings map[*Node]*tensor.RawTensor

// Evaluator runs graphs on a backend. It holds no per-call state and is safe
// for concurrent use when its backend is.
type Evaluator struct {
	backend tensor.Backend
	dtype   tensor.DataType
	fixed   bool
}

// NewEvaluator creates an evaluator. It defaults to cpu.New().
func NewEvaluator(opts ...Option) *Evaluator {
	options := &evaluatorOptions{dtype: tensor.Float32}
	for _, opt := range opts {
		opt(options)
	}
	if options.backend == nil {
		options.backend = cpu.New()
	}
	return &Evaluator{backend: options.backend, dtype: options.dtype, fixed: options.fixed}
}

// Backend returns the backend the evaluator runs on.
func (e *Evaluator) Backend() tensor.Backend {
	return e.backend
}

// Evaluate computes the value of out for the given bindings.
// Missing or mis-shaped bindings return an error wrapping ErrShapeMismatch.
func (e *Evaluator) Evaluate(out *Node, bindings Bindings) (*tensor.RawTensor, error) {
	values, err := e.run(out, bindings, e.backend)
	if err != nil {
		return nil, err
	}
	return values[out], nil
}

// Gradient computes the gradient of sum(out) with respect to each node in wrt,
// i.e. backpropagates an all-ones upstream gradient. Nodes that out does not
// depend on receive zeros.
func (e *Evaluator) Gradient(out *Node, bindings Bindings, wrt ...*Node) (map[*Node]*tensor.RawTensor, error) {
	ad := autodiff.New(e.backend)
	ad.Tape().StartRecording()
	values, err := e.run(out, bindings, ad)
	if err != nil {
		return nil, err
	}

	var grads map[*tensor.RawTensor]*tensor.RawTensor
	if ad.Tape().NumOps() > 0 {
		if err := catch(out, func() { grads = autodiff.Backward(values[out], ad) }); err != nil {
			return nil, err
		}
	} else {
		grads = map[*tensor.RawTensor]*tensor.RawTensor{values[out]: tensor.OnesLike(values[out])}
	}

	result := make(map[*Node]*tensor.RawTensor, len(wrt))
	for _, n := range wrt {
		v, ok := values[n]
		if !ok {
			return nil, errors.Errorf("gradient: %s is not part of the graph of %s", n, out)
		}
		if g, ok := grads[v]; ok {
			result[n] = g
		} else {
			result[n] = tensor.ZerosLike(v)
		}
	}
	return result, nil
}

// run evaluates the ancestors of out in dependency order.
func (e *Evaluator) run(out *Node, bindings Bindings, backend tensor.Backend) (map[*Node]*tensor.RawTensor, error) {
	order := topoSort(out)
	dtype := e.dtypeFor(bindings)

	values := make(map[*Node]*tensor.RawTensor, len(order))
	for _, n := range order {
		var (
			v   *tensor.RawTensor
			err error
		)
		switch n.kind {
		case KindInput:
			v, err = bind(n, bindings, dtype)
		case KindConstant:
			v = n.value.To(dtype)
			if v == n.value {
				v = v.Clone()
			}
		default:
			var applyErr error
			if err = catch(n, func() { v, applyErr = e.apply(n, values, backend) }); err == nil {
				err = applyErr
			}
		}
		if err != nil {
			return nil, err
		}
		values[n] = v
	}
	return values, nil
}

func (e *Evaluator) dtypeFor(bindings Bindings) tensor.DataType {
	if e.fixed {
		return e.dtype
	}
	for _, v := range bindings {
		if v != nil && v.DType() == tensor.Float64 {
			return tensor.Float64
		}
	}
	return e.dtype
}

// bind checks a bound value against the declared dims and returns a private
// copy in dtype, so that every input has its own gradient slot.
func bind(n *Node, bindings Bindings, dtype tensor.DataType) (*tensor.RawTensor, error) {
	v, ok := bindings[n]
	if !ok || v == nil {
		return nil, errors.Wrapf(ErrShapeMismatch, "no binding for input %q", n.name)
	}
	shape := v.Shape()
	if len(shape) != len(n.dims)+1 {
		return nil, errors.Wrapf(ErrShapeMismatch, "input %q: bound shape %v is not [N]+%s",
			n.name, shape, window.FormatDims(n.dims))
	}
	if _, err := window.ResolveDims(n.dims, shape[1:]); err != nil {
		return nil, errors.WithMessagef(err, "input %q", n.name)
	}
	if v.DType() == dtype {
		return v.Clone(), nil
	}
	return v.To(dtype), nil
}

// apply resolves the geometry of op node n against its operand values and runs
// the operator. Shape errors discovered here wrap ErrShapeMismatch.
func (e *Evaluator) apply(n *Node, values map[*Node]*tensor.RawTensor, backend tensor.Backend) (*tensor.RawTensor, error) {
	arg := func(i int) *tensor.RawTensor { return values[n.inputs[i]] }

	switch n.kind {
	case KindConvolution:
		kernel, input := arg(0), arg(1)
		if input.Shape()[1] != kernel.Shape()[1] {
			return nil, mismatch(n, "input has %d channels, kernel expects %d", input.Shape()[1], kernel.Shape()[1])
		}
		g, err := resolve(n, input.Shape().Spatial(), n.spec, false)
		if err != nil {
			return nil, err
		}
		return backend.Convolution(input, kernel, g), nil

	case KindConvolutionTranspose:
		kernel, input := arg(0), arg(1)
		if input.Shape()[1] != kernel.Shape()[0] {
			return nil, mismatch(n, "input has %d channels, kernel expects %d", input.Shape()[1], kernel.Shape()[0])
		}
		g, err := resolve(n, input.Shape().Spatial(), n.spec, true)
		if err != nil {
			return nil, err
		}
		return backend.ConvolutionTranspose(input, kernel, g), nil

	case KindPooling:
		input := arg(0)
		g, err := resolve(n, input.Shape().Spatial(), n.spec, false)
		if err != nil {
			return nil, err
		}
		if n.pooling == AvgPooling {
			return backend.AvgPool(input, g), nil
		}
		return backend.MaxPool(input, g), nil

	case KindUnpooling:
		pooled, reference := arg(0), arg(1)
		g, err := resolve(n, reference.Shape().Spatial(), n.spec, false)
		if err != nil {
			return nil, err
		}
		want := append(tensor.Shape{reference.Shape()[0], reference.Shape()[1]}, g.OutputShape()...)
		if !pooled.Shape().Equal(want) {
			return nil, mismatch(n, "pooled shape %v, reference pools to %v", pooled.Shape(), want)
		}
		return backend.MaxUnpool(pooled, reference, g), nil

	case KindROIPooling:
		features, rois := arg(0), arg(1)
		if rois.Shape()[0] != features.Shape()[0] || rois.Shape()[2] != 4 {
			return nil, mismatch(n, "rois %v do not match features %v", rois.Shape(), features.Shape())
		}
		return backend.ROIPool(features, rois, n.roi), nil
	}
	return nil, errors.Errorf("evaluate %s: unsupported node kind", n)
}

// resolve turns a geometry error found at evaluation time, when free axes
// become concrete, into a shape mismatch.
func resolve(n *Node, spatial []int, spec window.Spec, transpose bool) (*window.Geometry, error) {
	var (
		g   *window.Geometry
		err error
	)
	if transpose {
		g, err = window.ResolveTranspose(spatial, spec)
	} else {
		g, err = window.Resolve(spatial, spec)
	}
	if err != nil {
		return nil, mismatch(n, "%v", err)
	}
	return g, nil
}

func mismatch(n *Node, format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, "evaluate %s: %s", n, fmt.Sprintf(format, args...))
}

// catch converts a backend panic into an error.
func catch(n *Node, f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("evaluate %s: %v", n, r)
		}
	}()
	f()
	return nil
}

// topoSort returns the ancestors of out, operands first.
func topoSort(out *Node) []*Node {
	var (
		order   []*Node
		visited = make(map[*Node]bool)
		visit   func(*Node)
	)
	visit = func(n *Node) {
		if visited[n] {
			return
		}
		visited[n] = true
		for _, in := range n.inputs {
			visit(in)
		}
		order = append(order, n)
	}
	visit(out)
	return order
}
