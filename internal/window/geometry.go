package window

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// Axis is the resolved geometry of a single spatial axis.
type Axis struct {
	Input  int
	Window int
	Stride int
	Output int
	PadLo  int
	PadHi  int
}

// Start returns the input coordinate of the first tap of output cell o.
// It is negative when the window begins inside the lower padding.
func (a Axis) Start(o int) int {
	return o*a.Stride - a.PadLo
}

// Geometry is a resolved sliding window. It is immutable once built.
type Geometry struct {
	axes       []Axis
	includePad bool
}

// Resolve computes the output shape and paddings of spec over input.
// Errors wrap ErrInvalidGeometry.
func Resolve(input []int, spec Spec) (*Geometry, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(input) != spec.Rank() {
		return nil, invalidf("input %v has %d spatial axes, window %v has %d",
			input, len(input), spec.Window, spec.Rank())
	}

	g := &Geometry{
		axes:       make([]Axis, len(input)),
		includePad: spec.IncludePad(),
	}
	for d, size := range input {
		if size <= 0 {
			return nil, invalidf("axis %d: input size %d must be positive", d, size)
		}
		k, s := spec.Window[d], spec.stride(d)

		var (
			ax  Axis
			err error
		)
		switch {
		case spec.autoPadAxis(d):
			ax = autoAxis(size, k, s)
		case spec.Mode == PadCeil:
			ax, err = ceilAxis(size, k, s)
		case spec.Mode == PadExplicit:
			ax, err = explicitAxis(size, k, s, spec.Padding[d])
		default:
			ax, err = validAxis(size, k, s)
		}
		if err != nil {
			return nil, errors.WithMessagef(err, "axis %d", d)
		}
		g.axes[d] = ax
	}
	return g, nil
}

// ResolveTranspose resolves the geometry of a transposed operator whose input
// has the given spatial shape. The returned Geometry describes the forward
// operator that maps the transpose output back onto input: its Input shape is
// the transpose output and its Output shape equals input.
//
// Without spec.OutputShape the transpose output is (I-1)*S + K on unpadded axes
// and I*S on auto-padded axes. With spec.OutputShape, each axis keeps the
// padding of spec's mode when that already maps O back to I; otherwise the
// smallest total padding P in [0, K-1] with (O+P-K)/S + 1 == I is used, split
// as lo = P/2 and hi = P - lo. An axis no padding can satisfy is an error.
func ResolveTranspose(input []int, spec Spec) (*Geometry, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	if len(input) != spec.Rank() {
		return nil, invalidf("input %v has %d spatial axes, window %v has %d",
			input, len(input), spec.Window, spec.Rank())
	}
	if spec.OutputShape != nil {
		return solveTranspose(input, spec)
	}

	output := make([]int, len(input))
	for d, size := range input {
		k, s := spec.Window[d], spec.stride(d)
		switch {
		case spec.autoPadAxis(d):
			output[d] = size * s
		case spec.Mode == PadExplicit:
			output[d] = (size-1)*s + k - spec.Padding[d][0] - spec.Padding[d][1]
		default:
			output[d] = (size-1)*s + k
		}
	}

	g, err := Resolve(output, spec)
	if err != nil {
		return nil, err
	}
	for d, ax := range g.axes {
		if ax.Output != input[d] {
			return nil, invalidf("axis %d: output size %d does not map back to input size %d (got %d)",
				d, output[d], input[d], ax.Output)
		}
	}
	return g, nil
}

// solveTranspose fits padding so that the forward operator over
// spec.OutputShape produces input.
func solveTranspose(input []int, spec Spec) (*Geometry, error) {
	g := &Geometry{
		axes:       make([]Axis, len(input)),
		includePad: spec.IncludePad(),
	}
	for d, size := range input {
		out := spec.OutputShape[d]
		if size <= 0 || out <= 0 {
			return nil, invalidf("axis %d: sizes %d -> %d must be positive", d, size, out)
		}
		forward := spec.Axis(d)
		forward.OutputShape = nil
		if declared, err := Resolve([]int{out}, forward); err == nil && declared.axes[0].Output == size {
			g.axes[d] = declared.axes[0]
			continue
		}
		ax, ok := fitAxis(out, spec.Window[d], spec.stride(d), size)
		if !ok {
			return nil, invalidf("axis %d: no padding in [0, %d] maps output size %d back to input size %d",
				d, spec.Window[d]-1, out, size)
		}
		g.axes[d] = ax
	}
	return g, nil
}

// fitAxis finds the smallest total padding p in [0, k-1] with which a window k
// at stride s over size yields want outputs.
func fitAxis(size, k, s, want int) (Axis, bool) {
	for p := 0; p < k; p++ {
		padded := size + p
		if padded < k || (padded-k)/s+1 != want {
			continue
		}
		lo := p / 2
		return Axis{Input: size, Window: k, Stride: s, Output: want, PadLo: lo, PadHi: p - lo}, true
	}
	return Axis{}, false
}

func validAxis(size, k, s int) (Axis, error) {
	if k > size {
		return Axis{}, invalidf("window %d larger than input %d without padding", k, size)
	}
	return Axis{Input: size, Window: k, Stride: s, Output: (size-k)/s + 1}, nil
}

// autoAxis pads so that the output is ceil(I/S). The lower pad keeps windows
// centred on the stride grid; the remainder goes to the upper side.
func autoAxis(size, k, s int) Axis {
	out := (size + s - 1) / s
	total := max(0, (out-1)*s+k-size)
	lo := min(max(0, (k-1)/2-((size-1)%s)/2), total)
	return Axis{Input: size, Window: k, Stride: s, Output: out, PadLo: lo, PadHi: total - lo}
}

func ceilAxis(size, k, s int) (Axis, error) {
	if k > size {
		return Axis{}, invalidf("window %d larger than input %d in ceiling mode", k, size)
	}
	out := (size-k+s-1)/s + 1
	// The last window has to start inside the input.
	for out > 1 && (out-1)*s >= size {
		out--
	}
	return Axis{Input: size, Window: k, Stride: s, Output: out, PadHi: max(0, (out-1)*s+k-size)}, nil
}

func explicitAxis(size, k, s int, pad [2]int) (Axis, error) {
	padded := size + pad[0] + pad[1]
	if k > padded {
		return Axis{}, invalidf("window %d larger than padded input %d", k, padded)
	}
	return Axis{
		Input:  size,
		Window: k,
		Stride: s,
		Output: (padded-k)/s + 1,
		PadLo:  pad[0],
		PadHi:  pad[1],
	}, nil
}

// Rank returns the number of spatial axes.
func (g *Geometry) Rank() int {
	return len(g.axes)
}

// Axis returns the resolved geometry of axis d.
func (g *Geometry) Axis(d int) Axis {
	return g.axes[d]
}

// Axes returns a copy of every resolved axis.
func (g *Geometry) Axes() []Axis {
	return append([]Axis(nil), g.axes...)
}

// IncludePad reports whether average divisors count padded positions.
func (g *Geometry) IncludePad() bool {
	return g.includePad
}

// InputShape returns the spatial input shape.
func (g *Geometry) InputShape() []int {
	return g.collect(func(a Axis) int { return a.Input })
}

// OutputShape returns the spatial output shape.
func (g *Geometry) OutputShape() []int {
	return g.collect(func(a Axis) int { return a.Output })
}

// WindowShape returns the window sizes.
func (g *Geometry) WindowShape() []int {
	return g.collect(func(a Axis) int { return a.Window })
}

// Padding returns [lo, hi] per axis.
func (g *Geometry) Padding() [][2]int {
	p := make([][2]int, len(g.axes))
	for d, a := range g.axes {
		p[d] = [2]int{a.PadLo, a.PadHi}
	}
	return p
}

// InputSize is the number of input positions per channel plane.
func (g *Geometry) InputSize() int {
	return product(g.InputShape())
}

// OutputSize is the number of output cells per channel plane.
func (g *Geometry) OutputSize() int {
	return product(g.OutputShape())
}

// WindowVolume is the number of taps of an unclipped window.
func (g *Geometry) WindowVolume() int {
	return product(g.WindowShape())
}

// Key identifies the geometry for memoisation.
func (g *Geometry) Key() string {
	var sb strings.Builder
	for _, a := range g.axes {
		fmt.Fprintf(&sb, "%d/%d/%d/%d/%d/%d;", a.Input, a.Window, a.Stride, a.Output, a.PadLo, a.PadHi)
	}
	if g.includePad {
		sb.WriteString("incl")
	}
	return sb.String()
}

func (g *Geometry) String() string {
	return fmt.Sprintf("window%v stride%v pad%v: %v -> %v",
		g.WindowShape(), g.collect(func(a Axis) int { return a.Stride }),
		g.Padding(), g.InputShape(), g.OutputShape())
}

func (g *Geometry) collect(f func(Axis) int) []int {
	out := make([]int, len(g.axes))
	for d, a := range g.axes {
		out[d] = f(a)
	}
	return out
}

func product(dims []int) int {
	n := 1
	for _, d := range dims {
		n *= d
	}
	return n
}
