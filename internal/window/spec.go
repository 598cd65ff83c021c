package window

// PadMode selects how the border of the input is treated.
type PadMode int

const (
	// PadNone slides the window over the input only: O = floor((I-K)/S) + 1.
	PadNone PadMode = iota

	// PadAuto pads so that O = ceil(I/S). Padded positions are excluded from
	// average divisors.
	PadAuto

	// PadAutoIncludePad pads like PadAuto, but average pooling divides by the
	// full window volume even where the window overlaps padding.
	PadAutoIncludePad

	// PadCeil rounds the output size up and lets the last window hang over the
	// input boundary. Taps past the boundary are excluded.
	PadCeil

	// PadExplicit uses Spec.Padding verbatim.
	PadExplicit
)

func (m PadMode) String() string {
	switch m {
	case PadNone:
		return "none"
	case PadAuto:
		return "auto"
	case PadAutoIncludePad:
		return "auto-include-pad"
	case PadCeil:
		return "ceil"
	case PadExplicit:
		return "explicit"
	default:
		return "unknown"
	}
}

// ParsePadMode parses the names produced by PadMode.String.
func ParsePadMode(s string) (PadMode, error) {
	for m := PadNone; m <= PadExplicit; m++ {
		if m.String() == s {
			return m, nil
		}
	}
	return PadNone, invalidf("unknown padding mode %q", s)
}

// Spec describes a sliding window over the spatial axes of an input.
//
// Strides default to 1 on every axis. AutoPad toggles padding per axis for the
// auto modes; a shorter list is right-aligned to the trailing axes and its first
// value repeats over the leading ones, so {true, false} over three axes means
// {true, true, false}. A nil AutoPad pads every axis.
type Spec struct {
	Window  []int
	Strides []int
	Mode    PadMode
	AutoPad []bool

	// Padding holds [lo, hi] per axis for PadExplicit.
	Padding [][2]int

	// OutputShape is the requested output of a transposed operator.
	OutputShape []int
}

// Rank returns the number of spatial axes the window covers.
func (s Spec) Rank() int {
	return len(s.Window)
}

// IncludePad reports whether average divisors count padded positions.
func (s Spec) IncludePad() bool {
	return s.Mode == PadAutoIncludePad
}

// Validate checks the parts of the spec that do not depend on the input shape.
func (s Spec) Validate() error {
	rank := len(s.Window)
	if rank == 0 {
		return invalidf("window has no axes")
	}
	for d, k := range s.Window {
		if k <= 0 {
			return invalidf("axis %d: window size %d must be positive", d, k)
		}
	}
	if s.Strides != nil {
		if len(s.Strides) != rank {
			return invalidf("%d strides given for a %d-axis window", len(s.Strides), rank)
		}
		for d, st := range s.Strides {
			if st <= 0 {
				return invalidf("axis %d: stride %d must be positive", d, st)
			}
		}
	}
	if len(s.AutoPad) > rank {
		return invalidf("%d auto-pad flags given for a %d-axis window", len(s.AutoPad), rank)
	}
	if s.Mode == PadExplicit {
		if len(s.Padding) != rank {
			return invalidf("%d padding pairs given for a %d-axis window", len(s.Padding), rank)
		}
		for d, p := range s.Padding {
			if p[0] < 0 || p[1] < 0 {
				return invalidf("axis %d: negative padding %v", d, p)
			}
		}
	}
	if s.OutputShape != nil && len(s.OutputShape) != rank {
		return invalidf("output shape %v does not match a %d-axis window", s.OutputShape, rank)
	}
	if s.Mode < PadNone || s.Mode > PadExplicit {
		return invalidf("unknown padding mode %d", int(s.Mode))
	}
	return nil
}

func (s Spec) stride(d int) int {
	if s.Strides == nil {
		return 1
	}
	return s.Strides[d]
}

// autoPadAxis reports whether axis d is padded by the auto modes.
func (s Spec) autoPadAxis(d int) bool {
	if s.Mode != PadAuto && s.Mode != PadAutoIncludePad {
		return false
	}
	n := len(s.AutoPad)
	if n == 0 {
		return true
	}
	idx := d - (len(s.Window) - n)
	if idx < 0 {
		idx = 0
	}
	return s.AutoPad[idx]
}

// Axis returns the single-axis spec of axis d, with the auto-pad flag and
// explicit padding of that axis resolved.
func (s Spec) Axis(d int) Spec {
	axis := Spec{
		Window:  []int{s.Window[d]},
		Strides: []int{s.stride(d)},
		Mode:    s.Mode,
	}
	if s.Mode == PadAuto || s.Mode == PadAutoIncludePad {
		axis.AutoPad = []bool{s.autoPadAxis(d)}
	}
	if s.Mode == PadExplicit {
		axis.Padding = [][2]int{s.Padding[d]}
	}
	if s.OutputShape != nil {
		axis.OutputShape = []int{s.OutputShape[d]}
	}
	return axis
}
