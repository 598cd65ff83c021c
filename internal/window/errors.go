package window

import "github.com/pkg/errors"

var (
	// ErrInvalidGeometry reports a window, stride, padding or output shape that
	// cannot be realised. It is returned while building an operator.
	ErrInvalidGeometry = errors.New("invalid geometry")

	// ErrShapeMismatch reports a bound array whose rank or extents disagree with
	// the declared shape. It is returned at evaluation time.
	ErrShapeMismatch = errors.New("shape mismatch")
)

func invalidf(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidGeometry, format, args...)
}

func mismatchf(format string, args ...any) error {
	return errors.Wrapf(ErrShapeMismatch, format, args...)
}
