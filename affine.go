package mandel

import (
	"errors"
	"fmt"
)

// ErrDegenerateInterval is returned when an Affine is built from an input
// interval of zero width.
var ErrDegenerateInterval = errors.New("mandel: degenerate input interval")

// Affine is the linear map Map(x) = A*x + B.
//
// It is a plain value: two coefficients, no captured state, so a single
// Affine can be shared by any number of goroutines.
type Affine[T Float] struct {
	A, B T
}

// NewAffine returns the map taking inMin to outMin and inMax to outMax.
// The input interval must have a non-zero width.
func NewAffine[T Float](inMin, inMax, outMin, outMax T) (Affine[T], error) {
	if inMin == inMax || !finite(float64(inMin)) || !finite(float64(inMax)) {
		return Affine[T]{}, fmt.Errorf("%w: [%v, %v]", ErrDegenerateInterval, inMin, inMax)
	}
	a := (outMax - outMin) / (inMax - inMin)
	return Affine[T]{A: a, B: outMin - inMin*a}, nil
}

// Map evaluates the map at x.
func (f Affine[T]) Map(x T) T {
	return x*f.A + f.B
}
