// Package mandel computes escape-time data for the Mandelbrot set and
// splits a region of the complex plane into an atlas of tiles that can be
// rendered and stored independently.
package mandel

import (
	"errors"
	"fmt"
	"math"
)

// Configuration errors. They are reported before any tile work starts.
var (
	ErrZeroResolution = errors.New("mandel: resolution must be non-zero")
	ErrZeroLimit      = errors.New("mandel: escape limit must be at least 1")
	ErrZeroGrid       = errors.New("mandel: grid size must be at least 1")
	ErrInvalidRect    = errors.New("mandel: invalid rectangle")
	ErrNameCollision  = errors.New("mandel: tiles share a file name")
)

// Float is the set of floating point types ranges are defined over.
type Float interface {
	~float32 | ~float64
}

// EscapeLimit bounds the number of iterations of z = z*z + c.
type EscapeLimit uint16

// Resolution is the pixel size of one rendered tile.
type Resolution struct {
	Width, Height uint32
}

// Pixels returns Width*Height.
func (r Resolution) Pixels() int {
	return int(r.Width) * int(r.Height)
}

// Validate reports ErrZeroResolution if either dimension is zero.
func (r Resolution) Validate() error {
	if r.Width == 0 || r.Height == 0 {
		return fmt.Errorf("%w: %dx%d", ErrZeroResolution, r.Width, r.Height)
	}
	return nil
}

func (r Resolution) String() string {
	return fmt.Sprintf("%dx%d", r.Width, r.Height)
}

// Range is a closed interval [Min, Max].
type Range[T Float] struct {
	Min, Max T
}

// Span returns Max - Min.
func (r Range[T]) Span() T {
	return r.Max - r.Min
}

// Valid reports whether both ends are finite and Min <= Max.
func (r Range[T]) Valid() bool {
	return finite(float64(r.Min)) && finite(float64(r.Max)) && r.Min <= r.Max
}

// Rect is a rectangle in the complex plane.
// X spans the real axis, Y the imaginary axis.
type Rect[T Float] struct {
	X, Y Range[T]
}

// NewRect is a shorthand for building a Rect from its four bounds.
func NewRect[T Float](xmin, xmax, ymin, ymax T) Rect[T] {
	return Rect[T]{
		X: Range[T]{Min: xmin, Max: xmax},
		Y: Range[T]{Min: ymin, Max: ymax},
	}
}

// Validate checks that both ranges are valid and have a non-zero span.
// A zero span would make every pixel of a tile map to the same point.
func (r Rect[T]) Validate() error {
	if !r.X.Valid() || !r.Y.Valid() || r.X.Span() == 0 || r.Y.Span() == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidRect, r)
	}
	return nil
}

func (r Rect[T]) String() string {
	return fmt.Sprintf("x:[%g,%g] y:[%g,%g]", r.X.Min, r.X.Max, r.Y.Min, r.Y.Max)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Preset regions of the complex plane, listed by the regions command.
// All but FullSet are narrow, so fine grids over them run out of distinct
// tile names; see CheckNames.
var (
	// FullSet is the whole set, the default atlas domain.
	FullSet = NewRect[float32](-2.0, 1.0, -1.5, 1.5)

	// SeahorseValley lies between the main cardioid and the period-2 bulb.
	SeahorseValley = NewRect[float32](-0.8, -0.7, 0.05, 0.15)

	// ElephantValley sits left of the period-2 bulb on the real axis.
	ElephantValley = NewRect[float32](-1.85, -1.75, -0.10, -0.02)

	// SpiralMinibrot frames a small copy of the set with spiral arms.
	SpiralMinibrot = NewRect[float32](-0.7435, -0.7420, 0.1310, 0.1325)

	// TripleSpiral frames a threefold spiral.
	TripleSpiral = NewRect[float32](-0.7480, -0.7450, 0.0950, 0.0980)

	ValleyOfTheDragon = NewRect[float32](-0.7400, -0.7350, 0.1800, 0.1850)

	// MinibrotInMiniSpiral frames a small copy of the set inside a spiral arm.
	MinibrotInMiniSpiral = NewRect[float32](-1.7390, -1.7375, -0.0235, -0.0220)
)

// Landmarks maps the names accepted on the command line to their regions.
var Landmarks = map[string]Rect[float32]{
	"full":                    FullSet,
	"seahorse-valley":         SeahorseValley,
	"elephant-valley":         ElephantValley,
	"spiral-minibrot":         SpiralMinibrot,
	"triple-spiral":           TripleSpiral,
	"valley-of-the-dragon":    ValleyOfTheDragon,
	"minibrot-in-mini-spiral": MinibrotInMiniSpiral,
}
