package mandel

import "math"

const (
	// escapeNormSq is |z|² past which an orbit of z*z+c diverges.
	escapeNormSq = 4.0

	// collapseNormSq: an orbit that comes back this close to the origin is
	// treated as bounded. This is a heuristic carried over for output
	// parity; it is not a proof that the point belongs to the set.
	collapseNormSq = 1e-5
)

// EscapeResult is the outcome of iterating one point.
// Escaped is false when the orbit stayed bounded for the whole limit or
// collapsed towards the origin; Iter is meaningful only when Escaped.
type EscapeResult struct {
	Iter    EscapeLimit
	Escaped bool
}

// EscapedAt returns the result for an orbit that escaped at iteration n.
func EscapedAt(n EscapeLimit) EscapeResult {
	return EscapeResult{Iter: n, Escaped: true}
}

// Bounded is the result for an orbit that did not escape.
var Bounded = EscapeResult{}

// EscapeTime iterates z = z*z + c from z = 0 and reports the iteration at
// which |z|² first exceeds 4. Non-finite intermediates count as escaped at
// the current iteration.
func EscapeTime(c complex64, limit EscapeLimit) EscapeResult {
	var z complex64
	for i := EscapeLimit(0); i < limit; i++ {
		re, im := real(z), imag(z)
		norm := re*re + im*im
		switch {
		case norm > escapeNormSq || !finite32(norm):
			return EscapedAt(i)
		case i > 0 && norm <= collapseNormSq:
			return Bounded
		}
		z = z*z + c
	}
	return Bounded
}

func finite32(f float32) bool {
	return !math.IsNaN(float64(f)) && !math.IsInf(float64(f), 0)
}
