package mandel

import (
	"fmt"
	"math"
	"strings"
)

// TileName returns the file name (without extension) a tile covering rect is
// stored under, for example mandelbrot_[-02.000,-01.750]_[01.500,01.750].
func TileName(rect Rect[float32]) string {
	return fmt.Sprintf("mandelbrot_[%s,%s]_[%s,%s]",
		coord(rect.X.Min), coord(rect.X.Max),
		coord(rect.Y.Min), coord(rect.Y.Max))
}

// coord formats v with three decimals and at least two integer digits.
// Values that round to zero never carry a sign.
func coord(v float32) string {
	s := fmt.Sprintf("%06.3f", math.Abs(float64(v)))
	if v < 0 && strings.Trim(s, "0.") != "" {
		return "-" + s
	}
	return s
}

// CheckNames returns an error wrapping ErrNameCollision if two tiles would be
// stored under the same TileName. Names carry three decimals, so grids whose
// cells are narrower than about 0.001 collide.
func CheckNames(tiles []AtlasTile) error {
	seen := make(map[string]AtlasTile, len(tiles))
	for _, t := range tiles {
		name := TileName(t.Rect)
		if prev, ok := seen[name]; ok {
			return fmt.Errorf("%w: tiles (%d,%d) and (%d,%d) are both %s",
				ErrNameCollision, prev.GridX, prev.GridY, t.GridX, t.GridY, name)
		}
		seen[name] = t
	}
	return nil
}
