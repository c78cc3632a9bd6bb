package mandel

import (
	"fmt"
	"iter"
)

// Pixel is a pixel coordinate inside a tile. (0,0) is the top-left corner.
type Pixel struct {
	X, Y uint32
}

// TileComputer evaluates every pixel of one tile.
//
// The pixel -> plane maps are built once in NewTileComputer and reused for
// every pixel. Pixel rows grow downwards while the imaginary axis grows
// upwards, so row 0 maps to Rect.Y.Max.
type TileComputer struct {
	res   Resolution
	limit EscapeLimit
	xMap  Affine[float32]
	yMap  Affine[float32]
}

// NewTileComputer prepares the evaluation of rect at resolution res.
func NewTileComputer(res Resolution, rect Rect[float32], limit EscapeLimit) (TileComputer, error) {
	if err := res.Validate(); err != nil {
		return TileComputer{}, err
	}
	if limit == 0 {
		return TileComputer{}, ErrZeroLimit
	}
	xMap, err := NewAffine(0, float32(res.Width), rect.X.Min, rect.X.Max)
	if err != nil {
		return TileComputer{}, fmt.Errorf("x axis: %w", err)
	}
	yMap, err := NewAffine(float32(res.Height), 0, rect.Y.Min, rect.Y.Max)
	if err != nil {
		return TileComputer{}, fmt.Errorf("y axis: %w", err)
	}
	return TileComputer{res: res, limit: limit, xMap: xMap, yMap: yMap}, nil
}

// Resolution returns the tile's pixel size.
func (tc TileComputer) Resolution() Resolution { return tc.res }

// Limit returns the escape limit used for every pixel.
func (tc TileComputer) Limit() EscapeLimit { return tc.limit }

// Point returns the complex number pixel p maps to.
func (tc TileComputer) Point(p Pixel) complex64 {
	return complex(tc.xMap.Map(float32(p.X)), tc.yMap.Map(float32(p.Y)))
}

// At evaluates a single pixel.
func (tc TileComputer) At(p Pixel) EscapeResult {
	return EscapeTime(tc.Point(p), tc.limit)
}

// Pixels yields every pixel of the tile together with its escape result,
// column by column. The sequence is lazy and can be ranged over any number
// of times; consumers must not depend on the order.
func (tc TileComputer) Pixels() iter.Seq2[Pixel, EscapeResult] {
	return func(yield func(Pixel, EscapeResult) bool) {
		for x := range tc.res.Width {
			for y := range tc.res.Height {
				p := Pixel{X: x, Y: y}
				if !yield(p, tc.At(p)) {
					return
				}
			}
		}
	}
}

// Render evaluates rect at resolution res into a fresh PixelBuffer.
func Render(res Resolution, rect Rect[float32], limit EscapeLimit) (*PixelBuffer, error) {
	tc, err := NewTileComputer(res, rect, limit)
	if err != nil {
		return nil, err
	}
	buf := NewPixelBuffer(res)
	buf.Accumulate(tc.Pixels(), limit)
	return buf, nil
}
