package mandel

import (
	"image"
	"iter"
)

// PixelBuffer is a single channel raster holding one byte of intensity per
// pixel, row-major, at index x + y*width.
//
// A buffer is written by exactly one rendering job; once handed to a sink it
// must be treated as read-only.
type PixelBuffer struct {
	res Resolution
	pix []uint8
}

// NewPixelBuffer returns an all-black buffer of the given size.
func NewPixelBuffer(res Resolution) *PixelBuffer {
	return &PixelBuffer{
		res: res,
		pix: make([]uint8, res.Pixels()),
	}
}

// Resolution returns the buffer size.
func (b *PixelBuffer) Resolution() Resolution {
	return b.res
}

// Pix returns the raw intensities.
func (b *PixelBuffer) Pix() []uint8 {
	return b.pix
}

// Set writes v at (x, y). Writes whose index falls past the end of the
// buffer are dropped.
func (b *PixelBuffer) Set(x, y uint32, v uint8) {
	i := uint64(x) + uint64(y)*uint64(b.res.Width)
	if i >= uint64(len(b.pix)) {
		return
	}
	b.pix[i] = v
}

// At returns the intensity at (x, y), or 0 outside the buffer.
func (b *PixelBuffer) At(x, y uint32) uint8 {
	i := uint64(x) + uint64(y)*uint64(b.res.Width)
	if i >= uint64(len(b.pix)) {
		return 0
	}
	return b.pix[i]
}

// Intensity converts an escape result into a pixel value.
//
// Bounded points are black. Escaped points are 255 - floor(n*255/limit):
// the longer the orbit survives, the darker the pixel.
func Intensity(r EscapeResult, limit EscapeLimit) uint8 {
	if !r.Escaped || limit == 0 {
		return 0
	}
	mul := float32(255) / float32(limit)
	v := float32(r.Iter) * mul
	if v >= 255 {
		return 0
	}
	return 255 - uint8(v)
}

// Accumulate writes the intensity of every element of seq.
func (b *PixelBuffer) Accumulate(seq iter.Seq2[Pixel, EscapeResult], limit EscapeLimit) {
	for p, r := range seq {
		b.Set(p.X, p.Y, Intensity(r, limit))
	}
}

// Range returns the smallest and largest intensity in the buffer.
// An empty buffer reports (0, 0).
func (b *PixelBuffer) Range() (lo, hi uint8) {
	if len(b.pix) == 0 {
		return 0, 0
	}
	lo, hi = b.pix[0], b.pix[0]
	for _, v := range b.pix[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	return lo, hi
}

// Spread returns max - min over all pixels.
func (b *PixelBuffer) Spread() uint8 {
	lo, hi := b.Range()
	return hi - lo
}

// Interesting reports whether the buffer's spread exceeds threshold.
// Tiles that are a single flat shade are not worth storing.
func (b *PixelBuffer) Interesting(threshold uint8) bool {
	return b.Spread() > threshold
}

// Gray wraps the buffer as an *image.Gray without copying.
func (b *PixelBuffer) Gray() *image.Gray {
	return &image.Gray{
		Pix:    b.pix,
		Stride: int(b.res.Width),
		Rect:   image.Rect(0, 0, int(b.res.Width), int(b.res.Height)),
	}
}
