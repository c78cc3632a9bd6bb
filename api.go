package mandel

import "context"

// ImageSink stores rendered tiles.
//
// Persist encodes buf as an 8-bit single channel image and writes it to a
// location derived from name. The sink must not modify buf.
type ImageSink interface {
	Persist(ctx context.Context, buf *PixelBuffer, name string) error
}
