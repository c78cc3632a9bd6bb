// Package sink stores rendered tiles as 8-bit grayscale image files.
package sink

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"slices"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
)

// ErrUnknownFormat is returned by EncoderFor for unsupported format names.
var ErrUnknownFormat = errors.New("sink: unknown image format")

// Encoder writes a grayscale image in one container format.
// Every encoder keeps the 0-255 samples unchanged.
type Encoder interface {
	// Ext is the file extension, including the leading dot.
	Ext() string
	Encode(w io.Writer, img *image.Gray) error
}

// PNG encodes 8-bit grayscale PNG.
type PNG struct {
	Level png.CompressionLevel
}

func (PNG) Ext() string { return ".png" }

func (e PNG) Encode(w io.Writer, img *image.Gray) error {
	enc := png.Encoder{CompressionLevel: e.Level}
	return enc.Encode(w, img)
}

// TIFF encodes deflate-compressed 8-bit grayscale TIFF.
type TIFF struct{}

func (TIFF) Ext() string { return ".tiff" }

func (TIFF) Encode(w io.Writer, img *image.Gray) error {
	return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate, Predictor: true})
}

// BMP encodes an 8-bit indexed BMP. The format has no true grayscale mode,
// so the file carries a 256 entry palette mapping index i to gray level i;
// the stored indices are the intensities unchanged. Use PNG, TIFF or zst
// when a palette-free file is required.
type BMP struct{}

func (BMP) Ext() string { return ".bmp" }

func (BMP) Encode(w io.Writer, img *image.Gray) error {
	return bmp.Encode(w, img)
}

var encoders = map[string]Encoder{
	"png":  PNG{},
	"tiff": TIFF{},
	"bmp":  BMP{},
	"zst":  Raw{},
}

// EncoderFor returns the encoder registered under format.
func EncoderFor(format string) (Encoder, error) {
	enc, ok := encoders[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q (want one of %v)", ErrUnknownFormat, format, Formats())
	}
	return enc, nil
}

// Formats lists the accepted format names, sorted.
func Formats() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
