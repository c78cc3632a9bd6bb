package sink

import (
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// rawMagic starts every raw tile file.
var rawMagic = [4]byte{'L', '8', 'Z', 1}

// ErrBadRaw is returned when decoding something that is not a raw tile.
var ErrBadRaw = errors.New("sink: not a raw L8 tile")

// Raw stores the samples as they are: a 12 byte header (magic, big endian
// width and height) followed by a zstd frame of width*height bytes.
// It is the cheapest format to write and the easiest to post-process.
type Raw struct{}

func (Raw) Ext() string { return ".l8.zst" }

var zstdEncPool = sync.Pool{
	New: func() any {
		enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest))
		return enc
	},
}

var zstdDecPool = sync.Pool{
	New: func() any {
		dec, _ := zstd.NewReader(nil)
		return dec
	},
}

func (Raw) Encode(w io.Writer, img *image.Gray) error {
	b := img.Bounds()
	var hdr [12]byte
	copy(hdr[:4], rawMagic[:])
	binary.BigEndian.PutUint32(hdr[4:8], uint32(b.Dx()))
	binary.BigEndian.PutUint32(hdr[8:12], uint32(b.Dy()))
	if _, err := w.Write(hdr[:]); err != nil {
		return err
	}

	enc := zstdEncPool.Get().(*zstd.Encoder)
	defer zstdEncPool.Put(enc)
	enc.Reset(w)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		if _, err := enc.Write(img.Pix[off : off+b.Dx()]); err != nil {
			_ = enc.Close()
			return fmt.Errorf("zstd encode: %w", err)
		}
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("zstd encode: %w", err)
	}
	return nil
}

// DecodeRaw reads a tile written by Raw.
func DecodeRaw(r io.Reader) (*image.Gray, error) {
	var hdr [12]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrBadRaw, err)
	}
	if [4]byte(hdr[:4]) != rawMagic {
		return nil, fmt.Errorf("%w: magic %x", ErrBadRaw, hdr[:4])
	}
	w := binary.BigEndian.Uint32(hdr[4:8])
	h := binary.BigEndian.Uint32(hdr[8:12])
	if w == 0 || h == 0 || uint64(w)*uint64(h) > 1<<34 {
		return nil, fmt.Errorf("%w: size %dx%d", ErrBadRaw, w, h)
	}

	dec := zstdDecPool.Get().(*zstd.Decoder)
	defer zstdDecPool.Put(dec)
	if err := dec.Reset(r); err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	img := image.NewGray(image.Rect(0, 0, int(w), int(h)))
	if _, err := io.ReadFull(dec, img.Pix); err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return img, nil
}
