package sink

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	mandel "github.com/marben/mandel_atlas"
)

// Dir is an image sink writing one file per tile into a directory.
//
// Files are written to a temporary name first and renamed into place, so a
// tile file is either complete or absent.
type Dir struct {
	dir string
	enc Encoder
}

var _ mandel.ImageSink = (*Dir)(nil)

// NewDir creates dir (with parents) and returns a sink writing into it.
func NewDir(dir string, enc Encoder) (*Dir, error) {
	if enc == nil {
		return nil, errors.New("sink: nil encoder")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Dir{dir: dir, enc: enc}, nil
}

// Root returns the output directory.
func (d *Dir) Root() string {
	return d.dir
}

// Path returns the file a tile called name is stored in.
func (d *Dir) Path(name string) string {
	return filepath.Join(d.dir, name+d.enc.Ext())
}

// Exists reports whether a tile called name has already been stored.
func (d *Dir) Exists(name string) bool {
	_, err := os.Stat(d.Path(name))
	return err == nil
}

// Persist implements mandel.ImageSink.
func (d *Dir) Persist(ctx context.Context, buf *mandel.PixelBuffer, name string) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	f, err := os.CreateTemp(d.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create %s: %w", name, err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	w := bufio.NewWriterSize(f, 1<<20)
	if err := d.enc.Encode(w, buf.Gray()); err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmp, d.Path(name)); err != nil {
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
