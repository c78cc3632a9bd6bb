package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"

	mandel "github.com/marben/mandel_atlas"
	"github.com/marben/mandel_atlas/internal/sink"
)

func load(t *testing.T, file string, args ...string) (Config, error) {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	Flags(fs)
	if err := fs.Parse(args); err != nil {
		t.Fatalf("parse %v: %v", args, err)
	}
	v, err := NewViper(fs, file)
	if err != nil {
		t.Fatalf("NewViper: %v", err)
	}
	return Load(v)
}

func TestLoadDefaults(t *testing.T) {
	c, err := load(t, "")
	if err != nil {
		t.Fatal(err)
	}
	if c != Default() {
		t.Errorf("Load() = %+v, want %+v", c, Default())
	}
	if c.Tiles() != 128*128 {
		t.Errorf("Tiles() = %d", c.Tiles())
	}
}

func TestLoadFlags(t *testing.T) {
	c, err := load(t, "",
		"--width", "64", "--height", "32", "--limit", "1000", "--grid", "4",
		"--threshold", "0", "-o", "out", "--format", "TIFF", "-j", "3",
		"--resume", "--region", "seahorse-valley", "--log-level", "debug")
	if err != nil {
		t.Fatal(err)
	}
	want := Config{
		Resolution: mandel.Resolution{Width: 64, Height: 32},
		Limit:      1000,
		Domain:     mandel.SeahorseValley,
		Grid:       4,
		Threshold:  0,
		OutDir:     "out",
		Format:     "tiff",
		Workers:    3,
		Resume:     true,
		LogLevel:   slog.LevelDebug,
	}
	if c != want {
		t.Errorf("Load() = %+v, want %+v", c, want)
	}
}

func TestLoadEnvAndFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "atlas.yaml")
	yaml := "grid: 16\nformat: zst\ndomain: \"-1,1,-0.5,0.5\"\n"
	if err := os.WriteFile(file, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("MANDEL_ATLAS_GRID", "8")
	t.Setenv("MANDEL_ATLAS_LOG_LEVEL", "warn")

	c, err := load(t, file, "--limit", "64")
	if err != nil {
		t.Fatal(err)
	}
	if c.Grid != 8 {
		t.Errorf("Grid = %d, want env value 8", c.Grid)
	}
	if c.Format != "zst" {
		t.Errorf("Format = %q, want file value zst", c.Format)
	}
	if c.Domain != mandel.NewRect[float32](-1, 1, -0.5, 0.5) {
		t.Errorf("Domain = %s", c.Domain)
	}
	if c.Limit != 64 {
		t.Errorf("Limit = %d, want flag value 64", c.Limit)
	}
	if c.LogLevel != slog.LevelWarn {
		t.Errorf("LogLevel = %v", c.LogLevel)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		args []string
		want error
	}{
		{[]string{"--width", "0"}, mandel.ErrZeroResolution},
		{[]string{"--height", "0"}, mandel.ErrZeroResolution},
		{[]string{"--limit", "0"}, mandel.ErrZeroLimit},
		{[]string{"--limit", "70000"}, ErrOutOfRange},
		{[]string{"--threshold", "256"}, ErrOutOfRange},
		{[]string{"--grid", "0"}, mandel.ErrZeroGrid},
		{[]string{"--region", "atlantis"}, ErrUnknownRegion},
		{[]string{"--domain", "1,1,0,1"}, ErrBadDomain},
		{[]string{"--domain", "1,2,3"}, ErrBadDomain},
		{[]string{"--domain", "a,b,c,d"}, ErrBadDomain},
		{[]string{"--format", "gif"}, sink.ErrUnknownFormat},
		{[]string{"--workers=-1"}, ErrOutOfRange},
		{[]string{"--region", "triple-spiral"}, mandel.ErrNameCollision},
		{[]string{"--domain", "0,0.01,0,0.01", "--grid", "32"}, mandel.ErrNameCollision},
	}
	for _, tt := range tests {
		if _, err := load(t, "", tt.args...); !errors.Is(err, tt.want) {
			t.Errorf("Load(%v) error = %v, want %v", tt.args, err, tt.want)
		}
	}
}

func TestParseDomain(t *testing.T) {
	r, err := ParseDomain(" -2, 1 ,-1.5,1.5")
	if err != nil {
		t.Fatal(err)
	}
	if r != mandel.FullSet {
		t.Errorf("ParseDomain = %s", r)
	}
	for _, s := range []string{"NaN,1,0,1", "0,Inf,0,1", "1,0,0,1"} {
		if _, err := ParseDomain(s); !errors.Is(err, ErrBadDomain) {
			t.Errorf("ParseDomain(%q) = %v", s, err)
		}
	}
}

func TestRegions(t *testing.T) {
	for _, name := range Regions() {
		r, err := Region(name)
		if err != nil {
			t.Fatalf("Region(%q): %v", name, err)
		}
		if err := r.Validate(); err != nil {
			t.Errorf("region %q: %v", name, err)
		}
	}
}
