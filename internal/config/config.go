// Package config holds the settings of an atlas run.
//
// Values come from command line flags, MANDEL_ATLAS_* environment variables
// and an optional config file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	mandel "github.com/marben/mandel_atlas"
	"github.com/marben/mandel_atlas/internal/sink"
)

// EnvPrefix prefixes the environment variable of every key,
// e.g. MANDEL_ATLAS_GRID.
const EnvPrefix = "MANDEL_ATLAS"

// Keys shared by flags, environment and config files.
const (
	KeyWidth     = "width"
	KeyHeight    = "height"
	KeyLimit     = "limit"
	KeyRegion    = "region"
	KeyDomain    = "domain"
	KeyGrid      = "grid"
	KeyThreshold = "threshold"
	KeyOut       = "out"
	KeyFormat    = "format"
	KeyWorkers   = "workers"
	KeyResume    = "resume"
	KeyListen    = "listen"
	KeyTUI       = "tui"
	KeyLogLevel  = "log-level"
)

var (
	ErrUnknownRegion = errors.New("config: unknown region")
	ErrBadDomain     = errors.New("config: bad domain")
	ErrOutOfRange    = errors.New("config: value out of range")
)

// Config is the immutable configuration of one run.
type Config struct {
	Resolution mandel.Resolution
	Limit      mandel.EscapeLimit
	Domain     mandel.Rect[float32]
	Grid       uint32
	// Threshold is the smallest max-min intensity spread a tile must
	// exceed to be stored.
	Threshold uint8
	OutDir    string
	Format    string
	// Workers is the number of tiles rendered at once; 0 means GOMAXPROCS.
	Workers  int
	Resume   bool
	Listen   string
	TUI      bool
	LogLevel slog.Level
}

// Default returns the settings of a full 128x128 atlas at 8192x8192 pixels per tile.
func Default() Config {
	return Config{
		Resolution: mandel.Resolution{Width: 8192, Height: 8192},
		Limit:      256,
		Domain:     mandel.FullSet,
		Grid:       128,
		Threshold:  20,
		OutDir:     "atlas",
		Format:     "png",
		LogLevel:   slog.LevelInfo,
	}
}

// Tiles returns the number of tiles in the atlas.
func (c Config) Tiles() int {
	return int(c.Grid) * int(c.Grid)
}

// Validate reports the first configuration error found.
func (c Config) Validate() error {
	if err := c.Resolution.Validate(); err != nil {
		return err
	}
	if c.Limit == 0 {
		return mandel.ErrZeroLimit
	}
	if c.Grid == 0 {
		return mandel.ErrZeroGrid
	}
	if err := c.Domain.Validate(); err != nil {
		return err
	}
	if c.OutDir == "" {
		return errors.New("config: empty output directory")
	}
	if _, err := sink.EncoderFor(c.Format); err != nil {
		return err
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d", ErrOutOfRange, c.Workers)
	}
	tiles, err := mandel.Partition(c.Domain, c.Grid)
	if err != nil {
		return err
	}
	if err := mandel.CheckNames(tiles); err != nil {
		return fmt.Errorf("grid %d over %s: %w", c.Grid, c.Domain, err)
	}
	return nil
}

// Flags registers every setting on fs with its default value.
func Flags(fs *pflag.FlagSet) {
	d := Default()
	fs.Uint32(KeyWidth, d.Resolution.Width, "tile width in pixels")
	fs.Uint32(KeyHeight, d.Resolution.Height, "tile height in pixels")
	fs.Uint(KeyLimit, uint(d.Limit), "escape iteration limit (1-65535)")
	fs.String(KeyRegion, "full", "named region to cover ("+strings.Join(Regions(), ", ")+")")
	fs.String(KeyDomain, "", "explicit domain xmin,xmax,ymin,ymax; overrides --region")
	fs.Uint32(KeyGrid, d.Grid, "tiles per side of the atlas")
	fs.Uint(KeyThreshold, uint(d.Threshold), "tiles whose intensity spread is not above this are skipped")
	fs.StringP(KeyOut, "o", d.OutDir, "output directory")
	fs.String(KeyFormat, d.Format, "output format ("+strings.Join(sink.Formats(), ", ")+")")
	fs.IntP(KeyWorkers, "j", 0, "tiles rendered in parallel (0 = GOMAXPROCS)")
	fs.Bool(KeyResume, false, "skip tiles whose file already exists")
	fs.String(KeyListen, "", "serve progress over http/websocket on this address, e.g. :8080")
	fs.Bool(KeyTUI, false, "show a terminal progress view")
	fs.String(KeyLogLevel, d.LogLevel.String(), "log level (debug, info, warn, error)")
}

// NewViper binds fs and the environment to a new viper instance and reads
// file if it is not empty.
func NewViper(fs *pflag.FlagSet, file string) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", file, err)
		}
	}
	return v, nil
}

// Load builds a validated Config from v.
func Load(v *viper.Viper) (Config, error) {
	c := Default()
	c.Resolution = mandel.Resolution{
		Width:  v.GetUint32(KeyWidth),
		Height: v.GetUint32(KeyHeight),
	}

	limit := v.GetUint(KeyLimit)
	if limit > math.MaxUint16 {
		return Config{}, fmt.Errorf("%w: limit %d", ErrOutOfRange, limit)
	}
	c.Limit = mandel.EscapeLimit(limit)

	threshold := v.GetUint(KeyThreshold)
	if threshold > math.MaxUint8 {
		return Config{}, fmt.Errorf("%w: threshold %d", ErrOutOfRange, threshold)
	}
	c.Threshold = uint8(threshold)

	if s := v.GetString(KeyDomain); s != "" {
		d, err := ParseDomain(s)
		if err != nil {
			return Config{}, err
		}
		c.Domain = d
	} else {
		d, err := Region(v.GetString(KeyRegion))
		if err != nil {
			return Config{}, err
		}
		c.Domain = d
	}

	c.Grid = v.GetUint32(KeyGrid)
	c.OutDir = v.GetString(KeyOut)
	c.Format = strings.ToLower(v.GetString(KeyFormat))
	c.Workers = v.GetInt(KeyWorkers)
	c.Resume = v.GetBool(KeyResume)
	c.Listen = v.GetString(KeyListen)
	c.TUI = v.GetBool(KeyTUI)
	if err := c.LogLevel.UnmarshalText([]byte(v.GetString(KeyLogLevel))); err != nil {
		return Config{}, fmt.Errorf("log level: %w", err)
	}

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// ParseDomain parses "xmin,xmax,ymin,ymax".
func ParseDomain(s string) (mandel.Rect[float32], error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return mandel.Rect[float32]{}, fmt.Errorf("%w: %q: want xmin,xmax,ymin,ymax", ErrBadDomain, s)
	}
	var f [4]float32
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return mandel.Rect[float32]{}, fmt.Errorf("%w: %q: %v", ErrBadDomain, s, err)
		}
		f[i] = float32(v)
	}
	r := mandel.NewRect(f[0], f[1], f[2], f[3])
	if err := r.Validate(); err != nil {
		return mandel.Rect[float32]{}, fmt.Errorf("%w: %v", ErrBadDomain, err)
	}
	return r, nil
}

// Region looks up a named landmark.
func Region(name string) (mandel.Rect[float32], error) {
	r, ok := mandel.Landmarks[strings.ToLower(name)]
	if !ok {
		return mandel.Rect[float32]{}, fmt.Errorf("%w: %q", ErrUnknownRegion, name)
	}
	return r, nil
}

// Regions returns the landmark names, sorted.
func Regions() []string {
	names := make([]string, 0, len(mandel.Landmarks))
	for name := range mandel.Landmarks {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
