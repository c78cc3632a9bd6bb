package atlas

import (
	"errors"
	"fmt"
	"time"

	mandel "github.com/marben/mandel_atlas"
)

// ErrTilesFailed is returned by Run when at least one tile could not be
// stored. The other tiles are still rendered.
var ErrTilesFailed = errors.New("atlas: tiles failed")

// maxReportedFailures caps the per-tile errors joined into Summary.Err.
const maxReportedFailures = 10

// Outcome is what happened to one tile.
type Outcome int

const (
	// Canceled tiles were never started because the run was canceled.
	Canceled Outcome = iota
	// Persisted tiles were handed to the sink successfully.
	Persisted
	// Skipped tiles were rendered but too flat to be worth storing.
	Skipped
	// Existing tiles were already stored by an earlier run.
	Existing
	// Failed tiles could not be rendered or stored.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Canceled:
		return "canceled"
	case Persisted:
		return "persisted"
	case Skipped:
		return "skipped"
	case Existing:
		return "existing"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// Result describes one finished tile.
type Result struct {
	Tile    mandel.AtlasTile
	Name    string
	Outcome Outcome
	// Spread is max-min of the tile's intensities; zero unless rendered.
	Spread  uint8
	Err     error
	Elapsed time.Duration
}

// Progress counts tiles by state.
type Progress struct {
	Total     int `json:"total"`
	Done      int `json:"done"`
	Persisted int `json:"persisted"`
	Skipped   int `json:"skipped"`
	Existing  int `json:"existing"`
	Failed    int `json:"failed"`
	Workers   int `json:"workers"`
}

// Fraction returns the finished share of the atlas, in [0, 1].
func (p Progress) Fraction() float64 {
	if p.Total == 0 {
		return 1
	}
	return float64(p.Done) / float64(p.Total)
}

func (p *Progress) count(o Outcome) {
	switch o {
	case Persisted:
		p.Persisted++
	case Skipped:
		p.Skipped++
	case Existing:
		p.Existing++
	case Failed:
		p.Failed++
	default:
		return
	}
	p.Done++
}

// Summary is the final report of a run.
type Summary struct {
	Progress
	Canceled int
	Elapsed  time.Duration
	Failures []Result
}

// Err returns nil if no tile failed. Otherwise it wraps ErrTilesFailed and
// the errors of the first few failed tiles.
func (s Summary) Err() error {
	if len(s.Failures) == 0 {
		return nil
	}
	errs := []error{fmt.Errorf("%w: %d of %d", ErrTilesFailed, len(s.Failures), s.Total)}
	for i, r := range s.Failures {
		if i == maxReportedFailures {
			errs = append(errs, fmt.Errorf("... and %d more", len(s.Failures)-i))
			break
		}
		errs = append(errs, fmt.Errorf("tile %s: %w", r.Name, r.Err))
	}
	return errors.Join(errs...)
}
