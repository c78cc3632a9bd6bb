package atlas

import mandel "github.com/marben/mandel_atlas"

// EventKind tells what an Event reports.
type EventKind int

const (
	TileStarted EventKind = iota
	TileFinished
	WorkersChanged
)

func (k EventKind) String() string {
	switch k {
	case TileStarted:
		return "started"
	case TileFinished:
		return "finished"
	case WorkersChanged:
		return "workers"
	}
	return "unknown"
}

// Event is delivered to observers as the run progresses.
// Result is set only for TileFinished.
type Event struct {
	Kind     EventKind
	Tile     mandel.AtlasTile
	Result   Result
	Progress Progress
}
