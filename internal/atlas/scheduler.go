// Package atlas renders every tile of an atlas on a fixed pool of workers
// and hands the interesting ones to an image sink.
package atlas

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	mandel "github.com/marben/mandel_atlas"
	"github.com/marben/mandel_atlas/internal/config"
)

// ErrAlreadyRun is returned by a second call to Run.
var ErrAlreadyRun = errors.New("atlas: scheduler already run")

// Exister is implemented by sinks that can tell whether a tile is already
// stored. It is consulted when the configuration asks to resume.
type Exister interface {
	Exists(name string) bool
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger. By default the scheduler logs nothing.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l
		}
	}
}

// WithObserver registers fn to be called on every event. fn is called from
// worker goroutines and must be safe for concurrent use.
func WithObserver(fn func(Event)) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.observers = append(s.observers, fn)
		}
	}
}

// Scheduler renders the tiles of one atlas.
//
// Each worker pops the next unstarted tile, renders it into its own pixel
// buffer and decides whether to persist it; workers share nothing but the
// tile queue and the progress counters.
type Scheduler struct {
	cfg       config.Config
	sink      mandel.ImageSink
	log       *slog.Logger
	observers []func(Event)

	tiles   []mandel.AtlasTile
	workers int
	started atomic.Bool

	m        sync.Mutex
	next     int
	progress Progress
}

// New partitions the configured domain and prepares a scheduler.
// Configuration errors are reported here, before any tile is rendered.
func New(cfg config.Config, sink mandel.ImageSink, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errors.New("atlas: nil sink")
	}
	tiles, err := mandel.Partition(cfg.Domain, cfg.Grid)
	if err != nil {
		return nil, fmt.Errorf("partition: %w", err)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	s := &Scheduler{
		cfg:      cfg,
		sink:     sink,
		log:      slog.New(slog.DiscardHandler),
		tiles:    tiles,
		workers:  min(workers, len(tiles)),
		progress: Progress{Total: len(tiles)},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Tiles returns the atlas tiles in queue order.
func (s *Scheduler) Tiles() []mandel.AtlasTile {
	return s.tiles
}

// Workers returns the size of the worker pool.
func (s *Scheduler) Workers() int {
	return s.workers
}

// Progress returns a snapshot of the counters. Safe for concurrent use.
func (s *Scheduler) Progress() Progress {
	s.m.Lock()
	defer s.m.Unlock()
	return s.progress
}

// Run renders every tile and waits for all workers to finish.
//
// A tile whose sink fails is recorded as Failed and the run goes on; Run
// then returns the summary together with an error wrapping ErrTilesFailed.
// Canceling ctx stops workers from starting new tiles; tiles already being
// rendered complete first. The cause of ctx is part of the returned error
// only if the cancellation left tiles unrendered.
func (s *Scheduler) Run(ctx context.Context) (Summary, error) {
	if !s.started.CompareAndSwap(false, true) {
		return Summary{}, ErrAlreadyRun
	}
	start := time.Now()
	s.log.Info("atlas started",
		"tiles", len(s.tiles),
		"workers", s.workers,
		"resolution", s.cfg.Resolution,
		"limit", s.cfg.Limit,
		"domain", s.cfg.Domain)

	results := make([]Result, len(s.tiles))
	var g errgroup.Group
	for range s.workers {
		g.Go(func() error {
			return s.work(ctx, results)
		})
	}
	werr := g.Wait()

	sum := s.summarize(results, time.Since(start))
	s.log.Info("atlas finished",
		"persisted", sum.Persisted,
		"skipped", sum.Skipped,
		"existing", sum.Existing,
		"failed", sum.Failed,
		"canceled", sum.Canceled,
		"elapsed", sum.Elapsed)

	return sum, errors.Join(werr, sum.Err())
}

// work renders tiles until the queue is empty or ctx is canceled.
// results[i] is written only by the worker that popped tile i.
// It returns the cause of ctx if cancellation left tiles unrendered.
func (s *Scheduler) work(ctx context.Context, results []Result) error {
	s.incActiveWorkers()
	defer s.decActiveWorkers()

	for {
		if ctx.Err() != nil {
			if s.pending() {
				return context.Cause(ctx)
			}
			return nil
		}
		i, ok := s.popTile()
		if !ok {
			return nil
		}
		tile := s.tiles[i]
		s.emit(Event{Kind: TileStarted, Tile: tile, Progress: s.Progress()})
		results[i] = s.renderTile(ctx, tile)
		s.tileFinished(results[i])
		if results[i].Outcome == Canceled {
			return context.Cause(ctx)
		}
	}
}

func (s *Scheduler) pending() bool {
	s.m.Lock()
	defer s.m.Unlock()
	return s.next < len(s.tiles)
}

func (s *Scheduler) popTile() (int, bool) {
	s.m.Lock()
	defer s.m.Unlock()
	if s.next >= len(s.tiles) {
		return 0, false
	}
	i := s.next
	s.next++
	return i, true
}

func (s *Scheduler) renderTile(ctx context.Context, tile mandel.AtlasTile) Result {
	start := time.Now()
	name := mandel.TileName(tile.Rect)
	res := Result{Tile: tile, Name: name}
	log := s.log.With("tile", fmt.Sprintf("%d,%d", tile.GridX, tile.GridY), "name", name)

	if s.cfg.Resume {
		if ex, ok := s.sink.(Exister); ok && ex.Exists(name) {
			log.Debug("tile exists")
			res.Outcome = Existing
			return res
		}
	}

	log.Debug("starting tile")
	buf, err := mandel.Render(s.cfg.Resolution, tile.Rect, s.cfg.Limit)
	if err != nil {
		res.Outcome, res.Err = Failed, fmt.Errorf("render: %w", err)
		res.Elapsed = time.Since(start)
		log.Error("tile failed", "err", res.Err)
		return res
	}
	res.Spread = buf.Spread()

	if !buf.Interesting(s.cfg.Threshold) {
		res.Outcome = Skipped
		res.Elapsed = time.Since(start)
		log.Info("tile skipped", "range", res.Spread, "elapsed", res.Elapsed)
		return res
	}

	err = s.sink.Persist(ctx, buf, name)
	res.Elapsed = time.Since(start)
	switch {
	case err == nil:
		res.Outcome = Persisted
		log.Info("tile persisted", "range", res.Spread, "elapsed", res.Elapsed)
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		res.Outcome = Canceled
		log.Debug("tile canceled")
	default:
		res.Outcome, res.Err = Failed, err
		log.Error("tile failed", "range", res.Spread, "err", err)
	}
	return res
}

func (s *Scheduler) tileFinished(r Result) {
	s.m.Lock()
	s.progress.count(r.Outcome)
	p := s.progress
	s.m.Unlock()

	s.emit(Event{Kind: TileFinished, Tile: r.Tile, Result: r, Progress: p})
}

func (s *Scheduler) incActiveWorkers() {
	s.m.Lock()
	s.progress.Workers++
	p := s.progress
	s.m.Unlock()

	s.log.Debug("worker started", "workers", p.Workers)
	s.emit(Event{Kind: WorkersChanged, Progress: p})
}

func (s *Scheduler) decActiveWorkers() {
	s.m.Lock()
	s.progress.Workers--
	p := s.progress
	s.m.Unlock()

	s.log.Debug("worker stopped", "workers", p.Workers)
	s.emit(Event{Kind: WorkersChanged, Progress: p})
}

func (s *Scheduler) emit(ev Event) {
	for _, fn := range s.observers {
		fn(ev)
	}
}

func (s *Scheduler) summarize(results []Result, elapsed time.Duration) Summary {
	sum := Summary{
		Progress: s.Progress(),
		Elapsed:  elapsed,
	}
	for i, r := range results {
		switch r.Outcome {
		case Canceled:
			sum.Canceled++
		case Failed:
			if r.Name == "" {
				r.Tile, r.Name = s.tiles[i], mandel.TileName(s.tiles[i].Rect)
			}
			sum.Failures = append(sum.Failures, r)
		}
	}
	return sum
}
