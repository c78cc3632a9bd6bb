package atlas

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	mandel "github.com/marben/mandel_atlas"
	"github.com/marben/mandel_atlas/internal/config"
)

// memSink keeps persisted tiles in memory.
type memSink struct {
	mu      sync.Mutex
	tiles   map[string][]uint8
	fail    func(name string) error
	exists  func(name string) bool
	persist func(ctx context.Context)
}

func newMemSink() *memSink {
	return &memSink{tiles: make(map[string][]uint8)}
}

func (m *memSink) Persist(ctx context.Context, buf *mandel.PixelBuffer, name string) error {
	if m.persist != nil {
		m.persist(ctx)
	}
	if m.fail != nil {
		if err := m.fail(name); err != nil {
			return err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tiles[name]; ok {
		return errors.New("tile persisted twice: " + name)
	}
	m.tiles[name] = append([]uint8(nil), buf.Pix()...)
	return nil
}

func (m *memSink) Exists(name string) bool {
	return m.exists != nil && m.exists(name)
}

func (m *memSink) names() map[string]bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]bool, len(m.tiles))
	for name := range m.tiles {
		out[name] = true
	}
	return out
}

func testConfig() config.Config {
	c := config.Default()
	c.Resolution = mandel.Resolution{Width: 16, Height: 16}
	c.Limit = 32
	c.Grid = 4
	c.Workers = 3
	return c
}

func TestRunPersistsInterestingTiles(t *testing.T) {
	cfg := testConfig()
	sink := newMemSink()
	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := make(map[string]bool)
	for _, tile := range s.Tiles() {
		buf, err := mandel.Render(cfg.Resolution, tile.Rect, cfg.Limit)
		if err != nil {
			t.Fatal(err)
		}
		if buf.Interesting(cfg.Threshold) {
			want[mandel.TileName(tile.Rect)] = true
		}
	}
	got := sink.names()
	if len(got) != len(want) {
		t.Errorf("persisted %d tiles, want %d", len(got), len(want))
	}
	for name := range want {
		if !got[name] {
			t.Errorf("tile %s not persisted", name)
		}
	}

	if sum.Total != 16 || sum.Done != 16 || sum.Persisted != len(want) || sum.Skipped != 16-len(want) {
		t.Errorf("summary = %+v", sum)
	}
	if sum.Canceled != 0 || sum.Failed != 0 || sum.Err() != nil {
		t.Errorf("summary = %+v, err %v", sum, sum.Err())
	}
	if sum.Fraction() != 1 {
		t.Errorf("Fraction() = %v", sum.Fraction())
	}
}

func TestRunSkipsEverythingAtMaxThreshold(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 255
	sink := newMemSink()
	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.names()) != 0 || sum.Skipped != cfg.Tiles() {
		t.Errorf("summary = %+v, persisted %d", sum, len(sink.names()))
	}
}

func TestRunSinkFailureIsLocal(t *testing.T) {
	cfg := testConfig()
	cfg.Threshold = 0
	var calls atomic.Int32
	sink := newMemSink()
	sink.fail = func(name string) error {
		if calls.Add(1)%2 == 0 {
			return errors.New("disk full")
		}
		return nil
	}
	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(context.Background())
	if !errors.Is(err, ErrTilesFailed) {
		t.Fatalf("Run error = %v, want ErrTilesFailed", err)
	}
	if !strings.Contains(err.Error(), "disk full") {
		t.Errorf("error %q does not mention the sink error", err)
	}

	persisted := len(sink.names())
	if sum.Failed == 0 || sum.Failed != len(sum.Failures) {
		t.Errorf("Failed = %d, Failures = %d", sum.Failed, len(sum.Failures))
	}
	if sum.Persisted != persisted {
		t.Errorf("Persisted = %d, sink holds %d", sum.Persisted, persisted)
	}
	if sum.Done != cfg.Tiles() || sum.Persisted+sum.Skipped+sum.Failed != cfg.Tiles() {
		t.Errorf("summary = %+v", sum)
	}
	for _, f := range sum.Failures {
		if f.Outcome != Failed || f.Err == nil || f.Name == "" {
			t.Errorf("failure = %+v", f)
		}
	}
}

func TestRunCanceledBeforeStart(t *testing.T) {
	sink := newMemSink()
	s, err := New(testConfig(), sink)
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	sum, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if sum.Canceled != 16 || sum.Done != 0 || len(sink.names()) != 0 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunCanceledMidway(t *testing.T) {
	cfg := testConfig()
	cfg.Grid = 2
	cfg.Workers = 1
	cfg.Threshold = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newMemSink()
	sink.persist = func(context.Context) { cancel() }

	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Run error = %v", err)
	}
	if sum.Persisted != 1 || sum.Canceled != 3 || len(sink.names()) != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunCanceledAfterLastTile(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s, err := New(testConfig(), newMemSink(), WithObserver(func(ev Event) {
		if ev.Kind == TileFinished && ev.Progress.Done == ev.Progress.Total {
			cancel()
		}
	}))
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(ctx)
	if err != nil {
		t.Fatalf("Run error = %v, want nil once every tile is done", err)
	}
	if sum.Canceled != 0 || sum.Done != 16 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunCanceledKeepsFailures(t *testing.T) {
	cfg := testConfig()
	cfg.Grid = 2
	cfg.Workers = 1
	cfg.Threshold = 0

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newMemSink()
	sink.persist = func(context.Context) { cancel() }
	sink.fail = func(string) error { return errors.New("disk full") }

	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(ctx)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrTilesFailed) {
		t.Fatalf("Run error = %v, want both canceled and failed", err)
	}
	if sum.Failed != 1 || sum.Canceled != 3 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunNameCollisionWritesNothing(t *testing.T) {
	cfg := testConfig()
	cfg.Domain = mandel.SpiralMinibrot
	cfg.Grid = 128
	sink := newMemSink()
	if _, err := New(cfg, sink); !errors.Is(err, mandel.ErrNameCollision) {
		t.Fatalf("New error = %v, want %v", err, mandel.ErrNameCollision)
	}
	if len(sink.names()) != 0 {
		t.Error("tiles persisted despite colliding names")
	}
}

func TestRunResume(t *testing.T) {
	cfg := testConfig()
	cfg.Resume = true
	sink := newMemSink()
	sink.exists = func(name string) bool { return true }
	sink.fail = func(name string) error {
		t.Errorf("Persist(%s) called for an existing tile", name)
		return nil
	}
	s, err := New(cfg, sink)
	if err != nil {
		t.Fatal(err)
	}
	sum, err := s.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if sum.Existing != cfg.Tiles() || sum.Done != cfg.Tiles() {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunTwice(t *testing.T) {
	s, err := New(testConfig(), newMemSink())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); !errors.Is(err, ErrAlreadyRun) {
		t.Errorf("second Run = %v", err)
	}
}

func TestRunObserver(t *testing.T) {
	cfg := testConfig()
	var (
		mu       sync.Mutex
		started  int
		finished = make(map[[2]uint32]int)
		last     Progress
	)
	obs := func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Kind {
		case TileStarted:
			started++
		case TileFinished:
			finished[[2]uint32{ev.Tile.GridX, ev.Tile.GridY}]++
			if ev.Result.Tile != ev.Tile {
				t.Errorf("event tile %v, result tile %v", ev.Tile, ev.Result.Tile)
			}
		}
		if ev.Progress.Done > last.Done {
			last = ev.Progress
		}
	}
	s, err := New(cfg, newMemSink(), WithObserver(obs))
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if started != cfg.Tiles() || len(finished) != cfg.Tiles() {
		t.Errorf("started %d, finished %d, want %d", started, len(finished), cfg.Tiles())
	}
	for idx, n := range finished {
		if n != 1 {
			t.Errorf("tile %v finished %d times", idx, n)
		}
	}
	if last.Done != cfg.Tiles() {
		t.Errorf("last progress = %+v", last)
	}
	if p := s.Progress(); p.Workers != 0 {
		t.Errorf("workers after Run = %d", p.Workers)
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	tests := []struct {
		mut  func(*config.Config)
		want error
	}{
		{func(c *config.Config) { c.Resolution.Width = 0 }, mandel.ErrZeroResolution},
		{func(c *config.Config) { c.Limit = 0 }, mandel.ErrZeroLimit},
		{func(c *config.Config) { c.Grid = 0 }, mandel.ErrZeroGrid},
		{func(c *config.Config) { c.Domain.X.Max = c.Domain.X.Min }, mandel.ErrInvalidRect},
		{func(c *config.Config) { c.Domain, c.Grid = mandel.TripleSpiral, 16 }, mandel.ErrNameCollision},
	}
	for _, tt := range tests {
		cfg := testConfig()
		tt.mut(&cfg)
		if _, err := New(cfg, newMemSink()); !errors.Is(err, tt.want) {
			t.Errorf("New error = %v, want %v", err, tt.want)
		}
	}
	if _, err := New(testConfig(), nil); err == nil {
		t.Error("New with nil sink succeeded")
	}
}

func TestNewWorkerCount(t *testing.T) {
	cfg := testConfig()
	cfg.Grid = 1
	cfg.Workers = 8
	s, err := New(cfg, newMemSink())
	if err != nil {
		t.Fatal(err)
	}
	if s.Workers() != 1 {
		t.Errorf("Workers() = %d, want 1 for a single tile", s.Workers())
	}
}

func TestSummaryErrCapsFailures(t *testing.T) {
	var sum Summary
	sum.Total = 50
	for range 30 {
		sum.Failures = append(sum.Failures, Result{Name: "t", Outcome: Failed, Err: errors.New("x")})
	}
	err := sum.Err()
	if !errors.Is(err, ErrTilesFailed) {
		t.Fatalf("Err() = %v", err)
	}
	if n := strings.Count(err.Error(), "tile t:"); n != maxReportedFailures {
		t.Errorf("reported %d tile errors, want %d", n, maxReportedFailures)
	}
	if !strings.Contains(err.Error(), "and 20 more") {
		t.Errorf("Err() = %q", err)
	}
}
