// Package monitor serves the progress of an atlas run over HTTP.
//
//	/        the output directory, so persisted tiles can be browsed
//	/status  the current progress as JSON
//	/ws      a websocket pushing one JSON message per scheduler event
package monitor

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/marben/mandel_atlas/internal/atlas"
)

// clientBuffer is how many messages a slow websocket client may lag behind
// before messages to it are dropped.
const clientBuffer = 64

const writeTimeout = 5 * time.Second

// Message is what websocket clients receive.
type Message struct {
	Kind     string         `json:"kind"`
	Tile     *Tile          `json:"tile,omitempty"`
	Progress atlas.Progress `json:"progress"`
}

// Tile describes the tile an event is about.
type Tile struct {
	GridX     uint32     `json:"gridX"`
	GridY     uint32     `json:"gridY"`
	Rect      [4]float32 `json:"rect"`
	Name      string     `json:"name,omitempty"`
	Outcome   string     `json:"outcome,omitempty"`
	Spread    uint8      `json:"spread"`
	Error     string     `json:"error,omitempty"`
	ElapsedMS int64      `json:"elapsedMs"`
}

// Monitor fans scheduler events out to websocket clients and keeps the
// latest progress for /status.
type Monitor struct {
	root string
	log  *slog.Logger

	mu       sync.Mutex
	progress atlas.Progress
	clients  map[chan Message]struct{}
}

// New returns a monitor for an atlas of total tiles stored under root.
func New(total int, root string, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Monitor{
		root:     root,
		log:      log,
		progress: atlas.Progress{Total: total},
		clients:  make(map[chan Message]struct{}),
	}
}

// Handler returns the monitor's HTTP routes.
func (m *Monitor) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.websocketHandler)
	mux.HandleFunc("/status", m.statusHandler)
	mux.Handle("/", http.FileServer(http.Dir(m.root)))
	return mux
}

// Serve listens on addr until ctx is done.
func (m *Monitor) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	m.log.Info("monitor listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Publish records ev and forwards it to every connected client.
// It never blocks: clients that fall behind lose messages.
// Publish has the signature of an atlas observer.
func (m *Monitor) Publish(ev atlas.Event) {
	msg := Message{Kind: ev.Kind.String(), Progress: ev.Progress}
	if ev.Kind != atlas.WorkersChanged {
		msg.Tile = tileOf(ev)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if ev.Progress.Done >= m.progress.Done {
		m.progress = ev.Progress
	}
	for ch := range m.clients {
		select {
		case ch <- msg:
		default:
		}
	}
}

// Progress returns the latest progress seen by Publish.
func (m *Monitor) Progress() atlas.Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.progress
}

func tileOf(ev atlas.Event) *Tile {
	r := ev.Tile.Rect
	t := &Tile{
		GridX: ev.Tile.GridX,
		GridY: ev.Tile.GridY,
		Rect:  [4]float32{r.X.Min, r.X.Max, r.Y.Min, r.Y.Max},
	}
	if ev.Kind == atlas.TileFinished {
		t.Name = ev.Result.Name
		t.Outcome = ev.Result.Outcome.String()
		t.Spread = ev.Result.Spread
		t.ElapsedMS = ev.Result.Elapsed.Milliseconds()
		if ev.Result.Err != nil {
			t.Error = ev.Result.Err.Error()
		}
	}
	return t
}

func (m *Monitor) subscribe() chan Message {
	ch := make(chan Message, clientBuffer)
	m.mu.Lock()
	m.clients[ch] = struct{}{}
	m.mu.Unlock()
	return ch
}

func (m *Monitor) unsubscribe(ch chan Message) {
	m.mu.Lock()
	delete(m.clients, ch)
	m.mu.Unlock()
}

func (m *Monitor) statusHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(m.Progress()); err != nil {
		m.log.Warn("status", "err", err)
	}
}

// websocketHandler sends the current progress, then every event until the
// client goes away.
func (m *Monitor) websocketHandler(w http.ResponseWriter, r *http.Request) {
	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		m.log.Warn("websocket accept", "err", err)
		return
	}
	defer c.CloseNow()

	ch := m.subscribe()
	defer m.unsubscribe(ch)
	m.log.Debug("websocket client connected", "remote", r.RemoteAddr)

	// we never expect messages from the client; CloseRead handles pings
	// and cancels ctx when the connection drops
	ctx := c.CloseRead(r.Context())

	if err := m.write(ctx, c, Message{Kind: "status", Progress: m.Progress()}); err != nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-ch:
			if err := m.write(ctx, c, msg); err != nil {
				m.log.Debug("websocket write", "remote", r.RemoteAddr, "err", err)
				return
			}
		}
	}
}

func (m *Monitor) write(ctx context.Context, c *websocket.Conn, msg Message) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, msg)
}
