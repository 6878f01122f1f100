package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	eventBuffer = 32
	writeWait   = 10 * time.Second
)

// RunEvent is pushed to stream clients when a sweep, backtest or
// simulation finishes.
type RunEvent struct {
	Type       string    `json:"type"`
	Kind       string    `json:"kind,omitempty"`
	Result     string    `json:"result,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// RunEventHub fans finished-run notifications out to websocket clients.
// It implements services.RunObserver.
type RunEventHub struct {
	mu      sync.RWMutex
	clients map[chan RunEvent]struct{}
	closed  bool
	now     func() time.Time
	log     zerolog.Logger
}

// NewRunEventHub creates an empty hub.
func NewRunEventHub(log zerolog.Logger) *RunEventHub {
	return &RunEventHub{
		clients: make(map[chan RunEvent]struct{}),
		now:     time.Now,
		log:     log.With().Str("component", "events_stream").Logger(),
	}
}

// ObserveRun broadcasts a run_finished event. Slow clients drop events
// instead of blocking the pipeline.
func (h *RunEventHub) ObserveRun(kind string, elapsed time.Duration, err error) {
	ev := RunEvent{
		Type:       "run_finished",
		Kind:       kind,
		Result:     "success",
		DurationMs: elapsed.Milliseconds(),
		Timestamp:  h.now().UTC(),
	}
	if err != nil {
		ev.Result = "error"
		ev.Error = err.Error()
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.clients {
		select {
		case ch <- ev:
		default:
			h.log.Warn().Str("kind", kind).Msg("Event channel full, dropping event")
		}
	}
}

// Clients returns the number of connected clients.
func (h *RunEventHub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client. Hijacked websocket connections are not
// closed by http.Server.Shutdown.
func (h *RunEventHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
	}
}

func (h *RunEventHub) subscribe() (chan RunEvent, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil, false
	}
	ch := make(chan RunEvent, eventBuffer)
	h.clients[ch] = struct{}{}
	return ch, true
}

func (h *RunEventHub) unsubscribe(ch chan RunEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[ch]; ok {
		delete(h.clients, ch)
		close(ch)
	}
}

// ServeHTTP handles GET /api/events/runs (websocket).
func (h *RunEventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{InsecureSkipVerify: true})
	if err != nil {
		h.log.Warn().Err(err).Msg("Failed to accept websocket")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	ch, ok := h.subscribe()
	if !ok {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.unsubscribe(ch)

	// The request context is bound by the timeout middleware; the stream
	// lives until the client goes away or the hub closes.
	ctx := conn.CloseRead(context.Background())

	h.log.Info().Str("remote", r.RemoteAddr).Msg("Client connected to run event stream")
	if err := h.write(ctx, conn, RunEvent{Type: "connected", Timestamp: h.now().UTC()}); err != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			h.log.Debug().Msg("Run event client disconnected")
			return
		case ev, open := <-ch:
			if !open {
				conn.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := h.write(ctx, conn, ev); err != nil {
				h.log.Warn().Err(err).Msg("Failed to write run event")
				return
			}
		}
	}
}

func (h *RunEventHub) write(ctx context.Context, conn *websocket.Conn, ev RunEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
