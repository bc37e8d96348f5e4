// Package server exposes the overlay scheduler over HTTP: a JSON ingestion
// endpoint, a stats endpoint, and a websocket feed of placement events that
// browser overlay clients replay as animations.
//
// The server owns its Overlay. Footprints are estimated server-side (see
// renderer.go), so lane arithmetic happens in one place and every connected
// client sees identical placements.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/driftlane/driftlane/pkg/errors"
	"github.com/driftlane/driftlane/pkg/overlay"
)

const (
	// writeWait bounds a single websocket write.
	writeWait = 10 * time.Second

	// sendBuffer is the per-subscriber event queue depth. A client that falls
	// this far behind is disconnected instead of stalling the scheduler.
	sendBuffer = 64
)

// Config holds server construction parameters.
type Config struct {
	Settings overlay.Settings
	Width    float64
	Height   float64
	Logger   *log.Logger
}

// Server wires the overlay to HTTP. It keeps one subscriber record per
// websocket connection and fans placement events out to all of them.
type Server struct {
	overlay *overlay.Overlay
	logger  *log.Logger

	upgrader websocket.Upgrader

	mu   sync.Mutex
	subs map[*subscriber]struct{}
}

// subscriber is one websocket feed connection. Its writer goroutine is the
// sole writer on the connection; broadcasters only do a non-blocking send
// into the buffered channel, so the overlay's lock is never held across
// socket I/O.
type subscriber struct {
	conn *websocket.Conn
	send chan []byte
}

// New creates a server and its overlay.
func New(cfg Config) (*Server, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	s := &Server{
		logger: logger,
		subs:   make(map[*subscriber]struct{}),
		upgrader: websocket.Upgrader{
			// The overlay feed is same-machine tooling; skip origin checks.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	ov, err := overlay.New(
		&estimator{srv: s, fontSize: cfg.Settings.FontSize},
		overlay.ComputeGeometry(cfg.Width, cfg.Height, cfg.Settings),
		cfg.Settings,
		overlay.WithLogger(logger),
		overlay.WithExpiredFunc(s.onExpired),
	)
	if err != nil {
		return nil, err
	}
	s.overlay = ov
	return s, nil
}

// Overlay returns the server's overlay, for wiring external sources.
func (s *Server) Overlay() *overlay.Overlay { return s.overlay }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)

	r.Post("/api/messages", s.handleIngest)
	r.Post("/api/clear", s.handleClear)
	r.Post("/api/rate", s.handleRate)
	r.Get("/api/stats", s.handleStats)
	r.Get("/ws", s.handleWS)

	return r
}

// Shutdown tears down the overlay and closes all feed connections.
func (s *Server) Shutdown(context.Context) error {
	s.overlay.Destroy()

	s.mu.Lock()
	for sub := range s.subs {
		delete(s.subs, sub)
		close(sub.send)
		sub.conn.Close()
	}
	s.mu.Unlock()
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

// ingestPayload is the POST /api/messages body.
type ingestPayload struct {
	Kind   string `json:"kind,omitempty"`
	Text   string `json:"text"`
	Author string `json:"author,omitempty"`
}

// badRequest answers 400 with the error's user-facing message and logs the
// coded form for diagnostics.
func (s *Server) badRequest(w http.ResponseWriter, err error) {
	s.logger.Debug("rejected request", "code", errors.GetCode(err), "err", err)
	http.Error(w, errors.UserMessage(err), http.StatusBadRequest)
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	var p ingestPayload
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 16<<10)).Decode(&p); err != nil {
		s.badRequest(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid JSON body"))
		return
	}
	if p.Text == "" {
		s.badRequest(w, errors.New(errors.ErrCodeInvalidMessage, "text is required"))
		return
	}

	kind := overlay.KindNormal
	switch p.Kind {
	case "", "normal":
	case "highlight":
		kind = overlay.KindHighlight
	case "system":
		kind = overlay.KindSystem
	default:
		s.badRequest(w, errors.New(errors.ErrCodeInvalidMessage, "unknown kind %q", p.Kind))
		return
	}

	// Silent drops under load are by design; ingestion always accepts.
	s.overlay.AddMessage(overlay.NewMessage(kind, p))
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleClear(w http.ResponseWriter, _ *http.Request) {
	s.overlay.Clear()
	s.broadcast(Event{Type: EventCleared})
	w.WriteHeader(http.StatusNoContent)
}

// ratePayload is the POST /api/rate body, mirroring the playback clock of the
// host page.
type ratePayload struct {
	Rate float64 `json:"rate"`
}

func (s *Server) handleRate(w http.ResponseWriter, r *http.Request) {
	var p ratePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		s.badRequest(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid JSON body"))
		return
	}
	if p.Rate <= 0 {
		s.badRequest(w, errors.New(errors.ErrCodeInvalidRate, "rate must be positive, got %g", p.Rate))
		return
	}
	s.overlay.SetPlaybackRate(p.Rate)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(s.overlay.Stats()); err != nil {
		s.logger.Warn("encode stats", "err", err)
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "err", err)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, sendBuffer)}
	s.mu.Lock()
	s.subs[sub] = struct{}{}
	n := len(s.subs)
	s.mu.Unlock()
	s.logger.Info("feed client connected", "clients", n)

	go s.writeLoop(sub)

	// Drain the read side to learn about disconnects; the feed is one-way.
	go func() {
		defer s.drop(sub)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// =============================================================================
// Broadcast
// =============================================================================

// broadcast queues an event for every subscriber. It never touches a socket:
// the placed-event path runs inside the overlay's critical section, so all it
// may do is a non-blocking channel send. A subscriber whose queue is full is
// disconnected on the spot.
func (s *Server) broadcast(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.logger.Error("marshal event", "err", err)
		return
	}

	var stalled []*subscriber
	s.mu.Lock()
	for sub := range s.subs {
		select {
		case sub.send <- payload:
		default:
			delete(s.subs, sub)
			close(sub.send)
			stalled = append(stalled, sub)
		}
	}
	s.mu.Unlock()

	for _, sub := range stalled {
		sub.conn.Close()
		s.logger.Warn("dropping stalled feed client")
	}
}

// writeLoop pumps queued events to one connection until the queue closes or a
// write fails. Every write carries a deadline, so a dead peer costs at most
// writeWait, and only on this goroutine.
func (s *Server) writeLoop(sub *subscriber) {
	for payload := range sub.send {
		sub.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			s.drop(sub)
			return
		}
	}
}

func (s *Server) drop(sub *subscriber) {
	s.mu.Lock()
	_, ok := s.subs[sub]
	if ok {
		delete(s.subs, sub)
		close(sub.send)
	}
	s.mu.Unlock()
	if ok {
		sub.conn.Close()
		s.logger.Info("feed client disconnected")
	}
}

func (s *Server) onExpired(msg overlay.Message, _ overlay.Placement) {
	s.broadcast(Event{Type: EventExpired, ID: msg.ID.String()})
}
