// Package dashboard pushes targeted invalidation frames to queue-dashboard
// browsers so they refetch one entity instead of reloading everything.
package dashboard

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hackgods/clinic-booking-gateway/internal/events"
	"github.com/hackgods/clinic-booking-gateway/pkg/logging"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendBuffer = 32
)

// Frame is what subscribers receive.
type Frame struct {
	Type   string `json:"type"`
	Entity string `json:"entity"`
	ID     string `json:"id,omitempty"`
}

type key struct {
	entity string
	id     string
}

type subscriber struct {
	conn *websocket.Conn
	send chan Frame
}

// Hub collects invalidations and fans them out once per coalescing window.
// Repeated changes to the same entity inside one window produce one frame.
type Hub struct {
	window   time.Duration
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	pending map[key]struct{}
	subs    map[*subscriber]struct{}
}

func NewHub(window time.Duration, logger *logging.Logger) *Hub {
	if logger == nil {
		logger = logging.Default()
	}
	if window <= 0 {
		window = 250 * time.Millisecond
	}
	return &Hub{
		window: window,
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		pending: make(map[key]struct{}),
		subs:    make(map[*subscriber]struct{}),
	}
}

// Invalidate records a change. It matches events.QueueChangedHandler.
func (h *Hub) Invalidate(ev events.QueueChanged) {
	h.mu.Lock()
	h.pending[key{entity: ev.Entity, id: ev.ID}] = struct{}{}
	h.mu.Unlock()
}

// Flush sends every pending invalidation and returns the frames sent.
func (h *Hub) Flush() []Frame {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.pending) == 0 {
		return nil
	}
	frames := make([]Frame, 0, len(h.pending))
	for k := range h.pending {
		frames = append(frames, Frame{Type: "invalidate", Entity: k.entity, ID: k.id})
	}
	h.pending = make(map[key]struct{})

	sort.Slice(frames, func(i, j int) bool {
		if frames[i].Entity != frames[j].Entity {
			return frames[i].Entity < frames[j].Entity
		}
		return frames[i].ID < frames[j].ID
	})

	for s := range h.subs {
		h.deliverLocked(s, frames)
	}
	return frames
}

func (h *Hub) deliverLocked(s *subscriber, frames []Frame) {
	for _, f := range frames {
		select {
		case s.send <- f:
		default:
			// slow reader: drop it, the browser reconnects and refetches
			h.logger.Warn("dashboard: subscriber too slow, disconnecting")
			h.removeLocked(s)
			return
		}
	}
}

// Run flushes on every window tick until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case <-ticker.C:
			h.Flush()
		}
	}
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// ServeWS upgrades the request and streams invalidation frames to it.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Debug("dashboard: upgrade failed", "error", err)
		return
	}
	s := &subscriber{conn: conn, send: make(chan Frame, sendBuffer)}

	h.mu.Lock()
	h.subs[s] = struct{}{}
	h.mu.Unlock()
	h.logger.Info("dashboard: subscriber connected", "remote", r.RemoteAddr)

	go h.writePump(s)
	h.readPump(s)
}

// readPump only exists to notice closes and answer pings.
func (h *Hub) readPump(s *subscriber) {
	defer h.remove(s)
	s.conn.SetReadLimit(512)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()
	for {
		select {
		case f, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) remove(s *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(s)
}

func (h *Hub) removeLocked(s *subscriber) {
	if _, ok := h.subs[s]; !ok {
		return
	}
	delete(h.subs, s)
	close(s.send)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for s := range h.subs {
		delete(h.subs, s)
		close(s.send)
	}
}
