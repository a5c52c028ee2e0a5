package rpc

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nhooyr.io/websocket"

	"nftmarket/core/events"
	"nftmarket/core/types"
)

const (
	wsWriteTimeout       = 10 * time.Second
	defaultStreamBacklog = 256
)

// Hub fans committed engine events out to websocket subscribers. Emit never
// blocks; a subscriber that falls behind loses events and the drop is
// counted.
type Hub struct {
	mu      sync.RWMutex
	subs    map[*subscription]struct{}
	backlog int
	dropped atomic.Uint64
}

type subscription struct {
	ch     chan *types.Event
	filter map[string]struct{}
}

// NewHub constructs a hub whose subscribers buffer backlog events.
func NewHub(backlog int) *Hub {
	if backlog <= 0 {
		backlog = defaultStreamBacklog
	}
	return &Hub{subs: make(map[*subscription]struct{}), backlog: backlog}
}

var _ events.Emitter = (*Hub)(nil)

// Emit implements events.Emitter.
func (h *Hub) Emit(evt events.Event) {
	typed, ok := evt.(interface{ Event() *types.Event })
	if !ok {
		return
	}
	payload := typed.Event()
	if payload == nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		if len(sub.filter) > 0 {
			if _, want := sub.filter[payload.Type]; !want {
				continue
			}
		}
		select {
		case sub.ch <- payload:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a subscriber for the given event types, or every type
// when none are given. The returned cancel func must be called once.
func (h *Hub) Subscribe(eventTypes ...string) (<-chan *types.Event, func()) {
	sub := &subscription{ch: make(chan *types.Event, h.backlog)}
	if len(eventTypes) > 0 {
		sub.filter = make(map[string]struct{}, len(eventTypes))
		for _, t := range eventTypes {
			sub.filter[t] = struct{}{}
		}
	}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	h.mu.Unlock()
	return sub.ch, func() {
		h.mu.Lock()
		delete(h.subs, sub)
		h.mu.Unlock()
	}
}

// Dropped returns the number of events discarded for slow subscribers.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	var filter []string
	if raw := strings.TrimSpace(r.URL.Query().Get("types")); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				filter = append(filter, t)
			}
		}
	}
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	s.metrics.StreamOpened()
	defer s.metrics.StreamClosed()

	ctx := conn.CloseRead(r.Context())
	updates, cancel := s.hub.Subscribe(filter...)
	defer cancel()
	if err := streamEvents(ctx, conn, updates); err != nil {
		if status := websocket.CloseStatus(err); status == -1 && ctx.Err() == nil {
			_ = conn.Close(websocket.StatusInternalError, "stream error")
		}
	}
}

func streamEvents(ctx context.Context, conn *websocket.Conn, updates <-chan *types.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-updates:
			if !ok {
				return nil
			}
			if err := writeEvent(ctx, conn, evt); err != nil {
				return err
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *websocket.Conn, evt *types.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
