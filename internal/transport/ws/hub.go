package ws

import (
	"context"
	"sync"
	"sync/atomic"

	"rigsim.ai/internal/protocol"
	"rigsim.ai/internal/sim/world"
)

// DefaultHistory is how many events the hub keeps for EVENT_BATCH catch-up.
const DefaultHistory = 4096

// Hub numbers machine events with a cursor, keeps the most recent ones in a ring and fans
// events and telemetry out to every session.
type Hub struct {
	mu       sync.Mutex
	ring     []protocol.EventBatchItem
	next     uint64 // cursor of the next event
	sessions map[*session]struct{}

	dropped atomic.Uint64
}

func NewHub(history int) *Hub {
	if history <= 0 {
		history = DefaultHistory
	}
	return &Hub{
		ring:     make([]protocol.EventBatchItem, 0, history),
		next:     1,
		sessions: map[*session]struct{}{},
	}
}

// Run drains the world's stream until ctx is done or in is closed.
func (h *Hub) Run(ctx context.Context, in <-chan world.StreamItem) {
	for {
		select {
		case <-ctx.Done():
			return
		case it, ok := <-in:
			if !ok {
				return
			}
			h.Publish(it)
		}
	}
}

func (h *Hub) Publish(it world.StreamItem) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if it.Event != nil {
		item := protocol.EventBatchItem{Cursor: h.next, Event: *it.Event}
		h.next++
		if len(h.ring) < cap(h.ring) {
			h.ring = append(h.ring, item)
		} else {
			copy(h.ring, h.ring[1:])
			h.ring[len(h.ring)-1] = item
		}
		msg := protocol.EventMsg{Type: protocol.TypeEvent, ProtocolVersion: protocol.Version, Cursor: item.Cursor, Event: item.Event}
		for s := range h.sessions {
			if s.wants(item.Event.Assembly) && !s.send(msg) {
				h.dropped.Add(1)
			}
		}
	}
	if it.Telemetry != nil {
		for s := range h.sessions {
			if !s.send(s.filterTelemetry(*it.Telemetry)) {
				h.dropped.Add(1)
			}
		}
	}
}

// Since returns up to limit events with a cursor greater than cursor, and the cursor to
// ask from next.
func (h *Hub) Since(cursor uint64, limit int, filter func(string) bool) ([]protocol.EventBatchItem, uint64) {
	if limit <= 0 || limit > 500 {
		limit = 500
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.EventBatchItem, 0, limit)
	next := cursor
	for _, it := range h.ring {
		if it.Cursor <= cursor {
			continue
		}
		if len(out) == limit {
			break
		}
		next = it.Cursor
		if filter == nil || filter(it.Event.Assembly) {
			out = append(out, it)
		}
	}
	return out, next
}

// Cursor is the cursor of the most recent event, 0 before any.
func (h *Hub) Cursor() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.next - 1
}

// Dropped counts messages not delivered because a session queue was full.
func (h *Hub) Dropped() uint64 { return h.dropped.Load() }

func (h *Hub) Sessions() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

func (h *Hub) add(s *session) {
	h.mu.Lock()
	h.sessions[s] = struct{}{}
	h.mu.Unlock()
}

func (h *Hub) remove(s *session) {
	h.mu.Lock()
	delete(h.sessions, s)
	h.mu.Unlock()
}
