package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/meirborowski/veriflow/pkg/domain/types"
	"github.com/meirborowski/veriflow/pkg/utils/logging"
)

// Hub manages per-release rooms of connected clients and broadcasts
// events to them. Process-local; with a single server instance every
// session member is reachable through it.
type Hub struct {
	mu    sync.RWMutex
	rooms map[types.ReleaseID]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		rooms: make(map[types.ReleaseID]map[*Client]struct{}),
	}
}

// Join adds the client to the release's room
func (h *Hub) Join(releaseID types.ReleaseID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[releaseID]
	if !ok {
		room = make(map[*Client]struct{})
		h.rooms[releaseID] = room
	}
	room[c] = struct{}{}
}

// Leave removes the client from the release's room. Empty rooms are
// dropped.
func (h *Hub) Leave(releaseID types.ReleaseID, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[releaseID]
	if !ok {
		return
	}
	delete(room, c)
	if len(room) == 0 {
		delete(h.rooms, releaseID)
	}
}

// Releases returns the IDs of all releases with an active room
func (h *Hub) Releases() []types.ReleaseID {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ids := make([]types.ReleaseID, 0, len(h.rooms))
	for id := range h.rooms {
		ids = append(ids, id)
	}
	return ids
}

// RoomSize returns the number of clients in the release's room
func (h *Hub) RoomSize(releaseID types.ReleaseID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[releaseID])
}

// Broadcast sends the event to every client in the release's room. A
// client whose send buffer is full is skipped; the write pump will close
// it when the connection is truly dead.
func (h *Hub) Broadcast(ctx context.Context, releaseID types.ReleaseID, event *Event) {
	data, err := json.Marshal(event)
	if err != nil {
		logging.From(ctx).Error("failed to marshal broadcast event",
			"event_type", event.Type, "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.rooms[releaseID] {
		select {
		case c.send <- data:
		default:
			// Slow client; drop the event rather than block the room
		}
	}
}
