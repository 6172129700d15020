package server

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/madshubh27/Crotex/document"
	"github.com/madshubh27/Crotex/store"
)

// Hub is the room registry: it owns the map of live rooms and tracks which
// room each connection is in. Rooms run as independent actors, so the hub
// only routes; it never holds a lock across room work.
//
// With a Redis client attached, accepted pushes are also published on a
// per-room channel and snapshots published by other relay instances are fed
// into the local room, so several relays converge on the same state.
type Hub struct {
	bridge *store.Bridge
	rdb    *redis.Client
	origin string
	ctx    context.Context

	mu     sync.RWMutex
	rooms  map[string]*Room
	inRoom map[string]*Room // connection id -> joined room
}

// NewHub creates a hub persisting through bridge. rdb may be nil to run as a
// single instance.
func NewHub(bridge *store.Bridge, rdb *redis.Client) *Hub {
	return &Hub{
		bridge: bridge,
		rdb:    rdb,
		origin: uuid.NewString(),
		ctx:    context.Background(),
		rooms:  make(map[string]*Room),
		inRoom: make(map[string]*Room),
	}
}

// room returns the Room for id, creating and starting it on first use.
func (h *Hub) room(id string) *Room {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r, ok := h.rooms[id]; ok {
		return r
	}
	r := newRoom(id, h)
	h.rooms[id] = r
	h.subscribe(r)
	return r
}

// Join moves c into roomID. A redundant join of the same room is ignored;
// joining a different room leaves the old one first.
func (h *Hub) Join(c *Client, roomID string) {
	r := h.room(roomID)

	h.mu.Lock()
	prev := h.inRoom[c.id]
	if prev == r {
		h.mu.Unlock()
		return
	}
	h.inRoom[c.id] = r
	h.mu.Unlock()

	if prev != nil {
		prev.leave <- c
	}
	r.join <- c
}

// Leave removes c from its room, if it is in one.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	r := h.inRoom[c.id]
	delete(h.inRoom, c.id)
	h.mu.Unlock()
	if r != nil {
		r.leave <- c
	}
}

// Push replaces roomID's snapshot with elements. The push is dropped when c
// has not joined that room.
func (h *Hub) Push(c *Client, roomID string, elements document.Snapshot) {
	h.mu.RLock()
	r := h.inRoom[c.id]
	h.mu.RUnlock()
	if r == nil || r.id != roomID {
		log.Printf("[hub] client %s pushed to room %s without joining, dropped", c.id, roomID)
		return
	}
	r.push <- pushOp{from: c, elements: elements}
}

// Snapshot returns the current authoritative snapshot of a room, or false
// when the room has never been joined on this instance.
func (h *Hub) Snapshot(roomID string) (document.Snapshot, bool) {
	h.mu.RLock()
	r := h.rooms[roomID]
	h.mu.RUnlock()
	if r == nil {
		return nil, false
	}
	reply := make(chan document.Snapshot, 1)
	r.query <- reply
	return <-reply, true
}

func fanoutChannel(roomID string) string { return "room:" + roomID }

// publish fans an accepted snapshot out to the other relay instances.
func (h *Hub) publish(roomID string, elements document.Snapshot) {
	if h.rdb == nil {
		return
	}
	data, err := json.Marshal(document.Message{
		Type:     document.TypePush,
		Room:     roomID,
		Elements: elements,
		Origin:   h.origin,
	})
	if err != nil {
		return
	}
	go func() {
		if err := h.rdb.Publish(h.ctx, fanoutChannel(roomID), data).Err(); err != nil {
			log.Printf("[hub] fanout publish for room %s failed: %v", roomID, err)
		}
	}()
}

// subscribe feeds snapshots published by other instances into the room.
// Messages carrying this instance's origin id are its own publishes echoed
// back by Redis and are skipped.
func (h *Hub) subscribe(r *Room) {
	if h.rdb == nil {
		return
	}
	pubsub := h.rdb.Subscribe(h.ctx, fanoutChannel(r.id))
	go func() {
		for msg := range pubsub.Channel() {
			var m document.Message
			if err := json.Unmarshal([]byte(msg.Payload), &m); err != nil {
				log.Printf("[hub] bad fanout message for room %s: %v", r.id, err)
				continue
			}
			if m.Origin == h.origin {
				continue
			}
			r.push <- pushOp{elements: m.Elements}
		}
	}()
}
