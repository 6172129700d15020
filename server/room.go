package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/madshubh27/Crotex/document"
	"github.com/madshubh27/Crotex/store"
)

type roomState int

const (
	roomUninitialized roomState = iota
	roomHydrating
	roomLive
)

// pushOp is a snapshot replacement request. from is nil when the snapshot
// arrived over the cross-instance fanout channel rather than from a local
// member.
type pushOp struct {
	from     *Client
	elements document.Snapshot
}

type hydrateResult struct {
	elements document.Snapshot
	err      error
}

// Room holds the authoritative snapshot of one collaboration session. All
// state is owned by the actor goroutine started in newRoom; other goroutines
// talk to it over the channels, so concurrent pushes for the same room are
// linearized and the last accepted push wins. Rooms in different sessions
// never contend with each other.
type Room struct {
	id  string
	hub *Hub

	join     chan *Client
	leave    chan *Client
	push     chan pushOp
	hydrated chan hydrateResult
	query    chan chan document.Snapshot

	// Owned by the actor goroutine.
	state    roomState
	members  map[string]*Client
	elements document.Snapshot
	backlog  []pushOp
}

func newRoom(id string, hub *Hub) *Room {
	r := &Room{
		id:       id,
		hub:      hub,
		join:     make(chan *Client),
		leave:    make(chan *Client),
		push:     make(chan pushOp),
		hydrated: make(chan hydrateResult, 1),
		query:    make(chan chan document.Snapshot),
		members:  make(map[string]*Client),
	}
	go r.run()
	return r
}

func (r *Room) run() {
	for {
		select {
		case c := <-r.join:
			r.handleJoin(c)
		case c := <-r.leave:
			r.handleLeave(c)
		case op := <-r.push:
			r.handlePush(op)
		case res := <-r.hydrated:
			r.handleHydrated(res)
		case reply := <-r.query:
			reply <- r.elements.Clone()
		}
	}
}

func (r *Room) handleJoin(c *Client) {
	r.members[c.id] = c
	log.Printf("[room %s] client %s joined, %d members", r.id, c.id, len(r.members))
	r.broadcastMemberCount()

	switch r.state {
	case roomUninitialized:
		r.state = roomHydrating
		go r.hydrate()
	case roomHydrating:
		// The joiner gets the snapshot with everyone else once hydration
		// completes.
	case roomLive:
		r.deliverTo(c)
	}
}

// hydrate loads the last persisted snapshot off the actor goroutine and
// reports back on the hydrated channel.
func (r *Room) hydrate() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	snap, err := r.hub.bridge.Load(ctx, r.id)
	if errors.Is(err, store.ErrNotFound) {
		r.hydrated <- hydrateResult{}
		return
	}
	if err != nil {
		r.hydrated <- hydrateResult{err: err}
		return
	}
	r.hydrated <- hydrateResult{elements: snap}
}

func (r *Room) handleHydrated(res hydrateResult) {
	if res.err != nil {
		// Collaboration continues from an empty document; the next
		// successful save re-establishes durable state.
		log.Printf("[room %s] hydration failed, starting empty: %v", r.id, res.err)
	}
	r.state = roomLive
	r.elements = res.elements.Clone()
	log.Printf("[room %s] live with %d elements", r.id, len(r.elements))

	data := r.deliverMessage()
	r.broadcast(data, nil)

	backlog := r.backlog
	r.backlog = nil
	for _, op := range backlog {
		r.handlePush(op)
	}
}

func (r *Room) handlePush(op pushOp) {
	if r.state != roomLive {
		// Not hydrated yet; hold the push and replay it in order once the
		// room goes live.
		r.backlog = append(r.backlog, op)
		return
	}

	// Whole-snapshot replacement: the most recent accepted push wins.
	r.elements = op.elements.Clone()

	if op.from != nil {
		// Local push: persist out of band and tell the other instances.
		// Fanned-in snapshots were already saved where they originated.
		r.hub.bridge.Save(r.id, r.elements)
		r.hub.publish(r.id, r.elements)
	}
	r.broadcast(r.deliverMessage(), op.from)
}

func (r *Room) handleLeave(c *Client) {
	if _, ok := r.members[c.id]; !ok {
		return
	}
	delete(r.members, c.id)
	log.Printf("[room %s] client %s left, %d members", r.id, c.id, len(r.members))
	// The snapshot stays in memory for the next joiner.
	r.broadcastMemberCount()
}

func (r *Room) deliverMessage() []byte {
	data, err := json.Marshal(document.Message{
		Type:     document.TypeDeliver,
		Room:     r.id,
		Elements: r.elements,
	})
	if err != nil {
		log.Printf("[room %s] encode snapshot: %v", r.id, err)
		return nil
	}
	return data
}

func (r *Room) deliverTo(c *Client) {
	data := r.deliverMessage()
	if data == nil {
		return
	}
	if !c.deliver(data) {
		r.drop(c)
	}
}

// broadcast sends data to every member except the one it originated from.
func (r *Room) broadcast(data []byte, except *Client) {
	if data == nil {
		return
	}
	for _, c := range r.members {
		if c == except {
			continue
		}
		if !c.deliver(data) {
			r.drop(c)
		}
	}
}

func (r *Room) broadcastMemberCount() {
	data, err := json.Marshal(document.Message{
		Type:  document.TypeRoomUsers,
		Room:  r.id,
		Count: len(r.members),
	})
	if err != nil {
		return
	}
	r.broadcast(data, nil)
}

// drop evicts a member whose send queue is full.
func (r *Room) drop(c *Client) {
	delete(r.members, c.id)
	close(c.send)
	log.Printf("[room %s] dropped slow client %s", r.id, c.id)
}
