package client

import (
	"sync"

	"github.com/madshubh27/Crotex/document"
)

// History owns the undo/redo stack of a single document. Every editing
// operation funnels through Set or Update; undo and redo only move the index
// and never create entries. Entries are full snapshots, so restoring one is
// a plain replacement.
type History struct {
	mu      sync.Mutex
	entries []document.Snapshot
	index   int

	// room and emitter are set for collaborative documents. A solo document
	// keeps both zero and never touches the network.
	room    string
	emitter *Emitter
}

// NewHistory creates a history for a solo document seeded with initial.
func NewHistory(initial document.Snapshot) *History {
	return &History{entries: []document.Snapshot{initial.Clone()}}
}

// NewRoomHistory creates a history bound to a room. Commits are forwarded to
// the emitter, which decides whether anything actually goes on the wire.
func NewRoomHistory(initial document.Snapshot, room string, emitter *Emitter) *History {
	h := NewHistory(initial)
	h.room = room
	h.emitter = emitter
	return h
}

// Set commits a snapshot. With coalesce the entry at the current index is
// replaced in place, which is the path used while a drag or draw gesture is
// still in progress. Without it any redoable entries are dropped, the
// snapshot is appended and the index advances: this finalizes a gesture.
func (h *History) Set(snap document.Snapshot, coalesce bool) {
	h.set(snap, coalesce, true)
}

// Update commits the result of applying fn to the current snapshot. fn must
// be pure; it receives a copy it may modify freely.
func (h *History) Update(fn func(document.Snapshot) document.Snapshot, coalesce bool) {
	h.mu.Lock()
	cur := h.entries[h.index].Clone()
	h.mu.Unlock()
	h.set(fn(cur), coalesce, true)
}

func (h *History) set(snap document.Snapshot, coalesce, emit bool) {
	h.mu.Lock()
	snap = snap.Clone()
	if coalesce {
		h.entries[h.index] = snap
	} else {
		h.entries = append(h.entries[:h.index+1], snap)
		h.index++
	}
	room, em := h.room, h.emitter
	h.mu.Unlock()

	if emit && em != nil && room != "" {
		em.Notify(snap, room)
	}
}

// applyRemote routes a snapshot received from the network into the stack.
// It coalesces so remote updates do not flood local history, and it never
// re-emits; the emitter guards the echo side separately.
func (h *History) applyRemote(snap document.Snapshot) {
	h.set(snap, true, false)
}

// RevertToPrevious discards the entry at the current index and falls back to
// the one before it. Used when a gesture turns out to be a no-op (zero
// movement) and should not pollute history.
func (h *History) RevertToPrevious() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.index == 0 {
		return
	}
	h.entries = h.entries[:h.index]
	h.index--
}

// Undo steps back one entry and returns the now-current snapshot. At the
// oldest entry it is a no-op. On a room-bound history the restored snapshot
// goes to the emitter, so an undo is visible to the other room members; the
// fingerprint guard keeps a no-op undo off the wire.
func (h *History) Undo() document.Snapshot {
	h.mu.Lock()
	if h.index > 0 {
		h.index--
	}
	snap := h.entries[h.index].Clone()
	room, em := h.room, h.emitter
	h.mu.Unlock()

	if em != nil && room != "" {
		em.Notify(snap, room)
	}
	return snap
}

// Redo steps forward one entry and returns the now-current snapshot. At the
// newest entry it is a no-op. Like Undo, the restored snapshot is emitted on
// a room-bound history.
func (h *History) Redo() document.Snapshot {
	h.mu.Lock()
	if h.index < len(h.entries)-1 {
		h.index++
	}
	snap := h.entries[h.index].Clone()
	room, em := h.room, h.emitter
	h.mu.Unlock()

	if em != nil && room != "" {
		em.Notify(snap, room)
	}
	return snap
}

// Current returns the snapshot at the current index.
func (h *History) Current() document.Snapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.index].Clone()
}

// Len returns the number of history entries.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Index returns the current position in the stack.
func (h *History) Index() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.index
}
