package client

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/madshubh27/Crotex/document"
)

// DefaultEmitWindow bounds outbound traffic to roughly twenty updates per
// second during continuous gestures.
const DefaultEmitWindow = 50 * time.Millisecond

// Sender is the outbound half of a transport session, as seen by the
// emitter. Pushes that fail or happen while disconnected are dropped; the
// next commit naturally re-attempts with current state.
type Sender interface {
	Push(room string, elements document.Snapshot) error
	Connected() bool
}

type emitState int

const (
	stateIdle emitState = iota
	stateApplyingRemote
)

// Emitter sits between the history and the transport. It fingerprints every
// committed snapshot to suppress no-op sends, debounces bursts of commits
// into a bounded outbound rate, and suppresses emission entirely while a
// remote snapshot is being applied so a client never re-broadcasts state it
// just received.
type Emitter struct {
	sender Sender
	window time.Duration

	mu       sync.Mutex
	state    emitState
	lastSent map[string]string    // room -> fingerprint of last pushed snapshot
	lastTime map[string]time.Time // room -> time of last push
	latest   map[string]document.Snapshot
	timers   map[string]*time.Timer
	now      func() time.Time
}

// NewEmitter wraps sender. A zero window falls back to DefaultEmitWindow.
func NewEmitter(sender Sender, window time.Duration) *Emitter {
	if window <= 0 {
		window = DefaultEmitWindow
	}
	return &Emitter{
		sender:   sender,
		window:   window,
		lastSent: make(map[string]string),
		lastTime: make(map[string]time.Time),
		latest:   make(map[string]document.Snapshot),
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
	}
}

// Notify is called after every history commit of a room-bound document. If
// the snapshot fingerprints identically to the last pushed one the call is a
// no-op. Otherwise the snapshot is pushed immediately when the debounce
// window has already elapsed, or recorded as the pending value of a single
// scheduled flush; commits landing inside the window collapse into one send
// of the latest state.
func (e *Emitter) Notify(snap document.Snapshot, room string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == stateApplyingRemote {
		return
	}
	if document.Fingerprint(snap) == e.lastSent[room] {
		// The already-sent state is the latest state again; a pending flush
		// would put something older on the wire.
		if t, ok := e.timers[room]; ok {
			t.Stop()
			delete(e.timers, room)
		}
		delete(e.latest, room)
		return
	}
	e.latest[room] = snap

	elapsed := e.now().Sub(e.lastTime[room])
	if elapsed >= e.window {
		e.flushLocked(room)
		return
	}
	if _, scheduled := e.timers[room]; !scheduled {
		e.timers[room] = time.AfterFunc(e.window-elapsed, func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			e.flushLocked(room)
		})
	}
}

// flushLocked hands the pending snapshot for room to a sender goroutine, if
// there still is one. Commits never block on network I/O. Callers hold e.mu.
func (e *Emitter) flushLocked(room string) {
	if t, ok := e.timers[room]; ok {
		t.Stop()
		delete(e.timers, room)
	}
	snap, ok := e.latest[room]
	if !ok {
		return
	}
	delete(e.latest, room)

	fp := document.Fingerprint(snap)
	if fp == e.lastSent[room] {
		return
	}
	// Recorded before the send so commits landing while it is in flight
	// debounce against it; a failed send clears the record again.
	e.lastSent[room] = fp
	e.lastTime[room] = e.now()

	go e.send(room, snap, fp)
}

func (e *Emitter) send(room string, snap document.Snapshot, fp string) {
	var err error
	if e.sender.Connected() {
		err = e.sender.Push(room, snap)
	} else {
		err = ErrNotConnected
	}
	if err == nil {
		return
	}
	if !errors.Is(err, ErrNotConnected) {
		log.Printf("[emitter] push to room %s dropped: %v", room, err)
	}
	// Dropped, not queued. Clearing the sent record lets the next commit
	// re-enter the debounce cycle with current state, so the latest state
	// still wins eventually.
	e.mu.Lock()
	if e.lastSent[room] == fp {
		delete(e.lastSent, room)
	}
	e.mu.Unlock()
}

// ApplyRemote routes an inbound snapshot into the history. While the
// application runs the emitter is in the ApplyingRemote state and Notify is
// a no-op; the state is restored on every exit path. The remote fingerprint
// is recorded as already-sent, so even a later commit of the identical
// snapshot stays off the wire.
func (e *Emitter) ApplyRemote(h *History, snap document.Snapshot, room string) {
	defer e.beginApplyRemote(snap, room)()
	h.applyRemote(snap)
}

func (e *Emitter) beginApplyRemote(snap document.Snapshot, room string) func() {
	e.mu.Lock()
	e.state = stateApplyingRemote
	e.lastSent[room] = document.Fingerprint(snap)
	// A pending local flush is stale now; the remote snapshot superseded it.
	if t, ok := e.timers[room]; ok {
		t.Stop()
		delete(e.timers, room)
	}
	delete(e.latest, room)
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		e.state = stateIdle
		e.mu.Unlock()
	}
}
