package server

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/madshubh27/Crotex/document"
	"github.com/madshubh27/Crotex/store"
)

func newTestHub(st store.Store) *Hub {
	bridge := store.NewBridge(st, nil, store.BridgeOptions{
		SaveInterval: 10 * time.Millisecond,
		RetryBase:    5 * time.Millisecond,
		MaxRetries:   2,
	})
	return NewHub(bridge, nil)
}

func newTestClient(id string, h *Hub) *Client {
	return &Client{id: id, hub: h, send: make(chan []byte, 32)}
}

func recv(t *testing.T, c *Client) document.Message {
	t.Helper()
	select {
	case data := <-c.send:
		var m document.Message
		if err := json.Unmarshal(data, &m); err != nil {
			t.Fatalf("bad message: %v", err)
		}
		return m
	case <-time.After(2 * time.Second):
		t.Fatalf("client %s: timed out waiting for message", c.id)
		return document.Message{}
	}
}

// recvType skips interleaved messages until one of the wanted type arrives.
func recvType(t *testing.T, c *Client, msgType string) document.Message {
	t.Helper()
	for i := 0; i < 10; i++ {
		if m := recv(t, c); m.Type == msgType {
			return m
		}
	}
	t.Fatalf("client %s: no %s message", c.id, msgType)
	return document.Message{}
}

func assertSilent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("client %s: unexpected message %s", c.id, data)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRoomJoinEmptyThenCollaborate(t *testing.T) {
	st := store.NewMemoryStore()
	h := newTestHub(st)

	// C1 joins a room with no persisted history and gets an empty document.
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")
	m := recvType(t, c1, document.TypeRoomUsers)
	assert.Equal(t, 1, m.Count)
	m = recvType(t, c1, document.TypeDeliver)
	assert.Equal(t, 0, len(m.Elements))

	// C1 pushes two rectangles; the sender gets no echo.
	twoRects := document.Snapshot{{ID: "rect1"}, {ID: "rect2"}}
	h.Push(c1, "r1", twoRects)
	assertSilent(t, c1)

	snap, ok := h.Snapshot("r1")
	assert.Equal(t, true, ok)
	assert.Equal(t, twoRects, snap)

	// C2 joins and receives the current state, not a broadcast.
	c2 := newTestClient("c2", h)
	h.Join(c2, "r1")
	m = recvType(t, c2, document.TypeDeliver)
	assert.Equal(t, twoRects, m.Elements)
	m = recvType(t, c1, document.TypeRoomUsers)
	assert.Equal(t, 2, m.Count)

	// C2 pushes an addition; C1 receives it, C2 does not.
	withCircle := append(twoRects.Clone(), document.Element{ID: "circle1"})
	h.Push(c2, "r1", withCircle)
	m = recvType(t, c1, document.TypeDeliver)
	assert.Equal(t, withCircle, m.Elements)
	assertSilent(t, c2)
}

func TestRoomLastWriterWins(t *testing.T) {
	h := newTestHub(store.NewMemoryStore())
	c1 := newTestClient("c1", h)
	c2 := newTestClient("c2", h)
	h.Join(c1, "r1")
	h.Join(c2, "r1")
	recvType(t, c1, document.TypeDeliver)
	recvType(t, c2, document.TypeDeliver)

	a := document.Snapshot{{ID: "a"}}
	b := document.Snapshot{{ID: "b"}}
	h.Push(c1, "r1", a)
	h.Push(c2, "r1", b)

	recvType(t, c1, document.TypeDeliver) // b, relayed to c1

	snap, _ := h.Snapshot("r1")
	assert.Equal(t, b, snap)
}

func TestRoomRehydratesFromStore(t *testing.T) {
	st := store.NewMemoryStore()
	persisted := document.Snapshot{{ID: "rect1", LastModified: 42}}
	if err := st.Upsert(context.Background(), "r1", persisted, "u1"); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	h := newTestHub(st)
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")

	m := recvType(t, c1, document.TypeDeliver)
	assert.Equal(t, persisted, m.Elements)
}

func TestRoomPushPersistsThroughBridge(t *testing.T) {
	st := store.NewMemoryStore()
	h := newTestHub(st)
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")
	recvType(t, c1, document.TypeDeliver)

	want := document.Snapshot{{ID: "rect1"}}
	h.Push(c1, "r1", want)
	h.bridge.Flush()

	d, err := st.FindBySessionID(context.Background(), "r1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assert.Equal(t, want, d.Elements)
}

func TestRoomLeaveKeepsSnapshot(t *testing.T) {
	h := newTestHub(store.NewMemoryStore())
	c1 := newTestClient("c1", h)
	c2 := newTestClient("c2", h)
	h.Join(c1, "r1")
	h.Join(c2, "r1")
	recvType(t, c1, document.TypeDeliver)
	recvType(t, c2, document.TypeDeliver)

	want := document.Snapshot{{ID: "survivor"}}
	h.Push(c2, "r1", want)
	recvType(t, c1, document.TypeDeliver)

	h.Leave(c2)
	m := recvType(t, c1, document.TypeRoomUsers)
	assert.Equal(t, 1, m.Count)

	// The snapshot stays available for the next joiner.
	snap, ok := h.Snapshot("r1")
	assert.Equal(t, true, ok)
	assert.Equal(t, want, snap)

	c3 := newTestClient("c3", h)
	h.Join(c3, "r1")
	m = recvType(t, c3, document.TypeDeliver)
	assert.Equal(t, want, m.Elements)
}

func TestRoomPushWithoutJoinDropped(t *testing.T) {
	h := newTestHub(store.NewMemoryStore())
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")
	recvType(t, c1, document.TypeDeliver)

	outsider := newTestClient("outsider", h)
	h.Push(outsider, "r1", document.Snapshot{{ID: "evil"}})
	assertSilent(t, c1)

	snap, _ := h.Snapshot("r1")
	assert.Equal(t, 0, len(snap))
}

// slowStore delays reads so a push can race hydration.
type slowStore struct {
	store.Store
	delay time.Duration
}

func (s *slowStore) FindBySessionID(ctx context.Context, id string) (*store.Drawing, error) {
	time.Sleep(s.delay)
	return s.Store.FindBySessionID(ctx, id)
}

func TestRoomQueuesPushesWhileHydrating(t *testing.T) {
	st := &slowStore{Store: store.NewMemoryStore(), delay: 100 * time.Millisecond}
	h := newTestHub(st)

	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")

	// The room is still hydrating; this push must be held, not lost.
	want := document.Snapshot{{ID: "early-bird"}}
	h.Push(c1, "r1", want)

	c2 := newTestClient("c2", h)
	h.Join(c2, "r1")

	// Once live, c2 sees the hydrated (empty) document and then the queued
	// push.
	m := recvType(t, c2, document.TypeDeliver)
	assert.Equal(t, 0, len(m.Elements))
	m = recvType(t, c2, document.TypeDeliver)
	assert.Equal(t, want, m.Elements)

	snap, _ := h.Snapshot("r1")
	assert.Equal(t, want, snap)
}

// failingStore refuses all reads.
type failingStore struct {
	store.Store
}

func (s *failingStore) FindBySessionID(context.Context, string) (*store.Drawing, error) {
	return nil, errors.New("store is down")
}

func TestRoomHydrationFailureStartsEmpty(t *testing.T) {
	h := newTestHub(&failingStore{Store: store.NewMemoryStore()})
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")

	m := recvType(t, c1, document.TypeDeliver)
	assert.Equal(t, 0, len(m.Elements))

	// The room is live and usable despite the failed load.
	h.Push(c1, "r1", document.Snapshot{{ID: "works"}})
	snap, _ := h.Snapshot("r1")
	assert.Equal(t, 1, len(snap))
}

func TestRoomRedundantJoinIgnored(t *testing.T) {
	h := newTestHub(store.NewMemoryStore())
	c1 := newTestClient("c1", h)
	h.Join(c1, "r1")
	recvType(t, c1, document.TypeRoomUsers)
	recvType(t, c1, document.TypeDeliver)

	h.Join(c1, "r1")
	assertSilent(t, c1)
}
