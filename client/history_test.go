package client

import (
	"fmt"
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/madshubh27/Crotex/document"
)

func snap(ids ...string) document.Snapshot {
	s := make(document.Snapshot, 0, len(ids))
	for _, id := range ids {
		s = append(s, document.Element{ID: id})
	}
	return s
}

func TestHistoryUndoRedoBounds(t *testing.T) {
	h := NewHistory(snap())
	n := 5
	for i := 0; i < n; i++ {
		h.Set(snap(fmt.Sprintf("el%d", i)), false)
	}
	assert.Equal(t, n+1, h.Len())
	assert.Equal(t, n, h.Index())

	for i := 0; i < n; i++ {
		h.Undo()
	}
	assert.Equal(t, 0, h.Index())
	assert.Equal(t, 0, len(h.Current()))

	// Further undos are no-ops.
	h.Undo()
	h.Undo()
	assert.Equal(t, 0, h.Index())

	got := h.Redo()
	assert.Equal(t, "el0", got[0].ID)

	for i := 0; i < n+3; i++ {
		h.Redo()
	}
	assert.Equal(t, n, h.Index())
	assert.Equal(t, "el4", h.Current()[0].ID)
}

func TestHistoryRedoRestoresExactSnapshot(t *testing.T) {
	h := NewHistory(snap("a"))
	h.Set(snap("a", "b"), false)
	want := h.Current()

	h.Undo()
	got := h.Redo()
	assert.Equal(t, want, got)
}

func TestHistoryCoalescing(t *testing.T) {
	h := NewHistory(snap())
	h.Set(snap("rect1"), false)

	// A drag gesture: many intermediate positions, one finalize.
	for i := 0; i < 20; i++ {
		h.Set(snap("rect1", fmt.Sprintf("drag%d", i)), true)
	}
	assert.Equal(t, 2, h.Len())

	h.Set(snap("rect1", "final"), false)
	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "final", h.Current()[1].ID)

	// Undo skips the intermediates entirely.
	got := h.Undo()
	assert.Equal(t, "drag19", got[1].ID)
}

func TestHistoryTruncatesRedoFuture(t *testing.T) {
	h := NewHistory(snap())
	h.Set(snap("a"), false)
	h.Set(snap("b"), false)
	h.Undo()
	h.Set(snap("c"), false)

	assert.Equal(t, 3, h.Len())
	assert.Equal(t, "c", h.Current()[0].ID)

	// "b" is gone: redo stays put.
	h.Redo()
	assert.Equal(t, "c", h.Current()[0].ID)
}

func TestHistoryUpdate(t *testing.T) {
	h := NewHistory(snap("a"))
	h.Update(func(cur document.Snapshot) document.Snapshot {
		return append(cur, document.Element{ID: "b"})
	}, false)
	assert.Equal(t, 2, len(h.Current()))
	assert.Equal(t, "b", h.Current()[1].ID)
}

func TestHistoryRevertToPrevious(t *testing.T) {
	h := NewHistory(snap())
	h.Set(snap("a"), false)
	h.Set(snap("a", "speculative"), false)

	h.RevertToPrevious()
	assert.Equal(t, 2, h.Len())
	assert.Equal(t, 1, len(h.Current()))
	assert.Equal(t, "a", h.Current()[0].ID)

	// At the first entry it is a no-op.
	h.Undo()
	h.RevertToPrevious()
	assert.Equal(t, 0, h.Index())
}

func TestHistoryCurrentIsACopy(t *testing.T) {
	h := NewHistory(snap("a"))
	cur := h.Current()
	cur[0].ID = "mutated"
	assert.Equal(t, "a", h.Current()[0].ID)
}
