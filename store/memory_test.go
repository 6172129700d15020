package store

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/madshubh27/Crotex/document"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	want := document.Snapshot{{ID: "rect1", Tool: "rectangle"}}
	if err := st.Upsert(ctx, "s1", want, "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	d, err := st.FindBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assert.Equal(t, want, d.Elements)
	assert.Equal(t, "u1", d.Owner)

	_, err = st.FindBySessionID(ctx, "missing")
	assert.Equal(t, ErrNotFound, err)
}

func TestMemoryStoreOwnerPreservedOnAnonymousUpsert(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.Upsert(ctx, "s1", nil, "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	// The bridge saves without a principal; the owner must survive.
	if err := st.Upsert(ctx, "s1", document.Snapshot{{ID: "a"}}, ""); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	d, err := st.FindBySessionID(ctx, "s1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	assert.Equal(t, "u1", d.Owner)
	assert.Equal(t, 1, len(d.Elements))
}

func TestMemoryStoreListByOwner(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	st.now = func() time.Time { now = now.Add(time.Second); return now }

	for _, id := range []string{"old", "mid", "new"} {
		if err := st.Upsert(ctx, id, nil, "u1"); err != nil {
			t.Fatalf("upsert %s: %v", id, err)
		}
	}
	if err := st.Upsert(ctx, "other", nil, "u2"); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	drawings, err := st.ListByOwner(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	assert.Equal(t, 3, len(drawings))
	// Most recently updated first.
	assert.Equal(t, "new", drawings[0].SessionID)
	assert.Equal(t, "old", drawings[2].SessionID)
}

func TestMemoryStoreDelete(t *testing.T) {
	st := NewMemoryStore()
	ctx := context.Background()

	if err := st.Upsert(ctx, "s1", nil, "u1"); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := st.Delete(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	assert.Equal(t, ErrNotFound, st.Delete(ctx, "s1"))
}
