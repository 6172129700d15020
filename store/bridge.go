package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/redis/go-redis/v9"

	"github.com/madshubh27/Crotex/document"
)

// BridgeOptions tune the persistence bridge. Zero values fall back to
// defaults suited for production; tests shrink the intervals.
type BridgeOptions struct {
	// SaveInterval is the per-room write throttle: saves landing within the
	// window collapse into one write of the latest snapshot.
	SaveInterval time.Duration
	// RetryBase is the initial backoff delay for a failed write; it doubles
	// per attempt.
	RetryBase time.Duration
	// MaxRetries caps retry attempts after the first failure.
	MaxRetries uint64
	// SaveTimeout bounds a single write attempt.
	SaveTimeout time.Duration
	// CacheTTL bounds the lifetime of cached snapshots in Redis.
	CacheTTL time.Duration
}

func (o *BridgeOptions) defaults() {
	if o.SaveInterval <= 0 {
		o.SaveInterval = time.Second
	}
	if o.RetryBase <= 0 {
		o.RetryBase = 500 * time.Millisecond
	}
	if o.MaxRetries == 0 {
		o.MaxRetries = 5
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = 10 * time.Second
	}
	if o.CacheTTL <= 0 {
		o.CacheTTL = 6 * time.Hour
	}
}

// Bridge mirrors authoritative room snapshots into the document store
// without ever blocking the broadcast path. Writes for the same room are
// throttled to one per SaveInterval (latest value wins), failed writes are
// retried with exponential backoff, and exhausted retries are surfaced to
// the operator log only: the in-memory room state remains the best-known
// truth and the next edit naturally re-attempts.
//
// With a Redis client attached the bridge also keeps a snapshot cache in
// front of the store, read through on Load and refreshed after every
// successful write.
type Bridge struct {
	store Store
	rdb   *redis.Client
	opts  BridgeOptions

	mu       sync.Mutex
	pending  map[string]document.Snapshot
	timers   map[string]*time.Timer
	lastSave map[string]time.Time
	wg       sync.WaitGroup
}

// NewBridge wraps store. rdb may be nil to run without the cache layer.
func NewBridge(st Store, rdb *redis.Client, opts BridgeOptions) *Bridge {
	opts.defaults()
	return &Bridge{
		store:    st,
		rdb:      rdb,
		opts:     opts,
		pending:  make(map[string]document.Snapshot),
		timers:   make(map[string]*time.Timer),
		lastSave: make(map[string]time.Time),
	}
}

func cacheKey(roomID string) string { return "drawing:" + roomID }

// Load fetches the last persisted snapshot for a room, preferring the Redis
// cache. ErrNotFound means the room has never been saved.
func (b *Bridge) Load(ctx context.Context, roomID string) (document.Snapshot, error) {
	if b.rdb != nil {
		if data, err := b.rdb.Get(ctx, cacheKey(roomID)).Bytes(); err == nil {
			var snap document.Snapshot
			if err := json.Unmarshal(data, &snap); err == nil {
				return snap, nil
			}
			log.Printf("[bridge] corrupt cache entry for room %s, falling through", roomID)
		}
	}

	d, err := b.store.FindBySessionID(ctx, roomID)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load room %s: %w", roomID, err)
	}
	b.cache(roomID, d.Elements)
	return d.Elements, nil
}

// Save schedules a durable write of the latest snapshot for a room. It
// returns immediately; the write happens out of band. Successive saves for
// the same room inside the throttle window collapse into a single write.
func (b *Bridge) Save(roomID string, elements document.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.pending[roomID] = elements.Clone()
	elapsed := time.Since(b.lastSave[roomID])
	if elapsed >= b.opts.SaveInterval {
		b.flushLocked(roomID)
		return
	}
	if _, scheduled := b.timers[roomID]; !scheduled {
		b.timers[roomID] = time.AfterFunc(b.opts.SaveInterval-elapsed, func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			b.flushLocked(roomID)
		})
	}
}

// flushLocked hands the pending snapshot for a room to a writer goroutine.
// Callers hold b.mu.
func (b *Bridge) flushLocked(roomID string) {
	if t, ok := b.timers[roomID]; ok {
		t.Stop()
		delete(b.timers, roomID)
	}
	snap, ok := b.pending[roomID]
	if !ok {
		return
	}
	delete(b.pending, roomID)
	b.lastSave[roomID] = time.Now()

	b.wg.Add(1)
	go b.write(roomID, snap)
}

func (b *Bridge) write(roomID string, snap document.Snapshot) {
	defer b.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.opts.RetryBase
	bo.MaxElapsedTime = 0

	var attempts int
	err := backoff.Retry(func() error {
		attempts++
		ctx, cancel := context.WithTimeout(context.Background(), b.opts.SaveTimeout)
		defer cancel()
		return b.store.Upsert(ctx, roomID, snap, "")
	}, backoff.WithMaxRetries(bo, b.opts.MaxRetries))
	if err != nil {
		log.Printf("[bridge] giving up on room %s after %d attempts: %v", roomID, attempts, err)
		return
	}
	b.cache(roomID, snap)
}

// cache refreshes the Redis copy; failures only cost the next Load a store
// round trip.
func (b *Bridge) cache(roomID string, snap document.Snapshot) {
	if b.rdb == nil {
		return
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.rdb.Set(ctx, cacheKey(roomID), data, b.opts.CacheTTL).Err(); err != nil {
		log.Printf("[bridge] cache write for room %s failed: %v", roomID, err)
	}
}

// Flush forces all pending writes out and waits for in-flight writers.
// Called on shutdown.
func (b *Bridge) Flush() {
	b.mu.Lock()
	for roomID := range b.pending {
		b.flushLocked(roomID)
	}
	b.mu.Unlock()
	b.wg.Wait()
}
