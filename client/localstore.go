package client

import (
	"encoding/json"
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"

	"github.com/madshubh27/Crotex/document"
)

var documentsBucket = []byte("documents")

// ErrNoLocalCopy is returned by LocalStore.Load when no snapshot has been
// saved for a document id.
var ErrNoLocalCopy = errors.New("no local copy")

// LocalStore keeps the latest snapshot per document in a bbolt file. It backs
// solo documents and the agent's durable mirror of a room, so a restart picks
// up where the last sync left off.
type LocalStore struct {
	db *bolt.DB
}

// OpenLocalStore opens (or creates) the store at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, fmt.Errorf("open local store: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}
	return &LocalStore{db: db}, nil
}

// Save replaces the stored snapshot for id.
func (s *LocalStore) Save(id string, elements document.Snapshot) error {
	data, err := json.Marshal(elements)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put([]byte(id), data)
	})
}

// Load returns the stored snapshot for id, or ErrNoLocalCopy.
func (s *LocalStore) Load(id string) (document.Snapshot, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(documentsBucket).Get([]byte(id)); v != nil {
			data = append([]byte(nil), v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, ErrNoLocalCopy
	}
	var snap document.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return snap, nil
}

// Close releases the underlying database file.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
