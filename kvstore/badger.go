package kvstore

import (
	"fmt"

	"github.com/dgraph-io/badger"
)

// BadgerStore is a Store persisted in a badger database on disk.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) a badger database under dir.
func NewBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions
	opts.Dir = dir
	opts.ValueDir = dir

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("kvstore: opening badger db: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// Put stores value under key.
func (s *BadgerStore) Put(key, value []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(key, value)
	})
}

// Get returns the value under key, or (nil, nil) when absent.
func (s *BadgerStore) Get(key []byte) ([]byte, error) {
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return nil
			}
			return fmt.Errorf("kvstore: getting key: %w", err)
		}

		v, err := item.Value()
		if err != nil {
			return fmt.Errorf("kvstore: reading value: %w", err)
		}
		out = make([]byte, len(v))
		copy(out, v)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes key. Deleting a missing key is a no-op.
func (s *BadgerStore) Delete(key []byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(key)
	})
}

// Close flushes and closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
