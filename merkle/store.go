package merkle

import (
	"fmt"
	"os"

	"github.com/sectorforge/go-storage-proofs/fr32"
	"github.com/sectorforge/go-storage-proofs/hasher"
)

// Store holds the flat node array of a tree (leaves first, then each level
// up to the root). The tree builder only ever appends in deterministic
// order and reads by index, so a store can live in memory or on disk.
type Store interface {
	// Read returns the node at index i.
	Read(i uint64) (hasher.Domain, error)
	// Append adds the next node.
	Append(d hasher.Domain) error
	// Len returns the number of nodes stored.
	Len() uint64
}

// MemStore keeps all nodes in memory.
type MemStore struct {
	nodes []hasher.Domain
}

// NewMemStore returns an empty in-memory store with room for n nodes.
func NewMemStore(n uint64) *MemStore {
	return &MemStore{nodes: make([]hasher.Domain, 0, n)}
}

func (s *MemStore) Read(i uint64) (hasher.Domain, error) {
	if i >= uint64(len(s.nodes)) {
		return hasher.Domain{}, fmt.Errorf("merkle: node index %d out of range (%d stored)", i, len(s.nodes))
	}
	return s.nodes[i], nil
}

func (s *MemStore) Append(d hasher.Domain) error {
	s.nodes = append(s.nodes, d)
	return nil
}

func (s *MemStore) Len() uint64 {
	return uint64(len(s.nodes))
}

// FileStore keeps nodes as fixed 32-byte records in a single file. Reads and
// writes block on I/O; the tree logic does not care.
type FileStore struct {
	f *os.File
	n uint64
}

// NewFileStore creates (or truncates) a node file at path.
func NewFileStore(path string) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, fmt.Errorf("merkle: opening node store: %w", err)
	}
	return &FileStore{f: f}, nil
}

func (s *FileStore) Read(i uint64) (hasher.Domain, error) {
	var d hasher.Domain
	if i >= s.n {
		return d, fmt.Errorf("merkle: node index %d out of range (%d stored)", i, s.n)
	}
	if _, err := s.f.ReadAt(d[:], int64(i)*fr32.NodeSize); err != nil {
		return d, fmt.Errorf("merkle: reading node %d: %w", i, err)
	}
	return d, nil
}

func (s *FileStore) Append(d hasher.Domain) error {
	if _, err := s.f.WriteAt(d[:], int64(s.n)*fr32.NodeSize); err != nil {
		return fmt.Errorf("merkle: appending node %d: %w", s.n, err)
	}
	s.n++
	return nil
}

func (s *FileStore) Len() uint64 {
	return s.n
}

// Close releases the underlying file.
func (s *FileStore) Close() error {
	return s.f.Close()
}
