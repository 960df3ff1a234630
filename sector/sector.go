// Package sector records what a prover needs to answer challenges on a
// committed sector later: the replica commitment, the graph seed and the
// shape parameters. Records are CBOR-encoded and persisted through a
// kvstore.Store.
package sector

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/sectorforge/go-storage-proofs/drgraph"
	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/kvstore"
	"github.com/sectorforge/go-storage-proofs/merkle"
)

// ErrNotFound is returned when no metadata is stored for a sector id.
var ErrNotFound = errors.New("sector: metadata not found")

const keyPrefix = "sector/meta/"

// Metadata is the durable record of one committed sector.
type Metadata struct {
	SectorID   uint64        `cbor:"1,keyasint"`
	CommR      hasher.Domain `cbor:"2,keyasint"`
	Seed       drgraph.Seed  `cbor:"3,keyasint"`
	Nodes      uint64        `cbor:"4,keyasint"`
	HasherName string        `cbor:"5,keyasint"`
}

// Graph reconstructs the depth-robust graph the sector was committed with.
func (m *Metadata) Graph() (*drgraph.BucketGraph, error) {
	h, err := hasher.ByName(m.HasherName)
	if err != nil {
		return nil, err
	}
	return drgraph.New(h, m.Nodes, drgraph.BaseDegree, 0, m.Seed), nil
}

// Commit builds the commitment tree over the sector data and returns the
// metadata record alongside the tree.
func Commit(id uint64, g *drgraph.BucketGraph, data []byte, parallel bool) (*Metadata, *merkle.Tree, error) {
	tree, err := g.MerkleTree(data, parallel)
	if err != nil {
		return nil, nil, err
	}
	m := &Metadata{
		SectorID:   id,
		CommR:      tree.Root(),
		Seed:       g.Seed(),
		Nodes:      g.Size(),
		HasherName: g.HasherName(),
	}
	return m, tree, nil
}

// Save persists the metadata record under its sector id.
func Save(s kvstore.Store, m *Metadata) error {
	raw, err := cbor.Marshal(m)
	if err != nil {
		return fmt.Errorf("sector: encoding metadata: %w", err)
	}
	return s.Put(key(m.SectorID), raw)
}

// Load reads the metadata record for a sector id. A missing record is
// ErrNotFound.
func Load(s kvstore.Store, id uint64) (*Metadata, error) {
	raw, err := s.Get(key(id))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: sector %d", ErrNotFound, id)
	}

	var m Metadata
	if err := cbor.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("sector: decoding metadata: %w", err)
	}
	return &m, nil
}

// Delete removes the metadata record for a sector id, if any.
func Delete(s kvstore.Store, id uint64) error {
	return s.Delete(key(id))
}

func key(id uint64) []byte {
	k := make([]byte, len(keyPrefix)+8)
	copy(k, keyPrefix)
	binary.BigEndian.PutUint64(k[len(keyPrefix):], id)
	return k
}
