package merkle

import (
	"fmt"

	"github.com/bits-and-blooms/bitset"
	"github.com/fxamacker/cbor/v2"

	"github.com/sectorforge/go-storage-proofs/hasher"
)

// Proof is a self-contained inclusion proof: the leaf value, the sibling
// path with direction flags, and the root the path must reproduce. It does
// not reference the tree it came from.
type Proof struct {
	// Leaf is the committed value whose inclusion is proven.
	Leaf hasher.Domain
	// Siblings holds the adjacent node at every level, leaf level first.
	Siblings []hasher.Domain
	// Dirs flags, per level, whether the current subtree is the right
	// child.
	Dirs *bitset.BitSet
	// Root is the tree root the path leads to.
	Root hasher.Domain
}

// GenProof walks from the leaf at the challenged index to the root,
// recording the sibling and direction at every level.
func (t *Tree) GenProof(challenge uint64) (*Proof, error) {
	if challenge >= t.leafs {
		return nil, fmt.Errorf("merkle: challenge %d out of range (%d leafs)", challenge, t.leafs)
	}

	leaf, err := t.ReadLeaf(challenge)
	if err != nil {
		return nil, err
	}

	p := &Proof{
		Leaf:     leaf,
		Siblings: make([]hasher.Domain, 0, t.height),
		Dirs:     bitset.New(uint(t.height)),
		Root:     t.root,
	}

	idx := challenge
	for level := 0; level < t.height; level++ {
		sibling, err := t.readNode(level, idx^1)
		if err != nil {
			return nil, err
		}
		p.Siblings = append(p.Siblings, sibling)
		if idx&1 == 1 {
			p.Dirs.Set(uint(level))
		}
		idx >>= 1
	}

	return p, nil
}

// Validate replays the hash chain from the leaf through the recorded path
// and compares the result to the stored root. It returns false on any
// mismatch or malformed proof and never panics, whatever the input.
func (p *Proof) Validate(h hasher.Hasher) bool {
	if p == nil || p.Dirs == nil {
		return false
	}
	if p.Dirs.Len() != uint(len(p.Siblings)) {
		return false
	}

	cur := p.Leaf
	for i, sibling := range p.Siblings {
		ht := uint64(i + 1)
		if p.Dirs.Test(uint(i)) {
			cur = h.Node(sibling, cur, ht)
		} else {
			cur = h.Node(cur, sibling, ht)
		}
	}
	return cur == p.Root
}

// Encode serializes the proof as CBOR for persistence.
func (p *Proof) Encode() ([]byte, error) {
	return cbor.Marshal(p)
}

// DecodeProof deserializes a CBOR-encoded proof.
func DecodeProof(data []byte) (*Proof, error) {
	var p Proof
	if err := cbor.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("merkle: decoding proof: %w", err)
	}
	return &p, nil
}
