// Package drgraph generates depth-robust graphs by bucket sampling.
//
// Each node's parents are drawn from an exponential back-distance
// distribution seeded only by (seed, node), so the graph never exists in
// memory: any node's parent set can be recomputed on demand, concurrently,
// with no shared state.
package drgraph

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"math/bits"
	"slices"

	"golang.org/x/crypto/chacha20"

	"github.com/sectorforge/go-storage-proofs/fr32"
	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/merkle"
)

// BaseDegree is the fixed parent count of the base graph construction.
const BaseDegree = 5

// SeedWords is the width of the sampling seed. Together with the node index
// it forms the 8-word stream-cipher key.
const SeedWords = 7

// Seed keys the parent sampling of a graph.
type Seed [SeedWords]uint32

// NewSeed draws a sampling seed from the OS entropy source.
func NewSeed() Seed {
	var b [4 * SeedWords]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic("drgraph: reading OS entropy failed: " + err.Error())
	}
	var s Seed
	for i := range s {
		s[i] = binary.LittleEndian.Uint32(b[4*i:])
	}
	return s
}

// BucketGraph is a deterministic depth-robust graph over a fixed node count.
// Graphs with equal (nodes, degree, hasher) are interchangeable for
// parameter-generation purposes regardless of seed.
type BucketGraph struct {
	nodes      uint64
	baseDegree uint64
	seed       Seed
	h          hasher.Hasher
}

// New constructs a bucket graph. The base construction has a fixed degree
// and no expansion edges; violating either is a caller bug and panics.
func New(h hasher.Hasher, nodes uint64, baseDegree, expansionDegree int, seed Seed) *BucketGraph {
	if baseDegree != BaseDegree {
		panic(fmt.Sprintf("drgraph: base degree must be %d, got %d", BaseDegree, baseDegree))
	}
	if expansionDegree != 0 {
		panic(fmt.Sprintf("drgraph: base graph has no expansion edges, got degree %d", expansionDegree))
	}
	return &BucketGraph{
		nodes:      nodes,
		baseDegree: uint64(baseDegree),
		seed:       seed,
		h:          h,
	}
}

// Size returns the number of nodes in the graph.
func (g *BucketGraph) Size() uint64 { return g.nodes }

// Degree returns the number of parents of every node.
func (g *BucketGraph) Degree() int { return int(g.baseDegree) }

// Seed returns the sampling seed.
func (g *BucketGraph) Seed() Seed { return g.seed }

// HasherName returns the name of the graph's hash family.
func (g *BucketGraph) HasherName() string { return g.h.Name() }

// ExpectedSize returns the byte size of the node data the graph covers.
func (g *BucketGraph) ExpectedSize() uint64 { return g.nodes * fr32.NodeSize }

// Identifier names the parameter set of this graph. The seed is not
// included: it does not influence parameter generation.
func (g *BucketGraph) Identifier() string {
	return fmt.Sprintf("drgraph.BucketGraph{size: %d; degree: %d; hasher: %s}", g.nodes, g.baseDegree, g.h.Name())
}

// SectorSize returns the sector size covered by this graph.
func (g *BucketGraph) SectorSize() uint64 { return g.ExpectedSize() }

// Parents fills the first Degree() entries of parents with the sorted parent
// indices of node. Nodes 0 and 1 anchor the DAG: all their parent slots are
// zero. Duplicates are allowed; every parent of node >= 2 is < node.
func (g *BucketGraph) Parents(node uint64, parents []uint64) {
	m := g.baseDegree

	if node < 2 {
		for k := uint64(0); k < m; k++ {
			parents[k] = 0
		}
		return
	}

	s := newSampleStream(g.seed, node)
	for k := uint64(0); k < m; k++ {
		// simulate the edges that the m meta nodes of this node would
		// receive from earlier meta nodes
		meta := node*m + k
		logi := uint64(bits.Len64(node*m) - 1)
		j := s.next() % logi
		jj := min(meta, uint64(1)<<(j+1))
		backDist := uniformRange(s.next(), max(jj>>1, 2), jj)
		out := (meta - backDist) / m

		if out == node {
			// avoid self references
			parents[k] = node - 1
		} else {
			parents[k] = out
		}
	}

	slices.Sort(parents[:m])
}

// Height returns the merkle tree height for this graph's node count.
func (g *BucketGraph) Height() int {
	return merkle.Height(g.nodes)
}

// MerkleTree builds the commitment tree over the sector data, one 32-byte
// node at a time. Data length must match the graph exactly.
func (g *BucketGraph) MerkleTree(data []byte, parallel bool) (*merkle.Tree, error) {
	if uint64(len(data)) != g.ExpectedSize() {
		return nil, fmt.Errorf("%w: got %d bytes, want %d nodes of %d bytes",
			merkle.ErrInvalidTreeArgs, len(data), g.nodes, fr32.NodeSize)
	}

	leaves := make([]hasher.Domain, g.nodes)
	for i := range leaves {
		copy(leaves[i][:], data[i*fr32.NodeSize:(i+1)*fr32.NodeSize])
		fr32.Trim((*[fr32.NodeSize]byte)(&leaves[i]))
	}

	return merkle.BuildTree(g.h, leaves, merkle.WithParallel(parallel))
}

// sampleStream yields the per-node pseudo-random words: a ChaCha20 keystream
// keyed by seed || node.
type sampleStream struct {
	buf []byte
	off int
}

func newSampleStream(seed Seed, node uint64) *sampleStream {
	var key [32]byte
	for i, w := range seed {
		binary.LittleEndian.PutUint32(key[4*i:], w)
	}
	binary.LittleEndian.PutUint32(key[4*SeedWords:], uint32(node))

	var nonce [chacha20.NonceSize]byte
	c, err := chacha20.NewUnauthenticatedCipher(key[:], nonce[:])
	if err != nil {
		panic("drgraph: chacha20 init failed: " + err.Error())
	}

	// two draws per parent slot
	buf := make([]byte, 16*BaseDegree)
	c.XORKeyStream(buf, buf)
	return &sampleStream{buf: buf}
}

func (s *sampleStream) next() uint64 {
	v := binary.LittleEndian.Uint64(s.buf[s.off:])
	s.off += 8
	return v
}

// uniformRange maps a random word into [lo, hi] inclusive.
func uniformRange(v, lo, hi uint64) uint64 {
	return lo + v%(hi-lo+1)
}
