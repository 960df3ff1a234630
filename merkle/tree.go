// Package merkle builds binary hash trees over domain values and generates
// and validates inclusion proofs against their roots.
//
// The tree layout is deterministic: it is indexed by leaf position, never by
// completion order, so sequential and parallel builds produce identical
// trees. Levels of odd width duplicate their last node. The level of a node
// is folded into its hash, preventing second-preimage attacks across levels.
package merkle

import (
	"errors"
	"fmt"
	"math/bits"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/logger"
)

// ErrInvalidTreeArgs signals node data whose length does not match the
// expected node count.
var ErrInvalidTreeArgs = errors.New("merkle: invalid tree arguments")

// minParallelWork is the level width below which splitting across workers
// costs more than it saves.
const minParallelWork = 128

// Height returns the tree height for n leaves, ceil(log2(n)).
func Height(n uint64) int {
	if n <= 1 {
		return 0
	}
	return bits.Len64(n - 1)
}

type config struct {
	parallel bool
	store    Store
}

// Option configures a tree build.
type Option func(*config)

// WithParallel toggles partitioning of node hashing across workers.
func WithParallel(parallel bool) Option {
	return func(c *config) { c.parallel = parallel }
}

// WithStore directs the built nodes into a custom store (for example a
// FileStore). The default is an in-memory store.
func WithStore(s Store) Option {
	return func(c *config) { c.store = s }
}

// Tree is an immutable binary hash tree. It exclusively owns its node store;
// proofs generated from it are self-contained snapshots.
type Tree struct {
	h        hasher.Hasher
	store    Store
	leafs    uint64
	height   int
	root     hasher.Domain
	levelOff []uint64
	levelLen []uint64
}

// BuildTree constructs the tree over the given leaves.
func BuildTree(h hasher.Hasher, leaves []hasher.Domain, opts ...Option) (*Tree, error) {
	if len(leaves) == 0 {
		return nil, fmt.Errorf("%w: no leaves", ErrInvalidTreeArgs)
	}

	cfg := config{}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.store == nil {
		cfg.store = NewMemStore(2 * uint64(len(leaves)))
	}

	log := logger.Logger().With().Str("component", "merkle").Logger()
	start := time.Now()

	t := &Tree{
		h:      h,
		store:  cfg.store,
		leafs:  uint64(len(leaves)),
		height: Height(uint64(len(leaves))),
	}

	level := make([]hasher.Domain, len(leaves))
	copy(level, leaves)

	for ht := uint64(1); ; ht++ {
		if len(level)%2 != 0 && len(level) > 1 {
			level = append(level, level[len(level)-1])
		}
		if err := t.appendLevel(level); err != nil {
			return nil, err
		}
		if len(level) == 1 {
			break
		}

		next := make([]hasher.Domain, len(level)/2)
		if err := hashLevel(h, level, next, ht, cfg.parallel); err != nil {
			return nil, err
		}
		level = next
	}

	t.root = level[0]

	log.Debug().
		Uint64("leafs", t.leafs).
		Int("height", t.height).
		Str("hasher", h.Name()).
		Bool("parallel", cfg.parallel).
		Dur("took", time.Since(start)).
		Msg("built merkle tree")

	return t, nil
}

// hashLevel fills next[i] = node(level[2i], level[2i+1], ht).
func hashLevel(h hasher.Hasher, level, next []hasher.Domain, ht uint64, parallel bool) error {
	if !parallel || len(next) < minParallelWork {
		for i := range next {
			next[i] = h.Node(level[2*i], level[2*i+1], ht)
		}
		return nil
	}

	workers := runtime.GOMAXPROCS(0)
	chunk := (len(next) + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		lo := w * chunk
		hi := min(lo+chunk, len(next))
		if lo >= hi {
			break
		}
		g.Go(func() error {
			for i := lo; i < hi; i++ {
				next[i] = h.Node(level[2*i], level[2*i+1], ht)
			}
			return nil
		})
	}
	return g.Wait()
}

func (t *Tree) appendLevel(level []hasher.Domain) error {
	t.levelOff = append(t.levelOff, t.store.Len())
	t.levelLen = append(t.levelLen, uint64(len(level)))
	for _, d := range level {
		if err := t.store.Append(d); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the tree root.
func (t *Tree) Root() hasher.Domain { return t.root }

// Leafs returns the number of leaves the tree was built over.
func (t *Tree) Leafs() uint64 { return t.leafs }

// Height returns the number of levels of every inclusion proof.
func (t *Tree) Height() int { return t.height }

// ReadLeaf returns the leaf at index i.
func (t *Tree) ReadLeaf(i uint64) (hasher.Domain, error) {
	if i >= t.leafs {
		return hasher.Domain{}, fmt.Errorf("merkle: leaf index %d out of range (%d leafs)", i, t.leafs)
	}
	return t.store.Read(t.levelOff[0] + i)
}

func (t *Tree) readNode(level int, i uint64) (hasher.Domain, error) {
	if i >= t.levelLen[level] {
		return hasher.Domain{}, fmt.Errorf("merkle: node %d out of range at level %d", i, level)
	}
	return t.store.Read(t.levelOff[level] + i)
}
