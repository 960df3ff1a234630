// Package por implements the parallel proof-of-retrievability circuit: a
// batch of merkle inclusion proofs against one shared root, expressed as
// arithmetic constraints for an external SNARK backend.
//
// Public inputs, in order: per witness the committed leaf value, per witness
// the packed direction bits of its path, and finally the shared root. The
// sibling values and the individual direction bits stay private.
package por

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/sectorforge/go-storage-proofs/fr32"
	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/merkle"
)

// ErrMismatchedWitness signals witness slices whose shapes disagree.
var ErrMismatchedWitness = errors.New("por: values and auth paths must have matching shapes")

// ParallelProofOfRetrievability proves that every committed value walks
// through its authentication path to the shared root. Path siblings and
// direction bits are private; conditional swaps keep the constraint shape
// independent of the witness.
type ParallelProofOfRetrievability struct {
	// Values are the committed leaf values, one per witness.
	Values []frontend.Variable `gnark:",public"`

	// AuthPaths holds the sibling value per witness and level.
	AuthPaths [][]frontend.Variable `gnark:",secret"`

	// AuthDirs holds the per-level "current subtree is the right child"
	// bits, private individually ...
	AuthDirs [][]frontend.Variable `gnark:",secret"`

	// PackedDirs ... but exposed bit-packed, so a verifier can bind a proof
	// to a path shape.
	PackedDirs []frontend.Variable `gnark:",public"`

	// Root is the shared tree root.
	Root frontend.Variable `gnark:",public"`

	// Hasher picks the in-circuit node hash; it is circuit shape, not
	// witness.
	Hasher CircuitHasher `gnark:"-"`
}

// NewCircuit returns the constraint-system placeholder for batches of r
// witnesses over trees of the given height. Witness values stay unassigned
// until proving time.
func NewCircuit(r, height int, h CircuitHasher) *ParallelProofOfRetrievability {
	if height > fr32.MaxPackedBits {
		panic(fmt.Sprintf("por: tree height %d exceeds a single packed public input", height))
	}
	c := &ParallelProofOfRetrievability{
		Values:     make([]frontend.Variable, r),
		AuthPaths:  make([][]frontend.Variable, r),
		AuthDirs:   make([][]frontend.Variable, r),
		PackedDirs: make([]frontend.Variable, r),
		Hasher:     h,
	}
	for i := 0; i < r; i++ {
		c.AuthPaths[i] = make([]frontend.Variable, height)
		c.AuthDirs[i] = make([]frontend.Variable, height)
	}
	return c
}

// Define declares the constraints.
func (c *ParallelProofOfRetrievability) Define(api frontend.API) error {
	if c.Hasher == nil {
		return errors.New("por: no circuit hasher configured")
	}
	if len(c.AuthPaths) != len(c.Values) || len(c.AuthDirs) != len(c.Values) || len(c.PackedDirs) != len(c.Values) {
		return ErrMismatchedWitness
	}

	for i := range c.Values {
		if len(c.AuthPaths[i]) != len(c.AuthDirs[i]) {
			return ErrMismatchedWitness
		}

		cur := c.Values[i]
		for level := range c.AuthPaths[i] {
			isRight := c.AuthDirs[i][level]
			api.AssertIsBoolean(isRight)

			sibling := c.AuthPaths[i][level]

			// conditionally swap instead of branching; the constraint count
			// must not depend on the witness
			left := api.Select(isRight, sibling, cur)
			right := api.Select(isRight, cur, sibling)

			next, err := c.Hasher.HashNode(api, left, right, uint64(level+1))
			if err != nil {
				return err
			}
			cur = next
		}

		// bind the packed public input to the private direction bits
		api.AssertIsEqual(api.FromBinary(c.AuthDirs[i]...), c.PackedDirs[i])

		// the recomputed value must be the shared root
		api.AssertIsEqual(cur, c.Root)
	}

	return nil
}

// Assign builds the proving assignment from native proofs sharing one root.
// All proofs must have the same path length.
func Assign(proofs []*merkle.Proof, root hasher.Domain, h CircuitHasher) (*ParallelProofOfRetrievability, error) {
	if len(proofs) == 0 {
		return nil, fmt.Errorf("%w: empty batch", ErrMismatchedWitness)
	}
	height := len(proofs[0].Siblings)

	a := NewCircuit(len(proofs), height, h)
	for i, p := range proofs {
		if len(p.Siblings) != height {
			return nil, fmt.Errorf("%w: proof %d has %d levels, want %d", ErrMismatchedWitness, i, len(p.Siblings), height)
		}

		a.Values[i] = frVar(p.Leaf)
		for level, sibling := range p.Siblings {
			a.AuthPaths[i][level] = frVar(sibling)
			if p.Dirs.Test(uint(level)) {
				a.AuthDirs[i][level] = 1
			} else {
				a.AuthDirs[i][level] = 0
			}
		}

		packed := fr32.PackBits(p.Dirs, uint(height))
		a.PackedDirs[i] = packed.BigInt(new(big.Int))
	}
	a.Root = frVar(root)

	return a, nil
}

func frVar(d hasher.Domain) frontend.Variable {
	e := d.Fr()
	return e.BigInt(new(big.Int))
}

// PublicParams is the parameter-set identity of a por circuit, used as the
// compiled-parameter cache key.
type PublicParams struct {
	Leaves     uint64
	Challenges int
	HasherName string
}

// Identifier names the parameter set.
func (p PublicParams) Identifier() string {
	return fmt.Sprintf("por.ParallelProofOfRetrievability{leaves: %d; challenges: %d; hasher: %s}",
		p.Leaves, p.Challenges, p.HasherName)
}

// SectorSize returns the sector size covered by the committed tree.
func (p PublicParams) SectorSize() uint64 {
	return p.Leaves * fr32.NodeSize
}
