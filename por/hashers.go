package por

import (
	"fmt"
	"math/big"

	tedwards "github.com/consensys/gnark-crypto/ecc/twistededwards"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/algebra/native/twistededwards"
	"github.com/consensys/gnark/std/hash/mimc"
	stdposeidon2 "github.com/consensys/gnark/std/hash/poseidon2"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/sectorforge/go-storage-proofs/crypto/pedersen"
	"github.com/sectorforge/go-storage-proofs/hasher"
)

// CircuitHasher recomputes a tree node hash inside the constraint system,
// mirroring the native hasher.Hasher.Node construction of the same name.
type CircuitHasher interface {
	// Name matches the native hash family name.
	Name() string
	// HashNode constrains the parent hash of (left, right) at the given
	// tree height.
	HashNode(api frontend.API, left, right frontend.Variable, height uint64) (frontend.Variable, error)
}

// CircuitHasherByName returns the in-circuit twin of a native hash family.
func CircuitHasherByName(name string) (CircuitHasher, error) {
	switch name {
	case hasher.PedersenName:
		return PedersenCircuitHasher(), nil
	case hasher.MiMCName:
		return MiMCCircuitHasher(), nil
	case hasher.Poseidon2Name:
		return Poseidon2CircuitHasher(), nil
	default:
		return nil, fmt.Errorf("por: no circuit hasher for family %q", name)
	}
}

type mimcCircuitHasher struct{}

// MiMCCircuitHasher returns the in-circuit MiMC node hash.
func MiMCCircuitHasher() CircuitHasher { return mimcCircuitHasher{} }

func (mimcCircuitHasher) Name() string { return hasher.MiMCName }

func (mimcCircuitHasher) HashNode(api frontend.API, left, right frontend.Variable, height uint64) (frontend.Variable, error) {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		return nil, err
	}
	h.Write(height, left, right)
	return h.Sum(), nil
}

type poseidon2CircuitHasher struct{}

// Poseidon2CircuitHasher returns the in-circuit Poseidon2 node hash.
func Poseidon2CircuitHasher() CircuitHasher { return poseidon2CircuitHasher{} }

func (poseidon2CircuitHasher) Name() string { return hasher.Poseidon2Name }

func (poseidon2CircuitHasher) HashNode(api frontend.API, left, right frontend.Variable, height uint64) (frontend.Variable, error) {
	h, err := stdposeidon2.NewMerkleDamgardHasher(api)
	if err != nil {
		return nil, err
	}
	h.Write(height, left, right)
	return h.Sum(), nil
}

type pedersenCircuitHasher struct{}

// PedersenCircuitHasher returns the in-circuit Pedersen node hash. It uses
// the same window tables as the native implementation, so both sides agree
// bit for bit.
func PedersenCircuitHasher() CircuitHasher { return pedersenCircuitHasher{} }

func (pedersenCircuitHasher) Name() string { return hasher.PedersenName }

func (pedersenCircuitHasher) HashNode(api frontend.API, left, right frontend.Variable, height uint64) (frontend.Variable, error) {
	curve, err := twistededwards.NewEdCurve(api, tedwards.BLS12_381)
	if err != nil {
		return nil, err
	}

	// same preimage layout as hasher.NodePreimage: 64 height bits, then the
	// 255-bit decompositions of both children
	bits := make([]frontend.Variable, 0, hasher.NodePreimageBits)
	for i := 0; i < 64; i++ {
		bits = append(bits, (height>>uint(i))&1)
	}
	bits = append(bits, api.ToBinary(left, fr.Bits)...)
	bits = append(bits, api.ToBinary(right, fr.Bits)...)

	return pedersenCompress(api, curve, bits), nil
}

// pedersenCompress evaluates the windowed Pedersen hash over the given bits:
// per 3-bit window a table lookup of the precomputed multiple, a conditional
// negation for the sign bit, and a twisted Edwards addition. Constant size,
// no data-dependent branches. The personalization prefix (six one-bits) goes
// in ahead of the message, exactly as the native Compress does.
func pedersenCompress(api frontend.API, curve twistededwards.Curve, bits []frontend.Variable) frontend.Variable {
	all := make([]frontend.Variable, 0, pedersen.PrefixBits+len(bits))
	for i := 0; i < pedersen.PrefixBits; i++ {
		all = append(all, 1)
	}
	bits = append(all, bits...)

	nWindows := pedersen.NumWindows(len(bits))
	for len(bits) < pedersen.WindowBits*nWindows {
		bits = append(bits, 0)
	}

	acc := twistededwards.Point{X: 0, Y: 1}
	for w := 0; w < nWindows; w++ {
		segment := w / pedersen.WindowsPerSegment
		window := w % pedersen.WindowsPerSegment
		table := pedersen.WindowTable(segment, window)

		b0 := bits[pedersen.WindowBits*w]
		b1 := bits[pedersen.WindowBits*w+1]
		b2 := bits[pedersen.WindowBits*w+2]

		x := api.Lookup2(b0, b1,
			coord(table[0].X), coord(table[1].X), coord(table[2].X), coord(table[3].X))
		y := api.Lookup2(b0, b1,
			coord(table[0].Y), coord(table[1].Y), coord(table[2].Y), coord(table[3].Y))

		// the sign bit negates the point, and -(x, y) = (-x, y)
		x = api.Select(b2, api.Neg(x), x)

		acc = curve.Add(acc, twistededwards.Point{X: x, Y: y})
	}

	return acc.X
}

func coord(e fr.Element) *big.Int {
	return e.BigInt(new(big.Int))
}
