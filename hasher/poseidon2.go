package hasher

import (
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/poseidon2"
)

// Poseidon2Name identifies the Poseidon2 hash family.
const Poseidon2Name = "poseidon2"

type poseidon2Hasher struct {
	slothMixin
}

// NewPoseidon2 returns the Poseidon2 hash family. It uses the curve's
// default Merkle-Damgard parameters, the same ones the in-circuit gadget
// resolves to.
func NewPoseidon2() Hasher {
	return poseidon2Hasher{}
}

func (poseidon2Hasher) Name() string { return Poseidon2Name }

func (poseidon2Hasher) Digest(data []byte) (Domain, error) {
	if err := checkDigestInput(data); err != nil {
		return Domain{}, err
	}
	return digestFields(poseidon2.NewMerkleDamgardHasher(), data), nil
}

func (poseidon2Hasher) Node(left, right Domain, height uint64) Domain {
	h := poseidon2.NewMerkleDamgardHasher()
	writeFr(h, fr.NewElement(height))
	writeFr(h, left.Fr())
	writeFr(h, right.Fr())

	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return DomainFromFr(e)
}

func (h poseidon2Hasher) KDF(data []byte, m int) (Domain, error) {
	return deriveKDF(h.Digest, data, m)
}
