package hasher

import (
	"encoding/binary"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/sectorforge/go-storage-proofs/crypto/pedersen"
	"github.com/sectorforge/go-storage-proofs/fr32"
)

// PedersenName identifies the Pedersen hash family.
const PedersenName = "pedersen"

// NodePreimageBits is the bit width of a node-hash preimage: a 64-bit height
// prefix followed by the 255-bit decompositions of both children. The
// in-circuit gadget consumes the exact same layout.
const NodePreimageBits = 64 + 2*(fr.Bits)

type pedersenHasher struct {
	slothMixin
}

// NewPedersen returns the Pedersen hash family.
func NewPedersen() Hasher {
	return pedersenHasher{}
}

func (pedersenHasher) Name() string { return PedersenName }

func (pedersenHasher) Digest(data []byte) (Domain, error) {
	if err := checkDigestInput(data); err != nil {
		return Domain{}, err
	}
	e, err := pedersen.Digest(data)
	if err != nil {
		return Domain{}, err
	}
	return DomainFromFr(e), nil
}

// NodePreimage assembles the canonical node-hash bit string. Exported so the
// circuit gadget can mirror it bit for bit.
func NodePreimage(left, right fr.Element, height uint64) []bool {
	bits := make([]bool, 0, NodePreimageBits)

	var hb [8]byte
	binary.LittleEndian.PutUint64(hb[:], height)
	bits = append(bits, pedersen.BytesToBits(hb[:])...)

	bits = append(bits, frBits(left)...)
	bits = append(bits, frBits(right)...)
	return bits
}

// frBits returns the canonical fr.Bits-wide little-endian decomposition.
func frBits(e fr.Element) []bool {
	le := fr32.FrInto(e)
	return pedersen.BytesToBits(le[:])[:fr.Bits]
}

func (pedersenHasher) Node(left, right Domain, height uint64) Domain {
	x := pedersen.Compress(NodePreimage(left.Fr(), right.Fr(), height))
	return DomainFromFr(x)
}

func (h pedersenHasher) KDF(data []byte, m int) (Domain, error) {
	return deriveKDF(h.Digest, data, m)
}
