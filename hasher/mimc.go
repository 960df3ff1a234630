package hasher

import (
	"hash"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr/mimc"

	"github.com/sectorforge/go-storage-proofs/fr32"
)

// MiMCName identifies the MiMC hash family.
const MiMCName = "mimc"

type mimcHasher struct {
	slothMixin
}

// NewMiMC returns the MiMC hash family.
func NewMiMC() Hasher {
	return mimcHasher{}
}

func (mimcHasher) Name() string { return MiMCName }

// writeFr feeds one field element into a running digest. The canonical
// big-endian encoding is always accepted, so a write failure is a programmer
// error.
func writeFr(w hash.Hash, e fr.Element) {
	b := e.Bytes()
	if _, err := w.Write(b[:]); err != nil {
		panic("hasher: writing a canonical field element failed: " + err.Error())
	}
}

// digestFields hashes the input as a sequence of 32-byte blocks. The blocks
// are raw external data, so each one is masked into the field on ingestion.
func digestFields(h hash.Hash, data []byte) Domain {
	for off := 0; off < len(data); off += fr32.NodeSize {
		var block [fr32.NodeSize]byte
		copy(block[:], data[off:off+fr32.NodeSize])
		writeFr(h, fr32.FrFrom(fr32.Trimmed(block)))
	}
	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return DomainFromFr(e)
}

func (mimcHasher) Digest(data []byte) (Domain, error) {
	if err := checkDigestInput(data); err != nil {
		return Domain{}, err
	}
	return digestFields(mimc.NewMiMC(), data), nil
}

func (mimcHasher) Node(left, right Domain, height uint64) Domain {
	h := mimc.NewMiMC()
	writeFr(h, fr.NewElement(height))
	writeFr(h, left.Fr())
	writeFr(h, right.Fr())

	var e fr.Element
	e.SetBytes(h.Sum(nil))
	return DomainFromFr(e)
}

func (h mimcHasher) KDF(data []byte, m int) (Domain, error) {
	return deriveKDF(h.Digest, data, m)
}
