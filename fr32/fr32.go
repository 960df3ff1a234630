// Package fr32 centralizes the conversions between 32-byte little-endian
// values and BLS12-381 scalar field elements.
//
// A raw 256-bit value is not always a valid field element; masking its top
// two bits guarantees it stays below the field modulus. Masking happens once,
// at the boundary where raw external bytes enter the module (graph leaves,
// digest blocks, derived keys). Values produced by the module itself are
// canonical encodings and convert losslessly in both directions.
package fr32

import (
	"math/big"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

// NodeSize is the byte width of a domain value / field element.
const NodeSize = 32

// MaxPackedBits is the number of bits that can be packed into a single
// field element without risking an overflow of the modulus.
const MaxPackedBits = fr.Bits - 1

// Trim masks the top two bits of the 256-bit little-endian value in place,
// keeping it below the field modulus. It is applied when raw bytes first
// become a domain value, never to canonical encodings.
func Trim(b *[NodeSize]byte) {
	b[NodeSize-1] &= 0b0011_1111
}

// Trimmed returns a copy of b with the top two bits masked.
func Trimmed(b [NodeSize]byte) [NodeSize]byte {
	Trim(&b)
	return b
}

// FrFrom interprets b as a little-endian integer and returns the
// corresponding field element. The bytes are expected to be a canonical
// encoding; raw external data must pass through Trim before it first becomes
// a domain value.
func FrFrom(b [NodeSize]byte) fr.Element {
	var be [NodeSize]byte
	for i := range b {
		be[i] = b[NodeSize-1-i]
	}
	var e fr.Element
	e.SetBytes(be[:])
	return e
}

// FrInto returns the canonical little-endian encoding of e. The result
// always round-trips through FrFrom.
func FrInto(e fr.Element) [NodeSize]byte {
	be := e.Bytes()
	var le [NodeSize]byte
	for i := range be {
		le[i] = be[NodeSize-1-i]
	}
	return le
}

// PackBits packs the first n bits of s (bit i becoming coefficient 2^i) into
// a single field element. It panics if n exceeds MaxPackedBits; callers pack
// per-chunk when they carry more bits.
func PackBits(s *bitset.BitSet, n uint) fr.Element {
	if n > MaxPackedBits {
		panic("fr32: too many bits to pack into a single field element")
	}
	var x big.Int
	for i := uint(0); i < n; i++ {
		if s.Test(i) {
			x.SetBit(&x, int(i), 1)
		}
	}
	var e fr.Element
	e.SetBigInt(&x)
	return e
}
