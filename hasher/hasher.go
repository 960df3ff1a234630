// Package hasher defines the 32-byte domain value flowing through graphs,
// trees and circuits, and the pluggable hash families computing over it.
//
// Three interchangeable families are provided: Pedersen (over the BLS12-381
// embedded Edwards curve), MiMC and Poseidon2. All of them have a matching
// in-circuit construction (see the por package), so trees built with any
// family can be proven in zero knowledge.
package hasher

import (
	"errors"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"

	"github.com/sectorforge/go-storage-proofs/crypto/sloth"
	"github.com/sectorforge/go-storage-proofs/fr32"
)

var (
	// ErrInvalidInputSize signals a byte slice of the wrong length for a
	// domain value.
	ErrInvalidInputSize = errors.New("hasher: invalid input size")
	// ErrInvalidInputLength signals digest input that is not at least two
	// blocks long and a multiple of the block size.
	ErrInvalidInputLength = errors.New("hasher: invalid digest input length")
)

// Domain is a fixed-width field-element-compatible value. The bytes are the
// canonical little-endian encoding of the underlying integer. Raw external
// data is masked by fr32.Trim when it first becomes a domain value (graph
// leaves, digest blocks, derived keys); values produced by the hash families
// are canonical as-is and convert to the field losslessly.
type Domain [fr32.NodeSize]byte

// DomainFromBytes builds a Domain from exactly 32 bytes.
func DomainFromBytes(raw []byte) (Domain, error) {
	var d Domain
	if len(raw) != fr32.NodeSize {
		return d, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidInputSize, len(raw), fr32.NodeSize)
	}
	copy(d[:], raw)
	return d, nil
}

// DomainFromFr returns the canonical domain encoding of a field element.
func DomainFromFr(e fr.Element) Domain {
	return Domain(fr32.FrInto(e))
}

// ToBytes returns a copy of the 32-byte encoding.
func (d Domain) ToBytes() []byte {
	out := make([]byte, fr32.NodeSize)
	copy(out, d[:])
	return out
}

// Fr converts the domain value into a field element.
func (d Domain) Fr() fr.Element {
	return fr32.FrFrom(d)
}

// Cmp compares two domain values as little-endian integers. It defines a
// total order, used for tie-free sorting.
func (d Domain) Cmp(other Domain) int {
	for i := fr32.NodeSize - 1; i >= 0; i-- {
		switch {
		case d[i] < other[i]:
			return -1
		case d[i] > other[i]:
			return 1
		}
	}
	return 0
}

func (d Domain) String() string {
	return fmt.Sprintf("%x", d[:])
}

// Hasher is the capability set shared by all hash families.
type Hasher interface {
	// Name identifies the family; it is part of parameter-set identifiers.
	Name() string

	// Digest hashes multi-block input. The input must be at least two
	// 32-byte blocks long and a multiple of the block size.
	Digest(data []byte) (Domain, error)

	// Node combines two child hashes into their parent. The tree height of
	// the computed node is folded into the hash input to prevent
	// second-preimage attacks across levels.
	Node(left, right Domain, height uint64) Domain

	// KDF derives a key from (m+1) domain-sized blocks, masking the top two
	// bits of the result.
	KDF(data []byte, m int) (Domain, error)

	// SlothEncode applies the sequential sloth permutation.
	SlothEncode(key, plaintext Domain, rounds int) Domain
	// SlothDecode inverts SlothEncode.
	SlothDecode(key, ciphertext Domain, rounds int) Domain
}

// ByName returns the hash family registered under name.
func ByName(name string) (Hasher, error) {
	switch name {
	case PedersenName:
		return NewPedersen(), nil
	case MiMCName:
		return NewMiMC(), nil
	case Poseidon2Name:
		return NewPoseidon2(), nil
	default:
		return nil, fmt.Errorf("hasher: unknown hash family %q", name)
	}
}

// slothMixin provides the shared sloth passthroughs.
type slothMixin struct{}

func (slothMixin) SlothEncode(key, plaintext Domain, rounds int) Domain {
	return DomainFromFr(sloth.Encode(key.Fr(), plaintext.Fr(), rounds))
}

func (slothMixin) SlothDecode(key, ciphertext Domain, rounds int) Domain {
	return DomainFromFr(sloth.Decode(key.Fr(), ciphertext.Fr(), rounds))
}

// deriveKDF hashes the (m+1) input blocks and masks the top two bits of the
// result so it stays a valid field element.
func deriveKDF(digest func([]byte) (Domain, error), data []byte, m int) (Domain, error) {
	if len(data) != fr32.NodeSize*(1+m) {
		return Domain{}, fmt.Errorf("%w: kdf over %d bytes with m=%d", ErrInvalidInputLength, len(data), m)
	}
	d, err := digest(data)
	if err != nil {
		return Domain{}, err
	}
	fr32.Trim((*[fr32.NodeSize]byte)(&d))
	return d, nil
}

func checkDigestInput(data []byte) error {
	if len(data) < 2*fr32.NodeSize || len(data)%fr32.NodeSize != 0 {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidInputLength, len(data))
	}
	return nil
}
