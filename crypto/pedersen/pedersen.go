// Package pedersen implements the Pedersen hash over the BLS12-381 embedded
// twisted Edwards curve (Jubjub), and its Merkle-Damgard extension to
// multi-block input.
//
// The construction is the sapling Pedersen hash over Jubjub: every
// compression consumes a fixed six-bit personalization prefix ahead of the
// message, then the bit string in 3-bit windows using signed-digit encoding.
// A window (b0, b1, b2) contributes (1 + b0 + 2*b1) * (1 - 2*b2) scaled by
// 16^j to the running scalar of its segment. Every segment of 63 windows has
// its own independent generator, so segment scalars never overflow the group
// order and the map stays collision resistant as long as the discrete logs
// between generators are unknown. Generators are derived with the "Zcash_PH"
// personalized blake2s group hash.
//
// The canonical bit ordering is little-endian within each byte, bytes in
// natural order. CompressBytes and Compress agree on this ordering.
package pedersen

import (
	"encoding/binary"
	"errors"
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/twistededwards"
	"github.com/dchest/blake2s"

	"github.com/sectorforge/go-storage-proofs/fr32"
)

const (
	// BlockSize is the compression block size in bits.
	BlockSize = 256
	// BlockBytes is the compression block size in bytes.
	BlockBytes = BlockSize / 8

	// WindowBits is the number of message bits consumed per lookup window.
	WindowBits = 3
	// WindowsPerSegment is the number of windows hashed into a single
	// segment generator before switching to the next one.
	WindowsPerSegment = 63

	// PrefixBits is the width of the personalization prefix every
	// compression consumes ahead of its message bits.
	PrefixBits = 6
)

// compressPrefix is the note-commitment personalization: six one-bits.
var compressPrefix = [PrefixBits]bool{true, true, true, true, true, true}

// ErrInvalidInputLength signals digest input that is shorter than two blocks
// or not a multiple of the block size.
var ErrInvalidInputLength = errors.New("pedersen: input must be at least two blocks and a multiple of the block size")

const (
	// ghPersonalization is the blake2s personalization of the group hash.
	ghPersonalization = "Zcash_PH"
	// ghFirstBlock is the fixed first block hashed ahead of every tag.
	ghFirstBlock = "096b36a5804bfacef1691e173c366a47ff5ba84a44f26ddd7e8d9f79d5b42df0"
)

var params struct {
	once  sync.Once
	curve twistededwards.CurveParams
	order *big.Int

	mu sync.Mutex
	// tables[s][j] holds {1,2,3,4} * 16^j * G_s.
	gens   []twistededwards.PointAffine
	tables [][][4]twistededwards.PointAffine
}

func initParams() {
	params.once.Do(func() {
		params.curve = twistededwards.GetEdwardsCurve()
		params.order = new(big.Int).Set(&params.curve.Order)
	})
}

// groupHash maps (segment, counter) to a point of the prime-order subgroup:
// the personalized blake2s digest of the first block and the tag is read as
// a compressed point (little-endian y, sign of x in the top bit), the point
// is decompressed and cleared of cofactor. Counters whose digest is not a
// canonical y, misses the curve or clears to the identity are skipped.
func groupHash(segment int) twistededwards.PointAffine {
	initParams()

	var cof big.Int
	params.curve.Cofactor.BigInt(&cof)
	modulus := fr.Modulus()

	tag := make([]byte, 5)
	binary.LittleEndian.PutUint32(tag, uint32(segment))

	for counter := 0; counter < 256; counter++ {
		tag[4] = byte(counter)

		h, err := blake2s.New(&blake2s.Config{Size: 32, Person: []byte(ghPersonalization)})
		if err != nil {
			panic("pedersen: blake2s init failed: " + err.Error())
		}
		h.Write([]byte(ghFirstBlock))
		h.Write(tag)
		digest := h.Sum(nil)

		xSign := digest[31]>>7 == 1
		digest[31] &= 0x7f

		var be [32]byte
		for i := range be {
			be[i] = digest[31-i]
		}
		var yInt big.Int
		yInt.SetBytes(be[:])
		if yInt.Cmp(modulus) >= 0 {
			continue
		}
		var y fr.Element
		y.SetBigInt(&yInt)

		// a*x^2 + y^2 = 1 + d*x^2*y^2  =>  x^2 = (1 - y^2) / (a - d*y^2)
		var y2, num, den, x2, x fr.Element
		y2.Square(&y)
		num.SetOne()
		num.Sub(&num, &y2)
		den.Mul(&params.curve.D, &y2)
		den.Sub(&params.curve.A, &den)
		if den.IsZero() {
			continue
		}
		x2.Div(&num, &den)
		if x.Sqrt(&x2) == nil {
			continue
		}

		var xInt big.Int
		x.BigInt(&xInt)
		if (xInt.Bit(0) == 1) != xSign {
			x.Neg(&x)
		}

		p := twistededwards.PointAffine{X: x, Y: y}
		var q twistededwards.PointAffine
		q.ScalarMultiplication(&p, &cof)
		if q.X.IsZero() {
			// cleared to the identity, try the next counter
			continue
		}
		return q
	}
	panic("pedersen: generator derivation exhausted the counter space")
}

// ensureSegments extends the generator and window tables to cover at least n
// segments. Tables are immutable once published.
func ensureSegments(n int) {
	initParams()
	params.mu.Lock()
	defer params.mu.Unlock()

	for s := len(params.gens); s < n; s++ {
		g := groupHash(s)
		params.gens = append(params.gens, g)

		table := make([][4]twistededwards.PointAffine, WindowsPerSegment)
		base := g
		for j := 0; j < WindowsPerSegment; j++ {
			table[j][0] = base
			table[j][1].Double(&base)
			table[j][2].Add(&table[j][1], &base)
			table[j][3].Double(&table[j][1])
			// advance to 16^(j+1) * G_s
			base.Double(&base)
			base.Double(&base)
			base.Double(&base)
			base.Double(&base)
		}
		params.tables = append(params.tables, table)
	}
}

// SegmentGenerator returns the generator of the given segment.
func SegmentGenerator(segment int) twistededwards.PointAffine {
	ensureSegments(segment + 1)
	params.mu.Lock()
	defer params.mu.Unlock()
	return params.gens[segment]
}

// WindowTable returns the four precomputed multiples {1,2,3,4} * 16^window *
// G_segment used by both the native hash and the in-circuit gadget.
func WindowTable(segment, window int) [4]twistededwards.PointAffine {
	if window < 0 || window >= WindowsPerSegment {
		panic("pedersen: window index out of range")
	}
	ensureSegments(segment + 1)
	params.mu.Lock()
	defer params.mu.Unlock()
	return params.tables[segment][window]
}

// NumWindows returns the number of 3-bit windows needed for n bits.
func NumWindows(n int) int {
	return (n + WindowBits - 1) / WindowBits
}

func bitAt(bits []bool, i int) bool {
	if i < len(bits) {
		return bits[i]
	}
	return false
}

// Compress hashes a bit string to a field element, the x coordinate of the
// accumulated curve point. The personalization prefix is consumed ahead of
// the message bits.
func Compress(bits []bool) fr.Element {
	if len(bits) == 0 {
		panic("pedersen: empty input")
	}
	initParams()

	all := make([]bool, 0, PrefixBits+len(bits))
	all = append(all, compressPrefix[:]...)
	all = append(all, bits...)
	bits = all

	nWindows := NumWindows(len(bits))
	nSegments := (nWindows + WindowsPerSegment - 1) / WindowsPerSegment
	ensureSegments(nSegments)

	var acc twistededwards.PointAffine
	acc.X.SetZero()
	acc.Y.SetOne()

	var scalar, tmp big.Int
	for s := 0; s < nSegments; s++ {
		scalar.SetInt64(0)
		for j := 0; j < WindowsPerSegment; j++ {
			w := s*WindowsPerSegment + j
			if w >= nWindows {
				break
			}
			d := int64(1)
			if bitAt(bits, 3*w) {
				d++
			}
			if bitAt(bits, 3*w+1) {
				d += 2
			}
			if bitAt(bits, 3*w+2) {
				d = -d
			}
			tmp.SetInt64(d)
			tmp.Lsh(&tmp, uint(4*j))
			scalar.Add(&scalar, &tmp)
		}
		scalar.Mod(&scalar, params.order)

		g := SegmentGenerator(s)
		var sp twistededwards.PointAffine
		sp.ScalarMultiplication(&g, &scalar)
		acc.Add(&acc, &sp)
	}

	return acc.X
}

// CompressBytes hashes a byte string using the canonical little-endian bit
// ordering.
func CompressBytes(data []byte) fr.Element {
	return Compress(BytesToBits(data))
}

// Digest extends Compress to multi-block input with a Merkle-Damgard chain:
// the running state is seeded with the first block, then every following
// block is compressed together with the state.
func Digest(data []byte) (fr.Element, error) {
	if len(data) < 2*BlockBytes || len(data)%BlockBytes != 0 {
		return fr.Element{}, ErrInvalidInputLength
	}

	cur := make([]byte, 2*BlockBytes)
	copy(cur[:BlockBytes], data[:BlockBytes])

	for off := BlockBytes; off < len(data); off += BlockBytes {
		copy(cur[BlockBytes:], data[off:off+BlockBytes])
		x := CompressBytes(cur)
		le := fr32.FrInto(x)
		copy(cur[:BlockBytes], le[:])
	}

	var state [BlockBytes]byte
	copy(state[:], cur[:BlockBytes])
	return fr32.FrFrom(state), nil
}

// DigestBits is the bit-oriented twin of Digest. Both produce bit-identical
// output for the same input.
func DigestBits(bits []bool) (fr.Element, error) {
	if len(bits) < 2*BlockSize || len(bits)%BlockSize != 0 {
		return fr.Element{}, ErrInvalidInputLength
	}

	cur := make([]bool, 2*BlockSize)
	copy(cur[:BlockSize], bits[:BlockSize])

	for off := BlockSize; off < len(bits); off += BlockSize {
		copy(cur[BlockSize:], bits[off:off+BlockSize])
		x := Compress(cur)
		le := fr32.FrInto(x)
		copy(cur[:BlockSize], BytesToBits(le[:]))
	}

	var state [BlockBytes]byte
	copy(state[:], BitsToBytes(cur[:BlockSize]))
	return fr32.FrFrom(state), nil
}

// BytesToBits expands data into its canonical bit representation,
// little-endian within each byte.
func BytesToBits(data []byte) []bool {
	bits := make([]bool, 8*len(data))
	for i, b := range data {
		for j := 0; j < 8; j++ {
			bits[8*i+j] = (b>>uint(j))&1 == 1
		}
	}
	return bits
}

// BitsToBytes packs bits back into bytes; len(bits) must be a multiple of 8.
func BitsToBytes(bits []bool) []byte {
	if len(bits)%8 != 0 {
		panic("pedersen: bit count must be a multiple of 8")
	}
	out := make([]byte, len(bits)/8)
	for i, bit := range bits {
		if bit {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}
