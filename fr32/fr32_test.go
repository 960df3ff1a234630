package fr32

import (
	"math/big"
	"testing"

	"github.com/bits-and-blooms/bitset"
	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
	"github.com/stretchr/testify/require"
)

func TestTrimMasksTopTwoBits(t *testing.T) {
	var b [NodeSize]byte
	for i := range b {
		b[i] = 0xff
	}
	Trim(&b)
	require.Equal(t, byte(0b0011_1111), b[NodeSize-1])
	for i := 0; i < NodeSize-1; i++ {
		require.Equal(t, byte(0xff), b[i])
	}
}

func TestFrRoundTrip(t *testing.T) {
	for i := 0; i < 100; i++ {
		var e fr.Element
		_, err := e.SetRandom()
		require.NoError(t, err)

		le := FrInto(e)
		back := FrFrom(le)
		require.True(t, e.Equal(&back), "round trip mismatch")
	}
}

func TestFrRoundTripHighValues(t *testing.T) {
	// canonical values above 2^254 must survive the round trip untouched
	one := big.NewInt(1)
	for _, v := range []*big.Int{
		new(big.Int).Lsh(one, 254),
		new(big.Int).Add(new(big.Int).Lsh(one, 254), one),
		new(big.Int).Sub(fr.Modulus(), one),
	} {
		var e fr.Element
		e.SetBigInt(v)
		back := FrFrom(FrInto(e))
		require.True(t, e.Equal(&back), "value %s corrupted by the round trip", v)
	}
}

func TestTrimmedBytesAreCanonical(t *testing.T) {
	// a trimmed raw value is below 2^254 < r, so converting it into the
	// field and back must reproduce the trimmed bytes exactly
	var raw [NodeSize]byte
	for i := range raw {
		raw[i] = 0xff
	}
	le := FrInto(FrFrom(Trimmed(raw)))
	require.Equal(t, Trimmed(raw), le)
}

func TestPackBits(t *testing.T) {
	s := bitset.New(8)
	s.Set(0)
	s.Set(2)
	s.Set(5)

	e := PackBits(s, 8)
	var want fr.Element
	want.SetUint64(1 + 4 + 32)
	require.True(t, want.Equal(&e))
}

func TestPackBitsTooManyPanics(t *testing.T) {
	s := bitset.New(uint(MaxPackedBits) + 1)
	require.Panics(t, func() {
		PackBits(s, uint(MaxPackedBits)+1)
	})
}
