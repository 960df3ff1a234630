// Package sloth implements the keyed sloth permutation over the BLS12-381
// scalar field, used as a sequential-encoding delay function.
//
// Encoding computes the fifth root each round and is deliberately slow;
// decoding raises to the fifth power and is cheap. gcd(5, r-1) = 1 for the
// BLS12-381 scalar field, so x -> x^5 is a permutation.
package sloth

import (
	"math/big"
	"sync"

	"github.com/consensys/gnark-crypto/ecc/bls12-381/fr"
)

var inv struct {
	once sync.Once
	exp  *big.Int
}

// inverseExponent returns 5^-1 mod (r-1), the exponent of the fifth root.
func inverseExponent() *big.Int {
	inv.once.Do(func() {
		rMinus1 := new(big.Int).Sub(fr.Modulus(), big.NewInt(1))
		inv.exp = new(big.Int).ModInverse(big.NewInt(5), rMinus1)
	})
	return inv.exp
}

// Encode applies rounds of x <- (x + k)^(1/5) to the plaintext.
func Encode(key, plaintext fr.Element, rounds int) fr.Element {
	e := inverseExponent()
	x := plaintext
	for i := 0; i < rounds; i++ {
		x.Add(&x, &key)
		x.Exp(x, e)
	}
	return x
}

// Decode inverts Encode: rounds of x <- x^5 - k.
func Decode(key, ciphertext fr.Element, rounds int) fr.Element {
	x := ciphertext
	var x2, x4 fr.Element
	for i := 0; i < rounds; i++ {
		x2.Square(&x)
		x4.Square(&x2)
		x.Mul(&x4, &x)
		x.Sub(&x, &key)
	}
	return x
}
