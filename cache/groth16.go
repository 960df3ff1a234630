package cache

import (
	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
)

// ParamSet bundles a compiled constraint system with its groth16 key pair.
// Compiling and the trusted setup dominate proving-session startup, so these
// are the values worth caching.
type ParamSet struct {
	CS constraint.ConstraintSystem
	PK groth16.ProvingKey
	VK groth16.VerifyingKey
}

// Groth16 returns the compiled constraint system and groth16 keys for the
// circuit, memoized in c under m's identity. The circuit must be the
// placeholder matching m.
func Groth16(c *Cache[*ParamSet], m Metadata, circuit frontend.Circuit) (*ParamSet, error) {
	return c.Lookup(m, func() (*ParamSet, error) {
		cs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, circuit)
		if err != nil {
			return nil, err
		}
		pk, vk, err := groth16.Setup(cs)
		if err != nil {
			return nil, err
		}
		return &ParamSet{CS: cs, PK: pk, VK: vk}, nil
	})
}
