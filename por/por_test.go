package por

import (
	"crypto/rand"
	"math/big"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/consensys/gnark/test"
	"github.com/stretchr/testify/require"

	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/merkle"
)

const testLeaves = 16

func circuitHashers(t *testing.T) []CircuitHasher {
	t.Helper()
	return []CircuitHasher{PedersenCircuitHasher(), MiMCCircuitHasher(), Poseidon2CircuitHasher()}
}

func randomLeaves(t *testing.T, n int) []hasher.Domain {
	t.Helper()
	leaves := make([]hasher.Domain, n)
	for i := range leaves {
		raw := make([]byte, 32)
		_, err := rand.Read(raw)
		require.NoError(t, err)
		raw[31] &= 0b0011_1111
		d, err := hasher.DomainFromBytes(raw)
		require.NoError(t, err)
		leaves[i] = d
	}
	return leaves
}

// buildBatch commits to testLeaves random leaves and proves all of them.
func buildBatch(t *testing.T, ch CircuitHasher) (assignment *ParallelProofOfRetrievability, height int) {
	t.Helper()

	h, err := hasher.ByName(ch.Name())
	require.NoError(t, err)

	tree, err := merkle.BuildTree(h, randomLeaves(t, testLeaves))
	require.NoError(t, err)

	proofs := make([]*merkle.Proof, testLeaves)
	for i := range proofs {
		proofs[i], err = tree.GenProof(uint64(i))
		require.NoError(t, err)
		require.True(t, proofs[i].Validate(h))
	}

	assignment, err = Assign(proofs, tree.Root(), ch)
	require.NoError(t, err)
	return assignment, tree.Height()
}

type nodeHashCircuit struct {
	Left     frontend.Variable
	Right    frontend.Variable
	Expected frontend.Variable `gnark:",public"`

	Hasher CircuitHasher `gnark:"-"`
}

func (c *nodeHashCircuit) Define(api frontend.API) error {
	got, err := c.Hasher.HashNode(api, c.Left, c.Right, 1)
	if err != nil {
		return err
	}
	api.AssertIsEqual(got, c.Expected)
	return nil
}

// TestHashNodeMatchesNative pins the in-circuit node hashes to their native
// twins; everything else in the circuit rests on this agreement.
func TestHashNodeMatchesNative(t *testing.T) {
	for _, ch := range circuitHashers(t) {
		h, err := hasher.ByName(ch.Name())
		require.NoError(t, err)

		leaves := randomLeaves(t, 2)
		expected := h.Node(leaves[0], leaves[1], 1)

		assignment := &nodeHashCircuit{
			Left:     frVar(leaves[0]),
			Right:    frVar(leaves[1]),
			Expected: frVar(expected),
			Hasher:   ch,
		}
		circuit := &nodeHashCircuit{Hasher: ch}

		require.NoError(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()),
			"native and in-circuit %s node hashes disagree", ch.Name())
	}
}

func TestCircuitSatisfiedByHonestWitness(t *testing.T) {
	for _, ch := range circuitHashers(t) {
		assignment, height := buildBatch(t, ch)
		circuit := NewCircuit(testLeaves, height, ch)

		require.NoError(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()), ch.Name())
	}
}

func TestCircuitRejectsCorruptedWitness(t *testing.T) {
	for _, ch := range circuitHashers(t) {
		circuit := NewCircuit(testLeaves, merkle.Height(testLeaves), ch)

		// corrupted sibling
		assignment, _ := buildBatch(t, ch)
		sibling := assignment.AuthPaths[3][1].(*big.Int)
		assignment.AuthPaths[3][1] = new(big.Int).Add(sibling, big.NewInt(1))
		require.Error(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()),
			"%s: corrupted sibling must not satisfy the circuit", ch.Name())

		// corrupted direction bit
		assignment, _ = buildBatch(t, ch)
		if assignment.AuthDirs[5][0] == frontend.Variable(0) {
			assignment.AuthDirs[5][0] = 1
		} else {
			assignment.AuthDirs[5][0] = 0
		}
		require.Error(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()),
			"%s: corrupted direction bit must not satisfy the circuit", ch.Name())

		// wrong root
		assignment, _ = buildBatch(t, ch)
		root := assignment.Root.(*big.Int)
		assignment.Root = new(big.Int).Add(root, big.NewInt(1))
		require.Error(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()),
			"%s: wrong root must not satisfy the circuit", ch.Name())
	}
}

func TestMissingAssignmentFails(t *testing.T) {
	ch := MiMCCircuitHasher()
	circuit := NewCircuit(testLeaves, merkle.Height(testLeaves), ch)

	assignment, _ := buildBatch(t, ch)
	assignment.Values[0] = nil

	require.Error(t, test.IsSolved(circuit, assignment, ecc.BLS12_381.ScalarField()),
		"proving without a witness value must fail")
}

// TestConstraintCountReproducible is the regression baseline: for a fixed
// (leaves, hasher) pair the compiled constraint count must be deterministic.
// A change here signals a change in circuit semantics.
func TestConstraintCountReproducible(t *testing.T) {
	if testing.Short() {
		t.Skip("compiling the batched circuits is slow")
	}

	height := merkle.Height(testLeaves)
	for _, ch := range circuitHashers(t) {
		cs1, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, NewCircuit(testLeaves, height, ch))
		require.NoError(t, err)
		cs2, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, NewCircuit(testLeaves, height, ch))
		require.NoError(t, err)

		require.Equal(t, cs1.GetNbConstraints(), cs2.GetNbConstraints(), ch.Name())

		// public inputs: one value and one packed path per witness, the
		// shared root, and the constant ONE wire
		require.Equal(t, 2*testLeaves+2, cs1.GetNbPublicVariables(), ch.Name())

		t.Logf("%s: %d constraints for %d witnesses of height %d",
			ch.Name(), cs1.GetNbConstraints(), testLeaves, height)
	}
}

func TestAssignRejectsMixedHeights(t *testing.T) {
	ch := MiMCCircuitHasher()
	h := hasher.NewMiMC()

	tree1, err := merkle.BuildTree(h, randomLeaves(t, 4))
	require.NoError(t, err)
	tree2, err := merkle.BuildTree(h, randomLeaves(t, 16))
	require.NoError(t, err)

	p1, err := tree1.GenProof(0)
	require.NoError(t, err)
	p2, err := tree2.GenProof(0)
	require.NoError(t, err)

	_, err = Assign([]*merkle.Proof{p1, p2}, tree1.Root(), ch)
	require.ErrorIs(t, err, ErrMismatchedWitness)

	_, err = Assign(nil, tree1.Root(), ch)
	require.ErrorIs(t, err, ErrMismatchedWitness)
}

func TestGroth16EndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("groth16 setup is slow")
	}

	ch := MiMCCircuitHasher()
	assignment, height := buildBatch(t, ch)

	cs, err := frontend.Compile(ecc.BLS12_381.ScalarField(), r1cs.NewBuilder, NewCircuit(testLeaves, height, ch))
	require.NoError(t, err)

	pk, vk, err := groth16.Setup(cs)
	require.NoError(t, err)

	witness, err := frontend.NewWitness(assignment, ecc.BLS12_381.ScalarField())
	require.NoError(t, err)

	proof, err := groth16.Prove(cs, pk, witness)
	require.NoError(t, err)

	public, err := witness.Public()
	require.NoError(t, err)
	require.NoError(t, groth16.Verify(proof, vk, public))
}
