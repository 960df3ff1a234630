package sector

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sectorforge/go-storage-proofs/drgraph"
	"github.com/sectorforge/go-storage-proofs/hasher"
	"github.com/sectorforge/go-storage-proofs/kvstore"
)

func commitTestSector(t *testing.T, id uint64) (*Metadata, *drgraph.BucketGraph) {
	t.Helper()

	g := drgraph.New(hasher.NewMiMC(), 16, drgraph.BaseDegree, 0, drgraph.NewSeed())
	data := make([]byte, g.ExpectedSize())
	_, err := rand.Read(data)
	require.NoError(t, err)

	m, tree, err := Commit(id, g, data, false)
	require.NoError(t, err)
	require.Equal(t, tree.Root(), m.CommR)
	require.Equal(t, g.Size(), m.Nodes)
	require.Equal(t, g.Seed(), m.Seed)
	require.Equal(t, hasher.MiMCName, m.HasherName)
	return m, g
}

func TestSaveLoadDelete(t *testing.T) {
	s := kvstore.NewMemStore()
	defer s.Close()

	m, _ := commitTestSector(t, 7)
	require.NoError(t, Save(s, m))

	got, err := Load(s, 7)
	require.NoError(t, err)
	require.Equal(t, m, got)

	require.NoError(t, Delete(s, 7))
	_, err = Load(s, 7)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMissing(t *testing.T) {
	s := kvstore.NewMemStore()
	defer s.Close()

	_, err := Load(s, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGraphRoundTrip(t *testing.T) {
	m, g := commitTestSector(t, 1)

	rebuilt, err := m.Graph()
	require.NoError(t, err)
	require.Equal(t, g.Identifier(), rebuilt.Identifier())
	require.Equal(t, g.Seed(), rebuilt.Seed())

	// the rebuilt graph samples the same parents
	want := make([]uint64, drgraph.BaseDegree)
	got := make([]uint64, drgraph.BaseDegree)
	for node := uint64(2); node < g.Size(); node++ {
		g.Parents(node, want)
		rebuilt.Parents(node, got)
		require.Equal(t, want, got, "node %d", node)
	}
}

func TestGraphRejectsUnknownHasher(t *testing.T) {
	m := &Metadata{HasherName: "sha3", Nodes: 16}
	_, err := m.Graph()
	require.Error(t, err)
}

func TestPersistedThroughBadger(t *testing.T) {
	dir := t.TempDir()

	s, err := kvstore.NewBadgerStore(dir)
	require.NoError(t, err)

	m, _ := commitTestSector(t, 99)
	require.NoError(t, Save(s, m))
	require.NoError(t, s.Close())

	s, err = kvstore.NewBadgerStore(dir)
	require.NoError(t, err)
	defer s.Close()

	got, err := Load(s, 99)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestSectorIDsDoNotCollide(t *testing.T) {
	s := kvstore.NewMemStore()
	defer s.Close()

	a, _ := commitTestSector(t, 1)
	b, _ := commitTestSector(t, 256)
	require.NoError(t, Save(s, a))
	require.NoError(t, Save(s, b))

	gotA, err := Load(s, 1)
	require.NoError(t, err)
	gotB, err := Load(s, 256)
	require.NoError(t, err)
	require.NotEqual(t, gotA.CommR, gotB.CommR)
	require.Equal(t, a.CommR, gotA.CommR)
	require.Equal(t, b.CommR, gotB.CommR)
}
