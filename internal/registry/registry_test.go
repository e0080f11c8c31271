package registry_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloud-labs/subsmt/internal/account"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/kvstore/memstore"
	"github.com/farcloud-labs/subsmt/internal/registry"
)

func newRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	return registry.Open(memstore.New())
}

func TestGetRootOfUnknownNamespaceIsZero(t *testing.T) {
	reg := newRegistry(t)
	root, err := reg.GetRoot("nope")
	require.NoError(t, err)
	assert.True(t, root.IsZero())
}

func TestUpdateChangesRootAndIsPersisted(t *testing.T) {
	reg := newRegistry(t)
	key := account.Key{Address: "0xabc"}
	value := account.Value{Nonce: 1, Balance: big.NewInt(500)}

	root, err := reg.Update("ns", key, value)
	require.NoError(t, err)
	assert.False(t, root.IsZero())

	got, err := reg.GetRoot("ns")
	require.NoError(t, err)
	assert.Equal(t, root, got)

	gotValue, err := reg.GetValue("ns", key)
	require.NoError(t, err)
	assert.Equal(t, value.Nonce, gotValue.Nonce)
}

func TestNamespacesAreIsolated(t *testing.T) {
	reg := newRegistry(t)
	key := account.Key{Address: "0xabc"}

	_, err := reg.Update("ns1", key, account.Value{Nonce: 1, Balance: big.NewInt(1)})
	require.NoError(t, err)

	rootNS2, err := reg.GetRoot("ns2")
	require.NoError(t, err)
	assert.True(t, rootNS2.IsZero(), "writing to ns1 must not affect ns2")

	valNS2, err := reg.GetValue("ns2", key)
	require.NoError(t, err)
	assert.True(t, valNS2.IsZero())
}

func TestMerkleProofVerifiesThroughRegistry(t *testing.T) {
	reg := newRegistry(t)
	key := account.Key{Address: "0xdead"}
	value := account.Value{Nonce: 3, Balance: big.NewInt(42)}

	_, err := reg.Update("ns", key, value)
	require.NoError(t, err)

	proof, err := reg.MerkleProof("ns", key)
	require.NoError(t, err)
	assert.True(t, registry.Verify(proof))
}

func TestVerifyRejectsZeroValueProof(t *testing.T) {
	reg := newRegistry(t)
	key := account.Key{Address: "0xabsent"}

	proof, err := reg.MerkleProof("ns", key)
	require.NoError(t, err)
	assert.True(t, proof.Value.IsZero())
	assert.False(t, registry.Verify(proof), "an absent account must never verify as present")
}

func TestUpdateAllMatchesRootOfSequentialUpdates(t *testing.T) {
	regBatched := newRegistry(t)
	regSequential := newRegistry(t)

	keys := []account.Key{{Address: "a"}, {Address: "b"}, {Address: "c"}}
	values := []account.Value{
		{Nonce: 1, Balance: big.NewInt(1)},
		{Nonce: 2, Balance: big.NewInt(2)},
		{Nonce: 3, Balance: big.NewInt(3)},
	}

	batchedRoot, err := regBatched.UpdateAll("ns", keys, values)
	require.NoError(t, err)

	var sequentialRoot h256.H256
	for i := range keys {
		sequentialRoot, err = regSequential.Update("ns", keys[i], values[i])
		require.NoError(t, err)
	}

	assert.Equal(t, sequentialRoot, batchedRoot)
}

func TestComputeNextRootThroughRegistry(t *testing.T) {
	reg := newRegistry(t)
	keyA := account.Key{Address: "a"}
	keyB := account.Key{Address: "b"}

	_, err := reg.Update("ns", keyA, account.Value{Nonce: 1, Balance: big.NewInt(1)})
	require.NoError(t, err)

	compiled, err := reg.CompileProof("ns", []account.Key{keyA, keyB})
	require.NoError(t, err)

	newValueA := account.Value{Nonce: 9, Balance: big.NewInt(999)}
	newValueB := account.Value{Nonce: 1, Balance: big.NewInt(7)}

	predicted, err := reg.ComputeNextRoot(compiled, []account.Key{keyA, keyB}, []account.Value{newValueA, newValueB})
	require.NoError(t, err)

	_, err = reg.Update("ns", keyA, newValueA)
	require.NoError(t, err)
	actual, err := reg.Update("ns", keyB, newValueB)
	require.NoError(t, err)

	assert.Equal(t, actual, predicted)
}

func TestClearResetsRootAndValues(t *testing.T) {
	reg := newRegistry(t)
	key := account.Key{Address: "0xabc"}
	value := account.Value{Nonce: 1, Balance: big.NewInt(500)}

	_, err := reg.Update("ns", key, value)
	require.NoError(t, err)

	require.NoError(t, reg.Clear("ns"))

	root, err := reg.GetRoot("ns")
	require.NoError(t, err)
	assert.True(t, root.IsZero())

	got, err := reg.GetValue("ns", key)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
