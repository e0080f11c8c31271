package smt_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloud-labs/subsmt/internal/account"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/kvstore/memstore"
	"github.com/farcloud-labs/subsmt/internal/smt"
	"github.com/farcloud-labs/subsmt/internal/treestore"
	"github.com/farcloud-labs/subsmt/internal/verifier"
)

func newTestTree(t *testing.T) *smt.Tree[account.Value] {
	t.Helper()
	kv := memstore.New()
	store := treestore.NewPrefixed[account.Value](kv, "t", account.Codec())
	return smt.New[account.Value](store, account.Codec())
}

func val(nonce uint64, balance int64) account.Value {
	return account.Value{Nonce: nonce, Balance: big.NewInt(balance)}
}

func TestGetOnUntouchedPathReturnsZeroValue(t *testing.T) {
	tree := newTestTree(t)
	got, err := tree.Get(h256.Zero.SetBit(17))
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestUpdateThenGetRoundTrips(t *testing.T) {
	tree := newTestTree(t)
	path := h256.Zero.SetBit(3)

	root, err := tree.Update(path, val(1, 100))
	require.NoError(t, err)
	assert.False(t, root.IsZero())

	got, err := tree.Get(path)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Nonce)
	assert.Equal(t, int64(100), got.Balance.Int64())
}

func TestUpdateToZeroDeletesLeaf(t *testing.T) {
	tree := newTestTree(t)
	path := h256.Zero.SetBit(5)

	_, err := tree.Update(path, val(1, 1))
	require.NoError(t, err)

	root, err := tree.Update(path, account.ZeroValue())
	require.NoError(t, err)
	assert.True(t, root.IsZero(), "deleting the only leaf should return the tree to the empty root")

	got, err := tree.Get(path)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestRootIndependentOfInsertionOrder(t *testing.T) {
	pathA := h256.Zero.SetBit(1)
	pathB := h256.Zero.SetBit(2).SetBit(7)
	pathC := h256.Zero.SetBit(3).SetBit(200)

	treeAB := newTestTree(t)
	_, err := treeAB.Update(pathA, val(1, 10))
	require.NoError(t, err)
	_, err = treeAB.Update(pathB, val(2, 20))
	require.NoError(t, err)
	rootAB, err := treeAB.Update(pathC, val(3, 30))
	require.NoError(t, err)

	treeBA := newTestTree(t)
	_, err = treeBA.Update(pathC, val(3, 30))
	require.NoError(t, err)
	_, err = treeBA.Update(pathA, val(1, 10))
	require.NoError(t, err)
	rootBA, err := treeBA.Update(pathB, val(2, 20))
	require.NoError(t, err)

	assert.Equal(t, rootAB, rootBA)
}

func TestMerkleProofVerifies(t *testing.T) {
	tree := newTestTree(t)
	pathA := h256.Zero.SetBit(1)
	pathB := h256.Zero.SetBit(9).SetBit(100)

	_, err := tree.Update(pathA, val(1, 10))
	require.NoError(t, err)
	root, err := tree.Update(pathB, val(2, 20))
	require.NoError(t, err)

	proof, err := tree.MerkleProof(pathA)
	require.NoError(t, err)

	valueA, err := tree.Get(pathA)
	require.NoError(t, err)
	valueHash := account.ToH256(valueA)

	assert.True(t, verifier.Verify(pathA, valueHash, proof.LeavesBitmap, proof.Siblings, root))
	assert.False(t, verifier.Verify(pathA, h256.Zero.SetBit(1), proof.LeavesBitmap, proof.Siblings, root),
		"a wrong value hash must not verify")
}

func TestComputeNextRootMatchesActualUpdate(t *testing.T) {
	tree := newTestTree(t)
	pathA := h256.Zero.SetBit(1)
	pathB := h256.Zero.SetBit(40)

	_, err := tree.Update(pathA, val(1, 10))
	require.NoError(t, err)

	compiled, err := tree.CompileProof([]h256.H256{pathA, pathB})
	require.NoError(t, err)

	newValueA := val(2, 999)
	newValueB := val(5, 123)

	predicted, err := smt.ComputeNextRoot(compiled,
		[]h256.H256{pathA, pathB},
		[]h256.H256{account.ToH256(newValueA), account.ToH256(newValueB)},
	)
	require.NoError(t, err)

	_, err = tree.Update(pathA, newValueA)
	require.NoError(t, err)
	actual, err := tree.Update(pathB, newValueB)
	require.NoError(t, err)

	assert.Equal(t, actual, predicted)
}

func TestUpdateAllMatchesSequentialUpdates(t *testing.T) {
	paths := []h256.H256{h256.Zero.SetBit(1), h256.Zero.SetBit(2), h256.Zero.SetBit(3)}
	values := []account.Value{val(1, 1), val(2, 2), val(3, 3)}

	batched := newTestTree(t)
	batchedRoot, err := batched.UpdateAll(paths, values)
	require.NoError(t, err)

	sequential := newTestTree(t)
	var sequentialRoot h256.H256
	for i := range paths {
		sequentialRoot, err = sequential.Update(paths[i], values[i])
		require.NoError(t, err)
	}

	assert.Equal(t, sequentialRoot, batchedRoot)
}
