package treestore_test

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloud-labs/subsmt/internal/account"
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/kvstore"
	"github.com/farcloud-labs/subsmt/internal/kvstore/memstore"
	"github.com/farcloud-labs/subsmt/internal/smt"
	"github.com/farcloud-labs/subsmt/internal/treestore"
)

func TestPrefixedIsolatesNamespaces(t *testing.T) {
	kv := memstore.New()
	storeA := treestore.NewPrefixed[account.Value](kv, "a", account.Codec())
	storeB := treestore.NewPrefixed[account.Value](kv, "b", account.Codec())
	treeA := smt.New[account.Value](storeA, account.Codec())
	treeB := smt.New[account.Value](storeB, account.Codec())

	path := h256.Zero.SetBit(5)
	value := account.Value{Nonce: 1, Balance: big.NewInt(10)}

	_, err := treeA.Update(path, value)
	require.NoError(t, err)

	got, err := treeB.Get(path)
	require.NoError(t, err)
	assert.True(t, got.IsZero(), "namespace b must not see namespace a's writes")
}

func TestPrefixedClearDropsOnlyItsNamespace(t *testing.T) {
	kv := memstore.New()
	storeA := treestore.NewPrefixed[account.Value](kv, "a", account.Codec())
	storeB := treestore.NewPrefixed[account.Value](kv, "b", account.Codec())
	treeA := smt.New[account.Value](storeA, account.Codec())
	treeB := smt.New[account.Value](storeB, account.Codec())

	path := h256.Zero.SetBit(5)
	value := account.Value{Nonce: 1, Balance: big.NewInt(10)}

	_, err := treeA.Update(path, value)
	require.NoError(t, err)
	_, err = treeB.Update(path, value)
	require.NoError(t, err)

	require.NoError(t, storeA.Clear())

	gotA, err := treeA.Get(path)
	require.NoError(t, err)
	assert.True(t, gotA.IsZero())

	gotB, err := treeB.Get(path)
	require.NoError(t, err)
	assert.False(t, gotB.IsZero(), "clearing namespace a must not touch namespace b")
}

func TestColumnarRoundTripsThroughTree(t *testing.T) {
	kv := memstore.New()
	store := treestore.NewColumnar[account.Value](kv, kvstore.ColumnMeta, account.Codec())
	tree := smt.New[account.Value](store, account.Codec())

	path := h256.Zero.SetBit(11)
	value := account.Value{Nonce: 4, Balance: big.NewInt(400)}

	root, err := tree.Update(path, value)
	require.NoError(t, err)
	assert.False(t, root.IsZero())

	got, err := tree.Get(path)
	require.NoError(t, err)
	assert.Equal(t, value.Nonce, got.Nonce)
}

func TestColumnarClearDropsAllRowsInColumn(t *testing.T) {
	kv := memstore.New()
	store := treestore.NewColumnar[account.Value](kv, kvstore.ColumnMeta, account.Codec())
	tree := smt.New[account.Value](store, account.Codec())

	path := h256.Zero.SetBit(11)
	value := account.Value{Nonce: 4, Balance: big.NewInt(400)}

	_, err := tree.Update(path, value)
	require.NoError(t, err)

	require.NoError(t, store.Clear())

	got, err := tree.Get(path)
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}
