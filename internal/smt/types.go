// Package smt implements the sparse Merkle tree algorithm layer (C3): the
// in-memory computation over merge, update, get and proof emission
// described in SPEC_FULL.md §4.3. The package is generic over the leaf
// value type V and talks to storage only through the Store interface,
// leaving persistence (C4/C5) to the caller.
package smt

import (
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
)

// BranchKey addresses an inner node: height is the level of the branch's
// two children (0 = a pair of leaves; 255 = the pair directly below the
// unstored level-256 root), and NodeKey is the leaf path with every bit at
// or below height cleared — the prefix the two children share.
type BranchKey struct {
	Height  uint8
	NodeKey h256.H256
}

// BranchNode is a persisted inner node: a pair of child summaries. Per
// invariant 3, a branch is only ever persisted when at least one child is
// not the zero-sentinel.
type BranchNode struct {
	Left  mergevalue.MergeValue
	Right mergevalue.MergeValue
}

// Key is the contract required of a tree's key type: it must resolve to a
// 256-bit path. Implementations typically hash a canonical encoding of
// themselves (SPEC_FULL.md §3).
type Key interface {
	ToH256() h256.H256
}

// ValueCodec supplies the operations SPEC_FULL.md §3 requires of a leaf
// value type V: canonical round-tripping bytes, a path-independent digest,
// and a distinguished zero value whose digest is the zero digest (the
// representation of "deleted"/"absent").
//
// It is expressed as a struct of functions rather than a method set so V
// itself can be a plain data type (e.g. a struct generated from a wire
// schema) with no tree-specific methods attached.
type ValueCodec[V any] struct {
	Encode func(V) ([]byte, error)
	Decode func([]byte) (V, error)
	Zero   func() V
	ToH256 func(V) h256.H256
}

// Store is the persistence contract the tree algorithm needs (C4/C5's
// combined read/write surface, scoped to one namespace). Absence is
// represented by the bool return, not a sentinel error.
type Store[V any] interface {
	GetBranch(key BranchKey) (BranchNode, bool, error)
	InsertBranch(key BranchKey, node BranchNode) error
	RemoveBranch(key BranchKey) error

	GetLeaf(path h256.H256) (V, bool, error)
	InsertLeaf(path h256.H256, value V) error
	RemoveLeaf(path h256.H256) error
}

// Tree is a stateless handle over a Store: every operation reads whatever
// it needs from the store and leaves no residual in-memory tree behind it
// (SPEC_FULL.md §4.6 / §9 "no cyclic ownership").
type Tree[V any] struct {
	store Store[V]
	codec ValueCodec[V]
}

// New constructs a Tree bound to store, using codec for leaf values.
func New[V any](store Store[V], codec ValueCodec[V]) *Tree[V] {
	return &Tree[V]{store: store, codec: codec}
}
