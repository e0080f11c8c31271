// Package mergevalue implements the central sum type of the sparse Merkle
// tree — MergeValue — and the merge rule that combines two child summaries
// into their parent's summary (SPEC_FULL.md §4.3.1). It depends only on
// internal/h256 and internal/hasher (whose one non-stdlib import is
// golang.org/x/crypto/sha3), so
// both the full tree algorithm (internal/smt) and the minimal stateless
// verifier (internal/verifier) can share one implementation without either
// pulling in storage or transport dependencies.
package mergevalue

import (
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/hasher"
)

// Kind distinguishes the two MergeValue variants.
type Kind uint8

const (
	// KindValue is an opaque, already-collapsed 32-byte digest.
	KindValue Kind = iota
	// KindMergeWithZero is a compressed "single non-zero leaf under a
	// chain of all-zero neighbors" descriptor.
	KindMergeWithZero
)

// MergeValue is a node summary: either an opaque hash, or a compressed
// descriptor of a lone non-zero leaf collapsed over a run of zero
// neighbors.
type MergeValue struct {
	Kind Kind

	// Value holds the digest when Kind == KindValue.
	Value h256.H256

	// BaseNode, ZeroBits and ZeroCount hold the MergeWithZero fields when
	// Kind == KindMergeWithZero.
	BaseNode  h256.H256
	ZeroBits  h256.H256
	ZeroCount uint8
}

// Zero is the zero-sentinel: Value(0...0).
var Zero = MergeValue{Kind: KindValue, Value: h256.Zero}

// FromH256 wraps a digest as an opaque Value summary.
func FromH256(h h256.H256) MergeValue {
	return MergeValue{Kind: KindValue, Value: h}
}

// IsZero reports whether mv is the zero-sentinel.
func (mv MergeValue) IsZero() bool {
	return mv.Kind == KindValue && mv.Value.IsZero()
}

// Hash returns the 32-byte hash of a child summary, as consumed by the
// parent's rule-4 hash: Value(h) hashes to h itself; MergeWithZero hashes
// to keccak(zero_count_byte || base_node || zero_bits).
func (mv MergeValue) Hash() h256.H256 {
	if mv.Kind == KindValue {
		return mv.Value
	}
	h := hasher.New()
	h.WriteByte(mv.ZeroCount)
	h.WriteH256(mv.BaseNode)
	h.WriteH256(mv.ZeroBits)
	return h.Finish()
}

// HashBaseNode computes hash_base_node(height, base_key, value_hash): the
// streaming hash of the height byte, the base key, then the value's hash —
// the digest stored as a MergeWithZero's base_node the moment a lone leaf
// is first wrapped.
func HashBaseNode(height uint8, baseKey, valueHash h256.H256) h256.H256 {
	h := hasher.New()
	h.WriteByte(height)
	h.WriteH256(baseKey)
	h.WriteH256(valueHash)
	return h.Finish()
}

// Merge combines two child summaries at tree level `height` (the level of
// left/right themselves) into the summary of their parent, whose node key
// (truncated path) is parentNodeKey. This is the central rule of
// SPEC_FULL.md §4.3.1:
//
//  1. zero, zero            -> zero-sentinel, no hashing.
//  2. zero, MergeWithZero    -> MergeWithZero, zero_count+1, base_node kept,
//     zero_bits gains bit `height` iff the non-zero child was on the right.
//  3. zero, Value(h)         -> MergeWithZero wrapping h as the chain's base,
//     zero_bits gains bit `height` iff the non-zero child was on the right —
//     same rule as case 2, since this is that chain's first absorption.
//  4. both non-zero          -> Value(keccak(height || parentNodeKey ||
//     hash(left) || hash(right))).
func Merge(height uint8, parentNodeKey h256.H256, left, right MergeValue) MergeValue {
	leftZero := left.IsZero()
	rightZero := right.IsZero()

	switch {
	case leftZero && rightZero:
		return Zero

	case leftZero && !rightZero && right.Kind == KindMergeWithZero:
		return MergeValue{
			Kind:      KindMergeWithZero,
			BaseNode:  right.BaseNode,
			ZeroBits:  right.ZeroBits.SetBit(int(height)),
			ZeroCount: right.ZeroCount + 1,
		}

	case rightZero && !leftZero && left.Kind == KindMergeWithZero:
		return MergeValue{
			Kind:      KindMergeWithZero,
			BaseNode:  left.BaseNode,
			ZeroBits:  left.ZeroBits,
			ZeroCount: left.ZeroCount + 1,
		}

	case leftZero && !rightZero && right.Kind == KindValue:
		return MergeValue{
			Kind:      KindMergeWithZero,
			BaseNode:  HashBaseNode(height, parentNodeKey, right.Value),
			ZeroBits:  h256.Zero.SetBit(int(height)),
			ZeroCount: 1,
		}

	case rightZero && !leftZero && left.Kind == KindValue:
		return MergeValue{
			Kind:      KindMergeWithZero,
			BaseNode:  HashBaseNode(height, parentNodeKey, left.Value),
			ZeroBits:  h256.Zero,
			ZeroCount: 1,
		}

	default:
		h := hasher.New()
		h.WriteByte(height)
		h.WriteH256(parentNodeKey)
		h.WriteH256(left.Hash())
		h.WriteH256(right.Hash())
		return MergeValue{Kind: KindValue, Value: h.Finish()}
	}
}

// IntoMergeValue collapses a single (path, valueHash) pair directly into
// the summary it would have at tree level `height`, without walking every
// intermediate level — the shortcut the stateless verifier (SPEC_FULL.md
// §4.7) uses to seed `current` the moment it meets the first set bitmap
// bit. It is definitionally equal to applying Merge repeatedly against the
// zero-sentinel from height 0 up to `height`.
func IntoMergeValue(path, valueHash h256.H256, height uint8) MergeValue {
	if valueHash.IsZero() || height == 0 {
		return FromH256(valueHash)
	}
	baseKey := path.ParentPath(0)
	baseNode := HashBaseNode(0, baseKey, valueHash)
	zeroBits := path
	for i := int(height); i < h256.Bits; i++ {
		zeroBits = zeroBits.ClearBit(i)
	}
	return MergeValue{
		Kind:      KindMergeWithZero,
		BaseNode:  baseNode,
		ZeroBits:  zeroBits,
		ZeroCount: height,
	}
}

// SingleLeaf collapses a (path, valueHash) pair into the summary a tree
// holding only that one leaf would have at its unstored level-256 root —
// the shortcut the stateless verifier (SPEC_FULL.md §4.7 step 2) uses when a
// proof carries no siblings at all, meaning every level from the leaf up is
// an implicit zero. Unlike IntoMergeValue, zero_bits here is the raw path
// with no bits cleared and zero_count is 0: with no sibling ever recorded,
// there is no absorption height to count from.
func SingleLeaf(path, valueHash h256.H256) MergeValue {
	if valueHash.IsZero() {
		return FromH256(valueHash)
	}
	baseKey := path.ParentPath(0)
	baseNode := HashBaseNode(0, baseKey, valueHash)
	return MergeValue{
		Kind:      KindMergeWithZero,
		BaseNode:  baseNode,
		ZeroBits:  path,
		ZeroCount: 0,
	}
}
