package smt

import (
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
	"github.com/farcloud-labs/subsmt/internal/smterrors"
)

// Update writes value at path and returns the resulting root. Writing the
// zero value deletes the leaf (SPEC_FULL.md §3, "zero value == absent").
// The leaf row is written (or removed) before any branch is touched, so a
// crash mid-update leaves the leaf table ahead of the branch table rather
// than the reverse — replay from the leaf is always possible.
func (t *Tree[V]) Update(path h256.H256, value V) (h256.H256, error) {
	valueHash := t.codec.ToH256(value)

	if valueHash.IsZero() {
		if err := t.store.RemoveLeaf(path); err != nil {
			return h256.Zero, smterrors.NewStoreError("remove leaf", err)
		}
	} else {
		if err := t.store.InsertLeaf(path, value); err != nil {
			return h256.Zero, smterrors.NewStoreError("insert leaf", err)
		}
	}

	return t.recompute(path, valueHash)
}

// UpdateAll applies kvs in order, each exactly as Update would, and returns
// the final root. This is the literal sequential semantics SPEC_FULL.md §3
// requires; an engine that can batch the underlying writes is still bound
// to produce the same root as this loop.
func (t *Tree[V]) UpdateAll(paths []h256.H256, values []V) (h256.H256, error) {
	var root h256.H256
	for i := range paths {
		r, err := t.Update(paths[i], values[i])
		if err != nil {
			return h256.Zero, err
		}
		root = r
	}
	return root, nil
}

// recompute walks from the leaf at `path` to the root, merging in the
// sibling recorded at every level, writing (or pruning) the branch at each
// level, and returns the hash of the final level-256 summary.
func (t *Tree[V]) recompute(path, leafValueHash h256.H256) (h256.H256, error) {
	current := mergevalue.FromH256(leafValueHash)

	for height := 0; height < h256.Bits; height++ {
		nodeKey := path.ParentPath(height)
		branchKey := BranchKey{Height: uint8(height), NodeKey: nodeKey}

		existing, found, err := t.store.GetBranch(branchKey)
		if err != nil {
			return h256.Zero, smterrors.NewStoreError("get branch", err)
		}

		sibling := mergevalue.Zero
		if found {
			if path.IsRight(height) {
				sibling = existing.Left
			} else {
				sibling = existing.Right
			}
		}

		var left, right mergevalue.MergeValue
		if path.IsRight(height) {
			left, right = sibling, current
		} else {
			left, right = current, sibling
		}

		parent := mergevalue.Merge(uint8(height), nodeKey, left, right)

		switch {
		case parent.IsZero():
			if found {
				if err := t.store.RemoveBranch(branchKey); err != nil {
					return h256.Zero, smterrors.NewStoreError("remove branch", err)
				}
			}
		default:
			if err := t.store.InsertBranch(branchKey, BranchNode{Left: left, Right: right}); err != nil {
				return h256.Zero, smterrors.NewStoreError("insert branch", err)
			}
		}

		current = parent
	}

	return current.Hash(), nil
}

// Get returns the value stored at path, or the codec's zero value if no
// leaf is present.
func (t *Tree[V]) Get(path h256.H256) (V, error) {
	value, found, err := t.store.GetLeaf(path)
	if err != nil {
		return t.codec.Zero(), smterrors.NewStoreError("get leaf", err)
	}
	if !found {
		return t.codec.Zero(), nil
	}
	return value, nil
}

// Proof is the sibling evidence for a single path: LeavesBitmap has bit h
// set iff the sibling recorded for level h was non-zero, and Siblings
// holds exactly those non-zero siblings in ascending level order —
// matching the layout the stateless verifier (internal/verifier) expects.
type Proof struct {
	Path         h256.H256
	LeavesBitmap h256.H256
	Siblings     []mergevalue.MergeValue
}

// MerkleProof walks path from leaf to root and records every non-zero
// sibling it passes, the dominant single-key proof shape described in
// SPEC_FULL.md §4.3.3.
func (t *Tree[V]) MerkleProof(path h256.H256) (Proof, error) {
	bitmap := h256.Zero
	var siblings []mergevalue.MergeValue

	for height := 0; height < h256.Bits; height++ {
		nodeKey := path.ParentPath(height)
		branchKey := BranchKey{Height: uint8(height), NodeKey: nodeKey}

		existing, found, err := t.store.GetBranch(branchKey)
		if err != nil {
			return Proof{}, smterrors.NewStoreError("get branch", err)
		}
		if !found {
			continue
		}

		var sibling mergevalue.MergeValue
		if path.IsRight(height) {
			sibling = existing.Left
		} else {
			sibling = existing.Right
		}
		if sibling.IsZero() {
			continue
		}

		bitmap = bitmap.SetBit(height)
		siblings = append(siblings, sibling)
	}

	return Proof{Path: path, LeavesBitmap: bitmap, Siblings: siblings}, nil
}

// CompiledProof bundles one Proof per requested path, in request order.
// ComputeNextRoot consumes it positionally against a matching list of
// (path, newValue) pairs.
type CompiledProof struct {
	Entries []Proof
}

// CompileProof produces the serializable evidence needed to later recompute
// the root after updating every path in paths, without touching the store
// again (SPEC_FULL.md §4.3.4). Serialization to bytes is handled by the
// codec package; this returns the structured form.
func (t *Tree[V]) CompileProof(paths []h256.H256) (*CompiledProof, error) {
	entries := make([]Proof, len(paths))
	for i, p := range paths {
		proof, err := t.MerkleProof(p)
		if err != nil {
			return nil, err
		}
		entries[i] = proof
	}
	return &CompiledProof{Entries: entries}, nil
}

// virtualBranch mirrors BranchNode but defaults (Go zero value) to both
// children being the zero-sentinel, matching mergevalue.Zero's zero value.
type virtualBranch = BranchNode

// ComputeNextRoot recomputes the root that would result from applying
// newValues at paths — in the given order, each against the state left by
// the previous one — using only the sibling evidence in proof, without any
// store access (SPEC_FULL.md §4.3.5 / §8 P5). paths and newValues must be
// the same length and in the same order as the paths given to
// CompileProof; proof.Entries is consumed positionally.
//
// Paths that happen to share an ancestor branch are handled correctly
// because the virtual branch map persists across the sequential walk: the
// second path to touch a shared branch observes the first path's fresh
// contribution on that branch, exactly as a real sequential UpdateAll
// would leave it in the underlying store.
func ComputeNextRoot(proof *CompiledProof, paths []h256.H256, newValueHashes []h256.H256) (h256.H256, error) {
	if len(proof.Entries) != len(paths) || len(paths) != len(newValueHashes) {
		return h256.Zero, smterrors.ErrProofMalformed
	}

	branches := map[BranchKey]virtualBranch{}

	// Seed the virtual branch map with every sibling the proof recorded,
	// one path's worth at a time (a later path's own siblings must not
	// clobber an earlier path's freshly-computed contribution at a shared
	// branch, so siblings are seeded lazily per path below instead of all
	// at once).
	for i, path := range paths {
		entry := proof.Entries[i]
		if entry.Path != path {
			return h256.Zero, smterrors.ErrProofMalformed
		}

		siblingIdx := 0
		current := mergevalue.FromH256(newValueHashes[i])

		for height := 0; height < h256.Bits; height++ {
			nodeKey := path.ParentPath(height)
			branchKey := BranchKey{Height: uint8(height), NodeKey: nodeKey}

			bn, seen := branches[branchKey]
			if !seen && entry.LeavesBitmap.Bit(height) {
				if siblingIdx >= len(entry.Siblings) {
					return h256.Zero, smterrors.ErrProofMalformed
				}
				sibling := entry.Siblings[siblingIdx]
				siblingIdx++
				if path.IsRight(height) {
					bn.Left = sibling
				} else {
					bn.Right = sibling
				}
			} else if entry.LeavesBitmap.Bit(height) {
				siblingIdx++
			}

			if path.IsRight(height) {
				bn.Right = current
			} else {
				bn.Left = current
			}
			branches[branchKey] = bn

			current = mergevalue.Merge(uint8(height), nodeKey, bn.Left, bn.Right)
		}

		if i == len(paths)-1 {
			return current.Hash(), nil
		}
	}

	return h256.Zero, nil
}
