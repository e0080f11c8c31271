// Package verifier implements the stateless proof verifier (C7). It does
// no I/O and touches no store. It is not allocation-free: every hash it
// computes goes through hasher.New, which allocates a fresh Keccak state.
// It depends only on internal/h256 and internal/mergevalue.
package verifier

import (
	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
)

// Verify reports whether (path, valueHash) is consistent with root, given
// the sibling evidence recorded in leavesBitmap/siblings by a prior
// MerkleProof call. It never returns an error: a proof that carries
// siblings whose count does not match the bitmap's popcount verifies
// false. A proof with no siblings is checked as a single-leaf tree, and its
// bitmap is not consulted.
func Verify(path, valueHash h256.H256, leavesBitmap h256.H256, siblings []mergevalue.MergeValue, root h256.H256) bool {
	// Step 1: the zero value never verifies — it is "absent", not a leaf a
	// proof can attest to (SPEC_FULL.md §4.7 step 1).
	if valueHash.IsZero() {
		return false
	}

	// Step 2: no siblings at all means every level from the leaf to the
	// root is an implicit zero — the single-leaf case, collapsed directly
	// instead of walking the main loop with an all-zero bitmap.
	if len(siblings) == 0 {
		return mergevalue.SingleLeaf(path, valueHash).Hash() == root
	}

	siblingIdx := 0
	current := mergevalue.FromH256(valueHash)
	seeded := false

	for height := 0; height < h256.Bits; height++ {
		nodeKey := path.ParentPath(height)

		if !seeded {
			// Before the first set bitmap bit, there is nothing to merge
			// against yet except an implicit chain of zero siblings —
			// collapse that directly into the MergeWithZero shortcut
			// instead of looping height times through Merge(zero, ...).
			if !leavesBitmap.Bit(height) {
				continue
			}
			current = mergevalue.IntoMergeValue(path, valueHash, uint8(height))
			seeded = true
		}

		var sibling mergevalue.MergeValue
		if leavesBitmap.Bit(height) {
			if siblingIdx >= len(siblings) {
				return false
			}
			sibling = siblings[siblingIdx]
			siblingIdx++
		} else {
			sibling = mergevalue.Zero
		}

		var left, right mergevalue.MergeValue
		if path.IsRight(height) {
			left, right = sibling, current
		} else {
			left, right = current, sibling
		}
		current = mergevalue.Merge(uint8(height), nodeKey, left, right)
	}

	if siblingIdx != len(siblings) {
		return false
	}

	return current.Hash() == root
}
