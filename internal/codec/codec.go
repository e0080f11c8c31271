// Package codec implements the canonical binary encoding (C2) used for
// every on-disk and on-wire representation in the tree: branch keys,
// branch nodes, merge values and compiled proofs. It is deliberately a
// fixed-width binary format rather than JSON or gob, so that encoded bytes
// are deterministic and directly hashable.
package codec

import (
	"encoding/binary"
	"fmt"

	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
	"github.com/farcloud-labs/subsmt/internal/smt"
	"github.com/farcloud-labs/subsmt/internal/smterrors"
)

func errLen(got, want int) error {
	return fmt.Errorf("expected %d bytes, got %d", want, got)
}

func errBadKind(b byte) error {
	return fmt.Errorf("unrecognized merge value kind byte 0x%02x", b)
}

// EncodeBranchKey renders a BranchKey as its 33-byte storage key: the
// height byte followed by the 32-byte node key. Storage layers (C4/C5) use
// this, possibly with an additional namespace/column prefix, as the literal
// KV key.
func EncodeBranchKey(k smt.BranchKey) []byte {
	out := make([]byte, 1+h256.Size)
	out[0] = k.Height
	copy(out[1:], k.NodeKey.Bytes())
	return out
}

// DecodeBranchKey parses the bytes produced by EncodeBranchKey.
func DecodeBranchKey(b []byte) (smt.BranchKey, error) {
	if len(b) != 1+h256.Size {
		return smt.BranchKey{}, smterrors.NewCodecError("branch key", errLen(len(b), 1+h256.Size))
	}
	nodeKey, err := h256.FromBytes(b[1:])
	if err != nil {
		return smt.BranchKey{}, smterrors.NewCodecError("branch key", err)
	}
	return smt.BranchKey{Height: b[0], NodeKey: nodeKey}, nil
}

// mergeValueSize is the fixed width of an encoded MergeValue: a kind byte
// followed by two 32-byte digest slots (Value uses the first; BaseNode and
// ZeroBits use both) and a zero-count byte.
const mergeValueSize = 1 + h256.Size + h256.Size + 1

// EncodeMergeValue renders a MergeValue in its fixed-width form. For
// KindValue, the Value field occupies the first digest slot and the
// second is zero-filled; for KindMergeWithZero, BaseNode and ZeroBits
// occupy the two digest slots and ZeroCount is meaningful.
func EncodeMergeValue(mv mergevalue.MergeValue) []byte {
	out := make([]byte, mergeValueSize)
	out[0] = byte(mv.Kind)
	switch mv.Kind {
	case mergevalue.KindValue:
		copy(out[1:1+h256.Size], mv.Value.Bytes())
	case mergevalue.KindMergeWithZero:
		copy(out[1:1+h256.Size], mv.BaseNode.Bytes())
		copy(out[1+h256.Size:1+2*h256.Size], mv.ZeroBits.Bytes())
		out[1+2*h256.Size] = mv.ZeroCount
	}
	return out
}

// DecodeMergeValue parses the bytes produced by EncodeMergeValue.
func DecodeMergeValue(b []byte) (mergevalue.MergeValue, error) {
	if len(b) != mergeValueSize {
		return mergevalue.MergeValue{}, smterrors.NewCodecError("merge value", errLen(len(b), mergeValueSize))
	}
	kind := mergevalue.Kind(b[0])
	switch kind {
	case mergevalue.KindValue:
		v, err := h256.FromBytes(b[1 : 1+h256.Size])
		if err != nil {
			return mergevalue.MergeValue{}, smterrors.NewCodecError("merge value", err)
		}
		return mergevalue.FromH256(v), nil
	case mergevalue.KindMergeWithZero:
		baseNode, err := h256.FromBytes(b[1 : 1+h256.Size])
		if err != nil {
			return mergevalue.MergeValue{}, smterrors.NewCodecError("merge value", err)
		}
		zeroBits, err := h256.FromBytes(b[1+h256.Size : 1+2*h256.Size])
		if err != nil {
			return mergevalue.MergeValue{}, smterrors.NewCodecError("merge value", err)
		}
		return mergevalue.MergeValue{
			Kind:      mergevalue.KindMergeWithZero,
			BaseNode:  baseNode,
			ZeroBits:  zeroBits,
			ZeroCount: b[1+2*h256.Size],
		}, nil
	default:
		return mergevalue.MergeValue{}, smterrors.NewCodecError("merge value", errBadKind(b[0]))
	}
}

// EncodeBranchNode renders a BranchNode as Left||Right, each in
// EncodeMergeValue form.
func EncodeBranchNode(n smt.BranchNode) []byte {
	out := make([]byte, 0, 2*mergeValueSize)
	out = append(out, EncodeMergeValue(n.Left)...)
	out = append(out, EncodeMergeValue(n.Right)...)
	return out
}

// DecodeBranchNode parses the bytes produced by EncodeBranchNode.
func DecodeBranchNode(b []byte) (smt.BranchNode, error) {
	if len(b) != 2*mergeValueSize {
		return smt.BranchNode{}, smterrors.NewCodecError("branch node", errLen(len(b), 2*mergeValueSize))
	}
	left, err := DecodeMergeValue(b[:mergeValueSize])
	if err != nil {
		return smt.BranchNode{}, err
	}
	right, err := DecodeMergeValue(b[mergeValueSize:])
	if err != nil {
		return smt.BranchNode{}, err
	}
	return smt.BranchNode{Left: left, Right: right}, nil
}

// EncodeCompiledProof renders a *smt.CompiledProof as the canonical byte
// blob returned by the registry's compile_proof operation (SPEC_FULL.md
// §4.3.4 / §6): a count of entries, then per entry the path, the bitmap
// and a length-prefixed run of merge values.
func EncodeCompiledProof(proof *smt.CompiledProof) []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, uint32(len(proof.Entries)))

	for _, entry := range proof.Entries {
		out = append(out, entry.Path.Bytes()...)
		out = append(out, entry.LeavesBitmap.Bytes()...)

		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(entry.Siblings)))
		out = append(out, count...)

		for _, sib := range entry.Siblings {
			out = append(out, EncodeMergeValue(sib)...)
		}
	}
	return out
}

// DecodeCompiledProof parses the bytes produced by EncodeCompiledProof.
func DecodeCompiledProof(b []byte) (*smt.CompiledProof, error) {
	if len(b) < 4 {
		return nil, smterrors.NewCodecError("compiled proof", errLen(len(b), 4))
	}
	n := binary.BigEndian.Uint32(b[:4])
	b = b[4:]

	entries := make([]smt.Proof, 0, n)
	for i := uint32(0); i < n; i++ {
		if len(b) < 2*h256.Size+4 {
			return nil, smterrors.NewCodecError("compiled proof", errLen(len(b), 2*h256.Size+4))
		}
		path, err := h256.FromBytes(b[:h256.Size])
		if err != nil {
			return nil, smterrors.NewCodecError("compiled proof", err)
		}
		b = b[h256.Size:]

		bitmap, err := h256.FromBytes(b[:h256.Size])
		if err != nil {
			return nil, smterrors.NewCodecError("compiled proof", err)
		}
		b = b[h256.Size:]

		siblingCount := binary.BigEndian.Uint32(b[:4])
		b = b[4:]

		var siblings []mergevalue.MergeValue
		if siblingCount > 0 {
			siblings = make([]mergevalue.MergeValue, 0, siblingCount)
		}
		for j := uint32(0); j < siblingCount; j++ {
			if len(b) < mergeValueSize {
				return nil, smterrors.NewCodecError("compiled proof", errLen(len(b), mergeValueSize))
			}
			mv, err := DecodeMergeValue(b[:mergeValueSize])
			if err != nil {
				return nil, err
			}
			siblings = append(siblings, mv)
			b = b[mergeValueSize:]
		}

		entries = append(entries, smt.Proof{Path: path, LeavesBitmap: bitmap, Siblings: siblings})
	}

	return &smt.CompiledProof{Entries: entries}, nil
}
