package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/mergevalue"
	"github.com/farcloud-labs/subsmt/internal/smt"
)

func TestBranchKeyRoundTrip(t *testing.T) {
	k := smt.BranchKey{Height: 12, NodeKey: h256.Zero.SetBit(3).SetBit(200)}
	b := EncodeBranchKey(k)
	assert.Len(t, b, 1+h256.Size)

	got, err := DecodeBranchKey(b)
	require.NoError(t, err)
	assert.Equal(t, k, got)
}

func TestDecodeBranchKeyRejectsWrongLength(t *testing.T) {
	_, err := DecodeBranchKey(make([]byte, 10))
	assert.Error(t, err)
}

func TestMergeValueRoundTripValueKind(t *testing.T) {
	mv := mergevalue.FromH256(h256.Zero.SetBit(9))
	b := EncodeMergeValue(mv)
	assert.Len(t, b, mergeValueSize)

	got, err := DecodeMergeValue(b)
	require.NoError(t, err)
	assert.Equal(t, mv, got)
}

func TestMergeValueRoundTripMergeWithZeroKind(t *testing.T) {
	mv := mergevalue.MergeValue{
		Kind:      mergevalue.KindMergeWithZero,
		BaseNode:  h256.Zero.SetBit(1),
		ZeroBits:  h256.Zero.SetBit(2).SetBit(3),
		ZeroCount: 5,
	}
	b := EncodeMergeValue(mv)
	got, err := DecodeMergeValue(b)
	require.NoError(t, err)
	assert.Equal(t, mv, got)
}

func TestDecodeMergeValueRejectsBadKind(t *testing.T) {
	b := make([]byte, mergeValueSize)
	b[0] = 0xff
	_, err := DecodeMergeValue(b)
	assert.Error(t, err)
}

func TestDecodeMergeValueRejectsWrongLength(t *testing.T) {
	_, err := DecodeMergeValue(make([]byte, 3))
	assert.Error(t, err)
}

func TestBranchNodeRoundTrip(t *testing.T) {
	n := smt.BranchNode{
		Left:  mergevalue.FromH256(h256.Zero.SetBit(1)),
		Right: mergevalue.Zero,
	}
	b := EncodeBranchNode(n)
	assert.Len(t, b, 2*mergeValueSize)

	got, err := DecodeBranchNode(b)
	require.NoError(t, err)
	assert.Equal(t, n, got)
}

func TestCompiledProofRoundTrip(t *testing.T) {
	proof := &smt.CompiledProof{
		Entries: []smt.Proof{
			{
				Path:         h256.Zero.SetBit(1),
				LeavesBitmap: h256.Zero.SetBit(1).SetBit(2),
				Siblings: []mergevalue.MergeValue{
					mergevalue.FromH256(h256.Zero.SetBit(9)),
					{Kind: mergevalue.KindMergeWithZero, BaseNode: h256.Zero.SetBit(3), ZeroBits: h256.Zero, ZeroCount: 2},
				},
			},
			{
				Path:         h256.Zero.SetBit(40),
				LeavesBitmap: h256.Zero,
				Siblings:     nil,
			},
		},
	}

	b := EncodeCompiledProof(proof)
	got, err := DecodeCompiledProof(b)
	require.NoError(t, err)
	assert.Equal(t, proof, got)
}

func TestDecodeCompiledProofRejectsShortBuffer(t *testing.T) {
	_, err := DecodeCompiledProof([]byte{0, 0})
	assert.Error(t, err)
}

func TestDecodeCompiledProofRejectsTruncatedEntry(t *testing.T) {
	b := make([]byte, 4)
	b[3] = 1 // claims one entry but supplies none
	_, err := DecodeCompiledProof(b)
	assert.Error(t, err)
}
