// Package hasher implements the streaming hash abstraction (C1) used to
// derive every digest in the tree. It depends only on the standard library
// and golang.org/x/crypto/sha3, so it stays usable from the no-dependency
// verifier build.
package hasher

import (
	"golang.org/x/crypto/sha3"

	"github.com/farcloud-labs/subsmt/internal/h256"
)

// Hasher is a streaming hash that folds H256 digests and individual bytes
// into a running state, terminated by Finish. Implementations are
// infallible: there is no error return anywhere in this interface.
type Hasher interface {
	WriteH256(h h256.H256)
	WriteByte(b byte)
	Finish() h256.H256
}

// New returns the default hasher instance: Keccak-256 using the
// Ethereum/tiny-keccak convention (the original, non-NIST-padded Keccak —
// no domain separation byte).
func New() Hasher {
	return &keccak256Hasher{state: sha3.NewLegacyKeccak256()}
}

type keccak256Hasher struct {
	state interface {
		Write(p []byte) (int, error)
		Sum(b []byte) []byte
	}
}

func (k *keccak256Hasher) WriteH256(h h256.H256) {
	_, _ = k.state.Write(h[:])
}

func (k *keccak256Hasher) WriteByte(b byte) {
	_, _ = k.state.Write([]byte{b})
}

func (k *keccak256Hasher) Finish() h256.H256 {
	sum := k.state.Sum(nil)
	out, _ := h256.FromBytes(sum)
	return out
}

// Sum256 hashes an arbitrary byte slice with the default hasher's underlying
// algorithm in one call — used by the account package to derive
// paths/value hashes from canonical-encoded keys and values.
func Sum256(data []byte) h256.H256 {
	sum := sha3.NewLegacyKeccak256()
	_, _ = sum.Write(data)
	out, _ := h256.FromBytes(sum.Sum(nil))
	return out
}
