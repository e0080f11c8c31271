// Package account supplies the one concrete (Key, Value) instantiation the
// daemon ships: an address maps to a nonce/balance pair, mirroring
// SMTKey/SMTValue in the original implementation this system was
// distilled from. internal/smt never imports this package — it is wired up
// only at the registry/transport boundary (SPEC_FULL.md §3).
package account

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/farcloud-labs/subsmt/internal/h256"
	"github.com/farcloud-labs/subsmt/internal/hasher"
	"github.com/farcloud-labs/subsmt/internal/smt"
	"github.com/farcloud-labs/subsmt/internal/smterrors"
)

// Key identifies an account by its address. Addresses are treated as
// opaque byte strings (hex-encoded 20-byte Ethereum-style addresses in
// practice, but the type does not enforce that).
type Key struct {
	Address string
}

// ToH256 hashes the canonical encoding of the key, giving the leaf's path
// in the tree.
func (k Key) ToH256() h256.H256 {
	return hasher.Sum256(encodeKey(k))
}

func encodeKey(k Key) []byte {
	addr := []byte(k.Address)
	out := make([]byte, 4+len(addr))
	binary.BigEndian.PutUint32(out, uint32(len(addr)))
	copy(out[4:], addr)
	return out
}

func decodeKey(b []byte) (Key, error) {
	if len(b) < 4 {
		return Key{}, smterrors.NewCodecError("account key", fmt.Errorf("short buffer"))
	}
	n := binary.BigEndian.Uint32(b[:4])
	if uint32(len(b)-4) != n {
		return Key{}, smterrors.NewCodecError("account key", fmt.Errorf("length mismatch"))
	}
	return Key{Address: string(b[4:])}, nil
}

// balanceWidth is the fixed byte width reserved for the balance field —
// wide enough for a full 128-bit unsigned value, matching the original
// schema's u128 balance.
const balanceWidth = 16

// Value is the leaf payload: a nonce and an unsigned balance. The zero
// value (Nonce == 0, Balance == nil or 0) hashes to the zero digest,
// representing an absent/deleted account.
type Value struct {
	Nonce   uint64
	Balance *big.Int
}

// ZeroValue is the canonical absent-account value.
func ZeroValue() Value {
	return Value{Nonce: 0, Balance: big.NewInt(0)}
}

// IsZero reports whether v is the default (absent) account state.
func (v Value) IsZero() bool {
	return v.Nonce == 0 && (v.Balance == nil || v.Balance.Sign() == 0)
}

// Bytes canonically encodes v as 8 bytes of big-endian nonce followed by a
// fixed 16-byte big-endian balance.
func (v Value) Bytes() ([]byte, error) {
	if v.Balance != nil && v.Balance.Sign() < 0 {
		return nil, fmt.Errorf("account: negative balance")
	}
	out := make([]byte, 8+balanceWidth)
	binary.BigEndian.PutUint64(out[:8], v.Nonce)
	if v.Balance != nil {
		b := v.Balance.Bytes()
		if len(b) > balanceWidth {
			return nil, fmt.Errorf("account: balance exceeds %d bytes", balanceWidth)
		}
		copy(out[8+balanceWidth-len(b):], b)
	}
	return out, nil
}

// ParseValue decodes the bytes produced by Value.Bytes.
func ParseValue(b []byte) (Value, error) {
	if len(b) != 8+balanceWidth {
		return Value{}, smterrors.NewCodecError("account value", fmt.Errorf("expected %d bytes, got %d", 8+balanceWidth, len(b)))
	}
	nonce := binary.BigEndian.Uint64(b[:8])
	balance := new(big.Int).SetBytes(b[8:])
	return Value{Nonce: nonce, Balance: balance}, nil
}

// ToH256 hashes the canonical encoding of v, or returns the zero digest
// directly for the zero value — mirroring the original's short-circuit so
// "absent" never depends on hash-function behavior over an all-zero
// encoding.
func ToH256(v Value) h256.H256 {
	if v.IsZero() {
		return h256.Zero
	}
	b, err := v.Bytes()
	if err != nil {
		return h256.Zero
	}
	return hasher.Sum256(b)
}

// Encode/Decode/Zero/ToH256 adapt Value to smt.ValueCodec's function-struct
// shape; callers build the codec with account.Codec().
func Encode(v Value) ([]byte, error) { return v.Bytes() }
func Decode(b []byte) (Value, error) { return ParseValue(b) }
func Zero() Value                    { return ZeroValue() }

// Codec returns the smt.ValueCodec for Value, ready to pass to smt.New.
func Codec() smt.ValueCodec[Value] {
	return smt.ValueCodec[Value]{
		Encode: Encode,
		Decode: Decode,
		Zero:   Zero,
		ToH256: ToH256,
	}
}
