package account

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/farcloud-labs/subsmt/internal/h256"
)

func TestZeroValueIsZero(t *testing.T) {
	assert.True(t, ZeroValue().IsZero())
	assert.True(t, Value{}.IsZero(), "nil Balance must also count as zero")
}

func TestZeroValueHashesToZeroDigest(t *testing.T) {
	assert.Equal(t, h256.Zero, ToH256(ZeroValue()))
	assert.Equal(t, h256.Zero, ToH256(Value{}))
}

func TestNonZeroValueDoesNotHashToZero(t *testing.T) {
	v := Value{Nonce: 1, Balance: big.NewInt(100)}
	assert.False(t, v.IsZero())
	assert.NotEqual(t, h256.Zero, ToH256(v))
}

func TestValueBytesRoundTrip(t *testing.T) {
	v := Value{Nonce: 42, Balance: big.NewInt(1234567890)}
	b, err := v.Bytes()
	require.NoError(t, err)
	assert.Len(t, b, 8+balanceWidth)

	got, err := ParseValue(b)
	require.NoError(t, err)
	assert.Equal(t, v.Nonce, got.Nonce)
	assert.Equal(t, 0, v.Balance.Cmp(got.Balance))
}

func TestValueBytesRejectsNegativeBalance(t *testing.T) {
	v := Value{Nonce: 1, Balance: big.NewInt(-1)}
	_, err := v.Bytes()
	assert.Error(t, err)
}

func TestValueBytesRejectsOversizedBalance(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 8*balanceWidth+8) // far beyond 128 bits
	v := Value{Nonce: 1, Balance: huge}
	_, err := v.Bytes()
	assert.Error(t, err)
}

func TestParseValueRejectsWrongLength(t *testing.T) {
	_, err := ParseValue(make([]byte, 4))
	assert.Error(t, err)
}

func TestKeyToH256Deterministic(t *testing.T) {
	k := Key{Address: "0xabc"}
	assert.Equal(t, k.ToH256(), k.ToH256())
}

func TestKeyToH256DistinguishesAddresses(t *testing.T) {
	a := Key{Address: "0xabc"}
	b := Key{Address: "0xabcd"}
	assert.NotEqual(t, a.ToH256(), b.ToH256(), "length-prefixed encoding must not let concatenation collide")
}

func TestCodecAdaptsValueCodecShape(t *testing.T) {
	c := Codec()
	v := Value{Nonce: 7, Balance: big.NewInt(77)}

	encoded, err := c.Encode(v)
	require.NoError(t, err)
	decoded, err := c.Decode(encoded)
	require.NoError(t, err)
	assert.Equal(t, v.Nonce, decoded.Nonce)

	assert.True(t, c.Zero().IsZero())
	assert.Equal(t, c.ToH256(v), ToH256(v))
}
