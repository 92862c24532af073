package decimalops

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitsWidth(t *testing.T) {
	one := big.NewInt(1)
	max128 := new(big.Int).Sub(new(big.Int).Lsh(one, 127), one)
	min128 := new(big.Int).Neg(new(big.Int).Lsh(one, 127))

	assert.True(t, FitsInt128(max128))
	assert.True(t, FitsInt128(min128))
	assert.False(t, FitsInt128(new(big.Int).Add(max128, one)))
	assert.False(t, FitsInt128(new(big.Int).Sub(min128, one)))

	max256 := new(big.Int).Sub(new(big.Int).Lsh(one, 255), one)
	assert.True(t, FitsInt256(max256))
	assert.False(t, FitsInt256(new(big.Int).Add(max256, one)))
	// Anything 128-bit is trivially 256-bit.
	assert.True(t, FitsInt256(new(big.Int).Add(max128, one)))
}

func TestPow10(t *testing.T) {
	assert.Equal(t, int64(1), Pow10(0).Int64())
	assert.Equal(t, int64(10000), Pow10(4).Int64())

	want, ok := new(big.Int).SetString("1"+stringOfZeros(76), 10)
	require.True(t, ok)
	assert.Zero(t, want.Cmp(Pow10(76)))

	// Beyond the cache it still computes.
	assert.Equal(t, 201, len(Pow10(200).String()))
}

func stringOfZeros(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestDivRoundHalfAwayFromZero(t *testing.T) {
	tests := []struct {
		name string
		x    int64
		div  int64
		want int64
	}{
		{"exact", 1200, 100, 12},
		{"below half", 1249, 100, 12},
		{"at half rounds up", 1250, 100, 13},
		{"above half", 1251, 100, 13},
		{"negative below half", -1249, 100, -12},
		{"negative at half rounds down", -1250, 100, -13},
		{"negative above half", -1251, 100, -13},
		{"div one", 42, 1, 42},
		{"zero", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DivRoundHalfAwayFromZero(big.NewInt(tt.x), big.NewInt(tt.div))
			assert.Equal(t, tt.want, got.Int64())
		})
	}
}

func TestTraitsRoundTrip(t *testing.T) {
	var tr128 Int128
	v := big.NewInt(-123456789)
	n, ok := tr128.FromBigInt(v)
	require.True(t, ok)
	assert.Zero(t, v.Cmp(tr128.ToBigInt(n)))
	assert.True(t, tr128.FitsInPrecision(n, 9))
	assert.False(t, tr128.FitsInPrecision(n, 8))

	var tr256 Int256
	huge := Pow10(40) // too wide for 128-bit decimal precision
	n256, ok := tr256.FromBigInt(huge)
	require.True(t, ok)
	assert.Zero(t, huge.Cmp(tr256.ToBigInt(n256)))
	assert.True(t, tr256.FitsInPrecision(n256, 41))

	_, ok = tr128.FromBigInt(Pow10(40))
	assert.False(t, ok)
}
