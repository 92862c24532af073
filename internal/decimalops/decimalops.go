// Package decimalops provides the checked arithmetic surface the decimal cast
// kernels need over Arrow's fixed-width decimal natives (decimal128.Num and
// decimal256.Num).
//
// The two native types expose wrapping arithmetic only, so the checked
// operations here go through math/big with explicit width-bound checks, the
// same approach arrow-go's own decimal packages use for wide arithmetic.
package decimalops

import (
	"math/big"

	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
)

const (
	// MaxPrecision128 is the maximum number of decimal digits a 128-bit
	// decimal can hold.
	MaxPrecision128 = 38
	// MaxPrecision256 is the maximum number of decimal digits a 256-bit
	// decimal can hold.
	MaxPrecision256 = 76
)

var (
	minInt128, maxInt128 *big.Int
	minInt256, maxInt256 *big.Int

	// pow10 caches 10^n for every exponent a rescale between legal scales can
	// produce (|scale| <= 76 on both sides, so deltas stay below 153).
	pow10 [2*MaxPrecision256 + 1]*big.Int
)

func init() {
	one := big.NewInt(1)
	maxInt128 = new(big.Int).Sub(new(big.Int).Lsh(one, 127), one)
	minInt128 = new(big.Int).Neg(new(big.Int).Lsh(one, 127))
	maxInt256 = new(big.Int).Sub(new(big.Int).Lsh(one, 255), one)
	minInt256 = new(big.Int).Neg(new(big.Int).Lsh(one, 255))

	p := big.NewInt(1)
	ten := big.NewInt(10)
	for i := range pow10 {
		pow10[i] = new(big.Int).Set(p)
		p.Mul(p, ten)
	}
}

// Pow10 returns 10^n. n must be non-negative; exponents beyond the cached
// range are computed directly.
func Pow10(n int) *big.Int {
	if n < len(pow10) {
		return pow10[n]
	}
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// FitsInt128 reports whether v is representable as a two's complement
// 128-bit integer.
func FitsInt128(v *big.Int) bool {
	return v.Cmp(minInt128) >= 0 && v.Cmp(maxInt128) <= 0
}

// FitsInt256 reports whether v is representable as a two's complement
// 256-bit integer.
func FitsInt256(v *big.Int) bool {
	return v.Cmp(minInt256) >= 0 && v.Cmp(maxInt256) <= 0
}

// Traits is the capability interface the cast kernels are written against.
// It is implemented exactly once per native width.
type Traits[T any] interface {
	// FromBigInt narrows v to the native width, reporting false when v does
	// not fit.
	FromBigInt(v *big.Int) (T, bool)
	// ToBigInt widens a native value losslessly.
	ToBigInt(n T) *big.Int
	// FitsInPrecision reports whether n has at most prec significant decimal
	// digits.
	FitsInPrecision(n T, prec int32) bool
	// MaxPrecision is the widest precision the native type supports.
	MaxPrecision() int32
	// Prefix is the type name used in cast error messages.
	Prefix() string
}

// Int128 implements Traits for decimal128.Num.
type Int128 struct{}

func (Int128) FromBigInt(v *big.Int) (decimal128.Num, bool) {
	if !FitsInt128(v) {
		return decimal128.Num{}, false
	}
	return decimal128.FromBigInt(v), true
}

func (Int128) ToBigInt(n decimal128.Num) *big.Int { return n.BigInt() }

func (Int128) FitsInPrecision(n decimal128.Num, prec int32) bool {
	return n.FitsInPrecision(prec)
}

func (Int128) MaxPrecision() int32 { return MaxPrecision128 }

func (Int128) Prefix() string { return "Decimal128" }

// Int256 implements Traits for decimal256.Num.
type Int256 struct{}

func (Int256) FromBigInt(v *big.Int) (decimal256.Num, bool) {
	if !FitsInt256(v) {
		return decimal256.Num{}, false
	}
	return decimal256.FromBigInt(v), true
}

func (Int256) ToBigInt(n decimal256.Num) *big.Int { return n.BigInt() }

func (Int256) FitsInPrecision(n decimal256.Num, prec int32) bool {
	return n.FitsInPrecision(prec)
}

func (Int256) MaxPrecision() int32 { return MaxPrecision256 }

func (Int256) Prefix() string { return "Decimal256" }

// DivRoundHalfAwayFromZero divides x by div (div > 0) with truncation and
// rounds the result half away from zero: remainders of at least div/2 in
// magnitude move the quotient one step further from zero.
func DivRoundHalfAwayFromZero(x, div *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(x, div, new(big.Int))
	if r.Sign() == 0 {
		return q
	}
	half := new(big.Int).Rsh(div, 1)
	if x.Sign() >= 0 {
		if r.Cmp(half) >= 0 {
			q.Add(q, big.NewInt(1))
		}
	} else {
		halfNeg := half.Neg(half)
		if r.Cmp(halfNeg) <= 0 {
			q.Sub(q, big.NewInt(1))
		}
	}
	return q
}
