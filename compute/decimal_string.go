package compute

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/basekick-labs/arrowcompute/internal/decimalops"
)

// stringArray is satisfied by both the 32-bit and 64-bit offset string
// arrays.
type stringArray interface {
	arrow.Array
	Value(i int) string
}

func errDecimalFormat(text string) error {
	return fmt.Errorf("%w: Invalid decimal format: %q", arrow.ErrInvalid, text)
}

// CastStringToDecimal parses every element as a decimal number at the
// target scale. The grammar is an optional sign, integer digits, an
// optional dot and fraction digits. Fraction digits beyond the scale are
// rounded half away from zero through a 256-bit intermediate. Malformed
// text aborts the whole cast under either policy; a parsed value that does
// not fit the target width or precision follows the safe/strict policy.
// The scale must be non-negative and within the target type's range, and
// the precision must be valid for the width, both checked before any
// element is parsed.
func CastStringToDecimal(mem memory.Allocator, arr arrow.Array, to arrow.DataType, opts CastOptions) (arrow.Array, error) {
	var in stringArray
	switch a := arr.(type) {
	case *array.String:
		in = a
	case *array.LargeString:
		in = a
	case *array.Dictionary:
		return castDictionary(a, func(values arrow.Array) (arrow.Array, error) {
			return CastStringToDecimal(mem, values, to, opts)
		})
	default:
		return nil, errUnsupportedCast(arr.DataType(), to)
	}

	switch out := to.(type) {
	case *arrow.Decimal128Type:
		if err := checkStringCastScale(out.Scale, decimalops.MaxPrecision128); err != nil {
			return nil, err
		}
		if err := checkDecimalTarget(out); err != nil {
			return nil, err
		}
		return stringToDecimal[decimal128.Num](in, array.NewDecimal128Builder(mem, out),
			decimalops.Int128{}, out.Precision, out.Scale, opts)
	case *arrow.Decimal256Type:
		if err := checkStringCastScale(out.Scale, decimalops.MaxPrecision256); err != nil {
			return nil, err
		}
		if err := checkDecimalTarget(out); err != nil {
			return nil, err
		}
		return stringToDecimal[decimal256.Num](in, array.NewDecimal256Builder(mem, out),
			decimalops.Int256{}, out.Precision, out.Scale, opts)
	}
	return nil, errUnsupportedCast(arr.DataType(), to)
}

func checkStringCastScale(scale, maxScale int32) error {
	if scale < 0 {
		return fmt.Errorf("%w: Cannot cast string to decimal with negative scale %d",
			arrow.ErrInvalid, scale)
	}
	if scale > maxScale {
		return fmt.Errorf("%w: Cannot cast string to decimal greater than maximum scale %d",
			arrow.ErrInvalid, maxScale)
	}
	return nil
}

func stringToDecimal[O any](in stringArray, b valueAppender[O], tr decimalops.Traits[O], prec, scale int32, opts CastOptions) (arrow.Array, error) {
	defer b.Release()
	b.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		if in.IsNull(i) {
			b.AppendNull()
			continue
		}
		text := in.Value(i)
		v, err := parseDecimalText(text, scale)
		if err != nil {
			return nil, err
		}
		o, ok := tr.FromBigInt(v)
		if ok {
			ok = tr.FitsInPrecision(o, prec)
		}
		if ok {
			b.Append(o)
			continue
		}
		if opts.Safe {
			b.AppendNull()
			continue
		}
		return nil, fmt.Errorf("%w: Cannot convert %s to %s(%d, %d)",
			arrow.ErrInvalid, text, tr.Prefix(), prec, scale)
	}
	return b.NewArray(), nil
}

// parseDecimalText parses text into the unscaled integer representing it at
// the given scale. Fraction digits beyond the scale round half away from
// zero, shorter fractions are zero padded. Whitespace around the number is
// ignored. An empty number parses as zero.
func parseDecimalText(text string, scale int32) (*big.Int, error) {
	s := strings.TrimSpace(text)
	intPart, fracPart, found := strings.Cut(s, ".")
	if found && strings.ContainsRune(fracPart, '.') {
		return nil, errDecimalFormat(s)
	}

	negative := false
	if intPart != "" {
		switch intPart[0] {
		case '-':
			negative = true
			intPart = intPart[1:]
		case '+':
			intPart = intPart[1:]
		}
	}
	if !allDigits(intPart) || !allDigits(fracPart) {
		return nil, errDecimalFormat(s)
	}

	var v *big.Int
	if len(fracPart) > int(scale) {
		// Too many fraction digits: parse the fraction on its own, round
		// the excess away, then recombine with the scaled integer part.
		frac, _ := new(big.Int).SetString(fracPart, 10)
		div := decimalops.Pow10(len(fracPart) - int(scale))
		v = decimalops.DivRoundHalfAwayFromZero(frac, div)
		if intPart != "" {
			iv, _ := new(big.Int).SetString(intPart, 10)
			v.Add(v, iv.Mul(iv, decimalops.Pow10(int(scale))))
		}
	} else {
		digits := intPart + fracPart + strings.Repeat("0", int(scale)-len(fracPart))
		if digits == "" {
			digits = "0"
		}
		v, _ = new(big.Int).SetString(digits, 10)
	}
	if negative {
		v.Neg(v)
	}
	return v, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
