package compute

import (
	"fmt"
	"math"
	"math/big"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/basekick-labs/arrowcompute/internal/decimalops"
)

// decimalArray is the read side shared by both decimal array widths.
type decimalArray[T any] interface {
	arrow.Array
	Value(i int) T
}

// valueAppender is the builder surface the cast kernels need. The concrete
// arrow builders all satisfy it for their native type.
type valueAppender[T any] interface {
	Append(T)
	AppendNull()
	Reserve(int)
	NewArray() arrow.Array
	Release()
}

func errUnsupportedCast(from, to arrow.DataType) error {
	return fmt.Errorf("%w: casting from %s to %s not supported", arrow.ErrNotImplemented, from, to)
}

// CastDecimal rescales a decimal array to another decimal precision and
// scale, across widths if needed. Growing the scale multiplies values by a
// power of ten, shrinking divides with round-half-away-from-zero. When the
// target precision cannot hold a value the policy in opts decides between a
// null and an error. A target precision or scale outside the type's range
// aborts the cast under both policies. A cast to the same scale and an
// equal or wider precision of the same width reuses the input buffers.
func CastDecimal(mem memory.Allocator, arr arrow.Array, to arrow.DataType, opts CastOptions) (arrow.Array, error) {
	if err := checkDecimalTarget(to); err != nil {
		return nil, err
	}
	switch a := arr.(type) {
	case *array.Decimal128:
		in := a.DataType().(*arrow.Decimal128Type)
		switch out := to.(type) {
		case *arrow.Decimal128Type:
			if in.Scale == out.Scale && in.Precision <= out.Precision {
				return retypedView(a, out), nil
			}
			return rescaleDecimal[decimal128.Num, decimal128.Num](a, decimalops.Int128{}, in.Precision, in.Scale,
				array.NewDecimal128Builder(mem, out), decimalops.Int128{}, out.Precision, out.Scale, opts)
		case *arrow.Decimal256Type:
			return rescaleDecimal[decimal128.Num, decimal256.Num](a, decimalops.Int128{}, in.Precision, in.Scale,
				array.NewDecimal256Builder(mem, out), decimalops.Int256{}, out.Precision, out.Scale, opts)
		}
	case *array.Decimal256:
		in := a.DataType().(*arrow.Decimal256Type)
		switch out := to.(type) {
		case *arrow.Decimal128Type:
			return rescaleDecimal[decimal256.Num, decimal128.Num](a, decimalops.Int256{}, in.Precision, in.Scale,
				array.NewDecimal128Builder(mem, out), decimalops.Int128{}, out.Precision, out.Scale, opts)
		case *arrow.Decimal256Type:
			if in.Scale == out.Scale && in.Precision <= out.Precision {
				return retypedView(a, out), nil
			}
			return rescaleDecimal[decimal256.Num, decimal256.Num](a, decimalops.Int256{}, in.Precision, in.Scale,
				array.NewDecimal256Builder(mem, out), decimalops.Int256{}, out.Precision, out.Scale, opts)
		}
	case *array.Dictionary:
		return castDictionary(a, func(values arrow.Array) (arrow.Array, error) {
			return CastDecimal(mem, values, to, opts)
		})
	}
	return nil, errUnsupportedCast(arr.DataType(), to)
}

// checkDecimalTarget rejects decimal target types whose precision or scale
// is out of range for the width. Non-decimal types pass through untouched.
func checkDecimalTarget(to arrow.DataType) error {
	switch t := to.(type) {
	case *arrow.Decimal128Type:
		return validateDecimalType("Decimal128", t.Precision, t.Scale, decimalops.MaxPrecision128)
	case *arrow.Decimal256Type:
		return validateDecimalType("Decimal256", t.Precision, t.Scale, decimalops.MaxPrecision256)
	}
	return nil
}

func validateDecimalType(prefix string, prec, scale, maxPrec int32) error {
	if prec < 1 || prec > maxPrec {
		return fmt.Errorf("%w: %s precision %d is out of range [1, %d]",
			arrow.ErrInvalid, prefix, prec, maxPrec)
	}
	if scale < -maxPrec || scale > maxPrec {
		return fmt.Errorf("%w: %s scale %d is out of range [-%d, %d]",
			arrow.ErrInvalid, prefix, scale, maxPrec, maxPrec)
	}
	if scale > prec {
		return fmt.Errorf("%w: %s scale %d is greater than precision %d",
			arrow.ErrInvalid, prefix, scale, prec)
	}
	return nil
}

// retypedView wraps the array's buffers under a new data type without
// copying values.
func retypedView(a arrow.Array, dt arrow.DataType) arrow.Array {
	d := a.Data()
	nd := array.NewData(dt, d.Len(), d.Buffers(), nil, d.NullN(), d.Offset())
	defer nd.Release()
	return array.MakeFromData(nd)
}

// castDictionary applies f to the dictionary values and rewraps the result
// with the original indices. Key nulls already encode output nulls.
func castDictionary(a *array.Dictionary, f func(values arrow.Array) (arrow.Array, error)) (arrow.Array, error) {
	values, err := f(a.Dictionary())
	if err != nil {
		return nil, err
	}
	defer values.Release()
	srcType := a.DataType().(*arrow.DictionaryType)
	outType := &arrow.DictionaryType{
		IndexType: srcType.IndexType,
		ValueType: values.DataType(),
		Ordered:   srcType.Ordered,
	}
	return array.NewDictionaryArray(outType, a.Indices(), values), nil
}

func rescaleDecimal[I, O any](
	in decimalArray[I], inT decimalops.Traits[I], inPrec, inScale int32,
	b valueAppender[O], outT decimalops.Traits[O], outPrec, outScale int32,
	opts CastOptions,
) (arrow.Array, error) {
	defer b.Release()

	// When every representable input is guaranteed to fit the output
	// precision after the scale change, per-value checks are skipped.
	infallible := inPrec+(outScale-inScale) <= outPrec
	if outScale < inScale {
		infallible = inPrec-(inScale-outScale) < outPrec
	}

	var mul, div *big.Int
	switch delta := outScale - inScale; {
	case delta > 0:
		mul = decimalops.Pow10(int(delta))
	case delta < 0:
		div = decimalops.Pow10(int(-delta))
	}

	b.Reserve(in.Len())
	for i := 0; i < in.Len(); i++ {
		if in.IsNull(i) {
			b.AppendNull()
			continue
		}
		x := inT.ToBigInt(in.Value(i))
		v := x
		if mul != nil {
			v = new(big.Int).Mul(x, mul)
		} else if div != nil {
			v = decimalops.DivRoundHalfAwayFromZero(x, div)
		}
		o, ok := outT.FromBigInt(v)
		if ok && !infallible {
			ok = outT.FitsInPrecision(o, outPrec)
		}
		if ok {
			b.Append(o)
			continue
		}
		if opts.Safe {
			b.AppendNull()
			continue
		}
		return nil, errDecimalOverflow(outT.Prefix(), outPrec, outScale, x.String())
	}
	return b.NewArray(), nil
}

// CastDecimalToInteger divides every value by 10^scale, truncating the
// fractional digits, and narrows the quotient to the requested integer
// type. Narrowing failures follow the safe/strict policy.
func CastDecimalToInteger(mem memory.Allocator, arr arrow.Array, to arrow.DataType, opts CastOptions) (arrow.Array, error) {
	var value func(i int) *big.Int
	switch a := arr.(type) {
	case *array.Decimal128:
		value = unscaled[decimal128.Num](a, decimalops.Int128{}, a.DataType().(*arrow.Decimal128Type).Scale)
	case *array.Decimal256:
		value = unscaled[decimal256.Num](a, decimalops.Int256{}, a.DataType().(*arrow.Decimal256Type).Scale)
	case *array.Dictionary:
		return castDictionary(a, func(values arrow.Array) (arrow.Array, error) {
			return CastDecimalToInteger(mem, values, to, opts)
		})
	default:
		return nil, errUnsupportedCast(arr.DataType(), to)
	}

	switch to.ID() {
	case arrow.INT8:
		return buildFromBigInts(arr, array.NewInt8Builder(mem), value, bigToSigned[int8](math.MinInt8, math.MaxInt8), to, opts)
	case arrow.INT16:
		return buildFromBigInts(arr, array.NewInt16Builder(mem), value, bigToSigned[int16](math.MinInt16, math.MaxInt16), to, opts)
	case arrow.INT32:
		return buildFromBigInts(arr, array.NewInt32Builder(mem), value, bigToSigned[int32](math.MinInt32, math.MaxInt32), to, opts)
	case arrow.INT64:
		return buildFromBigInts(arr, array.NewInt64Builder(mem), value, bigToSigned[int64](math.MinInt64, math.MaxInt64), to, opts)
	case arrow.UINT8:
		return buildFromBigInts(arr, array.NewUint8Builder(mem), value, bigToUnsigned[uint8](math.MaxUint8), to, opts)
	case arrow.UINT16:
		return buildFromBigInts(arr, array.NewUint16Builder(mem), value, bigToUnsigned[uint16](math.MaxUint16), to, opts)
	case arrow.UINT32:
		return buildFromBigInts(arr, array.NewUint32Builder(mem), value, bigToUnsigned[uint32](math.MaxUint32), to, opts)
	case arrow.UINT64:
		return buildFromBigInts(arr, array.NewUint64Builder(mem), value, bigToUnsigned[uint64](math.MaxUint64), to, opts)
	}
	return nil, errUnsupportedCast(arr.DataType(), to)
}

// unscaled strips the scale off a decimal value, truncating toward zero.
// Negative scales multiply instead.
func unscaled[T any](a decimalArray[T], tr decimalops.Traits[T], scale int32) func(i int) *big.Int {
	if scale >= 0 {
		div := decimalops.Pow10(int(scale))
		return func(i int) *big.Int {
			return new(big.Int).Quo(tr.ToBigInt(a.Value(i)), div)
		}
	}
	mul := decimalops.Pow10(int(-scale))
	return func(i int) *big.Int {
		v := tr.ToBigInt(a.Value(i))
		return v.Mul(v, mul)
	}
}

func bigToSigned[N int8 | int16 | int32 | int64](lo, hi int64) func(*big.Int) (N, bool) {
	return func(v *big.Int) (N, bool) {
		if !v.IsInt64() {
			return 0, false
		}
		n := v.Int64()
		if n < lo || n > hi {
			return 0, false
		}
		return N(n), true
	}
}

func bigToUnsigned[N uint8 | uint16 | uint32 | uint64](hi uint64) func(*big.Int) (N, bool) {
	return func(v *big.Int) (N, bool) {
		if !v.IsUint64() {
			return 0, false
		}
		n := v.Uint64()
		if n > hi {
			return 0, false
		}
		return N(n), true
	}
}

func buildFromBigInts[N any](arr arrow.Array, b valueAppender[N], value func(i int) *big.Int, conv func(*big.Int) (N, bool), to arrow.DataType, opts CastOptions) (arrow.Array, error) {
	defer b.Release()
	b.Reserve(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		v := value(i)
		n, ok := conv(v)
		if ok {
			b.Append(n)
			continue
		}
		if opts.Safe {
			b.AppendNull()
			continue
		}
		return nil, fmt.Errorf("%w: value of %s is out of range %s", arrow.ErrInvalid, v, to)
	}
	return b.NewArray(), nil
}

// CastDecimalToFloat converts every value to the requested floating point
// type as value * 10^-scale. The conversion cannot fail, so the policy is
// irrelevant here.
func CastDecimalToFloat(mem memory.Allocator, arr arrow.Array, to arrow.DataType) (arrow.Array, error) {
	var value func(i int) float64
	switch a := arr.(type) {
	case *array.Decimal128:
		scale := a.DataType().(*arrow.Decimal128Type).Scale
		value = func(i int) float64 { return a.Value(i).ToFloat64(scale) }
	case *array.Decimal256:
		scale := a.DataType().(*arrow.Decimal256Type).Scale
		value = func(i int) float64 { return a.Value(i).ToFloat64(scale) }
	case *array.Dictionary:
		return castDictionary(a, func(values arrow.Array) (arrow.Array, error) {
			return CastDecimalToFloat(mem, values, to)
		})
	default:
		return nil, errUnsupportedCast(arr.DataType(), to)
	}

	switch to.ID() {
	case arrow.FLOAT32:
		b := array.NewFloat32Builder(mem)
		defer b.Release()
		b.Reserve(arr.Len())
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(float32(value(i)))
			}
		}
		return b.NewArray(), nil
	case arrow.FLOAT64:
		b := array.NewFloat64Builder(mem)
		defer b.Release()
		b.Reserve(arr.Len())
		for i := 0; i < arr.Len(); i++ {
			if arr.IsNull(i) {
				b.AppendNull()
			} else {
				b.Append(value(i))
			}
		}
		return b.NewArray(), nil
	}
	return nil, errUnsupportedCast(arr.DataType(), to)
}

// CastFloatToDecimal multiplies every value by 10^scale, rounds half away
// from zero to an integer and stores it at the target precision. NaN,
// infinities and values too large for the precision follow the safe/strict
// policy. A target precision or scale outside the type's range aborts the
// cast under both policies.
func CastFloatToDecimal(mem memory.Allocator, arr arrow.Array, to arrow.DataType, opts CastOptions) (arrow.Array, error) {
	if err := checkDecimalTarget(to); err != nil {
		return nil, err
	}
	var value func(i int) float64
	switch a := arr.(type) {
	case *array.Float32:
		value = func(i int) float64 { return float64(a.Value(i)) }
	case *array.Float64:
		value = func(i int) float64 { return a.Value(i) }
	case *array.Dictionary:
		return castDictionary(a, func(values arrow.Array) (arrow.Array, error) {
			return CastFloatToDecimal(mem, values, to, opts)
		})
	default:
		return nil, errUnsupportedCast(arr.DataType(), to)
	}

	switch out := to.(type) {
	case *arrow.Decimal128Type:
		return floatToDecimal[decimal128.Num](arr, value, array.NewDecimal128Builder(mem, out),
			decimalops.Int128{}, out.Precision, out.Scale, opts)
	case *arrow.Decimal256Type:
		return floatToDecimal[decimal256.Num](arr, value, array.NewDecimal256Builder(mem, out),
			decimalops.Int256{}, out.Precision, out.Scale, opts)
	}
	return nil, errUnsupportedCast(arr.DataType(), to)
}

func floatToDecimal[O any](arr arrow.Array, value func(i int) float64, b valueAppender[O], tr decimalops.Traits[O], prec, scale int32, opts CastOptions) (arrow.Array, error) {
	defer b.Release()
	mul := math.Pow(10, float64(scale))
	b.Reserve(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		f := value(i)
		scaled := math.Round(f * mul)
		var o O
		ok := !math.IsNaN(scaled) && !math.IsInf(scaled, 0)
		if ok {
			v, _ := big.NewFloat(scaled).Int(nil)
			o, ok = tr.FromBigInt(v)
		}
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
		return nil, errDecimalOverflow(tr.Prefix(), prec, scale,
			strconv.FormatFloat(f, 'g', -1, 64))
	}
	return b.NewArray(), nil
}
