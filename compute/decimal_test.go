package compute

import (
	"math"
	"testing"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	"github.com/apache/arrow-go/v18/arrow/decimal256"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/basekick-labs/arrowcompute/internal/decimalops"
)

func dec128Type(precision, scale int32) *arrow.Decimal128Type {
	return &arrow.Decimal128Type{Precision: precision, Scale: scale}
}

func dec256Type(precision, scale int32) *arrow.Decimal256Type {
	return &arrow.Decimal256Type{Precision: precision, Scale: scale}
}

func buildDec128(mem memory.Allocator, dt *arrow.Decimal128Type, values []int64, valid []bool) *array.Decimal128 {
	b := array.NewDecimal128Builder(mem, dt)
	defer b.Release()
	nums := make([]decimal128.Num, len(values))
	for i, v := range values {
		nums[i] = decimal128.FromI64(v)
	}
	b.AppendValues(nums, valid)
	return b.NewDecimal128Array()
}

func dec128Values(t *testing.T, arr arrow.Array) []int64 {
	t.Helper()
	d, ok := arr.(*array.Decimal128)
	require.True(t, ok)
	out := make([]int64, d.Len())
	for i := range out {
		if d.IsValid(i) {
			big := d.Value(i).BigInt()
			require.True(t, big.IsInt64())
			out[i] = big.Int64()
		}
	}
	return out
}

func TestCastDecimalSameScaleSharesBuffers(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 2), []int64{12345, -99}, nil)
	defer in.Release()

	out, err := CastDecimal(mem, in, dec128Type(7, 2), SafeCast)
	require.NoError(t, err)
	defer out.Release()

	assert.Equal(t, []int64{12345, -99}, dec128Values(t, out))
	assert.Same(t, in.Data().Buffers()[1], out.Data().Buffers()[1])
	assert.True(t, arrow.TypeEqual(dec128Type(7, 2), out.DataType()))
}

func TestCastDecimalGrowScale(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 2), []int64{12345, -99, 0}, []bool{true, true, false})
	defer in.Release()

	out, err := CastDecimal(mem, in, dec128Type(8, 5), SafeCast)
	require.NoError(t, err)
	defer out.Release()

	got := dec128Values(t, out)
	assert.Equal(t, []int64{12345000, -99000, 0}, got)
	assert.True(t, out.IsNull(2))
}

func TestCastDecimalShrinkScaleRounds(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 3), []int64{99999, 1249, 1250, -1250, -1249}, nil)
	defer in.Release()

	// 99.999 at scale 0 rounds to 100, not 99.
	out, err := CastDecimal(mem, in, dec128Type(5, 0), StrictCast)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []int64{100, 1, 1, -1, -1}, dec128Values(t, out))

	out2, err := CastDecimal(mem, in, dec128Type(5, 2), StrictCast)
	require.NoError(t, err)
	defer out2.Release()
	assert.Equal(t, []int64{10000, 125, 125, -125, -125}, dec128Values(t, out2))
}

func TestCastDecimalRoundTrip(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 1), []int64{12345, -1, 0}, nil)
	defer in.Release()

	grown, err := CastDecimal(mem, in, dec128Type(9, 5), StrictCast)
	require.NoError(t, err)
	defer grown.Release()

	back, err := CastDecimal(mem, grown, dec128Type(5, 1), StrictCast)
	require.NoError(t, err)
	defer back.Release()

	assert.Equal(t, []int64{12345, -1, 0}, dec128Values(t, back))
}

func TestCastDecimalOverflowPolicies(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(6, 2), []int64{123456, 99}, nil)
	defer in.Release()

	out, err := CastDecimal(mem, in, dec128Type(2, 2), SafeCast)
	require.NoError(t, err)
	defer out.Release()
	assert.True(t, out.IsNull(0))
	assert.Equal(t, int64(99), dec128Values(t, out)[1])

	_, err = CastDecimal(mem, in, dec128Type(2, 2), StrictCast)
	require.Error(t, err)
	assert.ErrorIs(t, err, arrow.ErrInvalid)
	assert.Contains(t, err.Error(), "Cannot cast to Decimal128(2, 2). Overflowing on 123456")
}

func TestCastDecimalInvalidTargetType(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 2), []int64{12345}, nil)
	defer in.Release()

	// The buffer-sharing identity path validates the target too.
	_, err := CastDecimal(mem, in, dec128Type(50, 2), SafeCast)
	require.Error(t, err)
	assert.ErrorIs(t, err, arrow.ErrInvalid)
	assert.Contains(t, err.Error(), "precision 50 is out of range [1, 38]")

	for _, to := range []arrow.DataType{
		dec128Type(0, 0),
		dec128Type(5, 39),
		dec128Type(5, -39),
		dec128Type(3, 4),
		dec256Type(77, 0),
	} {
		_, err := CastDecimal(mem, in, to, StrictCast)
		assert.ErrorIs(t, err, arrow.ErrInvalid, to.String())
	}

	fb := array.NewFloat64Builder(mem)
	defer fb.Release()
	fb.Append(1.5)
	floats := fb.NewFloat64Array()
	defer floats.Release()
	_, err = CastFloatToDecimal(mem, floats, dec128Type(0, 0), SafeCast)
	require.Error(t, err)
	assert.ErrorIs(t, err, arrow.ErrInvalid)

	sb := array.NewStringBuilder(mem)
	defer sb.Release()
	sb.Append("1.5")
	strs := sb.NewStringArray()
	defer strs.Release()
	_, err = CastStringToDecimal(mem, strs, dec128Type(40, 2), SafeCast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precision 40 is out of range")
}

func TestCastDecimalNegativeScale(t *testing.T) {
	mem := memory.NewGoAllocator()

	// Growing out of a negative scale multiplies the stored digits.
	in := buildDec128(mem, dec128Type(5, -2), []int64{12, -3}, nil)
	defer in.Release()
	out, err := CastDecimal(mem, in, dec128Type(8, 0), StrictCast)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []int64{1200, -300}, dec128Values(t, out))

	// Shrinking into a negative scale rounds half away from zero.
	src := buildDec128(mem, dec128Type(4, 0), []int64{1250, -1250, 1249}, nil)
	defer src.Release()
	neg, err := CastDecimal(mem, src, dec128Type(2, -2), StrictCast)
	require.NoError(t, err)
	defer neg.Release()
	assert.Equal(t, []int64{13, -13, 12}, dec128Values(t, neg))
	assert.Equal(t, int32(-2), neg.DataType().(*arrow.Decimal128Type).Scale)
}

func TestCastDecimalAcrossWidths(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 2), []int64{12345}, nil)
	defer in.Release()

	wide, err := CastDecimal(mem, in, dec256Type(40, 4), StrictCast)
	require.NoError(t, err)
	defer wide.Release()
	w, ok := wide.(*array.Decimal256)
	require.True(t, ok)
	assert.Equal(t, decimal256.FromI64(1234500), w.Value(0))

	back, err := CastDecimal(mem, wide, dec128Type(5, 2), StrictCast)
	require.NoError(t, err)
	defer back.Release()
	assert.Equal(t, []int64{12345}, dec128Values(t, back))

	// A value too wide for the narrow type nulls out under the safe policy.
	wb := array.NewDecimal256Builder(mem, dec256Type(40, 0))
	defer wb.Release()
	huge := decimal256.FromBigInt(decimalops.Pow10(39))
	wb.Append(huge)
	hugeArr := wb.NewDecimal256Array()
	defer hugeArr.Release()

	narrowed, err := CastDecimal(mem, hugeArr, dec128Type(38, 0), SafeCast)
	require.NoError(t, err)
	defer narrowed.Release()
	assert.True(t, narrowed.IsNull(0))
}

func TestCastDecimalToInteger(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(8, 2), []int64{12345678, -19, 50, 0}, []bool{true, true, true, false})
	defer in.Release()

	out, err := CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int64, StrictCast)
	require.NoError(t, err)
	defer out.Release()
	i64, ok := out.(*array.Int64)
	require.True(t, ok)
	assert.Equal(t, int64(123456), i64.Value(0))
	// Truncation, not flooring: -0.19 becomes 0.
	assert.Equal(t, int64(0), i64.Value(1))
	assert.Equal(t, int64(0), i64.Value(2))
	assert.True(t, i64.IsNull(3))

	narrow, err := CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int8, SafeCast)
	require.NoError(t, err)
	defer narrow.Release()
	assert.True(t, narrow.(*array.Int8).IsNull(0))
	assert.Equal(t, int8(0), narrow.(*array.Int8).Value(1))

	_, err = CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int8, StrictCast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")

	// Unsigned targets reject negatives per value.
	uns, err := CastDecimalToInteger(mem, buildNegOne(mem), arrow.PrimitiveTypes.Uint32, SafeCast)
	require.NoError(t, err)
	defer uns.Release()
	assert.True(t, uns.(*array.Uint32).IsNull(0))
}

func buildNegOne(mem memory.Allocator) *array.Decimal128 {
	return buildDec128(mem, dec128Type(3, 0), []int64{-1}, nil)
}

func TestCastDecimalToIntegerNegativeScale(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(4, -2), []int64{13, -13}, nil)
	defer in.Release()

	out, err := CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int32, StrictCast)
	require.NoError(t, err)
	defer out.Release()
	i32, ok := out.(*array.Int32)
	require.True(t, ok)
	assert.Equal(t, int32(1300), i32.Value(0))
	assert.Equal(t, int32(-1300), i32.Value(1))

	// The multiplied magnitude no longer fits the narrow target.
	small, err := CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int8, SafeCast)
	require.NoError(t, err)
	defer small.Release()
	assert.True(t, small.IsNull(0))
	assert.True(t, small.IsNull(1))

	_, err = CastDecimalToInteger(mem, in, arrow.PrimitiveTypes.Int8, StrictCast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestCastDecimalToFloat(t *testing.T) {
	mem := memory.NewGoAllocator()
	in := buildDec128(mem, dec128Type(5, 2), []int64{12345, -50, 0}, []bool{true, true, false})
	defer in.Release()

	out, err := CastDecimalToFloat(mem, in, arrow.PrimitiveTypes.Float64)
	require.NoError(t, err)
	defer out.Release()
	f64, ok := out.(*array.Float64)
	require.True(t, ok)
	assert.InDelta(t, 123.45, f64.Value(0), 1e-9)
	assert.InDelta(t, -0.5, f64.Value(1), 1e-9)
	assert.True(t, f64.IsNull(2))

	out32, err := CastDecimalToFloat(mem, in, arrow.PrimitiveTypes.Float32)
	require.NoError(t, err)
	defer out32.Release()
	assert.InDelta(t, float32(123.45), out32.(*array.Float32).Value(0), 1e-5)
}

func TestCastFloatToDecimal(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues([]float64{2.5, -2.5, 1.25, 0}, []bool{true, true, true, false})
	in := b.NewFloat64Array()
	defer in.Release()

	out, err := CastFloatToDecimal(mem, in, dec128Type(5, 0), StrictCast)
	require.NoError(t, err)
	defer out.Release()
	assert.Equal(t, []int64{3, -3, 1, 0}, dec128Values(t, out))
	assert.True(t, out.IsNull(3))

	scaled, err := CastFloatToDecimal(mem, in, dec128Type(5, 1), StrictCast)
	require.NoError(t, err)
	defer scaled.Release()
	assert.Equal(t, []int64{25, -25, 13, 0}, dec128Values(t, scaled))
}

func TestCastFloatToDecimalFailures(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewFloat64Builder(mem)
	defer b.Release()
	b.AppendValues([]float64{math.NaN(), math.Inf(1), 1e30, 1.5}, nil)
	in := b.NewFloat64Array()
	defer in.Release()

	out, err := CastFloatToDecimal(mem, in, dec128Type(4, 1), SafeCast)
	require.NoError(t, err)
	defer out.Release()
	assert.True(t, out.IsNull(0))
	assert.True(t, out.IsNull(1))
	assert.True(t, out.IsNull(2))
	assert.Equal(t, int64(15), dec128Values(t, out)[3])

	_, err = CastFloatToDecimal(mem, in, dec128Type(4, 1), StrictCast)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Cannot cast to Decimal128(4, 1)")
}

func TestCastDecimalDictionary(t *testing.T) {
	mem := memory.NewGoAllocator()
	values := buildDec128(mem, dec128Type(5, 2), []int64{12345, -99}, nil)
	defer values.Release()

	idxB := array.NewInt16Builder(mem)
	defer idxB.Release()
	idxB.AppendValues([]int16{1, 0, 1}, nil)
	indices := idxB.NewInt16Array()
	defer indices.Release()

	dictType := &arrow.DictionaryType{IndexType: arrow.PrimitiveTypes.Int16, ValueType: values.DataType()}
	dict := array.NewDictionaryArray(dictType, indices, values)
	defer dict.Release()

	out, err := CastDecimal(mem, dict, dec128Type(8, 4), StrictCast)
	require.NoError(t, err)
	defer out.Release()

	outDict, ok := out.(*array.Dictionary)
	require.True(t, ok)
	assert.Equal(t, []int64{1234500, -9900}, dec128Values(t, outDict.Dictionary()))
	assert.Equal(t, 1, outDict.GetValueIndex(0))
	assert.Equal(t, 0, outDict.GetValueIndex(1))
}

func TestCastDecimalUnsupported(t *testing.T) {
	mem := memory.NewGoAllocator()
	b := array.NewInt64Builder(mem)
	defer b.Release()
	b.Append(1)
	in := b.NewInt64Array()
	defer in.Release()

	_, err := CastDecimal(mem, in, dec128Type(5, 2), SafeCast)
	require.Error(t, err)
	assert.ErrorIs(t, err, arrow.ErrNotImplemented)
}
