package compute

import (
	"fmt"
	"math"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// DatePart identifies a calendar or clock component extractable from a
// temporal array. Which parts are legal depends on the source type: clock
// parts are meaningless for an interval of months, calendar parts are
// meaningless for a duration.
type DatePart int

const (
	// Quarter of the year, in 1..=4.
	Quarter DatePart = iota
	// Year is the calendar year.
	Year
	// YearISO is the ISO 8601 week-numbering year.
	YearISO
	// Month in the year, in 1..=12.
	Month
	// Week of the year per ISO 8601, in 1..=53.
	Week
	// WeekISO is the same ISO 8601 week number under its explicit name.
	WeekISO
	// Day of the month, in 1..=31.
	Day
	// DayOfWeekSunday0 is the weekday with Sunday as 0.
	DayOfWeekSunday0
	// DayOfWeekMonday0 is the weekday with Monday as 0.
	DayOfWeekMonday0
	// DayOfYear in 1..=366.
	DayOfYear
	// Hour of the day, in 0..=23.
	Hour
	// Minute of the hour, in 0..=59.
	Minute
	// Second of the minute, in 0..=59.
	Second
	// Millisecond of the second.
	Millisecond
	// Microsecond of the second.
	Microsecond
	// Nanosecond of the second.
	Nanosecond
)

var datePartNames = [...]string{
	"Quarter", "Year", "YearISO", "Month", "Week", "WeekISO", "Day",
	"DayOfWeekSunday0", "DayOfWeekMonday0", "DayOfYear",
	"Hour", "Minute", "Second", "Millisecond", "Microsecond", "Nanosecond",
}

func (p DatePart) String() string {
	if p < 0 || int(p) >= len(datePartNames) {
		return fmt.Sprintf("DatePart(%d)", int(p))
	}
	return datePartNames[p]
}

// ParseDatePart resolves a part by its name, as printed by String.
func ParseDatePart(s string) (DatePart, error) {
	for i, name := range datePartNames {
		if name == s {
			return DatePart(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown date part %q", arrow.ErrInvalid, s)
}

const (
	secondsPerDay      = 86_400
	millisPerDay       = secondsPerDay * 1_000
	microsPerDay       = secondsPerDay * 1_000_000
	nanosPerDay        = secondsPerDay * 1_000_000_000
	millisPerSecond    = int32(1_000)
	microsPerSecond    = int64(1_000_000)
	nanosPerSecond     = int64(1_000_000_000)
	millisPerMinute    = int32(60_000)
	nanosPerMinuteI64  = 60 * nanosPerSecond
	secondsPerWeekI64  = int64(secondsPerDay * 7)
	secondsPerDayI64   = int64(secondsPerDay)
)

// ExtractDatePart computes part for every element of arr and returns an
// int32 array with the same length and null positions. Dictionary inputs
// come back dictionary-encoded with the original indices and the extraction
// applied to the dictionary values. Part/type combinations with no defined
// meaning return an error and no array.
func ExtractDatePart(mem memory.Allocator, arr arrow.Array, part DatePart) (arrow.Array, error) {
	switch a := arr.(type) {
	case *array.Date32:
		return date32Part(mem, a, part)
	case *array.Date64:
		return date64Part(mem, a, part)
	case *array.Time32:
		return time32Part(mem, a, part)
	case *array.Time64:
		return time64Part(mem, a, part)
	case *array.Timestamp:
		return timestampPart(mem, a, part)
	case *array.MonthInterval:
		return monthIntervalPart(mem, a, part)
	case *array.DayTimeInterval:
		return dayTimeIntervalPart(mem, a, part)
	case *array.MonthDayNanoInterval:
		return monthDayNanoIntervalPart(mem, a, part)
	case *array.Duration:
		return durationPart(mem, a, part)
	case *array.Dictionary:
		values, err := ExtractDatePart(mem, a.Dictionary(), part)
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
	default:
		return nil, errUnsupportedPart(part, arr.DataType())
	}
}

// mapInt32 walks arr and appends f(i) for every valid element, null for
// input nulls and for elements where f reports not-ok.
func mapInt32(mem memory.Allocator, arr arrow.Array, f func(i int) (int32, bool)) *array.Int32 {
	b := array.NewInt32Builder(mem)
	defer b.Release()
	b.Reserve(arr.Len())
	for i := 0; i < arr.Len(); i++ {
		if arr.IsNull(i) {
			b.AppendNull()
			continue
		}
		if v, ok := f(i); ok {
			b.Append(v)
		} else {
			b.AppendNull()
		}
	}
	return b.NewInt32Array()
}

// zerosLike returns an all-zero int32 array sharing arr's null positions.
func zerosLike(mem memory.Allocator, arr arrow.Array) *array.Int32 {
	return mapInt32(mem, arr, func(int) (int32, bool) { return 0, true })
}

// civilExtract returns the extraction function for parts computed from a
// civil date-time. Every part has a civil meaning, so this never fails.
func civilExtract(part DatePart) func(t time.Time) int32 {
	switch part {
	case Quarter:
		return func(t time.Time) int32 { return (int32(t.Month())-1)/3 + 1 }
	case Year:
		return func(t time.Time) int32 { return int32(t.Year()) }
	case YearISO:
		return func(t time.Time) int32 { y, _ := t.ISOWeek(); return int32(y) }
	case Month:
		return func(t time.Time) int32 { return int32(t.Month()) }
	case Week, WeekISO:
		return func(t time.Time) int32 { _, w := t.ISOWeek(); return int32(w) }
	case Day:
		return func(t time.Time) int32 { return int32(t.Day()) }
	case DayOfWeekSunday0:
		return func(t time.Time) int32 { return int32(t.Weekday()) }
	case DayOfWeekMonday0:
		return func(t time.Time) int32 { return (int32(t.Weekday()) + 6) % 7 }
	case DayOfYear:
		return func(t time.Time) int32 { return int32(t.YearDay()) }
	case Hour:
		return func(t time.Time) int32 { return int32(t.Hour()) }
	case Minute:
		return func(t time.Time) int32 { return int32(t.Minute()) }
	case Second:
		return func(t time.Time) int32 { return int32(t.Second()) }
	case Millisecond:
		return func(t time.Time) int32 { return int32(t.Nanosecond() / 1_000_000) }
	case Microsecond:
		return func(t time.Time) int32 { return int32(t.Nanosecond() / 1_000) }
	case Nanosecond:
		return func(t time.Time) int32 { return int32(t.Nanosecond()) }
	default:
		return func(time.Time) int32 { return 0 }
	}
}

func date32Part(mem memory.Allocator, a *array.Date32, part DatePart) (arrow.Array, error) {
	switch part {
	case Hour, Minute, Second, Millisecond, Microsecond, Nanosecond:
		// Date32 carries no time of day.
		return zerosLike(mem, a), nil
	}
	f := civilExtract(part)
	return mapInt32(mem, a, func(i int) (int32, bool) {
		return f(a.Value(i).ToTime()), true
	}), nil
}

func date64Part(mem memory.Allocator, a *array.Date64, part DatePart) (arrow.Array, error) {
	f := civilExtract(part)
	return mapInt32(mem, a, func(i int) (int32, bool) {
		return f(a.Value(i).ToTime()), true
	}), nil
}

func time32Part(mem memory.Allocator, a *array.Time32, part DatePart) (arrow.Array, error) {
	switch a.DataType().(*arrow.Time32Type).Unit {
	case arrow.Second:
		return timeOfDayPart(mem, a, part, func(i int) int64 { return int64(a.Value(i)) },
			secondsPerDayI64, 1)
	case arrow.Millisecond:
		return timeOfDayPart(mem, a, part, func(i int) int64 { return int64(a.Value(i)) },
			int64(millisPerDay), 1_000)
	}
	return nil, errUnsupportedPart(part, a.DataType())
}

func time64Part(mem memory.Allocator, a *array.Time64, part DatePart) (arrow.Array, error) {
	switch a.DataType().(*arrow.Time64Type).Unit {
	case arrow.Microsecond:
		return timeOfDayPart(mem, a, part, func(i int) int64 { return int64(a.Value(i)) },
			int64(microsPerDay), microsPerSecond)
	case arrow.Nanosecond:
		return timeOfDayPart(mem, a, part, func(i int) int64 { return int64(a.Value(i)) },
			int64(nanosPerDay), nanosPerSecond)
	}
	return nil, errUnsupportedPart(part, a.DataType())
}

// timeOfDayPart extracts clock parts from a time-of-day count. perDay is the
// exclusive upper bound of the valid range, perSecond the number of stored
// units per second. Out-of-range elements become null, calendar parts are a
// structural error.
func timeOfDayPart(mem memory.Allocator, arr arrow.Array, part DatePart, value func(i int) int64, perDay, perSecond int64) (arrow.Array, error) {
	var f func(v int64) int32
	switch part {
	case Hour:
		f = func(v int64) int32 { return int32(v / 3_600 / perSecond) }
	case Minute:
		f = func(v int64) int32 { return int32(v / 60 / perSecond % 60) }
	case Second:
		f = func(v int64) int32 { return int32(v / perSecond % 60) }
	case Millisecond:
		f = func(v int64) int32 {
			return int32(v % perSecond * (nanosPerSecond / perSecond) / 1_000_000)
		}
	case Microsecond:
		f = func(v int64) int32 {
			return int32(v % perSecond * (nanosPerSecond / perSecond) / 1_000)
		}
	case Nanosecond:
		f = func(v int64) int32 {
			return int32(v % perSecond * (nanosPerSecond / perSecond))
		}
	default:
		return nil, errUnsupportedPart(part, arr.DataType())
	}
	return mapInt32(mem, arr, func(i int) (int32, bool) {
		v := value(i)
		if v < 0 || v >= perDay {
			return 0, false
		}
		return f(v), true
	}), nil
}

func timestampPart(mem memory.Allocator, a *array.Timestamp, part DatePart) (arrow.Array, error) {
	dt := a.DataType().(*arrow.TimestampType)
	if dt.Unit == arrow.Second {
		switch part {
		case Millisecond, Microsecond, Nanosecond:
			// Second-resolution timestamps carry nothing below a second.
			return zerosLike(mem, a), nil
		}
	}
	loc, err := resolveTimezone(dt.TimeZone)
	if err != nil {
		return nil, err
	}
	f := civilExtract(part)
	return mapInt32(mem, a, func(i int) (int32, bool) {
		return f(a.Value(i).ToTime(dt.Unit).In(loc)), true
	}), nil
}

func monthIntervalPart(mem memory.Allocator, a *array.MonthInterval, part DatePart) (arrow.Array, error) {
	switch part {
	case Year:
		return mapInt32(mem, a, func(i int) (int32, bool) {
			return int32(a.Value(i)) / 12, true
		}), nil
	case Month:
		return mapInt32(mem, a, func(i int) (int32, bool) {
			return int32(a.Value(i)) % 12, true
		}), nil
	}
	return nil, errUnsupportedPart(part, a.DataType())
}

func dayTimeIntervalPart(mem memory.Allocator, a *array.DayTimeInterval, part DatePart) (arrow.Array, error) {
	var f func(v arrow.DayTimeInterval) int32
	switch part {
	case Week:
		f = func(v arrow.DayTimeInterval) int32 { return v.Days / 7 }
	case Day:
		f = func(v arrow.DayTimeInterval) int32 { return v.Days }
	case Hour:
		f = func(v arrow.DayTimeInterval) int32 { return v.Milliseconds / (60 * 60 * 1_000) }
	case Minute:
		f = func(v arrow.DayTimeInterval) int32 { return v.Milliseconds / millisPerMinute % 60 }
	case Second:
		f = func(v arrow.DayTimeInterval) int32 { return v.Milliseconds / millisPerSecond % 60 }
	case Millisecond:
		f = func(v arrow.DayTimeInterval) int32 { return v.Milliseconds % millisPerMinute }
	case Microsecond:
		f = func(v arrow.DayTimeInterval) int32 {
			return mulNarrowToI32(int64(v.Milliseconds%millisPerMinute), 1_000)
		}
	case Nanosecond:
		f = func(v arrow.DayTimeInterval) int32 {
			return mulNarrowToI32(int64(v.Milliseconds%millisPerMinute), 1_000_000)
		}
	default:
		return nil, errUnsupportedPart(part, a.DataType())
	}
	return mapInt32(mem, a, func(i int) (int32, bool) { return f(a.Value(i)), true }), nil
}

func monthDayNanoIntervalPart(mem memory.Allocator, a *array.MonthDayNanoInterval, part DatePart) (arrow.Array, error) {
	var f func(v arrow.MonthDayNanoInterval) int32
	switch part {
	case Year:
		f = func(v arrow.MonthDayNanoInterval) int32 { return v.Months / 12 }
	case Month:
		f = func(v arrow.MonthDayNanoInterval) int32 { return v.Months % 12 }
	case Week:
		f = func(v arrow.MonthDayNanoInterval) int32 { return v.Days / 7 }
	case Day:
		f = func(v arrow.MonthDayNanoInterval) int32 { return v.Days }
	case Hour:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds / (60 * nanosPerMinuteI64))
		}
	case Minute:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds / nanosPerMinuteI64 % 60)
		}
	case Second:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds / nanosPerSecond % 60)
		}
	case Millisecond:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds % nanosPerMinuteI64 / 1_000_000)
		}
	case Microsecond:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds % nanosPerMinuteI64 / 1_000)
		}
	case Nanosecond:
		f = func(v arrow.MonthDayNanoInterval) int32 {
			return narrowToI32(v.Nanoseconds % nanosPerMinuteI64)
		}
	default:
		return nil, errUnsupportedPart(part, a.DataType())
	}
	return mapInt32(mem, a, func(i int) (int32, bool) { return f(a.Value(i)), true }), nil
}

func durationPart(mem memory.Allocator, a *array.Duration, part DatePart) (arrow.Array, error) {
	// perSecond is the number of stored units in one second.
	var perSecond int64
	switch a.DataType().(*arrow.DurationType).Unit {
	case arrow.Second:
		perSecond = 1
	case arrow.Millisecond:
		perSecond = 1_000
	case arrow.Microsecond:
		perSecond = microsPerSecond
	case arrow.Nanosecond:
		perSecond = nanosPerSecond
	default:
		return nil, errUnsupportedPart(part, a.DataType())
	}

	var f func(d int64) int32
	switch part {
	case Week:
		f = func(d int64) int32 { return narrowToI32(d / (perSecond * secondsPerWeekI64)) }
	case Day:
		f = func(d int64) int32 { return narrowToI32(d / (perSecond * secondsPerDayI64)) }
	case Hour:
		f = func(d int64) int32 { return narrowToI32(d / (perSecond * 3_600)) }
	case Minute:
		f = func(d int64) int32 { return narrowToI32(d / (perSecond * 60)) }
	case Second:
		f = func(d int64) int32 { return narrowToI32(d / perSecond) }
	case Millisecond:
		f = durationSubSecond(perSecond, 1_000)
	case Microsecond:
		f = durationSubSecond(perSecond, microsPerSecond)
	case Nanosecond:
		f = durationSubSecond(perSecond, nanosPerSecond)
	default:
		return nil, errUnsupportedPart(part, a.DataType())
	}
	return mapInt32(mem, a, func(i int) (int32, bool) {
		return f(int64(a.Value(i))), true
	}), nil
}

// durationSubSecond converts a whole duration count between unit resolutions:
// multiply when the target is finer than the stored unit, divide when it is
// coarser.
func durationSubSecond(perSecond, targetPerSecond int64) func(d int64) int32 {
	if targetPerSecond >= perSecond {
		factor := targetPerSecond / perSecond
		return func(d int64) int32 { return mulNarrowToI32(d, factor) }
	}
	div := perSecond / targetPerSecond
	return func(d int64) int32 { return narrowToI32(d / div) }
}

// narrowToI32 narrows to 32 bits, yielding 0 when the value does not fit.
// The zero fallback mirrors the historical behavior of these kernels and is
// part of the contract.
func narrowToI32(v int64) int32 {
	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0
	}
	return int32(v)
}

// mulNarrowToI32 is narrowToI32 over v*m with the multiply itself checked.
// m must be positive.
func mulNarrowToI32(v, m int64) int32 {
	if v > math.MaxInt64/m || v < math.MinInt64/m {
		return 0
	}
	return narrowToI32(v * m)
}
