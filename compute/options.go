package compute

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow"
)

// CastOptions controls how cast kernels react to per-value failures such as
// numeric overflow.
type CastOptions struct {
	// Safe turns per-value failures into output nulls. When false the first
	// failing value aborts the cast with an error and no output is produced.
	Safe bool
}

// SafeCast nulls out values that cannot be represented in the target type.
var SafeCast = CastOptions{Safe: true}

// StrictCast fails the whole cast on the first unrepresentable value.
var StrictCast = CastOptions{Safe: false}

func errUnsupportedPart(part DatePart, dt arrow.DataType) error {
	return fmt.Errorf("%w: %s does not support: %s", arrow.ErrInvalid, part, dt)
}

func errDecimalOverflow(prefix string, precision, scale int32, value string) error {
	return fmt.Errorf("%w: Cannot cast to %s(%d, %d). Overflowing on %s",
		arrow.ErrInvalid, prefix, precision, scale, value)
}

func errInvalidTimezone(tz string) error {
	return fmt.Errorf("%w: Invalid timezone %q", arrow.ErrInvalid, tz)
}
