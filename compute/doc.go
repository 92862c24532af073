// Package compute implements columnar compute kernels over Arrow arrays:
// decimal rescaling casts between the 128-bit and 256-bit decimal types,
// conversions between decimals and integers, floats and strings, and
// calendar part extraction from the date, time, timestamp, interval and
// duration types.
//
// All kernels are null-preserving: an input null is an output null at the
// same position. Dictionary-encoded inputs are handled by computing over the
// dictionary values and re-wrapping the result with the original indices.
package compute
