package utils

import (
	"os"
	"strconv"
)

///////////////////////////////////////////////////////////////////////////////
// Integer Formatting — no fmt on cold paths either
///////////////////////////////////////////////////////////////////////////////

// Itoa formats a signed integer in base 10.
// Small non-negative values use a stack buffer; the result string is the only allocation.
//
//go:nosplit
//go:inline
func Itoa(n int) string {
	if n < 0 {
		return "-" + Utoa(uint64(-n))
	}
	return Utoa(uint64(n))
}

// Utoa formats an unsigned integer in base 10.
//
//go:nosplit
//go:inline
func Utoa(n uint64) string {
	var buf [20]byte
	i := len(buf)
	for n >= 10 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	i--
	buf[i] = byte('0' + n)
	return string(buf[i:])
}

// Ftoa formats a float with the shortest representation that round-trips.
// Cold path only: report lines and diagnostics.
func Ftoa(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

///////////////////////////////////////////////////////////////////////////////
// Output — direct fd writes for cold-path diagnostics
///////////////////////////////////////////////////////////////////////////////

// PrintWarning writes msg to stderr without buffering.
//
//go:nosplit
//go:inline
func PrintWarning(msg string) {
	_, _ = os.Stderr.WriteString(msg)
}

///////////////////////////////////////////////////////////////////////////////
// Fast Loaders — Big-Endian 64-Bit Reads
///////////////////////////////////////////////////////////////////////////////

// LoadBE64 performs a manual big-endian 64-bit read, avoiding dependency on binary.BigEndian.
// Big-endian order makes integer comparison of two loads match byte-wise lexicographic order.
//
//go:nosplit
//go:inline
func LoadBE64(b []byte) uint64 {
	_ = b[7] // bounds check hint
	return uint64(b[0])<<56 | uint64(b[1])<<48 | uint64(b[2])<<40 |
		uint64(b[3])<<32 | uint64(b[4])<<24 | uint64(b[5])<<16 |
		uint64(b[6])<<8 | uint64(b[7])
}
