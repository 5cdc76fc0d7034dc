package sensoridx

import (
	"coroinfer/constants"
	"coroinfer/utils"
)

// EntityID is the opaque 128-bit identifier of one entity.
// Ordering is byte-wise lexicographic.
type EntityID [constants.IDSize]byte

// Compare returns -1, 0 or +1. Two big-endian word loads order the same way
// as a byte-wise comparison.
//
//go:nosplit
//go:inline
func (a *EntityID) Compare(b *EntityID) int {
	ah, bh := utils.LoadBE64(a[:8]), utils.LoadBE64(b[:8])
	if ah != bh {
		if ah < bh {
			return -1
		}
		return 1
	}
	al, bl := utils.LoadBE64(a[8:]), utils.LoadBE64(b[8:])
	switch {
	case al < bl:
		return -1
	case al > bl:
		return 1
	}
	return 0
}

// Less reports a < b.
//
//go:nosplit
//go:inline
func (a *EntityID) Less(b *EntityID) bool {
	return a.Compare(b) < 0
}

// String renders the canonical 8-4-4-4-12 hex form.
func (a EntityID) String() string {
	const hex = "0123456789abcdef"
	var buf [36]byte
	j := 0
	for i, c := range a {
		if i == 4 || i == 6 || i == 8 || i == 10 {
			buf[j] = '-'
			j++
		}
		buf[j] = hex[c>>4]
		buf[j+1] = hex[c&0x0f]
		j += 2
	}
	return string(buf[:])
}
