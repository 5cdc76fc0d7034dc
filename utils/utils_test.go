package utils

import (
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"testing"
)

// ============================================================================
// INTEGER FORMATTING TESTS
// ============================================================================

func TestItoa(t *testing.T) {
	tests := []struct {
		name     string
		input    int
		expected string
	}{
		{name: "Zero", input: 0, expected: "0"},
		{name: "Single digit", input: 5, expected: "5"},
		{name: "Two digits", input: 42, expected: "42"},
		{name: "Negative", input: -17, expected: "-17"},
		{name: "Large number", input: 987654321, expected: "987654321"},
		{name: "Maximum int32", input: 2147483647, expected: "2147483647"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Itoa(tt.input)
			if result != tt.expected {
				t.Errorf("Itoa(%d) = %q, expected %q", tt.input, result, tt.expected)
			}
			if std := strconv.Itoa(tt.input); result != std {
				t.Errorf("Itoa(%d) = %q, strconv.Itoa = %q", tt.input, result, std)
			}
		})
	}
}

func TestItoa_EdgeCases(t *testing.T) {
	testCases := []int{1, 9, 10, 99, 100, 999, 1000, 9999, 10000, -1, -10}

	for _, n := range testCases {
		t.Run(fmt.Sprintf("boundary_%d", n), func(t *testing.T) {
			if got, want := Itoa(n), strconv.Itoa(n); got != want {
				t.Errorf("Itoa(%d) = %q, expected %q", n, got, want)
			}
		})
	}
}

func TestUtoaMax(t *testing.T) {
	if got, want := Utoa(math.MaxUint64), strconv.FormatUint(math.MaxUint64, 10); got != want {
		t.Fatalf("Utoa(max) = %q, want %q", got, want)
	}
}

func TestItoa_Allocations(t *testing.T) {
	allocs := testing.AllocsPerRun(1000, func() {
		_ = Itoa(12345)
	})

	if allocs > 1 { // one allocation for the result string
		t.Errorf("Itoa() should minimize allocations: %f allocs/op", allocs)
	}
}

func TestFtoa(t *testing.T) {
	if got := Ftoa(1.5); got != "1.5" {
		t.Fatalf("Ftoa(1.5) = %q", got)
	}
}

// ============================================================================
// LOADER TESTS
// ============================================================================

func TestLoadBE64MatchesBinary(t *testing.T) {
	b := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef, 0xff}
	if got, want := LoadBE64(b), binary.BigEndian.Uint64(b); got != want {
		t.Fatalf("LoadBE64 = %#x, want %#x", got, want)
	}
}

func TestLoadBE64PreservesOrder(t *testing.T) {
	lo := []byte{0x00, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff}
	hi := []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00}
	if LoadBE64(lo) >= LoadBE64(hi) {
		t.Fatal("big-endian load must preserve lexicographic order")
	}
}

func TestPrintWarning(t *testing.T) {
	// stderr is not captured; the call must simply not panic
	PrintWarning("")
	PrintWarning("utils test warning\n")
}
