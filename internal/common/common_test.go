package common

import (
	"encoding/hex"
	"testing"
)

// ---------- GenerateRandByteArray ----------

func TestGenerateRandByteArray_SizeAndEntropy(t *testing.T) {
	const size = 32
	a := GenerateRandByteArray(size)
	b := GenerateRandByteArray(size)

	if len(a) != size || len(b) != size {
		t.Fatalf("expected %d bytes, got %d and %d", size, len(a), len(b))
	}
	if string(a) == string(b) {
		t.Fatalf("two random arrays are identical; extremely unlikely")
	}
}

// ---------- MakeRandHexString ----------

func TestMakeRandHexString_LengthAndHex(t *testing.T) {
	const n = 16
	s, err := MakeRandHexString(n)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(s) != n*2 {
		t.Fatalf("expected hex length %d, got %d", n*2, len(s))
	}
	if _, err := hex.DecodeString(s); err != nil {
		t.Fatalf("string is not valid hex: %v", err)
	}
}

// ---------- WipeByteArray ----------

func TestWipeByteArray_Zeroes(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	WipeByteArray(b)
	for i, v := range b {
		if v != 0 {
			t.Fatalf("byte %d not wiped: %d", i, v)
		}
	}
}

func TestWipeByteArray_NilIsNoop(t *testing.T) {
	WipeByteArray(nil) // must not panic
}
