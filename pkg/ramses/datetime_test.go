// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"testing"
	"time"
)

func TestWireDatetime_RoundTrip(t *testing.T) {
	want := time.Date(2026, time.March, 14, 9, 41, 22, 0, time.UTC)
	encoded := EncodeWireDatetime(want)
	got, err := ParseWireDatetime(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !got.Equal(want) {
		t.Errorf("round trip mismatch: expected %v, got %v", want, got)
	}
}

func TestParseWireDatetime_SixByteForm(t *testing.T) {
	b := []byte{22, 41, 9, 14, 3, 26}
	got, err := ParseWireDatetime(b)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2026, time.March, 14, 9, 41, 22, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestParseWireDatetime_WrongLength(t *testing.T) {
	if _, err := ParseWireDatetime([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for malformed length")
	}
}

func TestParseWireDatetime_OutOfRange(t *testing.T) {
	b := []byte{61, 41, 9, 14, 3, 26} // second=61 invalid
	if _, err := ParseWireDatetime(b); err == nil {
		t.Error("expected error for out-of-range second")
	}
}
