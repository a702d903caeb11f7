// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"testing"
	"time"
)

func TestExpiry_RQAndWAlwaysShort(t *testing.T) {
	tests := []string{"0005", "000A", "10E0", "3220"}
	for _, opcode := range tests {
		if got := Expiry(opcode, "RQ"); got != 3*time.Second {
			t.Errorf("Expiry(%q, RQ) = %v, want 3s", opcode, got)
		}
		if got := Expiry(opcode, "W"); got != 3*time.Second {
			t.Errorf("Expiry(%q, W) = %v, want 3s", opcode, got)
		}
	}
}

func TestExpiry_NeverExpireOpcodes(t *testing.T) {
	tests := []string{"0005", "000C", "10E0", "1FC9", "3220"}
	for _, opcode := range tests {
		if got := Expiry(opcode, "I"); got != NeverExpires {
			t.Errorf("Expiry(%q, I) = %v, want NeverExpires", opcode, got)
		}
	}
}

func TestExpiry_ArrayOpcodeDefaults(t *testing.T) {
	if got := Expiry("2309", "I"); got != 15*time.Minute {
		t.Errorf("Expiry(2309, I) = %v, want 15m", got)
	}
	if got := Expiry("30C9", "I"); got != 15*time.Minute {
		t.Errorf("Expiry(30C9, I) = %v, want 15m", got)
	}
}

func TestExpiry_FaultLogShort(t *testing.T) {
	if got := Expiry("0418", "I"); got != 3*time.Second {
		t.Errorf("Expiry(0418, I) = %v, want 3s", got)
	}
}

func TestExpiry_UnknownOpcodeFallsBackToDefault(t *testing.T) {
	if got := Expiry("FFFF", "I"); got != defaultExpiry {
		t.Errorf("Expiry(FFFF, I) = %v, want defaultExpiry", got)
	}
}

func TestIsOnlyFromController(t *testing.T) {
	if !IsOnlyFromController("2309") {
		t.Error("expected 2309 to be CODE_ONLY_FROM_CTL")
	}
	if IsOnlyFromController("3150") {
		t.Error("expected 3150 to not be CODE_ONLY_FROM_CTL")
	}
}

func TestArrayUnitLen(t *testing.T) {
	tests := map[string]int{
		"000A": 6,
		"2309": 3,
		"30C9": 3,
		"22C9": 6,
		"1F09": 0,
	}
	for opcode, want := range tests {
		if got := ArrayUnitLen(opcode); got != want {
			t.Errorf("ArrayUnitLen(%q) = %d, want %d", opcode, got, want)
		}
	}
}

func TestLookupOpcode_UnknownIsTolerated(t *testing.T) {
	_, ok := LookupOpcode("FFFF")
	if ok {
		t.Error("expected unknown opcode to report ok=false")
	}
}
