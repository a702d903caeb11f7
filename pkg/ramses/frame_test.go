// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"testing"
	"time"
)

func TestParseFrame_Valid(t *testing.T) {
	now := time.Now()
	line := "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B"
	f, err := ParseFrame(now, line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.Verb != VerbInfo {
		t.Errorf("Verb mismatch: expected %q, got %q", VerbInfo, f.Verb)
	}
	if f.Opcode != "1F09" {
		t.Errorf("Opcode mismatch: got %q", f.Opcode)
	}
	if f.Len != 3 {
		t.Errorf("Len mismatch: expected 3, got %d", f.Len)
	}
	if f.Payload != "FF0A1B" {
		t.Errorf("Payload mismatch: got %q", f.Payload)
	}
	if f.Src().ID() != "01:145038" {
		t.Errorf("Src mismatch: got %q", f.Src().ID())
	}
}

func TestParseFrame_TrailingAnnotations(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		trailing string
	}{
		{"error", "045 RQ --- 18:013393 01:145038 --:------ 000A 002 0000 * checksum error", "* checksum error"},
		{"comment", "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B # idle", "# idle"},
		{"hint", "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B < retry 1", "< retry 1"},
		{"none", "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := ParseFrame(time.Now(), tt.line)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f.Trailing != tt.trailing {
				t.Errorf("Trailing mismatch: expected %q, got %q", tt.trailing, f.Trailing)
			}
		})
	}
}

func TestParseFrame_BadGrammar(t *testing.T) {
	tests := []string{
		"not a frame at all",
		"045 XX --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B",
		"045  I --- 01:145038 --:------ 01:145038 1F09 999 FF0A1B",
	}
	for _, line := range tests {
		t.Run(line, func(t *testing.T) {
			if _, err := ParseFrame(time.Now(), line); err == nil {
				t.Errorf("expected error for %q", line)
			}
		})
	}
}

func TestParseFrame_LengthMismatch(t *testing.T) {
	line := "045  I --- 01:145038 --:------ 01:145038 1F09 004 FF0A1B"
	if _, err := ParseFrame(time.Now(), line); err == nil {
		t.Error("expected length mismatch error")
	}
}

func TestParseFrame_IsEcho(t *testing.T) {
	line := "000  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B"
	f, err := ParseFrame(time.Now(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !f.IsEcho() {
		t.Error("expected IsEcho() to be true for rssi 000")
	}
}

func TestCommand_ToWire_RoundTrip(t *testing.T) {
	src, _ := ParseAddress("18:013393")
	dst, _ := ParseAddress("01:145038")
	cmd := NewCommand(VerbReq, src, dst, true, "000A", "00")
	wire := cmd.ToWire()

	f, err := ParseFrame(time.Now(), wire)
	if err != nil {
		t.Fatalf("round-trip parse failed: %v (wire=%q)", err, wire)
	}
	if f.Verb != VerbReq || f.Opcode != "000A" || f.Payload != "00" {
		t.Errorf("round trip mismatch: %+v", f)
	}
	if f.Src().ID() != src.ID() || f.Dst().ID() != dst.ID() {
		t.Errorf("round trip address mismatch: src=%s dst=%s", f.Src().ID(), f.Dst().ID())
	}
}

func TestCommand_ToWireBytes_HasCRLF(t *testing.T) {
	src, _ := ParseAddress("18:013393")
	cmd := NewCommand(VerbInfo, src, Address{}, false, "1F09", "FF")
	b := cmd.ToWireBytes()
	if len(b) < 2 || string(b[len(b)-2:]) != "\r\n" {
		t.Errorf("expected CRLF terminator, got %q", b)
	}
}

func TestVerbField(t *testing.T) {
	tests := map[string]string{
		VerbInfo:  " I",
		VerbReq:   "RQ",
		VerbReply: "RP",
		VerbWrite: " W",
	}
	for in, want := range tests {
		if got := verbField(in); got != want {
			t.Errorf("verbField(%q) = %q, want %q", in, got, want)
		}
	}
}
