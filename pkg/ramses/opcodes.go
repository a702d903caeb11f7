// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import "time"

// IndexClass selects how an opcode's context index is derived (§4.3).
type IndexClass int

const (
	IdxNone IndexClass = iota
	IdxSimple
	IdxComplex
	IdxDomain
)

// NeverExpires is the expiry sentinel for opcodes whose messages are retained
// indefinitely (e.g. schema packets).
const NeverExpires time.Duration = -1

// defaultExpiry is used for any opcode with no explicit entry or expiry.
const defaultExpiry = 60 * time.Minute

// domainIDs is the closed set of one-byte logical scopes for CODE_IDX_DOMAIN
// opcodes (§4.3, GLOSSARY "Domain id").
var domainIDs = map[string]bool{"F8": true, "F9": true, "FA": true, "FB": true, "FC": true, "FD": true}

// OpcodeEntry is a single row of the static opcode registry (§4.3): the
// single source of truth for indexing, expiry, and array rules.
type OpcodeEntry struct {
	Opcode       string
	VerbsAllowed []string
	IndexClass   IndexClass
	ArrayUnitLen int // 0 when the opcode is not a member of CODES_WITH_ARRAYS
	OnlyFromCtl  bool
	Expiry       time.Duration // 0 means "use defaultExpiry"
}

// OpcodeTable is the static, immutable opcode registry loaded at startup. It
// is never mutated at runtime (§9, "no runtime patching").
var OpcodeTable = buildOpcodeTable()

func buildOpcodeTable() map[string]OpcodeEntry {
	entries := []OpcodeEntry{
		{Opcode: "0001", IndexClass: IdxDomain},
		{Opcode: "0002", IndexClass: IdxNone},
		{Opcode: "0004", IndexClass: IdxSimple, Expiry: 15 * time.Minute},
		{Opcode: "0005", IndexClass: IdxComplex, Expiry: NeverExpires},
		{Opcode: "0006", IndexClass: IdxNone},
		{Opcode: "0008", IndexClass: IdxDomain},
		{Opcode: "0009", IndexClass: IdxComplex, OnlyFromCtl: true},
		{Opcode: "000A", IndexClass: IdxSimple, ArrayUnitLen: 6, OnlyFromCtl: true},
		{Opcode: "000C", IndexClass: IdxComplex, Expiry: NeverExpires},
		{Opcode: "0016", IndexClass: IdxNone},
		{Opcode: "0100", IndexClass: IdxNone},
		{Opcode: "01D0", IndexClass: IdxNone},
		{Opcode: "01E9", IndexClass: IdxNone},
		{Opcode: "0404", IndexClass: IdxSimple},
		{Opcode: "0418", IndexClass: IdxComplex, Expiry: 3 * time.Second},
		{Opcode: "1030", IndexClass: IdxSimple},
		{Opcode: "1060", IndexClass: IdxSimple},
		{Opcode: "10A0", IndexClass: IdxDomain, Expiry: 15 * time.Minute},
		{Opcode: "10E0", IndexClass: IdxNone, Expiry: NeverExpires},
		{Opcode: "1100", IndexClass: IdxComplex},
		{Opcode: "1F09", IndexClass: IdxNone, OnlyFromCtl: true, Expiry: 300 * time.Second},
		{Opcode: "1FC9", IndexClass: IdxDomain, Expiry: NeverExpires},
		{Opcode: "1FD4", IndexClass: IdxNone},
		{Opcode: "2249", IndexClass: IdxSimple},
		{Opcode: "22C9", IndexClass: IdxSimple, ArrayUnitLen: 6},
		{Opcode: "22D9", IndexClass: IdxNone},
		{Opcode: "2309", IndexClass: IdxSimple, ArrayUnitLen: 3, OnlyFromCtl: true, Expiry: 15 * time.Minute},
		{Opcode: "2349", IndexClass: IdxSimple},
		{Opcode: "2E04", IndexClass: IdxNone, OnlyFromCtl: true},
		{Opcode: "30C9", IndexClass: IdxSimple, ArrayUnitLen: 3, OnlyFromCtl: true, Expiry: 15 * time.Minute},
		{Opcode: "3150", IndexClass: IdxSimple},
		{Opcode: "31D9", IndexClass: IdxDomain},
		{Opcode: "31DA", IndexClass: IdxDomain},
		{Opcode: "3220", IndexClass: IdxComplex, Expiry: NeverExpires},
		{Opcode: "3B00", IndexClass: IdxDomain},
		{Opcode: "3EF0", IndexClass: IdxDomain},
		{Opcode: "3EF1", IndexClass: IdxDomain},
		{Opcode: "7FFF", IndexClass: IdxNone},
	}

	table := make(map[string]OpcodeEntry, len(entries))
	for _, e := range entries {
		if e.VerbsAllowed == nil {
			e.VerbsAllowed = []string{"I", "RQ", "RP", "W"}
		}
		table[e.Opcode] = e
	}
	return table
}

// LookupOpcode returns the registry entry for an opcode, and whether it was
// known. Unknown opcodes are tolerated at the frame layer (§6); callers fall
// back to sensible defaults (IdxSimple, no array, defaultExpiry).
func LookupOpcode(opcode string) (OpcodeEntry, bool) {
	e, ok := OpcodeTable[opcode]
	return e, ok
}

// ArrayUnitLen returns the opcode's CODES_WITH_ARRAYS unit length in bytes,
// or 0 if the opcode is not a member of that set.
func ArrayUnitLen(opcode string) int {
	if e, ok := OpcodeTable[opcode]; ok {
		return e.ArrayUnitLen
	}
	return 0
}

// IsOnlyFromController reports whether the opcode is in CODE_ONLY_FROM_CTL.
func IsOnlyFromController(opcode string) bool {
	e, ok := OpcodeTable[opcode]
	return ok && e.OnlyFromCtl
}

// Expiry returns the effective expiry duration for (opcode, verb). RQ/W
// frames always use the short 3s expiry regardless of the opcode's own table
// entry (§4.7).
func Expiry(opcode string, verb string) time.Duration {
	if verb == VerbReq || verb == VerbWrite {
		return 3 * time.Second
	}
	if e, ok := OpcodeTable[opcode]; ok {
		if e.Expiry != 0 {
			return e.Expiry
		}
	}
	return defaultExpiry
}
