// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import "strings"

// Key is the `idx`/`ctx` union of §3 ("two-hex-character context ... or
// false when semantically none"): either a short string slice of the
// payload, or a bare boolean when the frame carries no string-valued
// context (the "false" sentinel, or — for opcode 0005 — the has_array flag
// itself).
type Key struct {
	IsString bool
	Str      string
	Bool     bool
}

// noKey is the "false" sentinel: a Key that is semantically absent.
func noKey() Key { return Key{} }

func strKey(s string) Key { return Key{IsString: true, Str: s} }

func boolKey(b bool) Key { return Key{Bool: b} }

// HasArray reports whether the frame's payload is an array per §4.4: opcode
// 1FC9 is array-like on every non-RQ verb; otherwise the opcode must be in
// CODES_WITH_ARRAYS, the verb must be I, the payload must be a plural
// multiple of the unit length, and the producer must satisfy the controller
// and remote-thermostat constraints.
func (f *Frame) HasArray() bool {
	if f.hasArray != nil {
		return *f.hasArray
	}
	v := f.computeHasArray()
	f.hasArray = &v
	return v
}

func (f *Frame) computeHasArray() bool {
	if f.Opcode == "1FC9" {
		return f.Verb != VerbReq
	}

	unit := ArrayUnitLen(f.Opcode)
	if f.Verb != VerbInfo || unit == 0 {
		return false
	}

	bytes := len(f.Payload) / 2
	if bytes == unit {
		// A single element is indistinguishable from a scalar frame; accepted
		// false-negative per §4.4.
		return false
	}
	if bytes%unit != 0 {
		return false
	}

	producerIsCtl := IsControllerType(f.Src().Type()) || (f.HasDst() && f.Src().ID() == f.Dst().ID())
	if !producerIsCtl {
		return false
	}
	if t := f.Src().Type(); t == "12" || t == "22" {
		if f.HasDst() {
			return false
		}
	}
	return true
}

// HasCtl reports whether the frame involves a controller, per §4.4.
func (f *Frame) HasCtl() bool {
	if f.hasCtl != nil {
		return *f.hasCtl
	}
	v := f.computeHasCtl()
	f.hasCtl = &v
	return v
}

func (f *Frame) computeHasCtl() bool {
	srcType := f.Src().Type()
	if IsControllerType(srcType) {
		return true
	}
	if f.HasDst() && IsControllerType(f.Dst().Type()) {
		return true
	}
	if f.HasDst() && f.Src().ID() == f.Dst().ID() {
		if IsOnlyFromController(f.Opcode) || f.Opcode == "31D9" || f.Opcode == "31DA" {
			return true
		}
		if f.Opcode == "3B00" && strings.HasPrefix(f.Payload, "FC") {
			return true
		}
	}
	if !f.HasDst() && srcType != "10" {
		return true
	}
	if f.HasDst() {
		if t := f.Dst().Type(); t == "12" || t == "22" {
			return true
		}
	}
	return false
}

// idxKey computes the idx() union of §4.4.
func (f *Frame) idxKey() Key {
	entry, known := LookupOpcode(f.Opcode)
	class := IdxSimple
	if known {
		class = entry.IndexClass
	}

	switch class {
	case IdxNone:
		return strKey("00")
	case IdxComplex:
		return f.complexIdxKey()
	case IdxDomain:
		return f.domainIdxKey()
	default: // IdxSimple
		return f.simpleIdxKey()
	}
}

func (f *Frame) simpleIdxKey() Key {
	s, ok := slice(f.Payload, 0, 2)
	if !ok {
		return noKey()
	}
	return strKey(s)
}

func (f *Frame) domainIdxKey() Key {
	s, ok := slice(f.Payload, 0, 2)
	if !ok || !domainIDs[s] {
		return noKey()
	}
	return strKey(s)
}

// complexIdxKey holds the CODE_IDX_COMPLEX per-opcode rules of §4.4.
func (f *Frame) complexIdxKey() Key {
	switch f.Opcode {
	case "0005":
		return boolKey(f.HasArray())
	case "0009":
		if f.Src().Type() == "10" {
			return noKey()
		}
		return f.simpleIdxKey()
	case "000C":
		domain, ok := slice(f.Payload, 2, 4)
		if !ok {
			return f.simpleIdxKey()
		}
		switch domain {
		case "0D", "0E":
			return strKey("FA")
		case "0F":
			return strKey("FC")
		default:
			return f.simpleIdxKey()
		}
	case "0418":
		s, ok := slice(f.Payload, 4, 6)
		if !ok {
			return noKey()
		}
		return strKey(s)
	case "1100":
		s, ok := slice(f.Payload, 0, 2)
		if !ok || !strings.HasPrefix(s, "F") {
			return noKey()
		}
		return strKey(s)
	case "3220":
		s, ok := slice(f.Payload, 4, 6)
		if !ok {
			return noKey()
		}
		return strKey(s)
	default:
		return f.simpleIdxKey()
	}
}

// Idx returns the frame's raw context index as the Union[str, bool] of §3.
func (f *Frame) Idx() Key {
	if f.idx != nil {
		return *f.idx
	}
	k := f.idxKey()
	f.idx = &k
	return k
}

// Ctx returns the frame's store-sharding context key (§4.4): an extension of
// Idx for the handful of opcodes whose context is wider than their index.
func (f *Frame) Ctx() Key {
	if f.ctx != nil {
		return *f.ctx
	}
	k := f.ctxKey()
	f.ctx = &k
	return k
}

func (f *Frame) ctxKey() Key {
	switch f.Opcode {
	case "0005", "000C":
		s, ok := slice(f.Payload, 0, 4)
		if !ok {
			return noKey()
		}
		return strKey(s)
	case "0404":
		a, okA := slice(f.Payload, 0, 2)
		b, okB := slice(f.Payload, 10, 12)
		if !okA || !okB {
			return noKey()
		}
		return strKey(a + b)
	default:
		return f.Idx()
	}
}

// addrForHdr is the `addr` term of §4.4's hdr formula: dst when the frame
// originates from a gateway device (type 18), else src.
func (f *Frame) addrForHdr() Address {
	if f.Src().Type() == "18" && f.HasDst() {
		return f.Dst()
	}
	return f.Src()
}

// Hdr returns the frame's own QoS fingerprint: "opcode|verb|addr[|ctx]".
func (f *Frame) Hdr() string {
	if f.hdrTx != nil {
		return *f.hdrTx
	}
	h := f.buildHdr(f.Verb)
	f.hdrTx = &h
	return h
}

func (f *Frame) buildHdr(verb string) string {
	addr := f.addrForHdr()
	h := f.Opcode + "|" + verb + "|" + addr.ID()
	if ctx := f.Ctx(); ctx.IsString {
		h += "|" + ctx.Str
	}
	return h
}

// RxHdr returns the header a sender of this frame should expect on its
// reply, per §4.4's `hdr(frame, rx=true)`: absent for I/RP verbs and for
// self-directed frames, otherwise the verb is flipped (RQ→RP, W→I) with the
// same addr/ctx terms.
//
// The 1FC9 binding handshake's own header rules are out of scope (§9 Open
// Questions); RxHdr always reports ok=false for 1FC9, since only send-side
// pass-through is implemented for binding.
func (f *Frame) RxHdr() (string, bool) {
	if f.Opcode == "1FC9" {
		return "", false
	}
	if f.Verb == VerbInfo || f.Verb == VerbReply {
		return "", false
	}
	if f.HasDst() && f.Src().ID() == f.Dst().ID() {
		return "", false
	}
	flipped := f.Verb
	switch f.Verb {
	case VerbReq:
		flipped = VerbReply
	case VerbWrite:
		flipped = VerbInfo
	}
	return f.buildHdr(flipped), true
}

func slice(s string, lo, hi int) (string, bool) {
	if lo < 0 || hi > len(s) || lo >= hi {
		return "", false
	}
	return s[lo:hi], true
}
