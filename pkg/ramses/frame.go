// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package ramses

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Verb values, §3.
const (
	VerbInfo  = "I"
	VerbReq   = "RQ"
	VerbReply = "RP"
	VerbWrite = "W"
)

// PuzzleOpcode is the reserved "self-test/liveness" opcode (§3).
const PuzzleOpcode = "7FFF"

// frameGrammar matches "rssi verb seq addrs opcode len payload" with an
// optional trailing annotation (§4.2). Address parsing/validation happens
// downstream in ParseAddressSet so this regexp only demands 29 non-space
// characters for the address field.
var frameGrammar = regexp.MustCompile(
	`^(\d{3}) ([ A-Z]{1,2}) (\d{3}|---) (\S.{27}\S) ([0-9A-F]{4}) (\d{3}) ([0-9A-F]*)(.*)$`,
)

// Frame is an immutable record captured at parse time (§3). Derived keys are
// computed lazily and cached.
type Frame struct {
	Dtm      time.Time
	Rssi     string
	Verb     string
	Seq      string
	AddrSet  AddressSet
	Opcode   string
	Len      int
	Payload  string
	Trailing string // preserved "* err", "# comment", "< hint" suffix, starting at its marker

	hasArray *bool
	hasCtl   *bool
	idx      *Key
	ctx      *Key
	hdrTx    *string
}

// Src returns the frame's source address.
func (f *Frame) Src() Address { return f.AddrSet.Src }

// Dst returns the frame's destination address (the null sentinel if none).
func (f *Frame) Dst() Address { return f.AddrSet.Dst }

// HasDst reports whether a destination could be determined.
func (f *Frame) HasDst() bool { return f.AddrSet.HasDst }

// IsEcho reports whether this frame is the radio adapter's loopback of our
// own transmission (RSSI sentinel "000"). Echo frames must not be treated as
// an inbound packet for entity-creation purposes (§3).
func (f *Frame) IsEcho() bool { return f.Rssi == "000" }

// partitionLine splits trailing annotations (`<`, `*`, `#`) from a raw line,
// per §4.2's echo pre-processing.
func partitionLine(line string) (body string, trailing string) {
	line = strings.TrimRight(line, "\r\n")
	line = strings.TrimSpace(line)
	idx := len(line)
	for i, r := range line {
		if r == '<' || r == '*' || r == '#' {
			idx = i
			break
		}
	}
	body = strings.TrimRight(line[:idx], " ")
	trailing = line[idx:]
	return body, trailing
}

// ParseFrame parses a single ASCII-hex wire line captured at dtm. Grammar and
// length failures return a *FrameError; address failures propagate from
// ParseAddressSet (also a *FrameError).
func ParseFrame(dtm time.Time, line string) (*Frame, error) {
	body, trailing := partitionLine(line)

	m := frameGrammar.FindStringSubmatch(body)
	if m == nil {
		return nil, newFrameError(ErrInvalidFrameGrammar, fmt.Sprintf("line does not match frame grammar: %q", body), map[string]interface{}{"line": body})
	}

	rssi := m[1]
	verb := strings.TrimSpace(m[2])
	seq := m[3]
	addrField := m[4]
	opcode := m[5]
	lenStr := m[6]
	payload := m[7]

	if verb != VerbInfo && verb != VerbReq && verb != VerbReply && verb != VerbWrite {
		return nil, newFrameError(ErrInvalidFrameGrammar, fmt.Sprintf("unknown verb %q", verb), map[string]interface{}{"verb": verb})
	}

	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return nil, newFrameError(ErrInvalidFrameLength, fmt.Sprintf("malformed length %q", lenStr), nil)
	}
	if length*2 != len(payload) {
		return nil, newFrameError(ErrInvalidFrameLength, fmt.Sprintf("length %d does not match payload of %d hex chars", length, len(payload)), map[string]interface{}{"len": length, "payload_len": len(payload)})
	}

	addrSet, err := ParseAddressSet(addrField)
	if err != nil {
		return nil, err
	}

	return &Frame{
		Dtm:      dtm,
		Rssi:     rssi,
		Verb:     verb,
		Seq:      seq,
		AddrSet:  addrSet,
		Opcode:   opcode,
		Len:      length,
		Payload:  payload,
		Trailing: trailing,
	}, nil
}

// Command is a frame prepared for transmission (§3).
type Command struct {
	Verb      string
	AddrSet   AddressSet
	Opcode    string
	Payload   string
	wantReply bool
}

// NewCommand builds a Command ready for encoding. Length is derived from the
// payload. A command addressed to its own source is laid out as a
// self-announce (src, null, src).
func NewCommand(verb string, src, dst Address, hasDst bool, opcode, payload string) *Command {
	addrs := [3]Address{src, NullAddress(), NullAddress()}
	if hasDst && src.ID() == dst.ID() {
		addrs[2] = src
	} else if hasDst {
		addrs[1] = dst
	}
	return &Command{
		Verb:    verb,
		Opcode:  opcode,
		Payload: payload,
		AddrSet: AddressSet{Src: src, Dst: dst, HasDst: hasDst, Addrs: addrs},
	}
}

// verbField renders the fixed 2-char verb field used on the wire.
func verbField(verb string) string {
	switch verb {
	case VerbInfo:
		return " I"
	case VerbReq:
		return "RQ"
	case VerbReply:
		return "RP"
	case VerbWrite:
		return " W"
	}
	return verb
}

// ToWire renders the command with fixed field widths, per §4.2.
func (c *Command) ToWire() string {
	addrs := EncodeAddressSet(c.AddrSet)
	return fmt.Sprintf("000 %s --- %s %s %03d %s",
		verbField(c.Verb), addrs, c.Opcode, len(c.Payload)/2, c.Payload)
}

// ToWireBytes renders the command as a newline-terminated line ready for a
// transport Write call.
func (c *Command) ToWireBytes() []byte {
	return []byte(c.ToWire() + "\r\n")
}

// AsFrame renders the command through ParseFrame so the resulting Frame has
// the exact same derived keys (idx/ctx/hdr) a received echo would have; used
// by the Send FSM to compute TxHeader without re-implementing derivation.
func (c *Command) AsFrame(dtm time.Time) (*Frame, error) {
	return ParseFrame(dtm, c.ToWire())
}
