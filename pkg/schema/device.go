// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"time"

	"github.com/ctr/ramses-rf/pkg/ramses"
	"github.com/ctr/ramses-rf/pkg/store"
)

// Class is a device's class slug, taken from the closed registry in
// ramses.DeviceTypeSlugs.
type Class string

const (
	ClassCTL     Class = "CTL"
	ClassUFC     Class = "UFC"
	ClassSTA     Class = "STA"
	ClassTRV     Class = "TRV"
	ClassDHW     Class = "DHW"
	ClassOTB     Class = "OTB"
	ClassTHM     Class = "THM"
	ClassBDR     Class = "BDR"
	ClassOUT     Class = "OUT"
	ClassHGI     Class = "HGI"
	ClassPRG     Class = "PRG"
	ClassRFG     Class = "RFG"
	ClassHUM     Class = "HUM"
	ClassNUL     Class = "NUL"
	ClassUnknown Class = ""
)

// classOf maps a raw two-digit device type to its Class, defaulting to
// ClassUnknown for types outside the closed registry (§6: unknown types are
// tolerated and simply produce no entity effect beyond Device creation).
func classOf(devType string) Class {
	return Class(ramses.DeviceTypeSlug(devType))
}

// Device is a leaf entity in the graph: a controller, a relay, a sensor, an
// actuator, or a gateway/HGI. A Device's parent is either a System (the
// controller itself, or any device first seen exchanging frames with it), a
// Zone or DhwZone (for an actuator or sensor), or nil (no parent assigned
// yet, per the §4.8 construction rules).
type Device struct {
	Addr   ramses.Address
	Class  Class
	Parent interface{} // *System, *Zone, *DhwZone, or nil
	Store  *store.Store
}

func newDevice(addr ramses.Address) *Device {
	return &Device{Addr: addr, Class: classOf(addr.Type()), Store: store.New()}
}

func (d *Device) setParent(parent interface{}) {
	if d.Parent == nil {
		d.Parent = parent
	}
}

// isTrvActuator, isBdrSwitch and isUfhController identify the three device
// classes that §4.8's 3150 eavesdrop rule promotes a zone by: a TRV reports
// its own demand (RAD), a relay drives a motorised valve (VAL), and a UFH
// controller aggregates underfloor loops (UFH).
func (d *Device) isTrvActuator() bool   { return d.Class == ClassTRV }
func (d *Device) isBdrSwitch() bool     { return d.Class == ClassBDR }
func (d *Device) isUfhController() bool { return d.Class == ClassUFC }

// heatDemandFraction reads the device's most recent 3150 payload and returns
// its raw demand as a fraction in [0, 1]. The wire byte at payload[2:4] is a
// valve position scaled 0-200 (§4.8's "scaled by 100 from the raw valve
// position" refers to this value after it has already been halved into a
// 0-1 fraction here).
func (d *Device) heatDemandFraction(now time.Time) (float64, bool) {
	msg, ok := d.Store.Latest(now, "3150")
	if !ok || len(msg.Frame.Payload) < 4 {
		return 0, false
	}
	b, ok := decodeHexByte(msg.Frame.Payload[2:4])
	if !ok {
		return 0, false
	}
	return float64(b) / 200.0, true
}

func decodeHexByte(s string) (int, bool) {
	if len(s) != 2 {
		return 0, false
	}
	n := 0
	for _, c := range s {
		n *= 16
		switch {
		case c >= '0' && c <= '9':
			n += int(c - '0')
		case c >= 'A' && c <= 'F':
			n += int(c-'A') + 10
		case c >= 'a' && c <= 'f':
			n += int(c-'a') + 10
		default:
			return 0, false
		}
	}
	return n, true
}
