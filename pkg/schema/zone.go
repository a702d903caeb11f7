// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"math"
	"time"

	"github.com/ctr/ramses-rf/pkg/store"
)

// ZoneType is the tagged-variant promotion target of §4.8/§8 scenario 6:
// a zone starts Unknown and is promoted at most once, except the single
// exception Electric -> Valve (an electric zone that begins calling for heat
// is reclassified as a valve zone).
type ZoneType int

const (
	ZoneUnknown ZoneType = iota
	ZoneRAD
	ZoneUFH
	ZoneVAL
	ZoneELE
	ZoneMIX
)

func (t ZoneType) String() string {
	switch t {
	case ZoneRAD:
		return "RAD"
	case ZoneUFH:
		return "UFH"
	case ZoneVAL:
		return "VAL"
	case ZoneELE:
		return "ELE"
	case ZoneMIX:
		return "MIX"
	default:
		return "unknown"
	}
}

// Mode is the zone's setpoint-mode aggregate, grounded on ramses_rf/zones.py's
// 2349/ZONE_MODE handling. It is derived from the most recent 2349 payload's
// mode octet (payload[6:8]).
type Mode int

const (
	ModeUnknown Mode = iota
	ModeFollowSchedule
	ModePermanentOverride
	ModeTemporaryOverride
)

func (m Mode) String() string {
	switch m {
	case ModeFollowSchedule:
		return "follow_schedule"
	case ModePermanentOverride:
		return "permanent_override"
	case ModeTemporaryOverride:
		return "temporary_override"
	default:
		return "unknown"
	}
}

func modeFromWire(code int) Mode {
	switch code {
	case 0:
		return ModeFollowSchedule
	case 1:
		return ModePermanentOverride
	case 2, 3, 4:
		return ModeTemporaryOverride
	default:
		return ModeUnknown
	}
}

// Zone is a heating zone owned by a System (§4.8): a stable hex idx,
// an optional sensor, a set of actuators, a promotable type, and a
// per-entity message store.
type Zone struct {
	ID       string
	Idx      string
	System   *System
	zoneType ZoneType
	Sensor   *Device
	Actuators    []*Device
	actuatorByID map[string]*Device
	Store        *store.Store
}

func newZone(sys *System, idx string) (*Zone, error) {
	n, err := parseHexIdx(idx)
	if err != nil || n >= sys.MaxZones {
		return nil, newSchemaError(ErrInvalidZoneIndex, map[string]interface{}{"idx": idx, "max_zones": sys.MaxZones},
			"invalid zone idx %q (max_zones=%d)", idx, sys.MaxZones)
	}
	if _, exists := sys.ZoneByIdx[idx]; exists {
		return nil, newSchemaError(ErrDuplicateEntity, map[string]interface{}{"idx": idx}, "duplicate zone idx %q", idx)
	}
	z := &Zone{
		ID:           sys.Controller.Addr.ID() + "_" + idx,
		Idx:          idx,
		System:       sys,
		actuatorByID: map[string]*Device{},
		Store:        store.New(),
	}
	sys.ZoneByIdx[idx] = z
	sys.Zones = append(sys.Zones, z)
	return z, nil
}

func parseHexIdx(idx string) (int, error) {
	n := 0
	if len(idx) == 0 {
		return 0, &SchemaError{Kind: ErrInvalidZoneIndex, Message: "empty idx"}
	}
	for _, c := range idx {
		n *= 16
		switch {
		case c >= '0' && c <= '9':
			n += int(c - '0')
		case c >= 'A' && c <= 'F':
			n += int(c-'A') + 10
		case c >= 'a' && c <= 'f':
			n += int(c-'a') + 10
		default:
			return 0, &SchemaError{Kind: ErrInvalidZoneIndex, Message: "non-hex idx"}
		}
	}
	return n, nil
}

// Type reports the zone's current promotion state.
func (z *Zone) Type() ZoneType { return z.zoneType }

// Promote applies the §4.8/§8 promotion lattice: Unknown -> {RAD,UFH,VAL,
// ELE,MIX} is allowed once, ELE -> VAL is allowed as the single exception,
// every other transition (including re-promotion to a different type) is
// CorruptState and leaves the zone's type unchanged.
func (z *Zone) Promote(newType ZoneType) error {
	if z.zoneType == newType {
		return nil
	}
	if z.zoneType == ZoneUnknown || (z.zoneType == ZoneELE && newType == ZoneVAL) {
		z.zoneType = newType
		return nil
	}
	return newSchemaError(ErrCorruptState,
		map[string]interface{}{"zone": z.ID, "from": z.zoneType.String(), "to": newType.String()},
		"zone %s changed type: %s to %s", z.ID, z.zoneType, newType)
}

// EavesdropRelay implements the §4.8 0008/0009 eavesdrop rule: a zone of
// unknown type observed calling for heat via a relay demand is promoted
// to ELE. Already-classified zones are left unchanged (the rule only fires
// on Unknown).
func (z *Zone) EavesdropRelay() error {
	if z.zoneType != ZoneUnknown {
		return nil
	}
	return z.Promote(ZoneELE)
}

// Eavesdrop3150 implements the §4.8 3150 eavesdrop rule: the source device
// class of a 3150 sighting determines the promotion target (TRV actuator ->
// RAD, relay/BDR switch -> VAL, UFH controller -> UFH). Any other source
// class is not a promotion signal and is ignored.
func (z *Zone) Eavesdrop3150(src *Device) error {
	switch {
	case src.isTrvActuator():
		return z.Promote(ZoneRAD)
	case src.isBdrSwitch():
		return z.Promote(ZoneVAL)
	case src.isUfhController():
		return z.Promote(ZoneUFH)
	default:
		return nil
	}
}

// AddActuator attaches a device to the zone's actuator set (idempotent on
// device id, matching zones.py's add_actuator dedup).
func (z *Zone) AddActuator(d *Device) {
	if _, exists := z.actuatorByID[d.Addr.ID()]; exists {
		return
	}
	z.actuatorByID[d.Addr.ID()] = d
	z.Actuators = append(z.Actuators, d)
	d.setParent(z)
}

// SetSensor attaches the zone's temperature sensor. A sensor change after
// one is already set is CorruptState.
func (z *Zone) SetSensor(d *Device) error {
	if z.Sensor == d {
		return nil
	}
	if z.Sensor != nil {
		return newSchemaError(ErrCorruptState, map[string]interface{}{"zone": z.ID},
			"zone %s changed sensor: %s to %s", z.ID, z.Sensor.Addr.ID(), d.Addr.ID())
	}
	z.Sensor = d
	d.setParent(z)
	return nil
}

// heatDemandTransform is the piecewise map of §4.8: f(v) = 0 if v <= 0.30;
// else floor((v-t1)*t1/(t2-t1) + t0 + 0.5)/100, where v is the raw valve
// fraction scaled by 100, and (t0,t1,t2) is (0,30,70) for v<=0.70 else
// (30,70,100).
func heatDemandTransform(fraction float64) float64 {
	v := fraction * 100
	if v <= 30 {
		return 0
	}
	var t0, t1, t2 float64
	if v <= 70 {
		t0, t1, t2 = 0, 30, 70
	} else {
		t0, t1, t2 = 30, 70, 100
	}
	return math.Floor((v-t1)*t1/(t2-t1)+t0+0.5) / 100
}

// HeatDemand returns the zone's current heat demand estimate (§4.8), ok is
// false if no contributing signal has been observed yet. The aggregate
// differs by promoted type, grounded on zones.py's per-klass overrides:
// ELE never calls for heat (always 0); VAL uses its relay demand (0008) as
// a proxy rather than the 3150 transform; every other type (including
// Unknown, before promotion) is the maximum of its actuators' 3150 demand,
// transformed.
func (z *Zone) HeatDemand(now time.Time) (float64, bool) {
	switch z.zoneType {
	case ZoneELE:
		return 0, true
	case ZoneVAL:
		return z.relayDemand(now)
	default:
		max := 0.0
		found := false
		for _, a := range z.Actuators {
			if f, ok := a.heatDemandFraction(now); ok {
				found = true
				if f > max {
					max = f
				}
			}
		}
		if !found {
			return 0, false
		}
		return heatDemandTransform(max), true
	}
}

// relayDemand reads the zone's most recent 0008 payload (percent, scaled
// 0-200 like 3150) from the zone's own store rather than a device's, since
// 0008 is addressed to the zone's domain id and controllers won't reply to
// a 3150 for a VAL zone.
func (z *Zone) relayDemand(now time.Time) (float64, bool) {
	msg, ok := z.Store.Latest(now, "0008")
	if !ok || len(msg.Frame.Payload) < 4 {
		return 0, false
	}
	b, ok := decodeHexByte(msg.Frame.Payload[2:4])
	if !ok {
		return 0, false
	}
	return heatDemandTransform(float64(b) / 200.0), true
}

// Mode returns the zone's most recent setpoint mode ([ADDED]).
func (z *Zone) Mode(now time.Time) (Mode, bool) {
	msg, ok := z.Store.Latest(now, "2349")
	if !ok || len(msg.Frame.Payload) < 8 {
		return ModeUnknown, false
	}
	b, ok := decodeHexByte(msg.Frame.Payload[6:8])
	if !ok {
		return ModeUnknown, false
	}
	return modeFromWire(b), true
}

// windowOpenDropC is the sustained-downward-step threshold for the [ADDED]
// open-window heuristic: a temperature drop greater than this between two
// consecutive 30C9 samples, while the zone is not under a permanent
// override (a deliberately lowered setpoint is not an open window), is
// reported as an open window. This mirrors the original's window_open
// estimate derived from a 12B0 sighting, absent a direct 12B0 decode in
// this package.
const windowOpenDropC = 0.2

// WindowOpen reports the [ADDED] open-window estimate given two consecutive
// temperature samples and the zone's mode at the time of the second sample.
func (z *Zone) WindowOpen(prevTempC, currTempC float64, mode Mode) bool {
	if mode == ModePermanentOverride {
		return false
	}
	return prevTempC-currTempC > windowOpenDropC
}
