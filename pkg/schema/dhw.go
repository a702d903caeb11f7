// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"time"

	"github.com/ctr/ramses-rf/pkg/store"
)

// DhwIdx is the fixed context key for a DHW zone's frames ("HW" rather than
// a hex zone index), grounded on zones.py's DhwZone(zone_idx="HW") default.
const DhwIdx = "HW"

// DhwZone is the stored hot-water subsystem of a System: at most one per
// System (§1), with a fixed idx, an optional sensor (domain FA), a DHW
// valve (domain FA) and a heating valve (domain F9).
type DhwZone struct {
	ID        string
	System    *System
	Sensor    *Device
	DhwValve  *Device
	HtgValve  *Device
	Store     *store.Store
}

func newDhwZone(sys *System) (*DhwZone, error) {
	if sys.Dhw != nil {
		return nil, newSchemaError(ErrDuplicateEntity, map[string]interface{}{"system": sys.Controller.Addr.ID()}, "duplicate DHW for system %s", sys.Controller.Addr.ID())
	}
	d := &DhwZone{ID: sys.Controller.Addr.ID() + "_" + DhwIdx, System: sys, Store: store.New()}
	sys.Dhw = d
	return d, nil
}

// SetSensor attaches the DHW sensor (domain FA), rejecting a change once set.
func (d *DhwZone) SetSensor(dev *Device) error {
	if d.Sensor == dev {
		return nil
	}
	if d.Sensor != nil {
		return newSchemaError(ErrCorruptState, map[string]interface{}{"dhw": d.ID}, "DHW %s changed sensor: %s to %s", d.ID, d.Sensor.Addr.ID(), dev.Addr.ID())
	}
	d.Sensor = dev
	dev.setParent(d)
	return nil
}

// SetDhwValve attaches the DHW (domain FA) relay valve.
func (d *DhwZone) SetDhwValve(dev *Device) error {
	if d.DhwValve == dev {
		return nil
	}
	if d.DhwValve != nil {
		return newSchemaError(ErrCorruptState, map[string]interface{}{"dhw": d.ID}, "DHW %s changed dhw_valve: %s to %s", d.ID, d.DhwValve.Addr.ID(), dev.Addr.ID())
	}
	d.DhwValve = dev
	dev.setParent(d)
	return nil
}

// SetHtgValve attaches the heating (domain F9) relay valve.
func (d *DhwZone) SetHtgValve(dev *Device) error {
	if d.HtgValve == dev {
		return nil
	}
	if d.HtgValve != nil {
		return newSchemaError(ErrCorruptState, map[string]interface{}{"dhw": d.ID}, "DHW %s changed dhw_valve_htg: %s to %s", d.ID, d.HtgValve.Addr.ID(), dev.Addr.ID())
	}
	d.HtgValve = dev
	dev.setParent(d)
	return nil
}

// Mode returns the DHW's most recent setpoint mode (1F41 payload[2:4],
// grounded on zones.py's DhwZone.mode / set_dhw_mode).
func (d *DhwZone) Mode(now time.Time) (Mode, bool) {
	msg, ok := d.Store.Latest(now, "1F41")
	if !ok || len(msg.Frame.Payload) < 4 {
		return ModeUnknown, false
	}
	b, ok := decodeHexByte(msg.Frame.Payload[2:4])
	if !ok {
		return ModeUnknown, false
	}
	return modeFromWire(b), true
}

// HeatDemand returns the DHW's most recent 3150 demand fraction (§4.8,
// grounded on zones.py's DhwZone.heat_demand).
func (d *DhwZone) HeatDemand(now time.Time) (float64, bool) {
	msg, ok := d.Store.Latest(now, "3150")
	if !ok || len(msg.Frame.Payload) < 4 {
		return 0, false
	}
	b, ok := decodeHexByte(msg.Frame.Payload[2:4])
	if !ok {
		return 0, false
	}
	return heatDemandTransform(float64(b) / 200.0), true
}
