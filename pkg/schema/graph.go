// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import "github.com/ctr/ramses-rf/pkg/ramses"

// controllerConstructTypes is the {01,23} set from §4.8's construction
// rules: a src or dst of one of these types becomes a Controller (and gets
// a System) on first sighting. This is deliberately narrower than
// ramses.IsControllerType's {01,02,23} has_ctl set — §4.8 names {01,23}
// explicitly for graph construction, while System ownership (§1) also
// recognises 02 (UFC) as a standalone zone controller once a System already
// exists for it.
func isConstructController(devType string) bool {
	return devType == "01" || devType == "23"
}

// Graph is the entity graph root of §4.8: every Device and System observed
// on the transport, keyed by address id. One Graph exists per Gateway.
type Graph struct {
	DeviceByID    map[string]*Device
	SystemByCtlID map[string]*System

	// EnableEavesdrop gates the "create dst/src as a child of the sighted
	// controller" half of the construction rules; when false, the non-
	// controller side of a frame is still created but left parentless.
	EnableEavesdrop bool
}

// NewGraph returns an empty entity graph.
func NewGraph(enableEavesdrop bool) *Graph {
	return &Graph{
		DeviceByID:      map[string]*Device{},
		SystemByCtlID:   map[string]*System{},
		EnableEavesdrop: enableEavesdrop,
	}
}

func (g *Graph) getOrCreateDevice(addr ramses.Address) *Device {
	if d, ok := g.DeviceByID[addr.ID()]; ok {
		return d
	}
	d := newDevice(addr)
	g.DeviceByID[addr.ID()] = d
	return d
}

// getOrCreateController returns the Device+System pair for a controller-
// class address, creating both on first sighting.
func (g *Graph) getOrCreateController(addr ramses.Address) (*Device, *System) {
	d := g.getOrCreateDevice(addr)
	sys, ok := g.SystemByCtlID[addr.ID()]
	if !ok {
		sys = newSystem(d, DefaultMaxZones)
		g.SystemByCtlID[addr.ID()] = sys
	}
	return d, sys
}

// SystemFor returns the System already constructed for a controller address,
// if any.
func (g *Graph) SystemFor(ctlAddr ramses.Address) (*System, bool) {
	sys, ok := g.SystemByCtlID[ctlAddr.ID()]
	return sys, ok
}

// DeviceFor returns the Device already constructed for an address, if any.
func (g *Graph) DeviceFor(addr ramses.Address) (*Device, bool) {
	d, ok := g.DeviceByID[addr.ID()]
	return d, ok
}

// Observe applies the §4.8 construction rules to a valid, non-echo frame.
// It never returns an error: construction is deliberately permissive (an
// unknown device type simply produces a parentless Device), so only the
// later, type-specific promotion/aggregate calls (Zone.Promote, etc.) can
// raise CorruptState.
func (g *Graph) Observe(f *ramses.Frame) {
	src := f.Src()
	hasDst := f.HasDst()
	dst := f.Dst()

	switch {
	case isConstructController(src.Type()) && hasDst && src.ID() != dst.ID():
		_, _ = g.getOrCreateController(src)
		other := g.getOrCreateDevice(dst)
		if g.EnableEavesdrop {
			if sys, ok := g.SystemFor(src); ok {
				other.setParent(sys)
			}
		}
	case hasDst && isConstructController(dst.Type()) && src.ID() != dst.ID():
		_, _ = g.getOrCreateController(dst)
		other := g.getOrCreateDevice(src)
		if g.EnableEavesdrop {
			if sys, ok := g.SystemFor(dst); ok {
				other.setParent(sys)
			}
		}
	case hasDst && src.ID() == dst.ID():
		g.getOrCreateDevice(src)
	case hasDst:
		if sys, ok := g.SystemFor(src); ok {
			other := g.getOrCreateDevice(dst)
			other.setParent(sys)
		} else if sys, ok := g.SystemFor(dst); ok {
			other := g.getOrCreateDevice(src)
			other.setParent(sys)
		} else {
			g.getOrCreateDevice(src)
			g.getOrCreateDevice(dst)
		}
	default:
		g.getOrCreateDevice(src)
	}
}
