// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import "github.com/ctr/ramses-rf/pkg/store"

// DefaultMaxZones is the default zone capacity of a System (§1).
const DefaultMaxZones = 12

// System is the TCS (temperature control system) owned by a controller
// device: up to MaxZones heating Zones plus an optional DhwZone.
type System struct {
	Controller *Device
	MaxZones   int
	ZoneByIdx  map[string]*Zone
	Zones      []*Zone
	Dhw        *DhwZone
	Store      *store.Store
}

func newSystem(ctl *Device, maxZones int) *System {
	if maxZones <= 0 {
		maxZones = DefaultMaxZones
	}
	sys := &System{
		Controller: ctl,
		MaxZones:   maxZones,
		ZoneByIdx:  map[string]*Zone{},
		Store:      store.New(),
	}
	ctl.setParent(sys)
	return sys
}

// GetOrCreateZone returns the zone at idx, creating it (unpromoted) if it
// does not already exist.
func (s *System) GetOrCreateZone(idx string) (*Zone, error) {
	if z, ok := s.ZoneByIdx[idx]; ok {
		return z, nil
	}
	return newZone(s, idx)
}

// GetOrCreateDhw returns the system's DHW zone, creating it if absent.
func (s *System) GetOrCreateDhw() (*DhwZone, error) {
	if s.Dhw != nil {
		return s.Dhw, nil
	}
	return newDhwZone(s)
}
