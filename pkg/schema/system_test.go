// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"testing"

	"github.com/matryer/is"
)

func TestSystem_GetOrCreateZoneIsIdempotent(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)

	z1, err := sys.GetOrCreateZone("00")
	is.NoErr(err)
	z2, err := sys.GetOrCreateZone("00")
	is.NoErr(err)
	is.Equal(z1, z2)
	is.Equal(len(sys.Zones), 1)
}

func TestSystem_DefaultMaxZones(t *testing.T) {
	is := is.New(t)
	ctl := newDevice(mustAddr(t, "01:999999"))
	sys := newSystem(ctl, 0)
	is.Equal(sys.MaxZones, DefaultMaxZones)
}

func TestSystem_ZoneAtUpperBoundIsValid(t *testing.T) {
	is := is.New(t)
	sys := newTestSystem(t)
	_, err := sys.GetOrCreateZone("0B") // max_zones=12 -> valid idx 00..0B
	is.NoErr(err)
}
