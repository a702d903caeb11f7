// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"testing"
	"time"

	"github.com/matryer/is"
)

func TestClassOf_KnownAndUnknown(t *testing.T) {
	is := is.New(t)
	is.Equal(classOf("04"), ClassTRV)
	is.Equal(classOf("13"), ClassBDR)
	is.Equal(classOf("99"), ClassUnknown)
}

func TestDecodeHexByte(t *testing.T) {
	cases := map[string]int{"00": 0, "FF": 255, "C8": 200, "6e": 110}
	for s, want := range cases {
		got, ok := decodeHexByte(s)
		if !ok || got != want {
			t.Errorf("decodeHexByte(%q) = %d, %v; want %d, true", s, got, ok, want)
		}
	}
	if _, ok := decodeHexByte("ZZ"); ok {
		t.Error("expected decode failure for non-hex input")
	}
	if _, ok := decodeHexByte("1"); ok {
		t.Error("expected decode failure for short input")
	}
}

func TestDevice_HeatDemandFraction(t *testing.T) {
	is := is.New(t)
	d := newDevice(mustAddr(t, "04:111111"))
	now := time.Now()
	d.Store.Put(mustFrame(t, "045  I --- 04:111111 --:------ 01:145038 3150 002 00C8"), nil)

	f, ok := d.heatDemandFraction(now.Add(time.Second))
	is.True(ok)
	is.Equal(f, 1.0)
}

func TestDevice_HeatDemandFraction_NoData(t *testing.T) {
	is := is.New(t)
	d := newDevice(mustAddr(t, "04:111111"))
	_, ok := d.heatDemandFraction(time.Now())
	is.Equal(ok, false)
}
