// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ctr/ramses-rf/pkg/store"
)

func TestDueProbes_EmptyStoreAllDue(t *testing.T) {
	is := is.New(t)
	st := store.New()
	due := DueProbes(time.Now(), st, DiscoverAll, ZoneProbes)
	is.Equal(len(due), len(ZoneProbes))
}

func TestDueProbes_RecentMessageSuppressesProbe(t *testing.T) {
	is := is.New(t)
	st := store.New()
	now := time.Now()

	f := mustFrame(t, "045 RP --- 01:145038 18:013393 --:------ 12B0 003 000000")
	st.Put(f, nil)

	due := DueProbes(now.Add(30*time.Second), st, DiscoverStatus, ZoneProbes)
	for _, opcode := range due {
		is.True(opcode != "12B0") // 12B0 is throttled at 30s (<2min window)
	}
}

func TestDueProbes_LongThrottleOpcodeStaysSuppressedPast2Min(t *testing.T) {
	is := is.New(t)
	st := store.New()
	now := time.Now()

	f := mustFrame(t, "045 RP --- 01:145038 18:013393 --:------ 000A 006 0000C8012C00")
	st.Put(f, nil)

	due := DueProbes(now.Add(5*time.Minute), st, DiscoverParams, ZoneProbes)
	for _, opcode := range due {
		if opcode == "000A" {
			t.Error("expected 000A (15min throttle) to still be suppressed at 5min")
		}
	}

	due = DueProbes(now.Add(16*time.Minute), st, DiscoverParams, ZoneProbes)
	found := false
	for _, opcode := range due {
		if opcode == "000A" {
			found = true
		}
	}
	is.True(found)
}

func TestDueProbes_FlagFiltersOpcodeClass(t *testing.T) {
	is := is.New(t)
	st := store.New()
	due := DueProbes(time.Now(), st, DiscoverSchema, ZoneProbes)
	is.Equal(len(due), 1)
	is.Equal(due[0], "000C")
}

func TestNextFireTime_InitialDelay(t *testing.T) {
	is := is.New(t)
	created := time.Now()
	c := ZoneCadence[DiscoverSchema]
	next := NextFireTime(created, created, c)
	is.True(next.Equal(created.Add(c.Delay)))
}

func TestNextFireTime_AdvancesByWholePeriods(t *testing.T) {
	c := Cadence{Delay: time.Second, Period: time.Minute}
	created := time.Now()
	now := created.Add(time.Second + 90*time.Second) // 1.5 periods past first fire
	next := NextFireTime(created, now, c)
	want := created.Add(time.Second + 2*time.Minute)
	if !next.Equal(want) {
		t.Errorf("NextFireTime = %v, want %v", next, want)
	}
}
