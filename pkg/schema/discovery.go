// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"time"

	"github.com/ctr/ramses-rf/pkg/store"
)

// DiscoverFlag selects which probe class(es) a scheduler tick should
// consider, grounded on zones.py's Discover.SCHEMA/PARAMS/STATUS bitmask.
type DiscoverFlag int

const (
	DiscoverSchema DiscoverFlag = 1 << iota
	DiscoverParams
	DiscoverStatus
	DiscoverAll = DiscoverSchema | DiscoverParams | DiscoverStatus
)

// Cadence is an (initial delay, period) pair for one probe class (§4.9).
type Cadence struct {
	Delay  time.Duration
	Period time.Duration
}

// ZoneCadence is the §4.9 table: identical for Zone, DhwZone and System.
var ZoneCadence = map[DiscoverFlag]Cadence{
	DiscoverSchema: {Delay: 1 * time.Second, Period: 24 * time.Hour},
	DiscoverParams: {Delay: 3 * time.Second, Period: 6 * time.Hour},
	DiscoverStatus: {Delay: 5 * time.Second, Period: 15 * time.Minute},
}

// defaultThrottle is the per-opcode suppression window of §4.9: a probe is
// skipped if the most recent message for its opcode is younger than this.
const defaultThrottle = 2 * time.Minute

// longThrottle applies to the opcodes named in §4.9 (0004/000A/10A0).
const longThrottle = 15 * time.Minute

var longThrottleOpcodes = map[string]bool{"0004": true, "000A": true, "10A0": true}

func throttleFor(opcode string) time.Duration {
	if longThrottleOpcodes[opcode] {
		return longThrottle
	}
	return defaultThrottle
}

// Probe names a single opcode to request (as an RQ) for a given DiscoverFlag
// class, grounded on the zones.py Discover.SCHEMA/PARAMS/STATUS code lists
// (Zone: 000C schema, 0004/000A params, 12B0/2349/30C9 status; DhwZone: 000C
// schema, 10A0 params, 1F41/3150 status; System: 0005 schema, 2E04 params,
// 1F09 status).
type Probe struct {
	Flag   DiscoverFlag
	Opcode string
}

// ZoneProbes is the set of opcodes a Zone's discovery cycle requests per
// flag class.
var ZoneProbes = []Probe{
	{DiscoverSchema, "000C"},
	{DiscoverParams, "0004"},
	{DiscoverParams, "000A"},
	{DiscoverStatus, "12B0"},
	{DiscoverStatus, "2349"},
	{DiscoverStatus, "30C9"},
}

// DhwProbes mirrors ZoneProbes for the DHW subsystem.
var DhwProbes = []Probe{
	{DiscoverSchema, "000C"},
	{DiscoverParams, "10A0"},
	{DiscoverStatus, "1F41"},
	{DiscoverStatus, "3150"},
}

// SystemProbes mirrors ZoneProbes for the System/TCS itself.
var SystemProbes = []Probe{
	{DiscoverSchema, "0005"},
	{DiscoverParams, "2E04"},
	{DiscoverStatus, "1F09"},
}

// DueProbes returns the opcodes from probes whose Flag is set in flags and
// whose most recent message in st is either absent or older than its
// per-opcode throttle window, evaluated at now. A discovery scheduler
// issues one RQ per returned opcode.
func DueProbes(now time.Time, st *store.Store, flags DiscoverFlag, probes []Probe) []string {
	var due []string
	for _, p := range probes {
		if p.Flag&flags == 0 {
			continue
		}
		if msg, ok := st.Latest(now, p.Opcode); ok && now.Sub(msg.Dtm()) < throttleFor(p.Opcode) {
			continue
		}
		due = append(due, p.Opcode)
	}
	return due
}

// NextFireTime returns the next instant a probe class of the given cadence
// should fire, given the entity's creation time. The discover command's
// scheduler compares it against the time on each tick of its ticker.
func NextFireTime(createdAt time.Time, now time.Time, c Cadence) time.Time {
	first := createdAt.Add(c.Delay)
	if now.Before(first) {
		return first
	}
	elapsed := now.Sub(first)
	periodsElapsed := elapsed / c.Period
	return first.Add((periodsElapsed + 1) * c.Period)
}
