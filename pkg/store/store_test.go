// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package store

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

func mustFrame(t *testing.T, dtm time.Time, line string) *ramses.Frame {
	t.Helper()
	f, err := ramses.ParseFrame(dtm, line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

func TestStore_NewerTimestampSupersedes(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	f1 := mustFrame(t, t0, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B")
	_, ok := s.Put(f1, nil)
	is.True(ok)

	f2 := mustFrame(t, t0.Add(time.Second), "046  I --- 01:145038 --:------ 01:145038 1F09 003 FF0B1C")
	m2, ok := s.Put(f2, nil)
	is.True(ok)
	is.Equal(m2.Frame, f2)

	got, ok := s.Get(t0.Add(2*time.Second), "1F09", "I", f2.Ctx())
	is.True(ok)
	is.Equal(got.Frame, f2)
}

func TestStore_OlderTimestampNeverSupersedes(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	f2 := mustFrame(t, t0.Add(time.Second), "046  I --- 01:145038 --:------ 01:145038 1F09 003 FF0B1C")
	_, ok := s.Put(f2, nil)
	is.True(ok)

	f1 := mustFrame(t, t0, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B")
	_, ok = s.Put(f1, nil)
	is.Equal(ok, false)

	got, ok := s.Get(t0.Add(2*time.Second), "1F09", "I", f1.Ctx())
	is.True(ok)
	is.Equal(got.Frame, f2)
}

func TestStore_DifferentCtxDoNotCollide(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	a := mustFrame(t, t0, "045 RP --- 01:145038 18:013393 --:------ 000A 006 0000C8012C00")
	b := mustFrame(t, t0, "046 RP --- 01:145038 18:013393 --:------ 000A 006 0100C8012C00")

	s.Put(a, nil)
	s.Put(b, nil)

	gotA, ok := s.Get(t0, "000A", "RP", a.Ctx())
	is.True(ok)
	is.Equal(gotA.Frame, a)

	gotB, ok := s.Get(t0, "000A", "RP", b.Ctx())
	is.True(ok)
	is.Equal(gotB.Frame, b)
}

func TestStore_RQExpiresQuickly(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	f := mustFrame(t, t0, "045 RQ --- 18:013393 01:145038 --:------ 000A 002 0000")
	s.Put(f, nil)

	_, ok := s.Get(t0.Add(1*time.Second), "000A", "RQ", f.Ctx())
	is.True(ok)

	// RQ expiry is 3s; at 6.01s (ratio > 2.0) the entry is tombstoned.
	_, ok = s.Get(t0.Add(6*time.Second+10*time.Millisecond), "000A", "RQ", f.Ctx())
	is.Equal(ok, false)
}

func TestStore_NeverExpiresOpcodeSurvives(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	f := mustFrame(t, t0, "045  I --- 01:145038 --:------ 01:145038 10E0 002 0000")
	s.Put(f, nil)

	_, ok := s.Get(t0.Add(365*24*time.Hour), "10E0", "I", f.Ctx())
	is.True(ok)
}

func TestStore_Latest(t *testing.T) {
	is := is.New(t)
	s := New()
	t0 := time.Now()

	f1 := mustFrame(t, t0, "045 RP --- 01:145038 18:013393 --:------ 000A 006 0000C8012C00")
	f2 := mustFrame(t, t0.Add(time.Second), "046 RP --- 01:145038 18:013393 --:------ 000A 006 0100C8012C00")
	s.Put(f1, nil)
	s.Put(f2, nil)

	latest, ok := s.Latest(t0.Add(2*time.Second), "000A")
	is.True(ok)
	is.Equal(latest.Frame, f2)
}

func TestStore_LatestOnUnknownOpcode(t *testing.T) {
	is := is.New(t)
	s := New()
	_, ok := s.Latest(time.Now(), "FFFF")
	is.Equal(ok, false)
}
