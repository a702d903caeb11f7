// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package schema

import (
	"testing"

	"github.com/matryer/is"
)

func TestGraph_ControllerSightingCreatesSystemAndChild(t *testing.T) {
	is := is.New(t)
	g := NewGraph(true)

	f := mustFrame(t, "045  I --- 01:145038 --:------ 04:111111 1060 003 00FF01")
	g.Observe(f)

	sys, ok := g.SystemFor(mustAddr(t, "01:145038"))
	is.True(ok)
	is.Equal(sys.Controller.Addr.ID(), "01:145038")

	child, ok := g.DeviceFor(mustAddr(t, "04:111111"))
	is.True(ok)
	is.Equal(child.Parent, sys)
}

func TestGraph_NoEavesdropLeavesChildParentless(t *testing.T) {
	is := is.New(t)
	g := NewGraph(false)

	f := mustFrame(t, "045  I --- 01:145038 --:------ 04:111111 1060 003 00FF01")
	g.Observe(f)

	child, ok := g.DeviceFor(mustAddr(t, "04:111111"))
	is.True(ok)
	is.Equal(child.Parent, nil)
}

func TestGraph_SymmetricControllerRuleFiresOnDst(t *testing.T) {
	is := is.New(t)
	g := NewGraph(true)

	f := mustFrame(t, "045 RQ --- 18:013393 23:222222 --:------ 000A 002 0000")
	g.Observe(f)

	_, ok := g.SystemFor(mustAddr(t, "23:222222"))
	is.True(ok)
}

func TestGraph_SelfAnnounceCreatesSingleDevice(t *testing.T) {
	is := is.New(t)
	g := NewGraph(true)

	f := mustFrame(t, "045  I --- 01:145038 --:------ 01:145038 1F09 003 FF0A1B")
	g.Observe(f)

	_, ok := g.DeviceFor(mustAddr(t, "01:145038"))
	is.True(ok)
	// A self-announce from a controller type is not, by itself, the
	// controller-sighting rule (src == dst takes priority per §4.8's literal
	// ordering): no System is constructed from this frame alone.
	_, ok = g.SystemFor(mustAddr(t, "01:145038"))
	is.Equal(ok, false)
}

func TestGraph_NeitherSideIsControllerCreatesBothParentless(t *testing.T) {
	is := is.New(t)
	g := NewGraph(true)

	f := mustFrame(t, "045  I --- 03:111111 --:------ 04:222222 30C9 003 007FFF")
	g.Observe(f)

	a, ok := g.DeviceFor(mustAddr(t, "03:111111"))
	is.True(ok)
	is.Equal(a.Parent, nil)

	b, ok := g.DeviceFor(mustAddr(t, "04:222222"))
	is.True(ok)
	is.Equal(b.Parent, nil)
}

func TestGraph_AttachesToExistingController(t *testing.T) {
	is := is.New(t)
	g := NewGraph(true)

	ctlFrame := mustFrame(t, "045  I --- 01:145038 --:------ 04:111111 1060 003 00FF01")
	g.Observe(ctlFrame)

	other := mustFrame(t, "046  I --- 01:145038 --:------ 07:222222 1060 003 00FF01")
	g.Observe(other)

	d, ok := g.DeviceFor(mustAddr(t, "07:222222"))
	is.True(ok)
	sys, _ := g.SystemFor(mustAddr(t, "01:145038"))
	is.Equal(d.Parent, sys)
}
