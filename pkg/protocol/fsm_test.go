// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

func mustAddr(t *testing.T, s string) ramses.Address {
	t.Helper()
	a, err := ramses.ParseAddress(s)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return a
}

func mustFrame(t *testing.T, line string) *ramses.Frame {
	t.Helper()
	f, err := ramses.ParseFrame(time.Now(), line)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return f
}

// Scenario (§8): an I command with no rx_header completes in
// IsInIdle on echo alone.
func TestContext_Scenario2_NoReplyExpected(t *testing.T) {
	is := is.New(t)

	gw := mustAddr(t, "03:150994")
	cmd := ramses.NewCommand(ramses.VerbInfo, gw, gw, true, "30C9", "000891")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	is.Equal(ctx.State(), IsInIdle)

	now := time.Now()
	results := make(chan Result, 1)
	err := ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil)
	is.NoErr(err)
	is.Equal(ctx.State(), WantEcho)

	echo := mustFrame(t, cmd.ToWire())
	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), IsInIdle)

	select {
	case r := <-results:
		is.NoErr(r.Err)
		is.Equal(r.Frame.Hdr(), echo.Hdr())
	default:
		t.Fatal("expected a result to be delivered")
	}
}

// Scenario (§8): an RQ with a reply expected transitions
// WantEcho -> WantRply -> IsInIdle.
func TestContext_Scenario3_EchoThenReply(t *testing.T) {
	is := is.New(t)

	hgi := mustAddr(t, "18:000730")
	ctl := mustAddr(t, "01:222222")
	cmd := ramses.NewCommand(ramses.VerbReq, hgi, ctl, true, "12B0", "00")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)

	now := time.Now()
	results := make(chan Result, 1)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil))
	is.Equal(ctx.State(), WantEcho)

	echo := mustFrame(t, cmd.ToWire())
	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), WantRply)

	reply := mustFrame(t, "046 RP --- 01:222222 18:000730 --:------ 12B0 003 000000")
	is.NoErr(ctx.RcvdPkt(now.Add(10*time.Millisecond), reply))
	is.Equal(ctx.State(), IsInIdle)

	select {
	case r := <-results:
		is.NoErr(r.Err)
		is.Equal(r.Frame.Hdr(), reply.Hdr())
	default:
		t.Fatal("expected a result to be delivered")
	}
}

// Scenario (§8): a W addressed to a real controller has a reply header
// (its verb flips W->I the same way an RQ flips to RP), but the
// default wait_for_reply policy only holds for RQ, so it completes on the
// echo alone rather than advancing into WantRply.
func TestContext_Scenario_WriteCompletesOnEchoByDefault(t *testing.T) {
	is := is.New(t)

	hgi := mustAddr(t, "18:000730")
	ctl := mustAddr(t, "01:222222")
	cmd := ramses.NewCommand(ramses.VerbWrite, hgi, ctl, true, "2309", "0001F4")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)

	now := time.Now()
	results := make(chan Result, 1)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil))
	is.Equal(ctx.State(), WantEcho)
	is.True(ctx.active.hasRx) // a W to a live dst does carry a reply header

	echo := mustFrame(t, cmd.ToWire())
	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), IsInIdle)

	select {
	case r := <-results:
		is.NoErr(r.Err)
		is.Equal(r.Frame.Hdr(), echo.Hdr())
	default:
		t.Fatal("expected a result to be delivered")
	}
}

// An explicit waitForReply=true override holds the same W in WantRply
// instead of short-circuiting on the echo.
func TestContext_Scenario_WriteWaitsForReplyWhenOverridden(t *testing.T) {
	is := is.New(t)

	hgi := mustAddr(t, "18:000730")
	ctl := mustAddr(t, "01:222222")
	cmd := ramses.NewCommand(ramses.VerbWrite, hgi, ctl, true, "2309", "0001F4")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)

	wait := true
	now := time.Now()
	results := make(chan Result, 1)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, &wait))

	echo := mustFrame(t, cmd.ToWire())
	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), WantRply)

	select {
	case <-results:
		t.Fatal("did not expect a result before the reply arrived")
	default:
	}
}

func TestContext_ReplyBeforeEchoIsAnError(t *testing.T) {
	is := is.New(t)

	hgi := mustAddr(t, "18:000730")
	ctl := mustAddr(t, "01:222222")
	cmd := ramses.NewCommand(ramses.VerbReq, hgi, ctl, true, "12B0", "00")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	now := time.Now()
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, nil, nil))

	reply := mustFrame(t, "046 RP --- 01:222222 18:000730 --:------ 12B0 003 000000")
	err := ctx.RcvdPkt(now, reply)
	if err == nil {
		t.Fatal("expected an error for reply-before-echo")
	}
}

func TestContext_DuplicateEchoInWantRplyIgnored(t *testing.T) {
	is := is.New(t)

	hgi := mustAddr(t, "18:000730")
	ctl := mustAddr(t, "01:222222")
	cmd := ramses.NewCommand(ramses.VerbReq, hgi, ctl, true, "12B0", "00")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	now := time.Now()
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, nil, nil))

	echo := mustFrame(t, cmd.ToWire())
	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), WantRply)

	is.NoErr(ctx.RcvdPkt(now, echo))
	is.Equal(ctx.State(), WantRply)
}

func TestContext_RetrySameCommandIncrementsSends(t *testing.T) {
	is := is.New(t)

	gw := mustAddr(t, "18:013393")
	dst := mustAddr(t, "01:145038")
	cmd := ramses.NewCommand(ramses.VerbReq, gw, dst, true, "000A", "00")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	now := time.Now()
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, nil, nil))
	is.Equal(ctx.active.sends, 1)

	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, nil, nil))
	is.Equal(ctx.active.sends, 2)
	is.Equal(ctx.State(), WantEcho)
}

// Boundary (§8): with max_retries=3, the 4th send attempt (the
// initial dispatch plus three retry calls) fails with ProtocolSendFailed.
func TestContext_RetriesExhaustedFails(t *testing.T) {
	is := is.New(t)

	gw := mustAddr(t, "18:013393")
	dst := mustAddr(t, "01:145038")
	cmd := ramses.NewCommand(ramses.VerbReq, gw, dst, true, "000A", "00")

	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	now := time.Now()
	results := make(chan Result, 1)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil)) // attempt 1 (dispatch)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil)) // attempt 2 (retry)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil)) // attempt 3 (retry)

	err := ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil) // attempt 4 (retry): exhausted
	if err == nil {
		t.Fatal("expected retries-exhausted error")
	}
	is.Equal(ctx.State(), IsFailed)
}

func TestContext_OuterTimeoutFailsWaiting(t *testing.T) {
	is := is.New(t)

	gw := mustAddr(t, "18:013393")
	dst := mustAddr(t, "01:145038")
	cmd := ramses.NewCommand(ramses.VerbReq, gw, dst, true, "000A", "00")

	ctx := NewContext(Timeouts{Outer: 3 * time.Second, Echo: 500 * time.Millisecond, Reply: 500 * time.Millisecond})
	ctx.MadeConnection(false)
	now := time.Now()
	results := make(chan Result, 1)
	is.NoErr(ctx.SentCmd(now, cmd, DefaultMaxRetries, results, nil))

	ctx.PollTimeouts(now.Add(3*time.Second + 10*time.Millisecond))
	is.Equal(ctx.State(), IsFailed)

	select {
	case r := <-results:
		if r.Err == nil {
			t.Fatal("expected a timeout error")
		}
	default:
		t.Fatal("expected a result to be delivered")
	}
}

func TestContext_LostConnectionFromAnyState(t *testing.T) {
	is := is.New(t)
	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	ctx.LostConnection()
	is.Equal(ctx.State(), Inactive)
}

func TestContext_RecoverFromFailed(t *testing.T) {
	is := is.New(t)
	ctx := NewContext(DefaultTimeouts)
	ctx.MadeConnection(false)
	ctx.failActive(newError(ErrFsmError, "forced"))
	is.Equal(ctx.State(), IsFailed)
	is.NoErr(ctx.Recover())
	is.Equal(ctx.State(), IsInIdle)
}
