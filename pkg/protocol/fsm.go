// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package protocol

import (
	"time"

	"github.com/ctr/ramses-rf/pkg/ramses"
)

// State is one of the six Send FSM states of §4.5.
type State int

const (
	Inactive State = iota
	IsPaused
	IsInIdle
	WantEcho
	WantRply
	IsFailed
)

func (s State) String() string {
	switch s {
	case Inactive:
		return "Inactive"
	case IsPaused:
		return "IsPaused"
	case IsInIdle:
		return "IsInIdle"
	case WantEcho:
		return "WantEcho"
	case WantRply:
		return "WantRply"
	case IsFailed:
		return "IsFailed"
	default:
		return "Unknown"
	}
}

// Timeouts holds the three clocks of §4.5. Outer must always exceed
// Echo+Reply times max_retries, or it fires before the FSM can fail the
// command on its own.
type Timeouts struct {
	Outer time.Duration
	Echo  time.Duration
	Reply time.Duration
}

// DefaultTimeouts: outer 3.0s, echo/reply 0.5s.
var DefaultTimeouts = Timeouts{
	Outer: 3 * time.Second,
	Echo:  500 * time.Millisecond,
	Reply: 500 * time.Millisecond,
}

// DefaultMaxRetries is the retry ceiling of §4.5.
const DefaultMaxRetries = 3

// puzzleOpcode is the reserved self-test opcode; the
// puzzle command is always treated as "the active command" regardless of
// whatever else is outstanding (§4.5).
const puzzleOpcode = ramses.PuzzleOpcode

// Result is delivered to the caller of SendCmd on completion.
type Result struct {
	Frame *ramses.Frame
	Err   error
}

type active struct {
	cmd          *ramses.Command
	txHeader     string
	rxHeader     string
	hasRx        bool
	waitForReply bool
	sends        int
	deadline     time.Time // outer deadline
	echoBy       time.Time
	replyBy      time.Time
	resultCh     chan<- Result
	echoCapt     *ramses.Frame
	maxRetries   int
}

func (a *active) isPuzzle() bool {
	return a.cmd.Opcode == puzzleOpcode
}

// resolveWaitForReply decides send_cmd's wait_for_reply policy (§4.5's outer
// contract): an explicit override always wins; left nil, only an RQ waits
// for the flipped-verb reply, and every other verb completes on its own
// echo. This mirrors the two-layer split in the reference implementation,
// where the core FSM transition into WantRply is purely structural (it only
// checks whether the command has a reply header at all) while a wrapping
// layer decides whether to actually hold for it.
func resolveWaitForReply(explicit *bool, verb string) bool {
	if explicit != nil {
		return *explicit
	}
	return verb == ramses.VerbReq
}

// Context is the Send/Echo/Reply FSM of §4.5. It is not safe for concurrent
// use: this is a single cooperative event loop and every method here must
// be called from that loop.
type Context struct {
	state    State
	active   *active
	timeouts Timeouts
}

// NewContext builds an FSM in the Inactive state.
func NewContext(timeouts Timeouts) *Context {
	return &Context{state: Inactive, timeouts: timeouts}
}

// State returns the current FSM state.
func (c *Context) State() State { return c.state }

// MadeConnection handles the `made_connection` event (§4.5).
func (c *Context) MadeConnection(paused bool) {
	if paused {
		c.state = IsPaused
		return
	}
	c.state = IsInIdle
}

// LostConnection handles `lost_connection`: valid from any state, and fails
// any in-flight command with TransportError.
func (c *Context) LostConnection() {
	if c.active != nil && c.active.resultCh != nil {
		c.failActive(newError(ErrTransport, "transport lost while %s", c.state))
	}
	c.state = Inactive
}

// WritingPaused handles `writing_paused`.
func (c *Context) WritingPaused() error {
	switch c.state {
	case IsInIdle, WantEcho, WantRply:
		c.state = IsPaused
		return nil
	default:
		return newError(ErrFsmError, "writing_paused illegal from %s", c.state)
	}
}

// WritingResumed handles `writing_resumed`.
func (c *Context) WritingResumed() error {
	if c.state != IsPaused {
		return newError(ErrFsmError, "writing_resumed illegal from %s", c.state)
	}
	c.state = IsInIdle
	return nil
}

// SentCmd handles `sent_cmd(cmd)`: dispatches a new command from IsInIdle, or
// registers a retry of the currently active command. now is the submission
// time (injected so callers do not need a live clock to exercise this path
// in tests). waitForReply overrides the default wait_for_reply policy for a
// freshly-dispatched command (§4.5); it is ignored on a retry, since the
// policy was already fixed when the command was first dispatched.
func (c *Context) SentCmd(now time.Time, cmd *ramses.Command, maxRetries int, resultCh chan<- Result, waitForReply *bool) error {
	if c.state == IsInIdle {
		rxHeader, hasRx := "", false
		if cmd.Opcode != puzzleOpcode {
			if f, err := cmd.AsFrame(now); err == nil {
				rxHeader, hasRx = f.RxHdr()
			}
		}
		txHeader := cmd.ToWire()
		if f, err := cmd.AsFrame(now); err == nil {
			txHeader = f.Hdr()
		}
		c.active = &active{
			cmd:          cmd,
			txHeader:     txHeader,
			rxHeader:     rxHeader,
			hasRx:        hasRx,
			waitForReply: hasRx && resolveWaitForReply(waitForReply, cmd.Verb),
			sends:        1,
			deadline:     now.Add(c.timeouts.Outer),
			echoBy:       now.Add(c.timeouts.Echo),
			maxRetries:   maxRetries,
			resultCh:     resultCh,
		}
		c.state = WantEcho
		return nil
	}

	if c.state != WantEcho && c.state != WantRply {
		return newError(ErrFsmError, "sent_cmd illegal from %s", c.state)
	}

	if c.active == nil {
		return newError(ErrFsmError, "sent_cmd with no active command")
	}
	if !c.sameActiveCommand(cmd) {
		return newError(ErrFsmError, "sent_cmd for a different command while %s is outstanding", c.active.txHeader)
	}
	if c.active.sends >= c.active.maxRetries {
		err := newError(ErrSendFailed, "retries exhausted for %s", c.active.txHeader)
		c.failActive(err)
		return err
	}
	c.active.sends++
	if c.state == WantEcho {
		c.active.echoBy = now.Add(c.timeouts.Echo)
	} else {
		c.active.replyBy = now.Add(c.timeouts.Reply)
	}
	return nil
}

func (c *Context) sameActiveCommand(cmd *ramses.Command) bool {
	if c.active.isPuzzle() || cmd.Opcode == puzzleOpcode {
		return true
	}
	return c.active.cmd == cmd
}

// RcvdPkt handles `rcvd_pkt(p)`. now is the arrival time, used to seed the
// reply deadline when the FSM advances into WantRply.
func (c *Context) RcvdPkt(now time.Time, p *ramses.Frame) error {
	hdr := p.Hdr()

	switch c.state {
	case WantEcho:
		if c.active == nil {
			return nil
		}
		if hdr == c.active.rxHeader && c.active.hasRx {
			return newError(ErrFsmError, "reply %s observed before echo %s", hdr, c.active.txHeader)
		}
		if hdr != c.active.txHeader {
			return nil
		}
		c.active.echoCapt = p
		if !c.active.hasRx {
			c.completeActive(p)
			c.state = IsInIdle
			return nil
		}
		// The command does have a reply header, so the transition into
		// WantRply is structurally correct either way; but when
		// waitForReply resolved to false (e.g. a default-policy W) the
		// outer send_cmd contract says to stop here and hand back the
		// echo rather than hold for a reply nobody asked for.
		c.state = WantRply
		c.active.replyBy = now.Add(c.timeouts.Reply)
		if !c.active.waitForReply {
			c.completeActive(p)
			c.state = IsInIdle
		}
		return nil

	case WantRply:
		if c.active == nil {
			return nil
		}
		if hdr == c.active.rxHeader {
			c.completeActive(p)
			c.state = IsInIdle
			return nil
		}
		if hdr == c.active.txHeader {
			// Duplicate echo while awaiting reply: ignored, state unchanged.
			return nil
		}
		return nil

	default:
		return nil
	}
}

// PollTimeouts must be invoked periodically (a 0.5ms poll interval) with the
// current time; it fails the active command when its outer, echo, or reply
// deadline has elapsed.
func (c *Context) PollTimeouts(now time.Time) {
	if c.active == nil {
		return
	}
	if !c.active.deadline.IsZero() && now.After(c.active.deadline) {
		c.failActive(newError(ErrWaitFailed, "outer timeout waiting for %s", c.active.txHeader))
		return
	}
	switch c.state {
	case WantEcho:
		if now.After(c.active.echoBy) {
			c.failActive(newError(ErrEchoFailed, "echo timeout waiting for %s", c.active.txHeader))
		}
	case WantRply:
		if now.After(c.active.replyBy) {
			c.failActive(newError(ErrRplyFailed, "reply timeout waiting for %s", c.active.rxHeader))
		}
	}
}

func (c *Context) completeActive(result *ramses.Frame) {
	if c.active == nil {
		return
	}
	if c.active.resultCh != nil {
		c.active.resultCh <- Result{Frame: result}
	}
	c.active = nil
}

func (c *Context) failActive(err error) {
	if c.active == nil {
		c.state = IsFailed
		return
	}
	if c.active.resultCh != nil {
		c.active.resultCh <- Result{Err: err}
	}
	c.active = nil
	c.state = IsFailed
}

// Recover moves a failed FSM back to IsInIdle once the queue has drained, per
// §4.5 ("explicit recovery into IsInIdle after the queue drains").
func (c *Context) Recover() error {
	if c.state != IsFailed {
		return newError(ErrFsmError, "recover illegal from %s", c.state)
	}
	c.state = IsInIdle
	return nil
}
